package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Lifelong-Learning-Assisttant/test-generator/internal/evaluator"
	appI18n "github.com/Lifelong-Learning-Assisttant/test-generator/internal/i18n"
	"github.com/Lifelong-Learning-Assisttant/test-generator/internal/llm"
	"github.com/Lifelong-Learning-Assisttant/test-generator/internal/model"
	"github.com/Lifelong-Learning-Assisttant/test-generator/internal/store"
)

func evaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Run one or more models through an exam and compare them",
		RunE:  runEvaluate,
	}
	f := cmd.Flags()
	addExamFlags(cmd)
	f.StringArrayP("model", "m", nil, "Model to test as model_name:provider (repeatable)")
	f.String("models", "", "YAML or JSON file with a list of {model_name, provider}")
	f.Bool("save", false, "Save results and the comparison under <data-dir>/results")
	f.Int("parallel", 1, "Number of models to run at once")
	f.String("db", "testgen.db", "SQLite run index path (empty disables the index)")
	addCommonFlags(cmd)
	addProviderFlags(cmd)

	cmd.MarkFlagsOneRequired("model", "models")
	return cmd
}

func compareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <result.json>...",
		Short: "Build a comparison report from saved model results",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runCompare,
	}
	f := cmd.Flags()
	f.Bool("save", false, "Save the comparison under <data-dir>/results")
	f.String("db", "testgen.db", "SQLite run index path (empty disables the index)")
	addCommonFlags(cmd)
	return cmd
}

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded evaluation runs",
		RunE:  runHistory,
	}
	f := cmd.Flags()
	f.String("exam-id", "", "Only list runs of this exam")
	f.String("db", "testgen.db", "SQLite run index path")
	addCommonFlags(cmd)
	return cmd
}

// openArchive opens the result directory and, unless disabled, the run index.
// The returned close function is always non-nil.
func openArchive(v *viper.Viper) (*store.Archive, func(), error) {
	closeFn := func() {}
	results, err := store.NewResults(resultsDir(v))
	if err != nil {
		return nil, closeFn, err
	}
	var index *store.Store
	if path := v.GetString("db"); path != "" {
		index, err = store.New(path)
		if err != nil {
			return nil, closeFn, fmt.Errorf("open database: %w", err)
		}
		closeFn = func() { index.Close() }
	}
	return store.NewArchive(results, index, slog.Default()), closeFn, nil
}

func loadTargets(v *viper.Viper) ([]model.Target, error) {
	var targets []model.Target
	for _, s := range v.GetStringSlice("model") {
		t, err := parseTarget(s)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	if path := v.GetString("models"); path != "" {
		fromFile, err := store.LoadTargets(path)
		if err != nil {
			return nil, err
		}
		targets = append(targets, fromFile...)
	}
	return targets, nil
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	ctx = appI18n.WithLanguage(ctx, appI18n.Match(v.GetString("lang")))

	exam, err := loadExam(v)
	if err != nil {
		return err
	}
	targets, err := loadTargets(v)
	if err != nil {
		return err
	}

	archive, closeArchive, err := openArchive(v)
	if err != nil {
		return err
	}
	defer closeArchive()

	logger := slog.Default()
	registry := llm.NewRegistry(llmConfig(v), logger)
	ev := evaluator.New(evaluator.FromRegistry(registry), archive, logger)
	opts := evaluator.Options{
		Save:        v.GetBool("save"),
		Concurrency: v.GetInt("parallel"),
	}
	// Without an explicit --lang the exam's own language is used.
	if v.IsSet("lang") {
		opts.Language = appI18n.Match(v.GetString("lang"))
	}
	out := cmd.OutOrStdout()
	start := time.Now()

	var results []*model.ModelTestResult
	if len(targets) == 1 {
		res, err := ev.TestModelOnExam(ctx, exam, targets[0], opts)
		switch {
		case errors.Is(err, context.Canceled) && res != nil:
			fmt.Fprintln(out, appI18n.Td(ctx, "ReportCancelled", map[string]any{
				"Done":  len(res.PerQuestionResults),
				"Total": res.TotalQuestions,
			}))
			printResult(ctx, out, res)
			return err
		case errors.Is(err, evaluator.ErrPersistence):
			slog.Warn("result not saved", "error", err)
		case err != nil:
			return err
		}
		results = append(results, res)
	} else {
		results = ev.BatchTestModels(ctx, exam, targets, opts)
	}

	for _, res := range results {
		printResult(ctx, out, res)
	}
	slog.Info("evaluation finished", "exam_id", exam.ExamID, "models", len(results), "elapsed", since(start))

	if len(results) == 0 {
		return fmt.Errorf("no model completed the exam")
	}
	if len(results) > 1 || opts.Save {
		return compareAndPrint(ctx, out, ev, results, opts.Save)
	}
	return nil
}

func runCompare(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := appI18n.WithLanguage(cmd.Context(), appI18n.Match(v.GetString("lang")))

	var results []*model.ModelTestResult
	for _, path := range args {
		res, err := store.LoadResult(path)
		if err != nil {
			return err
		}
		results = append(results, res)
	}

	var sink evaluator.Sink
	if v.GetBool("save") {
		archive, closeArchive, err := openArchive(v)
		if err != nil {
			return err
		}
		defer closeArchive()
		sink = archive
	}

	out := cmd.OutOrStdout()
	for _, res := range results {
		printResult(ctx, out, res)
	}
	return compareAndPrint(ctx, out, evaluator.New(nil, sink, slog.Default()), results, v.GetBool("save"))
}

func compareAndPrint(ctx context.Context, out io.Writer, ev *evaluator.Evaluator, results []*model.ModelTestResult, save bool) error {
	report, err := ev.Compare(ctx, results, save)
	if err != nil && !errors.Is(err, evaluator.ErrPersistence) {
		return err
	}
	if err != nil {
		slog.Warn("comparison not saved", "error", err)
	}

	fmt.Fprintln(out, appI18n.Td(ctx, "ReportBestModel", map[string]any{
		"Model":    report.BestModel,
		"Accuracy": formatAccuracy(report.BestAccuracy),
	}))
	if report.ComparisonFile != "" {
		fmt.Fprintln(out, appI18n.Td(ctx, "ReportSaved", map[string]any{"Path": report.ComparisonFile}))
	}
	return nil
}

func printResult(ctx context.Context, out io.Writer, res *model.ModelTestResult) {
	fmt.Fprintln(out, appI18n.Td(ctx, "ReportModelAccuracy", map[string]any{
		"Model":    res.ModelName,
		"Provider": res.Provider,
		"Accuracy": formatAccuracy(res.Accuracy),
		"Correct":  res.CorrectCount,
		"Total":    res.TotalQuestions,
	}))
	if res.Metadata.Failed > 0 {
		fmt.Fprintln(out, "  "+appI18n.Tp(ctx, "QuestionsFailed", res.Metadata.Failed))
	}
}

func runHistory(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := appI18n.WithLanguage(cmd.Context(), appI18n.Match(v.GetString("lang")))

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	runs, err := db.ListRuns(ctx, v.GetString("exam-id"))
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, appI18n.T(ctx, "ReportNoRuns"))
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tEXAM\tMODEL\tPROVIDER\tACCURACY\tCORRECT\tFAILED\tRUN")
	for _, r := range runs {
		accuracy := formatAccuracy(r.Accuracy)
		if r.Cancelled {
			accuracy += "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d/%d\t%d\t%s\n",
			r.CreatedAt.Local().Format(time.DateTime), r.ExamID, r.ModelName, r.Provider,
			accuracy, r.CorrectCount, r.TotalQuestions, r.FailedCount, r.ID)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	comparisons, err := db.ListComparisons(ctx, v.GetString("exam-id"))
	if err != nil {
		return fmt.Errorf("list comparisons: %w", err)
	}
	if len(comparisons) == 0 {
		return nil
	}
	fmt.Fprintln(out)
	tw = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tEXAM\tMODELS\tBEST\tACCURACY\tREPORT")
	for _, c := range comparisons {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n",
			c.CreatedAt.Local().Format(time.DateTime), c.ExamID, c.ModelCount, c.BestModel,
			formatAccuracy(c.BestAccuracy), c.ReportFile)
	}
	return tw.Flush()
}
