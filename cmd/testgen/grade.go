package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Lifelong-Learning-Assisttant/test-generator/internal/grader"
	appI18n "github.com/Lifelong-Learning-Assisttant/test-generator/internal/i18n"
	"github.com/Lifelong-Learning-Assisttant/test-generator/internal/model"
	"github.com/Lifelong-Learning-Assisttant/test-generator/internal/store"
)

func gradeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grade",
		Short: "Grade a set of answers against an exam",
		RunE:  runGrade,
	}
	f := cmd.Flags()
	addExamFlags(cmd)
	f.String("answers", "", "GradeRequest JSON file (required)")
	f.Bool("no-partial-credit", false, "Score partially correct multiple-choice answers as 0")
	f.Bool("json", false, "Print the full grade response as JSON")
	addCommonFlags(cmd)

	_ = cmd.MarkFlagRequired("answers")
	return cmd
}

func addExamFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("exam", "", "Exam document path (.json, .yaml, .yml)")
	f.String("exam-id", "", "Exam id to look up in <data-dir>/out")
	cmd.MarkFlagsMutuallyExclusive("exam", "exam-id")
	cmd.MarkFlagsOneRequired("exam", "exam-id")
}

func loadExam(v *viper.Viper) (model.Exam, error) {
	if path := v.GetString("exam"); path != "" {
		return store.LoadExam(path)
	}
	return store.NewExamDir(examsDir(v)).LoadExamByID(v.GetString("exam-id"))
}

func runGrade(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := appI18n.WithLanguage(cmd.Context(), appI18n.Match(v.GetString("lang")))

	exam, err := loadExam(v)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(v.GetString("answers"))
	if err != nil {
		return fmt.Errorf("read answers: %w", err)
	}
	var req model.GradeRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("parse answers: %w", err)
	}
	if req.ExamID == "" {
		req.ExamID = exam.ExamID
	} else if req.ExamID != exam.ExamID {
		slog.Warn("answers were written for a different exam", "answers_exam_id", req.ExamID, "exam_id", exam.ExamID)
	}
	if err := req.Validate(); err != nil {
		return err
	}

	resp, err := grader.Grade(exam, req, !v.GetBool("no-partial-credit"))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if v.GetBool("json") {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	fmt.Fprintln(out, appI18n.Td(ctx, "ReportScore", map[string]any{
		"Score":   resp.Summary.ScorePercent,
		"Correct": resp.Summary.Correct,
		"Total":   resp.Summary.Total,
	}))
	fmt.Fprintln(out, appI18n.Tp(ctx, "QuestionsGraded", resp.Summary.Total))
	return nil
}
