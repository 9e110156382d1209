package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/Lifelong-Learning-Assisttant/test-generator/internal/model"
)

func TestParseTarget(t *testing.T) {
	tests := []struct {
		in      string
		want    model.Target
		wantErr bool
	}{
		{in: "gpt-4o:openai", want: model.Target{ModelName: "gpt-4o", Provider: "openai"}},
		{in: "llama3:8b:openai", want: model.Target{ModelName: "llama3:8b", Provider: "openai"}},
		{in: "gpt-4o", wantErr: true},
		{in: ":openai", wantErr: true},
		{in: "gpt-4o:", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseTarget(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestLLMConfig(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	addCommonFlags(cmd)
	addProviderFlags(cmd)
	if err := cmd.ParseFlags([]string{"--yandex-folder-id", "b1g", "--prompt-variant", "bogus", "--retry-attempts", "5"}); err != nil {
		t.Fatal(err)
	}

	cfg := llmConfig(viperForCmd(cmd))
	if cfg.Yandex.FolderID != "b1g" {
		t.Errorf("expected folder id b1g, got %q", cfg.Yandex.FolderID)
	}
	if cfg.Variant != "standard" {
		t.Errorf("unknown variant should fall back to standard, got %q", cfg.Variant)
	}
	if cfg.Retry.MaxAttempts != 5 {
		t.Errorf("expected 5 attempts, got %d", cfg.Retry.MaxAttempts)
	}
	if cfg.OpenAI.Model == "" {
		t.Error("expected a default OpenAI model")
	}
}

func TestRootCommands(t *testing.T) {
	root := rootCmd()
	for _, name := range []string{"serve", "grade", "evaluate", "compare", "history", "generate"} {
		if _, _, err := root.Find([]string{name}); err != nil {
			t.Errorf("missing command %s: %v", name, err)
		}
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := rootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

const cliExam = `{
  "exam_id": "cli",
  "questions": [
    {"id": "q1", "type": "single_choice", "stem": "2+2?", "options": ["3", "4"], "correct": [1]},
    {"id": "q2", "type": "multiple_choice", "stem": "Evens?", "options": ["1", "2", "3", "4"], "correct": [1, 3]}
  ]
}`

func TestGradeCommand(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "out", "exam_cli.json"), cliExam)
	answers := filepath.Join(dir, "answers.json")
	writeFile(t, answers, `{"answers": [{"question_id": "q1", "choice": [1]}, {"question_id": "q2", "choice": [1]}]}`)

	out, err := execute(t, "grade", "--data-dir", dir, "--exam-id", "cli", "--answers", answers)
	if err != nil {
		t.Fatalf("grade: %v\n%s", err, out)
	}
	if !strings.Contains(out, "(1/2 correct)") {
		t.Errorf("unexpected report:\n%s", out)
	}

	out, err = execute(t, "grade", "--data-dir", dir, "--exam-id", "cli", "--answers", answers, "--json", "--no-partial-credit")
	if err != nil {
		t.Fatalf("grade --json: %v", err)
	}
	var resp model.GradeResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode %s: %v", out, err)
	}
	if resp.ExamID != "cli" || resp.PerQuestion[1].PartialCredit != 0 {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestGradeCommandErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "out", "exam_cli.json"), cliExam)
	empty := filepath.Join(dir, "empty.json")
	writeFile(t, empty, `{"answers": []}`)

	if _, err := execute(t, "grade", "--data-dir", dir, "--exam-id", "cli", "--answers", empty); err == nil {
		t.Error("expected error for empty answers")
	}
	if _, err := execute(t, "grade", "--data-dir", dir, "--exam-id", "nope", "--answers", empty); err == nil {
		t.Error("expected error for unknown exam")
	}
	if _, err := execute(t, "grade", "--data-dir", dir, "--answers", empty); err == nil {
		t.Error("expected error without --exam or --exam-id")
	}
}

func TestCompareCommand(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for _, r := range []struct {
		name     string
		accuracy float64
	}{{"weak", 0.5}, {"strong", 1}} {
		res := model.ModelTestResult{
			ModelName:      r.name,
			Provider:       "openai",
			ExamID:         "cli",
			TotalQuestions: 2,
			CorrectCount:   int(r.accuracy * 2),
			Accuracy:       r.accuracy,
			Metadata:       model.ResultMetadata{RunID: r.name, Language: "en", ExamConfig: model.DefaultExamConfig()},
			Timestamp:      time.Now(),
		}
		data, err := json.Marshal(res)
		if err != nil {
			t.Fatal(err)
		}
		path := filepath.Join(dir, r.name+".json")
		writeFile(t, path, string(data))
		paths = append(paths, path)
	}

	out, err := execute(t, append([]string{"compare", "--data-dir", dir, "--save", "--db", ""}, paths...)...)
	if err != nil {
		t.Fatalf("compare: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Best model: strong (100.0%)") {
		t.Errorf("unexpected report:\n%s", out)
	}
	saved, _ := filepath.Glob(filepath.Join(dir, "results", "model_comparison_*.json"))
	if len(saved) != 1 {
		t.Errorf("expected one saved comparison, got %v", saved)
	}
}

func TestHistoryEmpty(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")
	out, err := execute(t, "history", "--db", db)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out, "No runs recorded.") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestReadContent(t *testing.T) {
	got, err := readContent(strings.NewReader("# Topic\nText"), "-")
	if err != nil || !strings.HasPrefix(got, "# Topic") {
		t.Errorf("stdin content: %q, %v", got, err)
	}
	if _, err := readContent(strings.NewReader("  \n"), "-"); err == nil {
		t.Error("expected error for blank content")
	}
}

func TestOpenArchiveCloseFunc(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "data")
	writeFile(t, blocker, "not a directory")

	cmd := compareCmd()
	if err := cmd.ParseFlags([]string{"--data-dir", blocker, "--db", ""}); err != nil {
		t.Fatal(err)
	}
	archive, closeFn, err := openArchive(viperForCmd(cmd))
	if err == nil {
		t.Fatal("expected error for a results dir under a file")
	}
	if archive != nil {
		t.Errorf("expected no archive, got %+v", archive)
	}
	if closeFn == nil {
		t.Fatal("close function must not be nil")
	}
	closeFn()

	cmd = compareCmd()
	if err := cmd.ParseFlags([]string{"--data-dir", dir, "--db", filepath.Join(dir, "runs.db")}); err != nil {
		t.Fatal(err)
	}
	archive, closeFn, err = openArchive(viperForCmd(cmd))
	if err != nil {
		t.Fatalf("openArchive: %v", err)
	}
	if archive == nil || closeFn == nil {
		t.Fatal("expected an archive and a close function")
	}
	closeFn()
}
