package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Lifelong-Learning-Assisttant/test-generator/internal/model"
)

const timestampLayout = "20060102_150405"

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Results writes evaluation documents as pretty-printed JSON files under a
// single directory.
type Results struct {
	dir string
	now func() time.Time
}

// NewResults creates dir if needed and returns a Results rooted there.
func NewResults(dir string) (*Results, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create results dir: %w", err)
	}
	return &Results{dir: dir, now: time.Now}, nil
}

// Dir returns the results directory.
func (r *Results) Dir() string { return r.dir }

// SaveResult writes res as model_test_{model}_{exam}_{timestamp}_{suffix}.json
// and returns the file path.
func (r *Results) SaveResult(res *model.ModelTestResult) (string, error) {
	name := fmt.Sprintf("model_test_%s_%s_%s_%s.json",
		safeName(res.ModelName), safeName(res.ExamID), r.now().Format(timestampLayout), shortID())
	return r.write(name, res)
}

// SaveComparison writes rep as model_comparison_{exam}_{timestamp}_{suffix}.json
// and returns the file path.
func (r *Results) SaveComparison(rep *model.ComparisonReport) (string, error) {
	name := fmt.Sprintf("model_comparison_%s_%s_%s.json",
		safeName(rep.ExamID), r.now().Format(timestampLayout), shortID())
	return r.write(name, rep)
}

func (r *Results) write(name string, v any) (string, error) {
	path, err := safeJoin(r.dir, name)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("encode %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(r.dir, ".tmp-*.json")
	if err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return path, nil
}

// LoadResult reads a model result document.
func LoadResult(path string) (*model.ModelTestResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read result: %w", err)
	}
	var res model.ModelTestResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("decode result %s: %w", filepath.Base(path), err)
	}
	return &res, nil
}

// LoadComparison reads a comparison report document.
func LoadComparison(path string) (*model.ComparisonReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read comparison: %w", err)
	}
	var rep model.ComparisonReport
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, fmt.Errorf("decode comparison %s: %w", filepath.Base(path), err)
	}
	return &rep, nil
}

// safeName reduces s to characters that are safe in a file name.
func safeName(s string) string {
	s = unsafeNameChars.ReplaceAllString(s, "_")
	s = strings.ReplaceAll(s, "..", "_")
	s = strings.TrimLeft(s, ".")
	if s == "" {
		return "unnamed"
	}
	return s
}

// safeJoin joins name to dir and rejects results that escape dir.
func safeJoin(dir, name string) (string, error) {
	path := filepath.Join(dir, name)
	rel, err := filepath.Rel(dir, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(name) {
		return "", fmt.Errorf("unsafe file name %q", name)
	}
	return path, nil
}

func shortID() string {
	return uuid.NewString()[:8]
}
