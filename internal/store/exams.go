package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Lifelong-Learning-Assisttant/test-generator/internal/model"
)

// ErrExamNotFound is returned when no exam document exists for an id.
var ErrExamNotFound = errors.New("exam not found")

var examExtensions = []string{".json", ".yaml", ".yml"}

// LoadExam reads and validates an exam document. JSON and YAML are accepted,
// chosen by file extension.
func LoadExam(path string) (model.Exam, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Exam{}, fmt.Errorf("read exam: %w", err)
	}
	return DecodeExam(data, filepath.Ext(path))
}

// DecodeExam decodes an exam from data in the format named by ext.
func DecodeExam(data []byte, ext string) (model.Exam, error) {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		var err error
		if data, err = yamlToJSON(data); err != nil {
			return model.Exam{}, fmt.Errorf("decode exam yaml: %w", err)
		}
	case ".json", "":
	default:
		return model.Exam{}, fmt.Errorf("unsupported exam format %q", ext)
	}

	var exam model.Exam
	if err := json.Unmarshal(data, &exam); err != nil {
		return model.Exam{}, fmt.Errorf("decode exam: %w", err)
	}
	return exam, nil
}

// yamlToJSON converts a YAML document so it can go through the validating
// JSON decoders of the model package.
func yamlToJSON(data []byte) ([]byte, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

// LoadTargets reads a model list, either a bare list of {model_name, provider}
// or a document with a "models" key.
func LoadTargets(path string) ([]model.Target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read models: %w", err)
	}

	var targets []model.Target
	if err := yaml.Unmarshal(data, &targets); err != nil {
		var doc struct {
			Models []model.Target `yaml:"models"`
		}
		if err2 := yaml.Unmarshal(data, &doc); err2 != nil {
			return nil, fmt.Errorf("decode models %s: %w", filepath.Base(path), err)
		}
		targets = doc.Models
	}

	for i, t := range targets {
		if t.ModelName == "" || t.Provider == "" {
			return nil, fmt.Errorf("models[%d]: model_name and provider are required", i)
		}
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("no models in %s", filepath.Base(path))
	}
	return targets, nil
}

// ExamDir looks up exams saved as exam_{id}.{json,yaml,yml} in a directory.
type ExamDir struct {
	dir string
}

func NewExamDir(dir string) *ExamDir {
	return &ExamDir{dir: dir}
}

// LoadExamByID finds and loads the exam with the given id.
func (d *ExamDir) LoadExamByID(examID string) (model.Exam, error) {
	if examID == "" || safeName(examID) != examID {
		return model.Exam{}, fmt.Errorf("exam %q: %w", examID, ErrExamNotFound)
	}
	for _, ext := range examExtensions {
		path, err := safeJoin(d.dir, "exam_"+examID+ext)
		if err != nil {
			return model.Exam{}, err
		}
		exam, err := LoadExam(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return model.Exam{}, err
		}
		return exam, nil
	}
	return model.Exam{}, fmt.Errorf("exam %q: %w", examID, ErrExamNotFound)
}

// ListExamIDs returns the ids of the exams in the directory, sorted.
func (d *ExamDir) ListExamIDs() ([]string, error) {
	entries, err := os.ReadDir(d.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list exams: %w", err)
	}

	var ids []string
	for _, e := range entries {
		name := e.Name()
		ext := filepath.Ext(name)
		if e.IsDir() || !strings.HasPrefix(name, "exam_") || !slices.Contains(examExtensions, ext) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(strings.TrimPrefix(name, "exam_"), ext))
	}
	slices.Sort(ids)
	return slices.Compact(ids), nil
}
