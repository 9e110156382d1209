package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Lifelong-Learning-Assisttant/test-generator/internal/evaluator"
	"github.com/Lifelong-Learning-Assisttant/test-generator/internal/grader"
	"github.com/Lifelong-Learning-Assisttant/test-generator/internal/i18n"
	"github.com/Lifelong-Learning-Assisttant/test-generator/internal/model"
	"github.com/Lifelong-Learning-Assisttant/test-generator/internal/store"
)

const maxBodyBytes = 1 << 20

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	exams     *store.ExamDir
	evaluator *evaluator.Evaluator
	runs      *store.Store
	logger    *slog.Logger
}

// New creates a new Handler. runs may be nil when no run index is kept.
func New(exams *store.ExamDir, ev *evaluator.Evaluator, runs *store.Store, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{exams: exams, evaluator: ev, runs: runs, logger: logger}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/exams", h.handleListExams)
		r.Post("/grade", h.handleGrade)
		r.Post("/evaluate", h.handleEvaluate)
		r.Get("/runs", h.handleListRuns)
		r.Get("/runs/{runID}", h.handleGetRun)
	})
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// respondError writes a localized error message. detail carries the
// underlying error text and may be nil.
func respondError(w http.ResponseWriter, r *http.Request, status int, msgID string, detail error) {
	resp := errorResponse{Error: i18n.T(r.Context(), msgID)}
	if detail != nil {
		resp.Detail = detail.Error()
	}
	respondJSON(w, status, resp)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// loadExam writes the error response itself and reports whether to go on.
func (h *Handler) loadExam(w http.ResponseWriter, r *http.Request, examID string) (model.Exam, bool) {
	exam, err := h.exams.LoadExamByID(examID)
	if errors.Is(err, store.ErrExamNotFound) {
		respondError(w, r, http.StatusNotFound, "ErrUnknownExam", err)
		return model.Exam{}, false
	}
	if err != nil {
		h.logger.Error("load exam", "exam_id", examID, "error", err)
		respondError(w, r, http.StatusInternalServerError, "ErrInternal", nil)
		return model.Exam{}, false
	}
	return exam, true
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleListExams(w http.ResponseWriter, r *http.Request) {
	ids, err := h.exams.ListExamIDs()
	if err != nil {
		h.logger.Error("list exams", "error", err)
		respondError(w, r, http.StatusInternalServerError, "ErrInternal", nil)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	respondJSON(w, http.StatusOK, map[string][]string{"exam_ids": ids})
}

func (h *Handler) handleGrade(w http.ResponseWriter, r *http.Request) {
	partialCredit := true
	if v := r.URL.Query().Get("partial_credit"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			respondError(w, r, http.StatusBadRequest, "ErrBadRequest", err)
			return
		}
		partialCredit = b
	}

	var req model.GradeRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, "ErrBadRequest", err)
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, r, http.StatusBadRequest, "ErrEmptyAnswers", err)
		return
	}

	exam, ok := h.loadExam(w, r, req.ExamID)
	if !ok {
		return
	}

	resp, err := grader.Grade(exam, req, partialCredit)
	switch {
	case errors.Is(err, grader.ErrUnknownQuestion):
		respondError(w, r, http.StatusBadRequest, "ErrUnknownQuestion", err)
		return
	case errors.Is(err, grader.ErrEmptyRequest):
		respondError(w, r, http.StatusBadRequest, "ErrEmptyAnswers", err)
		return
	case err != nil:
		h.logger.Error("grade", "exam_id", req.ExamID, "error", err)
		respondError(w, r, http.StatusInternalServerError, "ErrInternal", nil)
		return
	}

	h.logger.Info("graded answers", "exam_id", req.ExamID,
		"correct", resp.Summary.Correct, "total", resp.Summary.Total, "partial_credit", partialCredit)
	respondJSON(w, http.StatusOK, resp)
}

type evaluateRequest struct {
	ExamID      string         `json:"exam_id"`
	Models      []model.Target `json:"models"`
	Language    string         `json:"language,omitempty"`
	Save        bool           `json:"save,omitempty"`
	Concurrency int            `json:"concurrency,omitempty"`
}

type evaluateResponse struct {
	Results    []*model.ModelTestResult `json:"results"`
	Comparison *model.ComparisonReport  `json:"comparison"`
}

func (h *Handler) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, "ErrBadRequest", err)
		return
	}
	if len(req.Models) == 0 {
		respondError(w, r, http.StatusBadRequest, "ErrNoModels", nil)
		return
	}

	exam, ok := h.loadExam(w, r, req.ExamID)
	if !ok {
		return
	}

	opts := evaluator.Options{Save: req.Save, Concurrency: req.Concurrency}
	if req.Language != "" {
		opts.Language = i18n.Match(req.Language)
	}

	results := h.evaluator.BatchTestModels(r.Context(), exam, req.Models, opts)
	resp := evaluateResponse{Results: results}
	if len(results) > 0 {
		report, err := h.evaluator.Compare(r.Context(), results, req.Save)
		if err != nil && !errors.Is(err, evaluator.ErrPersistence) {
			h.logger.Error("compare models", "exam_id", exam.ExamID, "error", err)
			respondError(w, r, http.StatusInternalServerError, "ErrInternal", nil)
			return
		}
		if err != nil {
			h.logger.Warn("comparison not saved", "exam_id", exam.ExamID, "error", err)
		}
		resp.Comparison = report
	}

	respondJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		respondJSON(w, http.StatusOK, []store.RunRecord{})
		return
	}
	runs, err := h.runs.ListRuns(r.Context(), r.URL.Query().Get("exam_id"))
	if err != nil {
		h.logger.Error("list runs", "error", err)
		respondError(w, r, http.StatusInternalServerError, "ErrInternal", nil)
		return
	}
	if runs == nil {
		runs = []store.RunRecord{}
	}
	respondJSON(w, http.StatusOK, runs)
}

func (h *Handler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		respondError(w, r, http.StatusNotFound, "ErrUnknownRun", nil)
		return
	}
	run, err := h.runs.GetRun(r.Context(), chi.URLParam(r, "runID"))
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, r, http.StatusNotFound, "ErrUnknownRun", err)
		return
	}
	if err != nil {
		h.logger.Error("get run", "error", err)
		respondError(w, r, http.StatusInternalServerError, "ErrInternal", nil)
		return
	}
	respondJSON(w, http.StatusOK, run)
}
