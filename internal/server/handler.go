// Package server exposes the engine over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Veraticus/compliance-intelligence/internal/cache"
	"github.com/Veraticus/compliance-intelligence/internal/common"
	"github.com/Veraticus/compliance-intelligence/internal/feedback"
	"github.com/Veraticus/compliance-intelligence/internal/model"
	"github.com/Veraticus/compliance-intelligence/internal/reasoning"
)

// StaleHeader marks a response served from a previous classification.
const StaleHeader = "X-Classification-Stale"

const maxBodyBytes = 1 << 20

// Classifier is the classification engine as seen by the handlers.
type Classifier interface {
	Classify(ctx context.Context, subjectID, scope string, change model.Change) (*model.Classification, error)
	Fallback(ctx context.Context, subjectID, scope string, cause error) (*model.Classification, error)
	Get(ctx context.Context, subjectID, scope string) (*model.Classification, error)
	List(ctx context.Context, scope string) ([]model.Classification, error)
}

// FeedbackRecorder accepts feedback submissions.
type FeedbackRecorder interface {
	Record(ctx context.Context, in feedback.Input) (*model.FeedbackEvent, error)
}

// Learner runs and reports learning cycles.
type Learner interface {
	Run(ctx context.Context) (*model.LearningCycleResult, error)
	Latest(ctx context.Context) (*model.LearningCycleResult, error)
}

// SchemaReporter reports the database schema version for health checks.
type SchemaReporter interface {
	SchemaVersion(ctx context.Context) (int, error)
}

// HandlerDependencies contains the components served by the handler.
type HandlerDependencies struct {
	Cache      *cache.SolutionCache
	Reasoning  reasoning.Client
	Classifier Classifier
	Feedback   FeedbackRecorder
	Learner    Learner
	Schema     SchemaReporter
	Logger     *slog.Logger
}

// Handler provides the HTTP endpoints.
type Handler struct {
	cache      *cache.SolutionCache
	reasoning  reasoning.Client
	classifier Classifier
	feedback   FeedbackRecorder
	learner    Learner
	schema     SchemaReporter
	logger     *slog.Logger
}

// NewHandler creates a handler. Every dependency except Schema is required.
func NewHandler(deps HandlerDependencies) (*Handler, error) {
	if deps.Cache == nil || deps.Reasoning == nil || deps.Classifier == nil ||
		deps.Feedback == nil || deps.Learner == nil {
		return nil, fmt.Errorf("%w: cache, reasoning, classifier, feedback and learner are required", common.ErrInvalidInput)
	}
	return &Handler{
		cache:      deps.Cache,
		reasoning:  deps.Reasoning,
		classifier: deps.Classifier,
		feedback:   deps.Feedback,
		learner:    deps.Learner,
		schema:     deps.Schema,
		logger:     common.LoggerOrDefault(deps.Logger),
	}, nil
}

// RegisterRoutes registers all endpoints on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /cache/solution", h.HandleSolution)
	mux.HandleFunc("GET /cache/stats", h.HandleCacheStats)
	mux.HandleFunc("POST /admin/cache/reindex", h.HandleReindex)
	mux.HandleFunc("POST /classify", h.HandleClassify)
	mux.HandleFunc("GET /classify/{subject_id}", h.HandleGetClassification)
	mux.HandleFunc("GET /classifications", h.HandleListClassifications)
	mux.HandleFunc("POST /feedback", h.HandleFeedback)
	mux.HandleFunc("POST /admin/learning/run", h.HandleLearningRun)
	mux.HandleFunc("GET /admin/learning/latest", h.HandleLearningLatest)
	mux.HandleFunc("GET /healthz", h.HandleHealth)
}

// Routes returns the endpoints wrapped in the standard middleware.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return Recover(h.logger, Logging(h.logger, mux))
}

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Retryable bool   `json:"retryable"`
}

// Error codes.
const (
	CodeGenerationTimeout         = "generation_timeout"
	CodeClassificationUnavailable = "classification_unavailable"
	CodeReasoningUnavailable      = "reasoning_unavailable"
	CodeInvalidInput              = "invalid_input"
	CodeNotFound                  = "not_found"
	CodeLearningCycleBusy         = "learning_cycle_busy"
	CodeInternal                  = "internal"
)

// statusFor maps an engine error onto an HTTP status and error code.
func statusFor(err error) (int, string) {
	var reasoningErr *reasoning.Error
	switch {
	case errors.Is(err, common.ErrGenerationTimeout):
		return http.StatusGatewayTimeout, CodeGenerationTimeout
	case errors.Is(err, common.ErrClassificationUnavailable):
		return http.StatusServiceUnavailable, CodeClassificationUnavailable
	case errors.As(err, &reasoningErr):
		return http.StatusServiceUnavailable, CodeReasoningUnavailable
	case errors.Is(err, common.ErrInvalidInput), errors.Is(err, common.ErrInvalidFingerprintInput):
		return http.StatusBadRequest, CodeInvalidInput
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, common.ErrLearningCycleBusy):
		return http.StatusConflict, CodeLearningCycleBusy
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

// writeError writes err as an ErrorResponse.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		message = "internal error"
	}
	h.writeJSON(w, status, ErrorResponse{
		Error:     message,
		Code:      code,
		Retryable: common.IsRetryable(err),
	})
}

// writeJSON writes a JSON response.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

// decode reads a JSON request body into dst.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed request body: %w", common.ErrInvalidInput, err)
	}
	return nil
}
