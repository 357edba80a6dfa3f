package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Veraticus/compliance-intelligence/internal/cache"
	"github.com/Veraticus/compliance-intelligence/internal/common"
	"github.com/Veraticus/compliance-intelligence/internal/feedback"
	"github.com/Veraticus/compliance-intelligence/internal/model"
)

// SolutionRequest is the request for POST /cache/solution.
type SolutionRequest struct {
	Category    string `json:"category"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// SolutionResponse is the response for POST /cache/solution.
type SolutionResponse struct {
	Solution    string  `json:"solution"`
	Fingerprint string  `json:"fingerprint"`
	Source      string  `json:"source"`
	UsageCount  int     `json:"usage_count"`
	Score       float64 `json:"score"`
	Cached      bool    `json:"cached"`
}

// ClassifyRequest is the request for POST /classify.
type ClassifyRequest struct {
	SubjectID string       `json:"subject_id"`
	Scope     string       `json:"scope,omitempty"`
	Change    model.Change `json:"change"`
}

// FeedbackRequest is the request for POST /feedback. TimeToAction is in
// milliseconds.
type FeedbackRequest struct {
	TimeToAction     *int64            `json:"time_to_action,omitempty"`
	Context          map[string]string `json:"context,omitempty"`
	ClassificationID string            `json:"classification_id"`
	Scope            string            `json:"scope,omitempty"`
	Kind             string            `json:"kind"`
}

// FeedbackResponse is the response for POST /feedback.
type FeedbackResponse struct {
	ID     string `json:"id,omitempty"`
	Status string `json:"status"`
}

// Feedback statuses.
const (
	FeedbackAccepted = "accepted"
	FeedbackDropped  = "dropped"
)

// ReindexResponse is the response for POST /admin/cache/reindex.
type ReindexResponse struct {
	Indexed int `json:"indexed"`
}

// HealthResponse is the response for GET /healthz.
type HealthResponse struct {
	Status        string `json:"status"`
	SchemaVersion int    `json:"schema_version,omitempty"`
}

// HandleSolution answers an issue through the solution cache.
func (h *Handler) HandleSolution(w http.ResponseWriter, r *http.Request) {
	var req SolutionRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.cache.Solve(r.Context(), h.reasoning, req.Category, req.Title, req.Description)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, SolutionResponse{
		Solution:    res.Solution.SolutionText,
		Fingerprint: res.Solution.Fingerprint,
		Source:      string(res.Source),
		UsageCount:  res.Solution.UsageCount,
		Score:       res.Score,
		Cached:      res.Source != cache.SourceGenerated,
	})
}

// HandleCacheStats reports how solution requests were served.
func (h *Handler) HandleCacheStats(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, h.cache.Stats())
}

// HandleReindex rebuilds the fuzzy index from storage.
func (h *Handler) HandleReindex(w http.ResponseWriter, r *http.Request) {
	n, err := h.cache.Rebuild(r.Context(), nil)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ReindexResponse{Indexed: n})
}

// HandleClassify classifies a change. When the reasoning service is
// unavailable a previous classification is served with StaleHeader set.
func (h *Handler) HandleClassify(w http.ResponseWriter, r *http.Request) {
	var req ClassifyRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	ctx := r.Context()
	c, err := h.classifier.Classify(ctx, req.SubjectID, req.Scope, req.Change)
	if errors.Is(err, common.ErrClassificationUnavailable) {
		prior, ferr := h.classifier.Fallback(ctx, req.SubjectID, req.Scope, err)
		if ferr != nil {
			h.writeError(w, r, ferr)
			return
		}
		h.logger.Warn("serving stale classification",
			"subject_id", req.SubjectID,
			"scope", req.Scope,
			"classification_id", prior.ID,
			"error", err)
		w.Header().Set(StaleHeader, "true")
		h.writeJSON(w, http.StatusOK, prior)
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, c)
}

// HandleGetClassification returns the stored classification of a subject.
func (h *Handler) HandleGetClassification(w http.ResponseWriter, r *http.Request) {
	subjectID := r.PathValue("subject_id")
	c, err := h.classifier.Get(r.Context(), subjectID, r.URL.Query().Get("scope"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, c)
}

// HandleListClassifications lists the classifications of a scope ordered
// for display.
func (h *Handler) HandleListClassifications(w http.ResponseWriter, r *http.Request) {
	list, err := h.classifier.List(r.Context(), r.URL.Query().Get("scope"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []model.Classification{}
	}
	h.writeJSON(w, http.StatusOK, list)
}

// HandleFeedback records a reaction to a classification.
func (h *Handler) HandleFeedback(w http.ResponseWriter, r *http.Request) {
	var req FeedbackRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	in := feedback.Input{
		ClassificationID: strings.TrimSpace(req.ClassificationID),
		Scope:            req.Scope,
		Kind:             model.FeedbackKind(req.Kind),
		Context:          req.Context,
	}
	if req.TimeToAction != nil {
		d := time.Duration(*req.TimeToAction) * time.Millisecond
		in.TimeToAction = &d
	}

	ev, err := h.feedback.Record(r.Context(), in)
	switch {
	case errors.Is(err, common.ErrFeedbackOrphaned):
		h.writeJSON(w, http.StatusAccepted, FeedbackResponse{Status: FeedbackDropped})
	case err != nil:
		h.writeError(w, r, err)
	default:
		h.writeJSON(w, http.StatusAccepted, FeedbackResponse{ID: ev.ID, Status: FeedbackAccepted})
	}
}

// HandleLearningRun runs a learning cycle synchronously.
func (h *Handler) HandleLearningRun(w http.ResponseWriter, r *http.Request) {
	result, err := h.learner.Run(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// HandleLearningLatest returns the most recent learning cycle result.
func (h *Handler) HandleLearningLatest(w http.ResponseWriter, r *http.Request) {
	result, err := h.learner.Latest(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// HandleHealth reports liveness and the schema version.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok"}
	if h.schema != nil {
		version, err := h.schema.SchemaVersion(r.Context())
		if err != nil {
			h.logger.Error("health check failed", "error", err)
			h.writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable"})
			return
		}
		resp.SchemaVersion = version
	}
	h.writeJSON(w, http.StatusOK, resp)
}
