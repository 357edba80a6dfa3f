package model

import "time"

// FeedbackKind is the type of user reaction to a classification.
type FeedbackKind string

// Feedback kinds.
const (
	FeedbackImplicitView       FeedbackKind = "implicit_view"
	FeedbackImplicitClick      FeedbackKind = "implicit_click"
	FeedbackActionCompleted    FeedbackKind = "action_completed"
	FeedbackExplicitHelpful    FeedbackKind = "explicit_helpful"
	FeedbackExplicitNotHelpful FeedbackKind = "explicit_not_helpful"
	FeedbackExplicitWrong      FeedbackKind = "explicit_wrong"
)

// Valid reports whether k is a known feedback kind.
func (k FeedbackKind) Valid() bool {
	switch k {
	case FeedbackImplicitView, FeedbackImplicitClick, FeedbackActionCompleted,
		FeedbackExplicitHelpful, FeedbackExplicitNotHelpful, FeedbackExplicitWrong:
		return true
	}
	return false
}

// Outcome maps the kind onto a success signal. ok is false for purely
// informational kinds, which never affect success rates.
func (k FeedbackKind) Outcome() (success bool, ok bool) {
	switch k {
	case FeedbackActionCompleted, FeedbackExplicitHelpful:
		return true, true
	case FeedbackExplicitNotHelpful, FeedbackExplicitWrong:
		return false, true
	default:
		return false, false
	}
}

// FeedbackEvent is one recorded user reaction. Events are never mutated.
type FeedbackEvent struct {
	CreatedAt        time.Time         `json:"created_at"`
	TimeToAction     *time.Duration    `json:"time_to_action,omitempty"`
	Context          map[string]string `json:"context,omitempty"`
	ID               string            `json:"id"`
	ClassificationID string            `json:"classification_id"`
	Scope            string            `json:"scope"`
	Kind             FeedbackKind      `json:"kind"`
}

// FeedbackSample is a feedback event joined with the classification it refers to.
type FeedbackSample struct {
	CreatedAt  time.Time
	ActionType string
	Severity   Severity
	Confidence Confidence
	Kind       FeedbackKind
}
