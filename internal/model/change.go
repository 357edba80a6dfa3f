package model

import "time"

// Change is a legal or compliance change submitted for classification.
type Change struct {
	EffectiveDate  *time.Time `json:"effective_date,omitempty"`
	Type           string     `json:"type"`
	Summary        string     `json:"summary"`
	Description    string     `json:"description"`
	Jurisdiction   string     `json:"jurisdiction,omitempty"`
	SeverityHint   Severity   `json:"severity_hint,omitempty"`
	ActionTypeHint string     `json:"action_type_hint,omitempty"`
}
