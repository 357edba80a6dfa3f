package classification

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Veraticus/compliance-intelligence/internal/model"
)

// payload is the JSON document the reasoning service returns and the
// solution cache stores for a classification identity.
type payload struct {
	Confidence       model.Confidence `json:"confidence"`
	Severity         model.Severity   `json:"severity"`
	Reasoning        string           `json:"reasoning"`
	UserImpactText   string           `json:"user_impact_text"`
	PrimaryAction    model.Action     `json:"primary_action"`
	SecondaryActions []model.Action   `json:"secondary_actions"`
	ImpactScore      float64          `json:"impact_score"`
	ActionRequired   bool             `json:"action_required"`
}

// decodePayload parses and validates a classification payload.
func decodePayload(raw string) (*payload, error) {
	var p payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("failed to parse classification payload: %w", err)
	}
	if err := p.normalize(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *payload) normalize() error {
	p.Confidence = model.Confidence(strings.ToLower(string(p.Confidence)))
	p.Severity = model.Severity(strings.ToLower(string(p.Severity)))

	if !p.Confidence.Valid() {
		return fmt.Errorf("invalid confidence %q", p.Confidence)
	}
	if !p.Severity.Valid() {
		return fmt.Errorf("invalid severity %q", p.Severity)
	}
	if p.ImpactScore < 0 || p.ImpactScore > model.MaxImpactScore {
		return fmt.Errorf("impact score %.2f outside [0, %.0f]", p.ImpactScore, model.MaxImpactScore)
	}
	if err := normalizeAction(&p.PrimaryAction); err != nil {
		return fmt.Errorf("primary action: %w", err)
	}
	for i := range p.SecondaryActions {
		if err := normalizeAction(&p.SecondaryActions[i]); err != nil {
			return fmt.Errorf("secondary action %d: %w", i, err)
		}
	}
	return nil
}

func normalizeAction(a *model.Action) error {
	a.Type = strings.TrimSpace(a.Type)
	if a.Type == "" {
		return fmt.Errorf("missing type")
	}
	a.Priority = model.Priority(strings.ToLower(string(a.Priority)))
	if a.Priority == "" {
		a.Priority = model.PriorityMedium
	}
	if !a.Priority.Valid() {
		return fmt.Errorf("invalid priority %q", a.Priority)
	}
	return nil
}

func (p *payload) encode() (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to encode classification payload: %w", err)
	}
	return string(raw), nil
}

func (p *payload) classification() model.Classification {
	secondary := make([]model.Action, len(p.SecondaryActions))
	copy(secondary, p.SecondaryActions)
	return model.Classification{
		ActionRequired:   p.ActionRequired,
		Confidence:       p.Confidence,
		Severity:         p.Severity,
		ImpactScore:      p.ImpactScore,
		PrimaryAction:    p.PrimaryAction,
		SecondaryActions: secondary,
		Reasoning:        p.Reasoning,
		UserImpactText:   p.UserImpactText,
	}
}
