package classification

import "github.com/Veraticus/compliance-intelligence/internal/model"

// fallbackActionType is projected for change types without a default.
const fallbackActionType = "review"

// defaultActionTypes maps change types to the action type the reasoning
// service usually recommends for them. It is only used to select learned
// thresholds before a payload exists.
var defaultActionTypes = map[string]string{
	"impressum":         "update_document",
	"privacy_policy":    "update_document",
	"terms_of_service":  "update_document",
	"withdrawal_policy": "update_document",
	"cookie_consent":    "update_configuration",
	"newsletter":        "update_configuration",
	"tracking":          "update_configuration",
	"data_processing":   "sign_agreement",
	"accessibility":     "technical_change",
	"payment_terms":     "review",
}

// projectedActionType returns the action type a change is expected to produce.
func projectedActionType(change model.Change) string {
	if change.ActionTypeHint != "" {
		return change.ActionTypeHint
	}
	if t, ok := defaultActionTypes[change.Type]; ok {
		return t
	}
	return fallbackActionType
}

// projectedSeverity returns the severity a change is expected to receive.
func projectedSeverity(change model.Change) model.Severity {
	if change.SeverityHint.Valid() {
		return change.SeverityHint
	}
	return model.SeverityMedium
}
