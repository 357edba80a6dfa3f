package reasoning

import (
	"fmt"
	"sort"
	"strings"
)

const solutionSystemPrompt = "You are a compliance assistant for small website operators. " +
	"Explain concisely how to fix the described problem. Respond with plain text only."

const classificationSystemPrompt = "You are a legal change classifier for small website operators. " +
	"Respond only with a single JSON object in the exact format requested."

func systemPrompt(kind Kind) string {
	if kind == KindClassification {
		return classificationSystemPrompt
	}
	return solutionSystemPrompt
}

// buildPrompt renders the user prompt for a generation.
func buildPrompt(kind Kind, input Input) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Category: %s\n", input.Category)
	fmt.Fprintf(&sb, "Title: %s\n", input.Title)
	fmt.Fprintf(&sb, "Description: %s\n", input.Description)

	if len(input.Params) > 0 {
		keys := make([]string, 0, len(input.Params))
		for k := range input.Params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteString("\nConstraints:\n")
		for _, k := range keys {
			fmt.Fprintf(&sb, "- %s: %s\n", k, input.Params[k])
		}
	}

	if kind == KindClassification {
		sb.WriteString(`
Return JSON with these fields:
{
  "action_required": bool,
  "confidence": "high" | "medium" | "low",
  "severity": "critical" | "high" | "medium" | "low" | "info",
  "impact_score": number between 0 and 10,
  "primary_action": {"type": string, "priority": "urgent" | "high" | "medium" | "low",
    "title": string, "description": string, "button_label": string,
    "estimated_effort": string, "requires_paid_tier": bool},
  "secondary_actions": [same shape as primary_action],
  "reasoning": string,
  "user_impact_text": string
}`)
	}

	return sb.String()
}

// CleanJSON strips a markdown code fence around a JSON answer and any text
// outside the outermost object.
func CleanJSON(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
		content = strings.TrimSpace(content)
	}
	start := strings.IndexByte(content, '{')
	end := strings.LastIndexByte(content, '}')
	if start >= 0 && end > start {
		return content[start : end+1]
	}
	return content
}
