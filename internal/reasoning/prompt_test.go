package reasoning

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "bare object", input: `{"a":1}`, want: `{"a":1}`},
		{name: "json fence", input: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "plain fence", input: "```\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "leading prose", input: "Here you go: {\"a\":{\"b\":2}} thanks", want: `{"a":{"b":2}}`},
		{name: "no object", input: "nothing here", want: "nothing here"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanJSON(tt.input))
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt := buildPrompt(KindClassification, Input{
		Category:    "classification:cookie_consent",
		Title:       "Cookie consent update",
		Description: "Reject must be as easy as accept",
		Params:      map[string]string{"priority_shift": "1", "confidence_bar": "medium"},
	})

	assert.Contains(t, prompt, "Title: Cookie consent update")
	assert.Contains(t, prompt, "\"primary_action\"")
	assert.Less(t, strings.Index(prompt, "confidence_bar"), strings.Index(prompt, "priority_shift"), "params are sorted")

	solution := buildPrompt(KindSolution, Input{Category: "c", Title: "t", Description: "d"})
	assert.NotContains(t, solution, "Constraints")
	assert.NotContains(t, solution, "primary_action")
}

func TestErrorClasses(t *testing.T) {
	base := errors.New("upstream")

	transient := fmt.Errorf("wrapped: %w", Transient(base))
	assert.ErrorIs(t, transient, ErrTransient)
	assert.NotErrorIs(t, transient, ErrPermanent)
	assert.ErrorIs(t, transient, base)

	permanent := Permanent(base)
	assert.ErrorIs(t, permanent, ErrPermanent)
	assert.NotErrorIs(t, permanent, ErrTransient)
	assert.Contains(t, permanent.Error(), "permanent")
}
