// Package model defines the core domain models used throughout the engine.
package model

import "time"

// DefaultSuccessPrior is the success rate assigned to a freshly generated solution.
const DefaultSuccessPrior = 0.8

// CachedSolution is a generated answer stored under the fingerprint of the
// normalized issue it was generated for.
type CachedSolution struct {
	CreatedAt    time.Time `json:"created_at"`
	LastUsedAt   time.Time `json:"last_used_at"`
	Fingerprint  string    `json:"fingerprint"`
	Category     string    `json:"category"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	SolutionText string    `json:"solution_text"`
	ModelVersion string    `json:"model_version"`
	SearchTokens []string  `json:"search_tokens,omitempty"`
	UsageCount   int       `json:"usage_count"`
	SuccessRate  float64   `json:"success_rate"`
}
