package cache

import (
	"context"

	"github.com/Veraticus/compliance-intelligence/internal/reasoning"
)

// ReasoningGenerator adapts a reasoning client into a Generator for one issue.
func ReasoningGenerator(client reasoning.Client, kind reasoning.Kind, input reasoning.Input) Generator {
	return func(ctx context.Context) (Generated, error) {
		res, err := client.Generate(ctx, kind, input)
		if err != nil {
			return Generated{}, err
		}
		return Generated{Text: res.Payload, ModelVersion: res.ModelVersion}, nil
	}
}

// Solve answers a free-form issue through the cache, generating a solution
// with client on a full miss.
func (c *SolutionCache) Solve(ctx context.Context, client reasoning.Client, category, title, description string) (*Result, error) {
	gen := ReasoningGenerator(client, reasoning.KindSolution, reasoning.Input{
		Category:    category,
		Title:       title,
		Description: description,
	})
	return c.GetOrGenerate(ctx, category, title, description, gen)
}
