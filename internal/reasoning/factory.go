package reasoning

import (
	"fmt"
	"strings"
)

// NewClient creates a rate-limited reasoning client for the configured provider.
func NewClient(cfg Config) (Client, error) {
	switch strings.ToLower(cfg.Provider) {
	case "anthropic", "":
		client, err := NewAnthropicClient(cfg)
		if err != nil {
			return nil, err
		}
		return NewLimitedClient(client, cfg.RateLimit, cfg.MaxConcurrent), nil
	default:
		return nil, fmt.Errorf("unsupported reasoning provider: %s", cfg.Provider)
	}
}
