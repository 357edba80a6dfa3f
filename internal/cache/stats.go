package cache

import "sync/atomic"

// Stats reports how requests were served.
type Stats struct {
	Exact       int64   `json:"exact"`
	Fuzzy       int64   `json:"fuzzy"`
	Generated   int64   `json:"generated"`
	Shared      int64   `json:"shared"`
	Timeouts    int64   `json:"timeouts"`
	Failures    int64   `json:"failures"`
	Requests    int64   `json:"requests"`
	CallsSaved  int64   `json:"calls_saved"`
	SavingsRate float64 `json:"savings_rate"`
}

type counters struct {
	exact     atomic.Int64
	fuzzy     atomic.Int64
	generated atomic.Int64
	served    atomic.Int64
	timeouts  atomic.Int64
	failures  atomic.Int64
}

func (c *counters) snapshot() Stats {
	s := Stats{
		Exact:     c.exact.Load(),
		Fuzzy:     c.fuzzy.Load(),
		Generated: c.generated.Load(),
		Timeouts:  c.timeouts.Load(),
		Failures:  c.failures.Load(),
	}
	served := c.served.Load()
	s.Shared = max(served-s.Generated, 0)
	s.Requests = s.Exact + s.Fuzzy + max(served, s.Generated)
	s.CallsSaved = s.Requests - s.Generated
	if s.Requests > 0 {
		s.SavingsRate = float64(s.CallsSaved) / float64(s.Requests)
	}
	return s
}
