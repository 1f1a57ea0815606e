package filter

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19deck/internal/domain/track"
)

// Chain executes filters in sequence.
type Chain struct {
	filters []Filter
}

// NewChain creates a new filter chain.
func NewChain() *Chain {
	return &Chain{
		filters: make([]Filter, 0),
	}
}

// Config enables a registered filter and carries its settings.
type Config struct {
	Enabled  bool
	Settings map[string]any
}

// Build creates a chain from the registry. Filters are added in name order;
// a filter whose settings do not validate is reported as an error.
func Build(configs map[string]Config, deps Deps) (*Chain, error) {
	c := NewChain()
	for _, name := range Names() {
		s, ok := configs[name]
		if !ok || !s.Enabled {
			continue
		}
		f := registry[name](deps)
		if err := f.ValidateConfig(s.Settings); err != nil {
			return nil, errors.Wrapf(err, "invalid settings for %s", name)
		}
		zlog.Debug().Msgf("filter: enabled: name=%s", name)
		c.Add(f)
	}
	return c, nil
}

// Add adds a filter to the chain.
func (c *Chain) Add(f Filter) {
	c.filters = append(c.filters, f)
}

// Execute runs all filters in sequence.
// Returns immediately if any filter rejects the track.
// Filters are only applied if they declare they apply to the given origin.
func (c *Chain) Execute(ctx context.Context, t track.Track, origin Origin) Result {
	_, result := c.execute(ctx, t, origin)
	return result
}

// Admit runs the chain and converts a rejection into a *RejectedError.
func (c *Chain) Admit(ctx context.Context, t track.Track, origin Origin) error {
	name, result := c.execute(ctx, t, origin)
	if result.Accepted {
		return nil
	}
	return &RejectedError{Filter: name, Code: result.Code}
}

func (c *Chain) execute(ctx context.Context, t track.Track, origin Origin) (string, Result) {
	for _, f := range c.filters {
		if !f.AppliesTo(origin) {
			continue
		}

		result := f.Check(ctx, t)
		if !result.Accepted {
			return f.Name(), result
		}
	}
	return "", Accept()
}

// Filters returns all filters in the chain.
func (c *Chain) Filters() []Filter {
	return c.filters
}
