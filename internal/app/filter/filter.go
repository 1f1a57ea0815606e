// Package filter provides the admission chain applied before a track is queued.
package filter

import (
	"context"
	"fmt"
	"sort"

	"github.com/osa030/19deck/internal/domain/track"
)

// Origin identifies where an add request came from.
type Origin int

const (
	OriginUser    Origin = iota // Explicit add from the presentation layer
	OriginLibrary               // Startup seeding or a watched folder
)

// String returns the string representation of the origin.
func (o Origin) String() string {
	switch o {
	case OriginUser:
		return "user"
	case OriginLibrary:
		return "library"
	default:
		return "unknown"
	}
}

// Result represents the result of a filter check.
type Result struct {
	Accepted bool
	Code     string // e.g., "duplicate_track", "unsupported_format"
}

// Accept returns an accepted result.
func Accept() Result {
	return Result{Accepted: true}
}

// Reject returns a rejected result with the given code.
func Reject(code string) Result {
	return Result{Accepted: false, Code: code}
}

// RejectedError is returned when the chain refuses a track.
type RejectedError struct {
	Filter string
	Code   string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("track rejected by %s: %s", e.Filter, e.Code)
}

// Filter is the interface for admission filters.
type Filter interface {
	// Name returns the filter name (used in config).
	Name() string
	// Description returns a human-readable description.
	Description() string
	// ReturnCodes returns the codes this filter can return.
	ReturnCodes() []string
	// ValidateConfig validates and applies the filter settings.
	ValidateConfig(settings map[string]any) error
	// AppliesTo returns true if this filter should run for the given origin.
	AppliesTo(origin Origin) bool
	// Check performs the filter check.
	Check(ctx context.Context, t track.Track) Result
}

// Deps carries the collaborators some filters need.
type Deps struct {
	Queue QueueReader
}

// registry holds registered filter factories.
var registry = make(map[string]func(Deps) Filter)

// Register registers a filter factory.
func Register(name string, factory func(Deps) Filter) {
	registry[name] = factory
}

// GetRegistered returns all registered filter factories.
func GetRegistered() map[string]func(Deps) Filter {
	return registry
}

// Names returns the registered filter names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
