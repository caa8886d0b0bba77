package condition

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/coursepulse/coursepulse-be/internal/core/events"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Status is the 3-way condition mode: a condition can be off, apply to every
// eligible user, or apply only to users who become eligible after the
// condition was configured ("upcoming")
type Status string

const (
	StatusDisabled Status = "disabled"
	StatusAll      Status = "all"
	StatusFuture   Status = "upcoming"
)

// Operator combines multiple condition verdicts into one
type Operator string

const (
	OperatorAll Operator = "all"
	OperatorAny Operator = "any"
)

// Config is a decoded, plugin-specific payload. One concrete struct exists per
// plugin so misconfiguration fails at decode time, not at evaluation time.
type Config interface {
	Validate() error
}

// Plugin is one pluggable eligibility predicate
type Plugin interface {
	// Name is the unique plugin key referenced from trigger condition lists
	Name() string

	// Options returns the statuses this condition can be saved with. Plugins
	// for which "upcoming" is meaningless omit StatusFuture.
	Options() []Status

	// DecodeConfig parses the stored JSON payload into the plugin's config type
	DecodeConfig(raw json.RawMessage) (Config, error)

	// IsUserCompleted reports whether the user currently satisfies the condition
	IsUserCompleted(ctx context.Context, db *gorm.DB, cfg Config, courseID, userID uuid.UUID) (bool, error)

	// MatchesEvent reports whether the event should re-evaluate instances
	// configured with this condition (reverse lookup predicate)
	MatchesEvent(cfg Config, evt events.Event) bool
}

// ReferenceProvider is an optional plugin capability: conditions tied to a
// future moment (a session start) expose it so "before" delays have a
// reference timestamp.
type ReferenceProvider interface {
	ReferenceTime(ctx context.Context, db *gorm.DB, cfg Config, courseID, userID uuid.UUID) (*time.Time, error)
}

// Registry maps plugin names to implementations. It is populated once at
// process start; there is no runtime string-to-type resolution.
type Registry struct {
	plugins map[string]Plugin
}

// NewRegistry creates an empty plugin registry
func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]Plugin)}
}

// Register adds a plugin, rejecting duplicates
func (r *Registry) Register(p Plugin) error {
	if p.Name() == "" {
		return fmt.Errorf("condition plugin has empty name")
	}
	if _, exists := r.plugins[p.Name()]; exists {
		return fmt.Errorf("condition plugin %q already registered", p.Name())
	}
	r.plugins[p.Name()] = p
	return nil
}

// Get looks up a plugin by name
func (r *Registry) Get(name string) (Plugin, bool) {
	p, ok := r.plugins[name]
	return p, ok
}

// Names returns the registered plugin names in stable order
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
