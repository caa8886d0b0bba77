package action

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/coursepulse/coursepulse-be/internal/core/mailer"
	"github.com/coursepulse/coursepulse-be/internal/core/schedule"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Config is a decoded, plugin-specific action configuration
type Config interface {
	Validate() error
	// Timing exposes the schedule portion shared by every action
	Timing() schedule.Config
}

// Deps carries the collaborators an action may need. Explicit injection, no
// package-level state.
type Deps struct {
	DB      *gorm.DB
	Mailer  *mailer.Service
	Senders *SenderResolver
}

// Plugin is one pluggable delivery effect executed for eligible users
type Plugin interface {
	// Name is the unique action key used in template action configuration
	Name() string

	// DecodeConfig parses the stored JSON payload into the plugin's config type
	DecodeConfig(raw json.RawMessage) (Config, error)

	// Execute performs the delivery for one user. It returns false when the
	// delivery could not be made (invalid recipient, transport failure); the
	// schedule is then marked failed. Execute never retries synchronously.
	Execute(ctx context.Context, deps Deps, cfg Config, courseID, userID, scheduleID uuid.UUID) (bool, error)
}

// Registry maps action names to implementations, populated at startup
type Registry struct {
	plugins map[string]Plugin
}

// NewRegistry creates an empty action registry
func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]Plugin)}
}

// Register adds a plugin, rejecting duplicates
func (r *Registry) Register(p Plugin) error {
	if p.Name() == "" {
		return fmt.Errorf("action plugin has empty name")
	}
	if _, exists := r.plugins[p.Name()]; exists {
		return fmt.Errorf("action plugin %q already registered", p.Name())
	}
	r.plugins[p.Name()] = p
	return nil
}

// Get looks up a plugin by name
func (r *Registry) Get(name string) (Plugin, bool) {
	p, ok := r.plugins[name]
	return p, ok
}

// Names returns the registered action names in stable order
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry returns a registry with the built-in notification action
func DefaultRegistry() *Registry {
	registry := NewRegistry()
	if err := registry.Register(NotificationPlugin{}); err != nil {
		panic(fmt.Sprintf("failed to register built-in action plugin: %v", err))
	}
	return registry
}
