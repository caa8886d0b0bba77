package condition

import "fmt"

// DefaultRegistry returns a registry with every built-in condition plugin
func DefaultRegistry() *Registry {
	registry := NewRegistry()
	for _, plugin := range []Plugin{
		ActivityPlugin{},
		EnrolmentPlugin{},
		CohortPlugin{},
		SessionPlugin{},
	} {
		if err := registry.Register(plugin); err != nil {
			// Built-ins registering twice is a programming error
			panic(fmt.Sprintf("failed to register built-in condition plugin: %v", err))
		}
	}
	return registry
}
