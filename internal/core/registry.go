package core

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registry   = make(map[string]*PipelineDefinition)
	registryMu sync.RWMutex
)

// Register adds a pipeline definition to the registry.
// Panics if a pipeline with the same key is already registered.
func Register(def PipelineDefinition) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[def.Key]; exists {
		panic(fmt.Sprintf("pipeline already registered: %s", def.Key))
	}
	if def.BatchSize <= 0 {
		def.BatchSize = DefaultBatchSize
	}
	if def.Payload == "" {
		def.Payload = PayloadItems
	}
	registry[def.Key] = &def
}

// Get returns a pipeline definition by key.
func Get(key string) (*PipelineDefinition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[key]
	return def, ok
}

// All returns all registered pipelines sorted by key.
func All() []*PipelineDefinition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]*PipelineDefinition, 0, len(registry))
	for _, def := range registry {
		result = append(result, def)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Key < result[j].Key
	})
	return result
}

// PipelineCount returns the number of registered pipelines.
func PipelineCount() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}

// Clear removes all registered pipelines.
// Primarily useful for testing.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]*PipelineDefinition)
}

// Overlay adjusts a registered pipeline without code changes.
type Overlay struct {
	Label     string              `yaml:"label"`
	BatchSize int                 `yaml:"batch_size"`
	Aliases   map[string][]string `yaml:"aliases"`
}

// ApplyOverlay merges o into the pipeline registered under key. Extra
// aliases are appended after the built-in ones.
func ApplyOverlay(key string, o Overlay) error {
	registryMu.Lock()
	defer registryMu.Unlock()

	def, ok := registry[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPipeline, key)
	}
	if o.Label != "" {
		def.Label = o.Label
	}
	if o.BatchSize > 0 {
		def.BatchSize = o.BatchSize
	}
	for field, aliases := range o.Aliases {
		found := false
		for i := range def.Fields {
			if def.Fields[i].Key == field {
				def.Fields[i].Aliases = append(def.Fields[i].Aliases, aliases...)
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("pipeline %s has no field %q", key, field)
		}
	}
	return nil
}
