package crawler

import (
	"fmt"
	"sort"

	"SentimentPipeline/internal/config"
)

// Factory builds a source from its configuration entry.
type Factory func(cfg config.SourceConfig) (Source, error)

// Registry keeps a mapping from source kinds to their factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// Register adds or replaces a factory for kind.
func (r *Registry) Register(kind string, factory Factory) {
	if r.factories == nil {
		r.factories = map[string]Factory{}
	}
	r.factories[kind] = factory
}

// Build resolves the factory for cfg.Kind and constructs the source.
func (r *Registry) Build(cfg config.SourceConfig) (Source, error) {
	factory, ok := r.factories[cfg.Kind]
	if !ok {
		return nil, fmt.Errorf("source kind %s is not registered", cfg.Kind)
	}
	src, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("build source %s: %w", cfg.Name, err)
	}
	return src, nil
}

// Kinds lists registered kinds in stable order.
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
