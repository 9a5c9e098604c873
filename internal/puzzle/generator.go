package puzzle

import (
	"fmt"
)

// Params is the puzzle's generator configuration blob (JSONB in the catalog).
type Params map[string]interface{}

// IntOr reads an integer parameter, falling back to def when absent.
// JSON numbers decode as float64, so both forms are accepted.
func (p Params) IntOr(key string, def int) int {
	v, ok := p[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	}
	return def
}

// Instance is one player's concrete problem: the input they see and the
// answer the orchestrator compares against. The answer never leaves the server.
type Instance struct {
	Input  string
	Answer string
}

// Generator produces a randomized instance with a single well-defined answer.
// Implementations must be safe for concurrent use and bounded in time, since
// they are invoked synchronously while a match is starting.
type Generator interface {
	Generate(params Params) (Instance, error)
}

// Registry maps generator type names to implementations. Variants are
// registered at startup; an unknown type is a configuration error.
type Registry struct {
	generators map[string]Generator
}

func NewRegistry() *Registry {
	return &Registry{generators: make(map[string]Generator)}
}

func (r *Registry) Register(name string, g Generator) {
	r.generators[name] = g
}

func (r *Registry) Lookup(name string) (Generator, error) {
	g, ok := r.generators[name]
	if !ok {
		return nil, fmt.Errorf("unknown generator type: %s", name)
	}
	return g, nil
}

// Generate dispatches to the named generator.
func (r *Registry) Generate(name string, params Params) (Instance, error) {
	g, err := r.Lookup(name)
	if err != nil {
		return Instance{}, err
	}
	return g.Generate(params)
}

// Types lists the registered generator type names.
func (r *Registry) Types() []string {
	names := make([]string, 0, len(r.generators))
	for name := range r.generators {
		names = append(names, name)
	}
	return names
}

// DefaultRegistry returns a registry with every built-in generator registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("crystal_sum", CrystalSumGenerator{})
	r.Register("pattern_counter", PatternCounterGenerator{})
	r.Register("grid_path", GridPathGenerator{})
	r.Register("sequence_finder", SequenceFinderGenerator{})
	r.Register("tower_blocks", TowerBlocksGenerator{})
	return r
}
