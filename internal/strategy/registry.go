package strategy

import (
	"fmt"
	"sort"
	"sync"

	"github.com/mnqlab/fractal/internal/core"
	"go.uber.org/zap"
)

// Factory builds a configured generator.
type Factory func(cfg Config) (Generator, error)

// Registry maps generator names to factories. Variant selection happens at
// configuration time; the backtest loop itself is variant-agnostic.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	logger    *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger ...*zap.Logger) *Registry {
	var l *zap.Logger
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	} else {
		l = zap.NewNop()
	}
	return &Registry{
		factories: make(map[string]Factory),
		logger:    l,
	}
}

// Register adds a factory under the given name.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// New builds a generator by name.
func (r *Registry) New(name string, cfg Config) (Generator, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		return nil, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown strategy %q", name))
	}

	gen, err := f(cfg)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("strategy configured", zap.String("strategy", gen.Name()))
	return gen, nil
}

// Names returns the registered generator names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
