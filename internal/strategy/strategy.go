// Package strategy defines the Strategy interface for trading strategies and
// provides a Registry of statically registered strategy factories together
// with their parameter schemas.
package strategy

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"scalparo/internal/domain"
)

// Registry lookup and parameter validation errors. Both are fatal before a
// run starts.
var (
	ErrUnknownStrategy = errors.New("unknown strategy")
	ErrInvalidParam    = errors.New("invalid strategy parameter")
)

// Params is the resolved value set for one strategy instance. Values are
// validated against the strategy's ParamSpec map before the instance is
// built and are immutable during a run.
type Params map[string]float64

// Get returns the parameter value, falling back to def when absent.
func (p Params) Get(name string, def float64) float64 {
	if v, ok := p[name]; ok {
		return v
	}
	return def
}

// Int returns the parameter value truncated to int, falling back to def.
func (p Params) Int(name string, def int) int {
	if v, ok := p[name]; ok {
		return int(v)
	}
	return def
}

// ParamSpec describes one tunable parameter: its type, bounds, and default.
// UI collaborators use the spec to build input widgets; the engine uses it
// to validate resolved values.
type ParamSpec struct {
	Type        string // "int" or "float"
	Default     float64
	Min         float64
	Max         float64
	Step        float64
	Description string
}

// PortfolioView is the read-only ledger snapshot handed to Decide each bar.
// Strategies inspect it to size entries and target lots but never mutate
// the underlying ledger.
type PortfolioView struct {
	Cash      float64
	Allocated float64
	Lots      []domain.Lot
}

// Flat reports whether no lots are open.
func (v PortfolioView) Flat() bool { return len(v.Lots) == 0 }

// HeldSize returns the total open quantity across lots.
func (v PortfolioView) HeldSize() float64 {
	var total float64
	for _, l := range v.Lots {
		total += l.Size
	}
	return total
}

// Strategy is the per-bar decision unit of a backtest.
//
// Init is called once before the run with the full bar series and the
// validated parameter set; implementations precompute their indicator
// arrays here. Decide is called once per bar with the current bar index and
// a portfolio snapshot, and returns at most one order intent. Decide must
// only consume information at or before bar i (the indicator package
// guarantees this for precomputed arrays). Any error returned by Init or
// Decide aborts the whole run.
type Strategy interface {
	Name() string
	Init(series *domain.Series, params Params) error
	Decide(i int, view PortfolioView) (*domain.Intent, error)
}

// FillObserver is an optional interface. The engine calls OnFill after every
// executed order, passing the bar index the fill happened on. Strategies that
// track entry zones or win/loss streaks implement it so their state follows
// actual executions rather than submitted intents; rejected intents never
// reach the observer.
type FillObserver interface {
	OnFill(barIndex int, fill domain.Fill)
}

// Factory builds a strategy instance from a validated parameter set.
type Factory func(params Params) (Strategy, error)

type entry struct {
	spec    map[string]ParamSpec
	factory Factory
}

// Registry maps strategy identifiers to factories and parameter schemas.
// It is populated by static registration at process start; there is no
// runtime code loading.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewRegistry creates an empty strategy Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds a strategy factory under the given name, replacing any
// previous registration.
func (r *Registry) Register(name string, spec map[string]ParamSpec, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = entry{spec: spec, factory: f}
}

// List returns a sorted slice of all registered strategy names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParamSpecs returns the parameter schema for the named strategy.
func (r *Registry) ParamSpecs(name string) (map[string]ParamSpec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
	return e.spec, nil
}

// New validates params against the named strategy's schema, fills defaults
// for absent parameters, and builds the instance. Unknown names and
// out-of-range values are rejected before the engine can start.
func (r *Registry) New(name string, params Params) (Strategy, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}

	resolved, err := ResolveParams(e.spec, params)
	if err != nil {
		return nil, err
	}
	return e.factory(resolved)
}

// ResolveParams validates the given values against spec and returns a
// complete parameter set with defaults applied. A value for a name not in
// the spec, or outside its [Min, Max] range, is a validation error.
func ResolveParams(spec map[string]ParamSpec, params Params) (Params, error) {
	resolved := make(Params, len(spec))
	for name, ps := range spec {
		resolved[name] = ps.Default
	}
	for name, v := range params {
		ps, ok := spec[name]
		if !ok {
			return nil, fmt.Errorf("%w: unknown parameter %q", ErrInvalidParam, name)
		}
		if v < ps.Min || v > ps.Max {
			return nil, fmt.Errorf("%w: %s = %v outside [%v, %v]",
				ErrInvalidParam, name, v, ps.Min, ps.Max)
		}
		if ps.Type == "int" && v != float64(int(v)) {
			return nil, fmt.Errorf("%w: %s = %v must be an integer", ErrInvalidParam, name, v)
		}
		resolved[name] = v
	}
	return resolved, nil
}

// Default is the process-wide registry that builtins register into.
var Default = NewRegistry()
