package experiment

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// Store persists visitor assignments and experiment counters.
type Store interface {
	// Assignment retrieves the variant stored for the visitor. The second
	// return value is false if no variant is stored.
	Assignment(ctx context.Context, visitorID, experimentKey string) (string, bool, error)

	// SetAssignment stores variant for the visitor unless a variant is already
	// stored, and counts its exposure in the same atomic step. The variant
	// that ends up stored is returned; set is true if this call stored it.
	SetAssignment(ctx context.Context, visitorID, experimentKey, variant string) (stored string, set bool, err error)

	// Convert flags the visitor as converted and counts a conversion of
	// variant in the same atomic step. It returns true only the first time it
	// is called for the visitor and experiment.
	Convert(ctx context.Context, visitorID, experimentKey, variant string) (bool, error)

	Counts(ctx context.Context, experimentKey string) (exposures, conversions map[string]int64, err error)
}

// Option configures a Manager.
type Option func(*Manager)

// WithIntn configures the Manager to draw random numbers from fn. fn must
// return a value in [0, n).
func WithIntn(fn func(n int) int) Option {
	return func(m *Manager) { m.intn = fn }
}

// WithExperiments configures the Manager to use experiments rather than
// Registry.
func WithExperiments(experiments []Experiment) Option {
	return func(m *Manager) { m.experiments = experiments }
}

// NewManager creates a new Manager instance.
func NewManager(store Store, options ...Option) *Manager {
	src := rand.New(rand.NewSource(time.Now().UnixNano()))
	mutex := new(sync.Mutex)

	m := &Manager{
		store:       store,
		experiments: Registry,
		intn: func(n int) int {
			mutex.Lock()
			defer mutex.Unlock()
			return src.Intn(n)
		},
	}
	for _, option := range options {
		option(m)
	}
	return m
}

// Manager assigns visitors to experiment variants.
type Manager struct {
	store       Store
	experiments []Experiment
	intn        func(int) int
}

// Assignment is a visitor's variant of an experiment. New is true when the
// variant was sampled by this call.
type Assignment struct {
	Experiment string `json:"experiment"`
	Variant    string `json:"variant"`
	New        bool   `json:"-"`
}

// Assign retrieves the visitor's variant of the experiment, sampling and
// storing one if the visitor has none. A stored variant is returned as is,
// even if it is no longer part of the experiment.
func (m Manager) Assign(ctx context.Context, visitorID, experimentKey string) (Assignment, error) {
	exp, err := Lookup(m.experiments, experimentKey)
	if err != nil {
		return Assignment{}, fmt.Errorf("while assigning %q: %w", experimentKey, err)
	}

	variant, ok, err := m.store.Assignment(ctx, visitorID, exp.Key)
	if err != nil {
		return Assignment{}, fmt.Errorf("while retrieving assignment: %w", err)
	}
	if ok {
		return Assignment{Experiment: exp.Key, Variant: variant}, nil
	}

	var r int
	if total := TotalWeight(exp.Variants); total > 0 {
		r = m.intn(total)
	}

	picked := Pick(exp.Variants, r)
	stored, set, err := m.store.SetAssignment(ctx, visitorID, exp.Key, picked)
	if err != nil {
		return Assignment{}, fmt.Errorf("while storing assignment: %w", err)
	}

	// A concurrent request may have stored a different variant first; its
	// exposure has already been counted.
	return Assignment{Experiment: exp.Key, Variant: stored, New: set}, nil
}

// AssignAll assigns the visitor to every experiment the Manager knows of, in
// registration order.
func (m Manager) AssignAll(ctx context.Context, visitorID string) ([]Assignment, error) {
	assignments := make([]Assignment, 0, len(m.experiments))
	for _, exp := range m.experiments {
		assignment, err := m.Assign(ctx, visitorID, exp.Key)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, assignment)
	}
	return assignments, nil
}

// Variants maps each experiment of assignments to its variant.
func Variants(assignments []Assignment) map[string]string {
	variants := make(map[string]string, len(assignments))
	for _, assignment := range assignments {
		variants[assignment.Experiment] = assignment.Variant
	}
	return variants
}

// Convert counts a conversion against the visitor's variant. Only the first
// conversion of a visitor is counted; the second return value reports whether
// this call counted it.
func (m Manager) Convert(ctx context.Context, visitorID, experimentKey string) (Assignment, bool, error) {
	exp, err := Lookup(m.experiments, experimentKey)
	if err != nil {
		return Assignment{}, false, fmt.Errorf("while converting %q: %w", experimentKey, err)
	}

	variant, ok, err := m.store.Assignment(ctx, visitorID, exp.Key)
	if err != nil {
		return Assignment{}, false, fmt.Errorf("while retrieving assignment: %w", err)
	}
	if !ok {
		return Assignment{}, false, ErrNotAssigned
	}
	assignment := Assignment{Experiment: exp.Key, Variant: variant}

	counted, err := m.store.Convert(ctx, visitorID, exp.Key, variant)
	if err != nil {
		return Assignment{}, false, fmt.Errorf("while counting conversion: %w", err)
	}
	return assignment, counted, nil
}

// VariantStats are the counters of a single variant.
type VariantStats struct {
	Variant     string `json:"variant"`
	Exposures   int64  `json:"exposures"`
	Conversions int64  `json:"conversions"`
}

// Stats retrieves the counters of every variant of the experiment, in the
// order the variants are registered.
func (m Manager) Stats(ctx context.Context, experimentKey string) ([]VariantStats, error) {
	exp, err := Lookup(m.experiments, experimentKey)
	if err != nil {
		return nil, fmt.Errorf("while retrieving stats of %q: %w", experimentKey, err)
	}

	exposures, conversions, err := m.store.Counts(ctx, exp.Key)
	if err != nil {
		return nil, fmt.Errorf("while retrieving counts: %w", err)
	}

	stats := make([]VariantStats, 0, len(exp.Variants))
	for _, v := range exp.Variants {
		stats = append(stats, VariantStats{
			Variant:     v.Key,
			Exposures:   exposures[v.Key],
			Conversions: conversions[v.Key],
		})
	}
	return stats, nil
}
