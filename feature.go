package features

import "fmt"

// ComputeFunc computes a feature value from the entity and the values of the
// declared dependencies, passed positionally in declaration order. It must be
// pure; dependencies arrive as arguments. The entity it receives answers
// Get, Stipulate and Release with ErrReentrantAccess, since the session is
// locked while compute functions run.
type ComputeFunc func(e *Entity, args []any) (any, error)

// AnyFeature is the type-erased view of a feature definition used by the
// catalog, the resolver and data source mappings.
type AnyFeature interface {
	Name() string
	EntityType() *EntityType
	Dependencies() []string
	Arity() int
	ValueType() ValueType
	Description() string
	ComputeAny(e *Entity, args []any) (any, error)
}

// Feature is a definition whose values have type T.
type Feature[T any] struct {
	name        string
	entityType  *EntityType
	deps        []string
	arity       int
	valueType   ValueType
	description string
	compute     ComputeFunc
}

func (f *Feature[T]) Name() string            { return f.name }
func (f *Feature[T]) EntityType() *EntityType { return f.entityType }
func (f *Feature[T]) Arity() int              { return f.arity }
func (f *Feature[T]) ValueType() ValueType    { return f.valueType }
func (f *Feature[T]) Description() string     { return f.description }

func (f *Feature[T]) Dependencies() []string {
	out := make([]string, len(f.deps))
	copy(out, f.deps)
	return out
}

func (f *Feature[T]) ComputeAny(e *Entity, args []any) (any, error) {
	return f.compute(e, args)
}

func (f *Feature[T]) accepts(v any) bool {
	_, ok := v.(T)
	return ok
}

func (f *Feature[T]) String() string {
	return f.entityType.Name() + "." + f.name
}

// FeatureOption is a modifier for feature definitions
type FeatureOption func(*featureConfig)

type featureConfig struct {
	valueType   ValueType
	description string
}

// WithValueType overrides the value type inferred from the feature's Go type.
func WithValueType(vt ValueType) FeatureOption {
	return func(cfg *featureConfig) {
		cfg.valueType = vt
	}
}

func WithDescription(description string) FeatureOption {
	return func(cfg *featureConfig) {
		cfg.description = description
	}
}

func newFeature[T any](et *EntityType, name string, deps []string, arity int, compute ComputeFunc, opts []FeatureOption) *Feature[T] {
	cfg := featureConfig{valueType: valueTypeFor[T]()}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Feature[T]{
		name:        name,
		entityType:  et,
		deps:        deps,
		arity:       arity,
		valueType:   cfg.valueType,
		description: cfg.description,
		compute:     compute,
	}
}

// Provide creates a feature with no dependencies. Its compute function is
// the fallback used when no value was stipulated. The fallback runs with the
// session locked: reading another feature through e fails with
// ErrReentrantAccess, and going through e.Session() to a different handle
// blocks forever. Declare the feature with Derive instead.
func Provide[T any](et *EntityType, name string, fn func(*Entity) (T, error), opts ...FeatureOption) *Feature[T] {
	return newFeature[T](et, name, nil, 0, func(e *Entity, _ []any) (any, error) {
		return fn(e)
	}, opts)
}

// Stipulated creates a leaf feature that has no fallback: reading it before
// a value was stipulated fails.
func Stipulated[T any](et *EntityType, name string, opts ...FeatureOption) *Feature[T] {
	return Provide(et, name, func(e *Entity) (T, error) {
		var zero T
		return zero, fmt.Errorf("no value stipulated for %s on %q", name, e.Name())
	}, opts...)
}

// Define creates a feature whose dependencies are referenced by name. The
// declared arity must equal len(deps); the catalog checks it on
// registration.
func Define[T any](et *EntityType, name string, deps []string, arity int, fn ComputeFunc, opts ...FeatureOption) *Feature[T] {
	d := make([]string, len(deps))
	copy(d, deps)
	return newFeature[T](et, name, d, arity, func(e *Entity, args []any) (any, error) {
		v, err := fn(e, args)
		if err != nil {
			return nil, err
		}
		if _, ok := v.(T); !ok {
			var zero T
			return nil, fmt.Errorf("compute returned %T, expected %T", v, zero)
		}
		return v, nil
	}, opts)
}

// arg converts a positional dependency value for the typed Derive helpers.
func arg[D any](args []any, i int, dep string) (D, error) {
	v, ok := args[i].(D)
	if !ok {
		var zero D
		return zero, fmt.Errorf("dependency %q: expected %T, got %T", dep, zero, args[i])
	}
	return v, nil
}
