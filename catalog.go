package features

import (
	"errors"
	"sync"
)

// RegisterFunc adds definitions to a catalog. Session.Populate runs a list of
// them in place of any runtime discovery.
type RegisterFunc func(*Catalog) error

// Catalog is the explicit registry of entity types, feature definitions and
// data sources for one working session.
type Catalog struct {
	mu          sync.RWMutex
	entityTypes []*EntityType
	typesByName map[string]*EntityType
	features    map[string][]AnyFeature
	byRef       map[FeatureRef]AnyFeature
	dataSources []DataSource
	graph       *FeatureGraph
}

func NewCatalog() *Catalog {
	return &Catalog{
		typesByName: make(map[string]*EntityType),
		features:    make(map[string][]AnyFeature),
		byRef:       make(map[FeatureRef]AnyFeature),
		graph:       NewFeatureGraph(),
	}
}

// AddEntityType registers et. Registering the same type twice is a no-op;
// a different type with an existing name is rejected.
func (c *Catalog) AddEntityType(et *EntityType) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.typesByName[et.Name()]; ok {
		if existing == et {
			return nil
		}
		return invalidf(ErrDuplicateEntityType, "%q", et.Name())
	}
	c.typesByName[et.Name()] = et
	c.entityTypes = append(c.entityTypes, et)
	return nil
}

// AddFeature registers f under its entity type. The entity type must already
// be registered. Dependencies may be registered later; they are looked up by
// name when resolving.
func (c *Catalog) AddFeature(f AnyFeature) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	et := f.EntityType()
	if et == nil || c.typesByName[et.Name()] != et {
		name := "<nil>"
		if et != nil {
			name = et.Name()
		}
		return invalidf(ErrUnknownEntityType, "%q for feature %q", name, f.Name())
	}

	ref := refOf(f)
	if _, ok := c.byRef[ref]; ok {
		return invalidf(ErrDuplicateFeature, "%s.%s", ref.EntityType, ref.Feature)
	}
	if deps := f.Dependencies(); len(deps) != f.Arity() {
		return invalidf(ErrArityMismatch, "%s.%s declares %d dependencies for a compute function taking %d",
			ref.EntityType, ref.Feature, len(deps), f.Arity())
	}

	c.byRef[ref] = f
	c.features[et.Name()] = append(c.features[et.Name()], f)
	c.graph.Add(f)
	return nil
}

func (c *Catalog) AddDataSource(ds DataSource) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, existing := range c.dataSources {
		if existing.Name() == ds.Name() {
			return invalidf(ErrDuplicateDataSource, "%q", ds.Name())
		}
	}
	c.dataSources = append(c.dataSources, ds)
	return nil
}

// Feature looks up a registered feature by entity type and name.
func (c *Catalog) Feature(et *EntityType, name string) (AnyFeature, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, ok := c.byRef[FeatureRef{EntityType: et.Name(), Feature: name}]
	return f, ok
}

// Has reports whether f itself (not merely a feature with the same name) is
// registered.
func (c *Catalog) Has(f AnyFeature) bool {
	if f.EntityType() == nil {
		return false
	}
	registered, ok := c.Feature(f.EntityType(), f.Name())
	return ok && registered == f
}

func (c *Catalog) EntityType(name string) (*EntityType, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	et, ok := c.typesByName[name]
	return et, ok
}

func (c *Catalog) EntityTypes() []*EntityType {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*EntityType, len(c.entityTypes))
	copy(out, c.entityTypes)
	return out
}

// FeaturesOf returns the features of et in registration order.
func (c *Catalog) FeaturesOf(et *EntityType) []AnyFeature {
	c.mu.RLock()
	defer c.mu.RUnlock()

	fs := c.features[et.Name()]
	out := make([]AnyFeature, len(fs))
	copy(out, fs)
	return out
}

// Features returns every registered feature, grouped by entity type in
// registration order.
func (c *Catalog) Features() []AnyFeature {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []AnyFeature
	for _, et := range c.entityTypes {
		out = append(out, c.features[et.Name()]...)
	}
	return out
}

func (c *Catalog) DataSources() []DataSource {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]DataSource, len(c.dataSources))
	copy(out, c.dataSources)
	return out
}

func (c *Catalog) DataSource(name string) (DataSource, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, ds := range c.dataSources {
		if ds.Name() == name {
			return ds, true
		}
	}
	return nil, false
}

// DataSourcesWith returns the sources having at least one mapping for et.
func (c *Catalog) DataSourcesWith(et *EntityType) []DataSource {
	var out []DataSource
	for _, ds := range c.DataSources() {
		if hasEntityType(ds, et) {
			out = append(out, ds)
		}
	}
	return out
}

func (c *Catalog) Graph() *FeatureGraph {
	return c.graph
}

// Validate checks the whole catalog: every declared dependency and every
// data source mapping must name a registered feature, and the dependency
// graph must be acyclic.
func (c *Catalog) Validate() error {
	var errs []error

	for _, f := range c.Features() {
		for _, dep := range f.Dependencies() {
			if _, ok := c.Feature(f.EntityType(), dep); !ok {
				errs = append(errs, &MissingDependencyValueError{
					Feature:    f.Name(),
					Dependency: dep,
					Cause:      &UnknownFeatureError{EntityType: f.EntityType().Name(), Feature: dep},
				})
			}
		}
	}

	for _, ds := range c.DataSources() {
		for _, m := range ds.Mappings() {
			if !c.Has(m.Feature) {
				errs = append(errs, &UnknownFeatureError{
					EntityType: m.Feature.EntityType().Name(),
					Feature:    m.Feature.Name(),
				})
			}
		}
	}

	if cycle := c.graph.FindCycle(); cycle != nil {
		path := make([]string, len(cycle))
		for i, ref := range cycle {
			path[i] = ref.Feature
		}
		errs = append(errs, &CycleDetectedError{EntityType: cycle[0].EntityType, Path: path})
	}

	return errors.Join(errs...)
}
