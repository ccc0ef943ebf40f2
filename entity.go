package features

import "fmt"

// EntityType is a named category of entities, e.g. "rectangle".
type EntityType struct {
	name string
}

func NewEntityType(name string) *EntityType {
	return &EntityType{name: name}
}

func (t *EntityType) Name() string { return t.name }

func (t *EntityType) String() string { return t.name }

// Entity is a named instance of an entity type. Its values live in the
// session cache, so every Entity with the same type and name in one session
// sees the same values.
type Entity struct {
	typ     *EntityType
	name    string
	session *Session
	// computing marks the handle passed to compute functions.
	computing bool
}

func (e *Entity) Name() string      { return e.name }
func (e *Entity) Type() *EntityType { return e.typ }
func (e *Entity) Session() *Session { return e.session }

func (e *Entity) key(f AnyFeature) CacheKey {
	return CacheKey{EntityType: e.typ.name, Feature: f.Name(), Entity: e.name}
}

// Get resolves feature for this entity, computing and caching every missing
// prerequisite first.
func (e *Entity) Get(feature AnyFeature) (any, error) {
	if e.computing {
		return nil, ErrReentrantAccess
	}
	return e.session.resolve(e, feature)
}

// Stipulate coerces raw to the feature's value type and stores it for this
// entity without running any compute function.
func (e *Entity) Stipulate(feature AnyFeature, raw any) error {
	if e.computing {
		return ErrReentrantAccess
	}
	return e.session.stipulate(e, feature, raw)
}

func (e *Entity) cached(feature AnyFeature) (CacheEntry, bool) {
	if e.session.closed.Load() || e.session.checkFeature(e, feature) != nil {
		return CacheEntry{}, false
	}
	return e.session.cache.Get(e.key(feature))
}

// Peek returns the cached value without resolving.
func (e *Entity) Peek(feature AnyFeature) (any, bool) {
	entry, ok := e.cached(feature)
	if !ok {
		return nil, false
	}
	return entry.Value, true
}

func (e *Entity) IsCached(feature AnyFeature) bool {
	_, ok := e.cached(feature)
	return ok
}

// Origin reports whether the cached value was computed or stipulated.
func (e *Entity) Origin(feature AnyFeature) (Origin, bool) {
	entry, ok := e.cached(feature)
	return entry.Origin, ok
}

// Release drops the cached value of feature and every computed value
// derived from it, so the next read recomputes them. Stipulated dependents
// are kept.
func (e *Entity) Release(feature AnyFeature) error {
	if e.computing {
		return ErrReentrantAccess
	}
	return e.session.release(e, feature)
}

// Features lists the features registered for the entity's type in
// registration order.
func (e *Entity) Features() []AnyFeature {
	return e.session.catalog.FeaturesOf(e.typ)
}

// Get is the typed form of Entity.Get.
func Get[T any](e *Entity, feature *Feature[T]) (T, error) {
	var zero T
	v, err := e.Get(feature)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, &ValueCoercionError{Feature: feature.Name(), ValueType: fmt.Sprintf("%T", zero), Raw: v}
	}
	return t, nil
}
