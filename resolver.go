package features

import (
	"context"
	"errors"
)

// resolution tracks one top-level read. The in-progress set turns a cyclic
// dependency graph into a CycleDetectedError instead of unbounded recursion.
type resolution struct {
	ctx     context.Context
	session *Session
	entity  *Entity
	// view is handed to compute functions; it refuses reads that would
	// re-enter the session lock.
	view       *Entity
	exts       []Extension
	inProgress map[string]bool
	path       []string
}

func (s *Session) checkFeature(e *Entity, f AnyFeature) error {
	if f == nil || f.EntityType() != e.typ || !s.catalog.Has(f) {
		name := "<nil>"
		if f != nil {
			name = f.Name()
		}
		return &UnknownFeatureError{EntityType: e.typ.Name(), Feature: name}
	}
	return nil
}

func (s *Session) resolve(e *Entity, f AnyFeature) (any, error) {
	if s.closed.Load() {
		return nil, ErrSessionClosed
	}

	if err := s.checkFeature(e, f); err != nil {
		s.notifyError(err, &Operation{Kind: OpResolve, Entity: e, Feature: f, Session: s})
		return nil, err
	}

	// Cache hits need neither the lock nor the extension chain.
	if entry, ok := s.cache.Get(e.key(f)); ok {
		return entry.Value, nil
	}

	s.mu.Lock()
	r := &resolution{
		ctx:        context.Background(),
		session:    s,
		entity:     e,
		view:       &Entity{typ: e.typ, name: e.name, session: s, computing: true},
		exts:       s.snapshotExtensions(),
		inProgress: make(map[string]bool),
	}
	val, err := r.resolve(f)
	s.mu.Unlock()

	if err != nil {
		s.notifyError(err, &Operation{Kind: OpResolve, Entity: e, Feature: f, Session: s})
		return nil, err
	}
	return val, nil
}

func (r *resolution) resolve(f AnyFeature) (any, error) {
	cache := r.session.cache
	key := r.entity.key(f)

	if entry, ok := cache.Get(key); ok {
		return entry.Value, nil
	}

	name := f.Name()
	if r.inProgress[name] {
		return nil, r.cycleError(name)
	}
	r.inProgress[name] = true
	r.path = append(r.path, name)
	defer func() {
		delete(r.inProgress, name)
		r.path = r.path[:len(r.path)-1]
	}()

	deps := f.Dependencies()
	args := make([]any, len(deps))
	for i, dep := range deps {
		depFeature, ok := r.session.catalog.Feature(r.entity.typ, dep)
		if !ok {
			return nil, &MissingDependencyValueError{
				Entity:     r.entity.name,
				Feature:    name,
				Dependency: dep,
				Cause:      &UnknownFeatureError{EntityType: r.entity.typ.Name(), Feature: dep},
			}
		}

		val, err := r.resolve(depFeature)
		if err != nil {
			if errors.Is(err, ErrCycleDetected) {
				return nil, err
			}
			return nil, &MissingDependencyValueError{
				Entity:     r.entity.name,
				Feature:    name,
				Dependency: dep,
				Cause:      err,
			}
		}
		args[i] = val
	}

	op := &Operation{
		Kind:    OpResolve,
		Entity:  r.entity,
		Feature: f,
		Session: r.session,
	}
	val, err := chain(r.ctx, r.exts, op, func() (any, error) {
		return f.ComputeAny(r.view, args)
	})
	if err != nil {
		return nil, &ResolveError{Entity: r.entity.name, Feature: name, Cause: err}
	}

	cache.Set(key, CacheEntry{Value: val, Origin: OriginComputed})
	return val, nil
}

func (r *resolution) cycleError(name string) error {
	start := 0
	for i, p := range r.path {
		if p == name {
			start = i
			break
		}
	}
	path := append(append([]string{}, r.path[start:]...), name)
	return &CycleDetectedError{
		EntityType: r.entity.typ.Name(),
		Entity:     r.entity.name,
		Path:       path,
	}
}

func (s *Session) stipulate(e *Entity, f AnyFeature, raw any) error {
	if err := s.doStipulate(context.Background(), e, f, raw); err != nil {
		s.notifyError(err, &Operation{Kind: OpStipulate, Entity: e, Feature: f, Session: s})
		return err
	}
	return nil
}

// doStipulate coerces raw and stores it, bypassing the resolver. Any cached
// value of a feature depending on f is dropped, since it may have been
// derived from the replaced value.
func (s *Session) doStipulate(ctx context.Context, e *Entity, f AnyFeature, raw any) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	if err := s.checkFeature(e, f); err != nil {
		return err
	}

	val, err := coerce(f, raw)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	op := &Operation{
		Kind:    OpStipulate,
		Entity:  e,
		Feature: f,
		Session: s,
	}
	_, err = chain(ctx, s.snapshotExtensions(), op, func() (any, error) {
		key := e.key(f)
		if entry, ok := s.cache.Get(key); ok {
			if entry.Origin == OriginComputed && s.policy == RejectComputed {
				return nil, &StipulationConflictError{Entity: e.name, Feature: f.Name(), Computed: entry.Value}
			}
			s.invalidateDependents(e, f)
		}
		s.cache.Set(key, CacheEntry{Value: val, Origin: OriginStipulated})
		return val, nil
	})
	return err
}

func (s *Session) release(e *Entity, f AnyFeature) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	if err := s.checkFeature(e, f); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache.Delete(e.key(f))
	s.invalidateDependents(e, f)
	return nil
}

// invalidateDependents drops the computed values derived from f. A
// stipulated dependent is kept, along with everything computed from it.
func (s *Session) invalidateDependents(e *Entity, f AnyFeature) {
	stipulated := func(ref FeatureRef) bool {
		entry, ok := s.cache.Get(CacheKey{EntityType: ref.EntityType, Feature: ref.Feature, Entity: e.name})
		return ok && entry.Origin == OriginStipulated
	}
	for _, ref := range s.catalog.Graph().FindDependents(refOf(f), stipulated) {
		s.cache.Delete(CacheKey{EntityType: ref.EntityType, Feature: ref.Feature, Entity: e.name})
	}
}
