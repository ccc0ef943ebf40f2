package features

import (
	"context"
	"errors"
	"io"
	"time"

	"go.uber.org/zap"
)

// Hydrate stipulates values from every data source onto the entities they
// name, for every registered entity type. It returns the entities touched,
// per type in first-seen order.
func (s *Session) Hydrate(ctx context.Context) (map[*EntityType][]*Entity, error) {
	out := make(map[*EntityType][]*Entity)
	for _, et := range s.catalog.EntityTypes() {
		touched, err := s.HydrateType(ctx, et)
		if err != nil {
			return out, err
		}
		out[et] = touched
	}
	return out, nil
}

// HydrateType hydrates et from every data source mapping one of its
// features. The first failing row aborts hydration.
func (s *Session) HydrateType(ctx context.Context, et *EntityType) ([]*Entity, error) {
	if s.closed.Load() {
		return nil, ErrSessionClosed
	}
	if registered, ok := s.catalog.EntityType(et.Name()); !ok || registered != et {
		return nil, invalidf(ErrUnknownEntityType, "%q", et.Name())
	}

	var touched []*Entity
	seen := make(map[string]bool)
	for _, ds := range s.catalog.DataSourcesWith(et) {
		op := &Operation{Kind: OpHydrate, Source: ds, Session: s}
		_, err := chain(ctx, s.snapshotExtensions(), op, func() (any, error) {
			return nil, s.hydrateSource(ctx, ds, et, func(e *Entity) {
				if !seen[e.name] {
					seen[e.name] = true
					touched = append(touched, e)
				}
			})
		})
		if err != nil {
			s.notifyError(err, op)
			return touched, err
		}
	}
	return touched, nil
}

func (s *Session) hydrateSource(ctx context.Context, ds DataSource, et *EntityType, touch func(*Entity)) error {
	logger := s.logger.With(zap.String("source", ds.Name()), zap.String("entity_type", et.Name()))
	start := time.Now()
	logger.Debug("hydration started")

	it, err := ds.Open(ctx)
	if err != nil {
		return err
	}
	defer it.Close()

	nameCols := nameColumns(ds, et)
	rows := 0
	for {
		row, err := it.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		rows++

		for _, nameCol := range nameCols {
			name, err := row.Value(nameCol)
			if err != nil {
				return &HydrationError{Source: ds.Name(), Row: row.Index, Column: nameCol, Err: err}
			}

			entity, err := s.Entity(et, name)
			if err != nil {
				return &HydrationError{Source: ds.Name(), Row: row.Index, Entity: name, Err: err}
			}
			touch(entity)

			for _, m := range mappingsFor(ds, et, nameCol) {
				raw, err := row.Value(m.FeatureColumn)
				if err != nil {
					return &HydrationError{Source: ds.Name(), Row: row.Index, Entity: name, Column: m.FeatureColumn, Err: err}
				}
				if err := s.doStipulate(ctx, entity, m.Feature, raw); err != nil {
					return &HydrationError{Source: ds.Name(), Row: row.Index, Entity: name, Column: m.FeatureColumn, Err: err}
				}
			}
		}
	}

	logger.Debug("hydration finished", zap.Int("rows", rows), zap.Duration("duration", time.Since(start)))
	return nil
}
