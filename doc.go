// Package features computes derived values ("features") of named entities
// from declared dependency graphs, memoizing every value per entity.
//
// # Overview
//
// The package is organized around four concepts:
//
//  1. Features: typed definitions with explicit, ordered dependencies
//  2. Entities: named instances of an entity type whose values live in the session cache
//  3. Data sources: row-oriented origins of stipulated (externally supplied) values
//  4. Sessions: the catalog, the value cache and the entity directory of one working context
//
// # Basic Usage
//
// Declare an entity type and its features:
//
//	rectangle := features.NewEntityType("rectangle")
//
//	width := features.Provide(rectangle, "width", func(e *features.Entity) (float64, error) {
//	    return 3.0, nil // fallback when no value is stipulated
//	})
//	length := features.Stipulated[float64](rectangle, "length")
//
//	area := features.Derive2(rectangle, "area", width, length,
//	    func(e *features.Entity, w, l float64) (float64, error) {
//	        return w * l, nil
//	    },
//	)
//
// Register them explicitly and read values:
//
//	session := features.NewSession()
//	defer session.Close()
//
//	err := session.Populate(func(c *features.Catalog) error {
//	    return errors.Join(
//	        c.AddEntityType(rectangle),
//	        c.AddFeature(width),
//	        c.AddFeature(length),
//	        c.AddFeature(area),
//	    )
//	})
//
//	r1 := session.MustEntity(rectangle, "r1")
//	_ = r1.Stipulate(length, "2.0")
//	a, err := features.Get(r1, area) // 6.0, width and area now cached
//
// # Resolution
//
// Reading a feature returns the cached value when there is one. Otherwise
// every dependency is resolved first, in declared order, then the compute
// function runs once and its result is cached. A dependency graph that
// loops back on itself fails with a CycleDetectedError.
//
// # Stipulation
//
// Stipulate coerces a raw value (usually a string read from a data source)
// to the feature's ValueType and stores it without computing anything. A
// stipulated value is never recomputed. Stipulating over a value that was
// computed fails under the default RejectComputed policy; see
// WithStipulationPolicy.
//
// # Data Sources
//
// A data source maps columns onto features:
//
//	sizes := features.NewCSVDataSource("rectangle_size", "sizes.csv", features.DefaultDialect)
//	sizes.AddMapping(width, "w_col", "rectangle_id")
//	sizes.AddMapping(length, "len_col", "rectangle_id")
//
//	_ = session.AddDataSource(sizes)
//	err := session.Dump(ctx, os.Stdout)
//
// Dump hydrates every entity type from its sources and prints one line per
// entity:
//
//	Entity type: rectangle
//	r1: (width=3.0, length=2.0, area=6.0)
//
// # Extensions
//
// Extensions wrap compute, stipulate and hydrate operations:
//
//	session := features.NewSession(
//	    features.WithExtension(extensions.NewLoggingExtension(logger)),
//	)
//
// # Thread Safety
//
// Resolution and stipulation are serialized per session, so each feature is
// computed at most once per entity. Cache reads (Peek, IsCached, cache hits)
// do not wait for a running resolution.
package features
