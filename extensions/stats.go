package extensions

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	features "github.com/pumped-fn/pumped-features"
)

// FeatureStats counts the compute calls of one feature across all entities
type FeatureStats struct {
	Computes int64
	Failures int64
	Total    time.Duration
}

type featureCounters struct {
	computes atomic.Int64
	failures atomic.Int64
	nanos    atomic.Int64
}

// ComputeStatsExtension counts compute function calls per feature. Cache
// hits never reach Wrap, so the counts show how often memoization missed.
type ComputeStatsExtension struct {
	features.BaseExtension
	counters sync.Map // features.FeatureRef -> *featureCounters
}

func NewComputeStatsExtension() *ComputeStatsExtension {
	return &ComputeStatsExtension{
		BaseExtension: features.NewBaseExtension("compute-stats"),
	}
}

func (e *ComputeStatsExtension) Wrap(ctx context.Context, next func() (any, error), op *features.Operation) (any, error) {
	if op.Kind != features.OpResolve {
		return next()
	}

	start := time.Now()
	result, err := next()

	c := e.counter(features.FeatureRef{
		EntityType: op.Feature.EntityType().Name(),
		Feature:    op.Feature.Name(),
	})
	c.computes.Add(1)
	c.nanos.Add(int64(time.Since(start)))
	if err != nil {
		c.failures.Add(1)
	}
	return result, err
}

func (e *ComputeStatsExtension) counter(ref features.FeatureRef) *featureCounters {
	if c, ok := e.counters.Load(ref); ok {
		return c.(*featureCounters)
	}
	c, _ := e.counters.LoadOrStore(ref, &featureCounters{})
	return c.(*featureCounters)
}

// Computes returns how many times the feature's compute function ran
func (e *ComputeStatsExtension) Computes(entityType, feature string) int64 {
	c, ok := e.counters.Load(features.FeatureRef{EntityType: entityType, Feature: feature})
	if !ok {
		return 0
	}
	return c.(*featureCounters).computes.Load()
}

func (e *ComputeStatsExtension) Failures(entityType, feature string) int64 {
	c, ok := e.counters.Load(features.FeatureRef{EntityType: entityType, Feature: feature})
	if !ok {
		return 0
	}
	return c.(*featureCounters).failures.Load()
}

// Snapshot copies the current counters
func (e *ComputeStatsExtension) Snapshot() map[features.FeatureRef]FeatureStats {
	out := make(map[features.FeatureRef]FeatureStats)
	e.counters.Range(func(k, v any) bool {
		c := v.(*featureCounters)
		out[k.(features.FeatureRef)] = FeatureStats{
			Computes: c.computes.Load(),
			Failures: c.failures.Load(),
			Total:    time.Duration(c.nanos.Load()),
		}
		return true
	})
	return out
}
