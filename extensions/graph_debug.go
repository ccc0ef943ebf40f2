package extensions

import (
	"context"
	"fmt"
	"strings"
	"sync"

	features "github.com/pumped-fn/pumped-features"
	"go.uber.org/zap"
)

// GraphDebugExtension logs the dependency tree of a feature whose resolution
// failed, marking each node as resolved, failed or pending.
//
// Usage:
//
//	logger, _ := zap.NewDevelopment()
//	session := features.NewSession(
//	    features.WithExtension(extensions.NewGraphDebugExtension(logger)),
//	)
type GraphDebugExtension struct {
	features.BaseExtension
	logger *zap.Logger

	mu     sync.Mutex
	failed map[features.CacheKey]error
}

// NewGraphDebugExtension creates a new graph debug extension.
func NewGraphDebugExtension(logger *zap.Logger) *GraphDebugExtension {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GraphDebugExtension{
		BaseExtension: features.NewBaseExtension("graph-debug"),
		logger:        logger,
		failed:        make(map[features.CacheKey]error),
	}
}

// Wrap records compute failures so the tree can point at them
func (e *GraphDebugExtension) Wrap(ctx context.Context, next func() (any, error), op *features.Operation) (any, error) {
	result, err := next()

	if err != nil && op.Kind == features.OpResolve {
		e.mu.Lock()
		e.failed[keyOf(op.Entity, op.Feature)] = err
		e.mu.Unlock()
	}

	return result, err
}

// OnError logs the dependency tree when resolution fails
func (e *GraphDebugExtension) OnError(err error, op *features.Operation, session *features.Session) {
	if op.Kind != features.OpResolve || op.Entity == nil || op.Feature == nil {
		return
	}

	e.logger.Error("dependency resolution error",
		zap.String("entity_type", op.Entity.Type().Name()),
		zap.String("entity", op.Entity.Name()),
		zap.String("feature", op.Feature.Name()),
		zap.String("operation", string(op.Kind)),
		zap.Error(err),
		zap.String("dependency_graph", e.FormatTree(op.Entity, op.Feature)),
	)
}

// FormatTree renders feature and its transitive dependencies for entity.
func (e *GraphDebugExtension) FormatTree(entity *features.Entity, feature features.AnyFeature) string {
	var sb strings.Builder
	sb.WriteString(e.label(entity, feature.Name()))
	sb.WriteString("\n")
	e.writeChildren(&sb, entity, feature.Name(), "", map[string]bool{feature.Name(): true})
	return sb.String()
}

func (e *GraphDebugExtension) writeChildren(sb *strings.Builder, entity *features.Entity, name, prefix string, onPath map[string]bool) {
	f, ok := entity.Session().Catalog().Feature(entity.Type(), name)
	if !ok {
		return
	}

	deps := f.Dependencies()
	for i, dep := range deps {
		branch, indent := "├─> ", "│   "
		if i == len(deps)-1 {
			branch, indent = "└─> ", "    "
		}

		label := e.label(entity, dep)
		if onPath[dep] {
			label = dep + " (cycle)"
		}
		sb.WriteString(prefix + branch + label + "\n")

		if onPath[dep] {
			continue
		}
		onPath[dep] = true
		e.writeChildren(sb, entity, dep, prefix+indent, onPath)
		delete(onPath, dep)
	}
}

func (e *GraphDebugExtension) label(entity *features.Entity, name string) string {
	f, ok := entity.Session().Catalog().Feature(entity.Type(), name)
	if !ok {
		return name + " (not registered)"
	}
	if v, cached := entity.Peek(f); cached {
		return fmt.Sprintf("%s ✓ (%s)", name, f.ValueType().Format(v))
	}

	e.mu.Lock()
	err, failed := e.failed[keyOf(entity, f)]
	e.mu.Unlock()
	if failed {
		return fmt.Sprintf("%s ❌ (error: %v)", name, err)
	}
	return name + " (pending)"
}

func keyOf(entity *features.Entity, f features.AnyFeature) features.CacheKey {
	return features.CacheKey{
		EntityType: entity.Type().Name(),
		Feature:    f.Name(),
		Entity:     entity.Name(),
	}
}
