package features

import (
	"sort"
	"sync"
)

// FeatureRef names a feature within its entity type.
type FeatureRef struct {
	EntityType string
	Feature    string
}

func refOf(f AnyFeature) FeatureRef {
	return FeatureRef{EntityType: f.EntityType().Name(), Feature: f.Name()}
}

// FeatureGraph tracks declared dependency edges between registered features
type FeatureGraph struct {
	// Adjacency lists in declaration order
	downstream map[FeatureRef][]FeatureRef
	upstream   map[FeatureRef][]FeatureRef
	mu         sync.RWMutex
}

// NewFeatureGraph creates an empty dependency graph
func NewFeatureGraph() *FeatureGraph {
	return &FeatureGraph{
		downstream: make(map[FeatureRef][]FeatureRef),
		upstream:   make(map[FeatureRef][]FeatureRef),
	}
}

// Add records f and an edge from each of its declared dependencies
func (g *FeatureGraph) Add(f AnyFeature) {
	g.mu.Lock()
	defer g.mu.Unlock()

	node := refOf(f)
	if _, ok := g.upstream[node]; !ok {
		g.upstream[node] = nil
	}
	for _, dep := range f.Dependencies() {
		depRef := FeatureRef{EntityType: node.EntityType, Feature: dep}
		g.downstream[depRef] = appendUnique(g.downstream[depRef], node)
		g.upstream[node] = appendUnique(g.upstream[node], depRef)
	}
}

// FindDependents returns every feature that transitively depends on start.
// A dependent for which stop returns true is left out and not traversed; a
// nil stop follows every edge. Traversal is iterative so deep chains cannot
// exhaust the stack.
func (g *FeatureGraph) FindDependents(start FeatureRef, stop func(FeatureRef) bool) []FeatureRef {
	g.mu.RLock()
	defer g.mu.RUnlock()

	stack := make([]FeatureRef, 0, 32)
	stack = append(stack, start)

	dependents := make([]FeatureRef, 0, 32)
	visited := make(map[FeatureRef]bool, 32)

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if visited[current] {
			continue
		}
		visited[current] = true

		if current != start {
			if stop != nil && stop(current) {
				continue
			}
			dependents = append(dependents, current)
		}

		for _, dep := range g.downstream[current] {
			if !visited[dep] {
				stack = append(stack, dep)
			}
		}
	}

	return dependents
}

// GetDirectDependents returns only direct dependents (no recursion)
func (g *FeatureGraph) GetDirectDependents(ref FeatureRef) []FeatureRef {
	g.mu.RLock()
	defer g.mu.RUnlock()

	deps := g.downstream[ref]
	result := make([]FeatureRef, len(deps))
	copy(result, deps)
	return result
}

// GetDependencies returns the declared dependencies of ref
func (g *FeatureGraph) GetDependencies(ref FeatureRef) []FeatureRef {
	g.mu.RLock()
	defer g.mu.RUnlock()

	deps := g.upstream[ref]
	result := make([]FeatureRef, len(deps))
	copy(result, deps)
	return result
}

// FindCycle returns one dependency cycle as a path whose first and last
// elements are equal, or nil when the graph is acyclic. Nodes are visited in
// sorted order so the reported cycle is stable.
func (g *FeatureGraph) FindCycle() []FeatureRef {
	g.mu.RLock()
	defer g.mu.RUnlock()

	const (
		white = iota
		gray
		black
	)

	nodes := make([]FeatureRef, 0, len(g.upstream))
	for n := range g.upstream {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].EntityType != nodes[j].EntityType {
			return nodes[i].EntityType < nodes[j].EntityType
		}
		return nodes[i].Feature < nodes[j].Feature
	})

	color := make(map[FeatureRef]int, len(nodes))
	var path []FeatureRef
	var cycle []FeatureRef

	var visit func(n FeatureRef) bool
	visit = func(n FeatureRef) bool {
		color[n] = gray
		path = append(path, n)
		for _, dep := range g.upstream[n] {
			switch color[dep] {
			case gray:
				for i, p := range path {
					if p == dep {
						cycle = append(append([]FeatureRef{}, path[i:]...), dep)
						return true
					}
				}
			case white:
				if visit(dep) {
					return true
				}
			}
		}
		path = path[:len(path)-1]
		color[n] = black
		return false
	}

	for _, n := range nodes {
		if color[n] == white && visit(n) {
			return cycle
		}
	}
	return nil
}

func appendUnique[T comparable](slice []T, item T) []T {
	for _, existing := range slice {
		if existing == item {
			return slice
		}
	}
	return append(slice, item)
}
