// Package domain contains the core domain models and business logic for package builds.
package domain

import (
	"container/heap"
	"iter"
	"strings"

	"go.trai.ch/zerr"
)

// Graph represents the dependency graph of a set of declared packages.
// Declaration order is preserved and used to break ordering ties.
type Graph struct {
	packages map[InternedString]*Package
	order    []InternedString
}

// NewGraph creates a new empty Graph.
func NewGraph() *Graph {
	return &Graph{
		packages: make(map[InternedString]*Package),
	}
}

// AddPackage adds a package to the graph.
// It returns an error if a package with the same name already exists.
func (g *Graph) AddPackage(p *Package) error {
	if _, exists := g.packages[p.Name]; exists {
		return zerr.With(zerr.Wrap(ErrPackageAlreadyExists, "duplicate declaration"), "package", p.Name.String())
	}
	g.packages[p.Name] = p
	g.order = append(g.order, p.Name)
	return nil
}

// GetPackage returns the declared package with the given name.
func (g *Graph) GetPackage(name InternedString) (*Package, bool) {
	p, ok := g.packages[name]
	return p, ok
}

// PackageCount returns the number of declared packages.
func (g *Graph) PackageCount() int {
	return len(g.order)
}

// Resolve computes the build order of every declared package that is not
// already installed at its declared version.
//
// A dependency is satisfied when it is part of the plan or installed at any
// version. Anything else fails with ErrMissingDependency. Ties between ready
// packages are broken by declaration order. A cycle fails with
// ErrCyclicDependency naming a node on it.
func (g *Graph) Resolve(installed InstalledSet) (*Plan, error) {
	plan := &Plan{
		index:      make(map[InternedString]int),
		deps:       make(map[InternedString][]InternedString),
		dependents: make(map[InternedString][]InternedString),
	}

	for _, name := range g.order {
		p := g.packages[name]
		if v, ok := installedVersion(installed, name.String()); ok && v == p.Version {
			plan.satisfied = append(plan.satisfied, name.String())
			continue
		}
		plan.index[name] = len(plan.index)
	}

	decl := make([]InternedString, len(plan.index))
	for name, i := range plan.index {
		decl[i] = name
	}

	inDegree := make(map[InternedString]int, len(decl))
	for _, name := range decl {
		p := g.packages[name]
		for _, dep := range p.AllDependencies() {
			if _, pending := plan.index[dep]; pending {
				plan.deps[name] = append(plan.deps[name], dep)
				plan.dependents[dep] = append(plan.dependents[dep], name)
				inDegree[name]++
				continue
			}
			if _, declared := g.packages[dep]; declared {
				continue
			}
			if _, ok := installedVersion(installed, dep.String()); ok {
				continue
			}
			return nil, zerr.With(zerr.With(zerr.Wrap(ErrMissingDependency, "dependency is not declared or installed"),
				"package", name.String()), "dependency", dep.String())
		}
	}

	var ready ReadyQueue
	for _, name := range decl {
		if inDegree[name] == 0 {
			ready.Push(plan.index[name])
		}
	}

	plan.order = make([]*Package, 0, len(decl))
	for ready.Len() > 0 {
		name := decl[ready.Pop()]
		plan.order = append(plan.order, g.packages[name])
		for _, dependent := range plan.dependents[name] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				ready.Push(plan.index[dependent])
			}
		}
	}

	if len(plan.order) < len(decl) {
		return nil, buildCycleError(decl, inDegree, plan.deps)
	}

	return plan, nil
}

func installedVersion(installed InstalledSet, name string) (string, bool) {
	if installed == nil {
		return "", false
	}
	return installed.InstalledVersion(name)
}

// buildCycleError follows unresolved dependency edges from the first
// unresolved package until a node repeats, then reports that loop.
func buildCycleError(decl []InternedString, inDegree map[InternedString]int, deps map[InternedString][]InternedString) error {
	var start InternedString
	for _, name := range decl {
		if inDegree[name] > 0 {
			start = name
			break
		}
	}

	seen := make(map[InternedString]int)
	var path []InternedString
	current := start
	for {
		if i, ok := seen[current]; ok {
			path = append(path[i:], current)
			break
		}
		seen[current] = len(path)
		path = append(path, current)
		for _, dep := range deps[current] {
			if inDegree[dep] > 0 {
				current = dep
				break
			}
		}
	}

	names := make([]string, len(path))
	for i, n := range path {
		names[i] = n.String()
	}
	return zerr.With(zerr.With(zerr.Wrap(ErrCyclicDependency, "dependency graph contains a cycle"),
		"package", path[0].String()), "cycle", strings.Join(names, " -> "))
}

// Plan is the resolved build order of a graph.
type Plan struct {
	order      []*Package
	index      map[InternedString]int
	deps       map[InternedString][]InternedString
	dependents map[InternedString][]InternedString
	satisfied  []string
}

// Walk returns an iterator that yields packages in build order.
func (p *Plan) Walk() iter.Seq[*Package] {
	return func(yield func(*Package) bool) {
		for _, pkg := range p.order {
			if !yield(pkg) {
				return
			}
		}
	}
}

// Packages returns the packages in build order.
func (p *Plan) Packages() []*Package {
	out := make([]*Package, len(p.order))
	copy(out, p.order)
	return out
}

// Len returns the number of packages to build.
func (p *Plan) Len() int {
	return len(p.order)
}

// Index returns the declaration position of a planned package, or -1.
func (p *Plan) Index(name InternedString) int {
	if i, ok := p.index[name]; ok {
		return i
	}
	return -1
}

// Dependencies returns the planned packages that name waits for.
func (p *Plan) Dependencies(name InternedString) []InternedString {
	return p.deps[name]
}

// Dependents returns the planned packages that wait for name.
func (p *Plan) Dependents(name InternedString) []InternedString {
	return p.dependents[name]
}

// Satisfied returns the declared packages left out because they are already installed.
func (p *Plan) Satisfied() []string {
	return p.satisfied
}

// ReadyQueue yields declaration indices smallest first.
type ReadyQueue struct {
	h indexHeap
}

// Push adds an index.
func (q *ReadyQueue) Push(i int) { heap.Push(&q.h, i) }

// Pop removes and returns the smallest index.
func (q *ReadyQueue) Pop() int { return heap.Pop(&q.h).(int) }

// Len returns the number of queued indices.
func (q *ReadyQueue) Len() int { return q.h.Len() }

type indexHeap []int

func (h indexHeap) Len() int           { return len(h) }
func (h indexHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h indexHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *indexHeap) Push(x any) { *h = append(*h, x.(int)) }

func (h *indexHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
