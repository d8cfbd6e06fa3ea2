// Package resolver takes a manifest, lazily expands the dependency graph
// via a descriptor fetcher, encodes it as a Boolean formula, delegates to
// a SAT engine, and returns a flat selected set of coordinates.
package resolver

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/DuckyScr/jpkg"
	"github.com/DuckyScr/jpkg/internal/coordinate"
	"github.com/DuckyScr/jpkg/internal/repoclient"
)

// DescriptorFetchFunc fetches and parses coord's remote descriptor. A
// synthetic implementation is how tests construct graphs that force UNSAT
// without a live remote repo.
type DescriptorFetchFunc func(ctx context.Context, coord coordinate.Coordinate) (*repoclient.Descriptor, error)

// Resolver resolves a Manifest's transitive dependency graph into a
// SelectedSet, per the seed/expand/solve algorithm.
type Resolver struct {
	fetch DescriptorFetchFunc
	// Dedupe, when true, applies an optional post-solve tie-break pass,
	// keeping the highest string-sorted version per group:artifact.
	// Default false preserves the over-selecting behavior below.
	Dedupe bool
	// Prefetch, when true, fetches descriptors for a newly-discovered
	// expansion frontier concurrently before feeding clauses into the
	// single-threaded SAT accumulator. Ordering of clause insertion does
	// not affect the model, so this is safe.
	Prefetch bool
	// injectConflict, when set, runs against the built formula before it
	// is solved. The descriptor-driven encoding (unit clauses plus
	// parent->child implications) is Horn-like and always satisfiable on
	// its own, so an UNSAT formula cannot arise from any live descriptor
	// graph; this hook is how tests construct one anyway, matching the
	// "synthetic repo client forces UNSAT" scenario. Unexported: only
	// reachable from within this package's tests.
	injectConflict func(*formula)

	// directDeps holds each coordinate's filtered direct dependencies, as
	// last populated by a successful Resolve call. Consulted by
	// DependencyLookup.
	directDeps map[string][]coordinate.Coordinate
}

// New returns a Resolver that fetches descriptors with fetch.
func New(fetch DescriptorFetchFunc) *Resolver {
	return &Resolver{fetch: fetch}
}

// formula is the accumulated SAT encoding of a dependency graph: the
// solver plus the bidirectional variable<->coordinate mapping needed to
// decode a satisfying assignment back into coordinates. Split out from
// Resolve so tests can build one, inject clauses a live descriptor graph
// could never produce (this encoding is Horn-like and always
// satisfiable on its own), and solve it directly.
type formula struct {
	sat    *satSolver
	vars   map[string]Var
	coords map[Var]coordinate.Coordinate
	// deps records each coordinate's filtered direct dependencies as they
	// are discovered during expansion, keyed by canonical coordinate
	// string.
	deps map[string][]coordinate.Coordinate
}

func (f *formula) varFor(c coordinate.Coordinate) (Var, bool) {
	key := c.String()
	if v, ok := f.vars[key]; ok {
		return v, false
	}
	v := f.sat.newVar()
	f.vars[key] = v
	f.coords[v] = c
	return v, true
}

// buildFormula runs the seed/expand steps of the algorithm (1-4), encoding
// seeds and their transitive closure as unit and implication clauses
// without solving. No mutual-exclusion clause is ever emitted between
// distinct versions of the same group:artifact, so the model may
// over-select. A descriptor-fetch failure is treated as "no transitive
// dependencies" for that coordinate.
func (r *Resolver) buildFormula(ctx context.Context, seeds []coordinate.Coordinate) (*formula, error) {
	f := &formula{
		sat:    newSATSolver(),
		vars:   make(map[string]Var),
		coords: make(map[Var]coordinate.Coordinate),
		deps:   make(map[string][]coordinate.Coordinate),
	}

	// 1. Seed: each manifest dependency is mandatory.
	frontier := make([]coordinate.Coordinate, 0, len(seeds))
	for _, c := range seeds {
		v, isNew := f.varFor(c)
		f.sat.addClause(Pos(v))
		if isNew {
			frontier = append(frontier, c)
		}
	}

	// 2. Expand: BFS over the frontier, fetching descriptors (optionally
	// prefetched in parallel) and emitting implication clauses. Each
	// coordinate is visited at most once; termination follows because the
	// set of reachable coordinates is finite and variables are keyed by
	// canonical coordinate string.
	for len(frontier) > 0 {
		descriptors, err := r.fetchFrontier(ctx, frontier)
		if err != nil {
			return nil, err
		}

		var next []coordinate.Coordinate
		for i, c := range frontier {
			desc := descriptors[i]
			if desc == nil {
				continue
			}

			parentVar := f.vars[c.String()]
			var direct []coordinate.Coordinate
			for _, dep := range desc.Dependencies {
				if dep.IsTestScope() {
					continue
				}
				if dep.Version == "" || dep.HasInterpolation() {
					continue
				}

				depCoord, err := coordinate.New(dep.Group, dep.Artifact, dep.Version)
				if err != nil {
					continue
				}

				direct = append(direct, depCoord)
				depVar, isNew := f.varFor(depCoord)
				f.sat.addClause(Neg(parentVar), Pos(depVar))
				if isNew {
					next = append(next, depCoord)
				}
			}
			f.deps[c.String()] = direct
		}
		frontier = next
	}

	return f, nil
}

// Resolve runs the seed/expand/solve algorithm over seeds (the manifest's
// root coordinates) and returns the selected set of coordinates.
func (r *Resolver) Resolve(ctx context.Context, seeds []coordinate.Coordinate) ([]coordinate.Coordinate, error) {
	f, err := r.buildFormula(ctx, seeds)
	if err != nil {
		return nil, err
	}
	if r.injectConflict != nil {
		r.injectConflict(f)
	}

	assign, ok := f.sat.solve()
	if !ok {
		return nil, &jpkg.UnsatisfiableError{}
	}
	r.directDeps = f.deps

	var selected []coordinate.Coordinate
	for v, c := range f.coords {
		if val, known := assign.valueOf(Pos(v)); known && val {
			selected = append(selected, c)
		}
	}

	sort.Slice(selected, func(i, j int) bool { return selected[i].String() < selected[j].String() })

	if r.Dedupe {
		selected = dedupe(selected)
	}
	return selected, nil
}

// DependencyLookup returns a function mapping a coordinate to its direct
// dependencies, as discovered by the most recent successful Resolve call.
// The returned function is suitable for installer.Installer.Dependencies.
func (r *Resolver) DependencyLookup() func(coordinate.Coordinate) []coordinate.Coordinate {
	return func(c coordinate.Coordinate) []coordinate.Coordinate {
		return r.directDeps[c.String()]
	}
}

// fetchFrontier resolves descriptors for every coordinate in frontier,
// positionally aligned with it; a nil entry means the fetch failed and
// should be treated as "no transitive dependencies." Parallel prefetch is
// opt-in via Resolver.Prefetch.
func (r *Resolver) fetchFrontier(ctx context.Context, frontier []coordinate.Coordinate) ([]*repoclient.Descriptor, error) {
	descriptors := make([]*repoclient.Descriptor, len(frontier))

	if !r.Prefetch {
		for i, c := range frontier {
			d, err := r.fetch(ctx, c)
			if err != nil {
				descriptors[i] = nil
				continue
			}
			descriptors[i] = d
		}
		return descriptors, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, c := range frontier {
		i, c := i, c
		g.Go(func() error {
			d, err := r.fetch(gctx, c)
			if err != nil {
				// A fetch failure is "no transitive dependencies," never a
				// fatal resolver error.
				return nil
			}
			descriptors[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return descriptors, nil
}

// dedupe applies the optional tie-break pass: exactly one version per
// (group, artifact), keeping the highest string-sorted version.
func dedupe(coords []coordinate.Coordinate) []coordinate.Coordinate {
	best := make(map[string]coordinate.Coordinate)
	for _, c := range coords {
		key := c.Unversioned()
		if cur, ok := best[key]; !ok || c.Version > cur.Version {
			best[key] = c
		}
	}

	out := make([]coordinate.Coordinate, 0, len(best))
	for _, c := range best {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
