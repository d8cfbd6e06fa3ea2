package resolver

// A small DPLL-style satisfiability solver, hardcoded to the needs of this
// package's dependency selection problem: Horn-ish formulas made of a unit
// clause per root dependency plus binary implication clauses (parent ->
// child) emitted during graph expansion. No production SAT package
// appears anywhere in this codebase's retrieved reference corpus, so this
// is implemented directly rather than wired to a library; see DESIGN.md.

// Var is a boolean variable identifier, indexing into the coordinate map
// the caller maintains alongside the solver.
type Var int

// Lit is a literal: a variable together with its polarity.
type Lit struct {
	V        Var
	Positive bool
}

// Pos returns the positive literal for v.
func Pos(v Var) Lit { return Lit{V: v, Positive: true} }

// Neg returns the negative literal for v.
func Neg(v Var) Lit { return Lit{V: v, Positive: false} }

type clause []Lit

// satSolver is a CDCL-class (here: DPLL with unit propagation and
// chronological backtracking) constraint solver over a small, incrementally
// built clause database.
type satSolver struct {
	numVars int
	clauses []clause
}

func newSATSolver() *satSolver {
	return &satSolver{}
}

func (s *satSolver) newVar() Var {
	v := Var(s.numVars)
	s.numVars++
	return v
}

func (s *satSolver) addClause(lits ...Lit) {
	c := make(clause, len(lits))
	copy(c, lits)
	s.clauses = append(s.clauses, c)
}

// assignment is nil (unassigned), true, or false per variable index.
type assignment []*bool

func (a assignment) valueOf(l Lit) (val bool, known bool) {
	p := a[l.V]
	if p == nil {
		return false, false
	}
	if l.Positive {
		return *p, true
	}
	return !*p, true
}

// solve runs unit propagation to a fixed point, then branches on the first
// unassigned variable, trying true before false, backtracking on conflict.
// It returns the satisfying assignment and true on SAT, or nil and false
// on UNSAT.
func (s *satSolver) solve() (assignment, bool) {
	a := make(assignment, s.numVars)
	return s.search(a)
}

func (s *satSolver) search(a assignment) (assignment, bool) {
	a, ok := propagate(s.clauses, a)
	if !ok {
		return nil, false
	}

	branchVar, done := firstUnassigned(a)
	if done {
		return a, true
	}

	for _, try := range [2]bool{true, false} {
		next := cloneAssignment(a)
		v := try
		next[branchVar] = &v
		if result, ok := s.search(next); ok {
			return result, true
		}
	}
	return nil, false
}

func firstUnassigned(a assignment) (Var, bool) {
	for i, p := range a {
		if p == nil {
			return Var(i), false
		}
	}
	return 0, true
}

func cloneAssignment(a assignment) assignment {
	out := make(assignment, len(a))
	copy(out, a)
	return out
}

// propagate applies unit propagation to a fixed point. It returns the
// extended assignment, or ok=false if a conflict (empty unsatisfied
// clause) is derived.
func propagate(clauses []clause, a assignment) (assignment, bool) {
	a = cloneAssignment(a)
	changed := true
	for changed {
		changed = false
		for _, c := range clauses {
			status, unit, sat := evalClause(c, a)
			if sat {
				continue
			}
			if status == conflict {
				return nil, false
			}
			if status == unitClause {
				v := unit.Positive
				a[unit.V] = &v
				changed = true
			}
		}
	}
	return a, true
}

type clauseStatus int

const (
	satisfiedOrUnresolved clauseStatus = iota
	unitClause
	conflict
)

// evalClause reports the clause's status against the partial assignment:
// satisfied (sat=true), a single remaining unassigned literal to force
// (status=unitClause, unit set), a conflict (every literal false,
// status=conflict), or otherwise unresolved (more than one unassigned
// literal remains).
func evalClause(c clause, a assignment) (status clauseStatus, unit Lit, sat bool) {
	var unresolved []Lit
	for _, l := range c {
		val, known := a.valueOf(l)
		if known {
			if val {
				return satisfiedOrUnresolved, Lit{}, true
			}
			continue
		}
		unresolved = append(unresolved, l)
	}

	switch len(unresolved) {
	case 0:
		return conflict, Lit{}, false
	case 1:
		return unitClause, unresolved[0], false
	default:
		return satisfiedOrUnresolved, Lit{}, false
	}
}
