// Package solver wraps the CP-SAT solver behind the narrow surface the
// model package needs: AddBoolVar, AddIntVar,
// AddLinear, AddReifiedImplication, AddMaxEquality, and Solve. Keeping
// every cpmodel import inside this package means internal/model only ever
// talks to solver.BoolVar/solver.IntVar/solver.Adapter, so the model's
// constraint logic can be read (and tested) without knowing which CP-SAT
// binding sits underneath.
package solver

import (
	"context"
	"fmt"
	"time"

	"github.com/golang/glog"
	"github.com/google/or-tools/ortools/sat/go/cpmodel"
)

// Status mirrors the solve outcome categories a caller needs to branch on.
type Status int

const (
	StatusUnknown Status = iota
	StatusOptimal
	StatusFeasible
	StatusInfeasible
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "optimal"
	case StatusFeasible:
		return "feasible"
	case StatusInfeasible:
		return "infeasible"
	default:
		return "unknown"
	}
}

// BoolVar and IntVar are re-exported rather than wrapped: the builder
// methods below are the only place a caller needs to distinguish them
// from plain values.
type (
	BoolVar = cpmodel.BoolVar
	IntVar  = cpmodel.IntVar
)

// Op enumerates the comparison operators AddLinear and
// AddReifiedImplication accept.
type Op int

const (
	OpEqual Op = iota
	OpLessOrEqual
	OpGreaterOrEqual
	OpNotEqual
)

// Adapter is a thin façade over cpmodel.CpModelBuilder.
type Adapter struct {
	builder *cpmodel.CpModelBuilder
}

// New creates an empty model builder.
func New() *Adapter {
	return &Adapter{builder: cpmodel.NewCpModelBuilder()}
}

// AddBoolVar creates a named Boolean decision variable.
func (a *Adapter) AddBoolVar(name string) BoolVar {
	return a.builder.NewBoolVar().WithName(name)
}

// AddIntVar creates a named integer variable with an inclusive domain.
func (a *Adapter) AddIntVar(name string, lowerBound, upperBound int64) IntVar {
	return a.builder.NewIntVar(lowerBound, upperBound).WithName(name)
}

// Sum builds Σ vars as a LinearExpr, the shape every constraint in
// internal/model reduces to (workload totals, daily load, slot-category
// indicators).
func (a *Adapter) Sum(vars ...BoolVar) cpmodel.LinearExpr {
	expr := cpmodel.NewLinearExpr()
	for _, v := range vars {
		expr.Add(v)
	}
	return expr
}

// AddLinear posts `Σ vars Op constant` unconditionally.
func (a *Adapter) AddLinear(vars []BoolVar, op Op, constant int64) {
	a.post(a.Sum(vars...), op, constant)
}

// AddReifiedImplication posts the half-reified constraint
// `indicator == 1 ⇒ (Σ vars Op constant)`, the default encoding used
// throughout this package; full reification is reserved for
// usesCat's two-directional derivation, built directly with AddBoolOr.
func (a *Adapter) AddReifiedImplication(indicator BoolVar, vars []BoolVar, op Op, constant int64) {
	a.postReified([]BoolVar{indicator}, a.Sum(vars...), op, constant)
}

// AddReifiedImplicationAll is AddReifiedImplication with a conjunction of
// antecedent literals: `(indicators[0] ∧ indicators[1] ∧ ...) ⇒ (Σ vars
// Op constant)`.
func (a *Adapter) AddReifiedImplicationAll(indicators []BoolVar, vars []BoolVar, op Op, constant int64) {
	a.postReified(indicators, a.Sum(vars...), op, constant)
}

// AddReifiedIntEquality posts `(indicators[0] ∧ ...) ⇒ target == value`.
func (a *Adapter) AddReifiedIntEquality(indicators []BoolVar, target IntVar, value int64) {
	a.postReified(indicators, target, OpEqual, value)
}

// AddReifiedIntNotEqual posts `(indicators[0] ∧ ...) ⇒ target != value`.
func (a *Adapter) AddReifiedIntNotEqual(indicators []BoolVar, target IntVar, value int64) {
	a.postReified(indicators, target, OpNotEqual, value)
}

func (a *Adapter) post(expr cpmodel.LinearArgument, op Op, constant int64) {
	target := cpmodel.NewConstant(constant)
	switch op {
	case OpEqual:
		a.builder.AddEquality(expr, target)
	case OpLessOrEqual:
		a.builder.AddLessOrEqual(expr, target)
	case OpGreaterOrEqual:
		a.builder.AddGreaterOrEqual(expr, target)
	case OpNotEqual:
		a.builder.AddNotEqual(expr, target)
	}
}

func (a *Adapter) postReified(indicators []BoolVar, expr cpmodel.LinearArgument, op Op, constant int64) {
	target := cpmodel.NewConstant(constant)
	var constraint cpmodel.Constraint
	switch op {
	case OpEqual:
		constraint = a.builder.AddEquality(expr, target)
	case OpLessOrEqual:
		constraint = a.builder.AddLessOrEqual(expr, target)
	case OpGreaterOrEqual:
		constraint = a.builder.AddGreaterOrEqual(expr, target)
	case OpNotEqual:
		constraint = a.builder.AddNotEqual(expr, target)
	}
	constraint.OnlyEnforceIf(indicators...)
}

// AddBoolOr posts a clause: at least one literal must be true.
func (a *Adapter) AddBoolOr(lits ...BoolVar) {
	a.builder.AddBoolOr(lits...)
}

// AddImplication posts `from ⇒ to`.
func (a *Adapter) AddImplication(from, to BoolVar) {
	a.builder.AddBoolOr(from.Not(), to)
}

// AddReifiedOr derives `target == OR(lits)` (both directions), used for
// teaches[t,d,s] and usesCat[t,d,k], which the model reads as an
// antecedent elsewhere and so needs full reification.
func (a *Adapter) AddReifiedOr(target BoolVar, lits ...BoolVar) {
	for _, lit := range lits {
		a.AddImplication(lit, target)
	}
	clause := make([]BoolVar, 0, len(lits)+1)
	clause = append(clause, target.Not())
	clause = append(clause, lits...)
	a.builder.AddBoolOr(clause...)
}

// AddReifiedAnd derives `target == AND(lits)` (both directions): target
// implies each literal, and the clause (¬lit1 ∨ ... ∨ ¬litN ∨ target)
// makes the conjunction imply target. Used to derive the mutually exclusive slotType
// indicators directly from usesCat without going through slotType.
func (a *Adapter) AddReifiedAnd(target BoolVar, lits ...BoolVar) {
	for _, lit := range lits {
		a.AddImplication(target, lit)
	}
	clause := make([]BoolVar, 0, len(lits)+1)
	for _, lit := range lits {
		clause = append(clause, lit.Not())
	}
	clause = append(clause, target)
	a.builder.AddBoolOr(clause...)
}

// AddMaxEquality posts target == max(vars), used to derive slotType from
// usesCat: the priority rule (Evening > Afternoon > Morning) is a
// max over {0,1,2}-weighted category indicators.
func (a *Adapter) AddMaxEquality(target IntVar, vars ...IntVar) {
	args := make([]cpmodel.LinearArgument, len(vars))
	for i, v := range vars {
		args[i] = v
	}
	a.builder.AddMaxEquality(target, args)
}

// AddAtMostOne posts Σ lits <= 1.
func (a *Adapter) AddAtMostOne(lits ...BoolVar) {
	a.builder.AddAtMostOne(lits...)
}

// Result carries a completed solve's status and, if successful, the
// solution values.
type Result struct {
	Status   Status
	response *cpmodel.CpSolverResponse
}

// BoolValue reads a solved Boolean. Only meaningful when Status is
// Optimal or Feasible.
func (r Result) BoolValue(v BoolVar) bool {
	return cpmodel.SolutionBooleanValue(r.response, v)
}

// IntValue reads a solved integer variable.
func (r Result) IntValue(v IntVar) int64 {
	return cpmodel.SolutionIntegerValue(r.response, v)
}

// Solve invokes the solver with a wall-clock budget. If ctx carries a
// deadline earlier than timeLimit, the deadline wins.
//
// The underlying CP-SAT solve call is not itself cancellable from this
// binding surface, so the budget is enforced by racing it against a
// timer: if the solver has not returned by the deadline, Solve returns
// StatusUnknown (surfaced by the pipeline as a Timeout) and the solver
// goroutine is left to finish in the background: exceeding the budget
// yields Unknown rather than blocking indefinitely, without requiring
// control the library does not expose.
func (a *Adapter) Solve(ctx context.Context, timeLimit time.Duration) (Result, error) {
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeLimit {
			timeLimit = remaining
		}
	}
	if timeLimit <= 0 {
		return Result{Status: StatusUnknown}, nil
	}

	model, err := a.builder.Model()
	if err != nil {
		return Result{}, fmt.Errorf("instantiate cp-sat model: %w", err)
	}

	type outcome struct {
		response *cpmodel.CpSolverResponse
		err      error
	}
	done := make(chan outcome, 1)
	go func() {
		response, err := cpmodel.SolveCpModel(model)
		done <- outcome{response: response, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			glog.Errorf("cp-sat solve failed: %v", o.err)
			return Result{}, o.err
		}
		return Result{Status: statusFromResponse(o.response), response: o.response}, nil
	case <-time.After(timeLimit):
		return Result{Status: StatusUnknown}, nil
	}
}

func statusFromResponse(response *cpmodel.CpSolverResponse) Status {
	switch response.GetStatus().String() {
	case "OPTIMAL":
		return StatusOptimal
	case "FEASIBLE":
		return StatusFeasible
	case "INFEASIBLE":
		return StatusInfeasible
	default:
		return StatusUnknown
	}
}
