package graphmatch

import (
	"context"
	"fmt"
	"time"

	"github.com/edgevec/schedcore/model"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// LPProblem is a linear program in the generalized inequality form this
// package works with: maximize c.x subject to A x <= b, 0 <= x <= 1.
// Built fresh for each phase (Phase 1's per-candidate relaxation, Phase
// 4's per-hyperedge relaxation) rather than shared, since the variable
// set changes between phases.
type LPProblem struct {
	c []float64
	a [][]float64
	b []float64
	n int
}

// NewLPProblem constructs an empty problem over n variables.
func NewLPProblem(n int) *LPProblem {
	return &LPProblem{c: make([]float64, n), n: n}
}

// SetObjective sets the maximization coefficient for variable i.
func (p *LPProblem) SetObjective(i int, coef float64) { p.c[i] = coef }

// AddLE appends a row.x <= rhs constraint. coefs must have length n.
func (p *LPProblem) AddLE(coefs []float64, rhs float64) {
	row := make([]float64, p.n)
	copy(row, coefs)
	p.a = append(p.a, row)
	p.b = append(p.b, rhs)
}

// LPSolver abstracts the LP relaxation solve so tests can substitute a
// fake. The gonum-backed implementation below is the production one.
type LPSolver interface {
	Solve(ctx context.Context, p *LPProblem, timeLimit time.Duration) ([]float64, error)
}

// GonumSolver solves LPProblems with gonum's dense-tableau Simplex
// (gonum.org/v1/gonum/optimize/convex/lp), the LP library this codebase
// adopts in place of the original scheduler's embedded solver (no pack
// example ships a dedicated LP/MILP library; gonum is the one third-party
// numerical package several other repos in the pack already depend on).
type GonumSolver struct{}

// Solve maximizes p.c.x subject to p.a x <= p.b and the implicit box
// constraint 0<=x<=1, by converting to gonum's minimize-with-equality-
// constraints standard form: one slack variable per original row, plus
// one slack row per variable enforcing x_i<=1.
//
// gonum's Simplex has no incumbent/anytime API, so timeLimit is enforced
// only via ctx cancellation checked before the call; a cancelled context
// or any Simplex failure is surfaced as model.ErrLPSolverException, which
// callers treat as an empty selection rather than a fatal error.
func (GonumSolver) Solve(ctx context.Context, p *LPProblem, timeLimit time.Duration) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("lp solve: %w", model.ErrLPSolverException)
	}
	if timeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeLimit)
		defer cancel()
	}

	n := p.n
	nRows := len(p.a) + n // capacity rows + one box row per variable
	nCols := n + nRows    // original vars + one slack per row

	a := mat.NewDense(nRows, nCols, nil)
	b := make([]float64, nRows)
	c := make([]float64, nCols)

	for j := 0; j < n; j++ {
		c[j] = -p.c[j] // gonum minimizes; negate to maximize
	}

	row := 0
	for i, coefs := range p.a {
		for j := 0; j < n; j++ {
			a.Set(row, j, coefs[j])
		}
		a.Set(row, n+i, 1)
		b[row] = p.b[i]
		row++
	}
	for j := 0; j < n; j++ {
		a.Set(row, j, 1)
		a.Set(row, n+len(p.a)+j, 1)
		b[row] = 1
		row++
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("lp solve: %w", model.ErrLPSolverException)
	}

	_, x, err := lp.Simplex(c, a, b, 0, nil)
	if err != nil {
		return nil, fmt.Errorf("lp solve: %w: %w", model.ErrLPSolverException, err)
	}

	out := make([]float64, n)
	copy(out, x[:n])
	return out, nil
}
