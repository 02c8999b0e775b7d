// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package activeset

import (
	"errors"
	"fmt"
	"math"

	"github.com/curioloop/quadprog/sparse"
)

// Termination specifies the stopping criteria for the solver.
// Zero values select the defaults.
type Termination struct {
	// The iteration stop when the number of iterations reaches limit (default 1000).
	MaxIterations int
	// The largest tolerated bound violation 𝚖𝚊𝚡|𝐱-𝑏𝑛𝑑| (default 1e-8).
	PrimalTolerance float64
	// The largest tolerated stationarity violation 𝚖𝚊𝚡|𝐇𝐱+𝐠+𝐀ᵀλ𝐚+λ𝐱| (default 1e-8).
	DualTolerance float64
}

// TieBreak selects which blocking bounds flip when several reach their
// bound at the same minimal step length. The classical remedy for cycling
// on degenerate problems is a deterministic rule; the historical behavior
// of this method flips every tied bound at once.
type TieBreak int

const (
	// TieAll every bound whose recorded blocking step equals the final
	// step length changes state (historical behavior, default).
	TieAll TieBreak = iota
	// TieLowestIndex only the lowest-index tied bound changes state,
	// scanning variables before constraints (Bland-flavored determinism).
	TieLowestIndex
)

// Problem specifies a QP family by its sparsity structure
//
//	minimize ½ 𝐱ᵀ𝐇𝐱 + 𝐠ᵀ𝐱 subject to 𝒍𝒃𝒙 ≤ 𝐱 ≤ 𝒖𝒃𝒙, 𝒍𝒃𝒂 ≤ 𝐀𝐱 ≤ 𝒖𝒃𝒂
//
// where H must be symmetric positive-semidefinite over its pattern and only
// the numeric values change between solves.
type Problem struct {
	H *sparse.Pattern // n×n Hessian pattern
	A *sparse.Pattern // m×n constraint Jacobian pattern, nil for m = 0
	// Stop condition
	Stop Termination
	// Ratio-test tie handling
	Tie TieBreak
	// SkipInputCheck disables the elementwise lb ≤ ub validation of Solve.
	SkipInputCheck bool
	// Optional diagnostic output
	Log Logger
}

// New analyzes the problem structure and creates a solver: it assembles the
// KKT pattern [[𝐇,𝐀ᵀ],[𝐀,0]], augments its diagonal (the active-set column
// substitution needs an entry on every diagonal) and performs the symbolic
// QR analysis of the result. The solver is immutable and shareable.
func (p *Problem) New() (*Solver, error) {

	stop := p.Stop
	if stop.MaxIterations == 0 {
		stop.MaxIterations = 1000
	}
	if stop.PrimalTolerance == 0 {
		stop.PrimalTolerance = 1e-8
	}
	if stop.DualTolerance == 0 {
		stop.DualTolerance = 1e-8
	}

	h, a := p.H, p.A
	switch {
	case h == nil:
		return nil, errors.New("hessian pattern is required")
	case h.Rows() != h.Cols():
		return nil, fmt.Errorf("hessian pattern %d×%d not square", h.Rows(), h.Cols())
	case a != nil && a.Cols() != h.Cols():
		return nil, fmt.Errorf("jacobian has %d columns, want %d", a.Cols(), h.Cols())
	case stop.MaxIterations < 0:
		return nil, errors.New("max iteration must greater than 0")
	case stop.PrimalTolerance < 0 || math.IsNaN(stop.PrimalTolerance):
		return nil, errors.New("primal tolerance must greater than 0")
	case stop.DualTolerance < 0 || math.IsNaN(stop.DualTolerance):
		return nil, errors.New("dual tolerance must greater than 0")
	case p.Tie != TieAll && p.Tie != TieLowestIndex:
		return nil, errors.New("unknown tie-break policy")
	}

	n := h.Cols()
	if a == nil {
		var err error
		if a, err = sparse.NewPattern(0, n, make([]int, n+1), nil); err != nil {
			return nil, err
		}
	}
	m := a.Rows()

	kkt, err := sparse.KKT(h, a)
	if err != nil {
		return nil, err
	}
	kktd, err := kkt.Union(sparse.Diag(n + m))
	if err != nil {
		return nil, err
	}
	sym, err := sparse.AnalyzeQR(kktd)
	if err != nil {
		return nil, err
	}

	return &Solver{
		qpSpec: qpSpec{
			n: n, m: m,
			Problem: Problem{
				H: h, A: a,
				Stop:           stop,
				Tie:            p.Tie,
				SkipInputCheck: p.SkipInputCheck,
				Log:            p.Log,
			},
		},
		at:   a.Transpose(),
		kkt:  kkt,
		kktd: kktd,
		sym:  sym,
	}, nil
}

// Solver holds the immutable structural analysis of one QP family.
type Solver struct {
	qpSpec
	at        *sparse.Pattern
	kkt, kktd *sparse.Pattern
	sym       *sparse.Symbolic
}

// Data carries the numeric values of one QP instance over the patterns the
// solver was built with. Nil bound slices mean all-zero bounds; ±Inf
// entries mean the bound does not exist. Nil warm-start slices mean a zero
// initial guess.
type Data struct {
	H []float64 // values over the Hessian pattern
	G []float64 // n, linear cost term
	A []float64 // values over the Jacobian pattern
	// Bounds
	LbX, UbX []float64 // n
	LbA, UbA []float64 // m
	// Warm start
	X0, LamX0, LamA0 []float64 // n, n, m
}

// Result contains the final result of one solve.
// A terminal state always carries the current iterate: callers must inspect
// Status and the residuals before trusting X as an optimum.
type Result struct {
	OK      bool      // Whether both tolerances were met.
	F       float64   // Final objective value.
	X       []float64 // Final primal point.
	LamX    []float64 // Multipliers of the variable bounds.
	LamA    []float64 // Multipliers of the linear constraints.
	Summary           // Solve summary.
}

// Summary contains a summary of the solve process.
type Summary struct {
	Status   Status   // Terminal state.
	NumIter  int      // Number of iterations performed.
	Primal   float64  // Largest bound violation at the final iterate.
	Dual     float64  // Largest stationarity violation at the final iterate.
	Warnings []string // Soft convergence diagnostics, empty when Optimal.
}

// Workspace contains the pre-sized scratch of the solve process: one flat
// buffer carved into named sub-slices so no allocation happens inside the
// iteration loop. To avoid race conditions, separate workspaces need to be
// created for each goroutine. But multiple workspaces could share one
// solver.
type Workspace struct {
	n, m int
	qpIter
	kkt, kktd []float64 // KKT values, plain and modified layout
	atv       []float64 // 𝐀ᵀ values
	v, r      []float64 // QR factors
	beta      []float64 // Householder scalings
	qrw       []float64 // QR scratch
	iw        []int     // integer scratch
}

// Init allocates a workspace sized from the solver's sparsity analysis.
func (s *Solver) Init() *Workspace {
	n, m := s.n, s.m
	nm := n + m
	wrk := make([]float64, s.kkt.Nnz()+s.kktd.Nnz()+s.A.Nnz()+
		3*n+3*m+3*nm+s.sym.VNnz()+s.sym.RNnz()+s.sym.ExtRows())
	carve := func(sz int) (b []float64) {
		b, wrk = wrk[:sz:sz], wrk[sz:]
		return b
	}
	sgn := make([]bndSign, n+m+nm)

	w := &Workspace{n: n, m: m}
	w.kkt = carve(s.kkt.Nnz())
	w.kktd = carve(s.kktd.Nnz())
	w.atv = carve(s.A.Nnz())
	w.xk = carve(n)
	w.gk = carve(m)
	w.lamX = carve(n)
	w.lamA = carve(m)
	w.step = carve(nm)
	w.dlamX = carve(n)
	w.dg = carve(m)
	w.tau = carve(nm)
	w.v = carve(s.sym.VNnz())
	w.r = carve(s.sym.RNnz())
	w.beta = carve(nm)
	w.qrw = carve(s.sym.ExtRows())
	w.signX, sgn = sgn[:n:n], sgn[n:]
	w.signA, sgn = sgn[:m:m], sgn[m:]
	w.tsign = sgn
	w.iw = make([]int, max(m, 1))
	return w
}

// Solve runs the active-set iteration on the values d using workspace w.
// It returns an error only for configuration mistakes detected before the
// first iteration; convergence failures surface as Result.Status and
// Summary.Warnings with the best iterate found.
func (s *Solver) Solve(d *Data, w *Workspace) (*Result, error) {

	if w.n != s.n || w.m != s.m {
		panic("workspace dimension not match spec")
	}

	if err := s.checkData(d); err != nil {
		return nil, err
	}

	qs := &qpSolver{spec: s, work: w, data: d, log: &s.Log}
	status := qs.mainLoop()

	x := make([]float64, s.n)
	lamX := make([]float64, s.n)
	lamA := make([]float64, s.m)
	copy(x, w.xk)
	copy(lamX, w.lamX)
	copy(lamA, w.lamA)

	return &Result{
		OK: status == Optimal,
		F:  w.fk,
		X:  x, LamX: lamX, LamA: lamA,
		Summary: Summary{
			Status:   status,
			NumIter:  w.iter,
			Primal:   qs.maxpr,
			Dual:     qs.maxdu,
			Warnings: qs.warn,
		},
	}, nil
}

// checkData validates buffer shapes and, unless disabled, bound ordering.
func (s *Solver) checkData(d *Data) error {
	switch {
	case d == nil:
		return errors.New("data is required")
	case len(d.H) != s.H.Nnz():
		return fmt.Errorf("hessian values length %d, want %d", len(d.H), s.H.Nnz())
	case len(d.G) != s.n:
		return fmt.Errorf("gradient length %d, want %d", len(d.G), s.n)
	case len(d.A) != s.A.Nnz():
		return fmt.Errorf("jacobian values length %d, want %d", len(d.A), s.A.Nnz())
	}
	for _, v := range []struct {
		name string
		x    []float64
		n    int
	}{
		{"lbx", d.LbX, s.n}, {"ubx", d.UbX, s.n},
		{"lba", d.LbA, s.m}, {"uba", d.UbA, s.m},
		{"x0", d.X0, s.n}, {"lam_x0", d.LamX0, s.n}, {"lam_a0", d.LamA0, s.m},
	} {
		if v.x != nil && len(v.x) != v.n {
			return fmt.Errorf("%s length %d, want %d", v.name, len(v.x), v.n)
		}
	}
	if s.SkipInputCheck {
		return nil
	}
	for i := 0; i < s.n; i++ {
		lb, ub := bnd(d.LbX, i), bnd(d.UbX, i)
		if math.IsNaN(lb) || math.IsNaN(ub) || lb > ub {
			return fmt.Errorf("inconsistent variable bounds at %d: [%g,%g]", i, lb, ub)
		}
	}
	for i := 0; i < s.m; i++ {
		lb, ub := bnd(d.LbA, i), bnd(d.UbA, i)
		if math.IsNaN(lb) || math.IsNaN(ub) || lb > ub {
			return fmt.Errorf("inconsistent constraint bounds at %d: [%g,%g]", i, lb, ub)
		}
	}
	return nil
}

// bnd reads a bound vector that may be absent entirely.
func bnd(x []float64, i int) float64 {
	if x == nil {
		return zero
	}
	return x[i]
}
