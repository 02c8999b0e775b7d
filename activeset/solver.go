// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package activeset

import (
	"math"

	"github.com/curioloop/quadprog/sparse"
)

// qpSolver drives the active-set iteration of a single solve: the solver
// spec is shared and read-only, workspace and data are owned by this call.
//
// Each round evaluates the iterate, decides between termination,
// feasibility restoration and a Newton step on the current active set, and
// applies the ratio-tested step. Terminal states always leave the current
// iterate in the workspace; there is no "no solution" outcome.
type qpSolver struct {
	spec *Solver
	work *Workspace
	data *Data
	log  *Logger

	maxpr, maxdu float64
	warn         []string
}

func (qs *qpSolver) lbx(i int) float64 { return bnd(qs.data.LbX, i) }
func (qs *qpSolver) ubx(i int) float64 { return bnd(qs.data.UbX, i) }
func (qs *qpSolver) lba(i int) float64 { return bnd(qs.data.LbA, i) }
func (qs *qpSolver) uba(i int) float64 { return bnd(qs.data.UbA, i) }

func (qs *qpSolver) warning(msg string) {
	qs.warn = append(qs.warn, msg)
	if qs.log.enable(LogIter) {
		qs.log.log("Warning: %s\n", msg)
	}
}

// initActiveSet applies the warm start and decides the initial set
// membership: an inequality pair (lb ≠ ub) starts inactive, an equality
// pair starts active on its analytically binding side, with the multiplier
// nudged off zero so the sign survives.
func (qs *qpSolver) initActiveSet() {
	s, w := qs.spec, qs.work
	for i := 0; i < s.n; i++ {
		lb, ub := qs.lbx(i), qs.ubx(i)
		switch {
		case lb != ub:
			w.signX[i], w.lamX[i] = inactive, zero
		case w.xk[i] <= lb:
			w.signX[i], w.lamX[i] = lowerActive, math.Min(w.lamX[i], -dmin)
		default:
			w.signX[i], w.lamX[i] = upperActive, math.Max(w.lamX[i], dmin)
		}
	}
	for i := 0; i < s.m; i++ {
		lb, ub := qs.lba(i), qs.uba(i)
		switch {
		case lb != ub:
			w.signA[i], w.lamA[i] = inactive, zero
		case w.gk[i] <= lb:
			w.signA[i], w.lamA[i] = lowerActive, math.Min(w.lamA[i], -dmin)
		default:
			w.signA[i], w.lamA[i] = upperActive, math.Max(w.lamA[i], dmin)
		}
	}
}

func (qs *qpSolver) mainLoop() Status {

	s, w, d := qs.spec, qs.work, qs.data
	n, m := s.n, s.m
	log := qs.log

	// Pass initial guess
	warmCopy(w.xk, d.X0)
	warmCopy(w.lamX, d.LamX0)
	warmCopy(w.lamA, d.LamA0)

	qs.assembleKKT()

	// Constraint evaluation at the initial point
	dzero(w.gk)
	sparse.MatVec(d.A, s.A, w.xk, w.gk, false)

	qs.initActiveSet()

	w.iter = 0
	w.newActive = true

	res := w.step[:n]
	for {
		if log.enable(LogVerbose) {
			log.vector("Current xk", w.xk)
			log.vector("Current gk", w.gk)
			log.vector("Current lam_xk", w.lamX)
			log.vector("Current lam_ak", w.lamA)
		}

		// Recalculate g
		dzero(w.gk)
		sparse.MatVec(d.A, s.A, w.xk, w.gk, false)

		// Gradient of the Lagrangian: res = 𝐠 + 𝐇𝐱 + 𝐀ᵀλ𝐚
		copy(res, d.G)
		sparse.MatVec(d.H, s.H, w.xk, res, false)
		sparse.MatVec(d.A, s.A, w.lamA, res, true)

		// Recalculate the active multiplier magnitudes without changing
		// their sign
		for i := 0; i < n; i++ {
			switch w.signX[i] {
			case upperActive:
				w.lamX[i] = math.Max(-res[i], dmin)
			case lowerActive:
				w.lamX[i] = math.Min(-res[i], -dmin)
			}
		}

		// Calculate cost
		w.fk = sparse.Bilin(d.H, s.H, w.xk, w.xk)/2 + ddot(n, w.xk, d.G)

		// Look for the largest bound violation
		maxpr, imaxpr := zero, -1
		for i := 0; i < n; i++ {
			lb, ub := qs.lbx(i), qs.ubx(i)
			if w.xk[i] > ub+maxpr {
				maxpr, imaxpr = w.xk[i]-ub, i
			} else if w.xk[i] < lb-maxpr {
				maxpr, imaxpr = lb-w.xk[i], i
			}
		}
		for i := 0; i < m; i++ {
			lb, ub := qs.lba(i), qs.uba(i)
			if w.gk[i] > ub+maxpr {
				maxpr, imaxpr = w.gk[i]-ub, n+i
			} else if w.gk[i] < lb-maxpr {
				maxpr, imaxpr = lb-w.gk[i], n+i
			}
		}

		// Calculate dual infeasibility
		maxdu, imaxdu := zero, -1
		for i := 0; i < n; i++ {
			if du := math.Abs(res[i] + w.lamX[i]); du > maxdu {
				maxdu, imaxdu = du, i
			}
		}

		qs.maxpr, qs.maxdu = maxpr, maxdu
		prFeasible := maxpr < s.Stop.PrimalTolerance
		duFeasible := maxdu < s.Stop.DualTolerance
		success := prFeasible && duFeasible

		// The active set stopped changing without reaching optimality:
		// try to repair the iterate before giving up
		if !success && !w.newActive {
			if !prFeasible {
				if qs.restorePrimal(imaxpr) {
					continue
				}
				qs.warning("failed to restore primal feasibility")
				return Infeasible
			}
			if qs.restoreDual(imaxdu, res) {
				continue
			}
			qs.warning("failed to restore dual feasibility")
			return Infeasible
		}

		if log.enable(LogIter) {
			log.log("Iteration %d: fk=%g, |pr|=%g, |du|=%g\n", w.iter, w.fk, maxpr, maxdu)
		}

		// Terminate at a stationary point, successfully or with soft
		// warnings: the iterate is still usable
		if success || !w.newActive {
			if !prFeasible {
				qs.warning("primal tolerance not met")
			}
			if !duFeasible {
				qs.warning("dual tolerance not met")
			}
			if success {
				return Optimal
			}
			return Stationary
		}

		// Start new iteration
		w.iter++
		if w.iter == s.Stop.MaxIterations {
			qs.warning("maximum number of iterations reached")
			return ExceedMaxIter
		}
		w.newActive = false

		qs.kktResidual()
		if log.enable(LogVerbose) {
			log.vector("KKT residual", w.step)
		}

		qs.modifyKKT()
		if log.enable(LogVerbose) {
			log.matrix("KKT (modified)", w.kktd, s.kktd)
		}

		qs.solveStep()
		qs.dualStep()
		if log.enable(LogVerbose) {
			log.vector("dx", w.step[:n])
			log.vector("dg", w.dg)
			log.vector("dlam_x", w.dlamX)
			log.vector("dlam_a", w.step[n:])
		}

		tau := qs.ratioTest()
		if log.enable(LogVerbose) {
			log.log("tau = %g\n", tau)
		}
		if tau == zero {
			continue // no step to take
		}
		qs.applyStep(tau)
	}
}

// restorePrimal adds the most violated bound to the active set; it fails
// when that bound is already active, which means the constraints are
// mutually infeasible as far as this method can tell.
func (qs *qpSolver) restorePrimal(imax int) bool {
	s, w := qs.spec, qs.work
	if imax < 0 {
		return false
	}
	if imax < s.n {
		i := imax
		if w.signX[i] != inactive {
			return false
		}
		switch {
		case w.xk[i] < qs.lbx(i):
			w.signX[i], w.lamX[i] = lowerActive, -dmin
		case w.xk[i] > qs.ubx(i):
			w.signX[i], w.lamX[i] = upperActive, dmin
		default:
			return false
		}
	} else {
		i := imax - s.n
		if w.signA[i] != inactive {
			return false
		}
		switch {
		case w.gk[i] < qs.lba(i):
			w.signA[i], w.lamA[i] = lowerActive, -dmin
		case w.gk[i] > qs.uba(i):
			w.signA[i], w.lamA[i] = upperActive, dmin
		default:
			return false
		}
	}
	w.newActive = true
	return true
}

// restoreDual drops one redundant active constraint to release the worst
// stationarity residual: among the active bounds acting on that variable
// it greedily picks the largest coefficient whose multiplier sign can
// cancel the residual. The variable's own bound competes with implicit
// coefficient one.
func (qs *qpSolver) restoreDual(imax int, res []float64) bool {
	s, w, d := qs.spec, qs.work, qs.data
	if imax < 0 {
		return false
	}

	// A positive residual needs a negative left-hand side to cancel
	negLHS := res[imax]+w.lamX[imax] > zero

	bestA, ibest := zero, -1
	if w.signX[imax] != inactive && negLHS == (w.signX[imax] == upperActive) {
		bestA, ibest = one, imax
	}
	colind, row := s.A.Colind(), s.A.Row()
	for k := colind[imax]; k < colind[imax+1]; k++ {
		i := row[k]
		if w.signA[i] != inactive && math.Abs(d.A[k]) > bestA {
			negLambda := negLHS == (d.A[k] > zero)
			if negLambda == (w.signA[i] == upperActive) {
				bestA, ibest = math.Abs(d.A[k]), s.n+i
			}
		}
	}
	if ibest < 0 {
		return false
	}
	if ibest < s.n {
		w.signX[ibest], w.lamX[ibest] = inactive, zero
	} else {
		w.signA[ibest-s.n], w.lamA[ibest-s.n] = inactive, zero
	}
	w.newActive = true
	return true
}

// solveStep factorizes the modified KKT matrix against the precomputed
// symbolic structure and solves for the negated residual in place.
// Non-finite components of a rank-deficient solve are zeroed so the
// iteration continues instead of failing the whole solve.
func (qs *qpSolver) solveStep() {
	s, w := qs.spec, qs.work
	s.sym.Factor(w.kktd, w.v, w.r, w.beta, w.qrw)
	dscal(s.n+s.m, -one, w.step)
	s.sym.Solve(w.v, w.r, w.beta, w.step, w.qrw)
	for i, v := range w.step {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			w.step[i] = zero
		}
	}
}

// dualStep derives the change of the Lagrangian gradient and of the
// constraint values along the primal-dual step:
// dλ𝐱 = -(𝐇·d𝐱 + 𝐀ᵀ·dλ𝐚) and d𝐠 = 𝐀·d𝐱.
func (qs *qpSolver) dualStep() {
	s, w, d := qs.spec, qs.work, qs.data
	dx := w.step[:s.n]
	dzero(w.dlamX)
	sparse.MatVec(d.H, s.H, dx, w.dlamX, false)
	sparse.MatVec(d.A, s.A, w.step[s.n:], w.dlamX, true)
	dscal(s.n, -one, w.dlamX)
	dzero(w.dg)
	sparse.MatVec(d.A, s.A, dx, w.dg, false)
}

// ratioTest finds the largest feasible step length τ ≤ 1: an inactive
// bound blocks where the trial point would cross it, an active bound
// blocks where its multiplier would change sign. Every blocker records its
// τ and the sign it would induce; applyStep flips the records that match
// the final τ.
func (qs *qpSolver) ratioTest() float64 {
	s, w := qs.spec, qs.work
	n, m := s.n, s.m

	tau := one
	dfill(n+m, -one, w.tau)

	for i := 0; i < n; i++ {
		if w.signX[i] == inactive {
			// Check for primal blocking bounds
			lb, ub := qs.lbx(i), qs.ubx(i)
			trial := w.xk[i] + tau*w.step[i]
			if trial <= lb && w.xk[i] > lb {
				tau = (lb - w.xk[i]) / w.step[i]
				w.tau[i], w.tsign[i] = tau, lowerActive
			} else if trial >= ub && w.xk[i] < ub {
				tau = (ub - w.xk[i]) / w.step[i]
				w.tau[i], w.tsign[i] = tau, upperActive
			}
		} else {
			// Check for dual sign changes
			trial := w.lamX[i] + tau*w.dlamX[i]
			if (w.signX[i] == lowerActive && trial >= zero) ||
				(w.signX[i] == upperActive && trial <= zero) {
				tau = -w.lamX[i] / w.dlamX[i]
				w.tau[i], w.tsign[i] = tau, inactive
			}
		}
	}
	for i := 0; i < m; i++ {
		if w.signA[i] == inactive {
			lb, ub := qs.lba(i), qs.uba(i)
			trial := w.gk[i] + tau*w.dg[i]
			if trial < lb && w.gk[i] >= lb {
				tau = (lb - w.gk[i]) / w.dg[i]
				w.tau[n+i], w.tsign[n+i] = tau, lowerActive
			} else if trial > ub && w.gk[i] <= ub {
				tau = (ub - w.gk[i]) / w.dg[i]
				w.tau[n+i], w.tsign[n+i] = tau, upperActive
			}
		} else {
			trial := w.lamA[i] + tau*w.step[n+i]
			if (w.signA[i] == upperActive) != (trial > zero) {
				tau = -w.lamA[i] / w.step[n+i]
				w.tau[n+i], w.tsign[n+i] = tau, inactive
			}
		}
	}

	if s.Tie == TieLowestIndex {
		found := false
		for j := 0; j < n+m; j++ {
			if w.tau[j] == tau {
				if found {
					w.tau[j] = -one
				}
				found = true
			}
		}
	}
	return tau
}

// applyStep advances the primal point and the constraint multipliers by τ
// and flips the set membership recorded by the ratio test. The variable
// multipliers keep only their new sign here; the magnitude is recomputed
// from the stationarity residual at the top of the next round.
func (qs *qpSolver) applyStep(tau float64) {
	s, w := qs.spec, qs.work
	n := s.n

	daxpy(n, tau, w.step, w.xk)

	for i := 0; i < s.m; i++ {
		sg := w.signA[i]
		if w.tau[n+i] == tau {
			w.newActive = true
			sg = w.tsign[n+i]
		}
		w.lamA[i] += tau * w.step[n+i]
		switch sg {
		case lowerActive:
			w.lamA[i] = math.Min(w.lamA[i], -dmin)
		case upperActive:
			w.lamA[i] = math.Max(w.lamA[i], dmin)
		default:
			w.lamA[i] = zero
		}
		w.signA[i] = sg
	}

	for i := 0; i < n; i++ {
		if w.tau[i] == tau {
			w.newActive = true
			w.signX[i] = w.tsign[i]
			w.lamX[i] = float64(w.tsign[i]) * dmin
		}
	}
}

// warmCopy loads an optional warm-start vector, defaulting to zero.
func warmCopy(dst, src []float64) {
	if src == nil {
		dzero(dst)
	} else {
		copy(dst, src)
	}
}
