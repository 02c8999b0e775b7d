// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package activeset solves sparse convex quadratic programs
//
//	minimize ½ 𝐱ᵀ𝐇𝐱 + 𝐠ᵀ𝐱 subject to
//	  - 𝒍𝒃𝒙 ≤ 𝐱 ≤ 𝒖𝒃𝒙
//	  - 𝒍𝒃𝒂 ≤ 𝐀𝐱 ≤ 𝒖𝒃𝒂
//
// with a primal-dual active-set method: each iteration fixes the bounds
// currently believed active, solves the resulting equality-constrained
// saddle-point (KKT) system by sparse QR, and advances along the step until
// a blocking bound activates or an active multiplier changes sign.
package activeset

import "math"

const (
	zero = 0.0
	one  = 1.0
	// dmin is the smallest strictly positive double: active multipliers are
	// clamped away from zero by this margin so their sign is never lost to
	// an exact-zero comparison.
	dmin = math.SmallestNonzeroFloat64
)

// Status is the terminal state of one solve.
type Status int

const (
	// Optimal both primal and dual tolerances are met.
	Optimal Status = iota
	// Stationary the iterate is stationary for its active set but at least
	// one tolerance is not met; see Summary.Warnings.
	Stationary
	// Infeasible feasibility restoration failed; the most violated bound is
	// already active or no redundant constraint could be dropped.
	Infeasible
	// ExceedMaxIter the iteration cap was reached; the current iterate is
	// still returned.
	ExceedMaxIter
)

// bndSign is the active-set state of one variable or constraint.
// It is kept separately from the multiplier value so that set membership
// survives a multiplier magnitude of exactly zero.
type bndSign int8

const (
	lowerActive bndSign = -1
	inactive    bndSign = 0
	upperActive bndSign = +1
)

// qpSpec is the immutable per-solver description shared by all workspaces.
type qpSpec struct {
	// the number of variables
	n int
	// the number of linear constraints
	m int
	Problem
}

// qpIter is the per-solve mutable iteration state, carved from the
// workspace arena. It is owned by a single Solve call at a time.
type qpIter struct {
	// current cost ½ 𝐱ᵀ𝐇𝐱 + 𝐠ᵀ𝐱
	fk float64
	// iteration counter
	iter int
	// the active set changed since the last round
	newActive bool
	// primal point and constraint evaluation 𝐀𝐱
	xk, gk []float64 // n, m
	// multipliers and their discrete sign state
	lamX, lamA []float64 // n, m
	signX      []bndSign // n
	signA      []bndSign // m
	// residual, then right-hand side, then primal-dual step [d𝐱, dλ𝐚]
	step []float64 // n+m
	// dual step for the variable multipliers and constraint values
	dlamX, dg []float64 // n, m
	// blocking step length recorded per variable/constraint, -1 when none
	tau []float64 // n+m
	// sign induced by the blocking bound
	tsign []bndSign // n+m
}
