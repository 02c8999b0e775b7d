// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package activeset

import (
	"github.com/curioloop/quadprog/sparse"
)

// assembleKKT streams the Hessian, the Jacobian and its transpose into the
// plain KKT layout
//
//	⎡ 𝐇  𝐀ᵀ ⎤
//	⎣ 𝐀  0  ⎦
//
// whose nonzero order is the concatenation H(:,c), A(:,c) per leading
// column followed by Aᵀ(:,j) per trailing column (the order sparse.KKT
// fixes). The values change every solve; the structure never does.
func (qs *qpSolver) assembleKKT() {
	s, w, d := qs.spec, qs.work, qs.data
	h, a, at := s.H, s.A, s.at
	sparse.Trans(d.A, a, w.atv, at, w.iw)
	k := 0
	for c := 0; c < s.n; c++ {
		for p := h.Colind()[c]; p < h.Colind()[c+1]; p++ {
			w.kkt[k] = d.H[p]
			k++
		}
		for p := a.Colind()[c]; p < a.Colind()[c+1]; p++ {
			w.kkt[k] = d.A[p]
			k++
		}
	}
	for c := 0; c < s.m; c++ {
		for p := at.Colind()[c]; p < at.Colind()[c+1]; p++ {
			w.kkt[k] = w.atv[p]
			k++
		}
	}
}

// modifyKKT projects the plain KKT values into the diagonal-augmented
// layout and substitutes columns for the current active set:
//   - an active variable column is replaced by a unit column (+1 diagonal),
//     pinning the variable at its bound in the linear system;
//   - an inactive constraint column is replaced by a signed unit column
//     (-1 diagonal), turning its multiplier into a free slack.
//
// The result is nonsingular whenever the active set is consistent, even
// though the augmented diagonal entries are structural zeros elsewhere.
func (qs *qpSolver) modifyKKT() {
	s, w := qs.spec, qs.work
	sparse.Project(w.kkt, s.kkt, w.kktd, s.kktd)
	colind, row := s.kktd.Colind(), s.kktd.Row()
	for c := 0; c < s.n; c++ {
		if w.signX[c] == inactive {
			continue
		}
		for k := colind[c]; k < colind[c+1]; k++ {
			if row[k] == c {
				w.kktd[k] = one
			} else {
				w.kktd[k] = zero
			}
		}
	}
	for c := 0; c < s.m; c++ {
		if w.signA[c] != inactive {
			continue
		}
		for k := colind[s.n+c]; k < colind[s.n+c+1]; k++ {
			if row[k] == s.n+c {
				w.kktd[k] = -one
			} else {
				w.kktd[k] = zero
			}
		}
	}
}

// kktResidual turns the stationarity residual already stored in step[:n]
// into the full KKT residual of the active-set equality system: active
// variable rows report the distance to their bound, active constraint rows
// the constraint violation, inactive constraint rows zero.
func (qs *qpSolver) kktResidual() {
	s, w := qs.spec, qs.work
	n := s.n
	for i := 0; i < n; i++ {
		switch w.signX[i] {
		case lowerActive:
			w.step[i] = w.xk[i] - qs.lbx(i)
		case upperActive:
			w.step[i] = w.xk[i] - qs.ubx(i)
		}
	}
	for i := 0; i < s.m; i++ {
		switch w.signA[i] {
		case lowerActive:
			w.step[n+i] = w.gk[i] - qs.lba(i)
		case upperActive:
			w.step[n+i] = w.gk[i] - qs.uba(i)
		default:
			w.step[n+i] = zero
		}
	}
}
