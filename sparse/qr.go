// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sparse

import (
	"fmt"
	"math"
)

// Symbolic is the reusable structural analysis of a Householder QR
// factorization A = Q·R of an m×n pattern with m ≥ n.
//
// The analysis runs once per pattern:
//   - the column elimination tree of AᵀA orders the Householder updates,
//   - rows are permuted so each pivotal row appears at its pivot column
//     (structurally deficient columns receive a fictitious zero row,
//     extending the row count to m2 ≥ m),
//   - the sparsity of the Householder vectors V (m2×n) and of the upper
//     triangular factor R (n×n) is fixed by a structural pass of the
//     factorization itself.
//
// Numeric refactorization against the same structure then never allocates:
// Factor fills caller-owned value buffers for V, R and the scaling vector
// beta, and Solve applies them. The analysis is read-only after
// construction and may be shared by concurrent solves operating on
// independent buffers.
//
// T.A. Davis, 'Direct Methods for Sparse Linear Systems', SIAM, 2006.
// Chapter 5.
type Symbolic struct {
	sp       *Pattern
	parent   []int // column elimination tree of AᵀA
	leftmost []int // leftmost column of each row
	pinv     []int // row i of A lives at permuted position pinv[i]
	m2       int   // rows including fictitious ones
	vp, vi   []int // V pattern, rows in application order, diagonal first
	rp, ri   []int // R pattern, rows in application order, diagonal last
}

// AnalyzeQR performs the symbolic QR analysis of sp.
func AnalyzeQR(sp *Pattern) (*Symbolic, error) {
	if sp.nrow < sp.ncol {
		return nil, fmt.Errorf("sparse: qr needs rows ≥ cols, got %d×%d", sp.nrow, sp.ncol)
	}
	s := &Symbolic{sp: sp}
	s.parent = colEtree(sp)
	s.rowPerm()
	s.factorPattern()
	return s, nil
}

// Cols returns the number of columns of the analyzed pattern.
func (s *Symbolic) Cols() int { return s.sp.ncol }

// ExtRows returns the extended row count m2 and thereby the scratch length
// Factor and Solve require.
func (s *Symbolic) ExtRows() int { return s.m2 }

// VNnz returns the nonzero count of the Householder vectors V.
func (s *Symbolic) VNnz() int { return len(s.vi) }

// RNnz returns the nonzero count of the triangular factor R.
func (s *Symbolic) RNnz() int { return len(s.ri) }

// colEtree computes the column elimination tree, the elimination tree of
// AᵀA formed without forming AᵀA, with ancestor path compression.
func colEtree(sp *Pattern) []int {
	n := sp.ncol
	parent := make([]int, n)
	ancestor := make([]int, n)
	prev := make([]int, sp.nrow)
	for i := range prev {
		prev[i] = -1
	}
	for k := 0; k < n; k++ {
		parent[k] = -1
		ancestor[k] = -1
		for p := sp.colind[k]; p < sp.colind[k+1]; p++ {
			for i := prev[sp.row[p]]; i != -1 && i < k; {
				next := ancestor[i]
				ancestor[i] = k
				if next == -1 {
					parent[i] = k
				}
				i = next
			}
			prev[sp.row[p]] = k
		}
	}
	return parent
}

// rowPerm assigns each row to the column where it becomes pivotal.
// Rows are queued at their leftmost column; when a column is eliminated the
// head of its queue becomes the pivotal row and the remainder of the queue
// migrates to the parent column in the elimination tree.
func (s *Symbolic) rowPerm() {
	sp, parent := s.sp, s.parent
	m, n := sp.nrow, sp.ncol
	pinv := make([]int, m)
	leftmost := make([]int, m)
	next := make([]int, m)
	head := make([]int, n)
	tail := make([]int, n)
	nque := make([]int, n)
	for k := 0; k < n; k++ {
		head[k], tail[k] = -1, -1
	}
	for i := 0; i < m; i++ {
		leftmost[i] = -1
	}
	for k := n - 1; k >= 0; k-- {
		for p := sp.colind[k]; p < sp.colind[k+1]; p++ {
			leftmost[sp.row[p]] = k
		}
	}
	for i := m - 1; i >= 0; i-- {
		pinv[i] = -1
		k := leftmost[i]
		if k == -1 {
			continue // row of the zero matrix
		}
		if nque[k] == 0 {
			tail[k] = i
		}
		nque[k]++
		next[i] = head[k]
		head[k] = i
	}
	m2 := m
	for k := 0; k < n; k++ {
		i := head[k]
		if i < 0 {
			m2++ // fictitious zero row for a structurally deficient column
		} else {
			pinv[i] = k
		}
		nque[k]--
		if nque[k] <= 0 {
			continue
		}
		if pa := parent[k]; pa != -1 {
			if nque[pa] == 0 {
				tail[pa] = tail[k]
			}
			next[tail[k]] = head[pa]
			head[pa] = next[i]
			nque[pa] += nque[k]
		}
	}
	k := n
	for i := 0; i < m; i++ {
		if pinv[i] < 0 {
			pinv[i] = k
			k++
		}
	}
	s.pinv, s.leftmost, s.m2 = pinv, leftmost, m2
}

// factorPattern replays the factorization structurally: for every column it
// resolves the reach of its rows through the elimination tree (the rows of
// R), scatters the column and the Householder patterns of finished children
// (the rows of V), and records both in the order the numeric pass will
// consume them.
func (s *Symbolic) factorPattern() {
	sp, parent, leftmost, pinv := s.sp, s.parent, s.leftmost, s.pinv
	n := sp.ncol
	w := make([]int, s.m2)
	for i := range w {
		w[i] = -1
	}
	stack := make([]int, n)
	vp := make([]int, n+1)
	rp := make([]int, n+1)
	var vi, ri []int
	for k := 0; k < n; k++ {
		rp[k] = len(ri)
		vp[k] = len(vi)
		w[k] = k
		vi = append(vi, k) // V(k,k)
		top := n
		for p := sp.colind[k]; p < sp.colind[k+1]; p++ {
			i := leftmost[sp.row[p]]
			var depth int
			for ; w[i] != k; i = parent[i] {
				stack[depth] = i
				depth++
				w[i] = k
			}
			for depth > 0 {
				depth--
				top--
				stack[top] = stack[depth]
			}
			i = pinv[sp.row[p]]
			if i > k && w[i] < k {
				vi = append(vi, i)
				w[i] = k
			}
		}
		for p := top; p < n; p++ {
			i := stack[p]
			ri = append(ri, i) // R(i,k)
			if parent[i] == k {
				for q := vp[i]; q < vp[i+1]; q++ {
					if j := vi[q]; w[j] < k {
						w[j] = k
						vi = append(vi, j)
					}
				}
			}
		}
		ri = append(ri, k) // R(k,k)
	}
	rp[n] = len(ri)
	vp[n] = len(vi)
	s.vp, s.vi, s.rp, s.ri = vp, vi, rp, ri
}

// Factor computes the numeric factorization of the values a laid out over
// the analyzed pattern. v, r and beta receive the Householder vectors, the
// triangular factor and the Householder scalings; their lengths must be
// VNnz, RNnz and Cols. x is zeroed scratch of length ExtRows.
func (s *Symbolic) Factor(a, v, r, beta, x []float64) {
	sp := s.sp
	n := sp.ncol
	for i := 0; i < s.m2; i++ {
		x[i] = 0
	}
	for k := 0; k < n; k++ {
		for p := sp.colind[k]; p < sp.colind[k+1]; p++ {
			x[s.pinv[sp.row[p]]] = a[p]
		}
		for p := s.rp[k]; p < s.rp[k+1]-1; p++ {
			i := s.ri[p]
			s.happly(i, v, beta[i], x)
			r[p] = x[i]
			x[i] = 0
		}
		p1 := s.vp[k]
		for p := p1; p < s.vp[k+1]; p++ {
			v[p] = x[s.vi[p]]
			x[s.vi[p]] = 0
		}
		r[s.rp[k+1]-1] = house(v[p1:s.vp[k+1]], &beta[k])
	}
}

// Solve overwrites b[:Cols] with the solution of A·x = b using the factors
// produced by Factor. w is scratch of length ExtRows. Singularity never
// raises an error: a structurally zero R diagonal yields non-finite
// components, a merely numerical one yields large inaccurate values, and
// the caller decides how to treat either.
func (s *Symbolic) Solve(v, r, beta, b, w []float64) {
	n := s.sp.ncol
	for i := 0; i < s.m2; i++ {
		w[i] = 0
	}
	for i := 0; i < s.sp.nrow; i++ {
		w[s.pinv[i]] = b[i]
	}
	for k := 0; k < n; k++ {
		s.happly(k, v, beta[k], w) // w = Qᵀ·P·b
	}
	for k := n - 1; k >= 0; k-- { // R·x = w
		p1, p2 := s.rp[k], s.rp[k+1]
		w[k] /= r[p2-1]
		xk := w[k]
		for p := p1; p < p2-1; p++ {
			w[s.ri[p]] -= r[p] * xk
		}
	}
	copy(b[:n], w[:n])
}

// happly applies the k-th Householder reflection to x in place:
// x ← x - beta·v·(vᵀx) over the pattern of V(:,k).
func (s *Symbolic) happly(k int, v []float64, beta float64, x []float64) {
	var t float64
	for q := s.vp[k]; q < s.vp[k+1]; q++ {
		t += v[q] * x[s.vi[q]]
	}
	t *= beta
	for q := s.vp[k]; q < s.vp[k+1]; q++ {
		x[s.vi[q]] -= v[q] * t
	}
}

// house builds a Householder reflection H = I - beta·v·vᵀ in place such
// that H·x = s·e₁, returning s. x holds v on return.
func house(x []float64, beta *float64) float64 {
	var sigma float64
	for _, xi := range x[1:] {
		sigma += xi * xi
	}
	var s float64
	if sigma == 0 {
		s = math.Abs(x[0])
		if x[0] <= 0 {
			*beta = 2
		} else {
			*beta = 0
		}
		x[0] = 1
	} else {
		s = math.Sqrt(x[0]*x[0] + sigma)
		if x[0] <= 0 {
			x[0] -= s
		} else {
			x[0] = -sigma / (x[0] + s)
		}
		*beta = -1 / (s * x[0])
	}
	return s
}
