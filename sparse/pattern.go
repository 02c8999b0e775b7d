// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sparse provides compressed-column sparsity patterns and the
// numeric kernels a pattern-driven solver needs: value projection and
// transposition, matrix-vector products, bilinear forms, and a Householder
// QR factorization whose structure is analyzed once and refactorized
// numerically many times.
package sparse

import (
	"errors"
	"fmt"
)

// Pattern is an immutable compressed-column (CCS) sparsity pattern.
// Only the positions of structural nonzeros are stored; numeric values
// live in caller-owned slices laid out in the same column-major nonzero
// order.
type Pattern struct {
	nrow, ncol int
	colind     []int // ncol+1 column offsets into row
	row        []int // row index of each nonzero, ascending within a column
}

// NewPattern builds a pattern from raw CCS arrays and validates them.
func NewPattern(nrow, ncol int, colind, row []int) (*Pattern, error) {
	switch {
	case nrow < 0 || ncol < 0:
		return nil, errors.New("sparse: negative dimension")
	case len(colind) != ncol+1:
		return nil, fmt.Errorf("sparse: colind length %d, want %d", len(colind), ncol+1)
	case colind[0] != 0 || colind[ncol] != len(row):
		return nil, errors.New("sparse: colind endpoints mismatch row count")
	}
	for c := 0; c < ncol; c++ {
		if colind[c] > colind[c+1] {
			return nil, fmt.Errorf("sparse: colind not monotone at column %d", c)
		}
		for k := colind[c]; k < colind[c+1]; k++ {
			if r := row[k]; r < 0 || r >= nrow {
				return nil, fmt.Errorf("sparse: row %d out of range in column %d", r, c)
			}
			if k > colind[c] && row[k] <= row[k-1] {
				return nil, fmt.Errorf("sparse: rows not ascending in column %d", c)
			}
		}
	}
	return &Pattern{nrow: nrow, ncol: ncol, colind: colind, row: row}, nil
}

// Diag returns the pattern of the n×n identity structure.
func Diag(n int) *Pattern {
	colind := make([]int, n+1)
	row := make([]int, n)
	for i := 0; i < n; i++ {
		colind[i+1] = i + 1
		row[i] = i
	}
	return &Pattern{nrow: n, ncol: n, colind: colind, row: row}
}

// Dense returns the pattern of a fully populated nrow×ncol matrix.
func Dense(nrow, ncol int) *Pattern {
	colind := make([]int, ncol+1)
	row := make([]int, nrow*ncol)
	for c := 0; c < ncol; c++ {
		colind[c+1] = (c + 1) * nrow
		for r := 0; r < nrow; r++ {
			row[c*nrow+r] = r
		}
	}
	return &Pattern{nrow: nrow, ncol: ncol, colind: colind, row: row}
}

// Rows returns the number of rows.
func (p *Pattern) Rows() int { return p.nrow }

// Cols returns the number of columns.
func (p *Pattern) Cols() int { return p.ncol }

// Nnz returns the number of structural nonzeros.
func (p *Pattern) Nnz() int { return len(p.row) }

// Colind returns the column offset array. The slice is shared, not copied.
func (p *Pattern) Colind() []int { return p.colind }

// Row returns the row index array. The slice is shared, not copied.
func (p *Pattern) Row() []int { return p.row }

// Transpose returns the pattern of the transposed matrix.
func (p *Pattern) Transpose() *Pattern {
	colind := make([]int, p.nrow+1)
	row := make([]int, len(p.row))
	for _, r := range p.row {
		colind[r+1]++
	}
	for r := 0; r < p.nrow; r++ {
		colind[r+1] += colind[r]
	}
	next := make([]int, p.nrow)
	copy(next, colind[:p.nrow])
	for c := 0; c < p.ncol; c++ {
		for k := p.colind[c]; k < p.colind[c+1]; k++ {
			r := p.row[k]
			row[next[r]] = c
			next[r]++
		}
	}
	return &Pattern{nrow: p.ncol, ncol: p.nrow, colind: colind, row: row}
}

// Union returns the pattern holding the structural nonzeros of both p and q.
// The operands must agree in dimension.
func (p *Pattern) Union(q *Pattern) (*Pattern, error) {
	if p.nrow != q.nrow || p.ncol != q.ncol {
		return nil, fmt.Errorf("sparse: union of %d×%d with %d×%d", p.nrow, p.ncol, q.nrow, q.ncol)
	}
	colind := make([]int, p.ncol+1)
	var row []int
	for c := 0; c < p.ncol; c++ {
		i, iend := p.colind[c], p.colind[c+1]
		j, jend := q.colind[c], q.colind[c+1]
		for i < iend || j < jend {
			switch {
			case j >= jend || (i < iend && p.row[i] < q.row[j]):
				row = append(row, p.row[i])
				i++
			case i >= iend || q.row[j] < p.row[i]:
				row = append(row, q.row[j])
				j++
			default: // equal
				row = append(row, p.row[i])
				i++
				j++
			}
		}
		colind[c+1] = len(row)
	}
	return &Pattern{nrow: p.nrow, ncol: p.ncol, colind: colind, row: row}, nil
}

// Equal reports whether two patterns have identical structure.
func (p *Pattern) Equal(q *Pattern) bool {
	if p.nrow != q.nrow || p.ncol != q.ncol || len(p.row) != len(q.row) {
		return false
	}
	for c := 0; c <= p.ncol; c++ {
		if p.colind[c] != q.colind[c] {
			return false
		}
	}
	for k, r := range p.row {
		if q.row[k] != r {
			return false
		}
	}
	return true
}

// KKT builds the saddle-point block pattern
//
//	⎡ H  Aᵀ ⎤
//	⎣ A  0  ⎦
//
// for an n×n Hessian pattern h and an m×n Jacobian pattern a.
// The nonzero order is the concatenation H(:,c) then A(:,c) for the first
// n columns, followed by Aᵀ(:,j) for the trailing m columns, so values can
// be assembled by streaming the three operands in that order.
func KKT(h, a *Pattern) (*Pattern, error) {
	if h.nrow != h.ncol {
		return nil, fmt.Errorf("sparse: kkt hessian pattern %d×%d not square", h.nrow, h.ncol)
	}
	if a.ncol != h.ncol {
		return nil, fmt.Errorf("sparse: kkt jacobian has %d columns, want %d", a.ncol, h.ncol)
	}
	n, m := h.ncol, a.nrow
	at := a.Transpose()
	colind := make([]int, n+m+1)
	row := make([]int, 0, h.Nnz()+2*a.Nnz())
	for c := 0; c < n; c++ {
		for k := h.colind[c]; k < h.colind[c+1]; k++ {
			row = append(row, h.row[k])
		}
		for k := a.colind[c]; k < a.colind[c+1]; k++ {
			row = append(row, n+a.row[k])
		}
		colind[c+1] = len(row)
	}
	for c := 0; c < m; c++ {
		for k := at.colind[c]; k < at.colind[c+1]; k++ {
			row = append(row, at.row[k])
		}
		colind[n+c+1] = len(row)
	}
	return &Pattern{nrow: n + m, ncol: n + m, colind: colind, row: row}, nil
}
