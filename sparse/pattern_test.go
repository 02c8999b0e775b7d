// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sparse

import (
	"testing"
)

func mustPattern(t *testing.T, nrow, ncol int, colind, row []int) *Pattern {
	t.Helper()
	p, err := NewPattern(nrow, ncol, colind, row)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestNewPatternValidation(t *testing.T) {
	if _, err := NewPattern(2, 2, []int{0, 1}, []int{0}); err == nil {
		t.Fatal("TestNewPatternValidation: short colind accepted")
	}
	if _, err := NewPattern(2, 2, []int{0, 1, 1}, []int{0, 1}); err == nil {
		t.Fatal("TestNewPatternValidation: colind endpoint mismatch accepted")
	}
	if _, err := NewPattern(2, 2, []int{0, 2, 2}, []int{1, 0}); err == nil {
		t.Fatal("TestNewPatternValidation: descending rows accepted")
	}
	if _, err := NewPattern(2, 2, []int{0, 1, 2}, []int{0, 2}); err == nil {
		t.Fatal("TestNewPatternValidation: out-of-range row accepted")
	}
	if _, err := NewPattern(2, 2, []int{0, 1, 2}, []int{0, 1}); err != nil {
		t.Fatal("TestNewPatternValidation: valid pattern rejected")
	}
}

func TestTranspose(t *testing.T) {
	// ⎡ x . x ⎤
	// ⎣ . x x ⎦
	p := mustPattern(t, 2, 3, []int{0, 1, 2, 4}, []int{0, 1, 0, 1})
	pt := p.Transpose()
	want := mustPattern(t, 3, 2, []int{0, 2, 4}, []int{0, 2, 1, 2})
	if !pt.Equal(want) {
		t.Fatal("TestTranspose: wrong structure")
	}
	if !pt.Transpose().Equal(p) {
		t.Fatal("TestTranspose: not an involution")
	}
}

func TestUnion(t *testing.T) {
	p := mustPattern(t, 3, 3, []int{0, 1, 2, 3}, []int{1, 2, 0})
	u, err := p.Union(Diag(3))
	if err != nil {
		t.Fatal(err)
	}
	want := mustPattern(t, 3, 3, []int{0, 2, 4, 6}, []int{0, 1, 1, 2, 0, 2})
	if !u.Equal(want) {
		t.Fatal("TestUnion: wrong structure")
	}
	if _, err = p.Union(Diag(2)); err == nil {
		t.Fatal("TestUnion: dimension mismatch accepted")
	}
}

func TestKKTPattern(t *testing.T) {
	// H = ⎡ x . ⎤   A = [ x x ]
	//     ⎣ . x ⎦
	h := Diag(2)
	a := mustPattern(t, 1, 2, []int{0, 1, 2}, []int{0, 0})
	kkt, err := KKT(h, a)
	if err != nil {
		t.Fatal(err)
	}
	if kkt.Rows() != 3 || kkt.Cols() != 3 {
		t.Fatal("TestKKTPattern: wrong dimension")
	}
	if kkt.Nnz() != h.Nnz()+2*a.Nnz() {
		t.Fatal("TestKKTPattern: wrong nonzero count")
	}
	// The saddle-point structure is symmetric: block(0,1) = block(1,0)ᵀ.
	if !kkt.Transpose().Equal(kkt) {
		t.Fatal("TestKKTPattern: pattern not symmetric")
	}
	if _, err = KKT(a, a); err == nil {
		t.Fatal("TestKKTPattern: non-square hessian accepted")
	}
	if _, err = KKT(h, mustPattern(t, 1, 3, []int{0, 0, 0, 1}, []int{0})); err == nil {
		t.Fatal("TestKKTPattern: mismatched jacobian accepted")
	}
}
