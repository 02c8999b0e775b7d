// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sparse

import (
	"math"
	"testing"
)

// ⎡ 2 . 1 ⎤
// ⎣ . 3 4 ⎦ in CCS order.
func opsFixture(t *testing.T) (*Pattern, []float64) {
	t.Helper()
	sp := mustPattern(t, 2, 3, []int{0, 1, 2, 4}, []int{0, 1, 0, 1})
	return sp, []float64{2, 3, 1, 4}
}

func TestTransValues(t *testing.T) {
	sp, a := opsFixture(t)
	spt := sp.Transpose()
	at := make([]float64, sp.Nnz())
	iw := make([]int, spt.Cols())
	Trans(a, sp, at, spt, iw)
	want := []float64{2, 1, 3, 4} // columns of Aᵀ: (2,1), (3,4)
	for k := range want {
		if at[k] != want[k] {
			t.Fatal("TestTransValues: wrong transpose values")
		}
	}
}

func TestProject(t *testing.T) {
	sp, a := opsFixture(t)
	sup, err := sp.Union(mustPattern(t, 2, 3, []int{0, 1, 2, 3}, []int{1, 0, 1}))
	if err != nil {
		t.Fatal(err)
	}
	y := make([]float64, sup.Nnz())
	for i := range y {
		y[i] = math.NaN() // Project must overwrite every slot
	}
	Project(a, sp, y, sup)
	dense := toDense(sup, y)
	want := [][]float64{{2, 0, 1}, {0, 3, 4}}
	for i := range want {
		for j := range want[i] {
			if dense[i][j] != want[i][j] {
				t.Fatal("TestProject: wrong projected values")
			}
		}
	}
}

func TestMatVecBilin(t *testing.T) {
	sp, a := opsFixture(t)
	x := []float64{1, 2, 3}
	y := []float64{1, 1}
	MatVec(a, sp, x, y, false)
	if y[0] != 1+2*1+1*3 || y[1] != 1+3*2+4*3 {
		t.Fatal("TestMatVecBilin: wrong A·x")
	}
	z := []float64{0, 0, 0}
	MatVec(a, sp, []float64{1, 2}, z, true)
	if z[0] != 2 || z[1] != 6 || z[2] != 1+8 {
		t.Fatal("TestMatVecBilin: wrong Aᵀ·x")
	}
	// xᵀAy with x∈ℝ², y∈ℝ³
	if b := Bilin(a, sp, []float64{1, 2}, []float64{1, 1, 1}); b != 2+6+1+8 {
		t.Fatal("TestMatVecBilin: wrong bilinear form")
	}
}

func toDense(sp *Pattern, a []float64) [][]float64 {
	d := make([][]float64, sp.Rows())
	for i := range d {
		d[i] = make([]float64, sp.Cols())
	}
	for c := 0; c < sp.Cols(); c++ {
		for k := sp.Colind()[c]; k < sp.Colind()[c+1]; k++ {
			d[sp.Row()[k]][c] = a[k]
		}
	}
	return d
}
