// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sparse

// Trans writes the nonzeros of x, laid out over sp, into xt laid out over
// the transposed pattern spt. iw is scratch of length spt.Cols().
func Trans(x []float64, sp *Pattern, xt []float64, spt *Pattern, iw []int) {
	copy(iw[:spt.ncol], spt.colind[:spt.ncol])
	for c := 0; c < sp.ncol; c++ {
		for k := sp.colind[c]; k < sp.colind[c+1]; k++ {
			r := sp.row[k]
			xt[iw[r]] = x[k]
			iw[r]++
		}
	}
}

// Project copies the nonzeros of x over sp into y over sp2, zero-filling
// entries of sp2 that sp lacks. sp must be a structural subset of sp2 with
// the same dimensions.
func Project(x []float64, sp *Pattern, y []float64, sp2 *Pattern) {
	for c := 0; c < sp.ncol; c++ {
		k, kend := sp.colind[c], sp.colind[c+1]
		for k2 := sp2.colind[c]; k2 < sp2.colind[c+1]; k2++ {
			if k < kend && sp.row[k] == sp2.row[k2] {
				y[k2] = x[k]
				k++
			} else {
				y[k2] = 0
			}
		}
	}
}

// MatVec accumulates a matrix-vector product into y:
// y += A·x, or y += Aᵀ·x when trans is set. a holds the values over sp.
func MatVec(a []float64, sp *Pattern, x, y []float64, trans bool) {
	if trans {
		for c := 0; c < sp.ncol; c++ {
			for k := sp.colind[c]; k < sp.colind[c+1]; k++ {
				y[c] += a[k] * x[sp.row[k]]
			}
		}
	} else {
		for c := 0; c < sp.ncol; c++ {
			for k := sp.colind[c]; k < sp.colind[c+1]; k++ {
				y[sp.row[k]] += a[k] * x[c]
			}
		}
	}
}

// Bilin evaluates the bilinear form xᵀ·A·y for values a over sp.
func Bilin(a []float64, sp *Pattern, x, y []float64) (s float64) {
	for c := 0; c < sp.ncol; c++ {
		for k := sp.colind[c]; k < sp.colind[c+1]; k++ {
			s += x[sp.row[k]] * a[k] * y[c]
		}
	}
	return s
}
