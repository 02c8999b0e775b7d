// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package activeset

// daxpy performs constant times a vector plus a vector operation.
func daxpy(n int, da float64, dx, dy []float64) {
	if n <= 0 || da == 0 {
		return
	}
	if n > len(dx) || n > len(dy) {
		panic("bound check error")
	}
	for i := 0; i < n; i++ {
		dy[i] += da * dx[i]
	}
}

// ddot computes the dot product of two vectors.
func ddot(n int, dx, dy []float64) (dot float64) {
	if n <= 0 {
		return zero
	}
	if n > len(dx) || n > len(dy) {
		panic("bound check error")
	}
	for i := 0; i < n; i++ {
		dot += dx[i] * dy[i]
	}
	return dot
}

// dscal scales a vector by a constant.
func dscal(n int, da float64, dx []float64) {
	if n <= 0 {
		return
	}
	if n > len(dx) {
		panic("bound check error")
	}
	for i := 0; i < n; i++ {
		dx[i] *= da
	}
}

// dzero fills vector x with zero.
func dzero(dx []float64) {
	for i := range dx {
		dx[i] = zero
	}
}

// dfill fills the first n entries of x with the constant da.
func dfill(n int, da float64, dx []float64) {
	if n > len(dx) {
		panic("bound check error")
	}
	for i := 0; i < n; i++ {
		dx[i] = da
	}
}
