// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package activeset

import (
	"fmt"
	"io"

	"github.com/curioloop/quadprog/sparse"
)

// LogLevel controls the frequency and type of logger output
type LogLevel int

const (
	// LogNoop no output is generated
	LogNoop LogLevel = 0
	// LogIter print one progress line per iteration
	LogIter LogLevel = 1
	// LogVerbose print also the iterate vectors, the KKT residual, the
	// step and the modified KKT matrix of every iteration
	LogVerbose LogLevel = 2
)

// Logger is the optional diagnostic side-channel of the solver; it is not
// part of the solve contract. The writer must be thread-safe when one
// solver is shared across goroutines.
type Logger struct {
	Level LogLevel
	Msg   io.Writer
}

func (l *Logger) enable(level LogLevel) bool {
	return l.Msg != nil && l.Level >= level
}

func (l *Logger) log(format string, a ...any) {
	if len(a) > 0 {
		_, _ = fmt.Fprintf(l.Msg, format, a...)
	} else {
		_, _ = fmt.Fprint(l.Msg, format)
	}
}

// vector prints a named dense vector.
func (l *Logger) vector(name string, x []float64) {
	l.log("%s = %v\n", name, x)
}

// matrix prints a named sparse matrix densely, row by row.
func (l *Logger) matrix(name string, a []float64, sp *sparse.Pattern) {
	l.log("%s =\n", name)
	colind, row := sp.Colind(), sp.Row()
	for i := 0; i < sp.Rows(); i++ {
		l.log("[")
		for c := 0; c < sp.Cols(); c++ {
			v := zero
			for k := colind[c]; k < colind[c+1]; k++ {
				if row[k] == i {
					v = a[k]
					break
				}
			}
			if c > 0 {
				l.log(" ")
			}
			l.log("%g", v)
		}
		l.log("]\n")
	}
}
