// Package matrix provides the small amount of dense linear algebra the
// preprocessing protocols need, including hyper-invertible matrices.
package matrix

import (
	"fmt"
	"math/big"

	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/field"
)

// Matrix is a dense rows x cols matrix of field elements.
type Matrix struct {
	rows, cols int
	a          []field.Element
}

// New returns a zero matrix.
func New(f field.Field, rows, cols int) *Matrix {
	m := &Matrix{rows: rows, cols: cols, a: make([]field.Element, rows*cols)}
	for i := range m.a {
		m.a[i] = f.Zero()
	}
	return m
}

// FromRows builds a matrix from row slices of equal length.
func FromRows(rows [][]field.Element) (*Matrix, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("matrix: empty")
	}
	m := &Matrix{rows: len(rows), cols: len(rows[0])}
	for i, r := range rows {
		if len(r) != m.cols {
			return nil, fmt.Errorf("matrix: row %d has %d columns, want %d", i, len(r), m.cols)
		}
		m.a = append(m.a, r...)
	}
	return m, nil
}

func (m *Matrix) Rows() int { return m.rows }
func (m *Matrix) Cols() int { return m.cols }

func (m *Matrix) At(i, j int) field.Element { return m.a[i*m.cols+j] }
func (m *Matrix) Set(i, j int, v field.Element) { m.a[i*m.cols+j] = v }

// Mul returns m*o.
func (m *Matrix) Mul(o *Matrix) (*Matrix, error) {
	if m.cols != o.rows {
		return nil, fmt.Errorf("matrix: cannot multiply %dx%d by %dx%d", m.rows, m.cols, o.rows, o.cols)
	}
	f := m.a[0].Field()
	out := New(f, m.rows, o.cols)
	for i := 0; i < m.rows; i++ {
		for j := 0; j < o.cols; j++ {
			acc := f.Zero()
			for k := 0; k < m.cols; k++ {
				acc = acc.Add(m.At(i, k).Mul(o.At(k, j)))
			}
			out.Set(i, j, acc)
		}
	}
	return out, nil
}

// Transpose returns a new matrix.
func (m *Matrix) Transpose() *Matrix {
	out := &Matrix{rows: m.cols, cols: m.rows, a: make([]field.Element, len(m.a))}
	for i := 0; i < m.rows; i++ {
		for j := 0; j < m.cols; j++ {
			out.Set(j, i, m.At(i, j))
		}
	}
	return out
}

// Row returns a copy of row i.
func (m *Matrix) Row(i int) []field.Element {
	return append([]field.Element(nil), m.a[i*m.cols:(i+1)*m.cols]...)
}

// Hyper returns an n x n hyper-invertible matrix over f: every square
// submatrix is invertible. Row i maps the values of a degree n-1
// polynomial at 1..n to its value at n+1+i, which requires 2n distinct
// points in f.
func Hyper(n int, f field.Field) (*Matrix, error) {
	if n < 1 {
		return nil, fmt.Errorf("matrix: invalid size %d", n)
	}
	if f.Modulus().Cmp(big.NewInt(int64(2*n))) <= 0 {
		return nil, fmt.Errorf("matrix: field %s too small for %d players", f.Name(), n)
	}
	alpha := make([]field.Element, n)
	for j := range alpha {
		alpha[j] = f.FromInt(int64(j + 1))
	}
	m := New(f, n, n)
	for i := 0; i < n; i++ {
		beta := f.FromInt(int64(n + i + 1))
		for j := 0; j < n; j++ {
			v := f.One()
			for k := 0; k < n; k++ {
				if k == j {
					continue
				}
				v = v.Mul(beta.Sub(alpha[k]).Div(alpha[j].Sub(alpha[k])))
			}
			m.Set(i, j, v)
		}
	}
	return m, nil
}
