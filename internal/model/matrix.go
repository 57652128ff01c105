package model

import (
	"errors"
	"fmt"
)

// ErrShape is returned when a matrix's backing data does not match its
// declared dimensions.
var ErrShape = errors.New("matrix shape mismatch")

// Matrix is a dense row-major 2-D array of float32 values.
// It is used both for feature vectors (rows = segments, cols = embedding dims)
// and score matrices (rows = segments, cols = classes).
type Matrix struct {
	Rows int
	Cols int
	Data []float32
}

// NewMatrix wraps data as a rows x cols matrix. The slice is not copied.
func NewMatrix(rows, cols int, data []float32) (Matrix, error) {
	if rows < 0 || cols < 0 {
		return Matrix{}, fmt.Errorf("%w: negative dimension %dx%d", ErrShape, rows, cols)
	}
	if len(data) != rows*cols {
		return Matrix{}, fmt.Errorf("%w: %dx%d needs %d values, got %d", ErrShape, rows, cols, rows*cols, len(data))
	}
	return Matrix{Rows: rows, Cols: cols, Data: data}, nil
}

// FromRows builds a matrix from a slice of equal-length rows.
func FromRows(rows [][]float32) (Matrix, error) {
	if len(rows) == 0 {
		return Matrix{}, nil
	}
	cols := len(rows[0])
	data := make([]float32, 0, len(rows)*cols)
	for i, r := range rows {
		if len(r) != cols {
			return Matrix{}, fmt.Errorf("%w: row %d has %d values, want %d", ErrShape, i, len(r), cols)
		}
		data = append(data, r...)
	}
	return Matrix{Rows: len(rows), Cols: cols, Data: data}, nil
}

// At returns the value at row i, column j.
func (m Matrix) At(i, j int) float32 {
	return m.Data[i*m.Cols+j]
}

// Row returns row i as a sub-slice of the backing data.
func (m Matrix) Row(i int) []float32 {
	return m.Data[i*m.Cols : (i+1)*m.Cols]
}

// Column copies column j into a float64 slice.
func (m Matrix) Column(j int) []float64 {
	col := make([]float64, m.Rows)
	for i := 0; i < m.Rows; i++ {
		col[i] = float64(m.Data[i*m.Cols+j])
	}
	return col
}

// Size returns the total number of elements.
func (m Matrix) Size() int {
	return m.Rows * m.Cols
}

// Shape renders the dimensions for log output, e.g. "(12, 400)".
func (m Matrix) Shape() string {
	return fmt.Sprintf("(%d, %d)", m.Rows, m.Cols)
}
