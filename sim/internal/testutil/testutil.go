// Package testutil provides shared test helpers for sim/ and its
// sub-packages. It does not import sim so that package sim's own tests can
// use it.
package testutil

import (
	"math"
	"testing"
)

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}

// SeqMatrix returns a rows×cols matrix whose entries count up from base in
// row-major order.
func SeqMatrix(rows, cols int, base int64) [][]int64 {
	m := make([][]int64, rows)
	next := base
	for i := range m {
		m[i] = make([]int64, cols)
		for j := range m[i] {
			m[i][j] = next
			next++
		}
	}
	return m
}

// ConstRows returns rows copies of the same single-address row. Useful for
// demand matrices where only the row count matters.
func ConstRows(rows int, addr int64) [][]int64 {
	m := make([][]int64, rows)
	for i := range m {
		m[i] = []int64{addr}
	}
	return m
}
