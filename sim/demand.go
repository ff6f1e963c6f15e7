package sim

// NoAccess marks an idle lane in an operand or demand matrix.
const NoAccess int64 = -1

// OperandMatrix is a row-major matrix of operand addresses.
// Entries equal to NoAccess carry no data.
type OperandMatrix [][]int64

// DemandMatrix is a time-ordered access sequence: row i lists the addresses a
// compute unit touches in its i-th cycle.
type DemandMatrix = OperandMatrix

// NewOperandMatrix allocates a rows×cols matrix filled with NoAccess.
func NewOperandMatrix(rows, cols int) OperandMatrix {
	m := make(OperandMatrix, rows)
	for i := range m {
		row := make([]int64, cols)
		for j := range row {
			row[j] = NoAccess
		}
		m[i] = row
	}
	return m
}

// Rows returns the number of rows.
func (m OperandMatrix) Rows() int { return len(m) }

// Cols returns the width of the first row, or 0 for an empty matrix.
func (m OperandMatrix) Cols() int {
	if len(m) == 0 {
		return 0
	}
	return len(m[0])
}

// Slice returns rows [start, end), clamped to the matrix bounds.
// The returned matrix shares storage with m.
func (m OperandMatrix) Slice(start, end int) OperandMatrix {
	start = clampInt(start, 0, len(m))
	end = clampInt(end, start, len(m))
	return m[start:end]
}

// ColumnRange returns a copy of columns [start, end) of every row, clamped to
// the matrix width.
func (m OperandMatrix) ColumnRange(start, end int) OperandMatrix {
	cols := m.Cols()
	start = clampInt(start, 0, cols)
	end = clampInt(end, start, cols)
	out := make(OperandMatrix, len(m))
	for i, row := range m {
		out[i] = append([]int64(nil), row[start:end]...)
	}
	return out
}

// Accesses counts entries that are not NoAccess.
func (m OperandMatrix) Accesses() int64 {
	var n int64
	for _, row := range m {
		for _, addr := range row {
			if addr != NoAccess {
				n++
			}
		}
	}
	return n
}

// ActiveRows counts rows with at least one access.
func (m OperandMatrix) ActiveRows() int64 {
	var n int64
	for _, row := range m {
		for _, addr := range row {
			if addr != NoAccess {
				n++
				break
			}
		}
	}
	return n
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ceilDiv returns ceil(a/b) for non-negative a and positive b.
func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
