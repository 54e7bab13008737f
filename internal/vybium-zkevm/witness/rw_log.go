package witness

import "fmt"

// RwLog is the append-only arena of state accesses for a block. Entries are
// addressed by stable index; the access at index i carries counter i+1.
type RwLog struct {
	rows []Rw
}

// NewRwLog creates an empty log with room for n entries
func NewRwLog(n int) *RwLog {
	return &RwLog{rows: make([]Rw, 0, n)}
}

// Append stores rw and returns its index. The counter is taken from rw as
// recorded; the consistency layer checks it against the index.
func (l *RwLog) Append(rw Rw) int {
	l.rows = append(l.rows, rw)
	return len(l.rows) - 1
}

// Len returns the number of entries
func (l *RwLog) Len() int {
	return len(l.rows)
}

// Get returns the entry at idx
func (l *RwLog) Get(idx int) (*Rw, error) {
	if idx < 0 || idx >= len(l.rows) {
		return nil, fmt.Errorf("rw index %d out of range [0, %d)", idx, len(l.rows))
	}
	return &l.rows[idx], nil
}

// At returns the entry at idx and panics when it is out of range
func (l *RwLog) At(idx int) *Rw {
	return &l.rows[idx]
}

// Rows exposes the backing slice for read-only iteration
func (l *RwLog) Rows() []Rw {
	return l.rows
}

// NextCounter returns the counter the next appended access should carry
func (l *RwLog) NextCounter() uint64 {
	return uint64(len(l.rows)) + 1
}
