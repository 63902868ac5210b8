// Package ledger applies a continuity run's removal plan and combines the surviving
// rows into one transaction list.
package ledger

import (
	"slices"

	"github.com/cleared-dev/continuity/internal/id"
	"github.com/cleared-dev/continuity/internal/model"
)

// Entry is one row of the combined ledger.
type Entry struct {
	StatementID string
	model.Transaction
}

// Apply returns copies of stmts with the planned rows removed, and the number of rows
// removed. Indices that are out of range for their statement are ignored.
func Apply(stmts []model.Statement, plan map[string][]int) ([]model.Statement, int) {
	out := make([]model.Statement, len(stmts))
	removed := 0
	for i, s := range stmts {
		c := s.Clone()
		if idx, ok := plan[s.ID]; ok {
			removed += c.RemoveIndices(idx)
		}
		out[i] = c
	}
	return out, removed
}

// Combine concatenates the statements' rows in chain order, then sorts by date. Rows
// on the same date keep their chain order; rows without a date go last. Statements
// missing from order follow in ID order.
func Combine(stmts []model.Statement, order []string) []Entry {
	pos := make(map[string]int, len(order))
	for i, sid := range order {
		pos[sid] = i
	}
	sorted := slices.Clone(stmts)
	slices.SortStableFunc(sorted, func(a, b model.Statement) int {
		pa, oka := pos[a.ID]
		pb, okb := pos[b.ID]
		switch {
		case oka && okb:
			return pa - pb
		case oka:
			return -1
		case okb:
			return 1
		}
		return id.Compare(a.ID, b.ID)
	})

	var entries []Entry
	for _, s := range sorted {
		for _, t := range s.Transactions {
			entries = append(entries, Entry{StatementID: s.ID, Transaction: t})
		}
	}
	slices.SortStableFunc(entries, func(a, b Entry) int {
		switch {
		case a.Date.IsZero() && b.Date.IsZero():
			return 0
		case a.Date.IsZero():
			return 1
		case b.Date.IsZero():
			return -1
		}
		return a.Date.Compare(b.Date)
	})
	return entries
}
