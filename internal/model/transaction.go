package model

import (
	"slices"
	"time"
)

// Transaction is one statement row as produced by an upstream parser.
type Transaction struct {
	Date        time.Time // zero = blank
	Type        string    // short bank label (DD, FPO, ACH_DEBIT, ...)
	Description string
	Amount      Money // credit positive, debit negative
	Balance     Money // running balance after this row, optional
}

// Statement is one parsed source document: its claimed period, stated opening and
// closing balances, and rows in source order.
type Statement struct {
	ID            string
	PeriodStart   time.Time // zero = not exposed by the parser
	PeriodEnd     time.Time
	StartBalance  Money
	EndBalance    Money
	Transactions  []Transaction
	AccountHolder string // presentation only

	// BalancesUnsupported is set when the source format cannot expose opening and
	// closing balances at all.
	BalancesUnsupported bool
}

// HasPeriodStart reports whether the parser exposed a period start.
func (s Statement) HasPeriodStart() bool {
	return !s.PeriodStart.IsZero()
}

// HasPeriod reports whether both period dates are known.
func (s Statement) HasPeriod() bool {
	return !s.PeriodStart.IsZero() && !s.PeriodEnd.IsZero()
}

// DateMin returns the earliest transaction date, or zero if none has a date.
func (s Statement) DateMin() time.Time {
	var first time.Time
	for _, t := range s.Transactions {
		if t.Date.IsZero() {
			continue
		}
		if first.IsZero() || t.Date.Before(first) {
			first = t.Date
		}
	}
	return first
}

// DateMax returns the latest transaction date, or zero if none has a date.
func (s Statement) DateMax() time.Time {
	var last time.Time
	for _, t := range s.Transactions {
		if t.Date.After(last) {
			last = t.Date
		}
	}
	return last
}

// Clone returns a copy whose transaction slice can be modified independently.
func (s Statement) Clone() Statement {
	c := s
	c.Transactions = append([]Transaction(nil), s.Transactions...)
	return c
}

// RemoveIndices deletes the rows at the given positions, highest first so earlier
// positions stay valid. Duplicate and out-of-range indices are ignored. Returns the
// number of rows removed.
func (s *Statement) RemoveIndices(indices []int) int {
	var idx []int
	for _, i := range indices {
		if i >= 0 && i < len(s.Transactions) {
			idx = append(idx, i)
		}
	}
	slices.Sort(idx)
	idx = slices.Compact(idx)
	slices.Reverse(idx)

	txns := slices.Clone(s.Transactions)
	for _, i := range idx {
		txns = slices.Delete(txns, i, i+1)
	}
	s.Transactions = txns
	return len(idx)
}
