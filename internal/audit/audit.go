// Package audit runs per-row checks inside one statement: a running balance walk and
// a structural sanity pass over every field.
package audit

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/continuity/internal/model"
	"github.com/cleared-dev/continuity/internal/money"
)

const (
	maxWalkExamples  = 5
	maxShapeExamples = 8
)

// Statement audits one statement. It never fails; unparsable fields are counted.
func Statement(s model.Statement) model.AuditResult {
	res := model.AuditResult{
		StatementID: s.ID,
		BalanceWalk: walk(s),
		RowShape:    shape(s.Transactions),
	}
	switch {
	case res.BalanceWalk.Status == model.StatusMismatch:
		res.Status = model.StatusMismatch
	case res.RowShape.Status == model.StatusWarn:
		res.Status = model.StatusWarn
	default:
		res.Status = model.StatusOK
	}
	return res
}

func walk(s model.Statement) model.BalanceWalk {
	w := model.BalanceWalk{RowCount: len(s.Transactions)}

	var running, last *decimal.Decimal
	if s.StartBalance.Valid {
		v := s.StartBalance.Value
		running = &v
	}

	for i, t := range s.Transactions {
		if t.Balance.Valid {
			w.ParsableBalanceRows++
		}
		if !t.Amount.Valid || !t.Balance.Valid {
			// Continuity cannot be asserted across the gap.
			w.MissingOrBadRows++
			running = nil
			continue
		}

		bal := t.Balance.Value
		if running == nil {
			running, last = &bal, &bal
			continue
		}

		expected := running.Add(t.Amount.Value)
		if !money.Within(expected, bal) {
			w.MismatchCount++
			if len(w.Mismatches) < maxWalkExamples {
				w.Mismatches = append(w.Mismatches, model.WalkMismatch{
					Row:      i + 1,
					Expected: expected,
					Actual:   bal,
				})
			}
		}
		// Resynchronise on the stated balance so one bad row is reported once.
		running, last = &bal, &bal
		w.CheckedRows++
	}

	if w.CheckedRows == 0 {
		w.Status = model.StatusNotChecked
		var reasons []string
		if !s.StartBalance.Valid {
			reasons = append(reasons, "start balance missing/unparsable")
		}
		if w.ParsableBalanceRows == 0 {
			reasons = append(reasons, "no parsable row balances")
		}
		if w.ParsableBalanceRows > 0 && s.StartBalance.Valid {
			reasons = append(reasons, "no consecutive parsable amount/balance rows")
		}
		w.Summary = strings.Join(reasons, "; ")
		return w
	}

	if w.MismatchCount > 0 {
		w.Status = model.StatusMismatch
		w.Summary = fmt.Sprintf("%d row mismatches", w.MismatchCount)
	} else {
		w.Status = model.StatusOK
		w.Summary = fmt.Sprintf("%d rows checked", w.CheckedRows)
	}

	if s.EndBalance.Valid && last != nil {
		diff := last.Sub(s.EndBalance.Value)
		check := &model.EndBalanceCheck{
			LastBalance: *last,
			EndBalance:  s.EndBalance.Value,
			Diff:        diff,
			OK:          money.Within(*last, s.EndBalance.Value),
		}
		w.EndCheck = check
		if !check.OK {
			w.Status = model.StatusMismatch
			w.Summary += fmt.Sprintf("; end balance mismatch (%s)", money.FormatSigned(diff))
		}
	}
	return w
}

func shape(txns []model.Transaction) model.RowShape {
	rs := model.RowShape{RowCount: len(txns)}

	for i, t := range txns {
		row := i + 1
		if t.Date.IsZero() {
			note(&rs.MissingDate, row)
		}
		if strings.TrimSpace(t.Type) == "" {
			note(&rs.MissingType, row)
		}
		if strings.TrimSpace(t.Description) == "" {
			note(&rs.MissingDescription, row)
		}
		if !t.Amount.Valid {
			note(&rs.BadAmount, row)
		}
		if t.Balance.Bad() {
			note(&rs.BadBalance, row)
		}
	}

	total := rs.MissingDate.Count + rs.MissingType.Count + rs.MissingDescription.Count +
		rs.BadAmount.Count + rs.BadBalance.Count
	if total == 0 {
		rs.Status = model.StatusOK
		rs.Summary = "all required fields parsable"
		return rs
	}
	rs.Status = model.StatusWarn
	rs.Summary = fmt.Sprintf("missing Date %d, Type %d, Description %d, bad Amount %d, bad Balance %d",
		rs.MissingDate.Count, rs.MissingType.Count, rs.MissingDescription.Count,
		rs.BadAmount.Count, rs.BadBalance.Count)
	return rs
}

func note(f *model.FieldIssues, row int) {
	f.Count++
	if len(f.Rows) < maxShapeExamples {
		f.Rows = append(f.Rows, row)
	}
}

// Issues maps an audit outcome to diagnostics.
func Issues(r model.AuditResult) []model.Issue {
	var issues []model.Issue
	if r.BalanceWalk.Status == model.StatusMismatch {
		rows := make([]int, 0, len(r.BalanceWalk.Mismatches))
		for _, m := range r.BalanceWalk.Mismatches {
			rows = append(rows, m.Row)
		}
		issues = append(issues, model.Issue{
			Kind:        model.IssueInternalMismatch,
			StatementID: r.StatementID,
			Rows:        rows,
			Description: "balance walk: " + r.BalanceWalk.Summary,
		})
	}
	if n := r.RowShape.BadAmount.Count; n > 0 {
		issues = append(issues, model.Issue{
			Kind:        model.IssueUnparsableAmount,
			StatementID: r.StatementID,
			Rows:        r.RowShape.BadAmount.Rows,
			Description: fmt.Sprintf("%d rows with missing or unparsable amount", n),
		})
	}
	if n := r.RowShape.BadBalance.Count; n > 0 {
		issues = append(issues, model.Issue{
			Kind:        model.IssueUnparsableBalance,
			StatementID: r.StatementID,
			Rows:        r.RowShape.BadBalance.Rows,
			Description: fmt.Sprintf("%d rows with unparsable balance", n),
		})
	}
	return issues
}
