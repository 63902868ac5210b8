// Package reconcile checks that a statement's opening balance plus its net movement
// equals its closing balance.
package reconcile

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/continuity/internal/model"
	"github.com/cleared-dev/continuity/internal/money"
)

// Statement reconciles one statement. It never fails: absent balances degrade the
// status to BalancesNotFound.
func Statement(s model.Statement) model.ReconciliationResult {
	if s.BalancesUnsupported {
		return Unsupported(s)
	}
	res := model.ReconciliationResult{
		StatementID:  s.ID,
		StartBalance: s.StartBalance,
		EndBalance:   s.EndBalance,
		SumAmounts:   sumAmounts(s.Transactions),
	}

	if !s.StartBalance.Valid || !s.EndBalance.Valid {
		res.Status = model.StatusBalancesNotFound
		return res
	}

	expected := s.StartBalance.Value.Add(res.SumAmounts)
	diff := expected.Sub(s.EndBalance.Value)
	res.ExpectedEnd = model.Amount(expected)
	res.Difference = model.Amount(diff)

	if money.Within(expected, s.EndBalance.Value) {
		res.Status = model.StatusOK
	} else {
		res.Status = model.StatusMismatch
	}
	return res
}

// Unsupported is the result for a statement whose parser cannot expose balances.
func Unsupported(s model.Statement) model.ReconciliationResult {
	return model.ReconciliationResult{
		StatementID: s.ID,
		SumAmounts:  sumAmounts(s.Transactions),
		Status:      model.StatusUnsupported,
	}
}

// Issues maps a reconciliation outcome to diagnostics.
func Issues(r model.ReconciliationResult) []model.Issue {
	switch r.Status {
	case model.StatusBalancesNotFound:
		var missing string
		switch {
		case !r.StartBalance.Valid && !r.EndBalance.Valid:
			missing = "start and end balance"
		case !r.StartBalance.Valid:
			missing = "start balance"
		default:
			missing = "end balance"
		}
		return []model.Issue{{
			Kind:        model.IssueMissingBalance,
			StatementID: r.StatementID,
			Description: missing + " not found",
		}}
	case model.StatusUnsupported:
		return []model.Issue{{
			Kind:        model.IssueMissingBalance,
			StatementID: r.StatementID,
			Description: "statement format does not expose balances",
		}}
	case model.StatusMismatch:
		return []model.Issue{{
			Kind:        model.IssueInternalMismatch,
			StatementID: r.StatementID,
			Description: fmt.Sprintf("start %s + net %s = %s, statement end %s (difference %s)",
				money.Format(r.StartBalance.Value), money.Format(r.SumAmounts),
				money.Format(r.ExpectedEnd.Value), money.Format(r.EndBalance.Value),
				money.FormatSigned(r.Difference.Value)),
		}}
	}
	return nil
}

func sumAmounts(txns []model.Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, t := range txns {
		if t.Amount.Valid {
			total = total.Add(t.Amount.Value)
		}
	}
	return total.Round(2)
}
