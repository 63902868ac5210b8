// Package overlap resolves a balance mismatch between two adjacent statements whose
// periods overlap, by finding the rows the later statement repeats from the earlier one.
//
// Resolve only returns a plan. Removing the rows is the caller's job.
package overlap

import (
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/cleared-dev/continuity/internal/logging"
	"github.com/cleared-dev/continuity/internal/model"
	"github.com/cleared-dev/continuity/internal/money"
)

// Plan is the outcome of one resolution attempt.
type Plan struct {
	Attempted     bool             // both periods known and overlapping
	Window        *model.DateRange // nil when the periods do not overlap
	Matched       []int            // 0-based rows of next that repeat rows of prev
	DupeSum       decimal.Decimal  // sum of the matched amounts
	Diff          model.Money      // prev end - next start
	Applied       bool
	RemoveIndices []int // Matched when Applied, otherwise empty
	Status        string
	Reason        string
}

// RemovedCount is the number of rows the plan removes.
func (p Plan) RemovedCount() int {
	return len(p.RemoveIndices)
}

// GateFailed reports whether duplicates were found but their sum did not explain the
// balance difference.
func (p Plan) GateFailed() bool {
	return len(p.Matched) > 0 && !p.Applied && p.Diff.Valid
}

type fallbackSig struct {
	date, amount, typ, desc string
}

type balanceSig struct {
	fallbackSig
	balance string
}

// Resolve looks for rows of next that duplicate rows of prev inside the overlap of
// their periods, and plans their removal only if the duplicates exactly account for the
// balance difference between prev's close and next's open.
func Resolve(prev, next model.Statement, log logrus.FieldLogger) Plan {
	log = logging.OrDiscard(log).WithFields(logrus.Fields{"prev": prev.ID, "next": next.ID})
	p := Plan{Status: string(model.StatusMismatch)}

	if !prev.HasPeriod() || !next.HasPeriod() {
		p.Reason = "overlap resolution not attempted (missing period start/end)"
		log.Debug(p.Reason)
		return p
	}
	if next.PeriodStart.After(prev.PeriodEnd) {
		p.Reason = "periods do not overlap"
		log.Debug(p.Reason)
		return p
	}

	window := model.DateRange{Start: next.PeriodStart, End: prev.PeriodEnd}
	if next.PeriodEnd.Before(window.End) {
		window.End = next.PeriodEnd
	}
	p.Attempted = true
	p.Window = &window

	withBalance := make(map[balanceSig]int)
	withoutBalance := make(map[fallbackSig]int)
	for _, t := range prev.Transactions {
		if !t.Amount.Valid || !window.Contains(t.Date) {
			continue
		}
		if t.Balance.Valid {
			withBalance[balanceSignature(t)]++
		} else {
			withoutBalance[fallbackSignature(t)]++
		}
	}

	// Balanced rows only ever match balanced rows with the same balance, or fall back
	// to rows that have none.
	for i, t := range next.Transactions {
		if !t.Amount.Valid || !window.Contains(t.Date) {
			continue
		}
		matched := false
		if t.Balance.Valid {
			matched = take(withBalance, balanceSignature(t))
		}
		if !matched {
			matched = take(withoutBalance, fallbackSignature(t))
		}
		if matched {
			p.Matched = append(p.Matched, i)
			p.DupeSum = p.DupeSum.Add(t.Amount.Value)
		}
	}

	fields := logrus.Fields{
		"window":   window.String(),
		"matched":  len(p.Matched),
		"dupe_sum": p.DupeSum.StringFixed(2),
	}

	if !prev.EndBalance.Valid || !next.StartBalance.Valid {
		p.Reason = "balances missing"
		log.WithFields(fields).Info("overlap resolution: " + p.Reason)
		return p
	}
	diff := prev.EndBalance.Value.Sub(next.StartBalance.Value)
	p.Diff = model.Amount(diff)
	fields["diff"] = p.Diff.String()

	if len(p.Matched) == 0 {
		p.Reason = "no duplicate rows in overlap window"
		log.WithFields(fields).Info("overlap resolution: " + p.Reason)
		return p
	}

	if !money.Within(diff, p.DupeSum) {
		p.Reason = fmt.Sprintf("safety gate failed: diff %s, duplicate sum %s",
			money.FormatSigned(diff), money.FormatSigned(p.DupeSum))
		log.WithFields(fields).Warn("overlap safety gate failed; not applying")
		return p
	}

	p.Applied = true
	p.RemoveIndices = slices.Clone(p.Matched)
	p.Status = fmt.Sprintf("OK (overlap resolved, removed %d duplicates, sum %s)", len(p.Matched), money.Format(p.DupeSum))
	log.WithFields(fields).Info("overlap resolved")
	return p
}

func take[K comparable](pool map[K]int, k K) bool {
	if pool[k] == 0 {
		return false
	}
	pool[k]--
	return true
}

func fallbackSignature(t model.Transaction) fallbackSig {
	return fallbackSig{
		date:   model.FormatDate(t.Date),
		amount: t.Amount.Value.StringFixed(2),
		typ:    normText(t.Type),
		desc:   normText(t.Description),
	}
}

func balanceSignature(t model.Transaction) balanceSig {
	return balanceSig{fallbackSig: fallbackSignature(t), balance: t.Balance.Value.StringFixed(2)}
}

func normText(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), " "))
}
