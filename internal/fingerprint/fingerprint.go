// Package fingerprint detects statements that are the same document by hashing their
// transactions independent of row order.
package fingerprint

import (
	"encoding/hex"
	"slices"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/cleared-dev/continuity/internal/id"
	"github.com/cleared-dev/continuity/internal/model"
)

// Compute returns the hex BLAKE2b-256 of the sorted normalized rows, or "" for a
// statement without transactions.
func Compute(txns []model.Transaction) string {
	if len(txns) == 0 {
		return ""
	}
	rows := make([]string, len(txns))
	for i, t := range txns {
		rows[i] = Row(t)
	}
	slices.Sort(rows)

	sum := blake2b.Sum256([]byte(strings.Join(rows, "\n")))
	return hex.EncodeToString(sum[:])
}

// Row normalizes one transaction to date|TYPE|DESCRIPTION|amount|balance.
func Row(t model.Transaction) string {
	return strings.Join([]string{
		model.FormatDate(t.Date),
		normText(t.Type),
		normText(t.Description),
		normMoney(t.Amount),
		normMoney(t.Balance),
	}, "|")
}

func normText(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), " "))
}

// normMoney keeps unparsable text so a changed bad value still changes the hash.
func normMoney(m model.Money) string {
	if m.Valid {
		return m.Value.StringFixed(2)
	}
	return strings.TrimSpace(m.Raw)
}

// Duplicates groups statements with identical non-empty fingerprints. Groups are
// ordered by their first statement ID and members by ID.
func Duplicates(stmts []model.Statement) []model.DuplicateGroup {
	byPrint := make(map[string][]model.Statement)
	for _, s := range stmts {
		fp := Compute(s.Transactions)
		if fp == "" {
			continue
		}
		byPrint[fp] = append(byPrint[fp], s)
	}

	var groups []model.DuplicateGroup
	for fp, members := range byPrint {
		if len(members) < 2 {
			continue
		}
		slices.SortFunc(members, func(a, b model.Statement) int { return id.Compare(a.ID, b.ID) })
		groups = append(groups, summarize(fp, members))
	}
	slices.SortFunc(groups, func(a, b model.DuplicateGroup) int {
		return id.Compare(a.StatementIDs[0], b.StatementIDs[0])
	})
	return groups
}

func summarize(fp string, members []model.Statement) model.DuplicateGroup {
	first := members[0]
	g := model.DuplicateGroup{
		Fingerprint:  fp,
		StartBalance: first.StartBalance,
		EndBalance:   first.EndBalance,
		TxnCount:     len(first.Transactions),
	}
	for _, m := range members {
		g.StatementIDs = append(g.StatementIDs, m.ID)
	}
	if lo, hi := first.DateMin(), first.DateMax(); !lo.IsZero() {
		g.Dates = &model.DateRange{Start: lo, End: hi}
	}
	return g
}
