package overlap

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/continuity/internal/model"
)

func day(s string) time.Time {
	d, ok := model.ParseDate(s)
	if !ok {
		panic("bad date " + s)
	}
	return d
}

func row(date, typ, desc, amount, balance string) model.Transaction {
	return model.Transaction{
		Date:        day(date),
		Type:        typ,
		Description: desc,
		Amount:      model.ParseMoney(amount),
		Balance:     model.ParseMoney(balance),
	}
}

func january() model.Statement {
	return model.Statement{
		ID:           "jan.pdf",
		PeriodStart:  day("2024-01-01"),
		PeriodEnd:    day("2024-01-31"),
		StartBalance: model.ParseMoney("600.00"),
		EndBalance:   model.ParseMoney("500.00"),
		Transactions: []model.Transaction{
			row("2024-01-10", "DD", "RENT", "-60.00", "540.00"),
			row("2024-01-26", "POS", "TESCO STORES", "-15.00", "525.00"),
			row("2024-01-28", "DD", "GYM", "-25.00", "500.00"),
		},
	}
}

// reissued covers Jan 25 to Feb 24 and repeats January's last two rows.
func reissued(start string) model.Statement {
	return model.Statement{
		ID:           "feb.pdf",
		PeriodStart:  day("2024-01-25"),
		PeriodEnd:    day("2024-02-24"),
		StartBalance: model.ParseMoney(start),
		EndBalance:   model.ParseMoney("600.00"),
		Transactions: []model.Transaction{
			row("2024-01-26", "POS", "Tesco  Stores", "-15.00", "525.00"),
			row("2024-01-28", "DD", "GYM", "-25.00", "500.00"),
			row("2024-02-03", "FPI", "SALARY", "100.00", "600.00"),
		},
	}
}

func TestResolve_Applied(t *testing.T) {
	log, hook := logtest.NewNullLogger()

	p := Resolve(january(), reissued("540.00"), log)
	assert.True(t, p.Attempted)
	require.NotNil(t, p.Window)
	assert.Equal(t, "2024-01-25..2024-01-31", p.Window.String())
	assert.True(t, p.Applied)
	assert.Equal(t, []int{0, 1}, p.RemoveIndices)
	assert.Equal(t, 2, p.RemovedCount())
	assert.Equal(t, "-40.00", p.DupeSum.StringFixed(2))
	assert.Equal(t, "-40.00", p.Diff.String())
	assert.Equal(t, "OK (overlap resolved, removed 2 duplicates, sum -£40.00)", p.Status)
	assert.False(t, p.GateFailed())

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "overlap resolved", hook.LastEntry().Message)
	assert.Equal(t, "feb.pdf", hook.LastEntry().Data["next"])
}

func TestResolve_AppliedCredits(t *testing.T) {
	prev := model.Statement{
		ID:          "jan.pdf",
		PeriodStart: day("2024-01-01"),
		PeriodEnd:   day("2024-01-31"),
		EndBalance:  model.ParseMoney("540.00"),
		Transactions: []model.Transaction{
			row("2024-01-29", "FPI", "REFUND", "15.00", "515.00"),
			row("2024-01-30", "FPI", "REFUND", "25.00", "540.00"),
		},
	}
	next := model.Statement{
		ID:           "feb.pdf",
		PeriodStart:  day("2024-01-25"),
		PeriodEnd:    day("2024-02-24"),
		StartBalance: model.ParseMoney("500.00"),
		Transactions: []model.Transaction{
			row("2024-01-29", "FPI", "REFUND", "15.00", "515.00"),
			row("2024-01-30", "FPI", "REFUND", "25.00", "540.00"),
		},
	}

	p := Resolve(prev, next, nil)
	assert.True(t, p.Applied)
	assert.Equal(t, "OK (overlap resolved, removed 2 duplicates, sum £40.00)", p.Status)
}

func TestResolve_SafetyGateFailed(t *testing.T) {
	log, hook := logtest.NewNullLogger()

	p := Resolve(january(), reissued("545.00"), log)
	assert.True(t, p.Attempted)
	assert.False(t, p.Applied)
	assert.Empty(t, p.RemoveIndices)
	assert.Len(t, p.Matched, 2)
	assert.Equal(t, "-40.00", p.DupeSum.StringFixed(2))
	assert.Equal(t, "Mismatch", p.Status)
	assert.True(t, p.GateFailed())
	assert.Equal(t, "safety gate failed: diff -45.00, duplicate sum -40.00", p.Reason)

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestResolve_WithinTolerance(t *testing.T) {
	p := Resolve(january(), reissued("540.01"), nil)
	assert.True(t, p.Applied)
}

func TestResolve_NoOverlap(t *testing.T) {
	next := reissued("540.00")
	next.PeriodStart = day("2024-02-01")

	p := Resolve(january(), next, nil)
	assert.False(t, p.Attempted)
	assert.Nil(t, p.Window)
	assert.False(t, p.Applied)
	assert.Equal(t, "periods do not overlap", p.Reason)
}

func TestResolve_BoundaryDayOverlaps(t *testing.T) {
	prev := january()
	prev.Transactions = append(prev.Transactions, row("2024-01-31", "DD", "PHONE", "-10.00", "490.00"))
	prev.EndBalance = model.ParseMoney("490.00")

	next := model.Statement{
		ID:           "feb.pdf",
		PeriodStart:  day("2024-01-31"),
		PeriodEnd:    day("2024-02-29"),
		StartBalance: model.ParseMoney("500.00"),
		Transactions: []model.Transaction{row("2024-01-31", "DD", "PHONE", "-10.00", "490.00")},
	}

	p := Resolve(prev, next, nil)
	require.NotNil(t, p.Window)
	assert.Equal(t, "2024-01-31..2024-01-31", p.Window.String())
	assert.True(t, p.Applied)
	assert.Equal(t, []int{0}, p.RemoveIndices)
}

func TestResolve_MissingPeriods(t *testing.T) {
	prev := january()
	prev.PeriodEnd = time.Time{}

	p := Resolve(prev, reissued("540.00"), nil)
	assert.False(t, p.Attempted)
	assert.Contains(t, p.Reason, "missing period")
}

func TestResolve_MissingBalances(t *testing.T) {
	next := reissued("")
	p := Resolve(january(), next, nil)
	assert.True(t, p.Attempted)
	assert.False(t, p.Applied)
	assert.Len(t, p.Matched, 2)
	assert.Empty(t, p.RemoveIndices)
	assert.False(t, p.GateFailed())
}

func TestResolve_RowsOutsideWindowIgnored(t *testing.T) {
	prev := january()
	next := reissued("600.00")
	// Same as January's rent row but dated before the window.
	next.Transactions = append(next.Transactions, row("2024-01-10", "DD", "RENT", "-60.00", "540.00"))

	p := Resolve(prev, next, nil)
	assert.Equal(t, []int{0, 1}, p.Matched)
}

func TestResolve_DifferentBalanceDoesNotMatch(t *testing.T) {
	next := reissued("540.00")
	next.Transactions[0].Balance = model.ParseMoney("526.00")

	p := Resolve(january(), next, nil)
	assert.Len(t, p.Matched, 1)
	assert.False(t, p.Applied)
}

func TestResolve_FallbackOnlyAgainstRowsWithoutBalance(t *testing.T) {
	prev := january()
	prev.Transactions[1].Balance = model.NoMoney // TESCO has no balance in prev

	// Balanced next row falls back to prev's unbalanced TESCO row.
	p := Resolve(prev, reissued("540.00"), nil)
	assert.True(t, p.Applied)
	assert.Equal(t, []int{0, 1}, p.RemoveIndices)

	// An unbalanced next row never matches a balanced prev row.
	next := reissued("540.00")
	next.Transactions[1].Balance = model.NoMoney // GYM has a balance in prev
	p = Resolve(january(), next, nil)
	assert.Len(t, p.Matched, 1)
	assert.Equal(t, "-15.00", p.DupeSum.StringFixed(2))
	assert.False(t, p.Applied)
}

func TestResolve_ConsumesMatches(t *testing.T) {
	next := reissued("540.00")
	// A second identical GYM row in next can only match once.
	next.Transactions = append(next.Transactions, row("2024-01-28", "DD", "GYM", "-25.00", "500.00"))

	p := Resolve(january(), next, nil)
	assert.Equal(t, []int{0, 1}, p.Matched)
	assert.Equal(t, []int{0, 1}, p.RemoveIndices)
}

func TestResolve_DoesNotMutate(t *testing.T) {
	prev, next := january(), reissued("540.00")
	Resolve(prev, next, nil)
	assert.Len(t, prev.Transactions, 3)
	assert.Len(t, next.Transactions, 3)
}
