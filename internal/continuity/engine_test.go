package continuity

import (
	"errors"
	"slices"
	"testing"
	"time"

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

func period(id, ps, pe, start, end string, txns ...model.Transaction) model.Statement {
	s := model.Statement{
		ID:           id,
		StartBalance: model.ParseMoney(start),
		EndBalance:   model.ParseMoney(end),
		Transactions: txns,
	}
	if ps != "" {
		s.PeriodStart = day(ps)
	}
	if pe != "" {
		s.PeriodEnd = day(pe)
	}
	return s
}

func TestRun_ConsecutiveStatements(t *testing.T) {
	a := period("a.pdf", "2024-01-01", "2024-01-31", "100.00", "200.00",
		row("2024-01-05", "FPI", "SALARY", "100.00", "200.00"))
	b := period("b.pdf", "2024-02-01", "2024-02-28", "200.00", "150.00",
		row("2024-02-05", "DD", "RENT", "-50.00", "150.00"))

	rep, err := New().Run([]model.Statement{b, a})
	require.NoError(t, err)
	assert.False(t, rep.Blocked())
	assert.Equal(t, []string{"a.pdf", "b.pdf"}, rep.Order)
	require.Len(t, rep.Links, 1)
	assert.Equal(t, model.StatusOK, rep.Links[0].Status)
	assert.Equal(t, "0.00", rep.Links[0].Diff.String())
	assert.Empty(t, rep.Issues)
	assert.Empty(t, rep.RemovalPlan)

	require.Len(t, rep.Reconciliations, 2)
	assert.Equal(t, "a.pdf", rep.Reconciliations[0].StatementID)
	assert.Equal(t, model.StatusOK, rep.Reconciliations[0].Status)
	require.Len(t, rep.Audits, 2)
	assert.Equal(t, model.StatusOK, rep.Audits[1].Status)
}

func TestRun_MismatchWithoutOverlap(t *testing.T) {
	a := period("a.pdf", "2024-01-01", "2024-01-31", "100.00", "200.00",
		row("2024-01-05", "FPI", "SALARY", "100.00", "200.00"))
	b := period("b.pdf", "2024-02-01", "2024-02-28", "205.00", "155.00",
		row("2024-02-05", "DD", "RENT", "-50.00", "155.00"))

	rep, err := New().Run([]model.Statement{a, b})
	require.NoError(t, err)
	require.Len(t, rep.Links, 1)

	l := rep.Links[0]
	assert.Equal(t, model.StatusMismatch, l.Status)
	assert.Equal(t, "Mismatch", l.DisplayStatus)
	assert.True(t, l.Diff.Value.Abs().Equal(model.ParseMoney("5.00").Value))
	assert.False(t, l.OverlapAttempted)
	assert.Nil(t, l.OverlapWindow)

	issues := rep.IssuesOf(model.IssueContinuityMismatch)
	require.Len(t, issues, 1)
	assert.Equal(t, "b.pdf", issues[0].StatementID)
	assert.Equal(t, "a.pdf ends £200.00 but b.pdf starts £205.00 (difference -5.00)", issues[0].Description)
	assert.Empty(t, rep.IssuesOf(model.IssueOverlapSafetyGateFailed))
}

func overlapping(bStart string) (model.Statement, model.Statement) {
	a := period("a.pdf", "2024-01-01", "2024-01-31", "600.00", "500.00",
		row("2024-01-10", "DD", "RENT", "-60.00", "540.00"),
		row("2024-01-26", "POS", "TESCO", "-15.00", "525.00"),
		row("2024-01-28", "DD", "GYM", "-25.00", "500.00"),
	)
	b := period("b.pdf", "2024-01-25", "2024-02-24", bStart, "600.00",
		row("2024-01-26", "POS", "TESCO", "-15.00", "525.00"),
		row("2024-01-28", "DD", "GYM", "-25.00", "500.00"),
		row("2024-02-03", "FPI", "SALARY", "100.00", "600.00"),
	)
	return a, b
}

func TestRun_OverlapResolved(t *testing.T) {
	a, b := overlapping("540.00")

	rep, err := New().Run([]model.Statement{a, b})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.pdf", "b.pdf"}, rep.Order)
	require.Len(t, rep.Links, 1)

	l := rep.Links[0]
	assert.Equal(t, model.StatusOK, l.Status)
	assert.Equal(t, "OK (overlap resolved, removed 2 duplicates, sum -£40.00)", l.DisplayStatus)
	assert.True(t, l.OverlapAttempted)
	assert.True(t, l.OverlapApplied)
	require.NotNil(t, l.OverlapWindow)
	assert.Equal(t, "2024-01-25..2024-01-31", l.OverlapWindow.String())
	assert.Equal(t, []int{0, 1}, l.RemovedIndices)
	assert.Equal(t, "-40.00", l.DupeSum.StringFixed(2))

	assert.Equal(t, map[string][]int{"b.pdf": {1, 0}}, rep.RemovalPlan)
	assert.Equal(t, 2, rep.Removed())
	assert.Empty(t, rep.IssuesOf(model.IssueContinuityMismatch))

	// The plan is not applied to the input.
	assert.Len(t, b.Transactions, 3)
}

func TestRun_OverlapGateFailed(t *testing.T) {
	a, b := overlapping("545.00")
	b.EndBalance = model.ParseMoney("605.00")

	rep, err := New().Run([]model.Statement{a, b})
	require.NoError(t, err)

	l := rep.Links[0]
	assert.Equal(t, model.StatusMismatch, l.Status)
	assert.Equal(t, "Mismatch", l.DisplayStatus)
	assert.True(t, l.OverlapAttempted)
	assert.False(t, l.OverlapApplied)
	assert.Empty(t, l.RemovedIndices)
	assert.Empty(t, rep.RemovalPlan)

	gate := rep.IssuesOf(model.IssueOverlapSafetyGateFailed)
	require.Len(t, gate, 1)
	assert.Equal(t, []int{1, 2}, gate[0].Rows)
	assert.Len(t, rep.IssuesOf(model.IssueContinuityMismatch), 1)
}

func TestRun_OnePeriodStart(t *testing.T) {
	c := period("c.pdf", "2024-03-01", "2024-03-31", "10.00", "20.00",
		row("2024-03-04", "FPI", "X", "10.00", "20.00"))
	a := period("a.pdf", "", "", "30.00", "40.00",
		row("2024-02-10", "FPI", "Y", "10.00", "40.00"))
	b := period("b.pdf", "", "", "50.00", "60.00",
		row("2024-01-10", "FPI", "Z", "10.00", "60.00"))

	rep, err := New().Run([]model.Statement{a, b, c})
	require.NoError(t, err)
	assert.Equal(t, []string{"c.pdf", "b.pdf", "a.pdf"}, rep.Order)
}

func TestRun_DuplicateStatements(t *testing.T) {
	txns := []model.Transaction{
		row("2024-01-02", "DD", "RENT", "-60.00", "540.00"),
		row("2024-01-05", "FPI", "SALARY", "100.00", "640.00"),
	}
	reversed := slices.Clone(txns)
	slices.Reverse(reversed)

	a := period("a.pdf", "2024-01-01", "2024-01-31", "600.00", "640.00", txns...)
	copyA := period("a (1).pdf", "2024-01-01", "2024-01-31", "600.00", "640.00", reversed...)
	other := period("b.pdf", "2024-02-01", "2024-02-29", "640.00", "640.00")

	rep, err := New().Run([]model.Statement{a, other, copyA})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateStatements))

	var dupErr *DuplicateStatementsError
	require.True(t, errors.As(err, &dupErr))
	require.Len(t, dupErr.Groups, 1)
	assert.ElementsMatch(t, []string{"a.pdf", "a (1).pdf"}, dupErr.Groups[0].StatementIDs)

	require.NotNil(t, rep)
	assert.True(t, rep.Blocked())
	assert.Empty(t, rep.Order)
	assert.Empty(t, rep.Links)
	assert.Empty(t, rep.RemovalPlan)
	assert.Len(t, rep.Reconciliations, 3)
	assert.Len(t, rep.IssuesOf(model.IssueDuplicateStatementDetected), 1)
}

func TestRun_DuplicateIDs(t *testing.T) {
	a := period("a.pdf", "", "", "1.00", "1.00")
	_, err := New().Run([]model.Statement{a, a})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrDuplicateStatements))
}

func TestRun_Empty(t *testing.T) {
	rep, err := New().Run(nil)
	require.NoError(t, err)
	assert.Empty(t, rep.Order)
	assert.Empty(t, rep.Links)
}

func TestRun_PerStatementIssues(t *testing.T) {
	s := period("a.pdf", "", "", "", "10.00",
		row("2024-01-02", "DD", "RENT", "oops", "5.00"))

	rep, err := New().Run([]model.Statement{s})
	require.NoError(t, err)
	assert.Len(t, rep.IssuesOf(model.IssueMissingBalance), 1)
	assert.Len(t, rep.IssuesOf(model.IssueUnparsableAmount), 1)
}

func TestRun_Deterministic(t *testing.T) {
	a, b := overlapping("540.00")
	c := period("c.pdf", "2024-02-25", "2024-03-24", "600.00", "650.00",
		row("2024-03-01", "FPI", "SALARY", "50.00", "650.00"))
	d := period("d.pdf", "", "", "650.00", "700.00",
		row("2024-04-01", "FPI", "SALARY", "50.00", "700.00"))
	stmts := []model.Statement{a, b, c, d}

	want, err := New().Run(stmts)
	require.NoError(t, err)

	for _, perm := range [][]int{{3, 2, 1, 0}, {1, 3, 0, 2}, {2, 0, 3, 1}} {
		in := make([]model.Statement, len(perm))
		for i, p := range perm {
			in[i] = stmts[p]
		}
		got, err := New().Run(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestRun_LogsChainDecisions(t *testing.T) {
	log, hook := logtest.NewNullLogger()
	a, b := overlapping("540.00")

	_, err := New(WithLogger(log)).Run([]model.Statement{a, b})
	require.NoError(t, err)

	var msgs []string
	for _, e := range hook.AllEntries() {
		msgs = append(msgs, e.Message)
	}
	assert.Contains(t, msgs, "overlap resolved")
	assert.Contains(t, msgs, "continuity run complete")
}

func TestDuplicateStatementsError(t *testing.T) {
	err := &DuplicateStatementsError{Groups: []model.DuplicateGroup{
		{StatementIDs: []string{"a.pdf", "b.pdf"}},
		{StatementIDs: []string{"c.pdf", "d.pdf", "e.pdf"}},
	}}
	assert.Equal(t, "duplicate statements: a.pdf = b.pdf; c.pdf = d.pdf = e.pdf", err.Error())
}
