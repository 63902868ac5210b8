// Package continuity runs the reconciliation and continuity checks over one batch of
// statements and assembles the report handed back to the caller.
package continuity

import (
	"fmt"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/cleared-dev/continuity/internal/audit"
	"github.com/cleared-dev/continuity/internal/chain"
	"github.com/cleared-dev/continuity/internal/fingerprint"
	"github.com/cleared-dev/continuity/internal/id"
	"github.com/cleared-dev/continuity/internal/logging"
	"github.com/cleared-dev/continuity/internal/model"
	"github.com/cleared-dev/continuity/internal/money"
	"github.com/cleared-dev/continuity/internal/overlap"
	"github.com/cleared-dev/continuity/internal/reconcile"
)

// Engine checks batches of statements. It holds no state between runs.
type Engine struct {
	log logrus.FieldLogger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger for chain and overlap decisions.
func WithLogger(log logrus.FieldLogger) Option {
	return func(e *Engine) { e.log = log }
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	e.log = logging.OrDiscard(e.log)
	return e
}

// Run checks one batch. The statements are not modified.
//
// If two or more statements are the same document, Run returns the per-statement
// results and the duplicate groups together with a *DuplicateStatementsError; no chain
// is built and no removal plan is produced.
func (e *Engine) Run(stmts []model.Statement) (*Report, error) {
	sorted := slices.Clone(stmts)
	slices.SortStableFunc(sorted, func(a, b model.Statement) int { return id.Compare(a.ID, b.ID) })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].ID == sorted[i-1].ID {
			return nil, fmt.Errorf("statement id %q appears more than once", sorted[i].ID)
		}
	}

	rep := &Report{RemovalPlan: make(map[string][]int)}
	for _, s := range sorted {
		rec := reconcile.Statement(s)
		aud := audit.Statement(s)
		rep.Reconciliations = append(rep.Reconciliations, rec)
		rep.Audits = append(rep.Audits, aud)
		rep.Issues = append(rep.Issues, reconcile.Issues(rec)...)
		rep.Issues = append(rep.Issues, audit.Issues(aud)...)
	}

	rep.DuplicateGroups = fingerprint.Duplicates(sorted)
	if len(rep.DuplicateGroups) > 0 {
		for _, g := range rep.DuplicateGroups {
			e.log.WithField("statements", g.StatementIDs).Warn("duplicate statements detected")
			rep.Issues = append(rep.Issues, model.Issue{
				Kind:        model.IssueDuplicateStatementDetected,
				StatementID: g.StatementIDs[0],
				Description: fmt.Sprintf("identical transactions in %s", strings.Join(g.StatementIDs, ", ")),
			})
		}
		return rep, &DuplicateStatementsError{Groups: rep.DuplicateGroups}
	}

	byID := make(map[string]model.Statement, len(sorted))
	for _, s := range sorted {
		byID[s.ID] = s
	}

	res := chain.Build(sorted, e.log)
	rep.Order = res.Order
	for _, l := range res.Links {
		if l.Status == model.StatusMismatch {
			l = e.resolve(byID[l.PrevID], byID[l.NextID], l, rep)
		}
		rep.Links = append(rep.Links, l)
	}

	for k, idx := range rep.RemovalPlan {
		slices.Sort(idx)
		idx = slices.Compact(idx)
		slices.Reverse(idx)
		rep.RemovalPlan[k] = idx
	}

	e.log.WithFields(logrus.Fields{
		"statements": len(sorted),
		"links":      len(rep.Links),
		"issues":     len(rep.Issues),
	}).Info("continuity run complete")
	return rep, nil
}

// resolve tries overlap deduplication on a mismatched link and records the outcome.
func (e *Engine) resolve(prev, next model.Statement, l model.ContinuityLink, rep *Report) model.ContinuityLink {
	p := overlap.Resolve(prev, next, e.log)
	l.OverlapAttempted = p.Attempted
	l.OverlapWindow = p.Window
	l.DupeSum = p.DupeSum
	l.OverlapNote = p.Reason

	if p.Applied {
		l.Status = model.StatusOK
		l.DisplayStatus = p.Status
		l.OverlapApplied = true
		l.RemovedIndices = slices.Clone(p.RemoveIndices)
		rep.RemovalPlan[next.ID] = append(rep.RemovalPlan[next.ID], p.RemoveIndices...)
		return l
	}

	if p.GateFailed() {
		rep.Issues = append(rep.Issues, model.Issue{
			Kind:        model.IssueOverlapSafetyGateFailed,
			StatementID: next.ID,
			Rows:        rowNumbers(p.Matched),
			Description: fmt.Sprintf("%s after %s: %s", next.ID, prev.ID, p.Reason),
		})
	}
	rep.Issues = append(rep.Issues, model.Issue{
		Kind:        model.IssueContinuityMismatch,
		StatementID: next.ID,
		Description: fmt.Sprintf("%s ends %s but %s starts %s (difference %s)",
			prev.ID, money.Format(l.PrevEnd.Value), next.ID, money.Format(l.NextStart.Value),
			money.FormatSigned(l.Diff.Value)),
	})
	return l
}

func rowNumbers(indices []int) []int {
	rows := make([]int, len(indices))
	for i, idx := range indices {
		rows[i] = idx + 1
	}
	return rows
}
