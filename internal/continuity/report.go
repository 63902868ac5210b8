package continuity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cleared-dev/continuity/internal/model"
)

// ErrDuplicateStatements is matched by the error Run returns when the batch contains the
// same document more than once.
var ErrDuplicateStatements = errors.New("duplicate statements")

// DuplicateStatementsError carries the groups that blocked a run.
type DuplicateStatementsError struct {
	Groups []model.DuplicateGroup
}

func (e *DuplicateStatementsError) Error() string {
	sets := make([]string, len(e.Groups))
	for i, g := range e.Groups {
		sets[i] = strings.Join(g.StatementIDs, " = ")
	}
	return fmt.Sprintf("%s: %s", ErrDuplicateStatements, strings.Join(sets, "; "))
}

func (e *DuplicateStatementsError) Unwrap() error {
	return ErrDuplicateStatements
}

// Report is everything one run found.
type Report struct {
	Reconciliations []model.ReconciliationResult `json:"reconciliations"`
	Audits          []model.AuditResult          `json:"audits"`
	DuplicateGroups []model.DuplicateGroup       `json:"duplicate_groups"`
	Order           []string                     `json:"order"`
	Links           []model.ContinuityLink       `json:"links"`
	Issues          []model.Issue                `json:"issues"`

	// RemovalPlan maps a statement ID to the 0-based rows to delete from it, highest
	// first.
	RemovalPlan map[string][]int `json:"removal_plan"`
}

// Blocked reports whether duplicate statements must be removed before the results
// can be used.
func (r *Report) Blocked() bool {
	return len(r.DuplicateGroups) > 0
}

// Removed returns the total number of rows in the removal plan.
func (r *Report) Removed() int {
	n := 0
	for _, idx := range r.RemovalPlan {
		n += len(idx)
	}
	return n
}

// IssuesOf returns the issues of one kind, in report order.
func (r *Report) IssuesOf(kind model.IssueKind) []model.Issue {
	var out []model.Issue
	for _, i := range r.Issues {
		if i.Kind == kind {
			out = append(out, i)
		}
	}
	return out
}
