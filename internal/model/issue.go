package model

import "fmt"

// IssueKind classifies a diagnostic raised during a run.
type IssueKind string

const (
	IssueMissingBalance             IssueKind = "MissingBalance"
	IssueUnparsableAmount           IssueKind = "UnparsableAmount"
	IssueUnparsableBalance          IssueKind = "UnparsableBalance"
	IssueInternalMismatch           IssueKind = "InternalMismatch"
	IssueContinuityMismatch         IssueKind = "ContinuityMismatch"
	IssueOverlapSafetyGateFailed    IssueKind = "OverlapSafetyGateFailed"
	IssueDuplicateStatementDetected IssueKind = "DuplicateStatementDetected"
)

// Issue is one non-fatal finding. Only DuplicateStatementDetected blocks a run.
type Issue struct {
	Kind        IssueKind `json:"kind"`
	StatementID string    `json:"statement_id"`
	Rows        []int     `json:"rows,omitempty"`
	Description string    `json:"description"`
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s [%s]: %s", i.Kind, i.StatementID, i.Description)
}

// Blocking reports whether the issue must halt further processing.
func (i Issue) Blocking() bool {
	return i.Kind == IssueDuplicateStatementDetected
}
