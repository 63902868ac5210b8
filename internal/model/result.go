package model

import (
	"github.com/shopspring/decimal"
)

// Status is the outcome of one check.
type Status string

const (
	StatusOK               Status = "OK"
	StatusMismatch         Status = "Mismatch"
	StatusNotChecked       Status = "NotChecked"
	StatusWarn             Status = "Warn"
	StatusBalancesNotFound Status = "BalancesNotFound"
	StatusUnsupported      Status = "Unsupported"
)

// ReconciliationResult is the start + net movement = end check for one statement.
type ReconciliationResult struct {
	StatementID  string          `json:"statement_id"`
	StartBalance Money           `json:"start_balance"`
	EndBalance   Money           `json:"end_balance"`
	SumAmounts   decimal.Decimal `json:"sum_amounts"`
	ExpectedEnd  Money           `json:"expected_end"`
	Difference   Money           `json:"difference"`
	Status       Status          `json:"status"`
}

// WalkMismatch is one row whose stated balance disagrees with the running total.
type WalkMismatch struct {
	Row      int             `json:"row"` // 1-based
	Expected decimal.Decimal `json:"expected"`
	Actual   decimal.Decimal `json:"actual"`
}

// EndBalanceCheck compares the last walked balance to the stated closing balance.
type EndBalanceCheck struct {
	LastBalance decimal.Decimal `json:"last_balance"`
	EndBalance  decimal.Decimal `json:"end_balance"`
	Diff        decimal.Decimal `json:"diff"`
	OK          bool            `json:"ok"`
}

// BalanceWalk is the row-by-row running balance check.
type BalanceWalk struct {
	Status              Status           `json:"status"`
	Summary             string           `json:"summary"`
	RowCount            int              `json:"row_count"`
	CheckedRows         int              `json:"checked_rows"`
	ParsableBalanceRows int              `json:"parsable_balance_rows"`
	MissingOrBadRows    int              `json:"missing_or_bad_rows"`
	MismatchCount       int              `json:"mismatch_count"`
	Mismatches          []WalkMismatch   `json:"mismatches,omitempty"` // first few only
	EndCheck            *EndBalanceCheck `json:"end_check,omitempty"`
}

// FieldIssues counts rows with one kind of shape problem.
type FieldIssues struct {
	Count int   `json:"count"`
	Rows  []int `json:"rows,omitempty"` // 1-based examples
}

// RowShape is the structural sanity check over all rows.
type RowShape struct {
	Status             Status      `json:"status"`
	Summary            string      `json:"summary"`
	RowCount           int         `json:"row_count"`
	MissingDate        FieldIssues `json:"missing_date"`
	MissingType        FieldIssues `json:"missing_type"`
	MissingDescription FieldIssues `json:"missing_description"`
	BadAmount          FieldIssues `json:"bad_amount"`
	BadBalance         FieldIssues `json:"bad_balance"`
}

// AuditResult is the per-row audit for one statement.
type AuditResult struct {
	StatementID string      `json:"statement_id"`
	BalanceWalk BalanceWalk `json:"balance_walk"`
	RowShape    RowShape    `json:"row_shape"`
	Status      Status      `json:"status"` // Mismatch > Warn > OK
}

// ChainPath names how the chain builder chose a statement's successor.
type ChainPath string

const (
	PathBalance        ChainPath = "balance"
	PathChronological  ChainPath = "chronological"
	PathBalanceUngated ChainPath = "balance-ungated"
	PathRemainder      ChainPath = "remainder"
)

// ChainDecision records why a link's next statement was placed after its previous one.
type ChainDecision struct {
	Path              ChainPath `json:"path"`
	Note              string    `json:"note"`
	CandidatesTotal   int       `json:"candidates_total"`
	CandidatesKnown   int       `json:"candidates_known"`
	CandidatesPass    int       `json:"candidates_pass"`
	CandidatesFail    int       `json:"candidates_fail"`
	CandidatesUnknown int       `json:"candidates_unknown"`
	GateApplied       bool      `json:"gate_applied"`
}

// ContinuityLink is the balance bridge between two adjacent statements in the chain.
type ContinuityLink struct {
	PrevID        string        `json:"prev_id"`
	NextID        string        `json:"next_id"`
	PrevEnd       Money         `json:"prev_end"`
	NextStart     Money         `json:"next_start"`
	Diff          Money         `json:"diff"` // prev_end - next_start
	Status        Status        `json:"status"`
	DisplayStatus string        `json:"display_status"`
	Gap           *DateRange    `json:"gap,omitempty"` // days between prev's last and next's first row
	Decision      ChainDecision `json:"decision"`

	OverlapAttempted bool            `json:"overlap_attempted"`
	OverlapWindow    *DateRange      `json:"overlap_window,omitempty"`
	OverlapApplied   bool            `json:"overlap_applied"`
	RemovedIndices   []int           `json:"removed_indices,omitempty"` // 0-based rows of next
	DupeSum          decimal.Decimal `json:"dupe_sum"`
	OverlapNote      string          `json:"overlap_note,omitempty"`
}

// DuplicateGroup is a set of statements whose transactions are identical.
type DuplicateGroup struct {
	Fingerprint  string     `json:"fingerprint"`
	StatementIDs []string   `json:"statement_ids"`
	Dates        *DateRange `json:"dates,omitempty"`
	StartBalance Money      `json:"start_balance"`
	EndBalance   Money      `json:"end_balance"`
	TxnCount     int        `json:"txn_count"`
}
