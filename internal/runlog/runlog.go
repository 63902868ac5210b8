package runlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cleared-dev/continuity/internal/continuity"
	"github.com/cleared-dev/continuity/internal/id"
	"github.com/cleared-dev/continuity/internal/model"
)

// Entry is one row in the run log.
type Entry struct {
	Timestamp time.Time
	RunID     string
	Stage     string
	Statement string
	Status    string
	Details   string
}

// Stages written by FromReport.
const (
	StageReconcile = "reconcile"
	StageAudit     = "audit"
	StageDuplicate = "duplicate"
	StageLink      = "link"
	StageRemoval   = "removal"
)

// Header is the CSV header for continuity-log.csv.
const Header = "timestamp,run_id,stage,statement,status,details"

// FileName is the log file written inside the run log directory.
const FileName = "continuity-log.csv"

const (
	numFields    = 6
	colTimestamp = 0
	colRunID     = 1
	colStage     = 2
	colStatement = 3
	colStatus    = 4
	colDetails   = 5
)

// NewRunID returns a fresh identifier for one run.
func NewRunID() string {
	return uuid.NewString()
}

// FromReport flattens a report into log entries, one per statement check, duplicate
// group, chain link and removal.
func FromReport(runID string, now time.Time, r *continuity.Report) []Entry {
	var entries []Entry
	add := func(stage, stmt, status, details string) {
		entries = append(entries, Entry{
			Timestamp: now,
			RunID:     runID,
			Stage:     stage,
			Statement: stmt,
			Status:    status,
			Details:   details,
		})
	}

	for _, rec := range r.Reconciliations {
		add(StageReconcile, rec.StatementID, string(rec.Status),
			fmt.Sprintf("start %s, end %s, expected %s", orDash(rec.StartBalance), orDash(rec.EndBalance), orDash(rec.ExpectedEnd)))
	}
	for _, a := range r.Audits {
		add(StageAudit, a.StatementID, string(a.Status), a.BalanceWalk.Summary+"; "+a.RowShape.Summary)
	}
	for _, g := range r.DuplicateGroups {
		add(StageDuplicate, strings.Join(g.StatementIDs, " = "), "Blocked", "identical transactions")
	}
	for _, l := range r.Links {
		details := fmt.Sprintf("%s: %s", l.Decision.Path, l.Decision.Note)
		if l.OverlapNote != "" {
			details += "; " + l.OverlapNote
		}
		add(StageLink, l.PrevID+" -> "+l.NextID, l.DisplayStatus, details)
	}

	ids := make([]string, 0, len(r.RemovalPlan))
	for k := range r.RemovalPlan {
		ids = append(ids, k)
	}
	slices.SortFunc(ids, id.Compare)
	for _, k := range ids {
		rows := make([]string, len(r.RemovalPlan[k]))
		for i, idx := range r.RemovalPlan[k] {
			rows[i] = strconv.Itoa(idx + 1)
		}
		add(StageRemoval, k, "Planned", "rows "+strings.Join(rows, " "))
	}
	return entries
}

func orDash(m model.Money) string {
	if m.Blank() {
		return "-"
	}
	return m.String()
}

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colTimestamp] = e.Timestamp.Format(time.RFC3339)
	row[colRunID] = e.RunID
	row[colStage] = e.Stage
	row[colStatement] = e.Statement
	row[colStatus] = e.Status
	row[colDetails] = e.Details
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339, record[colTimestamp])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}

	return Entry{
		Timestamp: ts,
		RunID:     record[colRunID],
		Stage:     record[colStage],
		Statement: record[colStatement],
		Status:    record[colStatus],
		Details:   record[colDetails],
	}, nil
}

// Append writes entries to <dir>/continuity-log.csv, creating the file and header if
// needed.
func Append(dir string, entries []Entry) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating run log dir: %w", err)
	}

	path := filepath.Join(dir, FileName)
	needsHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening run log: %w", err)
	}
	if err := Write(f, entries, needsHeader); err != nil {
		f.Close()
		return fmt.Errorf("writing run log %s: %w", path, err)
	}
	return f.Close()
}

// Write writes entries to w as CSV rows, preceded by the header when header is set.
func Write(w io.Writer, entries []Entry, header bool) error {
	cw := csv.NewWriter(w)
	if header {
		if err := cw.Write(strings.Split(Header, ",")); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}
	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Read returns all entries from <dir>/continuity-log.csv, or nil if it does not exist.
func Read(dir string) ([]Entry, error) {
	f, err := os.Open(filepath.Join(dir, FileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening run log: %w", err)
	}
	defer f.Close()

	return readEntries(f)
}

// Runs returns the entries of one run.
func Runs(entries []Entry, runID string) []Entry {
	var out []Entry
	for _, e := range entries {
		if e.RunID == runID {
			out = append(out, e)
		}
	}
	return out
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading run log CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var entries []Entry
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
