package ledger

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cleared-dev/continuity/internal/model"
)

// Header is the CSV header of a ledger file.
const Header = "date,type,description,amount,balance,statement"

const (
	numFields = 6
	colDate   = 0
	colType   = 1
	colDesc   = 2
	colAmount = 3
	colBal    = 4
	colStmt   = 5
)

// Write writes entries to w, header first.
func Write(w io.Writer, entries []Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, e := range entries {
		if err := cw.Write(Marshal(e)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile writes entries to path, creating parent directories.
func WriteFile(path string, entries []Entry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating ledger directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating ledger: %w", err)
	}
	if err := Write(f, entries); err != nil {
		f.Close()
		return fmt.Errorf("writing ledger %s: %w", path, err)
	}
	return f.Close()
}

// Read reads a ledger written by Write.
func Read(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading ledger CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	var entries []Entry
	for i, rec := range records[1:] {
		e, err := Unmarshal(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Marshal converts an entry to a CSV row. Unparsable money is written as its source
// text.
func Marshal(e Entry) []string {
	row := make([]string, numFields)
	row[colDate] = model.FormatDate(e.Date)
	row[colType] = e.Type
	row[colDesc] = e.Description
	row[colAmount] = e.Amount.String()
	row[colBal] = e.Balance.String()
	row[colStmt] = e.StatementID
	return row
}

// Unmarshal converts a CSV row to an entry.
func Unmarshal(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}
	e := Entry{
		StatementID: record[colStmt],
		Transaction: model.Transaction{
			Type:        record[colType],
			Description: record[colDesc],
			Amount:      model.ParseMoney(record[colAmount]),
			Balance:     model.ParseMoney(record[colBal]),
		},
	}
	if record[colDate] != "" {
		d, ok := model.ParseDate(record[colDate])
		if !ok {
			return Entry{}, fmt.Errorf("parsing date %q", record[colDate])
		}
		e.Date = d
	}
	return e, nil
}
