package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/cleared-dev/continuity/internal/model"
)

// ConverterParser parses the CSV written by the PDF statement converter: optional
// "# Key,Value" metadata rows, then Date,Description,Type,Amount,Balance. Amounts are
// unsigned with the direction in Type (DEBIT or CREDIT).
type ConverterParser struct{}

const (
	convNumFields = 5
	convColDate   = 0
	convColDesc   = 1
	convColType   = 2
	convColAmount = 3
	convColBal    = 4
)

var convPeriodSep = regexp.MustCompile(`(?i)\s+(?:to|-|–)\s+`)

// Format returns the parser name.
func (p *ConverterParser) Format() string { return "converter" }

// Extensions lists the file extensions Scan picks up for this format.
func (p *ConverterParser) Extensions() []string { return []string{".csv"} }

// Open reads a converter CSV.
func (p *ConverterParser) Open(r io.Reader) (Document, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading converter CSV: %w", err)
	}

	doc := &converterDocument{meta: make(map[string]string)}
	header := false
	for i, rec := range records {
		if len(rec) == 0 {
			continue
		}
		first := strings.TrimSpace(rec[0])
		if strings.HasPrefix(first, "#") {
			key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(first, "#")))
			if len(rec) > 1 {
				doc.meta[key] = strings.TrimSpace(rec[1])
			}
			continue
		}
		if !header {
			if !strings.EqualFold(first, "Date") {
				return nil, fmt.Errorf("row %d: expected Date,Description,Type,Amount,Balance header", i+1)
			}
			header = true
			continue
		}
		if len(rec) != convNumFields {
			return nil, fmt.Errorf("row %d: expected %d fields, got %d", i+1, convNumFields, len(rec))
		}
		doc.rows = append(doc.rows, rec)
	}
	doc.parse()
	return doc, nil
}

type converterDocument struct {
	meta       map[string]string
	rows       [][]string
	txns       []model.Transaction
	start, end model.Money
}

// parse converts rows, lifting balance brought/carried forward rows out of the
// transactions and into the opening and closing balances.
func (d *converterDocument) parse() {
	d.start = model.ParseMoney(d.meta["opening balance"])
	d.end = model.ParseMoney(d.meta["closing balance"])

	for i, rec := range d.rows {
		desc := strings.TrimSpace(rec[convColDesc])
		amount := strings.TrimSpace(rec[convColAmount])
		upper := strings.ToUpper(desc)

		if amount == "" && strings.Contains(upper, "BROUGHT FORWARD") && i == 0 {
			if d.start.Blank() {
				d.start = model.ParseMoney(rec[convColBal])
			}
			continue
		}
		if amount == "" && strings.Contains(upper, "CARRIED FORWARD") && i == len(d.rows)-1 {
			if d.end.Blank() {
				d.end = model.ParseMoney(rec[convColBal])
			}
			continue
		}

		date, _ := model.ParseDate(rec[convColDate])
		t := model.Transaction{
			Date:        date,
			Type:        strings.TrimSpace(rec[convColType]),
			Description: desc,
			Amount:      model.ParseMoney(amount),
			Balance:     model.ParseMoney(rec[convColBal]),
		}
		if t.Amount.Valid && t.Amount.Value.IsPositive() && strings.EqualFold(t.Type, "DEBIT") {
			t.Amount = model.Amount(t.Amount.Value.Neg())
		}
		d.txns = append(d.txns, t)
	}
}

func (d *converterDocument) ExtractTransactions() ([]model.Transaction, error) {
	return d.txns, nil
}

// ExtractStatementBalances falls back to the last row's balance for the close when
// the file states none.
func (d *converterDocument) ExtractStatementBalances() (model.Money, model.Money, error) {
	end := d.end
	if end.Blank() && len(d.txns) > 0 {
		end = d.txns[len(d.txns)-1].Balance
	}
	return d.start, end, nil
}

// ExtractStatementPeriod parses "# Statement Period" as "<date> to <date>".
func (d *converterDocument) ExtractStatementPeriod() (time.Time, time.Time) {
	parts := convPeriodSep.Split(d.meta["statement period"], 2)
	if len(parts) != 2 {
		return time.Time{}, time.Time{}
	}
	start, ok1 := model.ParseDate(parts[0])
	end, ok2 := model.ParseDate(parts[1])
	if !ok1 || !ok2 {
		return time.Time{}, time.Time{}
	}
	return start, end
}

func (d *converterDocument) ExtractAccountHolderName() string {
	return d.meta["account holder"]
}
