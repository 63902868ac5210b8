package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/cleared-dev/continuity/internal/model"
)

// ChaseParser parses Chase CSV exports. Checking exports carry a running balance;
// credit card exports do not, so their balances are unsupported.
type ChaseParser struct{}

const (
	chaseDateFormat = "01/02/2006"
	chaseNumFields  = 7

	// checking: Details,Posting Date,Description,Amount,Type,Balance,Check or Slip #
	chaseColDate    = 1
	chaseColDesc    = 2
	chaseColAmount  = 3
	chaseColType    = 4
	chaseColBalance = 5

	// card: Transaction Date,Post Date,Description,Category,Type,Amount,Memo
	chaseCardColDate   = 0
	chaseCardColDesc   = 2
	chaseCardColType   = 4
	chaseCardColAmount = 5
)

// Format returns the parser name.
func (p *ChaseParser) Format() string { return "chase" }

// Extensions lists the file extensions Scan picks up for this format.
func (p *ChaseParser) Extensions() []string { return []string{".csv"} }

// Open reads a Chase CSV. Rows are returned oldest first; Chase lists newest first.
func (p *ChaseParser) Open(r io.Reader) (Document, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = chaseNumFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading chase CSV: %w", err)
	}

	doc := &chaseDocument{}
	if len(records) == 0 {
		return doc, nil
	}
	doc.card = strings.EqualFold(strings.TrimSpace(records[0][0]), "Transaction Date")

	for _, rec := range records[1:] {
		doc.txns = append(doc.txns, doc.parseRow(rec))
	}
	slices.Reverse(doc.txns)
	return doc, nil
}

type chaseDocument struct {
	card bool
	txns []model.Transaction
}

func (d *chaseDocument) parseRow(rec []string) model.Transaction {
	if d.card {
		return model.Transaction{
			Date:        chaseDate(rec[chaseCardColDate]),
			Type:        strings.TrimSpace(rec[chaseCardColType]),
			Description: strings.TrimSpace(rec[chaseCardColDesc]),
			Amount:      model.ParseMoney(rec[chaseCardColAmount]),
		}
	}
	return model.Transaction{
		Date:        chaseDate(rec[chaseColDate]),
		Type:        strings.TrimSpace(rec[chaseColType]),
		Description: strings.TrimSpace(rec[chaseColDesc]),
		Amount:      model.ParseMoney(rec[chaseColAmount]),
		Balance:     model.ParseMoney(rec[chaseColBalance]),
	}
}

// chaseDate parses MM/DD/YYYY. Unparsable dates are left blank for the audit to report.
func chaseDate(s string) time.Time {
	d, err := time.Parse(chaseDateFormat, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}
	}
	return d
}

func (d *chaseDocument) ExtractTransactions() ([]model.Transaction, error) {
	return d.txns, nil
}

// ExtractStatementBalances derives the opening balance from the oldest row (its
// balance minus its amount) and the closing balance from the newest row.
func (d *chaseDocument) ExtractStatementBalances() (model.Money, model.Money, error) {
	if d.card {
		return model.NoMoney, model.NoMoney, ErrBalancesUnsupported
	}
	if len(d.txns) == 0 {
		return model.NoMoney, model.NoMoney, nil
	}

	start := model.NoMoney
	if oldest := d.txns[0]; oldest.Balance.Valid && oldest.Amount.Valid {
		start = model.Amount(oldest.Balance.Value.Sub(oldest.Amount.Value))
	}
	return start, d.txns[len(d.txns)-1].Balance, nil
}

// ExtractStatementPeriod returns nothing: Chase exports cover whatever range was
// requested and say nothing about it.
func (d *chaseDocument) ExtractStatementPeriod() (time.Time, time.Time) {
	return time.Time{}, time.Time{}
}

func (d *chaseDocument) ExtractAccountHolderName() string { return "" }
