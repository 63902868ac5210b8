package importer

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cleared-dev/continuity/internal/model"
)

// ExtractParser reads the native extract document: one statement already pulled out of
// its source by an external tool, as YAML or JSON.
type ExtractParser struct{}

// Extract is the native statement document. Money and dates are kept as text so that
// bad values reach the audit instead of failing the load; numbers are accepted too.
type Extract struct {
	ID                string       `yaml:"id,omitempty"`
	AccountHolder     string       `yaml:"account_holder,omitempty"`
	PeriodStart       string       `yaml:"period_start,omitempty"`
	PeriodEnd         string       `yaml:"period_end,omitempty"`
	StartBalance      string       `yaml:"start_balance,omitempty"`
	EndBalance        string       `yaml:"end_balance,omitempty"`
	BalancesSupported *bool        `yaml:"balances_supported,omitempty"`
	Transactions      []ExtractRow `yaml:"transactions"`
}

// ExtractRow is one transaction of an Extract.
type ExtractRow struct {
	Date        string `yaml:"date"`
	Type        string `yaml:"type"`
	Description string `yaml:"description"`
	Amount      string `yaml:"amount"`
	Balance     string `yaml:"balance,omitempty"`
}

// Format returns the parser name.
func (p *ExtractParser) Format() string { return "extract" }

// Extensions lists the file extensions Scan picks up for this format.
func (p *ExtractParser) Extensions() []string { return []string{".yaml", ".yml", ".json"} }

// Open decodes one extract document.
func (p *ExtractParser) Open(r io.Reader) (Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading extract: %w", err)
	}
	var e Extract
	if err := yaml.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("parsing extract: %w", err)
	}
	return &e, nil
}

// ExtractTransactions converts the rows. Unparsable dates become blank.
func (e *Extract) ExtractTransactions() ([]model.Transaction, error) {
	txns := make([]model.Transaction, 0, len(e.Transactions))
	for _, r := range e.Transactions {
		date, _ := model.ParseDate(r.Date)
		txns = append(txns, model.Transaction{
			Date:        date,
			Type:        r.Type,
			Description: r.Description,
			Amount:      model.ParseMoney(r.Amount),
			Balance:     model.ParseMoney(r.Balance),
		})
	}
	return txns, nil
}

func (e *Extract) ExtractStatementBalances() (model.Money, model.Money, error) {
	if e.BalancesSupported != nil && !*e.BalancesSupported {
		return model.NoMoney, model.NoMoney, ErrBalancesUnsupported
	}
	return model.ParseMoney(e.StartBalance), model.ParseMoney(e.EndBalance), nil
}

func (e *Extract) ExtractStatementPeriod() (time.Time, time.Time) {
	start, _ := model.ParseDate(e.PeriodStart)
	end, _ := model.ParseDate(e.PeriodEnd)
	return start, end
}

func (e *Extract) ExtractAccountHolderName() string {
	return e.AccountHolder
}

// ExtractFrom renders a statement as an extract document.
func ExtractFrom(s model.Statement) Extract {
	e := Extract{
		ID:            s.ID,
		AccountHolder: s.AccountHolder,
		PeriodStart:   model.FormatDate(s.PeriodStart),
		PeriodEnd:     model.FormatDate(s.PeriodEnd),
		StartBalance:  s.StartBalance.String(),
		EndBalance:    s.EndBalance.String(),
		Transactions:  make([]ExtractRow, 0, len(s.Transactions)),
	}
	if s.BalancesUnsupported {
		no := false
		e.BalancesSupported = &no
	}
	for _, t := range s.Transactions {
		e.Transactions = append(e.Transactions, ExtractRow{
			Date:        model.FormatDate(t.Date),
			Type:        t.Type,
			Description: t.Description,
			Amount:      t.Amount.String(),
			Balance:     t.Balance.String(),
		})
	}
	return e
}

// DecodeBatch decodes {"statements": [extract, ...]} as sent to the HTTP API. JSON is
// read through the YAML decoder so numeric money values keep their literal text.
func DecodeBatch(data []byte) ([]model.Statement, error) {
	var batch struct {
		Statements []Extract `yaml:"statements"`
	}
	if err := yaml.Unmarshal(data, &batch); err != nil {
		return nil, fmt.Errorf("parsing batch: %w", err)
	}

	stmts := make([]model.Statement, 0, len(batch.Statements))
	for i := range batch.Statements {
		e := &batch.Statements[i]
		if e.ID == "" {
			return nil, fmt.Errorf("statement %d: id is required", i+1)
		}
		s, err := Build(e.ID, e)
		if err != nil {
			return nil, fmt.Errorf("statement %s: %w", e.ID, err)
		}
		stmts = append(stmts, s)
	}
	return stmts, nil
}
