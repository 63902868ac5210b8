package importer

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/beevik/etree"

	"github.com/cleared-dev/continuity/internal/model"
)

// Camt053Parser parses ISO 20022 camt.053 bank-to-customer statements. One file must
// hold one Stmt.
type Camt053Parser struct{}

// Format returns the parser name.
func (p *Camt053Parser) Format() string { return "camt053" }

// Extensions lists the file extensions Scan picks up for this format.
func (p *Camt053Parser) Extensions() []string { return []string{".xml"} }

// Open reads the XML document.
func (p *Camt053Parser) Open(r io.Reader) (Document, error) {
	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("parsing camt.053 XML: %w", err)
	}

	stmts := doc.FindElements("//BkToCstmrStmt/Stmt")
	switch len(stmts) {
	case 0:
		return nil, fmt.Errorf("no BkToCstmrStmt/Stmt element found")
	case 1:
	default:
		return nil, fmt.Errorf("%d Stmt elements in one document; split the file per statement", len(stmts))
	}
	return &camtDocument{stmt: stmts[0]}, nil
}

type camtDocument struct {
	stmt *etree.Element
}

func (d *camtDocument) ExtractTransactions() ([]model.Transaction, error) {
	var txns []model.Transaction
	for _, ntry := range d.stmt.SelectElements("Ntry") {
		date := camtDate(ntry.FindElement("./BookgDt"))
		if date.IsZero() {
			date = camtDate(ntry.FindElement("./ValDt"))
		}
		txns = append(txns, model.Transaction{
			Date:        date,
			Type:        firstText(ntry, "./BkTxCd/Prtry/Cd", "./BkTxCd/Domn/Cd"),
			Description: firstText(ntry, "./NtryDtls/TxDtls/RmtInf/Ustrd", "./AddtlNtryInf", "./NtryRef"),
			Amount:      camtAmount(ntry),
		})
	}
	return txns, nil
}

// ExtractStatementBalances reads the OPBD and CLBD balances, falling back to PRCD for
// the opening balance.
func (d *camtDocument) ExtractStatementBalances() (model.Money, model.Money, error) {
	byCode := make(map[string]model.Money)
	for _, bal := range d.stmt.SelectElements("Bal") {
		code := strings.ToUpper(firstText(bal, "./Tp/CdOrPrtry/Cd", "./Tp/CdOrPrtry/Prtry"))
		if _, seen := byCode[code]; !seen {
			byCode[code] = camtAmount(bal)
		}
	}
	start, ok := byCode["OPBD"]
	if !ok {
		start = byCode["PRCD"]
	}
	return start, byCode["CLBD"], nil
}

func (d *camtDocument) ExtractStatementPeriod() (time.Time, time.Time) {
	return isoDate(firstText(d.stmt, "./FrToDt/FrDtTm")), isoDate(firstText(d.stmt, "./FrToDt/ToDtTm"))
}

func (d *camtDocument) ExtractAccountHolderName() string {
	return firstText(d.stmt, "./Acct/Ownr/Nm")
}

// camtAmount reads Amt and applies CdtDbtInd: DBIT is negative.
func camtAmount(e *etree.Element) model.Money {
	amt := e.SelectElement("Amt")
	if amt == nil {
		return model.NoMoney
	}
	m := model.ParseMoney(amt.Text())
	if m.Valid && strings.EqualFold(firstText(e, "./CdtDbtInd"), "DBIT") {
		m = model.Amount(m.Value.Abs().Neg())
	}
	return m
}

// camtDate reads a Dt or DtTm child.
func camtDate(e *etree.Element) time.Time {
	if e == nil {
		return time.Time{}
	}
	return isoDate(firstText(e, "./Dt", "./DtTm"))
}

// isoDate parses the date part of an ISO date or date-time.
func isoDate(s string) time.Time {
	if len(s) > len(model.DateFormat) {
		s = s[:len(model.DateFormat)]
	}
	d, _ := model.ParseDate(s)
	return d
}

// firstText returns the trimmed text of the first path that matches.
func firstText(e *etree.Element, paths ...string) string {
	for _, p := range paths {
		if el := e.FindElement(p); el != nil {
			if t := strings.TrimSpace(el.Text()); t != "" {
				return t
			}
		}
	}
	return ""
}
