package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/cleared-dev/continuity/internal/continuity"
	"github.com/cleared-dev/continuity/internal/model"
	"github.com/cleared-dev/continuity/internal/money"
)

// palette colours status words. A disabled palette prints plain text.
type palette struct {
	ok, warn, bad, head *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		ok:   color.New(color.FgGreen),
		warn: color.New(color.FgYellow),
		bad:  color.New(color.FgRed, color.Bold),
		head: color.New(color.Bold),
	}
	for _, c := range []*color.Color{p.ok, p.warn, p.bad, p.head} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// status renders text in the colour of s.
func (p palette) status(s model.Status, text string) string {
	switch s {
	case model.StatusOK:
		return p.ok.Sprint(text)
	case model.StatusMismatch:
		return p.bad.Sprint(text)
	default:
		return p.warn.Sprint(text)
	}
}

func printText(w io.Writer, p palette, rep *continuity.Report) {
	fmt.Fprintln(w, p.head.Sprint("Statements"))
	for i, rec := range rep.Reconciliations {
		audit := rep.Audits[i]
		fmt.Fprintf(w, "  %-24s balances %-18s rows %-10s %s -> %s\n",
			rec.StatementID,
			p.status(rec.Status, string(rec.Status)),
			p.status(audit.Status, string(audit.Status)),
			showMoney(rec.StartBalance), showMoney(rec.EndBalance))
	}

	if len(rep.Links) > 0 {
		fmt.Fprintln(w, p.head.Sprint("Chain"))
		for _, l := range rep.Links {
			line := fmt.Sprintf("  %s -> %s  %s", l.PrevID, l.NextID, p.status(l.Status, l.DisplayStatus))
			if l.Diff.Valid && l.Status == model.StatusMismatch {
				line += "  diff " + money.FormatSigned(l.Diff.Value)
			}
			if l.Gap != nil {
				line += "  gap " + l.Gap.String()
			}
			fmt.Fprintf(w, "%s  [%s]\n", line, l.Decision.Path)
		}
	}

	if len(rep.Issues) > 0 {
		fmt.Fprintln(w, p.head.Sprint("Issues"))
		for _, is := range rep.Issues {
			kind := p.warn.Sprint(is.Kind)
			if is.Blocking() || is.Kind == model.IssueContinuityMismatch {
				kind = p.bad.Sprint(is.Kind)
			}
			fmt.Fprintf(w, "  %s [%s]: %s\n", kind, is.StatementID, is.Description)
		}
	}
}

func printDuplicates(w io.Writer, p palette, err *continuity.DuplicateStatementsError) {
	fmt.Fprintln(w, p.bad.Sprint("Duplicate statements"))
	for _, g := range err.Groups {
		fmt.Fprintf(w, "  %s\n", strings.Join(g.StatementIDs, " = "))
	}
	fmt.Fprintln(w, "remove the duplicates and run again")
}

type summary struct {
	runID      string
	statements int
	removed    int
	rows       int
	ledgerPath string
	commit     string
}

func printSummary(w io.Writer, s summary) {
	fmt.Fprintf(w, "%d statements, %d duplicate rows removed, %d ledger rows", s.statements, s.removed, s.rows)
	if s.ledgerPath != "" {
		fmt.Fprintf(w, " written to %s", s.ledgerPath)
	}
	fmt.Fprintf(w, "\nrun %s\n", s.runID)
	if s.commit != "" {
		fmt.Fprintf(w, "committed %s\n", s.commit)
	}
}

func showMoney(m model.Money) string {
	switch {
	case m.Valid:
		return money.Format(m.Value)
	case m.Blank():
		return "?"
	default:
		return fmt.Sprintf("%q", m.Raw)
	}
}
