// Package chain orders an unordered set of statements into one chronological
// sequence by matching closing balances to opening balances, without ever letting a
// balance match move the chain backwards in time.
package chain

import (
	"cmp"
	"math"
	"slices"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cleared-dev/continuity/internal/id"
	"github.com/cleared-dev/continuity/internal/logging"
	"github.com/cleared-dev/continuity/internal/model"
	"github.com/cleared-dev/continuity/internal/money"
)

// Result is the chain order and one link per adjacent pair.
type Result struct {
	Order []string
	Links []model.ContinuityLink
}

type node struct {
	s       model.Statement
	dateMin time.Time
	dateMax time.Time
}

type builder struct {
	log       logrus.FieldLogger
	nodes     []node
	visited   []bool
	decisions map[[2]int]model.ChainDecision
}

// Build orders stmts. The result depends only on the set of statements, never on
// their input order.
func Build(stmts []model.Statement, log logrus.FieldLogger) Result {
	b := &builder{
		log:       logging.OrDiscard(log),
		decisions: make(map[[2]int]model.ChainDecision),
	}
	for _, s := range stmts {
		b.nodes = append(b.nodes, node{s: s, dateMin: s.DateMin(), dateMax: s.DateMax()})
	}
	slices.SortStableFunc(b.nodes, func(x, y node) int { return id.Compare(x.s.ID, y.s.ID) })
	b.visited = make([]bool, len(b.nodes))

	if len(b.nodes) == 0 {
		return Result{}
	}

	order := b.walk(b.head())
	order = append(order, b.remainder()...)

	res := Result{Order: make([]string, len(order))}
	for i, n := range order {
		res.Order[i] = b.nodes[n].s.ID
	}
	for i := 0; i+1 < len(order); i++ {
		res.Links = append(res.Links, b.link(order[i], order[i+1]))
	}
	return res
}

// compareKey orders statements by earliest transaction date (statements without
// dated rows last), then natural ID.
func (b *builder) compareKey(i, j int) int {
	x, y := b.nodes[i], b.nodes[j]
	switch {
	case x.dateMin.IsZero() != y.dateMin.IsZero():
		if x.dateMin.IsZero() {
			return 1
		}
		return -1
	case !x.dateMin.Equal(y.dateMin):
		return x.dateMin.Compare(y.dateMin)
	}
	return id.Compare(x.s.ID, y.s.ID)
}

// comparePeriod orders by period start, then compareKey. Both must have a period start.
func (b *builder) comparePeriod(i, j int) int {
	if c := b.nodes[i].s.PeriodStart.Compare(b.nodes[j].s.PeriodStart); c != 0 {
		return c
	}
	return b.compareKey(i, j)
}

func (b *builder) head() int {
	var withPeriod []int
	for i, n := range b.nodes {
		if n.s.HasPeriodStart() {
			withPeriod = append(withPeriod, i)
		}
	}
	if len(withPeriod) > 0 {
		h := slices.MinFunc(withPeriod, b.comparePeriod)
		b.log.WithField("head", b.nodes[h].s.ID).Debug("chain head: earliest period start")
		return h
	}

	// A statement whose opening balance is nobody's closing balance starts the sequence.
	var natural []int
	for i, n := range b.nodes {
		if !n.s.StartBalance.Valid || !n.s.EndBalance.Valid {
			continue
		}
		continues := false
		for j, m := range b.nodes {
			if j != i && m.s.EndBalance.Valid && money.Within(m.s.EndBalance.Value, n.s.StartBalance.Value) {
				continues = true
				break
			}
		}
		if !continues {
			natural = append(natural, i)
		}
	}
	if len(natural) > 0 {
		h := slices.MinFunc(natural, b.compareKey)
		b.log.WithField("head", b.nodes[h].s.ID).Debug("chain head: unmatched opening balance")
		return h
	}

	all := make([]int, len(b.nodes))
	for i := range all {
		all[i] = i
	}
	h := slices.MinFunc(all, b.compareKey)
	b.log.WithField("head", b.nodes[h].s.ID).Debug("chain head: earliest transaction date")
	return h
}

func (b *builder) walk(cur int) []int {
	var order []int
	for {
		b.visited[cur] = true
		order = append(order, cur)
		if len(order) == len(b.nodes) {
			return order
		}

		next, ok := b.choose(cur)
		if !ok {
			return order
		}
		cur = next
	}
}

// choose picks the successor of cur, recording the decision. ok is false when the
// walk must stop.
func (b *builder) choose(cur int) (next int, ok bool) {
	a := b.nodes[cur].s
	log := b.log.WithField("prev", a.ID)

	if !a.EndBalance.Valid {
		log.Info("chain terminated: closing balance unknown")
		return 0, false
	}

	var candidates, pass, fail, unknown []int
	for j, n := range b.nodes {
		if b.visited[j] || !n.s.StartBalance.Valid {
			continue
		}
		if !money.Within(n.s.StartBalance.Value, a.EndBalance.Value) {
			continue
		}
		candidates = append(candidates, j)
		switch {
		case !a.HasPeriodStart() || !n.s.HasPeriodStart():
			unknown = append(unknown, j)
		case n.s.PeriodStart.Before(a.PeriodStart):
			fail = append(fail, j)
		default:
			pass = append(pass, j)
		}
	}

	d := model.ChainDecision{
		CandidatesTotal:   len(candidates),
		CandidatesKnown:   len(pass) + len(fail),
		CandidatesPass:    len(pass),
		CandidatesFail:    len(fail),
		CandidatesUnknown: len(unknown),
	}
	log = log.WithFields(logrus.Fields{
		"candidates": d.CandidatesTotal,
		"pass":       d.CandidatesPass,
		"fail":       d.CandidatesFail,
		"unknown":    d.CandidatesUnknown,
	})

	switch {
	case len(pass) > 0:
		next = slices.MinFunc(pass, b.comparePeriod)
		d.Path = model.PathBalance
		d.GateApplied = true
		d.Note = "balance link used; chronology gate applied; chose earliest period start"

	case a.HasPeriodStart():
		fb, found := b.nextChronological(cur)
		if !found {
			log.Info("chain terminated: no balance candidate moves forward and no later statement exists")
			return 0, false
		}
		next = fb
		d.Path = model.PathChronological
		d.GateApplied = true
		if len(candidates) > 0 {
			d.Note = "no forward balance candidate; chronological next used (never backwards)"
		} else {
			d.Note = "balance link failed; chronological next used (never backwards)"
		}

	case len(candidates) > 0:
		next = slices.MinFunc(candidates, b.compareKey)
		d.Path = model.PathBalanceUngated
		d.Note = "balance link used; chronology gate skipped (missing period dates)"
		log.WithField("next", b.nodes[next].s.ID).Warn("chronology gate skipped (missing period dates)")

	default:
		log.Info("chain terminated: no balance candidate and no period dates")
		return 0, false
	}

	b.decisions[[2]int{cur, next}] = d
	log.WithFields(logrus.Fields{
		"next": b.nodes[next].s.ID,
		"path": d.Path,
	}).Debug("chain link chosen")
	return next, true
}

// nextChronological returns the unvisited statement starting on or after cur's
// period start that begins closest to cur's period end.
func (b *builder) nextChronological(cur int) (int, bool) {
	a := b.nodes[cur].s
	type ranked struct {
		gap int
		j   int
	}
	var cands []ranked
	for j, n := range b.nodes {
		if b.visited[j] || !n.s.HasPeriodStart() || n.s.PeriodStart.Before(a.PeriodStart) {
			continue
		}
		gap := math.MaxInt
		if !a.PeriodEnd.IsZero() {
			gap = model.DaysBetween(a.PeriodEnd, n.s.PeriodStart)
		}
		cands = append(cands, ranked{gap: gap, j: j})
	}
	if len(cands) == 0 {
		return 0, false
	}
	best := slices.MinFunc(cands, func(x, y ranked) int {
		if c := cmp.Compare(x.gap, y.gap); c != 0 {
			return c
		}
		return b.comparePeriod(x.j, y.j)
	})
	return best.j, true
}

// remainder returns unvisited statements: those with a period start by period, then
// the rest by earliest transaction date.
func (b *builder) remainder() []int {
	var dated, undated []int
	for j, n := range b.nodes {
		if b.visited[j] {
			continue
		}
		if n.s.HasPeriodStart() {
			dated = append(dated, j)
		} else {
			undated = append(undated, j)
		}
	}
	slices.SortFunc(dated, b.comparePeriod)
	slices.SortFunc(undated, b.compareKey)
	if n := len(dated) + len(undated); n > 0 {
		b.log.WithField("count", n).Debug("appending statements not reached by the walk")
	}
	return append(dated, undated...)
}

func (b *builder) link(i, j int) model.ContinuityLink {
	prev, next := b.nodes[i], b.nodes[j]
	l := model.ContinuityLink{
		PrevID:    prev.s.ID,
		NextID:    next.s.ID,
		PrevEnd:   prev.s.EndBalance,
		NextStart: next.s.StartBalance,
		Status:    model.StatusNotChecked,
	}

	if d, ok := b.decisions[[2]int{i, j}]; ok {
		l.Decision = d
	} else {
		l.Decision = model.ChainDecision{
			Path: model.PathRemainder,
			Note: "appended after the balance walk ended",
		}
	}

	if prev.s.EndBalance.Valid && next.s.StartBalance.Valid {
		diff := prev.s.EndBalance.Value.Sub(next.s.StartBalance.Value)
		l.Diff = model.Amount(diff)
		if money.Within(prev.s.EndBalance.Value, next.s.StartBalance.Value) {
			l.Status = model.StatusOK
		} else {
			l.Status = model.StatusMismatch
		}
	}
	l.DisplayStatus = string(l.Status)

	if !prev.dateMax.IsZero() && !next.dateMin.IsZero() {
		from := prev.dateMax.AddDate(0, 0, 1)
		to := next.dateMin.AddDate(0, 0, -1)
		if !from.After(to) {
			l.Gap = &model.DateRange{Start: from, End: to}
		}
	}
	return l
}
