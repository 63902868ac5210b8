package model

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/continuity/internal/money"
)

// Money is an optional monetary value that remembers the text it was parsed from,
// so "blank" and "present but unparsable" stay distinguishable.
type Money struct {
	Raw   string
	Value decimal.Decimal // meaningful only when Valid
	Valid bool
}

// NoMoney is the absent value.
var NoMoney = Money{}

// ParseMoney parses raw statement text. Unparsable text yields an invalid Money that
// still carries Raw.
func ParseMoney(raw string) Money {
	raw = strings.TrimSpace(raw)
	v, ok := money.Parse(raw)
	return Money{Raw: raw, Value: v, Valid: ok}
}

// Amount wraps a known decimal value.
func Amount(d decimal.Decimal) Money {
	d = d.Round(2)
	return Money{Raw: d.StringFixed(2), Value: d, Valid: true}
}

// Blank reports whether no value was supplied at all.
func (m Money) Blank() bool {
	return !m.Valid && m.Raw == ""
}

// Bad reports whether text was supplied but could not be parsed.
func (m Money) Bad() bool {
	return !m.Valid && m.Raw != ""
}

func (m Money) String() string {
	if m.Valid {
		return m.Value.StringFixed(2)
	}
	return m.Raw
}

// MarshalJSON emits "12.34" for valid values and null otherwise.
func (m Money) MarshalJSON() ([]byte, error) {
	if !m.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(m.Value.StringFixed(2))
}

// UnmarshalJSON accepts a JSON string, number or null.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*m = NoMoney
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	}
	*m = ParseMoney(s)
	return nil
}
