package money

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Tolerance returns the largest difference treated as equal for every balance
// comparison: 0.01.
func Tolerance() decimal.Decimal { return decimal.New(1, -2) }

var (
	markerSuffix = regexp.MustCompile(`(?i)\s*(CR|DR|CREDIT|DEBIT)\.?$`)
	negative     = regexp.MustCompile(`(?i)^(DR|DEBIT)`)
	numberToken  = regexp.MustCompile(`^[-+]?(\d+(\.\d+)?|\.\d+)([eE][-+]?\d+)?$`)
)

var replacer = strings.NewReplacer(
	"£", "",
	"$", "",
	"€", "",
	",", "",
	" ", "",
	"\u00a0", "",
	"\u2212", "-",
	"\u2013", "-",
	"\u2014", "-",
)

// Parse converts statement money text such as "£1,234.56", "(12.34)", "250.00 DR"
// or a number literal like "4.2E1" to a 2dp decimal. ok is false for blank or unparsable input.
func Parse(s string) (d decimal.Decimal, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}

	neg := false
	if m := markerSuffix.FindStringSubmatch(s); m != nil {
		neg = negative.MatchString(m[1])
		s = strings.TrimSpace(s[:len(s)-len(m[0])])
	}

	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = replacer.Replace(s)
	if s == "" || !numberToken.MatchString(s) {
		return decimal.Zero, false
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	if neg {
		d = d.Abs().Neg()
	}
	return d.Round(2), true
}

// Within reports whether a and b differ by no more than Tolerance.
func Within(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(Tolerance())
}

// Format renders d as "£1,234.56" or "-£1,234.56".
func Format(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	return sign + "£" + group(d.StringFixed(2))
}

// FormatSigned renders d as "+12.34" or "-12.34".
func FormatSigned(d decimal.Decimal) string {
	if d.IsNegative() {
		return d.StringFixed(2)
	}
	return "+" + d.StringFixed(2)
}

// group inserts thousands separators into a non-negative fixed-point string.
func group(s string) string {
	intPart, frac, _ := strings.Cut(s, ".")
	if len(intPart) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(intPart) % 3
	if lead > 0 {
		b.WriteString(intPart[:lead])
	}
	for i := lead; i < len(intPart); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(intPart[i : i+3])
	}
	if frac != "" {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}
