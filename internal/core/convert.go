package core

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// numericRegex validates that a string is a valid numeric format after cleanup.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// maxExponent bounds the scale of a parsed cell; anything beyond it is
// treated as malformed.
const maxExponent = 30

// numericPrefix captures a leading number from text such as "12 pcs".
var numericPrefix = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)`)

// ParseNumber reads a cell as a decimal. Currency symbols, thousands
// separators and accounting negatives "(1,234.56)" are accepted. When the
// cleaned text is not a number its leading numeric prefix is used, and
// when there is none the result is zero. It never fails.
func ParseNumber(s string) decimal.Decimal {
	s = CleanNumeric(s)
	if s == "" {
		return decimal.Zero
	}

	if !numericRegex.MatchString(s) {
		s = numericPrefix.FindString(s)
		if s == "" {
			return decimal.Zero
		}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	if exp := d.Exponent(); exp > maxExponent || exp < -maxExponent {
		return decimal.Zero
	}
	return d
}

// CleanNumeric strips formatting from a numeric cell.
func CleanNumeric(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	s = strings.NewReplacer("$", "", "€", "", "£", "", "¥", "", ",", "", " ", "").Replace(s)
	if negative && s != "" {
		s = "-" + s
	}
	return s
}

// RoundMoney rounds to two decimal places.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
