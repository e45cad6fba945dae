package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Money is an amount in minor units (cents). It is stored as an integer and
// rendered as a fixed two-decimal string ("50.00") on the wire so clients
// never see float rounding.
type Money int64

// MaxMoney is the largest price accepted: ten digits, two of them decimals.
const MaxMoney Money = 99_999_999_99

var ErrInvalidMoney = errors.New("invalid amount")

// ParseMoney parses a non-negative decimal with at most two fractional
// digits, e.g. "50", "50.5" or "50.00".
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidMoney
	}
	whole, frac, hasDot := strings.Cut(s, ".")
	if whole == "" || (hasDot && (frac == "" || len(frac) > 2)) {
		return 0, ErrInvalidMoney
	}
	for _, part := range []string{whole, frac} {
		for _, r := range part {
			if r < '0' || r > '9' {
				return 0, ErrInvalidMoney
			}
		}
	}
	for len(frac) < 2 {
		frac += "0"
	}
	cents, err := strconv.ParseInt(whole+frac, 10, 64)
	if err != nil || Money(cents) > MaxMoney {
		return 0, ErrInvalidMoney
	}
	return Money(cents), nil
}

// String formats the amount with exactly two decimals.
func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts either a string ("50.00") or a JSON number (50).
func (m *Money) UnmarshalJSON(data []byte) error {
	var raw string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	} else {
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return ErrInvalidMoney
		}
		raw = n.String()
	}
	parsed, err := ParseMoney(raw)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
