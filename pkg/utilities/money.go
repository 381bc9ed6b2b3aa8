package utilities

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatToman renders an amount with thousands separators and the implicit
// base currency unit, e.g. "1,500,000 Toman". Negative amounts render in
// parentheses, accountant style.
func FormatToman(amount decimal.Decimal) string {
	neg := amount.Sign() < 0
	s := groupThousands(amount.Abs().Round(0).String())
	if neg {
		return fmt.Sprintf("(%s) Toman", s)
	}
	return s + " Toman"
}

func groupThousands(digits string) string {
	var b strings.Builder
	n := len(digits)
	for i, c := range digits {
		if i > 0 && (n-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return b.String()
}

// ParseAmount parses human-entered currency text. Commas, underscores and
// spaces are accepted as separators. The amount must be strictly positive;
// range bounds are enforced by the ledger, not here.
func ParseAmount(text string) (decimal.Decimal, error) {
	cleaned := strings.NewReplacer(",", "", "_", "", " ", "").Replace(strings.TrimSpace(text))
	if cleaned == "" {
		return decimal.Decimal{}, fmt.Errorf("empty amount")
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid amount %q: %w", text, err)
	}
	if d.Sign() <= 0 {
		return decimal.Decimal{}, fmt.Errorf("amount must be positive")
	}
	return d, nil
}
