package utilities

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestFormatToman(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0", "0 Toman"},
		{"500", "500 Toman"},
		{"1500000", "1,500,000 Toman"},
		{"100000000000", "100,000,000,000 Toman"},
		{"-500000", "(500,000) Toman"},
		{"1234567.89", "1,234,568 Toman"}, // whole units only, rounded
	}
	for _, c := range cases {
		if got := FormatToman(decimal.RequireFromString(c.in)); got != c.want {
			t.Errorf("FormatToman(%s)=%q want %q", c.in, got, c.want)
		}
	}
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"500000", "500000", true},
		{"1,500,000", "1500000", true},
		{"1_500_000", "1500000", true},
		{" 2 000 000 ", "2000000", true},
		{"1234.56", "1234.56", true},
		{"0", "", false},
		{"-100", "", false},
		{"", "", false},
		{"abc", "", false},
	}
	for _, c := range cases {
		got, err := ParseAmount(c.in)
		if c.ok != (err == nil) {
			t.Errorf("ParseAmount(%q) err=%v", c.in, err)
			continue
		}
		if c.ok && !got.Equal(decimal.RequireFromString(c.want)) {
			t.Errorf("ParseAmount(%q)=%s want %s", c.in, got, c.want)
		}
	}
}
