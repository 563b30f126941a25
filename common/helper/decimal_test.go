package helper

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestTrimDecimal(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0", "0.00"},
		{"500", "500.00"},
		{"1500.5", "1500.50"},
		{"75.505", "75.51"},
		{"75.504", "75.50"},
		{"-12.3", "-12.30"},
	}
	for _, c := range cases {
		d, err := decimal.NewFromString(c.in)
		if err != nil {
			t.Fatalf("bad case %q: %v", c.in, err)
		}
		if got := TrimDecimal(d); got != c.want {
			t.Fatalf("TrimDecimal(%s) = %q, want %q", c.in, got, c.want)
		}
	}
}
