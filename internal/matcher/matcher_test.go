package matcher

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestExtractReferenceCode(t *testing.T) {
	cases := []struct {
		text string
		want string
		ok   bool
	}{
		{"Amt: 500 Ref ABC123", "ABC123", true},
		{"txn ref FX92JK1 confirmed", "FX92JK1", true},
		{"ref fx92jk1 confirmed", "FX92JK1", true}, // 统一大写
		{"short ab12", "", false},                  // 不足 6 位
		{"run 1234567890123 too long then OK1234", "OK1234", true}, // 超长段整段跳过
		{"", "", false},
		{"QWERTY987654", "QWERTY987654", true}, // 恰好 12 位
		{"no digits or codes here at all!", "DIGITS", true},
	}
	for _, c := range cases {
		got, ok := ExtractReferenceCode(c.text)
		if ok != c.ok || got != c.want {
			t.Fatalf("ExtractReferenceCode(%q) = (%q, %v), want (%q, %v)", c.text, got, ok, c.want, c.ok)
		}
	}
}

func TestExtractAmount(t *testing.T) {
	cases := []struct {
		text string
		want string
		ok   bool
	}{
		{"Amount: 1,500.00", "1500", true},
		{"Amt: 500 Ref ABC123", "500", true},
		{"You have paid KSH 2,000 to TILL", "2000", true},
		{"paid 75.50 to merchant", "75.5", true},
		{"just some text with 500 in it", "", false},   // 无关键词的裸数字不认
		{"amount due soon", "", false},                 // 关键词后没有数字
		{"Ref ABC123 Amt ABC123", "", false},           // 参考号不是金额
		{"AMOUNT 3,250,000.75 credited", "3250000.75", true},
		{"", "", false},
	}
	for _, c := range cases {
		got, ok := ExtractAmount(c.text)
		if ok != c.ok {
			t.Fatalf("ExtractAmount(%q) ok = %v, want %v", c.text, ok, c.ok)
		}
		if !c.ok {
			continue
		}
		want, err := decimal.NewFromString(c.want)
		if err != nil {
			t.Fatalf("bad case amount %q: %v", c.want, err)
		}
		if !got.Equal(want) {
			t.Fatalf("ExtractAmount(%q) = %s, want %s", c.text, got, want)
		}
	}
}

func TestExtractorsAreDeterministic(t *testing.T) {
	text := "M-PESA QX71ZZ9 Confirmed. Ksh 1,200.00 received. Amount 999 ignored (leftmost wins)."
	ref1, _ := ExtractReferenceCode(text)
	amt1, _ := ExtractAmount(text)
	for i := 0; i < 10; i++ {
		ref, ok := ExtractReferenceCode(text)
		if !ok || ref != ref1 {
			t.Fatalf("reference extraction not stable: %q vs %q", ref, ref1)
		}
		amt, ok := ExtractAmount(text)
		if !ok || !amt.Equal(amt1) {
			t.Fatalf("amount extraction not stable: %s vs %s", amt, amt1)
		}
	}
	if amt1.String() != "1200" {
		t.Fatalf("leftmost keyword should win, got %s", amt1)
	}
}
