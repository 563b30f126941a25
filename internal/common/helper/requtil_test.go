package helper

import (
	"strings"
	"testing"
)

func TestIsMoneyFormat(t *testing.T) {
	valid := []string{"0", "1", "500", "1500.5", "1500.50", " 20 "}
	for _, s := range valid {
		if !IsMoneyFormat(s) {
			t.Fatalf("IsMoneyFormat(%q) = false, want true", s)
		}
	}
	invalid := []string{"", "-1", "01", "1.234", "1,500", "abc", "1.", ".5"}
	for _, s := range invalid {
		if IsMoneyFormat(s) {
			t.Fatalf("IsMoneyFormat(%q) = true, want false", s)
		}
	}
}

func TestValidateJoin(t *testing.T) {
	in := JoinParsed{PlayerId: "tg_10001", Name: "Alice", CardIds: []int{3, 17}}
	if ok, msg := ValidateJoin(&in); !ok {
		t.Fatalf("valid join rejected: %s", msg)
	}

	bad := []JoinParsed{
		{PlayerId: ""},
		{PlayerId: strings.Repeat("x", 65)},
		{PlayerId: "u1", CardIds: []int{1, 2, 3, 4, 5, 6, 7, 8, 9}},
		{PlayerId: "u1", CardIds: []int{0}},
		{PlayerId: "u1", CardIds: []int{-3}},
	}
	for i, b := range bad {
		if ok, _ := ValidateJoin(&b); ok {
			t.Fatalf("case %d: invalid join accepted: %+v", i, b)
		}
	}
}

func TestValidateAmount(t *testing.T) {
	in := AmountParsed{Amount: " 1500.50 "}
	ok, msg := ValidateAmount(&in)
	if !ok {
		t.Fatalf("valid amount rejected: %s", msg)
	}
	if in.Amount != "1500.50" {
		t.Fatalf("amount not trimmed: %q", in.Amount)
	}

	for _, s := range []string{"", "abc", "1,500", "1.234", strings.Repeat("9", 33)} {
		in := AmountParsed{Amount: s}
		if ok, _ := ValidateAmount(&in); ok {
			t.Fatalf("invalid amount accepted: %q", s)
		}
	}
}

func TestValidateText(t *testing.T) {
	in := TextParsed{Text: "M-PESA QX71ZZ9 Confirmed. Ksh 1,200.00 received"}
	if ok, msg := ValidateText(&in); !ok {
		t.Fatalf("valid text rejected: %s", msg)
	}

	empty := TextParsed{Text: "   "}
	if ok, _ := ValidateText(&empty); ok {
		t.Fatal("blank text accepted")
	}
	long := TextParsed{Text: strings.Repeat("a", maxNotificationTextLen+1)}
	if ok, _ := ValidateText(&long); ok {
		t.Fatal("oversized text accepted")
	}
}

func TestValidateMarkPaid(t *testing.T) {
	in := MarkPaidParsed{WithdrawalId: 42, Operator: "ops"}
	if ok, msg := ValidateMarkPaid(&in); !ok {
		t.Fatalf("valid mark paid rejected: %s", msg)
	}
	zero := MarkPaidParsed{WithdrawalId: 0}
	if ok, _ := ValidateMarkPaid(&zero); ok {
		t.Fatal("zero withdrawal_id accepted")
	}
}
