package orders

import (
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParseStatus(t *testing.T) {
	cases := []struct {
		in   string
		want OrderStatus
		ok   bool
	}{
		{"pending", StatusPending, true},
		{"PENDING", StatusPending, true},
		{"  Confirmed ", StatusConfirmed, true},
		{"cancelled", StatusCancelled, true},
		{"shipped", "", false},
		{"", "", false},
	}

	for _, tc := range cases {
		got, ok := ParseStatus(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Errorf("ParseStatus(%q) = (%q, %v), want (%q, %v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestCancellable(t *testing.T) {
	for _, status := range AllStatuses {
		want := status != StatusDelivered && status != StatusCancelled
		if got := status.Cancellable(); got != want {
			t.Errorf("%s.Cancellable() = %v, want %v", status, got, want)
		}
	}
}

func TestNewNumberFormat(t *testing.T) {
	now := time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)
	pattern := regexp.MustCompile(`^ORD-20250314150926-[0-9A-F]{8}$`)

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		number := NewNumber(now)
		if !pattern.MatchString(number) {
			t.Fatalf("unexpected number format: %s", number)
		}
		if seen[number] {
			t.Fatalf("duplicate number generated: %s", number)
		}
		seen[number] = true
	}
}

func TestNewNumberUsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*60*60)
	local := time.Date(2025, 3, 14, 20, 9, 26, 0, loc)
	number := NewNumber(local)
	if number[:18] != "ORD-20250314150926" {
		t.Fatalf("expected UTC timestamp in number, got %s", number)
	}
}

func TestConsistentTotals(t *testing.T) {
	order := &Order{
		Subtotal: decimal.RequireFromString("21.97"),
		Tax:      decimal.RequireFromString("1.76"),
		Total:    decimal.RequireFromString("23.73"),
	}
	if !order.ConsistentTotals() {
		t.Fatal("expected subtotal 21.97 + tax 1.76 = total 23.73 to be consistent")
	}

	order.Total = decimal.RequireFromString("23.74")
	if order.ConsistentTotals() {
		t.Fatal("expected mismatched total to be inconsistent")
	}
}
