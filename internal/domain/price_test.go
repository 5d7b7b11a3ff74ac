package domain

import (
	"strings"
	"testing"
	"time"
)

func TestParsePriceString(t *testing.T) {
	cases := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"$1,200", 1200, true},
		{"1200 USD", 1200, true},
		{"1000", 1000, true},
		{"", 0, false},
		{"free", 0, false},
	}
	for _, c := range cases {
		got, ok := ParsePriceString(c.in)
		if ok != c.ok || got != c.want {
			t.Errorf("ParsePriceString(%q) = %d, %v; want %d, %v", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestTotalPrice(t *testing.T) {
	activities := []Activity{
		{Name: "Louvre tour", Price: 50},
		{Name: "Seine cruise", Price: 30},
	}
	if got := TotalPrice(1000, activities); got != 1080 {
		t.Errorf("expected 1080, got %d", got)
	}
	if got := TotalPrice(1000, nil); got != 1000 {
		t.Errorf("expected 1000 with no activities, got %d", got)
	}
}

func TestNewBookingReference(t *testing.T) {
	now := time.Now()
	ref := NewBookingReference(now)

	if !strings.HasPrefix(ref, "AI-TRIP-") {
		t.Fatalf("unexpected reference format: %s", ref)
	}
	parts := strings.Split(ref, "-")
	if len(parts) != 4 {
		t.Fatalf("expected 4 segments, got %q", ref)
	}
	if len(parts[3]) != 6 {
		t.Errorf("expected 6-char suffix, got %q", parts[3])
	}

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		r := NewBookingReference(now)
		if seen[r] {
			t.Fatalf("reference collision within same timestamp: %s", r)
		}
		seen[r] = true
	}
}

func TestStatusConsistency(t *testing.T) {
	valid := []struct {
		s BookingStatus
		p PaymentStatus
	}{
		{StatusPendingPayment, PaymentPending},
		{StatusConfirmed, PaymentPaid},
		{StatusCancelled, PaymentExpired},
		{StatusCancelled, PaymentFailed},
	}
	for _, v := range valid {
		if !v.s.ConsistentWith(v.p) {
			t.Errorf("(%s, %s) should be consistent", v.s, v.p)
		}
	}

	invalid := []struct {
		s BookingStatus
		p PaymentStatus
	}{
		{StatusConfirmed, PaymentPending},
		{StatusConfirmed, PaymentExpired},
		{StatusCancelled, PaymentPaid},
		{StatusPendingPayment, PaymentPaid},
	}
	for _, v := range invalid {
		if v.s.ConsistentWith(v.p) {
			t.Errorf("(%s, %s) should not be consistent", v.s, v.p)
		}
	}

	if StatusPendingPayment.Terminal() {
		t.Error("pending_payment must not be terminal")
	}
	if !StatusConfirmed.Terminal() || !StatusCancelled.Terminal() {
		t.Error("confirmed and cancelled must be terminal")
	}
}
