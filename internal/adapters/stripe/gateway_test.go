package stripe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aitraveller/trip-bookings/internal/domain"
)

func TestCreateCheckoutSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/checkout/sessions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk_test" {
			t.Errorf("missing api key header")
		}
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		if got := r.PostForm.Get("line_items[0][price_data][unit_amount]"); got != "1050" {
			t.Errorf("expected amount 1050, got %s", got)
		}
		if got := r.PostForm.Get("metadata[bookingId]"); got != "bk_1" {
			t.Errorf("expected booking metadata, got %s", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"cs_123","url":"https://checkout.example/cs_123","payment_intent":"pi_123"}`))
	}))
	defer srv.Close()

	g := NewGateway("sk_test", testSecret, srv.URL, time.Second)
	session, err := g.CreateCheckoutSession(context.Background(), 1050, "usd", "Trip to Paris", Metadata{"bookingId": "bk_1"})
	if err != nil {
		t.Fatal(err)
	}
	if session.ID != "cs_123" || session.PaymentIntentID != "pi_123" {
		t.Errorf("unexpected session: %+v", session)
	}
}

func TestCreatePaymentIntent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/payment_intents" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		if got := r.PostForm.Get("amount"); got != "1050" {
			t.Errorf("expected amount 1050, got %s", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"pi_123","client_secret":"pi_123_secret"}`))
	}))
	defer srv.Close()

	g := NewGateway("sk_test", testSecret, srv.URL, time.Second)
	intent, err := g.CreatePaymentIntent(context.Background(), 1050, "usd", "Trip to Paris", nil)
	if err != nil {
		t.Fatal(err)
	}
	if intent.ClientSecret != "pi_123_secret" {
		t.Errorf("unexpected intent: %+v", intent)
	}
}

func TestGateway_ServerErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	g := NewGateway("sk_test", testSecret, srv.URL, time.Second)
	_, err := g.CreateCheckoutSession(context.Background(), 100, "usd", "x", nil)
	if !errors.Is(err, domain.ErrGatewayUnavailable) {
		t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
	}
}

func TestGateway_Unreachable(t *testing.T) {
	g := NewGateway("sk_test", testSecret, "http://127.0.0.1:1", 100*time.Millisecond)
	_, err := g.CreatePaymentIntent(context.Background(), 100, "usd", "x", nil)
	if !errors.Is(err, domain.ErrGatewayUnavailable) {
		t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
	}
}
