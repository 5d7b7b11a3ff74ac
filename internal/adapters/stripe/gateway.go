package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/aitraveller/trip-bookings/internal/domain"
	"github.com/aitraveller/trip-bookings/internal/observability"
)

// Gateway talks to the payment processor's HTTP API and verifies its webhook
// signatures. It is the sole trust boundary between the processor and the
// core: nothing downstream may look at an event that did not pass
// VerifyEvent.
type Gateway struct {
	apiKey        string
	webhookSecret string
	baseURL       string
	httpc         *http.Client
}

func NewGateway(apiKey, webhookSecret, baseURL string, timeout time.Duration) *Gateway {
	return &Gateway{
		apiKey:        apiKey,
		webhookSecret: webhookSecret,
		baseURL:       strings.TrimSuffix(baseURL, "/"),
		httpc:         &http.Client{Timeout: timeout},
	}
}

type Metadata map[string]string

type CheckoutSession struct {
	ID              string `json:"id"`
	URL             string `json:"url"`
	PaymentIntentID string `json:"payment_intent"`
}

type PaymentIntent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
}

// CreateCheckoutSession opens a hosted checkout session for the amount (in
// currency minor units). Metadata must carry the booking id and reference so
// webhook events can be routed back.
func (g *Gateway) CreateCheckoutSession(ctx context.Context, amount int64, currency, description string, md Metadata) (*CheckoutSession, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", currency)
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(amount, 10))
	form.Set("line_items[0][price_data][product_data][name]", description)
	for k, v := range md {
		form.Set("metadata["+k+"]", v)
	}

	var session CheckoutSession
	if err := g.do(ctx, "/v1/checkout/sessions", form, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// CreatePaymentIntent is the direct-API alternative to a checkout session;
// the returned client secret completes payment on the client side.
func (g *Gateway) CreatePaymentIntent(ctx context.Context, amount int64, currency, description string, md Metadata) (*PaymentIntent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amount, 10))
	form.Set("currency", currency)
	form.Set("description", description)
	for k, v := range md {
		form.Set("metadata["+k+"]", v)
	}

	var intent PaymentIntent
	if err := g.do(ctx, "/v1/payment_intents", form, &intent); err != nil {
		return nil, err
	}
	return &intent, nil
}

func (g *Gateway) do(ctx context.Context, path string, form url.Values, out interface{}) error {
	start := time.Now()
	defer func() {
		observability.GatewayRequestDuration.Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.httpc.Do(req)
	if err != nil {
		return errors.Wrapf(domain.ErrGatewayUnavailable, "%s: %v", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errors.Wrapf(domain.ErrGatewayUnavailable, "%s: read response: %v", path, err)
	}
	if resp.StatusCode >= 500 {
		return errors.Wrapf(domain.ErrGatewayUnavailable, "%s: status %d", path, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway %s: status %d: %s", path, resp.StatusCode, truncate(body, 256))
	}
	return json.Unmarshal(body, out)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// Event is a verified provider notification. Data.Object stays raw until the
// processor asks for the fields it understands.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// EventObject is the subset of session/intent fields the state machine reads.
type EventObject struct {
	ID            string            `json:"id"`
	PaymentIntent string            `json:"payment_intent"`
	Metadata      map[string]string `json:"metadata"`
}

func (e *Event) Object() (*EventObject, error) {
	var obj EventObject
	if err := json.Unmarshal(e.Data.Object, &obj); err != nil {
		return nil, err
	}
	return &obj, nil
}
