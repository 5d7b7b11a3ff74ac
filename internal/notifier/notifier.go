package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aitraveller/trip-bookings/internal/domain"
)

// Notifier sends transactional mail. Dispatch is fire-and-forget from the
// state machine's perspective: a send failure is logged, never propagated
// into booking state.
type Notifier interface {
	SendBookingConfirmation(ctx context.Context, b *domain.Booking) error
}

// ResendClient posts confirmation emails to a Resend-compatible HTTP API.
type ResendClient struct {
	apiKey  string
	from    string
	baseURL string
	httpc   *http.Client
}

func NewResendClient(apiKey, from, baseURL string, timeout time.Duration) *ResendClient {
	return &ResendClient{
		apiKey:  apiKey,
		from:    from,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpc:   &http.Client{Timeout: timeout},
	}
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

func (c *ResendClient) SendBookingConfirmation(ctx context.Context, b *domain.Booking) error {
	body, err := json.Marshal(sendRequest{
		From:    c.from,
		To:      []string{b.Email},
		Subject: fmt.Sprintf("Booking Confirmed: Trip to %s", b.Destination),
		HTML:    confirmationHTML(b),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("email API status %d: %s", resp.StatusCode, msg)
	}
	return nil
}

func confirmationHTML(b *domain.Booking) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<h1>Your trip to %s is confirmed!</h1>", b.Destination)
	fmt.Fprintf(&sb, "<p>Booking reference: <strong>%s</strong></p>", b.BookingReference)
	if b.StartDate != nil && b.EndDate != nil {
		fmt.Fprintf(&sb, "<p>Dates: %s to %s</p>",
			b.StartDate.Format("Jan 2, 2006"), b.EndDate.Format("Jan 2, 2006"))
	}
	fmt.Fprintf(&sb, "<p>Duration: %s</p>", b.Duration)
	fmt.Fprintf(&sb, "<p>Travelers: %d adults, %d children, %d infants</p>",
		b.Passengers.Adults, b.Passengers.Children, b.Passengers.Infants)
	fmt.Fprintf(&sb, "<p>Total paid: $%d</p>", b.TotalPrice)
	return sb.String()
}
