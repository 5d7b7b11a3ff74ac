package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/aitraveller/trip-bookings/internal/domain"
)

// DefaultTolerance bounds how stale a signed timestamp may be. Replays older
// than this are rejected even with a valid MAC.
const DefaultTolerance = 5 * time.Minute

// VerifyEvent checks the Stripe-Signature header (t=<unix>,v1=<hex HMAC of
// "<t>.<payload>">) against the webhook secret and only then parses the
// payload. Any failure returns domain.ErrInvalidSignature; callers must not
// fall back to the unverified body.
func (g *Gateway) VerifyEvent(payload []byte, sigHeader string) (*Event, error) {
	return g.verifyEventAt(payload, sigHeader, time.Now())
}

func (g *Gateway) verifyEventAt(payload []byte, sigHeader string, now time.Time) (*Event, error) {
	ts, sigs, err := parseSignatureHeader(sigHeader)
	if err != nil {
		return nil, err
	}

	age := now.Sub(time.Unix(ts, 0))
	if age > DefaultTolerance || age < -DefaultTolerance {
		return nil, errors.Wrap(domain.ErrInvalidSignature, "timestamp outside tolerance")
	}

	expected := ComputeSignature(g.webhookSecret, ts, payload)
	valid := false
	for _, sig := range sigs {
		if hmac.Equal([]byte(expected), []byte(sig)) {
			valid = true
			break
		}
	}
	if !valid {
		return nil, domain.ErrInvalidSignature
	}

	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, errors.Wrap(domain.ErrInvalidSignature, "verified payload is not an event")
	}
	return &event, nil
}

// ComputeSignature produces the v1 scheme MAC. Exported so tests and
// provider fakes can sign payloads.
func ComputeSignature(secret string, timestamp int64, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignatureHeader renders a header the way the provider does; used by tests
// and the local provider fake.
func SignatureHeader(secret string, timestamp int64, payload []byte) string {
	return "t=" + strconv.FormatInt(timestamp, 10) + ",v1=" + ComputeSignature(secret, timestamp, payload)
}

func parseSignatureHeader(header string) (int64, []string, error) {
	if header == "" {
		return 0, nil, errors.Wrap(domain.ErrInvalidSignature, "missing signature header")
	}

	var ts int64
	var sigs []string
	for _, part := range strings.Split(header, ",") {
		k, v, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch k {
		case "t":
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return 0, nil, errors.Wrap(domain.ErrInvalidSignature, "bad timestamp")
			}
			ts = n
		case "v1":
			sigs = append(sigs, v)
		}
	}
	if ts == 0 || len(sigs) == 0 {
		return 0, nil, errors.Wrap(domain.ErrInvalidSignature, "malformed signature header")
	}
	return ts, sigs, nil
}
