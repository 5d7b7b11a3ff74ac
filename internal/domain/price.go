package domain

import (
	"crypto/rand"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultBasePrice applies when neither the trip descriptor nor the catalog
// yields a base price.
const DefaultBasePrice int64 = 1000

const referenceAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// ParsePriceString extracts the integer amount out of a currency-formatted
// string such as "$1,200" or "1200 USD". Returns false when the string
// contains no digits.
func ParsePriceString(s string) (int64, bool) {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return 0, false
	}
	n, err := strconv.ParseInt(b.String(), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// TotalPrice is basePrice plus the price of every selected activity.
func TotalPrice(basePrice int64, activities []Activity) int64 {
	total := basePrice
	for _, a := range activities {
		total += a.Price
	}
	return total
}

// NewBookingReference builds a candidate reference from a millisecond
// timestamp and a random 6-character suffix. Uniqueness is enforced by the
// store, not here; a collision surfaces as ErrDuplicateBooking on insert.
func NewBookingReference(now time.Time) string {
	suffix := make([]byte, 6)
	if _, err := rand.Read(suffix); err != nil {
		// rand.Read failing means the platform CSPRNG is broken; fall back
		// to the timestamp alone and let the unique index catch collisions.
		return fmt.Sprintf("AI-TRIP-%d-%06d", now.UnixMilli(), now.Nanosecond()%1000000)
	}
	for i, b := range suffix {
		suffix[i] = referenceAlphabet[int(b)%len(referenceAlphabet)]
	}
	return fmt.Sprintf("AI-TRIP-%d-%s", now.UnixMilli(), suffix)
}
