package domain

import "errors"

var (
	ErrMissingData        = errors.New("missing required booking data")
	ErrValidation         = errors.New("invalid booking data")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrDuplicateBooking   = errors.New("duplicate booking")
	ErrNotFound           = errors.New("not found")
	ErrRateLimited        = errors.New("rate limited")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrInvalidSignature   = errors.New("invalid webhook signature")
)
