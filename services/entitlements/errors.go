// errors.go — error taxonomy for the entitlements service.
//
// Handlers map these onto the JSON error envelope:
//
//	ErrConflict            — transient CAS miss, retried internally, never surfaced
//	ErrStoreUnavailable    — database fault, 503, safe for the caller to retry
//	ErrProcessorUnavailable — Stripe transport fault or open breaker, 503
//	ErrSessionNotFound     — unknown checkout session, treated as "not paid"
//	ErrPaymentNotFound     — no payments row for a session ID
package entitlements

import "errors"

var (
	ErrConflict             = errors.New("entitlements: ledger changed concurrently")
	ErrStoreUnavailable     = errors.New("entitlements: store unavailable")
	ErrProcessorUnavailable = errors.New("entitlements: payment processor unavailable")
	ErrSessionNotFound      = errors.New("entitlements: checkout session not found")
	ErrPaymentNotFound      = errors.New("entitlements: payment record not found")
)
