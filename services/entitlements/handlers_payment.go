// handlers_payment.go — premium upgrade flow.
//
// POST /entitlements/checkout
//   Creates a Stripe Checkout session ($3.99 one-time) and records a pending
//   payment. Returns {url, sessionId}; the client navigates to the hosted
//   checkout page.
//
// POST /entitlements/verify
//   Body: {"sessionId": "cs_..."}. Retrieves the session from Stripe — the
//   only trusted source of truth for payment status, never the client — and
//   on "paid" marks the payment completed and grants premium. Idempotent:
//   revisiting the confirmation link re-verifies and answers the same way
//   without moving premium_purchased_at.
package entitlements

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/flixsy/flixsy-server/internal/auth"
	"github.com/flixsy/flixsy-server/internal/metrics"
	"github.com/flixsy/flixsy-server/pkg/telemetry"
)

// checkoutResponse is returned on successful session creation.
type checkoutResponse struct {
	URL       string `json:"url"`
	SessionID string `json:"sessionId"`
}

// verifyRequest is the JSON body for POST /entitlements/verify.
type verifyRequest struct {
	SessionID string `json:"sessionId"`
}

// verifyResponse is returned by POST /entitlements/verify.
type verifyResponse struct {
	Success   bool `json:"success"`
	IsPremium bool `json:"isPremium"`
}

// handleCheckout creates a Stripe Checkout session for the premium upgrade.
// POST /entitlements/checkout
func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "POST required")
		return
	}
	if s.bridgeRequired(w) {
		return
	}
	userID := auth.UserIDFromContext(r.Context())

	if allowed, retryAfter := s.limiter.CheckCheckout(r.Context(), userID.String()); !allowed {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		writeError(w, http.StatusTooManyRequests, "rate_limited", "too many checkout attempts")
		return
	}

	// Already premium — nothing to sell.
	premium, err := s.store.IsPremium(r.Context(), userID)
	if err != nil {
		s.storeFault(w, "checkout", userID.String(), err)
		return
	}
	if premium {
		writeError(w, http.StatusConflict, "already_premium", "account already has premium access")
		return
	}

	sess, err := s.bridge.CreateCheckout(r.Context(), userID)
	if err != nil {
		s.processorFault(w, "checkout", userID.String(), err)
		return
	}

	// Record the pending checkout so verification can attribute the payment.
	// Non-fatal on failure: verify falls back to the session's reference ID.
	if err := s.store.CreatePayment(r.Context(), &Payment{
		SessionID:   sess.ID,
		UserID:      userID,
		Status:      PaymentPending,
		AmountCents: premiumAmountCents,
	}); err != nil {
		s.log.WithError(err).WithField("session_id", sess.ID).Warn("pending payment not recorded")
	}

	metrics.BillingEvents.WithLabelValues("checkout_created").Inc()
	writeJSON(w, http.StatusOK, checkoutResponse{URL: sess.URL, SessionID: sess.ID})
}

// handleVerifyPayment confirms a checkout session with Stripe and grants
// premium on verified payment.
// POST /entitlements/verify
func (s *Server) handleVerifyPayment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "POST required")
		return
	}
	if s.bridgeRequired(w) {
		return
	}
	callerID := auth.UserIDFromContext(r.Context())

	if allowed, retryAfter := s.limiter.CheckVerify(r.Context(), callerID.String()); !allowed {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		writeError(w, http.StatusTooManyRequests, "rate_limited", "too many verification attempts")
		return
	}

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	req.SessionID = strings.TrimSpace(req.SessionID)
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "missing_session_id", "sessionId is required")
		return
	}

	sess, err := s.bridge.RetrieveSession(r.Context(), req.SessionID)
	if errors.Is(err, ErrSessionNotFound) {
		// Unknown session is a "not paid" outcome, not an error: stale links
		// and retries land here.
		metrics.BillingEvents.WithLabelValues("payment_unpaid").Inc()
		writeJSON(w, http.StatusOK, verifyResponse{Success: false, IsPremium: false})
		return
	}
	if err != nil {
		s.processorFault(w, "verify", callerID.String(), err)
		return
	}

	if !sess.Paid {
		metrics.BillingEvents.WithLabelValues("payment_unpaid").Inc()
		writeJSON(w, http.StatusOK, verifyResponse{Success: false, IsPremium: false})
		return
	}

	// Attribute the payment: the pending record wins, the session's
	// client_reference_id is the fallback when that row was never written.
	payingUser := sess.UserID
	if payment, err := s.store.PaymentBySession(r.Context(), req.SessionID); err == nil {
		payingUser = payment.UserID
	} else if !errors.Is(err, ErrPaymentNotFound) {
		s.storeFault(w, "verify", callerID.String(), err)
		return
	}
	if payingUser == uuid.Nil {
		// Paid session we cannot attribute to any user — refuse the grant.
		s.log.WithField("session_id", req.SessionID).Error("paid session with no attributable user")
		writeJSON(w, http.StatusOK, verifyResponse{Success: false, IsPremium: false})
		return
	}

	if err := s.store.CompletePayment(r.Context(), req.SessionID, payingUser); err != nil {
		s.storeFault(w, "verify", callerID.String(), err)
		return
	}
	if err := s.store.GrantPremium(r.Context(), payingUser); err != nil {
		s.storeFault(w, "verify", callerID.String(), err)
		return
	}

	s.log.WithFields(logrus.Fields{
		"user_id":    payingUser.String(),
		"session_id": req.SessionID,
	}).Info("premium granted")
	metrics.BillingEvents.WithLabelValues("premium_granted").Inc()
	writeJSON(w, http.StatusOK, verifyResponse{Success: true, IsPremium: true})
}

// processorFault reports a Stripe failure and answers 503.
func (s *Server) processorFault(w http.ResponseWriter, op, userID string, err error) {
	s.log.WithError(err).WithField("user_id", userID).Error("payment processor unavailable")
	telemetry.CaptureError(err, map[string]string{"operation": op, "user_id": userID})
	metrics.EntitlementOps.WithLabelValues(op, "error").Inc()
	writeError(w, http.StatusServiceUnavailable, "processor_unavailable",
		"payment processor unavailable, please try again")
}
