// handlers_credits.go — balance check and credit consumption.
//
// GET  /entitlements/balance
//   Returns {isPremium, credits, canWatch}. Premium short-circuits all
//   metering; credits is null for premium users. Lazily creates the ledger
//   for first-time users and applies the daily reset.
//
// POST /entitlements/consume
//   Spends one credit via compare-and-decrement. At most one successful
//   decrement per call; the stored balance never goes negative, even when
//   two tabs race on the last credit.
package entitlements

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/flixsy/flixsy-server/internal/auth"
	"github.com/flixsy/flixsy-server/internal/metrics"
	"github.com/flixsy/flixsy-server/pkg/telemetry"
)

// consumeRetries bounds the read-decide-decrement loop when concurrent
// consumes keep invalidating our read.
const consumeRetries = 3

// balanceResponse is returned by GET /entitlements/balance.
// Credits is null for premium users (they are not metered).
type balanceResponse struct {
	IsPremium bool `json:"isPremium"`
	Credits   *int `json:"credits"`
	CanWatch  bool `json:"canWatch"`
}

// consumeResponse is returned by POST /entitlements/consume.
type consumeResponse struct {
	Success          bool   `json:"success"`
	IsPremium        bool   `json:"isPremium"`
	CreditsRemaining *int   `json:"creditsRemaining"`
	Error            string `json:"error,omitempty"`
}

// handleCheckBalance reports the caller's entitlement state.
// GET /entitlements/balance
func (s *Server) handleCheckBalance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "GET required")
		return
	}
	userID := auth.UserIDFromContext(r.Context())

	premium, err := s.store.IsPremium(r.Context(), userID)
	if err != nil {
		s.storeFault(w, "check_balance", userID.String(), err)
		return
	}
	if premium {
		metrics.EntitlementOps.WithLabelValues("check", "ok").Inc()
		writeJSON(w, http.StatusOK, balanceResponse{IsPremium: true, Credits: nil, CanWatch: true})
		return
	}

	led, err := s.store.EnsureLedger(r.Context(), userID, s.today(), s.dailyCredits)
	if err != nil {
		s.storeFault(w, "check_balance", userID.String(), err)
		return
	}

	metrics.EntitlementOps.WithLabelValues("check", "ok").Inc()
	writeJSON(w, http.StatusOK, balanceResponse{
		IsPremium: false,
		Credits:   &led.CreditsRemaining,
		CanWatch:  led.CreditsRemaining > 0,
	})
}

// handleConsumeCredit spends one credit for the caller.
// POST /entitlements/consume
func (s *Server) handleConsumeCredit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "POST required")
		return
	}
	userID := auth.UserIDFromContext(r.Context())

	if allowed, retryAfter := s.limiter.CheckConsume(r.Context(), userID.String()); !allowed {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		writeError(w, http.StatusTooManyRequests, "rate_limited", "too many consume attempts, slow down")
		return
	}

	// Premium consumption is a no-op: always succeeds, never touches the ledger.
	premium, err := s.store.IsPremium(r.Context(), userID)
	if err != nil {
		s.storeFault(w, "consume", userID.String(), err)
		return
	}
	if premium {
		metrics.EntitlementOps.WithLabelValues("consume", "ok").Inc()
		writeJSON(w, http.StatusOK, consumeResponse{Success: true, IsPremium: true, CreditsRemaining: nil})
		return
	}

	for attempt := 0; attempt < consumeRetries; attempt++ {
		led, err := s.store.EnsureLedger(r.Context(), userID, s.today(), s.dailyCredits)
		if err != nil {
			s.storeFault(w, "consume", userID.String(), err)
			return
		}

		if led.CreditsRemaining <= 0 {
			// Fails closed: no negative balances, ever.
			zero := 0
			metrics.EntitlementOps.WithLabelValues("consume", "denied").Inc()
			writeJSON(w, http.StatusBadRequest, consumeResponse{
				Success:          false,
				IsPremium:        false,
				CreditsRemaining: &zero,
				Error:            "No credits remaining",
			})
			return
		}

		updated, err := s.store.DecrementCredit(r.Context(), userID, led.CreditsRemaining)
		if errors.Is(err, ErrConflict) {
			// Another request spent a credit between our read and write —
			// re-read and try again.
			metrics.CreditConflicts.Inc()
			continue
		}
		if err != nil {
			s.storeFault(w, "consume", userID.String(), err)
			return
		}

		s.log.WithFields(logrus.Fields{
			"user_id":           userID.String(),
			"credits_remaining": updated.CreditsRemaining,
		}).Info("credit consumed")
		metrics.EntitlementOps.WithLabelValues("consume", "ok").Inc()
		writeJSON(w, http.StatusOK, consumeResponse{
			Success:          true,
			IsPremium:        false,
			CreditsRemaining: &updated.CreditsRemaining,
		})
		return
	}

	metrics.EntitlementOps.WithLabelValues("consume", "error").Inc()
	writeError(w, http.StatusServiceUnavailable, "store_unavailable",
		"could not reserve a credit, please try again")
}

// storeFault reports a database failure and answers 503. The operation is
// safe to retry: every mutation is a single atomic statement, so no partial
// write can have escaped.
func (s *Server) storeFault(w http.ResponseWriter, op, userID string, err error) {
	s.log.WithError(err).WithField("user_id", userID).Error("store unavailable")
	telemetry.CaptureError(err, map[string]string{"operation": op, "user_id": userID})
	metrics.EntitlementOps.WithLabelValues(op, "error").Inc()
	writeError(w, http.StatusServiceUnavailable, "store_unavailable", "temporary failure, please try again")
}
