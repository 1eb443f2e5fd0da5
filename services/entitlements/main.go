// main.go — Flixsy Entitlements Service.
//
// Gates playback behind a 5-credit daily allowance or a one-time premium
// upgrade. Request handlers are stateless; every piece of shared state lives
// in the Store, and the only cross-request serialization point is the
// store's compare-and-decrement.
package entitlements

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/flixsy/flixsy-server/internal/ratelimit"
	"github.com/flixsy/flixsy-server/pkg/logging"
)

// Server holds all shared dependencies for the entitlements service.
type Server struct {
	store   Store
	bridge  PaymentBridge // may be nil if Stripe is not configured
	limiter *ratelimit.Limiter
	log     *logrus.Entry

	dailyCredits int
	now          func() time.Time
}

// NewServer creates the entitlements server.
// bridge may be nil if STRIPE_SECRET_KEY is not configured; checkout and
// verification endpoints then return 503.
func NewServer(store Store, bridge PaymentBridge, limiter *ratelimit.Limiter, dailyCredits int) *Server {
	if limiter == nil {
		limiter = ratelimit.New(nil)
	}
	return &Server{
		store:        store,
		bridge:       bridge,
		limiter:      limiter,
		log:          logging.NewLogger("entitlements"),
		dailyCredits: dailyCredits,
		now:          time.Now,
	}
}

// today returns the current UTC calendar date. The daily reset is evaluated
// lazily against this value on every balance/consume call — no timers.
func (s *Server) today() string {
	return s.now().UTC().Format("2006-01-02")
}

// bridgeRequired returns 503 with a clear message if Stripe is not configured.
// Returns true if the bridge is unavailable (caller should return immediately).
func (s *Server) bridgeRequired(w http.ResponseWriter) bool {
	if s.bridge == nil {
		writeError(w, http.StatusServiceUnavailable, "stripe_not_configured",
			"Payments are not configured. Set STRIPE_SECRET_KEY to enable premium upgrades.")
		return true
	}
	return false
}

// handleHealth returns service health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stripeStatus := "unconfigured"
	if s.bridge != nil {
		stripeStatus = "ok"
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "flixsy-entitlements",
		"stripe":  stripeStatus,
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes the standard JSON error envelope.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}
