// handlers_webhook.go — identity-provider webhook.
//
// POST /webhooks/user-created
//   Fired by the identity provider when a new user registers. Seeds the
//   credit ledger with the full daily allotment. Shares EnsureLedger with the
//   lazy-create path in balance/consume, so a webhook racing a first balance
//   check converges on a single seed row — no double-seeding.
//
// Authenticated via the X-Webhook-Secret shared secret, not a bearer token:
// the caller is the provider's event system, not a user.
package entitlements

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"os"

	"github.com/google/uuid"

	"github.com/flixsy/flixsy-server/internal/metrics"
	"github.com/flixsy/flixsy-server/internal/ratelimit"
)

// userCreatedEvent is the identity provider's registration event payload.
type userCreatedEvent struct {
	Type string `json:"type"` // must be "USER_CREATED"
	User struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

// handleUserCreated seeds a fresh ledger for a newly registered user.
// POST /webhooks/user-created
func (s *Server) handleUserCreated(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "POST required")
		return
	}

	secret := os.Getenv("AUTH_WEBHOOK_SECRET")
	if secret == "" ||
		subtle.ConstantTimeCompare([]byte(r.Header.Get("X-Webhook-Secret")), []byte(secret)) != 1 {
		writeError(w, http.StatusUnauthorized, "invalid_webhook_secret", "webhook secret mismatch")
		return
	}

	if allowed, _ := s.limiter.CheckWebhook(r.Context(), ratelimit.ClientIP(r)); !allowed {
		writeError(w, http.StatusTooManyRequests, "rate_limited", "too many webhook deliveries")
		return
	}

	var event userCreatedEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	if event.Type != "USER_CREATED" {
		writeError(w, http.StatusBadRequest, "unexpected_event", "not a user created event")
		return
	}
	userID, err := uuid.Parse(event.User.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_user", "user.id must be a UUID")
		return
	}

	if _, err := s.store.EnsureLedger(r.Context(), userID, s.today(), s.dailyCredits); err != nil {
		s.storeFault(w, "seed", userID.String(), err)
		return
	}

	s.log.WithField("user_id", userID.String()).Info("ledger seeded for new user")
	metrics.EntitlementOps.WithLabelValues("seed", "ok").Inc()
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("credits initialized"))
}
