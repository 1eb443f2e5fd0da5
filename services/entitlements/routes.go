// routes.go — Route registration for the entitlements service.
// Handler implementations are in handlers_*.go files.
package entitlements

import (
	"net/http"

	"github.com/flixsy/flixsy-server/internal/auth"
)

// RegisterRoutes registers all entitlement routes on the given mux.
// The verifier gates every route that acts on behalf of a user; the
// identity-provider webhook authenticates via shared secret instead.
func (s *Server) RegisterRoutes(mux *http.ServeMux, verifier *auth.Verifier) {
	// ── Health ────────────────────────────────────────────────────────────────
	mux.HandleFunc("/entitlements/health", s.handleHealth)

	// ── Credit ledger ─────────────────────────────────────────────────────────
	// GET  /entitlements/balance — premium flag, credits left, canWatch
	// POST /entitlements/consume — spend one credit (atomic, fails closed at 0)
	mux.Handle("/entitlements/balance", verifier.RequireAuth(http.HandlerFunc(s.handleCheckBalance)))
	mux.Handle("/entitlements/consume", verifier.RequireAuth(http.HandlerFunc(s.handleConsumeCredit)))

	// ── Premium upgrade ───────────────────────────────────────────────────────
	// POST /entitlements/checkout — create a Stripe Checkout session
	// POST /entitlements/verify   — confirm payment, grant premium
	mux.Handle("/entitlements/checkout", verifier.RequireAuth(http.HandlerFunc(s.handleCheckout)))
	mux.Handle("/entitlements/verify", verifier.RequireAuth(http.HandlerFunc(s.handleVerifyPayment)))

	// ── Identity provider webhook ─────────────────────────────────────────────
	// POST /webhooks/user-created — seed a fresh ledger on registration
	mux.HandleFunc("/webhooks/user-created", s.handleUserCreated)
}
