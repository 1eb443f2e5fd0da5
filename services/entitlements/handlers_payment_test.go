// handlers_payment_test.go — checkout and verification flow tests.
package entitlements

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/flixsy/flixsy-server/internal/testutil"
)

func postVerify(t *testing.T, s *Server, userID uuid.UUID, sessionID string) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(verifyRequest{SessionID: sessionID})
	rr := httptest.NewRecorder()
	s.handleVerifyPayment(rr, authedRequest(t, http.MethodPost, "/entitlements/verify", bytes.NewReader(body), userID))
	return rr
}

func postCheckout(t *testing.T, s *Server, userID uuid.UUID) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	s.handleCheckout(rr, authedRequest(t, http.MethodPost, "/entitlements/checkout", nil, userID))
	return rr
}

func TestCheckout_CreatesSessionAndPendingPayment(t *testing.T) {
	store := newFakeStore()
	bridge := newFakeBridge()
	s := newTestServer(t, store, bridge)
	userID := uuid.New()

	rr := postCheckout(t, s, userID)
	testutil.AssertStatus(t, rr, http.StatusOK)

	var resp checkoutResponse
	testutil.DecodeJSON(t, rr, &resp)
	if resp.URL == "" || resp.SessionID == "" {
		t.Fatalf("expected hosted URL and session ID, got %+v", resp)
	}

	p, err := store.PaymentBySession(t.Context(), resp.SessionID)
	if err != nil {
		t.Fatalf("pending payment not recorded: %v", err)
	}
	if p.Status != PaymentPending || p.UserID != userID || p.AmountCents != 399 {
		t.Errorf("unexpected pending payment %+v", p)
	}
}

func TestCheckout_AlreadyPremium(t *testing.T) {
	store := newFakeStore()
	userID := uuid.New()
	store.premium[userID] = true
	s := newTestServer(t, store, newFakeBridge())

	testutil.AssertStatus(t, postCheckout(t, s, userID), http.StatusConflict)
}

func TestCheckout_WithoutStripeConfigured(t *testing.T) {
	s := newTestServer(t, newFakeStore(), nil)
	testutil.AssertStatus(t, postCheckout(t, s, uuid.New()), http.StatusServiceUnavailable)
}

func TestCheckout_ProcessorDown(t *testing.T) {
	bridge := newFakeBridge()
	bridge.createErr = ErrProcessorUnavailable
	s := newTestServer(t, newFakeStore(), bridge)

	testutil.AssertStatus(t, postCheckout(t, s, uuid.New()), http.StatusServiceUnavailable)
}

func TestVerify_PaidSessionGrantsPremium(t *testing.T) {
	store := newFakeStore()
	bridge := newFakeBridge()
	s := newTestServer(t, store, bridge)
	userID := uuid.New()

	var checkout checkoutResponse
	testutil.DecodeJSON(t, postCheckout(t, s, userID), &checkout)
	bridge.markPaid(checkout.SessionID)

	rr := postVerify(t, s, userID, checkout.SessionID)
	testutil.AssertStatus(t, rr, http.StatusOK)

	var resp verifyResponse
	testutil.DecodeJSON(t, rr, &resp)
	if !resp.Success || !resp.IsPremium {
		t.Fatalf("paid session should grant premium, got %+v", resp)
	}

	premium, _ := store.IsPremium(t.Context(), userID)
	if !premium {
		t.Error("premium flag not persisted")
	}
	p, _ := store.PaymentBySession(t.Context(), checkout.SessionID)
	if p.Status != PaymentCompleted {
		t.Errorf("payment status = %q, want completed", p.Status)
	}
}

func TestVerify_Idempotent(t *testing.T) {
	store := newFakeStore()
	bridge := newFakeBridge()
	s := newTestServer(t, store, bridge)
	userID := uuid.New()

	var checkout checkoutResponse
	testutil.DecodeJSON(t, postCheckout(t, s, userID), &checkout)
	bridge.markPaid(checkout.SessionID)

	var first verifyResponse
	testutil.DecodeJSON(t, postVerify(t, s, userID, checkout.SessionID), &first)
	purchasedAt := store.purchased[userID]

	// Revisiting the confirmation link answers the same way and keeps the
	// original purchase timestamp.
	var second verifyResponse
	testutil.DecodeJSON(t, postVerify(t, s, userID, checkout.SessionID), &second)
	if first != second {
		t.Errorf("repeated verify diverged: %+v vs %+v", first, second)
	}
	if !store.purchased[userID].Equal(purchasedAt) {
		t.Error("repeated verify moved premium_purchased_at")
	}
}

func TestVerify_UnpaidSessionDoesNotGrant(t *testing.T) {
	store := newFakeStore()
	bridge := newFakeBridge()
	s := newTestServer(t, store, bridge)
	userID := uuid.New()

	var checkout checkoutResponse
	testutil.DecodeJSON(t, postCheckout(t, s, userID), &checkout)
	// Session exists but was never paid (user backed out of checkout).

	rr := postVerify(t, s, userID, checkout.SessionID)
	testutil.AssertStatus(t, rr, http.StatusOK)
	var resp verifyResponse
	testutil.DecodeJSON(t, rr, &resp)
	if resp.Success || resp.IsPremium {
		t.Errorf("unpaid session must not grant premium, got %+v", resp)
	}
	if premium, _ := store.IsPremium(t.Context(), userID); premium {
		t.Error("premium flag set despite unpaid session")
	}
}

func TestVerify_UnknownSessionIsNotPaid(t *testing.T) {
	s := newTestServer(t, newFakeStore(), newFakeBridge())

	rr := postVerify(t, s, uuid.New(), "cs_test_never_existed")
	testutil.AssertStatus(t, rr, http.StatusOK)
	var resp verifyResponse
	testutil.DecodeJSON(t, rr, &resp)
	if resp.Success || resp.IsPremium {
		t.Errorf("unknown session must verify as not paid, got %+v", resp)
	}
}

func TestVerify_MissingSessionID(t *testing.T) {
	s := newTestServer(t, newFakeStore(), newFakeBridge())
	testutil.AssertStatus(t, postVerify(t, s, uuid.New(), "   "), http.StatusBadRequest)
}

func TestVerify_AttributesToPayingUserNotCaller(t *testing.T) {
	store := newFakeStore()
	bridge := newFakeBridge()
	s := newTestServer(t, store, bridge)
	payer := uuid.New()
	caller := uuid.New()

	var checkout checkoutResponse
	testutil.DecodeJSON(t, postCheckout(t, s, payer), &checkout)
	bridge.markPaid(checkout.SessionID)

	// Someone else verifies the session. The grant goes to the payer.
	var resp verifyResponse
	testutil.DecodeJSON(t, postVerify(t, s, caller, checkout.SessionID), &resp)
	if !resp.Success {
		t.Fatalf("expected successful verification, got %+v", resp)
	}
	if premium, _ := store.IsPremium(t.Context(), payer); !premium {
		t.Error("payer did not receive the premium grant")
	}
	if premium, _ := store.IsPremium(t.Context(), caller); premium {
		t.Error("caller must not receive a grant for someone else's payment")
	}
}

func TestVerify_UnattributablePaidSessionRefusesGrant(t *testing.T) {
	store := newFakeStore()
	bridge := newFakeBridge()
	// Paid session with no pending record and no reference ID.
	bridge.addSession(PaymentSession{ID: "cs_test_orphan", Paid: true, UserID: uuid.Nil})
	s := newTestServer(t, store, bridge)

	rr := postVerify(t, s, uuid.New(), "cs_test_orphan")
	testutil.AssertStatus(t, rr, http.StatusOK)
	var resp verifyResponse
	testutil.DecodeJSON(t, rr, &resp)
	if resp.Success || resp.IsPremium {
		t.Errorf("unattributable session must not grant premium, got %+v", resp)
	}
}

func TestVerify_ProcessorDown(t *testing.T) {
	bridge := newFakeBridge()
	bridge.retrieveErr = ErrProcessorUnavailable
	s := newTestServer(t, newFakeStore(), bridge)

	testutil.AssertStatus(t, postVerify(t, s, uuid.New(), "cs_test_001"), http.StatusServiceUnavailable)
}
