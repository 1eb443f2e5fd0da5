package creditgate

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_CheckBalance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/entitlements/balance", r.URL.Path)
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(Balance{Credits: intPtr(4), CanWatch: true})
	}))
	defer srv.Close()

	bal, err := NewClient(srv.URL, "tok-123").CheckBalance(t.Context())
	require.NoError(t, err)
	assert.False(t, bal.IsPremium)
	assert.Equal(t, 4, *bal.Credits)
	assert.True(t, bal.CanWatch)
}

func TestClient_ConsumeDenialIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The server answers 400 with a structured denial body.
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(ConsumeResult{
			Success:          false,
			CreditsRemaining: intPtr(0),
			Error:            "No credits remaining",
		})
	}))
	defer srv.Close()

	res, err := NewClient(srv.URL, "tok").ConsumeCredit(t.Context())
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "No credits remaining", res.Error)
}

func TestClient_VerifyPayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/entitlements/verify", r.URL.Path)
		var req struct {
			SessionID string `json:"sessionId"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "cs_test_123", req.SessionID)
		json.NewEncoder(w).Encode(VerifyResult{Success: true, IsPremium: true})
	}))
	defer srv.Close()

	res, err := NewClient(srv.URL, "tok").VerifyPayment(t.Context(), "cs_test_123")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.IsPremium)
}

func TestClient_ServerErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "tok").CheckBalance(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 500")
}
