package middleware_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	mw "github.com/kiranshivaraju/authgraph/internal/api/middleware"
	"github.com/kiranshivaraju/authgraph/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mock Verifier ---

type mockVerifier struct {
	secrets map[string]string
	err     error
	calls   int
}

func (m *mockVerifier) VerifySecret(_ context.Context, clientID, secret string) (bool, error) {
	m.calls++
	if m.err != nil {
		return false, m.err
	}
	want, ok := m.secrets[clientID]
	if !ok {
		return false, apperr.NotFound("Client '%s' not found", clientID)
	}
	return want == secret, nil
}

// --- helpers ---

func okHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}
}

func errBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body["error"].(map[string]any)
}

func serve(h http.Handler, clientID, secret string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", "/test", nil)
	if clientID != "" || secret != "" {
		req.SetBasicAuth(clientID, secret)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// ========================================
// Auth Middleware Tests
// ========================================

func TestAuth_MissingCredentials(t *testing.T) {
	v := &mockVerifier{}
	w := serve(mw.NewAuth(v).Authenticate(okHandler()), "", "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", errBody(t, w)["code"])
	assert.NotEmpty(t, w.Header().Get("WWW-Authenticate"))
	assert.Zero(t, v.calls)
}

func TestAuth_BearerIsRejected(t *testing.T) {
	handler := mw.NewAuth(&mockVerifier{}).Authenticate(okHandler())

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer abc123")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_UnknownClient(t *testing.T) {
	handler := mw.NewAuth(&mockVerifier{secrets: map[string]string{}}).Authenticate(okHandler())
	w := serve(handler, "ghost", "secret")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid client credentials", errBody(t, w)["message"])
}

func TestAuth_WrongSecret(t *testing.T) {
	v := &mockVerifier{secrets: map[string]string{"portal": "right"}}
	w := serve(mw.NewAuth(v).Authenticate(okHandler()), "portal", "wrong")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", errBody(t, w)["code"])
}

func TestAuth_VerifierFailure(t *testing.T) {
	v := &mockVerifier{err: errors.New("connection refused")}
	w := serve(mw.NewAuth(v).Authenticate(okHandler()), "portal", "right")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "INTERNAL_ERROR", errBody(t, w)["code"])
}

func TestAuth_ValidCredentials(t *testing.T) {
	v := &mockVerifier{secrets: map[string]string{"portal": "right"}}

	var gotClientID string
	var gotOK bool
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotClientID, gotOK = mw.GetClientID(r)
		w.WriteHeader(http.StatusOK)
	})
	w := serve(mw.NewAuth(v).Authenticate(inner), "portal", "right")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, gotOK)
	assert.Equal(t, "portal", gotClientID)
}

func TestAuth_RemembersVerifiedCredential(t *testing.T) {
	v := &mockVerifier{secrets: map[string]string{"portal": "right"}}
	handler := mw.NewAuth(v).Authenticate(okHandler())

	assert.Equal(t, http.StatusOK, serve(handler, "portal", "right").Code)
	assert.Equal(t, http.StatusOK, serve(handler, "portal", "right").Code)
	assert.Equal(t, 1, v.calls)

	w := serve(handler, "portal", "wrong")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 2, v.calls)
}

func TestAuth_ForgetForcesVerification(t *testing.T) {
	v := &mockVerifier{secrets: map[string]string{"portal": "old"}}
	auth := mw.NewAuth(v)
	handler := auth.Authenticate(okHandler())

	require.Equal(t, http.StatusOK, serve(handler, "portal", "old").Code)

	v.secrets["portal"] = "new"
	auth.Forget("portal")

	assert.Equal(t, http.StatusUnauthorized, serve(handler, "portal", "old").Code)
	assert.Equal(t, http.StatusOK, serve(handler, "portal", "new").Code)
}

func TestAuth_RememberedCredentialExpires(t *testing.T) {
	v := &mockVerifier{secrets: map[string]string{"portal": "right"}}
	handler := mw.NewAuthWithTTL(v, 20*time.Millisecond).Authenticate(okHandler())

	require.Equal(t, http.StatusOK, serve(handler, "portal", "right").Code)
	time.Sleep(60 * time.Millisecond)
	require.Equal(t, http.StatusOK, serve(handler, "portal", "right").Code)
	assert.Equal(t, 2, v.calls)
}

func TestAuth_ZeroTTLVerifiesEveryRequest(t *testing.T) {
	v := &mockVerifier{secrets: map[string]string{"portal": "right"}}
	handler := mw.NewAuthWithTTL(v, 0).Authenticate(okHandler())

	serve(handler, "portal", "right")
	serve(handler, "portal", "right")
	assert.Equal(t, 2, v.calls)
}

func TestGetClientID_Unset(t *testing.T) {
	_, ok := mw.GetClientID(httptest.NewRequest("GET", "/", nil))
	assert.False(t, ok)
}

// ========================================
// Recovery Middleware Tests
// ========================================

func TestRecovery_CatchesPanic(t *testing.T) {
	panicking := http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		panic("something went wrong")
	})

	w := serve(mw.Recovery(panicking), "", "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "INTERNAL_ERROR", errBody(t, w)["code"])
}

func TestRecovery_ReraisesAbort(t *testing.T) {
	aborting := http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		panic(http.ErrAbortHandler)
	})

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		serve(mw.Recovery(aborting), "", "")
	})
}

func TestRecovery_NoPanic(t *testing.T) {
	w := serve(mw.Recovery(okHandler()), "", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

// ========================================
// Logging Middleware Tests
// ========================================

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestLogger_RecordsStatusAndRequestID(t *testing.T) {
	buf := captureLogs(t)
	created := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	w := serve(chimw.RequestID(mw.Logger(created)), "", "")
	assert.Equal(t, http.StatusCreated, w.Code)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "request", entry["msg"])
	assert.Equal(t, float64(http.StatusCreated), entry["status"])
	assert.Equal(t, "/test", entry["path"])
	assert.NotEmpty(t, entry["request_id"])
}

func TestLogger_DefaultsToOK(t *testing.T) {
	buf := captureLogs(t)
	silent := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})

	serve(mw.Logger(silent), "", "")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, float64(http.StatusOK), entry["status"])
}
