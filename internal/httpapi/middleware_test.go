package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeaders(okHandler())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	for header, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "no-referrer",
	} {
		if got := rec.Header().Get(header); got != want {
			t.Fatalf("%s = %q, want %q", header, got, want)
		}
	}
}

func TestRequestIDEchoAndAssign(t *testing.T) {
	h := RequestID(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Header().Get(requestIDHeader) == "" {
		t.Fatal("no request id assigned")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "req-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get(requestIDHeader); got != "req-123" {
		t.Fatalf("request id not echoed: %q", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := CORS(okHandler(), "https://app.hashvest.io")

	req := httptest.NewRequest(http.MethodOptions, "/v1/auth/login", nil)
	req.Header.Set("Origin", "https://app.hashvest.io")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status: %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.hashvest.io" {
		t.Fatalf("origin not echoed: %q", got)
	}
	if rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatal("credentials not allowed for configured origin")
	}

	// Unknown origins get no allow-origin echo.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("unknown origin echoed")
	}
}

func TestRateLimit(t *testing.T) {
	h := RateLimit(okHandler(), 2)

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d limited early: %d", i+1, rec.Code)
		}
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third request not limited: %d", rec.Code)
	}
}

func TestCredentialEndpointsHaveTighterBucket(t *testing.T) {
	api, _ := newTestAPI(t, Options{CredentialPerMinute: 2, RequestsPerMinute: 1000})
	h := api.Handler()

	body := map[string]string{"email": "ghost@hashvest.io", "password": "whatever1!"}
	var lastCode int
	for i := 0; i < 3; i++ {
		lastCode, _ = doJSON(t, h, http.MethodPost, "/v1/auth/login", "", body)
	}
	if lastCode != http.StatusTooManyRequests {
		t.Fatalf("credential bucket not enforced: %d", lastCode)
	}
}

func TestMaxBodyBytes(t *testing.T) {
	api, _ := newTestAPI(t, Options{MaxBodyBytes: 64})
	h := api.Handler()

	big := make(map[string]string)
	big["email"] = "a@example.com"
	big["username"] = "miner"
	big["password"] = string(make([]byte, 256))
	code, _ := doJSON(t, h, http.MethodPost, "/v1/auth/register", "", big)
	if code != http.StatusBadRequest {
		t.Fatalf("oversized body accepted: %d", code)
	}
}
