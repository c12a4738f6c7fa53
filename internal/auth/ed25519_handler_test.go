package auth

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/debemdeboas/newsdesk/internal/config"
)

func TestEd25519ChallengeHandler(t *testing.T) {
	p, _ := newTestProvider(t)
	handler := Ed25519ChallengeHandler(p)

	decode := func(t *testing.T, rec *httptest.ResponseRecorder) []byte {
		t.Helper()
		var body map[string]string
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("Invalid JSON: %v", err)
		}
		raw, err := base64.StdEncoding.DecodeString(body["challenge"])
		if err != nil {
			t.Fatalf("Invalid challenge encoding: %v", err)
		}
		return raw
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/challenge", nil))
	first := decode(t, rec)
	if string(first) != string(p.GetChallenge()) {
		t.Error("GET should return the current challenge")
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/challenge", nil))
	second := decode(t, rec)
	if string(second) == string(first) {
		t.Error("POST should replace the challenge")
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/auth/challenge", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", rec.Code)
	}
}

func TestEd25519VerifyHandler(t *testing.T) {
	p, priv := newTestProvider(t)
	handler := Ed25519VerifyHandler(p)

	testCases := []struct {
		name       string
		method     string
		header     string
		wantStatus int
		wantCookie bool
	}{
		{"Wrong method", http.MethodGet, "", http.StatusMethodNotAllowed, false},
		{"Missing header", http.MethodPost, "", http.StatusUnauthorized, false},
		{"Bad encoding", http.MethodPost, "!!!", http.StatusUnauthorized, false},
		{"Wrong signature", http.MethodPost, base64.StdEncoding.EncodeToString(make([]byte, ed25519.SignatureSize)), http.StatusUnauthorized, false},
		{"Valid signature", http.MethodPost, sign(p, priv), http.StatusOK, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/auth/verify", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Errorf("Expected status %d, got %d", tc.wantStatus, rec.Code)
			}

			var cookie *http.Cookie
			for _, c := range rec.Result().Cookies() {
				if c.Name == config.CookieAuthToken {
					cookie = c
				}
			}
			if (cookie != nil) != tc.wantCookie {
				t.Fatalf("Expected cookie=%v, got %v", tc.wantCookie, cookie)
			}
			if cookie != nil && (!cookie.HttpOnly || cookie.SameSite != http.SameSiteStrictMode) {
				t.Errorf("Session cookie must be HttpOnly and SameSite=Strict: %+v", cookie)
			}
		})
	}
}

func TestSafeRedirect(t *testing.T) {
	testCases := map[string]string{
		"":                   "/news",
		"/news/add":          "/news/add",
		"https://evil.test/": "/news",
		"//evil.test":        "/news",
	}
	for in, want := range testCases {
		if got := safeRedirect(in); got != want {
			t.Errorf("safeRedirect(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRegisterEd25519AuthRoutes(t *testing.T) {
	config.AppConfig = config.Default()
	p, _ := newTestProvider(t)

	files := fstest.MapFS{
		"templates/layout.html":       {Data: []byte(`{{define "layout"}}{{.SiteName}}{{end}}`)},
		"templates/ed25519_auth.html": {Data: []byte(`{{define "auth"}}{{template "layout" .}} login then {{.RedirectURL}}{{end}}`)},
	}

	mux := http.NewServeMux()
	if err := RegisterEd25519AuthRoutes(mux, p, files); err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/login?redirect=/news/add&refresh=true", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if body := rec.Body.String(); !strings.Contains(body, "Newsdesk login then /news/add") {
		t.Errorf("Unexpected body %q", body)
	}
	if got := rec.Header().Get("Hx-Redirect"); got != "/auth/login" {
		t.Errorf("Expected refresh redirect, got %q", got)
	}

	if err := RegisterEd25519AuthRoutes(http.NewServeMux(), p, fstest.MapFS{}); err == nil {
		t.Error("Expected an error when templates are missing")
	}
}
