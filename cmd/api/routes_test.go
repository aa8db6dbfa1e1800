package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/yourusername/youpick/internal/auth"
	"github.com/yourusername/youpick/internal/config"
	"github.com/yourusername/youpick/internal/logging"
	"github.com/yourusername/youpick/internal/storage"
	"github.com/yourusername/youpick/internal/users"
)

var csrfPattern = regexp.MustCompile(`name="csrf_token" value="([^"]+)"`)

func newTestServer(t *testing.T) (*httptest.Server, *http.Client) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		SessionSecret:  "routes-test-session-secret",
		GinMode:        gin.TestMode,
		TrustedProxies: []string{"127.0.0.1"},
		DatabaseDriver: config.DriverSQLite,
		DatabaseURL:    ":memory:",
		BcryptCost:     bcrypt.MinCost,
	}

	db, err := storage.Open(context.Background(), cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := users.EnsureSchema(context.Background(), db, cfg.DatabaseDriver); err != nil {
		t.Fatalf("schema: %v", err)
	}

	router, err := newRouter(cfg, db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("newRouter: %v", err)
	}

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return srv, client
}

func fetch(t *testing.T, client *http.Client, rawURL string) (*http.Response, string) {
	t.Helper()
	resp, err := client.Get(rawURL)
	if err != nil {
		t.Fatalf("GET %s: %v", rawURL, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func submit(t *testing.T, client *http.Client, rawURL string, values url.Values) *http.Response {
	t.Helper()
	_, form := fetch(t, client, rawURL)
	match := csrfPattern.FindStringSubmatch(form)
	if match == nil {
		t.Fatalf("csrf token not found:\n%s", form)
	}
	values.Set("csrf_token", match[1])

	resp, err := client.PostForm(rawURL, values)
	if err != nil {
		t.Fatalf("POST %s: %v", rawURL, err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return resp
}

func TestHealth(t *testing.T) {
	srv, client := newTestServer(t)

	resp, body := fetch(t, client, srv.URL+"/health")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	var payload map[string]string
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["status"] != "ok" {
		t.Fatalf("unexpected payload: %v", payload)
	}
	if resp.Header.Get(logging.RequestIDHeader) == "" {
		t.Fatal("expected request id header")
	}
}

func TestSessionCookieAttributes(t *testing.T) {
	srv, client := newTestServer(t)

	resp, _ := fetch(t, client, srv.URL+"/auth/login")
	var found *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == auth.SessionCookieName {
			found = c
		}
	}
	if found == nil {
		t.Fatal("session cookie not issued")
	}
	if !found.HttpOnly {
		t.Fatal("session cookie must be HttpOnly")
	}
	if found.Secure {
		t.Fatal("session cookie must not be Secure outside release mode")
	}
}

func TestFullFlow(t *testing.T) {
	srv, client := newTestServer(t)

	// 未ログインではランディングページに入れない
	resp, _ := fetch(t, client, srv.URL+"/picks")
	if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != auth.LoginPath {
		t.Fatalf("expected redirect to login, got %d %s", resp.StatusCode, resp.Header.Get("Location"))
	}

	resp = submit(t, client, srv.URL+"/auth/register", url.Values{
		"username":     {"alice"},
		"password":     {"s3cret"},
		"confirmation": {"s3cret"},
	})
	if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != auth.LoginPath {
		t.Fatalf("register: %d %s", resp.StatusCode, resp.Header.Get("Location"))
	}

	resp = submit(t, client, srv.URL+"/auth/login", url.Values{
		"username": {"alice"},
		"password": {"s3cret"},
	})
	if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != auth.LandingPath {
		t.Fatalf("login: %d %s", resp.StatusCode, resp.Header.Get("Location"))
	}

	resp, body := fetch(t, client, srv.URL+"/picks")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("picks: %d", resp.StatusCode)
	}
	if !strings.Contains(body, "Login successful!") || !strings.Contains(body, "Signed in as alice.") {
		t.Fatalf("unexpected picks page:\n%s", body)
	}

	_, body = fetch(t, client, srv.URL+"/")
	if !strings.Contains(body, `href="/auth/logout"`) {
		t.Fatalf("home should offer logout when logged in:\n%s", body)
	}

	resp, _ = fetch(t, client, srv.URL+"/auth/logout")
	if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != auth.HomePath {
		t.Fatalf("logout: %d %s", resp.StatusCode, resp.Header.Get("Location"))
	}

	resp, _ = fetch(t, client, srv.URL+"/picks")
	if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != auth.LoginPath {
		t.Fatalf("expected redirect after logout, got %d", resp.StatusCode)
	}
}

func TestHealthDatabaseDown(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db, err := storage.Open(context.Background(), config.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	_ = db.Close()

	router := gin.New()
	router.GET("/health", healthHandler(db))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}
