package ui_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/weftworks/weft/internal/ui"
)

func TestDetermineAccessLoopback(t *testing.T) {
	t.Parallel()

	requireAuth, err := ui.DetermineAccess("127.0.0.1:0", false)
	if err != nil {
		t.Fatalf("DetermineAccess returned error: %v", err)
	}
	if requireAuth {
		t.Fatalf("expected loopback binding to skip auth requirement")
	}
}

func TestDetermineAccessRemoteWithoutAllow(t *testing.T) {
	t.Parallel()

	if _, err := ui.DetermineAccess("0.0.0.0:0", false); err == nil {
		t.Fatalf("expected remote binding to fail without allow-remote flag")
	}
}

func TestDetermineAccessIPv6Loopback(t *testing.T) {
	requireAuth, err := ui.DetermineAccess("[::1]:0", false)
	if err != nil {
		t.Fatalf("DetermineAccess returned error: %v", err)
	}
	if requireAuth {
		t.Fatalf("expected IPv6 loopback to skip auth requirement")
	}
}

func TestDetermineAccessUnspecifiedHost(t *testing.T) {
	requireAuth, err := ui.DetermineAccess(":0", true)
	if err != nil {
		t.Fatalf("DetermineAccess returned error: %v", err)
	}
	if !requireAuth {
		t.Fatalf("expected unspecified host with allow remote to enforce auth")
	}
}

func TestRequireBearerEnforcement(t *testing.T) {
	t.Parallel()

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler, err := ui.RequireBearer(inner, "secret-token")
	if err != nil {
		t.Fatalf("RequireBearer: %v", err)
	}

	ts := httptest.NewServer(handler)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET without auth: %v", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) // nolint:errcheck
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without Authorization header, got %d", resp.StatusCode)
	}
	if resp.Header.Get("WWW-Authenticate") == "" {
		t.Fatal("expected WWW-Authenticate challenge")
	}

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Authorization", "Bearer secret-token")

	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET with auth: %v", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) // nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with Authorization header, got %d", resp.StatusCode)
	}
}

func TestRequireBearerRejectsEmptyToken(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	if _, err := ui.RequireBearer(inner, "   "); err == nil {
		t.Fatal("expected error for blank token")
	}
}
