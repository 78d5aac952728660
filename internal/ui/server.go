package ui

import (
	"crypto/subtle"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// DetermineAccess inspects the requested listen address and returns whether
// authentication is required (i.e., binding to a non-loopback/unspecified
// host). It rejects remote bindings unless allowRemote is explicitly
// enabled.
func DetermineAccess(listenAddr string, allowRemote bool) (bool, error) {
	host, _, err := net.SplitHostPort(listenAddr)
	if err != nil {
		return false, fmt.Errorf("invalid listen address %q: %w", listenAddr, err)
	}

	normalizedHost := host
	if normalizedHost == "" {
		normalizedHost = "0.0.0.0"
	}

	if isLoopbackHost(normalizedHost) {
		return false, nil
	}

	if !allowRemote {
		return false, fmt.Errorf("refusing remote bind to %q without --allow-remote", normalizedHost)
	}

	return true, nil
}

// RequireBearer wraps a handler with constant-time bearer-token auth.
// Used only for non-loopback binds; the local dashboard stays open.
func RequireBearer(next http.Handler, token string) (http.Handler, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("auth token required for remote access")
	}
	expected := "Bearer " + token

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actual := strings.TrimSpace(r.Header.Get("Authorization"))
		if subtle.ConstantTimeCompare([]byte(actual), []byte(expected)) != 1 {
			w.Header().Set("WWW-Authenticate", `Bearer realm="weft-ui"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	}), nil
}

func isLoopbackHost(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}
