package validator

import (
	"net"
	"net/url"
	"strings"
)

// ValidateTarget accepts URLs (http/https/tcp/dns scheme), host:port pairs
// and bare hostnames.
func ValidateTarget(target string) bool {
	if target == "" {
		return false
	}

	if _, _, err := net.SplitHostPort(target); err == nil {
		return true
	}

	if u, err := url.Parse(target); err == nil {
		switch u.Scheme {
		case "http", "https", "tcp", "ping", "dns":
			return u.Host != "" || u.Opaque != ""
		}
	}

	// Bare hostnames like "nas.local" are resolved by the checkers.
	return !strings.Contains(target, "://")
}

// ValidateProtocol reports whether the protocol name is one we can probe.
func ValidateProtocol(protocol string) bool {
	validProtocols := map[string]bool{
		"http":   true,
		"https":  true,
		"tcp":    true,
		"ping":   true,
		"dns":    true,
		"custom": true,
	}
	return validProtocols[protocol]
}
