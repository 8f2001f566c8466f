package checker

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"HomePulse/internal/models"
)

type TCPChecker struct{}

func NewTCPChecker() *TCPChecker {
	return &TCPChecker{}
}

func (c *TCPChecker) Check(ctx context.Context, target models.ServiceTarget) models.CheckResult {
	host, port := splitTarget(target.URL)
	if p := getIntOption(target.Options, "port", 0); p > 0 {
		port = p
	}
	address := net.JoinHostPort(host, strconv.Itoa(port))

	start := time.Now()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	connectTime := time.Since(start)

	details := map[string]interface{}{
		"host":    host,
		"port":    port,
		"address": address,
	}

	if err != nil {
		if netErr, ok := err.(net.Error); ok {
			details["timeout"] = netErr.Timeout()
		}
		return offlineResult(fmt.Errorf("tcp connect failed: %w", err), details)
	}
	defer conn.Close()

	details["remote_address"] = conn.RemoteAddr().String()

	return models.CheckResult{
		Status:         models.StatusOnline,
		ResponseTimeMs: millis(connectTime),
		Details:        details,
	}
}

// splitTarget extracts host and port from a URL, host:port pair or bare
// hostname, defaulting the port by scheme.
func splitTarget(rawURL string) (string, int) {
	if u, err := url.Parse(rawURL); err == nil && u.Scheme != "" && u.Host != "" {
		port := defaultPort(u.Scheme)
		if p := u.Port(); p != "" {
			if parsed, err := strconv.Atoi(p); err == nil {
				port = parsed
			}
		}
		return u.Hostname(), port
	}

	if host, portStr, err := net.SplitHostPort(rawURL); err == nil {
		if port, err := strconv.Atoi(portStr); err == nil {
			return host, port
		}
	}

	return strings.TrimSuffix(rawURL, "/"), 80
}

func defaultPort(scheme string) int {
	switch scheme {
	case "https":
		return 443
	case "http":
		return 80
	case "ssh":
		return 22
	case "dns":
		return 53
	case "redis":
		return 6379
	case "postgres":
		return 5432
	default:
		return 80
	}
}
