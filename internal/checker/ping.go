package checker

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"HomePulse/internal/models"
)

// PingChecker is the generic reachability probe for targets without a usable
// scheme. Raw ICMP needs elevated privileges, so it resolves the host and
// then tries a TCP connect on a short list of common ports.
type PingChecker struct {
	resolver *net.Resolver
	ports    []int
}

func NewPingChecker() *PingChecker {
	return &PingChecker{
		resolver: net.DefaultResolver,
		ports:    []int{443, 80, 22},
	}
}

func (c *PingChecker) Check(ctx context.Context, target models.ServiceTarget) models.CheckResult {
	host, _ := splitTarget(target.URL)

	start := time.Now()
	addrs, err := c.resolver.LookupHost(ctx, host)
	if err != nil {
		return offlineResult(fmt.Errorf("dns lookup failed: %w", err), map[string]interface{}{
			"host": host,
		})
	}

	details := map[string]interface{}{
		"host":      host,
		"addresses": addrs,
	}

	var d net.Dialer
	var lastErr error
	for _, port := range c.ports {
		conn, dialErr := d.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
		if dialErr == nil {
			conn.Close()
			details["reachable_port"] = port
			return models.CheckResult{
				Status:         models.StatusOnline,
				ResponseTimeMs: millis(time.Since(start)),
				Details:        details,
			}
		}
		lastErr = dialErr

		if ctx.Err() != nil {
			break
		}
	}

	// The host resolved but nothing answered. A refused connection still
	// proves the host is up.
	if opErr, ok := lastErr.(*net.OpError); ok && !opErr.Timeout() {
		if ctx.Err() == nil {
			details["connection_refused"] = true
			return models.CheckResult{
				Status:         models.StatusOnline,
				ResponseTimeMs: millis(time.Since(start)),
				Details:        details,
			}
		}
	}

	return offlineResult(fmt.Errorf("host unreachable: %w", lastErr), details)
}
