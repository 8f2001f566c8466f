package checker

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"HomePulse/internal/models"
)

// Checker performs exactly one probe against a target. Probe failures of any
// kind (timeout, refused, DNS error, bad response) are returned as an offline
// CheckResult, never as an error.
type Checker interface {
	Check(ctx context.Context, target models.ServiceTarget) models.CheckResult
}

// Registry maps protocols to their checking strategy and runs fan-out sweeps.
type Registry struct {
	checkers      map[models.Protocol]Checker
	maxConcurrent int
	logger        *slog.Logger
}

type RegistryConfig struct {
	MaxConcurrentChecks int
}

func NewRegistry(cfg RegistryConfig, logger *slog.Logger) *Registry {
	maxConcurrent := cfg.MaxConcurrentChecks
	if maxConcurrent <= 0 {
		maxConcurrent = 32
	}

	if logger == nil {
		logger = slog.Default()
	}

	httpChecker := NewHTTPChecker()
	tcpChecker := NewTCPChecker()

	return &Registry{
		checkers: map[models.Protocol]Checker{
			models.ProtocolHTTP:  httpChecker,
			models.ProtocolHTTPS: httpChecker,
			models.ProtocolTCP:   tcpChecker,
			models.ProtocolPing:  NewPingChecker(),
			models.ProtocolDNS:   NewDNSChecker(),
			// Custom targets fall back to a plain TCP reachability probe.
			models.ProtocolCustom: tcpChecker,
		},
		maxConcurrent: maxConcurrent,
		logger:        logger,
	}
}

// DetectProtocol picks a checking strategy from the URL shape.
func (r *Registry) DetectProtocol(rawURL string) models.Protocol {
	if u, err := url.Parse(rawURL); err == nil {
		switch u.Scheme {
		case "http":
			return models.ProtocolHTTP
		case "https":
			return models.ProtocolHTTPS
		case "tcp":
			return models.ProtocolTCP
		case "ping":
			return models.ProtocolPing
		case "dns":
			return models.ProtocolDNS
		}
	}

	// host:port without a scheme is a TCP endpoint, a bare hostname gets the
	// generic reachability probe.
	if strings.Contains(rawURL, ":") && !strings.Contains(rawURL, "://") {
		return models.ProtocolTCP
	}

	return models.ProtocolPing
}

// CheckService runs one probe bounded by the target's timeout.
func (r *Registry) CheckService(ctx context.Context, target models.ServiceTarget) models.CheckResult {
	protocol := target.Protocol
	if protocol == "" {
		protocol = r.DetectProtocol(target.URL)
	}

	c, ok := r.checkers[protocol]
	if !ok {
		r.logger.Warn("no checker for protocol, falling back to tcp",
			"protocol", protocol,
			"service_id", target.ID,
		)
		c = r.checkers[models.ProtocolTCP]
	}

	ctx, cancel := context.WithTimeout(ctx, target.Timeout())
	defer cancel()

	result := c.Check(ctx, target)
	result.ID = target.ID
	return result
}

// CheckServices probes all targets concurrently and returns a complete map.
// A hanging target delays only itself, bounded by its own timeout.
func (r *Registry) CheckServices(ctx context.Context, targets []models.ServiceTarget) map[string]models.CheckResult {
	results := make(map[string]models.CheckResult, len(targets))
	if len(targets) == 0 {
		return results
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, r.maxConcurrent)
	)

	started := time.Now()
	for _, target := range targets {
		wg.Add(1)
		go func(t models.ServiceTarget) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			result := r.CheckService(ctx, t)

			mu.Lock()
			results[t.ID] = result
			mu.Unlock()
		}(target)
	}
	wg.Wait()

	r.logger.Debug("sweep probes settled",
		"targets", len(targets),
		"elapsed", time.Since(started),
	)

	return results
}

// AvailableProtocols reports the supported protocol kinds.
func (r *Registry) AvailableProtocols() []models.Protocol {
	protocols := make([]models.Protocol, 0, len(r.checkers))
	for p := range r.checkers {
		protocols = append(protocols, p)
	}
	return protocols
}

// offlineResult is the shared shape for failed probes.
func offlineResult(err error, details map[string]interface{}) models.CheckResult {
	return models.CheckResult{
		Status:  models.StatusOffline,
		Error:   err.Error(),
		Details: details,
	}
}

func millis(d time.Duration) *int64 {
	ms := d.Milliseconds()
	return &ms
}
