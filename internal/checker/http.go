package checker

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"HomePulse/internal/models"
)

type HTTPChecker struct {
	client *http.Client
}

func NewHTTPChecker() *HTTPChecker {
	return &HTTPChecker{
		client: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
	}
}

func (c *HTTPChecker) Check(ctx context.Context, target models.ServiceTarget) models.CheckResult {
	fullURL, err := normalizeURL(target.URL)
	if err != nil {
		return offlineResult(err, nil)
	}

	method := getStringOption(target.Options, "method", http.MethodGet)

	req, err := http.NewRequestWithContext(ctx, method, fullURL, nil)
	if err != nil {
		return offlineResult(fmt.Errorf("failed to create request: %w", err), nil)
	}
	req.Header.Set("User-Agent", "HomePulse-Monitor/1.0")

	start := time.Now()
	resp, err := c.client.Do(req)
	responseTime := time.Since(start)

	if err != nil {
		return offlineResult(fmt.Errorf("http request failed: %w", err), map[string]interface{}{
			"url": fullURL,
		})
	}
	defer resp.Body.Close()

	details := map[string]interface{}{
		"status_code":  resp.StatusCode,
		"url":          fullURL,
		"proto":        resp.Proto,
		"content_type": resp.Header.Get("Content-Type"),
	}

	if resp.TLS != nil && len(resp.TLS.PeerCertificates) > 0 {
		cert := resp.TLS.PeerCertificates[0]
		details["ssl_valid"] = time.Now().Before(cert.NotAfter)
		details["ssl_expires_at"] = cert.NotAfter.Format(time.RFC3339)
	}

	status := models.StatusOnline
	errMsg := ""
	if !acceptableStatusCode(resp.StatusCode, target.Options) {
		status = models.StatusOffline
		errMsg = fmt.Sprintf("unexpected status code %d", resp.StatusCode)
	}

	return models.CheckResult{
		Status:         status,
		ResponseTimeMs: millis(responseTime),
		Error:          errMsg,
		Details:        details,
	}
}

// acceptableStatusCode treats 2xx/3xx as healthy unless an explicit expected
// status was configured.
func acceptableStatusCode(code int, options map[string]interface{}) bool {
	if expected := getIntOption(options, "expected_status", 0); expected != 0 {
		return code == expected
	}
	return code >= 200 && code < 400
}

func normalizeURL(target string) (string, error) {
	u, err := url.Parse(target)
	if err == nil && u.Scheme != "" && u.Host != "" {
		return target, nil
	}

	if fallback, err := url.Parse("http://" + target); err == nil && fallback.Host != "" {
		return fallback.String(), nil
	}

	return "", fmt.Errorf("invalid URL format: %s", target)
}
