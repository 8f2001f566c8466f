package checker

import (
	"context"
	"fmt"
	"strings"

	"github.com/miekg/dns"

	"HomePulse/internal/models"
)

// DNSChecker verifies that a hostname resolves through a configurable
// resolver. Useful for homelab setups running their own DNS (pihole etc.).
type DNSChecker struct {
	client *dns.Client
}

func NewDNSChecker() *DNSChecker {
	return &DNSChecker{
		client: &dns.Client{},
	}
}

func (c *DNSChecker) Check(ctx context.Context, target models.ServiceTarget) models.CheckResult {
	host, _ := splitTarget(strings.TrimPrefix(target.URL, "dns://"))
	server := getStringOption(target.Options, "resolver", "8.8.8.8:53")
	recordType := getStringOption(target.Options, "record_type", "A")

	msg := dns.Msg{}
	msg.SetQuestion(dns.Fqdn(host), recordTypeToDNSType(recordType))

	response, rtt, err := c.client.ExchangeContext(ctx, &msg, server)
	if err != nil {
		return offlineResult(fmt.Errorf("dns query failed: %w", err), map[string]interface{}{
			"host":     host,
			"resolver": server,
		})
	}

	details := map[string]interface{}{
		"host":         host,
		"resolver":     server,
		"record_type":  recordType,
		"answer_count": len(response.Answer),
	}

	if response.Rcode != dns.RcodeSuccess {
		return offlineResult(fmt.Errorf("dns error: %s", dns.RcodeToString[response.Rcode]), details)
	}

	if len(response.Answer) == 0 {
		return offlineResult(fmt.Errorf("no %s records for %s", recordType, host), details)
	}

	records := make([]string, 0, len(response.Answer))
	for _, answer := range response.Answer {
		records = append(records, answer.String())
	}
	details["records"] = records

	return models.CheckResult{
		Status:         models.StatusOnline,
		ResponseTimeMs: millis(rtt),
		Details:        details,
	}
}

func recordTypeToDNSType(recordType string) uint16 {
	switch recordType {
	case "A":
		return dns.TypeA
	case "AAAA":
		return dns.TypeAAAA
	case "MX":
		return dns.TypeMX
	case "NS":
		return dns.TypeNS
	case "TXT":
		return dns.TypeTXT
	case "CNAME":
		return dns.TypeCNAME
	default:
		return dns.TypeA
	}
}
