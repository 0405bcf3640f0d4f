// internal/core/domain/vulnerability_test.go
package domain_test

import (
	"testing"

	"redtrace/internal/core/domain"
	"redtrace/internal/testutil"
)

func TestVulnerability_Fingerprint(t *testing.T) {
	tests := []struct {
		name string
		a, b domain.Vulnerability
		same bool
	}{
		{
			name: "identical findings",
			a:    domain.Vulnerability{Type: domain.VulnTypeSQLi, URL: "http://x.com/", Parameter: "id", Payload: "'"},
			b:    domain.Vulnerability{Type: domain.VulnTypeSQLi, URL: "http://x.com/", Parameter: "id", Payload: "'"},
			same: true,
		},
		{
			name: "case differences collapse",
			a:    domain.Vulnerability{Type: domain.VulnTypeSQLi, URL: "HTTP://X.COM/", Parameter: "ID", Payload: "'"},
			b:    domain.Vulnerability{Type: domain.VulnTypeSQLi, URL: "http://x.com/", Parameter: "id", Payload: "'"},
			same: true,
		},
		{
			name: "evidence does not affect identity",
			a:    domain.Vulnerability{Type: domain.VulnTypeSQLi, URL: "http://x.com/", Parameter: "id", Payload: "'", Evidence: "a"},
			b:    domain.Vulnerability{Type: domain.VulnTypeSQLi, URL: "http://x.com/", Parameter: "id", Payload: "'", Evidence: "b"},
			same: true,
		},
		{
			name: "different parameter",
			a:    domain.Vulnerability{Type: domain.VulnTypeSQLi, URL: "http://x.com/", Parameter: "id", Payload: "'"},
			b:    domain.Vulnerability{Type: domain.VulnTypeSQLi, URL: "http://x.com/", Parameter: "page", Payload: "'"},
			same: false,
		},
		{
			name: "different type",
			a:    domain.Vulnerability{Type: domain.VulnTypeSQLi, URL: "http://x.com/", Parameter: "id", Payload: "'"},
			b:    domain.Vulnerability{Type: domain.VulnTypeXSS, URL: "http://x.com/", Parameter: "id", Payload: "'"},
			same: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.same {
				testutil.AssertEqual(t, tt.a.Fingerprint(), tt.b.Fingerprint(), "fingerprints should match")
			} else {
				testutil.AssertNotEqual(t, tt.a.Fingerprint(), tt.b.Fingerprint(), "fingerprints should differ")
			}
		})
	}
}

func TestSeverity(t *testing.T) {
	testutil.AssertTrue(t, domain.SeverityCritical.IsValid(), "critical is valid")
	testutil.AssertTrue(t, domain.SeverityInfo.IsValid(), "info is valid")
	testutil.AssertFalse(t, domain.Severity("bogus").IsValid(), "unknown severity invalid")

	testutil.AssertTrue(t, domain.SeverityCritical.Rank() > domain.SeverityHigh.Rank(), "critical outranks high")
	testutil.AssertTrue(t, domain.SeverityLow.Rank() > domain.SeverityInfo.Rank(), "low outranks info")
}
