// internal/store/snapshot.go
package store

import (
	"strings"
	"time"

	"redtrace/internal/core/domain"
)

// snapshot es el esquema explícito y auto-descriptivo que se serializa a
// disco. Se codifica exactamente este struct (JSON y gob), nunca grafos de
// objetos arbitrarios.
type snapshot struct {
	Version    int               `json:"version"`
	Domain     string            `json:"domain"`
	Subdomains []string          `json:"subdomains"`
	Vulns      []vulnRecord      `json:"vulnerabilities"`
	Exploited  []exploitRecord   `json:"exploited"`
	Metadata   map[string]string `json:"metadata"`
	SavedAt    time.Time         `json:"saved_at"`
}

type vulnRecord struct {
	Type      string    `json:"type"`
	Severity  string    `json:"severity"`
	URL       string    `json:"url"`
	Parameter string    `json:"parameter"`
	Payload   string    `json:"payload"`
	Evidence  string    `json:"evidence"`
	Timestamp time.Time `json:"timestamp"`
	CVE       string    `json:"cve,omitempty"`
}

type exploitRecord struct {
	Fingerprint string            `json:"fingerprint"`
	Exploiter   string            `json:"exploiter"`
	Success     bool              `json:"success"`
	Evidence    string            `json:"evidence"`
	Data        map[string]string `json:"data,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
}

const snapshotVersion = 1

// toSnapshot captura el estado del target en el esquema de disco.
func toSnapshot(t *domain.Target) snapshot {
	vulns := t.Vulnerabilities()
	exploited := t.Exploited()

	snap := snapshot{
		Version:    snapshotVersion,
		Domain:     t.Domain(),
		Subdomains: t.Subdomains(),
		Vulns:      make([]vulnRecord, 0, len(vulns)),
		Exploited:  make([]exploitRecord, 0, len(exploited)),
		Metadata:   t.Metadata(),
		SavedAt:    time.Now().UTC(),
	}

	for _, v := range vulns {
		snap.Vulns = append(snap.Vulns, vulnRecord{
			Type:      string(v.Type),
			Severity:  string(v.Severity),
			URL:       v.URL,
			Parameter: v.Parameter,
			Payload:   v.Payload,
			Evidence:  v.Evidence,
			Timestamp: v.Timestamp,
			CVE:       v.CVE,
		})
	}
	for _, e := range exploited {
		snap.Exploited = append(snap.Exploited, exploitRecord{
			Fingerprint: e.Fingerprint,
			Exploiter:   e.Exploiter,
			Success:     e.Success,
			Evidence:    e.Evidence,
			Data:        e.Data,
			Timestamp:   e.Timestamp,
		})
	}
	return snap
}

// toTarget reconstruye el target re-admitiendo todo a través de los
// mutadores dedup-aware, de modo que un target cargado (incluso por la ruta
// de fallback) satisface los mismos invariantes que uno recién poblado.
// Campos opcionales ausentes reciben defaults permisivos.
func (s snapshot) toTarget() *domain.Target {
	t := domain.NewTarget(s.Domain)

	for _, sub := range s.Subdomains {
		t.AddSubdomain(sub)
	}

	for _, v := range s.Vulns {
		t.AddVulnerability(domain.Vulnerability{
			Type:      domain.VulnType(v.Type),
			Severity:  domain.Severity(strings.ToLower(v.Severity)),
			URL:       v.URL,
			Parameter: v.Parameter,
			Payload:   v.Payload,
			Evidence:  v.Evidence,
			Timestamp: v.Timestamp,
			CVE:       v.CVE,
		})
	}

	for _, e := range s.Exploited {
		data := e.Data
		if data == nil {
			data = make(map[string]string)
		}
		t.AddExploitResult(domain.ExploitResult{
			Fingerprint: e.Fingerprint,
			Exploiter:   e.Exploiter,
			Success:     e.Success,
			Evidence:    e.Evidence,
			Data:        data,
			Timestamp:   e.Timestamp,
		})
	}

	for k, v := range s.Metadata {
		t.SetMeta(k, v)
	}
	return t
}
