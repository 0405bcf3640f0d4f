// internal/core/domain/vulnerability.go
package domain

import (
	"fmt"
	"strings"
	"time"
)

// Severity clasifica el impacto de una vulnerabilidad.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// IsValid verifica que la severidad sea conocida.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo:
		return true
	}
	return false
}

// Rank retorna un orden numérico (mayor = más severo) para ordenación.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// VulnType identifica la clase de vulnerabilidad detectada.
type VulnType string

const (
	VulnTypeSQLi          VulnType = "sqli"
	VulnTypeXSS           VulnType = "xss"
	VulnTypeMissingHeader VulnType = "missing_header"
)

// Vulnerability es un hallazgo inmutable producido por un scanner.
// La identidad de deduplicación es el fingerprint, no el timestamp.
type Vulnerability struct {
	Type      VulnType  `json:"type"`
	Severity  Severity  `json:"severity"`
	URL       string    `json:"url"`
	Parameter string    `json:"parameter"`
	Payload   string    `json:"payload"`
	Evidence  string    `json:"evidence"`
	Timestamp time.Time `json:"timestamp"`
	CVE       string    `json:"cve,omitempty"`
}

// Fingerprint deriva la clave determinista de deduplicación.
// Dos hallazgos con el mismo fingerprint son el mismo hallazgo aunque
// difieran en timestamp o evidencia.
func (v Vulnerability) Fingerprint() string {
	return strings.ToLower(fmt.Sprintf("%s:%s:%s:%s", v.URL, v.Parameter, v.Payload, v.Type))
}

// ExploitResult registra el resultado de un intento de explotación.
type ExploitResult struct {
	Fingerprint string            `json:"fingerprint"`
	Exploiter   string            `json:"exploiter"`
	Success     bool              `json:"success"`
	Evidence    string            `json:"evidence"`
	Data        map[string]string `json:"data,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
}
