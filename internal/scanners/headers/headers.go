// internal/scanners/headers/headers.go
package headers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"redtrace/internal/core/domain"
	"redtrace/internal/core/ports"
	"redtrace/internal/platform/httpclient"
	"redtrace/internal/platform/logx"
	"redtrace/internal/platform/registry"
)

// requiredHeaders son las cabeceras de seguridad cuya ausencia se reporta,
// con la severidad asociada a cada una.
var requiredHeaders = []struct {
	name     string
	severity domain.Severity
	note     string
}{
	{"Strict-Transport-Security", domain.SeverityMedium, "HSTS not enforced"},
	{"Content-Security-Policy", domain.SeverityMedium, "no CSP policy"},
	{"X-Frame-Options", domain.SeverityLow, "clickjacking not mitigated"},
	{"X-Content-Type-Options", domain.SeverityLow, "MIME sniffing not disabled"},
	{"Referrer-Policy", domain.SeverityInfo, "referrer leakage not restricted"},
	{"Permissions-Policy", domain.SeverityInfo, "no feature policy"},
}

// Auto-registro del scanner al importar el package
func init() {
	if err := registry.Scanners().Register(
		"headers",
		func(cfg ports.CollaboratorConfig, logger logx.Logger) (ports.Scanner, error) {
			return New(cfg, logger), nil
		},
		ports.CollaboratorMetadata{
			Name:            "headers",
			Description:     "Missing security header detection",
			Version:         "1.0.0",
			RequiresNetwork: true,
		},
	); err != nil {
		logx.New().Warn("failed to register headers scanner", "error", err.Error())
	}
}

// Scanner inspecciona las cabeceras de respuesta de un host en busca de
// cabeceras de seguridad ausentes.
type Scanner struct {
	client *httpclient.Client
	scheme string
	logger logx.Logger
}

// New crea el scanner de cabeceras.
// cfg.Custom["scheme"] fuerza http/https (default https: HSTS solo tiene
// sentido sobre TLS).
func New(cfg ports.CollaboratorConfig, logger logx.Logger) *Scanner {
	scheme := "https"
	if v, ok := cfg.Custom["scheme"]; ok && (v == "http" || v == "https") {
		scheme = v
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	httpCfg := httpclient.Config{
		Timeout:    timeout,
		MaxRetries: 1,
		RateLimit:  10.0,
	}

	return &Scanner{
		client: httpclient.New(httpCfg, logger),
		scheme: scheme,
		logger: logger.With("scanner", "headers"),
	}
}

// Name retorna el nombre del scanner.
func (s *Scanner) Name() string { return "headers" }

// Scan hace una petición al host y reporta cada cabecera requerida ausente
// como un hallazgo independiente. Un host inalcanzable no es error.
func (s *Scanner) Scan(ctx context.Context, host string) ([]domain.Vulnerability, error) {
	target := host
	if !strings.Contains(host, "://") {
		target = fmt.Sprintf("%s://%s/", s.scheme, host)
	}

	resp, err := s.client.Request(ctx, http.MethodGet, target, nil)
	if err != nil {
		s.logger.Debug("headers probe failed", "host", host, "error", err.Error())
		return nil, nil
	}
	defer resp.Body.Close()

	var findings []domain.Vulnerability
	now := time.Now()

	for _, h := range requiredHeaders {
		if resp.Header.Get(h.name) != "" {
			continue
		}
		findings = append(findings, domain.Vulnerability{
			Type:      domain.VulnTypeMissingHeader,
			Severity:  h.severity,
			URL:       target,
			Parameter: h.name,
			Payload:   "",
			Evidence:  fmt.Sprintf("%s header missing: %s", h.name, h.note),
			Timestamp: now,
		})
	}

	s.logger.Debug("headers scan done", "host", host, "missing", len(findings))
	return findings, nil
}
