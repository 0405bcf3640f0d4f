// internal/scanners/sqli/sqli.go
package sqli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"redtrace/internal/core/domain"
	"redtrace/internal/core/ports"
	"redtrace/internal/platform/httpclient"
	"redtrace/internal/platform/logx"
	"redtrace/internal/platform/registry"
)

// payloads son sondas de inyección de bajo impacto. La detección es
// error-based: se busca la firma del motor SQL en la respuesta.
var payloads = []string{
	"'",
	"\"",
	"' OR '1'='1",
	"' OR '1'='1' --",
	"1' AND '1'='2",
	"' UNION SELECT NULL--",
}

// errorSignatures delatan un backend SQL propagando errores al cliente.
// Se comparan en minúsculas contra el cuerpo completo.
var errorSignatures = []string{
	"you have an error in your sql syntax",
	"warning: mysql",
	"mysql_fetch_array",
	"unclosed quotation mark after the character string",
	"quoted string not properly terminated",
	"sqlstate[",
	"pg_query()",
	"postgresql query failed",
	"ora-00933",
	"ora-01756",
	"sqlite3.operationalerror",
	"syntax error at or near",
	"microsoft ole db provider for sql server",
}

// defaultParams son los nombres de parámetro más habituales a sondear
// cuando no se conoce la superficie de la aplicación.
var defaultParams = []string{"id", "page", "search", "q", "user", "item"}

// Auto-registro del scanner al importar el package
func init() {
	if err := registry.Scanners().Register(
		"sqli",
		func(cfg ports.CollaboratorConfig, logger logx.Logger) (ports.Scanner, error) {
			return New(cfg, logger), nil
		},
		ports.CollaboratorMetadata{
			Name:            "sqli",
			Description:     "Error-based SQL injection probe",
			Version:         "1.0.0",
			RequiresNetwork: true,
		},
	); err != nil {
		logx.New().Warn("failed to register sqli scanner", "error", err.Error())
	}
}

// Scanner sondea parámetros GET con payloads de inyección y detecta
// errores SQL reflejados en la respuesta.
type Scanner struct {
	client *httpclient.Client
	scheme string
	params []string
	logger logx.Logger
}

// New crea el scanner SQLi.
// cfg.Custom["scheme"] fuerza http/https (default http);
// cfg.Custom["params"] es una lista separada por comas de parámetros a sondear.
func New(cfg ports.CollaboratorConfig, logger logx.Logger) *Scanner {
	scheme := "http"
	if v, ok := cfg.Custom["scheme"]; ok && (v == "http" || v == "https") {
		scheme = v
	}

	params := defaultParams
	if v, ok := cfg.Custom["params"]; ok && v != "" {
		params = nil
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				params = append(params, p)
			}
		}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	httpCfg := httpclient.Config{
		Timeout:    timeout,
		MaxRetries: 0, // una sonda fallida no merece reintento
		RateLimit:  10.0,
	}

	return &Scanner{
		client: httpclient.New(httpCfg, logger),
		scheme: scheme,
		params: params,
		logger: logger.With("scanner", "sqli"),
	}
}

// Name retorna el nombre del scanner.
func (s *Scanner) Name() string { return "sqli" }

// Scan sondea cada combinación (parámetro, payload) contra el host.
// Al primer hallazgo por parámetro se pasa al siguiente: payloads
// adicionales sobre un parámetro ya confirmado no aportan señal.
func (s *Scanner) Scan(ctx context.Context, host string) ([]domain.Vulnerability, error) {
	baseURL := host
	if !strings.Contains(host, "://") {
		baseURL = fmt.Sprintf("%s://%s/", s.scheme, host)
	}

	var findings []domain.Vulnerability

	for _, param := range s.params {
		for _, payload := range payloads {
			if ctx.Err() != nil {
				return findings, nil
			}

			body, resp, err := s.client.GetWithParams(ctx, baseURL, map[string]string{param: payload})
			if err != nil {
				// Host inalcanzable: no hay nada que escanear aquí.
				s.logger.Debug("sqli probe failed", "host", host, "param", param, "error", err.Error())
				return findings, nil
			}

			sig := matchSignature(body)
			if sig == "" {
				continue
			}

			findings = append(findings, domain.Vulnerability{
				Type:      domain.VulnTypeSQLi,
				Severity:  domain.SeverityHigh,
				URL:       baseURL,
				Parameter: param,
				Payload:   payload,
				Evidence:  fmt.Sprintf("SQL error signature %q in response (status %d)", sig, resp.StatusCode),
				Timestamp: time.Now(),
			})
			break
		}
	}

	if len(findings) > 0 {
		s.logger.Info("sqli findings", "host", host, "count", len(findings))
	}
	return findings, nil
}

func matchSignature(body []byte) string {
	lower := strings.ToLower(string(body))
	for _, sig := range errorSignatures {
		if strings.Contains(lower, sig) {
			return sig
		}
	}
	return ""
}
