// internal/enumerators/crtsh/crtsh.go
package crtsh

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"redtrace/internal/core/ports"
	"redtrace/internal/platform/httpclient"
	"redtrace/internal/platform/logx"
	"redtrace/internal/platform/registry"
	"redtrace/internal/platform/validator"
)

const defaultBaseURL = "https://crt.sh"

// Auto-registro del enumerator al importar el package
func init() {
	if err := registry.Enumerators().Register(
		"crtsh",
		func(cfg ports.CollaboratorConfig, logger logx.Logger) (ports.Enumerator, error) {
			return New(cfg, logger), nil
		},
		ports.CollaboratorMetadata{
			Name:            "crtsh",
			Description:     "Certificate Transparency log search via crt.sh",
			Version:         "1.0.0",
			RequiresNetwork: true,
		},
	); err != nil {
		logx.New().Warn("failed to register crtsh enumerator", "error", err.Error())
	}
}

// CRT consulta la base de datos crt.sh para descubrir subdominios a partir
// de certificados emitidos para el dominio objetivo.
type CRT struct {
	client  *httpclient.Client
	baseURL string
	logger  logx.Logger
}

// New crea una instancia del enumerator crt.sh.
// cfg.Custom["base_url"] permite redirigir el endpoint (tests, mirrors).
func New(cfg ports.CollaboratorConfig, logger logx.Logger) *CRT {
	baseURL := defaultBaseURL
	if v, ok := cfg.Custom["base_url"]; ok && v != "" {
		baseURL = strings.TrimSuffix(v, "/")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	httpCfg := httpclient.Config{
		Timeout:        timeout,
		MaxRetries:     2,
		RetryBackoff:   2 * time.Second,
		RateLimit:      2.0, // ser respetuoso con crt.sh
		RateLimitBurst: 1,
	}

	return &CRT{
		client:  httpclient.New(httpCfg, logger),
		baseURL: baseURL,
		logger:  logger.With("enumerator", "crtsh"),
	}
}

// Name retorna el nombre del enumerator.
func (c *CRT) Name() string { return "crtsh" }

// certRecord es la forma de cada entrada del JSON de crt.sh.
type certRecord struct {
	NameValue  string `json:"name_value"`
	CommonName string `json:"common_name"`
}

// Enumerate consulta crt.sh y extrae los hostnames de los certificados.
// Fallos de red ordinarios no son error: se retorna lo acumulado (vacío).
func (c *CRT) Enumerate(ctx context.Context, domain string) ([]string, error) {
	url := fmt.Sprintf("%s/?q=%%25.%s&output=json", c.baseURL, domain)

	body, err := c.client.FetchJSON(ctx, url)
	if err != nil {
		c.logger.Warn("crtsh request failed", "domain", domain, "error", err.Error())
		return nil, nil
	}

	var records []certRecord
	if err := json.Unmarshal(body, &records); err != nil {
		// crt.sh devuelve HTML en errores; no es fallo del stage.
		c.logger.Warn("crtsh returned unparseable body", "domain", domain, "error", err.Error())
		return nil, nil
	}

	seen := make(map[string]struct{})
	found := make([]string, 0, len(records))

	for _, rec := range records {
		select {
		case <-ctx.Done():
			c.logger.Debug("crtsh enumeration canceled, returning partial results", "found", len(found))
			return found, nil
		default:
		}

		names := strings.Split(rec.NameValue, "\n")
		names = append(names, rec.CommonName)

		for _, name := range names {
			name = strings.ToLower(strings.TrimSpace(name))
			name = strings.TrimPrefix(name, "*.")
			if name == "" {
				continue
			}
			if !validator.IsDomain(name) {
				continue
			}
			if name != domain && !validator.IsSubdomain(name, domain) {
				continue
			}
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			found = append(found, name)
		}
	}

	c.logger.Debug("crtsh enumeration completed", "domain", domain, "found", len(found))
	return found, nil
}
