// internal/enumerators/dnsbrute/dnsbrute.go
package dnsbrute

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"redtrace/internal/core/ports"
	"redtrace/internal/platform/logx"
	"redtrace/internal/platform/registry"
)

// defaultWordlist cubre los prefijos más comunes; una wordlist mayor se
// puede inyectar via Custom["wordlist"].
var defaultWordlist = []string{
	"www", "mail", "ftp", "smtp", "pop", "imap", "webmail", "admin",
	"portal", "blog", "shop", "dev", "test", "staging", "api", "app",
	"cdn", "static", "assets", "img", "vpn", "remote", "gateway",
	"ns1", "ns2", "mx", "db", "sql", "backup", "git", "ci", "jenkins",
	"grafana", "monitor", "status", "docs", "wiki", "support", "help",
	"auth", "sso", "login", "id", "m", "mobile", "beta", "demo",
}

// Auto-registro del enumerator al importar el package
func init() {
	if err := registry.Enumerators().Register(
		"dnsbrute",
		func(cfg ports.CollaboratorConfig, logger logx.Logger) (ports.Enumerator, error) {
			return New(cfg, logger)
		},
		ports.CollaboratorMetadata{
			Name:            "dnsbrute",
			Description:     "Wordlist-based DNS brute force enumeration",
			Version:         "1.0.0",
			RequiresNetwork: true,
		},
	); err != nil {
		logx.New().Warn("failed to register dnsbrute enumerator", "error", err.Error())
	}
}

// Resolver abstrae la resolución DNS (sustituible en tests).
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// Brute resuelve candidatos palabra.dominio de una wordlist.
type Brute struct {
	resolver      Resolver
	words         []string
	lookupTimeout time.Duration
	logger        logx.Logger
}

// New crea el enumerator de fuerza bruta DNS.
// cfg.Custom["wordlist"] apunta a un fichero con una palabra por línea.
func New(cfg ports.CollaboratorConfig, logger logx.Logger) (*Brute, error) {
	words := defaultWordlist
	if path, ok := cfg.Custom["wordlist"]; ok && path != "" {
		loaded, err := loadWordlist(path)
		if err != nil {
			return nil, fmt.Errorf("load wordlist %s: %w", path, err)
		}
		words = loaded
	}

	lookupTimeout := 5 * time.Second
	if cfg.Timeout > 0 && cfg.Timeout < lookupTimeout {
		lookupTimeout = cfg.Timeout
	}

	return &Brute{
		resolver:      net.DefaultResolver,
		words:         words,
		lookupTimeout: lookupTimeout,
		logger:        logger.With("enumerator", "dnsbrute"),
	}, nil
}

// SetResolver sustituye el resolver (para tests).
func (b *Brute) SetResolver(r Resolver) {
	if r != nil {
		b.resolver = r
	}
}

// Name retorna el nombre del enumerator.
func (b *Brute) Name() string { return "dnsbrute" }

// Enumerate prueba cada candidato de la wordlist por resolución directa.
// La cancelación se comprueba entre lookups; se retorna el parcial.
func (b *Brute) Enumerate(ctx context.Context, domain string) ([]string, error) {
	found := make([]string, 0)

	for _, word := range b.words {
		select {
		case <-ctx.Done():
			b.logger.Debug("dnsbrute canceled, returning partial results", "found", len(found))
			return found, nil
		default:
		}

		fqdn := fmt.Sprintf("%s.%s", word, domain)

		lctx, cancel := context.WithTimeout(ctx, b.lookupTimeout)
		addrs, err := b.resolver.LookupHost(lctx, fqdn)
		cancel()

		if err != nil || len(addrs) == 0 {
			continue
		}
		found = append(found, fqdn)
	}

	b.logger.Debug("dnsbrute completed", "domain", domain, "tried", len(b.words), "found", len(found))
	return found, nil
}

func loadWordlist(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var words []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		w := strings.TrimSpace(sc.Text())
		if w == "" || strings.HasPrefix(w, "#") {
			continue
		}
		words = append(words, w)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return words, nil
}
