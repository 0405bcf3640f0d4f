// internal/core/usecases/enumeration.go
package usecases

import (
	"context"
	"fmt"
	"net"
	"time"

	"redtrace/internal/core/domain"
	"redtrace/internal/core/ports"
	"redtrace/internal/platform/logx"
)

// HostResolver abstrae la resolución DNS para el probe heurístico.
type HostResolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// EnumerationConfig configura el stage de enumeración.
type EnumerationConfig struct {
	// Workers tamaño del pool de fan-out
	Workers int

	// Timeout por llamada a enumerator o resolución DNS
	Timeout time.Duration

	// CommonHostnames lista heurística de hostnames a probar por resolución
	// directa además de los enumerators registrados
	CommonHostnames []string
}

// DefaultCommonHostnames es la lista heurística por defecto.
var DefaultCommonHostnames = []string{"www", "mail", "ftp", "admin", "blog", "dev", "api"}

// EnumerationStage ejecuta todos los enumerators registrados en paralelo,
// une sus resultados, y además prueba una pequeña lista fija de hostnames
// por resolución directa. Todo se mergea en Target.subdomains según llega;
// el orden de descubrimiento no es determinista pero el set final sí.
type EnumerationStage struct {
	enumerators []ports.Enumerator
	resolver    HostResolver
	cfg         EnumerationConfig
	bus         *notifier
	logger      logx.Logger
}

// NewEnumerationStage crea el stage de enumeración.
func NewEnumerationStage(enumerators []ports.Enumerator, cfg EnumerationConfig, bus *notifier, logger logx.Logger) *EnumerationStage {
	if cfg.Workers < 1 {
		cfg.Workers = 4
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.CommonHostnames == nil {
		cfg.CommonHostnames = DefaultCommonHostnames
	}
	return &EnumerationStage{
		enumerators: enumerators,
		resolver:    net.DefaultResolver,
		cfg:         cfg,
		bus:         bus,
		logger:      logger.With("stage", "enumeration"),
	}
}

// SetResolver sustituye el resolver DNS (para tests).
func (s *EnumerationStage) SetResolver(r HostResolver) {
	if r != nil {
		s.resolver = r
	}
}

// Name retorna el nombre del stage.
func (s *EnumerationStage) Name() string { return "Subdomain Enumeration" }

// ShortName retorna el alias del stage.
func (s *EnumerationStage) ShortName() string { return StageEnum }

// Execute ejecuta la enumeración completa contra el target.
func (s *EnumerationStage) Execute(ctx context.Context, target *domain.Target) error {
	root := target.Domain()
	s.bus.Emit(s.Name(), ports.EventInfo, fmt.Sprintf("enumerating subdomains for %s", root))

	units := make([]unit, 0, len(s.enumerators)+len(s.cfg.CommonHostnames))

	for _, e := range s.enumerators {
		e := e
		units = append(units, unit{
			name: e.Name(),
			run: func(ctx context.Context) error {
				ectx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
				defer cancel()

				found, err := e.Enumerate(ectx, root)
				// Merge parcial incluso si el enumerator terminó con error.
				s.merge(target, found)
				return err
			},
		})
	}

	for _, h := range s.cfg.CommonHostnames {
		fqdn := fmt.Sprintf("%s.%s", h, root)
		units = append(units, unit{
			name: "probe:" + fqdn,
			run: func(ctx context.Context) error {
				rctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
				defer cancel()

				addrs, err := s.resolver.LookupHost(rctx, fqdn)
				if err != nil || len(addrs) == 0 {
					// NXDOMAIN y fallos de resolución no son errores del
					// stage: simplemente el hostname no existe.
					return nil
				}
				s.merge(target, []string{fqdn})
				return nil
			},
		})
	}

	runner := newFanoutRunner(s.cfg.Workers, s.bus, s.logger)
	failed, err := runner.execute(ctx, s.Name(), units)
	if err != nil {
		return err
	}

	s.logger.Info("enumeration finished",
		"domain", root,
		"subdomains", target.SubdomainCount(),
		"failed_units", failed,
	)
	s.bus.Emit(s.Name(), ports.EventInfo, fmt.Sprintf("%d subdomains known", target.SubdomainCount()))
	return nil
}

// merge inserta hostnames en el target emitiendo un evento por cada entrada
// realmente nueva. El mutador dedup-safe decide la novedad.
func (s *EnumerationStage) merge(target *domain.Target, names []string) {
	for _, n := range names {
		if target.AddSubdomain(n) {
			s.bus.Emit(s.Name(), ports.EventSubdomainFound, n)
		}
	}
}
