// internal/core/usecases/scan.go
package usecases

import (
	"context"
	"fmt"
	"time"

	"redtrace/internal/core/domain"
	"redtrace/internal/core/ports"
	"redtrace/internal/platform/logx"
)

// ScanConfig configura el stage de escaneo.
type ScanConfig struct {
	// Workers tamaño del pool de fan-out
	Workers int

	// Timeout por llamada (scanner, subdominio)
	Timeout time.Duration
}

// ScanStage ejecuta cada scanner registrado contra cada subdominio del
// target a través del fan-out runner. Los hallazgos se mergean según llegan
// vía AddVulnerability; el fingerprint dedup hace la re-ejecución inocua.
// Unidades de scanner fallidas no fallan el stage (contrato documentado:
// el stage reporta éxito si todas las unidades sometidas terminaron).
type ScanStage struct {
	scanners []ports.Scanner
	cfg      ScanConfig
	bus      *notifier
	logger   logx.Logger
}

// NewScanStage crea el stage de escaneo de vulnerabilidades.
func NewScanStage(scanners []ports.Scanner, cfg ScanConfig, bus *notifier, logger logx.Logger) *ScanStage {
	if cfg.Workers < 1 {
		cfg.Workers = 8
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &ScanStage{
		scanners: scanners,
		cfg:      cfg,
		bus:      bus,
		logger:   logger.With("stage", "scan"),
	}
}

// Name retorna el nombre del stage.
func (s *ScanStage) Name() string { return "Vulnerability Scan" }

// ShortName retorna el alias del stage.
func (s *ScanStage) ShortName() string { return StageScan }

// Execute somete una unidad (scanner, subdominio) por combinación.
func (s *ScanStage) Execute(ctx context.Context, target *domain.Target) error {
	subdomains := target.Subdomains()
	if len(subdomains) == 0 {
		s.bus.Emit(s.Name(), ports.EventWarning, "no subdomains to scan")
		return nil
	}
	if len(s.scanners) == 0 {
		s.bus.Emit(s.Name(), ports.EventWarning, "no scanners registered")
		return nil
	}

	s.bus.Emit(s.Name(), ports.EventInfo,
		fmt.Sprintf("scanning %d subdomains with %d scanners", len(subdomains), len(s.scanners)))

	units := make([]unit, 0, len(subdomains)*len(s.scanners))
	for _, sc := range s.scanners {
		for _, sub := range subdomains {
			sc, sub := sc, sub
			units = append(units, unit{
				name: fmt.Sprintf("%s:%s", sc.Name(), sub),
				run: func(ctx context.Context) error {
					sctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
					defer cancel()

					vulns, err := sc.Scan(sctx, sub)
					s.merge(target, vulns)
					return err
				},
			})
		}
	}

	runner := newFanoutRunner(s.cfg.Workers, s.bus, s.logger)
	failed, err := runner.execute(ctx, s.Name(), units)
	if err != nil {
		return err
	}

	summary := target.Summary()
	s.logger.Info("scan finished",
		"subdomains", len(subdomains),
		"vulnerabilities", summary.Vulnerabilities,
		"failed_units", failed,
	)
	s.bus.Emit(s.Name(), ports.EventInfo,
		fmt.Sprintf("%d vulnerabilities recorded", summary.Vulnerabilities))
	return nil
}

func (s *ScanStage) merge(target *domain.Target, vulns []domain.Vulnerability) {
	for _, v := range vulns {
		if target.AddVulnerability(v) {
			s.bus.Emit(s.Name(), ports.EventVulnerabilityFound, v)
		}
	}
}
