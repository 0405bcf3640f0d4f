// internal/core/usecases/exploit.go
package usecases

import (
	"context"
	"fmt"
	"time"

	"redtrace/internal/core/domain"
	"redtrace/internal/core/ports"
	"redtrace/internal/platform/logx"
)

// ExploitConfig configura el stage de explotación.
type ExploitConfig struct {
	// Auto habilita la explotación automática; desactivado por defecto
	Auto bool

	// MaxAttempts intentos máximos por hallazgo
	MaxAttempts int

	// Timeout por intento de explotación
	Timeout time.Duration
}

// ExploitStage intenta explotar los hallazgos confirmados. Corre secuencial
// a propósito: la explotación es la fase más intrusiva y un host a la vez
// mantiene el impacto acotado y los resultados atribuibles.
type ExploitStage struct {
	exploiters []ports.Exploiter
	cfg        ExploitConfig
	bus        *notifier
	logger     logx.Logger
}

// NewExploitStage crea el stage de explotación.
func NewExploitStage(exploiters []ports.Exploiter, cfg ExploitConfig, bus *notifier, logger logx.Logger) *ExploitStage {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &ExploitStage{
		exploiters: exploiters,
		cfg:        cfg,
		bus:        bus,
		logger:     logger.With("stage", "exploit"),
	}
}

// Name retorna el nombre del stage.
func (s *ExploitStage) Name() string { return "Exploitation" }

// ShortName retorna el alias del stage.
func (s *ExploitStage) ShortName() string { return StageExploit }

// Execute recorre los hallazgos y ejecuta el primer exploiter aplicable a
// cada uno, con reintentos acotados. Los resultados se registran en el
// target tanto en éxito como en fallo.
func (s *ExploitStage) Execute(ctx context.Context, target *domain.Target) error {
	if !s.cfg.Auto {
		s.bus.Emit(s.Name(), ports.EventInfo, "auto-exploit disabled, skipping exploitation")
		return nil
	}

	vulns := target.Vulnerabilities()
	if len(vulns) == 0 {
		s.bus.Emit(s.Name(), ports.EventWarning, "no vulnerabilities to exploit")
		return nil
	}
	if len(s.exploiters) == 0 {
		s.bus.Emit(s.Name(), ports.EventWarning, "no exploiters registered")
		return nil
	}

	s.bus.Emit(s.Name(), ports.EventInfo, fmt.Sprintf("attempting exploitation of %d findings", len(vulns)))

	// Hallazgos ya intentados en una ejecución previa (éxito o fallo
	// registrado) no se re-disparan: la re-ejecución del stage tras una
	// cancelación solo debe cubrir lo pendiente.
	done := make(map[string]struct{})
	for _, r := range target.Exploited() {
		done[r.Fingerprint] = struct{}{}
	}

	attempted := 0
	for _, v := range vulns {
		if ctx.Err() != nil {
			s.logger.Info("exploitation canceled, progress recorded", "attempted", attempted)
			break
		}

		if _, already := done[v.Fingerprint()]; already {
			s.logger.Debug("finding already attempted, skipping", "fingerprint", v.Fingerprint())
			continue
		}

		exploiter := s.pick(v)
		if exploiter == nil {
			continue
		}
		attempted++
		s.attempt(ctx, target, exploiter, v)
	}

	s.bus.Emit(s.Name(), ports.EventInfo, fmt.Sprintf("%d findings attempted", attempted))
	return nil
}

// pick retorna el primer exploiter que declare poder explotar el hallazgo.
func (s *ExploitStage) pick(v domain.Vulnerability) ports.Exploiter {
	for _, e := range s.exploiters {
		if e.CanExploit(v) {
			return e
		}
	}
	return nil
}

func (s *ExploitStage) attempt(ctx context.Context, target *domain.Target, exploiter ports.Exploiter, v domain.Vulnerability) {
	var lastErr error

	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		ectx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
		result, err := exploiter.Execute(ectx, v)
		cancel()

		if err != nil {
			lastErr = err
			s.logger.Warn("exploit attempt failed",
				"exploiter", exploiter.Name(),
				"fingerprint", v.Fingerprint(),
				"attempt", attempt,
				"error", err.Error(),
			)
			continue
		}

		result.Fingerprint = v.Fingerprint()
		result.Exploiter = exploiter.Name()
		if result.Timestamp.IsZero() {
			result.Timestamp = time.Now()
		}
		target.AddExploitResult(result)

		if result.Success {
			s.bus.Emit(s.Name(), ports.EventExploitSuccess, result)
		} else {
			s.bus.Emit(s.Name(), ports.EventExploitFailed, result)
		}
		return
	}

	// Agotados los intentos: registrar el fallo con la última causa.
	result := domain.ExploitResult{
		Fingerprint: v.Fingerprint(),
		Exploiter:   exploiter.Name(),
		Success:     false,
		Evidence:    fmt.Sprintf("all %d attempts failed: %v", s.cfg.MaxAttempts, lastErr),
		Data:        make(map[string]string),
		Timestamp:   time.Now(),
	}
	target.AddExploitResult(result)
	s.bus.Emit(s.Name(), ports.EventExploitFailed, result)
}
