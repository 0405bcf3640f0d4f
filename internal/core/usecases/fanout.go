// internal/core/usecases/fanout.go
package usecases

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"

	"redtrace/internal/core/ports"
	"redtrace/internal/platform/errors"
	"redtrace/internal/platform/logx"
)

// unit es una ejecución (collaborator, input) sometida al runner.
// run debe mergear sus resultados en el Target a través de los mutadores
// dedup-safe según los va obteniendo, no al final: así el progreso parcial
// sobrevive una interrupción.
type unit struct {
	name string
	run  func(ctx context.Context) error
}

// fanoutRunner ejecuta unidades en un pool acotado de workers. Lo comparten
// los stages de enumeración y escaneo; cada invocación de stage crea y
// destruye su propio pool, nunca se comparte entre stages.
type fanoutRunner struct {
	workers int
	bus     *notifier
	logger  logx.Logger
}

func newFanoutRunner(workers int, bus *notifier, logger logx.Logger) *fanoutRunner {
	if workers < 1 {
		workers = 1
	}
	return &fanoutRunner{
		workers: workers,
		bus:     bus,
		logger:  logger.With("component", "fanout"),
	}
}

// execute somete las unidades al pool y espera a que todas terminen.
// Cada unidad corre dentro de una frontera de fallo aislada: su error se
// reporta como warning y no cancela unidades hermanas ni falla el stage.
// Con el contexto cancelado no se someten unidades nuevas; las en vuelo
// drenan y retornan resultados parciales. Solo un error de setup del pool
// hace fallar la ejecución completa.
func (r *fanoutRunner) execute(ctx context.Context, stage string, units []unit) (failed int, err error) {
	if len(units) == 0 {
		return 0, nil
	}

	pool, err := ants.NewPool(r.workers)
	if err != nil {
		return 0, errors.Wrap(err, "create worker pool")
	}
	defer pool.Release()

	var wg sync.WaitGroup
	var failures atomic.Int64

	for _, u := range units {
		if ctx.Err() != nil {
			r.logger.Debug("cancellation observed, no new units submitted",
				"stage", stage,
				"remaining", len(units),
			)
			break
		}

		u := u
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			start := time.Now()

			if runErr := r.runIsolated(ctx, u); runErr != nil {
				failures.Add(1)
				r.logger.Warn("unit failed",
					"stage", stage,
					"unit", u.name,
					"error", runErr.Error(),
					"duration_ms", time.Since(start).Milliseconds(),
				)
				r.bus.Emit(stage, ports.EventWarning, fmt.Sprintf("%s: %v", u.name, runErr))
				return
			}

			r.logger.Debug("unit completed",
				"stage", stage,
				"unit", u.name,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
		if submitErr != nil {
			wg.Done()
			failures.Add(1)
			r.logger.Warn("unit submission failed", "stage", stage, "unit", u.name, "error", submitErr.Error())
		}
	}

	wg.Wait()
	return int(failures.Load()), nil
}

// runIsolated ejecuta una unidad convirtiendo pánicos en errores, de modo
// que un collaborator defectuoso no tumbe el worker pool.
func (r *fanoutRunner) runIsolated(ctx context.Context, u unit) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in unit %s: %v", u.name, rec)
		}
	}()
	return u.run(ctx)
}
