// internal/core/usecases/pipeline.go
package usecases

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"redtrace/internal/core/domain"
	"redtrace/internal/core/ports"
	"redtrace/internal/platform/errors"
	"redtrace/internal/platform/logx"
	"redtrace/internal/platform/validator"
)

const pipelineStageName = "Pipeline"

// Pipeline secuencia los stages contra un Target y persiste el progreso
// después de cada uno. El propio Pipeline es single-threaded: la
// concurrencia vive dentro del fan-out de cada stage. Los índices de stage
// persistidos en metadata permiten reanudar exactamente donde se paró.
type Pipeline struct {
	mu      sync.Mutex
	stages  []Stage
	store   ports.TargetStore
	bus     *notifier
	logger  logx.Logger
	runID   string
	current *domain.Target // target en vuelo, para Pause
}

// Options configura el Pipeline.
type Options struct {
	Stages    []Stage
	Store     ports.TargetStore
	Observers []ports.Observer
	Logger    logx.Logger
}

// New crea un Pipeline.
func New(opts Options) *Pipeline {
	if opts.Logger == nil {
		opts.Logger = logx.New()
	}

	bus := newNotifier(opts.Logger)
	for _, o := range opts.Observers {
		bus.Attach(o)
	}

	return &Pipeline{
		stages: opts.Stages,
		store:  opts.Store,
		bus:    bus,
		logger: opts.Logger.With("component", "pipeline"),
		runID:  uuid.NewString(),
	}
}

// SetStages fija la secuencia de stages. Los stages necesitan el bus del
// pipeline para emitir eventos, así que el ensamblado es en dos fases:
// New (bus listo) y SetStages (stages construidos contra ese bus).
func (p *Pipeline) SetStages(stages []Stage) {
	p.mu.Lock()
	p.stages = stages
	p.mu.Unlock()
}

// Attach añade un observer; recibirá eventos en orden de attachment.
func (p *Pipeline) Attach(o ports.Observer) {
	p.bus.Attach(o)
}

// Bus expone el notifier para construir stages que emiten eventos.
func (p *Pipeline) Bus() *notifier {
	return p.bus
}

// RunID retorna el identificador único de esta instancia de pipeline.
func (p *Pipeline) RunID() string {
	return p.runID
}

// Run ejecuta el pipeline completo, o exactamente un stage si stageName no
// es vacío (alias corto: enum, filter, scan, exploit). Carga el Target
// persistido si existe, o construye uno nuevo. El Target final se persiste
// incondicionalmente.
func (p *Pipeline) Run(ctx context.Context, domainName, stageName string) (*domain.Target, error) {
	target, err := p.loadOrCreate(domainName)
	if err != nil {
		return nil, err
	}
	p.setCurrent(target)
	defer p.setCurrent(nil)

	target.SetMeta(domain.MetaRunID, p.runID)

	if stageName != "" {
		err = p.runSpecific(ctx, target, stageName)
	} else {
		err = p.runFrom(ctx, target, 0)
	}

	// Persistencia final incondicional, incluso tras fallo de stage.
	if saveErr := p.store.Save(target); saveErr != nil {
		return target, errors.Wrap(saveErr, "final save failed")
	}
	return target, err
}

// Resume reanuda un escaneo persistido. Si el último intento de stage
// falló, lo reintenta desde cero; si no, continúa en el siguiente al último
// completado. Con todos los stages completados es un no-op informativo.
func (p *Pipeline) Resume(ctx context.Context, domainName string) (*domain.Target, error) {
	target, err := p.store.Load(validator.NormalizeDomain(domainName))
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.Wrapf(err, "cannot resume %s", domainName)
		}
		return nil, err
	}
	p.setCurrent(target)
	defer p.setCurrent(nil)

	target.SetMeta(domain.MetaRunID, p.runID)

	startFrom := 0
	if failedIdx, failed := target.LastFailedStage(); failed {
		startFrom = failedIdx
		p.bus.Emit(pipelineStageName, ports.EventInfo,
			fmt.Sprintf("retrying failed stage %d/%d", startFrom+1, len(p.stages)))
	} else {
		startFrom = target.LastCompletedStage() + 1
	}

	if startFrom >= len(p.stages) {
		p.bus.Emit(pipelineStageName, ports.EventInfo, "all stages already completed")
		return target, nil
	}

	p.bus.Emit(pipelineStageName, ports.EventInfo,
		fmt.Sprintf("resuming from stage %d/%d", startFrom+1, len(p.stages)))

	err = p.runFrom(ctx, target, startFrom)

	if saveErr := p.store.Save(target); saveErr != nil {
		return target, errors.Wrap(saveErr, "final save failed")
	}
	return target, err
}

// Pause persiste el target en vuelo. Pensado para interrupciones externas:
// el reemplazo atómico del store garantiza que un snapshot previo íntegro
// nunca queda corrupto por un save interrumpido.
func (p *Pipeline) Pause() error {
	p.mu.Lock()
	target := p.current
	p.mu.Unlock()

	if target == nil {
		return nil
	}
	if err := p.store.Save(target); err != nil {
		return errors.Wrap(err, "pause save failed")
	}
	p.bus.Emit(pipelineStageName, ports.EventInfo, "pipeline paused - progress saved")
	return nil
}

// StageNames retorna los nombres de los stages en orden de ejecución.
func (p *Pipeline) StageNames() []string {
	names := make([]string, 0, len(p.stages))
	for _, s := range p.stages {
		names = append(names, s.Name())
	}
	return names
}

// runFrom ejecuta los stages [startFrom..N-1] en orden estricto.
//
// Regla de transición: en fallo del stage idx se fija
// last_completed_stage=idx-1 y last_failed_stage=idx, se persiste y se
// para; ningún stage posterior corre en esta invocación. En éxito se fija
// last_completed_stage=idx, se limpia last_failed_stage, se persiste y se
// continúa. Un stage fallido nunca se reintenta dentro de la misma
// invocación; el reintento es solo vía Resume.
func (p *Pipeline) runFrom(ctx context.Context, target *domain.Target, startFrom int) error {
	for idx := startFrom; idx < len(p.stages); idx++ {
		if ctx.Err() != nil {
			p.bus.Emit(pipelineStageName, ports.EventInfo, "run canceled - progress saved")
			return ctx.Err()
		}

		stage := p.stages[idx]
		p.logger.Info("starting stage", "index", idx, "name", stage.Name())
		p.bus.Emit(stage.Name(), ports.EventStart, fmt.Sprintf("starting stage %d/%d", idx+1, len(p.stages)))

		execErr := stage.Execute(ctx, target)

		if execErr != nil && !errors.Is(execErr, context.Canceled) {
			target.SetLastCompletedStage(idx - 1)
			target.SetLastFailedStage(idx)
			if saveErr := p.store.Save(target); saveErr != nil {
				p.logger.Err(saveErr, "phase", "save-after-failure")
			}
			p.bus.Emit(stage.Name(), ports.EventError, execErr.Error())
			p.logger.Warn("stage failed, pipeline halted", "index", idx, "name", stage.Name())
			return errors.Wrapf(errors.ErrStageFailed, "stage %s (%d): %v", stage.Name(), idx, execErr)
		}

		if errors.Is(execErr, context.Canceled) || ctx.Err() != nil {
			// Cancelación cooperativa: el stage drenó y retornó progreso
			// parcial. Se persiste sin marcar fallo; Resume re-ejecutará
			// este stage índice-a-índice gracias a la dedup.
			if saveErr := p.store.Save(target); saveErr != nil {
				p.logger.Err(saveErr, "phase", "save-on-cancel")
			}
			p.bus.Emit(pipelineStageName, ports.EventInfo, "run canceled - progress saved")
			return context.Canceled
		}

		target.SetLastCompletedStage(idx)
		target.ClearLastFailedStage()
		if err := p.store.Save(target); err != nil {
			return errors.Wrapf(err, "persist after stage %s", stage.Name())
		}
		p.bus.Emit(stage.Name(), ports.EventComplete, fmt.Sprintf("stage %d/%d completed", idx+1, len(p.stages)))
		p.logger.Info("stage completed", "index", idx, "name", stage.Name())
	}
	return nil
}

// runSpecific ejecuta exactamente un stage por su alias corto, sin tocar
// los índices de progreso persistidos.
func (p *Pipeline) runSpecific(ctx context.Context, target *domain.Target, stageName string) error {
	for _, stage := range p.stages {
		if stage.ShortName() != stageName {
			continue
		}
		p.bus.Emit(stage.Name(), ports.EventStart, "running single stage")
		if err := stage.Execute(ctx, target); err != nil {
			p.bus.Emit(stage.Name(), ports.EventError, err.Error())
			return errors.Wrapf(errors.ErrStageFailed, "stage %s: %v", stage.Name(), err)
		}
		p.bus.Emit(stage.Name(), ports.EventComplete, "stage completed")
		return nil
	}
	return fmt.Errorf("%w: %s (valid: enum, filter, scan, exploit)", domain.ErrUnknownStage, stageName)
}

// loadOrCreate carga el target persistido o construye uno nuevo.
// Un snapshot ilegible en ambas representaciones sí es error duro.
func (p *Pipeline) loadOrCreate(domainName string) (*domain.Target, error) {
	normalized := validator.NormalizeDomain(domainName)

	target, err := p.store.Load(normalized)
	if err != nil {
		if errors.IsNotFound(err) {
			target = domain.NewTarget(normalized)
			if verr := target.Validate(); verr != nil {
				return nil, verr
			}
			return target, nil
		}
		return nil, err
	}

	p.logger.Info("loaded existing target",
		"domain", normalized,
		"subdomains", target.SubdomainCount(),
	)
	return target, nil
}

func (p *Pipeline) setCurrent(t *domain.Target) {
	p.mu.Lock()
	p.current = t
	p.mu.Unlock()
}
