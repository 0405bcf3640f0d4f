// cmd/redtrace/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"redtrace/internal/core/domain"
	"redtrace/internal/core/ports"
	"redtrace/internal/core/usecases"
	"redtrace/internal/observers/console"
	"redtrace/internal/observers/jsonfile"
	"redtrace/internal/platform/config"
	"redtrace/internal/platform/errors"
	"redtrace/internal/platform/logx"
	"redtrace/internal/platform/registry"
	"redtrace/internal/scope"
	"redtrace/internal/store"

	// Import collaborators for auto-registration via init()
	_ "redtrace/internal/enumerators/crtsh"
	_ "redtrace/internal/enumerators/dnsbrute"
	_ "redtrace/internal/exploiters/sqli"
	_ "redtrace/internal/scanners/headers"
	_ "redtrace/internal/scanners/sqli"
)

var (
	// Rellenables con -ldflags en build
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// 1. Load centralized config (defaults -> file -> env -> flags)
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: configuration load failed: %v\n", err)
		os.Exit(2)
	}

	if cfg.PrintVersion {
		fmt.Printf("redtrace %s (commit %s, built %s)\n", version, commit, date)
		return
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Fprintln(os.Stderr, "Usage: redtrace -t <domain> [--resume | -s <stage>]")
		fmt.Fprintln(os.Stderr, "Try: redtrace -h for help")
		os.Exit(2)
	}

	// 2. Shared logger
	logger := logx.New()

	logger.Info("redtrace starting",
		"version", version,
		"target", cfg.Target,
		"resume", cfg.Resume,
		"stage", cfg.Stage,
		"auto_exploit", cfg.Exploit.Auto,
	)

	// 3. Context and signals for clean shutdown
	ctx, cancel := rootContextWithSignals(cfg.TimeoutS)
	defer cancel()

	// 4. Snapshot store
	targetStore, err := store.New(cfg.OutputDir, logger, store.WithBackups(cfg.Backups))
	if err != nil {
		logger.Err(err, "phase", "store-setup")
		os.Exit(2)
	}

	// 5. Scope filter (optional; unloaded filter passes everything through)
	scopeFilter := scope.NewFilter(logger)
	if cfg.ScopeFile != "" {
		scopeFilter, err = scope.Load(cfg.ScopeFile, logger)
		if err != nil {
			// Contrato documentado: un fichero de scope ilegible degrada a
			// filtro descargado con warning, nunca aborta el escaneo.
			logger.Warn("scope file not loaded, all subdomains pass", "error", err.Error())
		}
	}

	// 6. Build collaborators from registries
	enumerators, err := registry.Enumerators().Build(cfg.Enumerators, logger)
	if err != nil {
		logger.Err(err, "phase", "enumerator-build")
		os.Exit(2)
	}
	scanners, err := registry.Scanners().Build(cfg.Scanners, logger)
	if err != nil {
		logger.Err(err, "phase", "scanner-build")
		os.Exit(2)
	}
	exploiters, err := registry.Exploiters().Build(cfg.Exploiters, logger)
	if err != nil {
		logger.Err(err, "phase", "exploiter-build")
		os.Exit(2)
	}

	// 7. Observers
	consoleObs := console.New(cfg.Quiet)
	observers := []ports.Observer{consoleObs}

	if cfg.EventLog != "" {
		fileObs, err := jsonfile.New(cfg.EventLog, logger)
		if err != nil {
			logger.Err(err, "phase", "eventlog-setup")
			os.Exit(2)
		}
		defer fileObs.Close()
		observers = append(observers, fileObs)
	}

	// 8. Pipeline assembly: bus first, stages against that bus
	pipe := usecases.New(usecases.Options{
		Store:     targetStore,
		Observers: observers,
		Logger:    logger,
	})

	bus := pipe.Bus()
	pipe.SetStages([]usecases.Stage{
		usecases.NewEnumerationStage(enumerators, usecases.EnumerationConfig{
			Workers: cfg.Enumeration.Workers,
			Timeout: time.Duration(cfg.Enumeration.TimeoutS) * time.Second,
		}, bus, logger),
		usecases.NewScopeFilterStage(scopeFilter, bus, logger),
		usecases.NewScanStage(scanners, usecases.ScanConfig{
			Workers: cfg.Scan.Workers,
			Timeout: time.Duration(cfg.Scan.TimeoutS) * time.Second,
		}, bus, logger),
		usecases.NewExploitStage(exploiters, usecases.ExploitConfig{
			Auto:        cfg.Exploit.Auto,
			MaxAttempts: cfg.Exploit.MaxAttempts,
			Timeout:     time.Duration(cfg.Exploit.TimeoutS) * time.Second,
		}, bus, logger),
	})

	consoleObs.Banner(cfg.Target, pipe.StageNames())

	// 9. Execute
	start := time.Now()
	var target *domain.Target
	var runErr error

	if cfg.Resume {
		target, runErr = pipe.Resume(ctx, cfg.Target)
	} else {
		target, runErr = pipe.Run(ctx, cfg.Target, cfg.Stage)
	}
	elapsed := time.Since(start)

	// 10. Handle execution errors; partial results still get summarized
	switch {
	case runErr == nil:
	case errors.Is(runErr, context.Canceled):
		logger.Warn("run interrupted, progress saved", "elapsed_ms", elapsed.Milliseconds())
	default:
		logger.Err(runErr, "phase", "run", "elapsed_ms", elapsed.Milliseconds())
	}

	// 11. Summary
	if target != nil {
		consoleObs.Summary(target.Summary())
		logger.Info("redtrace finished",
			"elapsed_ms", elapsed.Milliseconds(),
			"subdomains", target.SubdomainCount(),
			"vulnerabilities", target.Summary().Vulnerabilities,
		)
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		os.Exit(1)
	}
}

// rootContextWithSignals creates a root context with optional timeout and
// signal cancellation. The first SIGINT/SIGTERM cancels the context; stages
// drain cooperatively and the pipeline persists progress before returning.
func rootContextWithSignals(timeoutSeconds int) (context.Context, context.CancelFunc) {
	var base context.Context
	var baseCancel context.CancelFunc

	if timeoutSeconds > 0 {
		base, baseCancel = context.WithTimeout(context.Background(), time.Duration(timeoutSeconds)*time.Second)
	} else {
		base, baseCancel = context.WithCancel(context.Background())
	}

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-ch:
			baseCancel()
		case <-base.Done():
		}
	}()

	cleanupCancel := func() {
		signal.Stop(ch)
		close(ch)
		baseCancel()
	}

	return base, cleanupCancel
}
