// internal/platform/registry/registry.go

// Package registry gestiona el registro y construcción de collaborators.
// Implementa el patrón Registry + Factory para desacoplar la creación de
// enumerators/scanners/exploiters del código de aplicación: cada
// implementación se auto-registra desde su init() y la lista concreta se
// ensambla una vez al arranque según configuración.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"redtrace/internal/core/ports"
	"redtrace/internal/platform/errors"
	"redtrace/internal/platform/logx"
)

// Factory es una función que crea una instancia de collaborator.
type Factory[T any] func(cfg ports.CollaboratorConfig, logger logx.Logger) (T, error)

// Registry gestiona factories y metadata de un tipo de collaborator.
type Registry[T any] struct {
	mu        sync.RWMutex
	kind      string
	factories map[string]Factory[T]
	metadata  map[string]ports.CollaboratorMetadata
	logger    logx.Logger
}

// NewRegistry crea un registry vacío para el tipo dado.
func NewRegistry[T any](kind string, logger logx.Logger) *Registry[T] {
	if logger == nil {
		logger = logx.New()
	}
	return &Registry[T]{
		kind:      kind,
		factories: make(map[string]Factory[T]),
		metadata:  make(map[string]ports.CollaboratorMetadata),
		logger:    logger.With("component", kind+"-registry"),
	}
}

// Register registra una factory con su metadata.
// Típicamente llamado desde init() de cada package de collaborator.
func (r *Registry[T]) Register(name string, factory Factory[T], meta ports.CollaboratorMetadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name == "" {
		return fmt.Errorf("%s name cannot be empty", r.kind)
	}
	if factory == nil {
		return fmt.Errorf("factory cannot be nil for %s %s", r.kind, name)
	}
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("%s %s is already registered", r.kind, name)
	}

	r.factories[name] = factory
	r.metadata[name] = meta
	r.logger.Debug("collaborator registered", "name", name)
	return nil
}

// Build construye todos los collaborators habilitados según configuración,
// ordenados por prioridad descendente. Errores de construcción individuales
// se registran y se saltan; si había candidatos habilitados y ninguno pudo
// construirse, Build falla. Todo deshabilitado no es error: el stage que
// los consuma decide qué hacer con una lista vacía.
func (r *Registry[T]) Build(configs map[string]ports.CollaboratorConfig, logger logx.Logger) ([]T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	type candidate struct {
		name     string
		config   ports.CollaboratorConfig
		priority int
	}

	candidates := make([]candidate, 0, len(configs))
	for name, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		if _, exists := r.factories[name]; !exists {
			r.logger.Warn("collaborator not registered, skipping", "name", name)
			continue
		}
		if cfg.Priority < 0 {
			cfg.Priority = 5
		}
		candidates = append(candidates, candidate{name: name, config: cfg, priority: cfg.Priority})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].priority != candidates[j].priority {
			return candidates[i].priority > candidates[j].priority
		}
		return candidates[i].name < candidates[j].name
	})

	built := make([]T, 0, len(candidates))
	for _, c := range candidates {
		instance, err := r.factories[c.name](c.config, logger)
		if err != nil {
			r.logger.Warn("collaborator build failed", "name", c.name, "error", err.Error())
			continue
		}
		built = append(built, instance)
		r.logger.Debug("collaborator built", "name", c.name, "priority", c.priority)
	}

	if len(built) == 0 && len(candidates) > 0 {
		return nil, errors.Wrapf(errors.ErrNoCollaborators, "no %s could be built", r.kind)
	}

	logger.Info("collaborators built", "kind", r.kind, "count", len(built), "requested", len(configs))
	return built, nil
}

// List retorna los nombres registrados, ordenados.
func (r *Registry[T]) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Metadata retorna el metadata de un collaborator registrado.
func (r *Registry[T]) Metadata(name string) (ports.CollaboratorMetadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	meta, exists := r.metadata[name]
	return meta, exists
}

// IsRegistered verifica si un nombre está registrado.
func (r *Registry[T]) IsRegistered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.factories[name]
	return exists
}

// Clear elimina todo lo registrado (útil para testing).
func (r *Registry[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories = make(map[string]Factory[T])
	r.metadata = make(map[string]ports.CollaboratorMetadata)
}

// Registries globales, uno por tipo de collaborator.
var (
	enumOnce   sync.Once
	enumGlobal *Registry[ports.Enumerator]
	scanOnce   sync.Once
	scanGlobal *Registry[ports.Scanner]
	explOnce   sync.Once
	explGlobal *Registry[ports.Exploiter]
)

// Enumerators retorna el registry global de enumerators.
func Enumerators() *Registry[ports.Enumerator] {
	enumOnce.Do(func() {
		enumGlobal = NewRegistry[ports.Enumerator]("enumerator", logx.New())
	})
	return enumGlobal
}

// Scanners retorna el registry global de scanners.
func Scanners() *Registry[ports.Scanner] {
	scanOnce.Do(func() {
		scanGlobal = NewRegistry[ports.Scanner]("scanner", logx.New())
	})
	return scanGlobal
}

// Exploiters retorna el registry global de exploiters.
func Exploiters() *Registry[ports.Exploiter] {
	explOnce.Do(func() {
		explGlobal = NewRegistry[ports.Exploiter]("exploiter", logx.New())
	})
	return explGlobal
}
