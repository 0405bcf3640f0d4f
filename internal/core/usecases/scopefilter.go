// internal/core/usecases/scopefilter.go
package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"redtrace/internal/core/domain"
	"redtrace/internal/core/ports"
	"redtrace/internal/platform/logx"
	"redtrace/internal/scope"
)

// ScopeFilterStage poda el set de subdominios al alcance autorizado.
// Sin scope cargado no poda nada: el enforcement es opt-in.
type ScopeFilterStage struct {
	filter *scope.Filter
	bus    *notifier
	logger logx.Logger
}

// NewScopeFilterStage crea el stage de scope filtering.
func NewScopeFilterStage(filter *scope.Filter, bus *notifier, logger logx.Logger) *ScopeFilterStage {
	return &ScopeFilterStage{
		filter: filter,
		bus:    bus,
		logger: logger.With("stage", "scope"),
	}
}

// Name retorna el nombre del stage.
func (s *ScopeFilterStage) Name() string { return "Scope Filtering" }

// ShortName retorna el alias del stage.
func (s *ScopeFilterStage) ShortName() string { return StageFilter }

// Execute particiona los subdominios y deja en el target solo los in-scope.
// Los descartados y las estadísticas del scope quedan en metadata.
func (s *ScopeFilterStage) Execute(ctx context.Context, target *domain.Target) error {
	if s.filter == nil || !s.filter.Loaded() {
		s.bus.Emit(s.Name(), ports.EventWarning, "no scope file loaded, skipping scope filtering")
		return nil
	}

	subdomains := target.Subdomains()
	if len(subdomains) == 0 {
		s.bus.Emit(s.Name(), ports.EventWarning, "no subdomains to filter")
		return nil
	}

	s.bus.Emit(s.Name(), ports.EventInfo,
		fmt.Sprintf("filtering %d subdomains against scope", len(subdomains)))

	inScope, outOfScope := s.filter.FilterSubdomains(subdomains)

	for _, sub := range outOfScope {
		s.bus.Emit(s.Name(), ports.EventFilteredSubdomain, sub)
	}

	target.ReplaceSubdomains(inScope)
	target.SetMeta(domain.MetaFilteredSubdomains, strings.Join(outOfScope, ","))

	if stats, err := json.Marshal(s.filter.Stats()); err == nil {
		target.SetMeta(domain.MetaScopeStats, string(stats))
	}

	if len(outOfScope) > 0 {
		s.bus.Emit(s.Name(), ports.EventInfo,
			fmt.Sprintf("filtered out %d out-of-scope subdomains", len(outOfScope)))
	}

	s.logger.Info("scope filtering finished",
		"in_scope", len(inScope),
		"out_of_scope", len(outOfScope),
	)
	return nil
}
