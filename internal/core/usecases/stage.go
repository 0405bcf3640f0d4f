// internal/core/usecases/stage.go
package usecases

import (
	"context"

	"redtrace/internal/core/domain"
)

// Stage es una unidad sin estado del pipeline, identificada por posición y
// nombre. Comunica únicamente mutando el Target y emitiendo eventos; debe
// poder re-ejecutarse contra un Target parcialmente poblado sin duplicar
// nada (los mutadores del Target garantizan la idempotencia).
type Stage interface {
	// Name retorna el nombre descriptivo del stage
	Name() string

	// ShortName retorna el alias corto usado por el selector de stage
	// (enum, filter, scan, exploit)
	ShortName() string

	// Execute ejecuta la lógica del stage contra el target.
	// Un error indica fallo de stage (solo errores de setup; los fallos de
	// collaborators individuales se aíslan y no fallan el stage).
	Execute(ctx context.Context, target *domain.Target) error
}

// Nombres cortos de los stages estándar.
const (
	StageEnum    = "enum"
	StageFilter  = "filter"
	StageScan    = "scan"
	StageExploit = "exploit"
)
