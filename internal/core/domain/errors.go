// internal/core/domain/errors.go
package domain

import "errors"

// Errores de dominio comunes.
var (
	// Target errors
	ErrEmptyDomain   = errors.New("target domain cannot be empty")
	ErrInvalidDomain = errors.New("invalid domain format")

	// Stage errors
	ErrUnknownStage = errors.New("unknown stage")
)
