// internal/core/ports/collaborator.go
package ports

import (
	"context"
	"time"

	"redtrace/internal/core/domain"
)

// Enumerator es el port para técnicas de enumeración de subdominios.
// Una implementación no debe retornar error por fallos de red ordinarios:
// en ese caso retorna el set parcial (o vacío) acumulado hasta el fallo.
// Debe honrar la cancelación del contexto entre llamadas de I/O.
type Enumerator interface {
	// Name retorna el nombre único del enumerador (ej: "crtsh", "dnsbrute")
	Name() string

	// Enumerate descubre subdominios del dominio dado
	Enumerate(ctx context.Context, domain string) ([]string, error)
}

// Scanner es el port para detectores de vulnerabilidades.
type Scanner interface {
	// Name retorna el nombre único del scanner (ej: "sqli", "headers")
	Name() string

	// Scan sondea un host/URL y retorna los hallazgos
	Scan(ctx context.Context, url string) ([]domain.Vulnerability, error)
}

// Exploiter es el port para módulos de explotación.
type Exploiter interface {
	// Name retorna el nombre único del exploiter
	Name() string

	// CanExploit indica si el exploiter aplica al hallazgo dado
	CanExploit(v domain.Vulnerability) bool

	// Execute intenta explotar el hallazgo y retorna el resultado
	Execute(ctx context.Context, v domain.Vulnerability) (domain.ExploitResult, error)
}

// CollaboratorConfig contiene la configuración de un collaborator individual.
type CollaboratorConfig struct {
	// Enabled indica si el collaborator está habilitado
	Enabled bool `yaml:"enabled"`

	// Timeout tiempo máximo por llamada externa
	Timeout time.Duration `yaml:"timeout"`

	// Priority prioridad de ejecución (mayor = más prioritario)
	Priority int `yaml:"priority"`

	// Custom configuración específica (API endpoints, wordlist paths, etc.)
	Custom map[string]string `yaml:"custom"`
}

// DefaultCollaboratorConfig retorna una configuración por defecto.
func DefaultCollaboratorConfig() CollaboratorConfig {
	return CollaboratorConfig{
		Enabled:  true,
		Timeout:  30 * time.Second,
		Priority: 5,
		Custom:   make(map[string]string),
	}
}

// CollaboratorMetadata describe un collaborator registrado.
type CollaboratorMetadata struct {
	Name            string
	Description     string
	Version         string
	RequiresNetwork bool
}
