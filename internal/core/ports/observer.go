// internal/core/ports/observer.go
package ports

// EventKind clasifica los eventos emitidos por el pipeline y sus stages.
type EventKind string

const (
	EventStart              EventKind = "start"
	EventComplete           EventKind = "complete"
	EventError              EventKind = "error"
	EventWarning            EventKind = "warning"
	EventInfo               EventKind = "info"
	EventSubdomainFound     EventKind = "subdomain_found"
	EventFilteredSubdomain  EventKind = "filtered_subdomain"
	EventVulnerabilityFound EventKind = "vulnerability_found"
	EventExploitSuccess     EventKind = "exploit_success"
	EventExploitFailed      EventKind = "exploit_failed"
)

// Observer recibe eventos de ciclo de vida y hallazgos.
// La entrega es síncrona y en orden de attachment; una implementación
// lenta bloquea el pipeline, así que los observers deben ser baratos.
type Observer interface {
	// Update es invocado por cada evento. stage es el nombre del stage
	// emisor ("pipeline" para eventos del orquestador).
	Update(stage string, kind EventKind, data any)
}

// ObserverFunc adapta una función a la interfaz Observer.
type ObserverFunc func(stage string, kind EventKind, data any)

// Update implementa Observer.
func (f ObserverFunc) Update(stage string, kind EventKind, data any) {
	f(stage, kind, data)
}
