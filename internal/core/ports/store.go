// internal/core/ports/store.go
package ports

import "redtrace/internal/core/domain"

// TargetStore es el port de persistencia de snapshots de Target.
// Solo lo toca el hilo del pipeline, entre stages, nunca concurrentemente
// consigo mismo.
type TargetStore interface {
	// Save persiste el target; el reemplazo del snapshot previo es atómico.
	Save(target *domain.Target) error

	// Load recupera el target de un dominio. Retorna errors.ErrNotFound
	// si no existe snapshot, errors.ErrSnapshotCorrupt si ninguna
	// representación en disco es legible.
	Load(domainName string) (*domain.Target, error)

	// Exists verifica si hay snapshot para el dominio.
	Exists(domainName string) bool

	// Delete elimina el snapshot de un dominio.
	Delete(domainName string) error

	// List retorna las claves de snapshot conocidas. La inversión de la
	// clave al dominio original es best-effort (lossy para entradas con
	// esquema o puerto).
	List() ([]string, error)
}
