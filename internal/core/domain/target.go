// internal/core/domain/target.go
package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"redtrace/internal/platform/validator"
)

// Claves reservadas en Target.Metadata.
const (
	MetaLastCompletedStage = "last_completed_stage"
	MetaLastFailedStage    = "last_failed_stage"
	MetaFilteredSubdomains = "filtered_subdomains"
	MetaScopeStats         = "scope_stats"
	MetaRunID              = "run_id"
)

// Target es el agregado persistido de un escaneo: el dominio raíz y todo
// lo acumulado sobre él. Es el único objeto mutado por workers concurrentes;
// todos los mutadores toman el lock interno y son idempotentes respecto a
// deduplicación, de modo que re-ejecutar un stage parcial nunca duplica datos.
type Target struct {
	mu sync.Mutex

	domain       string
	subdomains   map[string]struct{}
	vulns        []Vulnerability
	fingerprints map[string]struct{}
	exploited    []ExploitResult
	metadata     map[string]string
}

// NewTarget crea un target con contenedores propios e inicializados.
func NewTarget(domain string) *Target {
	return &Target{
		domain:       validator.NormalizeDomain(domain),
		subdomains:   make(map[string]struct{}),
		vulns:        make([]Vulnerability, 0),
		fingerprints: make(map[string]struct{}),
		exploited:    make([]ExploitResult, 0),
		metadata:     make(map[string]string),
	}
}

// Validate verifica que el target sea válido.
func (t *Target) Validate() error {
	if t.domain == "" {
		return ErrEmptyDomain
	}
	if !validator.IsDomain(t.domain) {
		return fmt.Errorf("%w: %s", ErrInvalidDomain, t.domain)
	}
	return nil
}

// Domain retorna el dominio raíz canónico.
func (t *Target) Domain() string {
	return t.domain
}

// AddSubdomain normaliza e inserta un subdominio en el set.
// Retorna true solo si la entrada es nueva; input vacío es un no-op.
func (t *Target) AddSubdomain(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.subdomains[name]; exists {
		return false
	}
	t.subdomains[name] = struct{}{}
	return true
}

// HasSubdomain verifica pertenencia al set (forma normalizada).
func (t *Target) HasSubdomain(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))

	t.mu.Lock()
	defer t.mu.Unlock()

	_, exists := t.subdomains[name]
	return exists
}

// Subdomains retorna una copia ordenada del set de subdominios.
// El orden de descubrimiento no es determinista; el contenido sí.
func (t *Target) Subdomains() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]string, 0, len(t.subdomains))
	for s := range t.subdomains {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// SubdomainCount retorna el tamaño del set.
func (t *Target) SubdomainCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subdomains)
}

// ReplaceSubdomains sustituye el set completo por los nombres dados
// (normalizados y deduplicados). Lo usa el stage de scope filtering.
func (t *Target) ReplaceSubdomains(names []string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.subdomains = make(map[string]struct{}, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		t.subdomains[n] = struct{}{}
	}
}

// AddVulnerability inserta un hallazgo si su fingerprint es nuevo.
// El check-and-insert es una unidad atómica: dos workers que descubren el
// mismo fingerprint no pueden tener éxito ambos.
func (t *Target) AddVulnerability(v Vulnerability) bool {
	fp := v.Fingerprint()

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.fingerprints[fp]; exists {
		return false
	}
	t.fingerprints[fp] = struct{}{}
	t.vulns = append(t.vulns, v)
	return true
}

// Vulnerabilities retorna una copia de la lista de hallazgos.
func (t *Target) Vulnerabilities() []Vulnerability {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Vulnerability, len(t.vulns))
	copy(out, t.vulns)
	return out
}

// AddExploitResult registra el resultado de un intento de explotación.
func (t *Target) AddExploitResult(r ExploitResult) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.exploited = append(t.exploited, r)
}

// Exploited retorna una copia de la lista de resultados de explotación.
func (t *Target) Exploited() []ExploitResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]ExploitResult, len(t.exploited))
	copy(out, t.exploited)
	return out
}

// SetMeta fija una entrada de metadata.
func (t *Target) SetMeta(key, value string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.metadata[key] = value
}

// Meta retorna una entrada de metadata.
func (t *Target) Meta(key string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.metadata[key]
	return v, ok
}

// DeleteMeta elimina una entrada de metadata.
func (t *Target) DeleteMeta(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.metadata, key)
}

// Metadata retorna una copia del mapa de metadata.
func (t *Target) Metadata() map[string]string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]string, len(t.metadata))
	for k, v := range t.metadata {
		out[k] = v
	}
	return out
}

// LastCompletedStage retorna el índice del último stage completado,
// o -1 si ningún stage ha completado aún.
func (t *Target) LastCompletedStage() int {
	v, ok := t.Meta(MetaLastCompletedStage)
	if !ok {
		return -1
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return -1
	}
	return i
}

// SetLastCompletedStage fija el índice del último stage completado.
func (t *Target) SetLastCompletedStage(idx int) {
	t.SetMeta(MetaLastCompletedStage, strconv.Itoa(idx))
}

// LastFailedStage retorna el índice del stage fallido, si lo hay.
// Presente si y solo si el último intento de stage falló.
func (t *Target) LastFailedStage() (int, bool) {
	v, ok := t.Meta(MetaLastFailedStage)
	if !ok {
		return 0, false
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return i, true
}

// SetLastFailedStage marca un stage como fallido.
func (t *Target) SetLastFailedStage(idx int) {
	t.SetMeta(MetaLastFailedStage, strconv.Itoa(idx))
}

// ClearLastFailedStage borra la marca de fallo.
func (t *Target) ClearLastFailedStage() {
	t.DeleteMeta(MetaLastFailedStage)
}

// Summary agrega los hallazgos por tipo y severidad. No muta estado y es
// seguro de llamar concurrentemente con los mutadores.
type Summary struct {
	Domain          string
	Subdomains      int
	Vulnerabilities int
	ByType          map[string]int
	BySeverity      map[string]int
	Exploited       int
	ExploitSuccess  int
}

// Summary calcula el resumen agregado del target.
func (t *Target) Summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Summary{
		Domain:          t.domain,
		Subdomains:      len(t.subdomains),
		Vulnerabilities: len(t.vulns),
		ByType:          make(map[string]int),
		BySeverity:      make(map[string]int),
		Exploited:       len(t.exploited),
	}
	for _, v := range t.vulns {
		s.ByType[string(v.Type)]++
		s.BySeverity[string(v.Severity)]++
	}
	for _, e := range t.exploited {
		if e.Success {
			s.ExploitSuccess++
		}
	}
	return s
}

// String retorna una representación legible del target.
func (t *Target) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fmt.Sprintf("Target{domain=%s, subdomains=%d, vulns=%d}", t.domain, len(t.subdomains), len(t.vulns))
}
