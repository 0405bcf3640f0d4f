// internal/scope/filter.go

// Package scope implementa el matcher de alcance autorizado de un pentest.
// Las reglas se cargan una vez por ejecución desde un fichero JSON y el
// filtro resultante es inmutable y libre de I/O.
package scope

import (
	"encoding/json"
	"os"
	"regexp"
	"strings"

	"redtrace/internal/platform/errors"
	"redtrace/internal/platform/logx"
)

// RuleSet son las reglas de scope compiladas, inmutables tras la carga.
type RuleSet struct {
	inDomains   map[string]struct{}
	outDomains  map[string]struct{}
	inPatterns  []*regexp.Regexp
	outPatterns []*regexp.Regexp
}

// Filter evalúa candidatos contra un RuleSet.
// Un filtro sin scope cargado permite todo (enforcement opt-in).
type Filter struct {
	rules  RuleSet
	loaded bool
	logger logx.Logger
}

// Stats resume el scope cargado.
type Stats struct {
	Loaded           bool `json:"loaded"`
	InScopeDomains   int  `json:"in_scope_domains"`
	OutScopeDomains  int  `json:"out_of_scope_domains"`
	InScopePatterns  int  `json:"in_scope_patterns"`
	OutScopePatterns int  `json:"out_of_scope_patterns"`
}

// scopeFile es el formato en disco.
type scopeFile struct {
	InScope    scopeEntry `json:"in_scope"`
	OutOfScope scopeEntry `json:"out_of_scope"`
}

type scopeEntry struct {
	Domains  []string `json:"domains"`
	Patterns []string `json:"patterns"`
}

// NewFilter crea un filtro sin scope cargado (permite todo).
func NewFilter(logger logx.Logger) *Filter {
	if logger == nil {
		logger = logx.New()
	}
	return &Filter{logger: logger.With("component", "scope")}
}

// Load carga las reglas desde un fichero JSON. Si el fichero no existe o
// está malformado, retorna un filtro NO cargado (permite todo) junto con el
// error, para que el caller lo reporte como warning en vez de abortar.
func Load(path string, logger logx.Logger) (*Filter, error) {
	f := NewFilter(logger)

	data, err := os.ReadFile(path)
	if err != nil {
		return f, errors.Wrapf(errors.ErrScopeLoad, "read %s: %v", path, err)
	}

	var sf scopeFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return f, errors.Wrapf(errors.ErrScopeLoad, "parse %s: %v", path, err)
	}

	f.rules = RuleSet{
		inDomains:  make(map[string]struct{}, len(sf.InScope.Domains)),
		outDomains: make(map[string]struct{}, len(sf.OutOfScope.Domains)),
	}
	for _, d := range sf.InScope.Domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			f.rules.inDomains[d] = struct{}{}
		}
	}
	for _, d := range sf.OutOfScope.Domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			f.rules.outDomains[d] = struct{}{}
		}
	}

	// Patrones inválidos se saltan con warning, no abortan la carga.
	for _, p := range sf.InScope.Patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			f.logger.Warn("skipping invalid in-scope pattern", "pattern", p, "error", err.Error())
			continue
		}
		f.rules.inPatterns = append(f.rules.inPatterns, re)
	}
	for _, p := range sf.OutOfScope.Patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			f.logger.Warn("skipping invalid out-of-scope pattern", "pattern", p, "error", err.Error())
			continue
		}
		f.rules.outPatterns = append(f.rules.outPatterns, re)
	}

	f.loaded = true
	f.logger.Debug("scope loaded",
		"in_domains", len(f.rules.inDomains),
		"out_domains", len(f.rules.outDomains),
		"in_patterns", len(f.rules.inPatterns),
		"out_patterns", len(f.rules.outPatterns),
	)
	return f, nil
}

// Loaded indica si hay un scope cargado.
func (f *Filter) Loaded() bool {
	return f.loaded
}

// IsInScope evalúa un candidato contra las reglas, en orden estricto de
// precedencia:
//
//  1. match exacto out-of-scope            -> OUT (la exclusión explícita siempre gana)
//  2. match de patrón out-of-scope         -> OUT
//  3. match de patrón in-scope             -> IN
//  4. match exacto in-scope                -> IN
//  5. candidato igual o dot-subdominio de una entrada in-scope,
//     incluyendo wildcards "*.base"        -> IN
//  6. en otro caso                         -> OUT (default-deny con scope cargado)
//
// Sin scope cargado, todo candidato está in-scope. Esta precedencia es un
// contrato testeado, no un accidente del orden de los checks.
func (f *Filter) IsInScope(candidate string) bool {
	if !f.loaded {
		return true
	}

	candidate = strings.ToLower(strings.TrimSpace(candidate))

	if _, out := f.rules.outDomains[candidate]; out {
		return false
	}

	for _, re := range f.rules.outPatterns {
		if re.MatchString(candidate) {
			return false
		}
	}

	for _, re := range f.rules.inPatterns {
		if re.MatchString(candidate) {
			return true
		}
	}

	if _, in := f.rules.inDomains[candidate]; in {
		return true
	}

	for d := range f.rules.inDomains {
		base := d
		if strings.HasPrefix(d, "*.") {
			base = d[2:]
		}
		if candidate == base || strings.HasSuffix(candidate, "."+base) {
			return true
		}
	}

	return false
}

// FilterSubdomains particiona los candidatos en in-scope y out-of-scope.
// Determinista, sin I/O, sin mutación de estado compartido.
func (f *Filter) FilterSubdomains(subdomains []string) (inScope, outOfScope []string) {
	inScope = make([]string, 0, len(subdomains))
	outOfScope = make([]string, 0)

	for _, s := range subdomains {
		if f.IsInScope(s) {
			inScope = append(inScope, s)
		} else {
			outOfScope = append(outOfScope, s)
		}
	}
	return inScope, outOfScope
}

// Stats retorna estadísticas del scope cargado.
func (f *Filter) Stats() Stats {
	return Stats{
		Loaded:           f.loaded,
		InScopeDomains:   len(f.rules.inDomains),
		OutScopeDomains:  len(f.rules.outDomains),
		InScopePatterns:  len(f.rules.inPatterns),
		OutScopePatterns: len(f.rules.outPatterns),
	}
}

// WriteSample escribe un fichero de scope de ejemplo para referencia.
func WriteSample(path string) error {
	sample := scopeFile{
		InScope: scopeEntry{
			Domains:  []string{"example.com", "www.example.com", "api.example.com", "*.internal.example.com"},
			Patterns: []string{`^[a-z0-9-]+\.example\.com$`},
		},
		OutOfScope: scopeEntry{
			Domains:  []string{"test.example.com", "staging.example.com", "dev.example.com"},
			Patterns: []string{`.*-test\.example\.com$`, `.*\.staging\.example\.com$`},
		},
	}

	data, err := json.MarshalIndent(sample, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
