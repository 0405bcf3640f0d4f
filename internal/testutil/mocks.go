// internal/testutil/mocks.go
package testutil

import (
	"context"
	"sync"

	"redtrace/internal/core/domain"
	"redtrace/internal/core/ports"
	"redtrace/internal/platform/errors"
)

// MockEnumerator es un enumerator configurable para tests.
type MockEnumerator struct {
	NameVal   string
	Results   []string
	Error     error
	CallCount int
	mu        sync.Mutex
}

func (m *MockEnumerator) Name() string {
	if m.NameVal == "" {
		return "mock-enum"
	}
	return m.NameVal
}

func (m *MockEnumerator) Enumerate(ctx context.Context, domainName string) ([]string, error) {
	m.mu.Lock()
	m.CallCount++
	m.mu.Unlock()
	return m.Results, m.Error
}

// MockScanner es un scanner configurable para tests.
type MockScanner struct {
	NameVal   string
	Results   []domain.Vulnerability
	Error     error
	CallCount int
	mu        sync.Mutex
}

func (m *MockScanner) Name() string {
	if m.NameVal == "" {
		return "mock-scan"
	}
	return m.NameVal
}

func (m *MockScanner) Scan(ctx context.Context, url string) ([]domain.Vulnerability, error) {
	m.mu.Lock()
	m.CallCount++
	m.mu.Unlock()
	return m.Results, m.Error
}

// Calls retorna el número de invocaciones de forma segura.
func (m *MockScanner) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}

// MockExploiter es un exploiter configurable para tests.
type MockExploiter struct {
	NameVal   string
	Can       bool
	Result    domain.ExploitResult
	Error     error
	CallCount int
	mu        sync.Mutex
}

func (m *MockExploiter) Name() string {
	if m.NameVal == "" {
		return "mock-exploit"
	}
	return m.NameVal
}

func (m *MockExploiter) CanExploit(v domain.Vulnerability) bool {
	return m.Can
}

func (m *MockExploiter) Execute(ctx context.Context, v domain.Vulnerability) (domain.ExploitResult, error) {
	m.mu.Lock()
	m.CallCount++
	m.mu.Unlock()
	return m.Result, m.Error
}

// RecordingObserver acumula los eventos recibidos en orden de llegada.
type RecordingObserver struct {
	mu     sync.Mutex
	Events []RecordedEvent
}

// RecordedEvent es un evento capturado por RecordingObserver.
type RecordedEvent struct {
	Stage string
	Kind  ports.EventKind
	Data  any
}

func (o *RecordingObserver) Update(stage string, kind ports.EventKind, data any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Events = append(o.Events, RecordedEvent{Stage: stage, Kind: kind, Data: data})
}

// Kinds retorna la secuencia de kinds recibidos.
func (o *RecordingObserver) Kinds() []ports.EventKind {
	o.mu.Lock()
	defer o.mu.Unlock()
	kinds := make([]ports.EventKind, 0, len(o.Events))
	for _, e := range o.Events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

// CountKind cuenta los eventos de un kind concreto.
func (o *RecordingObserver) CountKind(kind ports.EventKind) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, e := range o.Events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// MockStore es un TargetStore en memoria para tests de pipeline.
type MockStore struct {
	mu        sync.Mutex
	Targets   map[string]*domain.Target
	SaveCount int
	SaveErr   error
	LoadErr   error
}

func NewMockStore() *MockStore {
	return &MockStore{Targets: make(map[string]*domain.Target)}
}

func (s *MockStore) Save(t *domain.Target) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SaveCount++
	if s.SaveErr != nil {
		return s.SaveErr
	}
	s.Targets[t.Domain()] = t
	return nil
}

func (s *MockStore) Load(key string) (*domain.Target, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.LoadErr != nil {
		return nil, s.LoadErr
	}
	t, ok := s.Targets[key]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "no snapshot for %s", key)
	}
	return t, nil
}

func (s *MockStore) Exists(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.Targets[key]
	return ok
}

func (s *MockStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.Targets, key)
	return nil
}

func (s *MockStore) List() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.Targets))
	for k := range s.Targets {
		keys = append(keys, k)
	}
	return keys, nil
}

// Saves retorna el número de Save() de forma segura.
func (s *MockStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.SaveCount
}
