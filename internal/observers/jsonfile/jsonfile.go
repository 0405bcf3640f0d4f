// internal/observers/jsonfile/jsonfile.go

// Package jsonfile persists pipeline events as a JSON-lines audit log.
// Each event is one line, flushed on write, so a crashed run still leaves
// a usable trail.
package jsonfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"redtrace/internal/core/ports"
	"redtrace/internal/platform/logx"
)

// record is the serialized shape of one event line.
type record struct {
	Timestamp time.Time `json:"timestamp"`
	Stage     string    `json:"stage"`
	Kind      string    `json:"kind"`
	Data      any       `json:"data,omitempty"`
}

// Observer writes every event it receives to a JSON-lines file.
type Observer struct {
	mu     sync.Mutex
	file   *os.File
	enc    *json.Encoder
	logger logx.Logger
}

// New opens (or creates) the event log at path, appending to any
// existing content.
func New(path string, logger logx.Logger) (*Observer, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create event log directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open event log %s: %w", path, err)
	}

	return &Observer{
		file:   f,
		enc:    json.NewEncoder(f),
		logger: logger.With("observer", "jsonfile"),
	}, nil
}

// Update implements ports.Observer. Write errors are logged, never
// propagated: a broken audit log must not halt the assessment.
func (o *Observer) Update(stage string, kind ports.EventKind, data any) {
	o.mu.Lock()
	defer o.mu.Unlock()

	rec := record{
		Timestamp: time.Now().UTC(),
		Stage:     stage,
		Kind:      string(kind),
		Data:      data,
	}

	if err := o.enc.Encode(rec); err != nil {
		// Payloads con tipos no serializables degradan a su representación.
		rec.Data = fmt.Sprintf("%v", data)
		if err := o.enc.Encode(rec); err != nil {
			o.logger.Warn("failed to write event record", "error", err.Error())
		}
	}
}

// Close flushes and closes the underlying file.
func (o *Observer) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.file.Close()
}
