// internal/store/store.go

// Package store persiste snapshots de Target en disco. Cada target se guarda
// bajo una clave derivada del dominio, en dos representaciones: JSON legible
// (lossy para tipos exóticos, timestamps en ISO-8601) y gob de fidelidad
// completa. La carga intenta gob primero y degrada a JSON; solo "ninguna
// representación legible" es error duro.
package store

import (
	"encoding/gob"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"redtrace/internal/core/domain"
	"redtrace/internal/platform/errors"
	"redtrace/internal/platform/logx"
	"redtrace/internal/platform/validator"
)

const (
	jsonFile   = "scan_data.json"
	gobFile    = "scan_data.gob"
	backupsDir = "backups"

	// placeholder cuando la sanitización deja la clave vacía
	emptyKey = "target"
)

// Store implementa ports.TargetStore sobre un directorio base.
type Store struct {
	base    string
	backups bool
	logger  logx.Logger
}

// Option configura el Store.
type Option func(*Store)

// WithBackups activa la rotación de backups con timestamp en cada save
// que sobrescribe un snapshot previo.
func WithBackups(enabled bool) Option {
	return func(s *Store) { s.backups = enabled }
}

// New crea un Store sobre el directorio base, creándolo si no existe.
func New(base string, logger logx.Logger, opts ...Option) (*Store, error) {
	if logger == nil {
		logger = logx.New()
	}
	s := &Store{
		base:   base,
		logger: logger.With("component", "store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create store directory %s", base)
	}
	return s, nil
}

// SanitizeKey deriva una clave de directorio segura a partir de un dominio:
// sin esquema, sin puerto, sin caracteres ilegales de path, sin puntos ni
// espacios en los extremos. Una clave vacía se sustituye por "target".
func SanitizeKey(domainName string) string {
	key := validator.StripScheme(strings.TrimSpace(domainName))
	key = validator.StripPort(key)
	key = strings.ToLower(key)

	key = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, key)

	key = strings.Trim(key, ". ")
	if key == "" {
		return emptyKey
	}
	return key
}

func (s *Store) targetDir(domainName string) string {
	return filepath.Join(s.base, SanitizeKey(domainName))
}

// Save escribe ambas representaciones del target. Cada fichero se reemplaza
// atómicamente (tmp + rename), de modo que un fallo a mitad de escritura
// nunca deja observable un snapshot a medias: o queda el previo o el nuevo.
func (s *Store) Save(target *domain.Target) error {
	dir := s.targetDir(target.Domain())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create target directory %s", dir)
	}

	snap := toSnapshot(target)

	if s.backups {
		s.rotateBackup(dir, jsonFile)
		s.rotateBackup(dir, gobFile)
	}

	jsonData, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode json snapshot")
	}
	if err := writeAtomic(filepath.Join(dir, jsonFile), jsonData); err != nil {
		return errors.Wrap(err, "write json snapshot")
	}

	if err := writeGobAtomic(filepath.Join(dir, gobFile), snap); err != nil {
		// El JSON nuevo ya quedó escrito; un gob previo ahora es más viejo
		// que el JSON y Load lo preferiría. Se retira para que el fallback
		// sirva el estado actual.
		if rmErr := os.Remove(filepath.Join(dir, gobFile)); rmErr != nil && !os.IsNotExist(rmErr) {
			s.logger.Warn("stale gob snapshot not removed", "error", rmErr.Error())
		}
		return errors.Wrap(err, "write gob snapshot")
	}

	s.logger.Debug("target saved",
		"domain", target.Domain(),
		"subdomains", len(snap.Subdomains),
		"vulns", len(snap.Vulns),
	)
	return nil
}

// Load recupera un target. Intenta la representación gob primero; ante
// cualquier error estructural cae al JSON y reconstruye campo a campo.
// Si no existe ninguna representación retorna errors.ErrNotFound; si
// existen pero ninguna es legible, errors.ErrSnapshotCorrupt.
func (s *Store) Load(domainName string) (*domain.Target, error) {
	dir := s.targetDir(domainName)
	gobPath := filepath.Join(dir, gobFile)
	jsonPath := filepath.Join(dir, jsonFile)

	gobExists := fileExists(gobPath)
	jsonExists := fileExists(jsonPath)

	if !gobExists && !jsonExists {
		return nil, errors.Wrapf(errors.ErrNotFound, "no snapshot for %s", domainName)
	}

	if gobExists {
		snap, err := readGob(gobPath)
		if err == nil {
			return snap.toTarget(), nil
		}
		s.logger.Warn("gob snapshot unreadable, falling back to json",
			"domain", domainName,
			"error", err.Error(),
		)
	}

	if jsonExists {
		snap, err := readJSON(jsonPath)
		if err == nil {
			return snap.toTarget(), nil
		}
		s.logger.Warn("json snapshot unreadable", "domain", domainName, "error", err.Error())
	}

	return nil, errors.Wrapf(errors.ErrSnapshotCorrupt, "no readable snapshot for %s", domainName)
}

// Exists verifica si hay alguna representación persistida para el dominio.
func (s *Store) Exists(domainName string) bool {
	dir := s.targetDir(domainName)
	return fileExists(filepath.Join(dir, gobFile)) || fileExists(filepath.Join(dir, jsonFile))
}

// Delete elimina el snapshot completo (ambas representaciones y backups).
func (s *Store) Delete(domainName string) error {
	return os.RemoveAll(s.targetDir(domainName))
}

// List retorna las claves de snapshot presentes en el directorio base.
// La clave conserva los puntos del dominio, así que normalmente coincide
// con él; entradas que tenían esquema o puerto no se recuperan (lossy).
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.base)
	if err != nil {
		return nil, errors.Wrapf(err, "read store directory %s", s.base)
	}

	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			keys = append(keys, e.Name())
		}
	}
	return keys, nil
}

// rotateBackup copia un snapshot previo a backups/<file>.<timestamp>.
// Un fallo de backup no bloquea el save: se registra y se continúa.
func (s *Store) rotateBackup(dir, name string) {
	src := filepath.Join(dir, name)
	if !fileExists(src) {
		return
	}

	bdir := filepath.Join(dir, backupsDir)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		s.logger.Warn("backup directory creation failed", "error", err.Error())
		return
	}

	ts := time.Now().UTC().Format("20060102T150405")
	dst := filepath.Join(bdir, fmt.Sprintf("%s.%s", name, ts))
	if err := copyFile(src, dst); err != nil {
		s.logger.Warn("backup rotation failed", "file", name, "error", err.Error())
	}
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

func writeGobAtomic(path string, snap snapshot) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if err := gob.NewEncoder(tmp).Encode(snap); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

func readGob(path string) (snapshot, error) {
	var snap snapshot
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return snap, err
	}
	if snap.Domain == "" {
		return snap, errors.New("gob snapshot missing domain")
	}
	return snap, nil
}

func readJSON(path string) (snapshot, error) {
	var snap snapshot
	data, err := os.ReadFile(path)
	if err != nil {
		return snap, err
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, err
	}
	if snap.Domain == "" {
		return snap, errors.New("json snapshot missing domain")
	}
	return snap, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
