// internal/platform/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"redtrace/internal/core/ports"
)

type Config struct {
	// App
	Target       string
	Stage        string // alias corto para correr un solo stage (enum|filter|scan|exploit)
	Resume       bool
	Workers      int
	TimeoutS     int // segundos (0 = sin timeout global)
	Quiet        bool
	PrintVersion bool

	// IO
	OutputDir string
	ScopeFile string
	EventLog  string
	Backups   bool

	// Collaborators: mapa dinámico de configuraciones por nombre
	Enumerators map[string]ports.CollaboratorConfig
	Scanners    map[string]ports.CollaboratorConfig
	Exploiters  map[string]ports.CollaboratorConfig

	// Stages
	Enumeration Enumeration
	Scan        Scan
	Exploit     Exploit
}

type Enumeration struct {
	Workers  int
	TimeoutS int
}

type Scan struct {
	Workers  int
	TimeoutS int
}

type Exploit struct {
	Auto        bool
	MaxAttempts int
	TimeoutS    int
}

// DefaultConfig retorna una configuración por defecto.
func DefaultConfig() Config {
	return Config{
		Target:   "",
		Workers:  4,
		TimeoutS: 0,

		OutputDir: "redtrace_out",
		ScopeFile: "",
		EventLog:  "",
		Backups:   true,

		Enumerators: map[string]ports.CollaboratorConfig{
			"crtsh": {
				Enabled:  true,
				Timeout:  30 * time.Second,
				Priority: 10,
				Custom:   make(map[string]string),
			},
			"dnsbrute": {
				Enabled:  true,
				Timeout:  30 * time.Second,
				Priority: 5,
				Custom:   make(map[string]string),
			},
		},
		Scanners: map[string]ports.CollaboratorConfig{
			"sqli": {
				Enabled:  true,
				Timeout:  15 * time.Second,
				Priority: 10,
				Custom:   make(map[string]string),
			},
			"headers": {
				Enabled:  true,
				Timeout:  10 * time.Second,
				Priority: 5,
				Custom:   make(map[string]string),
			},
		},
		Exploiters: map[string]ports.CollaboratorConfig{
			"sqli": {
				Enabled:  true,
				Timeout:  15 * time.Second,
				Priority: 10,
				Custom:   make(map[string]string),
			},
		},

		Enumeration: Enumeration{Workers: 4, TimeoutS: 60},
		Scan:        Scan{Workers: 8, TimeoutS: 30},
		Exploit:     Exploit{Auto: false, MaxAttempts: 3, TimeoutS: 30},
	}
}

// Load inicializa la configuración por capas:
// defaults -> fichero YAML -> ENV -> FLAGS (las capas posteriores ganan).
func Load(args []string) (Config, error) {
	cfg := DefaultConfig()

	// El path del fichero puede venir por ENV o por flag; el flag gana,
	// así que se hace un pre-scan barato de los args.
	path := getenv("REDTRACE_CONFIG", "")
	for i, a := range args {
		if a == "--config" && i+1 < len(args) {
			path = args[i+1]
		} else if strings.HasPrefix(a, "--config=") {
			path = strings.TrimPrefix(a, "--config=")
		}
	}
	if path != "" {
		if err := loadFromFile(&cfg, path); err != nil {
			return cfg, err
		}
	}

	loadFromEnv(&cfg)

	if err := loadFromFlags(&cfg, args); err != nil {
		return cfg, err
	}

	normalize(&cfg)
	return cfg, nil
}

// fileConfig es el esquema del fichero YAML. Los timeouts van en segundos
// enteros para mantener el fichero simple.
type fileConfig struct {
	Target    string `yaml:"target"`
	Workers   int    `yaml:"workers"`
	TimeoutS  int    `yaml:"timeout_s"`
	OutputDir string `yaml:"output_dir"`
	ScopeFile string `yaml:"scope_file"`
	EventLog  string `yaml:"event_log"`
	Backups   *bool  `yaml:"backups"`

	Enumerators map[string]fileCollaborator `yaml:"enumerators"`
	Scanners    map[string]fileCollaborator `yaml:"scanners"`
	Exploiters  map[string]fileCollaborator `yaml:"exploiters"`

	Enumeration *fileStage        `yaml:"enumeration"`
	Scan        *fileStage        `yaml:"scan"`
	Exploit     *fileExploitStage `yaml:"exploit"`
}

type fileCollaborator struct {
	Enabled  *bool             `yaml:"enabled"`
	TimeoutS int               `yaml:"timeout_s"`
	Priority *int              `yaml:"priority"`
	Custom   map[string]string `yaml:"custom"`
}

type fileStage struct {
	Workers  int `yaml:"workers"`
	TimeoutS int `yaml:"timeout_s"`
}

type fileExploitStage struct {
	Auto        *bool `yaml:"auto"`
	MaxAttempts int   `yaml:"max_attempts"`
	TimeoutS    int   `yaml:"timeout_s"`
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if fc.Target != "" {
		cfg.Target = fc.Target
	}
	if fc.Workers > 0 {
		cfg.Workers = fc.Workers
	}
	if fc.TimeoutS > 0 {
		cfg.TimeoutS = fc.TimeoutS
	}
	if fc.OutputDir != "" {
		cfg.OutputDir = fc.OutputDir
	}
	if fc.ScopeFile != "" {
		cfg.ScopeFile = fc.ScopeFile
	}
	if fc.EventLog != "" {
		cfg.EventLog = fc.EventLog
	}
	if fc.Backups != nil {
		cfg.Backups = *fc.Backups
	}

	mergeCollaborators(cfg.Enumerators, fc.Enumerators)
	mergeCollaborators(cfg.Scanners, fc.Scanners)
	mergeCollaborators(cfg.Exploiters, fc.Exploiters)

	if fc.Enumeration != nil {
		if fc.Enumeration.Workers > 0 {
			cfg.Enumeration.Workers = fc.Enumeration.Workers
		}
		if fc.Enumeration.TimeoutS > 0 {
			cfg.Enumeration.TimeoutS = fc.Enumeration.TimeoutS
		}
	}
	if fc.Scan != nil {
		if fc.Scan.Workers > 0 {
			cfg.Scan.Workers = fc.Scan.Workers
		}
		if fc.Scan.TimeoutS > 0 {
			cfg.Scan.TimeoutS = fc.Scan.TimeoutS
		}
	}
	if fc.Exploit != nil {
		if fc.Exploit.Auto != nil {
			cfg.Exploit.Auto = *fc.Exploit.Auto
		}
		if fc.Exploit.MaxAttempts > 0 {
			cfg.Exploit.MaxAttempts = fc.Exploit.MaxAttempts
		}
		if fc.Exploit.TimeoutS > 0 {
			cfg.Exploit.TimeoutS = fc.Exploit.TimeoutS
		}
	}
	return nil
}

// mergeCollaborators aplica las entradas del fichero sobre los defaults.
// Nombres desconocidos crean una entrada nueva: el registro decide después
// si existe una factory para ellos.
func mergeCollaborators(dst map[string]ports.CollaboratorConfig, src map[string]fileCollaborator) {
	for name, fcc := range src {
		cc, ok := dst[name]
		if !ok {
			cc = ports.DefaultCollaboratorConfig()
		}
		if fcc.Enabled != nil {
			cc.Enabled = *fcc.Enabled
		}
		if fcc.TimeoutS > 0 {
			cc.Timeout = time.Duration(fcc.TimeoutS) * time.Second
		}
		if fcc.Priority != nil {
			cc.Priority = *fcc.Priority
		}
		if cc.Custom == nil {
			cc.Custom = make(map[string]string)
		}
		for k, v := range fcc.Custom {
			cc.Custom[k] = v
		}
		dst[name] = cc
	}
}

// loadFromEnv carga configuración desde variables de entorno.
func loadFromEnv(cfg *Config) {
	if v := getenv("REDTRACE_TARGET", ""); v != "" {
		cfg.Target = v
	}
	if v := getenv("REDTRACE_WORKERS", ""); v != "" {
		cfg.Workers = parseInt(v, cfg.Workers)
	}
	if v := getenv("REDTRACE_TIMEOUT", ""); v != "" {
		cfg.TimeoutS = parseInt(v, cfg.TimeoutS)
	}
	if v := getenv("REDTRACE_OUTPUT_DIR", ""); v != "" {
		cfg.OutputDir = v
	}
	if v := getenv("REDTRACE_SCOPE_FILE", ""); v != "" {
		cfg.ScopeFile = v
	}
	if v := getenv("REDTRACE_EVENT_LOG", ""); v != "" {
		cfg.EventLog = v
	}
	if v := getenv("REDTRACE_AUTO_EXPLOIT", ""); v != "" {
		cfg.Exploit.Auto = parseBool(v)
	}

	// Collaborators desde ENV
	// Formato: REDTRACE_ENUMERATORS_CRTSH_ENABLED=true
	//          REDTRACE_SCANNERS_SQLI_TIMEOUT=60
	envCollaborators(cfg.Enumerators, "REDTRACE_ENUMERATORS_")
	envCollaborators(cfg.Scanners, "REDTRACE_SCANNERS_")
	envCollaborators(cfg.Exploiters, "REDTRACE_EXPLOITERS_")
}

func envCollaborators(m map[string]ports.CollaboratorConfig, prefix string) {
	for name := range m {
		p := prefix + strings.ToUpper(name) + "_"
		cc := m[name]

		if v := getenv(p+"ENABLED", ""); v != "" {
			cc.Enabled = parseBool(v)
		}
		if v := getenv(p+"PRIORITY", ""); v != "" {
			cc.Priority = parseInt(v, cc.Priority)
		}
		if v := getenv(p+"TIMEOUT", ""); v != "" {
			cc.Timeout = time.Duration(parseInt(v, int(cc.Timeout.Seconds()))) * time.Second
		}

		m[name] = cc
	}
}

// loadFromFlags parsea flags de CLI sobre la configuración acumulada.
func loadFromFlags(cfg *Config, args []string) error {
	fs := pflag.NewFlagSet("redtrace", pflag.ContinueOnError)

	fs.StringVarP(&cfg.Target, "target", "t", cfg.Target, "Dominio objetivo (e.g., example.com)")
	fs.StringVarP(&cfg.Stage, "stage", "s", cfg.Stage, "Ejecutar un solo stage: enum|filter|scan|exploit")
	fs.BoolVarP(&cfg.Resume, "resume", "r", cfg.Resume, "Reanudar un escaneo previo del target")
	fs.IntVarP(&cfg.Workers, "workers", "w", cfg.Workers, "Concurrencia máxima por stage")
	fs.IntVar(&cfg.TimeoutS, "timeout", cfg.TimeoutS, "Timeout global en segundos (0 = sin timeout)")
	fs.BoolVarP(&cfg.Quiet, "quiet", "q", cfg.Quiet, "Suprimir eventos de detalle en consola")
	fs.BoolVar(&cfg.PrintVersion, "version", false, "Imprimir versión y salir")

	fs.StringVarP(&cfg.OutputDir, "out", "o", cfg.OutputDir, "Directorio de snapshots")
	fs.StringVar(&cfg.ScopeFile, "scope", cfg.ScopeFile, "Fichero de reglas de scope (JSON)")
	fs.StringVar(&cfg.EventLog, "events", cfg.EventLog, "Fichero de log de eventos (JSON-lines)")
	fs.BoolVar(&cfg.Backups, "backups", cfg.Backups, "Guardar backups con timestamp de cada snapshot")

	fs.BoolVar(&cfg.Exploit.Auto, "auto-exploit", cfg.Exploit.Auto, "Explotar automáticamente los hallazgos confirmados")

	// Collaborators (solo enabled via flags, el resto via fichero o ENV).
	// pflag escribe en el puntero que se le dio al registrar el flag, así que
	// el destino tiene que sobrevivir al Parse: se acumulan los punteros y se
	// vuelcan sobre los mapas después de parsear.
	type collabFlag struct {
		m       map[string]ports.CollaboratorConfig
		name    string
		enabled *bool
	}
	var collabFlags []collabFlag
	for _, group := range []struct {
		name string
		m    map[string]ports.CollaboratorConfig
	}{
		{"enum", cfg.Enumerators}, {"scan", cfg.Scanners}, {"exploit", cfg.Exploiters},
	} {
		for name := range group.m {
			flagName := fmt.Sprintf("%s.%s", group.name, name)
			enabled := fs.Bool(flagName, group.m[name].Enabled, fmt.Sprintf("Habilitar collaborator %s", flagName))
			collabFlags = append(collabFlags, collabFlag{m: group.m, name: name, enabled: enabled})
		}
	}

	// --config ya se procesó en Load; se declara para que el parse no falle.
	fs.String("config", "", "Fichero de configuración YAML")

	if err := fs.Parse(args); err != nil {
		return err
	}

	for _, cf := range collabFlags {
		cc := cf.m[cf.name]
		cc.Enabled = *cf.enabled
		cf.m[cf.name] = cc
	}
	return nil
}

func normalize(c *Config) {
	c.Target = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(c.Target), "."))
	c.Stage = strings.TrimSpace(strings.ToLower(c.Stage))
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.TimeoutS < 0 {
		c.TimeoutS = 0
	}
	if c.OutputDir == "" {
		c.OutputDir = "redtrace_out"
	}
	if c.Enumeration.Workers < 1 {
		c.Enumeration.Workers = c.Workers
	}
	if c.Scan.Workers < 1 {
		c.Scan.Workers = c.Workers
	}
	if c.Exploit.MaxAttempts < 1 {
		c.Exploit.MaxAttempts = 3
	}
}

// Validate verifica los campos que no admiten defaults.
func (c Config) Validate() error {
	if c.Target == "" && !c.PrintVersion {
		return fmt.Errorf("target domain is required")
	}
	switch c.Stage {
	case "", "enum", "filter", "scan", "exploit":
	default:
		return fmt.Errorf("unknown stage %q (valid: enum, filter, scan, exploit)", c.Stage)
	}
	if c.Stage != "" && c.Resume {
		return fmt.Errorf("--stage and --resume are mutually exclusive")
	}
	return nil
}

// ToJSON serializa la configuración a JSON (útil para debugging).
func (c Config) ToJSON() (string, error) {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Timeout devuelve el timeout global como duración (0 = sin timeout).
func (c Config) Timeout() time.Duration {
	if c.TimeoutS <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutS) * time.Second
}

// Helpers

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok {
		return v
	}
	return def
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "t", "true", "y", "yes", "on":
		return true
	default:
		return false
	}
}

func parseInt(v string, def int) int {
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return i
}
