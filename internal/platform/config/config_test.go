// internal/platform/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Workers != 4 {
		t.Errorf("default workers = %d, want 4", cfg.Workers)
	}
	if cfg.OutputDir != "redtrace_out" {
		t.Errorf("default output dir = %s", cfg.OutputDir)
	}
	if cfg.Exploit.Auto {
		t.Error("auto-exploit must be off by default")
	}
	if !cfg.Enumerators["crtsh"].Enabled {
		t.Error("crtsh enabled by default")
	}
	if !cfg.Scanners["sqli"].Enabled {
		t.Error("sqli scanner enabled by default")
	}
}

func TestLoad_Flags(t *testing.T) {
	cfg, err := Load([]string{
		"--target", "Example.COM.",
		"--workers", "8",
		"--auto-exploit",
		"--scope", "/tmp/scope.json",
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Target != "example.com" {
		t.Errorf("target = %q, normalization expected", cfg.Target)
	}
	if cfg.Workers != 8 {
		t.Errorf("workers = %d, want 8", cfg.Workers)
	}
	if !cfg.Exploit.Auto {
		t.Error("auto-exploit flag not applied")
	}
	if cfg.ScopeFile != "/tmp/scope.json" {
		t.Errorf("scope file = %q", cfg.ScopeFile)
	}
}

func TestLoad_CollaboratorFlags(t *testing.T) {
	cfg, err := Load([]string{
		"--target", "example.com",
		"--enum.crtsh=false",
		"--scan.headers=false",
		"--exploit.sqli=false",
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Enumerators["crtsh"].Enabled {
		t.Error("--enum.crtsh=false did not disable the enumerator")
	}
	if cfg.Scanners["headers"].Enabled {
		t.Error("--scan.headers=false did not disable the scanner")
	}
	if cfg.Exploiters["sqli"].Enabled {
		t.Error("--exploit.sqli=false did not disable the exploiter")
	}

	// Los no mencionados conservan su estado previo.
	if !cfg.Enumerators["dnsbrute"].Enabled {
		t.Error("untouched collaborator lost its enabled state")
	}
	if !cfg.Scanners["sqli"].Enabled {
		t.Error("untouched collaborator lost its enabled state")
	}
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	t.Setenv("REDTRACE_TARGET", "env.example.com")
	t.Setenv("REDTRACE_WORKERS", "16")
	t.Setenv("REDTRACE_ENUMERATORS_CRTSH_ENABLED", "false")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Target != "env.example.com" {
		t.Errorf("env target not applied: %q", cfg.Target)
	}
	if cfg.Workers != 16 {
		t.Errorf("env workers not applied: %d", cfg.Workers)
	}
	if cfg.Enumerators["crtsh"].Enabled {
		t.Error("env collaborator toggle not applied")
	}
}

func TestLoad_FlagsBeatEnv(t *testing.T) {
	t.Setenv("REDTRACE_TARGET", "env.example.com")

	cfg, err := Load([]string{"--target", "flag.example.com"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Target != "flag.example.com" {
		t.Errorf("flags should win over env, got %q", cfg.Target)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
target: file.example.com
workers: 12
output_dir: /tmp/scans
enumerators:
  crtsh:
    enabled: false
    timeout_s: 60
  dnsbrute:
    custom:
      wordlist: /tmp/words.txt
scan:
  workers: 20
  timeout_s: 45
exploit:
  auto: true
  max_attempts: 5
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load([]string{"--config", path})
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Target != "file.example.com" {
		t.Errorf("target from file: %q", cfg.Target)
	}
	if cfg.Workers != 12 {
		t.Errorf("workers from file: %d", cfg.Workers)
	}
	if cfg.OutputDir != "/tmp/scans" {
		t.Errorf("output dir from file: %q", cfg.OutputDir)
	}
	if cfg.Enumerators["crtsh"].Enabled {
		t.Error("file collaborator toggle not applied")
	}
	if cfg.Enumerators["crtsh"].Timeout != 60*time.Second {
		t.Errorf("file timeout not applied: %v", cfg.Enumerators["crtsh"].Timeout)
	}
	if cfg.Enumerators["dnsbrute"].Custom["wordlist"] != "/tmp/words.txt" {
		t.Error("custom settings from file not merged")
	}
	if cfg.Scan.Workers != 20 || cfg.Scan.TimeoutS != 45 {
		t.Errorf("scan stage config not applied: %+v", cfg.Scan)
	}
	if !cfg.Exploit.Auto || cfg.Exploit.MaxAttempts != 5 {
		t.Errorf("exploit stage config not applied: %+v", cfg.Exploit)
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("target: [unclosed"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load([]string{"--config", path}); err == nil {
		t.Error("malformed config file should fail loudly")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) { c.Target = "example.com" }, false},
		{"missing target", func(c *Config) {}, true},
		{"valid stage", func(c *Config) { c.Target = "example.com"; c.Stage = "scan" }, false},
		{"unknown stage", func(c *Config) { c.Target = "example.com"; c.Stage = "nope" }, true},
		{"stage and resume conflict", func(c *Config) {
			c.Target = "example.com"
			c.Stage = "scan"
			c.Resume = true
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Target = "  EXAMPLE.COM.  "
	cfg.Workers = 0
	cfg.TimeoutS = -5
	normalize(&cfg)

	if cfg.Target != "example.com" {
		t.Errorf("target not normalized: %q", cfg.Target)
	}
	if cfg.Workers != 1 {
		t.Errorf("workers floor not applied: %d", cfg.Workers)
	}
	if cfg.TimeoutS != 0 {
		t.Errorf("negative timeout not clamped: %d", cfg.TimeoutS)
	}
}

func TestTimeout(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Timeout() != 0 {
		t.Error("zero timeout means no limit")
	}
	cfg.TimeoutS = 30
	if cfg.Timeout() != 30*time.Second {
		t.Errorf("timeout = %v", cfg.Timeout())
	}
}
