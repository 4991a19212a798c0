package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/anstrom/modscan/internal/errors"
	"github.com/anstrom/modscan/internal/logging"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		path    func(t *testing.T) string
		wantErr bool
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name: "valid yaml config",
			path: func(t *testing.T) string {
				return writeConfig(t, "config.yaml", `
api:
  listen_addr: 0.0.0.0
  port: 9090
scanning:
  probe_timeout: 500ms
  addresses_per_probe: 16
  station_id_max: 247
schedules:
  - name: nightly
    cron: "0 2 * * *"
    enabled: true
    request:
      host: 10.0.0.5
      end_address: 100
      object_types: [holding_registers, coils]
`)
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.API.Port != 9090 {
					t.Errorf("Expected port 9090, got %d", cfg.API.Port)
				}
				if cfg.Scanning.ProbeTimeout != 500*time.Millisecond {
					t.Errorf("Expected probe timeout 500ms, got %s", cfg.Scanning.ProbeTimeout)
				}
				if cfg.Scanning.AddressesPerProbe != 16 {
					t.Errorf("Expected 16 addresses per probe, got %d", cfg.Scanning.AddressesPerProbe)
				}
				if cfg.Scanning.DefaultPort != 502 {
					t.Errorf("Default port should survive partial config, got %d", cfg.Scanning.DefaultPort)
				}
				if len(cfg.Schedules) != 1 || cfg.Schedules[0].Request.Host != "10.0.0.5" {
					t.Errorf("Unexpected schedules: %+v", cfg.Schedules)
				}
			},
		},
		{
			name: "valid json config",
			path: func(t *testing.T) string {
				return writeConfig(t, "config.json", `{"api": {"port": 8181}, "logging": {"level": "debug", "format": "json"}}`)
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.API.Port != 8181 {
					t.Errorf("Expected port 8181, got %d", cfg.API.Port)
				}
				if cfg.Logging.Format != logging.FormatJSON {
					t.Errorf("Expected json format, got %s", cfg.Logging.Format)
				}
			},
		},
		{
			name: "missing file returns defaults",
			path: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "absent.yaml")
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.API.Port != 8080 {
					t.Errorf("Expected default port 8080, got %d", cfg.API.Port)
				}
			},
		},
		{
			name: "invalid yaml syntax",
			path: func(t *testing.T) string {
				return writeConfig(t, "config.yaml", "api:\n  port: [not a number\n")
			},
			wantErr: true,
		},
		{
			name: "invalid values",
			path: func(t *testing.T) string {
				return writeConfig(t, "config.yaml", "scanning:\n  station_id_min: 10\n  station_id_max: 5\n")
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.path(t))
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{"bad api port", func(c *Config) { c.API.Port = 70000 }, "api.port"},
		{"empty listen addr", func(c *Config) { c.API.ListenAddr = "" }, "api.listen_addr"},
		{"zero probe timeout", func(c *Config) { c.Scanning.ProbeTimeout = 0 }, "scanning.probe_timeout"},
		{"negative interval", func(c *Config) { c.Scanning.ProbeInterval = -time.Second }, "scanning.probe_interval"},
		{"zero chunk", func(c *Config) { c.Scanning.AddressesPerProbe = 0 }, "scanning.addresses_per_probe"},
		{"station out of domain", func(c *Config) { c.Scanning.StationIDMax = 300 }, "scanning.station_id_min/max"},
		{"no check slots", func(c *Config) { c.Scanning.MaxConcurrentChecks = 0 }, "scanning.max_concurrent_checks"},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"schedule without cron", func(c *Config) {
			c.Schedules = []ScheduleConfig{{Name: "x"}}
		}, "schedules[0].cron"},
	}

	if err := Default().Validate(); err != nil {
		t.Fatalf("Default config should be valid: %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !errors.IsCode(err, errors.CodeConfiguration) {
				t.Errorf("Expected configuration error code, got %v", err)
			}
			configErr, ok := err.(*errors.ConfigError)
			if !ok {
				t.Fatalf("Expected *errors.ConfigError, got %T", err)
			}
			if configErr.Field != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, configErr.Field)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "config.yaml")
	cfg := Default()
	cfg.API.Port = 9191

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.API.Port != 9191 {
		t.Errorf("Expected port 9191, got %d", loaded.API.Port)
	}
	if loaded.GetAPIAddress() != "127.0.0.1:9191" {
		t.Errorf("Unexpected address %s", loaded.GetAPIAddress())
	}
}
