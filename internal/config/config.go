package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/anstrom/modscan/internal/errors"
	"github.com/anstrom/modscan/internal/logging"
)

// Config represents the complete service configuration
type Config struct {
	// API configuration
	API APIConfig `yaml:"api" json:"api"`

	// Scanning configuration
	Scanning ScanningConfig `yaml:"scanning" json:"scanning"`

	// Logging configuration
	Logging logging.Config `yaml:"logging" json:"logging"`

	// Recurring scans submitted by the scheduler
	Schedules []ScheduleConfig `yaml:"schedules" json:"schedules"`
}

// APIConfig holds API server settings
type APIConfig struct {
	// Listen address
	ListenAddr string `yaml:"listen_addr" json:"listen_addr"`

	// Listen port
	Port int `yaml:"port" json:"port"`

	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" json:"idle_timeout"`

	// Maximum request body size in bytes
	MaxRequestSize int64 `yaml:"max_request_size" json:"max_request_size"`

	// CORS settings
	CORS CORSConfig `yaml:"cors" json:"cors"`

	// Interval between snapshots pushed on the status websocket
	StreamInterval time.Duration `yaml:"stream_interval" json:"stream_interval"`
}

// CORSConfig holds CORS settings
type CORSConfig struct {
	Enabled        bool     `yaml:"enabled" json:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`
}

// ScanningConfig holds probing and planning settings
type ScanningConfig struct {
	// Port used when a request leaves it out
	DefaultPort int `yaml:"default_port" json:"default_port"`

	// Station probed for object types when a request leaves it out
	DefaultStationID int `yaml:"default_station_id" json:"default_station_id"`

	// Upper bound for a single probe
	ProbeTimeout time.Duration `yaml:"probe_timeout" json:"probe_timeout"`

	// Upper bound for the reachability check at job start
	ConnectTimeout time.Duration `yaml:"connect_timeout" json:"connect_timeout"`

	// Minimum spacing between two probes (0 disables pacing)
	ProbeInterval time.Duration `yaml:"probe_interval" json:"probe_interval"`

	// Addresses read by one object probe
	AddressesPerProbe int `yaml:"addresses_per_probe" json:"addresses_per_probe"`

	// Valid station-ID domain for discovery
	StationIDMin int `yaml:"station_id_min" json:"station_id_min"`
	StationIDMax int `yaml:"station_id_max" json:"station_id_max"`

	// Largest accepted end-start address span
	MaxAddressSpan int `yaml:"max_address_span" json:"max_address_span"`

	// Connection tests allowed in flight at once
	MaxConcurrentChecks int `yaml:"max_concurrent_checks" json:"max_concurrent_checks"`

	// Status polling cadence used by the CLI client
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval"`
}

// ScheduleConfig describes a recurring scan
type ScheduleConfig struct {
	Name    string            `yaml:"name" json:"name"`
	Cron    string            `yaml:"cron" json:"cron"`
	Enabled bool              `yaml:"enabled" json:"enabled"`
	Request ScheduledScanSpec `yaml:"request" json:"request"`
}

// ScheduledScanSpec is the YAML form of a scan request
type ScheduledScanSpec struct {
	Host           string   `yaml:"host" json:"host"`
	Port           int      `yaml:"port" json:"port"`
	StationID      int      `yaml:"station_id" json:"station_id"`
	StartAddress   int      `yaml:"start_address" json:"start_address"`
	EndAddress     int      `yaml:"end_address" json:"end_address"`
	ObjectTypes    []string `yaml:"object_types" json:"object_types"`
	DiscoverFrom   int      `yaml:"discover_from" json:"discover_from"`
	DiscoverTo     int      `yaml:"discover_to" json:"discover_to"`
	DiscoverEnable bool     `yaml:"discover" json:"discover"`
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		API: APIConfig{
			ListenAddr:     "127.0.0.1",
			Port:           8080,
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   10 * time.Second,
			IdleTimeout:    60 * time.Second,
			MaxRequestSize: 1024 * 1024, // 1MB
			CORS: CORSConfig{
				Enabled:        true,
				AllowedOrigins: []string{"*"},
			},
			StreamInterval: 500 * time.Millisecond,
		},
		Scanning: ScanningConfig{
			DefaultPort:         502,
			DefaultStationID:    1,
			ProbeTimeout:        3 * time.Second,
			ConnectTimeout:      2 * time.Second,
			ProbeInterval:       10 * time.Millisecond,
			AddressesPerProbe:   1,
			StationIDMin:        1,
			StationIDMax:        255,
			MaxAddressSpan:      10000,
			MaxConcurrentChecks: 4,
			PollInterval:        time.Second,
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load loads configuration from a file
func Load(path string) (*Config, error) {
	// Start with defaults
	config := Default()

	if path == "" {
		return config, nil
	}

	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config, nil // Return defaults if no config file
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// JSON is a subset of YAML, so one decoder serves both extensions.
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", filepath.Base(path), err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Save saves configuration to a file
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return errors.ErrConfigInvalid("api.port", c.API.Port)
	}
	if c.API.ListenAddr == "" {
		return errors.ErrConfigInvalid("api.listen_addr", c.API.ListenAddr)
	}
	if c.API.StreamInterval <= 0 {
		return errors.ErrConfigInvalid("api.stream_interval", c.API.StreamInterval)
	}

	s := c.Scanning
	if s.DefaultPort <= 0 || s.DefaultPort > 65535 {
		return errors.ErrConfigInvalid("scanning.default_port", s.DefaultPort)
	}
	if s.DefaultStationID < 0 || s.DefaultStationID > 255 {
		return errors.ErrConfigInvalid("scanning.default_station_id", s.DefaultStationID)
	}
	if s.ProbeTimeout <= 0 {
		return errors.ErrConfigInvalid("scanning.probe_timeout", s.ProbeTimeout)
	}
	if s.ConnectTimeout <= 0 {
		return errors.ErrConfigInvalid("scanning.connect_timeout", s.ConnectTimeout)
	}
	if s.ProbeInterval < 0 {
		return errors.ErrConfigInvalid("scanning.probe_interval", s.ProbeInterval)
	}
	if s.AddressesPerProbe <= 0 {
		return errors.ErrConfigInvalid("scanning.addresses_per_probe", s.AddressesPerProbe)
	}
	if s.StationIDMin < 0 || s.StationIDMax > 255 || s.StationIDMin > s.StationIDMax {
		return errors.ErrConfigInvalid("scanning.station_id_min/max",
			fmt.Sprintf("%d-%d", s.StationIDMin, s.StationIDMax))
	}
	if s.MaxAddressSpan <= 0 || s.MaxAddressSpan > 65536 {
		return errors.ErrConfigInvalid("scanning.max_address_span", s.MaxAddressSpan)
	}
	if s.MaxConcurrentChecks <= 0 {
		return errors.ErrConfigInvalid("scanning.max_concurrent_checks", s.MaxConcurrentChecks)
	}
	if s.PollInterval <= 0 {
		return errors.ErrConfigInvalid("scanning.poll_interval", s.PollInterval)
	}

	validLogLevels := map[logging.LogLevel]bool{
		logging.LevelDebug: true,
		logging.LevelInfo:  true,
		logging.LevelWarn:  true,
		logging.LevelError: true,
	}
	if !validLogLevels[c.Logging.Level] {
		return errors.ErrConfigInvalid("logging.level", c.Logging.Level)
	}

	validLogFormats := map[logging.LogFormat]bool{
		logging.FormatText: true,
		logging.FormatJSON: true,
	}
	if !validLogFormats[c.Logging.Format] {
		return errors.ErrConfigInvalid("logging.format", c.Logging.Format)
	}

	for i, sched := range c.Schedules {
		if sched.Name == "" {
			return errors.ErrConfigInvalid(fmt.Sprintf("schedules[%d].name", i), sched.Name)
		}
		if sched.Cron == "" {
			return errors.ErrConfigInvalid(fmt.Sprintf("schedules[%d].cron", i), sched.Cron)
		}
	}

	return nil
}

// GetAPIAddress returns the full API address
func (c *Config) GetAPIAddress() string {
	return net.JoinHostPort(c.API.ListenAddr, strconv.Itoa(c.API.Port))
}
