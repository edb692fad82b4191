package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/owldoor/zipradius/internal/source"
	"github.com/owldoor/zipradius/internal/spatial"
)

// Config holds all zipradius configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Data    DataConfig    `yaml:"data"`
	Query   QueryConfig   `yaml:"query"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig configures the HTTP interface.
type ServerConfig struct {
	Addr            string `yaml:"addr"`
	ReadTimeout     string `yaml:"read_timeout"`
	WriteTimeout    string `yaml:"write_timeout"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
	CORSOrigin      string `yaml:"cors_origin"`
}

// DataConfig configures where the postal reference data comes from and how
// it is indexed.
type DataConfig struct {
	Country      string         `yaml:"country"`    // ISO country kept by the parser, empty keeps all
	CodeWidth    int            `yaml:"code_width"` // zero-padded code width
	Index        string         `yaml:"index"`      // linear, rtree, s2
	FetchTimeout string         `yaml:"fetch_timeout"`
	Sources      []SourceConfig `yaml:"sources"`
}

// Source types.
const (
	SourceHTTP = "http"
	SourceFile = "file"
	SourceSQL  = "sql"
)

// SourceConfig describes one entry of the ordered data source chain.
type SourceConfig struct {
	Type      string `yaml:"type"`
	URL       string `yaml:"url,omitempty"`
	CachePath string `yaml:"cache_path,omitempty"`
	Path      string `yaml:"path,omitempty"`
	Member    string `yaml:"member,omitempty"`
	Driver    string `yaml:"driver,omitempty"`
	DSN       string `yaml:"dsn,omitempty"`
	Query     string `yaml:"query,omitempty"`
}

// QueryConfig bounds proximity queries.
type QueryConfig struct {
	MaxRadiusMiles float64 `yaml:"max_radius_miles"` // 0 = unlimited
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
	File   string `yaml:"file"`   // empty = stderr
}

// DefaultCachePath is where the downloaded geonames archive is kept.
var DefaultCachePath = filepath.Join("data", "US.zip")

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     "10s",
			WriteTimeout:    "30s",
			ShutdownTimeout: "15s",
			CORSOrigin:      "*",
		},
		Data: DataConfig{
			Country:      "US",
			CodeWidth:    5,
			Index:        string(spatial.KindLinear),
			FetchTimeout: "30s",
			Sources: []SourceConfig{
				{
					Type:      SourceHTTP,
					URL:       source.DefaultGeonamesURL,
					Member:    source.DefaultMember,
					CachePath: DefaultCachePath,
				},
				{
					Type:   SourceFile,
					Path:   DefaultCachePath,
					Member: source.DefaultMember,
				},
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("ZIPRADIUS_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if url := os.Getenv("ZIPRADIUS_DATA_URL"); url != "" {
		c.Data.Sources = append([]SourceConfig{{Type: SourceHTTP, URL: url}}, c.Data.Sources...)
	}
	if path := os.Getenv("ZIPRADIUS_DATA_FILE"); path != "" {
		c.Data.Sources = append(c.Data.Sources, SourceConfig{Type: SourceFile, Path: path})
	}
	if index := os.Getenv("ZIPRADIUS_INDEX"); index != "" {
		c.Data.Index = index
	}
	if level := os.Getenv("ZIPRADIUS_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if dsn := os.Getenv("ZIPRADIUS_DB_DSN"); dsn != "" {
		for i := range c.Data.Sources {
			if c.Data.Sources[i].Type == SourceSQL {
				c.Data.Sources[i].DSN = dsn
			}
		}
	}
}

// GetFetchTimeout returns the per-source fetch timeout.
func (c *Config) GetFetchTimeout() time.Duration {
	return parseDuration(c.Data.FetchTimeout, 30*time.Second)
}

func (c *Config) GetReadTimeout() time.Duration {
	return parseDuration(c.Server.ReadTimeout, 10*time.Second)
}

func (c *Config) GetWriteTimeout() time.Duration {
	return parseDuration(c.Server.WriteTimeout, 30*time.Second)
}

func (c *Config) GetShutdownTimeout() time.Duration {
	return parseDuration(c.Server.ShutdownTimeout, 15*time.Second)
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if _, err := spatial.ParseKind(c.Data.Index); err != nil {
		return err
	}
	if country := strings.TrimSpace(c.Data.Country); country != "" && len(country) != 2 {
		return fmt.Errorf("invalid country %q: want a two letter ISO code, or empty for all", c.Data.Country)
	}
	if c.Data.CodeWidth < 0 {
		return fmt.Errorf("invalid code width %d", c.Data.CodeWidth)
	}
	if c.Query.MaxRadiusMiles < 0 {
		return fmt.Errorf("invalid max radius %v", c.Query.MaxRadiusMiles)
	}
	if len(c.Data.Sources) == 0 {
		return fmt.Errorf("no data sources configured")
	}
	for i, src := range c.Data.Sources {
		if err := src.validate(); err != nil {
			return fmt.Errorf("data source %d: %w", i, err)
		}
	}
	switch c.Logging.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("invalid log format: %s (valid: json, console)", c.Logging.Format)
	}
	return nil
}

func (s SourceConfig) validate() error {
	switch s.Type {
	case SourceHTTP:
		if s.URL == "" {
			return fmt.Errorf("http source needs a url")
		}
	case SourceFile:
		if s.Path == "" {
			return fmt.Errorf("file source needs a path")
		}
	case SourceSQL:
		if !slices.Contains(source.SQLDrivers, s.Driver) {
			return fmt.Errorf("invalid sql driver: %s (valid: %v)", s.Driver, source.SQLDrivers)
		}
		if s.DSN == "" {
			return fmt.Errorf("sql source needs a dsn")
		}
	default:
		return fmt.Errorf("invalid source type: %q", s.Type)
	}
	return nil
}
