// Package config handles TOML configuration loading with environment variable substitution.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the root configuration structure.
type Config struct {
	Server     ServerConfig     `toml:"server"`
	Database   DatabaseConfig   `toml:"database"`
	Library    LibraryConfig    `toml:"library"`
	Import     ImportConfig     `toml:"import"`
	Validation ValidationConfig `toml:"validation"`
}

type ServerConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	LogLevel string `toml:"log_level"`
	Metrics  bool   `toml:"metrics"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type LibraryConfig struct {
	Root    string `toml:"root"`
	Staging string `toml:"staging"`
}

type ImportConfig struct {
	AdmissionCeiling int           `toml:"admission_ceiling"`
	PacingScale      float64       `toml:"pacing_scale"`
	FileTimeout      time.Duration `toml:"file_timeout"`
	MemoryThreshold  float64       `toml:"memory_threshold"` // percent of host memory in use
	DefaultMode      string        `toml:"default_mode"`
	EventRetention   time.Duration `toml:"event_retention"`
}

type ValidationConfig struct {
	MinSize     int64         `toml:"min_size"`
	MaxSize     int64         `toml:"max_size"`
	MinDuration time.Duration `toml:"min_duration"`
	MaxDuration time.Duration `toml:"max_duration"`
	FFProbe     string        `toml:"ffprobe"`
	ReadTags    bool          `toml:"read_tags"`
}

// Defaults.
const (
	DefaultPort             = 8485
	DefaultAdmissionCeiling = 500
	DefaultMemoryThreshold  = 85.0
	DefaultMinSize          = 1 << 10
	DefaultMaxSize          = 20 << 30
)

// Load reads, parses and validates the configuration file.
func Load(path string) (*Config, error) {
	cfg, err := LoadWithoutValidation(path)
	if err != nil {
		return nil, err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, &ConfigError{Path: path, Errors: errs}
	}
	return cfg, nil
}

// LoadWithoutValidation reads and parses the configuration file and applies
// defaults. Unresolved environment variables are still an error.
func LoadWithoutValidation(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	content, missing := substituteEnvVars(string(data))
	if len(missing) > 0 {
		return nil, &ConfigError{Path: path, Missing: missing}
	}

	var cfg Config
	md, err := toml.Decode(content, &cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyDefaults(md)
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults(toml.MetaData{})
	return &cfg
}

func (c *Config) applyDefaults(md toml.MetaData) {
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if !md.IsDefined("server", "metrics") {
		c.Server.Metrics = true
	}
	if c.Database.Path == "" {
		c.Database.Path = "./data/bulkimport.db"
	}
	if c.Library.Root == "" {
		c.Library.Root = "./data/library"
	}
	if c.Library.Staging == "" {
		c.Library.Staging = filepath.Join(c.Library.Root, ".staging")
	}

	if c.Import.AdmissionCeiling == 0 {
		c.Import.AdmissionCeiling = DefaultAdmissionCeiling
	}
	if !md.IsDefined("import", "pacing_scale") {
		c.Import.PacingScale = 1.0
	}
	if !md.IsDefined("import", "file_timeout") {
		c.Import.FileTimeout = 10 * time.Minute
	}
	if c.Import.MemoryThreshold == 0 {
		c.Import.MemoryThreshold = DefaultMemoryThreshold
	}
	if c.Import.DefaultMode == "" {
		c.Import.DefaultMode = "copy"
	}
	if !md.IsDefined("import", "event_retention") {
		c.Import.EventRetention = 7 * 24 * time.Hour
	}

	if !md.IsDefined("validation", "min_size") {
		c.Validation.MinSize = DefaultMinSize
	}
	if !md.IsDefined("validation", "max_size") {
		c.Validation.MaxSize = DefaultMaxSize
	}
	if !md.IsDefined("validation", "min_duration") {
		c.Validation.MinDuration = time.Second
	}
	if !md.IsDefined("validation", "max_duration") {
		c.Validation.MaxDuration = 24 * time.Hour
	}
	if c.Validation.FFProbe == "" {
		c.Validation.FFProbe = "ffprobe"
	}
	if !md.IsDefined("validation", "read_tags") {
		c.Validation.ReadTags = true
	}
}

// envVarPattern matches ${VAR} and ${VAR:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// substituteEnvVars replaces ${VAR} with the environment value. ${VAR:-default}
// falls back to default when VAR is unset or empty. Unresolved names are
// returned in missing and left in place.
func substituteEnvVars(content string) (string, []string) {
	var missing []string
	seen := make(map[string]bool)

	out := envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		parts := envVarPattern.FindStringSubmatch(match)
		name := parts[1]
		hasDefault := strings.Contains(match, ":-")

		value, ok := os.LookupEnv(name)
		if ok && value != "" {
			return value
		}
		if hasDefault {
			return parts[2]
		}
		if ok {
			return value
		}
		if !seen[name] {
			seen[name] = true
			missing = append(missing, name)
		}
		return match
	})
	return out, missing
}
