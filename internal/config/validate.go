// internal/config/validate.go
package config

import (
	"fmt"
	"os"
	"os/exec"
)

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true, "": true,
}

var validModes = map[string]bool{
	"copy": true, "reference": true,
}

// Validate checks the configuration for errors.
// Returns a slice of error messages (empty if valid).
func (c *Config) Validate() []string {
	var errs []string

	if c.Server.Port != 0 && (c.Server.Port < 1 || c.Server.Port > 65535) {
		errs = append(errs, fmt.Sprintf("server.port: must be between 1 and 65535, got %d", c.Server.Port))
	}
	if !validLogLevels[c.Server.LogLevel] {
		errs = append(errs, fmt.Sprintf("server.log_level: must be one of debug, info, warn, error; got %q", c.Server.LogLevel))
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path: required")
	}
	if c.Library.Root == "" {
		errs = append(errs, "library.root: required")
	}

	if c.Import.AdmissionCeiling < 0 {
		errs = append(errs, fmt.Sprintf("import.admission_ceiling: must be positive, got %d", c.Import.AdmissionCeiling))
	}
	if c.Import.PacingScale < 0 {
		errs = append(errs, fmt.Sprintf("import.pacing_scale: must not be negative, got %g", c.Import.PacingScale))
	}
	if c.Import.FileTimeout < 0 {
		errs = append(errs, "import.file_timeout: must not be negative")
	}
	if c.Import.MemoryThreshold < 0 || c.Import.MemoryThreshold > 100 {
		errs = append(errs, fmt.Sprintf("import.memory_threshold: must be a percentage between 0 and 100, got %g", c.Import.MemoryThreshold))
	}
	if !validModes[c.Import.DefaultMode] {
		errs = append(errs, fmt.Sprintf("import.default_mode: must be copy or reference; got %q", c.Import.DefaultMode))
	}

	v := c.Validation
	if v.MinSize < 0 || v.MaxSize < 0 {
		errs = append(errs, "validation: sizes must not be negative")
	}
	if v.MaxSize > 0 && v.MinSize > v.MaxSize {
		errs = append(errs, fmt.Sprintf("validation.min_size: %d exceeds max_size %d", v.MinSize, v.MaxSize))
	}
	if v.MaxDuration > 0 && v.MinDuration > v.MaxDuration {
		errs = append(errs, fmt.Sprintf("validation.min_duration: %s exceeds max_duration %s", v.MinDuration, v.MaxDuration))
	}

	return errs
}

// Warnings reports environment problems that don't stop loading, such as
// a missing ffprobe binary.
func (c *Config) Warnings() []string {
	var warns []string
	if c.Library.Root != "" {
		if _, err := os.Stat(c.Library.Root); os.IsNotExist(err) {
			warns = append(warns, fmt.Sprintf("library.root: directory %q does not exist and will be created", c.Library.Root))
		}
	}
	if c.Validation.FFProbe != "" {
		if _, err := exec.LookPath(c.Validation.FFProbe); err != nil {
			warns = append(warns, fmt.Sprintf("validation.ffprobe: %q not found; every file will fail extraction", c.Validation.FFProbe))
		}
	}
	return warns
}
