package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/banshee-data/labrun/internal/widen"
)

// ErrInvalidConfig is returned for a config that fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// maxFileSize bounds config files read by LoadRunConfig.
const maxFileSize = 1 * 1024 * 1024 // 1MB

// RunConfig configures one labrun invocation. Every field is optional in the
// file; the Get* methods supply defaults for fields left unset, so partial
// configs are safe.
type RunConfig struct {
	Machine   *string `yaml:"machine,omitempty"`
	DataRoot  *string `yaml:"data_root,omitempty"`
	OutputDir *string `yaml:"output_dir,omitempty"`
	// Timezone is an IANA name used for timestamps without an offset.
	Timezone *string `yaml:"timezone,omitempty"`

	Recorder RecorderConfig `yaml:"recorder,omitempty"`
	Logger   LoggerConfig   `yaml:"logger,omitempty"`

	// Summary enables the per-interval summary file.
	Summary *bool `yaml:"summary,omitempty"`
	// DBPath is the run archive database. Empty disables archiving.
	DBPath    *string `yaml:"db_path,omitempty"`
	LogLevel  *string `yaml:"log_level,omitempty"`
	LogFormat *string `yaml:"log_format,omitempty"`
}

// RecorderConfig describes the datarecorder export format.
type RecorderConfig struct {
	Delimiter       *string `yaml:"delimiter,omitempty"`
	TimestampColumn *string `yaml:"timestamp_column,omitempty"`
}

// LoggerConfig controls logger normalisation.
type LoggerConfig struct {
	// FillScope is "concatenated" or "per_source".
	FillScope *string `yaml:"fill_scope,omitempty"`
}

func ptrString(v string) *string { return &v }
func ptrBool(v bool) *bool       { return &v }

// EmptyRunConfig returns a RunConfig with all fields unset.
func EmptyRunConfig() *RunConfig {
	return &RunConfig{}
}

// LoadRunConfig loads a RunConfig from a YAML or JSON file. The file must
// have a .yaml, .yml or .json extension and be at most 1MB.
func LoadRunConfig(path string) (*RunConfig, error) {
	cleanPath := filepath.Clean(path)
	switch ext := strings.ToLower(filepath.Ext(cleanPath)); ext {
	case ".yaml", ".yml", ".json":
	default:
		return nil, fmt.Errorf("config file must have .yaml, .yml or .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// JSON is a subset of YAML, so one decoder serves both extensions.
	cfg := EmptyRunConfig()
	if len(strings.TrimSpace(string(data))) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", cleanPath, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Overrides are command-line values. Zero values leave the config untouched.
type Overrides struct {
	Machine   string
	DataRoot  string
	OutputDir string
	DBPath    string
	FillScope string
	Summary   bool
}

// Apply copies every set override into c.
func (c *RunConfig) Apply(o Overrides) {
	if o.Machine != "" {
		c.Machine = ptrString(o.Machine)
	}
	if o.DataRoot != "" {
		c.DataRoot = ptrString(o.DataRoot)
	}
	if o.OutputDir != "" {
		c.OutputDir = ptrString(o.OutputDir)
	}
	if o.DBPath != "" {
		c.DBPath = ptrString(o.DBPath)
	}
	if o.FillScope != "" {
		c.Logger.FillScope = ptrString(o.FillScope)
	}
	if o.Summary {
		c.Summary = ptrBool(true)
	}
}

// Validate checks the values that are set. A missing machine is not an
// error here because it may still come from the command line; use
// RequireMachine once all sources are merged.
func (c *RunConfig) Validate() error {
	if c.Timezone != nil {
		if _, err := time.LoadLocation(*c.Timezone); err != nil {
			return fmt.Errorf("%w: timezone %q: %v", ErrInvalidConfig, *c.Timezone, err)
		}
	}
	if c.Recorder.Delimiter != nil && utf8.RuneCountInString(*c.Recorder.Delimiter) != 1 {
		return fmt.Errorf("%w: recorder.delimiter must be a single character, got %q", ErrInvalidConfig, *c.Recorder.Delimiter)
	}
	if c.Recorder.TimestampColumn != nil && strings.TrimSpace(*c.Recorder.TimestampColumn) == "" {
		return fmt.Errorf("%w: recorder.timestamp_column must not be blank", ErrInvalidConfig)
	}
	if c.Logger.FillScope != nil {
		if _, err := widen.ParseFillScope(*c.Logger.FillScope); err != nil {
			return fmt.Errorf("%w: logger.fill_scope: %v", ErrInvalidConfig, err)
		}
	}
	if c.LogLevel != nil && *c.LogLevel != "" {
		var lvl zapcore.Level
		if err := lvl.Set(*c.LogLevel); err != nil {
			return fmt.Errorf("%w: log_level: %v", ErrInvalidConfig, err)
		}
	}
	if c.LogFormat != nil {
		if f := *c.LogFormat; f != "json" && f != "console" {
			return fmt.Errorf("%w: log_format must be json or console, got %q", ErrInvalidConfig, f)
		}
	}
	return nil
}

// RequireMachine reports an error when no machine has been selected.
func (c *RunConfig) RequireMachine() error {
	if strings.TrimSpace(c.GetMachine()) == "" {
		return fmt.Errorf("%w: machine is required", ErrInvalidConfig)
	}
	return nil
}

// GetMachine returns the machine selector as given, upper-cased.
func (c *RunConfig) GetMachine() string {
	if c.Machine == nil {
		return ""
	}
	return strings.ToUpper(strings.TrimSpace(*c.Machine))
}

// GetDataRoot returns the machine data folder, defaulting to data/<MACHINE>.
func (c *RunConfig) GetDataRoot() string {
	if c.DataRoot == nil || *c.DataRoot == "" {
		return filepath.Join("data", c.GetMachine())
	}
	return *c.DataRoot
}

// GetOutputDir returns the output folder or the default "output".
func (c *RunConfig) GetOutputDir() string {
	if c.OutputDir == nil || *c.OutputDir == "" {
		return "output"
	}
	return *c.OutputDir
}

// GetLocation resolves the configured timezone, defaulting to UTC.
func (c *RunConfig) GetLocation() (*time.Location, error) {
	if c.Timezone == nil || *c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(*c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %v", ErrInvalidConfig, *c.Timezone, err)
	}
	return loc, nil
}

// GetRecorderDelimiter returns the datarecorder delimiter or ','.
func (c *RunConfig) GetRecorderDelimiter() rune {
	if c.Recorder.Delimiter == nil {
		return ','
	}
	r, _ := utf8.DecodeRuneInString(*c.Recorder.Delimiter)
	if r == utf8.RuneError {
		return ','
	}
	return r
}

// GetTimestampColumn returns the datarecorder time column or "Timestamp".
func (c *RunConfig) GetTimestampColumn() string {
	if c.Recorder.TimestampColumn == nil || *c.Recorder.TimestampColumn == "" {
		return "Timestamp"
	}
	return *c.Recorder.TimestampColumn
}

// GetFillScope returns the serial fill scope, FillConcatenated by default.
func (c *RunConfig) GetFillScope() widen.FillScope {
	if c.Logger.FillScope == nil {
		return widen.FillConcatenated
	}
	s, err := widen.ParseFillScope(*c.Logger.FillScope)
	if err != nil {
		return widen.FillConcatenated
	}
	return s
}

// GetSummary reports whether the interval summary is written.
func (c *RunConfig) GetSummary() bool {
	if c.Summary == nil {
		return false
	}
	return *c.Summary
}

// GetDBPath returns the run archive path, empty when archiving is off.
func (c *RunConfig) GetDBPath() string {
	if c.DBPath == nil {
		return ""
	}
	return *c.DBPath
}

// GetLogLevel returns the configured log level, empty to defer to LOG_LEVEL.
func (c *RunConfig) GetLogLevel() string {
	if c.LogLevel == nil {
		return ""
	}
	return *c.LogLevel
}

// GetLogFormat returns "json" or the default "console".
func (c *RunConfig) GetLogFormat() string {
	if c.LogFormat == nil || *c.LogFormat == "" {
		return "console"
	}
	return *c.LogFormat
}
