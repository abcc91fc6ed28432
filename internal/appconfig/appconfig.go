// internal/appconfig/appconfig.go
// Package appconfig manages loading and interpreting application configuration.
package appconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// DefaultConfigPath is the default path to the application's configuration file.
	DefaultConfigPath = "config/config.json"
	// defaultRequestTimeout bounds a single model call.
	defaultRequestTimeout = 600 * time.Second
	// defaultInterval is the time between two scheduler passes.
	defaultInterval = 24 * time.Hour
	// defaultPollInterval is the idle sleep of the scheduler loop.
	defaultPollInterval = time.Second
	// defaultConcurrency caps concurrent prompt evaluations.
	defaultConcurrency = 4
	// defaultDataDir holds markers, artifacts and local uploads.
	defaultDataDir = "sieveData"
	// defaultUploadTimeout bounds one registry call.
	defaultUploadTimeout = 60 * time.Second
)

// Marker store backends.
const (
	MarkerStoreFile   = "file"
	MarkerStoreSQLite = "sqlite"
)

// Config represents the top-level application configuration.
type Config struct {
	Hosts               []Host     `json:"hosts" mapstructure:"hosts"`
	Sources             []Source   `json:"sources" mapstructure:"sources"`
	TestModels          []ModelRef `json:"testModels" mapstructure:"testModels"`
	TestingEnabled      *bool      `json:"testingEnabled,omitempty" mapstructure:"testingEnabled"`
	Judge               ModelRef   `json:"judge" mapstructure:"judge"`
	IntervalHours       float64    `json:"intervalHours,omitempty" mapstructure:"intervalHours"`
	PollIntervalSeconds int        `json:"pollIntervalSeconds,omitempty" mapstructure:"pollIntervalSeconds"`
	Concurrency         int        `json:"concurrency,omitempty" mapstructure:"concurrency"`
	TimeoutSeconds      int        `json:"timeout,omitempty" mapstructure:"timeout"`
	CycleTimeoutMinutes int        `json:"cycleTimeoutMinutes,omitempty" mapstructure:"cycleTimeoutMinutes"`
	DataDir             string     `json:"dataDir,omitempty" mapstructure:"dataDir"`
	MarkerStore         string     `json:"markerStore,omitempty" mapstructure:"markerStore"`
	Registry            Registry   `json:"registry" mapstructure:"registry"`
	StatusAddr          string     `json:"statusAddr,omitempty" mapstructure:"statusAddr"`
	LogFile             string     `json:"logFile,omitempty" mapstructure:"logFile"`
	Debug               bool       `json:"debug" mapstructure:"debug"`
	ConfigPath          string     `json:"-" mapstructure:"-"`
}

// Host represents a single backend that can serve language models.
type Host struct {
	Name       string     `json:"name" mapstructure:"name"`
	URL        string     `json:"url" mapstructure:"url"`
	Type       string     `json:"type" mapstructure:"type"`
	APIKey     string     `json:"apiKey,omitempty" mapstructure:"apiKey"`
	Models     []string   `json:"models,omitempty" mapstructure:"models"`
	Parameters Parameters `json:"parameters" mapstructure:"parameters"`
}

// Parameters defines the sampling knobs forwarded to a backend.
type Parameters struct {
	TopK        *int     `json:"top_k,omitempty" mapstructure:"top_k"`
	TopP        *float64 `json:"top_p,omitempty" mapstructure:"top_p"`
	Temperature *float64 `json:"temperature,omitempty" mapstructure:"temperature"`
	MaxTokens   *int     `json:"max_tokens,omitempty" mapstructure:"max_tokens"`
	Seed        *int     `json:"seed,omitempty" mapstructure:"seed"`
}

// ModelRef names one model on one configured host.
type ModelRef struct {
	Host  string `json:"host" mapstructure:"host"`
	Model string `json:"model" mapstructure:"model"`
}

// String renders the ref as host/model.
func (m ModelRef) String() string {
	return m.Host + "/" + m.Model
}

// IsZero reports whether the ref is unset.
func (m ModelRef) IsZero() bool {
	return strings.TrimSpace(m.Host) == "" && strings.TrimSpace(m.Model) == ""
}

// Source identifies one feed processed by the pipeline.
type Source struct {
	Name             string          `json:"name" mapstructure:"name"`
	Collector        string          `json:"collector" mapstructure:"collector"`
	Generator        string          `json:"generator" mapstructure:"generator"`
	BenchmarkID      int             `json:"benchmarkId" mapstructure:"benchmarkId"`
	Locator          string          `json:"locator" mapstructure:"locator"`
	CollectorOptions map[string]any  `json:"collectorOptions,omitempty" mapstructure:"collectorOptions"`
	GeneratorOptions map[string]any  `json:"generatorOptions,omitempty" mapstructure:"generatorOptions"`
	Transforms       []TransformSpec `json:"transforms,omitempty" mapstructure:"transforms"`
	Disabled         bool            `json:"disabled,omitempty" mapstructure:"disabled"`
}

// TransformSpec selects a post-collection transform and its target fields.
type TransformSpec struct {
	Type   string   `json:"type" mapstructure:"type"`
	Fields []string `json:"fields,omitempty" mapstructure:"fields"`
}

// Registry configures where accepted prompts are published. An empty URL
// selects the local JSONL uploader rooted at Dir.
type Registry struct {
	URL            string `json:"url,omitempty" mapstructure:"url"`
	Token          string `json:"token,omitempty" mapstructure:"token"`
	Dir            string `json:"dir,omitempty" mapstructure:"dir"`
	TimeoutSeconds int    `json:"timeout,omitempty" mapstructure:"timeout"`
}

// RequestTimeout returns the timeout of a single model call.
func (c Config) RequestTimeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return defaultRequestTimeout
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Interval returns the time between scheduler passes.
func (c Config) Interval() time.Duration {
	if c.IntervalHours <= 0 {
		return defaultInterval
	}
	return time.Duration(c.IntervalHours * float64(time.Hour))
}

// PollInterval returns the idle sleep of the scheduler loop.
func (c Config) PollInterval() time.Duration {
	if c.PollIntervalSeconds <= 0 {
		return defaultPollInterval
	}
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// CycleTimeout returns the per-source watchdog, zero when disabled.
func (c Config) CycleTimeout() time.Duration {
	if c.CycleTimeoutMinutes <= 0 {
		return 0
	}
	return time.Duration(c.CycleTimeoutMinutes) * time.Minute
}

// WorkerLimit returns how many prompts may be evaluated at once.
func (c Config) WorkerLimit() int {
	if c.Concurrency <= 0 {
		return defaultConcurrency
	}
	return c.Concurrency
}

// Testing reports whether generated prompts are evaluated before gating.
func (c Config) Testing() bool {
	if c.TestingEnabled == nil {
		return true
	}
	return *c.TestingEnabled
}

// DataPath returns the root directory for persisted state.
func (c Config) DataPath() string {
	if d := strings.TrimSpace(c.DataDir); d != "" {
		return d
	}
	return defaultDataDir
}

// MarkersDir holds processed markers for the file marker store.
func (c Config) MarkersDir() string { return filepath.Join(c.DataPath(), "markers") }

// ArtifactsDir holds collected batches and prompt debug files.
func (c Config) ArtifactsDir() string { return filepath.Join(c.DataPath(), "artifacts") }

// MarkerDBPath is the SQLite file used by the sqlite marker store.
func (c Config) MarkerDBPath() string { return filepath.Join(c.DataPath(), "markers.db") }

// LockPath is the single-instance lock file of the daemon.
func (c Config) LockPath() string { return filepath.Join(c.DataPath(), "sieve.lock") }

// MarkerBackend returns the normalized marker store name.
func (c Config) MarkerBackend() string {
	switch strings.ToLower(strings.TrimSpace(c.MarkerStore)) {
	case MarkerStoreSQLite:
		return MarkerStoreSQLite
	default:
		return MarkerStoreFile
	}
}

// RegistryDir is where the local uploader appends accepted prompts.
func (c Config) RegistryDir() string {
	if d := strings.TrimSpace(c.Registry.Dir); d != "" {
		return d
	}
	return filepath.Join(c.DataPath(), "registry")
}

// UploadTimeout bounds a single registry call.
func (c Config) UploadTimeout() time.Duration {
	if c.Registry.TimeoutSeconds <= 0 {
		return defaultUploadTimeout
	}
	return time.Duration(c.Registry.TimeoutSeconds) * time.Second
}

// LogFilePath returns the path to the application log file, applying a default if not set.
func (c Config) LogFilePath() string {
	if path := c.LogFile; strings.TrimSpace(path) != "" {
		return path
	}
	return filepath.Join(c.DataPath(), "sieve.log")
}

// HostByName finds a configured host.
func (c Config) HostByName(name string) (Host, bool) {
	for _, h := range c.Hosts {
		if strings.EqualFold(strings.TrimSpace(h.Name), strings.TrimSpace(name)) {
			return h, true
		}
	}
	return Host{}, false
}

// ActiveSources returns the sources that are not disabled, in configured order.
func (c Config) ActiveSources() []Source {
	out := make([]Source, 0, len(c.Sources))
	for _, s := range c.Sources {
		if !s.Disabled {
			out = append(out, s)
		}
	}
	return out
}

// SourceByName finds a configured source.
func (c Config) SourceByName(name string) (Source, bool) {
	for _, s := range c.Sources {
		if s.Name == name {
			return s, true
		}
	}
	return Source{}, false
}

// Validate reports configuration errors that must stop the process before
// the scheduling loop begins.
func (c Config) Validate() error {
	var errs []error
	if len(c.Sources) == 0 {
		errs = append(errs, errors.New("config must contain at least one source"))
	}

	hostNames := make(map[string]struct{}, len(c.Hosts))
	for i, h := range c.Hosts {
		name := strings.ToLower(strings.TrimSpace(h.Name))
		if name == "" {
			errs = append(errs, fmt.Errorf("hosts[%d]: name is required", i))
			continue
		}
		if _, dup := hostNames[name]; dup {
			errs = append(errs, fmt.Errorf("hosts[%d]: duplicate host name %q", i, h.Name))
		}
		hostNames[name] = struct{}{}
		if strings.TrimSpace(h.URL) == "" {
			errs = append(errs, fmt.Errorf("host %q: url is required", h.Name))
		}
	}

	sourceNames := make(map[string]struct{}, len(c.Sources))
	for i, s := range c.Sources {
		if strings.TrimSpace(s.Name) == "" {
			errs = append(errs, fmt.Errorf("sources[%d]: name is required", i))
		} else if _, dup := sourceNames[s.Name]; dup {
			errs = append(errs, fmt.Errorf("sources[%d]: duplicate source name %q", i, s.Name))
		}
		sourceNames[s.Name] = struct{}{}
		if strings.TrimSpace(s.Collector) == "" || strings.TrimSpace(s.Generator) == "" {
			errs = append(errs, fmt.Errorf("source %q: collector and generator are required", s.Name))
		}
		if strings.Contains(s.Collector, ".") || strings.Contains(s.Generator, ".") {
			errs = append(errs, fmt.Errorf("source %q: collector and generator ids must not contain '.'", s.Name))
		}
		if s.BenchmarkID <= 0 {
			errs = append(errs, fmt.Errorf("source %q: benchmarkId must be positive", s.Name))
		}
	}

	checkRef := func(label string, ref ModelRef) {
		if strings.TrimSpace(ref.Model) == "" {
			errs = append(errs, fmt.Errorf("%s: model is required", label))
		}
		if _, ok := hostNames[strings.ToLower(strings.TrimSpace(ref.Host))]; !ok {
			errs = append(errs, fmt.Errorf("%s: unknown host %q", label, ref.Host))
		}
	}
	if c.Testing() {
		if len(c.TestModels) == 0 {
			errs = append(errs, errors.New("testing is enabled but no testModels are configured"))
		}
		for i, ref := range c.TestModels {
			checkRef(fmt.Sprintf("testModels[%d]", i), ref)
		}
	}
	if !c.Judge.IsZero() {
		checkRef("judge", c.Judge)
	}

	switch strings.ToLower(strings.TrimSpace(c.MarkerStore)) {
	case "", MarkerStoreFile, MarkerStoreSQLite:
	default:
		errs = append(errs, fmt.Errorf("markerStore: unsupported value %q", c.MarkerStore))
	}

	return errors.Join(errs...)
}

// Load reads, schema-checks and validates the configuration file at path.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultConfigPath
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("no configuration file found at %q", path)
		}
		return Config{}, fmt.Errorf("could not read config file %q: %w", path, err)
	}

	cfg, err := Parse(raw)
	if err != nil {
		return Config{}, fmt.Errorf("config file %q: %w", path, err)
	}
	cfg.ConfigPath = path
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config file %q: %w", path, err)
	}
	return cfg, nil
}
