package config

import (
	"errors"
	"fmt"
	"time"
)

// DefaultSkipExitCode is the command exit code reported as a skip when a
// suite does not set skip_exit_code.
const DefaultSkipExitCode = 77

// DefaultShell runs every hook and scenario command.
const DefaultShell = "/bin/sh"

// Suite represents a verdict.yaml suite file. CLI flags override the
// run-level values (strict, events_out, metrics_out, report).
type Suite struct {
	// Path is the file the suite was loaded from. Not part of the document.
	Path string `yaml:"-"`

	Name    string            `yaml:"name"`
	Strict  bool              `yaml:"strict"`
	Shell   string            `yaml:"shell,omitempty"`
	WorkDir string            `yaml:"workdir,omitempty"`
	Env     map[string]string `yaml:"env,omitempty"`
	// Timeout bounds each hook and scenario command. Zero means no limit.
	Timeout Duration `yaml:"timeout,omitempty"`

	SkipExitCode    *int `yaml:"skip_exit_code,omitempty"`
	PendingExitCode *int `yaml:"pending_exit_code,omitempty"`

	Hooks    HooksConfig     `yaml:"hooks"`
	Features []FeatureConfig `yaml:"features"`
	Adapter  AdapterConfig   `yaml:"adapter"`

	EventsOut  string `yaml:"events_out,omitempty"`
	MetricsOut string `yaml:"metrics_out,omitempty"`
	Report     string `yaml:"report,omitempty"`
}

// HooksConfig lists the run-level hooks.
type HooksConfig struct {
	BeforeAll []HookConfig `yaml:"before_all"`
	AfterAll  []HookConfig `yaml:"after_all"`
}

// HookConfig is one hook command.
type HookConfig struct {
	Name string `yaml:"name"`
	Run  string `yaml:"run"`
}

// FeatureConfig is a feature and its scenarios.
type FeatureConfig struct {
	URI         string           `yaml:"uri"`
	Description string           `yaml:"description,omitempty"`
	Scenarios   []ScenarioConfig `yaml:"scenarios"`
}

// ScenarioConfig is one scenario command.
type ScenarioConfig struct {
	Name string   `yaml:"name"`
	Run  string   `yaml:"run"`
	Tags []string `yaml:"tags,omitempty"`
}

// AdapterConfig configures run-finished publishing.
type AdapterConfig struct {
	Type      string            `yaml:"type"`
	URL       string            `yaml:"url"`
	Channel   string            `yaml:"channel,omitempty"`
	LatestKey string            `yaml:"latest_key,omitempty"`
	LatestTTL Duration          `yaml:"latest_ttl,omitempty"`
	Headers   map[string]string `yaml:"headers,omitempty"`
	Timeout   Duration          `yaml:"timeout,omitempty"`
	Retries   *int              `yaml:"retries,omitempty"`
}

// Adapter types.
const (
	AdapterWebhook = "webhook"
	AdapterRedis   = "redis"
)

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if parsed < 0 {
		return fmt.Errorf("invalid duration %q: must not be negative", s)
	}
	d.Duration = parsed
	return nil
}

// MarshalYAML renders the duration in its string form.
func (d Duration) MarshalYAML() (any, error) {
	if d.Duration == 0 {
		return "", nil
	}
	return d.String(), nil
}

// ShellPath returns the configured shell or DefaultShell.
func (s *Suite) ShellPath() string {
	if s.Shell != "" {
		return s.Shell
	}
	return DefaultShell
}

// SkipCode returns the exit code that marks a command as skipped.
func (s *Suite) SkipCode() int {
	if s.SkipExitCode != nil {
		return *s.SkipExitCode
	}
	return DefaultSkipExitCode
}

// PendingCode returns the exit code that marks a command as pending, and
// whether one is configured.
func (s *Suite) PendingCode() (int, bool) {
	if s.PendingExitCode == nil {
		return 0, false
	}
	return *s.PendingExitCode, true
}

// ScenarioCount returns the number of scenarios across all features.
func (s *Suite) ScenarioCount() int {
	n := 0
	for _, f := range s.Features {
		n += len(f.Scenarios)
	}
	return n
}

// Validate checks the suite for structural errors. All problems are
// reported together.
func (s *Suite) Validate() error {
	var errs []error

	if len(s.Features) == 0 {
		errs = append(errs, errors.New("at least one feature is required"))
	}

	seen := make(map[string]bool, len(s.Features))
	for i, f := range s.Features {
		switch {
		case f.URI == "":
			errs = append(errs, fmt.Errorf("features[%d]: uri is required", i))
		case seen[f.URI]:
			errs = append(errs, fmt.Errorf("features[%d]: duplicate uri %q", i, f.URI))
		}
		seen[f.URI] = true
		for j, sc := range f.Scenarios {
			if sc.Name == "" {
				errs = append(errs, fmt.Errorf("features[%d].scenarios[%d]: name is required", i, j))
			}
			if sc.Run == "" {
				errs = append(errs, fmt.Errorf("features[%d].scenarios[%d]: run is required", i, j))
			}
		}
	}

	for i, h := range s.Hooks.BeforeAll {
		if h.Run == "" {
			errs = append(errs, fmt.Errorf("hooks.before_all[%d]: run is required", i))
		}
	}
	for i, h := range s.Hooks.AfterAll {
		if h.Run == "" {
			errs = append(errs, fmt.Errorf("hooks.after_all[%d]: run is required", i))
		}
	}

	skip := s.SkipCode()
	if skip < 1 || skip > 255 {
		errs = append(errs, fmt.Errorf("skip_exit_code must be in 1..255, got %d", skip))
	}
	if pending, ok := s.PendingCode(); ok {
		if pending < 1 || pending > 255 {
			errs = append(errs, fmt.Errorf("pending_exit_code must be in 1..255, got %d", pending))
		}
		if pending == skip {
			errs = append(errs, fmt.Errorf("pending_exit_code and skip_exit_code must differ, both are %d", pending))
		}
	}

	if err := s.Adapter.Validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Validate checks adapter settings. An empty Type means no adapter.
func (a *AdapterConfig) Validate() error {
	switch a.Type {
	case "":
		return nil
	case AdapterWebhook, AdapterRedis:
	default:
		return fmt.Errorf("adapter.type: unknown adapter %q (valid: %s, %s)", a.Type, AdapterWebhook, AdapterRedis)
	}
	if a.URL == "" {
		return fmt.Errorf("adapter.url is required for %s adapter", a.Type)
	}
	if a.Retries != nil && *a.Retries < 0 {
		return fmt.Errorf("adapter.retries must be >= 0, got %d", *a.Retries)
	}
	if a.Type == AdapterWebhook && (a.Channel != "" || a.LatestKey != "") {
		return errors.New("adapter.channel and adapter.latest_key apply only to the redis adapter")
	}
	return nil
}
