// Package suite turns a loaded suite file into the features, test cases and
// hooks a run executes. Every hook and scenario is a shell command.
package suite

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pithecene-io/verdict/cli/config"
	"github.com/pithecene-io/verdict/runner"
	"github.com/pithecene-io/verdict/runtime"
)

// Environment variables set for every command.
const (
	EnvRunID    = "VERDICT_RUN_ID"
	EnvSuite    = "VERDICT_SUITE"
	EnvFeature  = "VERDICT_FEATURE"
	EnvScenario = "VERDICT_SCENARIO"
	EnvHook     = "VERDICT_HOOK"
)

// Options adjusts how a suite is built.
type Options struct {
	// RunID is exported to commands as VERDICT_RUN_ID.
	RunID string
	// Tags selects scenarios carrying at least one of them. Empty selects all.
	Tags []string
	// Now stamps ScenarioCompiled events. Defaults to time.Now.
	Now func() time.Time
	// Environ is the base environment of every command. Defaults to os.Environ().
	Environ []string
	// Output receives command output as it is produced, if set.
	Output io.Writer
}

// Plan is a suite ready to execute.
type Plan struct {
	Features  []runtime.PlannedFeature
	BeforeAll []runner.Hook
	AfterAll  []runner.Hook
}

// TestCaseCount returns the number of selected scenarios.
func (p *Plan) TestCaseCount() int {
	n := 0
	for _, f := range p.Features {
		n += len(f.TestCases)
	}
	return n
}

// Build compiles s into a Plan. Features whose scenarios are all filtered
// out by tags are dropped.
func Build(s *config.Suite, opts Options) (*Plan, error) {
	if s == nil {
		return nil, errors.New("suite is required")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Environ == nil {
		opts.Environ = os.Environ()
	}

	b := &builder{suite: s, opts: opts, baseDir: baseDir(s)}
	plan := &Plan{
		BeforeAll: b.hooks("before_all", s.Hooks.BeforeAll),
		AfterAll:  b.hooks("after_all", s.Hooks.AfterAll),
	}

	for _, fc := range s.Features {
		pf, err := b.feature(fc)
		if err != nil {
			return nil, err
		}
		if pf != nil {
			plan.Features = append(plan.Features, *pf)
		}
	}
	return plan, nil
}

type builder struct {
	suite   *config.Suite
	opts    Options
	baseDir string
}

func baseDir(s *config.Suite) string {
	if s.Path == "" {
		return "."
	}
	return filepath.Dir(s.Path)
}

func (b *builder) resolve(p string) string {
	switch {
	case p == "":
		return b.baseDir
	case filepath.IsAbs(p):
		return p
	}
	return filepath.Join(b.baseDir, p)
}

func (b *builder) command(name, script string, extra ...string) *Command {
	pending, hasPending := b.suite.PendingCode()
	return &Command{
		Name:        name,
		Script:      script,
		Shell:       b.suite.ShellPath(),
		Dir:         b.resolve(b.suite.WorkDir),
		Env:         b.environ(extra...),
		Timeout:     b.suite.Timeout.Duration,
		SkipCode:    b.suite.SkipCode(),
		PendingCode: pending,
		HasPending:  hasPending,
		Output:      b.opts.Output,
	}
}

// environ layers the suite env and the per-command variables over the base
// environment. Later entries win.
func (b *builder) environ(extra ...string) []string {
	env := slices.Clone(b.opts.Environ)

	keys := make([]string, 0, len(b.suite.Env))
	for k := range b.suite.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+b.suite.Env[k])
	}

	if b.opts.RunID != "" {
		env = append(env, EnvRunID+"="+b.opts.RunID)
	}
	if b.suite.Name != "" {
		env = append(env, EnvSuite+"="+b.suite.Name)
	}
	return append(env, extra...)
}

func (b *builder) hooks(phase string, cfgs []config.HookConfig) []runner.Hook {
	hooks := make([]runner.Hook, 0, len(cfgs))
	for i, hc := range cfgs {
		name := hc.Name
		if name == "" {
			name = fmt.Sprintf("%s[%d]", phase, i)
		}
		cmd := b.command(name, hc.Run, EnvHook+"="+name)
		hooks = append(hooks, runner.Hook{Name: name, Fn: cmd.Run})
	}
	return hooks
}

func (b *builder) feature(fc config.FeatureConfig) (*runtime.PlannedFeature, error) {
	parsed := &ParsedFeature{URI: fc.URI, Description: fc.Description}
	var selected []*Scenario
	for _, sc := range fc.Scenarios {
		parsed.Scenarios = append(parsed.Scenarios, ParsedScenario{Name: sc.Name, Tags: sc.Tags})
		if !b.selected(sc.Tags) {
			continue
		}
		selected = append(selected, &Scenario{
			uri:  fc.URI,
			name: sc.Name,
			tags: sc.Tags,
			cmd:  b.command(fc.URI+": "+sc.Name, sc.Run, EnvFeature+"="+fc.URI, EnvScenario+"="+sc.Name),
		})
	}
	if len(selected) == 0 && len(b.opts.Tags) > 0 {
		return nil, nil
	}

	source, err := b.source(fc)
	if err != nil {
		return nil, err
	}

	f := newFeature(fc.URI, source, parsed, selected, b.opts.Now)
	testCases := make([]runtime.TestCase, len(selected))
	for i, sc := range selected {
		testCases[i] = sc
	}
	return &runtime.PlannedFeature{Feature: f, TestCases: testCases}, nil
}

func (b *builder) selected(tags []string) bool {
	if len(b.opts.Tags) == 0 {
		return true
	}
	for _, t := range tags {
		if slices.Contains(b.opts.Tags, t) {
			return true
		}
	}
	return false
}

// source reads the feature file at the URI when there is one. Features that
// exist only in the suite file are published as their YAML definition.
func (b *builder) source(fc config.FeatureConfig) (string, error) {
	data, err := os.ReadFile(b.resolve(fc.URI))
	switch {
	case err == nil:
		return string(data), nil
	case !errors.Is(err, os.ErrNotExist):
		return "", fmt.Errorf("cannot read feature %q: %w", fc.URI, err)
	}

	out, err := yaml.Marshal(fc)
	if err != nil {
		return "", fmt.Errorf("cannot render feature %q: %w", fc.URI, err)
	}
	return string(out), nil
}
