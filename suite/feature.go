package suite

import (
	"context"
	"time"

	"github.com/pithecene-io/verdict/types"
)

// ParsedFeature is the structure published in TestSourceParsed.
type ParsedFeature struct {
	URI         string           `msgpack:"uri" json:"uri" yaml:"uri"`
	Description string           `msgpack:"description,omitempty" json:"description,omitempty" yaml:"description,omitempty"`
	Scenarios   []ParsedScenario `msgpack:"scenarios" json:"scenarios" yaml:"scenarios"`
}

// ParsedScenario is a scenario as it appears in a ParsedFeature.
type ParsedScenario struct {
	Name string   `msgpack:"name" json:"name" yaml:"name"`
	Tags []string `msgpack:"tags,omitempty" json:"tags,omitempty" yaml:"tags,omitempty"`
}

// Feature is a feature loaded from a suite file.
type Feature struct {
	uri    string
	source string
	parsed *ParsedFeature
	events []types.Event
}

func (f *Feature) URI() string    { return f.uri }
func (f *Feature) Source() string { return f.source }
func (f *Feature) Parsed() any    { return f.parsed }

// ParseEvents returns one ScenarioCompiled per selected scenario.
func (f *Feature) ParseEvents() []types.Event { return f.events }

func newFeature(uri, source string, parsed *ParsedFeature, selected []*Scenario, now func() time.Time) *Feature {
	events := make([]types.Event, 0, len(selected))
	for _, sc := range selected {
		events = append(events, &types.ScenarioCompiled{At: now(), URI: uri, Name: sc.name})
	}
	return &Feature{uri: uri, source: source, parsed: parsed, events: events}
}

// Scenario is a scenario command, ready to run as a test case.
type Scenario struct {
	uri  string
	name string
	tags []string
	cmd  *Command
}

func (s *Scenario) URI() string  { return s.uri }
func (s *Scenario) Name() string { return s.name }

// Tags returns the scenario's tags.
func (s *Scenario) Tags() []string { return s.tags }

// Run executes the scenario command.
func (s *Scenario) Run(ctx context.Context) error { return s.cmd.Run(ctx) }
