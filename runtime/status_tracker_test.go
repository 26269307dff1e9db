package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pithecene-io/verdict/eventbus"
	"github.com/pithecene-io/verdict/types"
)

func finishCase(bus *eventbus.Bus, name string, status types.Status) {
	bus.Send(&types.TestCaseFinished{
		At:     bus.Instant(),
		URI:    "features/a.feature",
		Name:   name,
		Result: types.Result{Status: status},
	})
}

func TestStatusTracker_DefaultsToPassed(t *testing.T) {
	tracker := NewStatusTracker(false)
	assert.Equal(t, types.StatusPassed, tracker.Status())
	assert.True(t, tracker.IsSuccess())
}

func TestStatusTracker_KeepsWorstStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []types.Status
		strict   bool
		want     types.Status
		success  bool
	}{
		{"all passed", []types.Status{types.StatusPassed, types.StatusPassed}, false, types.StatusPassed, true},
		{"skipped", []types.Status{types.StatusPassed, types.StatusSkipped}, true, types.StatusSkipped, true},
		{"pending lenient", []types.Status{types.StatusPending, types.StatusSkipped}, false, types.StatusPending, true},
		{"pending strict", []types.Status{types.StatusPending}, true, types.StatusPending, false},
		{"undefined strict", []types.Status{types.StatusUndefined, types.StatusPending}, true, types.StatusUndefined, false},
		{"failed wins", []types.Status{types.StatusFailed, types.StatusAmbiguous, types.StatusPassed}, false, types.StatusFailed, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := eventbus.New("run-001", nil)
			tracker := NewStatusTracker(tt.strict)
			bus.Subscribe(types.EventTypeTestCaseFinished, tracker)

			for i, s := range tt.statuses {
				finishCase(bus, string(rune('a'+i)), s)
			}

			assert.Equal(t, tt.want, tracker.Status())
			assert.Equal(t, tt.success, tracker.IsSuccess())
		})
	}
}

func TestStatusTracker_IgnoresOtherEvents(t *testing.T) {
	bus := eventbus.New("run-001", nil)
	tracker := NewStatusTracker(false)
	bus.SubscribeAll(tracker)

	bus.Send(&types.TestRunFinished{Result: types.Result{Status: types.StatusFailed}})

	assert.Equal(t, types.StatusPassed, tracker.Status())
	assert.Empty(t, tracker.Counts())
}

func TestStatusTracker_Counts(t *testing.T) {
	bus := eventbus.New("run-001", nil)
	tracker := NewStatusTracker(false)
	bus.Subscribe(types.EventTypeTestCaseFinished, tracker)

	finishCase(bus, "a", types.StatusPassed)
	finishCase(bus, "b", types.StatusPassed)
	finishCase(bus, "c", types.StatusFailed)

	assert.Equal(t, map[types.Status]int{
		types.StatusPassed: 2,
		types.StatusFailed: 1,
	}, tracker.Counts())
}
