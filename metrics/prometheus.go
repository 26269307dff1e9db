package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "verdict"

var (
	runsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "runs_total"),
		"Test runs by lifecycle stage.",
		[]string{"suite", "stage"}, nil,
	)
	hookBatchesDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "hooks", "batches_total"),
		"Before-all and after-all hook batches executed.",
		[]string{"suite"}, nil,
	)
	hookFailuresDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "hooks", "failures_total"),
		"Hook batches that ended with a collected failure.",
		[]string{"suite"}, nil,
	)
	testCasesDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "test_cases_total"),
		"Test cases handed to a runner.",
		[]string{"suite"}, nil,
	)
	runnerFailuresDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "runner_failures_total"),
		"Failures to obtain a runner.",
		[]string{"suite"}, nil,
	)
	escalationsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "escalations_total"),
		"Unrecoverable errors that bypassed collection.",
		[]string{"suite"}, nil,
	)
	eventsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "events_total"),
		"Events delivered on the run's event bus.",
		[]string{"suite"}, nil,
	)
	failuresDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "failures"),
		"Failures held by the run collector at finish.",
		[]string{"suite", "kind"}, nil,
	)
)

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- runsDesc
	ch <- hookBatchesDesc
	ch <- hookFailuresDesc
	ch <- testCasesDesc
	ch <- runnerFailuresDesc
	ch <- escalationsDesc
	ch <- eventsDesc
	ch <- failuresDesc
}

// Collect implements prometheus.Collector from a fresh Snapshot.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.Snapshot()
	counter := func(desc *prometheus.Desc, v int64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(v), labels...)
	}
	gauge := func(desc *prometheus.Desc, v int64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, float64(v), labels...)
	}

	counter(runsDesc, s.RunsStarted, s.Suite, "started")
	counter(runsDesc, s.RunsSucceeded, s.Suite, "succeeded")
	counter(runsDesc, s.RunsFailed, s.Suite, "failed")
	counter(hookBatchesDesc, s.HookBatches, s.Suite)
	counter(hookFailuresDesc, s.HookFailures, s.Suite)
	counter(testCasesDesc, s.TestCases, s.Suite)
	counter(runnerFailuresDesc, s.RunnerFailures, s.Suite)
	counter(escalationsDesc, s.Escalations, s.Suite)
	counter(eventsDesc, s.EventsDelivered, s.Suite)

	var aborted int64
	if s.PrimaryAborted {
		aborted = 1
	}
	gauge(failuresDesc, s.FailuresCollected, s.Suite, "collected")
	gauge(failuresDesc, s.FailuresSuppressed, s.Suite, "suppressed")
	gauge(failuresDesc, aborted, s.Suite, "primary_aborted")
}

// WriteTextfile writes the collector in the Prometheus text format to path,
// for pickup by a node exporter textfile collector.
func (c *Collector) WriteTextfile(path string) error {
	reg := prometheus.NewRegistry()
	if err := reg.Register(c); err != nil {
		return err
	}
	return prometheus.WriteToTextfile(path, reg)
}

var _ prometheus.Collector = (*Collector)(nil)
