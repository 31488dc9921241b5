// Package metrics aggregates wait and request latencies into percentile
// summaries using HDR histograms.
package metrics

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/abdul-hamid-achik/playspec/packages/wait"
)

const (
	// Histogram: 1us to 5 minutes, 3 significant digits
	minLatencyUs = 1
	maxLatencyUs = 300_000_000
	sigFigs      = 3
)

// Collector aggregates wait and request latencies by name. It implements
// wait.Recorder and is safe for concurrent use by parallel checks.
type Collector struct {
	mu      sync.Mutex
	series  map[string]*series
	started time.Time
}

type series struct {
	total     int64
	failures  int64
	timeouts  int64
	histogram *hdrhistogram.Histogram
}

// Summary is the latency breakdown for one name.
type Summary struct {
	Name     string        `json:"name"`
	Count    int64         `json:"count"`
	Failures int64         `json:"failures"`
	Timeouts int64         `json:"timeouts"`
	P50      time.Duration `json:"p50"`
	P95      time.Duration `json:"p95"`
	P99      time.Duration `json:"p99"`
	Max      time.Duration `json:"max"`
	Mean     time.Duration `json:"mean"`
}

func NewCollector() *Collector {
	return &Collector{
		series:  make(map[string]*series),
		started: time.Now(),
	}
}

// Record adds one observation. Wait timeouts and exceeded deadlines count as
// timeouts as well as failures.
func (c *Collector) Record(name string, duration time.Duration, err error) {
	latencyUs := duration.Microseconds()
	if latencyUs < minLatencyUs {
		latencyUs = minLatencyUs
	}
	if latencyUs > maxLatencyUs {
		latencyUs = maxLatencyUs
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.series[name]
	if !ok {
		s = &series{histogram: hdrhistogram.New(minLatencyUs, maxLatencyUs, sigFigs)}
		c.series[name] = s
	}

	s.total++
	if err != nil {
		s.failures++
		if wait.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
			s.timeouts++
		}
	}
	_ = s.histogram.RecordValue(latencyUs)
}

// Summaries returns one Summary per recorded name, sorted by name.
func (c *Collector) Summaries() []Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Summary, 0, len(c.series))
	for name, s := range c.series {
		h := s.histogram
		out = append(out, Summary{
			Name:     name,
			Count:    s.total,
			Failures: s.failures,
			Timeouts: s.timeouts,
			P50:      time.Duration(h.ValueAtQuantile(50)) * time.Microsecond,
			P95:      time.Duration(h.ValueAtQuantile(95)) * time.Microsecond,
			P99:      time.Duration(h.ValueAtQuantile(99)) * time.Microsecond,
			Max:      time.Duration(h.Max()) * time.Microsecond,
			Mean:     time.Duration(h.Mean()) * time.Microsecond,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Elapsed is the time since the collector was created.
func (c *Collector) Elapsed() time.Duration {
	return time.Since(c.started)
}

// Threshold bounds the p95 latency of one name.
type Threshold struct {
	Name string
	P95  time.Duration
}

// ThresholdResult reports whether a Threshold held.
type ThresholdResult struct {
	Name     string
	Passed   bool
	Expected time.Duration
	Actual   time.Duration
}

// Evaluate checks thresholds against the recorded data. Names with no data pass.
func (c *Collector) Evaluate(thresholds []Threshold) []ThresholdResult {
	byName := make(map[string]Summary)
	for _, s := range c.Summaries() {
		byName[s.Name] = s
	}

	results := make([]ThresholdResult, 0, len(thresholds))
	for _, t := range thresholds {
		s := byName[t.Name]
		results = append(results, ThresholdResult{
			Name:     t.Name,
			Passed:   s.Count == 0 || s.P95 <= t.P95,
			Expected: t.P95,
			Actual:   s.P95,
		})
	}
	return results
}
