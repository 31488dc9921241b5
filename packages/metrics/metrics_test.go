package metrics

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/playspec/packages/wait"
)

func TestCollectorRecord(t *testing.T) {
	c := NewCollector()

	c.Record("visible", 100*time.Millisecond, nil)
	c.Record("visible", 150*time.Millisecond, nil)
	c.Record("clickable", 200*time.Millisecond, nil)
	c.Record("visible", 50*time.Millisecond, errors.New("boom"))

	summaries := c.Summaries()
	require.Len(t, summaries, 2)

	// Sorted by name
	assert.Equal(t, "clickable", summaries[0].Name)
	assert.Equal(t, "visible", summaries[1].Name)

	visible := summaries[1]
	assert.Equal(t, int64(3), visible.Count)
	assert.Equal(t, int64(1), visible.Failures)
	assert.Equal(t, int64(0), visible.Timeouts)
	assert.InDelta(t, float64(150*time.Millisecond), float64(visible.Max), float64(time.Millisecond))
	assert.InDelta(t, float64(100*time.Millisecond), float64(visible.Mean), float64(time.Millisecond))
}

func TestCollectorRecordTimeout(t *testing.T) {
	c := NewCollector()

	c.Record("visible", 500*time.Millisecond, &wait.TimeoutError{State: wait.Visible, Target: "#missing", Timeout: 500 * time.Millisecond})
	c.Record("visible", time.Second, fmt.Errorf("goto: %w", context.DeadlineExceeded))
	c.Record("visible", 10*time.Millisecond, nil)

	s := c.Summaries()[0]
	assert.Equal(t, int64(3), s.Count)
	assert.Equal(t, int64(2), s.Failures)
	assert.Equal(t, int64(2), s.Timeouts) // Timeouts count as failures
}

func TestCollectorClampsLatency(t *testing.T) {
	c := NewCollector()

	c.Record("fast", 0, nil)
	c.Record("slow", time.Hour, nil)

	summaries := c.Summaries()
	assert.Equal(t, time.Microsecond, summaries[0].Max)
	assert.InDelta(t, float64(5*time.Minute), float64(summaries[1].Max), float64(time.Second))
}

func TestCollectorConcurrentRecord(t *testing.T) {
	c := NewCollector()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				c.Record("visible", time.Duration(j)*time.Millisecond, nil)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1000), c.Summaries()[0].Count)
}

func TestCollectorEvaluate(t *testing.T) {
	c := NewCollector()
	for i := 1; i <= 100; i++ {
		c.Record("visible", time.Duration(i)*time.Millisecond, nil)
	}

	results := c.Evaluate([]Threshold{
		{Name: "visible", P95: 200 * time.Millisecond},
		{Name: "visible", P95: 50 * time.Millisecond},
		{Name: "clickable", P95: time.Millisecond},
	})

	require.Len(t, results, 3)
	assert.True(t, results[0].Passed)
	assert.False(t, results[1].Passed)
	assert.InDelta(t, float64(95*time.Millisecond), float64(results[1].Actual), float64(time.Millisecond))
	assert.True(t, results[2].Passed, "names with no data pass")
}
