package monitoring

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCounter(t *testing.T) {
	mr := NewMetricsRegistry()

	c := mr.Counter(MetricDatasetsProcessed)
	c.Inc()
	c.Add(2)
	assert.Equal(t, int64(3), c.Get())

	// Same name yields the same counter.
	assert.Equal(t, int64(3), mr.Counter(MetricDatasetsProcessed).Get())

	c.Reset()
	assert.Zero(t, c.Get())
}

func TestGauge(t *testing.T) {
	mr := NewMetricsRegistry()

	g := mr.Gauge(MetricPassRate)
	g.Set(0.8)
	assert.Equal(t, 0.8, g.Get())
	g.Add(0.1)
	assert.InDelta(t, 0.9, g.Get(), 1e-9)
}

func TestSnapshot(t *testing.T) {
	mr := NewMetricsRegistry()
	mr.Counter(MetricColumnsProcessed).Add(7)
	mr.Counter(MetricValidationFails).Inc()
	mr.Gauge(MetricPassRate).Set(0.5)

	snap := mr.Snapshot()
	assert.Equal(t, int64(7), snap.ColumnsProcessed)
	assert.Equal(t, int64(1), snap.ValidationFails)
	assert.Equal(t, 0.5, snap.PassRate)
	assert.False(t, snap.Timestamp.IsZero())

	mr.Reset()
	snap = mr.Snapshot()
	assert.Zero(t, snap.ColumnsProcessed)
	assert.Zero(t, snap.PassRate)
}

func TestSystemMetrics(t *testing.T) {
	mr := NewMetricsRegistry()
	sys := mr.GetSystemMetrics()
	assert.Positive(t, sys.MemoryUsage)
	assert.Positive(t, sys.GoroutineCount)
}

func TestConcurrentAccess(t *testing.T) {
	mr := NewMetricsRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				mr.Counter(MetricCellsProcessed).Inc()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1000), mr.Counter(MetricCellsProcessed).Get())
}
