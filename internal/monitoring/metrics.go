package monitoring

import (
	"runtime"
	"sync"
	"time"
)

// MetricsRegistry manages application metrics
type MetricsRegistry struct {
	counters map[string]*CounterMetric
	gauges   map[string]*GaugeMetric
	mutex    sync.RWMutex

	startTime time.Time
}

// CounterMetric represents a monotonically increasing counter
type CounterMetric struct {
	name      string
	value     int64
	timestamp time.Time
	mutex     sync.RWMutex
}

// GaugeMetric represents a value that can go up and down
type GaugeMetric struct {
	name      string
	value     float64
	timestamp time.Time
	mutex     sync.RWMutex
}

// SystemMetrics represents process-level metrics
type SystemMetrics struct {
	MemoryUsage    int64         `json:"memory_usage_bytes"`
	GoroutineCount int           `json:"goroutine_count"`
	GCCount        int64         `json:"gc_count"`
	HeapSize       int64         `json:"heap_size_bytes"`
	Uptime         time.Duration `json:"uptime"`
	Timestamp      time.Time     `json:"timestamp"`
}

// ApplicationMetrics is a snapshot of the anonymization counters
type ApplicationMetrics struct {
	DatasetsProcessed int64     `json:"datasets_processed"`
	ColumnsProcessed  int64     `json:"columns_processed"`
	CellsProcessed    int64     `json:"cells_processed"`
	TransformFailures int64     `json:"transform_failures"`
	ValidationFails   int64     `json:"validation_fails"`
	ValidationWarns   int64     `json:"validation_warns"`
	PassRate          float64   `json:"pass_rate"`
	Timestamp         time.Time `json:"timestamp"`
}

// Well-known metric names used by the batch app and the API server.
const (
	MetricDatasetsProcessed = "datasets_processed"
	MetricColumnsProcessed  = "columns_processed"
	MetricCellsProcessed    = "cells_processed"
	MetricTransformFailures = "transform_failures"
	MetricValidationFails   = "validation_fails"
	MetricValidationWarns   = "validation_warns"
	MetricPassRate          = "pass_rate"
)

// NewMetricsRegistry creates a new metrics registry
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		counters:  make(map[string]*CounterMetric),
		gauges:    make(map[string]*GaugeMetric),
		startTime: time.Now(),
	}
}

// Counter returns the named counter, creating it on first use
func (mr *MetricsRegistry) Counter(name string) *CounterMetric {
	mr.mutex.Lock()
	defer mr.mutex.Unlock()

	if c, ok := mr.counters[name]; ok {
		return c
	}
	c := &CounterMetric{name: name, timestamp: time.Now()}
	mr.counters[name] = c
	return c
}

// Gauge returns the named gauge, creating it on first use
func (mr *MetricsRegistry) Gauge(name string) *GaugeMetric {
	mr.mutex.Lock()
	defer mr.mutex.Unlock()

	if g, ok := mr.gauges[name]; ok {
		return g
	}
	g := &GaugeMetric{name: name, timestamp: time.Now()}
	mr.gauges[name] = g
	return g
}

// Snapshot returns the application metrics snapshot
func (mr *MetricsRegistry) Snapshot() *ApplicationMetrics {
	return &ApplicationMetrics{
		DatasetsProcessed: mr.Counter(MetricDatasetsProcessed).Get(),
		ColumnsProcessed:  mr.Counter(MetricColumnsProcessed).Get(),
		CellsProcessed:    mr.Counter(MetricCellsProcessed).Get(),
		TransformFailures: mr.Counter(MetricTransformFailures).Get(),
		ValidationFails:   mr.Counter(MetricValidationFails).Get(),
		ValidationWarns:   mr.Counter(MetricValidationWarns).Get(),
		PassRate:          mr.Gauge(MetricPassRate).Get(),
		Timestamp:         time.Now(),
	}
}

// GetSystemMetrics returns current process metrics
func (mr *MetricsRegistry) GetSystemMetrics() *SystemMetrics {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return &SystemMetrics{
		MemoryUsage:    int64(memStats.Alloc),
		GoroutineCount: runtime.NumGoroutine(),
		GCCount:        int64(memStats.NumGC),
		HeapSize:       int64(memStats.HeapAlloc),
		Uptime:         time.Since(mr.startTime),
		Timestamp:      time.Now(),
	}
}

// Reset zeroes every registered metric
func (mr *MetricsRegistry) Reset() {
	mr.mutex.RLock()
	defer mr.mutex.RUnlock()

	for _, c := range mr.counters {
		c.Reset()
	}
	for _, g := range mr.gauges {
		g.Reset()
	}
}

// CounterMetric implementation

func (c *CounterMetric) Name() string {
	return c.name
}

func (c *CounterMetric) Inc() {
	c.Add(1)
}

func (c *CounterMetric) Add(value int64) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.value += value
	c.timestamp = time.Now()
}

func (c *CounterMetric) Get() int64 {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.value
}

func (c *CounterMetric) Reset() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.value = 0
	c.timestamp = time.Now()
}

// GaugeMetric implementation

func (g *GaugeMetric) Name() string {
	return g.name
}

func (g *GaugeMetric) Set(value float64) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	g.value = value
	g.timestamp = time.Now()
}

func (g *GaugeMetric) Add(value float64) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	g.value += value
	g.timestamp = time.Now()
}

func (g *GaugeMetric) Get() float64 {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return g.value
}

func (g *GaugeMetric) Reset() {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	g.value = 0
	g.timestamp = time.Now()
}
