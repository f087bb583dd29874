package metrics

import (
	"sync"
	"time"
)

// Source exposes the membership figures sampled by the collector
type Source interface {
	ActiveCount() int
}

// Collector periodically samples a Source into the gauges
type Collector struct {
	source   Source
	metrics  *Metrics
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewCollector creates a new metrics collector
func NewCollector(src Source, m *Metrics, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Collector{
		source:   src,
		metrics:  m,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		// Collect immediately on start
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

func (c *Collector) collect() {
	c.metrics.SetActiveWorkers(c.source.ActiveCount())
}
