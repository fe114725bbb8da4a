package metrics

import (
	"time"

	"github.com/cuemby/overlord/pkg/storage"
	"github.com/cuemby/overlord/pkg/types"
)

// Collector periodically samples the State Store into the gauge metrics
// above. Counters (DispatchesTotal, CompletionsTotal, ...) are updated
// inline by the components that own those events; Collector only handles
// metrics that are cheaper to recompute from current state than to track
// incrementally.
type Collector struct {
	store  storage.Store
	stopCh chan struct{}
}

// NewCollector creates a new metrics collector over store.
func NewCollector(store storage.Store) *Collector {
	return &Collector{
		store:  store,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics every 15 seconds until Stop is called.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
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

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	workers, err := c.store.GetActive()
	if err != nil {
		return
	}

	ActiveWorkers.Set(float64(len(workers)))

	counts := map[types.WorkerStatus]int{}
	for _, w := range workers {
		counts[w.Status]++
	}
	for _, status := range []types.WorkerStatus{types.WorkerStarting, types.WorkerWorking} {
		WorkersByStatus.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
}
