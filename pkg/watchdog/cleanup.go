package watchdog

import (
	"context"
	"time"

	"github.com/cuemby/overlord/pkg/log"
	"github.com/cuemby/overlord/pkg/runtime"
	"github.com/rs/zerolog"
)

// Cleanup runs a separate loop invoking the runtime's CleanupDead on every
// tick, independent of the Watchdog's own interval.
type Cleanup struct {
	rt       runtime.Runtime
	interval time.Duration
	logger   zerolog.Logger
	stopCh   chan struct{}
}

// NewCleanup returns a Cleanup loop polling rt every interval.
func NewCleanup(rt runtime.Runtime, interval time.Duration) *Cleanup {
	return &Cleanup{
		rt:       rt,
		interval: interval,
		logger:   log.WithComponent("cleanup"),
		stopCh:   make(chan struct{}),
	}
}

// Start begins the cleanup loop.
func (c *Cleanup) Start() {
	go c.run()
}

// Stop halts the cleanup loop.
func (c *Cleanup) Stop() {
	close(c.stopCh)
}

func (c *Cleanup) run() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.tick()
		case <-c.stopCh:
			return
		}
	}
}

func (c *Cleanup) tick() {
	ctx := context.Background()
	n, err := c.rt.CleanupDead(ctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("cleanup pass failed")
		return
	}
	if n > 0 {
		c.logger.Info().Int("removed", n).Msg("cleaned up dead containers")
	}
}
