// SPDX-License-Identifier: MIT
package show

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"lightshow/internal/analysis"
	applog "lightshow/internal/log"
)

// Clock runs a function once per period. It owns the tick counter.
//
// Cadence is best effort: the next deadline is the previous deadline plus
// one period, but a tick that overruns its deadline is followed immediately
// by the next one and the phase is reset, so late ticks never bunch up.
type Clock struct {
	period   time.Duration
	tick     uint64
	overruns uint64
	log      *applog.Logger
}

// NewClock creates a Clock running frameRate ticks per second.
func NewClock(frameRate float64) (*Clock, error) {
	if frameRate <= 0 || math.IsNaN(frameRate) || math.IsInf(frameRate, 0) {
		return nil, fmt.Errorf("frame rate must be positive, got %v", frameRate)
	}
	return &Clock{
		period: time.Duration(float64(time.Second) / frameRate),
		log:    applog.New("clock"),
	}, nil
}

// Period returns the tick period.
func (c *Clock) Period() time.Duration { return c.period }

// Ticks returns the number of completed ticks.
func (c *Clock) Ticks() uint64 { return c.tick }

// Overruns returns the number of ticks that finished after the next
// deadline.
func (c *Clock) Overruns() uint64 { return c.overruns }

// Run calls fn with tick numbers 0, 1, 2, ... until fn fails or ctx is
// done. Cancellation is observed between ticks only. fn returning
// analysis.ErrEndOfStream ends the run cleanly with a nil error.
func (c *Clock) Run(ctx context.Context, fn func(tick uint64) error) error {
	timer := time.NewTimer(c.period)
	timer.Stop()
	defer timer.Stop()

	c.log.Infof("Started at %v per tick", c.period)
	next := time.Now()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := fn(c.tick); err != nil {
			if errors.Is(err, analysis.ErrEndOfStream) {
				c.log.Infof("End of stream after %d ticks (%d overruns)", c.tick, c.overruns)
				return nil
			}
			return err
		}
		c.tick++

		next = next.Add(c.period)
		wait := time.Until(next)
		if wait <= 0 {
			c.overruns++
			c.log.Debugf("Tick %d overran by %v", c.tick-1, -wait)
			next = time.Now()
			continue
		}

		timer.Reset(wait)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
}
