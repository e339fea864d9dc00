package session

import (
	"context"

	errs "github.com/jrsteele09/openleaf-portal/internal/errors"
	"github.com/rs/zerolog/log"
)

// Tick runs one iteration of the refresh loop. It does nothing when the session is not
// authenticated and returns ErrRefreshInFlight when the previous tick has not finished.
func (c *Controller) Tick(ctx context.Context) (bool, error) {
	if !c.Authenticated() {
		return false, nil
	}
	if !c.refreshing.CompareAndSwap(false, true) {
		return false, ErrRefreshInFlight
	}
	defer c.refreshing.Store(false)

	return c.Refresh(ctx, c.minValidity)
}

// Start launches the refresh loop. The ticker is armed before Start returns so that the first
// tick happens one interval later. Starting a running loop is a no-op.
func (c *Controller) Start(ctx context.Context) {
	c.loopMu.Lock()
	defer c.loopMu.Unlock()

	if c.cancel != nil {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	ticker := c.clock.Ticker(c.interval)
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done

	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				c.onTick(loopCtx)
			}
		}
	}()
}

func (c *Controller) onTick(ctx context.Context) {
	rotated, err := c.Tick(ctx)
	switch {
	case err == nil:
		if rotated {
			log.Debug().Msg("Refresh loop rotated the access token")
		}
	case errs.Is(err, ErrRefreshInFlight):
		log.Debug().Msg("Refresh still in flight, tick skipped")
	case errs.Is(err, ErrSessionLost), errs.Is(err, ErrNotAuthenticated):
		log.Info().Err(err).Msg("Refresh loop observed an ended session")
	default:
		log.Warn().Err(err).Msg("Refresh loop tick failed")
	}
}

// Stop halts the refresh loop and waits for it to exit.
func (c *Controller) Stop() {
	c.loopMu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.loopMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the refresh loop is active.
func (c *Controller) Running() bool {
	c.loopMu.Lock()
	defer c.loopMu.Unlock()
	return c.cancel != nil
}
