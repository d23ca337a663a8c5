package orchestration

import (
	"context"
	"time"
)

const (
	healthProbeInitialInterval = 30 * time.Second
	healthProbeMaxInterval     = 5 * time.Minute
	healthProbeTimeout         = 10 * time.Second
)

// startHealthProbe begins probing the responder's health endpoint in the
// background. At most one prober runs per controller; it stops as soon as a
// probe succeeds or the controller closes. Probing only happens while the
// connection is considered lost, with the interval doubling on each failure.
func (s *SessionController) startHealthProbe() {
	if s.responder == nil {
		return
	}
	if !s.probing.CompareAndSwap(false, true) {
		return
	}

	go func() {
		defer s.probing.Store(false)

		interval := s.probeInitialInterval
		maxInterval := s.probeMaxInterval

		timer := time.NewTimer(interval)
		defer timer.Stop()

		for {
			select {
			case <-s.closeCh:
				return
			case <-timer.C:
			}

			s.setConnection(ConnectionConnecting)

			ctx, cancel := context.WithTimeout(s.baseContext, healthProbeTimeout)
			err := s.responder.Health(ctx)
			cancel()

			if err == nil {
				logger.Info("responder reachable again")
				s.enqueue(connectionRestoredCommand{})
				return
			}

			s.setConnection(ConnectionDisconnected)

			interval *= 2
			if interval > maxInterval {
				interval = maxInterval
			}
			logger.Debug("responder still unreachable", "error", err, "next_probe_in", interval.String())
			timer.Reset(interval)
		}
	}()
}
