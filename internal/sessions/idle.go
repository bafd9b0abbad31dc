package sessions

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultIdleTimeout matches the resource-budget guidance of closing a
// session nobody has touched in a while, releasing its registry, pattern
// store handles, and interaction channel.
const DefaultIdleTimeout = 30 * time.Minute

// CloseFunc tears down the runtime state (registry, interaction channel,
// conversation context) for a session that IdleSweeper has decided to
// close. Store.Delete is called only after CloseFunc succeeds.
type CloseFunc func(ctx context.Context, sessionID string) error

// IdleSweeper periodically closes sessions that have been idle longer than
// Timeout, using a cron schedule rather than a bare ticker so the interval
// is configurable the same way as every other scheduled job in this
// process.
type IdleSweeper struct {
	Store   Store
	Close   CloseFunc
	Timeout time.Duration
	Logger  *slog.Logger

	cron *cron.Cron
}

// Start schedules the sweep at the given cron spec (e.g. "*/5 * * * *") and
// returns once the first run has been scheduled; it does not block.
func (s *IdleSweeper) Start(spec string) error {
	if s.Timeout <= 0 {
		s.Timeout = DefaultIdleTimeout
	}
	s.cron = cron.New()
	_, err := s.cron.AddFunc(spec, func() { s.sweep(context.Background()) })
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the schedule. In-flight sweeps are allowed to finish.
func (s *IdleSweeper) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

func (s *IdleSweeper) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-s.Timeout)
	idle, err := s.Store.IdleSince(ctx, cutoff)
	if err != nil {
		s.logf("idle session sweep: list failed: %v", err)
		return
	}
	for _, session := range idle {
		if s.Close != nil {
			if err := s.Close(ctx, session.ID); err != nil {
				s.logf("idle session sweep: close %s failed: %v", session.ID, err)
				continue
			}
		}
		if err := s.Store.Delete(ctx, session.ID); err != nil {
			s.logf("idle session sweep: delete %s failed: %v", session.ID, err)
		}
	}
}

func (s *IdleSweeper) logf(format string, args ...any) {
	if s.Logger != nil {
		s.Logger.Warn("sessions: " + fmt.Sprintf(format, args...))
	}
}
