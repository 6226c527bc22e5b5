package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

type countingPurger struct {
	calls atomic.Int32
	err   error
}

func (p *countingPurger) DeleteExpired(context.Context, time.Time) (int64, error) {
	p.calls.Add(1)
	return 1, p.err
}

func TestSweepSessionsRunsUntilCanceled(t *testing.T) {
	for name, purger := range map[string]*countingPurger{
		"ok":      {},
		"failing": {err: errors.New("db down")},
	} {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			go func() {
				sweepSessions(ctx, purger, 5*time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))
				close(done)
			}()

			deadline := time.After(time.Second)
			for purger.calls.Load() < 2 {
				select {
				case <-deadline:
					t.Fatal("sweeper did not tick")
				case <-time.After(time.Millisecond):
				}
			}

			cancel()
			select {
			case <-done:
			case <-time.After(time.Second):
				t.Fatal("sweeper did not stop")
			}
		})
	}
}
