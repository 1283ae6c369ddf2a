package inventory

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type Sweepable interface {
	Sweep(ctx context.Context) (int, error)
}

// Sweeper jalan di background, lepas dari request thread.
type Sweeper struct {
	Ledger   Sweepable
	Interval time.Duration
	Log      *zap.Logger
}

func (s *Sweeper) Run(ctx context.Context) {
	t := time.NewTicker(s.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := s.Ledger.Sweep(ctx)
			if err != nil {
				s.Log.Warn("reservation sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				s.Log.Info("released expired reservations", zap.Int("count", n))
			}
		}
	}
}
