// README: Periodic assignment of rides left pending at creation time.
package ride

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// AssignPending retries matching for the oldest pending rides and returns how
// many were assigned.
func (s *Service) AssignPending(ctx context.Context) (int, error) {
	pending, err := s.store.ListPending(ctx, s.opts.PendingBatch)
	if err != nil {
		return 0, err
	}
	assigned := 0
	for i := range pending {
		if ctx.Err() != nil {
			return assigned, ctx.Err()
		}
		r, _, err := s.assign(ctx, &pending[i])
		if err != nil {
			s.log.Warn("pending assignment failed", zap.String("ride_id", string(pending[i].ID)), zap.Error(err))
			continue
		}
		if r.Status == StatusAccepted {
			assigned++
		}
	}
	return assigned, nil
}

// RunPendingAssigner calls AssignPending every tick until ctx is done.
func (s *Service) RunPendingAssigner(ctx context.Context) {
	ticker := time.NewTicker(s.opts.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.AssignPending(ctx)
			if err != nil && ctx.Err() == nil {
				s.log.Warn("pending assigner tick failed", zap.Error(err))
				continue
			}
			if n > 0 {
				s.log.Info("pending rides assigned", zap.Int("count", n))
			}
		}
	}
}
