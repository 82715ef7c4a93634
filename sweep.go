package tollgate

import (
	"context"
	"log/slog"
	"time"
)

// DefaultSweepInterval is how often the background sweep runs.
const DefaultSweepInterval = 60 * time.Second

// Sweep deletes requirements past their expiry and records older than the
// retention window. It uses the same lock as the request path, so it can
// run concurrently with normal traffic.
func (l *Ledger) Sweep() (expiredRequirements, purgedRecords int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()

	l.requirements.Range(func(paymentID string, req *PaymentRequirement) bool {
		if now.After(req.ExpiresAt) {
			l.requirements.Delete(paymentID)
			expiredRequirements++
		}
		return true
	})

	cutoff := now.Add(-l.config.RecordRetention)
	l.records.Range(func(paymentID string, rec *PaymentRecord) bool {
		if rec.CreatedAt.Before(cutoff) {
			l.records.Delete(paymentID)
			purgedRecords++
		}
		return true
	})

	return expiredRequirements, purgedRecords
}

// RunSweeper drives Sweep on a ticker until the context is cancelled.
// Intended to be launched as a goroutine by the hosting service.
func (l *Ledger) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			expired, purged := l.Sweep()
			if expired > 0 || purged > 0 {
				slog.Debug("ledger sweep",
					"expired_requirements", expired,
					"purged_records", purged,
				)
			}
		}
	}
}
