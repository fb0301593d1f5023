package scheduler

import (
	"context"
	"time"
)

// Specs of the built-in jobs.
const (
	OTPPurgeSpec          = "@every 5m"
	NotificationPruneSpec = "30 3 * * *"
)

type otpPurger interface {
	Purge(ctx context.Context) (int, error)
}

type notificationPruner interface {
	PruneReadNotifications(ctx context.Context, cutoff time.Time) (int, error)
}

// PurgeOTPs drops expired verification codes.
func PurgeOTPs(p otpPurger) Job {
	return p.Purge
}

// PruneNotifications deletes read notifications older than retention.
// A non-positive retention disables the job.
func PruneNotifications(p notificationPruner, retention time.Duration, now func() time.Time) Job {
	return func(ctx context.Context) (int, error) {
		if retention <= 0 {
			return 0, nil
		}
		return p.PruneReadNotifications(ctx, now().Add(-retention))
	}
}
