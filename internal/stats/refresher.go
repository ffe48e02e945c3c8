package stats

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ErlanBelekov/account-service/internal/domain"
	"github.com/ErlanBelekov/account-service/internal/metrics"
)

type Counter interface {
	CountByState(ctx context.Context) (domain.UserCounts, error)
}

// Refresher publishes user counts as gauges on a cron schedule.
type Refresher struct {
	users    Counter
	schedule cron.Schedule
	logger   *slog.Logger
	now      func() time.Time
}

func NewRefresher(users Counter, spec string, logger *slog.Logger) (*Refresher, error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse stats schedule %q: %w", spec, err)
	}
	return &Refresher{
		users:    users,
		schedule: sched,
		logger:   logger.With("component", "stats"),
		now:      time.Now,
	}, nil
}

func (r *Refresher) Start(ctx context.Context) {
	r.logger.Info("stats refresher started")
	r.Refresh(ctx)

	for {
		wait := time.Until(r.Next(r.now()))
		timer := time.NewTimer(wait)

		select {
		case <-ctx.Done():
			timer.Stop()
			r.logger.Info("stats refresher shut down")
			return
		case <-timer.C:
			r.Refresh(ctx)
		}
	}
}

// Next returns the first tick strictly after t.
func (r *Refresher) Next(t time.Time) time.Time {
	return r.schedule.Next(t)
}

func (r *Refresher) Refresh(ctx context.Context) {
	counts, err := r.users.CountByState(ctx)
	if err != nil {
		r.logger.Error("count users", "error", err)
		return
	}
	metrics.Users.WithLabelValues("total").Set(float64(counts.Total))
	metrics.Users.WithLabelValues("verified").Set(float64(counts.Verified))
	metrics.Users.WithLabelValues("unverified").Set(float64(counts.Unverified))
	metrics.Users.WithLabelValues("inactive").Set(float64(counts.Inactive))
	r.logger.Debug("user counts refreshed", "total", counts.Total, "verified", counts.Verified)
}
