// Package worker hosts background jobs.
package worker

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/sloanfm/biscuit/internal/domain"
	"github.com/sloanfm/biscuit/internal/platform/logger"
)

// StatsReconciler periodically recomputes the denormalized review counters on
// user documents from the reviews collection. The counters are maintained by
// non-transactional increments, so a crash between a review write and its
// counter update leaves drift; this job is the repair path.
type StatsReconciler struct {
	reviewRepo domain.ReviewRepository
	userRepo   domain.UserStatsRepository
	logger     *logger.Logger
	cron       *cron.Cron
}

func NewStatsReconciler(reviewRepo domain.ReviewRepository, userRepo domain.UserStatsRepository, log *logger.Logger) *StatsReconciler {
	return &StatsReconciler{
		reviewRepo: reviewRepo,
		userRepo:   userRepo,
		logger:     log.Named("StatsReconciler"),
		cron:       cron.New(),
	}
}

// Start schedules the reconciliation on the given cron spec, e.g. "@every 6h".
func (r *StatsReconciler) Start(spec string) error {
	_, err := r.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := r.Reconcile(ctx); err != nil {
			r.logger.Error("Stats reconciliation failed", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}

	r.cron.Start()
	r.logger.Info("Stats reconciler scheduled", zap.String("spec", spec))
	return nil
}

// Stop halts the schedule and waits for a running job to finish.
func (r *StatsReconciler) Stop() {
	<-r.cron.Stop().Done()
}

// Reconcile recomputes every author's release and distinct-artist counts and
// overwrites the stored counters with them.
func (r *StatsReconciler) Reconcile(ctx context.Context) error {
	started := time.Now()

	stats, err := r.reviewRepo.AggregateAuthorStats(ctx)
	if err != nil {
		return err
	}
	if err := r.userRepo.ReplaceAllStats(ctx, stats); err != nil {
		return err
	}

	r.logger.Info("Stats reconciliation complete",
		zap.Int("authors", len(stats)),
		zap.Duration("duration", time.Since(started)))
	return nil
}
