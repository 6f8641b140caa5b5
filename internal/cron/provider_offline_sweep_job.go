package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/resqlink/resqlink-backend/internal/providers"
	"github.com/resqlink/resqlink-backend/pkg/db/models"
	"github.com/resqlink/resqlink-backend/pkg/enums"
	"github.com/resqlink/resqlink-backend/pkg/logger"
	"github.com/resqlink/resqlink-backend/pkg/outbox"
	"github.com/resqlink/resqlink-backend/pkg/outbox/payloads"
)

const defaultProviderOfflineThreshold = 15 * time.Minute

type txEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type ProviderOfflineSweepJobParams struct {
	Logger    *logger.Logger
	DB        txRunner
	Repo      providers.Repository
	Outbox    txEmitter
	Threshold time.Duration
}

// NewProviderOfflineSweepJob builds the job that takes silent providers out of
// the matchable pool. A provider that stopped pinging its location cannot be
// trusted as available; busy providers are left alone.
func NewProviderOfflineSweepJob(params ProviderOfflineSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("provider repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox required")
	}
	threshold := params.Threshold
	if threshold <= 0 {
		threshold = defaultProviderOfflineThreshold
	}
	return &providerOfflineSweepJob{
		logg:      params.Logger,
		db:        params.DB,
		repo:      params.Repo,
		outbox:    params.Outbox,
		threshold: threshold,
		now:       time.Now,
	}, nil
}

type providerOfflineSweepJob struct {
	logg      *logger.Logger
	db        txRunner
	repo      providers.Repository
	outbox    txEmitter
	threshold time.Duration
	now       func() time.Time
}

func (j *providerOfflineSweepJob) Name() string { return "provider-offline-sweep" }

func (j *providerOfflineSweepJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	cutoff := now.Add(-j.threshold)

	var swept int
	var errs error
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := j.repo.WithTx(tx)
		stale, err := repo.ListStaleAvailable(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("list stale providers: %w", err)
		}
		for i := range stale {
			provider := stale[i]
			if err := j.sweep(ctx, tx, repo, provider, now); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("provider %s: %w", provider.ID, err))
				continue
			}
			swept++
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("provider offline sweep: %w", err)
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff": cutoff,
		"swept":  swept,
	})
	j.logg.Info(logCtx, "provider offline sweep complete")
	return errs
}

func (j *providerOfflineSweepJob) sweep(ctx context.Context, tx *gorm.DB, repo providers.Repository, provider models.Provider, now time.Time) error {
	if err := repo.MarkOffline(ctx, provider.ID); err != nil {
		return fmt.Errorf("mark offline: %w", err)
	}
	event := outbox.DomainEvent{
		EventType:     enums.EventProviderWentOffline,
		AggregateType: enums.AggregateProvider,
		AggregateID:   provider.ID,
		Version:       1,
		OccurredAt:    now,
		Data: payloads.ProviderWentOfflineEvent{
			ProviderID:     provider.ID,
			FirmID:         provider.FirmID,
			LastLocationAt: provider.LastLocationAt,
			SweptAt:        now,
		},
	}
	if err := j.outbox.Emit(ctx, tx, event); err != nil {
		return fmt.Errorf("emit offline event: %w", err)
	}
	return nil
}
