package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/resqlink/resqlink-backend/internal/requests"
	"github.com/resqlink/resqlink-backend/pkg/db/models"
	"github.com/resqlink/resqlink-backend/pkg/enums"
	"github.com/resqlink/resqlink-backend/pkg/logger"
	"github.com/resqlink/resqlink-backend/pkg/outbox"
	"github.com/resqlink/resqlink-backend/pkg/outbox/payloads"
)

const defaultStalePendingThreshold = 10 * time.Minute

type dedupEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type StalePanicEscalationJobParams struct {
	Logger    *logger.Logger
	DB        txRunner
	Repo      requests.Repository
	Outbox    dedupEmitter
	Threshold time.Duration
}

// NewStalePanicEscalationJob builds the job that flags requests stuck in
// pending past the staleness threshold. Each request escalates at most once:
// the escalated_at stamp removes it from later sweeps and the outbox insert
// dedupes on the aggregate.
func NewStalePanicEscalationJob(params StalePanicEscalationJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("request repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox required")
	}
	threshold := params.Threshold
	if threshold <= 0 {
		threshold = defaultStalePendingThreshold
	}
	return &stalePanicEscalationJob{
		logg:      params.Logger,
		db:        params.DB,
		repo:      params.Repo,
		outbox:    params.Outbox,
		threshold: threshold,
		now:       time.Now,
	}, nil
}

type stalePanicEscalationJob struct {
	logg      *logger.Logger
	db        txRunner
	repo      requests.Repository
	outbox    dedupEmitter
	threshold time.Duration
	now       func() time.Time
}

func (j *stalePanicEscalationJob) Name() string { return "stale-panic-escalation" }

func (j *stalePanicEscalationJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	cutoff := now.Add(-j.threshold)

	var escalated int
	var errs error
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := j.repo.WithTx(tx)
		stale, err := repo.ListStalePending(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("list stale pending: %w", err)
		}
		for i := range stale {
			request := stale[i]
			if err := j.escalate(ctx, tx, repo, request, now); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("request %s: %w", request.ID, err))
				continue
			}
			escalated++
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("stale panic escalation: %w", err)
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":    cutoff,
		"escalated": escalated,
	})
	j.logg.Info(logCtx, "stale panic sweep complete")
	return errs
}

func (j *stalePanicEscalationJob) escalate(ctx context.Context, tx *gorm.DB, repo requests.Repository, request models.PanicRequest, now time.Time) error {
	if err := repo.MarkEscalated(ctx, request.ID, now); err != nil {
		return fmt.Errorf("mark escalated: %w", err)
	}
	event := outbox.DomainEvent{
		EventType:     enums.EventPanicEscalated,
		AggregateType: enums.AggregatePanicRequest,
		AggregateID:   request.ID,
		Version:       1,
		OccurredAt:    now,
		Data: payloads.PanicEscalatedEvent{
			RequestID:      request.ID,
			GroupID:        request.GroupID,
			FirmID:         request.FirmID,
			PendingMinutes: int(now.Sub(request.CreatedAt).Minutes()),
			EscalatedAt:    now,
		},
	}
	if err := j.outbox.EmitIfNotExists(ctx, tx, event); err != nil {
		return fmt.Errorf("emit escalation event: %w", err)
	}
	return nil
}
