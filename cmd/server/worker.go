package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ryabkov82/pvoutput-ingest/internal/ingest"
	"github.com/ryabkov82/pvoutput-ingest/internal/job"
	"github.com/ryabkov82/pvoutput-ingest/internal/pvoutput"
)

// fetcher is the part of *pvoutput.Service the worker calls
type fetcher interface {
	Search(ctx context.Context, query, latLon string, opts ...pvoutput.CallOption) (*ingest.Table, error)
	SystemStatus(ctx context.Context, systemID int, date string, opts ...pvoutput.CallOption) (*ingest.Table, error)
	SystemMetadata(ctx context.Context, systemID int, opts ...pvoutput.CallOption) (ingest.Row, error)
	SystemStatistic(ctx context.Context, systemID int, opts ...pvoutput.CallOption) (ingest.Row, error)
}

var _ fetcher = (*pvoutput.Service)(nil)

// newLimiter paces jobs to requestsPerHour. Zero disables pacing.
func newLimiter(requestsPerHour int) *rate.Limiter {
	if requestsPerHour <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(float64(requestsPerHour)/3600), 1)
}

// worker processes jobs from the queue, one at a time
type worker struct {
	store   *job.Store
	fetcher fetcher
	limiter *rate.Limiter
	logger  *zap.SugaredLogger
}

func newWorker(store *job.Store, f fetcher, limiter *rate.Limiter, logger *zap.SugaredLogger) *worker {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &worker{
		store:   store,
		fetcher: f,
		limiter: limiter,
		logger:  logger,
	}
}

// run blocks until ctx is canceled
func (w *worker) run(ctx context.Context) {
	for {
		j, err := w.store.NextJob(ctx)
		if err != nil {
			return
		}
		w.processJob(ctx, j)
	}
}

func (w *worker) processJob(ctx context.Context, j *job.Job) {
	jobCtx, jobCancel := context.WithCancel(ctx)
	defer jobCancel()

	if err := w.store.SetCancel(j.ID, jobCancel); err != nil {
		w.logger.Errorw("unable to register cancel", "jobId", j.ID, "error", err)
		return
	}
	defer w.store.ClearCancel(j.ID)

	// Jobs canceled while queued are already finished
	if err := w.store.UpdateStatus(j.ID, job.StatusRunning); err != nil {
		w.logger.Infow("skipping job", "jobId", j.ID, "error", err)
		return
	}

	var result *ingest.Table
	err := w.limiter.Wait(jobCtx)
	if err == nil {
		w.logger.Infow("job started", "jobId", j.ID, "kind", j.Request.Kind, "systemId", j.Request.SystemID)
		result, err = w.fetch(jobCtx, j.Request)
	}

	switch {
	case err == nil:
		if err := w.store.Succeed(j.ID, result); err != nil {
			w.logger.Warnw("unable to store result", "jobId", j.ID, "error", err)
			return
		}
		w.logger.Infow("job succeeded", "jobId", j.ID, "rows", result.Len())
	case ctx.Err() != nil:
		_ = w.store.Cancel(j.ID)
		w.logger.Infow("job canceled on shutdown", "jobId", j.ID)
	case jobCtx.Err() != nil:
		w.logger.Infow("job canceled", "jobId", j.ID)
	default:
		w.logger.Errorw("job failed", "jobId", j.ID, "errorKind", job.KindOf(err), "error", err)
		_ = w.store.Fail(j.ID, err)
	}
}

func (w *worker) fetch(ctx context.Context, req job.Request) (*ingest.Table, error) {
	var opts []pvoutput.CallOption
	if req.NoQuotaWait {
		opts = append(opts, pvoutput.NoQuotaWait())
	}

	switch req.Kind {
	case job.KindStatus:
		table, err := w.fetcher.SystemStatus(ctx, req.SystemID, req.Date, opts...)
		if err != nil {
			return nil, err
		}
		if err := pvoutput.CheckStatus(table, req.Date); err != nil {
			return nil, err
		}
		return table, nil
	case job.KindSearch:
		return w.fetcher.Search(ctx, req.Query, req.LatLon, opts...)
	case job.KindSystem:
		row, err := w.fetcher.SystemMetadata(ctx, req.SystemID, opts...)
		return rowTable(pvoutput.MetadataSchema, row, err)
	case job.KindStatistic:
		row, err := w.fetcher.SystemStatistic(ctx, req.SystemID, opts...)
		return rowTable(pvoutput.StatisticSchema, row, err)
	default:
		return nil, fmt.Errorf("unknown kind: %q", req.Kind)
	}
}

// rowTable wraps a single-record result in a table keyed by system_id
func rowTable(schema ingest.Schema, row ingest.Row, err error) (*ingest.Table, error) {
	if err != nil {
		return nil, err
	}
	columns := append(schema.OutputColumns(), "system_id")
	t := ingest.NewTable(columns, "system_id", 1)
	t.Append(row)
	return t, nil
}
