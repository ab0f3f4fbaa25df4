// Package worker runs campaign sends in the background. The api package
// never imports it: Dispatch hands payloads over through the
// dispatch.Enqueuer interface, which *Runner satisfies.
//
// There is deliberately no retry path. Re-running a send batch could double
// up receipts whose email already left the provider, and the underlying
// donation data may have moved since the checksum was verified. Failed
// receipts stay not_sent and the watchdog keeps stuck campaigns visible in
// the logs for manual follow-up.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/babyccino/donationreceipt-backend/internal/db"
	"github.com/babyccino/donationreceipt-backend/internal/dispatch"
)

// RunnerConfig holds tuning parameters for the Runner. Zero values select
// the defaults from DefaultRunnerConfig.
type RunnerConfig struct {
	// Workers is the number of concurrent campaign-send goroutines.
	// Default: 3. Note this bounds campaigns in flight; per-recipient
	// concurrency within a campaign is the Sender's concern.
	Workers int

	// WatchInterval is how often the watchdog scans for campaigns that were
	// created but never finished dispatching (e.g. the process died
	// mid-batch). Default: 5 minutes.
	WatchInterval time.Duration

	// JobTimeout is the per-campaign context deadline. Default: 10 minutes,
	// sized for a large recipient list at bounded send concurrency.
	JobTimeout time.Duration
}

// DefaultRunnerConfig returns safe production defaults.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		Workers:       3,
		WatchInterval: 5 * time.Minute,
		JobTimeout:    10 * time.Minute,
	}
}

// Runner manages a pool of send goroutines fed by an in-process channel,
// plus a watchdog that reports campaigns stuck before dispatch completion.
type Runner struct {
	sender *dispatch.Sender
	q      db.Querier
	cfg    RunnerConfig
	logger *slog.Logger

	queue chan dispatch.Payload
	wg    sync.WaitGroup
}

// NewRunner constructs a Runner. Call Start() to begin processing.
func NewRunner(sender *dispatch.Sender, q db.Querier, cfg RunnerConfig, logger *slog.Logger) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultRunnerConfig().Workers
	}
	if cfg.WatchInterval <= 0 {
		cfg.WatchInterval = DefaultRunnerConfig().WatchInterval
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = DefaultRunnerConfig().JobTimeout
	}

	return &Runner{
		sender: sender,
		q:      q,
		cfg:    cfg,
		logger: logger,
		// Buffer = Workers*2 so Enqueue never blocks under normal load.
		queue: make(chan dispatch.Payload, cfg.Workers*2),
	}
}

// Enqueue pushes a campaign payload onto the in-process channel. It
// satisfies dispatch.Enqueuer. If the channel is full it returns an error
// rather than blocking the HTTP response; the campaign's receipts stay
// not_sent and the watchdog will flag it.
func (r *Runner) Enqueue(_ context.Context, p dispatch.Payload) error {
	select {
	case r.queue <- p:
		r.logger.Info("worker: enqueued campaign", "campaign_id", p.CampaignID)
		return nil
	default:
		return errors.New("worker: queue is full")
	}
}

// Start launches the worker pool and the watchdog. It blocks until ctx is
// cancelled. Call it in a goroutine from main:
//
//	go runner.Start(ctx)
func (r *Runner) Start(ctx context.Context) {
	r.logger.Info("worker: starting", "workers", r.cfg.Workers, "watch_interval", r.cfg.WatchInterval)

	for i := 0; i < r.cfg.Workers; i++ {
		r.wg.Add(1)
		go r.work(ctx, i)
	}

	r.wg.Add(1)
	go r.watch(ctx)

	r.wg.Wait()
	r.logger.Info("worker: stopped")
}

// work is the inner loop for each send goroutine.
func (r *Runner) work(ctx context.Context, id int) {
	defer r.wg.Done()
	log := r.logger.With("worker_id", id)
	log.Info("worker: goroutine started")

	for {
		select {
		case <-ctx.Done():
			log.Info("worker: goroutine stopping")
			return
		case payload := <-r.queue:
			jobCtx, cancel := context.WithTimeout(ctx, r.cfg.JobTimeout)
			err := r.sender.SendCampaign(jobCtx, payload)
			cancel()
			if err != nil {
				log.Error("worker: campaign send failed", "campaign_id", payload.CampaignID, "error", err)
			}
		}
	}
}

// watch periodically logs campaigns whose dispatch never completed, so an
// operator can see them without querying the database.
func (r *Runner) watch(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.cfg.WatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.watchOnce(ctx)
		}
	}
}

func (r *Runner) watchOnce(ctx context.Context) {
	campaigns, err := r.q.ListUndispatchedCampaigns(ctx)
	if err != nil {
		r.logger.Error("worker: watchdog query failed", "error", err)
		return
	}
	for _, c := range campaigns {
		// Skip anything fresh enough to still be running in a worker.
		if time.Since(c.CreatedAt) < r.cfg.JobTimeout {
			continue
		}
		r.logger.Warn("worker: campaign never finished dispatching",
			"campaign_id", c.ID,
			"account_id", c.AccountID,
			"created_at", c.CreatedAt,
		)
	}
}
