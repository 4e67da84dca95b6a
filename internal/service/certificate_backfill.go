package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/learnhub-api/pkg/jobs"
)

type pendingCertificateLister interface {
	ListPendingCertificates(ctx context.Context, limit int) ([]string, error)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// CertificateBackfill periodically queues completed enrollments that have no
// certificate, recovering from issuance failures on the request path.
type CertificateBackfill struct {
	pending pendingCertificateLister
	queue   jobEnqueuer
	metrics *MetricsService
	logger  *zap.Logger
	spec    string
	batch   int
	timeout time.Duration
	cron    *cron.Cron
}

// NewCertificateBackfill constructs the sweep. spec is a robfig/cron expression such as "@every 10m".
func NewCertificateBackfill(pending pendingCertificateLister, queue jobEnqueuer, metrics *MetricsService, spec string, batch int, logger *zap.Logger) *CertificateBackfill {
	if spec == "" {
		spec = "@every 10m"
	}
	if batch <= 0 {
		batch = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CertificateBackfill{
		pending: pending,
		queue:   queue,
		metrics: metrics,
		logger:  logger,
		spec:    spec,
		batch:   batch,
		timeout: 30 * time.Second,
	}
}

// Start registers the sweep on a cron scheduler and starts it.
func (b *CertificateBackfill) Start() error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(b.spec, b.run); err != nil {
		return fmt.Errorf("schedule certificate backfill %q: %w", b.spec, err)
	}
	b.cron = c
	c.Start()
	b.logger.Info("certificate backfill scheduled", zap.String("spec", b.spec), zap.Int("batch", b.batch))
	return nil
}

// Stop halts scheduling and waits for a running sweep to finish or ctx to expire.
func (b *CertificateBackfill) Stop(ctx context.Context) {
	if b.cron == nil {
		return
	}
	select {
	case <-b.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (b *CertificateBackfill) run() {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()
	if _, err := b.Sweep(ctx); err != nil {
		b.logger.Error("certificate backfill sweep failed", zap.Error(err))
	}
}

// Sweep queues one job per pending enrollment and returns how many were queued.
// Enrollments already in flight are skipped.
func (b *CertificateBackfill) Sweep(ctx context.Context) (int, error) {
	ids, err := b.pending.ListPendingCertificates(ctx, b.batch)
	if err != nil {
		return 0, err
	}
	queued := 0
	for _, id := range ids {
		err := b.queue.Enqueue(jobs.Job{ID: "certificate:" + id, Type: JobTypeCertificate, Payload: id})
		switch {
		case err == nil:
			queued++
		case errors.Is(err, jobs.ErrDuplicate):
		default:
			b.logger.Warn("failed to queue certificate backfill", zap.String("enrollment_id", id), zap.Error(err))
		}
	}
	b.metrics.RecordBackfillEnqueued(queued)
	if queued > 0 {
		b.logger.Info("certificate backfill queued", zap.Int("count", queued))
	}
	return queued, nil
}
