package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/learnhub-api/pkg/jobs"
)

type mockPendingLister struct {
	ids   []string
	limit int
	err   error
}

func (m *mockPendingLister) ListPendingCertificates(ctx context.Context, limit int) ([]string, error) {
	m.limit = limit
	return m.ids, m.err
}

type mockEnqueuer struct {
	jobs []jobs.Job
	seen map[string]bool
}

func (m *mockEnqueuer) Enqueue(job jobs.Job) error {
	if m.seen == nil {
		m.seen = map[string]bool{}
	}
	if m.seen[job.ID] {
		return jobs.ErrDuplicate
	}
	m.seen[job.ID] = true
	m.jobs = append(m.jobs, job)
	return nil
}

func TestCertificateBackfillSweep(t *testing.T) {
	pending := &mockPendingLister{ids: []string{"enr-1", "enr-2"}}
	queue := &mockEnqueuer{}
	backfill := NewCertificateBackfill(pending, queue, nil, "", 25, nil)

	queued, err := backfill.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, queued)
	assert.Equal(t, 25, pending.limit)
	require.Len(t, queue.jobs, 2)
	assert.Equal(t, "certificate:enr-1", queue.jobs[0].ID)
	assert.Equal(t, JobTypeCertificate, queue.jobs[0].Type)
	assert.Equal(t, "enr-1", queue.jobs[0].Payload)

	queued, err = backfill.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, queued)
}

func TestCertificateBackfillSweepError(t *testing.T) {
	backfill := NewCertificateBackfill(&mockPendingLister{err: errors.New("db down")}, &mockEnqueuer{}, nil, "", 0, nil)

	_, err := backfill.Sweep(context.Background())
	assert.Error(t, err)
}

func TestCertificateBackfillStartRejectsBadSpec(t *testing.T) {
	backfill := NewCertificateBackfill(&mockPendingLister{}, &mockEnqueuer{}, nil, "not a schedule", 0, nil)
	assert.Error(t, backfill.Start())

	ok := NewCertificateBackfill(&mockPendingLister{}, &mockEnqueuer{}, nil, "@every 1h", 0, nil)
	require.NoError(t, ok.Start())
	ok.Stop(context.Background())
}
