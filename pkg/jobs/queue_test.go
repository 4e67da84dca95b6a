package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesJobs(t *testing.T) {
	done := make(chan string, 2)
	q := NewQueue("test", func(_ context.Context, job Job) error {
		done <- job.ID
		return nil
	}, QueueConfig{Workers: 2})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "a"}))
	require.NoError(t, q.Enqueue(Job{ID: "b"}))

	got := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case id := <-done:
			got[id] = true
		case <-time.After(time.Second):
			t.Fatal("job not processed")
		}
	}
	assert.True(t, got["a"] && got["b"])
	assert.Eventually(t, func() bool { return q.Pending() == 0 }, time.Second, 10*time.Millisecond)
}

func TestQueueRejectsDuplicateInFlight(t *testing.T) {
	release := make(chan struct{})
	q := NewQueue("test", func(ctx context.Context, _ Job) error {
		<-release
		return nil
	}, QueueConfig{Workers: 1})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "enr-1"}))
	assert.ErrorIs(t, q.Enqueue(Job{ID: "enr-1"}), ErrDuplicate)
	close(release)

	assert.Eventually(t, func() bool { return q.Enqueue(Job{ID: "enr-1"}) == nil }, time.Second, 10*time.Millisecond)
}

func TestQueueRetriesThenGivesUp(t *testing.T) {
	var calls int32
	gaveUp := make(chan Job, 1)
	q := NewQueue("test", func(context.Context, Job) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("boom")
	}, QueueConfig{
		Workers:    1,
		MaxRetries: 2,
		RetryDelay: 5 * time.Millisecond,
		OnGiveUp:   func(j Job, _ error) { gaveUp <- j },
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "x"}))
	select {
	case j := <-gaveUp:
		assert.Equal(t, 3, j.Attempt)
	case <-time.After(time.Second):
		t.Fatal("job never gave up")
	}
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
	assert.Equal(t, 0, q.Pending())
}

func TestQueueEnqueueBeforeStart(t *testing.T) {
	q := NewQueue("test", func(context.Context, Job) error { return nil }, QueueConfig{})
	assert.Error(t, q.Enqueue(Job{ID: "a"}))
}
