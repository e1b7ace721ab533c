package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesJobs(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	done := make(chan struct{})

	q := NewQueue("test", func(_ context.Context, job Job) error {
		mu.Lock()
		seen = append(seen, job.ID)
		if len(seen) == 2 {
			close(done)
		}
		mu.Unlock()
		return nil
	}, QueueConfig{Workers: 2})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "a"}))
	require.NoError(t, q.Enqueue(Job{ID: "b"}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("jobs were not processed")
	}
	mu.Lock()
	assert.ElementsMatch(t, []string{"a", "b"}, seen)
	mu.Unlock()
}

func TestQueueRetriesFailedJobs(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	done := make(chan struct{})

	q := NewQueue("test", func(_ context.Context, job Job) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if job.Attempt == 0 {
			return assert.AnError
		}
		close(done)
		return nil
	}, QueueConfig{Workers: 1, MaxRetries: 2, RetryDelay: 10 * time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "flaky"}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried")
	}
	mu.Lock()
	assert.Equal(t, 2, attempts)
	mu.Unlock()
}

func TestQueueEnqueueBeforeStartFails(t *testing.T) {
	q := NewQueue("test", func(context.Context, Job) error { return nil }, QueueConfig{})
	assert.Error(t, q.Enqueue(Job{ID: "early"}))
}
