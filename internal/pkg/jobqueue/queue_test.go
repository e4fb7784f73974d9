package jobqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitwatch/gitwatch/internal/pkg/env"
	"github.com/gitwatch/gitwatch/internal/pkg/webhook"
)

type recordingDispatcher struct {
	mu     sync.Mutex
	events []webhook.InboundEvent
	done   chan struct{}
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{done: make(chan struct{}, 16)}
}

func (d *recordingDispatcher) Dispatch(_ context.Context, ev webhook.InboundEvent) {
	d.mu.Lock()
	d.events = append(d.events, ev)
	d.mu.Unlock()
	d.done <- struct{}{}
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.events)
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

// testRedis returns a client against a reachable Redis or skips.
func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := fmt.Sprintf("%s:%s", env.GetEnv("CACHE_HOST", "localhost"), env.GetEnv("CACHE_PORT", "6379"))
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 14})

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available at %s: %v", addr, err)
	}
	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})
	return client
}

func TestQueueDispatchesEnqueuedEvents(t *testing.T) {
	client := testRedis(t)
	dispatcher := newRecordingDispatcher()
	q := NewQueue(client, dispatcher, 2, quietLogger())
	q.Start()
	defer q.Stop()

	q.Enqueue(webhook.InboundEvent{DeliveryID: "d1", EventType: "push", RawBody: []byte(`{}`)})
	q.Enqueue(webhook.InboundEvent{DeliveryID: "d2", EventType: "star", RawBody: []byte(`{}`)})

	for i := 0; i < 2; i++ {
		select {
		case <-dispatcher.done:
		case <-time.After(5 * time.Second):
			t.Fatal("event was not dispatched")
		}
	}
	assert.Equal(t, 2, dispatcher.count())

	// Queue fully drained.
	depth, err := q.Depth(context.Background())
	require.NoError(t, err)
	assert.Zero(t, depth)
}

func TestEnqueueFallsBackWhenRedisUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1", // nothing listens here
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	dispatcher := newRecordingDispatcher()
	q := NewQueue(client, dispatcher, 1, quietLogger())

	// No workers started: the inline fallback must dispatch anyway.
	q.Enqueue(webhook.InboundEvent{DeliveryID: "d1", EventType: "push", RawBody: []byte(`{}`)})

	select {
	case <-dispatcher.done:
	case <-time.After(5 * time.Second):
		t.Fatal("inline fallback did not dispatch")
	}
	assert.Equal(t, 1, dispatcher.count())
}

// seedProcessing plants a job directly on the processing list, as a
// crashed worker would leave it.
func seedProcessing(t *testing.T, client *redis.Client, job *Job) {
	t.Helper()
	ctx := context.Background()
	data, err := json.Marshal(job)
	require.NoError(t, err)
	require.NoError(t, client.Set(ctx, jobKeyPrefix+job.ID, data, jobTTL).Err())
	require.NoError(t, client.LPush(ctx, processingKey, job.ID).Err())
}

func TestSweepRequeuesStuckJob(t *testing.T) {
	client := testRedis(t)
	q := NewQueue(client, newRecordingDispatcher(), 1, quietLogger())
	ctx := context.Background()

	picked := time.Now().Add(-10 * time.Minute)
	seedProcessing(t, client, &Job{
		ID:        "stuck-1",
		Event:     webhook.InboundEvent{DeliveryID: "d1", EventType: "push", RawBody: []byte(`{}`)},
		Attempts:  1,
		CreatedAt: picked,
		PickedAt:  &picked,
	})

	q.sweepStuck(ctx, 5*time.Minute)

	ids, err := client.LRange(ctx, queueKey, 0, -1).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"stuck-1"}, ids)

	left, err := client.LLen(ctx, processingKey).Result()
	require.NoError(t, err)
	assert.Zero(t, left)
}

func TestSweepDropsJobAtAttemptCap(t *testing.T) {
	client := testRedis(t)
	q := NewQueue(client, newRecordingDispatcher(), 1, quietLogger())
	ctx := context.Background()

	picked := time.Now().Add(-10 * time.Minute)
	seedProcessing(t, client, &Job{
		ID:        "worn-out",
		Event:     webhook.InboundEvent{DeliveryID: "d1", EventType: "push", RawBody: []byte(`{}`)},
		Attempts:  maxAttempts,
		CreatedAt: picked,
		PickedAt:  &picked,
	})

	q.sweepStuck(ctx, 5*time.Minute)

	depth, err := client.LLen(ctx, queueKey).Result()
	require.NoError(t, err)
	assert.Zero(t, depth)

	left, err := client.LLen(ctx, processingKey).Result()
	require.NoError(t, err)
	assert.Zero(t, left)

	err = client.Get(ctx, jobKeyPrefix+"worn-out").Err()
	assert.Equal(t, redis.Nil, err)
}

func TestSweepLeavesFreshJobsAlone(t *testing.T) {
	client := testRedis(t)
	q := NewQueue(client, newRecordingDispatcher(), 1, quietLogger())
	ctx := context.Background()

	picked := time.Now()
	seedProcessing(t, client, &Job{
		ID:        "in-flight",
		Event:     webhook.InboundEvent{DeliveryID: "d1", EventType: "push", RawBody: []byte(`{}`)},
		Attempts:  1,
		CreatedAt: picked,
		PickedAt:  &picked,
	})

	q.sweepStuck(ctx, 5*time.Minute)

	ids, err := client.LRange(ctx, processingKey, 0, -1).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"in-flight"}, ids)
}

func TestSweepCleansStrayProcessingEntry(t *testing.T) {
	client := testRedis(t)
	q := NewQueue(client, newRecordingDispatcher(), 1, quietLogger())
	ctx := context.Background()

	// Id on the processing list with no job body behind it.
	require.NoError(t, client.LPush(ctx, processingKey, "ghost").Err())

	q.sweepStuck(ctx, 5*time.Minute)

	left, err := client.LLen(ctx, processingKey).Result()
	require.NoError(t, err)
	assert.Zero(t, left)
}

func TestStopIsIdempotent(t *testing.T) {
	client := testRedis(t)
	q := NewQueue(client, newRecordingDispatcher(), 1, quietLogger())
	q.Start()
	q.Stop()
	assert.NotPanics(t, func() { q.Stop() })
}
