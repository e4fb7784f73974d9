package jobqueue

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/gitwatch/gitwatch/internal/pkg/webhook"
)

const (
	// Redis key prefixes
	jobKeyPrefix  = "gitwatch:job:"
	queueKey      = "gitwatch:jobs"
	processingKey = "gitwatch:jobs:processing"

	// Queued jobs expire with their body if never picked up.
	jobTTL = 24 * time.Hour

	// A job sitting on the processing list longer than stuckAge was
	// picked by a worker that died mid-flight. The sweeper requeues it
	// until the attempt cap, then drops it.
	stuckAge      = 5 * time.Minute
	sweepInterval = time.Minute
	maxAttempts   = 3
)

// Job is one queued webhook dispatch. The delivery is acknowledged to the
// sender before the job runs, so job failures end up in the log only; the
// router owns its own error boundary. Crash recovery gets a few local
// attempts via the sweeper, after which convergence is left to sender
// redelivery.
type Job struct {
	ID        string               `json:"id"`
	Event     webhook.InboundEvent `json:"event"`
	Attempts  int                  `json:"attempts"`
	CreatedAt time.Time            `json:"created_at"`
	PickedAt  *time.Time           `json:"picked_at,omitempty"`
}

// Dispatcher runs a routed event. Satisfied by webhook.Router.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev webhook.InboundEvent)
}

// Queue hands webhook deliveries to background workers through Redis, so
// the HTTP handler never blocks on storage or notification calls.
type Queue struct {
	client     *redis.Client
	dispatcher Dispatcher
	log        *logrus.Logger
	workers    int
	stopCh     chan struct{}
	wg         sync.WaitGroup
	mu         sync.Mutex
	running    bool
}

// NewQueue creates a dispatch queue with the given worker count.
func NewQueue(client *redis.Client, dispatcher Dispatcher, workers int, log *logrus.Logger) *Queue {
	if workers <= 0 {
		workers = 3
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Queue{
		client:     client,
		dispatcher: dispatcher,
		log:        log,
		workers:    workers,
		stopCh:     make(chan struct{}),
	}
}

// Start launches the worker goroutines.
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return
	}
	q.stopCh = make(chan struct{})
	q.running = true
	q.log.Infof("dispatch queue starting %d workers", q.workers)

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}

	q.wg.Add(1)
	go q.stuckSweeper()
}

// Stop drains the workers. In-flight dispatches finish; queued jobs stay
// in Redis for the next start.
func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.running {
		return
	}
	close(q.stopCh)
	q.running = false
	q.wg.Wait()
	q.log.Info("dispatch queue stopped")
}

// Enqueue queues one delivery for background dispatch. On any Redis
// failure it falls back to dispatching in a detached goroutine so the
// event is still processed.
func (q *Queue) Enqueue(ev webhook.InboundEvent) {
	job := &Job{
		ID:        uuid.New().String(),
		Event:     ev,
		CreatedAt: time.Now(),
	}

	ctx := context.Background()
	data, err := json.Marshal(job)
	if err == nil {
		if err = q.client.Set(ctx, jobKeyPrefix+job.ID, data, jobTTL).Err(); err == nil {
			err = q.client.LPush(ctx, queueKey, job.ID).Err()
		}
	}
	if err != nil {
		q.log.WithError(err).WithField("delivery_id", ev.DeliveryID).
			Warn("enqueue failed, dispatching inline")
		go q.dispatcher.Dispatch(context.Background(), ev)
	}
}

func (q *Queue) worker(id int) {
	defer q.wg.Done()
	ctx := context.Background()

	for {
		select {
		case <-q.stopCh:
			return
		default:
			job, err := q.dequeue(ctx)
			if err != nil {
				if err != redis.Nil {
					q.log.WithError(err).Errorf("worker %d: dequeue failed", id)
				}
				time.Sleep(time.Second)
				continue
			}
			q.process(ctx, job)
		}
	}
}

// dequeue atomically moves one job id to the processing list and loads it.
// The pick is recorded on the job body so the sweeper can age it.
func (q *Queue) dequeue(ctx context.Context) (*Job, error) {
	id, err := q.client.LMove(ctx, queueKey, processingKey, "right", "left").Result()
	if err != nil {
		return nil, err
	}

	data, err := q.client.Get(ctx, jobKeyPrefix+id).Result()
	if err != nil {
		// Job body expired or was lost; drop the stray id.
		q.client.LRem(ctx, processingKey, 1, id)
		return nil, err
	}

	var job Job
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		q.client.LRem(ctx, processingKey, 1, id)
		q.client.Del(ctx, jobKeyPrefix+id)
		return nil, err
	}

	now := time.Now()
	job.Attempts++
	job.PickedAt = &now
	if data, err := json.Marshal(&job); err == nil {
		if err := q.client.Set(ctx, jobKeyPrefix+job.ID, data, jobTTL).Err(); err != nil {
			q.log.WithError(err).Warnf("could not record pick for job %s", job.ID)
		}
	}
	return &job, nil
}

// stuckSweeper periodically requeues jobs stranded on the processing
// list by a crashed worker.
func (q *Queue) stuckSweeper() {
	defer q.wg.Done()
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	ctx := context.Background()

	for {
		select {
		case <-q.stopCh:
			return
		case <-ticker.C:
			q.sweepStuck(ctx, stuckAge)
		}
	}
}

// sweepStuck scans the processing list once. Entries older than maxAge
// go back on the queue until the attempt cap; stray entries with no
// body are cleaned up.
func (q *Queue) sweepStuck(ctx context.Context, maxAge time.Duration) {
	ids, err := q.client.LRange(ctx, processingKey, 0, -1).Result()
	if err != nil {
		q.log.WithError(err).Error("sweeper: could not read processing list")
		return
	}

	now := time.Now()
	for _, id := range ids {
		data, err := q.client.Get(ctx, jobKeyPrefix+id).Result()
		if err != nil {
			if err != redis.Nil {
				q.log.WithError(err).Errorf("sweeper: load failed for job %s", id)
			}
			q.client.LRem(ctx, processingKey, 1, id)
			continue
		}

		var job Job
		if err := json.Unmarshal([]byte(data), &job); err != nil {
			q.log.WithError(err).Errorf("sweeper: bad job body for %s", id)
			q.client.LRem(ctx, processingKey, 1, id)
			q.client.Del(ctx, jobKeyPrefix+id)
			continue
		}

		picked := job.CreatedAt
		if job.PickedAt != nil && !job.PickedAt.IsZero() {
			picked = *job.PickedAt
		}
		if now.Sub(picked) <= maxAge {
			continue
		}

		if job.Attempts >= maxAttempts {
			q.log.WithField("delivery_id", job.Event.DeliveryID).
				Warnf("dropping job %s after %d attempts", job.ID, job.Attempts)
			q.client.LRem(ctx, processingKey, 1, id)
			q.client.Del(ctx, jobKeyPrefix+id)
			continue
		}

		q.log.WithField("delivery_id", job.Event.DeliveryID).
			Warnf("requeueing stuck job %s (attempt %d)", job.ID, job.Attempts)
		q.client.LRem(ctx, processingKey, 1, id)
		q.client.RPush(ctx, queueKey, id)
	}
}

func (q *Queue) process(ctx context.Context, job *Job) {
	q.dispatcher.Dispatch(ctx, job.Event)
	q.client.LRem(ctx, processingKey, 1, job.ID)
	q.client.Del(ctx, jobKeyPrefix+job.ID)
}

// Depth reports how many jobs are waiting, for operational visibility.
func (q *Queue) Depth(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, queueKey).Result()
}
