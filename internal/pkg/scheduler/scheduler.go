package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Scheduler fires the reporting suite once at start and then every Sunday
// at 09:00 local time. A new run never starts while a previous one is
// still executing.
type Scheduler struct {
	job     func(context.Context)
	log     *logrus.Logger
	now     func() time.Time
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	runMu   sync.Mutex
	running bool
}

func New(job func(context.Context), log *logrus.Logger) *Scheduler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Scheduler{
		job:    job,
		log:    log,
		now:    time.Now,
		stopCh: make(chan struct{}),
	}
}

// Start launches the scheduling loop. Safe to call once per process.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.stopCh = make(chan struct{})
	s.running = true

	s.log.Info("scheduler initialized for Sundays at 09:00")

	s.wg.Add(1)
	go s.loop()
}

// Stop waits for the loop (not an in-flight job) to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	close(s.stopCh)
	s.running = false
	s.wg.Wait()
}

func (s *Scheduler) loop() {
	defer s.wg.Done()

	// Run once at process start so a fresh deployment reports immediately.
	s.tryRun()

	for {
		wait := time.Until(NextRun(s.now()))
		timer := time.NewTimer(wait)
		select {
		case <-s.stopCh:
			timer.Stop()
			return
		case <-timer.C:
			s.tryRun()
		}
	}
}

// tryRun executes the job unless one is already in flight.
func (s *Scheduler) tryRun() {
	if !s.runMu.TryLock() {
		s.log.Warn("previous reporting run still in progress, skipping")
		return
	}
	defer s.runMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	s.job(ctx)
}

// NextRun returns the next Sunday 09:00 strictly after now.
func NextRun(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), 9, 0, 0, 0, now.Location())
	for next.Weekday() != time.Sunday || !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
