package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func TestNextRun(t *testing.T) {
	loc := time.UTC

	// Wednesday -> following Sunday 09:00.
	wed := time.Date(2026, 8, 26, 15, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2026, 8, 30, 9, 0, 0, 0, loc), NextRun(wed))

	// Sunday before 09:00 -> same day.
	sunEarly := time.Date(2026, 8, 30, 8, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2026, 8, 30, 9, 0, 0, 0, loc), NextRun(sunEarly))

	// Sunday after 09:00 -> next Sunday.
	sunLate := time.Date(2026, 8, 30, 10, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2026, 9, 6, 9, 0, 0, 0, loc), NextRun(sunLate))

	// Exactly 09:00 -> strictly after, so next week.
	sunExact := time.Date(2026, 8, 30, 9, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2026, 9, 6, 9, 0, 0, 0, loc), NextRun(sunExact))
}

func TestStartRunsJobImmediately(t *testing.T) {
	ran := make(chan struct{}, 1)
	s := New(func(context.Context) { ran <- struct{}{} }, quietLogger())

	s.Start()
	defer s.Stop()

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run at start")
	}
}

func TestTryRunIsMutuallyExclusive(t *testing.T) {
	var mu sync.Mutex
	active := 0
	maxActive := 0
	release := make(chan struct{})

	s := New(func(context.Context) {
		mu.Lock()
		active++
		if active > maxActive {
			maxActive = active
		}
		mu.Unlock()
		<-release
		mu.Lock()
		active--
		mu.Unlock()
	}, quietLogger())

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.tryRun()
		}()
	}

	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, 1, maxActive, "overlapping runs must be skipped, not queued")
}

func TestStopIsIdempotent(t *testing.T) {
	s := New(func(context.Context) {}, quietLogger())
	s.Start()
	s.Stop()
	assert.NotPanics(t, func() { s.Stop() })
}
