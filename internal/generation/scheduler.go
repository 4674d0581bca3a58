package generation

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// Scheduler decides when the next Advance runs. The orchestrator calls
// Schedule after every successful non-terminal transition.
type Scheduler interface {
	Schedule(userID string, from Step, delay time.Duration)
	Cancel(userID string)
}

// Advancer is the part of the orchestrator a scheduler drives.
type Advancer interface {
	Advance(ctx context.Context, userID string) (Status, error)
	GetStatus(ctx context.Context, userID string) (*Status, error)
}

type pendingAdvance struct {
	timer *time.Timer
	from  Step
	seq   uint64
}

// TimerScheduler runs scheduled advances on timers, with at most a fixed
// number of advances in flight.
type TimerScheduler struct {
	advancer Advancer
	sem      *semaphore.Weighted
	timeout  time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	pending map[string]*pendingAdvance
	seq     uint64
	stopped bool
}

// NewTimerScheduler creates a scheduler allowing maxConcurrent advances at a
// time. timeout bounds a single advance; zero means 15 minutes.
func NewTimerScheduler(maxConcurrent int, timeout time.Duration) *TimerScheduler {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if timeout <= 0 {
		timeout = 15 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &TimerScheduler{
		sem:     semaphore.NewWeighted(int64(maxConcurrent)),
		timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
		pending: make(map[string]*pendingAdvance),
	}
}

// Bind sets the advancer. It must be called before the first Schedule.
func (s *TimerScheduler) Bind(a Advancer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advancer = a
}

// Schedule replaces any pending advance for userID.
func (s *TimerScheduler) Schedule(userID string, from Step, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	s.dropLocked(userID)

	s.seq++
	p := &pendingAdvance{from: from, seq: s.seq}
	s.wg.Add(1)
	p.timer = time.AfterFunc(delay, func() {
		defer s.wg.Done()
		s.fire(userID, p.seq)
	})
	s.pending[userID] = p
}

// Cancel drops the pending advance for userID, if any. An advance already
// running is not interrupted; its commit will lose the fencing check.
func (s *TimerScheduler) Cancel(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropLocked(userID)
}

func (s *TimerScheduler) dropLocked(userID string) {
	p, ok := s.pending[userID]
	if !ok {
		return
	}
	delete(s.pending, userID)
	if p.timer.Stop() {
		s.wg.Done()
	}
}

// Pending reports whether an advance is waiting for userID.
func (s *TimerScheduler) Pending(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[userID]
	return ok
}

// Stop cancels pending timers and waits for running advances to return.
func (s *TimerScheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	for userID := range s.pending {
		s.dropLocked(userID)
	}
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

func (s *TimerScheduler) fire(userID string, seq uint64) {
	s.mu.Lock()
	p, ok := s.pending[userID]
	if !ok || p.seq != seq {
		s.mu.Unlock()
		return
	}
	delete(s.pending, userID)
	from := p.from
	advancer := s.advancer
	s.mu.Unlock()

	if advancer == nil {
		log.Printf("Scheduler: no advancer bound, dropping advance for %s", userID)
		return
	}

	if err := s.sem.Acquire(s.ctx, 1); err != nil {
		return
	}
	defer s.sem.Release(1)

	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	st, err := advancer.GetStatus(ctx, userID)
	if err != nil {
		log.Printf("Scheduler: failed to read status for %s: %v", userID, err)
		return
	}
	if st == nil || !st.IsGenerating || st.CurrentStep != from {
		return
	}

	if _, err := advancer.Advance(ctx, userID); err != nil && !errors.Is(err, ErrNoActiveGeneration) {
		log.Printf("Scheduler: advance for %s at %s failed: %v", userID, from, err)
	}
}
