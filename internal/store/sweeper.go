package store

import (
	"context"
	"log"
	"sync"
	"time"
)

// Sweepable is implemented by every store that evicts expired records.
type Sweepable interface {
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// Sweeper drives periodic expiry eviction as an explicit lifecycle instead of
// a side effect of store construction. Tests call Sweep on the stores
// directly and never start a Sweeper.
type Sweeper struct {
	interval time.Duration
	targets  []Sweepable

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

func NewSweeper(interval time.Duration, targets ...Sweepable) *Sweeper {
	return &Sweeper{interval: interval, targets: targets}
}

func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(s.stop, s.done)
}

func (s *Sweeper) Stop() {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (s *Sweeper) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			for _, target := range s.targets {
				if _, err := target.Sweep(context.Background(), now); err != nil {
					log.Printf("sweep failed: %v", err)
				}
			}
		}
	}
}
