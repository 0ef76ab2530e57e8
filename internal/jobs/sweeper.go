package jobs

import (
	"log"
	"sync"
	"time"
)

// Sweeper periodically evicts expired artifact areas from a Manager.
type Sweeper struct {
	manager  *Manager
	interval time.Duration
	stop     chan struct{}
	wg       sync.WaitGroup
}

// NewSweeper creates a sweeper that runs at the given interval.
func NewSweeper(manager *Manager, interval time.Duration) *Sweeper {
	return &Sweeper{
		manager:  manager,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Start begins the background eviction loop.
func (s *Sweeper) Start() {
	s.wg.Add(1)
	go s.run()
	log.Println("Eviction sweeper started")
}

// Stop shuts the loop down and waits for it to exit.
func (s *Sweeper) Stop() {
	close(s.stop)
	s.wg.Wait()
	log.Println("Eviction sweeper stopped")
}

func (s *Sweeper) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.manager.sweepOnce(time.Now())
		}
	}
}
