// Package heartbeat periodically probes the bot's dependencies and keeps the
// latest result for the health endpoint.
package heartbeat

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Check probes one dependency. A nil error means healthy.
type Check func(ctx context.Context) error

// Status is the outcome of the latest tick.
type Status struct {
	At       time.Time         `json:"at"`
	Healthy  bool              `json:"healthy"`
	Pending  int               `json:"pending"`
	Failures map[string]string `json:"failures,omitempty"`
}

type Service struct {
	checks   map[string]Check
	pending  func() int
	interval time.Duration
	timeout  time.Duration
	mu       sync.Mutex
	stopCh   chan struct{}
	running  bool
	last     Status
}

type Config struct {
	Interval time.Duration
	Timeout  time.Duration // per check
	Checks   map[string]Check
	Pending  func() int
}

func NewService(cfg Config) *Service {
	interval := cfg.Interval
	if interval == 0 {
		interval = time.Minute
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	checks := make(map[string]Check, len(cfg.Checks))
	for name, c := range cfg.Checks {
		checks[name] = c
	}
	return &Service{
		checks:   checks,
		pending:  cfg.Pending,
		interval: interval,
		timeout:  timeout,
		stopCh:   make(chan struct{}),
		last:     Status{Healthy: true},
	}
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	go func() {
		s.tick(ctx)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.tick(ctx)
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	close(s.stopCh)
}

// TriggerNow runs one round of checks synchronously and returns its status.
func (s *Service) TriggerNow(ctx context.Context) Status {
	return s.tick(ctx)
}

// Status returns the latest recorded status.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.last
	if st.Failures != nil {
		failures := make(map[string]string, len(st.Failures))
		for k, v := range st.Failures {
			failures[k] = v
		}
		st.Failures = failures
	}
	return st
}

func (s *Service) tick(ctx context.Context) Status {
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	st := Status{At: time.Now(), Healthy: true}
	for _, name := range names {
		cctx, cancel := context.WithTimeout(ctx, s.timeout)
		err := s.checks[name](cctx)
		cancel()
		if err != nil {
			if st.Failures == nil {
				st.Failures = make(map[string]string)
			}
			st.Failures[name] = err.Error()
			st.Healthy = false
			slog.Warn("heartbeat: check failed", "check", name, "error", err)
		}
	}
	if s.pending != nil {
		st.Pending = s.pending()
	}
	slog.Debug("heartbeat: tick", "healthy", st.Healthy, "pending", st.Pending)

	s.mu.Lock()
	s.last = st
	s.mu.Unlock()
	return st
}
