// Package scheduler runs the bot's periodic maintenance jobs: lore name
// refresh and clan population sampling.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is one run of a job. ctx is cancelled when the scheduler stops.
type Task func(ctx context.Context) error

// Status describes a registered ticker for the admin API.
type Status struct {
	Name      string     `json:"name"`
	Interval  string     `json:"interval"`
	Runs      int64      `json:"runs"`
	Failures  int64      `json:"failures"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	LastError string     `json:"last_error,omitempty"`
}

// Scheduler manages periodic and delayed tasks.
type Scheduler struct {
	mu      sync.Mutex
	tickers map[string]*tickerEntry
	timers  map[string]*time.Timer
	logger  *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

type tickerEntry struct {
	interval time.Duration
	ticker   *time.Ticker
	stopCh   chan struct{}

	runs     int64
	failures int64
	lastRun  time.Time
	lastErr  string
}

func New(logger *zap.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		tickers: make(map[string]*tickerEntry),
		timers:  make(map[string]*time.Timer),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// run executes fn once, converting a panic into an error.
func (s *Scheduler) run(name string, fn Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduler task panicked", zap.String("task", name), zap.Any("recover", r))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(s.ctx)
}

// AddTicker registers a task to run on a fixed interval.
// If a task with the same name exists, it is replaced.
func (s *Scheduler) AddTicker(name string, interval time.Duration, fn Task) {
	if interval <= 0 {
		s.logger.Warn("scheduler task disabled", zap.String("name", name))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.tickers[name]; ok {
		close(old.stopCh)
		delete(s.tickers, name)
	}

	entry := &tickerEntry{
		interval: interval,
		ticker:   time.NewTicker(interval),
		stopCh:   make(chan struct{}),
	}
	s.tickers[name] = entry

	go func() {
		defer entry.ticker.Stop()
		for {
			select {
			case <-entry.ticker.C:
				err := s.run(name, fn)
				s.mu.Lock()
				entry.runs++
				entry.lastRun = time.Now()
				entry.lastErr = ""
				if err != nil {
					entry.failures++
					entry.lastErr = err.Error()
				}
				s.mu.Unlock()
				if err != nil {
					s.logger.Warn("scheduler task failed", zap.String("task", name), zap.Error(err))
				}
			case <-entry.stopCh:
				return
			case <-s.ctx.Done():
				return
			}
		}
	}()
	s.logger.Info("scheduler task registered", zap.String("name", name), zap.Duration("interval", interval))
}

// AddDelay runs fn once after the given delay.
func (s *Scheduler) AddDelay(name string, delay time.Duration, fn Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.timers[name]; ok {
		old.Stop()
	}
	s.timers[name] = time.AfterFunc(delay, func() {
		defer func() {
			s.mu.Lock()
			delete(s.timers, name)
			s.mu.Unlock()
		}()
		if s.ctx.Err() != nil {
			return
		}
		if err := s.run(name, fn); err != nil {
			s.logger.Warn("delay task failed", zap.String("task", name), zap.Error(err))
		}
	})
}

// Remove stops and removes a ticker or delay task by name.
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.tickers[name]; ok {
		close(entry.stopCh)
		delete(s.tickers, name)
	}
	if t, ok := s.timers[name]; ok {
		t.Stop()
		delete(s.timers, name)
	}
}

// Stop cancels every task. It is safe to call more than once.
func (s *Scheduler) Stop() {
	s.cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, t := range s.timers {
		t.Stop()
		delete(s.timers, name)
	}
}

// ListTickers returns the names of all registered ticker tasks, sorted.
func (s *Scheduler) ListTickers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.tickers))
	for name := range s.tickers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Status reports run counters of every ticker, sorted by name.
func (s *Scheduler) Status() []Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Status, 0, len(s.tickers))
	for name, e := range s.tickers {
		st := Status{
			Name:      name,
			Interval:  e.interval.String(),
			Runs:      e.runs,
			Failures:  e.failures,
			LastError: e.lastErr,
		}
		if !e.lastRun.IsZero() {
			t := e.lastRun
			st.LastRun = &t
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
