package server

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
)

// Scheduler runs at most one delayed task per key. Scheduling a key again
// replaces the pending task, and a task that fires after being replaced or
// cancelled does nothing.
type Scheduler struct {
	clock  quartz.Clock
	logger *log.Logger

	mu      sync.Mutex
	tasks   map[string]*scheduledTask
	seq     uint64
	stopped bool
}

type scheduledTask struct {
	name  string
	seq   uint64
	timer *quartz.Timer
}

// NewScheduler creates a scheduler driven by the given clock
func NewScheduler(clock quartz.Clock, logger *log.Logger) *Scheduler {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &Scheduler{
		clock:  clock,
		logger: logger.WithPrefix("scheduler"),
		tasks:  make(map[string]*scheduledTask),
	}
}

// Schedule arranges for fn to run after delay. The name is passed to the
// clock as a tag so tests can trap specific timers.
func (s *Scheduler) Schedule(key, name string, delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}

	if prev, ok := s.tasks[key]; ok {
		prev.timer.Stop()
		s.logger.Debug("Replaced pending task", "key", key, "task", prev.name)
	}

	s.seq++
	task := &scheduledTask{name: name, seq: s.seq}
	task.timer = s.clock.AfterFunc(delay, func() {
		if !s.claim(key, task.seq) {
			return
		}
		fn()
	}, "Scheduler", name)
	s.tasks[key] = task
}

// claim removes the entry for key if it still belongs to seq.
func (s *Scheduler) claim(key string, seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[key]
	if !ok || task.seq != seq {
		return false
	}
	delete(s.tasks, key)
	return true
}

// Cancel stops the pending task for key, if any
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[key]
	if !ok {
		return false
	}
	task.timer.Stop()
	delete(s.tasks, key)
	return true
}

// Pending returns the name of the task waiting on key
func (s *Scheduler) Pending(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[key]
	if !ok {
		return "", false
	}
	return task.name, true
}

// Len returns the number of pending tasks
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Stop cancels every pending task and refuses new ones
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, task := range s.tasks {
		task.timer.Stop()
		delete(s.tasks, key)
	}
	s.stopped = true
}
