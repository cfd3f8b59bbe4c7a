package framework

import (
	"context"
	"log"
	"sort"

	"github.com/golang/glog"
)

// Scheduler starts tasks and other runnables in priority order and waits
// for all of them to stop.
type Scheduler struct {
	entries []schedEntry
}

type schedEntry struct {
	priority int
	runnable Runnable
}

// NewScheduler creates a Scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Add adds tasks.
func (s *Scheduler) Add(tasks ...*Task) *Scheduler {
	for _, t := range tasks {
		s.entries = append(s.entries, schedEntry{priority: t.Priority, runnable: t})
	}
	return s
}

// AddRunnable adds a Runnable at the specified priority level.
func (s *Scheduler) AddRunnable(priority int, name string, r Runnable) *Scheduler {
	if _, ok := r.(Named); !ok && name != "" {
		r = NamedRun(name, r)
	}
	s.entries = append(s.entries, schedEntry{priority: priority, runnable: r})
	return s
}

// Len returns the number of added runnables.
func (s *Scheduler) Len() int {
	return len(s.entries)
}

// Run implements Runnable.
// It returns when all runnables stopped; the first failure of any of them
// cancels the rest.
func (s *Scheduler) Run(ctx context.Context) error {
	entries := make([]schedEntry, len(s.entries))
	copy(entries, s.entries)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].priority < entries[j].priority
	})

	runner := NewRunnerWith(ctx).WithFailFast(true)
	for _, e := range entries {
		glog.V(4).Infof("start %s at priority %d", nameOf(e.runnable), e.priority)
		runner.Go(e.runnable)
	}
	return runner.Wait()
}

// RunOrFail is intended to be used in main to run until interrupted.
func (s *Scheduler) RunOrFail() {
	runner := NewRunner().HandleSignals()
	runner.Go(s)
	if err := runner.Wait(); err != nil {
		log.Fatalln(err)
	}
}
