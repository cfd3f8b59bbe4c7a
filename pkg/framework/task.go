package framework

import (
	"context"
	"time"

	"github.com/golang/glog"
)

// Task is a periodic, run-to-completion task.
//
// Process is invoked at a fixed rate: each wake-up is scheduled one Period
// after the previous one, not after Process returns. When Process overruns
// one or more periods the missed wake-ups are skipped rather than queued.
type Task struct {
	TaskName string
	Period   time.Duration
	Priority int
	// Init is invoked once before the first Process, optional.
	Init    func(context.Context) error
	Process func(context.Context)
}

// Name implements Named.
func (t *Task) Name() string {
	return t.TaskName
}

// Run implements Runnable.
func (t *Task) Run(ctx context.Context) error {
	if t.Init != nil {
		if err := t.Init(ctx); err != nil {
			return err
		}
	}
	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	wake := time.Now()
	for {
		t.Process(ctx)
		var skipped int
		wake, skipped = nextWake(wake, t.Period, time.Now())
		if skipped > 0 {
			glog.V(3).Infof("task %s: overrun, skipped %d periods", t.TaskName, skipped)
		}
		timer.Reset(time.Until(wake))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// nextWake computes the wake-up following last, skipping the wake-ups
// already passed at now.
func nextWake(last time.Time, period time.Duration, now time.Time) (time.Time, int) {
	next := last.Add(period)
	if period <= 0 || next.After(now) {
		return next, 0
	}
	skipped := int(now.Sub(next)/period) + 1
	return next.Add(time.Duration(skipped) * period), skipped
}
