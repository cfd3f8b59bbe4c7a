// Package timer simulates the periodic hardware timer (TIM2) driving the
// test scheduler.
package timer

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"
)

// DefaultClockHz is the timer input clock.
const DefaultClockHz = 90000000

// TraceDepth is the number of most recent register operations kept.
const TraceDepth = 32

// Op is a register operation recorded in the trace.
type Op string

// Register operations.
const (
	OpConfigure      Op = "configure"
	OpEnableCounter  Op = "enable-counter"
	OpDisableCounter Op = "disable-counter"
	OpEnableIT       Op = "enable-it"
	OpDisableIT      Op = "disable-it"
	OpClearUpdate    Op = "clear-update"
)

// TIM is a simulated up-counting timer with an update interrupt.
// The handler runs in "interrupt context": it must be quick and must not
// block.
type TIM struct {
	Name    string
	ClockHz uint32

	lock       sync.Mutex
	prescaler  uint32
	reload     uint32
	counterOn  bool
	itOn       bool
	updateFlag bool
	handler    func()
	fired      uint64
	trace      []Op
	changed    chan struct{}
}

// New creates a TIM calling handler on every update interrupt.
func New(name string, clockHz uint32, handler func()) *TIM {
	if clockHz == 0 {
		clockHz = DefaultClockHz
	}
	return &TIM{
		Name:    name,
		ClockHz: clockHz,
		handler: handler,
		changed: make(chan struct{}, 1),
	}
}

// SetHandler replaces the interrupt handler.
func (t *TIM) SetHandler(handler func()) {
	t.lock.Lock()
	t.handler = handler
	t.lock.Unlock()
}

// Configure programs prescaler and auto-reload registers.
func (t *TIM) Configure(prescaler, reload uint32) {
	t.lock.Lock()
	t.prescaler, t.reload = prescaler, reload
	t.record(OpConfigure)
	t.lock.Unlock()
	t.notify()
}

// Start starts counting with the update interrupt enabled.
// The counter is stopped and a stale update flag cleared first so the
// first interrupt comes one full period later.
func (t *TIM) Start() {
	t.lock.Lock()
	t.counterOn = false
	t.record(OpDisableCounter)
	t.updateFlag = false
	t.record(OpClearUpdate)
	t.itOn = true
	t.record(OpEnableIT)
	t.counterOn = true
	t.record(OpEnableCounter)
	t.lock.Unlock()
	glog.V(2).Infof("timer %s: started, period %v", t.Name, t.Period())
	t.notify()
}

// Stop stops the timer. The interrupt is disabled before the counter and
// the pending update flag is cleared last, so no interrupt fires after
// Stop returns.
func (t *TIM) Stop() {
	t.lock.Lock()
	t.itOn = false
	t.record(OpDisableIT)
	t.counterOn = false
	t.record(OpDisableCounter)
	t.updateFlag = false
	t.record(OpClearUpdate)
	t.lock.Unlock()
	glog.V(2).Infof("timer %s: stopped", t.Name)
	t.notify()
}

// Running indicates the counter is enabled.
func (t *TIM) Running() bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.counterOn
}

// Registers returns the programmed prescaler and reload.
func (t *TIM) Registers() (prescaler, reload uint32) {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.prescaler, t.reload
}

// Period is the update period of the programmed registers.
func (t *TIM) Period() time.Duration {
	psc, arr := t.Registers()
	ticks := (uint64(psc) + 1) * (uint64(arr) + 1)
	return time.Duration(ticks * uint64(time.Second) / uint64(t.ClockHz))
}

// UpdatePending reports the update flag.
func (t *TIM) UpdatePending() bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.updateFlag
}

// Fired returns the number of handled update interrupts.
func (t *TIM) Fired() uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.fired
}

// Trace returns the last TraceDepth register operations, oldest first.
func (t *TIM) Trace() []Op {
	t.lock.Lock()
	defer t.lock.Unlock()
	return append([]Op(nil), t.trace...)
}

// ResetTrace clears the recorded register operations.
func (t *TIM) ResetTrace() {
	t.lock.Lock()
	t.trace = nil
	t.lock.Unlock()
}

// Overflow simulates a counter overflow without servicing the interrupt:
// the update flag is set if the counter runs.
func (t *TIM) Overflow() {
	t.lock.Lock()
	if t.counterOn {
		t.updateFlag = true
	}
	t.lock.Unlock()
}

// IRQ is the interrupt service routine: it clears the update flag and runs
// the handler if the update interrupt is enabled and pending.
func (t *TIM) IRQ() {
	t.lock.Lock()
	if !t.itOn || !t.updateFlag {
		t.lock.Unlock()
		return
	}
	t.updateFlag = false
	t.fired++
	handler := t.handler
	t.lock.Unlock()
	if handler != nil {
		handler()
	}
}

// Tick is a counter overflow followed by the interrupt.
func (t *TIM) Tick() {
	t.Overflow()
	t.IRQ()
}

// Run implements Runnable, ticking at Period while the counter runs.
func (t *TIM) Run(ctx context.Context) error {
	var ticker *time.Ticker
	var tick <-chan time.Time
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.changed:
			if ticker != nil {
				ticker.Stop()
				ticker, tick = nil, nil
			}
			if period := t.Period(); t.Running() && period > 0 {
				ticker = time.NewTicker(period)
				tick = ticker.C
			}
		case <-tick:
			t.Tick()
		}
	}
}

func (t *TIM) record(op Op) {
	if len(t.trace) < TraceDepth {
		t.trace = append(t.trace, op)
		return
	}
	copy(t.trace, t.trace[1:])
	t.trace[TraceDepth-1] = op
}

func (t *TIM) notify() {
	select {
	case t.changed <- struct{}{}:
	default:
	}
}
