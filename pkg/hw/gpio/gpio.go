// Package gpio provides the indicator pins of the rig.
package gpio

import (
	"sync/atomic"

	"github.com/golang/glog"
)

// Pin is a digital output.
// Toggle may be called from the timer interrupt path and must not block.
type Pin interface {
	Toggle()
	Get() bool
}

// LED is a simulated output pin.
type LED struct {
	name    string
	state   uint32
	toggles uint64
}

// NewLED creates a simulated LED, initially off.
func NewLED(name string) *LED {
	return &LED{name: name}
}

// Name returns the name of the LED.
func (l *LED) Name() string {
	return l.name
}

// Toggle implements Pin.
func (l *LED) Toggle() {
	for {
		old := atomic.LoadUint32(&l.state)
		if atomic.CompareAndSwapUint32(&l.state, old, old^1) {
			break
		}
	}
	n := atomic.AddUint64(&l.toggles, 1)
	if glog.V(3) {
		glog.Infof("gpio: %s toggled (#%d)", l.name, n)
	}
}

// Get implements Pin.
func (l *LED) Get() bool {
	return atomic.LoadUint32(&l.state) != 0
}

// Toggles returns the number of toggles.
func (l *LED) Toggles() uint64 {
	return atomic.LoadUint64(&l.toggles)
}
