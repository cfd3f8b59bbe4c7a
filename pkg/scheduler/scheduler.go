// Package scheduler controls the timer-driven test scheduler and its
// frequency mode.
package scheduler

import (
	"fmt"
	"strings"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/rig.go/pkg/hw/gpio"
)

// FrequencyMode selects the rate of the test scheduler.
type FrequencyMode int

// Frequency modes.
const (
	Freq100Hz FrequencyMode = iota
	Freq1kHz
	Freq10kHz
)

// DefaultMode is the mode before any is selected.
const DefaultMode = Freq10kHz

// Preset is the timer programming of a FrequencyMode.
type Preset struct {
	Prescaler uint32
	Reload    uint32
	Hz        float64
}

var presets = [...]Preset{
	Freq100Hz: {Prescaler: 89, Reload: 9999, Hz: 100},
	Freq1kHz:  {Prescaler: 89, Reload: 999, Hz: 1000},
	Freq10kHz: {Prescaler: 89, Reload: 99, Hz: 10000},
}

// Valid indicates m is a known mode.
func (m FrequencyMode) Valid() bool {
	return m >= Freq100Hz && m <= Freq10kHz
}

// Preset returns the timer programming of m.
func (m FrequencyMode) Preset() (Preset, bool) {
	if !m.Valid() {
		return Preset{}, false
	}
	return presets[m], true
}

func (m FrequencyMode) String() string {
	switch m {
	case Freq100Hz:
		return "100Hz"
	case Freq1kHz:
		return "1kHz"
	case Freq10kHz:
		return "10kHz"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ErrInvalidFrequency is returned by ParseFrequency.
type ErrInvalidFrequency struct {
	Value string
}

func (e *ErrInvalidFrequency) Error() string {
	return fmt.Sprintf("invalid frequency %q: can only be 100Hz, 1kHz or 10kHz", e.Value)
}

// ParseFrequency parses a preset: "100", "1k", "1000", "10k", "10000",
// optionally followed by a case-insensitive "hz" suffix.
func ParseFrequency(s string) (FrequencyMode, error) {
	v := s
	if n := len(v); n > 2 && strings.EqualFold(v[n-2:], "hz") {
		v = v[:n-2]
	}
	switch v {
	case "10k", "10000":
		return Freq10kHz, nil
	case "1k", "1000":
		return Freq1kHz, nil
	case "100":
		return Freq100Hz, nil
	}
	return DefaultMode, &ErrInvalidFrequency{Value: s}
}

// Timer is the periodic hardware timer.
type Timer interface {
	Configure(prescaler, reload uint32)
	Start()
	Stop()
}

// Status is a snapshot of the Control.
type Status struct {
	Running bool
	Mode    FrequencyMode
	// Preset is the programming of the running timer, or of Mode when
	// stopped.
	Preset Preset
}

// Notifier is called after the state of the Control changed.
type Notifier func(Status)

// Control holds the frequency mode and starts/stops the timer.
// Mode changes take effect at the next Start; a running timer keeps its
// programmed rate.
type Control struct {
	Notifier Notifier

	timer     Timer
	indicator gpio.Pin

	lock    sync.Mutex
	mode    FrequencyMode
	running bool
	active  Preset
}

// NewControl creates a Control. indicator is toggled on every timer
// interrupt and may be nil.
func NewControl(timer Timer, indicator gpio.Pin) *Control {
	return &Control{timer: timer, indicator: indicator, mode: DefaultMode}
}

// SetMode selects the mode used by the next Start.
func (c *Control) SetMode(mode FrequencyMode) error {
	if !mode.Valid() {
		return &ErrInvalidFrequency{Value: mode.String()}
	}
	c.lock.Lock()
	c.mode = mode
	c.lock.Unlock()
	glog.V(2).Infof("scheduler: mode %v", mode)
	c.notify()
	return nil
}

// Mode returns the selected mode.
func (c *Control) Mode() FrequencyMode {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.mode
}

// Init brings up the test scheduler, which starts it.
func (c *Control) Init() {
	c.Start()
}

// Start programs the preset of the selected mode and starts the timer.
func (c *Control) Start() {
	c.lock.Lock()
	preset := presets[c.mode]
	c.active, c.running = preset, true
	c.lock.Unlock()
	c.timer.Configure(preset.Prescaler, preset.Reload)
	c.timer.Start()
	glog.Infof("scheduler: started at %vHz", preset.Hz)
	c.notify()
}

// Stop stops the timer.
func (c *Control) Stop() {
	c.timer.Stop()
	c.lock.Lock()
	c.running = false
	c.lock.Unlock()
	glog.Info("scheduler: stopped")
	c.notify()
}

// Status returns a snapshot.
func (c *Control) Status() Status {
	c.lock.Lock()
	defer c.lock.Unlock()
	s := Status{Running: c.running, Mode: c.mode, Preset: presets[c.mode]}
	if c.running {
		s.Preset = c.active
	}
	return s
}

// ProcessFromISR is the timer interrupt handler. It only toggles the
// indicator and must stay quick.
func (c *Control) ProcessFromISR() {
	if c.indicator != nil {
		c.indicator.Toggle()
	}
}

func (c *Control) notify() {
	if n := c.Notifier; n != nil {
		n(c.Status())
	}
}
