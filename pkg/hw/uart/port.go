package uart

import (
	"sync"
	"time"
)

// Channel starts single byte transfers on the physical link.
// A returned status other than Success means nothing was started and the
// completion callback will never be called.
type Channel interface {
	StartReceive(complete func(byte)) Status
	StartTransmit(b byte, complete func()) Status
}

// Aborter is implemented by channels which can cancel a started transfer.
// The Port aborts transfers that time out. Once an abort returns, the
// completion of the aborted transfer has either run or will never run.
type Aborter interface {
	AbortReceive()
	AbortTransmit()
}

// Defaults for Config.
const (
	DefaultMaxWait      = 10 * time.Second
	DefaultPollInterval = time.Millisecond
)

// Config defines the wait policy of a Port.
type Config struct {
	MaxWait      time.Duration `yaml:"maxWait"`
	PollInterval time.Duration `yaml:"pollInterval"`
}

// DefaultConfig returns the wait policy of the console UART.
func DefaultConfig() Config {
	return Config{MaxWait: DefaultMaxWait, PollInterval: DefaultPollInterval}
}

// Port is a blocking, timeout-bounded byte transport over a Channel.
// RecvByte and SendByte may each suspend the caller for up to MaxWait and
// must not be called from interrupt callbacks.
type Port struct {
	Channel Channel
	Clock   Clock
	Config  Config

	rx transfer
	tx transfer
}

// NewPort creates a Port.
func NewPort(ch Channel, conf Config) *Port {
	return &Port{Channel: ch, Clock: SystemClock, Config: conf}
}

// RecvByte receives exactly one byte.
func (p *Port) RecvByte() (byte, Status) {
	gen := p.rx.begin()
	if st := p.Channel.StartReceive(func(b byte) { p.rx.complete(gen, b) }); st != Success {
		return 0, st
	}
	if !p.wait(func() bool { return p.rx.done(gen) }) {
		if a, ok := p.Channel.(Aborter); ok {
			a.AbortReceive()
		}
		// a completion racing with the abort still delivers its byte.
		if b, ok := p.rx.abandon(gen); ok {
			return b, Success
		}
		return 0, Timeout
	}
	return p.rx.result(), Success
}

// SendByte transmits exactly one byte.
func (p *Port) SendByte(b byte) Status {
	gen := p.tx.begin()
	if st := p.Channel.StartTransmit(b, func() { p.tx.complete(gen, b) }); st != Success {
		return st
	}
	if !p.wait(func() bool { return p.tx.done(gen) }) {
		if a, ok := p.Channel.(Aborter); ok {
			a.AbortTransmit()
		}
		if _, ok := p.tx.abandon(gen); ok {
			return Success
		}
		return Timeout
	}
	return Success
}

// Write implements io.Writer by sending bytes one at a time.
// It stops at the first byte which is not sent.
func (p *Port) Write(data []byte) (int, error) {
	for n, b := range data {
		if st := p.SendByte(b); st != Success {
			return n, st.Err()
		}
	}
	return len(data), nil
}

func (p *Port) wait(cond func() bool) bool {
	clock := p.Clock
	if clock == nil {
		clock = SystemClock
	}
	maxWait, interval := p.Config.MaxWait, p.Config.PollInterval
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return waitUntil(clock, clock.Now().Add(maxWait), interval, cond)
}

// transfer is the completion flag of one direction. Each started transfer
// gets a new generation so a late completion of an abandoned transfer is
// ignored.
type transfer struct {
	lock     sync.Mutex
	gen      uint64
	finished bool
	data     byte
}

func (t *transfer) begin() uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.gen++
	t.finished = false
	return t.gen
}

// abandon gives up the transfer gen unless it has completed, in which case
// the completed data is returned.
func (t *transfer) abandon(gen uint64) (byte, bool) {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.gen == gen && t.finished {
		return t.data, true
	}
	t.gen++
	return 0, false
}

func (t *transfer) complete(gen uint64, b byte) {
	t.lock.Lock()
	if t.gen == gen {
		t.finished, t.data = true, b
	}
	t.lock.Unlock()
}

func (t *transfer) done(gen uint64) bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.gen == gen && t.finished
}

func (t *transfer) result() byte {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.data
}
