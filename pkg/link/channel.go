package link

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/rig.go/pkg/hw/uart"
)

var (
	// ErrAttached indicates another link is already served by the Channel.
	ErrAttached = errors.New("channel already attached")
	// ErrClosed indicates the Channel is closed.
	ErrClosed = errors.New("channel closed")
)

// Defaults for Channel.
const (
	DefaultRxBufferSize = 256
	DefaultTxBufferSize = 1024
)

// Channel implements uart.Channel over PacketReadWriters.
//
// It behaves like a UART with software buffers: received bytes are queued
// until a receive is started, and a transmit completes as soon as the byte is
// accepted into the TX buffer. The TX buffer is written to the link by Serve.
// While no link is attached, transmitted bytes are discarded as if the wire
// were idle and receives wait for the next link.
type Channel struct {
	// Linger delays each write to coalesce bytes into fewer packets.
	Linger time.Duration
	// Greeting is sent to every link as it attaches. Set it before Serve.
	Greeting []byte

	lock     sync.Mutex
	rx       ring
	rxWaiter func(byte)
	txBuf    []byte
	txCap    int
	txNotify chan struct{}
	attached bool
	closed   bool
}

// NewChannel creates a Channel with default buffer sizes.
func NewChannel() *Channel {
	return NewChannelSize(DefaultRxBufferSize, DefaultTxBufferSize)
}

// NewChannelSize creates a Channel with the specified buffer sizes.
func NewChannelSize(rxSize, txSize int) *Channel {
	return &Channel{
		rx:       newRing(rxSize),
		txCap:    txSize,
		txNotify: make(chan struct{}, 1),
	}
}

// StartReceive implements uart.Channel.
func (c *Channel) StartReceive(complete func(byte)) uart.Status {
	c.lock.Lock()
	if c.closed {
		c.lock.Unlock()
		return uart.Error
	}
	if c.rxWaiter != nil {
		c.lock.Unlock()
		return uart.Busy
	}
	if b, ok := c.rx.get(); ok {
		c.lock.Unlock()
		complete(b)
		return uart.Success
	}
	c.rxWaiter = complete
	c.lock.Unlock()
	return uart.Success
}

// StartTransmit implements uart.Channel.
func (c *Channel) StartTransmit(b byte, complete func()) uart.Status {
	c.lock.Lock()
	if c.closed {
		c.lock.Unlock()
		return uart.Error
	}
	attached := c.attached
	if attached {
		if len(c.txBuf) >= c.txCap {
			c.lock.Unlock()
			return uart.Busy
		}
		c.txBuf = append(c.txBuf, b)
	}
	c.lock.Unlock()
	if attached {
		select {
		case c.txNotify <- struct{}{}:
		default:
		}
	}
	complete()
	return uart.Success
}

// AbortReceive implements uart.Aborter.
func (c *Channel) AbortReceive() {
	c.lock.Lock()
	c.rxWaiter = nil
	c.lock.Unlock()
}

// AbortTransmit implements uart.Aborter.
// Transmits complete on acceptance, so there is nothing to abort.
func (c *Channel) AbortTransmit() {}

// Receive injects one received byte, the receive interrupt of the channel.
// The receive completion runs with the channel locked and must not call
// back into the Channel.
func (c *Channel) Receive(b byte) {
	c.lock.Lock()
	if w := c.rxWaiter; w != nil {
		// completed under the lock so AbortReceive never races with it.
		c.rxWaiter = nil
		w(b)
		c.lock.Unlock()
		return
	}
	dropped := c.rx.put(b)
	depth := c.rx.len()
	c.lock.Unlock()
	if dropped {
		glog.V(2).Infof("link: rx overrun, oldest byte dropped (%d queued)", depth)
	}
}

// Attached indicates whether a link is being served.
func (c *Channel) Attached() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.attached
}

// Serve attaches rw and moves bytes in both directions until ctx is done or
// the link fails. Only one link can be served at a time.
func (c *Channel) Serve(ctx context.Context, rw PacketReadWriter) error {
	if err := c.attach(); err != nil {
		return err
	}
	defer c.detach()

	done := make(chan struct{})
	defer close(done)
	errCh := make(chan error, 1)
	go func() {
		errCh <- c.readLoop(rw, done)
	}()

	for {
		select {
		case <-ctx.Done():
			closeLink(rw)
			return ctx.Err()
		case err := <-errCh:
			closeLink(rw)
			return err
		case <-c.txNotify:
			if c.Linger > 0 {
				select {
				case <-time.After(c.Linger):
				case <-ctx.Done():
					closeLink(rw)
					return ctx.Err()
				}
			}
			if err := c.flush(rw); err != nil {
				closeLink(rw)
				return err
			}
		}
	}
}

// Close closes the Channel; all later transfers fail with uart.Error.
func (c *Channel) Close() error {
	c.lock.Lock()
	c.closed = true
	c.rxWaiter = nil
	c.lock.Unlock()
	return nil
}

func (c *Channel) attach() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.attached {
		return ErrAttached
	}
	c.attached = true
	c.rx.reset()
	if len(c.Greeting) > 0 {
		c.txBuf = append(c.txBuf[:0], c.Greeting...)
		select {
		case c.txNotify <- struct{}{}:
		default:
		}
	}
	return nil
}

func (c *Channel) detach() {
	c.lock.Lock()
	c.attached = false
	c.txBuf = nil
	c.lock.Unlock()
}

func (c *Channel) readLoop(rw PacketReader, done <-chan struct{}) error {
	for {
		pkt, err := rw.ReadPacket()
		if err != nil {
			return err
		}
		select {
		case <-done:
			return nil
		default:
		}
		glog.V(3).Infof("link: RCV %d bytes", len(pkt))
		for _, b := range pkt {
			c.Receive(b)
		}
	}
}

func (c *Channel) flush(w PacketWriter) error {
	c.lock.Lock()
	data := c.txBuf
	c.txBuf = nil
	c.lock.Unlock()
	if len(data) == 0 {
		return nil
	}
	glog.V(3).Infof("link: SND %d bytes", len(data))
	return w.WritePacket(data)
}

func closeLink(rw PacketReadWriter) {
	if closer, ok := rw.(io.Closer); ok {
		closer.Close()
	}
}
