package mqtt

import (
	"io"
	"sync"
)

// Topic conventions, relative to the Queue's TopicPrefix.
const (
	ConsoleInSuffix  = "/console/in"
	ConsoleOutSuffix = "/console/out"
	MetaSuffix       = "/meta"
	StatusSuffix     = "/status"
)

// ReadWriter implements PacketReadWriter over a pair of topics.
type ReadWriter struct {
	Queue    *Queue
	SubTopic string
	PubTopic string
	// QoS used for publishing, defaults to 1 to keep console bytes ordered
	// and delivered across reconnects.
	QoS byte

	packetCh chan []byte
	done     chan struct{}
	once     sync.Once
	sub      *Subscription
}

// NewReadWriter creates the ReadWriter.
func NewReadWriter(q *Queue) *ReadWriter {
	return &ReadWriter{
		Queue:    q,
		QoS:      1,
		packetCh: make(chan []byte, 16),
		done:     make(chan struct{}),
	}
}

// WithTopics specifies the topics.
func (p *ReadWriter) WithTopics(sub, pub string) *ReadWriter {
	p.SubTopic, p.PubTopic = sub, pub
	return p
}

// ForRig sets topics using default convention for the rig side:
// SubTopic = rigID/console/in
// PubTopic = rigID/console/out
func (p *ReadWriter) ForRig(rigID string) *ReadWriter {
	return p.WithTopics(rigID+ConsoleInSuffix, rigID+ConsoleOutSuffix)
}

// ForClient sets topics using default convention for a console client:
// SubTopic = rigID/console/out
// PubTopic = rigID/console/in
func (p *ReadWriter) ForClient(rigID string) *ReadWriter {
	return p.WithTopics(rigID+ConsoleOutSuffix, rigID+ConsoleInSuffix)
}

// Open subscribes SubTopic. If the Queue is not connected yet, the
// subscription is made when it connects.
func (p *ReadWriter) Open() *ReadWriter {
	p.sub = p.Queue.Sub(p.SubTopic, p.handleMsg)
	return p
}

// ReadPacket implements PacketReader.
func (p *ReadWriter) ReadPacket() ([]byte, error) {
	select {
	case pkt := <-p.packetCh:
		return pkt, nil
	case <-p.done:
		return nil, io.EOF
	}
}

// WritePacket implements PacketWriter.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	token := p.Queue.PubWith(p.PubTopic, pkt, p.QoS, false)
	token.Wait()
	return token.Error()
}

// Close implements io.Closer.
func (p *ReadWriter) Close() (err error) {
	p.once.Do(func() {
		close(p.done)
		if p.sub != nil {
			err = p.sub.Close()
		}
	})
	return
}

func (p *ReadWriter) handleMsg(_ string, payload []byte) {
	select {
	case p.packetCh <- payload:
	case <-p.done:
	}
}
