package sh

import (
	"bytes"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/rig.go/pkg/link"
	"github.com/robotalks/rig.go/pkg/link/mqtt"
	"github.com/robotalks/rig.go/pkg/link/stream"
	"github.com/robotalks/rig.go/pkg/link/websocket"
)

// Session is a connection to a rig console.
type Session struct {
	Name string

	rw     link.PacketReadWriter
	closer func() error
	rx     chan []byte
	done   chan struct{}
	closed chan struct{}
	once   sync.Once

	errLock sync.Mutex
	err     error
}

// NewSession starts reading from rw. closer is called after rw is closed.
func NewSession(name string, rw link.PacketReadWriter, closer func() error) *Session {
	s := &Session{
		Name:   name,
		rw:     rw,
		closer: closer,
		rx:     make(chan []byte, 64),
		done:   make(chan struct{}),
		closed: make(chan struct{}),
	}
	go s.readLoop()
	return s
}

// Dial connects the rig console at rawURL. rigID is required for mqtt.
func Dial(rawURL, rigID string) (*Session, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	switch schemeOf(rawURL) {
	case "tcp":
		conn, err := net.Dial("tcp", u.Host)
		if err != nil {
			return nil, err
		}
		return NewSession(u.Host, stream.New(conn), nil), nil
	case "ws":
		rw, err := websocket.Dial(rawURL)
		if err != nil {
			return nil, err
		}
		return NewSession(u.Host, rw, nil), nil
	case "mqtt":
		if rigID == "" {
			return nil, fmt.Errorf("rig ID required for %s", rawURL)
		}
		q, err := mqtt.NewQueueFromURL(rawURL, "rigcli-")
		if err != nil {
			return nil, err
		}
		if err := q.ConnectAndWait(); err != nil {
			return nil, err
		}
		rw := mqtt.NewReadWriter(q).ForClient(rigID).Open()
		return NewSession(rigID, rw, q.Close), nil
	}
	return nil, fmt.Errorf("unsupported URL %q", rawURL)
}

// Collect returns output received until the console stays quiet for settle,
// or maxWait elapsed.
func (s *Session) Collect(settle, maxWait time.Duration) ([]byte, error) {
	var out []byte
	deadline := time.NewTimer(maxWait)
	defer deadline.Stop()
	quiet := time.NewTimer(settle)
	defer quiet.Stop()
	for {
		select {
		case pkt := <-s.rx:
			out = append(out, pkt...)
			if !quiet.Stop() {
				<-quiet.C
			}
			quiet.Reset(settle)
		case <-quiet.C:
			return out, nil
		case <-deadline.C:
			return out, nil
		case <-s.done:
			return out, s.Err()
		}
	}
}

// Exchange sends line terminated with CR and returns the cleaned reply.
func (s *Session) Exchange(line string, settle, maxWait time.Duration) (string, error) {
	s.drain()
	if err := s.rw.WritePacket([]byte(line + "\r")); err != nil {
		return "", err
	}
	raw, err := s.Collect(settle, maxWait)
	return cleanOutput(line, raw), err
}

// Err returns the error which terminated the session.
func (s *Session) Err() error {
	s.errLock.Lock()
	defer s.errLock.Unlock()
	return s.err
}

// Close closes the session.
func (s *Session) Close() error {
	var err error
	s.once.Do(func() {
		close(s.closed)
		if closer, ok := s.rw.(interface{ Close() error }); ok {
			err = closer.Close()
		}
		if s.closer != nil {
			if e := s.closer(); err == nil {
				err = e
			}
		}
	})
	return err
}

func (s *Session) readLoop() {
	defer close(s.done)
	for {
		pkt, err := s.rw.ReadPacket()
		if err != nil {
			s.errLock.Lock()
			s.err = err
			s.errLock.Unlock()
			glog.V(1).Infof("session %s: %v", s.Name, err)
			return
		}
		select {
		case s.rx <- pkt:
		case <-s.closed:
			return
		}
	}
}

func (s *Session) drain() {
	for {
		select {
		case pkt := <-s.rx:
			glog.V(2).Infof("session %s: discard %q", s.Name, pkt)
		default:
			return
		}
	}
}

// cleanOutput converts the console reply into shell text: line endings become
// "\n", the echo of sent is removed and trailing blank lines are dropped.
func cleanOutput(sent string, raw []byte) string {
	raw = bytes.Replace(raw, []byte("\r\n"), []byte("\n"), -1)
	out := strings.Replace(string(raw), "\r", "", -1)
	if echo := sent + "\n"; strings.HasPrefix(out, echo) {
		out = out[len(echo):]
	} else if out == sent {
		out = ""
	}
	return strings.TrimRight(out, "\n")
}

func schemeOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "tcp", "telnet":
		return "tcp"
	case "ws", "wss":
		return "ws"
	case "mqtt", "ssl":
		return "mqtt"
	}
	return u.Scheme
}
