package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/rig.go/pkg/msgs"
)

// RigMeta is published retained on <rig-id>/meta while the rig is online.
type RigMeta struct {
	Description string            `json:"description,omitempty"`
	Transport   string            `json:"transport,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
}

// RigInfo provides information of a discovered rig.
type RigInfo struct {
	ID   string
	Meta RigMeta
}

// Registrar announces a rig on the broker and publishes its status events.
type Registrar struct {
	Queue *Queue
	RigID string
	Meta  RigMeta

	metaJSON []byte
}

// NewRegistrar creates a Registrar.
// The will clears the retained meta so the rig disappears from discovery
// when its connection drops.
func NewRegistrar(brokerURL, rigID string, meta RigMeta) (*Registrar, error) {
	metaJSON, err := json.Marshal(&meta)
	if err != nil {
		return nil, err
	}
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid broker URL: %v", err)
	}
	opts.SetBinaryWill(topicPrefix+rigID+MetaSuffix, nil, 1, true)
	if opts.ClientID == "" {
		opts.SetClientID("rig:" + rigID)
	}
	r := &Registrar{
		Queue:    NewQueue(opts, topicPrefix),
		RigID:    rigID,
		Meta:     meta,
		metaJSON: metaJSON,
	}
	r.Queue.OnConnect = func(*Queue) { r.onConnected() }
	return r, nil
}

// Console creates the rig side console ReadWriter sharing the connection.
func (r *Registrar) Console() *ReadWriter {
	return NewReadWriter(r.Queue).ForRig(r.RigID).Open()
}

// SendEvent publishes a status event.
func (r *Registrar) SendEvent(msg msgs.Message) error {
	data, err := msgs.Encode(msg)
	if err != nil {
		return err
	}
	token := r.Queue.Pub(r.RigID+StatusSuffix, data)
	token.Wait()
	return token.Error()
}

// Run implements Runnable.
func (r *Registrar) Run(ctx context.Context) error {
	if err := r.Queue.ConnectAndWait(); err != nil {
		return fmt.Errorf("mqtt connect: %v", err)
	}
	<-ctx.Done()
	token := r.Queue.PubWith(r.RigID+MetaSuffix, nil, 1, true)
	token.WaitTimeout(time.Second)
	r.Queue.Close()
	return nil
}

func (r *Registrar) onConnected() {
	glog.Infof("mqtt: registered rig %q", r.RigID)
	r.Queue.PubWith(r.RigID+MetaSuffix, r.metaJSON, 1, true)
}

// DefaultDiscoverTimeout defines the default timeout value of discovery.
const DefaultDiscoverTimeout = 500 * time.Millisecond

// Discover collects the rigs currently announcing their meta.
// q must be connected.
func Discover(ctx context.Context, q *Queue, timeout time.Duration) ([]RigInfo, error) {
	if timeout <= 0 {
		timeout = DefaultDiscoverTimeout
	}
	resCh := make(chan RigInfo, 16)
	sub := q.Sub("+"+MetaSuffix, func(topic string, payload []byte) {
		if info, ok := parseMeta(topic, payload); ok {
			select {
			case resCh <- info:
			case <-time.After(time.Second):
			}
		}
	})
	defer sub.Close()

	var res []RigInfo
	expire := time.After(timeout)
	for {
		select {
		case info := <-resCh:
			res = append(res, info)
		case <-expire:
			return res, nil
		case <-ctx.Done():
			return res, ctx.Err()
		}
	}
}

func parseMeta(topic string, payload []byte) (info RigInfo, ok bool) {
	if len(payload) == 0 || len(topic) <= len(MetaSuffix) {
		return
	}
	info.ID = topic[:len(topic)-len(MetaSuffix)]
	if err := json.Unmarshal(payload, &info.Meta); err != nil {
		glog.Warningf("mqtt: invalid meta of %q: %v", info.ID, err)
		return info, false
	}
	return info, true
}

// WatchStatus subscribes the status events of rigID, which may be "+" for
// all rigs. Undecodable events are logged and skipped.
func WatchStatus(q *Queue, rigID string, handler func(rigID string, msg msgs.Message)) *Subscription {
	return q.Sub(rigID+StatusSuffix, statusHandler(handler))
}

func statusHandler(handler func(string, msgs.Message)) Handler {
	return func(topic string, payload []byte) {
		id := strings.TrimSuffix(topic, StatusSuffix)
		msg, err := msgs.Decode(payload)
		if err != nil {
			glog.Warningf("mqtt: status of %q: %v", id, err)
			return
		}
		handler(id, msg)
	}
}
