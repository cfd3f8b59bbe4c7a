// Package websocket links the console to websocket connections.
package websocket

import (
	"net/http"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	"github.com/robotalks/rig.go/pkg/link"
)

// ReadWriter implements PacketReadWriter.
type ReadWriter websocket.Conn

// New wraps websocket.Conn.
func New(conn *websocket.Conn) *ReadWriter {
	return (*ReadWriter)(conn)
}

// Dial connects to a console served by Handler.
func Dial(url string) (*ReadWriter, error) {
	conn, err := websocket.Dial(url, "", "http://localhost/")
	if err != nil {
		return nil, err
	}
	return New(conn), nil
}

// ReadPacket implements PacketReader.
func (p *ReadWriter) ReadPacket() (pkt []byte, err error) {
	err = websocket.Message.Receive((*websocket.Conn)(p), &pkt)
	return
}

// WritePacket implements PacketWriter.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	return websocket.Message.Send((*websocket.Conn)(p), pkt)
}

// Close closes the connection.
func (p *ReadWriter) Close() error {
	return (*websocket.Conn)(p).Close()
}

// Handler serves each websocket connection as the console link.
// A connection arriving while another one is attached is rejected.
func Handler(ch *link.Channel) http.Handler {
	return websocket.Handler(func(conn *websocket.Conn) {
		remote := conn.Request().RemoteAddr
		glog.Infof("websocket: console attached from %s", remote)
		err := ch.Serve(conn.Request().Context(), New(conn))
		if err == link.ErrAttached {
			glog.Warningf("websocket: rejected %s: %v", remote, err)
			conn.Close()
			return
		}
		glog.Infof("websocket: console detached from %s: %v", remote, err)
	})
}
