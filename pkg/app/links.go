package app

import (
	"context"
	"io"
	"net"
	"net/http"
	"os"

	"github.com/golang/glog"
	"golang.org/x/term"

	fx "github.com/robotalks/rig.go/pkg/framework"
	"github.com/robotalks/rig.go/pkg/link"
	"github.com/robotalks/rig.go/pkg/link/stream"
	"github.com/robotalks/rig.go/pkg/link/websocket"
)

const ctrlC = 0x03

// stdio joins stdin and stdout. In raw mode Ctrl-C arrives as a byte and
// is turned into a stop request.
type stdio struct {
	in        io.Reader
	out       io.Writer
	interrupt func()
}

func (s *stdio) Read(p []byte) (int, error) {
	n, err := s.in.Read(p)
	for i := 0; i < n; i++ {
		if p[i] == ctrlC && s.interrupt != nil {
			s.interrupt()
			return i, io.EOF
		}
	}
	return n, err
}

func (s *stdio) Write(p []byte) (int, error) {
	return s.out.Write(p)
}

func (a *App) serveStdio(ctx context.Context) error {
	s := &stdio{in: os.Stdin, out: os.Stdout}
	if fd := int(os.Stdin.Fd()); term.IsTerminal(fd) {
		old, err := term.MakeRaw(fd)
		if err != nil {
			return err
		}
		defer term.Restore(fd, old)
		s.interrupt = a.stop
	}
	err := a.Channel.Serve(ctx, stream.New(s))
	if err == io.EOF {
		glog.Info("stdio: console closed")
		return context.Canceled
	}
	return err
}

func (a *App) serveTCP(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.Config.Listen)
	if err != nil {
		return err
	}
	glog.Infof("tcp: console on %s", ln.Addr())
	return fx.RunWithContextCloser(ctx, ln, func() error {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return err
			}
			go a.serveConn(ctx, conn)
		}
	})
}

func (a *App) serveConn(ctx context.Context, conn net.Conn) {
	remote := conn.RemoteAddr()
	err := a.Channel.Serve(ctx, stream.New(conn))
	if err == link.ErrAttached {
		glog.Warningf("tcp: rejected %s: %v", remote, err)
		conn.Write([]byte("console busy\r\n"))
		conn.Close()
		return
	}
	glog.Infof("tcp: %s detached: %v", remote, err)
}

func (a *App) serveWebsocket(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/console", websocket.Handler(a.Channel))
	server := &http.Server{Addr: a.Config.Listen, Handler: mux}
	glog.Infof("ws: console on ws://%s/console", a.Config.Listen)
	return fx.RunWithContextCloser(ctx, server, server.ListenAndServe)
}
