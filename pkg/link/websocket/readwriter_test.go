package websocket

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/rig.go/pkg/hw/uart"
	"github.com/robotalks/rig.go/pkg/link"
)

func TestHandlerAttachesConnection(t *testing.T) {
	ch := link.NewChannel()
	srv := httptest.NewServer(Handler(ch))
	defer srv.Close()

	rw, err := Dial("ws" + strings.TrimPrefix(srv.URL, "http"))
	require.NoError(t, err)
	defer rw.Close()

	require.Eventually(t, ch.Attached, time.Second, time.Millisecond)
	require.NoError(t, rw.WritePacket([]byte("?")))

	port := uart.NewPort(ch, uart.DefaultConfig())
	b, st := port.RecvByte()
	require.Equal(t, uart.Success, st)
	require.Equal(t, byte('?'), b)

	require.Equal(t, uart.Success, port.SendByte('!'))
	pkt, err := rw.ReadPacket()
	require.NoError(t, err)
	require.Equal(t, "!", string(pkt))
}
