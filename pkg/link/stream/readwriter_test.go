package stream

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

type bufStream struct {
	io.Reader
	bytes.Buffer
}

func (s *bufStream) Read(p []byte) (int, error) { return s.Reader.Read(p) }

func TestReadPacketReturnsWhatArrived(t *testing.T) {
	s := &bufStream{Reader: bytes.NewReader([]byte("help\r"))}
	rw := New(s)
	rw.ReadSize = 3

	pkt, err := rw.ReadPacket()
	require.NoError(t, err)
	require.Equal(t, "hel", string(pkt))
	pkt, err = rw.ReadPacket()
	require.NoError(t, err)
	require.Equal(t, "p\r", string(pkt))
	_, err = rw.ReadPacket()
	require.Equal(t, io.EOF, err)
}

func TestWritePacketIsUnframed(t *testing.T) {
	s := &bufStream{Reader: bytes.NewReader(nil)}
	rw := New(s)
	require.NoError(t, rw.WritePacket([]byte("ok\r\n")))
	require.Equal(t, "ok\r\n", s.Buffer.String())
}
