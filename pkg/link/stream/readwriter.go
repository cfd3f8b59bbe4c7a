// Package stream links the console to a raw byte stream such as a serial
// tty, a TCP connection or the terminal.
package stream

import "io"

// DefaultReadSize is the largest packet returned by ReadPacket.
const DefaultReadSize = 256

// ReadWriter implements PacketReadWriter.
// The stream carries no framing: each packet is whatever a single Read
// returned.
type ReadWriter struct {
	io.ReadWriter
	ReadSize int
}

// New creates a ReadWriter with io.ReadWriter.
func New(s io.ReadWriter) *ReadWriter {
	return &ReadWriter{ReadWriter: s, ReadSize: DefaultReadSize}
}

// ReadPacket implements PacketReader.
func (p *ReadWriter) ReadPacket() ([]byte, error) {
	size := p.ReadSize
	if size <= 0 {
		size = DefaultReadSize
	}
	pkt := make([]byte, size)
	for {
		n, err := p.Read(pkt)
		if n > 0 {
			return pkt[:n], nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// WritePacket implements PacketWriter.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	_, err := p.Write(pkt)
	return err
}

// Close closes the underlying stream if it is closable.
func (p *ReadWriter) Close() error {
	if closer, ok := p.ReadWriter.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
