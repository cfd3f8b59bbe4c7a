package console

import (
	"fmt"
	"sync/atomic"

	"github.com/golang/glog"

	"github.com/robotalks/rig.go/pkg/hw/uart"
)

// ByteWriter sends one byte, reporting the transfer status.
type ByteWriter interface {
	SendByte(b byte) uart.Status
}

// ByteReader receives one byte, reporting the transfer status.
type ByteReader interface {
	RecvByte() (byte, uart.Status)
}

// Transport is the duplex byte link of the console, e.g. *uart.Port.
type Transport interface {
	ByteReader
	ByteWriter
}

// Printer writes console output byte by byte.
// Failed transfers are absorbed: the byte is dropped and counted, nothing
// is reported to the caller.
type Printer struct {
	w       ByteWriter
	dropped uint64
}

// NewPrinter creates a Printer.
func NewPrinter(w ByteWriter) *Printer {
	return &Printer{w: w}
}

// Write implements io.Writer. It never fails.
func (p *Printer) Write(data []byte) (int, error) {
	for _, b := range data {
		p.put(b)
	}
	return len(data), nil
}

// Print writes s.
func (p *Printer) Print(s string) {
	for i := 0; i < len(s); i++ {
		p.put(s[i])
	}
}

// Printf writes formatted output.
func (p *Printer) Printf(format string, args ...interface{}) {
	fmt.Fprintf(p, format, args...)
}

// Println writes args separated by spaces and terminated by CRLF.
func (p *Printer) Println(args ...interface{}) {
	s := fmt.Sprintln(args...)
	p.Print(s[:len(s)-1])
	p.Print(CRLF)
}

// Dropped returns the number of bytes which failed to send.
func (p *Printer) Dropped() uint64 {
	return atomic.LoadUint64(&p.dropped)
}

func (p *Printer) put(b byte) {
	if st := p.w.SendByte(b); st != uart.Success {
		atomic.AddUint64(&p.dropped, 1)
		glog.V(2).Infof("console: output byte %#02x dropped: %v", b, st)
	}
}
