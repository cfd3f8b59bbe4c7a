package console

// Control bytes and sequences.
const (
	CR  byte = '\r'
	LF  byte = '\n'
	BS  byte = 0x08
	DEL byte = 0x7f

	CRLF  = "\r\n"
	Erase = "\b \b"
)

// Defaults for Editor.
const (
	DefaultLineCapacity = 80
	DefaultMaxArgs      = 8
)

// LineFunc receives the tokens of a completed line. The tokens alias the
// line buffer and are only valid until LineFunc returns.
type LineFunc func(argv [][]byte)

// Editor assembles raw input bytes into command lines, echoing input and
// edits back to the terminal.
type Editor struct {
	// EchoOverflow echoes bytes which are dropped because the line is full.
	EchoOverflow bool

	out     *Printer
	line    []byte
	argv    [][]byte
	pending bool
	onLine  LineFunc
}

// NewEditor creates an Editor holding up to capacity bytes per line and
// passing up to maxArgs tokens to onLine.
func NewEditor(out *Printer, capacity, maxArgs int, onLine LineFunc) *Editor {
	if capacity <= 0 {
		capacity = DefaultLineCapacity
	}
	if maxArgs <= 0 {
		maxArgs = DefaultMaxArgs
	}
	return &Editor{
		EchoOverflow: true,
		out:          out,
		line:         make([]byte, 0, capacity),
		argv:         make([][]byte, 0, maxArgs),
		onLine:       onLine,
	}
}

// Len returns the number of bytes in the current line.
func (e *Editor) Len() int {
	return len(e.line)
}

// Process consumes one input byte.
func (e *Editor) Process(b byte) {
	switch b {
	case CR, LF:
		e.out.Print(CRLF)
		if e.pending {
			// second half of CRLF or LFCR
			e.pending = false
			return
		}
		e.pending = true
		e.complete()
	case BS, DEL:
		e.pending = false
		if n := len(e.line); n > 0 {
			e.line = e.line[:n-1]
			e.out.Print(Erase)
		}
	default:
		e.pending = false
		full := len(e.line) == cap(e.line)
		if !full || e.EchoOverflow {
			e.out.put(b)
		}
		if !full {
			e.line = append(e.line, b)
		}
	}
}

func (e *Editor) complete() {
	argv := Tokenize(e.line, e.argv)
	if len(argv) > 0 && e.onLine != nil {
		e.onLine(argv)
	}
	e.line = e.line[:0]
}
