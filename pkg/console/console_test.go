package console

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/rig.go/pkg/hw/uart"
)

type fakeTransport struct {
	in       []byte
	out      strings.Builder
	sendFail uart.Status
}

func (t *fakeTransport) RecvByte() (byte, uart.Status) {
	if len(t.in) == 0 {
		return 0, uart.Timeout
	}
	b := t.in[0]
	t.in = t.in[1:]
	return b, uart.Success
}

func (t *fakeTransport) SendByte(b byte) uart.Status {
	if t.sendFail != uart.Success {
		return t.sendFail
	}
	t.out.WriteByte(b)
	return uart.Success
}

type lineRecorder struct {
	lines [][]string
}

func (r *lineRecorder) onLine(argv [][]byte) {
	args := make([]string, len(argv))
	for i, a := range argv {
		args[i] = string(a)
	}
	r.lines = append(r.lines, args)
}

func newTestEditor(capacity, maxArgs int) (*Editor, *fakeTransport, *lineRecorder) {
	t := &fakeTransport{}
	r := &lineRecorder{}
	return NewEditor(NewPrinter(t), capacity, maxArgs, r.onLine), t, r
}

func feed(e *Editor, s string) {
	for i := 0; i < len(s); i++ {
		e.Process(s[i])
	}
}

func TestEditorTokenizesLine(t *testing.T) {
	cases := []struct {
		input string
		args  []string
	}{
		{"help\r", []string{"help"}},
		{"echo a b c\r", []string{"echo", "a", "b", "c"}},
		{"  echo \t a\t\tb  \n", []string{"echo", "a", "b"}},
		{"echo \"a b\"\r", []string{"echo", "\"a", "b\""}},
	}
	for _, c := range cases {
		t.Run(strings.TrimSpace(c.input), func(t *testing.T) {
			e, _, r := newTestEditor(DefaultLineCapacity, DefaultMaxArgs)
			feed(e, c.input)
			require.Equal(t, [][]string{c.args}, r.lines)
			require.Zero(t, e.Len())
		})
	}
}

func TestEditorBlankLinesNeverDispatch(t *testing.T) {
	for _, input := range []string{"\r", "\n", "   \r", "\t \t\n"} {
		e, _, r := newTestEditor(DefaultLineCapacity, DefaultMaxArgs)
		feed(e, input)
		require.Empty(t, r.lines)
		require.Zero(t, e.Len())
	}
}

func TestEditorTerminatorPairsCompleteOnce(t *testing.T) {
	for _, term := range []string{"\r\n", "\n\r"} {
		e, tr, r := newTestEditor(DefaultLineCapacity, DefaultMaxArgs)
		feed(e, "help"+term+"echo"+term)
		require.Equal(t, [][]string{{"help"}, {"echo"}}, r.lines)
		require.Equal(t, "help\r\n\r\necho\r\n\r\n", tr.out.String())
	}
}

func TestEditorRepeatedTerminators(t *testing.T) {
	e, _, r := newTestEditor(DefaultLineCapacity, DefaultMaxArgs)
	feed(e, "a\r\r\rb\r")
	require.Equal(t, [][]string{{"a"}, {"b"}}, r.lines)
}

func TestEditorErase(t *testing.T) {
	e, tr, r := newTestEditor(DefaultLineCapacity, DefaultMaxArgs)
	feed(e, "helq\bp\x7f\x7fp\r")
	require.Equal(t, [][]string{{"hep"}}, r.lines)
	require.Equal(t, "helq\b \bp\b \b\b \bp\r\n", tr.out.String())
}

func TestEditorEraseOnEmptyLine(t *testing.T) {
	e, tr, r := newTestEditor(DefaultLineCapacity, DefaultMaxArgs)
	feed(e, "\b\x7f\b")
	require.Zero(t, e.Len())
	require.Empty(t, tr.out.String())
	feed(e, "?\r")
	require.Equal(t, [][]string{{"?"}}, r.lines)
}

func TestEditorEraseClearsPendingTerminator(t *testing.T) {
	e, _, r := newTestEditor(DefaultLineCapacity, DefaultMaxArgs)
	feed(e, "a\r\bb\n")
	require.Equal(t, [][]string{{"a"}, {"b"}}, r.lines)
}

func TestEditorOverflowEchoedButNotRetained(t *testing.T) {
	e, tr, r := newTestEditor(4, DefaultMaxArgs)
	feed(e, "echoXYZ\r")
	require.Equal(t, "echoXYZ\r\n", tr.out.String())
	require.Equal(t, [][]string{{"echo"}}, r.lines)
}

func TestEditorOverflowWithoutEcho(t *testing.T) {
	e, tr, r := newTestEditor(4, DefaultMaxArgs)
	e.EchoOverflow = false
	feed(e, "echoXYZ\r")
	require.Equal(t, "echo\r\n", tr.out.String())
	require.Equal(t, [][]string{{"echo"}}, r.lines)
}

func TestEditorArgumentOverflowTruncates(t *testing.T) {
	e, _, r := newTestEditor(DefaultLineCapacity, 3)
	feed(e, "echo a b c d e\r")
	require.Equal(t, [][]string{{"echo", "a", "b"}}, r.lines)
}

func TestTokenize(t *testing.T) {
	argv := make([][]byte, 0, 2)
	require.Empty(t, Tokenize([]byte(" \t "), argv))
	got := Tokenize([]byte("one two three"), argv)
	require.Len(t, got, 2)
	require.Equal(t, "one", string(got[0]))
	require.Equal(t, "two", string(got[1]))
	require.Empty(t, Tokenize([]byte("a"), nil))
}

func TestTokenizeAliasesLine(t *testing.T) {
	line := []byte("ab cd")
	got := Tokenize(line, make([][]byte, 0, 2))
	line[3] = 'X'
	require.Equal(t, "Xd", string(got[1]))
}

func newTestDispatcher(cmds ...Command) (*Dispatcher, *fakeTransport) {
	t := &fakeTransport{}
	return NewDispatcher(NewPrinter(t), cmds...), t
}

func TestDispatchEcho(t *testing.T) {
	d, tr := newTestDispatcher()
	require.True(t, d.Dispatch([]string{"echo", "a", "b", "c"}))
	require.Equal(t, "a b c\r\n\r\n", tr.out.String())

	tr.out.Reset()
	require.True(t, d.Dispatch([]string{"echo"}))
	require.Equal(t, "\r\n\r\n", tr.out.String())
}

func TestDispatchUnknownCommand(t *testing.T) {
	called := false
	d, tr := newTestDispatcher(Command{Name: "bar", Help: "bar", Func: func(*Context) { called = true }})
	require.False(t, d.Dispatch([]string{"foo", "bar"}))
	require.Equal(t, "Unknown command: foo\r\n", tr.out.String())
	require.False(t, called)
}

func TestDispatchIsCaseSensitive(t *testing.T) {
	d, tr := newTestDispatcher()
	require.False(t, d.Dispatch([]string{"HELP"}))
	require.Equal(t, "Unknown command: HELP\r\n", tr.out.String())
}

func TestDispatchPassesAllArgs(t *testing.T) {
	var got []string
	d, _ := newTestDispatcher(Command{Name: "x", Help: "x", Func: func(c *Context) { got = c.Args }})
	d.Dispatch([]string{"x", "1", "2"})
	require.Equal(t, []string{"x", "1", "2"}, got)
}

func TestHelpListsTableInOrder(t *testing.T) {
	d, tr := newTestDispatcher(Command{Name: "test_scheduler", Help: "Starts the test scheduler.", Func: func(*Context) {}})
	for _, name := range []string{"help", "?"} {
		tr.out.Reset()
		require.True(t, d.Dispatch([]string{name}))
		require.Equal(t, "Available commands:\r\n"+
			"?\t- Show available commands.\r\n"+
			"help\t- Show available commands.\r\n"+
			"echo\t- Echoes the provided arguments.\r\n"+
			"test_scheduler\t- Starts the test scheduler.\r\n"+
			"\r\n", tr.out.String())
	}
}

func TestNewDispatcherRejectsDuplicates(t *testing.T) {
	require.Panics(t, func() {
		newTestDispatcher(Command{Name: "echo", Help: "again", Func: func(*Context) {}})
	})
	require.Panics(t, func() {
		newTestDispatcher(Command{Name: "", Func: func(*Context) {}})
	})
}

func TestPrinterAbsorbsFailures(t *testing.T) {
	tr := &fakeTransport{sendFail: uart.Timeout}
	p := NewPrinter(tr)
	n, err := p.Write([]byte("abc"))
	require.NoError(t, err)
	require.Equal(t, 3, n)
	p.Println("x", 1)
	require.Equal(t, uint64(8), p.Dropped())
	require.Empty(t, tr.out.String())
}

func TestPrinterPrintln(t *testing.T) {
	tr := &fakeTransport{}
	p := NewPrinter(tr)
	p.Println("a", "b", 3)
	p.Println()
	require.Equal(t, "a b 3\r\n\r\n", tr.out.String())
}

func TestConsolePollsOneBytePerCall(t *testing.T) {
	tr := &fakeTransport{in: []byte("echo hi\r")}
	c := New(tr, DefaultConfig())
	c.Start()
	require.Equal(t, DefaultBanner, tr.out.String())
	tr.out.Reset()

	for i := 0; i < 7; i++ {
		require.True(t, c.Poll())
	}
	require.Equal(t, "echo hi", tr.out.String())
	require.True(t, c.Poll())
	require.False(t, c.Poll())
	require.Equal(t, "echo hi\r\nhi\r\n\r\n", tr.out.String())
}

func TestConsoleEchoOverflowConfig(t *testing.T) {
	conf := DefaultConfig()
	conf.LineCapacity = 2
	conf.EchoOverflow = false
	tr := &fakeTransport{in: []byte("abc")}
	c := New(tr, conf)
	for c.Poll() {
	}
	require.Equal(t, "ab", tr.out.String())
}

func TestConsoleSurvivesOutputFailures(t *testing.T) {
	tr := &fakeTransport{in: []byte("foo\r"), sendFail: uart.Busy}
	c := New(tr, DefaultConfig())
	for c.Poll() {
	}
	require.Zero(t, c.Editor.Len())
	require.NotZero(t, c.Out.Dropped())
}
