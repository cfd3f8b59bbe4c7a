package app

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	fx "github.com/robotalks/rig.go/pkg/framework"
	"github.com/robotalks/rig.go/pkg/hw/gpio"
	"github.com/robotalks/rig.go/pkg/scheduler"
)

func testConfig() *Config {
	conf := Defaults()
	conf.RigID = "bench1"
	conf.Transport = TransportNone
	conf.UART.MaxWait = 10 * time.Millisecond
	return &conf
}

func TestValidate(t *testing.T) {
	require.NoError(t, testConfig().Validate())

	cases := map[string]func(*Config){
		"no id":         func(c *Config) { c.RigID = "" },
		"bad transport": func(c *Config) { c.Transport = "serial" },
		"mqtt no url":   func(c *Config) { c.Transport = TransportMQTT },
		"tcp no listen": func(c *Config) { c.Transport, c.Listen = TransportTCP, "" },
		"bad frequency": func(c *Config) { c.Frequency = "50" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			conf := testConfig()
			mutate(conf)
			require.Error(t, conf.Validate())
		})
	}
}

func TestLoadFile(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "rig.yaml")
	require.NoError(t, os.WriteFile(fn, []byte(`
id: bench2
transport: tcp
listen: 0.0.0.0:2323
frequency: 1k
console:
  period: 50ms
  echoOverflow: false
uart:
  maxWait: 2s
`), 0644))

	conf := testConfig()
	require.NoError(t, conf.LoadFile(fn))
	require.Equal(t, "bench2", conf.RigID)
	require.Equal(t, TransportTCP, conf.Transport)
	require.Equal(t, "0.0.0.0:2323", conf.Listen)
	require.Equal(t, "1k", conf.Frequency)
	require.Equal(t, 50*time.Millisecond, conf.Console.Period)
	require.False(t, conf.Console.EchoOverflow)
	require.True(t, conf.Console.Enabled)
	require.Equal(t, 80, conf.Console.LineCapacity)
	require.Equal(t, 2*time.Second, conf.UART.MaxWait)
	require.NoError(t, conf.Validate())

	require.Error(t, conf.LoadFile(filepath.Join(t.TempDir(), "missing.yaml")))
}

func TestNewAppWiresConsoleToScheduler(t *testing.T) {
	conf := testConfig()
	conf.Frequency = "100"
	a, err := conf.NewApp()
	require.NoError(t, err)
	require.Nil(t, a.Registrar)
	require.Equal(t, scheduler.Freq100Hz, a.Control.Mode())

	for _, b := range []byte("test_scheduler frequency 1k\r\ntest_scheduler start\r\n") {
		a.Channel.Receive(b)
	}
	for a.Console.Poll() {
	}
	require.True(t, a.Timer.Running())
	psc, arr := a.Timer.Registers()
	require.Equal(t, uint32(89), psc)
	require.Equal(t, uint32(999), arr)

	led := a.LED.(*gpio.LED)
	a.Timer.Tick()
	require.Equal(t, uint64(1), led.Toggles())
}

func TestNewAppConsoleDisabled(t *testing.T) {
	conf := testConfig()
	conf.Console.Enabled = false
	a, err := conf.NewApp()
	require.NoError(t, err)
	require.Nil(t, a.Console)
	require.Nil(t, a.Channel)

	s := fx.NewScheduler()
	a.AddTo(s)
	require.Equal(t, 2, s.Len())
}

func TestAddToSchedulesConsole(t *testing.T) {
	a, err := testConfig().NewApp()
	require.NoError(t, err)
	s := fx.NewScheduler()
	a.AddTo(s)
	require.Equal(t, 3, s.Len())

	conf := testConfig()
	conf.Transport = TransportTCP
	a, err = conf.NewApp()
	require.NoError(t, err)
	s = fx.NewScheduler()
	a.AddTo(s)
	require.Equal(t, 4, s.Len())
}

func TestStdioInterrupt(t *testing.T) {
	var stopped bool
	s := &stdio{in: bytesReader("ab\x03cd"), interrupt: func() { stopped = true }}
	buf := make([]byte, 8)
	n, err := s.Read(buf)
	require.Equal(t, 2, n)
	require.Error(t, err)
	require.True(t, stopped)
}

type sliceReader struct{ data []byte }

func bytesReader(s string) *sliceReader { return &sliceReader{data: []byte(s)} }

func (r *sliceReader) Read(p []byte) (int, error) {
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

func freeAddr(t *testing.T) string {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return ln.Addr().String()
}

func readUntil(t *testing.T, conn net.Conn, want string) string {
	var got []byte
	buf := make([]byte, 256)
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for !strings.Contains(string(got), want) {
		n, err := conn.Read(buf)
		got = append(got, buf[:n]...)
		require.NoError(t, err, "received %q", got)
	}
	return string(got)
}

func TestTCPClientIsGreeted(t *testing.T) {
	conf := testConfig()
	conf.Transport = TransportTCP
	conf.Listen = freeAddr(t)
	conf.Console.Period = time.Millisecond
	a, err := conf.NewApp()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- a.Run(ctx) }()

	var conn net.Conn
	require.Eventually(t, func() bool {
		conn, err = net.Dial("tcp", conf.Listen)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)
	defer conn.Close()

	got := readUntil(t, conn, "Type 'help' for available commands.\r\n")
	require.True(t, strings.HasPrefix(got, "\r\nrig console\r\n"), got)

	_, err = conn.Write([]byte("echo hi\r"))
	require.NoError(t, err)
	require.Equal(t, "echo hi\r\nhi\r\n\r\n", readUntil(t, conn, "hi\r\nhi\r\n\r\n"))

	cancel()
	<-errCh
}
