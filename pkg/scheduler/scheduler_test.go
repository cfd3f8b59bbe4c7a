package scheduler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/rig.go/pkg/console"
	"github.com/robotalks/rig.go/pkg/hw/gpio"
	"github.com/robotalks/rig.go/pkg/hw/timer"
	"github.com/robotalks/rig.go/pkg/hw/uart"
)

type recordingTimer struct {
	ops      []string
	psc, arr uint32
	running  bool
}

func (t *recordingTimer) Configure(psc, arr uint32) {
	t.ops = append(t.ops, "configure")
	t.psc, t.arr = psc, arr
}

func (t *recordingTimer) Start() {
	t.ops = append(t.ops, "start")
	t.running = true
}

func (t *recordingTimer) Stop() {
	t.ops = append(t.ops, "stop")
	t.running = false
}

type output struct {
	strings.Builder
}

func (o *output) SendByte(b byte) uart.Status {
	o.WriteByte(b)
	return uart.Success
}

func run(d *console.Dispatcher, out *output, line string) string {
	out.Reset()
	d.Dispatch(strings.Fields(line))
	return out.String()
}

func newTestSetup() (*Control, *recordingTimer, *console.Dispatcher, *output) {
	tim := &recordingTimer{}
	ctl := NewControl(tim, nil)
	out := &output{}
	d := console.NewDispatcher(console.NewPrinter(out), Cmd(ctl))
	return ctl, tim, d, out
}

func TestParseFrequency(t *testing.T) {
	cases := map[string]FrequencyMode{
		"100": Freq100Hz, "100hz": Freq100Hz, "100Hz": Freq100Hz,
		"1k": Freq1kHz, "1000": Freq1kHz, "1kHz": Freq1kHz, "1kHZ": Freq1kHz,
		"10k": Freq10kHz, "10000": Freq10kHz, "10khz": Freq10kHz,
	}
	for s, mode := range cases {
		got, err := ParseFrequency(s)
		require.NoError(t, err, s)
		require.Equal(t, mode, got, s)
	}
	for _, s := range []string{"", "hz", "50", "10", "100k", "1M", " 100"} {
		_, err := ParseFrequency(s)
		require.Error(t, err, s)
	}
}

func TestFrequencyThenStartProgramsPreset(t *testing.T) {
	cases := []struct {
		freq     string
		psc, arr uint32
	}{
		{"10k", 89, 99},
		{"1k", 89, 999},
		{"100", 89, 9999},
	}
	for _, c := range cases {
		t.Run(c.freq, func(t *testing.T) {
			_, tim, d, out := newTestSetup()
			require.Equal(t, "\r\n", run(d, out, "test_scheduler frequency "+c.freq))
			require.Empty(t, tim.ops)
			require.Equal(t, "\r\n", run(d, out, "test_scheduler start"))
			require.True(t, tim.running)
			require.Equal(t, c.psc, tim.psc)
			require.Equal(t, c.arr, tim.arr)
		})
	}
}

func TestDefaultModeIs10kHz(t *testing.T) {
	ctl, tim, _, _ := newTestSetup()
	require.Equal(t, Freq10kHz, ctl.Mode())
	ctl.Init()
	require.Equal(t, uint32(89), tim.psc)
	require.Equal(t, uint32(99), tim.arr)
}

func TestModeChangeDoesNotAffectRunningTimer(t *testing.T) {
	ctl, tim, d, out := newTestSetup()
	run(d, out, "test_scheduler start")
	tim.ops = nil
	run(d, out, "test_scheduler frequency 100")
	require.Empty(t, tim.ops)
	require.Equal(t, uint32(99), tim.arr)

	st := ctl.Status()
	require.True(t, st.Running)
	require.Equal(t, Freq100Hz, st.Mode)
	require.Equal(t, uint32(99), st.Preset.Reload)

	run(d, out, "test_scheduler stop")
	require.Equal(t, []string{"stop"}, tim.ops)
	require.Equal(t, uint32(9999), ctl.Status().Preset.Reload)
}

func TestUsage(t *testing.T) {
	_, tim, d, out := newTestSetup()
	require.Equal(t, "Usage:\r\n  test_scheduler start\r\n  test_scheduler stop\r\n\r\n",
		run(d, out, "test_scheduler"))
	require.Empty(t, tim.ops)
}

func TestInvalidArgument(t *testing.T) {
	ctl, tim, d, out := newTestSetup()
	require.Equal(t, "Invalid argument: go\r\n"+
		"Usage:\r\n"+
		"  test_scheduler start\r\n"+
		"  test_scheduler stop\r\n"+
		"  test_scheduler frequency <desired frequency>\r\n"+
		"    Note: Desired frequencies can only be 100Hz, 1kHz or 10kHz\r\n"+
		"\r\n", run(d, out, "test_scheduler go"))
	require.Empty(t, tim.ops)
	require.Equal(t, Freq10kHz, ctl.Mode())
}

func TestInvalidFrequency(t *testing.T) {
	for _, line := range []string{"test_scheduler frequency 50", "test_scheduler frequency"} {
		ctl, tim, d, out := newTestSetup()
		require.NoError(t, ctl.SetMode(Freq1kHz))
		require.Equal(t, "Invalid: Desired frequencies can only be 100Hz, 1kHz or 10kHz\r\n\r\n", run(d, out, line))
		require.Equal(t, Freq1kHz, ctl.Mode())
		require.Empty(t, tim.ops)
	}
}

func TestFrequencyCommandSetsMode(t *testing.T) {
	for arg, mode := range map[string]FrequencyMode{"100": Freq100Hz, "1khz": Freq1kHz, "10000": Freq10kHz} {
		ctl, tim, d, out := newTestSetup()
		require.NoError(t, ctl.SetMode(Freq1kHz))
		require.Equal(t, "\r\n", run(d, out, "test_scheduler frequency "+arg))
		require.Equal(t, mode, ctl.Mode())
		require.Empty(t, tim.ops)
	}
}

func TestSetModeRejectsUnknown(t *testing.T) {
	ctl, _, _, _ := newTestSetup()
	require.Error(t, ctl.SetMode(FrequencyMode(7)))
	require.Equal(t, Freq10kHz, ctl.Mode())
}

func TestNotifier(t *testing.T) {
	ctl, _, _, _ := newTestSetup()
	var got []Status
	ctl.Notifier = func(s Status) { got = append(got, s) }
	ctl.SetMode(Freq1kHz)
	ctl.Start()
	ctl.Stop()
	require.Len(t, got, 3)
	require.False(t, got[0].Running)
	require.True(t, got[1].Running)
	require.Equal(t, 1000.0, got[1].Preset.Hz)
	require.False(t, got[2].Running)
}

func TestStopOnHardwareTimerLeavesNoPendingInterrupt(t *testing.T) {
	led := gpio.NewLED("green")
	tim := timer.New("TIM2", 0, nil)
	ctl := NewControl(tim, led)
	tim.SetHandler(ctl.ProcessFromISR)

	ctl.Start()
	tim.Tick()
	require.True(t, led.Get())
	tim.Overflow()

	tim.ResetTrace()
	ctl.Stop()
	require.Equal(t, []timer.Op{timer.OpDisableIT, timer.OpDisableCounter, timer.OpClearUpdate}, tim.Trace())
	tim.IRQ()
	tim.Tick()
	require.Equal(t, uint64(1), led.Toggles())
}
