// Package console implements the serial command console: a line editor
// fed one byte per poll, a whitespace tokenizer and a command dispatcher.
package console

import (
	"context"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/rig.go/pkg/framework"
	"github.com/robotalks/rig.go/pkg/hw/uart"
)

// DefaultPeriod is the poll period of the console task.
const DefaultPeriod = 100 * time.Millisecond

// DefaultBanner is sent once when the console starts.
const DefaultBanner = CRLF + "rig console" + CRLF + "Type 'help' for available commands." + CRLF

// Config defines the console options.
type Config struct {
	Enabled      bool          `yaml:"enabled"`
	Period       time.Duration `yaml:"period"`
	LineCapacity int           `yaml:"lineCapacity"`
	MaxArgs      int           `yaml:"maxArgs"`
	EchoOverflow bool          `yaml:"echoOverflow"`
	Banner       string        `yaml:"banner"`
}

// DefaultConfig returns the default console options.
func DefaultConfig() Config {
	return Config{
		Enabled:      true,
		Period:       DefaultPeriod,
		LineCapacity: DefaultLineCapacity,
		MaxArgs:      DefaultMaxArgs,
		EchoOverflow: true,
		Banner:       DefaultBanner,
	}
}

// Console polls the transport and feeds the line editor.
// All its state is owned by the goroutine calling Run.
type Console struct {
	Config     Config
	Transport  Transport
	Out        *Printer
	Editor     *Editor
	Dispatcher *Dispatcher
}

// New creates a Console with the built-in commands plus cmds.
func New(t Transport, conf Config, cmds ...Command) *Console {
	out := NewPrinter(t)
	d := NewDispatcher(out, cmds...)
	e := NewEditor(out, conf.LineCapacity, conf.MaxArgs, d.DispatchLine)
	e.EchoOverflow = conf.EchoOverflow
	return &Console{
		Config:     conf,
		Transport:  t,
		Out:        out,
		Editor:     e,
		Dispatcher: d,
	}
}

// Start sends the banner.
func (c *Console) Start() {
	c.Out.Print(c.Config.Banner)
}

// Poll reads at most one byte and processes it.
// It returns false when no byte was available.
func (c *Console) Poll() bool {
	b, st := c.Transport.RecvByte()
	if st != uart.Success {
		glog.V(3).Infof("console: no input: %v", st)
		return false
	}
	c.Editor.Process(b)
	return true
}

// Task creates the periodic console task.
func (c *Console) Task(priority int) *fx.Task {
	period := c.Config.Period
	if period <= 0 {
		period = DefaultPeriod
	}
	return &fx.Task{
		TaskName: "console",
		Period:   period,
		Priority: priority,
		Init: func(context.Context) error {
			c.Start()
			return nil
		},
		Process: func(context.Context) { c.Poll() },
	}
}

// Run implements Runnable.
func (c *Console) Run(ctx context.Context) error {
	return c.Task(fx.PrLvNormal).Run(ctx)
}
