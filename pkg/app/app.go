package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/rig.go/pkg/background"
	"github.com/robotalks/rig.go/pkg/console"
	fx "github.com/robotalks/rig.go/pkg/framework"
	"github.com/robotalks/rig.go/pkg/hw/gpio"
	"github.com/robotalks/rig.go/pkg/hw/timer"
	"github.com/robotalks/rig.go/pkg/hw/uart"
	"github.com/robotalks/rig.go/pkg/link"
	"github.com/robotalks/rig.go/pkg/link/mqtt"
	"github.com/robotalks/rig.go/pkg/msgs"
	"github.com/robotalks/rig.go/pkg/scheduler"
)

// Task priorities.
const (
	PriorityRegistrar  = fx.PrLvTop
	PriorityHardware   = fx.PrLvHigh
	PriorityConsole    = fx.PrLvNormal
	PriorityBackground = fx.PrLvNormal
)

// App is an assembled rig.
type App struct {
	Config    *Config
	LED       gpio.Pin
	Timer     *timer.TIM
	Control   *scheduler.Control
	Channel   *link.Channel
	Port      *uart.Port
	Console   *console.Console
	Registrar *mqtt.Registrar

	started time.Time
	stop    context.CancelFunc
}

// NewApp creates the rig from config.
func (c *Config) NewApp() (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	mode, _ := scheduler.ParseFrequency(c.Frequency)

	a := &App{Config: c, LED: gpio.GreenLED()}
	a.Timer = timer.New("TIM2", c.TimerClockHz, nil)
	a.Control = scheduler.NewControl(a.Timer, a.LED)
	a.Timer.SetHandler(a.Control.ProcessFromISR)
	if err := a.Control.SetMode(mode); err != nil {
		return nil, err
	}

	if c.MQTTBrokerURL != "" {
		reg, err := mqtt.NewRegistrar(c.MQTTBrokerURL, c.RigID, mqtt.RigMeta{
			Description: c.Description,
			Transport:   c.Transport,
		})
		if err != nil {
			return nil, fmt.Errorf("create MQTT registrar error: %v", err)
		}
		a.Registrar = reg
		a.Control.Notifier = a.publishSchedulerStatus
	}

	if c.Console.Enabled {
		// terminals come and go on every transport, so each one is greeted
		// by the link instead of a banner printed once at start.
		conf := c.Console
		a.Channel = link.NewChannel()
		a.Channel.Greeting = []byte(conf.Banner)
		conf.Banner = ""
		a.Port = uart.NewPort(a.Channel, c.UART)
		a.Console = console.New(a.Port, conf, scheduler.Cmd(a.Control))
	}
	return a, nil
}

// MustNewApp creates App and fails on error.
func (c *Config) MustNewApp() *App {
	a, err := c.NewApp()
	if err != nil {
		log.Fatalln(err)
	}
	return a
}

// AddTo adds all tasks of the rig to the Scheduler.
func (a *App) AddTo(s *fx.Scheduler) {
	if a.Registrar != nil {
		s.AddRunnable(PriorityRegistrar, "registrar", a.Registrar)
	}
	s.AddRunnable(PriorityHardware, "timer", a.Timer)
	if a.Console != nil {
		if l := a.consoleLink(); l != nil {
			s.AddRunnable(PriorityHardware, "link-"+a.Config.Transport, l)
		}
		s.Add(a.Console.Task(PriorityConsole))
	}
	s.Add(background.Task(a.LED, a.Config.BackgroundPeriod, PriorityBackground, a.heartbeat))
}

// Run implements Runnable.
func (a *App) Run(ctx context.Context) error {
	ctx, a.stop = context.WithCancel(ctx)
	defer a.stop()
	s := fx.NewScheduler()
	a.AddTo(s)
	a.started = time.Now()
	glog.Infof("rig %s: starting %d tasks", a.Config.RigID, s.Len())
	return s.Run(ctx)
}

// RunOrFail runs the rig until interrupted.
func (a *App) RunOrFail() {
	runner := fx.NewRunner().HandleSignals()
	runner.Go(a)
	if err := runner.Wait(); err != nil {
		log.Fatalln(err)
	}
}

func (a *App) consoleLink() fx.Runnable {
	switch a.Config.Transport {
	case TransportStdio:
		return fx.RunFunc(a.serveStdio)
	case TransportTCP:
		return fx.RunFunc(a.serveTCP)
	case TransportWS:
		return fx.RunFunc(a.serveWebsocket)
	case TransportMQTT:
		return fx.RunFunc(func(ctx context.Context) error {
			return a.Channel.Serve(ctx, a.Registrar.Console())
		})
	}
	return nil
}

func (a *App) publishSchedulerStatus(st scheduler.Status) {
	a.sendEvent(&msgs.SchedulerStatus{
		Running:     st.Running,
		Mode:        st.Mode.String(),
		Prescaler:   st.Preset.Prescaler,
		Reload:      st.Preset.Reload,
		FrequencyHz: st.Preset.Hz,
	})
}

func (a *App) heartbeat(context.Context) {
	if a.Registrar == nil {
		return
	}
	a.sendEvent(&msgs.Heartbeat{
		Uptime: int64(time.Since(a.started) / time.Millisecond),
		LedOn:  a.LED.Get(),
	})
}

func (a *App) sendEvent(msg msgs.Message) {
	if err := a.Registrar.SendEvent(msg); err != nil {
		glog.V(2).Infof("telemetry dropped: %v", err)
	}
}
