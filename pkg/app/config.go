// Package app assembles the rig: board simulation, console, test scheduler,
// background task, console link and telemetry.
package app

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/denisbrodbeck/machineid"
	"gopkg.in/yaml.v2"

	"github.com/robotalks/rig.go/pkg/background"
	"github.com/robotalks/rig.go/pkg/console"
	"github.com/robotalks/rig.go/pkg/hw/timer"
	"github.com/robotalks/rig.go/pkg/hw/uart"
	"github.com/robotalks/rig.go/pkg/scheduler"
)

// Console transports.
const (
	TransportNone  = "none"
	TransportStdio = "stdio"
	TransportTCP   = "tcp"
	TransportWS    = "ws"
	TransportMQTT  = "mqtt"
)

// Config provides the options of a rig.
type Config struct {
	RigID       string `yaml:"id"`
	Description string `yaml:"description"`

	// Transport carries the console: none, stdio, tcp, ws or mqtt.
	Transport string `yaml:"transport"`
	// Listen is the address for tcp and ws transports.
	Listen string `yaml:"listen"`
	// MQTTBrokerURL enables registration and telemetry, and is required by
	// the mqtt transport. e.g. mqtt://host:port/topic-prefix
	MQTTBrokerURL string `yaml:"mqtt"`

	Console          console.Config `yaml:"console"`
	UART             uart.Config    `yaml:"uart"`
	BackgroundPeriod time.Duration  `yaml:"backgroundPeriod"`
	Frequency        string         `yaml:"frequency"`
	TimerClockHz     uint32         `yaml:"timerClockHz"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Transport:        TransportStdio,
		Listen:           "127.0.0.1:2323",
		Console:          console.DefaultConfig(),
		UART:             uart.DefaultConfig(),
		BackgroundPeriod: background.DefaultPeriod,
		Frequency:        "10k",
		TimerClockHz:     timer.DefaultClockHz,
	}
}

var defaultConfig = Defaults()

func init() {
	if fn := os.Getenv("RIG_CONFIG"); fn != "" {
		if err := defaultConfig.LoadFile(fn); err != nil {
			log.Fatalln(err)
		}
	}
	if val := os.Getenv("RIG_MQTT_URL"); val != "" {
		defaultConfig.MQTTBrokerURL = val
	}
	if defaultConfig.RigID == "" {
		defaultConfig.RigID = MachineID()
	}
}

// MachineID retrieves the ID identifying the machine, or "rig" if it is
// not available.
func MachineID() string {
	id, err := machineid.ID()
	if err != nil || id == "" {
		return "rig"
	}
	if len(id) > 12 {
		id = id[:12]
	}
	return id
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.RigID, "id", defaultConfig.RigID, "Rig ID")
	flag.StringVar(&defaultConfig.Description, "desc", defaultConfig.Description, "Rig description")
	flag.StringVar(&defaultConfig.Transport, "transport", defaultConfig.Transport, "Console transport: none, stdio, tcp, ws, mqtt")
	flag.StringVar(&defaultConfig.Listen, "listen", defaultConfig.Listen, "Listen address of tcp/ws console")
	flag.StringVar(&defaultConfig.MQTTBrokerURL, "mqtt", defaultConfig.MQTTBrokerURL, "MQTT broker URL")
	flag.BoolVar(&defaultConfig.Console.Enabled, "console", defaultConfig.Console.Enabled, "Enable the console")
	flag.BoolVar(&defaultConfig.Console.EchoOverflow, "echo-overflow", defaultConfig.Console.EchoOverflow, "Echo input dropped on a full line")
	flag.DurationVar(&defaultConfig.Console.Period, "console-period", defaultConfig.Console.Period, "Console poll period")
	flag.DurationVar(&defaultConfig.UART.MaxWait, "uart-wait", defaultConfig.UART.MaxWait, "Maximum wait of a UART transfer")
	flag.StringVar(&defaultConfig.Frequency, "frequency", defaultConfig.Frequency, "Initial test scheduler frequency: 100, 1k, 10k")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// LoadFile merges the YAML file into the config.
func (c *Config) LoadFile(fn string) error {
	data, err := os.ReadFile(fn)
	if err != nil {
		return fmt.Errorf("load config %s: %v", fn, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %v", fn, err)
	}
	return nil
}

// Validate checks the config.
func (c *Config) Validate() error {
	if c.RigID == "" {
		return fmt.Errorf("rig id must be specified")
	}
	switch c.Transport {
	case TransportNone, TransportStdio:
	case TransportTCP, TransportWS:
		if c.Listen == "" {
			return fmt.Errorf("transport %s requires a listen address", c.Transport)
		}
	case TransportMQTT:
		if c.MQTTBrokerURL == "" {
			return fmt.Errorf("transport mqtt requires an MQTT broker URL")
		}
	default:
		return fmt.Errorf("unknown transport: %q", c.Transport)
	}
	if _, err := scheduler.ParseFrequency(c.Frequency); err != nil {
		return err
	}
	if c.Console.LineCapacity < 0 || c.Console.MaxArgs < 0 {
		return fmt.Errorf("console capacities must not be negative")
	}
	return nil
}
