package sh

import (
	"flag"
	"os"
	"time"
)

// Defaults for Config.
const (
	DefaultURL     = "tcp://127.0.0.1:2323"
	DefaultSettle  = 500 * time.Millisecond
	DefaultMaxWait = 10 * time.Second
)

// Config defines how the shell reaches a rig.
type Config struct {
	// URL of the rig console: tcp://host:port, ws://host:port/console or
	// mqtt://broker:port/prefix/.
	URL string
	// RigID selects the rig when URL is an MQTT broker.
	RigID string
	// MQTTURL is the broker used by discover and status. It defaults to URL
	// when URL is an MQTT broker.
	MQTTURL string
	// Settle is how long the console must stay quiet before a reply is
	// considered complete. The rig polls one byte per console period, so
	// this must be well above that period.
	Settle time.Duration
	// MaxWait bounds a single exchange.
	MaxWait time.Duration
}

var defaultConfig = Config{
	URL:     DefaultURL,
	Settle:  DefaultSettle,
	MaxWait: DefaultMaxWait,
}

func init() {
	if val := os.Getenv("RIG_URL"); val != "" {
		defaultConfig.URL = val
	}
	if val := os.Getenv("RIG_ID"); val != "" {
		defaultConfig.RigID = val
	}
	if val := os.Getenv("RIG_MQTT_URL"); val != "" {
		defaultConfig.MQTTURL = val
	}
}

// SetupFlags setup flags for default config.
func SetupFlags() {
	flag.StringVar(&defaultConfig.URL, "url", defaultConfig.URL, "Rig console URL (tcp://, ws://, mqtt://)")
	flag.StringVar(&defaultConfig.RigID, "rig", defaultConfig.RigID, "Rig ID when connecting through MQTT")
	flag.StringVar(&defaultConfig.MQTTURL, "mqtt", defaultConfig.MQTTURL, "MQTT broker URL for discover and status")
	flag.DurationVar(&defaultConfig.Settle, "settle", defaultConfig.Settle, "Quiet period ending a reply")
	flag.DurationVar(&defaultConfig.MaxWait, "max-wait", defaultConfig.MaxWait, "Maximum time waiting for a reply")
}

// Default returns the default config.
func Default() Config {
	return defaultConfig
}

// NewConfig creates a copy of default config.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// BrokerURL returns the MQTT broker for discovery and telemetry.
func (c *Config) BrokerURL() string {
	if c.MQTTURL != "" {
		return c.MQTTURL
	}
	if schemeOf(c.URL) == "mqtt" {
		return c.URL
	}
	return ""
}
