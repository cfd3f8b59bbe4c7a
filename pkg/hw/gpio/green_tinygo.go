//go:build tinygo

package gpio

import "machine"

type machinePin struct {
	pin machine.Pin
}

// GreenLED returns the green indicator LED of the board.
func GreenLED() Pin {
	led := machine.LED
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})
	return &machinePin{pin: led}
}

func (p *machinePin) Toggle() { p.pin.Set(!p.pin.Get()) }

func (p *machinePin) Get() bool { return p.pin.Get() }
