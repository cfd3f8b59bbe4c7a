//go:build !tinygo

package gpio

// GreenLED returns the green indicator LED.
func GreenLED() Pin {
	return NewLED("green")
}
