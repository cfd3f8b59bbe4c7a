package gpio

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLEDToggle(t *testing.T) {
	led := NewLED("green")
	require.False(t, led.Get())
	led.Toggle()
	require.True(t, led.Get())
	led.Toggle()
	require.False(t, led.Get())
	require.Equal(t, uint64(2), led.Toggles())
}

func TestLEDConcurrentToggles(t *testing.T) {
	led := NewLED("green")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 101; j++ {
				led.Toggle()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, uint64(808), led.Toggles())
	require.False(t, led.Get())
}

func TestGreenLEDIsOff(t *testing.T) {
	require.False(t, GreenLED().Get())
}
