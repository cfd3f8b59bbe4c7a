// Package background runs the low-priority housekeeping task of the rig.
package background

import (
	"context"
	"time"

	fx "github.com/robotalks/rig.go/pkg/framework"
	"github.com/robotalks/rig.go/pkg/hw/gpio"
)

// DefaultPeriod is the blink period.
const DefaultPeriod = time.Second

// Task toggles the indicator every period. The optional Hook runs after
// each toggle, e.g. to publish a heartbeat.
func Task(indicator gpio.Pin, period time.Duration, priority int, hook func(context.Context)) *fx.Task {
	if period <= 0 {
		period = DefaultPeriod
	}
	return &fx.Task{
		TaskName: "background",
		Period:   period,
		Priority: priority,
		Process: func(ctx context.Context) {
			indicator.Toggle()
			if hook != nil {
				hook(ctx)
			}
		},
	}
}
