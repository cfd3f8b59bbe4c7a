package scheduler

import (
	"github.com/robotalks/rig.go/pkg/console"
)

const (
	usageShort = "Usage:\r\n" +
		"  test_scheduler start\r\n" +
		"  test_scheduler stop\r\n"
	usageFull = usageShort +
		"  test_scheduler frequency <desired frequency>\r\n" +
		"    Note: Desired frequencies can only be 100Hz, 1kHz or 10kHz\r\n"
	invalidFrequency = "Invalid: Desired frequencies can only be 100Hz, 1kHz or 10kHz\r\n"
)

// Cmd creates the test_scheduler console command.
func Cmd(ctl *Control) console.Command {
	return console.Command{
		Name: "test_scheduler",
		Help: "Starts the test scheduler.",
		Func: func(c *console.Context) {
			if len(c.Args) < 2 {
				c.Print(usageShort)
				return
			}
			switch c.Args[1] {
			case "start":
				ctl.Init()
				ctl.Start()
			case "stop":
				ctl.Stop()
			case "frequency":
				if len(c.Args) < 3 {
					c.Print(invalidFrequency)
					return
				}
				mode, err := ParseFrequency(c.Args[2])
				if err == nil {
					err = ctl.SetMode(mode)
				}
				if err != nil {
					c.Print(invalidFrequency)
				}
			default:
				c.Printf("Invalid argument: %s\r\n", c.Args[1])
				c.Print(usageFull)
			}
		},
	}
}
