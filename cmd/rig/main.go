package main

//go-build: CGO_ENABLED=0

import (
	"flag"

	"github.com/robotalks/rig.go/pkg/app"
)

func init() {
	app.SetupFlags()
}

func main() {
	flag.Parse()
	app.NewConfig().MustNewApp().RunOrFail()
}
