// Package msgs defines the telemetry events a rig publishes and the Typed
// envelope carrying them over the wire.
//
// Producer: rig
// Consumer: rigcli, monitors
package msgs
