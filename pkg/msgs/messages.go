package msgs

import (
	"github.com/golang/protobuf/proto"
)

// SchedulerStatus is an Event reflecting the test scheduler state.
type SchedulerStatus struct {
	Running     bool    `protobuf:"varint,1,opt,name=running,proto3" json:"running,omitempty"`
	Mode        string  `protobuf:"bytes,2,opt,name=mode,proto3" json:"mode,omitempty"`
	Prescaler   uint32  `protobuf:"varint,3,opt,name=prescaler,proto3" json:"prescaler,omitempty"`
	Reload      uint32  `protobuf:"varint,4,opt,name=reload,proto3" json:"reload,omitempty"`
	FrequencyHz float64 `protobuf:"fixed64,5,opt,name=frequency_hz,json=frequencyHz,proto3" json:"frequency_hz,omitempty"`
}

// NewMessage implements Message.
func (m *SchedulerStatus) NewMessage() Message { return &SchedulerStatus{} }

// TypeID implements Message.
func (m *SchedulerStatus) TypeID() uint32 { return SchedulerStatusTypeID }

// ProtoMessage implements proto.Message.
func (m *SchedulerStatus) ProtoMessage() {}

// Reset implements proto.Message.
func (m *SchedulerStatus) Reset() { *m = SchedulerStatus{} }

// String implements proto.Message.
func (m *SchedulerStatus) String() string { return proto.CompactTextString(m) }

// Heartbeat is an Event published periodically while the rig runs.
type Heartbeat struct {
	// Uptime in milliseconds.
	Uptime int64 `protobuf:"varint,1,opt,name=uptime,proto3" json:"uptime,omitempty"`
	LedOn  bool  `protobuf:"varint,2,opt,name=led_on,json=ledOn,proto3" json:"led_on,omitempty"`
}

// NewMessage implements Message.
func (m *Heartbeat) NewMessage() Message { return &Heartbeat{} }

// TypeID implements Message.
func (m *Heartbeat) TypeID() uint32 { return HeartbeatTypeID }

// ProtoMessage implements proto.Message.
func (m *Heartbeat) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Heartbeat) Reset() { *m = Heartbeat{} }

// String implements proto.Message.
func (m *Heartbeat) String() string { return proto.CompactTextString(m) }

// TypeID Groups
const (
	GroupRig uint32 = 0x00010000
)

// TypeIDs
const (
	SchedulerStatusTypeID uint32 = GroupRig | TypeIDKindEvent | 0x0001
	HeartbeatTypeID       uint32 = GroupRig | TypeIDKindEvent | 0x0002
)
