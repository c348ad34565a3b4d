// Package bus routes encoded LED frames from channels to transmit
// drivers. A Manager keeps the driver registry and aggregate state;
// Channels encode pixels and hand their transmission buffer to the
// driver the Manager selects for them.
package bus

// State describes what a driver's hardware is doing.
//
// Typical flow for asynchronous hardware: READY, BUSY, DRAINING, then
// READY again. Synchronous drivers may never expose BUSY because the
// whole transmission happens inside Show.
type State uint8

const (
	// StateReady means the hardware is idle and accepts new work.
	StateReady State = iota
	// StateBusy means channels are transmitting or queued.
	StateBusy
	// StateDraining means all channels are submitted but the wire is
	// still active.
	StateDraining
	// StateError means the driver hit a failure it has not yet
	// recovered from.
	StateError
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "READY"
	case StateBusy:
		return "BUSY"
	case StateDraining:
		return "DRAINING"
	case StateError:
		return "ERROR"
	}
	return "UNKNOWN"
}

// Status pairs a state with its error message. Err is populated only
// when State is StateError.
type Status struct {
	State State
	Err   string
}

func (s Status) String() string {
	if s.Err == "" {
		return s.State.String()
	}
	return s.State.String() + ": " + s.Err
}

// Capabilities declares which chipset families a driver can serve.
type Capabilities struct {
	Clockless bool
	SPI       bool
}

func (c Capabilities) String() string {
	switch {
	case c.Clockless && c.SPI:
		return "CLOCKLESS|SPI"
	case c.Clockless:
		return "CLOCKLESS"
	case c.SPI:
		return "SPI"
	}
	return "NONE"
}

// Driver is the contract for LED transmit backends. Implementations
// manage their own queueing and error tracking; the Manager only
// sequences calls.
//
// Enqueue borrows the channel's transmission buffer: the driver marks
// it in use and must release it once the hardware no longer reads from
// it. Synchronous drivers release at the end of Show; asynchronous ones
// release from Poll after the transfer completes. Show triggers
// transmission of everything enqueued since the last show. Poll is
// non-blocking, reports the current state and performs completion
// cleanup.
type Driver interface {
	// Name identifies the driver for affinity binding and admin calls.
	// Drivers with an empty name are rejected by the Manager.
	Name() string

	// Capabilities reports the chipset families this driver serves.
	Capabilities() Capabilities

	// CanHandle reports whether this driver can transmit the given
	// channel, judged from its chipset descriptor.
	CanHandle(data *ChannelData) bool

	// Enqueue stages channel data for the next transmission.
	Enqueue(data *ChannelData)

	// Show starts transmitting the staged data.
	Show()

	// Poll returns the driver status and releases finished buffers.
	Poll() Status
}
