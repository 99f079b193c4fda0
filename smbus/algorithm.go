package smbus

// Algorithm is the wire-level strategy bound to an Adapter. The base
// interface carries identity only; actual bus access is declared
// through the capability interfaces below, checked at registration
// time. An Algorithm owns no per-bus state and may be shared by many
// Adapters; anything per-bus lives in the Adapter's Data field.
type Algorithm interface {
	Name() string
}

// MasterXferer is the generic-transfer capability: the Algorithm can
// drive an arbitrary message sequence on the wire. Adapters bound to a
// MasterXferer-only Algorithm get their SMBus semantics from the
// dispatcher's emulation path.
//
// The per-attempt time bound is the bound Adapter's Timeout(); an
// implementation that exceeds it must return errcode.Timeout.
type MasterXferer interface {
	Algorithm
	MasterXfer(a *Adapter, msgs []Msg) error
}

// Accessor is the native SMBus capability: controllers with dedicated
// SMBus silicon frame transactions themselves. When an Adapter's
// Algorithm declares it, the dispatcher hands the five-tuple straight
// through and applies no retry policy of its own.
type Accessor interface {
	Algorithm
	Access(a *Adapter, addr uint8, dir Direction, command uint8, kind Kind, data *Data) error
}

// SlaveTransceiver is the optional slave-mode capability.
type SlaveTransceiver interface {
	SlaveSend(a *Adapter, p []byte) (int, error)
	SlaveRecv(a *Adapter, p []byte) (int, error)
}

// Controller is the optional out-of-band control capability.
type Controller interface {
	Control(a *Adapter, op uint, arg any) error
}

// hasBusCapability reports whether algo can move bytes at all.
func hasBusCapability(algo Algorithm) bool {
	if _, ok := algo.(Accessor); ok {
		return true
	}
	_, ok := algo.(MasterXferer)
	return ok
}
