// Package i2cbridge adapts a generic I2C bus handle to the
// generic-transfer Algorithm capability, so SMBus semantics come from
// the dispatcher's emulation path. Anything satisfying
// tinygo.org/x/drivers.I2C can sit underneath: a kernel device node
// wrapper, a soft bus, or a scripted fake.
package i2cbridge

import (
	"tinygo.org/x/drivers"

	"smbus-go/errcode"
	"smbus-go/smbus"
)

// Bridge is a generic-transfer Algorithm over one drivers.I2C handle.
type Bridge struct {
	name string
	bus  drivers.I2C
}

var _ smbus.MasterXferer = (*Bridge)(nil)

// New wraps bus as an Algorithm.
func New(name string, bus drivers.I2C) *Bridge {
	return &Bridge{name: name, bus: bus}
}

func (b *Bridge) Name() string { return b.name }

// MasterXfer maps a message sequence onto Tx calls. A write
// immediately followed by a read at the same address collapses into a
// single Tx, which is how drivers.I2C expresses a repeated start. A
// plain Tx cannot stop mid-transfer on a count byte, so a
// length-prefixed receive reads its full window and the caller trims
// by the count.
func (b *Bridge) MasterXfer(a *smbus.Adapter, msgs []smbus.Msg) error {
	for i := 0; i < len(msgs); {
		m := msgs[i]
		if !m.IsRead() && i+1 < len(msgs) && msgs[i+1].IsRead() && msgs[i+1].Addr == m.Addr {
			if err := b.bus.Tx(uint16(m.Addr), m.Buf, msgs[i+1].Buf); err != nil {
				return classify(err)
			}
			i += 2
			continue
		}
		var w, r []byte
		if m.IsRead() {
			r = m.Buf
		} else {
			w = m.Buf
		}
		if err := b.bus.Tx(uint16(m.Addr), w, r); err != nil {
			return classify(err)
		}
		i++
	}
	return nil
}

// classify folds raw bus errors into the transaction taxonomy.
// Errors that already carry a code pass through untouched.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errcode.Of(err) != errcode.Error {
		return err
	}
	return &errcode.E{C: errcode.Xfer, Op: "i2cbridge.xfer", Err: err}
}
