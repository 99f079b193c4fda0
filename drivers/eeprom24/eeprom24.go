// Package eeprom24 drives 24Cxx-family serial EEPROMs. The family
// joins the bus at 0x50..0x57 and has no identification register, so
// detection is a bare quick write: a chip that acknowledges its
// address is taken to be present.
package eeprom24

import (
	"sync"

	"smbus-go/errcode"
	"smbus-go/smbus"
)

const (
	// AddrFirst..AddrLast is the chip-select window of the family.
	AddrFirst uint8 = 0x50
	AddrLast  uint8 = 0x57
)

// Device is one attached EEPROM, addressed by byte offset.
type Device struct {
	c *smbus.Client
}

// DeviceOf recovers the Device the driver stored on a Client.
func DeviceOf(c *smbus.Client) (*Device, bool) {
	d, ok := c.Data.(*Device)
	return d, ok
}

// WriteAt stores p starting at off. Writes longer than the block
// transfer limit are split into consecutive block writes.
func (d *Device) WriteAt(off uint8, p []byte) error {
	for len(p) > 0 {
		n := len(p)
		if n > smbus.BlockMax {
			n = smbus.BlockMax
		}
		if int(off)+n > 0x100 {
			return &errcode.E{C: errcode.InvalidParams, Op: "eeprom.write", Msg: "past end of array"}
		}
		if err := d.c.WriteBlockData(off, p[:n]); err != nil {
			return err
		}
		off += uint8(n)
		p = p[n:]
	}
	return nil
}

// ReadAt fills buf from off and reports how many bytes arrived. A
// single block read caps at the block transfer limit; longer reads are
// chained.
func (d *Device) ReadAt(off uint8, buf []byte) (int, error) {
	total := 0
	for len(buf) > 0 {
		n, err := d.c.ReadBlockData(off, buf)
		if err != nil {
			return total, err
		}
		total += n
		if n < smbus.BlockMax || n >= len(buf) {
			break
		}
		off += uint8(n)
		buf = buf[n:]
	}
	return total, nil
}

// ReadByteAt returns the byte at off.
func (d *Device) ReadByteAt(off uint8) (byte, error) {
	return d.c.ReadByteData(off)
}

// WriteByteAt stores one byte at off.
func (d *Device) WriteByteAt(off uint8, v byte) error {
	return d.c.WriteByteData(off, v)
}

// Driver quick-probes the family's chip-select window on every new bus.
type Driver struct {
	mu      sync.Mutex
	devices map[*smbus.Client]*Device
}

var _ smbus.Driver = (*Driver)(nil)

// NewDriver creates the driver; register it with a Registry.
func NewDriver() *Driver {
	return &Driver{devices: make(map[*smbus.Client]*Device)}
}

func (dr *Driver) Name() string { return "eeprom24" }

// AttachAdapter attaches a Client per acknowledged chip-select address.
func (dr *Driver) AttachAdapter(r *smbus.Registry, a *smbus.Adapter) error {
	for addr := AddrFirst; addr <= AddrLast; addr++ {
		if _, taken := a.ClientAt(addr); taken {
			continue
		}
		if err := a.WriteQuick(addr, smbus.Write); err != nil {
			continue
		}
		c := smbus.NewClient("eeprom24", addr, a, dr)
		dev := &Device{c: c}
		c.Data = dev
		if err := r.AttachClient(c); err != nil {
			continue
		}
		dr.mu.Lock()
		dr.devices[c] = dev
		dr.mu.Unlock()
	}
	return nil
}

// DetachClient releases the driver's view of the chip.
func (dr *Driver) DetachClient(c *smbus.Client) error {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	delete(dr.devices, c)
	return nil
}

// Devices returns a snapshot of the attached chips.
func (dr *Driver) Devices() []*Device {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	out := make([]*Device, 0, len(dr.devices))
	for _, d := range dr.devices {
		out = append(out, d)
	}
	return out
}
