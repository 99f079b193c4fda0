// Package lm75 drives LM75-class thermal sensors. The chip family
// answers on 0x48..0x4f and exposes a 9-bit temperature plus three
// configuration registers, all word-sized with the high byte first on
// the wire (the opposite of SMBus word order, so every word access is
// byte-swapped).
package lm75

import (
	"sync"

	"smbus-go/smbus"
)

const (
	// AddrFirst..AddrLast is the address-strap window of the family.
	AddrFirst uint8 = 0x48
	AddrLast  uint8 = 0x4f

	regTemp uint8 = 0x00
	regConf uint8 = 0x01
	regHyst uint8 = 0x02
	regOS   uint8 = 0x03

	confShutdown byte = 0x01
)

// Device is one attached sensor.
type Device struct {
	c *smbus.Client
}

// DeviceOf recovers the Device the driver stored on a Client.
func DeviceOf(c *smbus.Client) (*Device, bool) {
	d, ok := c.Data.(*Device)
	return d, ok
}

func swap(v uint16) uint16 { return v<<8 | v>>8 }

func (d *Device) readReg(reg uint8) (uint16, error) {
	v, err := d.c.ReadWordData(reg)
	if err != nil {
		return 0, err
	}
	return swap(v), nil
}

func (d *Device) writeReg(reg uint8, v uint16) error {
	return d.c.WriteWordData(reg, swap(v))
}

// Temperature returns the reading in millidegrees Celsius.
func (d *Device) Temperature() (int, error) {
	raw, err := d.readReg(regTemp)
	if err != nil {
		return 0, err
	}
	// 9 significant bits, 0.5 degC per LSB.
	return int(int16(raw)>>7) * 500, nil
}

// Config returns the configuration register.
func (d *Device) Config() (byte, error) {
	return d.c.ReadByteData(regConf)
}

// SetShutdown toggles the shutdown bit, stopping conversions.
func (d *Device) SetShutdown(on bool) error {
	conf, err := d.Config()
	if err != nil {
		return err
	}
	if on {
		conf |= confShutdown
	} else {
		conf &^= confShutdown
	}
	return d.c.WriteByteData(regConf, conf)
}

// SetLimits programs the hysteresis and overtemperature thresholds, in
// millidegrees.
func (d *Device) SetLimits(hyst, os int) error {
	if err := d.writeReg(regHyst, encodeTemp(hyst)); err != nil {
		return err
	}
	return d.writeReg(regOS, encodeTemp(os))
}

func encodeTemp(milli int) uint16 {
	return uint16(int16(milli/500) << 7)
}

// Driver probes the family's address window on every new bus and
// attaches a Client per responding sensor.
type Driver struct {
	mu      sync.Mutex
	count   int
	devices map[*smbus.Client]*Device
}

var (
	_ smbus.Driver     = (*Driver)(nil)
	_ smbus.UsageHooks = (*Driver)(nil)
)

// NewDriver creates the driver; register it with a Registry.
func NewDriver() *Driver {
	return &Driver{devices: make(map[*smbus.Client]*Device)}
}

func (dr *Driver) Name() string { return "lm75" }

// AttachAdapter probes each strap address with a temperature read; a
// chip that answers with a plausible word is attached.
func (dr *Driver) AttachAdapter(r *smbus.Registry, a *smbus.Adapter) error {
	for addr := AddrFirst; addr <= AddrLast; addr++ {
		if _, taken := a.ClientAt(addr); taken {
			continue
		}
		if _, err := a.ReadWordData(addr, regTemp); err != nil {
			continue
		}
		c := smbus.NewClient("lm75", addr, a, dr)
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

// DetachClient releases the driver's view of the sensor.
func (dr *Driver) DetachClient(c *smbus.Client) error {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	delete(dr.devices, c)
	return nil
}

func (dr *Driver) IncUse(c *smbus.Client) {
	dr.mu.Lock()
	dr.count++
	dr.mu.Unlock()
}

func (dr *Driver) DecUse(c *smbus.Client) {
	dr.mu.Lock()
	dr.count--
	dr.mu.Unlock()
}

// Devices returns a snapshot of the attached sensors.
func (dr *Driver) Devices() []*Device {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	out := make([]*Device, 0, len(dr.devices))
	for _, d := range dr.devices {
		out = append(out, d)
	}
	return out
}
