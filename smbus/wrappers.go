package smbus

// Convenience wrappers over Access. Each fixes the transaction kind,
// marshals the appropriate Data view, and returns a plain scalar (or a
// byte count, for block reads). These document the Access calling
// conventions as much as they simplify them.

// WriteQuick sends a single bit to addr, at the place of the Rd/Wr
// bit. There is no read-quick counterpart.
func (a *Adapter) WriteQuick(addr uint8, bit Direction) error {
	return a.Access(addr, bit, 0, KindQuick, nil)
}

// ReadByte reads a single byte without selecting a register.
func (a *Adapter) ReadByte(addr uint8) (byte, error) {
	var data Data
	if err := a.Access(addr, Read, 0, KindByte, &data); err != nil {
		return 0, err
	}
	return data.Byte()
}

// WriteByte sends a single byte without selecting a register.
func (a *Adapter) WriteByte(addr uint8, value byte) error {
	return a.Access(addr, Write, value, KindByte, nil)
}

// ReadByteData reads one byte from register command.
func (a *Adapter) ReadByteData(addr, command uint8) (byte, error) {
	var data Data
	if err := a.Access(addr, Read, command, KindByteData, &data); err != nil {
		return 0, err
	}
	return data.Byte()
}

// WriteByteData writes one byte to register command.
func (a *Adapter) WriteByteData(addr, command uint8, value byte) error {
	data := Data{kind: KindByteData, b: value}
	return a.Access(addr, Write, command, KindByteData, &data)
}

// ReadWordData reads a 16-bit word from register command.
func (a *Adapter) ReadWordData(addr, command uint8) (uint16, error) {
	var data Data
	if err := a.Access(addr, Read, command, KindWordData, &data); err != nil {
		return 0, err
	}
	return data.Word()
}

// WriteWordData writes a 16-bit word to register command.
func (a *Adapter) WriteWordData(addr, command uint8, value uint16) error {
	data := WordValue(value)
	return a.Access(addr, Write, command, KindWordData, &data)
}

// ProcessCall writes a word to register command and reads a word back
// in the same transaction.
func (a *Adapter) ProcessCall(addr, command uint8, value uint16) (uint16, error) {
	data := Data{kind: KindProcCall, w: value}
	if err := a.Access(addr, Write, command, KindProcCall, &data); err != nil {
		return 0, err
	}
	return data.Word()
}

// ReadBlockData reads a length-prefixed block from register command
// into buf and returns the number of bytes the device supplied.
func (a *Adapter) ReadBlockData(addr, command uint8, buf []byte) (int, error) {
	var data Data
	if err := a.Access(addr, Read, command, KindBlockData, &data); err != nil {
		return 0, err
	}
	blk, err := data.Block()
	if err != nil {
		return 0, err
	}
	return copy(buf, blk), nil
}

// WriteBlockData writes a length-prefixed block to register command.
// A block longer than 32 bytes is silently clamped to 32; the clamp is
// a documented part of the protocol, not a validation error.
func (a *Adapter) WriteBlockData(addr, command uint8, block []byte) error {
	data := BlockValue(block)
	return a.Access(addr, Write, command, KindBlockData, &data)
}

// Client-bound variants of the wrapper set, for driver code that holds
// a Client rather than an (adapter, address) pair.

func (c *Client) WriteQuick(bit Direction) error { return c.ad.WriteQuick(c.addr, bit) }

func (c *Client) ReadByte() (byte, error) { return c.ad.ReadByte(c.addr) }

func (c *Client) WriteByte(value byte) error { return c.ad.WriteByte(c.addr, value) }

func (c *Client) ReadByteData(command uint8) (byte, error) {
	return c.ad.ReadByteData(c.addr, command)
}

func (c *Client) WriteByteData(command uint8, value byte) error {
	return c.ad.WriteByteData(c.addr, command, value)
}

func (c *Client) ReadWordData(command uint8) (uint16, error) {
	return c.ad.ReadWordData(c.addr, command)
}

func (c *Client) WriteWordData(command uint8, value uint16) error {
	return c.ad.WriteWordData(c.addr, command, value)
}

func (c *Client) ProcessCall(command uint8, value uint16) (uint16, error) {
	return c.ad.ProcessCall(c.addr, command, value)
}

func (c *Client) ReadBlockData(command uint8, buf []byte) (int, error) {
	return c.ad.ReadBlockData(c.addr, command, buf)
}

func (c *Client) WriteBlockData(command uint8, block []byte) error {
	return c.ad.WriteBlockData(c.addr, command, block)
}
