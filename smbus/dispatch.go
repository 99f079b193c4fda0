package smbus

import (
	"smbus-go/errcode"
)

// Access is the generalized transaction entry point. It validates the
// transaction kind, serializes against every other transaction on this
// Adapter, and routes to the bound Algorithm: straight through when
// the Algorithm has native SMBus silicon, otherwise framed onto the
// generic transfer primitive.
//
// data carries the payload for writes and receives the result for
// reads; it may be nil only for Quick and for Byte writes (where the
// command slot carries the data byte, as in the original calling
// convention). The guard is held across the whole retry sequence, so
// two concurrent calls on one Adapter never interleave on the wire.
// Kind support is not filtered here: a kind the Algorithm cannot do
// surfaces as that Algorithm's own failure.
func (a *Adapter) Access(addr uint8, dir Direction, command uint8, kind Kind, data *Data) error {
	if !kind.Valid() {
		return &errcode.E{C: errcode.InvalidKind, Op: "access"}
	}
	if addr > 0x7f {
		return &errcode.E{C: errcode.InvalidParams, Op: "access", Msg: "address beyond 7-bit range"}
	}
	if data == nil && needsData(dir, kind) {
		return &errcode.E{C: errcode.InvalidParams, Op: "access", Msg: "nil data for " + kind.String()}
	}

	a.xfer.Lock()
	defer a.xfer.Unlock()

	// Fast path: dedicated SMBus controller. Retry policy, if any, is
	// internal to the Algorithm.
	if acc, ok := a.algo.(Accessor); ok {
		return acc.Access(a, addr, dir, command, kind, data)
	}

	mx, ok := a.algo.(MasterXferer)
	if !ok {
		// Registration checks make this unreachable for adapters that
		// went through AddAdapter.
		return &errcode.E{C: errcode.Unsupported, Op: "access", Msg: a.algo.Name()}
	}

	var err error
	for attempt := 0; attempt <= a.retries; attempt++ {
		err = a.emulate(mx, addr, dir, command, kind, data)
		if err == nil || !errcode.Transient(err) {
			return err
		}
	}
	return err
}

func needsData(dir Direction, kind Kind) bool {
	switch kind {
	case KindQuick:
		return false
	case KindByte:
		return dir == Read
	}
	return true
}

// emulate reproduces one SMBus transaction shape as a generic message
// sequence and drives it through the Algorithm. This is the one place
// the transaction-size semantics live; the native path delegates the
// same framing to the controller.
func (a *Adapter) emulate(mx MasterXferer, addr uint8, dir Direction, command uint8, kind Kind, data *Data) error {
	var dirFlag MsgFlags
	if dir == Read {
		dirFlag = MsgRead
	}

	switch kind {
	case KindQuick:
		// Zero-length, direction-only exchange.
		return mx.MasterXfer(a, []Msg{{Addr: addr, Flags: dirFlag}})

	case KindByte:
		if dir == Write {
			// The command slot carries the data byte.
			return mx.MasterXfer(a, []Msg{{Addr: addr, Buf: []byte{command}}})
		}
		buf := make([]byte, 1)
		if err := mx.MasterXfer(a, []Msg{{Addr: addr, Flags: MsgRead, Buf: buf}}); err != nil {
			return err
		}
		data.PutByte(KindByte, buf[0])
		return nil

	case KindByteData:
		if dir == Write {
			v, err := data.Byte()
			if err != nil {
				return err
			}
			return mx.MasterXfer(a, []Msg{{Addr: addr, Buf: []byte{command, v}}})
		}
		buf := make([]byte, 1)
		msgs := []Msg{
			{Addr: addr, Buf: []byte{command}},
			{Addr: addr, Flags: MsgRead, Buf: buf},
		}
		if err := mx.MasterXfer(a, msgs); err != nil {
			return err
		}
		data.PutByte(KindByteData, buf[0])
		return nil

	case KindWordData:
		if dir == Write {
			v, err := data.Word()
			if err != nil {
				return err
			}
			return mx.MasterXfer(a, []Msg{{Addr: addr, Buf: []byte{command, byte(v), byte(v >> 8)}}})
		}
		buf := make([]byte, 2)
		msgs := []Msg{
			{Addr: addr, Buf: []byte{command}},
			{Addr: addr, Flags: MsgRead, Buf: buf},
		}
		if err := mx.MasterXfer(a, msgs); err != nil {
			return err
		}
		data.PutWord(KindWordData, uint16(buf[0])|uint16(buf[1])<<8)
		return nil

	case KindProcCall:
		v, err := data.Word()
		if err != nil {
			return err
		}
		buf := make([]byte, 2)
		msgs := []Msg{
			{Addr: addr, Buf: []byte{command, byte(v), byte(v >> 8)}},
			{Addr: addr, Flags: MsgRead, Buf: buf},
		}
		if err := mx.MasterXfer(a, msgs); err != nil {
			return err
		}
		data.PutWord(KindProcCall, uint16(buf[0])|uint16(buf[1])<<8)
		return nil

	case KindBlockData:
		if dir == Write {
			blk, err := data.Block()
			if err != nil {
				return err
			}
			buf := make([]byte, 0, 2+len(blk))
			buf = append(buf, command, byte(len(blk)))
			buf = append(buf, blk...)
			return mx.MasterXfer(a, []Msg{{Addr: addr, Buf: buf}})
		}
		// Length-prefixed receive: the remote fills buf[0] with the
		// count, then the payload.
		buf := make([]byte, 1+BlockMax)
		msgs := []Msg{
			{Addr: addr, Buf: []byte{command}},
			{Addr: addr, Flags: MsgRead | MsgRecvLen, Buf: buf},
		}
		if err := mx.MasterXfer(a, msgs); err != nil {
			return err
		}
		n := int(buf[0])
		if n > BlockMax {
			return &errcode.E{C: errcode.Xfer, Op: "access", Msg: "block reply longer than 32"}
		}
		data.PutBlock(buf[1 : 1+n])
		return nil
	}

	return &errcode.E{C: errcode.InvalidKind, Op: "access"}
}
