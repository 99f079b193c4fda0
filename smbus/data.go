// Package smbus is the dispatch and registration core of an SMBus
// abstraction layer. A Driver (protocol logic for a chip family)
// operates on a Client (one detected chip), which is bound to an
// Adapter (one physical bus), which delegates wire-level framing to an
// Algorithm (native SMBus silicon, or emulation over generic transfer
// primitives). The package owns the indirection only; actual register
// programming lives behind the Algorithm capability interfaces.
package smbus

import (
	"smbus-go/errcode"
)

// BlockMax is the largest payload of a block transaction.
const BlockMax = 32

// Direction of a transaction as seen from the host.
type Direction uint8

const (
	Write Direction = 0
	Read  Direction = 1
)

func (d Direction) String() string {
	if d == Read {
		return "read"
	}
	return "write"
}

// Kind selects one of the six standard transaction shapes. It
// determines which view of Data is active and whether the command byte
// is meaningful (it is ignored for Quick and Byte).
type Kind uint8

const (
	KindQuick Kind = iota
	KindByte
	KindByteData
	KindWordData
	KindProcCall
	KindBlockData

	kindCount
)

var kindNames = [...]string{
	"quick", "byte", "byte_data", "word_data", "proc_call", "block_data",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "invalid"
}

// Valid reports whether k names one of the six transaction shapes.
func (k Kind) Valid() bool { return k < kindCount }

// Data is the transaction payload: a checked sum type over the byte,
// word and block views the original C union shared storage for. The
// active view is fixed by the Kind of the call that produced it;
// accessors fail with errcode.DataShape instead of returning stale
// bytes.
type Data struct {
	kind  Kind
	b     byte
	w     uint16
	n     int
	block [BlockMax]byte
}

// ByteValue returns a Data holding a single byte.
func ByteValue(v byte) Data { return Data{kind: KindByte, b: v} }

// WordValue returns a Data holding a 16-bit word.
func WordValue(v uint16) Data { return Data{kind: KindWordData, w: v} }

// BlockValue returns a Data holding a copy of p. Anything beyond
// BlockMax bytes is silently dropped; the clamp is part of the
// protocol contract, not a validation error.
func BlockValue(p []byte) Data {
	d := Data{kind: KindBlockData, n: len(p)}
	if d.n > BlockMax {
		d.n = BlockMax
	}
	copy(d.block[:d.n], p)
	return d
}

// Byte returns the byte view.
func (d *Data) Byte() (byte, error) {
	switch d.kind {
	case KindByte, KindByteData:
		return d.b, nil
	}
	return 0, &errcode.E{C: errcode.DataShape, Op: "data.byte", Msg: "active view is " + d.kind.String()}
}

// Word returns the word view.
func (d *Data) Word() (uint16, error) {
	switch d.kind {
	case KindWordData, KindProcCall:
		return d.w, nil
	}
	return 0, &errcode.E{C: errcode.DataShape, Op: "data.word", Msg: "active view is " + d.kind.String()}
}

// Block returns the block view. The slice aliases the Data's storage
// and is valid until the next transaction reuses it.
func (d *Data) Block() ([]byte, error) {
	if d.kind != KindBlockData {
		return nil, &errcode.E{C: errcode.DataShape, Op: "data.block", Msg: "active view is " + d.kind.String()}
	}
	return d.block[:d.n], nil
}

// Len returns the block length, 0 for non-block views.
func (d *Data) Len() int { return d.n }

// PutByte, PutWord and PutBlock populate read results; the dispatcher
// and Accessor implementations use them to retag the active view.
func (d *Data) PutByte(k Kind, v byte) {
	*d = Data{kind: k, b: v}
}

func (d *Data) PutWord(k Kind, v uint16) {
	*d = Data{kind: k, w: v}
}

func (d *Data) PutBlock(p []byte) {
	*d = Data{kind: KindBlockData, n: len(p)}
	if d.n > BlockMax {
		d.n = BlockMax
	}
	copy(d.block[:d.n], p)
}

// MsgFlags mark a generic transfer message.
type MsgFlags uint16

const (
	// MsgRead marks a master-receive message.
	MsgRead MsgFlags = 1 << iota
	// MsgRecvLen marks a length-prefixed receive: the remote supplies
	// the payload length in the first byte of Buf.
	MsgRecvLen
)

// Msg is one generic bus message, the unit the emulation path frames
// SMBus transactions into and the only currency of MasterXfer.
type Msg struct {
	Addr  uint8
	Flags MsgFlags
	Buf   []byte
}

// IsRead reports whether the message is a master-receive.
func (m *Msg) IsRead() bool { return m.Flags&MsgRead != 0 }
