package smbus

import (
	"sync"
	"time"

	"smbus-go/errcode"
)

// Mock is a register-model bus simulator implementing the generic
// transfer capability: it decodes the emulation path's message framing
// against a per-address register file. It ships in the package proper
// so algorithm-free tests, driver tests and demos can share it.
//
// The zero value is not usable; call NewMock.
type Mock struct {
	name string

	// Delay widens the wire-occupancy window of each transfer, which
	// concurrency tests use to provoke interleaving.
	Delay time.Duration

	mu   sync.Mutex
	devs map[uint8]*MockDevice

	failN    int
	failCode errcode.Code
	attempts int
	events   []string

	slaveBuf []byte
}

// MockDevice is the state of one simulated chip.
type MockDevice struct {
	// Last is the byte most recently written with a plain byte write;
	// plain byte reads return it.
	Last byte
	// Regs maps a command byte to stored payload: one byte for
	// byte-data, two (little-endian) for word-data, up to 32 for
	// block-data.
	Regs map[uint8][]byte
	// QuickSeen counts quick transactions addressed at the device.
	QuickSeen int
}

// NewMock creates a mock with no devices present; transactions to
// absent addresses fail with errcode.Xfer, like a NACKed address.
func NewMock(name string) *Mock {
	return &Mock{name: name, devs: make(map[uint8]*MockDevice)}
}

func (m *Mock) Name() string { return m.name }

// AddDevice makes addr respond on the simulated bus.
func (m *Mock) AddDevice(addr uint8) *MockDevice {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := &MockDevice{Regs: make(map[uint8][]byte)}
	m.devs[addr] = d
	return d
}

// Device returns the simulated chip at addr, if present.
func (m *Mock) Device(addr uint8) (*MockDevice, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devs[addr]
	return d, ok
}

// FailTimes makes the next n attempts fail with code before the model
// is consulted. Zero code means errcode.Timeout.
func (m *Mock) FailTimes(n int, code errcode.Code) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failN = n
	m.failCode = code
	if m.failCode == "" {
		m.failCode = errcode.Timeout
	}
}

// Attempts returns how many wire-level attempts the mock has seen,
// including injected failures.
func (m *Mock) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// Events returns the recorded enter/exit sequence of wire occupancy.
// A serialized bus shows strictly alternating "enter", "exit".
func (m *Mock) Events() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	copy(out, m.events)
	return out
}

func (m *Mock) begin() error {
	m.mu.Lock()
	m.attempts++
	m.events = append(m.events, "enter")
	if m.failN > 0 {
		m.failN--
		code := m.failCode
		m.events = append(m.events, "exit")
		m.mu.Unlock()
		return &errcode.E{C: code, Op: "mock"}
	}
	m.mu.Unlock()
	if m.Delay > 0 {
		time.Sleep(m.Delay)
	}
	return nil
}

func (m *Mock) end() {
	m.mu.Lock()
	m.events = append(m.events, "exit")
	m.mu.Unlock()
}

// MasterXfer decodes the message sequence back into SMBus semantics
// and applies it to the register model. A three-byte single write is
// taken as word-data, so block-data exchanges shorter than two bytes
// are indistinguishable from words here; tests use longer blocks.
func (m *Mock) MasterXfer(a *Adapter, msgs []Msg) error {
	if err := m.begin(); err != nil {
		return err
	}
	defer m.end()

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(msgs) == 0 {
		return &errcode.E{C: errcode.InvalidParams, Op: "mock.xfer"}
	}
	dev, ok := m.devs[msgs[0].Addr]
	if !ok {
		return &errcode.E{C: errcode.Xfer, Op: "mock.xfer", Msg: "address not acknowledged"}
	}

	switch len(msgs) {
	case 1:
		msg := msgs[0]
		if len(msg.Buf) == 0 {
			dev.QuickSeen++
			return nil
		}
		if msg.IsRead() {
			if len(msg.Buf) != 1 {
				return &errcode.E{C: errcode.Xfer, Op: "mock.xfer", Msg: "unframed read"}
			}
			msg.Buf[0] = dev.Last
			return nil
		}
		switch len(msg.Buf) {
		case 1: // byte write
			dev.Last = msg.Buf[0]
			return nil
		case 2: // byte-data write
			dev.Regs[msg.Buf[0]] = []byte{msg.Buf[1]}
			return nil
		case 3: // word-data write
			dev.Regs[msg.Buf[0]] = []byte{msg.Buf[1], msg.Buf[2]}
			return nil
		default: // block write: command, count, payload
			if int(msg.Buf[1]) != len(msg.Buf)-2 {
				return &errcode.E{C: errcode.Xfer, Op: "mock.xfer", Msg: "bad block count"}
			}
			blk := make([]byte, msg.Buf[1])
			copy(blk, msg.Buf[2:])
			dev.Regs[msg.Buf[0]] = blk
			return nil
		}

	case 2:
		wr, rd := msgs[0], msgs[1]
		if wr.IsRead() || !rd.IsRead() || len(wr.Buf) == 0 {
			return &errcode.E{C: errcode.Xfer, Op: "mock.xfer", Msg: "unframed sequence"}
		}
		command := wr.Buf[0]

		if len(wr.Buf) == 3 { // process call: swap stored word with written one
			prev := dev.Regs[command]
			dev.Regs[command] = []byte{wr.Buf[1], wr.Buf[2]}
			if len(prev) != 2 {
				prev = []byte{wr.Buf[1], wr.Buf[2]}
			}
			rd.Buf[0], rd.Buf[1] = prev[0], prev[1]
			return nil
		}

		stored := dev.Regs[command]
		if rd.Flags&MsgRecvLen != 0 { // block read
			if len(stored) > BlockMax {
				stored = stored[:BlockMax]
			}
			rd.Buf[0] = byte(len(stored))
			copy(rd.Buf[1:], stored)
			return nil
		}
		if len(stored) < len(rd.Buf) {
			return &errcode.E{C: errcode.Xfer, Op: "mock.xfer", Msg: "register not populated"}
		}
		copy(rd.Buf, stored)
		return nil
	}

	return &errcode.E{C: errcode.Xfer, Op: "mock.xfer", Msg: "unframed sequence"}
}

// SlaveSend queues p as the simulated slave transmit buffer.
func (m *Mock) SlaveSend(a *Adapter, p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slaveBuf = append(m.slaveBuf[:0], p...)
	return len(p), nil
}

// SlaveRecv drains the simulated slave transmit buffer into p.
func (m *Mock) SlaveRecv(a *Adapter, p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := copy(p, m.slaveBuf)
	m.slaveBuf = m.slaveBuf[n:]
	return n, nil
}

// ControlReset clears every simulated device's state.
const ControlReset uint = 1

// Control implements the out-of-band control capability.
func (m *Mock) Control(a *Adapter, op uint, arg any) error {
	if op != ControlReset {
		return &errcode.E{C: errcode.Unsupported, Op: "mock.control"}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, dev := range m.devs {
		dev.Last = 0
		dev.QuickSeen = 0
		dev.Regs = make(map[uint8][]byte)
	}
	return nil
}

// NativeMock is a Mock that additionally declares the native SMBus
// capability, exercising the dispatcher's fast path. Framing is
// bypassed; kinds apply straight to the register model.
type NativeMock struct {
	*Mock
}

// NewNativeMock creates a native-capable mock.
func NewNativeMock(name string) *NativeMock {
	return &NativeMock{Mock: NewMock(name)}
}

// Access applies one transaction directly to the register model.
func (m *NativeMock) Access(a *Adapter, addr uint8, dir Direction, command uint8, kind Kind, data *Data) error {
	if err := m.begin(); err != nil {
		return err
	}
	defer m.end()

	m.mu.Lock()
	defer m.mu.Unlock()

	dev, ok := m.devs[addr]
	if !ok {
		return &errcode.E{C: errcode.Xfer, Op: "mock.access", Msg: "address not acknowledged"}
	}

	switch kind {
	case KindQuick:
		dev.QuickSeen++
		return nil

	case KindByte:
		if dir == Write {
			dev.Last = command
			return nil
		}
		data.PutByte(KindByte, dev.Last)
		return nil

	case KindByteData:
		if dir == Write {
			v, err := data.Byte()
			if err != nil {
				return err
			}
			dev.Regs[command] = []byte{v}
			return nil
		}
		stored := dev.Regs[command]
		if len(stored) < 1 {
			return &errcode.E{C: errcode.Xfer, Op: "mock.access", Msg: "register not populated"}
		}
		data.PutByte(KindByteData, stored[0])
		return nil

	case KindWordData:
		if dir == Write {
			v, err := data.Word()
			if err != nil {
				return err
			}
			dev.Regs[command] = []byte{byte(v), byte(v >> 8)}
			return nil
		}
		stored := dev.Regs[command]
		if len(stored) < 2 {
			return &errcode.E{C: errcode.Xfer, Op: "mock.access", Msg: "register not populated"}
		}
		data.PutWord(KindWordData, uint16(stored[0])|uint16(stored[1])<<8)
		return nil

	case KindProcCall:
		v, err := data.Word()
		if err != nil {
			return err
		}
		prev := dev.Regs[command]
		dev.Regs[command] = []byte{byte(v), byte(v >> 8)}
		if len(prev) != 2 {
			prev = []byte{byte(v), byte(v >> 8)}
		}
		data.PutWord(KindProcCall, uint16(prev[0])|uint16(prev[1])<<8)
		return nil

	case KindBlockData:
		if dir == Write {
			blk, err := data.Block()
			if err != nil {
				return err
			}
			stored := make([]byte, len(blk))
			copy(stored, blk)
			dev.Regs[command] = stored
			return nil
		}
		data.PutBlock(dev.Regs[command])
		return nil
	}

	return &errcode.E{C: errcode.InvalidKind, Op: "mock.access"}
}
