// Package serialbridge drives a USB/serial bridge device that exposes
// SMBus transactions through a line protocol, the way CH347-class
// converter chips do. The bridge frames transactions itself, so the
// Algorithm declares the native-access capability and the dispatcher's
// emulation path stays out of the way.
//
// One request line per transaction, hex fields, one reply line:
//
//	Q  <addr> W|R          quick
//	WB <addr> <val>        write byte      -> OK
//	RB <addr>              read byte       -> OK <val>
//	WD <addr> <cmd> <val>  write byte data -> OK
//	RD <addr> <cmd>        read byte data  -> OK <val>
//	WW <addr> <cmd> <word> write word data -> OK
//	RW <addr> <cmd>        read word data  -> OK <word>
//	PC <addr> <cmd> <word> process call    -> OK <word>
//	WK <addr> <cmd> <hex>  write block     -> OK
//	RK <addr> <cmd>        read block      -> OK <hex>
//
// Failures come back as "ERR nack", "ERR timeout" or "ERR <detail>".
package serialbridge

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"

	"smbus-go/errcode"
	"smbus-go/smbus"
)

// Port is the minimal surface the bridge needs from a serial port.
type Port interface {
	io.ReadWriter
	io.Closer
}

// readTimeouter is satisfied by go.bug.st/serial ports; fakes may skip it.
type readTimeouter interface {
	SetReadTimeout(time.Duration) error
}

// Bridge is a native-SMBus Algorithm speaking the line protocol over
// one serial port. It may back several Adapters; the exchange mutex
// keeps request/reply pairs from distinct buses intact on the wire.
type Bridge struct {
	name string
	mu   sync.Mutex
	port Port
	rd   *bufio.Reader
}

var _ smbus.Accessor = (*Bridge)(nil)

// New wraps an open port.
func New(name string, port Port) *Bridge {
	return &Bridge{name: name, port: port, rd: bufio.NewReader(port)}
}

// Open opens the serial device and wraps it. Zero baud picks 115200.
func Open(name, device string, baud int) (*Bridge, error) {
	if baud <= 0 {
		baud = 115200
	}
	port, err := serial.Open(device, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, err
	}
	return New(name, port), nil
}

func (b *Bridge) Name() string { return b.name }

// Close releases the serial port.
func (b *Bridge) Close() error { return b.port.Close() }

// Access sends one transaction to the bridge. The Adapter's timeout
// bounds the reply wait when the port supports read deadlines; the
// bridge applies no retry policy of its own.
func (b *Bridge) Access(a *smbus.Adapter, addr uint8, dir smbus.Direction, command uint8, kind smbus.Kind, data *smbus.Data) error {
	req, err := encode(addr, dir, command, kind, data)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if rt, ok := b.port.(readTimeouter); ok {
		_ = rt.SetReadTimeout(a.Timeout())
	}

	if _, err := io.WriteString(b.port, req+"\n"); err != nil {
		return &errcode.E{C: errcode.Xfer, Op: "serialbridge.write", Err: err}
	}
	line, err := b.rd.ReadString('\n')
	if err != nil {
		return &errcode.E{C: errcode.Timeout, Op: "serialbridge.read", Err: err}
	}

	payload, err := parseReply(strings.TrimSpace(line))
	if err != nil {
		return err
	}
	return decode(dir, kind, payload, data)
}

func encode(addr uint8, dir smbus.Direction, command uint8, kind smbus.Kind, data *smbus.Data) (string, error) {
	switch kind {
	case smbus.KindQuick:
		bit := "W"
		if dir == smbus.Read {
			bit = "R"
		}
		return fmt.Sprintf("Q %02x %s", addr, bit), nil

	case smbus.KindByte:
		if dir == smbus.Write {
			return fmt.Sprintf("WB %02x %02x", addr, command), nil
		}
		return fmt.Sprintf("RB %02x", addr), nil

	case smbus.KindByteData:
		if dir == smbus.Write {
			v, err := data.Byte()
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("WD %02x %02x %02x", addr, command, v), nil
		}
		return fmt.Sprintf("RD %02x %02x", addr, command), nil

	case smbus.KindWordData:
		if dir == smbus.Write {
			v, err := data.Word()
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("WW %02x %02x %04x", addr, command, v), nil
		}
		return fmt.Sprintf("RW %02x %02x", addr, command), nil

	case smbus.KindProcCall:
		v, err := data.Word()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("PC %02x %02x %04x", addr, command, v), nil

	case smbus.KindBlockData:
		if dir == smbus.Write {
			blk, err := data.Block()
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("WK %02x %02x %s", addr, command, hex.EncodeToString(blk)), nil
		}
		return fmt.Sprintf("RK %02x %02x", addr, command), nil
	}
	return "", &errcode.E{C: errcode.InvalidKind, Op: "serialbridge.encode"}
}

// parseReply splits "OK [payload]" from "ERR <detail>".
func parseReply(line string) (string, error) {
	switch {
	case line == "OK":
		return "", nil
	case strings.HasPrefix(line, "OK "):
		return line[3:], nil
	case strings.HasPrefix(line, "ERR "):
		detail := line[4:]
		code := errcode.Xfer
		if detail == "timeout" {
			code = errcode.Timeout
		}
		return "", &errcode.E{C: code, Op: "serialbridge.reply", Msg: detail}
	}
	return "", &errcode.E{C: errcode.Xfer, Op: "serialbridge.reply", Msg: "garbled reply: " + line}
}

func decode(dir smbus.Direction, kind smbus.Kind, payload string, data *smbus.Data) error {
	if dir == smbus.Write && kind != smbus.KindProcCall {
		return nil
	}

	switch kind {
	case smbus.KindQuick:
		return nil

	case smbus.KindByte, smbus.KindByteData:
		v, err := strconv.ParseUint(payload, 16, 8)
		if err != nil {
			return &errcode.E{C: errcode.Xfer, Op: "serialbridge.decode", Err: err}
		}
		data.PutByte(kind, byte(v))
		return nil

	case smbus.KindWordData, smbus.KindProcCall:
		v, err := strconv.ParseUint(payload, 16, 16)
		if err != nil {
			return &errcode.E{C: errcode.Xfer, Op: "serialbridge.decode", Err: err}
		}
		data.PutWord(kind, uint16(v))
		return nil

	case smbus.KindBlockData:
		blk, err := hex.DecodeString(payload)
		if err != nil {
			return &errcode.E{C: errcode.Xfer, Op: "serialbridge.decode", Err: err}
		}
		if len(blk) > smbus.BlockMax {
			return &errcode.E{C: errcode.Xfer, Op: "serialbridge.decode", Msg: "block reply longer than 32"}
		}
		data.PutBlock(blk)
		return nil
	}
	return &errcode.E{C: errcode.InvalidKind, Op: "serialbridge.decode"}
}
