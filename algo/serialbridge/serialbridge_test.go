package serialbridge

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smbus-go/errcode"
	"smbus-go/smbus"
)

// Compile-time check.
var _ Port = (*fakePort)(nil)

// fakePort scripts a bridge device: every request line written to the
// port produces a reply line to read back.
type fakePort struct {
	mu       sync.Mutex
	requests []string
	pending  bytes.Buffer

	regs     map[string]string
	last     byte
	failNext string // "", "nack" or "timeout"
	closed   bool
}

func newFakePort() *fakePort {
	return &fakePort{regs: make(map[string]string)}
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	line := strings.TrimSpace(string(b))
	p.requests = append(p.requests, line)
	p.pending.WriteString(p.reply(line) + "\n")
	return len(b), nil
}

func (p *fakePort) reply(line string) string {
	if p.failNext != "" {
		err := p.failNext
		p.failNext = ""
		return "ERR " + err
	}
	f := strings.Fields(line)
	key := ""
	if len(f) >= 3 {
		key = f[1] + "/" + f[2] // addr/cmd where present
	}
	switch f[0] {
	case "Q":
		return "OK"
	case "WB":
		v, _ := strconv.ParseUint(f[2], 16, 8)
		p.last = byte(v)
		return "OK"
	case "RB":
		return fmt.Sprintf("OK %02x", p.last)
	case "WD", "WW", "WK":
		p.regs[key] = f[3]
		return "OK"
	case "RD", "RW", "RK":
		if v, ok := p.regs[key]; ok {
			return "OK " + v
		}
		return "ERR nack"
	case "PC":
		prev, ok := p.regs[key]
		p.regs[key] = f[3]
		if !ok {
			prev = f[3]
		}
		return "OK " + prev
	}
	return "ERR garbled"
}

func (p *fakePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending.Read(b)
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

const addr uint8 = 0x48

func newBridgeAdapter(t *testing.T) (*smbus.Adapter, *fakePort) {
	t.Helper()
	port := newFakePort()
	return smbus.NewAdapter("bus-sb", New("serialbridge", port), smbus.AdapterConfig{Retries: 3}), port
}

func TestRoundTrip(t *testing.T) {
	a, _ := newBridgeAdapter(t)

	require.NoError(t, a.WriteByte(addr, 0x42))
	b, err := a.ReadByte(addr)
	require.NoError(t, err)
	assert.Equal(t, byte(0x42), b)

	require.NoError(t, a.WriteByteData(addr, 0x10, 0x99))
	b, err = a.ReadByteData(addr, 0x10)
	require.NoError(t, err)
	assert.Equal(t, byte(0x99), b)

	require.NoError(t, a.WriteWordData(addr, 0x11, 0xcafe))
	w, err := a.ReadWordData(addr, 0x11)
	require.NoError(t, err)
	assert.Equal(t, uint16(0xcafe), w)

	blk := []byte{0xde, 0xad, 0xbe, 0xef}
	require.NoError(t, a.WriteBlockData(addr, 0x20, blk))
	buf := make([]byte, smbus.BlockMax)
	n, err := a.ReadBlockData(addr, 0x20, buf)
	require.NoError(t, err)
	assert.Equal(t, blk, buf[:n])
}

func TestRequestLines(t *testing.T) {
	a, port := newBridgeAdapter(t)

	require.NoError(t, a.WriteQuick(addr, smbus.Write))
	require.NoError(t, a.WriteWordData(addr, 0x11, 0xcafe))
	_, err := a.ProcessCall(addr, 0x30, 0x1234)
	require.NoError(t, err)
	require.NoError(t, a.WriteBlockData(addr, 0x20, []byte{1, 2, 3}))

	assert.Equal(t, []string{
		"Q 48 W",
		"WW 48 11 cafe",
		"PC 48 30 1234",
		"WK 48 20 " + hex.EncodeToString([]byte{1, 2, 3}),
	}, port.requests)
}

func TestErrorMapping(t *testing.T) {
	a, port := newBridgeAdapter(t)

	port.failNext = "nack"
	_, err := a.ReadByte(addr)
	assert.Equal(t, errcode.Xfer, errcode.Of(err))

	port.failNext = "timeout"
	_, err = a.ReadByte(addr)
	assert.Equal(t, errcode.Timeout, errcode.Of(err))
}

// Retry policy on the native path belongs to the bridge; the adapter's
// retry count must not multiply requests.
func TestNoDispatcherRetry(t *testing.T) {
	a, port := newBridgeAdapter(t)

	port.failNext = "timeout"
	_, err := a.ReadByteData(addr, 0x00)
	require.Error(t, err)
	assert.Len(t, port.requests, 1)
}

func TestOversizedBlockReply(t *testing.T) {
	a, port := newBridgeAdapter(t)
	port.regs["48/20"] = strings.Repeat("ab", 33)

	buf := make([]byte, 64)
	_, err := a.ReadBlockData(addr, 0x20, buf)
	assert.Equal(t, errcode.Xfer, errcode.Of(err))
}

func TestClose(t *testing.T) {
	port := newFakePort()
	b := New("serialbridge", port)
	require.NoError(t, b.Close())
	assert.True(t, port.closed)
}
