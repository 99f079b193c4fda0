package smbus

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smbus-go/errcode"
	"smbus-go/notify"
)

// testDriver probes a single fixed address and counts usage hooks.
type testDriver struct {
	name      string
	probeAddr uint8
	probe     bool
	refuse    bool

	uses     int
	attaches int
}

var (
	_ Driver     = (*testDriver)(nil)
	_ UsageHooks = (*testDriver)(nil)
	_ Commander  = (*testDriver)(nil)
)

func (d *testDriver) Name() string { return d.name }

func (d *testDriver) AttachAdapter(r *Registry, a *Adapter) error {
	d.attaches++
	if !d.probe {
		return nil
	}
	return r.AttachClient(NewClient(d.name+"-dev", d.probeAddr, a, d))
}

func (d *testDriver) DetachClient(c *Client) error {
	if d.refuse {
		return errors.New("still busy")
	}
	return nil
}

func (d *testDriver) IncUse(c *Client) { d.uses++ }
func (d *testDriver) DecUse(c *Client) { d.uses-- }

func (d *testDriver) Command(c *Client, cmd uint, arg any) error {
	if cmd != 7 {
		return errUnsupported("test.command")
	}
	return nil
}

func newTestRegistry(t *testing.T) (*Registry, *Mock, *Adapter) {
	t.Helper()
	r := NewRegistry()
	mock := NewMock("mock-0")
	mock.AddDevice(testAddr)
	require.NoError(t, r.AddAlgorithm(mock))
	a := NewAdapter("i2c-0", mock, AdapterConfig{})
	require.NoError(t, r.AddAdapter(a))
	return r, mock, a
}

func TestAddAlgorithm(t *testing.T) {
	r := NewRegistry()
	mock := NewMock("mock-a")
	require.NoError(t, r.AddAlgorithm(mock))

	err := r.AddAlgorithm(mock)
	assert.Equal(t, errcode.Duplicate, errcode.Of(err))

	err = r.AddAlgorithm(NewMock("mock-a"))
	assert.Equal(t, errcode.Duplicate, errcode.Of(err))

	err = r.AddAlgorithm(inertAlgo{})
	assert.Equal(t, errcode.InvalidParams, errcode.Of(err))

	got, ok := r.AlgorithmByName("mock-a")
	require.True(t, ok)
	assert.Same(t, mock, got)
}

func TestAddAdapterRequiresRegisteredAlgorithm(t *testing.T) {
	r := NewRegistry()
	a := NewAdapter("i2c-9", NewMock("unregistered"), AdapterConfig{})
	err := r.AddAdapter(a)
	assert.Equal(t, errcode.UnknownID, errcode.Of(err))
}

func TestDelAlgorithmInUse(t *testing.T) {
	r, mock, a := newTestRegistry(t)

	err := r.DelAlgorithm(mock)
	assert.Equal(t, errcode.InUse, errcode.Of(err))

	require.NoError(t, r.DelAdapter(a))
	require.NoError(t, r.DelAlgorithm(mock))

	err = r.DelAlgorithm(mock)
	assert.Equal(t, errcode.UnknownID, errcode.Of(err))
}

// Registering an adapter probes every driver; registering a driver
// probes every adapter.
func TestProbeHooks(t *testing.T) {
	r, mock, _ := newTestRegistry(t)

	drv := &testDriver{name: "drv", probe: true, probeAddr: testAddr}
	require.NoError(t, r.AddDriver(drv))
	assert.Equal(t, 1, drv.attaches)
	assert.Equal(t, 1, drv.uses)

	a2 := NewAdapter("i2c-1", mock, AdapterConfig{})
	require.NoError(t, r.AddAdapter(a2))
	assert.Equal(t, 2, drv.attaches)
	assert.Equal(t, 2, drv.uses)

	c, ok := a2.ClientAt(testAddr)
	require.True(t, ok)
	assert.Equal(t, drv.Name()+"-dev", c.Name())
	assert.Same(t, a2, c.Adapter())
}

func TestAttachClientValidation(t *testing.T) {
	r, mock, a := newTestRegistry(t)
	drv := &testDriver{name: "drv"}
	require.NoError(t, r.AddDriver(drv))

	// Unregistered adapter.
	loose := NewAdapter("loose", mock, AdapterConfig{})
	err := r.AttachClient(NewClient("c", testAddr, loose, drv))
	assert.Equal(t, errcode.UnknownID, errcode.Of(err))

	// Unregistered driver.
	err = r.AttachClient(NewClient("c", testAddr, a, &testDriver{name: "ghost"}))
	assert.Equal(t, errcode.UnknownID, errcode.Of(err))

	require.NoError(t, r.AttachClient(NewClient("c0", testAddr, a, drv)))

	err = r.AttachClient(NewClient("c1", testAddr, a, drv))
	assert.Equal(t, errcode.AddrConflict, errcode.Of(err))
	assert.Equal(t, 1, a.ClientCount())
}

func TestAdapterFull(t *testing.T) {
	r := NewRegistry()
	mock := NewMock("mock-small")
	require.NoError(t, r.AddAlgorithm(mock))
	a := NewAdapter("i2c-small", mock, AdapterConfig{MaxClients: 2})
	require.NoError(t, r.AddAdapter(a))
	drv := &testDriver{name: "drv"}
	require.NoError(t, r.AddDriver(drv))

	require.NoError(t, r.AttachClient(NewClient("c0", 0x10, a, drv)))
	require.NoError(t, r.AttachClient(NewClient("c1", 0x11, a, drv)))

	err := r.AttachClient(NewClient("c2", 0x12, a, drv))
	assert.Equal(t, errcode.AdapterFull, errcode.Of(err))
	assert.Equal(t, 2, a.ClientCount())
	assert.Equal(t, 2, drv.uses)
}

func TestDelAdapterWithClients(t *testing.T) {
	r, _, a := newTestRegistry(t)
	drv := &testDriver{name: "drv"}
	require.NoError(t, r.AddDriver(drv))
	c := NewClient("c0", testAddr, a, drv)
	require.NoError(t, r.AttachClient(c))

	err := r.DelAdapter(a)
	assert.Equal(t, errcode.InUse, errcode.Of(err))

	// Adapter and client both still registered.
	_, ok := r.AdapterByName("i2c-0")
	assert.True(t, ok)
	assert.Equal(t, 1, a.ClientCount())

	require.NoError(t, r.DetachClient(c))
	require.NoError(t, r.DelAdapter(a))
	assert.Equal(t, 0, drv.uses)
}

// A detach refused by the driver leaves the client fully attached.
func TestDetachClientTwoPhase(t *testing.T) {
	r, _, a := newTestRegistry(t)
	drv := &testDriver{name: "drv", refuse: true}
	require.NoError(t, r.AddDriver(drv))
	c := NewClient("c0", testAddr, a, drv)
	require.NoError(t, r.AttachClient(c))

	err := r.DetachClient(c)
	require.Error(t, err)
	assert.Equal(t, 1, a.ClientCount())
	assert.Equal(t, 1, drv.uses)
	_, ok := a.ClientAt(testAddr)
	assert.True(t, ok)

	drv.refuse = false
	require.NoError(t, r.DetachClient(c))
	assert.Equal(t, 0, a.ClientCount())
	assert.Equal(t, 0, drv.uses)
}

func TestDelDriverInUse(t *testing.T) {
	r, _, a := newTestRegistry(t)
	drv := &testDriver{name: "drv"}
	require.NoError(t, r.AddDriver(drv))
	c := NewClient("c0", testAddr, a, drv)
	require.NoError(t, r.AttachClient(c))

	err := r.DelDriver(drv)
	assert.Equal(t, errcode.InUse, errcode.Of(err))

	require.NoError(t, r.DetachClient(c))
	require.NoError(t, r.DelDriver(drv))

	err = r.DelDriver(drv)
	assert.Equal(t, errcode.UnknownID, errcode.Of(err))
}

func TestClientCommand(t *testing.T) {
	r, _, a := newTestRegistry(t)
	drv := &testDriver{name: "drv"}
	require.NoError(t, r.AddDriver(drv))
	c := NewClient("c0", testAddr, a, drv)
	require.NoError(t, r.AttachClient(c))

	require.NoError(t, c.Command(7, nil))
	err := c.Command(8, nil)
	assert.Equal(t, errcode.Unsupported, errcode.Of(err))
}

func TestLifecycleEvents(t *testing.T) {
	hub := notify.NewHub(4)
	r := NewRegistry(WithHub(hub))
	mock := NewMock("mock-ev")
	require.NoError(t, r.AddAlgorithm(mock))

	a := NewAdapter("i2c-ev", mock, AdapterConfig{})
	require.NoError(t, r.AddAdapter(a))

	// Late subscriber still sees the retained presence event.
	sub := hub.Subscribe(notify.T("adapter", "i2c-ev"))
	select {
	case ev := <-sub.Channel():
		assert.Same(t, a, ev.Payload)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for retained adapter presence")
	}
	sub.Cancel()

	require.NoError(t, r.DelAdapter(a))

	// Presence is cleared after removal.
	sub = hub.Subscribe(notify.T("adapter", "i2c-ev"))
	select {
	case ev := <-sub.Channel():
		t.Fatalf("unexpected event after removal: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
	sub.Cancel()
}
