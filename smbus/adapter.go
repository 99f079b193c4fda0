package smbus

import (
	"sync"
	"time"

	"smbus-go/errcode"
)

// AdapterConfig centralises per-bus tunables. Zero values pick the
// defaults below.
type AdapterConfig struct {
	// Timeout bounds a single wire-level attempt.
	Timeout time.Duration
	// Retries is how many times a timed-out or faulted attempt is
	// re-run before the failure surfaces. Applies to the emulation
	// path only; a native Accessor owns its own policy.
	Retries int
	// MaxClients caps the number of attached Clients.
	MaxClients int
}

const (
	defaultTimeout    = 100 * time.Millisecond
	defaultRetries    = 1
	defaultMaxClients = 32
)

// Adapter is one physical bus instance. It owns a bound Algorithm
// (borrowed; the Registry refuses to drop an Algorithm while an
// Adapter still references it), a bounded list of attached Clients,
// and the mutex that serializes all transactions on the bus.
type Adapter struct {
	name  string
	id    int
	algo  Algorithm
	flags uint

	// xfer serializes wire-level activity: at most one in-flight
	// transaction per Adapter, held across the whole retry sequence.
	xfer sync.Mutex

	// mu guards the client list and counters.
	mu      sync.Mutex
	clients []*Client
	nextCID int

	timeout    time.Duration
	retries    int
	maxClients int

	// Data is adapter-private opaque state for the Algorithm.
	Data any
}

// NewAdapter builds an Adapter bound to algo. The binding is fixed for
// the Adapter's lifetime. It takes effect only once passed to
// Registry.AddAdapter.
func NewAdapter(name string, algo Algorithm, cfg AdapterConfig) *Adapter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Retries < 0 {
		cfg.Retries = defaultRetries
	}
	if cfg.MaxClients <= 0 {
		cfg.MaxClients = defaultMaxClients
	}
	return &Adapter{
		name:       name,
		algo:       algo,
		timeout:    cfg.Timeout,
		retries:    cfg.Retries,
		maxClients: cfg.MaxClients,
	}
}

func (a *Adapter) Name() string           { return a.name }
func (a *Adapter) ID() int                { return a.id }
func (a *Adapter) Algorithm() Algorithm   { return a.algo }
func (a *Adapter) Timeout() time.Duration { return a.timeout }
func (a *Adapter) Retries() int           { return a.retries }
func (a *Adapter) MaxClients() int        { return a.maxClients }

// ClientCount returns the number of attached Clients.
func (a *Adapter) ClientCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.clients)
}

// Clients returns a snapshot of the attached Clients.
func (a *Adapter) Clients() []*Client {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*Client, len(a.clients))
	copy(out, a.clients)
	return out
}

// ClientAt returns the attached Client claiming addr, if any.
func (a *Adapter) ClientAt(addr uint8) (*Client, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, c := range a.clients {
		if c.addr == addr {
			return c, true
		}
	}
	return nil, false
}

// attach inserts c, enforcing capacity and address uniqueness.
func (a *Adapter) attach(c *Client) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.clients) >= a.maxClients {
		return &errcode.E{C: errcode.AdapterFull, Op: "attach", Msg: a.name}
	}
	for _, have := range a.clients {
		if have.addr == c.addr {
			return &errcode.E{C: errcode.AddrConflict, Op: "attach", Msg: a.name}
		}
	}
	c.id = a.nextCID
	a.nextCID++
	a.clients = append(a.clients, c)
	return nil
}

// detach removes c. The caller has already cleared the removal with
// the owning Driver.
func (a *Adapter) detach(c *Client) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, have := range a.clients {
		if have == c {
			a.clients = append(a.clients[:i], a.clients[i+1:]...)
			return nil
		}
	}
	return &errcode.E{C: errcode.UnknownID, Op: "detach", Msg: a.name}
}

// SlaveSend forwards to the Algorithm's slave capability.
func (a *Adapter) SlaveSend(p []byte) (int, error) {
	if st, ok := a.algo.(SlaveTransceiver); ok {
		return st.SlaveSend(a, p)
	}
	return 0, errUnsupported("slave_send")
}

// SlaveRecv forwards to the Algorithm's slave capability.
func (a *Adapter) SlaveRecv(p []byte) (int, error) {
	if st, ok := a.algo.(SlaveTransceiver); ok {
		return st.SlaveRecv(a, p)
	}
	return 0, errUnsupported("slave_recv")
}

// Control forwards an out-of-band control to the Algorithm.
func (a *Adapter) Control(op uint, arg any) error {
	if ctl, ok := a.algo.(Controller); ok {
		return ctl.Control(a, op, arg)
	}
	return errUnsupported("control")
}

func errUnsupported(op string) error {
	return &errcode.E{C: errcode.Unsupported, Op: op}
}
