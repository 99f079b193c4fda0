package smbus

import (
	"sync"

	"go.uber.org/zap"

	"smbus-go/errcode"
	"smbus-go/notify"
)

// Registry holds the process-wide tables of Algorithms, Adapters and
// Drivers and mediates every lifecycle transition between them. It
// replaces the original's global tables; callers create one explicitly
// and tear it down by dropping it.
//
// Registration order is protected by invariants rather than caller
// discipline: an Adapter only registers against an already-registered
// Algorithm, and nothing is deleted while something still references
// it.
type Registry struct {
	mu         sync.Mutex
	algorithms []*algoEntry
	adapters   []*Adapter
	drivers    []*driverEntry
	nextAlgoID int
	nextAdapID int
	nextDrvID  int

	hub *notify.Hub
	log *zap.Logger
}

type algoEntry struct {
	algo Algorithm
	id   int
}

type driverEntry struct {
	drv Driver
	id  int
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger attaches a logger for lifecycle events.
func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) { r.log = l }
}

// WithHub attaches a notification hub. Adapter presence is published
// retained on {"adapter", <name>}; add/remove/attach/detach feeds are
// published on {"adapter"|"client", <verb>}.
func WithHub(h *notify.Hub) Option {
	return func(r *Registry) { r.hub = h }
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{log: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AddAlgorithm registers a wire-level strategy. The Algorithm must
// declare at least one bus capability (Accessor or MasterXferer).
func (r *Registry) AddAlgorithm(algo Algorithm) error {
	if algo == nil || algo.Name() == "" {
		return &errcode.E{C: errcode.InvalidParams, Op: "add_algorithm"}
	}
	if !hasBusCapability(algo) {
		return &errcode.E{C: errcode.InvalidParams, Op: "add_algorithm",
			Msg: algo.Name() + " declares no bus capability"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.algorithms {
		if e.algo == algo || e.algo.Name() == algo.Name() {
			return &errcode.E{C: errcode.Duplicate, Op: "add_algorithm", Msg: algo.Name()}
		}
	}
	e := &algoEntry{algo: algo, id: r.nextAlgoID}
	r.nextAlgoID++
	r.algorithms = append(r.algorithms, e)
	r.log.Debug("algorithm registered", zap.String("algo", algo.Name()), zap.Int("id", e.id))
	return nil
}

// DelAlgorithm removes a registered Algorithm. It fails while any
// registered Adapter is still bound to it.
func (r *Registry) DelAlgorithm(algo Algorithm) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.adapters {
		if a.algo == algo {
			return &errcode.E{C: errcode.InUse, Op: "del_algorithm",
				Msg: "bound to adapter " + a.name}
		}
	}
	for i, e := range r.algorithms {
		if e.algo == algo {
			r.algorithms = append(r.algorithms[:i], r.algorithms[i+1:]...)
			r.log.Debug("algorithm removed", zap.String("algo", algo.Name()))
			return nil
		}
	}
	return &errcode.E{C: errcode.UnknownID, Op: "del_algorithm"}
}

// AddAdapter registers a bus instance. Its bound Algorithm must
// already be registered; an unknown Algorithm is a hard failure here,
// never deferred to first use. Every registered Driver is then given a
// chance to probe the new bus; a probe failure is logged and does not
// undo the registration.
func (r *Registry) AddAdapter(a *Adapter) error {
	if a == nil || a.name == "" {
		return &errcode.E{C: errcode.InvalidParams, Op: "add_adapter"}
	}

	r.mu.Lock()
	if !r.algoRegistered(a.algo) {
		r.mu.Unlock()
		return &errcode.E{C: errcode.UnknownID, Op: "add_adapter",
			Msg: "algorithm not registered"}
	}
	for _, have := range r.adapters {
		if have == a || have.name == a.name {
			r.mu.Unlock()
			return &errcode.E{C: errcode.Duplicate, Op: "add_adapter", Msg: a.name}
		}
	}
	a.id = r.nextAdapID
	r.nextAdapID++
	r.adapters = append(r.adapters, a)
	drivers := r.driverSnapshot()
	r.mu.Unlock()

	r.log.Info("adapter registered",
		zap.String("adapter", a.name), zap.Int("id", a.id),
		zap.String("algo", a.algo.Name()))
	r.publish(&notify.Event{Topic: notify.T("adapter", a.name), Payload: a, Retained: true})
	r.publish(&notify.Event{Topic: notify.T("adapter", "added"), Payload: a})

	// Probe hooks run outside the table lock so drivers can attach
	// clients from within them.
	for _, d := range drivers {
		if err := d.AttachAdapter(r, a); err != nil {
			r.log.Warn("driver probe failed",
				zap.String("driver", d.Name()), zap.String("adapter", a.name), zap.Error(err))
		}
	}
	return nil
}

// DelAdapter removes a bus instance. It fails while Clients are still
// attached; the no-dangling-client invariant is the point of this
// check.
func (r *Registry) DelAdapter(a *Adapter) error {
	r.mu.Lock()
	idx := -1
	for i, have := range r.adapters {
		if have == a {
			idx = i
			break
		}
	}
	if idx < 0 {
		r.mu.Unlock()
		return &errcode.E{C: errcode.UnknownID, Op: "del_adapter"}
	}
	if n := a.ClientCount(); n > 0 {
		r.mu.Unlock()
		return &errcode.E{C: errcode.InUse, Op: "del_adapter", Msg: a.name}
	}
	r.adapters = append(r.adapters[:idx], r.adapters[idx+1:]...)
	r.mu.Unlock()

	r.log.Info("adapter removed", zap.String("adapter", a.name))
	r.publish(&notify.Event{Topic: notify.T("adapter", a.name), Retained: true})
	r.publish(&notify.Event{Topic: notify.T("adapter", "removed"), Payload: a})
	return nil
}

// AddDriver registers chip-family protocol logic and lets it probe
// every already-registered bus.
func (r *Registry) AddDriver(d Driver) error {
	if d == nil || d.Name() == "" {
		return &errcode.E{C: errcode.InvalidParams, Op: "add_driver"}
	}

	r.mu.Lock()
	for _, e := range r.drivers {
		if e.drv == d || e.drv.Name() == d.Name() {
			r.mu.Unlock()
			return &errcode.E{C: errcode.Duplicate, Op: "add_driver", Msg: d.Name()}
		}
	}
	e := &driverEntry{drv: d, id: r.nextDrvID}
	r.nextDrvID++
	r.drivers = append(r.drivers, e)
	adapters := make([]*Adapter, len(r.adapters))
	copy(adapters, r.adapters)
	r.mu.Unlock()

	r.log.Debug("driver registered", zap.String("driver", d.Name()), zap.Int("id", e.id))
	for _, a := range adapters {
		if err := d.AttachAdapter(r, a); err != nil {
			r.log.Warn("driver probe failed",
				zap.String("driver", d.Name()), zap.String("adapter", a.name), zap.Error(err))
		}
	}
	return nil
}

// DelDriver removes a registered Driver. It fails while any attached
// Client still references it.
func (r *Registry) DelDriver(d Driver) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.adapters {
		for _, c := range a.Clients() {
			if c.driver == d {
				return &errcode.E{C: errcode.InUse, Op: "del_driver",
					Msg: "client " + c.name + " on " + a.name}
			}
		}
	}
	for i, e := range r.drivers {
		if e.drv == d {
			r.drivers = append(r.drivers[:i], r.drivers[i+1:]...)
			r.log.Debug("driver removed", zap.String("driver", d.Name()))
			return nil
		}
	}
	return &errcode.E{C: errcode.UnknownID, Op: "del_driver"}
}

// AttachClient inserts a detected chip into its Adapter's client list.
// The Adapter and the owning Driver must both be registered; the
// address must be free and the Adapter below capacity.
func (r *Registry) AttachClient(c *Client) error {
	if c == nil || c.ad == nil || c.driver == nil {
		return &errcode.E{C: errcode.InvalidParams, Op: "attach_client"}
	}

	r.mu.Lock()
	if !r.adapterRegistered(c.ad) {
		r.mu.Unlock()
		return &errcode.E{C: errcode.UnknownID, Op: "attach_client",
			Msg: "adapter not registered"}
	}
	if !r.driverRegistered(c.driver) {
		r.mu.Unlock()
		return &errcode.E{C: errcode.UnknownID, Op: "attach_client",
			Msg: "driver not registered"}
	}
	r.mu.Unlock()

	if err := c.ad.attach(c); err != nil {
		return err
	}
	if uh, ok := c.driver.(UsageHooks); ok {
		uh.IncUse(c)
	}
	r.log.Info("client attached",
		zap.String("client", c.name), zap.Uint8("addr", c.addr),
		zap.String("adapter", c.ad.name), zap.String("driver", c.driver.Name()))
	r.publish(&notify.Event{Topic: notify.T("client", "attached"), Payload: c})
	return nil
}

// DetachClient removes a chip instance. The owning Driver is asked
// first and may refuse, in which case nothing changes; only after it
// agrees is the Adapter's list mutated. The two-phase order keeps the
// list free of Clients the Driver has already released.
func (r *Registry) DetachClient(c *Client) error {
	if c == nil || c.ad == nil || c.driver == nil {
		return &errcode.E{C: errcode.InvalidParams, Op: "detach_client"}
	}
	if err := c.driver.DetachClient(c); err != nil {
		return err
	}
	if err := c.ad.detach(c); err != nil {
		return err
	}
	if uh, ok := c.driver.(UsageHooks); ok {
		uh.DecUse(c)
	}
	r.log.Info("client detached",
		zap.String("client", c.name), zap.String("adapter", c.ad.name))
	r.publish(&notify.Event{Topic: notify.T("client", "detached"), Payload: c})
	return nil
}

// Adapters returns a snapshot of the registered Adapters.
func (r *Registry) Adapters() []*Adapter {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Adapter, len(r.adapters))
	copy(out, r.adapters)
	return out
}

// AdapterByName looks up a registered Adapter.
func (r *Registry) AdapterByName(name string) (*Adapter, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.adapters {
		if a.name == name {
			return a, true
		}
	}
	return nil, false
}

// AlgorithmByName looks up a registered Algorithm.
func (r *Registry) AlgorithmByName(name string) (Algorithm, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.algorithms {
		if e.algo.Name() == name {
			return e.algo, true
		}
	}
	return nil, false
}

func (r *Registry) algoRegistered(algo Algorithm) bool {
	for _, e := range r.algorithms {
		if e.algo == algo {
			return true
		}
	}
	return false
}

func (r *Registry) adapterRegistered(a *Adapter) bool {
	for _, have := range r.adapters {
		if have == a {
			return true
		}
	}
	return false
}

func (r *Registry) driverRegistered(d Driver) bool {
	for _, e := range r.drivers {
		if e.drv == d {
			return true
		}
	}
	return false
}

func (r *Registry) driverSnapshot() []Driver {
	out := make([]Driver, len(r.drivers))
	for i, e := range r.drivers {
		out[i] = e.drv
	}
	return out
}

func (r *Registry) publish(ev *notify.Event) {
	if r.hub != nil {
		r.hub.Publish(ev)
	}
}
