package smbus

// Driver is the protocol logic shared by all Clients of one chip
// family. AttachAdapter is invoked by the Registry whenever a new bus
// appears, giving the driver a chance to probe it and attach Clients.
// DetachClient is asked before a Client is removed and may refuse; a
// refused detach leaves the Client fully attached.
type Driver interface {
	Name() string
	AttachAdapter(r *Registry, a *Adapter) error
	DetachClient(c *Client) error
}

// Commander is the optional pass-through capability for
// driver-specific controls addressed at one Client.
type Commander interface {
	Command(c *Client, cmd uint, arg any) error
}

// UsageHooks is the optional usage-count capability. IncUse runs after
// a successful attach, DecUse after a successful detach.
type UsageHooks interface {
	IncUse(c *Client)
	DecUse(c *Client)
}

// Client is one detected chip instance: a name/address tuple binding
// one Driver to one Adapter. Adapter and Driver are borrowed; the
// Registry's in-use checks keep a Client from outliving either.
type Client struct {
	name   string
	id     int
	addr   uint8
	flags  uint
	ad     *Adapter
	driver Driver

	// Data is driver-owned per-client state.
	Data any
}

// NewClient builds an unattached Client for addr on a. It takes effect
// only once passed to Registry.AttachClient.
func NewClient(name string, addr uint8, a *Adapter, d Driver) *Client {
	return &Client{name: name, addr: addr & 0x7f, ad: a, driver: d}
}

func (c *Client) Name() string     { return c.name }
func (c *Client) ID() int          { return c.id }
func (c *Client) Addr() uint8      { return c.addr }
func (c *Client) Adapter() *Adapter { return c.ad }
func (c *Client) Driver() Driver   { return c.driver }

// Command forwards a driver-specific control to the owning Driver,
// when it declares the capability.
func (c *Client) Command(cmd uint, arg any) error {
	if cm, ok := c.driver.(Commander); ok {
		return cm.Command(c, cmd, arg)
	}
	return errUnsupported("client.command")
}
