package session

import "github.com/OpenTraceLab/OpenTraceDebug/pkg/target"

// Core is an attachable handle to one core of the target: a (session,
// memory, index) triple valid at the moment of attachment. The handle keeps
// a clone of its session and fails cleanly with ErrSessionClosed once the
// session has been torn down, so a stale core can never reach the hardware.
type Core struct {
	session  Session
	coreType target.CoreType
	memory   MemoryInterface
	index    int
}

func newCore(s Session, coreType target.CoreType, memory MemoryInterface, index int) *Core {
	return &Core{
		session:  s,
		coreType: coreType,
		memory:   memory,
		index:    index,
	}
}

// Index returns the zero-based core index used at attachment.
func (c *Core) Index() int { return c.index }

// CoreType returns the architecture variant this core was attached as.
func (c *Core) CoreType() target.CoreType { return c.coreType }

// Session returns the session this core belongs to.
func (c *Core) Session() Session { return c.session }

// Memory returns the memory view bound at attachment, or ErrSessionClosed if
// the session has been released since.
func (c *Core) Memory() (MemoryInterface, error) {
	if c.session.closedNow() {
		return nil, ErrSessionClosed
	}
	return c.memory, nil
}

// ReadWord32 is a convenience wrapper over the core's memory view with the
// session-liveness check applied.
func (c *Core) ReadWord32(address uint32) (uint32, error) {
	memory, err := c.Memory()
	if err != nil {
		return 0, err
	}
	return memory.Read32(address)
}

// WriteWord32 is the write-side counterpart of ReadWord32.
func (c *Core) WriteWord32(address, value uint32) error {
	memory, err := c.Memory()
	if err != nil {
		return err
	}
	return memory.Write32(address, value)
}
