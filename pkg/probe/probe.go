// Package probe abstracts physical debug probes. A probe moves raw DAP
// register transfers between the host and the target; everything above the
// register level (access ports, memory views, component discovery) lives in
// the architecture packages.
package probe

import "errors"

// Port selects which DAP register file a transfer targets.
type Port uint8

const (
	PortDP Port = iota
	PortAP
)

func (p Port) String() string {
	if p == PortDP {
		return "DP"
	}
	return "AP"
}

// Probe is the transport-level contract consumed by an architecture session.
// Register addresses are the low byte of the architecture register address;
// bank selection is the architecture layer's responsibility.
type Probe interface {
	// Name identifies the probe for log and error messages.
	Name() string
	// ReadRegister performs a single DAP register read.
	ReadRegister(port Port, addr uint8) (uint32, error)
	// WriteRegister performs a single DAP register write.
	WriteRegister(port Port, addr uint8, value uint32) error
	// Close releases the underlying transport. Close is idempotent.
	Close() error
}

// MemoryAccessor is implemented by probes that expose a native memory view of
// the whole target address space, bypassing access-port negotiation. An
// architecture session prefers this view whenever present.
type MemoryAccessor interface {
	ReadMemory32(address uint32) (uint32, error)
	WriteMemory32(address uint32, value uint32) error
	ReadMemoryBlock32(address uint32, dst []uint32) error
}

// SWOReader is implemented by probes with an on-probe trace capture buffer.
type SWOReader interface {
	// ReadSWO drains the capture buffer. An empty slice means no trace data
	// has arrived since the previous call.
	ReadSWO() ([]byte, error)
}

// ErrClosed is returned for operations on a probe that has been closed.
var ErrClosed = errors.New("probe: probe is closed")

// ErrNotSupported signals that the probe lacks an optional capability.
var ErrNotSupported = errors.New("probe: operation not supported")
