// Package session manages the lifecycle of a connection to a target chip
// through a debug probe: target resolution, the per-architecture session,
// memory-interface resolution and core attachment, and trace configuration.
package session

import (
	"fmt"
	"sync"

	"github.com/golang/glog"

	"github.com/OpenTraceLab/OpenTraceDebug/pkg/arm"
	"github.com/OpenTraceLab/OpenTraceDebug/pkg/probe"
	"github.com/OpenTraceLab/OpenTraceDebug/pkg/target"
)

// MemoryInterface is a live memory view of the attached target. It is owned
// by the caller once returned but internally shares the session's hardware
// connection.
type MemoryInterface interface {
	Read32(address uint32) (uint32, error)
	Write32(address, value uint32) error
	ReadBlock32(address uint32, dst []uint32) error
}

// architectureKind tags the closed union of supported debug architectures.
// Adding an architecture means adding a tag and extending the switches below,
// never subclassing.
type architectureKind uint8

const (
	architectureARM architectureKind = iota
)

// architectureSession holds the live communication interface of exactly one
// architecture.
type architectureSession struct {
	kind architectureKind
	arm  *arm.Interface
}

// sessionInner is the single mutable aggregate shared by every clone of a
// Session handle. Target is read-only after construction; every operation
// touching the architecture session serializes through the exclusive window.
type sessionInner struct {
	// mu guards the hardware connection. Operations TryLock it: the window
	// is exclusive and non-reentrant, and a conflicting caller gets
	// ErrSessionBusy instead of blocking.
	mu sync.Mutex

	probe  probe.Probe
	target *target.Target
	arch   architectureSession

	traceConfigured bool
	closed          bool
}

// Session is the externally visible handle to one debug connection. Handles
// are cheap to copy; all copies share the same underlying aggregate.
type Session struct {
	inner *sessionInner
}

// New opens a session over the given probe, resolving the target selector
// against the default registry. Construction is all-or-nothing: on any
// failure the probe is closed and no partially initialized session is
// observable.
func New(p probe.Probe, selector target.Selector) (Session, error) {
	return NewWithRegistry(p, selector, target.DefaultRegistry)
}

// NewWithRegistry is New with an explicit target registry.
func NewWithRegistry(p probe.Probe, selector target.Selector, registry *target.Registry) (Session, error) {
	// Today every session speaks ARM; other architectures get their own
	// branch here when they arrive.
	iface := arm.New(p)

	resolved, err := resolveTarget(iface, selector, registry)
	if err != nil {
		p.Close()
		return Session{}, err
	}

	glog.Infof("opened session on %s for target %s (%s)", p.Name(), resolved.Name, resolved.Core)
	return Session{
		inner: &sessionInner{
			probe:  p,
			target: resolved,
			arch:   architectureSession{kind: architectureARM, arm: iface},
		},
	}, nil
}

func resolveTarget(iface *arm.Interface, selector target.Selector, registry *target.Registry) (*target.Target, error) {
	switch selector.Kind() {
	case target.SelectorUnspecified:
		return registry.LookupByName(selector.Name())
	case target.SelectorSpecified:
		if selector.Target() == nil {
			return nil, fmt.Errorf("session: specified selector carries no target")
		}
		return selector.Target(), nil
	case target.SelectorAuto:
		chip, err := iface.ReadChipInfo()
		if err != nil {
			// No identity at all is a distinct failure; never fall back
			// silently to a guessed target.
			return nil, fmt.Errorf("%w: %v", ErrChipAutodetectFailed, err)
		}
		return registry.LookupByChipInfo(chip)
	default:
		return nil, fmt.Errorf("session: invalid target selector")
	}
}

// Clone returns another handle to the same session aggregate.
func (s Session) Clone() Session { return Session{inner: s.inner} }

// exclusive acquires the exclusive access window or fails fast.
func (s Session) exclusive() (*sessionInner, func(), error) {
	in := s.inner
	if in == nil {
		return nil, nil, ErrSessionClosed
	}
	if !in.mu.TryLock() {
		return nil, nil, ErrSessionBusy
	}
	if in.closed {
		in.mu.Unlock()
		return nil, nil, ErrSessionClosed
	}
	return in, in.mu.Unlock, nil
}

// TargetName returns the resolved target's name.
func (s Session) TargetName() string { return s.inner.target.Name }

// ListCores returns the core types the target descriptor declares. Today
// this is always a single-element list; the shape anticipates multi-core
// targets.
func (s Session) ListCores() []target.CoreType {
	return []target.CoreType{s.inner.target.Core}
}

// ListMemories returns the memory interfaces the target descriptor declares.
// No descriptor carries any yet; the list exists for parity with ListCores.
func (s Session) ListMemories() []MemoryInterface {
	return nil
}

// MemoryMap returns a copy of the target's memory regions.
func (s Session) MemoryMap() []target.MemoryRegion {
	return append([]target.MemoryRegion(nil), s.inner.target.MemoryMap...)
}

// FlashAlgorithms returns a copy of the target's raw flash algorithms.
func (s Session) FlashAlgorithms() []target.RawFlashAlgorithm {
	return append([]target.RawFlashAlgorithm(nil), s.inner.target.FlashAlgorithms...)
}

// AttachToCore attaches to the core at index n, resolving its memory
// interface with n as the memory index. Coupling the two indices is
// deliberate for single-core targets; see AttachToCoreWithSpecificMemory for
// callers that already hold a memory view.
func (s Session) AttachToCore(n int) (*Core, error) {
	cores := s.ListCores()
	if n < 0 || n >= len(cores) {
		return nil, &CoreNotFoundError{Index: n}
	}
	memory, err := s.AttachToMemory(n)
	if err != nil {
		return nil, err
	}
	return newCore(s.Clone(), cores[n], memory, n), nil
}

// AttachToSpecificCore bypasses the declared core list and attaches with a
// caller-supplied core type at memory index 0. This is an escape hatch for
// targets whose core identity is not statically known to the registry.
func (s Session) AttachToSpecificCore(coreType target.CoreType) (*Core, error) {
	memory, err := s.AttachToMemory(0)
	if err != nil {
		return nil, err
	}
	return newCore(s.Clone(), coreType, memory, 0), nil
}

// AttachToCoreWithSpecificMemory attaches to core n reusing the supplied
// memory view instead of re-resolving one. A nil memory defaults to
// AttachToBestMemory.
func (s Session) AttachToCoreWithSpecificMemory(n int, memory MemoryInterface) (*Core, error) {
	cores := s.ListCores()
	if n < 0 || n >= len(cores) {
		return nil, &CoreNotFoundError{Index: n}
	}
	if memory == nil {
		var err error
		memory, err = s.AttachToBestMemory()
		if err != nil {
			return nil, err
		}
	}
	return newCore(s.Clone(), cores[n], memory, n), nil
}

// AttachToMemory resolves the memory interface for logical index id. A
// dedicated (architecture-native) interface always wins regardless of id;
// otherwise access ports are enumerated live and the interface is bound to
// the port at position id. Enumeration order is whatever the hardware
// returns, so the same id may name a different physical port across calls.
func (s Session) AttachToMemory(id int) (MemoryInterface, error) {
	in, release, err := s.exclusive()
	if err != nil {
		return nil, err
	}
	defer release()

	switch in.arch.kind {
	case architectureARM:
		iface := in.arch.arm
		if memory := iface.DedicatedMemoryInterface(); memory != nil {
			return memory, nil
		}
		ports, err := iface.EnumerateAccessPorts()
		if err != nil {
			return nil, err
		}
		if id < 0 || id >= len(ports) {
			return nil, fmt.Errorf("session: no access port at index %d (%d enumerated)", id, len(ports))
		}
		return arm.NewMemory(iface, ports[id].ID), nil
	default:
		return nil, fmt.Errorf("session: unsupported architecture")
	}
}

// AttachToBestMemory resolves a memory interface with no caller-supplied
// index: the dedicated interface when present, otherwise access port 0.
// Selecting the port that covers the requested address range would be more
// correct for multi-port targets; the fixed index-0 fallback is a documented
// limitation.
func (s Session) AttachToBestMemory() (MemoryInterface, error) {
	in, release, err := s.exclusive()
	if err != nil {
		return nil, err
	}
	defer release()

	switch in.arch.kind {
	case architectureARM:
		iface := in.arch.arm
		if memory := iface.DedicatedMemoryInterface(); memory != nil {
			return memory, nil
		}
		return arm.NewMemory(iface, 0), nil
	default:
		return nil, fmt.Errorf("session: unsupported architecture")
	}
}

// ReadSWV drains the hardware trace buffer and returns the raw captured
// bytes. No buffering or backpressure is applied; callers own the polling
// cadence.
func (s Session) ReadSWV() ([]byte, error) {
	in, release, err := s.exclusive()
	if err != nil {
		return nil, err
	}
	defer release()

	switch in.arch.kind {
	case architectureARM:
		return in.arch.arm.ReadSWV()
	default:
		return nil, fmt.Errorf("session: unsupported architecture")
	}
}

// SetupTracing walks the component directory reachable from the access port
// covering the given core and wires the trace pipeline. The session moves
// one-way from unconfigured to tracing-configured; calling again reprograms
// the same pipeline and re-attaching a core does not reset the state.
func (s Session) SetupTracing(core *Core) error {
	if core == nil || core.session.inner != s.inner {
		return fmt.Errorf("session: core is not attached to this session")
	}
	in, release, err := s.exclusive()
	if err != nil {
		return err
	}
	defer release()

	switch in.arch.kind {
	case architectureARM:
		iface := in.arch.arm
		ports, err := iface.EnumerateAccessPorts()
		if err != nil {
			return err
		}
		if core.index >= len(ports) {
			return fmt.Errorf("session: no access port for core %d", core.index)
		}
		base := ports[core.index].BaseAddress &^ 0xFFF
		table, err := arm.ParseROMTable(core.memory, base)
		if err != nil {
			return err
		}
		if err := arm.SetupTracing(core.memory, table); err != nil {
			return err
		}
		in.traceConfigured = true
		return nil
	default:
		return fmt.Errorf("session: unsupported architecture")
	}
}

// TracingConfigured reports whether SetupTracing has completed on this
// session.
func (s Session) TracingConfigured() bool {
	if !s.inner.mu.TryLock() {
		// An operation is in flight; report the last settled state.
		return s.inner.traceConfigured
	}
	defer s.inner.mu.Unlock()
	return s.inner.traceConfigured
}

// Close releases the hardware connection. Operations on this session and on
// cores attached to it fail with ErrSessionClosed afterwards. Close is
// idempotent but fails fast if an operation is in flight.
func (s Session) Close() error {
	in := s.inner
	if in == nil {
		return nil
	}
	if !in.mu.TryLock() {
		return ErrSessionBusy
	}
	defer in.mu.Unlock()
	if in.closed {
		return nil
	}
	in.closed = true
	glog.Infof("closing session for target %s", in.target.Name)
	return in.probe.Close()
}

// closedNow reports the closed flag without taking the window; used by core
// handles to fail cleanly after teardown.
func (s Session) closedNow() bool {
	return s.inner == nil || s.inner.closed
}
