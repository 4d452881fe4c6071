package probe

import (
	"fmt"
	"sync"
)

// RegisterOp captures one register transfer for inspection within tests.
type RegisterOp struct {
	Write bool
	Port  Port
	Addr  uint8
	Value uint32
}

// ReadHook lets tests intercept register reads. Returning handled=false falls
// through to the simulated target model.
type ReadHook func(port Port, addr uint8) (value uint32, handled bool, err error)

// WriteHook is the write-side counterpart of ReadHook.
type WriteHook func(port Port, addr uint8, value uint32) (handled bool, err error)

// simAP models one access port's register file.
type simAP struct {
	idr  uint32
	base uint32
	csw  uint32
	tar  uint32
}

// Sim is an in-memory probe that emulates a minimal ADIv5 target: a debug
// port with SELECT banking, a set of MEM-APs and a sparse word-addressed
// memory. It records every transfer and supports fault injection via hooks.
// Sim deliberately does not implement MemoryAccessor so that sessions built
// on it exercise the access-port path; wrap it in SimWithMemory for the
// dedicated-interface path.
type Sim struct {
	OnRead  ReadHook
	OnWrite WriteHook

	mu     sync.Mutex
	idcode uint32
	sel    uint32
	aps    map[uint8]*simAP
	mem    map[uint32]uint32
	swo    []byte
	ops    []RegisterOp
	closed bool
}

// DP register addresses within the simulated debug port.
const (
	simDPIDCODE = 0x00
	simDPSelect = 0x08
	simDPRdBuff = 0x0C
)

// NewSim creates an empty simulated target: one debug port, no access ports,
// no memory.
func NewSim() *Sim {
	return &Sim{
		idcode: 0x2BA01477, // Cortex-M4 SW-DP
		aps:    make(map[uint8]*simAP),
		mem:    make(map[uint32]uint32),
	}
}

// AddAccessPort registers a MEM-AP with the given selection index and debug
// base address.
func (s *Sim) AddAccessPort(id uint8, base uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aps[id] = &simAP{
		idr:  0x24770011, // AHB-AP
		base: base,
	}
}

// LoadWord places one word into the simulated memory.
func (s *Sim) LoadWord(address, value uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mem[address] = value
}

// LoadWords places consecutive words starting at address.
func (s *Sim) LoadWords(address uint32, words []uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, w := range words {
		s.mem[address+uint32(i)*4] = w
	}
}

// Word returns the current contents of one simulated memory word.
func (s *Sim) Word(address uint32) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mem[address]
}

// QueueSWO appends trace bytes for the next ReadSWO call to drain.
func (s *Sim) QueueSWO(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.swo = append(s.swo, data...)
}

// Ops returns a copy of all recorded register transfers.
func (s *Sim) Ops() []RegisterOp {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RegisterOp(nil), s.ops...)
}

// Name implements Probe.
func (s *Sim) Name() string { return "Simulator" }

// ReadRegister implements Probe.
func (s *Sim) ReadRegister(port Port, addr uint8) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	s.ops = append(s.ops, RegisterOp{Port: port, Addr: addr})

	if s.OnRead != nil {
		if v, handled, err := s.OnRead(port, addr); handled || err != nil {
			return v, err
		}
	}

	if port == PortDP {
		switch addr & 0x0C {
		case simDPIDCODE:
			return s.idcode, nil
		case simDPRdBuff:
			return 0, nil
		default:
			return 0, nil
		}
	}

	ap, ok := s.aps[uint8(s.sel>>24)]
	if !ok {
		// Reads from unimplemented access ports return zero, matching what
		// hardware reports for an absent AP's IDR.
		return 0, nil
	}
	switch s.apRegister(addr) {
	case 0x00:
		return ap.csw, nil
	case 0x04:
		return ap.tar, nil
	case 0x0C:
		value := s.mem[ap.tar]
		s.autoIncrement(ap)
		return value, nil
	case 0xF8:
		return ap.base, nil
	case 0xFC:
		return ap.idr, nil
	default:
		return 0, nil
	}
}

// WriteRegister implements Probe.
func (s *Sim) WriteRegister(port Port, addr uint8, value uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.ops = append(s.ops, RegisterOp{Write: true, Port: port, Addr: addr, Value: value})

	if s.OnWrite != nil {
		if handled, err := s.OnWrite(port, addr, value); handled || err != nil {
			return err
		}
	}

	if port == PortDP {
		if addr&0x0C == simDPSelect {
			s.sel = value
		}
		return nil
	}

	ap, ok := s.aps[uint8(s.sel>>24)]
	if !ok {
		return fmt.Errorf("probe: write to unimplemented access port %d", s.sel>>24)
	}
	switch s.apRegister(addr) {
	case 0x00:
		ap.csw = value
	case 0x04:
		ap.tar = value
	case 0x0C:
		s.mem[ap.tar] = value
		s.autoIncrement(ap)
	}
	return nil
}

// apRegister resolves the full AP register address from the current SELECT
// bank and the low transfer address bits.
func (s *Sim) apRegister(addr uint8) uint8 {
	bank := uint8(s.sel>>4) & 0xF
	return bank<<4 | (addr & 0x0C)
}

func (s *Sim) autoIncrement(ap *simAP) {
	if ap.csw&0x30 == 0x10 { // AddrInc: single
		ap.tar += 4
	}
}

// ReadSWO implements SWOReader by draining the queued trace bytes.
func (s *Sim) ReadSWO() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	out := s.swo
	s.swo = nil
	return out, nil
}

// Close implements Probe.
func (s *Sim) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (s *Sim) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// SimWithMemory extends Sim with a native memory view, making the probe
// advertise a dedicated memory interface.
type SimWithMemory struct {
	*Sim
}

// NewSimWithMemory wraps a Sim so it satisfies MemoryAccessor.
func NewSimWithMemory(sim *Sim) *SimWithMemory {
	return &SimWithMemory{Sim: sim}
}

// ReadMemory32 implements MemoryAccessor.
func (s *SimWithMemory) ReadMemory32(address uint32) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	return s.mem[address], nil
}

// WriteMemory32 implements MemoryAccessor.
func (s *SimWithMemory) WriteMemory32(address, value uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.mem[address] = value
	return nil
}

// ReadMemoryBlock32 implements MemoryAccessor.
func (s *SimWithMemory) ReadMemoryBlock32(address uint32, dst []uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	for i := range dst {
		dst[i] = s.mem[address+uint32(i)*4]
	}
	return nil
}
