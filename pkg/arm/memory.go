package arm

import (
	"fmt"

	"github.com/OpenTraceLab/OpenTraceDebug/pkg/probe"
)

// Memory is a live memory view of the target: either a probe's dedicated
// memory interface or a MEM-AP bound view constructed against one enumerated
// access port. A Memory holds a shared reference back to the communication
// interface, never ownership of it.
type Memory struct {
	iface  *Interface
	ap     uint8
	native probe.MemoryAccessor
}

// NewMemory builds a memory view going through the given access port.
func NewMemory(iface *Interface, ap uint8) *Memory {
	return &Memory{iface: iface, ap: ap}
}

func newDedicatedMemory(native probe.MemoryAccessor) *Memory {
	return &Memory{native: native}
}

// AccessPortID returns the bound access port index. The second return value
// is false for a dedicated memory interface, which is not bound to any port.
func (m *Memory) AccessPortID() (uint8, bool) {
	if m.native != nil {
		return 0, false
	}
	return m.ap, true
}

// Read32 reads one aligned word from the target.
func (m *Memory) Read32(address uint32) (uint32, error) {
	if address%4 != 0 {
		return 0, fmt.Errorf("arm: unaligned read at 0x%08X", address)
	}
	if m.native != nil {
		v, err := m.native.ReadMemory32(address)
		if err != nil {
			return 0, &CommunicationError{Op: fmt.Sprintf("read 0x%08X", address), Err: err}
		}
		return v, nil
	}
	if err := m.iface.WriteAP(m.ap, apCSW, cswWord32); err != nil {
		return 0, err
	}
	if err := m.iface.WriteAP(m.ap, apTAR, address); err != nil {
		return 0, err
	}
	return m.iface.ReadAP(m.ap, apDRW)
}

// Write32 writes one aligned word to the target.
func (m *Memory) Write32(address, value uint32) error {
	if address%4 != 0 {
		return fmt.Errorf("arm: unaligned write at 0x%08X", address)
	}
	if m.native != nil {
		if err := m.native.WriteMemory32(address, value); err != nil {
			return &CommunicationError{Op: fmt.Sprintf("write 0x%08X", address), Err: err}
		}
		return nil
	}
	if err := m.iface.WriteAP(m.ap, apCSW, cswWord32); err != nil {
		return err
	}
	if err := m.iface.WriteAP(m.ap, apTAR, address); err != nil {
		return err
	}
	return m.iface.WriteAP(m.ap, apDRW, value)
}

// ReadBlock32 reads len(dst) consecutive words starting at address, using the
// MEM-AP's address auto-increment when going through an access port.
func (m *Memory) ReadBlock32(address uint32, dst []uint32) error {
	if address%4 != 0 {
		return fmt.Errorf("arm: unaligned block read at 0x%08X", address)
	}
	if len(dst) == 0 {
		return nil
	}
	if m.native != nil {
		if err := m.native.ReadMemoryBlock32(address, dst); err != nil {
			return &CommunicationError{Op: fmt.Sprintf("block read 0x%08X", address), Err: err}
		}
		return nil
	}
	if err := m.iface.WriteAP(m.ap, apCSW, cswWord32AutoIn); err != nil {
		return err
	}
	if err := m.iface.WriteAP(m.ap, apTAR, address); err != nil {
		return err
	}
	for n := range dst {
		v, err := m.iface.ReadAP(m.ap, apDRW)
		if err != nil {
			return err
		}
		dst[n] = v
	}
	return nil
}
