package arm

import (
	"fmt"

	"github.com/golang/glog"

	"github.com/OpenTraceLab/OpenTraceDebug/pkg/probe"
	"github.com/OpenTraceLab/OpenTraceDebug/pkg/target"
)

// AccessPort identifies one enumerated access port: its selection index and
// the debug base address it advertises. Records are produced live from the
// hardware and may be stale by the time they are used again; callers must
// not assume ordering stability across enumerations.
type AccessPort struct {
	ID          uint8
	BaseAddress uint32
}

// Interface is the ARM communication interface: it owns DP SELECT banking and
// provides register-level access to the debug and access ports of a live
// target through a probe.
type Interface struct {
	probe probe.Probe

	// Cached DP SELECT value; avoids a write per AP access when the bank
	// does not change.
	sel      uint32
	selValid bool
}

// New wraps a probe in an ARM communication interface.
func New(p probe.Probe) *Interface {
	return &Interface{probe: p}
}

// Probe returns the underlying transport.
func (i *Interface) Probe() probe.Probe { return i.probe }

// ReadDP reads a debug port register.
func (i *Interface) ReadDP(addr uint8) (uint32, error) {
	v, err := i.probe.ReadRegister(probe.PortDP, addr)
	if err != nil {
		return 0, &CommunicationError{Op: fmt.Sprintf("read DP[0x%02X]", addr), Err: err}
	}
	return v, nil
}

// WriteDP writes a debug port register.
func (i *Interface) WriteDP(addr uint8, value uint32) error {
	if err := i.probe.WriteRegister(probe.PortDP, addr, value); err != nil {
		return &CommunicationError{Op: fmt.Sprintf("write DP[0x%02X]", addr), Err: err}
	}
	if addr&0x0C == dpSelect {
		i.sel = value
		i.selValid = true
	}
	return nil
}

// selectAP programs DP SELECT for the given access port and register bank.
func (i *Interface) selectAP(ap uint8, addr uint8) error {
	sel := uint32(ap)<<24 | uint32(addr>>4)<<4
	if i.selValid && i.sel == sel {
		return nil
	}
	return i.WriteDP(dpSelect, sel)
}

// ReadAP reads an access port register, handling bank selection.
func (i *Interface) ReadAP(ap uint8, addr uint8) (uint32, error) {
	if err := i.selectAP(ap, addr); err != nil {
		return 0, err
	}
	v, err := i.probe.ReadRegister(probe.PortAP, addr&0x0C)
	if err != nil {
		return 0, &CommunicationError{Op: fmt.Sprintf("read AP%d[0x%02X]", ap, addr), Err: err}
	}
	return v, nil
}

// WriteAP writes an access port register, handling bank selection.
func (i *Interface) WriteAP(ap uint8, addr uint8, value uint32) error {
	if err := i.selectAP(ap, addr); err != nil {
		return err
	}
	if err := i.probe.WriteRegister(probe.PortAP, addr&0x0C, value); err != nil {
		return &CommunicationError{Op: fmt.Sprintf("write AP%d[0x%02X]", ap, addr), Err: err}
	}
	return nil
}

// EnumerateAccessPorts scans the target's access ports live. The result is
// never cached; a record may already be stale the moment the call returns.
func (i *Interface) EnumerateAccessPorts() ([]AccessPort, error) {
	var ports []AccessPort
	for ap := 0; ap < 256; ap++ {
		idr, err := i.ReadAP(uint8(ap), apIDR)
		if err != nil {
			return nil, &APEnumerationError{Err: err}
		}
		if idr == 0 {
			// An absent AP reads its IDR as zero; the scan stops at the
			// first gap.
			break
		}
		base, err := i.ReadAP(uint8(ap), apBASE)
		if err != nil {
			return nil, &APEnumerationError{Err: err}
		}
		ports = append(ports, AccessPort{ID: uint8(ap), BaseAddress: base})
	}
	glog.V(2).Infof("enumerated %d access ports on %s", len(ports), i.probe.Name())
	return ports, nil
}

// DedicatedMemoryInterface returns the probe's native memory view, or nil if
// the probe only supports register-level transfers. A dedicated interface is
// assumed capable of addressing the whole memory space.
func (i *Interface) DedicatedMemoryInterface() *Memory {
	if native, ok := i.probe.(probe.MemoryAccessor); ok {
		return newDedicatedMemory(native)
	}
	return nil
}

// ReadSWV drains the probe's trace capture buffer. This is a direct
// pass-through with no buffering; polling cadence is the caller's concern.
func (i *Interface) ReadSWV() ([]byte, error) {
	r, ok := i.probe.(probe.SWOReader)
	if !ok {
		return nil, fmt.Errorf("arm: probe %s cannot capture trace data: %w",
			i.probe.Name(), probe.ErrNotSupported)
	}
	data, err := r.ReadSWO()
	if err != nil {
		return nil, &CommunicationError{Op: "read trace buffer", Err: err}
	}
	return data, nil
}

// ReadChipInfo autodetects the chip identity by reading the peripheral ID of
// the ROM table reachable through the first access port.
func (i *Interface) ReadChipInfo() (target.ChipInfo, error) {
	ports, err := i.EnumerateAccessPorts()
	if err != nil {
		return target.ChipInfo{}, err
	}
	if len(ports) == 0 {
		return target.ChipInfo{}, fmt.Errorf("arm: no access ports found")
	}
	base := ports[0].BaseAddress
	if base&baseEntryPresent == 0 {
		return target.ChipInfo{}, fmt.Errorf("arm: access port %d has no debug entries", ports[0].ID)
	}

	mem := NewMemory(i, ports[0].ID)
	romBase := base &^ 0xFFF
	class, err := readComponentClass(mem, romBase)
	if err != nil {
		return target.ChipInfo{}, err
	}
	if class != ClassROMTable {
		return target.ChipInfo{}, fmt.Errorf("arm: component at 0x%08X is not a ROM table (class 0x%X)", romBase, class)
	}
	pid, err := readPeripheralID(mem, romBase)
	if err != nil {
		return target.ChipInfo{}, err
	}

	info := target.ChipInfo{Manufacturer: pid.Designer, Part: pid.Part}
	glog.Infof("autodetected chip: %s", info)
	return info, nil
}
