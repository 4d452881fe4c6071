package arm

import (
	"fmt"

	"github.com/golang/glog"

	"github.com/OpenTraceLab/OpenTraceDebug/pkg/jep106"
)

// MemoryReader is the subset of memory operations the directory walk needs.
// *Memory satisfies it; tests substitute a map-backed fake.
type MemoryReader interface {
	Read32(address uint32) (uint32, error)
}

// ComponentClass is the component class nibble from CIDR1.
type ComponentClass uint8

const (
	ClassGeneric   ComponentClass = 0x0
	ClassROMTable  ComponentClass = 0x1
	ClassCoreSight ComponentClass = 0x9
	ClassPrimeCell ComponentClass = 0xF
)

// Component is one parsed directory entry: the component's identity and its
// resolved base address.
type Component struct {
	Address    uint32
	Class      ComponentClass
	PartNumber uint16
	Designer   uint16 // combined JEP106 code
}

func (c Component) String() string {
	m, _ := jep106.Lookup(c.Designer)
	return fmt.Sprintf("%s part 0x%03X @ 0x%08X", m.Abbreviation, c.PartNumber, c.Address)
}

// ROMTable is the ordered result of walking a component directory. Entries
// appear in the order the hardware table defines them, with nested tables
// flattened in place.
type ROMTable struct {
	entries []Component
}

// Entries returns a copy of the parsed components.
func (t *ROMTable) Entries() []Component {
	return append([]Component(nil), t.entries...)
}

// FindByPart returns the first component carrying the given ARM part number.
func (t *ROMTable) FindByPart(parts ...uint16) (Component, bool) {
	for _, e := range t.entries {
		for _, p := range parts {
			if e.PartNumber == p {
				return e, true
			}
		}
	}
	return Component{}, false
}

// Entry words within a ROM table.
const (
	romEntryPresent  = 0x1
	romEntryFormat32 = 0x2
	romTableMaxBytes = 0xF00 // remainder of the 4K block holds the ID registers
)

// ParseROMTable walks the component directory starting at base, following
// nested directory pointers. The walk is read-heavy; a transport failure
// propagates as a CommunicationError while malformed table contents produce
// a ParseError. It never returns a silently truncated sequence.
func ParseROMTable(mem MemoryReader, base uint32) (*ROMTable, error) {
	table := &ROMTable{}
	if err := parseROMTableInto(mem, base, table, 0); err != nil {
		return nil, err
	}
	return table, nil
}

// maxTableDepth bounds recursion so a cyclic directory on a confused target
// cannot hang the walk.
const maxTableDepth = 4

func parseROMTableInto(mem MemoryReader, base uint32, table *ROMTable, depth int) error {
	if depth > maxTableDepth {
		return &ParseError{Address: base, Reason: "directory nesting too deep"}
	}
	class, err := readComponentClass(mem, base)
	if err != nil {
		return err
	}
	if class != ClassROMTable {
		return &ParseError{Address: base, Reason: "component is not a directory table"}
	}

	for offset := uint32(0); offset < romTableMaxBytes; offset += 4 {
		word, err := mem.Read32(base + offset)
		if err != nil {
			return err
		}
		if word == 0 {
			return nil // end of table marker
		}
		if word&romEntryFormat32 == 0 {
			return &ParseError{Address: base + offset, Reason: "unsupported 8-bit entry format"}
		}
		if word&romEntryPresent == 0 {
			continue
		}

		// The entry holds a signed, 4K-aligned offset from the table base.
		componentBase := base + (word &^ 0xFFF)
		componentClass, err := readComponentClass(mem, componentBase)
		if err != nil {
			return err
		}
		if componentClass == ClassROMTable {
			if err := parseROMTableInto(mem, componentBase, table, depth+1); err != nil {
				return err
			}
			continue
		}
		pid, err := readPeripheralID(mem, componentBase)
		if err != nil {
			return err
		}
		component := Component{
			Address:    componentBase,
			Class:      componentClass,
			PartNumber: pid.Part,
			Designer:   pid.Designer,
		}
		glog.V(1).Infof("component directory entry: %s", component)
		table.entries = append(table.entries, component)
	}
	return &ParseError{Address: base, Reason: "no end-of-table marker found"}
}

// readComponentClass validates the CIDR preamble of the component at base and
// returns its class nibble.
func readComponentClass(mem MemoryReader, base uint32) (ComponentClass, error) {
	var cidr [4]uint32
	for n := range cidr {
		v, err := mem.Read32(base + cidr0Offset + uint32(n)*4)
		if err != nil {
			return 0, err
		}
		cidr[n] = v
	}
	// Only the low byte of each CIDR word carries data; the preamble is the
	// fixed pattern 0xB105_000D around the class nibble.
	if cidr[0]&0xFF != 0x0D || cidr[1]&0x0F != 0x00 || cidr[2]&0xFF != 0x05 || cidr[3]&0xFF != 0xB1 {
		return 0, &ParseError{Address: base, Reason: "invalid component identification preamble"}
	}
	return ComponentClass(cidr[1] >> 4 & 0xF), nil
}

// peripheralID is the decoded PIDR block of one component.
type peripheralID struct {
	Part     uint16
	Designer uint16
}

func readPeripheralID(mem MemoryReader, base uint32) (peripheralID, error) {
	var words [8]uint32 // PIDR4..7 then PIDR0..3, in register order
	for n := 0; n < 4; n++ {
		v, err := mem.Read32(base + pidr4Offset + uint32(n)*4)
		if err != nil {
			return peripheralID{}, err
		}
		words[n] = v
	}
	for n := 0; n < 4; n++ {
		v, err := mem.Read32(base + pidr0Offset + uint32(n)*4)
		if err != nil {
			return peripheralID{}, err
		}
		words[4+n] = v
	}

	pidr0, pidr1, pidr2 := words[4], words[5], words[6]
	pidr4 := words[0]

	part := uint16(pidr0&0xFF) | uint16(pidr1&0xF)<<8
	id := uint8(pidr1>>4&0xF) | uint8(pidr2&0x7)<<4
	continuation := uint8(pidr4 & 0xF)
	return peripheralID{
		Part:     part,
		Designer: jep106.Code(continuation, id),
	}, nil
}
