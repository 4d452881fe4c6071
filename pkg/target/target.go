// Package target holds static chip descriptors and the registry used to
// resolve them by name or by autodetected chip identity.
package target

import (
	"fmt"

	"github.com/OpenTraceLab/OpenTraceDebug/pkg/jep106"
)

// CoreType names the CPU architecture variant of a target core.
type CoreType string

const (
	CoreTypeCortexM0  CoreType = "cortex-m0"
	CoreTypeCortexM3  CoreType = "cortex-m3"
	CoreTypeCortexM4  CoreType = "cortex-m4"
	CoreTypeCortexM7  CoreType = "cortex-m7"
	CoreTypeCortexM33 CoreType = "cortex-m33"
)

// MemoryRangeKind classifies a memory region.
type MemoryRangeKind string

const (
	MemoryKindRAM     MemoryRangeKind = "ram"
	MemoryKindNVM     MemoryRangeKind = "nvm"
	MemoryKindGeneric MemoryRangeKind = "generic"
)

// MemoryRegion describes one region of the target's address space. Start is
// inclusive, End exclusive.
type MemoryRegion struct {
	Kind  MemoryRangeKind `yaml:"kind"`
	Start uint32          `yaml:"start"`
	End   uint32          `yaml:"end"`
}

// Contains reports whether the address falls inside the region.
func (r MemoryRegion) Contains(address uint32) bool {
	return address >= r.Start && address < r.End
}

func (r MemoryRegion) String() string {
	return fmt.Sprintf("%s 0x%08X..0x%08X", r.Kind, r.Start, r.End)
}

// FlashProperties describes the geometry a flash algorithm operates on.
type FlashProperties struct {
	Start           uint32 `yaml:"start"`
	End             uint32 `yaml:"end"`
	PageSize        uint32 `yaml:"page_size"`
	SectorSize      uint32 `yaml:"sector_size"`
	ErasedByteValue uint8  `yaml:"erased_byte_value"`
}

// RawFlashAlgorithm is an unprocessed flash loader blob as shipped in a chip
// description. Execution of the algorithm belongs to the flashing layer, not
// to this package.
type RawFlashAlgorithm struct {
	Name         string          `yaml:"name"`
	Description  string          `yaml:"description"`
	Default      bool            `yaml:"default"`
	LoadAddress  uint32          `yaml:"load_address"`
	Instructions []byte          `yaml:"-"`
	Flash        FlashProperties `yaml:"flash"`
}

// Target is the immutable descriptor of a chip: its core type, memory map and
// available flash algorithms. A Target is never mutated after construction;
// sessions hand out copies of the slices.
type Target struct {
	Name            string
	Core            CoreType
	MemoryMap       []MemoryRegion
	FlashAlgorithms []RawFlashAlgorithm
}

// ChipInfo is the identity read from a live target during autodetection:
// the JEP106 manufacturer code and the part number from the ROM table
// peripheral ID registers.
type ChipInfo struct {
	Manufacturer uint16 // combined JEP106 code, see jep106.Code
	Part         uint16
}

func (c ChipInfo) String() string {
	m, _ := jep106.Lookup(c.Manufacturer)
	return fmt.Sprintf("%s part 0x%03X", m.Name, c.Part)
}
