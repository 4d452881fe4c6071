package probe

// Canonical Cortex-M4 debug component addresses used by the simulated target.
const (
	SimROMTableBase = 0xE00FF000
	SimSCSBase      = 0xE000E000
	SimDWTBase      = 0xE0001000
	SimFPBBase      = 0xE0002000
	SimITMBase      = 0xE0000000
	SimTPIUBase     = 0xE0040000
)

// NewSimCortexM builds a simulated Cortex-M4 style target: one AHB-AP whose
// debug base points at a ROM table listing the SCS, DWT, FPB, ITM and TPIU
// components, each with valid CoreSight identification registers. The layout
// matches what chip autodetection and trace setup expect to find on real
// silicon.
func NewSimCortexM() *Sim {
	s := NewSim()
	s.AddAccessPort(0, SimROMTableBase|0x3) // present, ADIv5 format

	// ROM table: class 0x1, ARM part 0x4C4 (Cortex-M4 ROM).
	s.loadComponentID(SimROMTableBase, 0x1, 0x4C4)
	s.LoadWords(SimROMTableBase, []uint32{
		romEntry(SimSCSBase),
		romEntry(SimDWTBase),
		romEntry(SimFPBBase),
		romEntry(SimITMBase),
		romEntry(SimTPIUBase),
		0x00000000, // terminator
	})

	// CoreSight components, class 0x9, ARM part numbers.
	s.loadComponentID(SimSCSBase, 0x9, 0x00C)
	s.loadComponentID(SimDWTBase, 0x9, 0x002)
	s.loadComponentID(SimFPBBase, 0x9, 0x003)
	s.loadComponentID(SimITMBase, 0x9, 0x001)
	s.loadComponentID(SimTPIUBase, 0x9, 0x9A1)

	return s
}

// romEntry encodes a ROM table entry word pointing at a component base:
// signed 4K-aligned offset from the table base with present and format bits.
func romEntry(component uint32) uint32 {
	offset := (component - SimROMTableBase) &^ 0xFFF
	return offset | 0x3
}

// loadComponentID fills in the CIDR and PIDR register blocks of one component
// with an ARM Ltd designer identity (JEP106 continuation 4, id 0x3B).
func (s *Sim) loadComponentID(base uint32, class uint8, part uint16) {
	const (
		designerID   = 0x3B
		continuation = 0x4
	)
	// PIDR4..7 at +0xFD0, PIDR0..3 at +0xFE0.
	s.LoadWords(base+0xFD0, []uint32{
		continuation, 0, 0, 0,
	})
	s.LoadWords(base+0xFE0, []uint32{
		uint32(part & 0xFF),
		uint32((part>>8)&0xF) | uint32(designerID&0xF)<<4,
		uint32(designerID>>4)&0x7 | 0x8, // identity uses a JEDEC code
		0,
	})
	// CIDR0..3 at +0xFF0: preamble 0xB105_000D with the class nibble.
	s.LoadWords(base+0xFF0, []uint32{
		0x0D, uint32(class)<<4 | 0x0, 0x05, 0xB1,
	})
}
