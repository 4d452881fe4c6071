// Package arm implements the ARM ADIv5 debug architecture: debug-port and
// access-port register access, MEM-AP backed memory views, CoreSight ROM
// table discovery and trace pipeline configuration.
package arm

// Debug port register addresses.
const (
	dpIDCODE   = 0x00
	dpCtrlStat = 0x04
	dpSelect   = 0x08
	dpRdBuff   = 0x0C
)

// MEM-AP register addresses. The low nibble travels in the transfer request;
// the bank (high nibble) is programmed through the DP SELECT register.
const (
	apCSW  = 0x00
	apTAR  = 0x04
	apDRW  = 0x0C
	apBASE = 0xF8
	apIDR  = 0xFC
)

// CSW field values for 32-bit transfers.
const (
	cswSize32        = 0x00000002
	cswAddrIncSingle = 0x00000010
	cswHProtData     = 0x02000000
	cswDbgSwEnable   = 0x80000000

	cswWord32       = cswDbgSwEnable | cswHProtData | cswSize32
	cswWord32AutoIn = cswWord32 | cswAddrIncSingle
)

// BASE register flag bits.
const (
	baseFormatADIv5  = 0x2
	baseEntryPresent = 0x1
)

// Component identification block offsets relative to a component's 4K base.
const (
	pidr4Offset = 0xFD0
	pidr0Offset = 0xFE0
	cidr0Offset = 0xFF0
)

// Software lock (CoreSight LAR) used before reprogramming trace components.
const (
	lockAccessOffset = 0xFB0
	lockAccessKey    = 0xC5ACCE55
)

// System control and trace component register addresses/offsets.
const (
	demcrAddress = 0xE000EDFC
	demcrTRCENA  = 1 << 24

	tpiuCSPSR = 0x004
	tpiuACPR  = 0x010
	tpiuSPPR  = 0x0F0
	tpiuFFCR  = 0x304

	itmTER0 = 0xE00
	itmTCR  = 0xE80

	dwtCTRL = 0x000
)

// ARM part numbers of the trace components this package knows how to wire.
const (
	partITM   = 0x001
	partDWT   = 0x002
	partTPIU  = 0x9A1 // Cortex-M4 TPIU
	partTPIU7 = 0x9A9 // Cortex-M7 TPIU
)
