package arm

import "github.com/golang/glog"

// MemoryReadWriter is what trace configuration needs from a memory view.
type MemoryReadWriter interface {
	MemoryReader
	Write32(address, value uint32) error
}

// SWO output configuration. The prescaler assumes a 16 MHz trace reference
// clock driving the SWO pin at 2 MBaud; chips with a different reference need
// a chip description override before this becomes tunable.
const (
	swoPrescaler = 16_000_000/2_000_000 - 1

	sppProtocolNRZ = 0x2

	// ITM trace control: enable the unit, synchronization packets and the
	// timestamp generator, tagged with trace bus ID 1.
	itmTCREnable = 0x0001000D

	// DWT control: cycle counter on, synchronization tap at CYCCNT bit 24.
	dwtCTRLSyncTap = 1 << 10
	dwtCTRLCycEna  = 1 << 0
)

// SetupTracing locates the trace-capable components in a parsed directory and
// programs the path from the DWT/ITM sources through the TPIU onto the SWO
// pin. Calling it again reprograms the same registers; the pipeline is reset,
// not corrupted. A missing component or a failed register write is reported
// as a TraceSetupError.
func SetupTracing(mem MemoryReadWriter, table *ROMTable) error {
	tpiu, ok := table.FindByPart(partTPIU, partTPIU7)
	if !ok {
		return &TraceSetupError{Missing: "TPIU"}
	}
	itm, ok := table.FindByPart(partITM)
	if !ok {
		return &TraceSetupError{Missing: "ITM"}
	}
	dwt, ok := table.FindByPart(partDWT)
	if !ok {
		return &TraceSetupError{Missing: "DWT"}
	}
	glog.V(1).Infof("trace path: DWT@0x%08X -> ITM@0x%08X -> TPIU@0x%08X",
		dwt.Address, itm.Address, tpiu.Address)

	// Trace units are dead until DEMCR.TRCENA is set.
	demcr, err := mem.Read32(demcrAddress)
	if err != nil {
		return &TraceSetupError{Err: err}
	}
	if err := mem.Write32(demcrAddress, demcr|demcrTRCENA); err != nil {
		return &TraceSetupError{Err: err}
	}

	// TPIU: one-bit SWO port, NRZ protocol, bypass the formatter.
	tpiuWrites := []struct{ offset, value uint32 }{
		{lockAccessOffset, lockAccessKey},
		{tpiuCSPSR, 0x1},
		{tpiuACPR, swoPrescaler},
		{tpiuSPPR, sppProtocolNRZ},
		{tpiuFFCR, 0x100},
	}
	for _, w := range tpiuWrites {
		if err := mem.Write32(tpiu.Address+w.offset, w.value); err != nil {
			return &TraceSetupError{Err: err}
		}
	}

	// ITM: unlock, enable all stimulus ports, switch the unit on.
	itmWrites := []struct{ offset, value uint32 }{
		{lockAccessOffset, lockAccessKey},
		{itmTER0, 0xFFFFFFFF},
		{itmTCR, itmTCREnable},
	}
	for _, w := range itmWrites {
		if err := mem.Write32(itm.Address+w.offset, w.value); err != nil {
			return &TraceSetupError{Err: err}
		}
	}

	// DWT: cycle counter feeds the synchronization packets.
	ctrl, err := mem.Read32(dwt.Address + dwtCTRL)
	if err != nil {
		return &TraceSetupError{Err: err}
	}
	if err := mem.Write32(dwt.Address+dwtCTRL, ctrl|dwtCTRLSyncTap|dwtCTRLCycEna); err != nil {
		return &TraceSetupError{Err: err}
	}

	glog.Infof("trace pipeline configured (SWO NRZ, prescaler %d)", swoPrescaler)
	return nil
}
