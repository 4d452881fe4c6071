package probe

import (
	"context"
	"fmt"

	"github.com/google/gousb"
)

// Kind categorizes probe families.
type Kind string

const (
	KindCMSISDAP Kind = "cmsis-dap"
	KindSim      Kind = "simulator"
	KindUnknown  Kind = "unknown"
)

// Info describes a detected debug probe.
type Info struct {
	Kind        Kind
	Description string
	VendorID    uint16
	ProductID   uint16
	Serial      string
}

// Label returns a user-friendly description for the probe.
func (i Info) Label() string {
	if i.Description != "" {
		return i.Description
	}
	if i.Kind != "" {
		return fmt.Sprintf("%s (%04X:%04X)", string(i.Kind), i.VendorID, i.ProductID)
	}
	return fmt.Sprintf("Probe %04X:%04X", i.VendorID, i.ProductID)
}

// Discover enumerates connected USB debug probes that match known VID/PID
// pairs. It always returns at least the simulator entry so tools can be
// exercised without hardware connected.
func Discover(ctx context.Context) ([]Info, error) {
	var results []Info
	usb := gousb.NewContext()
	defer usb.Close()

	_, err := usb.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}

		if info, ok := classifyUSBDevice(desc); ok {
			results = append(results, info)
		}
		return false
	})
	if err != nil && err != gousb.ErrorAccess {
		return results, err
	}

	results = append(results, Info{
		Kind:        KindSim,
		Description: "Simulator (no hardware)",
	})

	return results, nil
}

// Open opens a live connection to the described probe.
func Open(info Info) (Probe, error) {
	switch info.Kind {
	case KindCMSISDAP:
		return NewCMSISDAP(info.VendorID, info.ProductID)
	case KindSim:
		return NewSimCortexM(), nil
	default:
		return nil, fmt.Errorf("probe: cannot open probe of kind %q", info.Kind)
	}
}

func classifyUSBDevice(desc *gousb.DeviceDesc) (Info, bool) {
	for _, known := range knownCMSISDAPVIDPIDs {
		if uint16(desc.Vendor) == known.VendorID && uint16(desc.Product) == known.ProductID {
			return Info{
				Kind:        KindCMSISDAP,
				Description: known.Description,
				VendorID:    known.VendorID,
				ProductID:   known.ProductID,
			}, true
		}
	}
	return Info{}, false
}

type knownUSBDevice struct {
	VendorID    uint16
	ProductID   uint16
	Description string
}

var knownCMSISDAPVIDPIDs = []knownUSBDevice{
	{VendorID: 0x2E8A, ProductID: 0x000C, Description: "Raspberry Pi Debug Probe (CMSIS-DAP)"},
	{VendorID: 0x0D28, ProductID: 0x0204, Description: "DAPLink CMSIS-DAP"},
	{VendorID: 0x1366, ProductID: 0x0101, Description: "SEGGER J-Link CMSIS-DAP"},
	{VendorID: 0xC251, ProductID: 0xF001, Description: "Keil ULINKplus CMSIS-DAP"},
}
