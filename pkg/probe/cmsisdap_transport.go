package probe

import (
	"fmt"
	"time"

	"github.com/google/gousb"
)

const (
	// Default packet size for CMSIS-DAP v1/v2 probes.
	defaultPacketSize = 64
	defaultUSBTimeout = 5 * time.Second
)

// usbTransport exchanges fixed-size CMSIS-DAP packets over USB bulk endpoints.
type usbTransport struct {
	ctx  *gousb.Context
	dev  *gousb.Device
	intf *gousb.Interface

	epOut *gousb.OutEndpoint
	epIn  *gousb.InEndpoint

	packetSize int
	timeout    time.Duration
}

// openUSBTransport locates the probe by VID/PID, claims its vendor interface
// and opens the bulk endpoint pair. On any failure everything already opened
// is released.
func openUSBTransport(vid, pid uint16) (*usbTransport, error) {
	ctx := gousb.NewContext()

	dev, err := ctx.OpenDeviceWithVIDPID(gousb.ID(vid), gousb.ID(pid))
	if err != nil {
		ctx.Close()
		return nil, fmt.Errorf("probe: USB open: %w", err)
	}
	if dev == nil {
		ctx.Close()
		return nil, fmt.Errorf("probe: device not found (VID:0x%04X PID:0x%04X)", vid, pid)
	}

	// Detach any kernel driver bound to the interface; not fatal where the
	// platform does not support it.
	_ = dev.SetAutoDetach(true)

	t := &usbTransport{
		ctx:        ctx,
		dev:        dev,
		packetSize: defaultPacketSize,
		timeout:    defaultUSBTimeout,
	}
	if err := t.claim(); err != nil {
		dev.Close()
		ctx.Close()
		return nil, err
	}
	return t, nil
}

// claim finds the CMSIS-DAP vendor-specific interface and its bulk endpoints.
func (t *usbTransport) claim() error {
	cfg, err := t.dev.Config(1)
	if err != nil {
		return fmt.Errorf("probe: get config: %w", err)
	}

	intfNum := -1
	for _, intf := range cfg.Desc.Interfaces {
		if len(intf.AltSettings) == 0 {
			continue
		}
		if intf.AltSettings[0].Class == gousb.ClassVendorSpec {
			intfNum = intf.Number
			break
		}
	}
	if intfNum == -1 {
		// CMSIS-DAP v1 probes expose the HID interface as interface 0.
		intfNum = 0
	}

	intf, err := cfg.Interface(intfNum, 0)
	if err != nil {
		return fmt.Errorf("probe: claim interface %d: %w", intfNum, err)
	}
	t.intf = intf

	var outNum, inNum int
	for _, ep := range intf.Setting.Endpoints {
		if ep.TransferType != gousb.TransferTypeBulk {
			continue
		}
		switch ep.Direction {
		case gousb.EndpointDirectionOut:
			if outNum == 0 {
				outNum = ep.Number
			}
		case gousb.EndpointDirectionIn:
			if inNum == 0 {
				inNum = ep.Number
				t.packetSize = ep.MaxPacketSize
			}
		}
	}
	if outNum == 0 || inNum == 0 {
		intf.Close()
		return fmt.Errorf("probe: bulk endpoint pair not found")
	}

	if t.epOut, err = intf.OutEndpoint(outNum); err != nil {
		intf.Close()
		return fmt.Errorf("probe: open OUT endpoint: %w", err)
	}
	if t.epIn, err = intf.InEndpoint(inNum); err != nil {
		intf.Close()
		return fmt.Errorf("probe: open IN endpoint: %w", err)
	}
	return nil
}

// roundTrip sends one command packet and reads back one response packet.
// CMSIS-DAP packets are fixed size; the command is padded to packetSize.
func (t *usbTransport) roundTrip(cmd []byte) ([]byte, error) {
	packet := make([]byte, t.packetSize)
	copy(packet, cmd)
	if _, err := t.epOut.Write(packet); err != nil {
		return nil, fmt.Errorf("probe: USB write: %w", err)
	}

	resp := make([]byte, t.packetSize)
	n, err := t.epIn.Read(resp)
	if err != nil {
		return nil, fmt.Errorf("probe: USB read: %w", err)
	}
	return resp[:n], nil
}

func (t *usbTransport) close() error {
	if t.intf != nil {
		t.intf.Close()
		t.intf = nil
	}
	if t.dev != nil {
		t.dev.Close()
		t.dev = nil
	}
	if t.ctx != nil {
		t.ctx.Close()
		t.ctx = nil
	}
	return nil
}
