package probe

import (
	"fmt"
	"sync"

	"github.com/golang/glog"
)

// CMSISDAP drives a CMSIS-DAP probe in SWD mode over USB.
type CMSISDAP struct {
	transport *usbTransport
	protocol  *dapProtocol

	name     string
	serial   string
	firmware string
	speedHz  uint32

	swoStarted bool

	mu     sync.Mutex // serializes packet round-trips
	closed bool
}

// jtagToSWDSequence is the standard line-reset + switch sequence: at least 50
// clocks with SWDIO high, the 16-bit switch code 0xE79E, then 50 more clocks
// high and a short idle.
var jtagToSWDSequence = []byte{
	0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
	0x9E, 0xE7,
	0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
	0x00,
}

// NewCMSISDAP opens a CMSIS-DAP probe by VID/PID, switches the target to SWD
// and configures a default clock. Construction is all-or-nothing: on any
// failure the transport is closed before returning.
func NewCMSISDAP(vid, pid uint16) (*CMSISDAP, error) {
	transport, err := openUSBTransport(vid, pid)
	if err != nil {
		return nil, err
	}

	p := &CMSISDAP{
		transport: transport,
		protocol:  newDAPProtocol(transport.packetSize),
		speedHz:   1_000_000,
	}

	if err := p.queryInfo(); err != nil {
		transport.close()
		return nil, fmt.Errorf("probe: query info: %w", err)
	}
	if err := p.connectSWD(); err != nil {
		transport.close()
		return nil, fmt.Errorf("probe: connect SWD: %w", err)
	}
	if err := p.configure(); err != nil {
		transport.close()
		return nil, fmt.Errorf("probe: configure: %w", err)
	}

	glog.Infof("opened CMSIS-DAP probe %s (serial %s, firmware %s)", p.name, p.serial, p.firmware)
	return p, nil
}

func (p *CMSISDAP) queryInfo() error {
	vendor, err := p.infoString(infoVendorID)
	if err != nil {
		return err
	}
	product, _ := p.infoString(infoProductID)
	p.serial, _ = p.infoString(infoSerialNum)
	p.firmware, _ = p.infoString(infoFirmwareVer)

	p.name = "CMSIS-DAP Probe"
	if vendor != "" || product != "" {
		p.name = fmt.Sprintf("%s %s", vendor, product)
	}
	return nil
}

func (p *CMSISDAP) infoString(id byte) (string, error) {
	resp, err := p.transport.roundTrip(p.protocol.EncodeInfo(id))
	if err != nil {
		return "", err
	}
	return p.protocol.DecodeInfo(resp)
}

func (p *CMSISDAP) connectSWD() error {
	resp, err := p.transport.roundTrip(p.protocol.EncodeConnect(portSWD))
	if err != nil {
		return err
	}
	port, err := p.protocol.DecodeConnect(resp)
	if err != nil {
		return err
	}
	if port != portSWD {
		return fmt.Errorf("probe: probe selected port %d instead of SWD", port)
	}

	// Switch the target's debug pins from JTAG to SWD.
	seq := p.protocol.EncodeSWJSequence(len(jtagToSWDSequence)*8, jtagToSWDSequence)
	resp, err = p.transport.roundTrip(seq)
	if err != nil {
		return err
	}
	return p.protocol.DecodeStatus(cmdSWJSequence, resp)
}

func (p *CMSISDAP) configure() error {
	resp, err := p.transport.roundTrip(p.protocol.EncodeSWJClock(p.speedHz))
	if err != nil {
		return err
	}
	if err := p.protocol.DecodeStatus(cmdSWJClock, resp); err != nil {
		return err
	}

	resp, err = p.transport.roundTrip(p.protocol.EncodeTransferConfigure(0, 80, 0))
	if err != nil {
		return err
	}
	return p.protocol.DecodeStatus(cmdTransferConfigure, resp)
}

// Name implements Probe.
func (p *CMSISDAP) Name() string { return p.name }

// ReadRegister implements Probe.
func (p *CMSISDAP) ReadRegister(port Port, addr uint8) (uint32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, ErrClosed
	}
	resp, err := p.transport.roundTrip(p.protocol.EncodeTransferRead(port, addr))
	if err != nil {
		return 0, err
	}
	value, err := p.protocol.DecodeTransfer(resp, true)
	if err != nil {
		return 0, fmt.Errorf("probe: read %s[0x%02X]: %w", port, addr, err)
	}
	glog.V(3).Infof("dap read  %s[0x%02X] = 0x%08X", port, addr, value)
	return value, nil
}

// WriteRegister implements Probe.
func (p *CMSISDAP) WriteRegister(port Port, addr uint8, value uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	glog.V(3).Infof("dap write %s[0x%02X] = 0x%08X", port, addr, value)
	resp, err := p.transport.roundTrip(p.protocol.EncodeTransferWrite(port, addr, value))
	if err != nil {
		return err
	}
	if _, err := p.protocol.DecodeTransfer(resp, false); err != nil {
		return fmt.Errorf("probe: write %s[0x%02X]: %w", port, addr, err)
	}
	return nil
}

// ReadSWO implements SWOReader. The first call starts capture in UART/NRZ
// mode at 2 MBaud; subsequent calls drain the probe buffer.
func (p *CMSISDAP) ReadSWO() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClosed
	}
	if !p.swoStarted {
		if err := p.startSWO(); err != nil {
			return nil, err
		}
		p.swoStarted = true
	}

	max := uint16(p.transport.packetSize - 4)
	resp, err := p.transport.roundTrip(p.protocol.EncodeSWOData(max))
	if err != nil {
		return nil, err
	}
	return p.protocol.DecodeSWOData(resp)
}

func (p *CMSISDAP) startSWO() error {
	steps := []struct {
		cmd byte
		pkt []byte
	}{
		{cmdSWOTransport, p.protocol.EncodeSWOTransport(1)},
		{cmdSWOMode, p.protocol.EncodeSWOMode(1)},
		{cmdSWOBaudrate, p.protocol.EncodeSWOBaudrate(2_000_000)},
		{cmdSWOControl, p.protocol.EncodeSWOControl(1)},
	}
	for _, step := range steps {
		resp, err := p.transport.roundTrip(step.pkt)
		if err != nil {
			return err
		}
		// DAP_SWO_Baudrate answers with the actual rate, not a status byte.
		if step.cmd == cmdSWOBaudrate {
			continue
		}
		if err := p.protocol.DecodeStatus(step.cmd, resp); err != nil {
			return err
		}
	}
	return nil
}

// Close implements Probe.
func (p *CMSISDAP) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	// Best effort: tell the probe to release the target before dropping USB.
	if resp, err := p.transport.roundTrip(p.protocol.EncodeDisconnect()); err == nil {
		_ = p.protocol.DecodeStatus(cmdDisconnect, resp)
	}
	return p.transport.close()
}
