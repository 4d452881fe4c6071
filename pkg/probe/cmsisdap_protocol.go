package probe

import (
	"encoding/binary"
	"fmt"
)

// CMSIS-DAP command IDs used by this driver.
const (
	cmdInfo              = 0x00
	cmdConnect           = 0x02
	cmdDisconnect        = 0x03
	cmdTransferConfigure = 0x04
	cmdTransfer          = 0x05
	cmdSWJClock          = 0x11
	cmdSWJSequence       = 0x12
	cmdSWOTransport      = 0x17
	cmdSWOMode           = 0x18
	cmdSWOBaudrate       = 0x19
	cmdSWOControl        = 0x1A
	cmdSWOData           = 0x1C
)

// DAP_Info info IDs.
const (
	infoVendorID    = 0x01
	infoProductID   = 0x02
	infoSerialNum   = 0x03
	infoFirmwareVer = 0x04
)

// Connection ports.
const (
	portSWD = 1
)

// DAP status byte.
const (
	statusOK = 0x00
)

// Transfer request bits.
const (
	transferAPnDP = 0x01 // access port instead of debug port
	transferRnW   = 0x02 // read instead of write
)

// Transfer ACK values in the response byte's low three bits.
const (
	ackOK    = 0x01
	ackWait  = 0x02
	ackFault = 0x04
)

// dapProtocol encodes and decodes CMSIS-DAP packets. It carries no transport
// state so the same instance serves every transaction.
type dapProtocol struct {
	packetSize int
}

func newDAPProtocol(packetSize int) *dapProtocol {
	return &dapProtocol{packetSize: packetSize}
}

// EncodeInfo builds a DAP_Info command.
func (p *dapProtocol) EncodeInfo(infoID byte) []byte {
	return []byte{cmdInfo, infoID}
}

// DecodeInfo parses a DAP_Info string response.
func (p *dapProtocol) DecodeInfo(resp []byte) (string, error) {
	if len(resp) < 2 || resp[0] != cmdInfo {
		return "", fmt.Errorf("probe: malformed DAP_Info response")
	}
	length := int(resp[1])
	if len(resp) < 2+length {
		return "", fmt.Errorf("probe: truncated DAP_Info string")
	}
	s := resp[2 : 2+length]
	// Info strings are NUL terminated.
	if length > 0 && s[length-1] == 0 {
		s = s[:length-1]
	}
	return string(s), nil
}

// EncodeConnect builds a DAP_Connect command.
func (p *dapProtocol) EncodeConnect(port byte) []byte {
	return []byte{cmdConnect, port}
}

// DecodeConnect parses a DAP_Connect response, returning the selected port.
func (p *dapProtocol) DecodeConnect(resp []byte) (byte, error) {
	if len(resp) < 2 || resp[0] != cmdConnect {
		return 0, fmt.Errorf("probe: malformed DAP_Connect response")
	}
	if resp[1] == 0 {
		return 0, fmt.Errorf("probe: DAP_Connect refused")
	}
	return resp[1], nil
}

// EncodeDisconnect builds a DAP_Disconnect command.
func (p *dapProtocol) EncodeDisconnect() []byte {
	return []byte{cmdDisconnect}
}

// EncodeTransferConfigure sets idle cycles and retry counts for transfers.
func (p *dapProtocol) EncodeTransferConfigure(idleCycles byte, waitRetry, matchRetry uint16) []byte {
	cmd := make([]byte, 6)
	cmd[0] = cmdTransferConfigure
	cmd[1] = idleCycles
	binary.LittleEndian.PutUint16(cmd[2:], waitRetry)
	binary.LittleEndian.PutUint16(cmd[4:], matchRetry)
	return cmd
}

// EncodeTransferRead builds a single-register DAP_Transfer read.
func (p *dapProtocol) EncodeTransferRead(port Port, addr uint8) []byte {
	request := byte(addr&0x0C) | transferRnW
	if port == PortAP {
		request |= transferAPnDP
	}
	return []byte{cmdTransfer, 0x00 /* DAP index */, 0x01 /* count */, request}
}

// EncodeTransferWrite builds a single-register DAP_Transfer write.
func (p *dapProtocol) EncodeTransferWrite(port Port, addr uint8, value uint32) []byte {
	request := byte(addr & 0x0C)
	if port == PortAP {
		request |= transferAPnDP
	}
	cmd := make([]byte, 8)
	cmd[0] = cmdTransfer
	cmd[1] = 0x00
	cmd[2] = 0x01
	cmd[3] = request
	binary.LittleEndian.PutUint32(cmd[4:], value)
	return cmd
}

// DecodeTransfer parses a DAP_Transfer response. For reads the captured word
// is returned; writes return zero.
func (p *dapProtocol) DecodeTransfer(resp []byte, read bool) (uint32, error) {
	if len(resp) < 3 || resp[0] != cmdTransfer {
		return 0, fmt.Errorf("probe: malformed DAP_Transfer response")
	}
	if count := resp[1]; count != 1 {
		return 0, fmt.Errorf("probe: DAP_Transfer executed %d of 1 transfers", count)
	}
	switch ack := resp[2] & 0x07; ack {
	case ackOK:
	case ackWait:
		return 0, fmt.Errorf("probe: target issued WAIT")
	case ackFault:
		return 0, fmt.Errorf("probe: target issued FAULT")
	default:
		return 0, fmt.Errorf("probe: no response from target (ack 0x%02X)", ack)
	}
	if !read {
		return 0, nil
	}
	if len(resp) < 7 {
		return 0, fmt.Errorf("probe: DAP_Transfer response missing read data")
	}
	return binary.LittleEndian.Uint32(resp[3:]), nil
}

// EncodeSWJClock sets the SWD clock frequency.
func (p *dapProtocol) EncodeSWJClock(hz uint32) []byte {
	cmd := make([]byte, 5)
	cmd[0] = cmdSWJClock
	binary.LittleEndian.PutUint32(cmd[1:], hz)
	return cmd
}

// EncodeSWJSequence clocks out a raw bit sequence on SWDIO/TMS. Used for the
// JTAG-to-SWD switch and line resets.
func (p *dapProtocol) EncodeSWJSequence(bits int, data []byte) []byte {
	count := byte(bits)
	if bits == 256 {
		count = 0
	}
	cmd := append([]byte{cmdSWJSequence, count}, data...)
	return cmd
}

// EncodeSWOTransport selects how trace data reaches the host (1 = DAP_SWO_Data).
func (p *dapProtocol) EncodeSWOTransport(transport byte) []byte {
	return []byte{cmdSWOTransport, transport}
}

// EncodeSWOMode selects the SWO capture mode (1 = UART/NRZ).
func (p *dapProtocol) EncodeSWOMode(mode byte) []byte {
	return []byte{cmdSWOMode, mode}
}

// EncodeSWOBaudrate requests a capture baudrate.
func (p *dapProtocol) EncodeSWOBaudrate(baud uint32) []byte {
	cmd := make([]byte, 5)
	cmd[0] = cmdSWOBaudrate
	binary.LittleEndian.PutUint32(cmd[1:], baud)
	return cmd
}

// EncodeSWOControl starts (1) or stops (0) trace capture.
func (p *dapProtocol) EncodeSWOControl(control byte) []byte {
	return []byte{cmdSWOControl, control}
}

// EncodeSWOData requests up to max bytes from the probe's trace buffer.
func (p *dapProtocol) EncodeSWOData(max uint16) []byte {
	cmd := make([]byte, 3)
	cmd[0] = cmdSWOData
	binary.LittleEndian.PutUint16(cmd[1:], max)
	return cmd
}

// DecodeSWOData parses the captured trace bytes out of a DAP_SWO_Data response.
func (p *dapProtocol) DecodeSWOData(resp []byte) ([]byte, error) {
	if len(resp) < 4 || resp[0] != cmdSWOData {
		return nil, fmt.Errorf("probe: malformed DAP_SWO_Data response")
	}
	count := int(binary.LittleEndian.Uint16(resp[2:]))
	if len(resp) < 4+count {
		return nil, fmt.Errorf("probe: truncated DAP_SWO_Data payload")
	}
	return append([]byte(nil), resp[4:4+count]...), nil
}

// DecodeStatus parses the single status byte responses shared by several
// commands (Disconnect, TransferConfigure, SWJ_*, SWO_*).
func (p *dapProtocol) DecodeStatus(cmd byte, resp []byte) error {
	if len(resp) < 2 || resp[0] != cmd {
		return fmt.Errorf("probe: malformed response for command 0x%02X", cmd)
	}
	if resp[1] != statusOK {
		return fmt.Errorf("probe: command 0x%02X failed with status 0x%02X", cmd, resp[1])
	}
	return nil
}
