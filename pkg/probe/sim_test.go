package probe

import (
	"errors"
	"testing"
)

func TestSimSelectBanking(t *testing.T) {
	s := NewSim()
	s.AddAccessPort(0, 0xE00FF003)
	s.AddAccessPort(1, 0x5000_0003)

	// Select AP 1, bank 0xF and read its IDR and BASE.
	if err := s.WriteRegister(PortDP, simDPSelect, 0x0100_00F0); err != nil {
		t.Fatalf("SELECT write failed: %v", err)
	}
	idr, err := s.ReadRegister(PortAP, 0x0C) // bank F, offset C => 0xFC
	if err != nil {
		t.Fatalf("IDR read failed: %v", err)
	}
	if idr == 0 {
		t.Fatalf("IDR of AP 1 reads zero")
	}
	base, err := s.ReadRegister(PortAP, 0x08) // bank F, offset 8 => 0xF8
	if err != nil {
		t.Fatalf("BASE read failed: %v", err)
	}
	if base != 0x5000_0003 {
		t.Fatalf("BASE = 0x%08X, want 0x50000003", base)
	}

	// An absent AP reads zero, like real hardware.
	if err := s.WriteRegister(PortDP, simDPSelect, 0x0700_00F0); err != nil {
		t.Fatalf("SELECT write failed: %v", err)
	}
	idr, err = s.ReadRegister(PortAP, 0x0C)
	if err != nil {
		t.Fatalf("absent AP IDR read failed: %v", err)
	}
	if idr != 0 {
		t.Fatalf("absent AP IDR = 0x%08X, want 0", idr)
	}
}

func TestSimMemoryThroughDRW(t *testing.T) {
	s := NewSim()
	s.AddAccessPort(0, 0xE00FF003)
	s.LoadWords(0x2000_0000, []uint32{0x11111111, 0x22222222})

	// Bank 0 of AP 0: CSW with single auto-increment, then TAR, then DRW.
	if err := s.WriteRegister(PortDP, simDPSelect, 0); err != nil {
		t.Fatalf("SELECT: %v", err)
	}
	if err := s.WriteRegister(PortAP, 0x00, 0x10); err != nil {
		t.Fatalf("CSW: %v", err)
	}
	if err := s.WriteRegister(PortAP, 0x04, 0x2000_0000); err != nil {
		t.Fatalf("TAR: %v", err)
	}
	for i, want := range []uint32{0x11111111, 0x22222222} {
		got, err := s.ReadRegister(PortAP, 0x0C)
		if err != nil {
			t.Fatalf("DRW read %d: %v", i, err)
		}
		if got != want {
			t.Fatalf("DRW read %d = 0x%08X, want 0x%08X", i, got, want)
		}
	}

	// Writes land in memory too.
	if err := s.WriteRegister(PortAP, 0x04, 0x2000_0100); err != nil {
		t.Fatalf("TAR: %v", err)
	}
	if err := s.WriteRegister(PortAP, 0x0C, 0xCAFEBABE); err != nil {
		t.Fatalf("DRW write: %v", err)
	}
	if got := s.Word(0x2000_0100); got != 0xCAFEBABE {
		t.Fatalf("memory word = 0x%08X, want 0xCAFEBABE", got)
	}
}

func TestSimHooks(t *testing.T) {
	s := NewSim()
	injected := errors.New("injected fault")
	s.OnRead = func(port Port, addr uint8) (uint32, bool, error) {
		if port == PortDP && addr == simDPIDCODE {
			return 0, false, injected
		}
		return 0, false, nil
	}
	if _, err := s.ReadRegister(PortDP, simDPIDCODE); !errors.Is(err, injected) {
		t.Fatalf("hook error not propagated, got %v", err)
	}
}

func TestSimClose(t *testing.T) {
	s := NewSim()
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !s.Closed() {
		t.Fatalf("Closed() = false after Close")
	}
	if _, err := s.ReadRegister(PortDP, 0); !errors.Is(err, ErrClosed) {
		t.Fatalf("read after close = %v, want ErrClosed", err)
	}
	if _, err := s.ReadSWO(); !errors.Is(err, ErrClosed) {
		t.Fatalf("ReadSWO after close = %v, want ErrClosed", err)
	}
}

func TestSimSWOQueue(t *testing.T) {
	s := NewSim()
	s.QueueSWO([]byte{1, 2, 3})
	data, err := s.ReadSWO()
	if err != nil {
		t.Fatalf("ReadSWO failed: %v", err)
	}
	if len(data) != 3 {
		t.Fatalf("got %d bytes, want 3", len(data))
	}
	data, err = s.ReadSWO()
	if err != nil {
		t.Fatalf("second ReadSWO failed: %v", err)
	}
	if len(data) != 0 {
		t.Fatalf("buffer not drained, %d bytes remain", len(data))
	}
}
