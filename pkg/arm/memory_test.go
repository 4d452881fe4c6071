package arm

import (
	"testing"

	"github.com/OpenTraceLab/OpenTraceDebug/pkg/probe"
)

func TestMemoryThroughAccessPort(t *testing.T) {
	sim := probe.NewSim()
	sim.AddAccessPort(0, 0xE00FF003)
	sim.LoadWords(0x2000_0000, []uint32{0xAAAA5555, 0x12345678, 0x9ABCDEF0})

	mem := NewMemory(New(sim), 0)

	got, err := mem.Read32(0x2000_0004)
	if err != nil {
		t.Fatalf("Read32 failed: %v", err)
	}
	if got != 0x12345678 {
		t.Fatalf("Read32 = 0x%08X, want 0x12345678", got)
	}

	if err := mem.Write32(0x2000_0008, 0xCAFEBABE); err != nil {
		t.Fatalf("Write32 failed: %v", err)
	}
	if got := sim.Word(0x2000_0008); got != 0xCAFEBABE {
		t.Fatalf("target word = 0x%08X, want 0xCAFEBABE", got)
	}

	block := make([]uint32, 2)
	if err := mem.ReadBlock32(0x2000_0000, block); err != nil {
		t.Fatalf("ReadBlock32 failed: %v", err)
	}
	if block[0] != 0xAAAA5555 || block[1] != 0x12345678 {
		t.Fatalf("block = %08X, want [AAAA5555 12345678]", block)
	}

	if id, bound := mem.AccessPortID(); !bound || id != 0 {
		t.Fatalf("AccessPortID = (%d, %v), want (0, true)", id, bound)
	}
}

func TestMemoryRejectsUnaligned(t *testing.T) {
	mem := NewMemory(New(probe.NewSim()), 0)
	if _, err := mem.Read32(0x2000_0001); err == nil {
		t.Fatalf("unaligned read accepted")
	}
	if err := mem.Write32(0x2000_0002, 0); err == nil {
		t.Fatalf("unaligned write accepted")
	}
	if err := mem.ReadBlock32(0x2000_0003, make([]uint32, 1)); err == nil {
		t.Fatalf("unaligned block read accepted")
	}
}

func TestDedicatedMemoryBypassesRegisters(t *testing.T) {
	sim := probe.NewSim()
	sim.LoadWord(0x1000_0000, 0x0BADF00D)
	native := probe.NewSimWithMemory(sim)

	mem := New(native).DedicatedMemoryInterface()
	if mem == nil {
		t.Fatalf("no dedicated interface")
	}
	got, err := mem.Read32(0x1000_0000)
	if err != nil {
		t.Fatalf("Read32 failed: %v", err)
	}
	if got != 0x0BADF00D {
		t.Fatalf("Read32 = 0x%08X, want 0x0BADF00D", got)
	}
	// The native path must not have issued any register transfers.
	if ops := sim.Ops(); len(ops) != 0 {
		t.Fatalf("dedicated read issued %d register transfers", len(ops))
	}
}
