package session

import (
	"errors"
	"sync"
	"testing"

	"github.com/OpenTraceLab/OpenTraceDebug/pkg/arm"
	"github.com/OpenTraceLab/OpenTraceDebug/pkg/probe"
	"github.com/OpenTraceLab/OpenTraceDebug/pkg/target"
)

func testTarget() *target.Target {
	return &target.Target{
		Name: "test-chip",
		Core: target.CoreTypeCortexM4,
		MemoryMap: []target.MemoryRegion{
			{Kind: target.MemoryKindRAM, Start: 0x2000_0000, End: 0x2001_0000},
		},
	}
}

func openTestSession(t *testing.T, p probe.Probe) Session {
	t.Helper()
	s, err := New(p, target.SelectTarget(testTarget()))
	if err != nil {
		t.Fatalf("session construction failed: %v", err)
	}
	return s
}

func TestNewByName(t *testing.T) {
	s, err := New(probe.NewSimCortexM(), target.SelectByName("generic-cortex-m4"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer s.Close()
	if s.TargetName() != "generic-cortex-m4" {
		t.Fatalf("target = %q, want generic-cortex-m4", s.TargetName())
	}
}

func TestNewUnknownNameClosesProbe(t *testing.T) {
	sim := probe.NewSimCortexM()
	_, err := New(sim, target.SelectByName("no-such-chip"))
	var nf *target.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("error = %v, want target.NotFoundError", err)
	}
	if !sim.Closed() {
		t.Fatalf("probe left open after failed construction")
	}
}

func TestNewAutodetect(t *testing.T) {
	registry := target.NewRegistry()
	registry.Add(testTarget(), target.ChipInfo{Manufacturer: 0x23B, Part: 0x4C4})

	s, err := NewWithRegistry(probe.NewSimCortexM(), target.SelectAuto(), registry)
	if err != nil {
		t.Fatalf("autodetect construction failed: %v", err)
	}
	defer s.Close()
	if s.TargetName() != "test-chip" {
		t.Fatalf("target = %q, want test-chip", s.TargetName())
	}
}

func TestNewAutodetectFailed(t *testing.T) {
	// A target with no access ports yields no chip identity at all.
	_, err := New(probe.NewSim(), target.SelectAuto())
	if !errors.Is(err, ErrChipAutodetectFailed) {
		t.Fatalf("error = %v, want ErrChipAutodetectFailed", err)
	}
}

func TestListCores(t *testing.T) {
	s := openTestSession(t, probe.NewSimCortexM())
	defer s.Close()

	cores := s.ListCores()
	if len(cores) != 1 {
		t.Fatalf("got %d cores, want 1", len(cores))
	}
	if cores[0] != target.CoreTypeCortexM4 {
		t.Fatalf("core = %s, want cortex-m4", cores[0])
	}
}

func TestAttachToCoreOutOfRange(t *testing.T) {
	s := openTestSession(t, probe.NewSimCortexM())
	defer s.Close()

	for _, n := range []int{-1, 1, 7} {
		_, err := s.AttachToCore(n)
		var cnf *CoreNotFoundError
		if !errors.As(err, &cnf) {
			t.Fatalf("AttachToCore(%d) error = %v, want CoreNotFoundError", n, err)
		}
		if cnf.Index != n {
			t.Errorf("error index = %d, want %d", cnf.Index, n)
		}
	}

	// The failed attachments must leave the session usable.
	if _, err := s.AttachToCore(0); err != nil {
		t.Fatalf("session unusable after failed attachment: %v", err)
	}
}

func TestAttachToMemoryPrefersDedicated(t *testing.T) {
	// A memory-capable probe with no access ports at all: if the resolver
	// ever consulted enumeration, every id would fail.
	sim := probe.NewSim()
	s := openTestSession(t, probe.NewSimWithMemory(sim))
	defer s.Close()

	for _, id := range []int{0, 1, 5} {
		mem, err := s.AttachToMemory(id)
		if err != nil {
			t.Fatalf("AttachToMemory(%d) failed: %v", id, err)
		}
		if _, bound := mem.(*arm.Memory).AccessPortID(); bound {
			t.Fatalf("AttachToMemory(%d) returned an access-port bound view", id)
		}
	}
	for _, op := range sim.Ops() {
		if op.Port == probe.PortAP {
			t.Fatalf("dedicated resolution touched access-port registers")
		}
	}
}

func TestAttachToMemoryBindsEnumeratedPort(t *testing.T) {
	sim := probe.NewSim()
	sim.AddAccessPort(0, 0xE00FF003)
	sim.AddAccessPort(1, 0x5000_0003)
	s := openTestSession(t, sim)
	defer s.Close()

	mem, err := s.AttachToMemory(1)
	if err != nil {
		t.Fatalf("AttachToMemory(1) failed: %v", err)
	}
	id, bound := mem.(*arm.Memory).AccessPortID()
	if !bound || id != 1 {
		t.Fatalf("memory bound to (%d, %v), want access port 1", id, bound)
	}

	if _, err := s.AttachToMemory(5); err == nil {
		t.Fatalf("AttachToMemory(5) succeeded with 2 access ports")
	}
}

func TestAttachToMemoryEnumerationFailure(t *testing.T) {
	sim := probe.NewSim()
	sim.AddAccessPort(0, 0xE00FF003)
	fault := errors.New("link dropped")
	sim.OnRead = func(port probe.Port, addr uint8) (uint32, bool, error) {
		if port == probe.PortAP {
			return 0, false, fault
		}
		return 0, false, nil
	}
	s := openTestSession(t, sim)
	defer s.Close()

	_, err := s.AttachToMemory(0)
	var ee *arm.APEnumerationError
	if !errors.As(err, &ee) {
		t.Fatalf("error = %v, want APEnumerationError", err)
	}
}

func TestAttachToBestMemoryFallsBackToPortZero(t *testing.T) {
	sim := probe.NewSim()
	sim.AddAccessPort(0, 0xE00FF003)
	sim.AddAccessPort(1, 0x5000_0003)
	s := openTestSession(t, sim)
	defer s.Close()

	mem, err := s.AttachToBestMemory()
	if err != nil {
		t.Fatalf("AttachToBestMemory failed: %v", err)
	}
	id, bound := mem.(*arm.Memory).AccessPortID()
	if !bound || id != 0 {
		t.Fatalf("best memory bound to (%d, %v), want access port 0", id, bound)
	}
}

func TestAttachToCoreWithSpecificMemory(t *testing.T) {
	s := openTestSession(t, probe.NewSimCortexM())
	defer s.Close()

	supplied, err := s.AttachToMemory(0)
	if err != nil {
		t.Fatalf("AttachToMemory failed: %v", err)
	}
	core, err := s.AttachToCoreWithSpecificMemory(0, supplied)
	if err != nil {
		t.Fatalf("attach with supplied memory failed: %v", err)
	}
	mem, err := core.Memory()
	if err != nil {
		t.Fatalf("Memory failed: %v", err)
	}
	if mem != supplied {
		t.Fatalf("core holds a different memory view than supplied")
	}

	// Nil memory defaults to best-memory resolution.
	core, err = s.AttachToCoreWithSpecificMemory(0, nil)
	if err != nil {
		t.Fatalf("attach with nil memory failed: %v", err)
	}
	if _, err := core.Memory(); err != nil {
		t.Fatalf("defaulted memory unusable: %v", err)
	}
}

func TestAttachToSpecificCore(t *testing.T) {
	s := openTestSession(t, probe.NewSimCortexM())
	defer s.Close()

	core, err := s.AttachToSpecificCore(target.CoreTypeCortexM33)
	if err != nil {
		t.Fatalf("AttachToSpecificCore failed: %v", err)
	}
	if core.CoreType() != target.CoreTypeCortexM33 {
		t.Fatalf("core type = %s, want cortex-m33", core.CoreType())
	}
	if core.Index() != 0 {
		t.Fatalf("index = %d, want 0", core.Index())
	}
}

func TestMemoryMapRoundTrip(t *testing.T) {
	s := openTestSession(t, probe.NewSimCortexM())
	defer s.Close()

	regions := s.MemoryMap()
	if len(regions) != 1 {
		t.Fatalf("got %d regions, want 1", len(regions))
	}
	want := target.MemoryRegion{Kind: target.MemoryKindRAM, Start: 0x2000_0000, End: 0x2001_0000}
	if regions[0] != want {
		t.Fatalf("region = %+v, want %+v", regions[0], want)
	}

	// The returned slice is a copy; mutating it must not affect the session.
	regions[0].End = 0
	if s.MemoryMap()[0].End != 0x2001_0000 {
		t.Fatalf("MemoryMap exposed internal state")
	}
}

func TestReadSWV(t *testing.T) {
	sim := probe.NewSimCortexM()
	sim.QueueSWO([]byte{0xA0, 0xA1})
	s := openTestSession(t, sim)
	defer s.Close()

	data, err := s.ReadSWV()
	if err != nil {
		t.Fatalf("ReadSWV failed: %v", err)
	}
	if len(data) != 2 {
		t.Fatalf("got %d bytes, want 2", len(data))
	}
}

func TestSetupTracing(t *testing.T) {
	sim := probe.NewSimCortexM()
	s := openTestSession(t, sim)
	defer s.Close()

	core, err := s.AttachToCore(0)
	if err != nil {
		t.Fatalf("AttachToCore failed: %v", err)
	}
	if s.TracingConfigured() {
		t.Fatalf("session born tracing-configured")
	}
	if err := s.SetupTracing(core); err != nil {
		t.Fatalf("SetupTracing failed: %v", err)
	}
	if !s.TracingConfigured() {
		t.Fatalf("tracing state not recorded")
	}
	if got := sim.Word(0xE000EDFC); got&(1<<24) == 0 {
		t.Fatalf("DEMCR.TRCENA not set on the target")
	}

	// Configuring twice may reset the pipeline but must not fail; the state
	// stays configured, and re-attaching a core does not reset it.
	if err := s.SetupTracing(core); err != nil {
		t.Fatalf("second SetupTracing failed: %v", err)
	}
	if _, err := s.AttachToCore(0); err != nil {
		t.Fatalf("re-attach failed: %v", err)
	}
	if !s.TracingConfigured() {
		t.Fatalf("re-attach reset tracing state")
	}
}

func TestSetupTracingForeignCore(t *testing.T) {
	s1 := openTestSession(t, probe.NewSimCortexM())
	defer s1.Close()
	s2 := openTestSession(t, probe.NewSimCortexM())
	defer s2.Close()

	core, err := s2.AttachToCore(0)
	if err != nil {
		t.Fatalf("AttachToCore failed: %v", err)
	}
	if err := s1.SetupTracing(core); err == nil {
		t.Fatalf("SetupTracing accepted a core from another session")
	}
}

// blockingProbe parks ReadSWO until released, to hold the exclusive window
// open across goroutines.
type blockingProbe struct {
	*probe.Sim
	entered chan struct{}
	release chan struct{}
}

func (b *blockingProbe) ReadSWO() ([]byte, error) {
	close(b.entered)
	<-b.release
	return nil, nil
}

func TestConflictingOperationsFailFast(t *testing.T) {
	bp := &blockingProbe{
		Sim:     probe.NewSimCortexM(),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	s := openTestSession(t, bp)
	defer s.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		// Holds the exclusive window until released.
		s.ReadSWV()
	}()
	<-bp.entered

	// A clone of the handle must fail fast, not block or corrupt state.
	clone := s.Clone()
	if _, err := clone.AttachToCore(0); !errors.Is(err, ErrSessionBusy) {
		t.Fatalf("conflicting AttachToCore error = %v, want ErrSessionBusy", err)
	}
	if _, err := clone.ReadSWV(); !errors.Is(err, ErrSessionBusy) {
		t.Fatalf("conflicting ReadSWV error = %v, want ErrSessionBusy", err)
	}
	if err := clone.Close(); !errors.Is(err, ErrSessionBusy) {
		t.Fatalf("conflicting Close error = %v, want ErrSessionBusy", err)
	}

	close(bp.release)
	wg.Wait()

	// Once the window is free the session works again.
	if _, err := s.AttachToCore(0); err != nil {
		t.Fatalf("session unusable after window released: %v", err)
	}
}

func TestCloseInvalidatesCores(t *testing.T) {
	sim := probe.NewSimCortexM()
	s := openTestSession(t, sim)

	core, err := s.AttachToCore(0)
	if err != nil {
		t.Fatalf("AttachToCore failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !sim.Closed() {
		t.Fatalf("probe not released on Close")
	}

	if _, err := core.Memory(); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("stale core Memory error = %v, want ErrSessionClosed", err)
	}
	if _, err := core.ReadWord32(0x2000_0000); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("stale core read error = %v, want ErrSessionClosed", err)
	}
	if _, err := s.ReadSWV(); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("operation on closed session error = %v, want ErrSessionClosed", err)
	}

	// Close is idempotent.
	if err := s.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
}

func TestCoreReadsTargetMemory(t *testing.T) {
	sim := probe.NewSimCortexM()
	sim.LoadWord(0x2000_0000, 0xFEEDC0DE)
	s := openTestSession(t, sim)
	defer s.Close()

	core, err := s.AttachToCore(0)
	if err != nil {
		t.Fatalf("AttachToCore failed: %v", err)
	}
	got, err := core.ReadWord32(0x2000_0000)
	if err != nil {
		t.Fatalf("ReadWord32 failed: %v", err)
	}
	if got != 0xFEEDC0DE {
		t.Fatalf("read 0x%08X, want 0xFEEDC0DE", got)
	}
}
