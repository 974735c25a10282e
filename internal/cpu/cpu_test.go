package cpu

import (
	"testing"

	"github.com/mjrussell/dmgcore/internal/apu"
	"github.com/mjrussell/dmgcore/internal/cart"
	"github.com/mjrussell/dmgcore/internal/mmu"
	"github.com/mjrussell/dmgcore/internal/ppu"
)

// newTestCPU builds a minimal 32KB ROM-only cartridge with the given bytes
// poked in at fixed addresses, and wires a CPU to it. Instructions live at
// 0x0100 onward, same as a real cartridge's entry point.
func newTestCPU(t *testing.T, program map[uint16]byte) (*CPU, *mmu.MMU) {
	t.Helper()
	rom := make([]byte, 0x8000)
	rom[0x0148] = 0x00 // 32KB, 2 banks
	rom[0x0149] = 0x00 // no RAM
	rom[0x014A] = 0x00 // destination
	for addr, v := range program {
		rom[addr] = v
	}
	c, err := cart.NewCartridge(rom)
	if err != nil {
		t.Fatalf("NewCartridge: %v", err)
	}
	var m *mmu.MMU
	p := ppu.New(func(bit int) { m.RequestInterrupt(bit) })
	a := apu.New()
	m = mmu.New(c, p, a)
	cpu := New(m)
	cpu.ResetPostBoot()
	cpu.PC = 0x0100
	return cpu, m
}

func TestAddFlagsHalfAndFullCarry(t *testing.T) {
	c, _ := newTestCPU(t, map[uint16]byte{0x0100: 0x80}) // ADD A,B
	c.A, c.B = 0x3A, 0xC6
	c.Step()
	if c.A != 0x00 || !c.isFlagSet(flagZero) || c.isFlagSet(flagSubtract) ||
		!c.isFlagSet(flagHalfCarry) || !c.isFlagSet(flagCarry) {
		t.Fatalf("ADD A,B 0x3A+0xC6: A=%#x F=%#x, want A=0x00 Z=1 N=0 H=1 C=1", c.A, c.F)
	}
	if c.F&0x0F != 0 {
		t.Fatalf("F low nibble must stay zero, got %#x", c.F)
	}
}

func TestSubFlagsZeroResult(t *testing.T) {
	c, _ := newTestCPU(t, map[uint16]byte{0x0100: 0x90}) // SUB A,B
	c.A, c.B = 0x3E, 0x3E
	c.Step()
	if c.A != 0 || !c.isFlagSet(flagZero) || !c.isFlagSet(flagSubtract) ||
		c.isFlagSet(flagHalfCarry) || c.isFlagSet(flagCarry) {
		t.Fatalf("SUB A,B 0x3E-0x3E: A=%#x F=%#x, want A=0 Z=1 N=1 H=0 C=0", c.A, c.F)
	}
}

func TestDAAAfterAdd(t *testing.T) {
	c, _ := newTestCPU(t, map[uint16]byte{0x0100: 0x80, 0x0101: 0x27}) // ADD A,B; DAA
	c.A, c.B = 0x45, 0x38
	c.Step()
	c.Step()
	if c.A != 0x83 || c.isFlagSet(flagHalfCarry) || c.isFlagSet(flagCarry) {
		t.Fatalf("DAA after 0x45+0x38: A=%#x F=%#x, want A=0x83 H=0 C=0", c.A, c.F)
	}
}

func TestIncDecRegisterFlags(t *testing.T) {
	c, _ := newTestCPU(t, map[uint16]byte{0x0100: 0x04, 0x0101: 0x05}) // INC B; DEC B
	c.B = 0x0F
	c.Step()
	if c.B != 0x10 || !c.isFlagSet(flagHalfCarry) || c.isFlagSet(flagSubtract) {
		t.Fatalf("INC B from 0x0F: B=%#x F=%#x, want B=0x10 H=1 N=0", c.B, c.F)
	}
	c.Step()
	if c.B != 0x0F || !c.isFlagSet(flagHalfCarry) || !c.isFlagSet(flagSubtract) {
		t.Fatalf("DEC B from 0x10: B=%#x F=%#x, want B=0x0F H=1 N=1", c.B, c.F)
	}
}

func TestLDIndirectHLAndBack(t *testing.T) {
	// LD (HL),A ; LD B,(HL)
	c, _ := newTestCPU(t, map[uint16]byte{0x0100: 0x77, 0x0101: 0x46})
	c.A = 0x5A
	c.setHL(0xC010)
	cyc := c.Step()
	if cyc != 8 {
		t.Fatalf("LD (HL),A charged %d cycles, want 8", cyc)
	}
	cyc = c.Step()
	if cyc != 8 || c.B != 0x5A {
		t.Fatalf("LD B,(HL): cycles=%d B=%#x, want 8/0x5A", cyc, c.B)
	}
}

func TestRotatesClearZeroFlag(t *testing.T) {
	c, _ := newTestCPU(t, map[uint16]byte{0x0100: 0x07}) // RLCA
	c.A = 0x00
	c.Step()
	if c.isFlagSet(flagZero) {
		t.Fatalf("RLCA must always clear Z even when A=0, got F=%#x", c.F)
	}
}

func TestCBBitSetsZeroAndNeverWritesBack(t *testing.T) {
	c, _ := newTestCPU(t, map[uint16]byte{0x0100: 0xCB, 0x0101: 0x78}) // BIT 7,B
	c.B = 0x00
	c.Step()
	if !c.isFlagSet(flagZero) || !c.isFlagSet(flagHalfCarry) || c.isFlagSet(flagSubtract) {
		t.Fatalf("BIT 7,B on 0: F=%#x, want Z=1 H=1 N=0", c.F)
	}
	if c.B != 0x00 {
		t.Fatalf("BIT must not alter the tested register, got B=%#x", c.B)
	}
}

func TestEISetsIMEAfterNextInstruction(t *testing.T) {
	// EI; NOP; NOP
	c, _ := newTestCPU(t, map[uint16]byte{0x0100: 0xFB, 0x0101: 0x00, 0x0102: 0x00})
	c.Step() // EI
	if c.IME {
		t.Fatalf("IME must not be set immediately by EI")
	}
	c.Step() // instruction right after EI
	if c.IME {
		t.Fatalf("IME must still be false during the instruction following EI")
	}
	c.Step() // next instruction
	if !c.IME {
		t.Fatalf("IME must be true starting with the second instruction after EI")
	}
}

func TestDIIsImmediate(t *testing.T) {
	c, _ := newTestCPU(t, map[uint16]byte{0x0100: 0xFB, 0x0101: 0xF3}) // EI; DI
	c.Step()
	c.Step()
	if c.IME || c.eiDelay != 0 {
		t.Fatalf("DI must cancel a pending EI immediately, IME=%v eiDelay=%d", c.IME, c.eiDelay)
	}
}

func TestHaltResumesOnPendingInterruptWithoutServicing(t *testing.T) {
	c, m := newTestCPU(t, map[uint16]byte{0x0100: 0x76, 0x0101: 0x00}) // HALT; NOP
	c.IME = false
	m.WriteByte(0xFFFF, 0x01) // IE: vblank enabled
	c.Step()                  // HALT, IME=0, no pending IRQ yet -> halted
	if c.State() != StateHalted {
		t.Fatalf("expected halted state, got %v", c.State())
	}
	m.RequestInterrupt(0) // raise vblank
	c.Step()
	if c.State() == StateHalted {
		t.Fatalf("expected HALT to end once an enabled interrupt is pending")
	}
	if c.IME {
		t.Fatalf("waking from HALT with IME=0 must not service the interrupt")
	}
}

func TestHaltBugDuplicatesFollowingInstruction(t *testing.T) {
	// HALT; INC A; INC A (only the first INC A is in the stream once, but
	// the halt bug causes it to be fetched-and-executed twice in a row).
	c, m := newTestCPU(t, map[uint16]byte{0x0100: 0x76, 0x0101: 0x3C, 0x0102: 0x3C})
	c.IME = false
	m.WriteByte(0xFFFF, 0x01)
	m.RequestInterrupt(0) // pending at HALT time with IME=0 -> halt bug, not true halt
	c.A = 0x00
	c.Step() // HALT opcode itself: sets haltBug, does not set halted
	if c.State() == StateHalted {
		t.Fatalf("HALT with IME=0 and a pending enabled interrupt must trigger the halt bug, not a real halt")
	}
	c.Step() // first fetch of the 0x3C byte: executes, but PC does not advance
	if c.A != 0x01 || c.PC != 0x0101 {
		t.Fatalf("after halt-bug fetch: A=%#x PC=%#x, want A=0x01 PC=0x0101", c.A, c.PC)
	}
	c.Step() // second fetch of the same 0x3C byte: executes again, PC now advances
	if c.A != 0x02 || c.PC != 0x0102 {
		t.Fatalf("after duplicated instruction: A=%#x PC=%#x, want A=0x02 PC=0x0102", c.A, c.PC)
	}
}

func TestStopResumesOnJoypadInterrupt(t *testing.T) {
	c, m := newTestCPU(t, map[uint16]byte{0x0100: 0x10, 0x0101: 0x00, 0x0102: 0x00})
	c.Step()
	if c.State() != StateStopped {
		t.Fatalf("expected stopped state after STOP, got %v", c.State())
	}
	c.Step()
	if c.State() != StateStopped {
		t.Fatalf("STOP must hold until a joypad interrupt is pending")
	}
	m.RequestInterrupt(4) // joypad
	c.Step()
	if c.State() == StateStopped {
		t.Fatalf("expected STOP to end once the joypad interrupt is pending")
	}
}

func TestIllegalOpcodeLatchesAndFreezes(t *testing.T) {
	c, _ := newTestCPU(t, map[uint16]byte{0x0100: 0xD3})
	c.Step()
	if c.State() != StateIllegal {
		t.Fatalf("expected illegal state after 0xD3, got %v", c.State())
	}
	pc := c.PC
	c.Step()
	if c.PC != pc {
		t.Fatalf("illegal opcode must keep ticking without advancing PC, PC moved from %#x to %#x", pc, c.PC)
	}
}

func TestInterruptDispatchPriorityAndVector(t *testing.T) {
	c, m := newTestCPU(t, map[uint16]byte{0x0100: 0x00})
	c.IME = true
	c.SP = 0xFFFE
	m.WriteByte(0xFFFF, 0x1F)
	m.RequestInterrupt(1) // LCD STAT
	m.RequestInterrupt(0) // vblank: higher priority
	cyc := c.Step()
	if c.PC != interruptVectors[0] {
		t.Fatalf("expected dispatch to the vblank vector %#x, got %#x", interruptVectors[0], c.PC)
	}
	if c.IME {
		t.Fatalf("IME must be cleared on interrupt dispatch")
	}
	if m.IF()&0x01 != 0 {
		t.Fatalf("expected vblank IF bit acknowledged")
	}
	if m.IF()&0x02 == 0 {
		t.Fatalf("LCD STAT IF bit must remain pending")
	}
	if cyc != 20 {
		t.Fatalf("interrupt dispatch charged %d cycles, want 20", cyc)
	}
}

func TestCallAndReturnRoundTrip(t *testing.T) {
	// CALL 0x0200; at 0x0200: RET
	c, _ := newTestCPU(t, map[uint16]byte{
		0x0100: 0xCD, 0x0101: 0x00, 0x0102: 0x02,
		0x0200: 0xC9,
	})
	c.SP = 0xFFFE
	cyc := c.Step()
	if cyc != 24 || c.PC != 0x0200 {
		t.Fatalf("CALL nn: cycles=%d PC=%#x, want 24/0x0200", cyc, c.PC)
	}
	cyc = c.Step()
	if cyc != 16 || c.PC != 0x0103 {
		t.Fatalf("RET: cycles=%d PC=%#x, want 16/0x0103", cyc, c.PC)
	}
}

func TestSaveLoadStateRoundTrip(t *testing.T) {
	c, _ := newTestCPU(t, map[uint16]byte{0x0100: 0x00})
	c.A, c.B, c.PC, c.SP = 0x42, 0x13, 0x1234, 0xDEAD
	c.IME = true

	data := c.SaveState()

	other, _ := newTestCPU(t, map[uint16]byte{0x0100: 0x00})
	if err := other.LoadState(data); err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if other.A != c.A || other.B != c.B || other.PC != c.PC || other.SP != c.SP || other.IME != c.IME {
		t.Fatalf("state mismatch after round trip: got %+v, want fields matching %+v", other, c)
	}
}
