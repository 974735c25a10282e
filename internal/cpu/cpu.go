// Package cpu implements the SM83 instruction-stepped core: register file,
// bitfield opcode decoding (no giant switch), interrupt dispatch, and the
// HALT/STOP state machine. Grounded on the teacher's internal/cpu/cpu.go
// register/flag/ALU shape and on thelolagemann/gomeboy's decode.go for the
// bitfield dispatch technique the spec calls for.
package cpu

import (
	"bytes"
	"encoding/gob"

	"github.com/mjrussell/dmgcore/internal/mmu"
)

const (
	flagZero      byte = 1 << 7
	flagSubtract  byte = 1 << 6
	flagHalfCarry byte = 1 << 5
	flagCarry     byte = 1 << 4
)

// Interrupt vectors, in fixed dispatch priority.
var interruptVectors = [5]uint16{0x40, 0x48, 0x50, 0x58, 0x60}

// State reports the CPU's run state for tools/tests.
type State int

const (
	StateRunning State = iota
	StateHalted
	StateStopped
	StateIllegal
)

// CPU is the SM83 core: eight 8-bit registers (addressable singly or as the
// four pairs AF/BC/DE/HL), SP, PC, IME, and the HALT/STOP/Illegal state
// machine, driven against an MMU that charges its own bus cycles.
type CPU struct {
	A, F byte
	B, C byte
	D, E byte
	H, L byte

	SP, PC uint16

	IME     bool
	eiDelay int // counts down to 0, then IME becomes true (deferred one step)

	halted   bool
	stopped  bool
	illegal  bool
	haltBug  bool
	lastOp   byte

	// registerPointers indexes the 3-bit register field: B,C,D,E,H,L,(HL),A.
	// Index 6 has no real backing register; hlScratch only fills that slot,
	// since getRegisterValue/setRegisterValue route index 6 to memory at HL.
	hlScratch byte

	m *mmu.MMU
}

// New constructs a CPU wired to the given MMU, with SP/PC left at zero; call
// either ResetPostBoot or set PC via a boot ROM run.
func New(m *mmu.MMU) *CPU {
	return &CPU{m: m}
}

// ResetPostBoot sets registers to the documented DMG post-boot-ROM values,
// for running without a boot image.
func (c *CPU) ResetPostBoot() {
	c.A, c.F = 0x01, 0xB0
	c.B, c.C = 0x00, 0x13
	c.D, c.E = 0x00, 0xD8
	c.H, c.L = 0x01, 0x4D
	c.SP, c.PC = 0xFFFE, 0x0100
	c.IME = false
	c.eiDelay = 0
	c.halted, c.stopped, c.illegal, c.haltBug = false, false, false, false
}

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateHalted:
		return "halted"
	case StateStopped:
		return "stopped"
	case StateIllegal:
		return "illegal"
	default:
		return "unknown"
	}
}

func (c *CPU) State() State {
	switch {
	case c.illegal:
		return StateIllegal
	case c.stopped:
		return StateStopped
	case c.halted:
		return StateHalted
	default:
		return StateRunning
	}
}

func (c *CPU) registerPointers() [8]*byte {
	return [8]*byte{&c.B, &c.C, &c.D, &c.E, &c.H, &c.L, &c.hlScratch, &c.A}
}

func (c *CPU) hl() uint16 { return uint16(c.H)<<8 | uint16(c.L) }
func (c *CPU) setHL(v uint16) {
	c.H, c.L = byte(v>>8), byte(v)
}
func (c *CPU) bc() uint16 { return uint16(c.B)<<8 | uint16(c.C) }
func (c *CPU) setBC(v uint16) {
	c.B, c.C = byte(v>>8), byte(v)
}
func (c *CPU) de() uint16 { return uint16(c.D)<<8 | uint16(c.E) }
func (c *CPU) setDE(v uint16) {
	c.D, c.E = byte(v>>8), byte(v)
}
func (c *CPU) af() uint16 { return uint16(c.A)<<8 | uint16(c.F&0xF0) }
func (c *CPU) setAF(v uint16) {
	c.A, c.F = byte(v>>8), byte(v)&0xF0
}

func (c *CPU) isFlagSet(f byte) bool { return c.F&f != 0 }

func (c *CPU) setFlags(z, n, h, cy bool) {
	var f byte
	if z {
		f |= flagZero
	}
	if n {
		f |= flagSubtract
	}
	if h {
		f |= flagHalfCarry
	}
	if cy {
		f |= flagCarry
	}
	c.F = f
}

// fetchOperand reads the byte at PC and advances PC, unless the HALT bug is
// latched, in which case PC fails to advance exactly once (spec §4.1).
func (c *CPU) fetchOperand() byte {
	v := c.m.ReadByte(c.PC)
	if c.haltBug {
		c.haltBug = false
	} else {
		c.PC++
	}
	return v
}

func (c *CPU) fetchOperand16() uint16 {
	lo := uint16(c.fetchOperand())
	hi := uint16(c.fetchOperand())
	return lo | hi<<8
}

func (c *CPU) push(v uint16) {
	c.SP--
	c.m.WriteByte(c.SP, byte(v>>8))
	c.SP--
	c.m.WriteByte(c.SP, byte(v))
}

func (c *CPU) pop() uint16 {
	lo := uint16(c.m.ReadByte(c.SP))
	c.SP++
	hi := uint16(c.m.ReadByte(c.SP))
	c.SP++
	return lo | hi<<8
}

// Step executes exactly one instruction (or one HALT/STOP-frozen tick, or
// one interrupt dispatch) and returns the number of master cycles it
// charged, computed as the MMU's own running cycle ledger advances — the
// CPU never tracks per-opcode cycle counts by hand.
func (c *CPU) Step() int {
	before := c.m.Cycles()

	if c.eiDelay > 0 {
		c.eiDelay--
		if c.eiDelay == 0 {
			c.IME = true
		}
	}

	if c.stopped {
		if c.m.IF()&(1<<4) != 0 {
			c.stopped = false
		} else {
			c.m.Tick(4)
			return int(c.m.Cycles() - before)
		}
	}

	// A latched illegal opcode locks the CPU up completely: no instruction
	// fetch, no interrupt dispatch, just a frozen bus (spec §4.1).
	if c.illegal {
		c.m.Tick(4)
		return int(c.m.Cycles() - before)
	}

	pending := c.m.IE() & c.m.IF() & 0x1F
	if pending != 0 {
		if c.IME {
			c.serviceInterrupt(pending)
			return int(c.m.Cycles() - before)
		}
		if c.halted {
			c.halted = false
		}
	}

	if c.halted {
		c.m.Tick(4)
		return int(c.m.Cycles() - before)
	}

	op := c.fetchOperand()
	c.lastOp = op
	c.decode(op)

	return int(c.m.Cycles() - before)
}

// serviceInterrupt dispatches the highest-priority pending interrupt: clears
// IME, acknowledges the IF bit, and jumps to the fixed vector. Spec §4.1
// charges 5 bus ticks total; 3 are internal (the two-cycle decision plus the
// vector load) and 2 come from the stack-pointer pushes below.
func (c *CPU) serviceInterrupt(pending byte) {
	var bit uint
	for bit = 0; bit < 5; bit++ {
		if pending&(1<<bit) != 0 {
			break
		}
	}
	c.IME = false
	c.m.SetIF(c.m.IF() &^ (1 << bit))
	c.m.Tick(4)
	c.m.Tick(4)
	c.m.Tick(4)
	c.push(c.PC)
	c.PC = interruptVectors[bit]
}

type cpuState struct {
	A, F, B, C, D, E, H, L byte
	SP, PC                 uint16
	IME                    bool
	EIDelay                int
	Halted, Stopped        bool
	Illegal                bool
	HaltBug                bool
}

// Snapshot is a read-only copy of the register file and run state, for
// front-ends that want to display or log it without reaching into the CPU.
type Snapshot struct {
	A, F   byte
	B, C   byte
	D, E   byte
	H, L   byte
	SP, PC uint16
	IME    bool
	State  State
}

func (c *CPU) Snapshot() Snapshot {
	return Snapshot{
		A: c.A, F: c.F, B: c.B, C: c.C, D: c.D, E: c.E, H: c.H, L: c.L,
		SP: c.SP, PC: c.PC, IME: c.IME, State: c.State(),
	}
}

func (c *CPU) SaveState() []byte {
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(cpuState{
		A: c.A, F: c.F, B: c.B, C: c.C, D: c.D, E: c.E, H: c.H, L: c.L,
		SP: c.SP, PC: c.PC, IME: c.IME, EIDelay: c.eiDelay,
		Halted: c.halted, Stopped: c.stopped, Illegal: c.illegal, HaltBug: c.haltBug,
	})
	return buf.Bytes()
}

func (c *CPU) LoadState(data []byte) error {
	var s cpuState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return err
	}
	c.A, c.F, c.B, c.C, c.D, c.E, c.H, c.L = s.A, s.F, s.B, s.C, s.D, s.E, s.H, s.L
	c.SP, c.PC, c.IME, c.eiDelay = s.SP, s.PC, s.IME, s.EIDelay
	c.halted, c.stopped, c.illegal, c.haltBug = s.Halted, s.Stopped, s.Illegal, s.HaltBug
	return nil
}
