// Package machine wires CPU, MMU, PPU, APU, and a Cartridge into the single
// aggregate a front-end drives: load once, step repeatedly, borrow frames,
// drain audio, push button edges, and serialize the whole thing for save
// states. Grounded on the teacher's internal/emu.Machine shape and its
// internal/bus.go SaveState/LoadState gob pattern, generalized per spec §6
// to the full aggregate the teacher's Milestone-0 Machine never grew into.
package machine

import (
	"bytes"
	"encoding/gob"
	"log"

	"github.com/mjrussell/dmgcore/internal/apu"
	"github.com/mjrussell/dmgcore/internal/cart"
	"github.com/mjrussell/dmgcore/internal/cpu"
	"github.com/mjrussell/dmgcore/internal/mmu"
	"github.com/mjrussell/dmgcore/internal/ppu"
)

// Config contains settings that affect emulation behavior but not its
// output, mirroring the teacher's emu.Config.
type Config struct {
	Trace bool // log PC and registers with the standard log package before each Step
}

// Machine owns one cartridge session end to end.
type Machine struct {
	cfg Config

	cpu  *cpu.CPU
	mmu  *mmu.MMU
	ppu  *ppu.PPU
	apu  *apu.APU
	cart cart.Cartridge

	breakpoints map[uint16]bool
}

// New constructs a Machine from a cartridge image, an optional 256-byte boot
// ROM, and optional previously-saved battery data. Without a boot ROM,
// registers are initialized to the documented DMG post-boot values and PC
// starts at 0x0100; with one, PC starts at 0x0000 and the boot image runs
// first, same as real hardware.
func New(rom []byte, bootROM []byte, saveData []byte, cfg Config) (*Machine, error) {
	c, err := cart.NewCartridge(rom)
	if err != nil {
		return nil, wrapCartErr(err)
	}
	if len(saveData) > 0 {
		if err := c.LoadSaveData(saveData); err != nil {
			return nil, wrapCartErr(err)
		}
	}

	var m *mmu.MMU
	p := ppu.New(func(bit int) { m.RequestInterrupt(bit) })
	a := apu.New()
	m = mmu.New(c, p, a)

	if len(bootROM) > 0 && len(bootROM) != 0x100 {
		return nil, newErr(InvalidBootRom, "boot ROM is %d bytes, want 256", len(bootROM))
	}

	cp := cpu.New(m)
	if len(bootROM) == 0x100 {
		m.SetBootROM(bootROM)
	} else {
		cp.ResetPostBoot()
	}

	return &Machine{
		cfg: cfg, cpu: cp, mmu: m, ppu: p, apu: a, cart: c,
		breakpoints: make(map[uint16]bool),
	}, nil
}

func wrapCartErr(err error) error {
	ce, ok := err.(*cart.Error)
	if !ok {
		return err
	}
	var kind ErrorKind
	switch ce.Kind {
	case cart.InvalidRomHeader:
		kind = InvalidRomHeader
	case cart.UnsupportedMapper:
		kind = UnsupportedMapper
	case cart.SaveNotSupported:
		kind = SaveNotSupported
	case cart.InvalidSave:
		kind = InvalidSave
	case cart.InvalidRtcData:
		kind = InvalidRtcData
	default:
		kind = InvalidRomHeader
	}
	return newErr(kind, "%s", ce.Reason)
}

// Step executes exactly one CPU instruction (or HALT/STOP tick, or interrupt
// dispatch) and returns the number of master cycles charged.
func (m *Machine) Step() int {
	if m.cfg.Trace {
		s := m.cpu.Snapshot()
		log.Printf("PC=%04X AF=%02X%02X BC=%02X%02X DE=%02X%02X HL=%02X%02X SP=%04X",
			s.PC, s.A, s.F, s.B, s.C, s.D, s.E, s.H, s.L, s.SP)
	}
	return m.cpu.Step()
}

// Framebuffer borrows the current 160x144 pixel buffer; its rows change
// during any Step call that finishes a scanline.
func (m *Machine) Framebuffer() *[ppu.ScreenHeight][ppu.ScreenWidth]uint32 {
	return m.ppu.Framebuffer()
}

// DrainAudio returns and clears the APU's pending delta-encoded samples.
func (m *Machine) DrainAudio() (left, right []int16, offsets []uint32) {
	return m.apu.DrainDeltas()
}

func (m *Machine) PushButton(button byte)    { m.mmu.PushButton(button) }
func (m *Machine) ReleaseButton(button byte) { m.mmu.ReleaseButton(button) }

// SaveData returns the battery-backed blob for cartridges that declare one,
// nil otherwise.
func (m *Machine) SaveData() []byte { return m.cart.SaveData() }

// RequestBreakpoint arms a PC-equality breakpoint; AtBreakpoint reports
// whether the CPU is currently sitting at one (a front-end's debug loop
// calls Step in a loop and checks this between instructions).
func (m *Machine) RequestBreakpoint(addr uint16)  { m.breakpoints[addr] = true }
func (m *Machine) ClearBreakpoint(addr uint16)    { delete(m.breakpoints, addr) }
func (m *Machine) Breakpoints() []uint16 {
	addrs := make([]uint16, 0, len(m.breakpoints))
	for a := range m.breakpoints {
		addrs = append(addrs, a)
	}
	return addrs
}
func (m *Machine) AtBreakpoint() bool { return m.breakpoints[m.cpu.PC] }

// PC and Registers expose the minimal inspection surface the reference
// debugger CLI needs (spec §6 vocabulary: registers|r, read <addr>).
func (m *Machine) PC() uint16             { return m.cpu.PC }
func (m *Machine) ReadByte(a uint16) byte { return m.mmu.ReadByte(a) }
func (m *Machine) Registers() cpu.Snapshot {
	return m.cpu.Snapshot()
}

type machineState struct {
	CPU []byte
	MMU []byte
}

// SaveState serializes every mutable field of CPU, MMU, PPU, APU, and
// cartridge, excluding ROM and boot ROM, which are re-supplied at load
// (spec §6 "Save-state format").
func (m *Machine) SaveState() []byte {
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(machineState{
		CPU: m.cpu.SaveState(),
		MMU: m.mmu.SaveState(),
	})
	return buf.Bytes()
}

// LoadState restores a previously-saved machine. If the saved state has the
// boot-ROM overlay still active, bootROM must be supplied (256 bytes) or
// MissingBootrom is returned; the image itself was never part of the save.
func (m *Machine) LoadState(data []byte, bootROM []byte) error {
	var s machineState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return newErr(InvalidSave, "decode machine state: %v", err)
	}
	if len(bootROM) == 0x100 {
		m.mmu.SetBootROM(bootROM)
	}
	if err := m.mmu.LoadState(s.MMU); err != nil {
		return newErr(InvalidSave, "decode MMU state: %v", err)
	}
	if m.mmu.BootEnabled() && len(bootROM) != 0x100 {
		return newErr(MissingBootrom, "saved state has the boot ROM enabled but none was supplied")
	}
	if err := m.cpu.LoadState(s.CPU); err != nil {
		return newErr(InvalidSave, "decode CPU state: %v", err)
	}
	return nil
}
