// Package mmu implements the memory management unit: address decoding across
// the whole CPU-visible space, the timer, joypad, interrupt registers, and
// the OAM-DMA copier. It owns every tick-per-access side effect the bus
// contract requires (spec §4.2): each byte access charges 4 master cycles
// and advances Timer, PPU, APU, cartridge (RTC), and OAM-DMA in that order.
package mmu

import (
	"bytes"
	"encoding/gob"

	"github.com/mjrussell/dmgcore/internal/apu"
	"github.com/mjrussell/dmgcore/internal/cart"
	"github.com/mjrussell/dmgcore/internal/ppu"
)

// MMU wires cartridge, PPU, APU, WRAM, HRAM, timer, joypad, and the OAM-DMA
// engine into one addressable bus. Grounded on the teacher's internal/bus/bus.go
// Bus struct, generalized per SPEC_FULL §6.2 to own the DMA/timer/joypad/IF/IE
// responsibilities explicitly.
type MMU struct {
	cart cart.Cartridge
	ppu  *ppu.PPU
	apu  *apu.APU

	wram [0x2000]byte // 0xC000-0xDFFF, echoed at 0xE000-0xFDFF
	hram [0x7F]byte   // 0xFF80-0xFFFE

	ie byte // 0xFFFF
	ifr byte // 0xFF0F, lower 5 bits

	timer   timerState
	joypad  joypadState
	dma     dmaState

	bootROM     []byte
	bootEnabled bool

	sb byte // FF01, stubbed
	sc byte // FF02, stubbed

	totalCycles uint64
}

// New builds an MMU wired to the given cartridge, PPU, and APU.
func New(c cart.Cartridge, p *ppu.PPU, a *apu.APU) *MMU {
	return &MMU{cart: c, ppu: p, apu: a}
}

func (m *MMU) PPU() *ppu.PPU        { return m.ppu }
func (m *MMU) APU() *apu.APU        { return m.apu }
func (m *MMU) Cart() cart.Cartridge { return m.cart }

// BootEnabled reports whether the boot ROM overlay is still active. A
// restored save state can report true without a boot image installed (the
// image itself is never serialized); callers must supply one before running.
func (m *MMU) BootEnabled() bool { return m.bootEnabled }

// SetBootROM installs a 256-byte boot image, overlaying 0x0000-0x00FF until
// a nonzero write to FF50 disables it (spec §6).
func (m *MMU) SetBootROM(data []byte) {
	m.bootROM = nil
	m.bootEnabled = false
	if len(data) == 0x100 {
		m.bootROM = append([]byte(nil), data...)
		m.bootEnabled = true
	}
}

// ReadByte performs one CPU-observable byte read: decode, then charge 4
// master cycles via Tick (spec §4.2 contract).
func (m *MMU) ReadByte(addr uint16) byte {
	v := m.decodeRead(addr)
	m.Tick(4)
	return v
}

// WriteByte performs one CPU-observable byte write.
func (m *MMU) WriteByte(addr uint16, v byte) {
	m.decodeWrite(addr, v)
	m.Tick(4)
}

// ReadWord issues two byte reads, low byte then high byte (spec §4.2).
func (m *MMU) ReadWord(addr uint16) uint16 {
	lo := m.ReadByte(addr)
	hi := m.ReadByte(addr + 1)
	return uint16(lo) | uint16(hi)<<8
}

// WriteWord issues two byte writes, high byte then low byte (matches stack
// push order per spec §4.2).
func (m *MMU) WriteWord(addr uint16, v uint16) {
	m.WriteByte(addr+1, byte(v>>8))
	m.WriteByte(addr, byte(v))
}

// IE/IF accessors used directly by the CPU's interrupt-dispatch check (no
// bus tick charged; the CPU samples these between instructions, not via a
// memory access).
func (m *MMU) IE() byte      { return m.ie }
func (m *MMU) IF() byte      { return m.ifr & 0x1F }
func (m *MMU) SetIF(v byte)  { m.ifr = v & 0x1F }
func (m *MMU) RequestInterrupt(bit int) { m.ifr |= 1 << uint(bit) }

func (m *MMU) decodeRead(addr uint16) byte {
	switch {
	case addr < 0x8000:
		if m.bootEnabled && addr < 0x0100 {
			return m.bootROM[addr]
		}
		return m.cart.ReadROM(addr)
	case addr <= 0x9FFF:
		return m.ppu.CPURead(addr)
	case addr <= 0xBFFF:
		return m.cart.ReadRAM(addr)
	case addr <= 0xDFFF:
		return m.wram[addr-0xC000]
	case addr <= 0xFDFF:
		return m.wram[addr-0x2000-0xC000]
	case addr <= 0xFE9F:
		if m.dma.Active {
			return 0xFF
		}
		return m.ppu.CPURead(addr)
	case addr <= 0xFEFF:
		return 0xFF
	case addr == 0xFF00:
		return m.joypad.read()
	case addr == 0xFF01:
		return 0xFF
	case addr == 0xFF02:
		return 0xFF
	case addr == 0xFF04:
		return m.timer.readDIV()
	case addr == 0xFF05:
		return m.timer.TIMA
	case addr == 0xFF06:
		return m.timer.TMA
	case addr == 0xFF07:
		return 0xF8 | m.timer.TAC
	case addr == 0xFF0F:
		return 0xE0 | (m.ifr & 0x1F)
	case addr >= 0xFF10 && addr <= 0xFF3F:
		return m.apu.CPURead(addr)
	case addr >= 0xFF40 && addr <= 0xFF4B && addr != 0xFF46:
		return m.ppu.CPURead(addr)
	case addr == 0xFF46:
		return m.dma.Reg
	case addr == 0xFF50:
		return 0xFF
	case addr >= 0xFF80 && addr <= 0xFFFE:
		return m.hram[addr-0xFF80]
	case addr == 0xFFFF:
		return m.ie
	default:
		return 0xFF
	}
}

func (m *MMU) decodeWrite(addr uint16, v byte) {
	switch {
	case addr < 0x8000:
		m.cart.WriteROM(addr, v)
	case addr <= 0x9FFF:
		m.ppu.CPUWrite(addr, v)
	case addr <= 0xBFFF:
		m.cart.WriteRAM(addr, v)
	case addr <= 0xDFFF:
		m.wram[addr-0xC000] = v
	case addr <= 0xFDFF:
		m.wram[addr-0x2000-0xC000] = v
	case addr <= 0xFE9F:
		if m.dma.Active {
			return
		}
		m.ppu.CPUWrite(addr, v)
	case addr <= 0xFEFF:
		// unusable, dropped
	case addr == 0xFF00:
		m.joypad.writeSelect(v)
		m.checkJoypadEdge()
	case addr == 0xFF01:
		m.sb = v
	case addr == 0xFF02:
		m.sc = v
	case addr == 0xFF04:
		m.timer.resetDivider(m)
	case addr == 0xFF05:
		m.timer.writeTIMA(v)
	case addr == 0xFF06:
		m.timer.TMA = v
	case addr == 0xFF07:
		m.timer.writeTAC(v, m)
	case addr == 0xFF0F:
		m.ifr = v & 0x1F
	case addr >= 0xFF10 && addr <= 0xFF3F:
		m.apu.CPUWrite(addr, v)
	case addr >= 0xFF40 && addr <= 0xFF4B && addr != 0xFF46:
		m.ppu.CPUWrite(addr, v)
	case addr == 0xFF46:
		m.dma.trigger(v)
	case addr == 0xFF50:
		if v != 0 {
			m.bootEnabled = false
		}
	case addr >= 0xFF80 && addr <= 0xFFFE:
		m.hram[addr-0xFF80] = v
	case addr == 0xFFFF:
		m.ie = v
	}
}

// Tick advances timer, PPU, APU, cartridge, and OAM-DMA by cycles master
// cycles, one dot at a time, in the order spec §2 documents.
func (m *MMU) Tick(cycles int) {
	for i := 0; i < cycles; i++ {
		m.timer.tick(m)
		m.ppu.Tick(1)
		m.apu.Tick(1)
		m.cart.Tick(1)
		m.dma.tick(m)
		m.totalCycles++
	}
}

// Cycles returns the running total of master cycles ticked since the MMU
// was created. The CPU diffs this counter across a Step call to report the
// number of cycles that instruction actually charged, rather than tracking
// per-opcode cycle counts by hand.
func (m *MMU) Cycles() uint64 { return m.totalCycles }

// dmaReadInternal is the DMA copier's own bus read: it must not recursively
// charge cycles (those are already accounted for by the single-dot Tick
// driving the copier).
func (m *MMU) dmaReadInternal(addr uint16) byte { return m.decodeRead(addr) }

type mmuState struct {
	WRAM        [0x2000]byte
	HRAM        [0x7F]byte
	IE, IF      byte
	Timer       timerState
	Joypad      joypadState
	DMA         dmaState
	BootEnabled bool
	SB, SC      byte
}

// SaveState serializes MMU-owned state plus the PPU, APU, and cartridge
// sub-states (ROM and boot ROM excluded per spec §6/§9).
func (m *MMU) SaveState() []byte {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	_ = enc.Encode(mmuState{
		WRAM: m.wram, HRAM: m.hram, IE: m.ie, IF: m.ifr,
		Timer: m.timer, Joypad: m.joypad, DMA: m.dma,
		BootEnabled: m.bootEnabled, SB: m.sb, SC: m.sc,
	})
	_ = enc.Encode(m.ppu.SaveState())
	_ = enc.Encode(m.apu.SaveState())
	_ = enc.Encode(m.cart.SaveState())
	return buf.Bytes()
}

func (m *MMU) LoadState(data []byte) error {
	dec := gob.NewDecoder(bytes.NewReader(data))
	var s mmuState
	if err := dec.Decode(&s); err != nil {
		return err
	}
	m.wram, m.hram, m.ie, m.ifr = s.WRAM, s.HRAM, s.IE, s.IF
	m.timer, m.joypad, m.dma = s.Timer, s.Joypad, s.DMA
	m.bootEnabled, m.sb, m.sc = s.BootEnabled, s.SB, s.SC

	var ppuBytes []byte
	if err := dec.Decode(&ppuBytes); err == nil {
		_ = m.ppu.LoadState(ppuBytes)
	}
	var apuBytes []byte
	if err := dec.Decode(&apuBytes); err == nil {
		_ = m.apu.LoadState(apuBytes)
	}
	var cartBytes []byte
	if err := dec.Decode(&cartBytes); err == nil {
		_ = m.cart.LoadState(cartBytes)
	}
	return nil
}
