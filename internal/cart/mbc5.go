package cart

import (
	"bytes"
	"encoding/gob"
)

// mbc5 supports up to 8 MiB ROM (9-bit bank) and up to 16 RAM banks, masked to
// 4 when the cartridge type has rumble (spec §4.5). Grounded on the teacher's
// internal/cart/mbc5.go.
type mbc5 struct {
	rom []byte
	ram []byte
	h   *Header

	romBank    uint16 // 9 bits, 0 is a valid bank (no zero-remap on MBC5)
	ramBank    byte   // low 4 bits; masked to 3 when rumble is present
	ramEnabled bool
	rumble     bool
}

func newMBC5(rom []byte, h *Header) *mbc5 {
	m := &mbc5{rom: rom, h: h, romBank: 1}
	if h.RAMSizeBytes > 0 {
		m.ram = make([]byte, h.RAMSizeBytes)
	}
	switch h.CartType {
	case 0x1C, 0x1D, 0x1E:
		m.rumble = true
	}
	return m
}

func (m *mbc5) Header() *Header { return m.h }

func (m *mbc5) ReadROM(addr uint16) byte {
	switch {
	case addr < 0x4000:
		if int(addr) < len(m.rom) {
			return m.rom[addr]
		}
		return 0xFF
	default:
		off := int(m.romBank)*0x4000 + int(addr-0x4000)
		if off < len(m.rom) {
			return m.rom[off]
		}
		return 0xFF
	}
}

func (m *mbc5) WriteROM(addr uint16, v byte) {
	switch {
	case addr < 0x2000:
		m.ramEnabled = (v & 0x0F) == 0x0A
	case addr < 0x3000:
		m.romBank = (m.romBank & 0x100) | uint16(v)
	case addr < 0x4000:
		if v&0x01 != 0 {
			m.romBank |= 0x100
		} else {
			m.romBank &^= 0x100
		}
	case addr < 0x6000:
		bank := v & 0x0F
		if m.rumble {
			bank &= 0x03
		}
		m.ramBank = bank
	}
}

func (m *mbc5) ramOffset(addr uint16) (int, bool) {
	if !m.ramEnabled || len(m.ram) == 0 {
		return 0, false
	}
	off := int(m.ramBank)*0x2000 + int(addr-0xA000)
	if off < 0 || off >= len(m.ram) {
		return 0, false
	}
	return off, true
}

func (m *mbc5) ReadRAM(addr uint16) byte {
	if off, ok := m.ramOffset(addr); ok {
		return m.ram[off]
	}
	return 0xFF
}

func (m *mbc5) WriteRAM(addr uint16, v byte) {
	if off, ok := m.ramOffset(addr); ok {
		m.ram[off] = v
	}
}

func (m *mbc5) Tick(cycles int) {}

func (m *mbc5) SaveData() []byte {
	if !m.h.HasBattery || len(m.ram) == 0 {
		return nil
	}
	out := make([]byte, len(m.ram))
	copy(out, m.ram)
	return out
}

func (m *mbc5) LoadSaveData(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if !m.h.HasBattery {
		return newErr(SaveNotSupported, "cartridge type 0x%02X has no battery", m.h.CartType)
	}
	if len(data) != len(m.ram) {
		return newErr(InvalidSave, "save is %d bytes, want %d", len(data), len(m.ram))
	}
	copy(m.ram, data)
	return nil
}

type mbc5State struct {
	RAM               []byte
	RomBank           uint16
	RamBank           byte
	RamEnabled        bool
}

func (m *mbc5) SaveState() []byte {
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(mbc5State{RAM: m.ram, RomBank: m.romBank, RamBank: m.ramBank, RamEnabled: m.ramEnabled})
	return buf.Bytes()
}

func (m *mbc5) LoadState(data []byte) error {
	var s mbc5State
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return err
	}
	if len(s.RAM) == len(m.ram) {
		copy(m.ram, s.RAM)
	}
	m.romBank, m.ramBank, m.ramEnabled = s.RomBank, s.RamBank, s.RamEnabled
	return nil
}
