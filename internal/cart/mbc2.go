package cart

import (
	"bytes"
	"encoding/gob"
)

// mbc2 implements the MBC2 banking scheme (spec §4.5 table): fixed low bank,
// a 4-bit high bank (zero remapped to one), and 512 nibbles of internal RAM
// addressed through the low byte of the cartridge-RAM window. Not present in
// the teacher repo; grounded directly on spec.md §4.5 and §6.
type mbc2 struct {
	rom []byte
	ram [512]byte // low nibble significant; high nibble reads as 1s
	h   *Header

	romBank    byte // 4 bits, 0 remapped to 1
	ramEnabled bool
}

func newMBC2(rom []byte, h *Header) *mbc2 {
	return &mbc2{rom: rom, h: h, romBank: 1}
}

func (m *mbc2) Header() *Header { return m.h }

func (m *mbc2) ReadROM(addr uint16) byte {
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

// WriteROM: bit 8 of the address distinguishes RAM-enable writes (bit8=0)
// from ROM-bank writes (bit8=1), per spec §4.5.
func (m *mbc2) WriteROM(addr uint16, v byte) {
	if addr >= 0x4000 {
		return
	}
	if addr&0x0100 == 0 {
		m.ramEnabled = (v & 0x0F) == 0x0A
		return
	}
	v &= 0x0F
	if v == 0 {
		v = 1
	}
	m.romBank = v
}

func (m *mbc2) ReadRAM(addr uint16) byte {
	if !m.ramEnabled {
		return 0xFF
	}
	idx := int(addr-0xA000) & 0x1FF
	return 0xF0 | (m.ram[idx] & 0x0F)
}

func (m *mbc2) WriteRAM(addr uint16, v byte) {
	if !m.ramEnabled {
		return
	}
	idx := int(addr-0xA000) & 0x1FF
	m.ram[idx] = v & 0x0F
}

func (m *mbc2) Tick(cycles int) {}

func (m *mbc2) SaveData() []byte {
	if !m.h.HasBattery {
		return nil
	}
	out := make([]byte, 512)
	copy(out, m.ram[:])
	return out
}

func (m *mbc2) LoadSaveData(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if !m.h.HasBattery {
		return newErr(SaveNotSupported, "cartridge type 0x%02X has no battery", m.h.CartType)
	}
	if len(data) != 512 {
		return newErr(InvalidSave, "save is %d bytes, want 512", len(data))
	}
	copy(m.ram[:], data)
	return nil
}

type mbc2State struct {
	RAM        [512]byte
	RomBank    byte
	RamEnabled bool
}

func (m *mbc2) SaveState() []byte {
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(mbc2State{RAM: m.ram, RomBank: m.romBank, RamEnabled: m.ramEnabled})
	return buf.Bytes()
}

func (m *mbc2) LoadState(data []byte) error {
	var s mbc2State
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return err
	}
	m.ram, m.romBank, m.ramEnabled = s.RAM, s.RomBank, s.RamEnabled
	return nil
}
