package cart

import (
	"bytes"
	"encoding/gob"
)

// mbc1 implements the MBC1 banking scheme (spec §4.5 table, §8 properties 7/8,
// and the bank-zero quirk tested in the end-to-end scenarios). Grounded on the
// teacher's internal/cart/mbc1.go, generalized to carry a Header and the typed
// error/save-data contract.
type mbc1 struct {
	rom []byte
	ram []byte
	h   *Header

	romBankLow5 byte // bits 0-4 of the selected ROM bank, 0 remapped to 1
	bank2       byte // bits 5-6 in ROM-banking mode, or RAM bank in RAM-banking mode
	ramEnabled  bool
	mode        byte // 0: ROM banking, 1: RAM banking
}

func newMBC1(rom []byte, h *Header) *mbc1 {
	m := &mbc1{rom: rom, h: h, romBankLow5: 1}
	if h.RAMSizeBytes > 0 {
		m.ram = make([]byte, h.RAMSizeBytes)
	}
	return m
}

func (m *mbc1) Header() *Header { return m.h }

func (m *mbc1) romBank() int {
	bank := int(m.romBankLow5) | int(m.bank2)<<5
	return bank
}

func (m *mbc1) ReadROM(addr uint16) byte {
	switch {
	case addr < 0x4000:
		bank := 0
		if m.mode == 1 {
			bank = int(m.bank2) << 5
		}
		off := bank*0x4000 + int(addr)
		if off < len(m.rom) {
			return m.rom[off]
		}
		return 0xFF
	default: // 0x4000-0x7FFF
		off := m.romBank()*0x4000 + int(addr-0x4000)
		if off < len(m.rom) {
			return m.rom[off]
		}
		return 0xFF
	}
}

func (m *mbc1) WriteROM(addr uint16, v byte) {
	switch {
	case addr < 0x2000:
		m.ramEnabled = (v & 0x0F) == 0x0A
	case addr < 0x4000:
		v &= 0x1F
		if v == 0 {
			v = 1
		}
		m.romBankLow5 = v
	case addr < 0x6000:
		m.bank2 = v & 0x03
	default: // 0x6000-0x7FFF
		m.mode = v & 0x01
	}
}

func (m *mbc1) ramOffset(addr uint16) (int, bool) {
	if !m.ramEnabled || len(m.ram) == 0 {
		return 0, false
	}
	bank := 0
	if m.mode == 1 {
		bank = int(m.bank2)
	}
	off := bank*0x2000 + int(addr-0xA000)
	if off < 0 || off >= len(m.ram) {
		return 0, false
	}
	return off, true
}

func (m *mbc1) ReadRAM(addr uint16) byte {
	if off, ok := m.ramOffset(addr); ok {
		return m.ram[off]
	}
	return 0xFF
}

func (m *mbc1) WriteRAM(addr uint16, v byte) {
	if off, ok := m.ramOffset(addr); ok {
		m.ram[off] = v
	}
}

func (m *mbc1) Tick(cycles int) {}

func (m *mbc1) SaveData() []byte {
	if !m.h.HasBattery || len(m.ram) == 0 {
		return nil
	}
	out := make([]byte, len(m.ram))
	copy(out, m.ram)
	return out
}

func (m *mbc1) LoadSaveData(data []byte) error {
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

type mbc1State struct {
	RAM                   []byte
	RomBankLow5, Bank2    byte
	RamEnabled            bool
	Mode                  byte
}

func (m *mbc1) SaveState() []byte {
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(mbc1State{
		RAM: m.ram, RomBankLow5: m.romBankLow5, Bank2: m.bank2,
		RamEnabled: m.ramEnabled, Mode: m.mode,
	})
	return buf.Bytes()
}

func (m *mbc1) LoadState(data []byte) error {
	var s mbc1State
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return err
	}
	if len(s.RAM) == len(m.ram) {
		copy(m.ram, s.RAM)
	}
	m.romBankLow5, m.bank2, m.ramEnabled, m.mode = s.RomBankLow5, s.Bank2, s.RamEnabled, s.Mode
	return nil
}
