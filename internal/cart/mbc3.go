package cart

import (
	"bytes"
	"encoding/gob"
	"time"
)

// mbc3 implements MBC1-style ROM banking plus RAM banks 0-3 and, for RTC
// cartridge types, the five-register real-time clock with latch and save
// persistence (spec §4.5, §6, §8 property 9). Grounded on the teacher's
// internal/cart/mbc3.go for the banking shape; the RTC is new.
type mbc3 struct {
	rom []byte
	ram []byte
	h   *Header

	romBank byte // 7 bits, 0 remapped to 1
	ramSel  byte // 0-3 selects RAM bank; 0x08-0x0C selects an RTC register
	enabled bool // RAM/RTC register access enable

	rtc *rtcState
}

func newMBC3(rom []byte, h *Header) *mbc3 {
	m := &mbc3{rom: rom, h: h, romBank: 1}
	if h.RAMSizeBytes > 0 {
		m.ram = make([]byte, h.RAMSizeBytes)
	}
	if h.HasRTC {
		m.rtc = &rtcState{}
	}
	return m
}

func (m *mbc3) Header() *Header { return m.h }

func (m *mbc3) ReadROM(addr uint16) byte {
	switch {
	case addr < 0x4000:
		if int(addr) < len(m.rom) {
			return m.rom[addr]
		}
		return 0xFF
	default:
		bank := int(m.romBank & 0x7F)
		if bank == 0 {
			bank = 1
		}
		off := bank*0x4000 + int(addr-0x4000)
		if off < len(m.rom) {
			return m.rom[off]
		}
		return 0xFF
	}
}

func (m *mbc3) WriteROM(addr uint16, v byte) {
	switch {
	case addr < 0x2000:
		m.enabled = (v & 0x0F) == 0x0A
	case addr < 0x4000:
		v &= 0x7F
		if v == 0 {
			v = 1
		}
		m.romBank = v
	case addr < 0x6000:
		m.ramSel = v
	default: // 0x6000-0x7FFF: RTC latch edge
		if m.rtc != nil {
			m.rtc.latchWrite(v & 0x01)
		}
	}
}

func (m *mbc3) ReadRAM(addr uint16) byte {
	if !m.enabled {
		return 0xFF
	}
	if m.rtc != nil && m.ramSel >= 0x08 && m.ramSel <= 0x0C {
		return m.readRTCRegister()
	}
	if m.ramSel > 0x03 || len(m.ram) == 0 {
		return 0xFF
	}
	off := int(m.ramSel)*0x2000 + int(addr-0xA000)
	if off < 0 || off >= len(m.ram) {
		return 0xFF
	}
	return m.ram[off]
}

func (m *mbc3) WriteRAM(addr uint16, v byte) {
	if !m.enabled {
		return
	}
	if m.rtc != nil && m.ramSel >= 0x08 && m.ramSel <= 0x0C {
		m.writeRTCRegister(v)
		return
	}
	if m.ramSel > 0x03 || len(m.ram) == 0 {
		return
	}
	off := int(m.ramSel)*0x2000 + int(addr-0xA000)
	if off < 0 || off >= len(m.ram) {
		return
	}
	m.ram[off] = v
}

func (m *mbc3) readRTCRegister() byte {
	c := m.rtc.Latched
	switch m.ramSel {
	case 0x08:
		return c.Seconds
	case 0x09:
		return c.Minutes
	case 0x0A:
		return c.Hours
	case 0x0B:
		return c.DaysLow
	case 0x0C:
		return c.DaysHigh
	default:
		return 0xFF
	}
}

func (m *mbc3) writeRTCRegister(v byte) {
	c := &m.rtc.Current
	switch m.ramSel {
	case 0x08:
		c.Seconds = v
	case 0x09:
		c.Minutes = v
	case 0x0A:
		c.Hours = v
	case 0x0B:
		c.DaysLow = v
	case 0x0C:
		c.DaysHigh = v & 0xC1
	}
}

func (m *mbc3) Tick(cycles int) {
	if m.rtc != nil {
		m.rtc.tick(cycles)
	}
}

func (m *mbc3) SaveData() []byte {
	if !m.h.HasBattery {
		return nil
	}
	out := make([]byte, len(m.ram))
	copy(out, m.ram)
	if m.rtc != nil {
		out = append(out, encodeRTCTail(m.rtc, time.Now().Unix())...)
	}
	return out
}

func (m *mbc3) LoadSaveData(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if !m.h.HasBattery {
		return newErr(SaveNotSupported, "cartridge type 0x%02X has no battery", m.h.CartType)
	}
	ramLen := len(m.ram)
	tail := len(data) - ramLen
	if m.rtc != nil {
		if tail != rtcTailSize {
			return newErr(InvalidRtcData, "expected %d-byte RTC tail, got %d extra bytes", rtcTailSize, tail)
		}
		rtc, savedAt, err := decodeRTCTail(data[ramLen:])
		if err != nil {
			return err
		}
		copy(m.ram, data[:ramLen])
		m.rtc = rtc
		m.rtc.applyElapsedRealSeconds(time.Now().Unix() - savedAt)
		return nil
	}
	if tail != 0 {
		return newErr(InvalidRtcData, "RTC tail present on a non-RTC cartridge")
	}
	if len(data) != ramLen {
		return newErr(InvalidSave, "save is %d bytes, want %d", len(data), ramLen)
	}
	copy(m.ram, data)
	return nil
}

type mbc3State struct {
	RAM            []byte
	RomBank, RamSel byte
	Enabled        bool
	RTC            *rtcState
}

func (m *mbc3) SaveState() []byte {
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(mbc3State{
		RAM: m.ram, RomBank: m.romBank, RamSel: m.ramSel, Enabled: m.enabled, RTC: m.rtc,
	})
	return buf.Bytes()
}

func (m *mbc3) LoadState(data []byte) error {
	var s mbc3State
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return err
	}
	if len(s.RAM) == len(m.ram) {
		copy(m.ram, s.RAM)
	}
	m.romBank, m.ramSel, m.enabled = s.RomBank, s.RamSel, s.Enabled
	if m.rtc != nil && s.RTC != nil {
		m.rtc = s.RTC
	}
	return nil
}
