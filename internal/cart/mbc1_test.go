package cart

import "testing"

func TestMBC1_BankSwitch(t *testing.T) {
	rom := make([]byte, 128*0x4000)
	for b := 0; b < 128; b++ {
		rom[b*0x4000] = byte(b)
	}
	h := &Header{CartType: 0x03, RAMSizeBytes: 8 * 1024, HasBattery: true}
	m := newMBC1(rom, h)

	if got := m.ReadROM(0x4000); got != 1 {
		t.Fatalf("default bank = %d, want 1", got)
	}

	m.WriteROM(0x2000, 0x05)
	if got := m.ReadROM(0x4000); got != 5 {
		t.Fatalf("after select 5, bank = %d, want 5", got)
	}

	m.WriteROM(0x2000, 0x00)
	if got := m.ReadROM(0x4000); got != 1 {
		t.Fatalf("select 0 remaps to 1, got %d", got)
	}
}

func TestMBC1_BankZeroQuirk(t *testing.T) {
	rom := make([]byte, 128*0x4000)
	for b := 0; b < 128; b++ {
		rom[b*0x4000] = byte(b)
	}
	h := &Header{CartType: 0x03, RAMSizeBytes: 8 * 1024, HasBattery: true}
	m := newMBC1(rom, h)

	m.WriteROM(0x4000, 0x01) // bank2 = 1
	m.WriteROM(0x2000, 0x20) // low5 = 0x20&0x1F = 0 -> remapped to 1

	got := m.ReadROM(0x4000)
	if got != 0x21 {
		t.Fatalf("bank-zero quirk: got bank %d, want 0x21", got)
	}
}

func TestMBC1_RAMEnableAndRoundTrip(t *testing.T) {
	rom := make([]byte, 2*0x4000)
	h := &Header{CartType: 0x03, RAMSizeBytes: 8 * 1024, HasBattery: true}
	m := newMBC1(rom, h)

	m.WriteRAM(0xA000, 0x42)
	if got := m.ReadRAM(0xA000); got != 0xFF {
		t.Fatalf("write while disabled should not stick, read %#x", got)
	}

	m.WriteROM(0x0000, 0x0A)
	m.WriteRAM(0xA000, 0x42)
	if got := m.ReadRAM(0xA000); got != 0x42 {
		t.Fatalf("ReadRAM = %#x, want 0x42", got)
	}

	saved := m.SaveData()
	m2 := newMBC1(rom, h)
	if err := m2.LoadSaveData(saved); err != nil {
		t.Fatalf("LoadSaveData: %v", err)
	}
	m2.WriteROM(0x0000, 0x0A)
	if got := m2.ReadRAM(0xA000); got != 0x42 {
		t.Fatalf("after round trip, ReadRAM = %#x, want 0x42", got)
	}
}

func TestMBC1_SaveStateRoundTrip(t *testing.T) {
	rom := make([]byte, 4*0x4000)
	for b := 0; b < 4; b++ {
		rom[b*0x4000] = byte(b)
	}
	h := &Header{CartType: 0x03, RAMSizeBytes: 8 * 1024, HasBattery: true}
	m := newMBC1(rom, h)
	m.WriteROM(0x0000, 0x0A)
	m.WriteROM(0x2000, 0x03)
	m.WriteRAM(0xA000, 0x99)

	state := m.SaveState()
	m2 := newMBC1(rom, h)
	if err := m2.LoadState(state); err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if got := m2.ReadROM(0x4000); got != 3 {
		t.Fatalf("bank after LoadState = %d, want 3", got)
	}
	if got := m2.ReadRAM(0xA000); got != 0x99 {
		t.Fatalf("ram after LoadState = %#x, want 0x99", got)
	}
}
