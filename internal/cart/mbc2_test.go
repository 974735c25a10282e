package cart

import "testing"

func TestMBC2_BankSelectViaAddressBit8(t *testing.T) {
	rom := make([]byte, 16*0x4000)
	for b := 0; b < 16; b++ {
		rom[b*0x4000] = byte(b)
	}
	h := &Header{CartType: 0x05}
	m := newMBC2(rom, h)

	// addr bit 8 clear: RAM-enable write, must not move the bank.
	m.WriteROM(0x0000, 0x05)
	if got := m.ReadROM(0x4000); got != 1 {
		t.Fatalf("RAM-enable write moved bank: got %d, want 1", got)
	}

	// addr bit 8 set: ROM-bank-select write.
	m.WriteROM(0x0100, 0x05)
	if got := m.ReadROM(0x4000); got != 5 {
		t.Fatalf("bank select = %d, want 5", got)
	}

	m.WriteROM(0x0100, 0x00)
	if got := m.ReadROM(0x4000); got != 1 {
		t.Fatalf("select 0 remaps to 1, got %d", got)
	}
}

func TestMBC2_RAMNibbleAndHighBitsSet(t *testing.T) {
	rom := make([]byte, 2*0x4000)
	h := &Header{CartType: 0x06, HasBattery: true}
	m := newMBC2(rom, h)

	m.WriteROM(0x0000, 0x0A) // enable, bit8 clear
	m.WriteRAM(0xA000, 0xFF)
	if got := m.ReadRAM(0xA000); got != 0xFF {
		t.Fatalf("ReadRAM = %#x, want 0xFF (low nibble all set)", got)
	}
	m.WriteRAM(0xA000, 0x03)
	if got := m.ReadRAM(0xA000); got != 0xF3 {
		t.Fatalf("ReadRAM = %#x, want 0xF3", got)
	}
}

func TestMBC2_SaveRoundTrip(t *testing.T) {
	rom := make([]byte, 2*0x4000)
	h := &Header{CartType: 0x06, HasBattery: true}
	m := newMBC2(rom, h)
	m.WriteROM(0x0000, 0x0A)
	m.WriteRAM(0xA001, 0x07)

	data := m.SaveData()
	if len(data) != 512 {
		t.Fatalf("SaveData length = %d, want 512", len(data))
	}

	m2 := newMBC2(rom, h)
	if err := m2.LoadSaveData(data); err != nil {
		t.Fatalf("LoadSaveData: %v", err)
	}
	m2.WriteROM(0x0000, 0x0A)
	if got := m2.ReadRAM(0xA001); got != 0xF7 {
		t.Fatalf("ReadRAM after round trip = %#x, want 0xF7", got)
	}
}
