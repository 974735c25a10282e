package cart

import "testing"

func TestNewCartridge_AllKnownTypes(t *testing.T) {
	cases := []struct {
		cartType byte
		want     byte
	}{
		{0x00, kindROMOnly},
		{0x01, kindMBC1},
		{0x02, kindMBC1},
		{0x03, kindMBC1},
		{0x05, kindMBC2},
		{0x06, kindMBC2},
		{0x0F, kindMBC3},
		{0x10, kindMBC3},
		{0x11, kindMBC3},
		{0x12, kindMBC3},
		{0x13, kindMBC3},
		{0x19, kindMBC5},
		{0x1A, kindMBC5},
		{0x1B, kindMBC5},
		{0x1C, kindMBC5},
		{0x1D, kindMBC5},
		{0x1E, kindMBC5},
	}
	for _, c := range cases {
		rom := makeMinimalROM(c.cartType, 0x00, 0x00, 0x00)
		cart, err := NewCartridge(rom)
		if err != nil {
			t.Fatalf("cartType 0x%02X: unexpected error: %v", c.cartType, err)
		}
		kind, _ := mapperKindOf(c.cartType)
		if kind != c.want {
			t.Fatalf("cartType 0x%02X: mapperKindOf = %d, want %d", c.cartType, kind, c.want)
		}
		if cart.Header().CartType != c.cartType {
			t.Fatalf("cartType 0x%02X: Header().CartType = %#x", c.cartType, cart.Header().CartType)
		}
	}
}

func TestROMOnly_RejectsSaveData(t *testing.T) {
	rom := makeMinimalROM(0x00, 0x00, 0x00, 0x00)
	cart, err := NewCartridge(rom)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := cart.LoadSaveData([]byte{1, 2, 3}); err == nil {
		t.Fatalf("expected SaveNotSupported error")
	} else if e, ok := err.(*Error); !ok || e.Kind != SaveNotSupported {
		t.Fatalf("expected SaveNotSupported, got %v", err)
	}
}

func TestROMOnly_ReadROM(t *testing.T) {
	rom := makeMinimalROM(0x00, 0x00, 0x00, 0x00)
	rom[0x7FFF] = 0xAB
	cart, err := NewCartridge(rom)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := cart.ReadROM(0x7FFF); got != 0xAB {
		t.Fatalf("ReadROM(0x7FFF) = %#x, want 0xAB", got)
	}
}
