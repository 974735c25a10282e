package cart

// romOnly is a cartridge with no banking and no external RAM (spec §4.5 table).
type romOnly struct {
	rom []byte
	h   *Header
}

func newROMOnly(rom []byte, h *Header) *romOnly { return &romOnly{rom: rom, h: h} }

func (c *romOnly) Header() *Header { return c.h }

func (c *romOnly) ReadROM(addr uint16) byte {
	if int(addr) < len(c.rom) {
		return c.rom[addr]
	}
	return 0xFF
}

func (c *romOnly) WriteROM(addr uint16, v byte) {}
func (c *romOnly) ReadRAM(addr uint16) byte     { return 0xFF }
func (c *romOnly) WriteRAM(addr uint16, v byte) {}
func (c *romOnly) Tick(cycles int)              {}

func (c *romOnly) SaveData() []byte                 { return nil }
func (c *romOnly) LoadSaveData(data []byte) error {
	if len(data) != 0 {
		return newErr(SaveNotSupported, "cartridge type 0x%02X has no battery RAM", c.h.CartType)
	}
	return nil
}

func (c *romOnly) SaveState() []byte           { return nil }
func (c *romOnly) LoadState(data []byte) error { return nil }
