package cart

import (
	"encoding/binary"
	"strings"
)

const (
	headerStart = 0x0100
	headerEnd   = 0x014F
)

var nintendoLogo = [48]byte{
	0xCE, 0xED, 0x66, 0x66, 0xCC, 0x0D, 0x00, 0x0B, 0x03, 0x73, 0x00, 0x83, 0x00, 0x0C, 0x00, 0x0D,
	0x00, 0x08, 0x11, 0x1F, 0x88, 0x89, 0x00, 0x0E, 0xDC, 0xCC, 0x6E, 0xE6, 0xDD, 0xDD, 0xD9, 0x99,
	0xBB, 0xBB, 0x67, 0x63, 0x6E, 0x0E, 0xEC, 0xCC, 0xDD, 0xDC, 0x99, 0x9F, 0xBB, 0xB9, 0x33, 0x3E,
}

// Header is the decoded content of ROM bytes 0x100-0x14F (spec §3, §6).
type Header struct {
	Title        string
	CartType     byte
	ROMSizeCode  byte
	RAMSizeCode  byte
	Destination  byte
	ROMSizeBytes int
	ROMBanks     int
	RAMSizeBytes int
	HasBattery   bool
	HasRTC       bool
}

// ParseHeader decodes and validates the header per spec §7 (InvalidRomHeader
// covers a header too short, a title that doesn't decode, a bank count out of
// range, or a destination byte outside {0,1}).
func ParseHeader(rom []byte) (*Header, error) {
	if len(rom) < headerEnd+1 {
		return nil, newErr(InvalidRomHeader, "ROM is %d bytes, need at least %d", len(rom), headerEnd+1)
	}

	rawTitle := rom[0x0134:0x0144]
	title := strings.TrimRight(string(rawTitle), "\x00")
	for _, r := range title {
		if r < 0x20 || r > 0x7E {
			return nil, newErr(InvalidRomHeader, "title bytes at 0x134-0x143 are not printable ASCII")
		}
	}

	h := &Header{
		Title:       title,
		CartType:    rom[0x0147],
		ROMSizeCode: rom[0x0148],
		RAMSizeCode: rom[0x0149],
		Destination: rom[0x014A],
	}

	size, banks, ok := decodeROMSize(h.ROMSizeCode)
	if !ok {
		return nil, newErr(InvalidRomHeader, "ROM size code 0x%02X out of range", h.ROMSizeCode)
	}
	if banks < 2 || banks > 512 {
		return nil, newErr(InvalidRomHeader, "decoded %d ROM banks, want 2..512", banks)
	}
	h.ROMSizeBytes, h.ROMBanks = size, banks

	ramSize, ok := decodeRAMSize(h.RAMSizeCode)
	if !ok {
		return nil, newErr(InvalidRomHeader, "RAM size code 0x%02X out of range", h.RAMSizeCode)
	}
	h.RAMSizeBytes = ramSize

	if h.Destination != 0x00 && h.Destination != 0x01 {
		return nil, newErr(InvalidRomHeader, "destination byte 0x%02X not in {0,1}", h.Destination)
	}

	h.HasBattery, h.HasRTC = batteryAndRTC(h.CartType)
	return h, nil
}

// HeaderChecksumOK recomputes the 0x14D checksum; unchecked by the core per
// spec §6 and kept as a diagnostic helper. Neither front-end calls it.
func HeaderChecksumOK(rom []byte) bool {
	if len(rom) < 0x014E {
		return false
	}
	var sum byte
	for addr := 0x0134; addr <= 0x014C; addr++ {
		sum = sum - rom[addr] - 1
	}
	return sum == rom[0x014D]
}

// LogoOK reports whether the Nintendo logo bytes at 0x104-0x133 match.
func LogoOK(rom []byte) bool {
	if len(rom) < 0x104+48 {
		return false
	}
	for i := 0; i < 48; i++ {
		if rom[0x104+i] != nintendoLogo[i] {
			return false
		}
	}
	return true
}

func GlobalChecksum(rom []byte) uint16 {
	if len(rom) < 0x150 {
		return 0
	}
	return binary.BigEndian.Uint16(rom[0x014E:0x0150])
}

func decodeROMSize(code byte) (size, banks int, ok bool) {
	if code > 0x08 {
		return 0, 0, false
	}
	banks = 2 << code
	return banks * 0x4000, banks, true
}

func decodeRAMSize(code byte) (int, bool) {
	switch code {
	case 0x00:
		return 0, true
	case 0x01:
		return 0, true // unused code, historically 2KiB; treat as none
	case 0x02:
		return 8 * 1024, true
	case 0x03:
		return 32 * 1024, true
	case 0x04:
		return 128 * 1024, true
	case 0x05:
		return 64 * 1024, true
	default:
		return 0, false
	}
}

func batteryAndRTC(cartType byte) (battery, rtc bool) {
	switch cartType {
	case 0x03, 0x06, 0x09, 0x0D, 0x0F, 0x10, 0x13, 0x1B, 0x1E, 0x22, 0xFF:
		battery = true
	}
	switch cartType {
	case 0x0F, 0x10:
		rtc = true
	}
	return
}

func mapperKindOf(cartType byte) (kind byte, ok bool) {
	switch cartType {
	case 0x00:
		return kindROMOnly, true
	case 0x01, 0x02, 0x03:
		return kindMBC1, true
	case 0x05, 0x06:
		return kindMBC2, true
	case 0x0F, 0x10, 0x11, 0x12, 0x13:
		return kindMBC3, true
	case 0x19, 0x1A, 0x1B, 0x1C, 0x1D, 0x1E:
		return kindMBC5, true
	default:
		return 0, false
	}
}
