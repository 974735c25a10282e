// Package ppu implements the pixel processing unit: VRAM/OAM storage, the
// LCDC/STAT/scroll register file, per-scanline mode timing, and the
// FIFO/fetcher pixel pipeline that composites background, window, and
// sprites into a 160x144 RGBA framebuffer.
package ppu

import (
	"bytes"
	"encoding/gob"
)

// InterruptRequester requests an interrupt-flag bit (0:VBlank, 1:LCD-Stat).
type InterruptRequester func(bit int)

const (
	ScreenWidth  = 160
	ScreenHeight = 144

	dotsPerLine  = 456
	mode2Dots    = 80
	linesPerVBlk = 10
)

// PPU owns VRAM, OAM, the LCD register file, and the pixel pipeline.
type PPU struct {
	vram [0x2000]byte // 0x8000-0x9FFF
	oam  [0xA0]byte   // 0xFE00-0xFE9F

	lcdc byte // FF40
	stat byte // FF41
	scy  byte // FF42
	scx  byte // FF43
	ly   byte // FF44
	lyc  byte // FF45
	bgp  byte // FF47
	obp0 byte // FF48
	obp1 byte // FF49
	wy   byte // FF4A
	wx   byte // FF4B

	dot         int  // dot within the current line, 0..455
	mode3Len    int  // computed once per line when mode 3 begins
	windowLine  int  // internal window-line counter
	windowDrawn bool // whether the window rendered on the current line
	statLine    bool // last computed OR of enabled STAT conditions

	frame [ScreenHeight][ScreenWidth]uint32 // RGBA8888, row-major

	req InterruptRequester
}

func New(req InterruptRequester) *PPU { return &PPU{req: req} }

func (p *PPU) CPURead(addr uint16) byte {
	switch {
	case addr >= 0x8000 && addr <= 0x9FFF:
		if p.mode() == 3 {
			return 0xFF
		}
		return p.vram[addr-0x8000]
	case addr >= 0xFE00 && addr <= 0xFE9F:
		m := p.mode()
		if m == 2 || m == 3 {
			return 0xFF
		}
		return p.oam[addr-0xFE00]
	case addr == 0xFF40:
		return p.lcdc
	case addr == 0xFF41:
		return 0x80 | (p.stat & 0x7F)
	case addr == 0xFF42:
		return p.scy
	case addr == 0xFF43:
		return p.scx
	case addr == 0xFF44:
		return p.ly
	case addr == 0xFF45:
		return p.lyc
	case addr == 0xFF47:
		return p.bgp
	case addr == 0xFF48:
		return p.obp0
	case addr == 0xFF49:
		return p.obp1
	case addr == 0xFF4A:
		return p.wy
	case addr == 0xFF4B:
		return p.wx
	default:
		return 0xFF
	}
}

func (p *PPU) CPUWrite(addr uint16, v byte) {
	switch {
	case addr >= 0x8000 && addr <= 0x9FFF:
		if p.mode() == 3 {
			return
		}
		p.vram[addr-0x8000] = v
	case addr >= 0xFE00 && addr <= 0xFE9F:
		m := p.mode()
		if m == 2 || m == 3 {
			return
		}
		p.oam[addr-0xFE00] = v
	case addr == 0xFF40:
		prev := p.lcdc
		p.lcdc = v
		if prev&0x80 != 0 && v&0x80 == 0 {
			p.ly, p.dot, p.windowLine = 0, 0, 0
			p.setMode(0)
		} else if prev&0x80 == 0 && v&0x80 != 0 {
			p.ly, p.dot, p.windowLine = 0, 0, 0
			p.setMode(2)
		}
	case addr == 0xFF41:
		p.stat = (p.stat & 0x07) | (v & 0x78)
	case addr == 0xFF42:
		p.scy = v
	case addr == 0xFF43:
		p.scx = v
	case addr == 0xFF44:
		// LY is read-only on real hardware; ignored here.
	case addr == 0xFF45:
		p.lyc = v
		p.evalStat()
	case addr == 0xFF47:
		p.bgp = v
	case addr == 0xFF48:
		p.obp0 = v
	case addr == 0xFF49:
		p.obp1 = v
	case addr == 0xFF4A:
		p.wy = v
	case addr == 0xFF4B:
		p.wx = v
	}
}

// DMAWriteOAM is the OAM-DMA copier's own write path: it bypasses the
// mode 2/3 CPU lock since the copier, not the CPU, owns the bus during the
// transfer (spec §4.2).
func (p *PPU) DMAWriteOAM(offset byte, v byte) { p.oam[offset] = v }

func (p *PPU) mode() byte { return p.stat & 0x03 }

func (p *PPU) setMode(m byte) {
	p.stat = (p.stat &^ 0x03) | (m & 0x03)
	p.evalStat()
}

// evalStat recomputes the OR of enabled STAT conditions and raises LCD-Stat
// on the rising edge only (spec §4.3, simplified per §9's documented
// imprecision allowance).
func (p *PPU) evalStat() {
	lycHit := p.ly == p.lyc
	if lycHit {
		p.stat |= 1 << 2
	} else {
		p.stat &^= 1 << 2
	}
	m := p.mode()
	line := (lycHit && p.stat&(1<<6) != 0) ||
		(m == 0 && p.stat&(1<<3) != 0) ||
		(m == 2 && p.stat&(1<<5) != 0) ||
		(m == 1 && p.stat&(1<<4) != 0)
	if line && !p.statLine && p.req != nil {
		p.req(1)
	}
	p.statLine = line
}

// Tick advances the PPU by the given number of master-cycle dots.
func (p *PPU) Tick(cycles int) {
	for i := 0; i < cycles; i++ {
		p.tickOne()
	}
}

func (p *PPU) tickOne() {
	if p.lcdc&0x80 == 0 {
		return
	}
	p.dot++

	if p.ly < ScreenHeight {
		switch {
		case p.dot == 1:
			p.setMode(2)
		case p.dot == mode2Dots+1:
			p.mode3Len = p.mode3Length(p.ly)
			p.setMode(3)
		case p.dot == mode2Dots+p.mode3Len+1:
			p.renderScanline()
			p.setMode(0)
		}
	}

	if p.dot >= dotsPerLine {
		p.dot = 0
		p.ly++
		if p.ly == ScreenHeight {
			p.setMode(1)
			if p.req != nil {
				p.req(0)
			}
		} else if p.ly > ScreenHeight+linesPerVBlk-1 {
			p.ly = 0
			p.windowLine = 0
			p.setMode(2)
		} else if p.ly < ScreenHeight {
			p.setMode(2)
		}
		p.evalStat()
	}
}

// Framebuffer returns the pixel buffer itself, borrowed; each row is rewritten
// by the Tick call that finishes that scanline, so mid-frame it holds rows of
// both the current and the previous frame.
func (p *PPU) Framebuffer() *[ScreenHeight][ScreenWidth]uint32 { return &p.frame }

func (p *PPU) LCDC() byte { return p.lcdc }
func (p *PPU) STAT() byte { return p.stat }
func (p *PPU) SCY() byte  { return p.scy }
func (p *PPU) SCX() byte  { return p.scx }
func (p *PPU) WY() byte   { return p.wy }
func (p *PPU) WX() byte   { return p.wx }
func (p *PPU) LY() byte   { return p.ly }
func (p *PPU) BGP() byte  { return p.bgp }
func (p *PPU) OBP0() byte { return p.obp0 }
func (p *PPU) OBP1() byte { return p.obp1 }

type ppuState struct {
	VRAM                          [0x2000]byte
	OAM                           [0xA0]byte
	LCDC, STAT, SCY, SCX, LY, LYC byte
	BGP, OBP0, OBP1, WY, WX       byte
	Dot, Mode3Len, WindowLine     int
	WindowDrawn, StatLine         bool
}

func (p *PPU) SaveState() []byte {
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(ppuState{
		VRAM: p.vram, OAM: p.oam,
		LCDC: p.lcdc, STAT: p.stat, SCY: p.scy, SCX: p.scx, LY: p.ly, LYC: p.lyc,
		BGP: p.bgp, OBP0: p.obp0, OBP1: p.obp1, WY: p.wy, WX: p.wx,
		Dot: p.dot, Mode3Len: p.mode3Len, WindowLine: p.windowLine,
		WindowDrawn: p.windowDrawn, StatLine: p.statLine,
	})
	return buf.Bytes()
}

func (p *PPU) LoadState(data []byte) error {
	var s ppuState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return err
	}
	p.vram, p.oam = s.VRAM, s.OAM
	p.lcdc, p.stat, p.scy, p.scx, p.ly, p.lyc = s.LCDC, s.STAT, s.SCY, s.SCX, s.LY, s.LYC
	p.bgp, p.obp0, p.obp1, p.wy, p.wx = s.BGP, s.OBP0, s.OBP1, s.WY, s.WX
	p.dot, p.mode3Len, p.windowLine = s.Dot, s.Mode3Len, s.WindowLine
	p.windowDrawn, p.statLine = s.WindowDrawn, s.StatLine
	return nil
}
