package ppu

import "sort"

// fifo is a fixed-capacity ring buffer of 2-bit background/window color
// indices (spec §4.3: "BG/window FIFO capacity 8, refilled only when empty").
type fifo struct {
	buf  [8]byte
	n    int
}

func (q *fifo) clear() { q.n = 0 }
func (q *fifo) len() int { return q.n }

func (q *fifo) push8(pixels [8]byte) {
	q.buf = pixels
	q.n = 8
}

func (q *fifo) pop() byte {
	v := q.buf[0]
	copy(q.buf[:], q.buf[1:])
	q.n--
	return v
}

// spriteEntry is one OAM-search survivor for the current scanline.
type spriteEntry struct {
	x, y, tile, attr byte
	oamIndex         int
}

const (
	attrPriority = 1 << 7 // 1: behind non-zero BG
	attrYFlip    = 1 << 6
	attrXFlip    = 1 << 5
	attrPalette  = 1 << 4 // 0: OBP0, 1: OBP1
)

func spriteHeight(lcdc byte) int {
	if lcdc&0x04 != 0 {
		return 16
	}
	return 8
}

// scanOAM performs the two-entries-per-dot OAM search conceptually; since
// Tick already accounts for its 80-dot cost via mode scheduling, the result
// is computed directly here, then ordered by on-screen priority (spec §4.3).
func (p *PPU) scanOAM(ly byte) []spriteEntry {
	if p.lcdc&0x02 == 0 {
		return nil
	}
	height := byte(spriteHeight(p.lcdc))
	var found []spriteEntry
	for i := 0; i < 40 && len(found) < 10; i++ {
		base := i * 4
		sy := p.oam[base]
		sx := p.oam[base+1]
		tile := p.oam[base+2]
		attr := p.oam[base+3]
		if sx == 0 {
			continue
		}
		top := int(sy) - 16
		if int(ly) < top || int(ly) >= top+int(height) {
			continue
		}
		found = append(found, spriteEntry{x: sx, y: sy, tile: tile, attr: attr, oamIndex: i})
	}
	// DMG sprite-to-sprite priority: lower X wins, ties broken by lower OAM
	// index. SliceStable preserves the OAM-order tiebreak since found is
	// already built in OAM order.
	sort.SliceStable(found, func(i, j int) bool { return found[i].x < found[j].x })
	return found
}

// windowActivatesOnLine reports whether the window fetcher would restart
// somewhere on this scanline, per the activation condition in renderScanline
// (spec §4.3: "LY >= WY and the current X >= WX+1").
func (p *PPU) windowActivatesOnLine(ly byte) bool {
	if p.lcdc&0x20 == 0 || p.lcdc&0x01 == 0 {
		return false
	}
	if int(ly) < int(p.wy) {
		return false
	}
	return int(p.wx) <= 166
}

// mode3Length computes the dot count Mode 3 (Pixel Transfer) runs for this
// scanline: a fixed base plus the documented variable terms (spec §4.3's
// table: "43 + variable (sprite penalties + SCX%8 + window restart)",
// scaled ×4 from M-cycles to dots). renderScanline composites the whole
// line as one batch rather than a genuine dot-stepped {ReadTile, ReadDataL,
// ReadDataH, Push} pipeline, so this is computed up front from the same
// per-line sprite/window facts renderScanline itself will use, rather than
// accumulated dot-by-dot; see the PPU entry in DESIGN.md for why that
// simplification was accepted.
func (p *PPU) mode3Length(ly byte) int {
	length := 172 + int(p.scx%8)
	for _, s := range p.scanOAM(ly) {
		penalty := 11 - (int(s.x)+int(p.scx))%8
		if penalty > 0 {
			length += penalty
		}
	}
	if p.windowActivatesOnLine(ly) {
		length += 6
	}
	return length
}

func (p *PPU) vramRead(addr uint16) byte { return p.vram[addr-0x8000] }

// tileRow returns the 8 color indices (MSB-first pixel order) for one tile
// row at the given VRAM tile-data address.
func tileRow(lo, hi byte) [8]byte {
	var row [8]byte
	for px := 0; px < 8; px++ {
		bit := 7 - byte(px)
		row[px] = ((hi>>bit)&1)<<1 | ((lo >> bit) & 1)
	}
	return row
}

// renderScanline composites background, window, and sprites for p.ly into
// the framebuffer, following the fetcher/FIFO pipeline's observable contract
// (spec §4.3): tile fetch -> FIFO push -> SCX-trim -> sprite merge -> mix.
func (p *PPU) renderScanline() {
	ly := p.ly
	if ly >= ScreenHeight {
		return
	}

	sprites := p.scanOAM(ly)

	bgEnabled := p.lcdc&0x01 != 0
	windowEnabled := p.lcdc&0x20 != 0 && bgEnabled
	winX := int(p.wx) - 7

	var bg fifo
	bgIndices := make([]byte, 0, ScreenWidth+8)
	fetchX := 0 // tile-column fetch cursor, in 8-pixel steps
	usingWindow := false
	windowRowUsed := false

	refill := func() {
		var mapBase uint16
		var row byte
		var tileIdxAddr uint16
		if usingWindow {
			if p.lcdc&0x40 != 0 {
				mapBase = 0x9C00
			} else {
				mapBase = 0x9800
			}
			row = byte(p.windowLine) & 7
			col := fetchX & 31
			tileIdxAddr = mapBase + uint16((p.windowLine/8)&31)*32 + uint16(col)
		} else {
			if p.lcdc&0x08 != 0 {
				mapBase = 0x9C00
			} else {
				mapBase = 0x9800
			}
			scrolledRow := (int(ly) + int(p.scy)) & 0xFF
			row = byte(scrolledRow) & 7
			col := (fetchX + int(p.scx)/8) & 31
			tileIdxAddr = mapBase + uint16(scrolledRow/8)*32 + uint16(col)
		}
		tileNum := p.vramRead(tileIdxAddr)
		var base uint16
		if p.lcdc&0x10 != 0 {
			base = 0x8000 + uint16(tileNum)*16 + uint16(row)*2
		} else {
			base = 0x9000 + uint16(int16(int8(tileNum)))*16 + uint16(row)*2
		}
		lo := p.vramRead(base)
		hi := p.vramRead(base + 1)
		bg.push8(tileRow(lo, hi))
		fetchX++
	}

	// Produce enough BG/window pixels to cover the visible line plus the
	// SCX%8 warm-up discard.
	discard := int(p.scx) % 8
	need := ScreenWidth + discard
	for len(bgIndices) < need {
		screenX := len(bgIndices) - discard
		if windowEnabled && !usingWindow && screenX >= 0 &&
			int(ly) >= int(p.wy) && screenX >= winX && winX >= -7 {
			usingWindow = true
			windowRowUsed = true
			fetchX = 0
			bg.clear()
		}
		if bg.len() == 0 {
			refill()
		}
		bgIndices = append(bgIndices, bg.pop())
	}
	if windowRowUsed {
		p.windowLine++
	}
	bgIndices = bgIndices[discard : discard+ScreenWidth]

	// Sprite pixels: one pass building a per-column overlay; sprites is
	// already priority-ordered (lowest X first, OAM index breaking ties), so
	// the first sprite claiming a column wins (spec: "preserving existing
	// non-transparent pixels").
	type sprPixel struct {
		color   byte
		palette byte
		behind  bool
		set     bool
	}
	var overlay [ScreenWidth]sprPixel
	height := spriteHeight(p.lcdc)
	for _, s := range sprites {
		sx := int(s.x) - 8
		if sx <= -8 || sx >= ScreenWidth {
			continue
		}
		line := int(ly) - (int(s.y) - 16)
		if s.attr&attrYFlip != 0 {
			line = height - 1 - line
		}
		tile := s.tile
		if height == 16 {
			tile &^= 0x01
			if line >= 8 {
				tile |= 0x01
				line -= 8
			}
		}
		base := 0x8000 + uint16(tile)*16 + uint16(line)*2
		lo := p.vramRead(base)
		hi := p.vramRead(base + 1)
		row := tileRow(lo, hi)
		if s.attr&attrXFlip != 0 {
			row = [8]byte{row[7], row[6], row[5], row[4], row[3], row[2], row[1], row[0]}
		}
		pal := byte(0)
		if s.attr&attrPalette != 0 {
			pal = 1
		}
		behind := s.attr&attrPriority != 0
		for px := 0; px < 8; px++ {
			col := sx + px
			if col < 0 || col >= ScreenWidth {
				continue
			}
			if overlay[col].set {
				continue // earlier sprite already claimed this column
			}
			ci := row[px]
			if ci == 0 {
				continue // transparent sprite pixel never overwrites
			}
			overlay[col] = sprPixel{color: ci, palette: pal, behind: behind, set: true}
		}
	}

	for x := 0; x < ScreenWidth; x++ {
		bgColor := bgIndices[x]
		shade := decodePalette(p.bgp, bgColor)
		if !bgEnabled {
			shade = 0
		}
		if sp := overlay[x]; sp.set && (!sp.behind || bgColor == 0) {
			obp := p.obp0
			if sp.palette == 1 {
				obp = p.obp1
			}
			shade = decodePalette(obp, sp.color)
		}
		p.frame[ly][x] = shadeToRGBA(shade)
	}
}

func decodePalette(pal, index byte) byte {
	return (pal >> (index * 2)) & 0x03
}

var shadeRGBA = [4]uint32{
	0xFFFFFFFF, // white
	0xAAAAAAFF, // light gray
	0x555555FF, // dark gray
	0x000000FF, // black
}

func shadeToRGBA(shade byte) uint32 { return shadeRGBA[shade&0x03] }
