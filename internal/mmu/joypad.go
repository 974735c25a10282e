package mmu

// Button bitmasks for PushButton/ReleaseButton (spec §6: eight buttons
// across two lines, directions and actions).
const (
	ButtonRight = 1 << 0
	ButtonLeft  = 1 << 1
	ButtonUp    = 1 << 2
	ButtonDown  = 1 << 3
	ButtonA     = 1 << 4
	ButtonB     = 1 << 5
	ButtonSelect = 1 << 6
	ButtonStart = 1 << 7
)

// joypadState holds which of the two FF00 lines (directions/actions) is
// selected and the current pressed-button mask. Exported fields for gob.
type joypadState struct {
	Select byte // last-written bits 5:4
	Mask   byte // bit set = pressed
	Lower4 byte // last computed active-low lower nibble, for edge detection
}

func (j *joypadState) writeSelect(v byte) { j.Select = v & 0x30 }

func (j *joypadState) read() byte {
	res := byte(0xC0 | (j.Select & 0x30) | 0x0F)
	if j.Select&0x10 == 0 { // P14 low: D-pad
		if j.Mask&ButtonRight != 0 {
			res &^= 0x01
		}
		if j.Mask&ButtonLeft != 0 {
			res &^= 0x02
		}
		if j.Mask&ButtonUp != 0 {
			res &^= 0x04
		}
		if j.Mask&ButtonDown != 0 {
			res &^= 0x08
		}
	}
	if j.Select&0x20 == 0 { // P15 low: buttons
		if j.Mask&ButtonA != 0 {
			res &^= 0x01
		}
		if j.Mask&ButtonB != 0 {
			res &^= 0x02
		}
		if j.Mask&ButtonSelect != 0 {
			res &^= 0x04
		}
		if j.Mask&ButtonStart != 0 {
			res &^= 0x08
		}
	}
	return res
}

func (j *joypadState) lowerNibble() byte {
	lower := byte(0x0F)
	if j.Select&0x10 == 0 {
		if j.Mask&ButtonRight != 0 {
			lower &^= 0x01
		}
		if j.Mask&ButtonLeft != 0 {
			lower &^= 0x02
		}
		if j.Mask&ButtonUp != 0 {
			lower &^= 0x04
		}
		if j.Mask&ButtonDown != 0 {
			lower &^= 0x08
		}
	}
	if j.Select&0x20 == 0 {
		if j.Mask&ButtonA != 0 {
			lower &^= 0x01
		}
		if j.Mask&ButtonB != 0 {
			lower &^= 0x02
		}
		if j.Mask&ButtonSelect != 0 {
			lower &^= 0x04
		}
		if j.Mask&ButtonStart != 0 {
			lower &^= 0x08
		}
	}
	return lower
}

// SetButtons sets the full pressed-button mask (bits set = pressed) and
// requests the joypad interrupt on any 1->0 edge in the exposed nibble.
func (m *MMU) SetButtons(mask byte) {
	m.joypad.Mask = mask
	m.checkJoypadEdge()
}

// PushButton marks one button pressed; ReleaseButton marks it released.
func (m *MMU) PushButton(button byte)    { m.joypad.Mask |= button; m.checkJoypadEdge() }
func (m *MMU) ReleaseButton(button byte) { m.joypad.Mask &^= button; m.checkJoypadEdge() }

func (m *MMU) checkJoypadEdge() {
	newLower := m.joypad.lowerNibble()
	falling := m.joypad.Lower4 &^ newLower
	if falling != 0 {
		m.RequestInterrupt(4)
	}
	m.joypad.Lower4 = newLower
}
