package cart

import "encoding/binary"

// rtcCyclesPerSecond is the DMG master clock rate (spec §1), the unit the
// RTC advances against (spec §4.5).
const rtcCyclesPerSecond = 4194304

// rtcClock is the five-field MBC3 real-time clock (spec §4.5).
type rtcClock struct {
	Seconds, Minutes, Hours byte
	DaysLow                 byte
	DaysHigh                byte // bit0: day bit8, bit6: halt, bit7: carry
}

func (c *rtcClock) halted() bool { return c.DaysHigh&0x40 != 0 }

func (c *rtcClock) days() int {
	return int(c.DaysLow) | int(c.DaysHigh&0x01)<<8
}

func (c *rtcClock) setDays(d int) {
	if d > 0x1FF {
		c.DaysHigh |= 0x80 // carry
		d &= 0x1FF
	}
	c.DaysLow = byte(d)
	c.DaysHigh = (c.DaysHigh &^ 0x01) | byte((d>>8)&0x01)
}

// advanceSeconds advances the clock by n whole seconds, cascading through
// minutes/hours/days and setting the carry bit on day rollover past 0x1FF.
func (c *rtcClock) advanceSeconds(n int64) {
	if c.halted() || n <= 0 {
		return
	}
	total := int64(c.Seconds) + n
	secs := total % 60
	carryMin := total / 60
	totalMin := int64(c.Minutes) + carryMin
	mins := totalMin % 60
	carryHour := totalMin / 60
	totalHour := int64(c.Hours) + carryHour
	hours := totalHour % 24
	carryDay := totalHour / 24
	days := int64(c.days()) + carryDay

	c.Seconds = byte(secs)
	c.Minutes = byte(mins)
	c.Hours = byte(hours)
	c.setDays(int(days))
}

// rtcState is the MBC3 RTC bundle: current clock, latched clock, latch edge
// tracking, and the internal sub-second accumulator (spec §4.5).
type rtcState struct {
	Current, Latched rtcClock
	LatchPrevWrite   byte // last byte written to 0x6000-0x7FFF
	CycleAccum       int
}

// latchWrite detects the 0->1 edge on the 6000-7FFF register that copies
// Current into Latched (spec §4.5).
func (r *rtcState) latchWrite(v byte) {
	if r.LatchPrevWrite == 0 && v == 1 {
		r.Latched = r.Current
	}
	r.LatchPrevWrite = v
}

// tick advances the wall-clock by cycles master cycles.
func (r *rtcState) tick(cycles int) {
	if r.Current.halted() {
		return
	}
	r.CycleAccum += cycles
	if r.CycleAccum >= rtcCyclesPerSecond {
		secs := int64(r.CycleAccum / rtcCyclesPerSecond)
		r.CycleAccum %= rtcCyclesPerSecond
		r.Current.advanceSeconds(secs)
	}
}

// applyElapsedRealSeconds fast-forwards the clock by a wall-clock delta when
// loading a save (spec §4.5: "delta of now - saved_timestamp... when halt=0").
func (r *rtcState) applyElapsedRealSeconds(delta int64) {
	if delta <= 0 {
		return
	}
	r.Current.advanceSeconds(delta)
}

// rtcTailSize is the 48-byte save-blob tail described in spec §6: five
// little-endian uint32 for the current clock fields, five more for the
// latched clock, then a little-endian uint64 unix timestamp.
const rtcTailSize = 48

func encodeRTCTail(r *rtcState, unixNow int64) []byte {
	buf := make([]byte, rtcTailSize)
	putClock := func(off int, c rtcClock) {
		binary.LittleEndian.PutUint32(buf[off:], uint32(c.Seconds))
		binary.LittleEndian.PutUint32(buf[off+4:], uint32(c.Minutes))
		binary.LittleEndian.PutUint32(buf[off+8:], uint32(c.Hours))
		binary.LittleEndian.PutUint32(buf[off+12:], uint32(c.DaysLow))
		binary.LittleEndian.PutUint32(buf[off+16:], uint32(c.DaysHigh))
	}
	putClock(0, r.Current)
	putClock(20, r.Latched)
	binary.LittleEndian.PutUint64(buf[40:], uint64(unixNow))
	return buf
}

func decodeRTCTail(data []byte) (*rtcState, int64, error) {
	if len(data) != rtcTailSize {
		return nil, 0, newErr(InvalidRtcData, "RTC tail is %d bytes, want %d", len(data), rtcTailSize)
	}
	getClock := func(off int) rtcClock {
		return rtcClock{
			Seconds:  byte(binary.LittleEndian.Uint32(data[off:])),
			Minutes:  byte(binary.LittleEndian.Uint32(data[off+4:])),
			Hours:    byte(binary.LittleEndian.Uint32(data[off+8:])),
			DaysLow:  byte(binary.LittleEndian.Uint32(data[off+12:])),
			DaysHigh: byte(binary.LittleEndian.Uint32(data[off+16:])),
		}
	}
	r := &rtcState{Current: getClock(0), Latched: getClock(20)}
	ts := int64(binary.LittleEndian.Uint64(data[40:]))
	return r, ts, nil
}
