// Package resample converts the APU's delta-encoded internal sample stream
// into interleaved 16-bit stereo PCM at a host output rate. It lives outside
// the core on purpose: the core only emits (delta, offset) tuples (spec
// §4.4's drain_deltas contract), and resampling to a particular sound card's
// rate is a front-end concern, not an emulation one.
package resample

import "github.com/mjrussell/dmgcore/internal/apu"

// Stereo accumulates delta events at the APU's internal sample rate and
// renders PCM at an arbitrary output rate. Each channel (left/right) keeps
// a running amplitude plus a queue of pending sub-sample edges, summed into
// the output as time advances past them — the accumulate-then-sum idea of
// Blargg's blip_buf, reduced to a plain step: each edge is added in full to
// the output sample it falls in, with no taper or sinc kernel, so the
// output is not band-limited.
type Stereo struct {
	srcRate float64
	dstRate float64

	left  channel
	right channel
}

type channel struct {
	level float64 // current steady amplitude, carried across Generate calls
	// pending holds fractional-offset deltas not yet due for output,
	// expressed in source-sample ticks since the last Generate call.
	pending []pendingEdge
}

type pendingEdge struct {
	srcOffset float64 // source-sample index, fractional
	delta     float64
}

// NewStereo builds a resampler converting from the APU's fixed internal rate
// to dstRate (typically 44100 or 48000, whatever the audio backend wants).
func NewStereo(dstRate int) *Stereo {
	return &Stereo{srcRate: float64(apu.InternalSampleRate), dstRate: float64(dstRate)}
}

// Push enqueues one drain's worth of deltas. offsets are internal-sample
// indices counted from zero at the start of this push call, matching
// apu.APU.DrainDeltas's contract.
func (s *Stereo) Push(leftDeltas, rightDeltas []int16, offsets []uint32) {
	for i, off := range offsets {
		s.left.pending = append(s.left.pending, pendingEdge{srcOffset: float64(off), delta: float64(leftDeltas[i])})
		s.right.pending = append(s.right.pending, pendingEdge{srcOffset: float64(off), delta: float64(rightDeltas[i])})
	}
}

// Generate produces n stereo frames (interleaved L,R int16) at the output
// rate, advancing each channel's pending edges and steady level as it goes.
// It must be called often enough that the source-time window covered by one
// call (n / dstRate seconds of source samples) doesn't exceed what Push
// supplied since the last call, or trailing edges are simply carried over
// to the next call (no data is dropped, only delayed).
func (s *Stereo) Generate(n int) []int16 {
	out := make([]int16, n*2)
	srcPerDst := s.srcRate / s.dstRate
	srcPos := 0.0
	for i := 0; i < n; i++ {
		nextSrcPos := srcPos + srcPerDst
		out[i*2] = s.left.advance(srcPos, nextSrcPos)
		out[i*2+1] = s.right.advance(srcPos, nextSrcPos)
		srcPos = nextSrcPos
	}
	s.left.rebase(srcPos)
	s.right.rebase(srcPos)
	return out
}

// advance adds every pending edge whose offset is before windowEnd to the
// channel's running level in full (no tapering within the output sample),
// then returns the resulting amplitude clamped to int16 range.
func (c *channel) advance(windowStart, windowEnd float64) int16 {
	for len(c.pending) > 0 && c.pending[0].srcOffset < windowEnd {
		e := c.pending[0]
		c.pending = c.pending[1:]
		c.level += e.delta
	}
	return clampInt16(c.level)
}

// rebase drops edges that have already been consumed and shifts the
// remaining ones' offsets back by consumed, so the next Push call's
// zero-based offsets line up with what's left over.
func (c *channel) rebase(consumed float64) {
	remaining := c.pending[:0]
	for _, e := range c.pending {
		remaining = append(remaining, pendingEdge{srcOffset: e.srcOffset - consumed, delta: e.delta})
	}
	c.pending = remaining
}

func clampInt16(v float64) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
