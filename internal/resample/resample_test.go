package resample

import "testing"

func TestGenerateWithNoDeltasHoldsSilence(t *testing.T) {
	s := NewStereo(48000)
	out := s.Generate(100)
	for i, v := range out {
		if v != 0 {
			t.Fatalf("out[%d] = %d, want 0 (no deltas pushed yet)", i, v)
		}
	}
}

func TestPushedDeltaRaisesLevelAndHolds(t *testing.T) {
	s := NewStereo(48000)
	s.Push([]int16{1000}, []int16{-1000}, []uint32{0})
	out := s.Generate(10)
	last := len(out) - 2
	if out[last] != 1000 {
		t.Fatalf("left level = %d, want 1000 after a +1000 delta at offset 0", out[last])
	}
	if out[last+1] != -1000 {
		t.Fatalf("right level = %d, want -1000 after a -1000 delta at offset 0", out[last+1])
	}
}

func TestMultipleGenerateCallsAccumulateIndependentPushes(t *testing.T) {
	s := NewStereo(48000)
	s.Push([]int16{500}, []int16{500}, []uint32{0})
	_ = s.Generate(5)
	s.Push([]int16{500}, []int16{500}, []uint32{0})
	out := s.Generate(5)
	last := len(out) - 2
	if out[last] != 1000 || out[last+1] != 1000 {
		t.Fatalf("level after two +500 pushes = (%d,%d), want (1000,1000)", out[last], out[last+1])
	}
}

func TestClampInt16SaturatesBeyondRange(t *testing.T) {
	if v := clampInt16(100000); v != 32767 {
		t.Fatalf("clampInt16(100000) = %d, want 32767", v)
	}
	if v := clampInt16(-100000); v != -32768 {
		t.Fatalf("clampInt16(-100000) = %d, want -32768", v)
	}
}
