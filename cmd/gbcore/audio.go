package main

import (
	"io"

	"github.com/ebitengine/oto/v3"
	"github.com/mjrussell/dmgcore/internal/machine"
	"github.com/mjrussell/dmgcore/internal/resample"
)

const audioSampleRate = 48000

// audioStream implements io.Reader by draining the machine's delta-encoded
// APU output through a resampler and converting the result to 16-bit
// little-endian stereo frames, mirroring the teacher's ui/audio.go apuStream
// but built around DrainAudio's delta contract instead of a PCM ring buffer.
type audioStream struct {
	m     *machine.Machine
	r     *resample.Stereo
	muted bool
}

func newAudioStream(m *machine.Machine) *audioStream {
	return &audioStream{m: m, r: resample.NewStereo(audioSampleRate)}
}

func (s *audioStream) Read(p []byte) (int, error) {
	if len(p) < 4 {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}
	left, right, offsets := s.m.DrainAudio()
	s.r.Push(left, right, offsets)

	frames := len(p) / 4
	pcm := s.r.Generate(frames)
	if s.muted {
		for i := range p {
			p[i] = 0
		}
		return frames * 4, nil
	}
	for i := 0; i < frames; i++ {
		l := uint16(pcm[i*2])
		r := uint16(pcm[i*2+1])
		p[i*4] = byte(l)
		p[i*4+1] = byte(l >> 8)
		p[i*4+2] = byte(r)
		p[i*4+3] = byte(r >> 8)
	}
	return frames * 4, nil
}

// openAudio opens the oto playback stream. readyChan fires once the host
// audio device is initialized, matching oto/v3's asynchronous-open contract.
func openAudio(m *machine.Machine) (*oto.Player, *audioStream, error) {
	op := &oto.NewContextOptions{
		SampleRate:   audioSampleRate,
		ChannelCount: 2,
		Format:       oto.FormatSignedInt16LE,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, nil, err
	}
	<-ready
	stream := newAudioStream(m)
	player := ctx.NewPlayer(io.Reader(stream))
	return player, stream, nil
}
