package media

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/zaf/g711"
)

// ToneGenerator synthesizes G.711 µ-law frames for a call progress tone:
// a sum of sine components gated by an on/off cadence. Off portions still
// produce frames of silence so the RTP stream stays continuously paced.
type ToneGenerator struct {
	freqs      []float64
	sampleRate uint32
	onSamples  uint64
	offSamples uint64
	amplitude  float64
	pos        uint64
}

// NewToneGenerator creates a generator for the given frequencies and cadence.
func NewToneGenerator(freqs []float64, on, off time.Duration, sampleRate uint32) *ToneGenerator {
	return &ToneGenerator{
		freqs:      freqs,
		sampleRate: sampleRate,
		onSamples:  uint64(on.Seconds() * float64(sampleRate)),
		offSamples: uint64(off.Seconds() * float64(sampleRate)),
		amplitude:  0.3,
	}
}

// NewRingbackTone creates the North American ringback tone: 440 Hz plus
// 480 Hz, 2 seconds on, 4 seconds off.
func NewRingbackTone() *ToneGenerator {
	return NewToneGenerator([]float64{440, 480}, 2*time.Second, 4*time.Second, 8000)
}

// NextFrame produces the next frame of µ-law audio, the given number of
// samples long, advancing through the cadence.
func (t *ToneGenerator) NextFrame(samples int) []byte {
	pcm := make([]byte, samples*2)
	cycle := t.onSamples + t.offSamples
	for i := 0; i < samples; i++ {
		var v float64
		if cycle == 0 || t.pos%cycle < t.onSamples {
			sec := float64(t.pos) / float64(t.sampleRate)
			for _, f := range t.freqs {
				v += math.Sin(2 * math.Pi * f * sec)
			}
			v = v / float64(len(t.freqs)) * t.amplitude
		}
		sample := int16(v * math.MaxInt16)
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(sample))
		t.pos++
	}
	return g711.EncodeUlaw(pcm)
}

// Reset rewinds the generator to the start of its cadence.
func (t *ToneGenerator) Reset() {
	t.pos = 0
}
