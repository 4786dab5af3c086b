package synth

import "math"

// Analyser scaling, matching a Web Audio AnalyserNode with default
// minDecibels/maxDecibels.
const (
	MinDecibels = -100.0
	MaxDecibels = -30.0
)

// quantize maps a decibel magnitude onto the 0..255 byte scale.
func quantize(db float32) byte {
	scaled := 255 * (float64(db) - MinDecibels) / (MaxDecibels - MinDecibels)
	switch {
	case math.IsNaN(scaled) || scaled <= 0:
		return 0
	case scaled >= 255:
		return 255
	default:
		return byte(scaled)
	}
}

// snapshotFloat copies spectrum into dst, padding with the floor when dst is
// longer.
func snapshotFloat(spectrum, dst []float32) {
	n := copy(dst, spectrum)
	for i := n; i < len(dst); i++ {
		dst[i] = MinDecibels
	}
}

func snapshotByte(spectrum []float32, dst []byte) {
	for i := range dst {
		if i < len(spectrum) {
			dst[i] = quantize(spectrum[i])
		} else {
			dst[i] = 0
		}
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
