// Package audio holds the shared microphone plumbing: sample buffers, level
// metering, the exclusive audio-session claim and the WAV container.
package audio

import "math"

// Buffer is one block of mono samples in [-1, 1].
type Buffer struct {
	Samples    []float32
	SampleRate int
}

// Duration returns the length of the buffer in seconds.
func (b Buffer) Duration() float64 {
	if b.SampleRate <= 0 {
		return 0
	}
	return float64(len(b.Samples)) / float64(b.SampleRate)
}

const levelFloorDB = -50.0

// Level maps the RMS amplitude of samples to 0..1, with -50 dBFS and below
// reported as silence.
func Level(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	rms := math.Sqrt(sum / float64(len(samples)))
	if rms <= 0 {
		return 0
	}
	db := 20 * math.Log10(rms)
	if db <= levelFloorDB {
		return 0
	}
	if db >= 0 {
		return 1
	}
	return (db - levelFloorDB) / -levelFloorDB
}

// Peak returns the largest absolute sample value, clamped to 1.
func Peak(samples []float32) float64 {
	var peak float64
	for _, s := range samples {
		v := math.Abs(float64(s))
		if v > peak {
			peak = v
		}
	}
	return math.Min(peak, 1)
}

// PCM16 converts little-endian signed 16-bit samples to floats.
func PCM16(data []byte) []float32 {
	out := make([]float32, len(data)/2)
	for i := range out {
		v := int16(uint16(data[2*i]) | uint16(data[2*i+1])<<8)
		out[i] = float32(v) / 32768
	}
	return out
}

// ToPCM16 converts float samples to little-endian signed 16-bit bytes.
func ToPCM16(samples []float32) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		v := uint16(int16(s * 32767))
		out[2*i] = byte(v)
		out[2*i+1] = byte(v >> 8)
	}
	return out
}
