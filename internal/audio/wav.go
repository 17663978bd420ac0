package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

const wavHeaderSize = 44

// WAVWriter streams mono PCM16 samples into a WAV file. The RIFF sizes are
// patched in when the writer is closed.
type WAVWriter struct {
	f          *os.File
	sampleRate int
	dataBytes  int64
	closed     bool
}

// CreateWAV creates path and writes a placeholder header.
func CreateWAV(path string, sampleRate int) (*WAVWriter, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return nil, err
	}
	w := &WAVWriter{f: f, sampleRate: sampleRate}
	if err := w.writeHeader(); err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	return w, nil
}

// Write appends samples to the data chunk.
func (w *WAVWriter) Write(samples []float32) error {
	if w.closed {
		return errors.New("wav writer closed")
	}
	n, err := w.f.Write(ToPCM16(samples))
	w.dataBytes += int64(n)
	return err
}

// Duration returns the seconds of audio written so far.
func (w *WAVWriter) Duration() float64 {
	return float64(w.dataBytes/2) / float64(w.sampleRate)
}

// Close finalises the header and closes the file. Calling it twice is a no-op.
func (w *WAVWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if _, err := w.f.Seek(0, io.SeekStart); err != nil {
		w.f.Close()
		return err
	}
	if err := w.writeHeader(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}

func (w *WAVWriter) writeHeader() error {
	const channels, bits = 1, 16
	h := make([]byte, wavHeaderSize)
	copy(h[0:], "RIFF")
	binary.LittleEndian.PutUint32(h[4:], uint32(36+w.dataBytes))
	copy(h[8:], "WAVE")
	copy(h[12:], "fmt ")
	binary.LittleEndian.PutUint32(h[16:], 16)
	binary.LittleEndian.PutUint16(h[20:], 1)
	binary.LittleEndian.PutUint16(h[22:], channels)
	binary.LittleEndian.PutUint32(h[24:], uint32(w.sampleRate))
	binary.LittleEndian.PutUint32(h[28:], uint32(w.sampleRate*channels*bits/8))
	binary.LittleEndian.PutUint16(h[32:], channels*bits/8)
	binary.LittleEndian.PutUint16(h[34:], bits)
	copy(h[36:], "data")
	binary.LittleEndian.PutUint32(h[40:], uint32(w.dataBytes))
	_, err := w.f.Write(h)
	return err
}
