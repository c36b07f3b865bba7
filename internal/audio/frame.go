package audio

import (
	"fmt"
	"math"
	"time"
)

// Capture format constants. The recognizer consumes 16 kHz mono PCM-16LE.
const (
	SampleRate     = 16000
	Channels       = 1
	BytesPerSample = 2
)

// ValidateFrame checks that a raw PCM frame is well formed
func ValidateFrame(frame []byte) error {
	if len(frame) == 0 {
		return fmt.Errorf("frame cannot be empty")
	}

	if len(frame)%BytesPerSample != 0 {
		return fmt.Errorf("frame length must be even (got %d bytes)", len(frame))
	}

	return nil
}

// FrameDuration returns the play time of a raw PCM frame
func FrameDuration(frameBytes int, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	samples := frameBytes / BytesPerSample
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}

// BytesToSamples converts raw little-endian PCM-16 bytes to samples
func BytesToSamples(data []byte) []int16 {
	samples := make([]int16, len(data)/BytesPerSample)
	for i := range samples {
		samples[i] = int16(data[i*2]) | int16(data[i*2+1])<<8
	}
	return samples
}

// SamplesToBytes converts PCM-16 samples to raw little-endian bytes
func SamplesToBytes(samples []int16) []byte {
	data := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		data[i*2] = byte(s)
		data[i*2+1] = byte(s >> 8)
	}
	return data
}

// RMS computes the normalized root-mean-square energy of a raw PCM frame,
// in the range 0..1
func RMS(frame []byte) float64 {
	if len(frame) < BytesPerSample {
		return 0
	}

	var sum float64
	n := len(frame) / BytesPerSample
	for i := 0; i < n; i++ {
		s := float64(int16(frame[i*2]) | int16(frame[i*2+1])<<8)
		sum += s * s
	}

	return math.Sqrt(sum/float64(n)) / math.MaxInt16
}
