package audio

import (
	"encoding/binary"
	"math"
	"testing"
	"time"
)

func TestValidateFrame(t *testing.T) {
	if err := ValidateFrame(nil); err == nil {
		t.Error("expected error for empty frame")
	}

	if err := ValidateFrame([]byte{0x01}); err == nil {
		t.Error("expected error for odd-length frame")
	}

	if err := ValidateFrame([]byte{0x01, 0x02}); err != nil {
		t.Errorf("unexpected error for valid frame: %v", err)
	}
}

func TestFrameDuration(t *testing.T) {
	// 320 samples at 16 kHz is 20ms
	if got := FrameDuration(640, 16000); got != 20*time.Millisecond {
		t.Errorf("expected 20ms, got %v", got)
	}

	if got := FrameDuration(640, 0); got != 0 {
		t.Errorf("expected 0 for invalid sample rate, got %v", got)
	}
}

func TestSampleConversionRoundTrip(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768, 1000, -1000}

	data := SamplesToBytes(samples)
	if len(data) != len(samples)*2 {
		t.Fatalf("expected %d bytes, got %d", len(samples)*2, len(data))
	}

	back := BytesToSamples(data)
	for i, s := range samples {
		if back[i] != s {
			t.Errorf("sample %d: expected %d, got %d", i, s, back[i])
		}
	}
}

func TestRMS(t *testing.T) {
	silence := make([]byte, 640)
	if got := RMS(silence); got != 0 {
		t.Errorf("expected zero energy for silence, got %f", got)
	}

	// Full-scale square wave has normalized RMS of ~1.0
	loud := make([]int16, 320)
	for i := range loud {
		loud[i] = math.MaxInt16
	}
	if got := RMS(SamplesToBytes(loud)); got < 0.99 {
		t.Errorf("expected near-unity energy for full-scale signal, got %f", got)
	}

	if got := RMS(nil); got != 0 {
		t.Errorf("expected 0 for empty frame, got %f", got)
	}
}

func TestEncodeWAV(t *testing.T) {
	pcm := SamplesToBytes([]int16{100, -100, 200, -200})

	data, err := EncodeWAV(pcm, 16000)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	if len(data) != 44+len(pcm) {
		t.Fatalf("expected %d bytes, got %d", 44+len(pcm), len(data))
	}

	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Error("missing RIFF/WAVE markers")
	}

	if rate := binary.LittleEndian.Uint32(data[24:28]); rate != 16000 {
		t.Errorf("expected sample rate 16000 in header, got %d", rate)
	}

	if size := binary.LittleEndian.Uint32(data[40:44]); size != uint32(len(pcm)) {
		t.Errorf("expected data size %d in header, got %d", len(pcm), size)
	}
}

func TestEncodeWAVErrors(t *testing.T) {
	if _, err := EncodeWAV(nil, 16000); err == nil {
		t.Error("expected error for empty data")
	}

	if _, err := EncodeWAV([]byte{0x01}, 16000); err == nil {
		t.Error("expected error for odd-length data")
	}

	if _, err := EncodeWAV([]byte{0x01, 0x02}, 0); err == nil {
		t.Error("expected error for invalid sample rate")
	}
}

func TestWAVRoundTrip(t *testing.T) {
	original := SamplesToBytes([]int16{1, 2, 3, -4, -5, 6})

	encoded, err := EncodeWAV(original, 16000)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	pcm, rate, err := DecodeWAV(encoded)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if rate != 16000 {
		t.Errorf("expected sample rate 16000, got %d", rate)
	}

	if len(pcm) != len(original) {
		t.Fatalf("expected %d bytes, got %d", len(original), len(pcm))
	}

	for i := range original {
		if pcm[i] != original[i] {
			t.Fatalf("byte %d differs: %d != %d", i, pcm[i], original[i])
		}
	}
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	if _, _, err := DecodeWAV([]byte("too short")); err == nil {
		t.Error("expected error for short data")
	}

	garbage := make([]byte, 64)
	if _, _, err := DecodeWAV(garbage); err == nil {
		t.Error("expected error for non-WAV data")
	}
}
