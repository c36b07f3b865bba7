package recognition

import (
	"encoding/binary"
	"testing"

	"github.com/learitecnico/learion-glass-sub002/internal/config"
)

// makeFrame builds a PCM frame of the given sample count where every sample
// holds the same amplitude. At 16 kHz, 1600 samples is 100ms.
func makeFrame(samples int, amplitude int16) []byte {
	frame := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		binary.LittleEndian.PutUint16(frame[i*2:], uint16(amplitude))
	}
	return frame
}

func testSegmenterConfig() *config.RecognitionConfig {
	return &config.RecognitionConfig{
		QueueCapacity:      16,
		StopGrace:          1.0,
		SpeechThreshold:    0.02,
		MinSpeechDuration:  0.2,
		MinSilenceDuration: 0.3,
		MaxUtterance:       2.0,
	}
}

func TestSegmenterEmitsAfterTrailingSilence(t *testing.T) {
	s := NewSegmenter(testSegmenterConfig(), 16000)

	speech := makeFrame(1600, 3277) // ~0.1 normalized RMS, 100ms
	silence := makeFrame(1600, 0)

	// 300ms of speech
	for i := 0; i < 3; i++ {
		if _, done := s.AcceptFrame(speech); done {
			t.Fatal("Utterance finalized during speech")
		}
	}

	// Silence below the minimum keeps the utterance open
	if _, done := s.AcceptFrame(silence); done {
		t.Fatal("Utterance finalized before minimum silence")
	}
	if _, done := s.AcceptFrame(silence); done {
		t.Fatal("Utterance finalized before minimum silence")
	}

	// Third silence frame crosses 300ms
	utterance, done := s.AcceptFrame(silence)
	if !done {
		t.Fatal("Expected utterance after trailing silence")
	}
	if len(utterance) != 6*1600*2 {
		t.Errorf("Expected 6 frames of audio, got %d bytes", len(utterance))
	}

	stats := s.GetStats()
	if stats.UtterancesEmitted != 1 {
		t.Errorf("Expected 1 utterance emitted, got %d", stats.UtterancesEmitted)
	}
}

func TestSegmenterDiscardsShortSpeech(t *testing.T) {
	s := NewSegmenter(testSegmenterConfig(), 16000)

	speech := makeFrame(1600, 3277)
	silence := makeFrame(1600, 0)

	// 100ms of speech is below the 200ms minimum
	s.AcceptFrame(speech)
	for i := 0; i < 3; i++ {
		if _, done := s.AcceptFrame(silence); done {
			t.Fatal("Short utterance was emitted")
		}
	}

	stats := s.GetStats()
	if stats.DiscardedShort != 1 {
		t.Errorf("Expected 1 discarded utterance, got %d", stats.DiscardedShort)
	}
	if stats.UtterancesEmitted != 0 {
		t.Errorf("Expected 0 utterances emitted, got %d", stats.UtterancesEmitted)
	}
}

func TestSegmenterIgnoresLeadingSilence(t *testing.T) {
	s := NewSegmenter(testSegmenterConfig(), 16000)

	silence := makeFrame(1600, 0)
	for i := 0; i < 10; i++ {
		if _, done := s.AcceptFrame(silence); done {
			t.Fatal("Silence alone produced an utterance")
		}
	}

	if stats := s.GetStats(); stats.PendingDurationMs != 0 {
		t.Errorf("Leading silence was buffered: %dms pending", stats.PendingDurationMs)
	}
}

func TestSegmenterCapsUtteranceLength(t *testing.T) {
	s := NewSegmenter(testSegmenterConfig(), 16000)

	speech := makeFrame(1600, 3277)
	for i := 0; i < 19; i++ {
		if _, done := s.AcceptFrame(speech); done {
			t.Fatalf("Utterance finalized at frame %d, before the 2s cap", i)
		}
	}

	// 20th frame reaches 2s of continuous speech
	utterance, done := s.AcceptFrame(speech)
	if !done {
		t.Fatal("Expected utterance at the length cap")
	}
	if len(utterance) != 20*1600*2 {
		t.Errorf("Expected 20 frames of audio, got %d bytes", len(utterance))
	}
}

func TestSegmenterFlush(t *testing.T) {
	s := NewSegmenter(testSegmenterConfig(), 16000)

	speech := makeFrame(1600, 3277)
	for i := 0; i < 3; i++ {
		s.AcceptFrame(speech)
	}

	utterance, done := s.Flush()
	if !done {
		t.Fatal("Expected pending utterance from Flush")
	}
	if len(utterance) != 3*1600*2 {
		t.Errorf("Expected 3 frames of audio, got %d bytes", len(utterance))
	}

	// A second flush has nothing pending
	if _, done := s.Flush(); done {
		t.Error("Flush emitted an utterance twice")
	}
}

func TestSegmenterReset(t *testing.T) {
	s := NewSegmenter(testSegmenterConfig(), 16000)

	speech := makeFrame(1600, 3277)
	for i := 0; i < 3; i++ {
		s.AcceptFrame(speech)
	}
	s.Reset()

	if _, done := s.Flush(); done {
		t.Error("Reset did not discard the pending utterance")
	}
}
