package recognition

import (
	"sync"
	"time"

	"github.com/learitecnico/learion-glass-sub002/internal/audio"
	"github.com/learitecnico/learion-glass-sub002/internal/config"
)

// Segmenter slices a continuous PCM stream into utterances using frame
// energy. A frame whose normalized RMS reaches the threshold counts as
// speech; an utterance closes after enough trailing silence or when it hits
// the length cap. Utterances shorter than the minimum speech duration are
// discarded as noise.
type Segmenter struct {
	threshold    float64
	sampleRate   int
	minSpeech    time.Duration
	minSilence   time.Duration
	maxUtterance time.Duration

	buffer     []byte
	speechDur  time.Duration
	silenceDur time.Duration
	totalDur   time.Duration

	// Statistics
	framesProcessed   uint64
	speechFrames      uint64
	utterancesEmitted uint64
	discardedShort    uint64

	mu sync.Mutex
}

// SegmenterStats represents segmenter statistics
type SegmenterStats struct {
	FramesProcessed   uint64  `json:"frames_processed"`
	SpeechFrames      uint64  `json:"speech_frames"`
	UtterancesEmitted uint64  `json:"utterances_emitted"`
	DiscardedShort    uint64  `json:"discarded_short"`
	Threshold         float64 `json:"threshold"`
	PendingDurationMs int64   `json:"pending_duration_ms"`
}

// NewSegmenter creates a segmenter from the recognition configuration.
func NewSegmenter(cfg *config.RecognitionConfig, sampleRate int) *Segmenter {
	if sampleRate <= 0 {
		sampleRate = audio.SampleRate
	}
	return &Segmenter{
		threshold:    cfg.SpeechThreshold,
		sampleRate:   sampleRate,
		minSpeech:    cfg.GetMinSpeechDuration(),
		minSilence:   cfg.GetMinSilenceDuration(),
		maxUtterance: cfg.GetMaxUtteranceDuration(),
	}
}

// AcceptFrame feeds one PCM frame. When the frame completes an utterance,
// the full utterance is returned with done=true; otherwise both returns are
// zero values. The returned slice is owned by the caller.
func (s *Segmenter) AcceptFrame(frame []byte) (utterance []byte, done bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.framesProcessed++
	dur := audio.FrameDuration(len(frame), s.sampleRate)
	energy := audio.RMS(frame)

	if energy >= s.threshold {
		s.speechFrames++
		s.buffer = append(s.buffer, frame...)
		s.speechDur += dur
		s.silenceDur = 0
		s.totalDur += dur
	} else {
		if len(s.buffer) == 0 {
			// Leading silence carries no information
			return nil, false
		}
		s.buffer = append(s.buffer, frame...)
		s.silenceDur += dur
		s.totalDur += dur

		if s.silenceDur >= s.minSilence {
			return s.finalize()
		}
	}

	if s.totalDur >= s.maxUtterance {
		return s.finalize()
	}
	return nil, false
}

// Flush forces the pending utterance out, applying the same minimum speech
// filter as silence-triggered finalization. Used when the stream ends.
func (s *Segmenter) Flush() (utterance []byte, done bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buffer) == 0 {
		return nil, false
	}
	return s.finalize()
}

// finalize closes the pending utterance; caller must hold s.mu.
func (s *Segmenter) finalize() ([]byte, bool) {
	buf := s.buffer
	speech := s.speechDur
	s.buffer = nil
	s.speechDur = 0
	s.silenceDur = 0
	s.totalDur = 0

	if speech < s.minSpeech {
		s.discardedShort++
		return nil, false
	}
	s.utterancesEmitted++
	return buf, true
}

// Reset discards any pending utterance and clears segmentation state.
func (s *Segmenter) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buffer = nil
	s.speechDur = 0
	s.silenceDur = 0
	s.totalDur = 0
}

// GetStats returns current segmenter statistics
func (s *Segmenter) GetStats() SegmenterStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SegmenterStats{
		FramesProcessed:   s.framesProcessed,
		SpeechFrames:      s.speechFrames,
		UtterancesEmitted: s.utterancesEmitted,
		DiscardedShort:    s.discardedShort,
		Threshold:         s.threshold,
		PendingDurationMs: s.totalDur.Milliseconds(),
	}
}
