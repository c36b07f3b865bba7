package recognition

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/learitecnico/learion-glass-sub002/internal/audio"
	"github.com/learitecnico/learion-glass-sub002/internal/config"
	"github.com/learitecnico/learion-glass-sub002/internal/transcription"
)

// Transcriber uploads one utterance and returns its transcription. Satisfied
// by transcription.Client.
type Transcriber interface {
	Transcribe(ctx context.Context, request *transcription.UtteranceRequest) (*transcription.TranscriptionResponse, error)
}

// RemoteEngine implements Engine by segmenting the frame stream into
// utterances and sending each finished utterance to the transcription API.
// The remote API gives no interim hypotheses, so PartialResult is always
// empty. Transcription runs inline on the worker goroutine; frames arriving
// meanwhile back up in the queue.
type RemoteEngine struct {
	ctx         context.Context
	segmenter   *Segmenter
	transcriber Transcriber
	sampleRate  int
	language    string
	model       string
	dumpDir     string
	logger      *slog.Logger

	mu    sync.Mutex
	final string
}

// NewRemoteEngine creates an engine backed by the remote transcription API.
// dumpDir, when non-empty, receives a WAV copy of every finished utterance.
func NewRemoteEngine(ctx context.Context, cfg *config.Config, transcriber Transcriber, dumpDir string, logger *slog.Logger) *RemoteEngine {
	return &RemoteEngine{
		ctx:         ctx,
		segmenter:   NewSegmenter(&cfg.Recognition, cfg.Audio.SampleRate),
		transcriber: transcriber,
		sampleRate:  cfg.Audio.SampleRate,
		language:    cfg.Transcription.Language,
		model:       cfg.Transcription.Model,
		dumpDir:     dumpDir,
		logger:      logger,
	}
}

// AcceptFrame feeds one frame to the segmenter, transcribing the utterance
// when one completes.
func (e *RemoteEngine) AcceptFrame(frame []byte) (bool, error) {
	if err := audio.ValidateFrame(frame); err != nil {
		return false, err
	}

	utterance, done := e.segmenter.AcceptFrame(frame)
	if !done {
		return false, nil
	}
	return true, e.transcribe(utterance)
}

// transcribe uploads a finished utterance and stores the resulting text.
func (e *RemoteEngine) transcribe(utterance []byte) error {
	wav, err := audio.EncodeWAV(utterance, e.sampleRate)
	if err != nil {
		return fmt.Errorf("failed to encode utterance: %w", err)
	}

	id := uuid.New().String()
	duration := audio.FrameDuration(len(utterance), e.sampleRate)

	if e.dumpDir != "" {
		e.dump(id, wav)
	}

	resp, err := e.transcriber.Transcribe(e.ctx, &transcription.UtteranceRequest{
		UtteranceID: id,
		Audio:       wav,
		SampleRate:  e.sampleRate,
		Duration:    duration,
		Language:    e.language,
		Model:       e.model,
		Timestamp:   time.Now(),
	})
	if err != nil {
		return fmt.Errorf("utterance %s: %w", id, err)
	}

	e.mu.Lock()
	e.final = resp.Text
	e.mu.Unlock()

	e.logger.Debug("Utterance transcribed",
		"utterance_id", id,
		"duration_ms", duration.Milliseconds(),
		"chars", len(resp.Text))
	return nil
}

// dump writes a WAV copy of the utterance for offline inspection.
func (e *RemoteEngine) dump(id string, wav []byte) {
	path := filepath.Join(e.dumpDir, id+".wav")
	if err := os.WriteFile(path, wav, 0o644); err != nil {
		e.logger.Warn("Failed to dump utterance", "path", path, "error", err)
	}
}

// PartialResult always returns an empty string for the remote engine.
func (e *RemoteEngine) PartialResult() string {
	return ""
}

// FinalResult returns the text of the most recently finished utterance.
func (e *RemoteEngine) FinalResult() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.final
}

// Reset discards segmentation state and any stored result.
func (e *RemoteEngine) Reset() {
	e.segmenter.Reset()
	e.mu.Lock()
	e.final = ""
	e.mu.Unlock()
}

// Close releases the engine. Any partially buffered utterance is dropped.
func (e *RemoteEngine) Close() error {
	e.segmenter.Reset()
	return nil
}

// GetSegmenterStats exposes segmenter statistics for the status API.
func (e *RemoteEngine) GetSegmenterStats() SegmenterStats {
	return e.segmenter.GetStats()
}
