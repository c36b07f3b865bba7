package recognition

import "strings"

// Engine is the stateful recognizer consumed by the worker. Implementations
// own whatever acoustic machinery sits behind them; the pipeline only sees
// accept/partial/final operations.
//
// AcceptFrame feeds one raw PCM frame and reports whether the current
// utterance is complete. After a true return, FinalResult holds the
// finalized text and the engine starts a fresh utterance. PartialResult
// may return an empty string when no interim hypothesis is available.
type Engine interface {
	AcceptFrame(frame []byte) (bool, error)
	PartialResult() string
	FinalResult() string
	Reset()
	Close() error
}

// TranscriptionEvent is a surfaced recognition result
type TranscriptionEvent struct {
	Text    string `json:"text"`
	IsFinal bool   `json:"is_final"`
}

// Results is the per-start stream of recognition output. Both channels are
// closed when the worker stops; a fresh stream is created by every Start.
type Results struct {
	Events <-chan TranscriptionEvent
	Errors <-chan error
}

// Stoplist filters short false-positive tokens out of recognizer output
type Stoplist struct {
	words map[string]struct{}
}

// NewStoplist builds a case-insensitive stoplist
func NewStoplist(words []string) *Stoplist {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			set[w] = struct{}{}
		}
	}
	return &Stoplist{words: set}
}

// Blocked reports whether the text matches a stoplist entry
func (s *Stoplist) Blocked(text string) bool {
	_, ok := s.words[strings.ToLower(text)]
	return ok
}

// Len returns the number of stoplist entries
func (s *Stoplist) Len() int {
	return len(s.words)
}
