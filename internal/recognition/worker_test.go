package recognition

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/learitecnico/learion-glass-sub002/internal/config"
)

// scriptedResult is one engine reaction consumed per accepted frame.
type scriptedResult struct {
	text  string
	final bool
	err   error
}

// scriptedEngine replays a fixed sequence of results and records every frame
// it accepts.
type scriptedEngine struct {
	mu      sync.Mutex
	frames  [][]byte
	script  []scriptedResult
	partial string
	final   string
	resets  int
}

func (e *scriptedEngine) AcceptFrame(frame []byte) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.frames = append(e.frames, frame)
	if len(e.script) == 0 {
		return false, nil
	}
	r := e.script[0]
	e.script = e.script[1:]
	if r.err != nil {
		return false, r.err
	}
	if r.final {
		e.final = r.text
		return true, nil
	}
	e.partial = r.text
	return false, nil
}

func (e *scriptedEngine) PartialResult() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	p := e.partial
	e.partial = ""
	return p
}

func (e *scriptedEngine) FinalResult() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.final
}

func (e *scriptedEngine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resets++
	e.partial = ""
	e.final = ""
}

func (e *scriptedEngine) Close() error { return nil }

func (e *scriptedEngine) acceptedFrames() [][]byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	frames := make([][]byte, len(e.frames))
	copy(frames, e.frames)
	return frames
}

func testWorkerConfig() *config.RecognitionConfig {
	return &config.RecognitionConfig{
		QueueCapacity:      16,
		StopGrace:          1.0,
		SpeechThreshold:    0.02,
		MinSpeechDuration:  0.2,
		MinSilenceDuration: 0.3,
		MaxUtterance:       2.0,
		Stoplist:           []string{"it", "uh"},
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestWorkerStartStop(t *testing.T) {
	engine := &scriptedEngine{}
	w := NewWorker(engine, testWorkerConfig(), testLogger())

	if w.GetState() != StateStopped {
		t.Errorf("Expected stopped state, got %s", w.GetState())
	}

	results, err := w.Start()
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if w.GetState() != StateRunning {
		t.Errorf("Expected running state, got %s", w.GetState())
	}

	if _, err := w.Start(); err != ErrAlreadyRunning {
		t.Errorf("Expected ErrAlreadyRunning, got %v", err)
	}

	w.Stop()
	if w.GetState() != StateStopped {
		t.Errorf("Expected stopped state, got %s", w.GetState())
	}

	// Both channels close when the worker stops
	if _, ok := <-results.Events; ok {
		t.Error("Events channel not closed after Stop")
	}
	if _, ok := <-results.Errors; ok {
		t.Error("Errors channel not closed after Stop")
	}

	// Stopping twice is a no-op
	w.Stop()
}

func TestWorkerProcessesFramesInOrder(t *testing.T) {
	engine := &scriptedEngine{}
	w := NewWorker(engine, testWorkerConfig(), testLogger())

	if _, err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	for i := 0; i < 5; i++ {
		if err := w.Push([]byte{byte(i), 0}); err != nil {
			t.Fatalf("Push %d failed: %v", i, err)
		}
	}

	waitFor(t, time.Second, func() bool {
		return w.GetStats().FramesProcessed == 5
	}, "Worker did not process all frames")

	frames := engine.acceptedFrames()
	for i, frame := range frames {
		if frame[0] != byte(i) {
			t.Errorf("Frame %d out of order: got %v", i, frame)
		}
	}
}

func TestWorkerPauseResume(t *testing.T) {
	engine := &scriptedEngine{}
	w := NewWorker(engine, testWorkerConfig(), testLogger())

	if _, err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	w.Pause(true)
	if w.GetState() != StatePaused {
		t.Errorf("Expected paused state, got %s", w.GetState())
	}

	// Frames are accepted while paused and queue up
	for i := 0; i < 10; i++ {
		if err := w.Push([]byte{byte(i), 0}); err != nil {
			t.Fatalf("Push %d failed while paused: %v", i, err)
		}
	}

	time.Sleep(50 * time.Millisecond)
	if processed := w.GetStats().FramesProcessed; processed != 0 {
		t.Errorf("Paused worker processed %d frames", processed)
	}

	w.Pause(false)
	waitFor(t, time.Second, func() bool {
		return w.GetStats().FramesProcessed == 10
	}, "Worker did not drain backlog after resume")

	frames := engine.acceptedFrames()
	for i, frame := range frames {
		if frame[0] != byte(i) {
			t.Errorf("Frame %d out of order after resume: got %v", i, frame)
		}
	}
}

func TestWorkerPauseIsIdempotent(t *testing.T) {
	engine := &scriptedEngine{}
	w := NewWorker(engine, testWorkerConfig(), testLogger())

	// Pausing or resuming a stopped worker changes nothing
	w.Pause(true)
	if w.GetState() != StateStopped {
		t.Errorf("Pause on stopped worker changed state to %s", w.GetState())
	}

	if _, err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	w.Pause(false) // resume while running is a no-op
	if w.GetState() != StateRunning {
		t.Errorf("Expected running state, got %s", w.GetState())
	}

	w.Pause(true)
	w.Pause(true)
	if w.GetState() != StatePaused {
		t.Errorf("Expected paused state, got %s", w.GetState())
	}
}

func TestWorkerStopClearsQueue(t *testing.T) {
	engine := &scriptedEngine{}
	w := NewWorker(engine, testWorkerConfig(), testLogger())

	if _, err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	w.Pause(true)
	for i := 0; i < 5; i++ {
		if err := w.Push([]byte{byte(i), 0}); err != nil {
			t.Fatalf("Push %d failed: %v", i, err)
		}
	}

	w.Stop()

	stats := w.GetStats()
	if stats.FramesProcessed != 0 {
		t.Errorf("Expected 0 processed frames, got %d", stats.FramesProcessed)
	}
	if stats.ClearedOnStop < 4 {
		t.Errorf("Expected at least 4 cleared frames, got %d", stats.ClearedOnStop)
	}
	if engine.resets == 0 {
		t.Error("Engine was not reset on Stop")
	}

	if err := w.Push([]byte{9, 0}); err != ErrNotRunning {
		t.Errorf("Expected ErrNotRunning after Stop, got %v", err)
	}
}

func TestWorkerEmitsPartialAndFinal(t *testing.T) {
	engine := &scriptedEngine{
		script: []scriptedResult{
			{text: "hel", final: false},
			{text: "hello world", final: true},
		},
	}
	w := NewWorker(engine, testWorkerConfig(), testLogger())

	results, err := w.Start()
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	w.Push([]byte{1, 0})
	w.Push([]byte{2, 0})

	partial := <-results.Events
	if partial.Text != "hel" || partial.IsFinal {
		t.Errorf("Expected partial 'hel', got %+v", partial)
	}

	final := <-results.Events
	if final.Text != "hello world" || !final.IsFinal {
		t.Errorf("Expected final 'hello world', got %+v", final)
	}
}

func TestWorkerStoplistFiltering(t *testing.T) {
	engine := &scriptedEngine{
		script: []scriptedResult{
			{text: "it", final: true},          // stoplist hit
			{text: "  ", final: true},          // whitespace only
			{text: "hello world", final: true}, // surfaces
		},
	}
	w := NewWorker(engine, testWorkerConfig(), testLogger())

	results, err := w.Start()
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	for i := 0; i < 3; i++ {
		w.Push([]byte{byte(i), 0})
	}

	select {
	case ev := <-results.Events:
		if ev.Text != "hello world" || !ev.IsFinal {
			t.Errorf("Expected final 'hello world', got %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("No event surfaced")
	}

	waitFor(t, time.Second, func() bool {
		return w.GetStats().StoplistDropped == 1
	}, "Stoplist drop not counted")
	if w.GetStats().FinalsEmitted != 1 {
		t.Errorf("Expected 1 final emitted, got %d", w.GetStats().FinalsEmitted)
	}
}

func TestWorkerForwardsEngineErrors(t *testing.T) {
	engineErr := errors.New("model crashed")
	engine := &scriptedEngine{
		script: []scriptedResult{
			{err: engineErr},
			{text: "recovered", final: true},
		},
	}
	w := NewWorker(engine, testWorkerConfig(), testLogger())

	results, err := w.Start()
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	w.Push([]byte{1, 0})
	w.Push([]byte{2, 0})

	select {
	case err := <-results.Errors:
		if !errors.Is(err, engineErr) {
			t.Errorf("Expected engine error, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Engine error not forwarded")
	}

	// A failed frame does not stop the loop
	select {
	case ev := <-results.Events:
		if ev.Text != "recovered" {
			t.Errorf("Expected 'recovered', got %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("Worker did not continue after engine error")
	}
}

func TestWorkerStopsOnCanceledEngine(t *testing.T) {
	engine := &scriptedEngine{
		script: []scriptedResult{
			{err: context.Canceled},
			{text: "after cancel", final: true},
		},
	}
	w := NewWorker(engine, testWorkerConfig(), testLogger())

	results, err := w.Start()
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	w.Push([]byte{1, 0})
	w.Push([]byte{2, 0})

	select {
	case err := <-results.Errors:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Cancellation error not forwarded")
	}

	// The loop ends instead of draining the backlog against a dead context
	select {
	case ev, ok := <-results.Events:
		if ok {
			t.Errorf("Loop continued past cancellation, emitted %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("Events channel not closed after cancellation")
	}
}

func TestWorkerBlocksWhenConsumerLags(t *testing.T) {
	var script []scriptedResult
	for i := 0; i < 40; i++ {
		script = append(script, scriptedResult{text: fmt.Sprintf("line %02d", i), final: true})
	}
	engine := &scriptedEngine{script: script}
	w := NewWorker(engine, testWorkerConfig(), testLogger())

	results, err := w.Start()
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	for i := 0; i < 40; i++ {
		if err := w.Push([]byte{byte(i), 0}); err != nil {
			t.Fatalf("Push %d failed: %v", i, err)
		}
	}

	// With nobody reading, the loop stalls once the event buffer fills
	time.Sleep(100 * time.Millisecond)
	if dropped := w.GetStats().EventsDropped; dropped != 0 {
		t.Fatalf("Events dropped while consumer lagged: %d", dropped)
	}

	for i := 0; i < 40; i++ {
		select {
		case ev := <-results.Events:
			if want := fmt.Sprintf("line %02d", i); ev.Text != want {
				t.Errorf("Event %d: expected %q, got %q", i, want, ev.Text)
			}
		case <-time.After(time.Second):
			t.Fatalf("Event %d never arrived", i)
		}
	}

	waitFor(t, time.Second, func() bool {
		return w.GetStats().FinalsEmitted == 40
	}, "Not all finals counted")
	if dropped := w.GetStats().EventsDropped; dropped != 0 {
		t.Errorf("Expected 0 dropped events, got %d", dropped)
	}
}

func TestWorkerStopUnblocksPendingEmit(t *testing.T) {
	var script []scriptedResult
	for i := 0; i < 34; i++ {
		script = append(script, scriptedResult{text: fmt.Sprintf("line %02d", i), final: true})
	}
	engine := &scriptedEngine{script: script}
	w := NewWorker(engine, testWorkerConfig(), testLogger())

	results, err := w.Start()
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	for i := 0; i < 34; i++ {
		if err := w.Push([]byte{byte(i), 0}); err != nil {
			t.Fatalf("Push %d failed: %v", i, err)
		}
	}

	// The loop is parked on a full event buffer; Stop must not wait out
	// the grace period
	waitFor(t, time.Second, func() bool {
		return w.GetStats().FramesProcessed == 33
	}, "Loop did not stall on the full event buffer")

	start := time.Now()
	w.Stop()
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Stop took %v with a blocked emit", elapsed)
	}

	if dropped := w.GetStats().EventsDropped; dropped == 0 {
		t.Error("Abandoned event not counted as dropped")
	}

	// Buffered events remain readable, then the channel closes
	drained := 0
	for range results.Events {
		drained++
	}
	if drained != 32 {
		t.Errorf("Expected 32 buffered events, got %d", drained)
	}
}

func TestWorkerRestartCreatesFreshStream(t *testing.T) {
	engine := &scriptedEngine{}
	w := NewWorker(engine, testWorkerConfig(), testLogger())

	first, err := w.Start()
	if err != nil {
		t.Fatalf("First start failed: %v", err)
	}
	w.Stop()

	second, err := w.Start()
	if err != nil {
		t.Fatalf("Restart failed: %v", err)
	}
	defer w.Stop()

	if first.Events == second.Events {
		t.Error("Restart reused the previous event channel")
	}
	if _, ok := <-first.Events; ok {
		t.Error("Previous event channel still open after restart")
	}
}

func TestStoplist(t *testing.T) {
	tests := []struct {
		name    string
		words   []string
		text    string
		blocked bool
	}{
		{"exact match", []string{"it", "uh"}, "it", true},
		{"case insensitive", []string{"it"}, "IT", true},
		{"no match", []string{"it"}, "item", false},
		{"phrase not blocked", []string{"it"}, "it works", false},
		{"empty list", nil, "it", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStoplist(tt.words)
			if got := s.Blocked(tt.text); got != tt.blocked {
				t.Errorf("Blocked(%q) = %v, expected %v", tt.text, got, tt.blocked)
			}
		})
	}
}
