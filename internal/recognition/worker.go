package recognition

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/learitecnico/learion-glass-sub002/internal/config"
)

// State represents the worker lifecycle state
type State int

const (
	StateStopped State = iota
	StateRunning
	StatePaused
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

var (
	// ErrAlreadyRunning is returned by Start when the worker is not stopped.
	ErrAlreadyRunning = errors.New("recognition: worker already running")
	// ErrNotRunning is returned by Push when the worker is stopped.
	ErrNotRunning = errors.New("recognition: worker not running")
)

// WorkerStats represents worker statistics
type WorkerStats struct {
	State           string `json:"state"`
	QueueDepth      int    `json:"queue_depth"`
	FramesPushed    uint64 `json:"frames_pushed"`
	FramesProcessed uint64 `json:"frames_processed"`
	PartialsEmitted uint64 `json:"partials_emitted"`
	FinalsEmitted   uint64 `json:"finals_emitted"`
	StoplistDropped uint64 `json:"stoplist_dropped"`
	EventsDropped   uint64 `json:"events_dropped"`
	EngineErrors    uint64 `json:"engine_errors"`
	ClearedOnStop   int    `json:"cleared_on_stop"`
}

// Worker drives a recognizer engine from a bounded frame queue on a single
// goroutine. Pause leaves the queue accepting frames while the engine sits
// idle; resume continues from the exact backlog position. Each Start returns
// a fresh result stream whose channels close when the worker stops.
type Worker struct {
	engine   Engine
	stoplist *Stoplist
	queueCap int
	grace    time.Duration
	logger   *slog.Logger

	mu    sync.Mutex
	cond  *sync.Cond
	state State
	queue *FrameQueue
	done  chan struct{}
	stop  chan struct{}

	// Statistics
	framesPushed    uint64
	framesProcessed uint64
	partialsEmitted uint64
	finalsEmitted   uint64
	stoplistDropped uint64
	eventsDropped   uint64
	engineErrors    uint64
	clearedOnStop   int
	statsMu         sync.RWMutex
}

// NewWorker creates a worker around the given engine.
func NewWorker(engine Engine, cfg *config.RecognitionConfig, logger *slog.Logger) *Worker {
	w := &Worker{
		engine:   engine,
		stoplist: NewStoplist(cfg.Stoplist),
		queueCap: cfg.QueueCapacity,
		grace:    cfg.GetStopGraceDuration(),
		logger:   logger,
	}
	w.cond = sync.NewCond(&w.mu)
	return w
}

// Start transitions the worker to running and returns the result stream for
// this run. Starting a worker that is running or paused fails.
func (w *Worker) Start() (*Results, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateStopped {
		return nil, ErrAlreadyRunning
	}

	queue := NewFrameQueue(w.queueCap)
	events := make(chan TranscriptionEvent, 32)
	errs := make(chan error, 8)
	done := make(chan struct{})
	stop := make(chan struct{})

	w.queue = queue
	w.done = done
	w.stop = stop
	w.state = StateRunning
	w.engine.Reset()

	go w.run(queue, events, errs, done, stop)

	w.logger.Info("Recognition worker started", "queue_capacity", w.queueCap)
	return &Results{Events: events, Errors: errs}, nil
}

// Push enqueues one PCM frame, blocking while the queue is full. Frames are
// accepted while paused; they queue up until the worker resumes.
func (w *Worker) Push(frame []byte) error {
	w.mu.Lock()
	if w.state == StateStopped {
		w.mu.Unlock()
		return ErrNotRunning
	}
	queue := w.queue
	w.mu.Unlock()

	if err := queue.Push(frame); err != nil {
		return ErrNotRunning
	}

	w.statsMu.Lock()
	w.framesPushed++
	w.statsMu.Unlock()
	return nil
}

// Pause suspends or resumes frame consumption. Pausing an already paused
// worker or a stopped worker is a no-op, as is resuming a running one.
func (w *Worker) Pause(paused bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch {
	case paused && w.state == StateRunning:
		w.state = StatePaused
		w.logger.Info("Recognition worker paused")
	case !paused && w.state == StatePaused:
		w.state = StateRunning
		w.cond.Broadcast()
		w.logger.Info("Recognition worker resumed")
	}
}

// Stop halts the worker, waits up to the grace period for the loop to exit,
// then clears the queue and resets the engine. Stopping a stopped worker is
// a no-op.
func (w *Worker) Stop() {
	w.mu.Lock()
	if w.state == StateStopped {
		w.mu.Unlock()
		return
	}
	w.state = StateStopped
	queue := w.queue
	done := w.done
	close(w.stop)
	w.cond.Broadcast()
	w.mu.Unlock()

	queue.Close()

	select {
	case <-done:
	case <-time.After(w.grace):
		w.logger.Warn("Recognition loop did not exit within grace period",
			"grace", w.grace)
	}

	cleared := queue.Clear()
	w.engine.Reset()

	w.statsMu.Lock()
	w.clearedOnStop = cleared
	w.statsMu.Unlock()

	w.logger.Info("Recognition worker stopped", "cleared_frames", cleared)
}

// run is the consumption loop; it owns the engine for the duration of a run.
func (w *Worker) run(queue *FrameQueue, events chan TranscriptionEvent, errs chan error, done chan struct{}, stop chan struct{}) {
	defer func() {
		close(events)
		close(errs)
		close(done)
	}()

	for {
		frame, err := queue.Pop()
		if err != nil {
			return
		}

		// Hold the frame across a pause so FIFO order survives resume
		w.mu.Lock()
		for w.state == StatePaused {
			w.cond.Wait()
		}
		if w.state == StateStopped {
			w.mu.Unlock()
			return
		}
		w.mu.Unlock()

		final, err := w.engine.AcceptFrame(frame)
		if err != nil {
			w.statsMu.Lock()
			w.engineErrors++
			w.statsMu.Unlock()
			select {
			case errs <- err:
			default:
			}
			// A canceled engine cannot recover within this run; draining
			// the backlog would only repeat the same error per frame.
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				w.logger.Info("Recognition loop ending, engine context done", "error", err)
				return
			}
			continue
		}

		w.statsMu.Lock()
		w.framesProcessed++
		w.statsMu.Unlock()

		if final {
			w.emit(events, stop, w.engine.FinalResult(), true)
		} else if partial := w.engine.PartialResult(); partial != "" {
			w.emit(events, stop, partial, false)
		}
	}
}

// emit filters and forwards one recognition result. The send blocks when the
// consumer lags, so backpressure reaches the frame queue; only a stop in
// progress abandons the event.
func (w *Worker) emit(events chan TranscriptionEvent, stop chan struct{}, text string, final bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if w.stoplist.Blocked(text) {
		w.statsMu.Lock()
		w.stoplistDropped++
		w.statsMu.Unlock()
		w.logger.Debug("Dropped stoplist result", "text", text, "final", final)
		return
	}

	select {
	case events <- TranscriptionEvent{Text: text, IsFinal: final}:
		w.statsMu.Lock()
		if final {
			w.finalsEmitted++
		} else {
			w.partialsEmitted++
		}
		w.statsMu.Unlock()
	case <-stop:
		w.statsMu.Lock()
		w.eventsDropped++
		w.statsMu.Unlock()
		w.logger.Warn("Worker stopping, event dropped", "final", final)
	}
}

// GetState returns the current lifecycle state.
func (w *Worker) GetState() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// GetStats returns current worker statistics
func (w *Worker) GetStats() WorkerStats {
	w.mu.Lock()
	state := w.state
	queue := w.queue
	w.mu.Unlock()

	depth := 0
	if queue != nil {
		depth = queue.Len()
	}

	w.statsMu.RLock()
	defer w.statsMu.RUnlock()
	return WorkerStats{
		State:           state.String(),
		QueueDepth:      depth,
		FramesPushed:    w.framesPushed,
		FramesProcessed: w.framesProcessed,
		PartialsEmitted: w.partialsEmitted,
		FinalsEmitted:   w.finalsEmitted,
		StoplistDropped: w.stoplistDropped,
		EventsDropped:   w.eventsDropped,
		EngineErrors:    w.engineErrors,
		ClearedOnStop:   w.clearedOnStop,
	}
}
