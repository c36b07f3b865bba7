package recognition

import (
	"errors"
	"sync"
)

// ErrQueueClosed is returned by Push and Pop after Close.
var ErrQueueClosed = errors.New("recognition: frame queue closed")

// FrameQueue is a bounded FIFO of PCM frames connecting the capture side to
// the recognition worker. Push blocks while the queue is full so the
// producer experiences backpressure instead of frame loss.
type FrameQueue struct {
	mu       sync.Mutex
	notFull  *sync.Cond
	notEmpty *sync.Cond
	frames   [][]byte
	capacity int
	closed   bool
}

// NewFrameQueue creates a queue holding at most capacity frames.
func NewFrameQueue(capacity int) *FrameQueue {
	if capacity <= 0 {
		capacity = 1
	}
	q := &FrameQueue{capacity: capacity}
	q.notFull = sync.NewCond(&q.mu)
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// Push appends a frame, blocking while the queue is full. It returns
// ErrQueueClosed if the queue is closed before the frame is accepted.
func (q *FrameQueue) Push(frame []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.frames) >= q.capacity && !q.closed {
		q.notFull.Wait()
	}
	if q.closed {
		return ErrQueueClosed
	}
	q.frames = append(q.frames, frame)
	q.notEmpty.Signal()
	return nil
}

// Pop removes the oldest frame, blocking while the queue is empty. Frames
// already buffered are still drained after Close; once the queue is both
// closed and empty, Pop returns ErrQueueClosed.
func (q *FrameQueue) Pop() ([]byte, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.frames) == 0 && !q.closed {
		q.notEmpty.Wait()
	}
	if len(q.frames) == 0 {
		return nil, ErrQueueClosed
	}
	frame := q.frames[0]
	q.frames = q.frames[1:]
	q.notFull.Signal()
	return frame, nil
}

// Close wakes all blocked producers and consumers. Buffered frames remain
// poppable; new pushes fail.
func (q *FrameQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.notFull.Broadcast()
	q.notEmpty.Broadcast()
}

// Clear drops all buffered frames and returns how many were discarded.
func (q *FrameQueue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.frames)
	q.frames = nil
	q.notFull.Broadcast()
	return n
}

// Len returns the number of buffered frames.
func (q *FrameQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}
