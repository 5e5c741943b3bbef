// Package drain moves child process output from blocking pipe reads into
// per-stream FIFO queues that a consumer empties at its own pace.
package drain

import "sync"

// Stream identifies which child output channel a line came from.
type Stream int

const (
	// StreamStdout is the child's primary output.
	StreamStdout Stream = iota
	// StreamStderr is the child's error output.
	StreamStderr
)

// String returns the conventional stream name.
func (s Stream) String() string {
	switch s {
	case StreamStdout:
		return "stdout"
	case StreamStderr:
		return "stderr"
	default:
		return "unknown"
	}
}

// Line is one decoded line of child output, without its terminator.
type Line struct {
	Stream Stream
	Text   string
}

// Queue is an unbounded FIFO of lines safe for one or more producers and
// consumers. Push never blocks on the consumer.
type Queue struct {
	mu    sync.Mutex
	items []Line
	ready chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{ready: make(chan struct{}, 1)}
}

// Push appends a line and signals Ready.
func (q *Queue) Push(line Line) {
	q.mu.Lock()
	q.items = append(q.items, line)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
		// A wake-up is already pending
	}
}

// TryPop removes and returns the oldest line, if any.
func (q *Queue) TryPop() (Line, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return Line{}, false
	}
	line := q.items[0]
	q.items[0] = Line{}
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return line, true
}

// DrainTo pops every line currently queued, in order, and passes each to fn.
// Lines pushed while fn runs are picked up before DrainTo returns.
// Returns the number of lines delivered.
func (q *Queue) DrainTo(fn func(Line)) int {
	n := 0
	for {
		q.mu.Lock()
		batch := q.items
		q.items = nil
		q.mu.Unlock()

		if len(batch) == 0 {
			return n
		}
		for _, line := range batch {
			fn(line)
		}
		n += len(batch)
	}
}

// Len returns the number of queued lines.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Ready returns a channel that receives after one or more Pushes.
// Wake-ups are coalesced; always drain fully after receiving.
func (q *Queue) Ready() <-chan struct{} {
	return q.ready
}
