package drain

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

// Drain reads r until end-of-data, decoding with enc and pushing each complete
// line onto q. A trailing line without a terminator is pushed at end-of-data.
// "\r\n" and "\n" terminators are stripped. It blocks only on r.Read.
// Returns nil at EOF and the read error otherwise.
func Drain(r io.Reader, stream Stream, enc encoding.Encoding, q *Queue) error {
	if enc != nil {
		r = transform.NewReader(r, enc.NewDecoder())
	}
	reader := bufio.NewReader(r)

	for {
		text, err := reader.ReadString('\n')
		if text != "" {
			text = strings.TrimSuffix(text, "\n")
			text = strings.TrimSuffix(text, "\r")
			q.Push(Line{Stream: stream, Text: text})
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read %s: %w", stream, err)
		}
	}
}

// Worker runs Drain on its own goroutine.
type Worker struct {
	stream Stream
	done   chan struct{}
	err    error
}

// Start launches a Drain goroutine for r and returns immediately.
func Start(r io.Reader, stream Stream, enc encoding.Encoding, q *Queue) *Worker {
	w := &Worker{
		stream: stream,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(w.done)
		w.err = Drain(r, stream, enc, q)
	}()
	return w
}

// Done is closed once the stream reached end-of-data or failed.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Err returns the drain error. Only valid after Done is closed.
func (w *Worker) Err() error {
	<-w.done
	return w.err
}

// Stream returns the stream this worker reads.
func (w *Worker) Stream() Stream {
	return w.stream
}
