package sink

import "sync"

// Kind identifies which Sink method produced an Entry.
type Kind string

const (
	KindOutput    Kind = "output"
	KindWarning   Kind = "warning"
	KindFailure   Kind = "failure"
	KindCountdown Kind = "countdown"
	KindExitCode  Kind = "exit_code"
	KindNotice    Kind = "notice"
)

// Entry is one recorded sink call.
type Entry struct {
	Kind      Kind
	Text      string
	Failure   FailureNotice
	Countdown CountdownNotice
	Code      int
}

// Recorder keeps every call in order for later inspection.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) add(e Entry) {
	r.mu.Lock()
	r.entries = append(r.entries, e)
	r.mu.Unlock()
}

func (r *Recorder) Output(line string) { r.add(Entry{Kind: KindOutput, Text: line}) }
func (r *Recorder) Warning(line string) { r.add(Entry{Kind: KindWarning, Text: line}) }
func (r *Recorder) Notice(text string) { r.add(Entry{Kind: KindNotice, Text: text}) }
func (r *Recorder) ExitCode(code int) { r.add(Entry{Kind: KindExitCode, Code: code}) }

func (r *Recorder) Failure(n FailureNotice) {
	r.add(Entry{Kind: KindFailure, Failure: n})
}

func (r *Recorder) Countdown(n CountdownNotice) {
	r.add(Entry{Kind: KindCountdown, Countdown: n})
}

// Entries returns a copy of all recorded calls.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

// Kinds returns the kind of each recorded call in order.
func (r *Recorder) Kinds() []Kind {
	var kinds []Kind
	for _, e := range r.Entries() {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

// Texts returns the text of every entry of the given kind.
func (r *Recorder) Texts(kind Kind) []string {
	var texts []string
	for _, e := range r.Entries() {
		if e.Kind == kind {
			texts = append(texts, e.Text)
		}
	}
	return texts
}

// Failures returns every failure notice.
func (r *Recorder) Failures() []FailureNotice {
	var out []FailureNotice
	for _, e := range r.Entries() {
		if e.Kind == KindFailure {
			out = append(out, e.Failure)
		}
	}
	return out
}

// Countdowns returns every countdown notice.
func (r *Recorder) Countdowns() []CountdownNotice {
	var out []CountdownNotice
	for _, e := range r.Entries() {
		if e.Kind == KindCountdown {
			out = append(out, e.Countdown)
		}
	}
	return out
}

// ExitCodes returns every forwarded exit code.
func (r *Recorder) ExitCodes() []int {
	var out []int
	for _, e := range r.Entries() {
		if e.Kind == KindExitCode {
			out = append(out, e.Code)
		}
	}
	return out
}
