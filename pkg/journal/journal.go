// Package journal is the append-only sink for the action log.
//
// The workshop calls Append while holding its mutex, so implementations must
// not block on anything the workshop controls and must keep appends in the
// order they are received.
package journal

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/daviddao/northpole/pkg/model"
)

// Journal receives every action of a run, in counter order.
type Journal interface {
	Append(a model.Action) error
}

// Writer writes one line per action to an io.Writer. Each line is flushed
// before Append returns, so interleavings are visible while the run is in
// progress.
type Writer struct {
	mu sync.Mutex
	bw *bufio.Writer
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{bw: bufio.NewWriter(w)}
}

// Append writes the action as a single line and flushes it.
func (w *Writer) Append(a model.Action) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.bw.WriteString(a.String() + "\n"); err != nil {
		return fmt.Errorf("write action %d: %w", a.Seq, err)
	}
	if err := w.bw.Flush(); err != nil {
		return fmt.Errorf("flush action %d: %w", a.Seq, err)
	}
	return nil
}

// File is a Writer backed by a file it owns.
type File struct {
	*Writer
	f *os.File
}

// Create creates or truncates path and returns a journal writing to it.
// The path "-" means standard output, which Close leaves open.
func Create(path string) (*File, error) {
	if path == "-" {
		return &File{Writer: NewWriter(os.Stdout)}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("open action log: %w", err)
	}
	return &File{Writer: NewWriter(f), f: f}, nil
}

// Close closes the underlying file.
func (f *File) Close() error {
	if f.f == nil {
		return nil
	}
	return f.f.Close()
}

// Recorder keeps every action in memory.
type Recorder struct {
	mu      sync.Mutex
	actions []model.Action
}

// Append records a copy of the action.
func (r *Recorder) Append(a model.Action) error {
	r.mu.Lock()
	r.actions = append(r.actions, a)
	r.mu.Unlock()
	return nil
}

// Actions returns a copy of everything recorded so far.
func (r *Recorder) Actions() []model.Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Action, len(r.actions))
	copy(out, r.actions)
	return out
}

// Len returns how many actions have been recorded.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.actions)
}

type tee []Journal

// Tee returns a journal that appends to each of js in turn and stops at the
// first error.
func Tee(js ...Journal) Journal {
	return tee(js)
}

func (t tee) Append(a model.Action) error {
	for _, j := range t {
		if err := j.Append(a); err != nil {
			return err
		}
	}
	return nil
}
