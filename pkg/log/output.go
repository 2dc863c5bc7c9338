package log

import (
	"io"
	"os"
	"sync"
)

// ConsoleOutput writes formatted entries to stdout, or stderr for warnings
// and above when SplitStderr is set.
type ConsoleOutput struct {
	// SplitStderr routes WarnLevel and above to stderr.
	SplitStderr bool

	mu sync.Mutex
}

// NewConsoleOutput returns a ConsoleOutput writing everything to stdout.
func NewConsoleOutput() *ConsoleOutput { return &ConsoleOutput{} }

func (o *ConsoleOutput) Write(entry *Entry, formatted []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	w := io.Writer(os.Stdout)
	if o.SplitStderr && entry.Level >= WarnLevel {
		w = os.Stderr
	}
	_, err := w.Write(formatted)
	return err
}

func (o *ConsoleOutput) Close() error { return nil }

// FileOutput appends formatted entries to a file, creating it on first write.
type FileOutput struct {
	Path string

	mu sync.Mutex
	f  *os.File
}

func NewFileOutput(path string) *FileOutput { return &FileOutput{Path: path} }

func (o *FileOutput) Write(_ *Entry, formatted []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.f == nil {
		f, err := os.OpenFile(o.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		o.f = f
	}
	_, err := o.f.Write(formatted)
	return err
}

func (o *FileOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.f == nil {
		return nil
	}
	err := o.f.Close()
	o.f = nil
	return err
}

// WriterOutput adapts an arbitrary io.Writer; used by tests.
type WriterOutput struct {
	W io.Writer

	mu sync.Mutex
}

func (o *WriterOutput) Write(_ *Entry, formatted []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, err := o.W.Write(formatted)
	return err
}

func (o *WriterOutput) Close() error { return nil }

// NullOutput discards everything.
type NullOutput struct{}

func (NullOutput) Write(*Entry, []byte) error { return nil }
func (NullOutput) Close() error               { return nil }
