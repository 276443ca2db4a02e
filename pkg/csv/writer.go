// Package csv writes exporter rows to ';'-separated files through a bounded queue
// drained by one goroutine per file.
package csv

import (
	"bufio"
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/canopy-network/dropcamp/pkg/errs"
	"go.uber.org/zap"
)

// QueueSize is the number of rows a writer buffers before Write blocks.
const QueueSize = 1024

// Separator is the field separator. Fields are written as is, without quoting.
const Separator = ";"

// ErrClosed is returned by Write after Close.
var ErrClosed = errors.New("csv writer closed")

// Item is a value that expands into CSV rows. Header is called on the zero value.
type Item interface {
	Header() []string
	Rows() [][]string
}

// Writer is the producer side of one CSV file. It is safe for concurrent use.
type Writer[T Item] struct {
	path   string
	file   *os.File
	rows   chan []string
	failed chan struct{}
	done   chan struct{}
	err    error // set by run before failed is closed
	logger *zap.Logger

	written atomic.Uint64

	mu     sync.RWMutex
	closed bool
}

// Create truncates path, starts the writer goroutine and enqueues the header.
func Create[T Item](logger *zap.Logger, path string) (*Writer[T], error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, errs.E(errs.ErrIO, "create csv", err)
	}

	w := &Writer[T]{
		path:   path,
		file:   f,
		rows:   make(chan []string, QueueSize),
		failed: make(chan struct{}),
		done:   make(chan struct{}),
		logger: logger.With(zap.String("file", path)),
	}
	go w.run()

	var zero T
	if err := w.enqueue(context.Background(), zero.Header()); err != nil {
		_ = w.Close()
		return nil, err
	}
	return w, nil
}

func (w *Writer[T]) run() {
	defer close(w.done)

	bw := bufio.NewWriter(w.file)
	header := true
	for row := range w.rows {
		_, err := bw.WriteString(strings.Join(row, Separator) + "\n")
		if err == nil {
			err = bw.Flush()
		}
		if err != nil {
			w.err = errs.E(errs.ErrIO, "write csv "+w.path, err)
			close(w.failed)
			// Discard until Close.
			for range w.rows {
			}
			return
		}
		if header {
			header = false
			continue
		}
		w.written.Add(1)
	}
}

// Write enqueues every row of item in order. It blocks while the queue is full.
func (w *Writer[T]) Write(ctx context.Context, item T) error {
	for _, row := range item.Rows() {
		if err := w.enqueue(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer[T]) enqueue(ctx context.Context, row []string) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return ErrClosed
	}

	select {
	case w.rows <- row:
		return nil
	case <-w.failed:
		return w.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Rows reports how many data rows reached the file, header excluded.
func (w *Writer[T]) Rows() uint64 { return w.written.Load() }

// Path is the file being written.
func (w *Writer[T]) Path() string { return w.path }

// Close stops accepting rows, waits for the queue to drain and closes the file.
// It returns the first write error, if any. Subsequent calls return nil.
func (w *Writer[T]) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.rows)
	w.mu.Unlock()

	<-w.done
	err := w.err
	if cerr := w.file.Close(); cerr != nil && err == nil {
		err = errs.E(errs.ErrIO, "close csv "+w.path, cerr)
	}
	w.logger.Debug("csv closed", zap.Uint64("rows", w.Rows()))
	return err
}
