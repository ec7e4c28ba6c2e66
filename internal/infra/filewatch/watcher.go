package filewatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the delay used when WithDebounce is not given.
const DefaultDebounce = 150 * time.Millisecond

// ErrClosed is returned by Add after Close.
var ErrClosed = errors.New("filewatch: watcher closed")

// Op describes what happened to a watched file.
type Op int

const (
	// Changed means the file was written or (re)created.
	Changed Op = iota + 1
	// Removed means the file was deleted or renamed away.
	Removed
)

func (o Op) String() string {
	switch o {
	case Changed:
		return "changed"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// Event is delivered to callbacks after debouncing.
type Event struct {
	Path string
	Op   Op
}

// Watcher watches files for changes.
type Watcher struct {
	fs       *fsnotify.Watcher
	logger   *slog.Logger
	debounce time.Duration

	mu        sync.Mutex
	callbacks map[string][]func(Event)
	dirs      map[string]bool
	pending   map[string]*time.Timer
	lastOp    map[string]Op
	closed    bool

	done      chan struct{}
	closeOnce sync.Once
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger for the watcher.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// WithDebounce sets the debounce duration. Zero delivers every event.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// New creates a watcher. Call Run (or Start) to begin delivering events.
func New(opts ...Option) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("filewatch: create watcher: %w", err)
	}

	w := &Watcher{
		fs:        fs,
		logger:    slog.Default(),
		debounce:  DefaultDebounce,
		callbacks: make(map[string][]func(Event)),
		dirs:      make(map[string]bool),
		pending:   make(map[string]*time.Timer),
		lastOp:    make(map[string]Op),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Add registers fn for changes to path. The file itself need not exist yet,
// but its directory must.
func (w *Watcher) Add(path string, fn func(Event)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("filewatch: resolve %s: %w", path, err)
	}
	dir := filepath.Dir(abs)

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	if !w.dirs[dir] {
		if err := w.fs.Add(dir); err != nil {
			return fmt.Errorf("filewatch: watch %s: %w", dir, err)
		}
		w.dirs[dir] = true
		w.logger.Debug("watching directory", "dir", dir)
	}
	w.callbacks[abs] = append(w.callbacks[abs], fn)
	return nil
}

// Run delivers events until ctx is cancelled or Close is called.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("file watcher error", "error", err)
		case <-ctx.Done():
			return w.Close()
		case <-w.done:
			return nil
		}
	}
}

// Start runs the watcher in a goroutine.
func (w *Watcher) Start(ctx context.Context) {
	go func() {
		if err := w.Run(ctx); err != nil {
			w.logger.Error("file watcher stopped with error", "error", err)
		}
	}()
}

// Close stops the watcher and cancels pending notifications.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		w.mu.Lock()
		w.closed = true
		for _, t := range w.pending {
			t.Stop()
		}
		w.mu.Unlock()

		close(w.done)
		err = w.fs.Close()
	})
	return err
}

func (w *Watcher) handle(event fsnotify.Event) {
	var op Op
	switch {
	case event.Has(fsnotify.Write), event.Has(fsnotify.Create):
		op = Changed
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		op = Removed
	default:
		return
	}

	path := filepath.Clean(event.Name)

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || len(w.callbacks[path]) == 0 {
		return
	}

	w.logger.Debug("watched file event", "file", path, "op", event.Op.String())
	w.lastOp[path] = op

	if w.debounce <= 0 {
		go w.fire(path)
		return
	}
	if t, ok := w.pending[path]; ok {
		t.Reset(w.debounce)
		return
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() { w.fire(path) })
}

func (w *Watcher) fire(path string) {
	w.mu.Lock()
	delete(w.pending, path)
	op := w.lastOp[path]
	callbacks := append([]func(Event){}, w.callbacks[path]...)
	closed := w.closed
	w.mu.Unlock()

	if closed {
		return
	}
	ev := Event{Path: path, Op: op}
	for _, fn := range callbacks {
		fn(ev)
	}
}
