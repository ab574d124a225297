package hook

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Op describes what happened to a unit file.
type Op int

// Unit file operations.
const (
	OpCreate Op = iota + 1
	OpWrite
	OpRemove
)

// String returns the operation name.
func (o Op) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpWrite:
		return "write"
	case OpRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// Change reports a unit file change.
type Change struct {
	Name      string // file name within the hook dir
	Path      string
	Op        Op
	Timestamp time.Time
}

// Matches reports whether the changed file applies to typeName.
func (c Change) Matches(typeName string) bool {
	return Match(Key(typeName), c.Name)
}

// Watcher watches a hook directory for new or changed units.
//
// The watcher never touches component state. Consumers read Changes and
// re-run discovery on the goroutine that owns the component.
type Watcher struct {
	mu sync.Mutex

	fsw     *fsnotify.Watcher
	dir     string
	changes chan Change
	errors  chan error

	closed   bool
	closeCh  chan struct{}
	closedWg sync.WaitGroup
}

// NewWatcher starts watching dir.
func NewWatcher(dir string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	w := &Watcher{
		fsw:     fsw,
		dir:     dir,
		changes: make(chan Change, 64),
		errors:  make(chan error, 8),
		closeCh: make(chan struct{}),
	}

	w.closedWg.Add(1)
	go w.processLoop()

	return w, nil
}

// Changes returns the channel of unit changes.
func (w *Watcher) Changes() <-chan Change {
	return w.changes
}

// Errors returns the channel of watch errors.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string {
	return w.dir
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrWatcherClosed
	}
	w.closed = true
	w.mu.Unlock()

	close(w.closeCh)
	err := w.fsw.Close()
	w.closedWg.Wait()
	close(w.changes)
	close(w.errors)
	return err
}

func (w *Watcher) processLoop() {
	defer w.closedWg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			op := convertOp(ev.Op)
			if op == 0 {
				continue
			}
			change := Change{
				Name:      filepath.Base(ev.Name),
				Path:      ev.Name,
				Op:        op,
				Timestamp: time.Now(),
			}
			select {
			case w.changes <- change:
			case <-w.closeCh:
				return
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			default:
			}
		}
	}
}

func convertOp(op fsnotify.Op) Op {
	switch {
	case op.Has(fsnotify.Create):
		return OpCreate
	case op.Has(fsnotify.Write):
		return OpWrite
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return OpRemove
	default:
		return 0
	}
}
