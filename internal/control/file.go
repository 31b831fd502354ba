package control

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrRegister marks failures to set up a control surface.
var ErrRegister = errors.New("control: registration failed")

// DefaultPath is where the control file is created.
const DefaultPath = "/run/traffic-light/power"

const fileMode = 0o664

// File exposes the power state as a read/write text file. Writing a value
// to the file arms or disarms the target; the file is rewritten with the
// normalised "0"/"1" afterwards so reads always report the current state.
type File struct {
	path    string
	target  Target
	changed chan struct{}

	mu        sync.Mutex
	written   string    // content of our last write
	writtenAt time.Time // modification time of our last write
	watcher   *fsnotify.Watcher
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewFile creates an unregistered control file surface.
func NewFile(path string, target Target) *File {
	return &File{
		path:    filepath.Clean(path),
		target:  target,
		changed: make(chan struct{}, 1),
	}
}

// Path returns the control file location.
func (f *File) Path() string {
	return f.path
}

// Register creates the file holding the current state and starts watching
// it. On failure nothing is left behind.
func (f *File) Register() error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrRegister, dir, err)
	}
	if err := f.write(f.target.Powered()); err != nil {
		return fmt.Errorf("%w: %v", ErrRegister, err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		os.Remove(f.path)
		return fmt.Errorf("%w: create watcher: %v", ErrRegister, err)
	}
	// Watch the directory so editors that replace the file are seen too.
	if err := w.Add(dir); err != nil {
		w.Close()
		os.Remove(f.path)
		return fmt.Errorf("%w: watch %s: %v", ErrRegister, dir, err)
	}

	f.watcher = w
	f.done = make(chan struct{})
	f.wg.Add(1)
	go f.watch(w, f.done)

	log.Printf("control: watching %s", f.path)
	return nil
}

// Unregister stops watching and removes the file.
func (f *File) Unregister() error {
	if f.watcher == nil {
		return nil
	}
	close(f.done)
	err := f.watcher.Close()
	f.wg.Wait()
	f.watcher = nil

	if rmErr := os.Remove(f.path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
		err = errors.Join(err, rmErr)
	}
	return err
}

// Sync rewrites the file if it does not hold the current state.
func (f *File) Sync() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.syncLocked()
}

// Changed tells the watcher that the target's power changed through another
// surface. It never blocks, so it may be called from a scheduler listener.
func (f *File) Changed() {
	select {
	case f.changed <- struct{}{}:
	default:
	}
}

func (f *File) watch(w *fsnotify.Watcher, done <-chan struct{}) {
	defer f.wg.Done()
	for {
		select {
		case <-done:
			return

		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != f.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				f.handleWrite()
			}

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			log.Printf("control: watcher error: %v", err)

		case <-f.changed:
			f.handleWrite()
		}
	}
}

// handleWrite reconciles the file with the target. A write we did not make
// is applied first; the file is then rewritten if it no longer matches.
func (f *File) handleWrite() {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, mod, err := f.read()
	if err != nil {
		log.Printf("control: read %s: %v", f.path, err)
		return
	}

	if !f.ownLocked(data, mod) {
		// A truncate arrives as its own event with an empty file.
		on, ok := ParsePower(data)
		if !ok {
			return
		}
		if Apply(f.target, on) {
			log.Printf("control: power=%s via %s", FormatPower(on), f.path)
		}
	}
	if err := f.syncLocked(); err != nil {
		log.Printf("control: %v", err)
	}
}

// ownLocked reports whether the file still holds exactly what we last wrote.
// A user writing the same bytes again changes the modification time.
func (f *File) ownLocked(data string, mod time.Time) bool {
	return data == f.written && mod.Equal(f.writtenAt)
}

func (f *File) read() (string, time.Time, error) {
	fh, err := os.Open(f.path)
	if err != nil {
		return "", time.Time{}, err
	}
	defer fh.Close()

	info, err := fh.Stat()
	if err != nil {
		return "", time.Time{}, err
	}
	data, err := io.ReadAll(fh)
	if err != nil {
		return "", time.Time{}, err
	}
	return string(data), info.ModTime(), nil
}

func (f *File) syncLocked() error {
	on := f.target.Powered()
	data, mod, err := f.read()
	if err == nil && data == FormatPower(on)+"\n" {
		f.written, f.writtenAt = data, mod
		return nil
	}
	return f.write(on)
}

func (f *File) write(on bool) error {
	content := FormatPower(on) + "\n"
	if err := os.WriteFile(f.path, []byte(content), fileMode); err != nil {
		return fmt.Errorf("write %s: %w", f.path, err)
	}
	f.written = content
	if info, err := os.Stat(f.path); err == nil {
		f.writtenAt = info.ModTime()
	}
	return nil
}
