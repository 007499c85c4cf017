// Package walker implements the session-level navigation cursor over a
// directory tree: a stack of DirHandles from the root to the current
// directory.
package walker

import (
	"strings"

	"github.com/vilterp/blockfs/errors"
	"github.com/vilterp/blockfs/handle"
)

// FSWalker is a stack of directory handles, root at the bottom.
type FSWalker struct {
	backend handle.Backend
	stack   []*handle.DirHandle
}

// New creates a walker anchored at root.
func New(backend handle.Backend, root *handle.DirHandle) *FSWalker {
	return &FSWalker{
		backend: backend,
		stack:   []*handle.DirHandle{root},
	}
}

// AtRoot reports whether the walker is positioned at the root directory.
func (w *FSWalker) AtRoot() bool {
	return len(w.stack) == 1
}

// CurDir returns the handle for the directory the walker is currently in.
func (w *FSWalker) CurDir() *handle.DirHandle {
	return w.stack[len(w.stack)-1]
}

// CurPath joins the stack's names with "/"; the root's own (empty) name is
// never included, so it reports "/" at the root.
func (w *FSWalker) CurPath() string {
	if w.AtRoot() {
		return "/"
	}
	names := make([]string, 0, len(w.stack)-1)
	for _, d := range w.stack[1:] {
		names = append(names, d.Name())
	}
	return "/" + strings.Join(names, "/")
}

// Exists reports whether name is an entry of the current directory.
func (w *FSWalker) Exists(name string) (bool, error) {
	return w.CurDir().Exists(w.backend, name)
}

// GetEntries returns the current directory's entries.
func (w *FSWalker) GetEntries() (map[string]handle.Entry, error) {
	return w.CurDir().GetEntries(w.backend)
}

// EnterDir descends into the named child directory. The literal name ".."
// is reserved to mean "go up a level" rather than being looked up as a
// child, since the core layer doesn't reject it as a valid directory name.
func (w *FSWalker) EnterDir(name string) error {
	if name == ".." {
		return w.CdUp()
	}

	entries, err := w.GetEntries()
	if err != nil {
		return err
	}
	entry, ok := entries[name]
	if !ok {
		return errors.ErrDoesNotExist.WithMessage(name)
	}
	if !entry.IsDir() {
		return errors.ErrNotADir.WithMessage(name)
	}
	w.stack = append(w.stack, entry.(*handle.DirHandle))
	return nil
}

// CdUp pops the current directory off the stack. Calling it at the root is
// a programming error, not a user-facing one: it panics rather than
// returning a DoesNotExist-flavored error.
func (w *FSWalker) CdUp() error {
	if w.AtRoot() {
		panic("walker: cd_up called at root")
	}
	w.stack = w.stack[:len(w.stack)-1]
	return nil
}

// CreateDir creates a subdirectory of the current directory.
func (w *FSWalker) CreateDir(name string) (*handle.DirHandle, error) {
	return w.CurDir().CreateDir(w.backend, name)
}

// CreateFile creates a file in the current directory.
func (w *FSWalker) CreateFile(name string) (*handle.FileHandle, error) {
	return w.CurDir().CreateFile(w.backend, name)
}

// Remove deletes the named entry of the current directory. Directories may
// only be removed non-recursively when empty.
func (w *FSWalker) Remove(name string) error {
	return w.CurDir().Remove(w.backend, name)
}

// RemoveDirRecursive deletes the named subdirectory and everything beneath
// it: directories depth-first, files directly. It snapshots the entries of
// each directory before recursing into it, since removal mutates the live
// cache.
func (w *FSWalker) RemoveDirRecursive(name string) error {
	if err := w.EnterDir(name); err != nil {
		return err
	}

	entries, err := w.GetEntries()
	if err != nil {
		return err
	}
	snapshot := make([]handle.Entry, 0, len(entries))
	for _, entry := range entries {
		snapshot = append(snapshot, entry)
	}

	for _, entry := range snapshot {
		if entry.IsDir() {
			if err := w.RemoveDirRecursive(entry.Name()); err != nil {
				return err
			}
		} else {
			if err := w.Remove(entry.Name()); err != nil {
				return err
			}
		}
	}

	if err := w.CdUp(); err != nil {
		return err
	}
	return w.Remove(name)
}
