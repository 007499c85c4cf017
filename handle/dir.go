package handle

import (
	"encoding/binary"
	"strings"

	"github.com/vilterp/blockfs/block"
	"github.com/vilterp/blockfs/errors"
	"github.com/vilterp/blockfs/inode"
)

// Entry is anything GetEntries can return: either a *FileHandle or a
// *DirHandle.
type Entry interface {
	Name() string
	IsDir() bool
}

// DirHandle is a Handle over an inode whose payload is a packed sequence of
// 32-bit child-inode block indices.
type DirHandle struct {
	Handle

	entries map[string]Entry // lazily populated, nil until first GetEntries
}

// NewDirHandle wraps in as a DirHandle with an empty entry cache.
func NewDirHandle(in *inode.Inode) *DirHandle {
	return &DirHandle{Handle: NewHandle(in)}
}

// Name returns the directory's name, as stored in its inode. The root
// directory's name is the empty string.
func (d *DirHandle) Name() string {
	return d.Inode.Name
}

// IsDir always returns true for a DirHandle.
func (d *DirHandle) IsDir() bool {
	return true
}

// NumEntries returns the number of directory entries, derived from length.
func (d *DirHandle) NumEntries() int32 {
	return d.Length() / 4
}

// IsEmpty reports whether the directory has no entries.
func (d *DirHandle) IsEmpty() bool {
	return d.NumEntries() == 0
}

// GetPointers reads the entire payload as a sequence of child-inode block
// indices.
func (d *DirHandle) GetPointers(backend Backend) ([]block.ID, error) {
	if err := d.SeekToBeg(backend); err != nil {
		return nil, err
	}

	pointers := make([]block.ID, 0, d.NumEntries())
	for !d.AtEnd() {
		buf, err := d.Read(backend, 4)
		if err != nil {
			return nil, err
		}
		pointers = append(pointers, block.ID(int32(binary.LittleEndian.Uint32(buf))))
	}
	return pointers, nil
}

func (d *DirHandle) writePointerAt(backend Backend, offset int32, id block.ID) error {
	if err := d.SeekAbs(backend, offset); err != nil {
		return err
	}
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(int32(id)))
	return d.Write(backend, buf)
}

func (d *DirHandle) appendPointer(backend Backend, id block.ID) error {
	if err := d.SeekToEnd(backend); err != nil {
		return err
	}
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(int32(id)))
	return d.Write(backend, buf)
}

// GetEntries returns the directory's children, keyed by name. The result is
// computed on first call and cached; CreateDir, CreateFile, Remove, and
// Rename all keep the cache coherent.
func (d *DirHandle) GetEntries(backend Backend) (map[string]Entry, error) {
	if d.entries != nil {
		return d.entries, nil
	}

	pointers, err := d.GetPointers(backend)
	if err != nil {
		return nil, err
	}

	entries := make(map[string]Entry, len(pointers))
	for _, ptr := range pointers {
		childInode, err := backend.ReadInode(ptr)
		if err != nil {
			return nil, err
		}
		var entry Entry
		if childInode.IsDir {
			entry = NewDirHandle(childInode)
		} else {
			entry = NewFileHandle(childInode)
		}
		entries[childInode.Name] = entry
	}
	d.entries = entries
	return entries, nil
}

// Exists reports whether name is a child of this directory.
func (d *DirHandle) Exists(backend Backend, name string) (bool, error) {
	entries, err := d.GetEntries(backend)
	if err != nil {
		return false, err
	}
	_, ok := entries[name]
	return ok, nil
}

// invalidNameChars is the set of bytes a name must not contain, per the
// rule: one or more characters drawn from the complement of \t\n\r\f\v/.
const invalidNameChars = "\t\n\r\f\v/"

// IsValidName reports whether name is non-empty and contains none of
// \t\n\r\f\v/. The core layer permits the literal name "..": reserving it
// is the walker's responsibility.
func IsValidName(name string) bool {
	if name == "" {
		return false
	}
	return !strings.ContainsAny(name, invalidNameChars)
}

// CreateChildInode allocates an inode and its first data block, writes the
// inode, and appends its block index to this directory's payload. The
// inode is durably written before the parent's pointer is appended, so the
// parent never points at a half-written inode.
func (d *DirHandle) CreateChildInode(backend Backend, name string, isDir bool) (*inode.Inode, error) {
	if !IsValidName(name) {
		return nil, errors.ErrInvalidName.WithMessage(name)
	}

	entries, err := d.GetEntries(backend)
	if err != nil {
		return nil, err
	}
	if _, exists := entries[name]; exists {
		return nil, errors.ErrAlreadyExists.WithMessage(name)
	}

	inodeBlock, err := backend.AllocBlock()
	if err != nil {
		return nil, err
	}
	firstDataBlock, err := backend.AllocBlock()
	if err != nil {
		return nil, err
	}

	child := &inode.Inode{
		BlockInd: inodeBlock,
		Name:     name,
		IsDir:    isDir,
		Length:   0,
	}
	child.Blocks[0] = firstDataBlock

	if err := backend.WriteInode(child); err != nil {
		return nil, err
	}

	if err := d.appendPointer(backend, inodeBlock); err != nil {
		return nil, err
	}

	return child, nil
}

// CreateDir creates a child directory named name.
func (d *DirHandle) CreateDir(backend Backend, name string) (*DirHandle, error) {
	child, err := d.CreateChildInode(backend, name, true)
	if err != nil {
		return nil, err
	}
	handle := NewDirHandle(child)
	d.entries[name] = handle
	return handle, nil
}

// CreateFile creates a child file named name.
func (d *DirHandle) CreateFile(backend Backend, name string) (*FileHandle, error) {
	child, err := d.CreateChildInode(backend, name, false)
	if err != nil {
		return nil, err
	}
	handle := NewFileHandle(child)
	d.entries[name] = handle
	return handle, nil
}

func entryInode(entry Entry) *inode.Inode {
	switch e := entry.(type) {
	case *FileHandle:
		return e.Inode
	case *DirHandle:
		return e.Inode
	default:
		return nil
	}
}

// Remove deletes the child named name. Directories may only be removed
// when empty. The parent's pointer to the child is removed by
// swap-with-last: if the entry is last in the payload, the payload simply
// shrinks; otherwise the last pointer is moved into the removed slot before
// shrinking, to avoid rewriting the whole tail.
func (d *DirHandle) Remove(backend Backend, name string) error {
	entries, err := d.GetEntries(backend)
	if err != nil {
		return err
	}
	entry, ok := entries[name]
	if !ok {
		return errors.ErrDoesNotExist.WithMessage(name)
	}
	if entry.IsDir() {
		dh := entry.(*DirHandle)
		if !dh.IsEmpty() {
			return errors.ErrDirNotEmpty.WithMessage(name)
		}
	}

	childInode := entryInode(entry)

	pointers, err := d.GetPointers(backend)
	if err != nil {
		return err
	}
	ptrInd := -1
	for i, p := range pointers {
		if p == childInode.BlockInd {
			ptrInd = i
			break
		}
	}
	if ptrInd == len(pointers)-1 {
		if err := d.Shrink(backend, 4); err != nil {
			return err
		}
	} else {
		lastPtr := pointers[len(pointers)-1]
		if err := d.writePointerAt(backend, int32(ptrInd)*4, lastPtr); err != nil {
			return err
		}
		if err := d.Shrink(backend, 4); err != nil {
			return err
		}
	}

	for _, ptr := range childInode.Blocks {
		if ptr == 0 {
			break
		}
		if err := backend.FreeBlock(ptr); err != nil {
			return err
		}
	}
	if err := backend.FreeBlock(childInode.BlockInd); err != nil {
		return err
	}

	delete(d.entries, name)
	return nil
}

// Rename changes a child's name. The parent payload is untouched, since
// children are identified by inode block index, not by name.
func (d *DirHandle) Rename(backend Backend, oldName, newName string) error {
	entries, err := d.GetEntries(backend)
	if err != nil {
		return err
	}
	entry, ok := entries[oldName]
	if !ok {
		return errors.ErrDoesNotExist.WithMessage(oldName)
	}
	if _, exists := entries[newName]; exists {
		return errors.ErrAlreadyExists.WithMessage(newName)
	}

	childInode := entryInode(entry)
	childInode.Name = newName
	if err := backend.WriteInode(childInode); err != nil {
		return err
	}

	delete(d.entries, oldName)
	d.entries[newName] = entry
	return nil
}
