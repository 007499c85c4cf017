package handle

import "github.com/vilterp/blockfs/inode"

// FileHandle is a Handle over an inode whose payload is opaque bytes.
type FileHandle struct {
	Handle
}

// NewFileHandle wraps in as a FileHandle.
func NewFileHandle(in *inode.Inode) *FileHandle {
	return &FileHandle{Handle: NewHandle(in)}
}

// Name returns the file's name, as stored in its inode.
func (f *FileHandle) Name() string {
	return f.Inode.Name
}

// IsDir always returns false for a FileHandle.
func (f *FileHandle) IsDir() bool {
	return false
}
