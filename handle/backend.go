// Package handle implements the cursor/I/O engine shared by FileHandle and
// DirHandle, and the DirHandle-specific directory-entry logic.
package handle

import (
	"github.com/vilterp/blockfs/block"
	"github.com/vilterp/blockfs/inode"
)

// Backend is everything a Handle needs from the owning file system. It
// exists so handles don't co-own the file system object (which would have
// to hold handles back to materialize the entries cache, creating a
// reference cycle); instead the file system is passed in by argument to
// every call, per the design note about avoiding cyclic ownership.
type Backend interface {
	BlockSize() int32
	MaxFileLength() int32

	AllocBlock() (block.ID, error)
	FreeBlock(id block.ID) error

	SeekToByte(id block.ID, byteOffset int32) error
	ReadByte() (byte, error)
	WriteByte(b byte) error

	ReadInode(id block.ID) (*inode.Inode, error)
	WriteInode(in *inode.Inode) error
}
