// Package blockfs implements a self-contained, block-structured file system
// image stored in a single host file: a fixed-size block device with a
// free-block bitmap, an inode model with direct block pointers, and a
// hierarchical directory tree rooted at a well-known inode.
//
// The interactive shell, command parsing, and host import/export commands
// that typically sit on top of a library like this are deliberately not
// part of this package; see cmd/mkblockfs for the minimal image-lifecycle
// front-end that is in scope.
package blockfs

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/noxer/bytewriter"

	"github.com/vilterp/blockfs/allocator"
	"github.com/vilterp/blockfs/block"
	"github.com/vilterp/blockfs/errors"
	"github.com/vilterp/blockfs/handle"
	"github.com/vilterp/blockfs/inode"
	"github.com/vilterp/blockfs/walker"
)

// DefaultBlockSize is the block size used when CreateFS isn't given one
// explicitly by its caller.
const DefaultBlockSize int32 = 128

// MajorVersion and MinorVersion are the only on-disk format version this
// package writes or accepts.
const (
	MajorVersion uint8 = 1
	MinorVersion uint8 = 0
)

// Fixed block indices.
const (
	SuperblockBlock block.ID = 0
	BitmapBlock     block.ID = allocator.BitmapBlock
	RootInodeBlock  block.ID = 2
)

// Filesystem is the runtime handle to an open blockfs image. It owns the
// host stream (opened by CreateFS/OpenFS, or supplied directly by
// CreateFSFromStream) and the in-memory allocator bitmap mirror.
type Filesystem struct {
	closer    io.Closer // nil when the backing stream isn't host-file-backed
	device    *block.Device
	alloc     *allocator.Allocator
	blockSize int32
	numBlocks int32
}

// Ensure Filesystem satisfies the interface handles and the walker rely on.
var _ handle.Backend = (*Filesystem)(nil)

// BlockSize returns the fixed block size of this image, in bytes.
func (fs *Filesystem) BlockSize() int32 { return fs.blockSize }

// NumBlocks returns the total number of blocks in this image.
func (fs *Filesystem) NumBlocks() int32 { return fs.numBlocks }

// MaxFileLength returns the largest length a file or directory payload may
// have: twelve direct pointers' worth of bytes.
func (fs *Filesystem) MaxFileLength() int32 {
	return inode.NumPointers * fs.blockSize
}

// Capacity is an informational figure: the number of bytes available for
// data blocks, not counting the superblock or bitmap. It does not account
// for blocks consumed by inodes themselves.
func (fs *Filesystem) Capacity() int64 {
	return int64(fs.blockSize) * int64(fs.numBlocks-2)
}

// MaxDirEntries is the largest number of entries a single directory can
// hold, derived from MaxFileLength.
func (fs *Filesystem) MaxDirEntries() int32 {
	return fs.MaxFileLength() / 4
}

// MaxNameLength is the number of bytes available for a file or directory
// name at this image's block size.
func (fs *Filesystem) MaxNameLength() int {
	return inode.MaxNameLength(fs.blockSize)
}

// AllocBlock implements handle.Backend.
func (fs *Filesystem) AllocBlock() (block.ID, error) { return fs.alloc.AllocBlock() }

// FreeBlock implements handle.Backend.
func (fs *Filesystem) FreeBlock(id block.ID) error { return fs.alloc.FreeBlock(id) }

// SeekToByte implements handle.Backend.
func (fs *Filesystem) SeekToByte(id block.ID, byteOffset int32) error {
	return fs.device.SeekToByte(id, byteOffset)
}

// ReadByte implements handle.Backend.
func (fs *Filesystem) ReadByte() (byte, error) { return fs.device.ReadByte() }

// WriteByte implements handle.Backend.
func (fs *Filesystem) WriteByte(b byte) error { return fs.device.WriteByte(b) }

// ReadInode implements handle.Backend.
func (fs *Filesystem) ReadInode(id block.ID) (*inode.Inode, error) {
	return inode.Read(fs.device, id)
}

// WriteInode implements handle.Backend.
func (fs *Filesystem) WriteInode(in *inode.Inode) error {
	return inode.Write(fs.device, in)
}

// IsUsed reports whether block id is marked allocated in the bitmap. Used
// by fsck.
func (fs *Filesystem) IsUsed(id block.ID) bool { return fs.alloc.IsUsed(id) }

// Close closes the underlying host stream, if this Filesystem owns one.
func (fs *Filesystem) Close() error {
	if fs.closer == nil {
		return nil
	}
	return fs.closer.Close()
}

// RootDir returns a fresh DirHandle for the root directory, at block 2.
func (fs *Filesystem) RootDir() (*handle.DirHandle, error) {
	root, err := fs.ReadInode(RootInodeBlock)
	if err != nil {
		return nil, err
	}
	return handle.NewDirHandle(root), nil
}

// NewWalker returns a walker anchored at the root directory.
func (fs *Filesystem) NewWalker() (*walker.FSWalker, error) {
	root, err := fs.RootDir()
	if err != nil {
		return nil, err
	}
	return walker.New(fs, root), nil
}

// CreateFS formats a fresh image at path: superblock, an empty bitmap with
// blocks 0 and 1 marked used, a root inode at block 2, and a data block for
// the root at block 3. Any existing file at path is truncated.
//
// numBlocks defaults to blockSize when given as 0, which guarantees the
// bitmap (one bit per block, stored in a single block-sized block) always
// has enough bits to address every block in the image.
func CreateFS(path string, blockSize, numBlocks int32) (*Filesystem, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, errors.ErrHostIO.Wrap(err)
	}

	fs, err := CreateFSFromStream(file, blockSize, numBlocks)
	if err != nil {
		file.Close()
		return nil, err
	}
	fs.closer = file
	return fs, nil
}

// CreateFSFromStream formats a fresh image onto an arbitrary seekable
// stream: superblock, an empty bitmap with blocks 0 and 1 marked used, a
// root inode at block 2, and a data block for the root at block 3. It is
// the basis of CreateFS and is also used directly by tests that want an
// in-memory image with no host file backing it; the returned Filesystem's
// Close is then a no-op.
//
// numBlocks defaults to blockSize when given as 0, which guarantees the
// bitmap (one bit per block, stored in a single block-sized block) always
// has enough bits to address every block in the image.
func CreateFSFromStream(stream io.ReadWriteSeeker, blockSize, numBlocks int32) (*Filesystem, error) {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	if numBlocks == 0 {
		numBlocks = blockSize
	}
	if inode.MaxNameLength(blockSize) < 1 {
		return nil, fmt.Errorf("block size %d leaves no room for inode names", blockSize)
	}
	if int64(numBlocks) > int64(blockSize)*8 {
		return nil, fmt.Errorf(
			"num_blocks %d exceeds what a single bitmap block of size %d can address (%d)",
			numBlocks, blockSize, int64(blockSize)*8,
		)
	}
	if numBlocks < 4 {
		return nil, fmt.Errorf("num_blocks %d too small: need at least 4 blocks (superblock, bitmap, root inode, root data)", numBlocks)
	}

	device := block.NewDevice(stream, blockSize, numBlocks)

	if err := writeSuperblock(device, blockSize, numBlocks); err != nil {
		return nil, err
	}

	bitmap := make([]byte, blockSize)
	bitmap[0] |= 1 << 0 // superblock
	bitmap[0] |= 1 << 1 // bitmap itself
	if err := device.WriteBlock(BitmapBlock, bitmap); err != nil {
		return nil, err
	}

	zero := make([]byte, blockSize)
	for i := block.ID(2); int32(i) < numBlocks; i++ {
		if err := device.WriteBlock(i, zero); err != nil {
			return nil, err
		}
	}

	alloc, err := allocator.Load(device)
	if err != nil {
		return nil, err
	}

	fs := &Filesystem{
		device:    device,
		alloc:     alloc,
		blockSize: blockSize,
		numBlocks: numBlocks,
	}

	rootInodeBlock, err := fs.AllocBlock()
	if err != nil {
		return nil, err
	}
	if rootInodeBlock != RootInodeBlock {
		return nil, fmt.Errorf("internal error: root inode landed at block %d, expected %d", rootInodeBlock, RootInodeBlock)
	}
	rootDataBlock, err := fs.AllocBlock()
	if err != nil {
		return nil, err
	}

	root := &inode.Inode{
		BlockInd: rootInodeBlock,
		Name:     "",
		IsDir:    true,
		Length:   0,
	}
	root.Blocks[0] = rootDataBlock
	if err := fs.WriteInode(root); err != nil {
		return nil, err
	}

	return fs, nil
}

// OpenFS reads the superblock of an existing image at path and returns the
// runtime Filesystem for it. It also reads the bitmap block into the
// allocator's in-memory mirror before returning; the bitmap is not loaded
// lazily.
func OpenFS(path string) (*Filesystem, error) {
	file, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, errors.ErrHostIO.Wrap(err)
	}

	major, minor, blockSize, numBlocks, err := readSuperblockHeader(file)
	if err != nil {
		file.Close()
		return nil, err
	}
	if major != MajorVersion || minor != MinorVersion {
		file.Close()
		return nil, fmt.Errorf("unsupported image version %d.%d", major, minor)
	}

	device := block.NewDevice(file, blockSize, numBlocks)
	alloc, err := allocator.Load(device)
	if err != nil {
		file.Close()
		return nil, err
	}

	return &Filesystem{
		closer:    file,
		device:    device,
		alloc:     alloc,
		blockSize: blockSize,
		numBlocks: numBlocks,
	}, nil
}

func writeSuperblock(device *block.Device, blockSize, numBlocks int32) error {
	buf := make([]byte, blockSize)
	w := bytewriter.New(buf)

	if err := binary.Write(w, binary.LittleEndian, MajorVersion); err != nil {
		return errors.ErrHostIO.Wrap(err)
	}
	if err := binary.Write(w, binary.LittleEndian, MinorVersion); err != nil {
		return errors.ErrHostIO.Wrap(err)
	}
	if err := binary.Write(w, binary.LittleEndian, blockSize); err != nil {
		return errors.ErrHostIO.Wrap(err)
	}
	if err := binary.Write(w, binary.LittleEndian, numBlocks); err != nil {
		return errors.ErrHostIO.Wrap(err)
	}
	// The remainder of buf is already zero-filled padding.

	return device.WriteBlock(SuperblockBlock, buf)
}

func readSuperblockHeader(file *os.File) (major, minor uint8, blockSize, numBlocks int32, err error) {
	if _, err = file.Seek(0, io.SeekStart); err != nil {
		return 0, 0, 0, 0, errors.ErrHostIO.Wrap(err)
	}
	if err = binary.Read(file, binary.LittleEndian, &major); err != nil {
		return 0, 0, 0, 0, errors.ErrHostIO.Wrap(err)
	}
	if err = binary.Read(file, binary.LittleEndian, &minor); err != nil {
		return 0, 0, 0, 0, errors.ErrHostIO.Wrap(err)
	}
	if err = binary.Read(file, binary.LittleEndian, &blockSize); err != nil {
		return 0, 0, 0, 0, errors.ErrHostIO.Wrap(err)
	}
	if err = binary.Read(file, binary.LittleEndian, &numBlocks); err != nil {
		return 0, 0, 0, 0, errors.ErrHostIO.Wrap(err)
	}
	return major, minor, blockSize, numBlocks, nil
}
