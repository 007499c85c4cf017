// Package inode implements the on-disk inode layout: serialization and
// deserialization of a single Inode to and from one block.
package inode

import (
	"bytes"
	"encoding/binary"

	"github.com/noxer/bytewriter"

	"github.com/vilterp/blockfs/block"
	"github.com/vilterp/blockfs/errors"
)

// NumPointers is the number of direct block pointers an inode carries.
const NumPointers = 12

// HeaderSize is the number of bytes occupied by everything in an inode
// before the name region: is_dir (1) + length (4) + 12 pointers (48).
const HeaderSize = 1 + 4 + NumPointers*4

// Inode is one file system object: a file or a directory.
type Inode struct {
	// BlockInd is the block this inode itself occupies. It is not part of
	// the on-disk layout; it's implied by where the inode was read from.
	BlockInd block.ID
	Name     string
	IsDir    bool
	Length   int32
	// Blocks holds NumPointers direct block pointers; 0 means "unused slot".
	Blocks [NumPointers]block.ID
}

// MaxNameLength returns the number of bytes available for a name given a
// block size, i.e. blockSize - HeaderSize.
func MaxNameLength(blockSize int32) int {
	return int(blockSize) - HeaderSize
}

// Read deserializes the inode occupying block blockInd.
func Read(device *block.Device, blockInd block.ID) (*Inode, error) {
	raw, err := device.ReadBlock(blockInd)
	if err != nil {
		return nil, err
	}

	r := bytes.NewReader(raw)

	var isDirByte uint8
	if err := binary.Read(r, binary.LittleEndian, &isDirByte); err != nil {
		return nil, errors.ErrHostIO.Wrap(err)
	}

	var length int32
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return nil, errors.ErrHostIO.Wrap(err)
	}

	var pointers [NumPointers]int32
	if err := binary.Read(r, binary.LittleEndian, &pointers); err != nil {
		return nil, errors.ErrHostIO.Wrap(err)
	}

	maxName := MaxNameLength(device.BlockSize)
	nameRegion := make([]byte, maxName)
	if err := binary.Read(r, binary.LittleEndian, &nameRegion); err != nil {
		return nil, errors.ErrHostIO.Wrap(err)
	}
	nul := bytes.IndexByte(nameRegion, 0)
	var name string
	if nul == -1 {
		name = string(nameRegion)
	} else {
		name = string(nameRegion[:nul])
	}

	inode := &Inode{
		BlockInd: blockInd,
		Name:     name,
		IsDir:    isDirByte != 0,
		Length:   length,
	}
	for i, p := range pointers {
		inode.Blocks[i] = block.ID(p)
	}
	return inode, nil
}

// Write serializes inode to its own block, zero-padding the name region.
func Write(device *block.Device, inode *Inode) error {
	maxName := MaxNameLength(device.BlockSize)
	if len(inode.Name) > maxName {
		return errors.ErrInvalidName.WithMessage("name exceeds maximum length for this block size")
	}

	buf := make([]byte, device.BlockSize)
	w := bytewriter.New(buf)

	isDirByte := uint8(0)
	if inode.IsDir {
		isDirByte = 1
	}
	if err := binary.Write(w, binary.LittleEndian, isDirByte); err != nil {
		return errors.ErrHostIO.Wrap(err)
	}
	if err := binary.Write(w, binary.LittleEndian, inode.Length); err != nil {
		return errors.ErrHostIO.Wrap(err)
	}

	var pointers [NumPointers]int32
	for i, p := range inode.Blocks {
		pointers[i] = int32(p)
	}
	if err := binary.Write(w, binary.LittleEndian, pointers); err != nil {
		return errors.ErrHostIO.Wrap(err)
	}

	nameRegion := make([]byte, maxName)
	copy(nameRegion, inode.Name)
	if err := binary.Write(w, binary.LittleEndian, nameRegion); err != nil {
		return errors.ErrHostIO.Wrap(err)
	}

	return device.WriteBlock(inode.BlockInd, buf)
}
