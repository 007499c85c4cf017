// Package allocator implements the free-block bitmap allocator. Block 1 of
// the image is a dense bit-per-block free map; this package mirrors it in
// memory and flushes the mirror back to block 1 on every mutation.
package allocator

import (
	"fmt"

	"github.com/boljen/go-bitmap"

	"github.com/vilterp/blockfs/block"
	"github.com/vilterp/blockfs/errors"
)

// BitmapBlock is the fixed block index of the free-block bitmap.
const BitmapBlock block.ID = 1

// Allocator manages the free-block bitmap stored at block 1.
type Allocator struct {
	device *block.Device
	raw    []byte
	bm     bitmap.Bitmap
}

// Load reads the bitmap block off device and returns an Allocator backed by
// it. The in-memory bitmap shares storage with raw, so every Set through
// bm is immediately visible in raw; flush still has to write raw back to
// disk.
func Load(device *block.Device) (*Allocator, error) {
	raw, err := device.ReadBlock(BitmapBlock)
	if err != nil {
		return nil, err
	}
	return &Allocator{
		device: device,
		raw:    raw,
		bm:     bitmap.Bitmap(raw),
	}, nil
}

func (a *Allocator) flush() error {
	return a.device.WriteBlock(BitmapBlock, a.raw)
}

// totalBits is the number of blocks in the device, which the caller who
// formatted the image already guaranteed fits within one bitmap block's
// BlockSize*8 bits. Bits beyond this are spare bitmap capacity and are
// never touched, since they don't correspond to an actual device block.
func (a *Allocator) totalBits() int {
	return int(a.device.NumBlocks)
}

// AllocBlock scans the bitmap bit by bit from 0 upward, returning the first
// clear bit after marking it used. It fails with ErrFSFull if every block
// in the device is in use.
func (a *Allocator) AllocBlock() (block.ID, error) {
	for i := 0; i < a.totalBits(); i++ {
		if !a.bm.Get(i) {
			a.bm.Set(i, true)
			if err := a.flush(); err != nil {
				a.bm.Set(i, false)
				return 0, err
			}
			return block.ID(i), nil
		}
	}
	return 0, errors.ErrFSFull
}

// FreeBlock clears the bit for id. It is the caller's responsibility to
// ensure no inode still references id; freeing an already-free block is
// allowed by this layer (it's a correctness bug in the caller, not
// something the allocator can detect in general).
func (a *Allocator) FreeBlock(id block.ID) error {
	if int(id) < 0 || int(id) >= a.totalBits() {
		return fmt.Errorf("block index %d out of range for bitmap", id)
	}
	a.bm.Set(int(id), false)
	return a.flush()
}

// IsUsed reports whether id's bit is set. Used by fsck to validate
// invariants without mutating state.
func (a *Allocator) IsUsed(id block.ID) bool {
	if int(id) < 0 || int(id) >= a.totalBits() {
		return false
	}
	return a.bm.Get(int(id))
}
