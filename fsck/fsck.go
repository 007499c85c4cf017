// Package fsck implements an offline integrity checker for a blockfs image:
// it walks the bitmap and the directory tree and reports every structural
// inconsistency it finds, rather than stopping at the first one.
package fsck

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/vilterp/blockfs"
	"github.com/vilterp/blockfs/block"
	"github.com/vilterp/blockfs/handle"
)

// checker accumulates state shared across the recursive directory walk.
type checker struct {
	fs *blockfs.Filesystem

	// claimedBy records, for every block this walk has seen referenced, a
	// human-readable description of the first claimant. A second claim on
	// the same block is a cross-link and gets reported once, at the second
	// claimant.
	claimedBy map[block.ID]string

	errs *multierror.Error
}

func (c *checker) addf(format string, args ...interface{}) {
	c.errs = multierror.Append(c.errs, fmt.Errorf(format, args...))
}

// claim records that owner depends on block id being allocated to it, and
// reports both an unused-bitmap-bit violation and a cross-link violation.
func (c *checker) claim(id block.ID, owner string) {
	if !c.fs.IsUsed(id) {
		c.addf("block %d is referenced by %s but its bitmap bit is clear", id, owner)
	}
	if prev, ok := c.claimedBy[id]; ok {
		c.addf("block %d is claimed by both %s and %s", id, prev, owner)
		return
	}
	c.claimedBy[id] = owner
}

// Check walks every bit of the free-block bitmap and every inode
// transitively reachable from the root directory, and returns a single
// aggregated error describing every inconsistency found. A nil return means
// the image is structurally sound.
func Check(fs *blockfs.Filesystem) error {
	c := &checker{
		fs:        fs,
		claimedBy: make(map[block.ID]string),
	}

	if !fs.IsUsed(blockfs.SuperblockBlock) {
		c.addf("block %d (superblock) must always be marked used", blockfs.SuperblockBlock)
	}
	if !fs.IsUsed(blockfs.BitmapBlock) {
		c.addf("block %d (bitmap) must always be marked used", blockfs.BitmapBlock)
	}
	c.claimedBy[blockfs.SuperblockBlock] = "the superblock"
	c.claimedBy[blockfs.BitmapBlock] = "the bitmap block"

	root, err := fs.RootDir()
	if err != nil {
		c.addf("reading root inode: %s", err)
		return c.errs.ErrorOrNil()
	}
	c.claim(root.Inode.BlockInd, "the root inode")
	c.checkInode(&root.Handle, "/")
	c.walkDir(root, "/")

	for id := block.ID(2); int32(id) < fs.NumBlocks(); id++ {
		if fs.IsUsed(id) {
			if _, claimed := c.claimedBy[id]; !claimed {
				c.addf("block %d is marked used but is not reachable from the root directory", id)
			}
		}
	}

	return c.errs.ErrorOrNil()
}

// checkInode validates that an inode's pointer array is consistent with its
// declared length: pointers are contiguous from slot 0 with no gaps, and
// there are exactly as many of them as the length requires (plus, at length
// zero, possibly one pre-allocated and still-unused block).
func (c *checker) checkInode(h *handle.Handle, path string) {
	blockSize := c.fs.BlockSize()
	length := h.Length()
	required := int(length+blockSize-1) / int(blockSize)

	seenZero := false
	nonZero := 0
	for slot, id := range h.Inode.Blocks {
		if id == 0 {
			seenZero = true
			continue
		}
		if seenZero {
			c.addf("%s: pointer slot %d is occupied after an earlier slot was empty", path, slot)
		}
		nonZero++
		c.claim(id, fmt.Sprintf("%s (slot %d)", path, slot))
	}

	if nonZero == required {
		return
	}
	if length == 0 && nonZero <= 1 {
		return
	}
	c.addf("%s: length %d needs %d block(s) but inode has %d", path, length, required, nonZero)
}

// walkDir recurses into dir's children, checking each one's inode and
// directory-entry bookkeeping before descending further.
func (c *checker) walkDir(dir *handle.DirHandle, path string) {
	entries, err := dir.GetEntries(c.fs)
	if err != nil {
		c.addf("%s: reading entries: %s", path, err)
		return
	}

	if int32(len(entries))*4 != dir.Length() {
		c.addf("%s: directory length %d is inconsistent with %d entries", path, dir.Length(), len(entries))
	}

	for name, entry := range entries {
		childPath := path + name

		switch child := entry.(type) {
		case *handle.FileHandle:
			if child.Name() != name {
				c.addf("%s: directory entry key %q does not match inode name %q", childPath, name, child.Name())
			}
			c.claim(child.Inode.BlockInd, childPath)
			c.checkInode(&child.Handle, childPath)
		case *handle.DirHandle:
			if child.Name() != name {
				c.addf("%s: directory entry key %q does not match inode name %q", childPath, name, child.Name())
			}
			c.claim(child.Inode.BlockInd, childPath)
			c.checkInode(&child.Handle, childPath)
			c.walkDir(child, childPath+"/")
		}
	}
}
