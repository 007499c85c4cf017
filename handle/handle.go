package handle

import (
	"github.com/vilterp/blockfs/errors"
	"github.com/vilterp/blockfs/inode"
)

// Handle is the shared cursor engine embedded by FileHandle and DirHandle.
// It tracks a logical byte cursor and the derived real cursor (slot,
// byteInBlock), where slot indexes into Inode.Blocks. The cursor is never
// persisted; only Inode.Length and Inode.Blocks are.
type Handle struct {
	Inode *inode.Inode

	cursor      int32 // logical position, 0..Inode.Length
	slot        int32 // index into Inode.Blocks
	byteInBlock int32 // 0..BlockSize; == BlockSize means "at a block border"
}

// NewHandle wraps in as a Handle with the cursor reset to 0.
func NewHandle(in *inode.Inode) Handle {
	return Handle{Inode: in}
}

// Length returns the inode's current length in bytes.
func (h *Handle) Length() int32 {
	return h.Inode.Length
}

// SeekAbs moves the logical cursor to an absolute position; n must be in
// [0, Length()], with Length() itself being the valid EOF position.
func (h *Handle) SeekAbs(backend Backend, n int32) error {
	if n < 0 || n > h.Length() {
		return errors.ErrSeekOutOfBounds.WithMessage(
			"seek target outside [0, length]")
	}
	blockSize := backend.BlockSize()
	h.cursor = n
	h.slot = n / blockSize
	h.byteInBlock = n % blockSize
	if n > 0 && h.byteInBlock == 0 {
		// Stay at the border of the block that ends at n rather than
		// pointing into the next slot, which may not be allocated yet.
		h.slot--
		h.byteInBlock = blockSize
	}
	return nil
}

// SeekRel moves the cursor by amt relative to its current position.
func (h *Handle) SeekRel(backend Backend, amt int32) error {
	return h.SeekAbs(backend, h.cursor+amt)
}

// SeekFromEnd moves the cursor to amt bytes before the end of the file.
func (h *Handle) SeekFromEnd(backend Backend, amt int32) error {
	return h.SeekAbs(backend, h.Length()-amt)
}

// SeekToBeg moves the cursor to the start of the file.
func (h *Handle) SeekToBeg(backend Backend) error {
	return h.SeekAbs(backend, 0)
}

// SeekToEnd moves the cursor to EOF.
func (h *Handle) SeekToEnd(backend Backend) error {
	return h.SeekAbs(backend, h.Length())
}

// AtEnd reports whether the logical cursor sits exactly at EOF.
func (h *Handle) AtEnd() bool {
	return h.cursor == h.Length()
}

func (h *Handle) atBlockBorder(backend Backend) bool {
	return h.byteInBlock == backend.BlockSize()
}

// seekHostToRealCursor repositions the host stream to the handle's real
// cursor. Other handles sharing the same backend may have moved the host
// stream since this handle last touched it, so every read/write re-syncs
// first.
func (h *Handle) seekHostToRealCursor(backend Backend) error {
	return backend.SeekToByte(h.Inode.Blocks[h.slot], h.byteInBlock)
}

// ReadOne reads a single byte at the cursor and advances it.
func (h *Handle) ReadOne(backend Backend) (byte, error) {
	if h.AtEnd() {
		return 0, errors.ErrReadOutOfBounds
	}
	if h.atBlockBorder(backend) {
		h.slot++
		h.byteInBlock = 0
		if err := h.seekHostToRealCursor(backend); err != nil {
			return 0, err
		}
	}

	b, err := backend.ReadByte()
	if err != nil {
		return 0, err
	}
	h.cursor++
	h.byteInBlock++
	return b, nil
}

// Read reads amt bytes from the current cursor. If amt is negative, it
// reads from the cursor to EOF instead.
func (h *Handle) Read(backend Backend, amt int32) ([]byte, error) {
	if err := h.seekHostToRealCursor(backend); err != nil {
		return nil, err
	}

	var n int32
	if amt < 0 {
		n = h.Length() - h.cursor
	} else {
		n = amt
	}

	buf := make([]byte, n)
	for i := int32(0); i < n; i++ {
		b, err := h.ReadOne(backend)
		if err != nil {
			return nil, err
		}
		buf[i] = b
	}
	return buf, nil
}

// ReadAll reads from the current cursor to EOF.
func (h *Handle) ReadAll(backend Backend) ([]byte, error) {
	return h.Read(backend, -1)
}

// addBlockAndSeek allocates a new block for the next pointer slot, records
// it, advances the real cursor into it, and repositions the host stream at
// its start.
func (h *Handle) addBlockAndSeek(backend Backend) error {
	nextSlot := h.slot + 1
	newBlock, err := backend.AllocBlock()
	if err != nil {
		return err
	}
	h.Inode.Blocks[nextSlot] = newBlock
	h.slot = nextSlot
	h.byteInBlock = 0
	return backend.SeekToByte(newBlock, 0)
}

// Write writes data starting at the current cursor, growing the file (and
// allocating new blocks as needed) when the cursor is at EOF.
func (h *Handle) Write(backend Backend, data []byte) error {
	if err := h.seekHostToRealCursor(backend); err != nil {
		return err
	}

	inodeDirty := false
	for _, c := range data {
		appending := h.AtEnd()
		if appending {
			h.Inode.Length++
			inodeDirty = true
			if h.Length() > backend.MaxFileLength() {
				return errors.ErrFileFull
			}
		}

		if h.atBlockBorder(backend) {
			if appending {
				if err := h.addBlockAndSeek(backend); err != nil {
					return err
				}
			} else {
				h.slot++
				h.byteInBlock = 0
				if err := backend.SeekToByte(h.Inode.Blocks[h.slot], 0); err != nil {
					return err
				}
			}
		}

		if err := backend.WriteByte(c); err != nil {
			return err
		}
		h.cursor++
		h.byteInBlock++
	}

	if inodeDirty {
		return backend.WriteInode(h.Inode)
	}
	return nil
}

// Shrink decreases the inode's length by amt, freeing any blocks that fall
// entirely out of the new valid range and zeroing their pointer slots. A
// pointer slot past 0 is freed iff the byte offset where it begins
// (slot*BlockSize) is >= the new length. Slot 0 is never freed, even at
// length 0: every inode keeps its slot-0 data block allocated for its
// whole life, the same guarantee CreateChildInode makes at creation, so a
// subsequent Write always has a block to write its first byte into instead
// of needing to special-case allocation for an empty file.
func (h *Handle) Shrink(backend Backend, amt int32) error {
	if amt > h.Length() {
		return errors.ErrShrinkOutOfBounds
	}

	blockSize := backend.BlockSize()
	newLength := h.Length() - amt
	h.Inode.Length = newLength

	if h.cursor > newLength {
		if err := h.SeekToEnd(backend); err != nil {
			return err
		}
	}

	for slot := int32(1); slot < int32(len(h.Inode.Blocks)); slot++ {
		if h.Inode.Blocks[slot] == 0 {
			continue
		}
		if slot*blockSize >= newLength {
			if err := backend.FreeBlock(h.Inode.Blocks[slot]); err != nil {
				return err
			}
			h.Inode.Blocks[slot] = 0
		}
	}

	return backend.WriteInode(h.Inode)
}

// Clear truncates the file to zero length.
func (h *Handle) Clear(backend Backend) error {
	return h.Shrink(backend, h.Length())
}
