// Package block implements the fixed-size block device abstraction that
// everything else in blockfs is built on: it maps a host byte stream to a
// sequence of fixed-size blocks indexed 0..NumBlocks-1.
package block

import (
	"fmt"
	"io"

	"github.com/vilterp/blockfs/errors"
)

// ID is the index of a block within a Device.
type ID int32

// Device wraps a host stream and makes it addressable in units of a fixed
// block size. It performs no buffering beyond whatever the host stream
// does; a write is assumed visible to a subsequent read at the same offset.
type Device struct {
	// BlockSize is the size of a single block, in bytes.
	BlockSize int32
	// NumBlocks is the total number of blocks in the stream.
	NumBlocks int32

	stream io.ReadWriteSeeker
}

// NewDevice wraps stream as a Device with the given geometry. It does not
// validate that the stream is actually that large; callers that format a
// fresh image are responsible for writing every block.
func NewDevice(stream io.ReadWriteSeeker, blockSize, numBlocks int32) *Device {
	return &Device{
		BlockSize: blockSize,
		NumBlocks: numBlocks,
		stream:    stream,
	}
}

func (d *Device) checkBlock(id ID) error {
	if id < 0 || int32(id) >= d.NumBlocks {
		return fmt.Errorf("invalid block index %d: not in range [0, %d)", id, d.NumBlocks)
	}
	return nil
}

func (d *Device) offsetOf(id ID, byteOffset int32) int64 {
	return int64(id)*int64(d.BlockSize) + int64(byteOffset)
}

// SeekToBlock positions the host stream at the start of block id.
func (d *Device) SeekToBlock(id ID) error {
	return d.SeekToByte(id, 0)
}

// SeekToByte positions the host stream at byteOffset bytes into block id.
// byteOffset may equal BlockSize, positioning the stream at the start of
// the following block; this is used by the handle engine when the logical
// cursor sits exactly at a block border.
func (d *Device) SeekToByte(id ID, byteOffset int32) error {
	if err := d.checkBlock(id); err != nil {
		return err
	}
	if byteOffset < 0 || byteOffset > d.BlockSize {
		return fmt.Errorf("invalid in-block offset %d for block size %d", byteOffset, d.BlockSize)
	}
	if _, err := d.stream.Seek(d.offsetOf(id, byteOffset), io.SeekStart); err != nil {
		return errors.ErrHostIO.Wrap(err)
	}
	return nil
}

// ReadBlock reads an entire block's worth of bytes starting at id.
func (d *Device) ReadBlock(id ID) ([]byte, error) {
	if err := d.SeekToBlock(id); err != nil {
		return nil, err
	}
	return d.ReadN(int(d.BlockSize))
}

// WriteBlock writes exactly BlockSize bytes of data starting at block id.
func (d *Device) WriteBlock(id ID, data []byte) error {
	if int32(len(data)) != d.BlockSize {
		return fmt.Errorf("block write must be exactly %d bytes, got %d", d.BlockSize, len(data))
	}
	if err := d.SeekToBlock(id); err != nil {
		return err
	}
	return d.WriteN(data)
}

// ReadByte reads a single byte from the stream's current position.
func (d *Device) ReadByte() (byte, error) {
	buf, err := d.ReadN(1)
	if err != nil {
		return 0, err
	}
	return buf[0], nil
}

// WriteByte writes a single byte at the stream's current position.
func (d *Device) WriteByte(b byte) error {
	return d.WriteN([]byte{b})
}

// ReadN reads exactly n bytes from the stream's current position.
func (d *Device) ReadN(n int) ([]byte, error) {
	buf := make([]byte, n)
	read := 0
	for read < n {
		count, err := d.stream.Read(buf[read:])
		read += count
		if err != nil && read < n {
			return nil, errors.ErrHostIO.Wrap(err)
		}
	}
	return buf, nil
}

// WriteN writes data at the stream's current position.
func (d *Device) WriteN(data []byte) error {
	written := 0
	for written < len(data) {
		count, err := d.stream.Write(data[written:])
		written += count
		if err != nil && written < len(data) {
			return errors.ErrHostIO.Wrap(err)
		}
	}
	return nil
}
