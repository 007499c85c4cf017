package block_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"

	"github.com/vilterp/blockfs/block"
)

func newDevice(t *testing.T, blockSize, numBlocks int32) *block.Device {
	buf := make([]byte, int(blockSize)*int(numBlocks))
	stream := bytesextra.NewReadWriteSeeker(buf)
	return block.NewDevice(stream, blockSize, numBlocks)
}

func TestWriteThenReadBlock(t *testing.T) {
	dev := newDevice(t, 16, 4)
	data := []byte("0123456789abcdef")

	require.NoError(t, dev.WriteBlock(2, data))
	got, err := dev.ReadBlock(2)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestSeekToByteMidBlock(t *testing.T) {
	dev := newDevice(t, 16, 4)
	require.NoError(t, dev.WriteBlock(0, []byte("0123456789abcdef")))

	require.NoError(t, dev.SeekToByte(0, 5))
	b, err := dev.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte('5'), b)
}

func TestSeekToByteAtBlockBorderIsValid(t *testing.T) {
	dev := newDevice(t, 16, 4)
	assert.NoError(t, dev.SeekToByte(0, 16))
}

func TestOutOfRangeBlockFails(t *testing.T) {
	dev := newDevice(t, 16, 4)
	_, err := dev.ReadBlock(4)
	assert.Error(t, err)
}
