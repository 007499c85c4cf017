// Package blockfstest provides shared fixtures for tests elsewhere in this
// module: in-memory images that don't need a real host file.
package blockfstest

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"

	"github.com/vilterp/blockfs"
)

// NewImage formats a fresh in-memory image of the given geometry and
// returns it. The backing store is a plain byte slice wrapped as a
// ReadWriteSeeker, so nothing is written to the host file system; closing
// the returned Filesystem is a no-op.
func NewImage(t *testing.T, blockSize, numBlocks int32) *blockfs.Filesystem {
	t.Helper()

	stream := bytesextra.NewReadWriteSeeker(make([]byte, int(blockSize)*int(numBlocks)))
	fs, err := blockfs.CreateFSFromStream(stream, blockSize, numBlocks)
	require.NoError(t, err)
	return fs
}

// NewDefaultImage formats a fresh in-memory image using blockfs.DefaultBlockSize
// and a geometry large enough for ordinary tests to allocate dozens of
// files and directories without running out of blocks.
func NewDefaultImage(t *testing.T) *blockfs.Filesystem {
	t.Helper()
	return NewImage(t, blockfs.DefaultBlockSize, blockfs.DefaultBlockSize)
}
