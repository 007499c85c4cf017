package blockfs_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vilterp/blockfs"
	"github.com/vilterp/blockfs/blockfstest"
	"github.com/vilterp/blockfs/errors"
)

func TestCreateFSMarksSuperblockAndBitmapUsed(t *testing.T) {
	fs := blockfstest.NewImage(t, 64, 64)
	assert.True(t, fs.IsUsed(blockfs.SuperblockBlock))
	assert.True(t, fs.IsUsed(blockfs.BitmapBlock))
	assert.True(t, fs.IsUsed(blockfs.RootInodeBlock))
}

func TestCreateFSRootDirStartsEmpty(t *testing.T) {
	fs := blockfstest.NewImage(t, 64, 64)
	root, err := fs.RootDir()
	require.NoError(t, err)
	assert.True(t, root.IsEmpty())
	assert.Equal(t, "", root.Name())
}

func TestCreateAndListFile(t *testing.T) {
	fs := blockfstest.NewImage(t, 64, 64)
	w, err := fs.NewWalker()
	require.NoError(t, err)

	_, err = w.CreateFile("hello.txt")
	require.NoError(t, err)

	entries, err := w.GetEntries()
	require.NoError(t, err)
	assert.Contains(t, entries, "hello.txt")
	assert.False(t, entries["hello.txt"].IsDir())
}

func TestWriteThenReadRoundTrips(t *testing.T) {
	fs := blockfstest.NewImage(t, 64, 64)
	w, err := fs.NewWalker()
	require.NoError(t, err)

	f, err := w.CreateFile("data.bin")
	require.NoError(t, err)

	payload := []byte("the quick brown fox jumps over the lazy dog")
	require.NoError(t, f.Write(fs, payload))
	require.NoError(t, f.SeekToBeg(fs))

	got, err := f.ReadAll(fs)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestWriteSpanningMultipleBlocks(t *testing.T) {
	fs := blockfstest.NewImage(t, 64, 64)
	w, err := fs.NewWalker()
	require.NoError(t, err)

	f, err := w.CreateFile("big.bin")
	require.NoError(t, err)

	payload := make([]byte, 64*5+3) // spans 6 blocks
	for i := range payload {
		payload[i] = byte(i)
	}
	require.NoError(t, f.Write(fs, payload))
	require.NoError(t, f.SeekToBeg(fs))

	got, err := f.ReadAll(fs)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestRemoveBySwapWithLast(t *testing.T) {
	fs := blockfstest.NewImage(t, 64, 64)
	w, err := fs.NewWalker()
	require.NoError(t, err)

	for _, name := range []string{"a", "b", "c"} {
		_, err := w.CreateFile(name)
		require.NoError(t, err)
	}
	before, err := w.CurDir().GetPointers(fs)
	require.NoError(t, err)
	require.Len(t, before, 3)

	require.NoError(t, w.Remove("a"))

	// The last pointer ("c") moves into the removed slot; "b" stays put.
	after, err := w.CurDir().GetPointers(fs)
	require.NoError(t, err)
	require.Len(t, after, 2)
	assert.Equal(t, before[2], after[0])
	assert.Equal(t, before[1], after[1])

	entries, err := w.GetEntries()
	require.NoError(t, err)
	assert.NotContains(t, entries, "a")
	assert.Contains(t, entries, "b")
	assert.Contains(t, entries, "c")
	assert.Len(t, entries, 2)
}

func TestRemoveNonEmptyDirFails(t *testing.T) {
	fs := blockfstest.NewImage(t, 64, 64)
	w, err := fs.NewWalker()
	require.NoError(t, err)

	_, err = w.CreateDir("etc")
	require.NoError(t, err)
	require.NoError(t, w.EnterDir("etc"))
	_, err = w.CreateFile("hosts")
	require.NoError(t, err)
	require.NoError(t, w.CdUp())

	err = w.Remove("etc")
	assert.ErrorIs(t, err, errors.ErrDirNotEmpty)
}

func TestFullDiskReturnsFSFull(t *testing.T) {
	fs := blockfstest.NewImage(t, 64, 8) // tiny image: 8 blocks total, so only 8 bitmap bits are used
	w, err := fs.NewWalker()
	require.NoError(t, err)

	// Blocks 0 (superblock), 1 (bitmap), 2 (root inode), 3 (root data) are
	// already used, leaving blocks 4-7 (4 blocks) free. Creating a file
	// costs two blocks (inode + first data block), so only two files fit.
	_, err = w.CreateFile("one")
	require.NoError(t, err)
	_, err = w.CreateFile("two")
	require.NoError(t, err)

	_, err = w.CreateFile("three")
	assert.ErrorIs(t, err, errors.ErrFSFull)
}

func TestOpenFSRoundTripsThroughHostFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image.blockfs")

	fs, err := blockfs.CreateFS(path, 64, 64)
	require.NoError(t, err)
	w, err := fs.NewWalker()
	require.NoError(t, err)
	_, err = w.CreateFile("persisted.txt")
	require.NoError(t, err)
	require.NoError(t, fs.Close())

	reopened, err := blockfs.OpenFS(path)
	require.NoError(t, err)
	defer reopened.Close()

	root, err := reopened.RootDir()
	require.NoError(t, err)
	entries, err := root.GetEntries(reopened)
	require.NoError(t, err)
	assert.Contains(t, entries, "persisted.txt")
}

func TestCreateFSRejectsOversizedGeometry(t *testing.T) {
	_, err := blockfs.CreateFSFromStream(nil, 64, 1000) // 64-byte bitmap block addresses only 512 blocks
	assert.Error(t, err)
}
