package handle_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vilterp/blockfs/blockfstest"
	"github.com/vilterp/blockfs/errors"
	"github.com/vilterp/blockfs/handle"
)

func TestCreateFileRejectsDuplicateName(t *testing.T) {
	fs := blockfstest.NewImage(t, 64, 64)
	root, err := fs.RootDir()
	require.NoError(t, err)

	_, err = root.CreateFile(fs, "a")
	require.NoError(t, err)

	_, err = root.CreateFile(fs, "a")
	assert.ErrorIs(t, err, errors.ErrAlreadyExists)
}

func TestCreateRejectsInvalidNames(t *testing.T) {
	fs := blockfstest.NewImage(t, 64, 64)
	root, err := fs.RootDir()
	require.NoError(t, err)

	for _, name := range []string{"", "has/a/slash", "tab\ttab"} {
		_, err := root.CreateFile(fs, name)
		assert.ErrorIs(t, err, errors.ErrInvalidName, "name %q should be rejected", name)
	}
}

func TestDotDotIsAcceptedByCoreLayer(t *testing.T) {
	fs := blockfstest.NewImage(t, 64, 64)
	root, err := fs.RootDir()
	require.NoError(t, err)

	_, err = root.CreateDir(fs, "..")
	assert.NoError(t, err)
}

func TestRemoveNonexistentFails(t *testing.T) {
	fs := blockfstest.NewImage(t, 64, 64)
	root, err := fs.RootDir()
	require.NoError(t, err)

	err = root.Remove(fs, "nope")
	assert.ErrorIs(t, err, errors.ErrDoesNotExist)
}

func TestRenameUpdatesEntriesButNotPayload(t *testing.T) {
	fs := blockfstest.NewImage(t, 64, 64)
	root, err := fs.RootDir()
	require.NoError(t, err)

	_, err = root.CreateFile(fs, "old")
	require.NoError(t, err)
	lengthBefore := root.Length()

	require.NoError(t, root.Rename(fs, "old", "new"))
	assert.Equal(t, lengthBefore, root.Length())

	entries, err := root.GetEntries(fs)
	require.NoError(t, err)
	assert.NotContains(t, entries, "old")
	assert.Contains(t, entries, "new")
}

func TestRenameToExistingNameFails(t *testing.T) {
	fs := blockfstest.NewImage(t, 64, 64)
	root, err := fs.RootDir()
	require.NoError(t, err)

	_, err = root.CreateFile(fs, "a")
	require.NoError(t, err)
	_, err = root.CreateFile(fs, "b")
	require.NoError(t, err)

	err = root.Rename(fs, "a", "b")
	assert.ErrorIs(t, err, errors.ErrAlreadyExists)
}

func TestRemoveDirectoryRequiresEmpty(t *testing.T) {
	fs := blockfstest.NewImage(t, 64, 64)
	root, err := fs.RootDir()
	require.NoError(t, err)

	child, err := root.CreateDir(fs, "d")
	require.NoError(t, err)
	_, err = child.CreateFile(fs, "f")
	require.NoError(t, err)

	err = root.Remove(fs, "d")
	assert.ErrorIs(t, err, errors.ErrDirNotEmpty)

	require.NoError(t, child.Remove(fs, "f"))
	require.NoError(t, root.Remove(fs, "d"))
}

func TestGetPointersMatchesNumEntries(t *testing.T) {
	fs := blockfstest.NewImage(t, 64, 64)
	root, err := fs.RootDir()
	require.NoError(t, err)

	for _, name := range []string{"a", "b", "c"} {
		_, err := root.CreateFile(fs, name)
		require.NoError(t, err)
	}

	pointers, err := root.GetPointers(fs)
	require.NoError(t, err)
	assert.Len(t, pointers, 3)
	assert.EqualValues(t, 3, root.NumEntries())
}

var _ handle.Entry = (*handle.FileHandle)(nil)
var _ handle.Entry = (*handle.DirHandle)(nil)
