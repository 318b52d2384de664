package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	root := t.TempDir()

	s, err := New(root)
	require.NoError(t, err)

	_, err = uuid.Parse(s.ID)
	assert.NoError(t, err)
	assert.DirExists(t, s.OutputsDir())
	assert.DirExists(t, s.LogsDir())
	assert.Equal(t, filepath.Join(root, s.ID, "outputs"), s.OutputsDir())
	assert.Equal(t, filepath.Join(root, s.ID, "logs", "r1.log"), s.TranscriptPath("r1"))

	other, err := New(root)
	require.NoError(t, err)
	assert.NotEqual(t, s.ID, other.ID)
}

func TestNew_EmptyRoot(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	root := t.TempDir()
	s, err := New(root)
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(s.OutputsDir()))

	opened, err := Open(root, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, opened.ID)
	assert.DirExists(t, opened.OutputsDir())
}

func TestOpen_Errors(t *testing.T) {
	root := t.TempDir()

	_, err := Open(root, "../etc")
	assert.ErrorIs(t, err, ErrInvalidID)

	_, err = Open(root, uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)

	id := uuid.NewString()
	require.NoError(t, os.WriteFile(filepath.Join(root, id), []byte("x"), 0644))
	_, err = Open(root, id)
	assert.ErrorIs(t, err, ErrNotFound)
}
