package storage

import (
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageSaveOpenDelete(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	rel, err := s.Save("photos/a/../b.png", []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, "photos/b.png", rel)

	f, err := s.Open(rel)
	require.NoError(t, err)
	data, _ := io.ReadAll(f)
	_ = f.Close()
	assert.Equal(t, "img", string(data))

	require.NoError(t, s.Delete(rel))
	require.NoError(t, s.Delete(rel))
	_, err = s.Open(rel)
	assert.Error(t, err)
}

func TestLocalStorageRejectsEscapes(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"../x", "/etc/passwd", "a/../../x", "", ".."} {
		_, err := s.Save(name, []byte("x"))
		assert.ErrorIs(t, err, ErrInvalidPath, name)
	}
}

func TestLocalStorageSaveStreamLimit(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = s.SaveStream("big.bin", strings.NewReader("0123456789"), 5)
	require.ErrorIs(t, err, ErrTooLarge)
	path, _ := s.Path("big.bin")
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))

	rel, err := s.SaveStream("ok.bin", strings.NewReader("01234"), 5)
	require.NoError(t, err)
	assert.Equal(t, "ok.bin", rel)
}

func TestLocalStorageCleanup(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = s.Save("exports/old.csv", []byte("x"))
	require.NoError(t, err)
	_, err = s.Save("exports/new.csv", []byte("y"))
	require.NoError(t, err)

	oldPath, _ := s.Path("exports/old.csv")
	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(oldPath, past, past))

	deleted, err := s.CleanupOlderThan(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{"exports/old.csv"}, deleted)
}
