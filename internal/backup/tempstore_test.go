package backup

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTempStore_AcquireUniquePaths(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "staging")
	store := NewTempStore(dir, zerolog.Nop())

	a1, err := store.Acquire("auth/users.json")
	require.NoError(t, err)
	a2, err := store.Acquire("auth/users.json")
	require.NoError(t, err)

	assert.NotEqual(t, a1.Path, a2.Path)
	assert.Equal(t, dir, filepath.Dir(a1.Path))
	assert.True(t, strings.HasPrefix(filepath.Base(a1.Path), "users-"))
	assert.True(t, strings.HasSuffix(a1.Path, ".json"))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestTempStore_DefaultDir(t *testing.T) {
	store := NewTempStore("", zerolog.Nop())
	assert.Equal(t, os.TempDir(), store.Dir())
}

func TestNameStem(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{path: "users.json", want: "users"},
		{path: "backups/2024-01-01/users.json", want: "users"},
		{path: "weird name!@#.json", want: "weird_name"},
		{path: "...", want: "export"},
		{path: "", want: "export"},
		{path: strings.Repeat("a", 200) + ".json", want: strings.Repeat("a", maxNameStem)},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, nameStem(tt.path))
		})
	}
}

func TestArtifact_ReleaseRemovesFile(t *testing.T) {
	store := NewTempStore(t.TempDir(), zerolog.Nop())
	a, err := store.Acquire("users.json")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(a.Path, []byte("{}"), 0o600))

	require.NoError(t, a.Release())

	_, err = os.Stat(a.Path)
	assert.True(t, os.IsNotExist(err))
}

func TestArtifact_ReleaseExactlyOnce(t *testing.T) {
	store := NewTempStore(t.TempDir(), zerolog.Nop())
	calls := 0
	store.remove = func(string) error {
		calls++
		return nil
	}

	a, err := store.Acquire("users.json")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, a.Release())
	}
	assert.Equal(t, 1, calls)
}

func TestArtifact_ReleaseNeverWritten(t *testing.T) {
	store := NewTempStore(t.TempDir(), zerolog.Nop())
	a, err := store.Acquire("users.json")
	require.NoError(t, err)

	assert.NoError(t, a.Release())
}

func TestArtifact_ReleaseError(t *testing.T) {
	store := NewTempStore(t.TempDir(), zerolog.Nop())
	store.remove = func(string) error { return errors.New("device busy") }

	a, err := store.Acquire("users.json")
	require.NoError(t, err)

	err = a.Release()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device busy")
	assert.Equal(t, err, a.Release())
}
