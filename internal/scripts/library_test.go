package scripts

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanName(t *testing.T) {
	good := []string{"default.lua", "chase-2.lua"}
	for _, name := range good {
		got, err := CleanName(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, got)
	}

	bad := []string{"", "script.txt", ".lua", "../evil.lua", "sub/dir.lua", "a..b.lua"}
	for _, name := range bad {
		_, err := CleanName(name)
		assert.ErrorIs(t, err, ErrInvalidName, name)
	}
}

func TestLibraryRoundTrip(t *testing.T) {
	lib := Library{Dir: filepath.Join(t.TempDir(), "scripts")}

	names, err := lib.List()
	require.NoError(t, err)
	assert.Empty(t, names)

	require.NoError(t, lib.Save("b.lua", "function tick() end"))
	require.NoError(t, lib.Save("a.lua", "-- a"))
	require.NoError(t, os.WriteFile(filepath.Join(lib.Dir, "notes.txt"), nil, 0o644))

	names, err = lib.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.lua", "b.lua"}, names)

	code, err := lib.Read("b.lua")
	require.NoError(t, err)
	assert.Equal(t, "function tick() end", code)

	require.NoError(t, lib.Delete("a.lua"))
	_, err = lib.Read("a.lua")
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestLibraryRejectsTraversal(t *testing.T) {
	lib := Library{Dir: t.TempDir()}

	assert.ErrorIs(t, lib.Save("../x.lua", "--"), ErrInvalidName)
	_, err := lib.Read("/etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidName)
}
