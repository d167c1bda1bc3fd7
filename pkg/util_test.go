package pkg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBytesToString(t *testing.T) {
	assert.Equal(t, "", BytesToString(nil))
	assert.Equal(t, "inkpost", BytesToString([]byte("inkpost")))
}

func TestPathExists(t *testing.T) {
	tempDir := t.TempDir()

	exists, err := PathExists(tempDir, true)
	require.NoError(t, err)
	assert.True(t, exists)

	// a dir is not a file
	exists, err = PathExists(tempDir, false)
	require.NoError(t, err)
	assert.False(t, exists)

	filePath := filepath.Join(tempDir, "some-file")
	require.NoError(t, os.WriteFile(filePath, []byte("content"), 0o600))

	exists, err = PathExists(filePath, false)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = PathExists(filepath.Join(tempDir, "nope"), false)
	require.NoError(t, err)
	assert.False(t, exists)
}
