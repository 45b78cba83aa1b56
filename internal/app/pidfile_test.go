package app

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPidFile_WriteAndRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blockwatch.pid")
	p := NewPidFile(path)

	require.NoError(t, p.Write())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("%d\n", os.Getpid()), string(data))

	p.Remove()
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestPidFile_RemoveIsOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blockwatch.pid")
	p := NewPidFile(path)
	require.NoError(t, p.Write())

	p.Remove()
	// A second termination path reaching cleanup must be harmless, even if
	// someone recreated the file in between.
	require.NoError(t, os.WriteFile(path, []byte("999\n"), 0644))
	p.Remove()

	_, err := os.Stat(path)
	assert.NoError(t, err, "second Remove is a no-op")
}

func TestPidFile_UnconfiguredIsNoop(t *testing.T) {
	p := NewPidFile("")
	assert.NoError(t, p.Write())
	p.Remove()
}

func TestPidFile_UnwritablePathFails(t *testing.T) {
	p := NewPidFile(filepath.Join(t.TempDir(), "missing", "blockwatch.pid"))
	assert.Error(t, p.Write())
}

func TestRotationController(t *testing.T) {
	r := NewRotationController()

	assert.False(t, r.Consume(), "starts clear")

	r.Request()
	r.Request()
	assert.True(t, r.Pending())
	assert.True(t, r.Consume(), "repeated requests coalesce")
	assert.False(t, r.Consume(), "consume clears the flag")
}
