package input

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/closecrowd/blockwatch/internal/ports"
)

func TestTailer_ReadsAppendedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	require.NoError(t, os.WriteFile(path, []byte("old line\n"), 0644))

	tl := NewTailer(path, 200*time.Millisecond)
	require.NoError(t, tl.Start())
	defer tl.Stop()

	ctx := context.Background()

	// Tailing starts at the end: the pre-existing line is never delivered
	// and the first bounded wait times out.
	_, ok, err := tl.NextLine(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0644)
	require.NoError(t, err)
	_, err = f.WriteString("new line\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	before := time.Now()
	for i := 0; i < 50; i++ {
		line, ok, err := tl.NextLine(ctx)
		require.NoError(t, err)
		if !ok {
			continue
		}
		assert.Equal(t, "new line", line.Text)
		assert.WithinDuration(t, time.Now(), line.At, time.Since(before)+time.Second,
			"timestamp assigned at read time")
		return
	}
	t.Fatal("appended line never delivered")
}

func TestTailer_NextLineHonorsPollTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quiet.log")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	tl := NewTailer(path, 100*time.Millisecond)
	require.NoError(t, tl.Start())
	defer tl.Stop()

	start := time.Now()
	_, ok, err := tl.NextLine(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Less(t, time.Since(start), 2*time.Second, "wait is bounded even under log silence")
}

func TestTailer_NextLineObservesCancellation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quiet.log")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	tl := NewTailer(path, 10*time.Second)
	require.NoError(t, tl.Start())
	defer tl.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, _, err := tl.NextLine(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 5*time.Second, "cancellation interrupts the wait")
}

func TestTailer_StopIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	tl := NewTailer(path, 100*time.Millisecond)
	require.NoError(t, tl.Start())

	assert.NoError(t, tl.Stop())
	assert.NoError(t, tl.Stop())

	_, _, err := tl.NextLine(context.Background())
	assert.ErrorIs(t, err, ports.ErrSourceClosed)
}
