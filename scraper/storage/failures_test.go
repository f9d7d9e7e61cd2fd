package storage

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFailureTracker_RecordAppendsImmediately(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failed.txt")
	tracker := NewFailureTracker(path)

	require.NoError(t, tracker.Record("SW0091"))
	require.NoError(t, tracker.Record("SW0315"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "SW0091\nSW0315\n", string(data))
}

func TestFailureTracker_RecordDedupsWithinRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failed.txt")
	tracker := NewFailureTracker(path)

	require.NoError(t, tracker.Record("SW0091"))
	require.NoError(t, tracker.Record("SW0091"))
	require.NoError(t, tracker.Record("SW0091"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "SW0091\n", string(data))
}

func TestFailureTracker_LoadMissingFile(t *testing.T) {
	tracker := NewFailureTracker(filepath.Join(t.TempDir(), "missing.txt"))
	ids, err := tracker.Load()
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestFailureTracker_LoadCollapsesDuplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failed.txt")
	// Duplicate entries can accumulate across separate runs; membership is
	// set-like but insertion order stays visible.
	require.NoError(t, os.WriteFile(path, []byte("SW0091\nSW0315\n\nSW0091\nSW0007\n"), 0o644))

	tracker := NewFailureTracker(path)
	ids, err := tracker.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"SW0091", "SW0315", "SW0007"}, ids)
}

func TestFailureTracker_SaveReplacesQueue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failed.txt")
	tracker := NewFailureTracker(path)
	require.NoError(t, tracker.Record("SW0091"))
	require.NoError(t, tracker.Record("SW0315"))

	require.NoError(t, tracker.Save([]string{"SW0315"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "SW0315\n", string(data))

	// No stray temp file left behind.
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestFailureTracker_SaveEmptyList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failed.txt")
	tracker := NewFailureTracker(path)
	require.NoError(t, tracker.Record("SW0091"))

	require.NoError(t, tracker.Save(nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, string(data))
}

func TestFailureTracker_ConcurrentRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failed.txt")
	tracker := NewFailureTracker(path)

	ids := []string{"SW0001", "SW0002", "SW0003", "SW0004", "SW0005"}
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			assert.NoError(t, tracker.Record(id))
		}(id)
	}
	wg.Wait()

	loaded, err := tracker.Load()
	require.NoError(t, err)
	// No cross-entry ordering guarantee, but every append is one whole line.
	assert.ElementsMatch(t, ids, loaded)
}
