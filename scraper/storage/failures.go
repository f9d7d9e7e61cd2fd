package storage

import (
	"errors"
	"os"
	"strings"
	"sync"

	apperrors "github.com/brickpulse/brickpulse/pkg/errors"
)

// FailureTracker is the durable queue of item ids that produced no usable
// data. Record appends immediately so a crash mid-batch loses nothing
// already recorded; within one tracker instance an id is recorded at most
// once, so a single run never writes duplicate queue entries. Save replaces
// the file through a temp-file rename, never a truncate-in-place.
type FailureTracker struct {
	mu       sync.Mutex
	path     string
	recorded map[string]struct{}
}

// NewFailureTracker creates a tracker over the queue file at path.
func NewFailureTracker(path string) *FailureTracker {
	return &FailureTracker{path: path, recorded: make(map[string]struct{})}
}

// Record appends the id to the queue file. Safe for concurrent use; each
// call writes one whole line or nothing.
func (t *FailureTracker) Record(itemID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, done := t.recorded[itemID]; done {
		return nil
	}
	f, err := os.OpenFile(t.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCodeStoreIO, "failed to open failure queue", err)
	}
	defer f.Close()
	if _, err := f.WriteString(itemID + "\n"); err != nil {
		return apperrors.Wrap(apperrors.ErrCodeStoreIO, "failed to record failure", err)
	}
	t.recorded[itemID] = struct{}{}
	return nil
}

// Load returns the queued ids in insertion order. Membership is set-like, so
// duplicate lines from earlier runs collapse to their first occurrence.
// A missing file is an empty queue.
func (t *FailureTracker) Load() ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	data, err := os.ReadFile(t.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeStoreIO, "failed to read failure queue", err)
	}

	seen := make(map[string]struct{})
	var ids []string
	for _, line := range strings.Split(string(data), "\n") {
		id := strings.TrimSpace(line)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

// Save replaces the queue file with the given ids. The new content is
// written to a temp file and renamed over the old one, so a crash during
// save leaves either the previous queue or the new one, never a torn file.
func (t *FailureTracker) Save(ids []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var b strings.Builder
	for _, id := range ids {
		b.WriteString(id)
		b.WriteString("\n")
	}
	tmp := t.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(b.String()), 0o644); err != nil {
		return apperrors.Wrap(apperrors.ErrCodeStoreIO, "failed to write failure queue", err)
	}
	if err := os.Rename(tmp, t.path); err != nil {
		return apperrors.Wrap(apperrors.ErrCodeStoreIO, "failed to replace failure queue", err)
	}
	// The on-disk queue is now exactly ids; reset per-run dedup to match.
	t.recorded = make(map[string]struct{})
	return nil
}
