// Package storage persists collected market records and the failure queue.
// Both files are plain text on local disk: an append-only canonical CSV and
// a line-oriented list of item ids awaiting retry.
package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/brickpulse/brickpulse/models"
	apperrors "github.com/brickpulse/brickpulse/pkg/errors"
)

var csvHeader = []string{"SW_ID", "Date", "Low", "Q1", "Q3", "High", "Tooltip"}

// RecordStore is the append-only canonical CSV of market records with
// dedup-on-write. The dedup index over record tuples is built once at open
// time and kept in sync with appends, so writes never re-scan the file.
// Append is serialized by a single writer lock, which makes concurrent
// pipeline workers safe: two workers can never both decide a tuple is novel.
type RecordStore struct {
	mu        sync.Mutex
	path      string
	seen      map[string]struct{}
	itemIDs   map[string]struct{}
	hasHeader bool
}

// OpenRecordStore opens the canonical CSV at path, loading the dedup index
// from any rows already on disk. A missing file is an empty store. A partial
// or headerless file left by a prior crash is recovered at open: the rows
// that can be trusted are kept and the file is rewritten well-formed, so
// later appends and reopens always see a canonical CSV.
func OpenRecordStore(path string) (*RecordStore, error) {
	s := &RecordStore{
		path:    path,
		seen:    make(map[string]struct{}),
		itemIDs: make(map[string]struct{}),
	}

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeStoreIO, "failed to open record store", err)
	}

	rows, sawHeader, corrupt := readCanonicalRows(f)
	f.Close()

	for _, row := range rows {
		s.seen[models.KeyFromRow(row)] = struct{}{}
		s.itemIDs[row[0]] = struct{}{}
	}

	if corrupt {
		// A crashed writer left garbage (no header, a torn trailing row, or
		// malformed rows). Appending after it would poison the next open's
		// dedup index, so the file is rewritten as a well-formed canonical
		// CSV holding only the surviving rows.
		if err := s.rewrite(rows); err != nil {
			return nil, err
		}
		s.hasHeader = true
		return s, nil
	}
	s.hasHeader = sawHeader
	return s, nil
}

// readCanonicalRows returns the canonical rows that can be trusted and
// whether anything untrustworthy was encountered. Rows only count after a
// valid leading header.
func readCanonicalRows(f *os.File) (rows [][]string, sawHeader, corrupt bool) {
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	first := true
	for {
		row, err := r.Read()
		if err == io.EOF {
			return rows, sawHeader, corrupt
		}
		if err != nil {
			// Torn trailing row from a crashed writer.
			return rows, sawHeader, true
		}
		if first {
			first = false
			if !isHeader(row) {
				return nil, false, true
			}
			sawHeader = true
			continue
		}
		if len(row) != len(csvHeader) {
			corrupt = true
			continue
		}
		rows = append(rows, row)
	}
}

// rewrite replaces the file with header + rows through a temp-file rename,
// so recovery can never itself leave a torn file.
func (s *RecordStore) rewrite(rows [][]string) error {
	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCodeStoreIO, "failed to create recovery file", err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		f.Close()
		return apperrors.Wrap(apperrors.ErrCodeStoreIO, "failed to write header", err)
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			f.Close()
			return apperrors.Wrap(apperrors.ErrCodeStoreIO, "failed to write record", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return apperrors.Wrap(apperrors.ErrCodeStoreIO, "failed to flush recovery file", err)
	}
	if err := f.Close(); err != nil {
		return apperrors.Wrap(apperrors.ErrCodeStoreIO, "failed to close recovery file", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return apperrors.Wrap(apperrors.ErrCodeStoreIO, "failed to replace record store", err)
	}
	return nil
}

// Append writes the records whose dedup tuple is not already present and
// returns the count actually written. Replaying the same record set twice
// never grows the file.
func (s *RecordStore) Append(records []models.MarketRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrCodeStoreIO, "failed to open record store for append", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if !s.hasHeader {
		if err := w.Write(csvHeader); err != nil {
			return 0, apperrors.Wrap(apperrors.ErrCodeStoreIO, "failed to write header", err)
		}
		s.hasHeader = true
	}

	written := 0
	for _, rec := range records {
		key := rec.Key()
		if _, dup := s.seen[key]; dup {
			continue
		}
		if err := w.Write(rec.CSVRow()); err != nil {
			return written, apperrors.Wrap(apperrors.ErrCodeStoreIO, "failed to write record", err)
		}
		s.seen[key] = struct{}{}
		s.itemIDs[rec.ItemID] = struct{}{}
		written++
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return written, apperrors.Wrap(apperrors.ErrCodeStoreIO, "failed to flush records", err)
	}
	return written, nil
}

// Len returns the number of indexed records.
func (s *RecordStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

// ItemIDs returns the distinct item ids present in the store, sorted.
func (s *RecordStore) ItemIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.itemIDs))
	for id := range s.itemIDs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func isHeader(row []string) bool {
	if len(row) != len(csvHeader) {
		return false
	}
	for i, field := range csvHeader {
		if row[i] != field {
			return false
		}
	}
	return true
}

// String identifies the store in logs.
func (s *RecordStore) String() string {
	return fmt.Sprintf("RecordStore(%s)", s.path)
}
