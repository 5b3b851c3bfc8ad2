package wal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// WAL is the append-only log backing crash recovery. Every successful
// mutating store operation appends one record before the in-memory state is
// considered authoritative (spec §4.2). A WAL serializes its own file
// operations with an internal mutex so it can be used independently of the
// store's coarser lock in tests; in production the store's mutex already
// makes append calls sequential.
type WAL struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

// Open opens (creating if necessary) the WAL file at path for appending.
func Open(path string) (*WAL, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("wal: creating directory %s: %w", dir, err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("wal: opening %s: %w", path, err)
	}

	return &WAL{path: path, f: f}, nil
}

// Path returns the WAL's configured file path.
func (w *WAL) Path() string {
	return w.path
}

// Append writes one record, flushing it to the OS before returning. A failed
// append surfaces as an I/O error and leaves the underlying file position
// unchanged from the caller's perspective: the caller's in-memory state is
// not touched by this call.
func (w *WAL) Append(r Record) error {
	line, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("wal: encoding record: %w", err)
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.f.Write(line); err != nil {
		return fmt.Errorf("wal: appending record: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.Close()
}

// Healthy reports whether the live WAL file descriptor is still reachable,
// i.e. that appends would not fail outright. Used by the store's liveness
// check (spec health surface).
func (w *WAL) Healthy() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.f.Stat(); err != nil {
		return fmt.Errorf("wal: file unreachable: %w", err)
	}
	return nil
}

// MalformedRecordError describes one skipped line during recovery.
type MalformedRecordError struct {
	Line int
	Err  error
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("wal: malformed record at line %d: %v", e.Line, e.Err)
}

// ReadAll reads every well-formed record from path in append order. If the
// file does not exist, it returns an empty slice and no error — a fresh
// store has nothing to recover. Malformed lines are skipped; onError, if
// non-nil, is invoked once per skipped line so the caller can log it (spec
// §4.2: "a malformed record is skipped during recovery with an error
// logged").
func ReadAll(path string, onError func(err error)) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("wal: opening %s: %w", path, err)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var r Record
		if err := json.Unmarshal(raw, &r); err != nil {
			if onError != nil {
				onError(&MalformedRecordError{Line: line, Err: err})
			}
			continue
		}
		records = append(records, r)
	}
	if err := scanner.Err(); err != nil {
		return records, fmt.Errorf("wal: scanning %s: %w", path, err)
	}

	return records, nil
}

// Compact rewrites the WAL to contain exactly the given records, replacing
// the live file atomically. It writes to a temporary file in the same
// directory (named with a uuid suffix to avoid collisions between
// concurrent compactions), syncs it, and renames it over the live path. The
// live log is left untouched if the temp-file write fails (spec §4.2).
//
// Compact reopens its own file handle for the live WAL; the caller (the
// store) must have released its in-memory mutex before calling this so the
// rename does not block concurrent readers building new records, per the
// "compaction does not block writes" requirement in spec §5.
func (w *WAL) Compact(records []Record) error {
	tmpPath := fmt.Sprintf("%s.compact-%s.tmp", w.path, uuid.NewString())

	if err := writeRecords(tmpPath, records); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("wal: writing compacted records: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("wal: closing live file before rename: %w", err)
	}

	if err := os.Rename(tmpPath, w.path); err != nil {
		// The temp file survives for manual cleanup (spec §4.2 failure
		// semantics); reopen the live path so the store can keep going.
		f, reopenErr := os.OpenFile(w.path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
		if reopenErr == nil {
			w.f = f
		}
		return fmt.Errorf("wal: renaming compacted file into place: %w", err)
	}

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("wal: reopening compacted file: %w", err)
	}
	w.f = f

	return nil
}

func writeRecords(path string, records []Record) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(f)
	for _, r := range records {
		line, err := json.Marshal(r)
		if err != nil {
			f.Close()
			return err
		}
		if _, err := w.Write(line); err != nil {
			f.Close()
			return err
		}
		if err := w.WriteByte('\n'); err != nil {
			f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
