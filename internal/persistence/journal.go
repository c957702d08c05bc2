package persistence

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/talgya/graindeer/internal/engine"
)

// Journal writes one JSON line per record into zstd-compressed files, one
// file per simulated year and one directory per run:
// <dir>/<runID>/records-<year>.jsonl.zst.
type Journal struct {
	baseDir string
	runID   string

	mu      sync.Mutex
	curYear int
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

// NewJournal creates the journal of run runID under baseDir. Files are
// opened lazily.
func NewJournal(baseDir, runID string) *Journal {
	return &Journal{
		baseDir: baseDir,
		runID:   runID,
	}
}

// Close flushes and closes the current file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.closeLocked()
}

// Record appends rec to the file for rec.Year.
func (j *Journal) Record(_ context.Context, rec engine.Record) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.w == nil || rec.Year != j.curYear {
		if err := j.rotateLocked(rec.Year); err != nil {
			return fmt.Errorf("rotate journal: %w", err)
		}
	}

	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode month %d: %w", rec.MonthIndex, err)
	}
	if _, err := j.w.Write(b); err != nil {
		return fmt.Errorf("write month %d: %w", rec.MonthIndex, err)
	}
	if err := j.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("write month %d: %w", rec.MonthIndex, err)
	}
	if err := j.w.Flush(); err != nil {
		return fmt.Errorf("flush month %d: %w", rec.MonthIndex, err)
	}
	return nil
}

// PathForYear returns the file that holds the records of year.
func (j *Journal) PathForYear(year int) string {
	return filepath.Join(j.baseDir, j.runID, fmt.Sprintf("records-%d.jsonl.zst", year))
}

func (j *Journal) rotateLocked(year int) error {
	if err := j.closeLocked(); err != nil {
		return err
	}
	// Append so a journal reopened within the same run keeps its records.
	path := j.PathForYear(year)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("zstd writer: %w", err)
	}
	j.f = f
	j.enc = enc
	j.w = bufio.NewWriterSize(enc, 64*1024)
	j.curYear = year
	return nil
}

func (j *Journal) closeLocked() error {
	var errs []error
	if j.w != nil {
		if err := j.w.Flush(); err != nil {
			errs = append(errs, fmt.Errorf("flush: %w", err))
		}
	}
	if j.enc != nil {
		if err := j.enc.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close encoder: %w", err))
		}
		j.enc = nil
	}
	if j.f != nil {
		if err := j.f.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close file: %w", err))
		}
		j.f = nil
	}
	j.w = nil
	return errors.Join(errs...)
}

// ReadJournal decodes every record in one journal file.
func ReadJournal(path string) ([]engine.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("open zstd: %w", err)
	}
	defer dec.Close()

	var recs []engine.Record
	sc := bufio.NewScanner(dec)
	for sc.Scan() {
		var rec engine.Record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			return recs, fmt.Errorf("decode line %d: %w", len(recs)+1, err)
		}
		recs = append(recs, rec)
	}
	return recs, sc.Err()
}
