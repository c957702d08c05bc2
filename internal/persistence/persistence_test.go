package persistence

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/talgya/graindeer/internal/config"
	"github.com/talgya/graindeer/internal/engine"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func twoYears() config.Config {
	cfg := config.Default()
	cfg.StartYear = 2019
	cfg.EndYear = 2021
	cfg.Seed = 1234567890123456789
	return cfg
}

func TestRunStoredEndToEnd(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	cfg := twoYears()
	id, err := db.BeginRun(ctx, cfg)
	if err != nil {
		t.Fatalf("begin run: %v", err)
	}
	journal := NewJournal(filepath.Join(t.TempDir(), "journal"), id)

	var direct []engine.Record
	collect := engine.RecorderFunc(func(_ context.Context, r engine.Record) error {
		direct = append(direct, r)
		return nil
	})

	sim, err := engine.New(cfg, engine.Fanout(db.Recorder(id), journal, collect))
	if err != nil {
		t.Fatal(err)
	}
	runErr := sim.Run(ctx)
	if runErr != nil {
		t.Fatalf("run: %v", runErr)
	}
	if err := journal.Close(); err != nil {
		t.Fatalf("close journal: %v", err)
	}
	if err := db.FinishRun(ctx, id, sim.State(), runErr); err != nil {
		t.Fatalf("finish run: %v", err)
	}

	stored, err := db.Records(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 24 {
		t.Fatalf("stored %d records, want 24", len(stored))
	}
	for i := range stored {
		if stored[i] != direct[i] {
			t.Fatalf("record %d: stored %+v, emitted %+v", i, stored[i], direct[i])
		}
	}

	run, err := db.GetRun(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != StatusFinished || run.Seed != "1234567890123456789" || run.FinishedAt == "" {
		t.Fatalf("run row = %+v", run)
	}

	for year, want := range map[int][]engine.Record{2019: direct[:12], 2020: direct[12:]} {
		got, err := ReadJournal(journal.PathForYear(year))
		if err != nil {
			t.Fatalf("read journal %d: %v", year, err)
		}
		if len(got) != len(want) {
			t.Fatalf("journal %d has %d records, want %d", year, len(got), len(want))
		}
		for i := range got {
			if got[i] != want[i] {
				t.Fatalf("journal %d record %d: %+v vs %+v", year, i, got[i], want[i])
			}
		}
	}
}

func TestFailedRun(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	id, err := db.BeginRun(ctx, twoYears())
	if err != nil {
		t.Fatal(err)
	}
	if err := db.FinishRun(ctx, id, engine.State{}, errors.New("recorder closed")); err != nil {
		t.Fatal(err)
	}
	run, err := db.GetRun(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != StatusFailed || run.Error != "recorder closed" {
		t.Fatalf("run row = %+v", run)
	}
}

func TestFinishUnknownRun(t *testing.T) {
	db := openTestDB(t)
	if err := db.FinishRun(context.Background(), "missing", engine.State{}, nil); err == nil {
		t.Fatal("expected error for unknown run")
	}
}

func TestDuplicateRecordRejected(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	id, err := db.BeginRun(ctx, twoYears())
	if err != nil {
		t.Fatal(err)
	}
	rec := db.Recorder(id)
	r := engine.Record{MonthIndex: 1, Year: 2019}
	if err := rec.Record(ctx, r); err != nil {
		t.Fatal(err)
	}
	if err := rec.Record(ctx, r); err == nil {
		t.Fatal("expected primary key violation")
	}
}

func TestMeta(t *testing.T) {
	db := openTestDB(t)
	if err := db.SaveMeta("last_run", "a"); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveMeta("last_run", "b"); err != nil {
		t.Fatal(err)
	}
	v, err := db.GetMeta("last_run")
	if err != nil || v != "b" {
		t.Fatalf("GetMeta = %q, %v", v, err)
	}
}

func TestJournalsOfSeparateRunsDoNotMix(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	cfg := config.Default()
	cfg.EndYear = cfg.StartYear + 1
	var journals []*Journal
	for i, runID := range []string{"run-a", "run-b"} {
		cfg.Seed = uint64(100 + i)
		j := NewJournal(dir, runID)
		sim, err := engine.New(cfg, j)
		if err != nil {
			t.Fatal(err)
		}
		if err := sim.Run(ctx); err != nil {
			t.Fatalf("run %s: %v", runID, err)
		}
		if err := j.Close(); err != nil {
			t.Fatalf("close %s: %v", runID, err)
		}
		journals = append(journals, j)
	}

	if journals[0].PathForYear(cfg.StartYear) == journals[1].PathForYear(cfg.StartYear) {
		t.Fatalf("both runs write %s", journals[0].PathForYear(cfg.StartYear))
	}
	for _, j := range journals {
		path := j.PathForYear(cfg.StartYear)
		got, err := ReadJournal(path)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 12 {
			t.Fatalf("%s holds %d records, want 12", path, len(got))
		}
		for i, rec := range got {
			if rec.MonthIndex != i+1 {
				t.Fatalf("%s record %d has month_index %d", path, i, rec.MonthIndex)
			}
		}
	}
}

func TestJournalReopenWithinRunAppends(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		j := NewJournal(dir, "run-a")
		if err := j.Record(ctx, engine.Record{MonthIndex: i, Year: 2019}); err != nil {
			t.Fatal(err)
		}
		if err := j.Close(); err != nil {
			t.Fatal(err)
		}
	}

	path := filepath.Join(dir, "run-a", "records-2019.jsonl.zst")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("journal file: %v", err)
	}
	got, err := ReadJournal(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].MonthIndex != 1 || got[1].MonthIndex != 2 {
		t.Fatalf("journal = %+v", got)
	}
}

func TestJournalCloseReportsFileErrors(t *testing.T) {
	j := NewJournal(t.TempDir(), "run-a")
	if err := j.Record(context.Background(), engine.Record{MonthIndex: 1, Year: 2019}); err != nil {
		t.Fatal(err)
	}
	// Pull the file out from under the encoder.
	if err := j.f.Close(); err != nil {
		t.Fatal(err)
	}
	err := j.Close()
	if !errors.Is(err, os.ErrClosed) {
		t.Fatalf("Close() = %v, want an os.ErrClosed failure", err)
	}
}
