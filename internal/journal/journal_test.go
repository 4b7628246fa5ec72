package journal

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func tempJournal(t *testing.T) (*Journal, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.json")
	j, err := New(path)
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	return j, path
}

func sampleReport(kind string) CycleReport {
	now := time.Now()
	return CycleReport{
		StartedAt:  now.Add(-time.Minute),
		FinishedAt: now,
		Actions: []Action{
			{Time: now, Kind: kind, Symbol: "ABC", Detail: "sell 2 ABC 20250620 P90.00", OrderID: "1"},
		},
	}
}

func TestRecordAndReload(t *testing.T) {
	j, path := tempJournal(t)

	if err := j.Record(sampleReport("write_put")); err != nil {
		t.Fatalf("Record returned error: %v", err)
	}
	if err := j.Record(sampleReport("roll_put")); err != nil {
		t.Fatalf("Record returned error: %v", err)
	}

	// A fresh journal at the same path sees the persisted history.
	reloaded, err := New(path)
	if err != nil {
		t.Fatalf("reopening journal: %v", err)
	}

	cycles := reloaded.Cycles()
	if len(cycles) != 2 {
		t.Fatalf("reloaded %d cycles, expected 2", len(cycles))
	}
	if cycles[1].Actions[0].Kind != "roll_put" {
		t.Errorf("last action kind = %q", cycles[1].Actions[0].Kind)
	}

	last, ok := reloaded.LastCycle()
	if !ok || last.Actions[0].OrderID != "1" {
		t.Errorf("LastCycle = %+v, ok=%v", last, ok)
	}
}

func TestRecordCapsHistory(t *testing.T) {
	j, _ := tempJournal(t)

	for i := 0; i < maxCycles+10; i++ {
		if err := j.Record(sampleReport("write_put")); err != nil {
			t.Fatalf("Record returned error: %v", err)
		}
	}

	if got := len(j.Cycles()); got != maxCycles {
		t.Errorf("history holds %d cycles, expected cap of %d", got, maxCycles)
	}
}

func TestStats(t *testing.T) {
	j, _ := tempJournal(t)

	report := sampleReport("write_put")
	report.Errors = []string{"selecting contract for XYZ: no eligible contracts found for XYZ"}
	if err := j.Record(report); err != nil {
		t.Fatalf("Record returned error: %v", err)
	}
	if err := j.Record(sampleReport("roll_call")); err != nil {
		t.Fatalf("Record returned error: %v", err)
	}

	stats := j.Stats()
	if stats.TotalCycles != 2 || stats.TotalActions != 2 || stats.TotalErrors != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.ActionCounts["write_put"] != 1 || stats.ActionCounts["roll_call"] != 1 {
		t.Errorf("action counts = %v", stats.ActionCounts)
	}
}

func TestEmptyJournal(t *testing.T) {
	j, path := tempJournal(t)

	if _, ok := j.LastCycle(); ok {
		t.Error("empty journal should have no last cycle")
	}
	if len(j.Cycles()) != 0 {
		t.Error("empty journal should have no cycles")
	}

	// Nothing recorded: no file written yet.
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected no file before first record, stat err = %v", err)
	}
}
