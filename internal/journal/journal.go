// Package journal persists a rolling record of maintenance cycles to a JSON
// file. It is the bot's audit trail and feeds the dashboard; it holds no
// order state and nothing reads it back into the trading logic.
package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// maxCycles bounds the on-disk history; oldest cycles fall off first.
const maxCycles = 200

// Action records one thing the cycle did to the portfolio.
type Action struct {
	Time    time.Time `json:"time"`
	Kind    string    `json:"kind"` // roll_put, roll_call, write_put, write_call
	Symbol  string    `json:"symbol"`
	Detail  string    `json:"detail"`
	OrderID string    `json:"order_id,omitempty"`
}

// CycleReport summarizes one maintenance cycle.
type CycleReport struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Actions    []Action  `json:"actions"`
	Errors     []string  `json:"errors,omitempty"`
}

// Recorder is the write side of the journal, the only part the strategy
// depends on.
type Recorder interface {
	Record(report CycleReport) error
}

type journalData struct {
	Cycles      []CycleReport `json:"cycles"`
	LastUpdated time.Time     `json:"last_updated"`
}

// Journal is a file-backed cycle log, safe for concurrent use.
type Journal struct {
	mu       sync.RWMutex
	filepath string
	data     *journalData
}

// New opens the journal at path, loading existing history if present.
func New(path string) (*Journal, error) {
	j := &Journal{
		filepath: path,
		data:     &journalData{},
	}

	if _, err := os.Stat(path); err == nil {
		if err := j.load(); err != nil {
			return nil, fmt.Errorf("loading journal: %w", err)
		}
	}

	return j, nil
}

func (j *Journal) load() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	data, err := os.ReadFile(j.filepath)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, &j.data)
}

// Record appends a cycle report and flushes to disk.
func (j *Journal) Record(report CycleReport) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.data.Cycles = append(j.data.Cycles, report)
	if len(j.data.Cycles) > maxCycles {
		j.data.Cycles = j.data.Cycles[len(j.data.Cycles)-maxCycles:]
	}

	return j.save()
}

// save flushes to a temp file then renames, so a crash mid-write never
// leaves a truncated journal. Callers must hold the write lock.
func (j *Journal) save() error {
	j.data.LastUpdated = time.Now()

	data, err := json.MarshalIndent(j.data, "", "  ")
	if err != nil {
		return err
	}

	tmpFile := j.filepath + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmpFile, j.filepath)
}

// Cycles returns a copy of the recorded history, oldest first.
func (j *Journal) Cycles() []CycleReport {
	j.mu.RLock()
	defer j.mu.RUnlock()

	out := make([]CycleReport, len(j.data.Cycles))
	copy(out, j.data.Cycles)
	return out
}

// LastCycle returns the most recent cycle, if any.
func (j *Journal) LastCycle() (CycleReport, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if len(j.data.Cycles) == 0 {
		return CycleReport{}, false
	}
	return j.data.Cycles[len(j.data.Cycles)-1], true
}

// Summary aggregates action counts across the recorded history.
type Summary struct {
	TotalCycles  int            `json:"total_cycles"`
	TotalActions int            `json:"total_actions"`
	TotalErrors  int            `json:"total_errors"`
	ActionCounts map[string]int `json:"action_counts"`
	LastCycleAt  time.Time      `json:"last_cycle_at"`
}

// Stats computes a summary over the recorded cycles.
func (j *Journal) Stats() Summary {
	j.mu.RLock()
	defer j.mu.RUnlock()

	s := Summary{
		TotalCycles:  len(j.data.Cycles),
		ActionCounts: make(map[string]int),
	}
	for _, c := range j.data.Cycles {
		s.TotalActions += len(c.Actions)
		s.TotalErrors += len(c.Errors)
		for _, a := range c.Actions {
			s.ActionCounts[a.Kind]++
		}
	}
	if len(j.data.Cycles) > 0 {
		s.LastCycleAt = j.data.Cycles[len(j.data.Cycles)-1].FinishedAt
	}
	return s
}
