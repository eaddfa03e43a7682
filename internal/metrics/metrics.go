// Package metrics tracks the progress of a harvest run.
package metrics

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Harvest is the summary of one harvest run
type Harvest struct {
	RunID             string    `json:"run_id"`
	SeedURL           string    `json:"seed_url"`
	StartTime         time.Time `json:"start_time"`
	EndTime           time.Time `json:"end_time,omitempty"`
	PagesFetched      int       `json:"pages_fetched"`
	PagesFailed       int       `json:"pages_failed"`
	PagesSkipped      int       `json:"pages_skipped"`
	LinksRecorded     int       `json:"links_recorded"`
	RedLinks          int       `json:"red_links"`
	TotalFetchTimeMs  int64     `json:"total_fetch_time_ms"`
	AvgFetchTimeMs    int64     `json:"avg_fetch_time_ms"`
	TerminationReason string    `json:"termination_reason,omitempty"`
}

// Tracker holds and manages harvest metrics
type Tracker struct {
	mu         sync.Mutex
	data       Harvest
	fetchCount int
}

// NewTracker creates a tracker for a run starting at seedURL
func NewTracker(seedURL string) *Tracker {
	return &Tracker{
		data: Harvest{
			RunID:     uuid.NewString(),
			SeedURL:   seedURL,
			StartTime: time.Now().UTC(),
		},
	}
}

// RunID identifies this run in logs and the metrics file
func (t *Tracker) RunID() string {
	return t.data.RunID
}

// PageFetched records a successful fetch and how long it took
func (t *Tracker) PageFetched(duration time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.PagesFetched++
	t.data.TotalFetchTimeMs += duration.Milliseconds()
	t.fetchCount++
}

// PageFailed increments the failed fetch counter
func (t *Tracker) PageFailed() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.PagesFailed++
}

// PageSkipped counts pages dropped by the page budget
func (t *Tracker) PageSkipped() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.PagesSkipped++
}

// LinkRecorded counts a recorded link, red marks a missing target
func (t *Tracker) LinkRecorded(red bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.LinksRecorded++
	if red {
		t.data.RedLinks++
	}
}

// Snapshot returns a copy of current metrics
func (t *Tracker) Snapshot() Harvest {
	t.mu.Lock()
	defer t.mu.Unlock()

	snapshot := t.data
	if t.fetchCount > 0 {
		snapshot.AvgFetchTimeMs = t.data.TotalFetchTimeMs / int64(t.fetchCount)
	}
	return snapshot
}

// WriteToFile finalizes the run and exports it as JSON
func (t *Tracker) WriteToFile(path, reason string) error {
	t.mu.Lock()
	t.data.EndTime = time.Now().UTC()
	t.data.TerminationReason = reason
	t.mu.Unlock()

	jsonData, err := json.MarshalIndent(t.Snapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}

	return nil
}

// LogProgress formats current metrics for periodic log lines
func (t *Tracker) LogProgress() string {
	s := t.Snapshot()
	return fmt.Sprintf("Pages: %d fetched, %d failed, %d skipped | Links: %d (%d red)",
		s.PagesFetched,
		s.PagesFailed,
		s.PagesSkipped,
		s.LinksRecorded,
		s.RedLinks,
	)
}
