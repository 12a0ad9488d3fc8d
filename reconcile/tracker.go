package reconcile

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/maruel/natural"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"dxt/utils/debug"
)

// Stage of image positioning.
// ENUM(extraction, validation, positioning, insertion)
type Stage int

const (
	StageExtraction Stage = iota
	StageValidation
	StagePositioning
	StageInsertion
)

var stageNames = []string{"extraction", "validation", "positioning", "insertion"}

func (s Stage) String() string {
	if s.IsValid() {
		return stageNames[s]
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

func (s Stage) IsValid() bool {
	return s >= StageExtraction && int(s) < len(stageNames)
}

func (s Stage) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("%d is not a valid Stage", int(s))
	}
	return []byte(s.String()), nil
}

// Snapshot is immutable copy of asset id to anchor mapping, nil anchor means
// unpositioned.
type Snapshot map[string]*int

func (s Snapshot) clone() Snapshot {
	res := make(Snapshot, len(s))
	for id, a := range s {
		res[id] = copyAnchor(a)
	}
	return res
}

// Transition is a single recorded decision about image anchor.
type Transition struct {
	Stage   Stage  `json:"stage"`
	AssetID string `json:"asset_id"`
	From    *int   `json:"from"`
	To      *int   `json:"to"`
	Reason  string `json:"reason"`
}

// Tracker records image anchors as they go through the pipeline stages.
// Snapshots are published atomically and consumers always get copies. Safe
// for concurrent use, nil tracker ignores everything.
type Tracker struct {
	mu        sync.Mutex
	snapshots map[Stage]Snapshot
	history   []Transition
}

// NewTracker returns empty tracker.
func NewTracker() *Tracker {
	return &Tracker{snapshots: make(map[Stage]Snapshot)}
}

// Record publishes snapshot of image anchors for the stage replacing
// previous one.
func (t *Tracker) Record(stage Stage, snap Snapshot) {
	if t == nil {
		return
	}
	c := snap.clone()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snapshots[stage] = c
}

// Note appends transition to history.
func (t *Tracker) Note(stage Stage, id string, from, to *int, reason string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.history = append(t.history, Transition{
		Stage:   stage,
		AssetID: id,
		From:    copyAnchor(from),
		To:      copyAnchor(to),
		Reason:  reason,
	})
}

// Snapshot returns copy of recorded stage snapshot.
func (t *Tracker) Snapshot(stage Stage) (Snapshot, bool) {
	if t == nil {
		return nil, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.snapshots[stage]
	if !ok {
		return nil, false
	}
	return s.clone(), true
}

// History returns copy of transitions in the order they were noted.
func (t *Tracker) History() []Transition {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	res := make([]Transition, len(t.history))
	for i, tr := range t.history {
		tr.From, tr.To = copyAnchor(tr.From), copyAnchor(tr.To)
		res[i] = tr
	}
	return res
}

// StageSummary counts images with and without anchor at a stage.
type StageSummary struct {
	Stage        Stage `json:"stage"`
	Positioned   int   `json:"positioned"`
	Unpositioned int   `json:"unpositioned"`
}

// Change is a difference of image anchor between two consecutive recorded
// stages.
type Change struct {
	AssetID string `json:"asset_id"`
	From    Stage  `json:"from"`
	To      Stage  `json:"to"`
	Before  *int   `json:"before"`
	After   *int   `json:"after"`
}

// Report describes how image positions evolved.
type Report struct {
	Stages  []StageSummary `json:"stages"`
	Changes []Change       `json:"changes"`
	// Stable images kept the same anchor from extraction to positioning.
	Stable []string `json:"stable"`
	// Problematic images changed anchor more than once or ended without one.
	Problematic []string `json:"problematic"`
}

// Report analyzes recorded snapshots. Insertion snapshot holds placements
// rather than anchors and takes part in stage summaries only.
func (t *Tracker) Report() Report {
	var rpt Report
	if t == nil {
		return rpt
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	var recorded []Stage
	for s := StageExtraction; s <= StageInsertion; s++ {
		snap, ok := t.snapshots[s]
		if !ok {
			continue
		}
		sum := StageSummary{Stage: s}
		for _, a := range snap {
			if a != nil {
				sum.Positioned++
			} else {
				sum.Unpositioned++
			}
		}
		rpt.Stages = append(rpt.Stages, sum)
		if s != StageInsertion {
			recorded = append(recorded, s)
		}
	}
	if len(recorded) == 0 {
		return rpt
	}

	ids := t.assetIDs()
	changes := make(map[string]int, len(ids))
	for i := 1; i < len(recorded); i++ {
		prev, cur := t.snapshots[recorded[i-1]], t.snapshots[recorded[i]]
		for _, id := range ids {
			before, after := prev[id], cur[id]
			if sameAnchor(before, after) {
				continue
			}
			changes[id]++
			rpt.Changes = append(rpt.Changes, Change{
				AssetID: id,
				From:    recorded[i-1],
				To:      recorded[i],
				Before:  copyAnchor(before),
				After:   copyAnchor(after),
			})
		}
	}

	last := t.snapshots[recorded[len(recorded)-1]]
	for _, id := range ids {
		if changes[id] == 0 && last[id] != nil {
			rpt.Stable = append(rpt.Stable, id)
		}
		if changes[id] > 1 || last[id] == nil {
			rpt.Problematic = append(rpt.Problematic, id)
		}
	}
	return rpt
}

// assetIDs returns ids from all snapshots in natural order, must be called
// under lock.
func (t *Tracker) assetIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	for _, snap := range t.snapshots {
		for id := range snap {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	sort.Sort(natural.StringSlice(ids))
	return ids
}

type trackerDump struct {
	Snapshots map[string]Snapshot `json:"snapshots"`
	History   []Transition        `json:"history"`
	Report    Report              `json:"report"`
}

// WriteJSON writes snapshots, history and report as single JSON document.
func (t *Tracker) WriteJSON(w io.Writer) error {
	dump := trackerDump{
		Snapshots: make(map[string]Snapshot),
		History:   t.History(),
		Report:    t.Report(),
	}
	for s := StageExtraction; s <= StageInsertion; s++ {
		if snap, ok := t.Snapshot(s); ok {
			dump.Snapshots[s.String()] = snap
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(dump); err != nil {
		return fmt.Errorf("unable to encode position tracking: %w", err)
	}
	return nil
}

const trackerSchema = `
CREATE TABLE snapshots (
	stage    TEXT NOT NULL,
	asset_id TEXT NOT NULL,
	anchor   INTEGER,
	PRIMARY KEY (stage, asset_id)
);
CREATE TABLE history (
	seq         INTEGER PRIMARY KEY,
	stage       TEXT NOT NULL,
	asset_id    TEXT NOT NULL,
	anchor_from INTEGER,
	anchor_to   INTEGER,
	reason      TEXT NOT NULL
);
`

// SaveSQLite writes snapshots and history into new SQLite database.
func (t *Tracker) SaveSQLite(path string) (err error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("unable to remove old database: %w", err)
	}

	conn, err := sqlite.OpenConn(path, sqlite.OpenReadWrite, sqlite.OpenCreate)
	if err != nil {
		return fmt.Errorf("unable to create database: %w", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("unable to close database: %w", cerr)
		}
	}()

	if err := sqlitex.ExecuteScript(conn, trackerSchema, nil); err != nil {
		return fmt.Errorf("unable to create schema: %w", err)
	}

	defer sqlitex.Save(conn)(&err)

	for s := StageExtraction; s <= StageInsertion; s++ {
		snap, ok := t.Snapshot(s)
		if !ok {
			continue
		}
		ids := make([]string, 0, len(snap))
		for id := range snap {
			ids = append(ids, id)
		}
		sort.Sort(natural.StringSlice(ids))
		for _, id := range ids {
			err := sqlitex.Execute(conn, `INSERT INTO snapshots (stage, asset_id, anchor) VALUES (?, ?, ?);`,
				&sqlitex.ExecOptions{Args: []any{s.String(), id, sqlAnchor(snap[id])}})
			if err != nil {
				return fmt.Errorf("unable to store snapshot of %s: %w", id, err)
			}
		}
	}

	for i, tr := range t.History() {
		err := sqlitex.Execute(conn, `INSERT INTO history (seq, stage, asset_id, anchor_from, anchor_to, reason) VALUES (?, ?, ?, ?, ?, ?);`,
			&sqlitex.ExecOptions{Args: []any{i + 1, tr.Stage.String(), tr.AssetID, sqlAnchor(tr.From), sqlAnchor(tr.To), tr.Reason}})
		if err != nil {
			return fmt.Errorf("unable to store history: %w", err)
		}
	}
	return nil
}

// String returns debug representation of tracking report.
func (t *Tracker) String() string {
	rpt := t.Report()
	tw := debug.NewTreeWriter()
	tw.Line(0, "Position tracking")
	for _, s := range rpt.Stages {
		tw.Line(1, "%s: positioned=%d unpositioned=%d", s.Stage, s.Positioned, s.Unpositioned)
	}
	if len(rpt.Changes) > 0 {
		tw.Line(1, "Changes: %d", len(rpt.Changes))
		for _, c := range rpt.Changes {
			tw.Line(2, "%s %s->%s: %s -> %s", c.AssetID, c.From, c.To, debug.Anchor(c.Before), debug.Anchor(c.After))
		}
	}
	tw.List(1, "Stable", rpt.Stable)
	tw.List(1, "Problematic", rpt.Problematic)
	return tw.String()
}

func sqlAnchor(a *int) any {
	if a == nil {
		return nil
	}
	return *a
}

func copyAnchor(a *int) *int {
	if a == nil {
		return nil
	}
	v := *a
	return &v
}

func sameAnchor(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
