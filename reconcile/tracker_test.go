package reconcile

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap/zaptest"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"dxt/issues"
)

func TestTracker_Stages(t *testing.T) {
	tracker := NewTracker()
	images := makeImages(anchor(1), anchor(-5), anchor(999), nil)
	Reconcile(images, textTargets(5), nil, tracker, issues.New(), zaptest.NewLogger(t))

	for s := StageExtraction; s <= StageInsertion; s++ {
		if _, ok := tracker.Snapshot(s); !ok {
			t.Errorf("no snapshot for %s", s)
		}
	}

	ext, _ := tracker.Snapshot(StageExtraction)
	if ext["extracted_3"] == nil || *ext["extracted_3"] != 999 {
		t.Errorf("extraction snapshot lost original anchor: %v", ext)
	}
	val, _ := tracker.Snapshot(StageValidation)
	if val["extracted_2"] != nil || val["extracted_3"] != nil {
		t.Errorf("validation snapshot kept invalid anchors")
	}
	ins, _ := tracker.Snapshot(StageInsertion)
	if *ins["extracted_1"] != 1 || *ins["extracted_4"] != 5 {
		t.Errorf("insertion snapshot placements wrong: 1->%d 4->%d", *ins["extracted_1"], *ins["extracted_4"])
	}

	// two invalid anchors plus three appended images
	hist := tracker.History()
	if len(hist) != 5 {
		t.Fatalf("history has %d entries, want 5: %+v", len(hist), hist)
	}
	if hist[0].Stage != StageValidation || hist[0].AssetID != "extracted_2" {
		t.Errorf("unexpected first transition %+v", hist[0])
	}
}

func TestTracker_SnapshotsAreCopies(t *testing.T) {
	tracker := NewTracker()
	a := 3
	snap := Snapshot{"extracted_1": &a}
	tracker.Record(StageExtraction, snap)
	a = 7
	snap["extracted_2"] = nil

	got, _ := tracker.Snapshot(StageExtraction)
	if len(got) != 1 || *got["extracted_1"] != 3 {
		t.Fatalf("recorded snapshot changed through caller: %v", got)
	}
	*got["extracted_1"] = 42
	again, _ := tracker.Snapshot(StageExtraction)
	if *again["extracted_1"] != 3 {
		t.Fatalf("snapshot changed through consumer copy")
	}
}

func TestTracker_Concurrent(t *testing.T) {
	tracker := NewTracker()
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v := i
			tracker.Record(StageValidation, Snapshot{"extracted_1": &v})
			tracker.Note(StageValidation, "extracted_1", nil, &v, "test")
			_, _ = tracker.Snapshot(StageValidation)
			_ = tracker.Report()
		}()
	}
	wg.Wait()
	if n := len(tracker.History()); n != 8 {
		t.Errorf("history has %d entries, want 8", n)
	}
}

func TestTracker_Report(t *testing.T) {
	tracker := NewTracker()
	// extracted_1 stable, extracted_2 moved once, extracted_3 moved twice,
	// extracted_4 ended without anchor
	tracker.Record(StageExtraction, Snapshot{"extracted_1": anchor(1), "extracted_2": anchor(4), "extracted_3": anchor(20), "extracted_4": nil})
	tracker.Record(StageValidation, Snapshot{"extracted_1": anchor(1), "extracted_2": anchor(3), "extracted_3": nil, "extracted_4": nil})
	tracker.Record(StagePositioning, Snapshot{"extracted_1": anchor(1), "extracted_2": anchor(3), "extracted_3": anchor(5), "extracted_4": nil})
	tracker.Record(StageInsertion, Snapshot{"extracted_1": anchor(1), "extracted_2": anchor(3), "extracted_3": anchor(5), "extracted_4": anchor(10)})

	rpt := tracker.Report()
	if !reflect.DeepEqual(rpt.Stable, []string{"extracted_1"}) {
		t.Errorf("stable = %v", rpt.Stable)
	}
	if !reflect.DeepEqual(rpt.Problematic, []string{"extracted_3", "extracted_4"}) {
		t.Errorf("problematic = %v", rpt.Problematic)
	}
	if len(rpt.Changes) != 3 {
		t.Errorf("changes = %+v", rpt.Changes)
	}
	if len(rpt.Stages) != 4 {
		t.Fatalf("stages = %+v", rpt.Stages)
	}
	if rpt.Stages[1].Positioned != 2 || rpt.Stages[1].Unpositioned != 2 {
		t.Errorf("validation summary = %+v", rpt.Stages[1])
	}
	if rpt.Stages[3].Unpositioned != 0 {
		t.Errorf("insertion summary = %+v", rpt.Stages[3])
	}
	if s := tracker.String(); !strings.Contains(s, "Problematic: extracted_3, extracted_4") {
		t.Errorf("String() =\n%s", s)
	}
}

func TestTracker_Nil(t *testing.T) {
	var tracker *Tracker
	tracker.Record(StageExtraction, Snapshot{})
	tracker.Note(StageExtraction, "x", nil, nil, "")
	if _, ok := tracker.Snapshot(StageExtraction); ok {
		t.Error("nil tracker returned snapshot")
	}
	if tracker.History() != nil {
		t.Error("nil tracker returned history")
	}
}

func TestTracker_WriteJSON(t *testing.T) {
	tracker := NewTracker()
	Reconcile(makeImages(anchor(0), nil), textTargets(3), nil, tracker, issues.New(), zaptest.NewLogger(t))

	var buf bytes.Buffer
	if err := tracker.WriteJSON(&buf); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	var dump struct {
		Snapshots map[string]map[string]*int `json:"snapshots"`
		History   []map[string]any           `json:"history"`
		Report    map[string]any             `json:"report"`
	}
	if err := json.Unmarshal(buf.Bytes(), &dump); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
	}
	if len(dump.Snapshots) != 4 {
		t.Errorf("expected 4 stages, got %v", dump.Snapshots)
	}
	if p := dump.Snapshots["insertion"]["extracted_2"]; p == nil || *p != 3 {
		t.Errorf("insertion placement of appended image = %v", p)
	}
	if len(dump.History) != 1 || dump.History[0]["stage"] != "positioning" {
		t.Errorf("history = %v", dump.History)
	}
}

func TestTracker_SaveSQLite(t *testing.T) {
	tracker := NewTracker()
	Reconcile(makeImages(anchor(0), anchor(50)), textTargets(3), nil, tracker, issues.New(), zaptest.NewLogger(t))

	path := filepath.Join(t.TempDir(), "positions.sqlite")
	if err := tracker.SaveSQLite(path); err != nil {
		t.Fatalf("SaveSQLite: %v", err)
	}
	// second save replaces database
	if err := tracker.SaveSQLite(path); err != nil {
		t.Fatalf("SaveSQLite again: %v", err)
	}

	conn, err := sqlite.OpenConn(path, sqlite.OpenReadOnly)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()

	var rows, nulls int
	err = sqlitex.Execute(conn, `SELECT anchor FROM snapshots WHERE stage = 'validation'`,
		&sqlitex.ExecOptions{ResultFunc: func(stmt *sqlite.Stmt) error {
			rows++
			if stmt.ColumnType(0) == sqlite.TypeNull {
				nulls++
			}
			return nil
		}})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if rows != 2 || nulls != 1 {
		t.Errorf("validation rows=%d nulls=%d, want 2 and 1", rows, nulls)
	}

	var reasons []string
	err = sqlitex.Execute(conn, `SELECT reason FROM history ORDER BY seq`,
		&sqlitex.ExecOptions{ResultFunc: func(stmt *sqlite.Stmt) error {
			reasons = append(reasons, stmt.ColumnText(0))
			return nil
		}})
	if err != nil {
		t.Fatalf("query history: %v", err)
	}
	if len(reasons) != 2 || !strings.Contains(reasons[0], "out of range") {
		t.Errorf("history reasons = %v", reasons)
	}
}
