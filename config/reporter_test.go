package config

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"
)

func newTestReport(t *testing.T) (*Report, string) {
	t.Helper()
	name := filepath.Join(t.TempDir(), "report.zip")
	r, err := (&ReporterConfig{Destination: name}).Prepare()
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	return r, name
}

func TestReportClose_RemovesScratchDirs(t *testing.T) {
	r, name := newTestReport(t)

	scratch, err := os.MkdirTemp("", "test-scratch-")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(scratch, "extracted_1.png"), []byte("png"), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	kept := filepath.Join(t.TempDir(), "result.docx")
	if err := os.WriteFile(kept, []byte("docx"), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	r.StoreScratch("scratch", scratch)
	r.Store("result.docx", kept)
	r.StoreData("notes.txt", []byte("hello"))
	if err := r.StoreJSON("issues.json", map[string]int{"anchor": 2}); err != nil {
		t.Fatalf("StoreJSON() error = %v", err)
	}

	if err := r.Close(); err != nil {
		t.Fatalf("Report.Close() error: %v", err)
	}

	if _, err := os.Stat(scratch); !os.IsNotExist(err) {
		os.RemoveAll(scratch)
		t.Errorf("expected scratch dir to be removed")
	}
	if _, err := os.Stat(kept); err != nil {
		t.Errorf("stored file should not be removed, got: %v", err)
	}

	zr, err := zip.OpenReader(name)
	if err != nil {
		t.Fatalf("unable to open report: %v", err)
	}
	defer zr.Close()

	want := map[string]bool{
		"MANIFEST":                true,
		"scratch/extracted_1.png": true,
		"result.docx":             true,
		"notes.txt":               true,
		"issues.json":             true,
	}
	for _, f := range zr.File {
		delete(want, f.Name)
	}
	for missing := range want {
		t.Errorf("report is missing %q", missing)
	}
}

func TestReportStore_Overwrite(t *testing.T) {
	r, _ := newTestReport(t)
	defer r.Close()

	r.Store("a", "/tmp/one")
	r.Store("a", "/tmp/one")

	defer func() {
		if recover() == nil {
			t.Error("expected panic on conflicting entry")
		}
	}()
	r.Store("a", "/tmp/two")
}

func TestReportClose_NilReport(t *testing.T) {
	var r *Report
	r.Store("x", "y")
	r.StoreScratch("x", "y")
	r.StoreData("x", nil)
	if err := r.StoreJSON("x", 1); err != nil {
		t.Errorf("StoreJSON on nil report should not error, got: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("Close on nil report should not error, got: %v", err)
	}
	if r.Name() != "" {
		t.Errorf("Name() on nil report = %q", r.Name())
	}
}

func TestReportClose_NilFile(t *testing.T) {
	r := &Report{entries: make(map[string]entry)}
	if err := r.Close(); err != nil {
		t.Errorf("Close with nil file should not error, got: %v", err)
	}
}
