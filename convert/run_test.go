package convert

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"dxt/config"
	"dxt/docx"
	"dxt/docx/docxtest"
	"dxt/issues"
	"dxt/state"
	"dxt/translate"
)

// setupTestEnv creates a test environment with proper context and logger
func setupTestEnv(t *testing.T) (context.Context, *state.LocalEnv) {
	t.Helper()
	logger := zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1)))
	cfg, err := config.LoadConfiguration("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	ctx := state.ContextWithEnv(context.Background())
	env := state.EnvFromContext(ctx)
	env.Log = logger
	env.Cfg = cfg
	env.Translator = upper{}
	return ctx, env
}

// upper "translates" by changing case, keeping paragraph structure.
type upper struct{}

func (upper) Translate(_ context.Context, text string) translate.Result {
	return translate.Result{Source: text, Text: strings.ToUpper(text), Success: true, Attempts: 1}
}

// dropping loses last paragraph of every chunk.
type dropping struct {
	mu    sync.Mutex
	calls int
}

func (d *dropping) Translate(_ context.Context, text string) translate.Result {
	d.mu.Lock()
	d.calls++
	d.mu.Unlock()
	paras := strings.Split(text, "\n\n")
	if len(paras) > 1 {
		paras = paras[:len(paras)-1]
	}
	return translate.Result{Source: text, Text: strings.Join(paras, "\n\n"), Success: true, Attempts: 1}
}

func sampleDoc(t *testing.T) *docxtest.Doc {
	t.Helper()
	d := docxtest.New()
	rid := d.Image("image1.png", docxtest.PNG(t, 96, 48))
	return d.Paragraph("First paragraph.").
		Drawing(rid, "").
		Paragraph("Second paragraph.").
		Table([]string{"a", "b"}, []string{"c", "d"})
}

func writeDoc(t *testing.T, d *docxtest.Doc, name string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(name), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(name, d.Bytes(t), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return name
}

func bodyTexts(t *testing.T, name string) []string {
	t.Helper()
	pkg, err := docx.Open(name)
	if err != nil {
		t.Fatalf("unable to open result: %v", err)
	}
	defer pkg.Close()

	doc, err := pkg.Document()
	if err != nil {
		t.Fatalf("unable to read result document: %v", err)
	}
	body, err := docx.ParseBody(doc, pkg.Styles())
	if err != nil {
		t.Fatalf("unable to parse result body: %v", err)
	}
	var texts []string
	for _, it := range body.Items {
		switch {
		case it.Paragraph != nil:
			texts = append(texts, it.Paragraph.Text())
		case it.Table != nil:
			texts = append(texts, "table")
		}
	}
	return texts
}

func TestProcess(t *testing.T) {
	ctx, env := setupTestEnv(t)
	src := writeDoc(t, sampleDoc(t), filepath.Join(t.TempDir(), "sample.docx"))
	dst := filepath.Join(t.TempDir(), "out.docx")

	res, err := Process(ctx, src, dst, env, env.Log)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	// drawing paragraph has no text and is counted as paragraph
	if res.Statistics.Paragraphs != 3 || res.Statistics.Tables != 1 || res.Statistics.Images != 1 {
		t.Errorf("unexpected statistics %+v", res.Statistics)
	}
	if res.Translation.Failed != 0 || res.Chunks.Chunks != 1 {
		t.Errorf("unexpected translation statistics %+v %+v", res.Chunks, res.Translation)
	}
	if res.Outcome.Shortfalls != 0 || res.Outcome.Overflow != 0 || res.Outcome.Images != 1 {
		t.Errorf("unexpected outcome %+v", res.Outcome)
	}

	got := bodyTexts(t, dst)
	want := []string{"FIRST PARAGRAPH.", "", "", "SECOND PARAGRAPH.", "table"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("result body = %q, want %q", got, want)
	}
}

func TestProcess_Shortfall(t *testing.T) {
	ctx, env := setupTestEnv(t)
	tr := &dropping{}
	env.Translator = tr
	src := writeDoc(t, docxtest.New().Paragraph("one").Paragraph("two").Paragraph("three"), filepath.Join(t.TempDir(), "short.docx"))
	dst := filepath.Join(t.TempDir(), "out.docx")

	res, err := Process(ctx, src, dst, env, env.Log)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if tr.calls != 1 {
		t.Errorf("translator called %d times", tr.calls)
	}
	if res.Outcome.Shortfalls != 1 || res.Issues.Count(issues.CategoryShortfall) != 1 {
		t.Errorf("expected single shortfall, got %+v", res.Outcome)
	}
	if got := bodyTexts(t, dst); len(got) != 3 || got[2] != "three" {
		t.Errorf("source text must be kept on shortfall, got %q", got)
	}
}

func TestProcess_Nothing(t *testing.T) {
	ctx, env := setupTestEnv(t)
	src := docxtest.New().Write(t, t.TempDir())

	_, err := Process(ctx, src, filepath.Join(t.TempDir(), "out.docx"), env, env.Log)
	if !errors.Is(err, ErrNothingToReconstruct) {
		t.Errorf("expected ErrNothingToReconstruct, got %v", err)
	}
}

func TestProcess_NotDocx(t *testing.T) {
	ctx, env := setupTestEnv(t)
	src := filepath.Join(t.TempDir(), "broken.docx")
	if err := os.WriteFile(src, []byte("not a zip"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Process(ctx, src, filepath.Join(t.TempDir(), "out.docx"), env, env.Log); err == nil {
		t.Error("expected error")
	}
}

func TestProcess_DryRunAndXML(t *testing.T) {
	ctx, env := setupTestEnv(t)
	env.Translator = nil
	env.DryRun = true
	env.SaveXML = true

	src := writeDoc(t, sampleDoc(t), filepath.Join(t.TempDir(), "dry.docx"))
	dst := filepath.Join(t.TempDir(), "out.docx")
	if _, err := Process(ctx, src, dst, env, env.Log); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if _, ok := env.Translator.(translate.Identity); !ok {
		t.Errorf("dry run must use identity translator, got %T", env.Translator)
	}
	if got := bodyTexts(t, dst); got[0] != "First paragraph." {
		t.Errorf("dry run changed text: %q", got)
	}
	if _, err := os.Stat(strings.TrimSuffix(dst, ".docx") + ".xml"); err != nil {
		t.Errorf("xml export missing: %v", err)
	}
}

func TestProcess_NoAPIKey(t *testing.T) {
	ctx, env := setupTestEnv(t)
	env.Translator = nil
	env.Cfg.Translation.APIKey = ""

	src := writeDoc(t, sampleDoc(t), filepath.Join(t.TempDir(), "key.docx"))
	if _, err := Process(ctx, src, filepath.Join(t.TempDir(), "out.docx"), env, env.Log); err == nil {
		t.Error("expected error without api key")
	}
}

func TestProcess_DebugReport(t *testing.T) {
	ctx, env := setupTestEnv(t)
	env.Cfg.Reporting.Destination = filepath.Join(t.TempDir(), "report.zip")
	rpt, err := env.Cfg.Reporting.Prepare()
	if err != nil {
		t.Fatalf("unable to prepare report: %v", err)
	}
	env.Rpt = rpt

	src := writeDoc(t, sampleDoc(t), filepath.Join(t.TempDir(), "debug.docx"))
	if _, err := Process(ctx, src, filepath.Join(t.TempDir(), "out.docx"), env, env.Log); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if err := rpt.Close(); err != nil {
		t.Fatalf("unable to close report: %v", err)
	}
	if fi, err := os.Stat(env.Cfg.Reporting.Destination); err != nil || fi.Size() == 0 {
		t.Errorf("report was not written: %v", err)
	}
}

func TestProcess_Canceled(t *testing.T) {
	ctx, env := setupTestEnv(t)
	ctx, cancel := context.WithCancel(ctx)
	cancel()

	src := writeDoc(t, sampleDoc(t), filepath.Join(t.TempDir(), "cancel.docx"))
	if _, err := Process(ctx, src, filepath.Join(t.TempDir(), "out.docx"), env, env.Log); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestDescribe(t *testing.T) {
	ctx, env := setupTestEnv(t)
	src := writeDoc(t, sampleDoc(t), filepath.Join(t.TempDir(), "describe.docx"))

	var out bytes.Buffer
	if err := Describe(ctx, src, &out, env, env.Log); err != nil {
		t.Fatalf("Describe() error = %v", err)
	}
	for _, want := range []string{"Reconciliation", "Position tracking", `"paragraphs": 3`, `"images"`} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output does not contain %q:\n%s", want, out.String())
		}
	}
}

// TestProcess_NonExistentPath tests process with non-existent path
func TestProcess_NonExistentPath(t *testing.T) {
	ctx, env := setupTestEnv(t)

	err := process(ctx, "/nonexistent/path/file.docx", t.TempDir(), env.Log)
	if err == nil {
		t.Fatal("Expected error for non-existent path, got nil")
	}
	if !strings.Contains(err.Error(), "input source was not found") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestProcess_NotDocument(t *testing.T) {
	ctx, env := setupTestEnv(t)
	tmpDir := t.TempDir()

	testFile := filepath.Join(tmpDir, "test.txt")
	if err := os.WriteFile(testFile, []byte("not a document"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
	err := process(ctx, testFile, tmpDir, env.Log)
	if err == nil || !strings.Contains(err.Error(), "not recognized as docx") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestProcess_SingleFile(t *testing.T) {
	ctx, env := setupTestEnv(t)
	src := writeDoc(t, sampleDoc(t), filepath.Join(t.TempDir(), "report.docx"))
	dstDir := t.TempDir()

	if err := process(ctx, src, dstDir, env.Log); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	out := filepath.Join(dstDir, "report_ru.docx")
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("expected output %s: %v", out, err)
	}

	// second run without overwrite must fail
	if err := process(ctx, src, dstDir, env.Log); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Errorf("expected existing output error, got %v", err)
	}
	env.Overwrite = true
	if err := process(ctx, src, dstDir, env.Log); err != nil {
		t.Errorf("overwrite failed: %v", err)
	}
}

func TestProcess_ExactDestination(t *testing.T) {
	ctx, env := setupTestEnv(t)
	src := writeDoc(t, sampleDoc(t), filepath.Join(t.TempDir(), "report.docx"))
	dst := filepath.Join(t.TempDir(), "nested", "Translated.DOCX")

	if err := process(ctx, src, dst, env.Log); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	if _, err := os.Stat(dst); err != nil {
		t.Errorf("expected output %s: %v", dst, err)
	}
}

func TestProcess_Directory(t *testing.T) {
	ctx, env := setupTestEnv(t)
	srcDir, dstDir := t.TempDir(), t.TempDir()

	writeDoc(t, sampleDoc(t), filepath.Join(srcDir, "a.docx"))
	writeDoc(t, sampleDoc(t), filepath.Join(srcDir, "sub", "b.docx"))
	writeDoc(t, sampleDoc(t), filepath.Join(srcDir, "~$a.docx"))
	writeDoc(t, docxtest.New(), filepath.Join(srcDir, "empty.docx"))
	if err := os.WriteFile(filepath.Join(srcDir, "notes.txt"), []byte("skip"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := process(ctx, srcDir, dstDir, env.Log); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	for _, name := range []string{"a_ru.docx", filepath.Join("sub", "b_ru.docx")} {
		if _, err := os.Stat(filepath.Join(dstDir, name)); err != nil {
			t.Errorf("expected output %s: %v", name, err)
		}
	}
	for _, name := range []string{"~$a_ru.docx", "empty_ru.docx"} {
		if _, err := os.Stat(filepath.Join(dstDir, name)); err == nil {
			t.Errorf("unexpected output %s", name)
		}
	}
}

func TestProcess_DirectoryToFile(t *testing.T) {
	ctx, env := setupTestEnv(t)
	dir := t.TempDir()
	if err := process(ctx, dir, filepath.Join(dir, "out.docx"), env.Log); err == nil {
		t.Error("expected error")
	}
}

// TestProcess_CancelledContext tests process with cancelled context
func TestProcess_CancelledContext(t *testing.T) {
	ctx, env := setupTestEnv(t)
	cancelCtx, cancel := context.WithCancel(ctx)
	cancel()

	tmpDir := t.TempDir()
	writeDoc(t, sampleDoc(t), filepath.Join(tmpDir, "a.docx"))
	if err := process(cancelCtx, tmpDir, t.TempDir(), env.Log); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled error, got %v", err)
	}
}

func TestIsDocument(t *testing.T) {
	tests := map[string]bool{
		"a.docx":         true,
		"dir/B.DOCX":     true,
		"~$lock.docx":    false,
		"a.doc":          false,
		"a.docx.txt":     false,
		"dir/~$old.docx": false,
	}
	for name, want := range tests {
		if got := isDocument(name); got != want {
			t.Errorf("isDocument(%q) = %v, want %v", name, got, want)
		}
	}
}
