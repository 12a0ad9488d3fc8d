package convert

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"dxt/catalog"
	"dxt/chunk"
	"dxt/config"
	"dxt/docx"
	"dxt/export"
	"dxt/formatting"
	"dxt/introspect"
	"dxt/issues"
	"dxt/misc"
	"dxt/reconcile"
	"dxt/reconstruct"
	"dxt/state"
	"dxt/translate"
)

// ErrNothingToReconstruct is returned when document has no paragraphs,
// tables or images.
var ErrNothingToReconstruct = errors.New("document has no structural elements")

// Result summarizes translation of a single document.
type Result struct {
	Output      string
	Statistics  reconstruct.Statistics
	Formatting  formatting.Summary
	Images      catalog.Statistics
	Chunks      chunk.Statistics
	Translation translate.Statistics
	Outcome     *reconstruct.Outcome
	Tracking    reconcile.Report
	Issues      *issues.Report
}

// analysis is everything learned about source document before translation.
type analysis struct {
	layout     *introspect.Layout
	catalog    *catalog.Catalog
	reconciled *reconcile.Result
	tracker    *reconcile.Tracker
	elements   []reconstruct.Element
}

func analyze(ctx context.Context, pkg *docx.Package, cfg *config.DocumentConfig, rpt *issues.Report, log *zap.Logger) (*analysis, error) {
	layout, err := introspect.Inspect(ctx, pkg, rpt, log)
	if err != nil {
		return nil, fmt.Errorf("unable to inspect document: %w", err)
	}
	cat, err := catalog.Build(ctx, pkg, layout, catalog.Options{DefaultDPI: cfg.Images.DefaultDPI}, rpt, log)
	if err != nil {
		return nil, fmt.Errorf("unable to build image catalog: %w", err)
	}

	tracker := reconcile.NewTracker()
	res := reconcile.Reconcile(cat.Images, layout.Targets, cat.ValidReferences(), tracker, rpt, log)

	return &analysis{
		layout:     layout,
		catalog:    cat,
		reconciled: res,
		tracker:    tracker,
		elements:   reconstruct.BuildElements(layout, res),
	}, nil
}

// String renders all analysis trees.
func (a *analysis) String() string {
	var b strings.Builder
	for _, s := range []fmt.Stringer{a.layout, a.catalog, a.reconciled, a.tracker} {
		b.WriteString(s.String())
		b.WriteByte('\n')
	}
	return b.String()
}

// save puts analysis artifacts into directory for debug report.
func (a *analysis) save(dir string) (err error) {
	err = multierr.Append(err, os.WriteFile(filepath.Join(dir, "structure.txt"), []byte(a.String()), 0644))
	err = multierr.Append(err, a.catalog.Extract(filepath.Join(dir, "media")))
	err = multierr.Append(err, a.tracker.SaveSQLite(filepath.Join(dir, "tracker.db")))
	err = multierr.Append(err, writeTracker(a.tracker, filepath.Join(dir, "tracker.json")))
	err = multierr.Append(err, export.WriteFile(a.elements, filepath.Join(dir, "elements.xml")))
	return err
}

func writeTracker(t *reconcile.Tracker, name string) (err error) {
	f, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("unable to create tracker dump: %w", err)
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()
	return t.WriteJSON(f)
}

func paragraphFormats(elements []reconstruct.Element) []*formatting.ParagraphFormat {
	formats := make([]*formatting.ParagraphFormat, 0, len(elements))
	for i := range elements {
		if elements[i].Formatting != nil {
			formats = append(formats, elements[i].Formatting)
		}
	}
	return formats
}

// translatorFor returns translator of the run creating it on first use.
func translatorFor(ctx context.Context, env *state.LocalEnv, log *zap.Logger) (translate.Translator, error) {
	if env.Translator != nil {
		return env.Translator, nil
	}
	if env.DryRun {
		log.Info("Dry run, text will be left untranslated")
		env.Translator = translate.Identity{}
		return env.Translator, nil
	}
	client, err := translate.NewClient(ctx, &env.Cfg.Translation, log)
	if err != nil {
		return nil, fmt.Errorf("unable to prepare translator: %w", err)
	}
	env.Translator = client
	return client, nil
}

// Process translates document src and writes result to dst. Recoverable
// problems end up in returned issues report, error is returned only when no
// output could be produced.
func Process(ctx context.Context, src, dst string, env *state.LocalEnv, log *zap.Logger) (res *Result, err error) {
	cfg := env.Cfg
	rpt := issues.New()

	tr, err := translatorFor(ctx, env, log)
	if err != nil {
		return nil, err
	}

	pkg, err := docx.Open(src)
	if err != nil {
		return nil, fmt.Errorf("unable to open document (%s): %w", src, err)
	}
	defer pkg.Close()

	workDir, err := os.MkdirTemp("", misc.GetAppName()+"-")
	if err != nil {
		return nil, fmt.Errorf("unable to create temporary directory: %w", err)
	}
	if env.Rpt != nil {
		// report removes it when closed
		env.Rpt.StoreScratch(filepath.Base(workDir), workDir)
	} else {
		defer func() {
			if er := os.RemoveAll(workDir); er != nil {
				err = multierr.Append(err, fmt.Errorf("unable to remove temporary directory: %w", er))
			}
		}()
	}
	defer rpt.Log(log)

	a, err := analyze(ctx, pkg, &cfg.Document, rpt, log)
	if err != nil {
		return nil, err
	}
	if len(a.elements) == 0 {
		return nil, ErrNothingToReconstruct
	}

	res = &Result{
		Output:     dst,
		Statistics: reconstruct.ComputeStatistics(a.elements),
		Formatting: formatting.Summarize(paragraphFormats(a.elements)),
		Images:     a.catalog.Statistics(),
		Issues:     rpt,
	}
	log.Info("Document structure", res.Statistics.Fields()...)
	log.Debug("Document formatting", res.Formatting.Fields()...)
	log.Debug("Document images", res.Images.Fields()...)

	if env.Rpt != nil {
		if err := a.save(workDir); err != nil {
			log.Warn("Unable to save analysis for debugging", zap.Error(err))
		}
	}

	chunks := chunk.New(cfg.Translation.ChunkSize, log).Split(reconstruct.SourceText(a.elements))
	res.Chunks = chunk.ComputeStatistics(chunks)
	log.Info("Text prepared", res.Chunks.Fields()...)

	results := translate.TranslateAll(ctx, tr, chunks, cfg.Translation.MaxConcurrentRequests,
		func(done, total int) {
			log.Debug("Translation progress", zap.Int("done", done), zap.Int("total", total))
		}, rpt, log)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res.Translation = translate.ComputeStatistics(results)
	log.Info("Translation finished", res.Translation.Fields()...)

	w, err := reconstruct.NewWriter(pkg, &cfg.Document, rpt, log)
	if err != nil {
		return nil, fmt.Errorf("unable to prepare output document: %w", err)
	}
	if res.Outcome, err = reconstruct.Reconstruct(ctx, a.elements, reconstruct.SplitBlocks(results), w, &cfg.Document, rpt, log); err != nil {
		return nil, fmt.Errorf("unable to reconstruct document: %w", err)
	}
	if err := w.Save(ctx, dst, workDir); err != nil {
		return nil, fmt.Errorf("unable to save output document: %w", err)
	}
	log.Info("Document reconstructed", res.Outcome.Fields()...)

	res.Tracking = a.tracker.Report()
	if len(res.Tracking.Problematic) > 0 {
		log.Warn("Some images changed position more than once or were not positioned", zap.Strings("images", res.Tracking.Problematic))
	}

	if env.SaveXML || cfg.Document.SaveXML {
		name := strings.TrimSuffix(dst, filepath.Ext(dst)) + ".xml"
		if err := export.WriteFile(a.elements, name); err != nil {
			log.Warn("Unable to save document structure", zap.Error(err))
		} else {
			log.Info("Document structure saved", zap.String("file", name))
		}
	}

	if env.Rpt != nil {
		if err := env.Rpt.StoreJSON(filepath.Base(workDir)+"-issues.json", rpt); err != nil {
			log.Warn("Unable to store issues", zap.Error(err))
		}
		env.Rpt.Store(fmt.Sprintf("result-%s%s", filepath.Base(workDir), filepath.Ext(dst)), dst)
	}
	return res, nil
}

// Describe writes analysis of document src without translating it.
func Describe(ctx context.Context, src string, out io.Writer, env *state.LocalEnv, log *zap.Logger) error {
	pkg, err := docx.Open(src)
	if err != nil {
		return fmt.Errorf("unable to open document (%s): %w", src, err)
	}
	defer pkg.Close()

	rpt := issues.New()
	a, err := analyze(ctx, pkg, &env.Cfg.Document, rpt, log)
	if err != nil {
		return err
	}

	if _, err := io.WriteString(out, a.String()); err != nil {
		return err
	}

	summary := struct {
		Statistics reconstruct.Statistics `json:"statistics"`
		Formatting formatting.Summary     `json:"formatting"`
		Images     catalog.Statistics     `json:"images"`
		Issues     *issues.Report         `json:"issues"`
	}{
		Statistics: reconstruct.ComputeStatistics(a.elements),
		Formatting: formatting.Summarize(paragraphFormats(a.elements)),
		Images:     a.catalog.Statistics(),
		Issues:     rpt,
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}
