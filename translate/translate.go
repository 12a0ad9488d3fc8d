// Package translate sends text chunks to translation service and collects
// results in chunk order.
package translate

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"dxt/chunk"
	"dxt/issues"
)

// Translator translates single piece of text. Failures are reported in
// result, never panic.
type Translator interface {
	Translate(ctx context.Context, text string) Result
}

// Result of translating one chunk.
type Result struct {
	Source  string
	Text    string
	Success bool
	Err     error
	// Continued is copied from chunk: result continues paragraph of the
	// previous one.
	Continued bool
	Attempts  int
	Duration  time.Duration
}

// Identity returns text unchanged, used for dry runs.
type Identity struct{}

func (Identity) Translate(_ context.Context, text string) Result {
	return Result{Source: text, Text: text, Success: true, Attempts: 1}
}

// Progress is called after every finished chunk.
type Progress func(done, total int)

// TranslateAll translates chunks using at most concurrency parallel
// requests. Results are in chunk order, failed chunks are reported and
// left with Success unset.
func TranslateAll(ctx context.Context, t Translator, chunks []chunk.Chunk, concurrency int, progress Progress, rpt *issues.Report, log *zap.Logger) []Result {
	log = log.Named("translate")
	results := make([]Result, len(chunks))

	var (
		mu   sync.Mutex
		done int
	)
	g := new(errgroup.Group)
	g.SetLimit(max(concurrency, 1))
	for i, c := range chunks {
		g.Go(func() error {
			res := t.Translate(ctx, c.Text)
			res.Source, res.Continued = c.Text, c.Continued
			results[i] = res

			if !res.Success {
				rpt.Addf(issues.CategoryTranslation, chunkSubject(i), "translation failed after %d attempt(s): %v", res.Attempts, res.Err)
				log.Warn("Chunk translation failed", zap.Int("chunk", i+1), zap.Int("attempts", res.Attempts), zap.Error(res.Err))
			} else {
				log.Debug("Chunk translated", zap.Int("chunk", i+1), zap.Int("size", len(c.Text)), zap.Duration("elapsed", res.Duration))
			}

			mu.Lock()
			done++
			if progress != nil {
				progress(done, len(chunks))
			}
			mu.Unlock()
			return nil
		})
	}
	// goroutines never return errors
	_ = g.Wait()
	return results
}

func chunkSubject(i int) string {
	return "chunk " + strconv.Itoa(i+1)
}

// Statistics summarizes translation results.
type Statistics struct {
	Chunks    int           `json:"total_chunks"`
	Succeeded int           `json:"successful"`
	Failed    int           `json:"failed"`
	Elapsed   time.Duration `json:"total_time"`
}

// ComputeStatistics counts successful and failed results.
func ComputeStatistics(results []Result) Statistics {
	st := Statistics{Chunks: len(results)}
	for _, r := range results {
		if r.Success {
			st.Succeeded++
		} else {
			st.Failed++
		}
		st.Elapsed += r.Duration
	}
	return st
}

// Fields returns statistics as log fields.
func (s Statistics) Fields() []zap.Field {
	return []zap.Field{
		zap.Int("chunks", s.Chunks),
		zap.Int("succeeded", s.Succeeded),
		zap.Int("failed", s.Failed),
		zap.Duration("requests time", s.Elapsed),
	}
}
