// Package issues aggregates recoverable problems found while processing a
// document. Nothing here stops the pipeline: issues are collected, counted per
// category and reported at the end of the run.
package issues

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// ENUM(anchor, format, dimensions, style, shortfall, overflow, translation, stage, table)
type Category int

const (
	// CategoryAnchor is a missing, invalid or reclassified image anchor.
	CategoryAnchor Category = iota
	// CategoryFormat is an asset with undetectable format, excluded from catalog.
	CategoryFormat
	// CategoryDimensions is an image which size could not be determined.
	CategoryDimensions
	// CategoryStyle is a run attribute which could not be applied.
	CategoryStyle
	// CategoryShortfall is a text element left without translated block.
	CategoryShortfall
	// CategoryOverflow is a translated block no element consumed.
	CategoryOverflow
	// CategoryTranslation is a failed translation request.
	CategoryTranslation
	// CategoryStage is a whole stage running in degraded mode.
	CategoryStage
	// CategoryTable is a table rebuilt with lost or cropped cells.
	CategoryTable
)

var categoryNames = []string{"anchor", "format", "dimensions", "style", "shortfall", "overflow", "translation", "stage", "table"}

// CategoryNames returns list of possible string values of Category.
func CategoryNames() []string {
	return append([]string(nil), categoryNames...)
}

// String implements the Stringer interface.
func (c Category) String() string {
	if c.IsValid() {
		return categoryNames[c]
	}
	return fmt.Sprintf("Category(%d)", int(c))
}

// IsValid provides a quick way to determine if the typed value is part of
// the allowed enumerated values.
func (c Category) IsValid() bool {
	return c >= 0 && int(c) < len(categoryNames)
}

// ParseCategory attempts to convert a string to a Category.
func ParseCategory(name string) (Category, error) {
	for i, n := range categoryNames {
		if strings.EqualFold(n, name) {
			return Category(i), nil
		}
	}
	return Category(0), fmt.Errorf("%s is not a valid Category, try [%s]", name, strings.Join(categoryNames, ", "))
}

// MarshalText implements the text marshaller method.
func (c Category) MarshalText() ([]byte, error) {
	if !c.IsValid() {
		return nil, fmt.Errorf("%d is not a valid Category", int(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements the text unmarshaller method.
func (c *Category) UnmarshalText(text []byte) error {
	v, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Entry is a single recoverable issue.
type Entry struct {
	Category Category `json:"category"`
	// Subject names affected item: asset id, element index, chunk number.
	Subject string `json:"subject"`
	Detail  string `json:"detail"`
}

// Report collects issues. Nil report silently ignores everything, so callers
// do not have to check. Safe for concurrent use.
type Report struct {
	mu      sync.Mutex
	entries []Entry
}

// New creates empty report.
func New() *Report {
	return &Report{}
}

// Add records issue.
func (r *Report) Add(cat Category, subject, detail string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{Category: cat, Subject: subject, Detail: detail})
}

// Addf records issue with formatted detail.
func (r *Report) Addf(cat Category, subject, format string, args ...any) {
	if r == nil {
		return
	}
	r.Add(cat, subject, fmt.Sprintf(format, args...))
}

// Count returns number of issues in category.
func (r *Report) Count(cat Category) int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, e := range r.entries {
		if e.Category == cat {
			n++
		}
	}
	return n
}

// Counts returns number of issues per category, categories without issues
// are not present.
func (r *Report) Counts() map[Category]int {
	counts := make(map[Category]int)
	if r == nil {
		return counts
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.entries {
		counts[e.Category]++
	}
	return counts
}

// Entries returns issues of category in the order they were recorded.
func (r *Report) Entries(cat Category) []Entry {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var res []Entry
	for _, e := range r.entries {
		if e.Category == cat {
			res = append(res, e)
		}
	}
	return res
}

// All returns every issue in the order it was recorded.
func (r *Report) All() []Entry {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

// Total returns number of recorded issues.
func (r *Report) Total() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// MarshalJSON renders counts and entries.
func (r *Report) MarshalJSON() ([]byte, error) {
	counts := make(map[string]int)
	for c, n := range r.Counts() {
		counts[c.String()] = n
	}
	entries := r.All()
	if entries == nil {
		entries = []Entry{}
	}
	return json.Marshal(struct {
		Total   int            `json:"total"`
		Counts  map[string]int `json:"counts"`
		Entries []Entry        `json:"entries"`
	}{
		Total:   len(entries),
		Counts:  counts,
		Entries: entries,
	})
}

// Log writes summary of the report: one line with per category counts and,
// at debug level, every entry.
func (r *Report) Log(log *zap.Logger) {
	counts := r.Counts()
	if len(counts) == 0 {
		log.Info("No issues found")
		return
	}

	cats := make([]Category, 0, len(counts))
	for c := range counts {
		cats = append(cats, c)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })

	fields := make([]zap.Field, 0, len(cats)+1)
	fields = append(fields, zap.Int("total", r.Total()))
	for _, c := range cats {
		fields = append(fields, zap.Int(c.String(), counts[c]))
	}
	log.Warn("Document processed with issues", fields...)

	for _, e := range r.All() {
		log.Debug("Issue", zap.Stringer("category", e.Category), zap.String("subject", e.Subject), zap.String("detail", e.Detail))
	}
}
