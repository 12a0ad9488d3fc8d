package formatting

import (
	"fmt"
	"sort"
	"strconv"

	"go.uber.org/zap"
)

// Formatting complexity of a paragraph or whole document.
// ENUM(none, simple, medium, complex)
type Complexity int

const (
	ComplexityNone Complexity = iota
	ComplexitySimple
	ComplexityMedium
	ComplexityComplex
)

var complexityNames = []string{"none", "simple", "medium", "complex"}

func (c Complexity) String() string {
	if c >= ComplexityNone && int(c) < len(complexityNames) {
		return complexityNames[c]
	}
	return fmt.Sprintf("Complexity(%d)", int(c))
}

func (c Complexity) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Analysis describes formatting of single paragraph.
type Analysis struct {
	Complexity   Complexity `json:"complexity"`
	Runs         int        `json:"runs"`
	HasBold      bool       `json:"has_bold"`
	HasItalic    bool       `json:"has_italic"`
	HasUnderline bool       `json:"has_underline"`
	Fonts        int        `json:"unique_fonts"`
	Sizes        int        `json:"unique_sizes"`
	Colors       int        `json:"unique_colors"`
	// Percentages of runs.
	BoldPercent      float64 `json:"bold_percentage"`
	ItalicPercent    float64 `json:"italic_percentage"`
	UnderlinePercent float64 `json:"underline_percentage"`
}

type attributes struct {
	fonts, sizes, colors map[string]bool
}

func newAttributes() attributes {
	return attributes{
		fonts:  make(map[string]bool),
		sizes:  make(map[string]bool),
		colors: make(map[string]bool),
	}
}

func (a attributes) collect(f *ParagraphFormat) {
	if f == nil {
		return
	}
	for _, r := range f.Runs {
		if r.Props.Font != nil && *r.Props.Font != "" {
			a.fonts[*r.Props.Font] = true
		}
		if r.Props.Size != nil && *r.Props.Size != 0 {
			a.sizes[strconv.FormatFloat(*r.Props.Size, 'g', -1, 64)] = true
		}
		if r.Props.Color != nil && *r.Props.Color != "" {
			a.colors[*r.Props.Color] = true
		}
	}
}

// Analyze classifies paragraph formatting: more than 3 runs or more than one
// font, size or color is medium, more than 6 runs or more than two of any
// attribute is complex.
func Analyze(f *ParagraphFormat) Analysis {
	an := Analysis{Complexity: ComplexitySimple}
	if f == nil || len(f.Runs) == 0 {
		return an
	}

	var bold, italic, underline int
	for _, r := range f.Runs {
		if isSet(r.Props.Bold) {
			bold++
		}
		if isSet(r.Props.Italic) {
			italic++
		}
		if isSet(r.Props.Underline) {
			underline++
		}
	}
	attrs := newAttributes()
	attrs.collect(f)

	an.Runs = len(f.Runs)
	an.HasBold, an.HasItalic, an.HasUnderline = bold > 0, italic > 0, underline > 0
	an.Fonts, an.Sizes, an.Colors = len(attrs.fonts), len(attrs.sizes), len(attrs.colors)
	an.BoldPercent = percent(bold, an.Runs)
	an.ItalicPercent = percent(italic, an.Runs)
	an.UnderlinePercent = percent(underline, an.Runs)

	if an.Runs > 3 || an.Fonts > 1 || an.Sizes > 1 || an.Colors > 1 {
		an.Complexity = ComplexityMedium
	}
	if an.Runs > 6 || an.Fonts > 2 || an.Sizes > 2 || an.Colors > 2 {
		an.Complexity = ComplexityComplex
	}
	return an
}

// Summary describes formatting of the whole document.
type Summary struct {
	Elements      int                `json:"total_elements"`
	Complexity    Complexity         `json:"overall_complexity"`
	Distribution  map[Complexity]int `json:"complexity_distribution"`
	Runs          int                `json:"total_runs"`
	AverageRuns   float64            `json:"average_runs_per_element"`
	WithBold      int                `json:"elements_with_bold"`
	WithItalic    int                `json:"elements_with_italic"`
	WithUnderline int                `json:"elements_with_underline"`
	Fonts         []string           `json:"fonts_used"`
	Sizes         int                `json:"unique_font_sizes"`
	Colors        int                `json:"unique_colors"`
}

// Summarize analyzes every paragraph. Document is complex when more than 30%
// of paragraphs are complex, medium when more than half are medium.
func Summarize(formats []*ParagraphFormat) Summary {
	sum := Summary{
		Elements:     len(formats),
		Distribution: make(map[Complexity]int),
	}
	if len(formats) == 0 {
		return sum
	}

	attrs := newAttributes()
	for _, f := range formats {
		an := Analyze(f)
		sum.Distribution[an.Complexity]++
		sum.Runs += an.Runs
		if an.HasBold {
			sum.WithBold++
		}
		if an.HasItalic {
			sum.WithItalic++
		}
		if an.HasUnderline {
			sum.WithUnderline++
		}
		attrs.collect(f)
	}

	for font := range attrs.fonts {
		sum.Fonts = append(sum.Fonts, font)
	}
	sort.Strings(sum.Fonts)
	sum.Sizes, sum.Colors = len(attrs.sizes), len(attrs.colors)
	sum.AverageRuns = float64(sum.Runs) / float64(sum.Elements)

	n := float64(sum.Elements)
	switch {
	case float64(sum.Distribution[ComplexityComplex]) > n*0.3:
		sum.Complexity = ComplexityComplex
	case float64(sum.Distribution[ComplexityMedium]) > n*0.5:
		sum.Complexity = ComplexityMedium
	default:
		sum.Complexity = ComplexitySimple
	}
	return sum
}

// Fields returns summary as log fields.
func (s Summary) Fields() []zap.Field {
	return []zap.Field{
		zap.Stringer("complexity", s.Complexity),
		zap.Int("elements", s.Elements),
		zap.Int("runs", s.Runs),
		zap.Float64("average runs", s.AverageRuns),
		zap.Int("simple", s.Distribution[ComplexitySimple]),
		zap.Int("medium", s.Distribution[ComplexityMedium]),
		zap.Int("complex", s.Distribution[ComplexityComplex]),
		zap.Strings("fonts", s.Fonts),
	}
}

func isSet(b *bool) bool {
	return b != nil && *b
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) * 100 / float64(total)
}
