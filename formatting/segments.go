// Package formatting carries run level styling of source paragraphs over to
// translated text which has different length and word order.
package formatting

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"dxt/docx"
	"dxt/issues"
)

// DefaultProportionalLimit is the largest number of segments still remapped
// proportionally, paragraphs with more segments collapse to dominant style.
const DefaultProportionalLimit = 3

// maxFontSize is the largest font size (points) word processor accepts.
const maxFontSize = 1638

// Style is a set of character attributes, nil means not set.
type Style struct {
	Bold      *bool    `json:"bold,omitempty"`
	Italic    *bool    `json:"italic,omitempty"`
	Underline *bool    `json:"underline,omitempty"`
	FontName  *string  `json:"font_name,omitempty"`
	FontSize  *float64 `json:"font_size,omitempty"`
	FontColor *string  `json:"font_color,omitempty"`
}

// IsZero reports if no attribute is set.
func (s Style) IsZero() bool {
	return s == Style{}
}

// key identifies style combination for dominance counting, color is
// ignored.
func (s Style) key() string {
	var sb strings.Builder
	for _, b := range []*bool{s.Bold, s.Italic, s.Underline} {
		if b == nil {
			sb.WriteString("-|")
		} else {
			fmt.Fprintf(&sb, "%t|", *b)
		}
	}
	if s.FontName != nil {
		sb.WriteString(*s.FontName)
	}
	sb.WriteByte('|')
	if s.FontSize != nil {
		fmt.Fprintf(&sb, "%g", *s.FontSize)
	}
	return sb.String()
}

// withoutColor returns copy of style with color cleared. Colors are never
// propagated to translated text.
func (s Style) withoutColor() Style {
	s.FontColor = nil
	return s
}

// StyleOf converts docx run properties to style.
func StyleOf(props docx.RunProps) Style {
	return Style{
		Bold:      props.Bold,
		Italic:    props.Italic,
		Underline: props.Underline,
		FontName:  props.Font,
		FontSize:  props.Size,
		FontColor: props.Color,
	}
}

// Segment is a piece of text sharing one style. Start and End are rune
// offsets into the text segment list covers.
type Segment struct {
	Text  string `json:"text"`
	Start int    `json:"start"`
	End   int    `json:"end"`
	Style Style  `json:"style"`
}

// ParagraphFormat is recorded per run style data of a source paragraph.
type ParagraphFormat struct {
	StyleID   string     `json:"style_id,omitempty"`
	StyleName string     `json:"style_name,omitempty"`
	Alignment string     `json:"alignment,omitempty"`
	Runs      []docx.Run `json:"-"`
}

// FromParagraph records formatting of docx paragraph.
func FromParagraph(p *docx.Paragraph) *ParagraphFormat {
	if p == nil {
		return nil
	}
	return &ParagraphFormat{
		StyleID:   p.StyleID,
		StyleName: p.Style,
		Alignment: p.Alignment,
		Runs:      p.Runs,
	}
}

// ExtractSegments splits text into styled segments, one per non empty run.
// Each run is looked up in text starting from the end of previous one, when
// not found it is assumed to start right there. Without run data whole text
// becomes single unstyled segment.
func ExtractSegments(text string, f *ParagraphFormat) []Segment {
	if f == nil || len(f.Runs) == 0 {
		n := utf8.RuneCountInString(text)
		return []Segment{{Text: text, Start: 0, End: n}}
	}

	var (
		segs    []Segment
		cursor  int // bytes
		runePos int // runes, matches cursor
	)
	for _, r := range f.Runs {
		if r.Text == "" {
			continue
		}
		start := runePos
		if cursor <= len(text) {
			if i := strings.Index(text[cursor:], r.Text); i >= 0 {
				start += utf8.RuneCountInString(text[cursor : cursor+i])
				cursor += i
			}
		}
		end := start + utf8.RuneCountInString(r.Text)
		segs = append(segs, Segment{
			Text:  r.Text,
			Start: start,
			End:   end,
			Style: StyleOf(r.Props),
		})
		cursor += len(r.Text)
		runePos = end
	}
	return segs
}

// Mapper remaps segments onto translated text.
type Mapper struct {
	// ProportionalLimit is the largest segment count remapped proportionally.
	ProportionalLimit int
}

// MapToTranslation remaps segments with default limit.
func MapToTranslation(segs []Segment, original, translated string) []Segment {
	return Mapper{ProportionalLimit: DefaultProportionalLimit}.Map(segs, original, translated)
}

// Map produces segments covering translated text exactly. No segments give
// single unstyled one, single segment style covers whole translation, few
// segments are remapped proportionally to their share of original text and
// many collapse into most frequent style. Color is always cleared.
func (m Mapper) Map(segs []Segment, original, translated string) []Segment {
	limit := m.ProportionalLimit
	if limit < 1 {
		limit = DefaultProportionalLimit
	}
	whole := func(style Style) []Segment {
		return []Segment{{Text: translated, Start: 0, End: utf8.RuneCountInString(translated), Style: style.withoutColor()}}
	}

	switch {
	case len(segs) == 0:
		return whole(Style{})
	case len(segs) == 1:
		return whole(segs[0].Style)
	case len(segs) > limit:
		return whole(dominant(segs))
	}
	return proportional(segs, original, translated)
}

// proportional allocates each non blank segment max(1, share*length) runes of
// translation left to right, remainder goes to the style of the last
// original segment.
func proportional(segs []Segment, original, translated string) []Segment {
	src := utf8.RuneCountInString(original)
	dst := []rune(translated)
	total := len(dst)

	if src == 0 || strings.TrimSpace(translated) == "" {
		return []Segment{{Text: translated, Start: 0, End: total}}
	}

	var (
		res []Segment
		pos int
	)
	for _, s := range segs {
		if strings.TrimSpace(s.Text) == "" {
			continue
		}
		share := float64(utf8.RuneCountInString(s.Text)) / float64(src)
		n := max(1, int(share*float64(total)))
		n = min(n, total-pos)
		if n <= 0 {
			continue
		}
		res = append(res, Segment{
			Text:  string(dst[pos : pos+n]),
			Start: pos,
			End:   pos + n,
			Style: s.Style.withoutColor(),
		})
		pos += n
	}
	if pos < total {
		res = append(res, Segment{
			Text:  string(dst[pos:]),
			Start: pos,
			End:   total,
			Style: segs[len(segs)-1].Style.withoutColor(),
		})
	}
	return res
}

// dominant returns most frequent style combination, ties go to the one seen
// first.
func dominant(segs []Segment) Style {
	counts := make(map[string]int)
	var order []string
	styles := make(map[string]Style)
	for _, s := range segs {
		k := s.Style.key()
		if _, ok := counts[k]; !ok {
			order = append(order, k)
			styles[k] = s.Style
		}
		counts[k]++
	}
	best := order[0]
	for _, k := range order[1:] {
		if counts[k] > counts[best] {
			best = k
		}
	}
	return styles[best]
}

// ApplyStyle converts style to docx run properties. Every attribute is
// checked separately, failed attribute is skipped and reported, color is
// never applied.
func ApplyStyle(s Style, subject string, rpt *issues.Report) docx.RunProps {
	props := docx.RunProps{
		Bold:      s.Bold,
		Italic:    s.Italic,
		Underline: s.Underline,
	}
	if s.FontName != nil {
		if err := checkFontName(*s.FontName); err != nil {
			rpt.Addf(issues.CategoryStyle, subject, "font name skipped: %v", err)
		} else {
			props.Font = s.FontName
		}
	}
	if s.FontSize != nil {
		if err := checkFontSize(*s.FontSize); err != nil {
			rpt.Addf(issues.CategoryStyle, subject, "font size skipped: %v", err)
		} else {
			props.Size = s.FontSize
		}
	}
	return props
}

func checkFontName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("empty font name")
	}
	if !utf8.ValidString(name) {
		return fmt.Errorf("font name %q is not valid UTF-8", name)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("font name %q has control characters", name)
		}
	}
	return nil
}

func checkFontSize(size float64) error {
	if math.IsNaN(size) || math.IsInf(size, 0) {
		return fmt.Errorf("font size %v is not finite", size)
	}
	if size <= 0 || size > maxFontSize {
		return fmt.Errorf("font size %g out of range (0, %d]", size, maxFontSize)
	}
	return nil
}

// Join concatenates segment texts.
func Join(segs []Segment) string {
	var sb strings.Builder
	for _, s := range segs {
		sb.WriteString(s.Text)
	}
	return sb.String()
}
