package formatting

import (
	"math"
	"strings"
	"testing"
	"unicode/utf8"

	"dxt/docx"
	"dxt/issues"
)

func boolp(v bool) *bool        { return &v }
func strp(v string) *string     { return &v }
func floatp(v float64) *float64 { return &v }

func run(text string, props docx.RunProps) docx.Run {
	return docx.Run{Text: text, Props: props}
}

func checkCoverage(t *testing.T, segs []Segment, translated string) {
	t.Helper()
	if got := Join(segs); got != translated {
		t.Fatalf("segments cover %q, want %q", got, translated)
	}
	pos := 0
	for i, s := range segs {
		if s.Start != pos {
			t.Errorf("segment %d starts at %d, want %d", i, s.Start, pos)
		}
		if s.End-s.Start != utf8.RuneCountInString(s.Text) {
			t.Errorf("segment %d span %d..%d does not match text %q", i, s.Start, s.End, s.Text)
		}
		if s.Style.FontColor != nil {
			t.Errorf("segment %d carries color %q", i, *s.Style.FontColor)
		}
		pos = s.End
	}
}

func TestMapToTranslation_SingleSegment(t *testing.T) {
	f := &ParagraphFormat{Runs: []docx.Run{run("Hello world", docx.RunProps{Bold: boolp(true), Color: strp("0000FF")})}}
	segs := ExtractSegments("Hello world", f)
	if len(segs) != 1 {
		t.Fatalf("expected one segment, got %d", len(segs))
	}

	got := MapToTranslation(segs, "Hello world", "Привет, мир")
	checkCoverage(t, got, "Привет, мир")
	if len(got) != 1 {
		t.Fatalf("expected one segment, got %+v", got)
	}
	s := got[0]
	if s.Text != "Привет, мир" || s.Start != 0 || s.End != 11 {
		t.Errorf("unexpected segment %+v", s)
	}
	if s.Style.Bold == nil || !*s.Style.Bold {
		t.Error("bold lost")
	}
}

func TestMapToTranslation_NoSegments(t *testing.T) {
	got := MapToTranslation(nil, "abc", "где")
	checkCoverage(t, got, "где")
	if len(got) != 1 || !got[0].Style.IsZero() {
		t.Errorf("expected single unstyled segment, got %+v", got)
	}
}

func TestMapToTranslation_Proportional(t *testing.T) {
	original := "Bold part and plain"
	f := &ParagraphFormat{Runs: []docx.Run{
		run("Bold part", docx.RunProps{Bold: boolp(true)}),
		run(" and plain", docx.RunProps{Italic: boolp(true), Color: strp("FF0000")}),
	}}
	segs := ExtractSegments(original, f)
	if segs[1].Start != 9 || segs[1].End != 19 {
		t.Fatalf("second segment at %d..%d", segs[1].Start, segs[1].End)
	}

	translated := "Жирная часть и обычная"
	got := MapToTranslation(segs, original, translated)
	checkCoverage(t, got, translated)
	// 9/19 and 10/19 of 22 runes, rounding leftover goes to the last style
	if len(got) != 3 {
		t.Fatalf("expected three segments, got %+v", got)
	}
	if got[0].End != 10 || got[0].Style.Bold == nil {
		t.Errorf("first segment %+v", got[0])
	}
	if got[1].End != 21 || got[1].Style.Italic == nil || got[1].Style.Bold != nil {
		t.Errorf("second segment %+v", got[1])
	}
	if got[2].Text != "я" || got[2].Style.Italic == nil {
		t.Errorf("remainder segment %+v", got[2])
	}
}

func TestMapToTranslation_RemainderAndBlankSegments(t *testing.T) {
	original := "aaa bbb"
	segs := []Segment{
		{Text: "aaa", Start: 0, End: 3, Style: Style{Bold: boolp(true)}},
		{Text: " ", Start: 3, End: 4},
		{Text: "bbb", Start: 4, End: 7, Style: Style{Italic: boolp(true)}},
	}
	translated := "xxxxxxxxxx"
	got := MapToTranslation(segs, original, translated)
	checkCoverage(t, got, translated)
	// 3/7*10 = 4 runes each, blank skipped, remainder of 2 goes to last style
	if len(got) != 3 {
		t.Fatalf("expected three segments, got %+v", got)
	}
	if got[0].End != 4 || got[1].End != 8 || got[2].End != 10 {
		t.Errorf("unexpected boundaries %+v", got)
	}
	if got[2].Style.Italic == nil {
		t.Errorf("remainder style %+v", got[2].Style)
	}
}

func TestMapToTranslation_ShortTranslation(t *testing.T) {
	segs := []Segment{
		{Text: "first", Style: Style{Bold: boolp(true)}},
		{Text: "second", Style: Style{Italic: boolp(true)}},
		{Text: "third", Style: Style{Underline: boolp(true)}},
	}
	for _, translated := range []string{"", "  ", "я", "ab"} {
		got := MapToTranslation(segs, "firstsecondthird", translated)
		checkCoverage(t, got, translated)
	}
}

func TestMapToTranslation_Dominant(t *testing.T) {
	bold := Style{Bold: boolp(true), FontName: strp("Arial")}
	italic := Style{Italic: boolp(true)}
	segs := []Segment{
		{Text: "a", Style: italic},
		{Text: "b", Style: bold},
		{Text: "c", Style: Style{Bold: boolp(true), FontName: strp("Arial"), FontColor: strp("00FF00")}},
		{Text: "d", Style: italic},
		{Text: "e", Style: Style{Underline: boolp(true)}},
	}
	got := MapToTranslation(segs, "abcde", "перевод")
	checkCoverage(t, got, "перевод")
	if len(got) != 1 {
		t.Fatalf("expected one segment, got %+v", got)
	}
	// bold+Arial and italic both seen twice, italic was first
	if got[0].Style.Italic == nil || got[0].Style.Bold != nil {
		t.Errorf("dominant style %+v", got[0].Style)
	}
}

func TestMapper_Limit(t *testing.T) {
	segs := []Segment{
		{Text: "aa", Style: Style{Bold: boolp(true)}},
		{Text: "bb", Style: Style{Italic: boolp(true)}},
	}
	got := Mapper{ProportionalLimit: 1}.Map(segs, "aabb", "ccdd")
	checkCoverage(t, got, "ccdd")
	if len(got) != 1 || got[0].Style.Bold == nil {
		t.Errorf("limit 1 should collapse to dominant, got %+v", got)
	}
}

func TestExtractSegments(t *testing.T) {
	t.Run("no runs", func(t *testing.T) {
		segs := ExtractSegments("Текст", nil)
		if len(segs) != 1 || segs[0].End != 5 || !segs[0].Style.IsZero() {
			t.Errorf("got %+v", segs)
		}
	})
	t.Run("empty runs skipped", func(t *testing.T) {
		f := &ParagraphFormat{Runs: []docx.Run{run("", docx.RunProps{}), run("Да", docx.RunProps{}), run("нет", docx.RunProps{})}}
		segs := ExtractSegments("Данет", f)
		if len(segs) != 2 || segs[1].Start != 2 || segs[1].End != 5 {
			t.Errorf("got %+v", segs)
		}
	})
	t.Run("run not found", func(t *testing.T) {
		f := &ParagraphFormat{Runs: []docx.Run{run("ab", docx.RunProps{}), run("zz", docx.RunProps{})}}
		segs := ExtractSegments("abcd", f)
		if segs[1].Start != 2 || segs[1].End != 4 {
			t.Errorf("got %+v", segs)
		}
	})
	t.Run("styles", func(t *testing.T) {
		f := FromParagraph(&docx.Paragraph{Runs: []docx.Run{
			run("x", docx.RunProps{Font: strp("Times"), Size: floatp(12), Underline: boolp(false)}),
		}})
		segs := ExtractSegments("x", f)
		s := segs[0].Style
		if *s.FontName != "Times" || *s.FontSize != 12 || *s.Underline {
			t.Errorf("got %+v", s)
		}
	})
}

func TestApplyStyle(t *testing.T) {
	rpt := issues.New()
	props := ApplyStyle(Style{
		Bold:      boolp(true),
		FontName:  strp("Arial"),
		FontSize:  floatp(math.NaN()),
		FontColor: strp("FF0000"),
	}, "element 3", rpt)

	if props.Bold == nil || !*props.Bold {
		t.Error("bold not applied")
	}
	if props.Font == nil || *props.Font != "Arial" {
		t.Error("font not applied")
	}
	if props.Size != nil {
		t.Error("non finite size applied")
	}
	if props.Color != nil {
		t.Error("color applied")
	}
	if rpt.Count(issues.CategoryStyle) != 1 {
		t.Errorf("expected one style issue, got %v", rpt.All())
	}

	props = ApplyStyle(Style{FontName: strp(" "), FontSize: floatp(5000)}, "element 4", rpt)
	if props.Font != nil || props.Size != nil {
		t.Errorf("invalid attributes applied: %+v", props)
	}
	if rpt.Count(issues.CategoryStyle) != 3 {
		t.Errorf("expected three style issues, got %v", rpt.All())
	}
}

func TestAnalyze(t *testing.T) {
	tests := []struct {
		name string
		f    *ParagraphFormat
		want Complexity
	}{
		{"nil", nil, ComplexitySimple},
		{"one run", &ParagraphFormat{Runs: []docx.Run{run("a", docx.RunProps{Bold: boolp(true)})}}, ComplexitySimple},
		{"two fonts", &ParagraphFormat{Runs: []docx.Run{
			run("a", docx.RunProps{Font: strp("Arial")}),
			run("b", docx.RunProps{Font: strp("Times")}),
		}}, ComplexityMedium},
		{"seven runs", &ParagraphFormat{Runs: []docx.Run{
			run("a", docx.RunProps{}), run("b", docx.RunProps{}), run("c", docx.RunProps{}),
			run("d", docx.RunProps{}), run("e", docx.RunProps{}), run("f", docx.RunProps{}),
			run("g", docx.RunProps{}),
		}}, ComplexityComplex},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Analyze(tt.f).Complexity; got != tt.want {
				t.Errorf("Analyze() = %s, want %s", got, tt.want)
			}
		})
	}

	an := Analyze(&ParagraphFormat{Runs: []docx.Run{
		run("a", docx.RunProps{Bold: boolp(true)}),
		run("b", docx.RunProps{Bold: boolp(false)}),
	}})
	if !an.HasBold || an.BoldPercent != 50 {
		t.Errorf("bold stats %+v", an)
	}
}

func TestSummarize(t *testing.T) {
	if s := Summarize(nil); s.Complexity != ComplexityNone || s.Elements != 0 {
		t.Errorf("empty summary %+v", s)
	}

	simple := &ParagraphFormat{Runs: []docx.Run{run("a", docx.RunProps{Italic: boolp(true), Font: strp("Arial")})}}
	complexF := &ParagraphFormat{Runs: []docx.Run{
		run("a", docx.RunProps{Font: strp("A")}),
		run("b", docx.RunProps{Font: strp("B")}),
		run("c", docx.RunProps{Font: strp("C")}),
	}}
	s := Summarize([]*ParagraphFormat{simple, complexF, simple})
	if s.Complexity != ComplexityComplex {
		t.Errorf("complexity = %s, want complex", s.Complexity)
	}
	if s.Runs != 5 || s.WithItalic != 2 {
		t.Errorf("summary %+v", s)
	}
	if strings.Join(s.Fonts, ",") != "A,Arial,B,C" {
		t.Errorf("fonts %v", s.Fonts)
	}
	if len(s.Fields()) == 0 {
		t.Error("no log fields")
	}
}
