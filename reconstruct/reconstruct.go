package reconstruct

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"dxt/config"
	"dxt/docx"
	"dxt/formatting"
	"dxt/issues"
)

// quoteIndent is left and right indent of quote paragraphs, in twips.
const quoteIndent = docx.TwipsPerInch / 2

// Outcome summarizes reconstruction. Consumed plus Overflow always equals
// number of translated blocks.
type Outcome struct {
	Consumed   int `json:"consumed"`
	Shortfalls int `json:"shortfalls"`
	Overflow   int `json:"overflow"`
	Images     int `json:"images"`
	Paragraphs int `json:"paragraphs"`
	Tables     int `json:"tables"`
}

// Fields returns outcome as log fields.
func (o *Outcome) Fields() []zap.Field {
	return []zap.Field{
		zap.Int("consumed", o.Consumed),
		zap.Int("shortfalls", o.Shortfalls),
		zap.Int("overflow", o.Overflow),
		zap.Int("paragraphs", o.Paragraphs),
		zap.Int("tables", o.Tables),
		zap.Int("images", o.Images),
	}
}

type builder struct {
	w      *Writer
	cfg    *config.DocumentConfig
	mapper formatting.Mapper
	blocks []string
	next   int
	out    Outcome
	rpt    *issues.Report
	log    *zap.Logger
}

// Reconstruct emits elements in order consuming translated blocks: every non
// empty paragraph and table takes exactly one block, images and empty
// paragraphs take none. Missing blocks leave empty paragraphs behind, blocks
// left at the end become trailing paragraphs. Both are reported.
func Reconstruct(ctx context.Context, elements []Element, blocks []string, w *Writer, cfg *config.DocumentConfig, rpt *issues.Report, log *zap.Logger) (*Outcome, error) {
	b := &builder{
		w:      w,
		cfg:    cfg,
		mapper: formatting.Mapper{ProportionalLimit: cfg.Formatting.ProportionalLimit},
		blocks: blocks,
		rpt:    rpt,
		log:    log.Named("reconstruct"),
	}

	for i := range elements {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e := &elements[i]
		switch e.Kind {
		case KindImage:
			b.w.AddImage(e.Image)
			b.out.Images++
		case KindTable:
			b.table(e)
		default:
			b.paragraph(e)
		}
	}
	b.overflow()

	b.log.Debug("Reconstruction complete", b.out.Fields()...)
	return &b.out, nil
}

func (b *builder) take() (string, bool) {
	if b.next >= len(b.blocks) {
		return "", false
	}
	block := b.blocks[b.next]
	b.next++
	b.out.Consumed++
	return block, true
}

func (b *builder) paragraph(e *Element) {
	b.out.Paragraphs++
	p := docx.NewParagraph(b.paragraphProps(e))
	defer b.w.Append(p)

	if e.Empty() {
		return
	}
	block, ok := b.take()
	if !ok {
		b.out.Shortfalls++
		b.rpt.Addf(issues.CategoryShortfall, subject(e), "no translated block left for paragraph %q", preview(e.Content))
		return
	}

	block = strings.TrimSpace(block)
	segs := b.mapper.Map(formatting.ExtractSegments(e.Content, e.Formatting), e.Content, block)
	for _, s := range segs {
		if s.Text == "" {
			continue
		}
		docx.AddRun(p, s.Text, formatting.ApplyStyle(s.Style, subject(e), b.rpt))
	}
}

// paragraphProps carries source style over and, when paragraph context is
// enabled, centers headings and titles and indents quotes.
func (b *builder) paragraphProps(e *Element) docx.ParagraphProps {
	var props docx.ParagraphProps
	if e.Paragraph != nil {
		props.StyleID = e.Paragraph.StyleID
		props.Alignment = e.Paragraph.Alignment
	}
	if !b.cfg.Formatting.ParagraphContext {
		return props
	}

	name := strings.ToLower(e.Style)
	if name == "" {
		name = strings.ToLower(props.StyleID)
	}
	switch {
	case strings.Contains(name, "heading") || strings.Contains(name, "title"):
		props.Alignment = "center"
	case strings.Contains(name, "quote"):
		props.IndentLeft, props.IndentRight = quoteIndent, quoteIndent
	}
	return props
}

func (b *builder) table(e *Element) {
	if e.Empty() {
		// nothing was sent for translation
		if e.Table != nil && e.Table.Element() != nil {
			b.w.Append(e.Table.Element().Copy())
			b.out.Tables++
		}
		return
	}
	block, ok := b.take()
	if !ok {
		b.out.Shortfalls++
		b.rpt.Addf(issues.CategoryShortfall, subject(e), "no translated block left for table %q", preview(e.Content))
		return
	}

	rows, cropped := ParseTable(block)
	if cropped > 0 {
		b.rpt.Addf(issues.CategoryTable, subject(e), "%d cell(s) beyond first row column count dropped", cropped)
	}
	if len(rows) == 0 {
		b.rpt.Add(issues.CategoryTable, subject(e), "translated table has no rows")
		return
	}
	b.w.Append(docx.NewTable(rows, tableProperties(e)))
	b.out.Tables++
}

func tableProperties(e *Element) *etree.Element {
	if e.Table == nil || e.Table.Element() == nil {
		return nil
	}
	return e.Table.Properties()
}

// ParseTable splits translated table block into rows by new line and cells
// by "|". Blank rows are skipped, rows are cropped to column count of the
// first row. Returns number of dropped cells.
func ParseTable(block string) (rows [][]string, cropped int) {
	cols := 0
	for _, line := range strings.Split(block, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		cells := strings.Split(line, "|")
		for i := range cells {
			cells[i] = strings.TrimSpace(cells[i])
		}
		if len(rows) == 0 {
			cols = len(cells)
		} else if len(cells) > cols {
			cropped += len(cells) - cols
			cells = cells[:cols]
		}
		rows = append(rows, cells)
	}
	return rows, cropped
}

func (b *builder) overflow() {
	for b.next < len(b.blocks) {
		block := b.blocks[b.next]
		b.next++
		b.out.Overflow++

		p := docx.NewParagraph(docx.ParagraphProps{})
		docx.AddRun(p, strings.TrimSpace(block), docx.RunProps{})
		b.w.Append(p)
		b.rpt.Addf(issues.CategoryOverflow, "block "+strconv.Itoa(b.next), "unconsumed translated block appended: %q", preview(block))
	}
}

func subject(e *Element) string {
	return fmt.Sprintf("%s %d", e.Kind, e.Seq)
}

// preview shortens text for issue details.
func preview(s string) string {
	const limit = 40
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + "..."
}
