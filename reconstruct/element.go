// Package reconstruct assembles translated document: ordered element list
// with images interleaved at reconciled positions, translated block stream
// and output package writer.
package reconstruct

import (
	"fmt"
	"regexp"
	"strings"

	"dxt/catalog"
	"dxt/docx"
	"dxt/formatting"
	"dxt/introspect"
	"dxt/reconcile"
	"dxt/translate"
)

// Kind of structural element.
// ENUM(paragraph, table, image)
type Kind int

const (
	KindParagraph Kind = iota
	KindTable
	KindImage
)

var kindNames = []string{"paragraph", "table", "image"}

func (k Kind) String() string {
	if k >= KindParagraph && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Element is paragraph, table or image in final document order. Exactly one
// of Paragraph, Table and Image is set according to Kind.
type Element struct {
	Kind Kind
	// Seq is strictly increasing position in element list.
	Seq int
	// Content is paragraph text or serialized table text, empty for images.
	Content string
	// Style is human readable paragraph or table style name.
	Style      string
	Formatting *formatting.ParagraphFormat

	Paragraph *docx.Paragraph
	Table     *docx.Table
	Image     *catalog.ImageRecord
}

// Empty reports whether text element has nothing to translate.
func (e *Element) Empty() bool {
	return e.Kind != KindImage && strings.TrimSpace(e.Content) == ""
}

// BuildElements walks document body in order and interleaves images: images
// placed at k go right before k-th significant paragraph, images placed at
// the end (placement equals significant count) follow the last body item.
// Images sharing position keep catalog order.
func BuildElements(layout *introspect.Layout, res *reconcile.Result) []Element {
	if layout == nil || layout.Body == nil {
		return nil
	}

	count := layout.SignificantCount
	byPlacement := make(map[int][]*catalog.ImageRecord)
	if res != nil {
		for _, img := range res.Images {
			p := res.Placement(img.AssetID)
			if p < 0 || p > count {
				p = count
			}
			byPlacement[p] = append(byPlacement[p], img)
		}
	}

	var elements []Element
	add := func(e Element) {
		e.Seq = len(elements)
		elements = append(elements, e)
	}
	addImages := func(at int) {
		for _, img := range byPlacement[at] {
			add(Element{Kind: KindImage, Image: img})
		}
	}

	significant := layout.Significant()
	for _, it := range layout.Body.Items {
		switch {
		case it.Paragraph != nil:
			if k, ok := significant[it.Paragraph.BodyIndex]; ok {
				addImages(k)
			}
			add(Element{
				Kind:       KindParagraph,
				Content:    it.Paragraph.Text(),
				Style:      it.Paragraph.Style,
				Formatting: formatting.FromParagraph(it.Paragraph),
				Paragraph:  it.Paragraph,
			})
		case it.Table != nil:
			add(Element{
				Kind:    KindTable,
				Content: TableText(it.Table.Rows),
				Style:   it.Table.StyleID,
				Table:   it.Table,
			})
		}
	}
	addImages(count)
	return elements
}

// TableText serializes table: non empty trimmed cells of a row joined with
// " | ", rows without text dropped, rows joined with new line. New lines
// inside cells become spaces so every row stays on its own line.
func TableText(rows [][]string) string {
	var lines []string
	for _, row := range rows {
		var cells []string
		for _, c := range row {
			c = strings.Join(strings.Fields(c), " ")
			if c != "" {
				cells = append(cells, c)
			}
		}
		if len(cells) > 0 {
			lines = append(lines, strings.Join(cells, " | "))
		}
	}
	return strings.Join(lines, "\n")
}

var (
	blockSeparator = regexp.MustCompile(`\n\s*\n`)
	blankLines     = regexp.MustCompile(`\n[ \t\r\f\v]*\n`)
)

// SourceText joins text of non empty paragraphs and tables with blank line,
// one block per element. Blank lines inside element text are collapsed so
// they do not split the block.
func SourceText(elements []Element) string {
	var blocks []string
	for i := range elements {
		e := &elements[i]
		if e.Kind == KindImage || e.Empty() {
			continue
		}
		blocks = append(blocks, collapseBlankLines(strings.TrimSpace(e.Content)))
	}
	return strings.Join(blocks, "\n\n")
}

func collapseBlankLines(s string) string {
	for blankLines.MatchString(s) {
		s = blankLines.ReplaceAllString(s, "\n")
	}
	return s
}

// SplitText splits text into blocks separated by blank lines, empty blocks
// are dropped.
func SplitText(text string) []string {
	var blocks []string
	for _, b := range blockSeparator.Split(text, -1) {
		if strings.TrimSpace(b) != "" {
			blocks = append(blocks, b)
		}
	}
	return blocks
}

// SplitBlocks joins successful translation results with blank line (or
// space for results continuing previous paragraph) and splits them back into
// translated blocks.
func SplitBlocks(results []translate.Result) []string {
	var sb strings.Builder
	for _, r := range results {
		if !r.Success {
			continue
		}
		if sb.Len() > 0 {
			if r.Continued {
				sb.WriteByte(' ')
			} else {
				sb.WriteString("\n\n")
			}
		}
		sb.WriteString(strings.TrimSpace(r.Text))
	}
	return SplitText(sb.String())
}
