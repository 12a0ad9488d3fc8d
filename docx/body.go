package docx

import (
	"errors"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// RunProps are character properties of a run. Nil means property is not set
// on the run (inherited).
type RunProps struct {
	Bold      *bool
	Italic    *bool
	Underline *bool
	Font      *string
	// Size in points.
	Size  *float64
	Color *string
}

// Run is a piece of paragraph text sharing the same properties.
type Run struct {
	Text  string
	Props RunProps
}

// Paragraph is a top level body paragraph.
type Paragraph struct {
	// BodyIndex is position among top level body items.
	BodyIndex int
	StyleID   string
	// Style is human readable style name when styles part defines one.
	Style     string
	Alignment string
	Runs      []Run

	el *etree.Element
}

// Text returns paragraph plain text, concatenation of run texts.
func (p *Paragraph) Text() string {
	var sb strings.Builder
	for _, r := range p.Runs {
		sb.WriteString(r.Text)
	}
	return sb.String()
}

// Element returns source markup of the paragraph.
func (p *Paragraph) Element() *etree.Element {
	return p.el
}

// Table is a top level body table, cell text is paragraph texts joined by
// new lines.
type Table struct {
	BodyIndex int
	StyleID   string
	Rows      [][]string

	el *etree.Element
}

// Element returns source markup of the table.
func (t *Table) Element() *etree.Element {
	return t.el
}

// Properties returns copy of table properties (w:tblPr) or nil.
func (t *Table) Properties() *etree.Element {
	if pr := ChildW(t.el, "tblPr"); pr != nil {
		return pr.Copy()
	}
	return nil
}

// Item is single body item, exactly one field is set.
type Item struct {
	Paragraph *Paragraph
	Table     *Table
}

// Body is ordered view of top level document content.
type Body struct {
	Items []Item
	// SectPr is final section properties, kept for output.
	SectPr *etree.Element
}

// Paragraphs returns number of paragraphs in body.
func (b *Body) Paragraphs() int {
	n := 0
	for _, it := range b.Items {
		if it.Paragraph != nil {
			n++
		}
	}
	return n
}

// Tables returns number of tables in body.
func (b *Body) Tables() int {
	return len(b.Items) - b.Paragraphs()
}

// BodyElement returns w:body of parsed main document part.
func BodyElement(doc *etree.Document) (*etree.Element, error) {
	root := doc.Root()
	if !IsW(root, "document") {
		return nil, errors.New("main part is not a wordprocessing document")
	}
	body := ChildW(root, "body")
	if body == nil {
		return nil, errors.New("document has no body")
	}
	return body, nil
}

// ParseBody builds body view of main document part. Content controls on body
// level are flattened, style names are resolved with styles map (may be nil).
func ParseBody(doc *etree.Document, styles map[string]string) (*Body, error) {
	bodyEl, err := BodyElement(doc)
	if err != nil {
		return nil, err
	}
	b := &Body{}
	b.collect(bodyEl, styles)
	return b, nil
}

func (b *Body) collect(container *etree.Element, styles map[string]string) {
	for _, el := range container.ChildElements() {
		switch {
		case IsW(el, "p"):
			p := parseParagraph(el)
			p.BodyIndex = len(b.Items)
			p.Style = styleName(styles, p.StyleID)
			b.Items = append(b.Items, Item{Paragraph: p})
		case IsW(el, "tbl"):
			t := parseTable(el)
			t.BodyIndex = len(b.Items)
			b.Items = append(b.Items, Item{Table: t})
		case IsW(el, "sdt"):
			if content := ChildW(el, "sdtContent"); content != nil {
				b.collect(content, styles)
			}
		case IsW(el, "customXml"):
			b.collect(el, styles)
		case IsW(el, "sectPr"):
			b.SectPr = el
		}
	}
}

func styleName(styles map[string]string, id string) string {
	if name, ok := styles[id]; ok {
		return name
	}
	return id
}

func parseParagraph(el *etree.Element) *Paragraph {
	p := &Paragraph{el: el}
	if pPr := ChildW(el, "pPr"); pPr != nil {
		if st := ChildW(pPr, "pStyle"); st != nil {
			p.StyleID, _ = WVal(st)
		}
		if jc := ChildW(pPr, "jc"); jc != nil {
			p.Alignment, _ = WVal(jc)
		}
	}
	collectRuns(el, &p.Runs)
	return p
}

// runContainers may hold runs inside a paragraph.
var runContainers = map[string]bool{
	"hyperlink":  true,
	"ins":        true,
	"moveTo":     true,
	"smartTag":   true,
	"sdt":        true,
	"sdtContent": true,
	"fldSimple":  true,
	"customXml":  true,
	"dir":        true,
	"bdo":        true,
}

func collectRuns(el *etree.Element, runs *[]Run) {
	for _, ch := range el.ChildElements() {
		if ch.NamespaceURI() != NSWordML {
			continue
		}
		switch {
		case ch.Tag == "r":
			*runs = append(*runs, parseRun(ch))
		case runContainers[ch.Tag]:
			collectRuns(ch, runs)
		}
	}
}

func parseRun(el *etree.Element) Run {
	var (
		r  Run
		sb strings.Builder
	)
	for _, ch := range el.ChildElements() {
		if ch.NamespaceURI() != NSWordML {
			continue
		}
		switch ch.Tag {
		case "rPr":
			r.Props = parseRunProps(ch)
		case "t":
			sb.WriteString(ch.Text())
		case "tab", "ptab":
			sb.WriteByte('\t')
		case "br", "cr":
			sb.WriteByte('\n')
		case "noBreakHyphen":
			sb.WriteByte('-')
		}
	}
	r.Text = sb.String()
	return r
}

func parseRunProps(rPr *etree.Element) RunProps {
	var props RunProps
	for _, ch := range rPr.ChildElements() {
		if ch.NamespaceURI() != NSWordML {
			continue
		}
		switch ch.Tag {
		case "b":
			v := onOff(ch)
			props.Bold = &v
		case "i":
			v := onOff(ch)
			props.Italic = &v
		case "u":
			val, _ := WVal(ch)
			v := val != "none"
			props.Underline = &v
		case "rFonts":
			for _, key := range []string{"ascii", "hAnsi", "cs", "eastAsia"} {
				if name, ok := Attr(ch, NSWordML, key); ok && name != "" {
					props.Font = &name
					break
				}
			}
		case "sz":
			if val, ok := WVal(ch); ok {
				if half, err := strconv.ParseFloat(val, 64); err == nil {
					size := half / 2
					props.Size = &size
				}
			}
		case "color":
			if val, ok := WVal(ch); ok && val != "auto" {
				props.Color = &val
			}
		}
	}
	return props
}

func parseTable(el *etree.Element) *Table {
	t := &Table{el: el}
	if pr := ChildW(el, "tblPr"); pr != nil {
		if st := ChildW(pr, "tblStyle"); st != nil {
			t.StyleID, _ = WVal(st)
		}
	}
	for _, tr := range el.ChildElements() {
		if !IsW(tr, "tr") {
			continue
		}
		var row []string
		for _, tc := range tr.ChildElements() {
			if !IsW(tc, "tc") {
				continue
			}
			row = append(row, cellText(tc))
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func cellText(tc *etree.Element) string {
	var lines []string
	for _, ch := range tc.ChildElements() {
		if IsW(ch, "p") {
			lines = append(lines, parseParagraph(ch).Text())
		}
	}
	return strings.Join(lines, "\n")
}
