package docx

import (
	"math"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// EMUPerInch is number of English Metric Units in one inch.
const EMUPerInch = 914400

// TwipsPerInch is number of twentieths of a point in one inch.
const TwipsPerInch = 1440

// textWidthTwips is used for table grid when section properties are unknown.
const textWidthTwips = 9360

// ParagraphProps describes paragraph level properties emitted by builders.
type ParagraphProps struct {
	StyleID   string
	Alignment string
	// Indents in twips.
	IndentLeft  int
	IndentRight int
}

// NewParagraph creates empty w:p with requested properties.
func NewParagraph(props ParagraphProps) *etree.Element {
	p := etree.NewElement("w:p")
	if pPr := buildParagraphProps(props); pPr != nil {
		p.AddChild(pPr)
	}
	return p
}

// buildParagraphProps emits children in schema order: pStyle, ind, jc.
func buildParagraphProps(props ParagraphProps) *etree.Element {
	if props == (ParagraphProps{}) {
		return nil
	}
	pPr := etree.NewElement("w:pPr")
	if props.StyleID != "" {
		pPr.CreateElement("w:pStyle").CreateAttr("w:val", props.StyleID)
	}
	if props.IndentLeft != 0 || props.IndentRight != 0 {
		ind := pPr.CreateElement("w:ind")
		ind.CreateAttr("w:left", strconv.Itoa(props.IndentLeft))
		ind.CreateAttr("w:right", strconv.Itoa(props.IndentRight))
	}
	if props.Alignment != "" {
		pPr.CreateElement("w:jc").CreateAttr("w:val", props.Alignment)
	}
	return pPr
}

// AddRun appends run with text to paragraph. Line breaks and tabs in text
// become w:br and w:tab.
func AddRun(p *etree.Element, text string, props RunProps) *etree.Element {
	r := p.CreateElement("w:r")
	if rPr := buildRunProps(props); rPr != nil {
		r.AddChild(rPr)
	}
	var sb strings.Builder
	flush := func() {
		if sb.Len() == 0 {
			return
		}
		t := r.CreateElement("w:t")
		t.CreateAttr("xml:space", "preserve")
		t.SetText(sb.String())
		sb.Reset()
	}
	for _, c := range text {
		switch c {
		case '\n':
			flush()
			r.CreateElement("w:br")
		case '\t':
			flush()
			r.CreateElement("w:tab")
		case '\r':
		default:
			sb.WriteRune(c)
		}
	}
	flush()
	return r
}

// buildRunProps emits children in schema order: rFonts, b, i, color, sz, szCs, u.
func buildRunProps(props RunProps) *etree.Element {
	if props == (RunProps{}) {
		return nil
	}
	rPr := etree.NewElement("w:rPr")
	if props.Font != nil {
		f := rPr.CreateElement("w:rFonts")
		f.CreateAttr("w:ascii", *props.Font)
		f.CreateAttr("w:hAnsi", *props.Font)
		f.CreateAttr("w:cs", *props.Font)
	}
	if props.Bold != nil {
		toggle(rPr, "w:b", *props.Bold)
	}
	if props.Italic != nil {
		toggle(rPr, "w:i", *props.Italic)
	}
	if props.Color != nil {
		rPr.CreateElement("w:color").CreateAttr("w:val", *props.Color)
	}
	if props.Size != nil {
		half := strconv.Itoa(int(math.Round(*props.Size * 2)))
		rPr.CreateElement("w:sz").CreateAttr("w:val", half)
		rPr.CreateElement("w:szCs").CreateAttr("w:val", half)
	}
	if props.Underline != nil {
		val := "none"
		if *props.Underline {
			val = "single"
		}
		rPr.CreateElement("w:u").CreateAttr("w:val", val)
	}
	return rPr
}

func toggle(parent *etree.Element, tag string, on bool) {
	el := parent.CreateElement(tag)
	if !on {
		el.CreateAttr("w:val", "0")
	}
}

// NewTable creates table with text cells. When props (w:tblPr of the source
// table) is nil simple grid borders are used.
func NewTable(rows [][]string, props *etree.Element) *etree.Element {
	cols := 0
	for _, row := range rows {
		cols = max(cols, len(row))
	}
	cols = max(cols, 1)
	width := textWidthTwips / cols

	tbl := etree.NewElement("w:tbl")
	if props != nil {
		tbl.AddChild(props)
	} else {
		tbl.AddChild(defaultTableProps())
	}
	grid := tbl.CreateElement("w:tblGrid")
	for range cols {
		grid.CreateElement("w:gridCol").CreateAttr("w:w", strconv.Itoa(width))
	}
	for _, row := range rows {
		tr := tbl.CreateElement("w:tr")
		for i := range cols {
			tc := tr.CreateElement("w:tc")
			tcW := tc.CreateElement("w:tcPr").CreateElement("w:tcW")
			tcW.CreateAttr("w:w", strconv.Itoa(width))
			tcW.CreateAttr("w:type", "dxa")
			// every cell must have a paragraph
			p := tc.CreateElement("w:p")
			if i < len(row) && row[i] != "" {
				AddRun(p, row[i], RunProps{})
			}
		}
	}
	return tbl
}

func defaultTableProps() *etree.Element {
	pr := etree.NewElement("w:tblPr")
	w := pr.CreateElement("w:tblW")
	w.CreateAttr("w:w", "0")
	w.CreateAttr("w:type", "auto")
	borders := pr.CreateElement("w:tblBorders")
	for _, side := range []string{"top", "left", "bottom", "right", "insideH", "insideV"} {
		b := borders.CreateElement("w:" + side)
		b.CreateAttr("w:val", "single")
		b.CreateAttr("w:sz", "4")
		b.CreateAttr("w:space", "0")
		b.CreateAttr("w:color", "auto")
	}
	return pr
}

// Picture describes inline picture placement.
type Picture struct {
	RelID string
	// ID is unique drawing object id within document.
	ID   int
	Name string
	// Extent in EMU.
	CX int64
	CY int64
}

// NewPictureParagraph creates paragraph holding single inline picture.
func NewPictureParagraph(pic Picture, props ParagraphProps) *etree.Element {
	p := NewParagraph(props)
	drawing := p.CreateElement("w:r").CreateElement("w:drawing")

	inline := drawing.CreateElement("wp:inline")
	for _, d := range []string{"distT", "distB", "distL", "distR"} {
		inline.CreateAttr(d, "0")
	}
	extent := inline.CreateElement("wp:extent")
	extent.CreateAttr("cx", itoa(pic.CX))
	extent.CreateAttr("cy", itoa(pic.CY))
	docPr := inline.CreateElement("wp:docPr")
	docPr.CreateAttr("id", strconv.Itoa(pic.ID))
	docPr.CreateAttr("name", "Picture "+strconv.Itoa(pic.ID))
	inline.CreateElement("wp:cNvGraphicFramePr").CreateElement("a:graphicFrameLocks").CreateAttr("noChangeAspect", "1")

	data := inline.CreateElement("a:graphic").CreateElement("a:graphicData")
	data.CreateAttr("uri", NSPicture)
	pp := data.CreateElement("pic:pic")

	nv := pp.CreateElement("pic:nvPicPr")
	cNvPr := nv.CreateElement("pic:cNvPr")
	cNvPr.CreateAttr("id", "0")
	cNvPr.CreateAttr("name", pic.Name)
	nv.CreateElement("pic:cNvPicPr")

	fill := pp.CreateElement("pic:blipFill")
	fill.CreateElement("a:blip").CreateAttr("r:embed", pic.RelID)
	fill.CreateElement("a:stretch").CreateElement("a:fillRect")

	spPr := pp.CreateElement("pic:spPr")
	xfrm := spPr.CreateElement("a:xfrm")
	off := xfrm.CreateElement("a:off")
	off.CreateAttr("x", "0")
	off.CreateAttr("y", "0")
	ext := xfrm.CreateElement("a:ext")
	ext.CreateAttr("cx", itoa(pic.CX))
	ext.CreateAttr("cy", itoa(pic.CY))
	geom := spPr.CreateElement("a:prstGeom")
	geom.CreateAttr("prst", "rect")
	geom.CreateElement("a:avLst")
	return p
}
