// Package docxtest builds small docx packages for tests.
package docxtest

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

const documentOpen = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" ` +
	`xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" ` +
	`xmlns:wp="http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing" ` +
	`xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" ` +
	`xmlns:pic="http://schemas.openxmlformats.org/drawingml/2006/picture" ` +
	`xmlns:v="urn:schemas-microsoft-com:vml" ` +
	`xmlns:o="urn:schemas-microsoft-com:office:office"><w:body>`

const documentClose = `<w:sectPr><w:pgSz w:w="12240" w:h="15840"/></w:sectPr></w:body></w:document>`

const contentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
	`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
	`<Default Extension="xml" ContentType="application/xml"/>` +
	`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
	`<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>` +
	`</Types>`

const packageRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
	`</Relationships>`

const styles = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
	`<w:style w:type="paragraph" w:styleId="Normal"><w:name w:val="Normal"/></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Heading1"><w:name w:val="heading 1"/></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Title"><w:name w:val="Title"/></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Quote"><w:name w:val="Quote"/></w:style>` +
	`</w:styles>`

const (
	relTypeImage     = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"
	relTypeStyles    = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles"
	relTypeHyperlink = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/hyperlink"
)

// Run describes formatted run of a paragraph.
type Run struct {
	Text      string
	Bold      bool
	Italic    bool
	Underline bool
	Font      string
	Size      float64
	Color     string
}

type media struct {
	name string
	data []byte
}

type rel struct {
	id, typ, target, mode string
}

// Doc accumulates body markup, media and relationships of a test package.
type Doc struct {
	body    strings.Builder
	media   []media
	rels    []rel
	nextRel int
	// broken relationship part
	relsData  *string
	documentX *string
	extra     map[string][]byte
}

// New returns empty document builder.
func New() *Doc {
	d := &Doc{nextRel: 1, extra: make(map[string][]byte)}
	d.addRel(relTypeStyles, "styles.xml", "")
	return d
}

func (d *Doc) addRel(typ, target, mode string) string {
	id := "rId" + strconv.Itoa(d.nextRel)
	d.nextRel++
	d.rels = append(d.rels, rel{id: id, typ: typ, target: target, mode: mode})
	return id
}

// Paragraph adds plain paragraph.
func (d *Doc) Paragraph(text string) *Doc {
	return d.Styled("", Run{Text: text})
}

// Empty adds paragraph without text.
func (d *Doc) Empty() *Doc {
	d.body.WriteString(`<w:p/>`)
	return d
}

// Styled adds paragraph with style and formatted runs.
func (d *Doc) Styled(style string, runs ...Run) *Doc {
	d.body.WriteString(`<w:p>`)
	if style != "" {
		fmt.Fprintf(&d.body, `<w:pPr><w:pStyle w:val="%s"/></w:pPr>`, style)
	}
	for _, r := range runs {
		d.body.WriteString(runXML(r))
	}
	d.body.WriteString(`</w:p>`)
	return d
}

func runXML(r Run) string {
	var pr strings.Builder
	if r.Font != "" {
		fmt.Fprintf(&pr, `<w:rFonts w:ascii="%[1]s" w:hAnsi="%[1]s"/>`, r.Font)
	}
	if r.Bold {
		pr.WriteString(`<w:b/>`)
	}
	if r.Italic {
		pr.WriteString(`<w:i/>`)
	}
	if r.Color != "" {
		fmt.Fprintf(&pr, `<w:color w:val="%s"/>`, r.Color)
	}
	if r.Size > 0 {
		fmt.Fprintf(&pr, `<w:sz w:val="%d"/>`, int(r.Size*2))
	}
	if r.Underline {
		pr.WriteString(`<w:u w:val="single"/>`)
	}
	out := `<w:r>`
	if pr.Len() > 0 {
		out += `<w:rPr>` + pr.String() + `</w:rPr>`
	}
	return out + `<w:t xml:space="preserve">` + html.EscapeString(r.Text) + `</w:t></w:r>`
}

// Raw adds body level markup as is.
func (d *Doc) Raw(xml string) *Doc {
	d.body.WriteString(xml)
	return d
}

// Image stores media part under word/media and returns id of relationship
// pointing to it.
func (d *Doc) Image(name string, data []byte) string {
	d.media = append(d.media, media{name: name, data: data})
	return d.addRel(relTypeImage, "media/"+name, "")
}

// Hyperlink adds external relationship and returns its id.
func (d *Doc) Hyperlink(url string) string {
	return d.addRel(relTypeHyperlink, url, "External")
}

// Drawing adds paragraph with modern inline drawing referencing rid followed
// by optional text.
func (d *Doc) Drawing(rid, text string) *Doc {
	d.body.WriteString(`<w:p>` + DrawingRun(rid))
	if text != "" {
		d.body.WriteString(runXML(Run{Text: text}))
	}
	d.body.WriteString(`</w:p>`)
	return d
}

// DrawingRun returns run markup with inline drawing referencing rid.
func DrawingRun(rid string) string {
	return `<w:r><w:drawing><wp:inline><wp:extent cx="914400" cy="914400"/><wp:docPr id="1" name="Picture 1"/>` +
		`<a:graphic><a:graphicData uri="http://schemas.openxmlformats.org/drawingml/2006/picture">` +
		`<pic:pic><pic:blipFill><a:blip r:embed="` + rid + `"/></pic:blipFill></pic:pic>` +
		`</a:graphicData></a:graphic></wp:inline></w:drawing></w:r>`
}

// Pict adds paragraph with legacy VML picture referencing rid.
func (d *Doc) Pict(rid string) *Doc {
	d.body.WriteString(`<w:p><w:r><w:pict><v:shape><v:imagedata r:id="` + rid + `"/></v:shape></w:pict></w:r></w:p>`)
	return d
}

// Table adds table with text cells.
func (d *Doc) Table(rows ...[]string) *Doc {
	d.body.WriteString(TableXML(rows...))
	return d
}

// TableXML returns table markup with text cells.
func TableXML(rows ...[]string) string {
	var sb strings.Builder
	sb.WriteString(`<w:tbl><w:tblPr><w:tblStyle w:val="TableGrid"/></w:tblPr>`)
	for _, row := range rows {
		sb.WriteString(`<w:tr>`)
		for _, cell := range row {
			sb.WriteString(`<w:tc>`)
			for _, line := range strings.Split(cell, "\n") {
				if line == "" {
					sb.WriteString(`<w:p/>`)
					continue
				}
				sb.WriteString(`<w:p>` + runXML(Run{Text: line}) + `</w:p>`)
			}
			sb.WriteString(`</w:tc>`)
		}
		sb.WriteString(`</w:tr>`)
	}
	sb.WriteString(`</w:tbl>`)
	return sb.String()
}

// BrokenRelationships replaces relationship part with unparseable data.
func (d *Doc) BrokenRelationships() *Doc {
	s := "<Relationships><broken"
	d.relsData = &s
	return d
}

// NoRelationships removes relationship part from the package.
func (d *Doc) NoRelationships() *Doc {
	s := ""
	d.relsData = &s
	return d
}

// BrokenDocument replaces main document part with unparseable data.
func (d *Doc) BrokenDocument() *Doc {
	s := "<w:document><w:body><w:p>"
	d.documentX = &s
	return d
}

// Part adds arbitrary part to the package.
func (d *Doc) Part(name string, data []byte) *Doc {
	d.extra[name] = data
	return d
}

// Bytes builds docx package.
func (d *Doc) Bytes(t testing.TB) []byte {
	t.Helper()

	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)
	put := func(name string, data []byte) {
		f, err := w.Create(name)
		if err != nil {
			t.Fatalf("unable to create %s: %v", name, err)
		}
		if _, err := f.Write(data); err != nil {
			t.Fatalf("unable to write %s: %v", name, err)
		}
	}

	put("[Content_Types].xml", []byte(contentTypes))
	put("_rels/.rels", []byte(packageRels))
	if d.documentX != nil {
		put("word/document.xml", []byte(*d.documentX))
	} else {
		put("word/document.xml", []byte(documentOpen+d.body.String()+documentClose))
	}
	switch {
	case d.relsData == nil:
		put("word/_rels/document.xml.rels", []byte(d.relsXML()))
	case *d.relsData != "":
		put("word/_rels/document.xml.rels", []byte(*d.relsData))
	}
	put("word/styles.xml", []byte(styles))
	for _, m := range d.media {
		put("word/media/"+m.name, m.data)
	}
	for name, data := range d.extra {
		put(name, data)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("unable to finish package: %v", err)
	}
	return buf.Bytes()
}

func (d *Doc) relsXML() string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n")
	sb.WriteString(`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`)
	for _, r := range d.rels {
		fmt.Fprintf(&sb, `<Relationship Id="%s" Type="%s" Target="%s"`, r.id, r.typ, html.EscapeString(r.target))
		if r.mode != "" {
			fmt.Fprintf(&sb, ` TargetMode="%s"`, r.mode)
		}
		sb.WriteString(`/>`)
	}
	sb.WriteString(`</Relationships>`)
	return sb.String()
}

// Write saves package into directory and returns its path.
func (d *Doc) Write(t testing.TB, dir string) string {
	t.Helper()
	name := filepath.Join(dir, "source.docx")
	if err := os.WriteFile(name, d.Bytes(t), 0644); err != nil {
		t.Fatalf("unable to write package: %v", err)
	}
	return name
}

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	return img
}

// PNG returns encoded w x h PNG image.
func PNG(t testing.TB, w, h int) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	if err := png.Encode(buf, testImage(w, h)); err != nil {
		t.Fatalf("unable to encode png: %v", err)
	}
	return buf.Bytes()
}

// JPEG returns encoded w x h JPEG image.
func JPEG(t testing.TB, w, h int) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, testImage(w, h), nil); err != nil {
		t.Fatalf("unable to encode jpeg: %v", err)
	}
	return buf.Bytes()
}

// GIF returns encoded w x h GIF image.
func GIF(t testing.TB, w, h int) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	if err := gif.Encode(buf, testImage(w, h), nil); err != nil {
		t.Fatalf("unable to encode gif: %v", err)
	}
	return buf.Bytes()
}

// SVG returns simple SVG image with given viewBox size.
func SVG(w, h int) []byte {
	return []byte(fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d"><rect width="%d" height="%d" fill="red"/></svg>`, w, h, w, h))
}
