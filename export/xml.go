// Package export writes diagnostic XML view of extracted document structure.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/beevik/etree"

	"dxt/docx"
	"dxt/formatting"
	"dxt/reconstruct"
)

// Build returns XML document with one child per element in document order:
// element kind, sequence index, style and text, paragraph formatting and
// image description.
func Build(elements []reconstruct.Element) *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	doc.WriteSettings = etree.WriteSettings{
		CanonicalText:    true,
		CanonicalAttrVal: true,
	}

	root := doc.CreateElement("document")
	root.CreateAttr("elements", strconv.Itoa(len(elements)))
	for i := range elements {
		e := &elements[i]
		el := root.CreateElement(e.Kind.String())
		el.CreateAttr("index", strconv.Itoa(e.Seq))
		if e.Style != "" {
			el.CreateAttr("style", e.Style)
		}

		switch e.Kind {
		case reconstruct.KindImage:
			image(el, e)
		case reconstruct.KindParagraph:
			if e.Content != "" {
				el.CreateElement("text").SetText(e.Content)
			}
			paragraphFormat(el, e.Formatting)
		default:
			if e.Content != "" {
				el.CreateElement("text").SetText(e.Content)
			}
		}
	}
	doc.Indent(2)
	return doc
}

func image(el *etree.Element, e *reconstruct.Element) {
	img := e.Image
	if img == nil {
		return
	}
	el.CreateAttr("id", img.AssetID)
	el.CreateAttr("format", img.Format.String())
	if img.RelationshipID != "" {
		el.CreateAttr("relationship", img.RelationshipID)
	}
	if img.Width != nil && img.Height != nil {
		el.CreateAttr("width", strconv.FormatFloat(*img.Width, 'f', 2, 64))
		el.CreateAttr("height", strconv.FormatFloat(*img.Height, 'f', 2, 64))
	}
	if img.Anchor != nil {
		el.CreateAttr("anchor", strconv.Itoa(*img.Anchor))
	}
}

func paragraphFormat(el *etree.Element, f *formatting.ParagraphFormat) {
	if f == nil {
		return
	}
	an := formatting.Analyze(f)
	fe := el.CreateElement("formatting")
	if f.StyleID != "" {
		fe.CreateAttr("style_id", f.StyleID)
	}
	if f.Alignment != "" {
		fe.CreateAttr("alignment", f.Alignment)
	}
	fe.CreateAttr("complexity", an.Complexity.String())
	fe.CreateAttr("runs", strconv.Itoa(an.Runs))

	for _, r := range f.Runs {
		re := fe.CreateElement("run")
		runProps(re, r.Props)
		re.SetText(r.Text)
	}
}

func runProps(el *etree.Element, p docx.RunProps) {
	flag := func(name string, v *bool) {
		if v != nil {
			el.CreateAttr(name, strconv.FormatBool(*v))
		}
	}
	flag("bold", p.Bold)
	flag("italic", p.Italic)
	flag("underline", p.Underline)
	if p.Font != nil {
		el.CreateAttr("font_name", *p.Font)
	}
	if p.Size != nil {
		el.CreateAttr("font_size", strconv.FormatFloat(*p.Size, 'g', -1, 64))
	}
	if p.Color != nil {
		el.CreateAttr("font_color", *p.Color)
	}
}

// WriteFile saves XML view of elements to path creating directories as
// needed.
func WriteFile(elements []reconstruct.Element, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("unable to create directory for %s: %w", path, err)
	}
	if err := Build(elements).WriteToFile(path); err != nil {
		return fmt.Errorf("unable to write xml to %s: %w", path, err)
	}
	return nil
}
