// Package docx provides low level primitives to read and write WordprocessingML
// packages: part access, relationship and content type tables, body walk and
// element builders.
package docx

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"golang.org/x/net/html/charset"
)

// Namespaces used by package parts.
const (
	NSWordML        = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	NSDrawingML     = "http://schemas.openxmlformats.org/drawingml/2006/main"
	NSPicture       = "http://schemas.openxmlformats.org/drawingml/2006/picture"
	NSWordDrawing   = "http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing"
	NSRelationships = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	NSPackageRels   = "http://schemas.openxmlformats.org/package/2006/relationships"
	NSContentTypes  = "http://schemas.openxmlformats.org/package/2006/content-types"
	NSVML           = "urn:schemas-microsoft-com:vml"
	NSMarkupCompat  = "http://schemas.openxmlformats.org/markup-compatibility/2006"
	NSXML           = "http://www.w3.org/XML/1998/namespace"
)

// Relationship types.
const (
	RelTypeOfficeDocument = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument"
	RelTypeImage          = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"
	RelTypeStyles         = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles"
)

// Well known part names.
const (
	PartContentTypes = "[Content_Types].xml"
	PartPackageRels  = "_rels/.rels"
	PartDocument     = "word/document.xml"
	PartStyles       = "word/styles.xml"
	MediaDir         = "word/media/"
)

// prefixes used by builders, declared on document root by EnsureNamespaces
var builderNamespaces = []struct{ prefix, uri string }{
	{"w", NSWordML},
	{"r", NSRelationships},
	{"wp", NSWordDrawing},
	{"a", NSDrawingML},
	{"pic", NSPicture},
}

// ParseXML reads XML data into etree document, non UTF-8 encodings declared
// in prolog are converted.
func ParseXML(data []byte) (*etree.Document, error) {
	doc := etree.NewDocument()
	doc.ReadSettings = etree.ReadSettings{
		CharsetReader: charset.NewReaderLabel,
	}
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, err
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("no root element")
	}
	return doc, nil
}

// Is reports whether element has requested namespace and local name.
func Is(el *etree.Element, ns, local string) bool {
	return el != nil && el.Tag == local && el.NamespaceURI() == ns
}

// IsW is shortcut for WordprocessingML elements.
func IsW(el *etree.Element, local string) bool {
	return Is(el, NSWordML, local)
}

// Attr returns value of namespaced attribute.
func Attr(el *etree.Element, ns, local string) (string, bool) {
	for i := range el.Attr {
		a := &el.Attr[i]
		if a.Key == local && a.NamespaceURI() == ns {
			return a.Value, true
		}
	}
	return "", false
}

// WVal returns w:val attribute of element.
func WVal(el *etree.Element) (string, bool) {
	return Attr(el, NSWordML, "val")
}

// ChildW returns first WordprocessingML child with local name.
func ChildW(el *etree.Element, local string) *etree.Element {
	if el == nil {
		return nil
	}
	for _, ch := range el.ChildElements() {
		if IsW(ch, local) {
			return ch
		}
	}
	return nil
}

// Walk visits element subtree depth first in document order. Returning false
// from visit skips children of the visited element.
func Walk(el *etree.Element, visit func(*etree.Element) bool) {
	if !visit(el) {
		return
	}
	for _, ch := range el.ChildElements() {
		Walk(ch, visit)
	}
}

// EnsureNamespaces declares prefixes used by builders on the root element
// when document does not declare them already.
func EnsureNamespaces(root *etree.Element) {
	for _, ns := range builderNamespaces {
		if root.SelectAttr("xmlns:"+ns.prefix) == nil {
			root.CreateAttr("xmlns:"+ns.prefix, ns.uri)
		}
	}
}

// onOff interprets ST_OnOff attribute value, absent value means on.
func onOff(el *etree.Element) bool {
	v, ok := WVal(el)
	if !ok {
		return true
	}
	switch strings.ToLower(v) {
	case "0", "false", "off", "none":
		return false
	}
	return true
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
