package docx

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// ContentTypes is package content type table.
type ContentTypes struct {
	doc *etree.Document
}

// ParseContentTypes parses [Content_Types].xml.
func ParseContentTypes(data []byte) (*ContentTypes, error) {
	doc, err := ParseXML(data)
	if err != nil {
		return nil, err
	}
	if !Is(doc.Root(), NSContentTypes, "Types") {
		return nil, fmt.Errorf("unexpected root element %q", doc.Root().FullTag())
	}
	return &ContentTypes{doc: doc}, nil
}

// Default returns content type registered for extension.
func (c *ContentTypes) Default(ext string) (string, bool) {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	for _, el := range c.doc.Root().ChildElements() {
		if Is(el, NSContentTypes, "Default") && strings.EqualFold(el.SelectAttrValue("Extension", ""), ext) {
			return el.SelectAttrValue("ContentType", ""), true
		}
	}
	return "", false
}

// EnsureDefault registers content type for extension if it is not there yet.
// Returns true when table was changed.
func (c *ContentTypes) EnsureDefault(ext, contentType string) bool {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if _, ok := c.Default(ext); ok {
		return false
	}
	el := etree.NewElement("Default")
	el.CreateAttr("Extension", ext)
	el.CreateAttr("ContentType", contentType)

	// defaults go before overrides
	root := c.doc.Root()
	for _, ch := range root.ChildElements() {
		if Is(ch, NSContentTypes, "Override") {
			root.InsertChildAt(ch.Index(), el)
			return true
		}
	}
	root.AddChild(el)
	return true
}

// Bytes serializes content type table.
func (c *ContentTypes) Bytes() ([]byte, error) {
	return c.doc.WriteToBytes()
}
