package docx

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// Relationship is single entry of relationship part.
type Relationship struct {
	ID         string
	Type       string
	Target     string
	TargetMode string
}

// External reports whether relationship points outside of the package.
func (r Relationship) External() bool {
	return strings.EqualFold(r.TargetMode, "External")
}

// IsImage reports whether relationship references image part.
func (r Relationship) IsImage() bool {
	return r.Type == RelTypeImage || strings.HasSuffix(r.Type, "/image")
}

// Relationships is relationship table of a single part. Original document
// is kept so unknown attributes survive rewrite.
type Relationships struct {
	doc   *etree.Document
	items []Relationship
	index map[string]int
}

// ParseRelationships parses relationship part.
func ParseRelationships(data []byte) (*Relationships, error) {
	doc, err := ParseXML(data)
	if err != nil {
		return nil, err
	}
	root := doc.Root()
	if !Is(root, NSPackageRels, "Relationships") {
		return nil, fmt.Errorf("unexpected root element %q", root.FullTag())
	}
	rels := &Relationships{doc: doc, index: make(map[string]int)}
	for _, el := range root.ChildElements() {
		if !Is(el, NSPackageRels, "Relationship") {
			continue
		}
		r := Relationship{
			ID:         el.SelectAttrValue("Id", ""),
			Type:       el.SelectAttrValue("Type", ""),
			Target:     el.SelectAttrValue("Target", ""),
			TargetMode: el.SelectAttrValue("TargetMode", ""),
		}
		if r.ID == "" {
			continue
		}
		rels.index[r.ID] = len(rels.items)
		rels.items = append(rels.items, r)
	}
	return rels, nil
}

// NewRelationships creates empty relationship table.
func NewRelationships() *Relationships {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8" standalone="yes"`)
	root := doc.CreateElement("Relationships")
	root.CreateAttr("xmlns", NSPackageRels)
	return &Relationships{doc: doc, index: make(map[string]int)}
}

// All returns relationships in document order.
func (r *Relationships) All() []Relationship {
	return append([]Relationship(nil), r.items...)
}

// Get returns relationship by id.
func (r *Relationships) Get(id string) (Relationship, bool) {
	if i, ok := r.index[id]; ok {
		return r.items[i], true
	}
	return Relationship{}, false
}

// Add appends new internal relationship with fresh id and returns the id.
func (r *Relationships) Add(typ, target string) string {
	next := 1
	for _, it := range r.items {
		if n, err := strconv.Atoi(strings.TrimPrefix(it.ID, "rId")); err == nil && n >= next {
			next = n + 1
		}
	}
	// every numeric id is below next, so this one is free
	id := "rId" + strconv.Itoa(next)

	el := r.doc.Root().CreateElement("Relationship")
	el.CreateAttr("Id", id)
	el.CreateAttr("Type", typ)
	el.CreateAttr("Target", target)

	r.index[id] = len(r.items)
	r.items = append(r.items, Relationship{ID: id, Type: typ, Target: target})
	return id
}

// Bytes serializes relationship table.
func (r *Relationships) Bytes() ([]byte, error) {
	return r.doc.WriteToBytes()
}

// ResolveTarget converts relationship target relative to base directory into
// package part name.
func ResolveTarget(base, target string) string {
	target = strings.ReplaceAll(target, `\`, "/")
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(path.Clean(target), "/")
	}
	return strings.TrimPrefix(path.Clean(path.Join("/", base, target)), "/")
}
