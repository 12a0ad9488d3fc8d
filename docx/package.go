package docx

import (
	"archive/zip"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/beevik/etree"

	"dxt/archive"
)

// maxPartSize guards against zip bombs, no sane document part is that large.
const maxPartSize = 512 << 20

// ErrPartNotFound is returned when requested part is absent from the package.
var ErrPartNotFound = errors.New("part not found")

// Package is an opened docx container. Parts are read lazily.
type Package struct {
	name  string
	rc    *zip.ReadCloser
	files map[string]*zip.File
	order []string
	main  string
}

// Open opens docx package and locates its main document part. Failure to
// open is fatal for the caller: there is nothing to work with.
func Open(name string) (*Package, error) {
	rc, err := zip.OpenReader(name)
	if err != nil {
		return nil, fmt.Errorf("unable to open package %q: %w", name, err)
	}

	p := &Package{name: name, rc: rc, files: make(map[string]*zip.File)}
	if err := archive.Walk(&rc.Reader, "", func(f *zip.File) error {
		p.files[f.Name] = f
		p.order = append(p.order, f.Name)
		return nil
	}); err != nil {
		rc.Close()
		return nil, fmt.Errorf("unable to read package %q: %w", name, err)
	}

	p.main = p.locateMain()
	if !p.Has(p.main) {
		rc.Close()
		return nil, fmt.Errorf("package %q has no main document part (%s)", name, p.main)
	}
	return p, nil
}

// locateMain follows package relationship of officeDocument type, falling
// back to conventional location.
func (p *Package) locateMain() string {
	data, err := p.ReadPart(PartPackageRels)
	if err != nil {
		return PartDocument
	}
	rels, err := ParseRelationships(data)
	if err != nil {
		return PartDocument
	}
	for _, r := range rels.All() {
		if r.Type == RelTypeOfficeDocument && !r.External() {
			return ResolveTarget("", r.Target)
		}
	}
	return PartDocument
}

// Close releases underlying archive.
func (p *Package) Close() error {
	if p == nil || p.rc == nil {
		return nil
	}
	return p.rc.Close()
}

// Name returns path package was opened from.
func (p *Package) Name() string {
	return p.name
}

// Zip gives access to the underlying archive reader.
func (p *Package) Zip() *zip.Reader {
	return &p.rc.Reader
}

// Parts returns part names in archive order.
func (p *Package) Parts() []string {
	return append([]string(nil), p.order...)
}

// Has reports whether part exists.
func (p *Package) Has(part string) bool {
	_, ok := p.files[part]
	return ok
}

// MainPart returns name of the main document part (normally word/document.xml).
func (p *Package) MainPart() string {
	return p.main
}

// MainRelsPart returns name of relationship part for main document.
func (p *Package) MainRelsPart() string {
	return RelsPartFor(p.main)
}

// RelsPartFor returns relationship part name for given part.
func RelsPartFor(part string) string {
	dir, base := path.Split(part)
	return dir + "_rels/" + base + ".rels"
}

// ReadPart returns part content.
func (p *Package) ReadPart(part string) ([]byte, error) {
	f, ok := p.files[part]
	if !ok {
		return nil, fmt.Errorf("%s: %w", part, ErrPartNotFound)
	}
	return archive.ReadFile(f, maxPartSize)
}

// ReadXML reads and parses XML part.
func (p *Package) ReadXML(part string) (*etree.Document, error) {
	data, err := p.ReadPart(part)
	if err != nil {
		return nil, err
	}
	doc, err := ParseXML(data)
	if err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", part, err)
	}
	return doc, nil
}

// Document parses main document part.
func (p *Package) Document() (*etree.Document, error) {
	return p.ReadXML(p.main)
}

// Relationships parses relationship table of main document part.
func (p *Package) Relationships() (*Relationships, error) {
	data, err := p.ReadPart(p.MainRelsPart())
	if err != nil {
		return nil, err
	}
	rels, err := ParseRelationships(data)
	if err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", p.MainRelsPart(), err)
	}
	return rels, nil
}

// ContentTypes parses package content type table.
func (p *Package) ContentTypes() (*ContentTypes, error) {
	data, err := p.ReadPart(PartContentTypes)
	if err != nil {
		return nil, err
	}
	return ParseContentTypes(data)
}

// Styles returns style id to style name map, empty when styles part is
// absent or broken.
func (p *Package) Styles() map[string]string {
	part := path.Join(path.Dir(p.main), "styles.xml")
	if rels, err := p.Relationships(); err == nil {
		for _, r := range rels.All() {
			if r.Type == RelTypeStyles && !r.External() {
				part = ResolveTarget(path.Dir(p.main), r.Target)
				break
			}
		}
	}
	data, err := p.ReadPart(part)
	if err != nil {
		return map[string]string{}
	}
	styles, err := ParseStyles(data)
	if err != nil {
		return map[string]string{}
	}
	return styles
}

// ParseStyles extracts style id to name mapping from styles part.
func ParseStyles(data []byte) (map[string]string, error) {
	doc, err := ParseXML(data)
	if err != nil {
		return nil, err
	}
	styles := make(map[string]string)
	for _, st := range doc.Root().ChildElements() {
		if !IsW(st, "style") {
			continue
		}
		id, ok := Attr(st, NSWordML, "styleId")
		if !ok {
			continue
		}
		name := id
		if n := ChildW(st, "name"); n != nil {
			if v, ok := WVal(n); ok && strings.TrimSpace(v) != "" {
				name = v
			}
		}
		styles[id] = name
	}
	return styles, nil
}
