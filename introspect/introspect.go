// Package introspect scans docx package for image relationships and finds
// which significant body paragraph references each of them.
package introspect

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/beevik/etree"
	"github.com/maruel/natural"
	"go.uber.org/zap"

	"dxt/docx"
	"dxt/issues"
	"dxt/utils/debug"
)

// Target is a significant body paragraph: one with non blank text or at
// least one image reference.
type Target struct {
	// Index is zero based position in significant index space.
	Index int
	// BodyIndex is position among all top level body items.
	BodyIndex int
	HasText   bool
	// Refs are image relationship ids referenced by the paragraph in markup
	// order, including ones claimed by earlier paragraphs.
	Refs []string
}

// Layout is the result of package introspection.
type Layout struct {
	// Relationships maps image relationship id to package part name.
	Relationships map[string]string
	// Anchors maps image relationship id to significant paragraph index.
	Anchors map[string]int
	Targets []Target
	// SignificantCount is authoritative size of significant index space, used
	// by every reconciliation pass.
	SignificantCount int
	// Body is parsed document body, nil when markup is unusable.
	Body *docx.Body
	// Degraded is set when relationships or markup could not be read and
	// processing continues without images.
	Degraded bool
}

// Significant returns map of body index to significant index.
func (l *Layout) Significant() map[int]int {
	m := make(map[int]int, len(l.Targets))
	for _, t := range l.Targets {
		m[t.BodyIndex] = t.Index
	}
	return m
}

// Inspect reads relationship table and main document of the package. Broken
// relationship table or markup degrade result (empty mappings, warning in
// report), error is returned only when context is canceled.
func Inspect(ctx context.Context, pkg *docx.Package, rpt *issues.Report, log *zap.Logger) (*Layout, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	layout := &Layout{
		Relationships: make(map[string]string),
		Anchors:       make(map[string]int),
	}

	if rels, err := pkg.Relationships(); err != nil {
		layout.Degraded = true
		rpt.Add(issues.CategoryStage, pkg.MainRelsPart(), fmt.Sprintf("relationship table unusable, continuing without images: %v", err))
		log.Warn("Unable to read relationship table, continuing without images", zap.String("part", pkg.MainRelsPart()), zap.Error(err))
	} else {
		base := path.Dir(pkg.MainPart())
		for _, r := range rels.All() {
			if r.IsImage() && !r.External() {
				layout.Relationships[r.ID] = docx.ResolveTarget(base, r.Target)
			}
		}
	}

	doc, err := pkg.Document()
	if err == nil {
		layout.Body, err = docx.ParseBody(doc, pkg.Styles())
	}
	if err != nil {
		layout.Degraded = true
		layout.Relationships = make(map[string]string)
		rpt.Add(issues.CategoryStage, pkg.MainPart(), fmt.Sprintf("document markup unusable: %v", err))
		log.Warn("Unable to parse document markup, continuing without images", zap.String("part", pkg.MainPart()), zap.Error(err))
		return layout, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scan(layout)

	log.Debug("Package introspected",
		zap.Int("relationships", len(layout.Relationships)),
		zap.Int("anchors", len(layout.Anchors)),
		zap.Int("significant", layout.SignificantCount),
		zap.Int("body items", len(layout.Body.Items)),
		zap.Bool("degraded", layout.Degraded))
	return layout, nil
}

// scan walks body items building significant index space and anchors.
// References inside tables anchor to the significant paragraph which follows
// the table.
func scan(layout *Layout) {
	claimed := make(map[string]bool)
	var pending []string

	claim := func(refs []string, index int) {
		for _, rid := range refs {
			if claimed[rid] {
				continue
			}
			claimed[rid] = true
			layout.Anchors[rid] = index
		}
	}

	for _, it := range layout.Body.Items {
		switch {
		case it.Table != nil:
			pending = append(pending, References(it.Table.Element(), layout.Relationships)...)
		case it.Paragraph != nil:
			refs := References(it.Paragraph.Element(), layout.Relationships)
			hasText := strings.TrimSpace(it.Paragraph.Text()) != ""
			if !hasText && len(refs) == 0 {
				continue
			}
			index := len(layout.Targets)
			claim(pending, index)
			pending = nil
			claim(refs, index)
			layout.Targets = append(layout.Targets, Target{
				Index:     index,
				BodyIndex: it.Paragraph.BodyIndex,
				HasText:   hasText,
				Refs:      refs,
			})
		}
	}
	layout.SignificantCount = len(layout.Targets)
	// out of range on purpose, reconciler decides what to do
	claim(pending, layout.SignificantCount)
}

// rule finds candidate reference ids inside element subtree.
type rule func(el *etree.Element) []string

// rules in priority order: modern drawing, embedded object, legacy picture,
// run level embed and, finally, any relationship id attribute.
var rules = []rule{
	blipsUnder("drawing"),
	objectRefs,
	relIDsUnder("pict"),
	runEmbeds,
	anyRelID,
}

// References returns image relationship ids referenced in element subtree,
// without duplicates, in priority then markup order. Only ids present in rels
// (image relationships) are returned.
func References(el *etree.Element, rels map[string]string) []string {
	var (
		res  []string
		seen = make(map[string]bool)
	)
	for _, r := range rules {
		for _, rid := range r(el) {
			if _, image := rels[rid]; !image || seen[rid] {
				continue
			}
			seen[rid] = true
			res = append(res, rid)
		}
	}
	return res
}

func blipsUnder(container string) rule {
	return func(el *etree.Element) []string {
		var ids []string
		docx.Walk(el, func(e *etree.Element) bool {
			if docx.IsW(e, container) {
				ids = append(ids, blipEmbeds(e)...)
				return false
			}
			return true
		})
		return ids
	}
}

func blipEmbeds(el *etree.Element) []string {
	var ids []string
	docx.Walk(el, func(e *etree.Element) bool {
		if docx.Is(e, docx.NSDrawingML, "blip") {
			if v, ok := docx.Attr(e, docx.NSRelationships, "embed"); ok && v != "" {
				ids = append(ids, v)
			}
		}
		return true
	})
	return ids
}

// objectRefs handles w:object: drawing blips and VML image data preview.
func objectRefs(el *etree.Element) []string {
	var ids []string
	docx.Walk(el, func(e *etree.Element) bool {
		if !docx.IsW(e, "object") {
			return true
		}
		ids = append(ids, blipEmbeds(e)...)
		docx.Walk(e, func(v *etree.Element) bool {
			if docx.Is(v, docx.NSVML, "imagedata") {
				if id, ok := docx.Attr(v, docx.NSRelationships, "id"); ok && id != "" {
					ids = append(ids, id)
				}
			}
			return true
		})
		return false
	})
	return ids
}

func relIDsUnder(container string) rule {
	return func(el *etree.Element) []string {
		var ids []string
		docx.Walk(el, func(e *etree.Element) bool {
			if docx.IsW(e, container) {
				ids = append(ids, attrsAnywhere(e, "id")...)
				return false
			}
			return true
		})
		return ids
	}
}

func runEmbeds(el *etree.Element) []string {
	var ids []string
	docx.Walk(el, func(e *etree.Element) bool {
		if docx.IsW(e, "r") {
			ids = append(ids, attrsAnywhere(e, "embed")...)
			return false
		}
		return true
	})
	return ids
}

func anyRelID(el *etree.Element) []string {
	return attrsAnywhere(el, "id")
}

func attrsAnywhere(el *etree.Element, local string) []string {
	var ids []string
	docx.Walk(el, func(e *etree.Element) bool {
		if v, ok := docx.Attr(e, docx.NSRelationships, local); ok && v != "" {
			ids = append(ids, v)
		}
		return true
	})
	return ids
}

// String returns debug representation of the layout.
func (l *Layout) String() string {
	tw := debug.NewTreeWriter()
	tw.Line(0, "Layout: significant=%d degraded=%t", l.SignificantCount, l.Degraded)

	ids := make([]string, 0, len(l.Relationships))
	for id := range l.Relationships {
		ids = append(ids, id)
	}
	sort.Sort(natural.StringSlice(ids))

	tw.Line(1, "Relationships: %d", len(ids))
	for _, id := range ids {
		var anchor *int
		if a, ok := l.Anchors[id]; ok {
			anchor = &a
		}
		tw.Line(2, "%s -> %s (anchor %s)", id, l.Relationships[id], debug.Anchor(anchor))
	}
	tw.Line(1, "Targets: %d", len(l.Targets))
	for _, t := range l.Targets {
		if len(t.Refs) > 0 {
			tw.Line(2, "[%d] body=%d text=%t refs=%s", t.Index, t.BodyIndex, t.HasText, strings.Join(t.Refs, ","))
			continue
		}
		tw.Line(2, "[%d] body=%d text=%t", t.Index, t.BodyIndex, t.HasText)
	}
	return tw.String()
}
