// Package catalog turns embedded media of docx package into typed image
// records carrying format, physical size and claimed anchor.
package catalog

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"image"
	"path"
	"sort"
	"strings"

	"github.com/maruel/natural"
	"go.uber.org/zap"

	"dxt/archive"
	"dxt/docx"
	"dxt/introspect"
	"dxt/issues"
	"dxt/utils/images"
)

// maxAssetSize limits size of a single media part.
const maxAssetSize = 256 << 20

// ImageRecord is one embedded asset.
type ImageRecord struct {
	// AssetID is unique within single extraction pass.
	AssetID string
	Data    []byte
	Format  Format
	// Width and Height are in inches, nil when size could not be determined.
	Width  *float64
	Height *float64
	// Anchor is claimed significant element index, nil when unpositioned.
	// Only reconciler changes it after the catalog is built.
	Anchor         *int
	RelationshipID string
	PartName       string
	PixelWidth     int
	PixelHeight    int
	DPI            float64
}

// Options controls catalog building.
type Options struct {
	// DefaultDPI is used when image carries no density information.
	DefaultDPI int
}

// Catalog is an ordered list of accepted images in package enumeration
// order.
type Catalog struct {
	Images []*ImageRecord
	// Excluded lists media parts which format could not be detected.
	Excluded []string
	// Enumerated is number of media parts seen.
	Enumerated int
}

// Build enumerates media parts of the package, detects their format and size
// and attaches anchors found by introspection. Unknown formats are excluded
// with a warning, size problems leave dimensions unset. Asset ids are assigned
// to every enumerated part so they are never reused.
func Build(ctx context.Context, pkg *docx.Package, layout *introspect.Layout, opts Options, rpt *issues.Report, log *zap.Logger) (*Catalog, error) {
	if opts.DefaultDPI <= 0 {
		opts.DefaultDPI = 96
	}

	cat := &Catalog{}
	rids := relationshipIDs(layout)

	err := archive.Walk(pkg.Zip(), docx.MediaDir, func(f *zip.File) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		cat.Enumerated++
		id := fmt.Sprintf("extracted_%d", cat.Enumerated)

		data, err := archive.ReadFile(f, maxAssetSize)
		if err != nil {
			cat.Excluded = append(cat.Excluded, f.Name)
			rpt.Addf(issues.CategoryFormat, id, "unable to read %s: %v", f.Name, err)
			log.Warn("Unable to read media part, skipping", zap.String("part", f.Name), zap.Error(err))
			return nil
		}

		format := DetectFormat(data)
		if format == FormatUnknown {
			cat.Excluded = append(cat.Excluded, f.Name)
			rpt.Addf(issues.CategoryFormat, id, "unknown format of %s (%d bytes)", f.Name, len(data))
			log.Warn("Unable to detect image format, skipping", zap.String("part", f.Name), zap.Int("size", len(data)))
			return nil
		}

		rec := &ImageRecord{
			AssetID:  id,
			Data:     data,
			Format:   format,
			PartName: f.Name,
		}
		if err := rec.measure(opts.DefaultDPI); err != nil {
			rpt.Addf(issues.CategoryDimensions, id, "unable to decode %s: %v", f.Name, err)
			log.Warn("Unable to determine image size", zap.String("id", id), zap.String("part", f.Name), zap.Error(err))
		}

		if rid, ok := lookupRelationship(f.Name, layout.Relationships, rids); ok {
			rec.RelationshipID = rid
			if a, ok := layout.Anchors[rid]; ok {
				rec.Anchor = &a
			}
		}

		log.Debug("Image catalogued",
			zap.String("id", id),
			zap.String("part", f.Name),
			zap.Stringer("format", format),
			zap.String("rid", rec.RelationshipID),
			zap.Bool("anchored", rec.Anchor != nil))

		cat.Images = append(cat.Images, rec)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("unable to enumerate media: %w", err)
	}
	return cat, nil
}

// measure fills pixel size, density and physical size.
func (r *ImageRecord) measure(defaultDPI int) error {
	var w, h float64
	dpiX, dpiY := float64(defaultDPI), float64(defaultDPI)
	if r.Format == FormatSVG {
		sw, sh, err := images.SVGSize(r.Data)
		if err != nil {
			return err
		}
		w, h = sw, sh
	} else {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(r.Data))
		if err != nil {
			return err
		}
		if cfg.Width <= 0 || cfg.Height <= 0 {
			return fmt.Errorf("empty image %dx%d", cfg.Width, cfg.Height)
		}
		w, h = float64(cfg.Width), float64(cfg.Height)
		if x, y, ok := images.DPI(r.Data); ok {
			dpiX, dpiY = x, y
		}
	}

	r.PixelWidth, r.PixelHeight = int(w), int(h)
	r.DPI = dpiX
	wi, hi := w/dpiX, h/dpiY
	r.Width, r.Height = &wi, &hi
	return nil
}

// relationshipIDs returns image relationship ids in natural order so lookups
// are deterministic.
func relationshipIDs(layout *introspect.Layout) []string {
	ids := make([]string, 0, len(layout.Relationships))
	for id := range layout.Relationships {
		ids = append(ids, id)
	}
	sort.Sort(natural.StringSlice(ids))
	return ids
}

// lookupRelationship finds relationship for media part: exact target, then
// same base name, then same base name without extension.
func lookupRelationship(part string, rels map[string]string, ids []string) (string, bool) {
	base := path.Base(part)
	stem := strings.TrimSuffix(base, path.Ext(base))

	matchers := []func(target string) bool{
		func(target string) bool { return target == part },
		func(target string) bool { return path.Base(target) == base },
		func(target string) bool {
			tb := path.Base(target)
			return strings.TrimSuffix(tb, path.Ext(tb)) == stem
		},
	}
	for _, match := range matchers {
		for _, id := range ids {
			if match(rels[id]) {
				return id, true
			}
		}
	}
	return "", false
}

// ValidReferences returns relationship ids resolving to catalogued images.
func (c *Catalog) ValidReferences() map[string]bool {
	valid := make(map[string]bool, len(c.Images))
	for _, img := range c.Images {
		if img.RelationshipID != "" {
			valid[img.RelationshipID] = true
		}
	}
	return valid
}

// Get returns record by asset id.
func (c *Catalog) Get(id string) (*ImageRecord, bool) {
	for _, img := range c.Images {
		if img.AssetID == id {
			return img, true
		}
	}
	return nil, false
}
