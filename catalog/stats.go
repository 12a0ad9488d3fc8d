package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/maruel/natural"
	"go.uber.org/zap"

	"dxt/utils/debug"
)

// Statistics summarizes catalog content.
type Statistics struct {
	Total        int            `json:"total"`
	ByFormat     map[string]int `json:"by_format"`
	TotalMB      float64        `json:"total_mb"`
	AverageKB    float64        `json:"average_kb"`
	Positioned   int            `json:"positioned"`
	Unpositioned int            `json:"unpositioned"`
	Excluded     int            `json:"excluded"`
}

// Statistics computes catalog statistics.
func (c *Catalog) Statistics() Statistics {
	st := Statistics{
		Total:    len(c.Images),
		ByFormat: make(map[string]int),
		Excluded: len(c.Excluded),
	}
	var size int
	for _, img := range c.Images {
		st.ByFormat[img.Format.String()]++
		size += len(img.Data)
		if img.Anchor != nil {
			st.Positioned++
		} else {
			st.Unpositioned++
		}
	}
	st.TotalMB = float64(size) / (1024 * 1024)
	if st.Total > 0 {
		st.AverageKB = float64(size) / 1024 / float64(st.Total)
	}
	return st
}

// Fields returns statistics as log fields.
func (s Statistics) Fields() []zap.Field {
	formats := make([]string, 0, len(s.ByFormat))
	for f := range s.ByFormat {
		formats = append(formats, f)
	}
	sort.Strings(formats)
	fields := []zap.Field{
		zap.Int("images", s.Total),
		zap.Int("positioned", s.Positioned),
		zap.Int("unpositioned", s.Unpositioned),
		zap.Int("excluded", s.Excluded),
		zap.String("size", fmt.Sprintf("%.2f MB", s.TotalMB)),
		zap.String("average", fmt.Sprintf("%.1f KB", s.AverageKB)),
	}
	for _, f := range formats {
		fields = append(fields, zap.Int(f, s.ByFormat[f]))
	}
	return fields
}

// String returns debug representation of the catalog.
func (c *Catalog) String() string {
	tw := debug.NewTreeWriter()
	tw.Line(0, "Catalog: %d images, %d excluded, %d enumerated", len(c.Images), len(c.Excluded), c.Enumerated)

	imgs := append([]*ImageRecord(nil), c.Images...)
	sort.Slice(imgs, func(i, j int) bool { return natural.Less(imgs[i].AssetID, imgs[j].AssetID) })
	for _, img := range imgs {
		tw.Line(1, "%s: %s %s (%d bytes)", img.AssetID, img.Format, img.PartName, len(img.Data))
		if img.Width != nil && img.Height != nil {
			tw.Line(2, "Size: %dx%d px @ %.0f dpi = %.2fx%.2f in", img.PixelWidth, img.PixelHeight, img.DPI, *img.Width, *img.Height)
		} else {
			tw.Line(2, "Size: unknown")
		}
		if img.RelationshipID != "" {
			tw.Line(2, "Relationship: %s", img.RelationshipID)
		}
		tw.Line(2, "Anchor: %s", debug.Anchor(img.Anchor))
	}
	for _, name := range c.Excluded {
		tw.Line(1, "excluded: %s", name)
	}
	return tw.String()
}

// Extract writes every accepted asset into directory as <assetID>.<ext>.
func (c *Catalog) Extract(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("unable to create directory for images: %w", err)
	}
	for _, img := range c.Images {
		name := filepath.Join(dir, img.AssetID+"."+img.Format.Ext())
		if err := os.WriteFile(name, img.Data, 0644); err != nil {
			return fmt.Errorf("unable to extract %s: %w", img.AssetID, err)
		}
	}
	return nil
}
