package reconstruct

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"math"

	"github.com/disintegration/imaging"

	"dxt/catalog"
	"dxt/config"
	"dxt/utils/images"
)

// rasterDPI is density SVG images are rasterized with.
const rasterDPI = 192

// defaultAspect is height to width ratio used when image size is unknown.
const defaultAspect = 0.75

// DisplaySize returns image size in inches. Known size is scaled down into
// max width by max height box keeping aspect ratio, unknown size gets default
// width.
func DisplaySize(img *catalog.ImageRecord, cfg *config.ImagesConfig) (w, h float64) {
	if img.Width == nil || img.Height == nil || *img.Width <= 0 || *img.Height <= 0 {
		w = cfg.DefaultWidth
		return w, w * defaultAspect
	}

	w, h = *img.Width, *img.Height
	if w > cfg.MaxWidth {
		h *= cfg.MaxWidth / w
		w = cfg.MaxWidth
	}
	if h > cfg.MaxHeight {
		w *= cfg.MaxHeight / h
		h = cfg.MaxHeight
	}
	return w, h
}

// needsTranscoding decides if image has to be converted to PNG.
func needsTranscoding(f catalog.Format, mode config.TranscodeMode) bool {
	switch mode {
	case config.TranscodeModeAll:
		return f != catalog.FormatPNG
	case config.TranscodeModeUnsupported:
		return f == catalog.FormatWEBP || f == catalog.FormatTIFF || f == catalog.FormatSVG
	}
	return false
}

// Transcode returns image data ready for the output package. Formats word
// processor cannot show (or every non PNG image, depending on mode) are
// converted to PNG, SVG is rasterized at its display size.
func Transcode(img *catalog.ImageRecord, cfg *config.ImagesConfig) ([]byte, catalog.Format, error) {
	if !needsTranscoding(img.Format, cfg.Transcode) {
		return img.Data, img.Format, nil
	}

	var (
		decoded image.Image
		err     error
	)
	if img.Format == catalog.FormatSVG {
		w, h := DisplaySize(img, cfg)
		decoded, err = images.RasterizeSVGToImage(img.Data, pixels(w), pixels(h))
	} else {
		decoded, _, err = image.Decode(bytes.NewReader(img.Data))
	}
	if err != nil {
		return nil, catalog.FormatUnknown, fmt.Errorf("unable to decode %s image: %w", img.Format, err)
	}

	buf := new(bytes.Buffer)
	if err := imaging.Encode(buf, decoded, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression)); err != nil {
		return nil, catalog.FormatUnknown, fmt.Errorf("unable to encode png: %w", err)
	}
	return buf.Bytes(), catalog.FormatPNG, nil
}

func pixels(inches float64) int {
	return max(1, int(math.Round(inches*rasterDPI)))
}
