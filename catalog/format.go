package catalog

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/h2non/filetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ENUM(unknown, png, jpeg, gif, bmp, webp, tiff, svg)
type Format int

const (
	// FormatUnknown is terminal: asset is excluded from placement.
	FormatUnknown Format = iota
	FormatPNG
	FormatJPEG
	FormatGIF
	FormatBMP
	FormatWEBP
	FormatTIFF
	FormatSVG
)

var formatNames = []string{"unknown", "png", "jpeg", "gif", "bmp", "webp", "tiff", "svg"}

// String implements the Stringer interface.
func (f Format) String() string {
	if f >= 0 && int(f) < len(formatNames) {
		return formatNames[f]
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// MarshalText implements the text marshaller method.
func (f Format) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// Ext returns file extension for the format, without dot.
func (f Format) Ext() string {
	switch f {
	case FormatJPEG:
		return "jpg"
	case FormatUnknown:
		return "bin"
	}
	return f.String()
}

// ContentType returns MIME type for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatSVG:
		return "image/svg+xml"
	case FormatUnknown:
		return "application/octet-stream"
	}
	return "image/" + f.String()
}

// Raster reports whether format is a bitmap image.
func (f Format) Raster() bool {
	return f != FormatUnknown && f != FormatSVG
}

// DetectFormat sniffs image format from data. Magic numbers of common raster
// formats are checked first, then generic matcher, then registered image
// decoders and, finally, SVG markup. Pure function of data.
func DetectFormat(data []byte) Format {
	if f := magic(data); f != FormatUnknown {
		return f
	}
	if kind, err := filetype.Image(data); err == nil {
		if f := fromName(kind.Extension); f != FormatUnknown {
			return f
		}
	}
	if _, name, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		if f := fromName(name); f != FormatUnknown {
			return f
		}
	}
	if isSVG(data) {
		return FormatSVG
	}
	return FormatUnknown
}

func magic(data []byte) Format {
	switch {
	case bytes.HasPrefix(data, []byte{0x89, 0x50, 0x4E, 0x47}):
		return FormatPNG
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}):
		return FormatJPEG
	case bytes.HasPrefix(data, []byte("GIF87a")), bytes.HasPrefix(data, []byte("GIF89a")):
		return FormatGIF
	case bytes.HasPrefix(data, []byte("BM")):
		return FormatBMP
	case len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return FormatWEBP
	}
	return FormatUnknown
}

func fromName(name string) Format {
	switch strings.ToLower(name) {
	case "png":
		return FormatPNG
	case "jpg", "jpeg":
		return FormatJPEG
	case "gif":
		return FormatGIF
	case "bmp":
		return FormatBMP
	case "webp":
		return FormatWEBP
	case "tif", "tiff":
		return FormatTIFF
	case "svg":
		return FormatSVG
	}
	return FormatUnknown
}

// isSVG looks for svg root element in the beginning of textual data.
func isSVG(data []byte) bool {
	head := data[:min(len(data), 4096)]
	if bytes.IndexByte(head, 0) >= 0 {
		return false
	}
	return bytes.Contains(bytes.ToLower(head), []byte("<svg"))
}
