package images

import (
	"bytes"
	"encoding/binary"
)

type DpiType uint8

const (
	DpiNoUnits DpiType = iota
	DpiPxPerInch
	DpiPxPerSm
)

const inchesPerMeter = 39.3700787

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}

// JFIFDensity reads pixel density from JFIF APP0 segment. Only segment
// immediately following SOI is considered, same as most readers do.
func JFIFDensity(jpegData []byte) (float64, float64, bool) {
	// SOI + APP0 marker + length + "JFIF\0" + version + units + densities
	if len(jpegData) < 18 || jpegData[0] != 0xFF || jpegData[1] != 0xD8 {
		return 0, 0, false
	}
	if jpegData[2] != 0xFF || jpegData[3] != 0xE0 {
		return 0, 0, false
	}
	if !bytes.Equal(jpegData[6:11], []byte{'J', 'F', 'I', 'F', 0}) {
		return 0, 0, false
	}
	units := DpiType(jpegData[13])
	x := float64(binary.BigEndian.Uint16(jpegData[14:16]))
	y := float64(binary.BigEndian.Uint16(jpegData[16:18]))
	if x == 0 || y == 0 {
		return 0, 0, false
	}
	switch units {
	case DpiPxPerInch:
		return x, y, true
	case DpiPxPerSm:
		return x * 2.54, y * 2.54, true
	default:
		// aspect ratio only
		return 0, 0, false
	}
}

// PNGDensity reads pixel density from pHYs chunk. Chunks are walked until
// IDAT since pHYs must precede image data.
func PNGDensity(pngData []byte) (float64, float64, bool) {
	if len(pngData) < len(pngSignature) || !bytes.Equal(pngData[:len(pngSignature)], pngSignature) {
		return 0, 0, false
	}
	for pos := len(pngSignature); pos+8 <= len(pngData); {
		length := int(binary.BigEndian.Uint32(pngData[pos : pos+4]))
		kind := string(pngData[pos+4 : pos+8])
		data := pos + 8
		if length < 0 || data+length > len(pngData) {
			return 0, 0, false
		}
		switch kind {
		case "pHYs":
			if length < 9 {
				return 0, 0, false
			}
			x := float64(binary.BigEndian.Uint32(pngData[data : data+4]))
			y := float64(binary.BigEndian.Uint32(pngData[data+4 : data+8]))
			// unit 1 is meter, 0 is aspect ratio only
			if pngData[data+8] != 1 || x == 0 || y == 0 {
				return 0, 0, false
			}
			return x / inchesPerMeter, y / inchesPerMeter, true
		case "IDAT", "IEND":
			return 0, 0, false
		}
		// data + crc
		pos = data + length + 4
	}
	return 0, 0, false
}

// DPI returns embedded horizontal and vertical density for JPEG and PNG
// data, other formats report false.
func DPI(data []byte) (float64, float64, bool) {
	if x, y, ok := JFIFDensity(data); ok {
		return x, y, true
	}
	return PNGDensity(data)
}
