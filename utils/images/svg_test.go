package images

import (
	"math"
	"testing"
)

func TestRasterizeSVGToImage(t *testing.T) {
	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 50"><rect width="100" height="50"/></svg>`)

	tests := []struct {
		name    string
		targetW int
		targetH int
		wantW   int
		wantH   int
	}{
		{"intrinsic", 0, 0, 100, 50},
		{"scale_by_width", 200, 0, 200, 100},
		{"scale_by_height", 0, 200, 400, 200},
		{"fit_box", 150, 150, 150, 75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := RasterizeSVGToImage(svg, tt.targetW, tt.targetH)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if img.Bounds().Dx() != tt.wantW || img.Bounds().Dy() != tt.wantH {
				t.Fatalf("unexpected bounds: %v", img.Bounds())
			}
		})
	}
}

func TestRasterizeSVGToImage_Clamp(t *testing.T) {
	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100000 50000"></svg>`)

	old := maxRasterDim
	maxRasterDim = 64
	defer func() { maxRasterDim = old }()

	img, err := RasterizeSVGToImage(svg, 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if img.Bounds().Dx() != 64 || img.Bounds().Dy() != 32 {
		t.Fatalf("unexpected bounds: %v", img.Bounds())
	}
}

func TestSVGSize(t *testing.T) {
	w, h, err := SVGSize([]byte(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 300 150"></svg>`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(w-300) > 1e-9 || math.Abs(h-150) > 1e-9 {
		t.Errorf("SVGSize() = %vx%v, want 300x150", w, h)
	}

	if _, _, err := SVGSize([]byte(`<svg xmlns="http://www.w3.org/2000/svg"></svg>`)); err == nil {
		t.Error("expected error for svg without viewBox")
	}
}

func TestFitBox(t *testing.T) {
	if w, h := FitBox(10, 10, 0, 0); w != 10 || h != 10 {
		t.Errorf("FitBox intrinsic = %dx%d", w, h)
	}
	if w, h := FitBox(1000, 1, 10, 0); w != 10 || h != 1 {
		t.Errorf("FitBox must not go below one pixel, got %dx%d", w, h)
	}
}
