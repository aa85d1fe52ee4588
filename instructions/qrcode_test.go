package instructions

import (
	"bytes"
	"image"
	"image/png"
	"strings"
	"testing"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
)

const testPageURL = "https://chart.example.org/v1/instructions/3f0c2a4e-1b7d-3c55-9e2a-4d8f6b1a2c3d"

func decodePNG(t *testing.T, raw []byte) image.Image {
	t.Helper()
	if !bytes.HasPrefix(raw, []byte("\x89PNG")) {
		t.Fatalf("output is not a PNG")
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("failed to decode PNG: %v", err)
	}
	return img
}

func hasDarkPixel(img image.Image, area image.Rectangle) bool {
	for y := area.Min.Y; y < area.Max.Y; y++ {
		for x := area.Min.X; x < area.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			if r < 0x8000 && g < 0x8000 && b < 0x8000 {
				return true
			}
		}
	}
	return false
}

func TestQRCode(t *testing.T) {
	plain, err := QRCode(testPageURL, "")
	if err != nil {
		t.Fatalf("QRCode failed: %v", err)
	}
	code := decodePNG(t, plain)
	size := code.Bounds().Dx()
	if size != code.Bounds().Dy() {
		t.Fatalf("code without caption should be square, got %v", code.Bounds())
	}
	if size%qrModuleSize != 0 {
		t.Errorf("width %d is not a whole number of modules", size)
	}
	// Quiet zone of four modules
	if hasDarkPixel(code, image.Rect(0, 0, size, 4*qrModuleSize)) {
		t.Error("quiet zone should be white")
	}

	captioned, err := QRCode(testPageURL, "Amlodipine 5mg tablets")
	if err != nil {
		t.Fatalf("QRCode failed: %v", err)
	}
	withText := decodePNG(t, captioned)
	if withText.Bounds().Dx() != size || withText.Bounds().Dy() != size+captionHeight {
		t.Fatalf("expected %dx%d, got %v", size, size+captionHeight, withText.Bounds())
	}
	if !hasDarkPixel(withText, image.Rect(0, size, size, size+captionHeight)) {
		t.Error("caption strip has no text")
	}
}

func TestQRCodeDiffersByURL(t *testing.T) {
	a, err := QRCode(testPageURL, "")
	if err != nil {
		t.Fatal(err)
	}
	b, err := QRCode(strings.Replace(testPageURL, "3f0c", "4f0c", 1), "")
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(a, b) {
		t.Error("different URLs gave the same image")
	}
}

func TestFitCaption(t *testing.T) {
	d := &font.Drawer{Face: basicfont.Face7x13}

	tests := []struct {
		name     string
		caption  string
		maxWidth int
		want     string
	}{
		{"fits", "Aspirin", 100, "Aspirin"},
		{"shortened", "Paracetamol 500mg tablets", 70, "Paracet..."},
		{"no room", "Paracetamol", 14, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fitCaption(d, tt.caption, tt.maxWidth); got != tt.want {
				t.Errorf("fitCaption(%q, %d) = %q, want %q", tt.caption, tt.maxWidth, got, tt.want)
			}
		})
	}
}
