package instructions

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	"github.com/skip2/go-qrcode"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	// qrModuleSize is the width in pixels of one QR module
	qrModuleSize = 10
	// captionHeight is the white strip added under the code for the caption
	captionHeight = 40
	captionTop    = 10
)

// QRCode renders a PNG QR code pointing at pageURL. When caption is not
// empty it is printed centred in a white strip below the code.
func QRCode(pageURL, caption string) ([]byte, error) {
	qr, err := qrcode.New(pageURL, qrcode.Low)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QR code: %w", err)
	}

	// The quiet zone of four modules is part of the symbol
	var img image.Image = qr.Image(-qrModuleSize)
	if caption != "" {
		img = withCaption(img, caption)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to write QR code PNG: %w", err)
	}
	return buf.Bytes(), nil
}

func withCaption(code image.Image, caption string) image.Image {
	b := code.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()+captionHeight))
	draw.Draw(out, out.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(out, image.Rect(0, 0, b.Dx(), b.Dy()), code, b.Min, draw.Src)

	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  out,
		Src:  image.NewUniform(color.Black),
		Face: face,
	}

	text := fitCaption(d, caption, b.Dx())
	width := d.MeasureString(text).Ceil()
	d.Dot = fixed.P((b.Dx()-width)/2, b.Dy()+captionTop+face.Ascent)
	d.DrawString(text)
	return out
}

// fitCaption shortens the caption with a trailing "..." until it fits maxWidth
func fitCaption(d *font.Drawer, caption string, maxWidth int) string {
	if d.MeasureString(caption).Ceil() <= maxWidth {
		return caption
	}
	runes := []rune(caption)
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		text := string(runes) + "..."
		if d.MeasureString(text).Ceil() <= maxWidth {
			return text
		}
	}
	return ""
}
