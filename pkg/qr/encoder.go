package qr

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/makiuchi-d/gozxing/qrcode/decoder"
)

// ErrInvalidEncodeInput is returned by Render for an empty key, a
// non-positive size or a palette whose two colors are identical.
var ErrInvalidEncodeInput = errors.New("invalid encode input")

// Image is a rendered channel key. It is produced on demand and owned by the
// caller.
type Image struct {
	Key     string
	Colors  Colors
	modules [][]bool // modules[y][x], quiet zone included
	img     *image.RGBA
}

// Render encodes key as a square QR code of at least size pixels per side.
// Codes use error correction level M in byte mode; keys outside ASCII carry
// a UTF-8 ECI header so that Decode recovers them byte-for-byte. Modules are scaled by the largest integer
// factor that fits and centred; when size is smaller than the module count
// the image is one pixel per module.
func Render(key string, size int, colors Colors) (*Image, error) {
	switch {
	case key == "":
		return nil, fmt.Errorf("%w: empty key", ErrInvalidEncodeInput)
	case size <= 0:
		return nil, fmt.Errorf("%w: size must be positive, got %d", ErrInvalidEncodeInput, size)
	case colors.Dark == colors.Light:
		return nil, fmt.Errorf("%w: dark and light colors are identical", ErrInvalidEncodeInput)
	}

	hints := map[gozxing.EncodeHintType]interface{}{
		gozxing.EncodeHintType_ERROR_CORRECTION: decoder.ErrorCorrectionLevel_M,
	}
	if !isASCII(key) {
		hints[gozxing.EncodeHintType_CHARACTER_SET] = "UTF-8"
	}
	// Zero dimensions yield one pixel per module plus the quiet zone.
	matrix, err := qrcode.NewQRCodeWriter().Encode(key, gozxing.BarcodeFormat_QR_CODE, 0, 0, hints)
	if err != nil {
		return nil, fmt.Errorf("failed to encode key as QR code: %w", err)
	}

	n := matrix.GetWidth()
	modules := make([][]bool, n)
	for y := 0; y < n; y++ {
		modules[y] = make([]bool, n)
		for x := 0; x < n; x++ {
			modules[y][x] = matrix.Get(x, y)
		}
	}

	return &Image{
		Key:     key,
		Colors:  colors,
		modules: modules,
		img:     paint(modules, size, colors),
	}, nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

func paint(modules [][]bool, size int, colors Colors) *image.RGBA {
	n := len(modules)
	side := size
	if side < n {
		side = n
	}
	scale := side / n
	pad := (side - n*scale) / 2

	img := image.NewRGBA(image.Rect(0, 0, side, side))
	draw.Draw(img, img.Bounds(), image.NewUniform(colors.Light), image.Point{}, draw.Src)
	dark := image.NewUniform(colors.Dark)
	for y, row := range modules {
		for x, on := range row {
			if !on {
				continue
			}
			r := image.Rect(pad+x*scale, pad+y*scale, pad+(x+1)*scale, pad+(y+1)*scale)
			draw.Draw(img, r, dark, image.Point{}, draw.Src)
		}
	}
	return img
}

// Image returns the rendered pixels.
func (i *Image) Image() image.Image { return i.img }

// Size returns the side of the rendered image in pixels.
func (i *Image) Size() int { return i.img.Bounds().Dx() }

// Modules returns a copy of the module matrix, quiet zone included.
// modules[y][x] is true for a dark module.
func (i *Image) Modules() [][]bool {
	out := make([][]bool, len(i.modules))
	for y, row := range i.modules {
		out[y] = append([]bool(nil), row...)
	}
	return out
}

// WritePNG encodes the image as PNG.
func (i *Image) WritePNG(w io.Writer) error {
	if err := png.Encode(w, i.img); err != nil {
		return fmt.Errorf("png encoding failed: %w", err)
	}
	return nil
}

// PNG returns the PNG encoding of the image.
func (i *Image) PNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := i.WritePNG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
