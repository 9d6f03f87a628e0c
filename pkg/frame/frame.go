// Package frame defines the camera boundary of the scanner: cameras grant
// streams, streams expose the latest video frame, and Sample copies a frame
// into a pixel buffer the decoder can read.
package frame

import (
	"image"
	"image/draw"
	"time"
)

// Frame is a pixel buffer holding one sampled video frame at its native
// resolution. Pix is RGBA, four bytes per pixel, rows packed without padding.
type Frame struct {
	Width     int
	Height    int
	Pix       []byte
	Timestamp time.Time
}

// Sample draws img into a new RGBA buffer sized to img's bounds.
func Sample(img image.Image) *Frame {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return &Frame{
		Width:     b.Dx(),
		Height:    b.Dy(),
		Pix:       dst.Pix,
		Timestamp: time.Now(),
	}
}

// Image returns an RGBA view over the frame's pixels. The view shares memory
// with the frame.
func (f *Frame) Image() *image.RGBA {
	return &image.RGBA{
		Pix:    f.Pix,
		Stride: 4 * f.Width,
		Rect:   image.Rect(0, 0, f.Width, f.Height),
	}
}

// Inverted returns a copy of the frame with every color channel inverted.
// Alpha is preserved.
func (f *Frame) Inverted() *Frame {
	pix := make([]byte, len(f.Pix))
	for i := 0; i+3 < len(f.Pix); i += 4 {
		pix[i] = 255 - f.Pix[i]
		pix[i+1] = 255 - f.Pix[i+1]
		pix[i+2] = 255 - f.Pix[i+2]
		pix[i+3] = f.Pix[i+3]
	}
	return &Frame{Width: f.Width, Height: f.Height, Pix: pix, Timestamp: f.Timestamp}
}
