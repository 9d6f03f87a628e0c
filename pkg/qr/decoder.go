package qr

import (
	"fmt"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"

	"keychannel/pkg/frame"
	"keychannel/pkg/log"
)

// Inversion tells the decoder how to treat light-on-dark codes.
type Inversion int

const (
	DontInvert Inversion = iota
	OnlyInvert
	AttemptBoth
	InvertFirst
)

func (inv Inversion) String() string {
	switch inv {
	case DontInvert:
		return "dontInvert"
	case OnlyInvert:
		return "onlyInvert"
	case AttemptBoth:
		return "attemptBoth"
	case InvertFirst:
		return "invertFirst"
	default:
		return "unknown"
	}
}

// ParseInversion maps the names returned by String back to an Inversion.
func ParseInversion(s string) (Inversion, error) {
	for _, inv := range []Inversion{DontInvert, OnlyInvert, AttemptBoth, InvertFirst} {
		if inv.String() == s {
			return inv, nil
		}
	}
	return DontInvert, fmt.Errorf("unknown inversion mode %q", s)
}

// passes lists, in order, whether each decode attempt uses inverted pixels.
func (inv Inversion) passes() []bool {
	switch inv {
	case OnlyInvert:
		return []bool{true}
	case AttemptBoth:
		return []bool{false, true}
	case InvertFirst:
		return []bool{true, false}
	default:
		return []bool{false}
	}
}

// Decoder turns a sampled frame into a text payload. ok is false when the
// frame holds no readable code; that is the normal outcome for most frames.
type Decoder interface {
	Decode(f *frame.Frame, inv Inversion) (payload string, ok bool)
}

// ZXingDecoder decodes QR codes with gozxing.
type ZXingDecoder struct {
	pure bool
}

// DecoderOption configures a ZXingDecoder.
type DecoderOption func(*ZXingDecoder)

// WithPureBarcode tells the decoder frames contain nothing but an unrotated
// code, as produced by Render. Camera frames must not use it.
func WithPureBarcode() DecoderOption {
	return func(d *ZXingDecoder) { d.pure = true }
}

// NewZXingDecoder creates a gozxing-backed decoder.
func NewZXingDecoder(opts ...DecoderOption) *ZXingDecoder {
	d := &ZXingDecoder{}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decode implements Decoder.
func (d *ZXingDecoder) Decode(f *frame.Frame, inv Inversion) (string, bool) {
	if f == nil || f.Width == 0 || f.Height == 0 {
		return "", false
	}
	for _, invert := range inv.passes() {
		src := f
		if invert {
			src = f.Inverted()
		}
		if text, ok := d.decodeOnce(src); ok {
			return text, true
		}
	}
	return "", false
}

func (d *ZXingDecoder) decodeOnce(f *frame.Frame) (string, bool) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(f.Image())
	if err != nil {
		log.Trace("gozxing.NewBinaryBitmapFromImage failed: %v", err)
		return "", false
	}

	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}
	if d.pure {
		hints[gozxing.DecodeHintType_PURE_BARCODE] = true
	}

	result, err := qrcode.NewQRCodeReader().Decode(bmp, hints)
	if err != nil {
		return "", false
	}
	if result.GetText() == "" {
		return "", false
	}
	return result.GetText(), true
}
