package qr

import (
	"bytes"
	"errors"
	"image/color"
	"testing"

	"keychannel/pkg/frame"
)

var roundTripKeys = []string{
	"CHANNEL-7f3a",
	"k",
	"Zx3_q-9LmN0pQrStUvWxYz",
	"channel key with spaces, punctuation! and 'quotes'?",
	"0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789abcdefghijklmnopqrstuvwxyz",
	"clé-ünïcödé",
	"日本語キー",
}

func TestRoundTrip(t *testing.T) {
	dec := NewZXingDecoder()

	palettes := []struct {
		name   string
		colors Colors
		inv    Inversion
	}{
		{"default palette", DefaultColors, AttemptBoth},
		{"default palette invert first", DefaultColors, InvertFirst},
		{"mono", MonoColors, DontInvert},
		{"mono attempt both", MonoColors, AttemptBoth},
	}

	for _, p := range palettes {
		t.Run(p.name, func(t *testing.T) {
			for _, key := range roundTripKeys {
				img, err := Render(key, 256, p.colors)
				if err != nil {
					t.Fatalf("Render(%q) error = %v", key, err)
				}
				got, ok := dec.Decode(frame.Sample(img.Image()), p.inv)
				if !ok {
					t.Fatalf("Decode() found nothing for %q", key)
				}
				if got != key {
					t.Errorf("Decode() = %q, want %q", got, key)
				}
			}
		})
	}

	// Non-ASCII keys carry a UTF-8 ECI segment; one pixel per module is
	// the smallest rendering.
	t.Run("non-ascii at minimum size", func(t *testing.T) {
		for _, key := range []string{"clé-ünïcödé", "日本語キー"} {
			for _, size := range []int{1, 29, 40, 64, 128} {
				img, err := Render(key, size, DefaultColors)
				if err != nil {
					t.Fatalf("Render(%q, %d) error = %v", key, size, err)
				}
				got, ok := dec.Decode(frame.Sample(img.Image()), AttemptBoth)
				if !ok || got != key {
					t.Errorf("Render(%q, %d) decoded to %q, %v", key, size, got, ok)
				}
			}
		}
	})

	t.Run("pure barcode", func(t *testing.T) {
		img, err := Render("CHANNEL-7f3a", 200, MonoColors)
		if err != nil {
			t.Fatalf("Render() error = %v", err)
		}
		got, ok := NewZXingDecoder(WithPureBarcode()).Decode(frame.Sample(img.Image()), DontInvert)
		if !ok || got != "CHANNEL-7f3a" {
			t.Errorf("Decode() = %q, %v", got, ok)
		}
	})
}

func TestDecodeMiss(t *testing.T) {
	dec := NewZXingDecoder()

	t.Run("blank frame", func(t *testing.T) {
		img, _ := Render("x", 64, MonoColors)
		blank := frame.Sample(img.Image())
		for i := range blank.Pix {
			blank.Pix[i] = 255
		}
		if got, ok := dec.Decode(blank, AttemptBoth); ok {
			t.Errorf("Decode() on blank frame = %q", got)
		}
	})

	t.Run("light on dark without inversion", func(t *testing.T) {
		img, _ := Render("CHANNEL-7f3a", 256, DefaultColors)
		if got, ok := dec.Decode(frame.Sample(img.Image()), DontInvert); ok {
			t.Errorf("Decode() = %q, inverted code should need an inversion pass", got)
		}
	})

	t.Run("empty frame", func(t *testing.T) {
		if _, ok := dec.Decode(&frame.Frame{}, AttemptBoth); ok {
			t.Errorf("Decode() on empty frame reported a payload")
		}
		if _, ok := dec.Decode(nil, AttemptBoth); ok {
			t.Errorf("Decode() on nil frame reported a payload")
		}
	})
}

func TestRender(t *testing.T) {
	t.Run("invalid input", func(t *testing.T) {
		tests := []struct {
			name   string
			key    string
			size   int
			colors Colors
		}{
			{"empty key", "", 128, DefaultColors},
			{"zero size", "k", 0, DefaultColors},
			{"negative size", "k", -5, DefaultColors},
			{"same colors", "k", 128, Colors{Dark: DefaultColors.Dark, Light: DefaultColors.Dark}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				img, err := Render(tt.key, tt.size, tt.colors)
				if !errors.Is(err, ErrInvalidEncodeInput) {
					t.Errorf("Render() error = %v, want ErrInvalidEncodeInput", err)
				}
				if img != nil {
					t.Errorf("Render() returned an image on invalid input")
				}
			})
		}
	})

	t.Run("size", func(t *testing.T) {
		img, err := Render("k", 128, DefaultColors)
		if err != nil {
			t.Fatalf("Render() error = %v", err)
		}
		if img.Size() != 128 {
			t.Errorf("Size() = %d, want 128", img.Size())
		}
		// Version 1 code: 21 modules plus a 4-module quiet zone on each side.
		if n := len(img.Modules()); n != 29 {
			t.Errorf("module count = %d, want 29", n)
		}

		small, err := Render("k", 1, DefaultColors)
		if err != nil {
			t.Fatalf("Render() error = %v", err)
		}
		if small.Size() != 29 {
			t.Errorf("Size() = %d, want one pixel per module (29)", small.Size())
		}
	})

	t.Run("colors", func(t *testing.T) {
		img, _ := Render("k", 29, DefaultColors)
		if got := img.Image().At(0, 0); got != color.Color(DefaultColors.Light) {
			t.Errorf("quiet zone color = %v, want %v", got, DefaultColors.Light)
		}
		// Top-left finder pattern starts right after the quiet zone.
		if got := img.Image().At(4, 4); got != color.Color(DefaultColors.Dark) {
			t.Errorf("finder pattern color = %v, want %v", got, DefaultColors.Dark)
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		a, _ := Render("CHANNEL-7f3a", 128, DefaultColors)
		b, _ := Render("CHANNEL-7f3a", 128, DefaultColors)
		pa, _ := a.PNG()
		pb, _ := b.PNG()
		if !bytes.Equal(pa, pb) {
			t.Errorf("identical inputs produced different images")
		}

		mono, _ := Render("CHANNEL-7f3a", 128, MonoColors)
		am, mm := a.Modules(), mono.Modules()
		for y := range am {
			for x := range am[y] {
				if am[y][x] != mm[y][x] {
					t.Fatalf("colors changed the module layout at (%d,%d)", x, y)
				}
			}
		}
	})

	t.Run("pdf", func(t *testing.T) {
		img, _ := Render("CHANNEL-7f3a", 128, DefaultColors)
		var buf bytes.Buffer
		if err := img.WritePDF(&buf); err != nil {
			t.Fatalf("WritePDF() error = %v", err)
		}
		if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF")) {
			t.Errorf("output is not a PDF")
		}
	})
}

func TestParseColors(t *testing.T) {
	tests := []struct {
		in      string
		want    color.RGBA
		wantErr bool
	}{
		{"#05d9e8", color.RGBA{R: 0x05, G: 0xd9, B: 0xe8, A: 0xff}, false},
		{"0d0d1a", color.RGBA{R: 0x0d, G: 0x0d, B: 0x1a, A: 0xff}, false},
		{"#fff", color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}, false},
		{"#12345", color.RGBA{}, true},
		{"#gggggg", color.RGBA{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseHexColor(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseHexColor(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseHexColor(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}

	c, err := ParseColors("#05d9e8", "#0d0d1a")
	if err != nil || c != DefaultColors {
		t.Errorf("ParseColors() = %v, %v", c, err)
	}
}

func TestParseInversion(t *testing.T) {
	for _, inv := range []Inversion{DontInvert, OnlyInvert, AttemptBoth, InvertFirst} {
		got, err := ParseInversion(inv.String())
		if err != nil || got != inv {
			t.Errorf("ParseInversion(%q) = %v, %v", inv.String(), got, err)
		}
	}
	if _, err := ParseInversion("sometimes"); err == nil {
		t.Errorf("expected error for unknown mode")
	}
}
