package qr

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// Colors is the two-color palette of a rendered code. It is presentation
// only: any pair with distinct colors stays decodable.
type Colors struct {
	Dark  color.RGBA // modules
	Light color.RGBA // background and quiet zone
}

// DefaultColors is cyan modules on a near-black background.
var DefaultColors = Colors{
	Dark:  color.RGBA{R: 0x05, G: 0xd9, B: 0xe8, A: 0xff},
	Light: color.RGBA{R: 0x0d, G: 0x0d, B: 0x1a, A: 0xff},
}

// MonoColors is plain black on white.
var MonoColors = Colors{
	Dark:  color.RGBA{A: 0xff},
	Light: color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff},
}

// ParseColors parses a dark and a light hex color.
func ParseColors(dark, light string) (Colors, error) {
	d, err := ParseHexColor(dark)
	if err != nil {
		return Colors{}, fmt.Errorf("dark color: %w", err)
	}
	l, err := ParseHexColor(light)
	if err != nil {
		return Colors{}, fmt.Errorf("light color: %w", err)
	}
	return Colors{Dark: d, Light: l}, nil
}

// ParseHexColor parses "#rrggbb" or "#rgb". The leading '#' is optional.
func ParseHexColor(s string) (color.RGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}
