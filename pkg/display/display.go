// Package display draws rendered key codes on a text terminal. Two module
// rows share one character cell using half-block glyphs.
package display

import (
	"image/color"
	"strings"

	"github.com/nsf/termbox-go"

	"keychannel/pkg/qr"
)

// Cell is one terminal character covering two vertically stacked modules.
// true means dark.
type Cell struct {
	Top, Bottom bool
}

// Rune returns the glyph that paints the dark halves of the cell.
func (c Cell) Rune() rune {
	switch {
	case c.Top && c.Bottom:
		return '█'
	case c.Top:
		return '▀'
	case c.Bottom:
		return '▄'
	default:
		return ' '
	}
}

// Cells folds a module matrix into rows of cells. An odd last module row is
// paired with a light row.
func Cells(modules [][]bool) [][]Cell {
	rows := make([][]Cell, 0, (len(modules)+1)/2)
	for y := 0; y < len(modules); y += 2 {
		row := make([]Cell, len(modules[y]))
		for x := range row {
			row[x].Top = modules[y][x]
			if y+1 < len(modules) && x < len(modules[y+1]) {
				row[x].Bottom = modules[y+1][x]
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// Text renders the cells as lines of text, dark modules as glyph ink.
func Text(modules [][]bool) string {
	var b strings.Builder
	for _, row := range Cells(modules) {
		for _, c := range row {
			b.WriteRune(c.Rune())
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// Show draws img with a caption below it and waits for a key press.
func Show(img *qr.Image, caption string) error {
	if err := termbox.Init(); err != nil {
		return err
	}
	defer termbox.Close()

	fg, bg := inkColors(img.Colors)
	termbox.Clear(bg, bg)
	cells := Cells(img.Modules())
	for y, row := range cells {
		for x, c := range row {
			termbox.SetCell(x, y, c.Rune(), fg, bg)
		}
	}
	for x, r := range []rune(caption) {
		termbox.SetCell(x, len(cells)+1, r, termbox.ColorDefault, termbox.ColorDefault)
	}
	if err := termbox.Flush(); err != nil {
		return err
	}

	for {
		ev := termbox.PollEvent()
		switch ev.Type {
		case termbox.EventKey, termbox.EventInterrupt:
			return nil
		case termbox.EventError:
			return ev.Err
		}
	}
}

// inkColors picks terminal colors preserving which of the two palette
// colors is the brighter one, so inverted codes stay inverted.
func inkColors(c qr.Colors) (fg, bg termbox.Attribute) {
	if luminance(c.Dark) > luminance(c.Light) {
		return termbox.ColorWhite, termbox.ColorBlack
	}
	return termbox.ColorBlack, termbox.ColorWhite
}

func luminance(c color.RGBA) int {
	return 299*int(c.R) + 587*int(c.G) + 114*int(c.B)
}
