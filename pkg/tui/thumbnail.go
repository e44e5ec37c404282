package tui

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/disintegration/imaging"
)

const alphaThreshold = 0x80

// renderImage draws img at most width cells wide with half blocks: every
// cell shows two vertically stacked pixels.
func renderImage(img image.Image, width int) string {
	if img == nil || width <= 0 {
		return ""
	}
	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return ""
	}
	if bounds.Dx() > width {
		img = imaging.Resize(img, width, 0, imaging.Box)
	}
	px := imaging.Clone(img)
	w, h := px.Bounds().Dx(), px.Bounds().Dy()

	var sb strings.Builder
	for y := 0; y < h; y += 2 {
		if y > 0 {
			sb.WriteByte('\n')
		}
		for x := 0; x < w; x++ {
			top := px.NRGBAAt(x, y)
			bottom := color.NRGBA{}
			if y+1 < h {
				bottom = px.NRGBAAt(x, y+1)
			}
			sb.WriteString(halfBlock(top, bottom))
		}
	}
	return sb.String()
}

func halfBlock(top, bottom color.NRGBA) string {
	topOn := top.A >= alphaThreshold
	bottomOn := bottom.A >= alphaThreshold
	switch {
	case topOn && bottomOn:
		return lipgloss.NewStyle().
			Foreground(lipgloss.Color(hexColor(top))).
			Background(lipgloss.Color(hexColor(bottom))).
			Render("▀")
	case topOn:
		return lipgloss.NewStyle().Foreground(lipgloss.Color(hexColor(top))).Render("▀")
	case bottomOn:
		return lipgloss.NewStyle().Foreground(lipgloss.Color(hexColor(bottom))).Render("▄")
	}
	return " "
}

func hexColor(c color.NRGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// swatch is a one-cell preview of img in its average colour.
func swatch(img image.Image, glyph string) string {
	if img == nil {
		return glyph
	}
	avg := imaging.Resize(img, 1, 1, imaging.Box).NRGBAAt(0, 0)
	if avg.A < alphaThreshold {
		return glyph
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(hexColor(avg))).Render(glyph)
}
