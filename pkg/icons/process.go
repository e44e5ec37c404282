package icons

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
)

// Size is the fixed footprint every icon is rendered to.
type Size struct {
	Width  int
	Height int
	Radius int
}

// DefaultSize matches the row decoration of the asset tree.
var DefaultSize = Size{Width: 103, Height: 58, Radius: 4}

// Process center-crops src to the icon aspect ratio, scales it to the icon
// footprint and rounds the corners with a transparent mask.
func Process(src image.Image, size Size) *image.NRGBA {
	if size.Width <= 0 || size.Height <= 0 {
		size = DefaultSize
	}
	scaled := imaging.Fill(src, size.Width, size.Height, imaging.Center, imaging.Lanczos)
	if size.Radius <= 0 {
		return scaled
	}

	out := image.NewNRGBA(image.Rect(0, 0, size.Width, size.Height))
	draw.DrawMask(out, out.Bounds(), scaled, image.Point{}, roundedMask{size}, image.Point{}, draw.Src)
	return out
}

// roundedMask is opaque everywhere except outside the corner arcs.
type roundedMask struct {
	size Size
}

func (m roundedMask) ColorModel() color.Model { return color.AlphaModel }

func (m roundedMask) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.size.Width, m.size.Height)
}

func (m roundedMask) At(x, y int) color.Color {
	r := m.size.Radius
	w, h := m.size.Width, m.size.Height

	var cx, cy int
	switch {
	case x < r && y < r:
		cx, cy = r, r
	case x >= w-r && y < r:
		cx, cy = w-r-1, r
	case x < r && y >= h-r:
		cx, cy = r, h-r-1
	case x >= w-r && y >= h-r:
		cx, cy = w-r-1, h-r-1
	default:
		return color.Alpha{A: 0xff}
	}

	dx, dy := x-cx, y-cy
	if dx*dx+dy*dy > r*r {
		return color.Alpha{}
	}
	return color.Alpha{A: 0xff}
}
