package match

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"go-attendance-server/internal/vision"
)

var (
	knownColor   = color.NRGBA{R: 40, G: 200, B: 80, A: 255}
	unknownColor = color.NRGBA{R: 220, G: 50, B: 50, A: 255}
)

const boxThickness = 3

// Annotate draws each face's box and label onto a copy of the image for
// human review. Matched faces are green with register number and score,
// unknown faces red.
func Annotate(img image.Image, faces []DetectedFace) *image.NRGBA {
	out := imaging.Clone(img)

	for _, f := range faces {
		col := unknownColor
		label := "Unknown"
		if f.Known() {
			col = knownColor
			label = fmt.Sprintf("%s %.2f", f.AssignedTo, f.Score)
		}

		drawBox(out, f.Box, col)
		drawLabel(out, int(f.Box.X1), int(f.Box.Y1)-4, label, col)
	}
	return out
}

func drawBox(img *image.NRGBA, b vision.Box, col color.NRGBA) {
	x1, y1 := int(b.X1), int(b.Y1)
	x2, y2 := int(b.X2), int(b.Y2)

	for t := 0; t < boxThickness; t++ {
		for x := x1; x <= x2; x++ {
			setPixel(img, x, y1+t, col)
			setPixel(img, x, y2-t, col)
		}
		for y := y1; y <= y2; y++ {
			setPixel(img, x1+t, y, col)
			setPixel(img, x2-t, y, col)
		}
	}
}

func setPixel(img *image.NRGBA, x, y int, col color.NRGBA) {
	if image.Pt(x, y).In(img.Bounds()) {
		img.SetNRGBA(x, y, col)
	}
}

func drawLabel(img *image.NRGBA, x, y int, text string, col color.NRGBA) {
	if y < basicfont.Face7x13.Ascent {
		y = basicfont.Face7x13.Ascent
	}

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}
