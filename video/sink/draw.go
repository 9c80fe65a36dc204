package sink

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"detectcam/video/process"
	"detectcam/video/source"
)

// maskAlpha is the opacity of the translucent fill inside each box.
const maskAlpha = 0.4

var boxPalette = []color.RGBA{
	{R: 255, G: 99, B: 71, A: 255},
	{R: 60, G: 179, B: 113, A: 255},
	{R: 65, G: 105, B: 225, A: 255},
	{R: 238, G: 130, B: 238, A: 255},
	{R: 255, G: 165, B: 0, A: 255},
	{R: 0, G: 206, B: 209, A: 255},
}

func classColor(classID int) color.RGBA {
	if classID < 0 {
		classID = 0
	}
	return boxPalette[classID%len(boxPalette)]
}

// DrawDetections draws each detection onto the frame: a translucent
// fill, the box outline and a label caption. The caller must own the
// image.
func DrawDetections(img source.Image, dets process.Detections) {
	bounds := image.Rect(0, 0, img.Mat.Cols(), img.Mat.Rows())

	for _, d := range dets {
		box := d.Box.Intersect(bounds)
		if box.Empty() {
			continue
		}
		c := classColor(d.ClassID)

		fillMask(img.Mat, box, c)
		gocv.Rectangle(&img.Mat, box, c, 2)
		drawLabel(img.Mat, box, fmt.Sprintf("%s %.0f%%", d.Class, d.Confidence*100), c)
	}
}

// fillMask blends a solid color into the box region.
func fillMask(mat gocv.Mat, box image.Rectangle, c color.RGBA) {
	roi := mat.Region(box)
	defer roi.Close()

	fill := gocv.NewMatWithSizeFromScalar(
		gocv.NewScalar(float64(c.B), float64(c.G), float64(c.R), 0),
		roi.Rows(), roi.Cols(), roi.Type())
	defer fill.Close()

	gocv.AddWeighted(roi, 1-maskAlpha, fill, maskAlpha, 0, &roi)
}

func drawLabel(mat gocv.Mat, box image.Rectangle, text string, c color.RGBA) {
	font := gocv.FontHersheySimplex
	scale := 0.5
	thickness := 1
	pad := 2

	sz := gocv.GetTextSize(text, font, scale, thickness)

	// Caption sits above the box unless that would leave the frame.
	org := image.Point{X: box.Min.X, Y: box.Min.Y - pad}
	if org.Y-sz.Y < 0 {
		org.Y = box.Min.Y + sz.Y + pad
	}

	bg := image.Rect(org.X, org.Y-sz.Y-pad, org.X+sz.X+pad*2, org.Y+pad)
	gocv.Rectangle(&mat, bg, c, -1)
	gocv.PutText(&mat, text, image.Point{X: org.X + pad, Y: org.Y}, font, scale,
		color.RGBA{R: 255, G: 255, B: 255, A: 255}, thickness)
}
