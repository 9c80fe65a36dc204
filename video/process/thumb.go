package process

import (
	"image"
	"os"

	"gocv.io/x/gocv"

	"detectcam/video/source"
)

// WriteThumb writes a small JPEG preview of the image to path.
func WriteThumb(path string, input source.Image) error {
	tmat := gocv.NewMat()
	defer tmat.Close()
	gocv.Resize(input.Mat, &tmat, image.Point{X: 230, Y: 135}, 0, 0, gocv.InterpolationCubic)

	jpeg, err := gocv.IMEncode(".jpg", tmat)
	if err != nil {
		return err
	}
	defer jpeg.Close()

	return os.WriteFile(path, jpeg.GetBytes(), 0644)
}
