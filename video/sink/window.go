package sink

import (
	"gocv.io/x/gocv"

	"detectcam/video/process"
	"detectcam/video/source"
)

// Window presents annotated frames in a HighGUI window and turns a 'q'
// or ESC key press into the quit signal. HighGUI requires all window
// calls on one thread; run the pipeline with RenderOnCaller from the
// main goroutine when using this renderer.
type Window struct {
	window  *gocv.Window
	name    string
	sizeSet bool
	quit    bool
}

func NewWindow(name string) *Window {
	return &Window{
		window: gocv.NewWindow(name),
		name:   name,
	}
}

// Annotate draws detections and the timestamp onto the frame.
func (w *Window) Annotate(img source.Image, dets process.Detections) {
	DrawDetections(img, dets)
	process.DrawTimestamp(w.name, img)
}

// Present shows the frame and services the GUI event loop. The WaitKey
// call doubles as the quit poll.
func (w *Window) Present(img source.Image) {
	if !w.sizeSet {
		w.window.ResizeWindow(img.Mat.Cols(), img.Mat.Rows())
		w.sizeSet = true
	}
	w.window.IMShow(img.Mat)
	key := w.window.WaitKey(1)
	if key == 'q' || key == 27 {
		w.quit = true
	}
}

func (w *Window) QuitRequested() bool {
	return w.quit
}

func (w *Window) Close() {
	w.window.Close()
}
