package sink

import (
	"detectcam/video/process"
	"detectcam/video/source"
)

// Sink is a destination for a stream of images, such as a video file or
// an MJPEG stream. Put uses the image synchronously; the caller keeps
// ownership and the sink must not hold references to the underlying Mat
// after Put returns.
type Sink interface {
	Put(input source.Image)

	// Close finalizes the sink.
	Close()
}

// Renderer is the presentation capability consumed by the pipeline's
// render stage. Annotate mutates the frame in place; Present shows it;
// QuitRequested is a non-blocking poll for a user quit. All three are
// called from the single render worker.
type Renderer interface {
	Annotate(img source.Image, dets process.Detections)
	Present(img source.Image)
	QuitRequested() bool
	Close()
}
