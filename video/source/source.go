package source

import (
	"errors"
	"image"
	"time"

	"gocv.io/x/gocv"
)

// ErrEndOfStream is returned by NextFrame when the source has no more
// frames to deliver. It is the designed end of input, not a failure,
// and callers must distinguish it from read errors.
var ErrEndOfStream = errors.New("source: end of stream")

// Image is a single captured frame. The holder of an Image owns its Mat
// exclusively; handing the Image to a queue transfers that ownership.
// Whoever ends up with the Image must call Release exactly once.
type Image struct {
	Mat  gocv.Mat
	Time time.Time

	// Seq is the frame's position in the stream, starting at 1.
	Seq uint64

	pool     *MatPool
	released bool
}

// Release returns the underlying Mat to its pool, or frees it if the
// image was not pooled. Releasing twice panics; that is always an
// ownership bug.
func (i *Image) Release() {
	if i.released {
		panic("source: image released twice")
	}
	i.released = true
	if i.pool != nil {
		i.pool.Return(i.Mat)
		return
	}
	i.Mat.Close()
}

// Clone copies the image into a new unpooled Mat. The clone has its own
// lifetime and must also be released.
func (i *Image) Clone() Image {
	n := Image{
		Mat:  gocv.NewMat(),
		Time: i.Time,
		Seq:  i.Seq,
	}
	i.Mat.CopyTo(&n.Mat)
	return n
}

// NewPooledImage wraps a Mat taken from pool into an Image whose
// Release hands the Mat back to that pool.
func NewPooledImage(m gocv.Mat, t time.Time, seq uint64, pool *MatPool) Image {
	return Image{Mat: m, Time: t, Seq: seq, pool: pool}
}

// Source delivers a stream of frames, such as a camera or a video file.
// NextFrame blocks until a frame is available, returns ErrEndOfStream
// when the stream is over, and may return other errors for transient
// per-frame failures the caller should skip.
type Source interface {
	NextFrame() (Image, error)

	// Size returns the pixel dimensions of delivered frames.
	Size() image.Point

	// Close disconnects from the source and frees its resources. No
	// NextFrame calls may be in flight or follow.
	Close()
}
