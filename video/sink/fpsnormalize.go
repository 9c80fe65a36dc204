package sink

import (
	"time"

	"gocv.io/x/gocv"

	"detectcam/video/source"
)

// FPSNormalize wraps another Sink so that an incoming stream of
// variable-timed video is converted to fixed-rate video. Camera feeds
// have variable frame rate; clip files need a constant one. Frames are
// dropped or repeated to hit the target rate.
type FPSNormalize struct {
	sink Sink

	frameDur time.Duration
	last     gocv.Mat
	curFrame time.Time
}

// NewFPSNormalize wraps sink, exporting at the given frame rate.
func NewFPSNormalize(sink Sink, fps int) *FPSNormalize {
	return &FPSNormalize{
		sink:     sink,
		frameDur: time.Second / time.Duration(fps),
		last:     gocv.NewMat(),
	}
}

func (f *FPSNormalize) Close() {
	f.sink.Close()
	f.last.Close()
}

func (f *FPSNormalize) Put(input source.Image) {
	if f.curFrame.IsZero() {
		f.sink.Put(input)
		input.Mat.CopyTo(&f.last)
		f.curFrame = input.Time
		return
	}

	nextFrame := f.curFrame.Add(f.frameDur)
	if input.Time.Before(nextFrame) {
		// Don't need a new frame yet. Ignore.
		return
	}

	for {
		f.curFrame = nextFrame
		nextFrame = f.curFrame.Add(f.frameDur)
		if input.Time.Before(nextFrame) {
			i := source.Image{
				Mat:  input.Mat,
				Time: f.curFrame,
				Seq:  input.Seq,
			}
			f.sink.Put(i)
			input.Mat.CopyTo(&f.last)
			return
		}
		// Missed a frame slot. Repeat the last frame.
		i := source.Image{
			Mat:  f.last,
			Time: f.curFrame,
			Seq:  input.Seq,
		}
		f.sink.Put(i)
	}
}
