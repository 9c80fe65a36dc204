package source

import (
	"fmt"
	"image"
	"strings"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// CaptureOptions configure a VideoCapture source.
type CaptureOptions struct {
	// Width, Height and FPS are requested from live devices. Ignored
	// for file sources.
	Width, Height, FPS int

	// MaxReadRetries bounds how many consecutive failed reads from a
	// live device are treated as transient before the source reports
	// end of stream.
	MaxReadRetries int
}

// VideoCapture reads frames from a camera device or video file through
// OpenCV. It is a pull source: the caller drives the frame rate, and a
// live camera drops frames in the driver while nobody is reading. That
// is where backpressure from a slow pipeline ends up.
type VideoCapture struct {
	URI string

	cap  *gocv.VideoCapture
	pool *MatPool
	opts CaptureOptions
	seq  uint64
	size image.Point
	live bool
}

// NewVideoCapture opens the device or file at uri. Failure to open is a
// startup error; the pipeline is never started on a dead source.
func NewVideoCapture(uri string, opts CaptureOptions) (*VideoCapture, error) {
	cap, err := gocv.OpenVideoCapture(uri)
	if err != nil {
		return nil, fmt.Errorf("open capture %q: %w", uri, err)
	}

	v := &VideoCapture{
		URI:  uri,
		cap:  cap,
		pool: NewMatPool(),
		opts: opts,
		live: !strings.Contains(uri, "."),
	}

	if v.live {
		if opts.Width > 0 {
			cap.Set(gocv.VideoCaptureFrameWidth, float64(opts.Width))
		}
		if opts.Height > 0 {
			cap.Set(gocv.VideoCaptureFrameHeight, float64(opts.Height))
		}
		if opts.FPS > 0 {
			cap.Set(gocv.VideoCaptureFPS, float64(opts.FPS))
		}
	}

	v.size = image.Point{
		X: int(cap.Get(gocv.VideoCaptureFrameWidth)),
		Y: int(cap.Get(gocv.VideoCaptureFrameHeight)),
	}
	log.Infof("Opened capture %v (%dx%d, live=%v)", uri, v.size.X, v.size.Y, v.live)
	return v, nil
}

// NextFrame blocks on the device for the next frame. A file source
// reports ErrEndOfStream on the first failed read; a live source
// retries a bounded number of times first, since single glitched reads
// are common on USB cameras.
func (v *VideoCapture) NextFrame() (Image, error) {
	m := v.pool.Take()

	retries := 0
	for {
		if v.cap.Read(&m) && !m.Empty() {
			break
		}
		if !v.live || retries >= v.opts.MaxReadRetries {
			v.pool.Return(m)
			return Image{}, ErrEndOfStream
		}
		retries++
		log.Warnf("Transient read failure from %v (%d/%d)", v.URI, retries, v.opts.MaxReadRetries)
		time.Sleep(10 * time.Millisecond)
	}

	return Image{
		Mat:  m,
		Time: time.Now(),
		Seq:  atomic.AddUint64(&v.seq, 1),
		pool: v.pool,
	}, nil
}

func (v *VideoCapture) Size() image.Point {
	return v.size
}

func (v *VideoCapture) Close() {
	v.cap.Close()
	v.pool.Close()
}
