package sink

import (
	"fmt"
	"image"
	"os/exec"

	log "github.com/sirupsen/logrus"

	"detectcam/video/source"
)

// FFmpegOptions configure clip encoding.
type FFmpegOptions struct {
	// Path to the ffmpeg binary (see util.LocateFFmpeg).
	FFmpegPath string

	Size image.Point
	FPS  int
}

// FFmpegSink pipes raw BGR frames into an ffmpeg child process encoding
// an h264 mp4. Frame writes happen on a dedicated goroutine so a slow
// encoder stalls only the recorder, never the render loop directly.
type FFmpegSink struct {
	b     chan []byte
	close chan chan bool
}

func NewFFmpegSink(path string, opts FFmpegOptions) *FFmpegSink {
	f := &FFmpegSink{
		b:     make(chan []byte),
		close: make(chan chan bool),
	}
	go f.run(path, opts)
	return f
}

func (f *FFmpegSink) run(path string, opts FFmpegOptions) {
	c := exec.Command(
		opts.FFmpegPath,
		// Raw BGR frames from the pipeline arrive on stdin.
		"-f", "rawvideo",
		"-pixel_format", "bgr24",
		"-video_size", fmt.Sprintf("%dx%d", opts.Size.X, opts.Size.Y),
		"-framerate", fmt.Sprintf("%d", opts.FPS),
		"-i", "-",
		// h264 with reasonable quality and speed. "preset" can be
		// lowered if the system cannot keep up with encoding.
		"-c:v", "libx264",
		"-preset", "superfast",
		"-crf", "30",
		// Fast-start so clips play in the browser without a full
		// download.
		"-movflags", "+faststart",
		path,
	)

	pipe, err := c.StdinPipe()
	if err != nil {
		log.Errorf("FFmpeg stdin unavailable: %v", err)
		f.drain(nil) <- true
		return
	}

	if err := c.Start(); err != nil {
		log.Errorf("Failed to start ffmpeg for %v: %v", path, err)
		f.drain(nil) <- true
		return
	}

	closer := f.drain(func(b []byte) error {
		_, err := pipe.Write(b)
		return err
	})

	pipe.Close()
	err = c.Wait()
	log.Infof("FFmpeg for %v exited with status %v", path, err)
	closer <- true
}

// drain consumes frames until Close, forwarding each through write.
// After a write error remaining frames are discarded so the producer
// never blocks on a dead encoder.
func (f *FFmpegSink) drain(write func([]byte) error) chan bool {
	broken := write == nil
	for {
		select {
		case closer := <-f.close:
			return closer
		case b := <-f.b:
			if broken {
				continue
			}
			if err := write(b); err != nil {
				log.Errorf("Error writing to ffmpeg pipe: %v", err)
				broken = true
			}
		}
	}
}

func (f *FFmpegSink) Close() {
	c := make(chan bool)
	f.close <- c
	<-c
}

func (f *FFmpegSink) Put(input source.Image) {
	f.b <- input.Mat.ToBytes()
}
