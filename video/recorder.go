package video

import (
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"detectcam/video/process"
	"detectcam/video/source"
)

// RecorderOptions configure clip triggering.
type RecorderOptions struct {
	// BufferTime of history is prepended to each clip.
	BufferTime time.Duration

	// RecordTime past the last trigger keeps the clip rolling;
	// MaxRecordTime cuts a clip regardless of retriggering.
	RecordTime    time.Duration
	MaxRecordTime time.Duration

	// TriggerThreshold is the minimum detection confidence that
	// starts or extends a clip.
	TriggerThreshold float32
}

// Events receives clip lifecycle callbacks. Invoked from the recorder
// goroutine; implementations must not call back into the Recorder.
type Events interface {
	ClipStarted(r *VideoRecord, dets process.Detections)
	ClipStopped(r *VideoRecord)
}

type recInput struct {
	img  source.Image
	dets process.Detections
}

// Recorder turns detections into recorded clips. Every rendered frame
// is fed through Put; a sufficiently confident detection starts a clip
// that includes BufferTime of history and keeps rolling while
// detections continue.
type Recorder struct {
	// Events is optional and must be set before the first Put.
	Events Events

	producer *VideoSinkProducer
	opts     *RecorderOptions
	buf      *Buffer

	input    chan recInput
	inputack chan bool
	manual   chan bool
	close    chan chan bool
}

func NewRecorder(p *VideoSinkProducer, o *RecorderOptions) *Recorder {
	r := &Recorder{
		producer: p,
		opts:     o,
		buf:      NewBuffer(o.BufferTime),

		input:    make(chan recInput),
		inputack: make(chan bool),
		manual:   make(chan bool),
		close:    make(chan chan bool),
	}
	go r.loop()
	return r
}

func (r *Recorder) triggered(dets process.Detections) bool {
	best, ok := dets.Best()
	return ok && best.Confidence >= r.opts.TriggerThreshold
}

func (r *Recorder) loop() {
	recording := false
	pending := false
	var out *ClipSink
	var scores process.ClassScores
	var stop <-chan time.Time
	var stopLong <-chan time.Time

	stopFunc := func() {
		out.SetScores(scores)
		record := out.record
		// Encoder shutdown can take a while; don't stall the render
		// loop on it.
		go out.Close()
		recording = false
		out = nil
		stop = nil
		stopLong = nil
		if r.Events != nil {
			r.Events.ClipStopped(record)
		}
	}

	for {
		select {
		case in := <-r.input:
			trigger := pending || r.triggered(in.dets)
			pending = false

			r.buf.Put(in.img)

			if trigger && !recording {
				out = r.producer.New(in.img)
				scores = make(process.ClassScores)
				// History first; it already includes this frame.
				r.buf.FlushToSink(out)
				recording = true
				stopLong = time.NewTimer(r.opts.MaxRecordTime).C
				if r.Events != nil {
					r.Events.ClipStarted(out.record, in.dets)
				}
			} else if recording {
				out.Put(in.img)
			}
			if trigger && recording {
				stop = time.NewTimer(r.opts.RecordTime).C
			}
			if recording {
				scores.Observe(in.dets)
			}
			r.inputack <- true

		case <-r.manual:
			// Starts a clip on the next frame.
			pending = true

		case <-stop:
			stopFunc()
		case <-stopLong:
			log.Infof("Clip hit max record time, cutting")
			stopFunc()

		case c := <-r.close:
			if recording {
				stopFunc()
			}
			r.buf.Close()
			c <- true
			return
		}
	}
}

// Put feeds one rendered frame and its detections. Synchronous: the
// image is copied before Put returns and the caller keeps ownership.
func (r *Recorder) Put(img source.Image, dets process.Detections) {
	r.input <- recInput{img: img, dets: dets}
	<-r.inputack
}

// Trigger manually starts a clip, as if a detection had fired.
func (r *Recorder) Trigger() {
	r.manual <- true
}

func (r *Recorder) Close() {
	c := make(chan bool)
	r.close <- c
	<-c
}

// ServeHTTP implements http.Handler for manual triggering.
func (r *Recorder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.Trigger()

	w.Header().Add("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "ok")
}
