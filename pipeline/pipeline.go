// Package pipeline runs the capture → inference → render loop: three
// workers connected by two bounded queues, with two-phase shutdown.
package pipeline

import (
	"errors"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"detectcam/queue"
	"detectcam/util"
	"detectcam/video/process"
	"detectcam/video/sink"
	"detectcam/video/source"
)

// DefaultQueueCapacity double-buffers each hand-off: a slow consumer
// stalls its producer instead of growing memory or dropping frames in
// the queue. Frames a live camera produces while capture is stalled are
// lost in the driver, not here.
const DefaultQueueCapacity = 2

var (
	ErrNoSource   = errors.New("pipeline: source is required")
	ErrNoDetector = errors.New("pipeline: detector is required")
	ErrNoRenderer = errors.New("pipeline: renderer is required")
)

// Config holds pipeline tuning knobs.
type Config struct {
	// QueueCapacity bounds each inter-stage queue. Zero means
	// DefaultQueueCapacity.
	QueueCapacity int

	// RenderOnCaller runs the render stage on the goroutine that calls
	// Run instead of a dedicated worker. Required when the renderer is
	// a HighGUI window, which must live on the main thread.
	RenderOnCaller bool
}

// detected pairs a frame with its detections for the second queue.
type detected struct {
	img  source.Image
	dets process.Detections
}

// Pipeline owns the two queues, the cancellation flag and the three
// stage workers. Create with New, drive with Run, stop early with
// RequestStop. A Pipeline runs once.
type Pipeline struct {
	cfg  Config
	src  source.Source
	det  process.Detector
	rend sink.Renderer

	stop      *util.Flag
	frames    *queue.Queue[source.Image]
	processed *queue.Queue[detected]

	captured      uint64
	detectedCount uint64
	rendered      uint64
	detectErrors  uint64
	readErrors    uint64
	discarded     uint64
}

// New validates the collaborators and builds a pipeline. No goroutines
// start until Run.
func New(cfg Config, src source.Source, det process.Detector, rend sink.Renderer) (*Pipeline, error) {
	if src == nil {
		return nil, ErrNoSource
	}
	if det == nil {
		return nil, ErrNoDetector
	}
	if rend == nil {
		return nil, ErrNoRenderer
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = DefaultQueueCapacity
	}

	return &Pipeline{
		cfg:       cfg,
		src:       src,
		det:       det,
		rend:      rend,
		stop:      util.NewFlag(),
		frames:    queue.New[source.Image](cfg.QueueCapacity),
		processed: queue.New[detected](cfg.QueueCapacity),
	}, nil
}

// Run starts the stage workers and blocks until all of them have
// terminated: on end of stream, on a user quit, or after RequestStop.
// Frames still buffered at exit are released and counted as discarded.
func (p *Pipeline) Run() {
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		p.capture()
	}()
	go func() {
		defer wg.Done()
		p.inference()
	}()

	if p.cfg.RenderOnCaller {
		p.render()
	} else {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.render()
		}()
	}

	wg.Wait()

	// Both stages feeding the queues have exited, so whatever is left
	// buffered can never be consumed. Release it, accounted for.
	for _, img := range p.frames.Drain() {
		img.Release()
		atomic.AddUint64(&p.discarded, 1)
	}
	for _, it := range p.processed.Drain() {
		it.img.Release()
		atomic.AddUint64(&p.discarded, 1)
	}

	s := p.Stats()
	log.Infof("Pipeline terminated: captured=%d detected=%d rendered=%d detectErrors=%d discarded=%d",
		s.Captured, s.Detected, s.Rendered, s.DetectErrors, s.Discarded)
}

// RequestStop triggers the two-phase shutdown from any goroutine: raise
// the cancellation flag so loops stop taking new work, then close both
// queues so workers blocked inside Put or Get wake up. Idempotent.
func (p *Pipeline) RequestStop() {
	p.stop.Set()
	p.frames.Close()
	p.processed.Close()
}

// Stopping reports whether shutdown has been requested.
func (p *Pipeline) Stopping() bool {
	return p.stop.IsSet()
}

// capture pulls frames from the source into the frame queue until the
// source ends, the queue is closed under it, or stop is requested.
// Whatever the exit reason, it closes its output queue so inference
// eventually sees end-of-stream instead of blocking forever.
func (p *Pipeline) capture() {
	defer p.frames.Close()

	for !p.stop.IsSet() {
		img, err := p.src.NextFrame()
		if errors.Is(err, source.ErrEndOfStream) {
			log.Infof("Capture: end of stream after %d frames", atomic.LoadUint64(&p.captured))
			return
		}
		if err != nil {
			// A single glitched read is recoverable; skip the frame.
			atomic.AddUint64(&p.readErrors, 1)
			metricReadErrors.Inc()
			log.Warnf("Capture: dropping unreadable frame: %v", err)
			continue
		}

		if !p.frames.Put(img) {
			// Queue closed by shutdown; the frame was not enqueued and
			// is still ours to release.
			img.Release()
			atomic.AddUint64(&p.discarded, 1)
			return
		}
		atomic.AddUint64(&p.captured, 1)
		metricCaptured.Inc()
		metricFrameQueueDepth.Set(float64(p.frames.Len()))
	}
}

// inference drains the frame queue through the detector into the
// processed queue. Detector failures drop only the offending frame.
func (p *Pipeline) inference() {
	defer p.processed.Close()

	for !p.stop.IsSet() {
		img, ok := p.frames.Get()
		if !ok {
			return
		}

		dets, err := p.det.Detect(img)
		if err != nil {
			atomic.AddUint64(&p.detectErrors, 1)
			metricDetectErrors.Inc()
			log.Errorf("Inference: detect failed for frame %d: %v", img.Seq, err)
			img.Release()
			continue
		}

		if !p.processed.Put(detected{img: img, dets: dets}) {
			img.Release()
			atomic.AddUint64(&p.discarded, 1)
			return
		}
		atomic.AddUint64(&p.detectedCount, 1)
		metricDetected.Inc()
		metricProcessedQueueDepth.Set(float64(p.processed.Len()))
	}
}

// render drains the processed queue through the renderer. It owns the
// user-facing quit: on QuitRequested it performs the full two-phase
// stop, closing both queues, because capture may be blocked in Put on
// the frame queue and inference in Put or Get on either queue.
func (p *Pipeline) render() {
	for !p.stop.IsSet() {
		it, ok := p.processed.Get()
		if !ok {
			return
		}

		p.rend.Annotate(it.img, it.dets)
		p.rend.Present(it.img)
		it.img.Release()
		atomic.AddUint64(&p.rendered, 1)
		metricRendered.Inc()

		if p.rend.QuitRequested() {
			log.Infof("Render: quit requested")
			p.RequestStop()
			return
		}
	}
}
