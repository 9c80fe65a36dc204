package pipeline

import (
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"testing"

	"gocv.io/x/gocv"

	"detectcam/video/process"
	"detectcam/video/source"
)

// fakeSource delivers up to limit frames, then end of stream. A limit
// of zero means endless.
type fakeSource struct {
	limit   uint64
	created uint64
	failOn  map[uint64]bool
}

func (s *fakeSource) NextFrame() (source.Image, error) {
	next := s.created + 1
	if s.limit > 0 && next > s.limit {
		return source.Image{}, source.ErrEndOfStream
	}
	s.created = next
	if s.failOn[next] {
		return source.Image{}, fmt.Errorf("glitched read for frame %d", next)
	}
	return source.Image{
		Mat:  gocv.NewMat(),
		Time: time.Now(),
		Seq:  next,
	}, nil
}

func (s *fakeSource) Size() image.Point { return image.Point{X: 64, Y: 48} }
func (s *fakeSource) Close()            {}

// fakeDetector returns one detection per frame and fails for the
// sequence numbers in failOn.
type fakeDetector struct {
	failOn map[uint64]bool
}

func (d *fakeDetector) Detect(img source.Image) (process.Detections, error) {
	if d.failOn[img.Seq] {
		return nil, errors.New("model exploded")
	}
	return process.Detections{{Class: "person", Confidence: 0.9}}, nil
}

func (d *fakeDetector) Close() {}

// fakeRenderer records the order frames arrive in and can request quit
// after a fixed number of presented frames.
type fakeRenderer struct {
	mu        sync.Mutex
	presented []uint64
	delay     time.Duration
	quitAfter int
	quit      bool
}

func (r *fakeRenderer) Annotate(img source.Image, dets process.Detections) {}

func (r *fakeRenderer) Present(img source.Image) {
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.presented = append(r.presented, img.Seq)
	if r.quitAfter > 0 && len(r.presented) >= r.quitAfter {
		r.quit = true
	}
}

func (r *fakeRenderer) QuitRequested() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.quit
}

func (r *fakeRenderer) Close() {}

func (r *fakeRenderer) seqs() []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uint64(nil), r.presented...)
}

func runWithTimeout(t *testing.T, p *Pipeline) {
	t.Helper()
	done := make(chan bool)
	go func() {
		p.Run()
		done <- true
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("pipeline did not terminate")
	}
}

// TestRunToCompletion drains a finite source: every frame reaches the
// renderer, in capture order, then all stages exit on end of stream.
func TestRunToCompletion(t *testing.T) {
	src := &fakeSource{limit: 20}
	rend := &fakeRenderer{}
	p, err := New(Config{}, src, &fakeDetector{}, rend)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	runWithTimeout(t, p)

	got := rend.seqs()
	if len(got) != 20 {
		t.Fatalf("rendered %d frames, want 20", len(got))
	}
	for i, seq := range got {
		if seq != uint64(i+1) {
			t.Errorf("presented[%d] = %d, want %d", i, seq, i+1)
		}
	}

	s := p.Stats()
	if s.Captured != 20 || s.Rendered != 20 || s.Discarded != 0 {
		t.Errorf("stats = %+v, want 20 captured, 20 rendered, 0 discarded", s)
	}
}

// TestDetectorFailureIsolation verifies a per-frame detector error
// drops only that frame and the pipeline runs to normal completion.
func TestDetectorFailureIsolation(t *testing.T) {
	src := &fakeSource{limit: 5}
	det := &fakeDetector{failOn: map[uint64]bool{3: true}}
	rend := &fakeRenderer{}
	p, err := New(Config{}, src, det, rend)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	runWithTimeout(t, p)

	want := []uint64{1, 2, 4, 5}
	got := rend.seqs()
	if len(got) != len(want) {
		t.Fatalf("rendered %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("rendered %v, want %v", got, want)
		}
	}

	s := p.Stats()
	if s.DetectErrors != 1 {
		t.Errorf("DetectErrors = %d, want 1", s.DetectErrors)
	}
}

// TestTransientReadErrorSkipped verifies a failed source read is
// skipped without ending the stream.
func TestTransientReadErrorSkipped(t *testing.T) {
	src := &fakeSource{limit: 4, failOn: map[uint64]bool{2: true}}
	rend := &fakeRenderer{}
	p, err := New(Config{}, src, &fakeDetector{}, rend)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	runWithTimeout(t, p)

	if got := rend.seqs(); len(got) != 3 {
		t.Errorf("rendered %v, want frames 1,3,4", got)
	}
	if s := p.Stats(); s.ReadErrors != 1 {
		t.Errorf("ReadErrors = %d, want 1", s.ReadErrors)
	}
}

// TestQuitUnblocksAllStages verifies the render-side quit: with an
// endless source and a slow renderer (so the upstream queues are full
// and capture is blocked inside Put), a quit terminates every worker.
func TestQuitUnblocksAllStages(t *testing.T) {
	src := &fakeSource{}
	rend := &fakeRenderer{delay: 20 * time.Millisecond, quitAfter: 3}
	p, err := New(Config{QueueCapacity: 2}, src, &fakeDetector{}, rend)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	runWithTimeout(t, p)

	if !p.Stopping() {
		t.Error("pipeline not marked stopping after quit")
	}
	if got := len(rend.seqs()); got < 3 {
		t.Errorf("rendered %d frames before quit, want at least 3", got)
	}
}

// TestRequestStopFromOutside verifies an external caller (e.g. a
// signal handler) can terminate a running pipeline.
func TestRequestStopFromOutside(t *testing.T) {
	src := &fakeSource{}
	rend := &fakeRenderer{delay: 5 * time.Millisecond}
	p, err := New(Config{}, src, &fakeDetector{}, rend)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	go func() {
		time.Sleep(100 * time.Millisecond)
		p.RequestStop()
	}()
	runWithTimeout(t, p)
}

// TestFrameAccounting verifies the no-silent-loss invariant: every
// frame the source produced is rendered, dropped on a detect error, or
// counted as discarded by shutdown.
func TestFrameAccounting(t *testing.T) {
	src := &fakeSource{}
	det := &fakeDetector{failOn: map[uint64]bool{2: true, 7: true}}
	rend := &fakeRenderer{delay: 2 * time.Millisecond, quitAfter: 10}
	p, err := New(Config{QueueCapacity: 2}, src, det, rend)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	runWithTimeout(t, p)

	s := p.Stats()
	accounted := s.Rendered + s.DetectErrors + s.Discarded
	if accounted != src.created {
		t.Errorf("%d frames produced but %d accounted (%+v)", src.created, accounted, s)
	}
}

// TestNewRejectsMissingCollaborators verifies startup errors are
// reported before any worker starts.
func TestNewRejectsMissingCollaborators(t *testing.T) {
	if _, err := New(Config{}, nil, &fakeDetector{}, &fakeRenderer{}); !errors.Is(err, ErrNoSource) {
		t.Errorf("New without source = %v, want ErrNoSource", err)
	}
	if _, err := New(Config{}, &fakeSource{}, nil, &fakeRenderer{}); !errors.Is(err, ErrNoDetector) {
		t.Errorf("New without detector = %v, want ErrNoDetector", err)
	}
	if _, err := New(Config{}, &fakeSource{}, &fakeDetector{}, nil); !errors.Is(err, ErrNoRenderer) {
		t.Errorf("New without renderer = %v, want ErrNoRenderer", err)
	}
}
