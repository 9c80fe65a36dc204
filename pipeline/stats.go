package pipeline

import (
	"sync/atomic"
)

// Stats is a point-in-time snapshot of pipeline counters. Every frame
// the source delivered is in exactly one of Rendered, DetectErrors or
// Discarded once the pipeline has terminated.
type Stats struct {
	Captured     uint64 `json:"captured"`
	Detected     uint64 `json:"detected"`
	Rendered     uint64 `json:"rendered"`
	DetectErrors uint64 `json:"detect_errors"`
	ReadErrors   uint64 `json:"read_errors"`
	Discarded    uint64 `json:"discarded"`

	FrameQueueLen     int `json:"frame_queue_len"`
	ProcessedQueueLen int `json:"processed_queue_len"`
}

func (p *Pipeline) Stats() Stats {
	return Stats{
		Captured:     atomic.LoadUint64(&p.captured),
		Detected:     atomic.LoadUint64(&p.detectedCount),
		Rendered:     atomic.LoadUint64(&p.rendered),
		DetectErrors: atomic.LoadUint64(&p.detectErrors),
		ReadErrors:   atomic.LoadUint64(&p.readErrors),
		Discarded:    atomic.LoadUint64(&p.discarded),

		FrameQueueLen:     p.frames.Len(),
		ProcessedQueueLen: p.processed.Len(),
	}
}
