package process

import (
	"fmt"
	"image"
	"sort"
	"strings"

	"detectcam/video/source"
)

// Detection is a single recognized object within one frame.
type Detection struct {
	Box        image.Rectangle
	ClassID    int
	Class      string
	Confidence float32
}

// Detections is the ordered result of running a detector on one frame.
type Detections []Detection

// Best returns the highest-confidence detection.
func (d Detections) Best() (Detection, bool) {
	if len(d) == 0 {
		return Detection{}, false
	}
	best := d[0]
	for _, det := range d[1:] {
		if det.Confidence > best.Confidence {
			best = det
		}
	}
	return best, true
}

// Detector turns a frame into detections. Detect may fail per call;
// such failures are recoverable and the caller skips the frame. Detect
// must not retain the image.
type Detector interface {
	Detect(img source.Image) (Detections, error)
	Close()
}

// ClassScores accumulates the best confidence seen per class across
// many frames, e.g. over the lifetime of one recorded clip.
type ClassScores map[string]float32

func (s ClassScores) Observe(d Detections) {
	for _, det := range d {
		if s[det.Class] < det.Confidence {
			s[det.Class] = det.Confidence
		}
	}
}

// Sorted returns the accumulated classes ordered by confidence.
func (s ClassScores) Sorted() Detections {
	var ds Detections
	for k, v := range s {
		ds = append(ds, Detection{Class: k, Confidence: v})
	}
	sort.Slice(ds, func(i, j int) bool {
		return ds[i].Confidence > ds[j].Confidence
	})
	return ds
}

func (s ClassScores) DebugString() string {
	var parts []string
	for _, d := range s.Sorted() {
		parts = append(parts, fmt.Sprintf("%s: %.2f", d.Class, d.Confidence))
	}
	return strings.Join(parts, ", ")
}
