package process

import (
	"fmt"
	"image"
	"time"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"detectcam/video/source"
)

// inputSize is the square network input expected by the exported ONNX
// models (YOLOv8/v11 family).
const inputSize = 640

// YOLOOptions configure a YOLODetector.
type YOLOOptions struct {
	ModelPath  string
	LabelsPath string

	// UseCUDA selects the CUDA DNN backend; otherwise inference runs
	// on CPU.
	UseCUDA bool

	// ConfidenceThreshold discards detections below it.
	ConfidenceThreshold float32

	// NMSThreshold is the IoU threshold for non-maximum suppression.
	NMSThreshold float32
}

// YOLODetector runs an ONNX-exported YOLO model through OpenCV's DNN
// module. Not safe for concurrent Detect calls; the pipeline has a
// single inference stage, so none are made.
type YOLODetector struct {
	net    gocv.Net
	labels []string
	opts   YOLOOptions

	out2d gocv.Mat
}

// NewYOLODetector loads the model and labels. Errors here are startup
// errors; the pipeline should not be run without a working detector.
func NewYOLODetector(opts YOLOOptions) (*YOLODetector, error) {
	labels, err := LoadLabels(opts.LabelsPath)
	if err != nil {
		return nil, fmt.Errorf("load labels: %w", err)
	}

	net := gocv.ReadNetFromONNX(opts.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to read model from %v", opts.ModelPath)
	}

	if opts.UseCUDA {
		net.SetPreferableBackend(gocv.NetBackendCUDA)
		net.SetPreferableTarget(gocv.NetTargetCUDA)
		log.Infof("YOLO inference on CUDA backend")
	} else {
		net.SetPreferableBackend(gocv.NetBackendDefault)
		net.SetPreferableTarget(gocv.NetTargetCPU)
		log.Infof("YOLO inference on CPU")
	}

	return &YOLODetector{
		net:    net,
		labels: labels,
		opts:   opts,
		out2d:  gocv.NewMat(),
	}, nil
}

// Detect runs one frame through the network and returns thresholded,
// NMS-filtered detections.
func (y *YOLODetector) Detect(img source.Image) (Detections, error) {
	if img.Mat.Empty() {
		return nil, fmt.Errorf("empty frame %d", img.Seq)
	}

	start := time.Now()

	blob := gocv.BlobFromImage(img.Mat, 1.0/255.0,
		image.Point{X: inputSize, Y: inputSize},
		gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	y.net.SetInput(blob, "")
	out := y.net.Forward("")
	defer out.Close()

	dets, err := y.decode(out, img.Mat.Cols(), img.Mat.Rows())
	if err != nil {
		return nil, err
	}

	log.Debugf("Frame %d: %d detections in %v", img.Seq, len(dets), time.Since(start))
	return dets, nil
}

// decode interprets the [1, 4+classes, boxes] output layout: rows are
// cx, cy, w, h followed by one score per class.
func (y *YOLODetector) decode(out gocv.Mat, frameW, frameH int) (Detections, error) {
	sizes := out.Size()
	if len(sizes) != 3 || sizes[1] < 5 {
		return nil, fmt.Errorf("unexpected model output shape %v", sizes)
	}
	attrs, boxes := sizes[1], sizes[2]
	classes := attrs - 4
	if classes > len(y.labels) {
		return nil, fmt.Errorf("model has %d classes but %d labels loaded", classes, len(y.labels))
	}

	flat := out.Reshape(1, attrs)
	defer flat.Close()
	gocv.Transpose(flat, &y.out2d)

	sx := float32(frameW) / float32(inputSize)
	sy := float32(frameH) / float32(inputSize)

	var rects []image.Rectangle
	var scores []float32
	var classIDs []int

	for r := 0; r < boxes; r++ {
		best := float32(0)
		bestClass := 0
		for c := 0; c < classes; c++ {
			if s := y.out2d.GetFloatAt(r, 4+c); s > best {
				best = s
				bestClass = c
			}
		}
		if best < y.opts.ConfidenceThreshold {
			continue
		}

		cx := y.out2d.GetFloatAt(r, 0)
		cy := y.out2d.GetFloatAt(r, 1)
		w := y.out2d.GetFloatAt(r, 2)
		h := y.out2d.GetFloatAt(r, 3)

		rects = append(rects, image.Rect(
			int((cx-w/2)*sx), int((cy-h/2)*sy),
			int((cx+w/2)*sx), int((cy+h/2)*sy),
		))
		scores = append(scores, best)
		classIDs = append(classIDs, bestClass)
	}

	if len(rects) == 0 {
		return nil, nil
	}

	keep := gocv.NMSBoxes(rects, scores, y.opts.ConfidenceThreshold, y.opts.NMSThreshold)

	var dets Detections
	bounds := image.Rect(0, 0, frameW, frameH)
	for _, idx := range keep {
		dets = append(dets, Detection{
			Box:        rects[idx].Intersect(bounds),
			ClassID:    classIDs[idx],
			Class:      y.labels[classIDs[idx]],
			Confidence: scores[idx],
		})
	}
	return dets, nil
}

func (y *YOLODetector) Close() {
	y.net.Close()
	y.out2d.Close()
}
