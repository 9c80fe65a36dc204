package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricCaptured = promauto.NewCounter(prometheus.CounterOpts{
		Name: "detectcam_frames_captured_total",
		Help: "Frames accepted into the pipeline from the capture source.",
	})
	metricDetected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "detectcam_frames_detected_total",
		Help: "Frames that completed detection and entered the processed queue.",
	})
	metricRendered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "detectcam_frames_rendered_total",
		Help: "Frames annotated and presented by the render stage.",
	})
	metricDetectErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "detectcam_detect_errors_total",
		Help: "Per-frame detector failures; the frame is dropped, the pipeline continues.",
	})
	metricReadErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "detectcam_read_errors_total",
		Help: "Transient capture read failures that were skipped.",
	})
	metricFrameQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "detectcam_frame_queue_depth",
		Help: "Frames buffered between capture and inference.",
	})
	metricProcessedQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "detectcam_processed_queue_depth",
		Help: "Frames buffered between inference and render.",
	})
)
