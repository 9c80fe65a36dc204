package video

import (
	log "github.com/sirupsen/logrus"

	"detectcam/video/process"
	"detectcam/video/sink"
	"detectcam/video/source"
)

// VideoSinkProducer creates the sink chain for one clip: an ffmpeg
// encoder behind FPS normalization, plus a thumbnail and a metadata
// sidecar when the clip closes.
type VideoSinkProducer struct {
	FFmpegOptions sink.FFmpegOptions
	Filesystem    *Filesystem
}

// ClipSink records one clip. Put frames, SetScores with the clip's
// accumulated detections, then Close.
type ClipSink struct {
	sink   sink.Sink
	record *VideoRecord
	p      *VideoSinkProducer

	scores process.ClassScores
	frames int
}

// New starts a clip triggered by the given frame, which also becomes
// the thumbnail. The frame is cloned; the caller keeps ownership.
func (p *VideoSinkProducer) New(trigger source.Image) *ClipSink {
	r := p.Filesystem.NewRecord(trigger.Time)

	thumb := trigger.Clone()
	go func() {
		defer thumb.Release()
		if err := process.WriteThumb(r.ThumbPath, thumb); err != nil {
			log.Errorf("Failed to write thumbnail for %v: %v", r.ID, err)
			return
		}
		log.Infof("Thumbnail written to %v", r.ThumbPath)
	}()

	var s sink.Sink
	s = sink.NewFFmpegSink(r.VideoPath, p.FFmpegOptions)
	// Clips must be constant FPS regardless of the camera's rate.
	s = sink.NewFPSNormalize(s, p.FFmpegOptions.FPS)

	return &ClipSink{
		sink:   s,
		record: r,
		p:      p,
		scores: make(process.ClassScores),
	}
}

func (c *ClipSink) Put(i source.Image) {
	c.sink.Put(i)
	c.frames++
}

// SetScores records the best per-class confidences observed during the
// clip, written to the metadata sidecar on Close.
func (c *ClipSink) SetScores(scores process.ClassScores) {
	c.scores = scores
}

func (c *ClipSink) Close() {
	c.sink.Close()

	meta := &ClipMeta{
		Scores:      c.scores,
		Frames:      c.frames,
		DurationSec: c.frames / c.p.FFmpegOptions.FPS,
	}
	if err := c.record.WriteMeta(meta); err != nil {
		log.Errorf("Failed to write metadata for %v: %v", c.record.ID, err)
	}
	log.Infof("Clip %v finished: %d frames, %v", c.record.ID, c.frames, c.scores.DebugString())

	c.p.Filesystem.Updated()
}
