package notify

import (
	"github.com/davecgh/go-spew/spew"
	log "github.com/sirupsen/logrus"

	"detectcam/video"
	"detectcam/video/process"
)

// Notification is sent to all Listeners when a clip starts on a
// sufficiently confident detection.
type Notification struct {
	TimeString string
	ClipID     string
	Detection  process.Detection
}

type Listener interface {
	Notify(n *Notification) error
}

// Options gate notifications. Returned by a getter so values follow
// config hot reloads.
type Options struct {
	// ConfidenceThreshold below which a clip records silently.
	ConfidenceThreshold float32

	// QuietHoursStart/End suppress notifications outside
	// [Start, End) local hours. Equal values disable quiet hours.
	QuietHoursStart int
	QuietHoursEnd   int
}

// Notifier fans clip events out to listeners, one notification per
// clip at most. It implements video.Events and is only called from the
// recorder goroutine.
type Notifier struct {
	Listeners []Listener
	Options   func() Options
}

// ClipStarted is invoked when the recorder opens a clip.
func (n *Notifier) ClipStarted(r *video.VideoRecord, dets process.Detections) {
	best, ok := dets.Best()
	if !ok {
		// Manual trigger; nothing to announce.
		return
	}

	opts := n.Options()
	if best.Confidence < opts.ConfidenceThreshold {
		return
	}
	h := r.Time.Hour()
	if opts.QuietHoursStart != opts.QuietHoursEnd &&
		(h < opts.QuietHoursStart || h >= opts.QuietHoursEnd) {
		log.Infof("Would send notification for %v, but currently in quiet hours", r.ID)
		return
	}

	notification := &Notification{
		TimeString: r.Time.Format("3:04 PM"),
		ClipID:     r.ID,
		Detection:  best,
	}
	log.Infof("Sending notification: %v", spew.Sdump(notification))
	for _, l := range n.Listeners {
		go func(l Listener) {
			if err := l.Notify(notification); err != nil {
				log.Errorf("Failed to send notification: %v", err)
			}
		}(l)
	}
}

// ClipStopped is invoked when the recorder finishes a clip.
func (n *Notifier) ClipStopped(r *video.VideoRecord) {}
