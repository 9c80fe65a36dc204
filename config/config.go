package config

// Config is the JSON configuration file. Threshold and notification
// fields take effect on hot reload; the rest require a restart.
type Config struct {
	// URI is the capture source: a device path ("/dev/video0"), a
	// camera index ("0"), or a video file.
	URI        string
	CameraName string

	// Requested capture properties for live devices.
	CaptureWidth  int
	CaptureHeight int
	CaptureFPS    int

	// Detector settings.
	ModelPath           string
	LabelsPath          string
	UseCUDA             bool
	ConfidenceThreshold float32
	NMSThreshold        float32

	// QueueCapacity bounds each pipeline hand-off queue.
	QueueCapacity int

	// EnableWindow shows the annotated feed in a local window. The
	// MJPEG streams work either way.
	EnableWindow bool

	// Clip recording.
	ClipsPath        string
	ClipsMaxSize     int64
	BufferTimeSec    int
	RecordTimeSec    int
	MaxRecordTimeSec int
	TriggerThreshold float32

	// Notifications.
	NotifyConfidence float32
	QuietHoursStart  int
	QuietHoursEnd    int
	PushSubscriber   string

	// DatabaseDSN enables web push subscriptions when set (mysql DSN).
	DatabaseDSN string
}

func (c *Config) applyDefaults() {
	if c.CameraName == "" {
		c.CameraName = "Camera"
	}
	if c.ConfidenceThreshold == 0 {
		c.ConfidenceThreshold = 0.4
	}
	if c.NMSThreshold == 0 {
		c.NMSThreshold = 0.45
	}
	if c.QueueCapacity == 0 {
		c.QueueCapacity = 2
	}
	if c.ClipsPath == "" {
		c.ClipsPath = "/var/lib/detectcam/clips"
	}
	if c.BufferTimeSec == 0 {
		c.BufferTimeSec = 2
	}
	if c.RecordTimeSec == 0 {
		c.RecordTimeSec = 20
	}
	if c.MaxRecordTimeSec == 0 {
		c.MaxRecordTimeSec = 300
	}
	if c.TriggerThreshold == 0 {
		c.TriggerThreshold = 0.6
	}
	if c.NotifyConfidence == 0 {
		c.NotifyConfidence = 0.9
	}
}
