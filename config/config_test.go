package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "detectcam.json")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestConfigDefaults(t *testing.T) {
	path := writeConfig(t, `{"URI": "/dev/video0"}`)

	c, err := configFromFile(path)
	if err != nil {
		t.Fatalf("configFromFile failed: %v", err)
	}
	if c.URI != "/dev/video0" {
		t.Errorf("URI = %q", c.URI)
	}
	if c.CameraName != "Camera" {
		t.Errorf("CameraName default = %q", c.CameraName)
	}
	if c.QueueCapacity != 2 {
		t.Errorf("QueueCapacity default = %d", c.QueueCapacity)
	}
	if c.ConfidenceThreshold != 0.4 || c.NMSThreshold != 0.45 {
		t.Errorf("threshold defaults = %v, %v", c.ConfidenceThreshold, c.NMSThreshold)
	}
	if c.RecordTimeSec != 20 || c.MaxRecordTimeSec != 300 {
		t.Errorf("record time defaults = %v, %v", c.RecordTimeSec, c.MaxRecordTimeSec)
	}
}

func TestConfigOverrides(t *testing.T) {
	path := writeConfig(t, `{
		"URI": "rtsp://camera.local/stream",
		"CameraName": "Driveway",
		"QueueCapacity": 8,
		"TriggerThreshold": 0.75,
		"EnableWindow": true
	}`)

	c, err := configFromFile(path)
	if err != nil {
		t.Fatalf("configFromFile failed: %v", err)
	}
	if c.CameraName != "Driveway" {
		t.Errorf("CameraName = %q", c.CameraName)
	}
	if c.QueueCapacity != 8 {
		t.Errorf("QueueCapacity = %d", c.QueueCapacity)
	}
	if c.TriggerThreshold != 0.75 {
		t.Errorf("TriggerThreshold = %v", c.TriggerThreshold)
	}
	if !c.EnableWindow {
		t.Error("EnableWindow not set")
	}
}

func TestConfigBadFile(t *testing.T) {
	if _, err := configFromFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("configFromFile accepted a missing file")
	}

	path := writeConfig(t, `{not json`)
	if _, err := configFromFile(path); err == nil {
		t.Error("configFromFile accepted malformed JSON")
	}
}
