package util

import (
	"fmt"
	"os"
	"os/exec"
)

// LocateFFmpeg finds the ffmpeg binary used for writing clips. The
// FFMPEG environment variable takes priority over $PATH.
func LocateFFmpeg() (string, error) {
	if p := os.Getenv("FFMPEG"); p != "" {
		if _, err := os.Stat(p); err != nil {
			return "", fmt.Errorf("FFMPEG env points to %q: %w", p, err)
		}
		return p, nil
	}
	p, err := exec.LookPath("ffmpeg")
	if err != nil {
		return "", err
	}
	return p, nil
}
