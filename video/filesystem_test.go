package video

import (
	"os"
	"testing"
	"time"

	"detectcam/video/process"
)

func newTestFS(t *testing.T, maxSize int64) *Filesystem {
	t.Helper()
	fs, err := NewFilesystem(FilesystemOptions{
		BasePath: t.TempDir(),
		MaxSize:  maxSize,
	})
	if err != nil {
		t.Fatalf("NewFilesystem failed: %v", err)
	}
	return fs
}

// writeClip fakes a finished recording on disk.
func writeClip(t *testing.T, fs *Filesystem, at time.Time, videoBytes int) *VideoRecord {
	t.Helper()
	r := fs.NewRecord(at)
	if err := os.WriteFile(r.VideoPath, make([]byte, videoBytes), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(r.ThumbPath, []byte("jpg"), 0644); err != nil {
		t.Fatal(err)
	}
	meta := &ClipMeta{
		Scores:      process.ClassScores{"person": 0.95},
		Frames:      30,
		DurationSec: 2,
	}
	if err := r.WriteMeta(meta); err != nil {
		t.Fatal(err)
	}
	return r
}

func TestFilesystemListsClips(t *testing.T) {
	fs := newTestFS(t, 0)

	t0 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	writeClip(t, fs, t0, 10)
	writeClip(t, fs, t0.Add(time.Minute), 10)
	fs.Updated()

	records := fs.GetRecords()
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	// Newest first.
	if !records[0].Time.After(records[1].Time) {
		t.Error("records not sorted newest first")
	}

	r := records[1]
	if !r.HaveVideo || !r.HaveThumb {
		t.Errorf("record %v missing files: %+v", r.ID, r)
	}
	if r.Meta == nil || r.Meta.Scores["person"] != 0.95 {
		t.Errorf("record %v metadata not loaded: %+v", r.ID, r.Meta)
	}

	if got := fs.GetRecordByID(r.ID); got != r {
		t.Errorf("GetRecordByID(%v) = %v", r.ID, got)
	}
	if got := fs.GetRecordByID("bogus"); got != nil {
		t.Errorf("GetRecordByID(bogus) = %v, want nil", got)
	}
}

func TestFilesystemPrunesOldest(t *testing.T) {
	fs := newTestFS(t, 2500)

	t0 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	oldest := writeClip(t, fs, t0, 1000)
	writeClip(t, fs, t0.Add(time.Minute), 1000)
	writeClip(t, fs, t0.Add(2*time.Minute), 1000)
	fs.Updated()

	records := fs.GetRecords()
	if len(records) != 2 {
		t.Fatalf("got %d records after prune, want 2", len(records))
	}
	if fs.GetRecordByID(oldest.ID) != nil {
		t.Error("oldest record survived pruning")
	}
	if _, err := os.Stat(oldest.VideoPath); !os.IsNotExist(err) {
		t.Error("oldest clip file still on disk")
	}
}

func TestFilesystemNotifiesListeners(t *testing.T) {
	fs := newTestFS(t, 0)

	l := &countingListener{}
	fs.Listeners = append(fs.Listeners, l)

	fs.Updated()
	fs.Updated()
	if l.count != 2 {
		t.Errorf("listener notified %d times, want 2", l.count)
	}
}

type countingListener struct {
	count int
}

func (l *countingListener) FilesystemUpdated() {
	l.count++
}
