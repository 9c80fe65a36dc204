package video

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"detectcam/video/process"
)

const (
	ExtVideo = "_video.mp4"
	ExtThumb = "_thumb.jpg"
	ExtMeta  = "_meta.json"

	// FileTimeLayout defines the format of clip identifiers and
	// filenames. See https://golang.org/src/time/format.go.
	FileTimeLayout = "20060102-150405-Z0700"
)

// ClipMeta is the JSON sidecar written next to each finished clip.
type ClipMeta struct {
	Scores      process.ClassScores `json:"scores"`
	Frames      int                 `json:"frames"`
	DurationSec int                 `json:"duration_sec"`
}

// VideoRecord is one recorded clip on disk.
type VideoRecord struct {
	ID   string
	Time time.Time

	VideoPath string
	ThumbPath string
	MetaPath  string

	HaveVideo bool
	HaveThumb bool
	Size      int64

	Meta *ClipMeta
}

// Listener is notified whenever the set of records changes.
type Listener interface {
	FilesystemUpdated()
}

// FilesystemOptions configure clip storage.
type FilesystemOptions struct {
	BasePath string

	// MaxSize bounds total bytes on disk; oldest clips are pruned
	// past it. Zero disables pruning.
	MaxSize int64
}

// Filesystem manages recorded clips under one directory.
type Filesystem struct {
	Listeners []Listener

	opts    FilesystemOptions
	records map[string]*VideoRecord

	l sync.Mutex
}

func NewFilesystem(opts FilesystemOptions) (*Filesystem, error) {
	if err := os.MkdirAll(opts.BasePath, 0755); err != nil {
		return nil, err
	}
	f := &Filesystem{
		opts:    opts,
		records: make(map[string]*VideoRecord),
	}
	if err := f.refresh(); err != nil {
		return nil, err
	}
	return f, nil
}

// NewRecord builds the paths for a clip triggered at t. The record
// becomes visible in listings once Updated is called.
func (f *Filesystem) NewRecord(t time.Time) *VideoRecord {
	id := t.Format(FileTimeLayout)
	base := filepath.Join(f.opts.BasePath, id)
	return &VideoRecord{
		ID:        id,
		Time:      t,
		VideoPath: base + ExtVideo,
		ThumbPath: base + ExtThumb,
		MetaPath:  base + ExtMeta,
	}
}

// WriteMeta persists the clip sidecar.
func (r *VideoRecord) WriteMeta(meta *ClipMeta) error {
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(r.MetaPath, b, 0644)
}

func readMeta(path string) *ClipMeta {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	meta := &ClipMeta{}
	if err := json.Unmarshal(b, meta); err != nil {
		log.Warnf("Unreadable clip metadata %v: %v", path, err)
		return nil
	}
	return meta
}

func (f *Filesystem) refresh() error {
	entries, err := os.ReadDir(f.opts.BasePath)
	if err != nil {
		return err
	}

	m := make(map[string]*VideoRecord)
	for _, e := range entries {
		b := e.Name()

		var ext string
		for _, s := range []string{ExtVideo, ExtThumb, ExtMeta} {
			if strings.HasSuffix(b, s) {
				ext = s
				break
			}
		}
		if ext == "" {
			continue
		}
		id := strings.TrimSuffix(b, ext)
		t, err := time.Parse(FileTimeLayout, id)
		if err != nil {
			continue
		}

		v := m[id]
		if v == nil {
			v = f.NewRecord(t)
			m[id] = v
		}

		info, err := e.Info()
		if err != nil {
			continue
		}

		switch ext {
		case ExtVideo:
			v.HaveVideo = true
			v.Size += info.Size()
		case ExtThumb:
			v.HaveThumb = true
			v.Size += info.Size()
		case ExtMeta:
			v.Meta = readMeta(filepath.Join(f.opts.BasePath, b))
		}
	}

	f.l.Lock()
	f.records = m
	f.l.Unlock()
	return nil
}

// GetRecords returns all records, newest first.
func (f *Filesystem) GetRecords() []*VideoRecord {
	f.l.Lock()
	defer f.l.Unlock()

	rs := make([]*VideoRecord, 0, len(f.records))
	for _, r := range f.records {
		rs = append(rs, r)
	}
	sort.Slice(rs, func(i, j int) bool {
		return rs[i].Time.After(rs[j].Time)
	})
	return rs
}

func (f *Filesystem) GetRecordByID(id string) *VideoRecord {
	f.l.Lock()
	defer f.l.Unlock()
	return f.records[id]
}

// TotalSize returns bytes used by all records.
func (f *Filesystem) TotalSize() int64 {
	f.l.Lock()
	defer f.l.Unlock()
	var sz int64
	for _, r := range f.records {
		sz += r.Size
	}
	return sz
}

// Updated rescans the directory, prunes past the size bound, and
// notifies listeners. Called after a clip finishes.
func (f *Filesystem) Updated() {
	if err := f.refresh(); err != nil {
		log.Errorf("Failed to refresh clip filesystem: %v", err)
		return
	}
	f.prune()
	for _, l := range f.Listeners {
		l.FilesystemUpdated()
	}
}

// prune removes oldest clips until total size fits under MaxSize.
func (f *Filesystem) prune() {
	if f.opts.MaxSize <= 0 {
		return
	}

	records := f.GetRecords()
	total := int64(0)
	for _, r := range records {
		total += r.Size
	}

	// Oldest last in the newest-first listing.
	for i := len(records) - 1; i >= 0 && total > f.opts.MaxSize; i-- {
		r := records[i]
		log.Infof("Pruning clip %v (%d bytes) to respect storage bound", r.ID, r.Size)
		for _, p := range []string{r.VideoPath, r.ThumbPath, r.MetaPath} {
			if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
				log.Warnf("Failed to remove %v: %v", p, err)
			}
		}
		total -= r.Size

		f.l.Lock()
		delete(f.records, r.ID)
		f.l.Unlock()
	}
}
