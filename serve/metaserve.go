package serve

import (
	"encoding/json"
	"net/http"

	"detectcam/video"
	"detectcam/video/process"
)

// MetaEntry is one clip in the listing.
type MetaEntry struct {
	ID        string
	Timestamp int64

	HaveVideo bool
	HaveThumb bool

	DurationSec int
	Scores      process.ClassScores
}

type MetaResponse struct {
	Items []*MetaEntry

	ItemsTotalSize  int64
	ItemsCount      int
	OldestTimestamp int64
}

func toMetaEntry(r *video.VideoRecord) *MetaEntry {
	me := &MetaEntry{
		ID:        r.ID,
		Timestamp: r.Time.Unix(),
		HaveVideo: r.HaveVideo,
		HaveThumb: r.HaveThumb,
	}
	if r.Meta != nil {
		me.DurationSec = r.Meta.DurationSec
		me.Scores = r.Meta.Scores
	}
	return me
}

// MetaServer lists recorded clips as JSON.
type MetaServer struct {
	FS *video.Filesystem
}

func (s *MetaServer) BuildResponse() *MetaResponse {
	records := s.FS.GetRecords()

	resp := &MetaResponse{}
	var sz int64
	for _, r := range records {
		resp.Items = append(resp.Items, toMetaEntry(r))
		sz += r.Size
		resp.OldestTimestamp = r.Time.Unix()
	}
	resp.ItemsTotalSize = sz
	resp.ItemsCount = len(records)
	return resp
}

func (s *MetaServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	js, err := json.Marshal(s.BuildResponse())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(js)
}
