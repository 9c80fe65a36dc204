package sink

import (
	"fmt"
	"net/http"
	"sync"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"detectcam/video/source"
)

// MJPEG multi-streaming, based on implementation by saljam:
// https://github.com/saljam/mjpeg/blob/master/stream.go

const boundaryWord = "MJPEGBOUNDARY"
const headerf = "\r\n" +
	"--" + boundaryWord + "\r\n" +
	"Content-Type: image/jpeg\r\n" +
	"Content-Length: %d\r\n" +
	"X-Timestamp: 0.000000\r\n" +
	"\r\n"

// MJPEGServer serves named MJPEG streams over HTTP, selected by the
// "name" form value. Listeners that cannot keep up skip frames; this
// side channel never applies backpressure to the pipeline.
type MJPEGServer struct {
	m map[string]*MJPEGStream

	lock sync.Mutex
}

func NewMJPEGServer() *MJPEGServer {
	return &MJPEGServer{
		m: make(map[string]*MJPEGStream),
	}
}

// NewStream registers a stream under the given name.
func (s *MJPEGServer) NewStream(name string) *MJPEGStream {
	s.lock.Lock()
	defer s.lock.Unlock()

	if _, ok := s.m[name]; ok {
		log.Panicf("An MJPEG stream named %q already exists", name)
	}

	ms := &MJPEGStream{
		name:   name,
		m:      make(map[chan []byte]bool),
		frame:  make([]byte, len(headerf)),
		parent: s,
	}

	s.m[name] = ms
	return ms
}

func (s *MJPEGServer) getStream(name string) *MJPEGStream {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.m[name]
}

// ServeHTTP implements http.Handler, serving multipart MJPEG.
func (s *MJPEGServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	name := r.Form.Get("name")
	if name == "" {
		http.Error(w, "missing name", http.StatusBadRequest)
		return
	}

	stream := s.getStream(name)
	if stream == nil {
		http.Error(w, "unknown stream name", http.StatusNotFound)
		return
	}

	clog := log.WithField("addr", r.RemoteAddr)
	clog.Infof("MJPEG stream connected to %q", name)
	w.Header().Add("Content-Type", "multipart/x-mixed-replace;boundary="+boundaryWord)

	c := make(chan []byte)
	stream.lock.Lock()
	stream.m[c] = true
	stream.lock.Unlock()

	for b := range c {
		if _, err := w.Write(b); err != nil {
			break
		}
	}

	stream.lock.Lock()
	delete(stream.m, c)
	stream.lock.Unlock()
	clog.Infof("MJPEG stream disconnected from %q", name)
}

// MJPEGStream is one named stream fed by Put.
type MJPEGStream struct {
	name  string
	m     map[chan []byte]bool
	frame []byte

	parent *MJPEGServer
	lock   sync.Mutex
}

func (s *MJPEGStream) empty() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.m) == 0
}

// Put encodes the frame and offers it to every connected listener.
// Listeners mid-write are skipped rather than waited on.
func (s *MJPEGStream) Put(input source.Image) {
	if s.empty() {
		// Nobody is listening; don't bother encoding.
		return
	}

	jpeg, err := gocv.IMEncode(".jpg", input.Mat)
	if err != nil {
		log.Errorf("Error encoding to JPG for MJPEG stream %q: %v", s.name, err)
		return
	}
	defer jpeg.Close()
	jb := jpeg.GetBytes()

	header := fmt.Sprintf(headerf, len(jb))
	if len(s.frame) < len(jb)+len(header) {
		s.frame = make([]byte, (len(jb)+len(header))*2)
	}

	copy(s.frame, header)
	copy(s.frame[len(header):], jb)

	s.lock.Lock()
	defer s.lock.Unlock()
	for c := range s.m {
		select {
		case c <- s.frame[:(len(header) + len(jb))]:
		default:
			// Skip listeners not ready for the next frame.
		}
	}
}

func (s *MJPEGStream) Close() {
	s.parent.lock.Lock()
	delete(s.parent.m, s.name)
	s.parent.lock.Unlock()

	s.lock.Lock()
	defer s.lock.Unlock()
	for c := range s.m {
		close(c)
	}
	s.m = make(map[chan []byte]bool)
}
