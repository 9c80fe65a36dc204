package serve

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"detectcam/notify"
	"detectcam/pipeline"
)

const (
	// Time allowed to write a message to the client.
	writeWait  = 10 * time.Second
	pingPeriod = 10 * time.Second
)

// statusMessage is pushed to every connected client when something
// changes: pipeline counters, a new clip, or a notification.
type statusMessage struct {
	Stats pipeline.Stats `json:"stats"`
	Event string         `json:"event"`
}

// StatusUpdater pushes live pipeline status over websockets. It
// implements video.Listener (clip set changed) and notify.Listener
// (notification sent); both just flag an update.
type StatusUpdater struct {
	stats func() pipeline.Stats

	upgrader websocket.Upgrader
	cs       map[chan string]bool
	addc     chan chan string
	delc     chan chan string
	notify   chan string
}

func NewStatusUpdater(stats func() pipeline.Stats) *StatusUpdater {
	u := &StatusUpdater{
		stats: stats,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		cs:     make(map[chan string]bool),
		addc:   make(chan chan string),
		delc:   make(chan chan string),
		notify: make(chan string),
	}
	go func() {
		for {
			select {
			case c := <-u.addc:
				u.cs[c] = true
			case c := <-u.delc:
				delete(u.cs, c)
			case event := <-u.notify:
				for c := range u.cs {
					select {
					case c <- event:
					default:
						// Skip clients mid-write.
					}
				}
			}
		}
	}()
	return u
}

// Poke pushes the given event to all clients. Main drives a periodic
// stats tick through this.
func (u *StatusUpdater) Poke(event string) {
	u.notify <- event
}

// FilesystemUpdated implements video.Listener.
func (u *StatusUpdater) FilesystemUpdated() {
	u.notify <- "clips"
}

// Notify implements notify.Listener.
func (u *StatusUpdater) Notify(n *notify.Notification) error {
	u.notify <- "notification"
	return nil
}

func (u *StatusUpdater) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := u.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if _, ok := err.(websocket.HandshakeError); !ok {
			log.WithField("addr", r.RemoteAddr).Errorf("Websocket handshake failed for status stream: %v", err)
		}
		return
	}
	go u.serve(ws)
}

func (u *StatusUpdater) serve(ws *websocket.Conn) {
	clog := log.WithField("addr", ws.RemoteAddr())
	clog.Info("connected to status socket")
	defer func() {
		ws.Close()
		clog.Info("disconnected from status socket")
	}()

	pingTicker := time.NewTicker(pingPeriod)
	defer pingTicker.Stop()

	c := make(chan string, 1)
	u.addc <- c
	defer func() { u.delc <- c }()

	// Incoming messages are ignored, but the socket must be read to
	// process control frames.
	go func() {
		for {
			if _, _, err := ws.NextReader(); err != nil {
				ws.Close()
				return
			}
		}
	}()

	for {
		select {
		case event := <-c:
			msg, err := json.Marshal(&statusMessage{
				Stats: u.stats(),
				Event: event,
			})
			if err != nil {
				clog.Errorf("Failed to marshal status: %v", err)
				continue
			}
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-pingTicker.C:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				return
			}
		}
	}
}
