package video

import (
	"time"

	"detectcam/video/sink"
	"detectcam/video/source"
)

// Buffer keeps a rolling window of recent frames so a triggered clip
// can include video from just before the trigger. Frames are copied in;
// the buffer owns its Mats through a private pool.
type Buffer struct {
	MaxAge time.Duration

	// buffer holds frame history, oldest first.
	buffer []source.Image
	pool   *source.MatPool

	input    chan source.Image
	inputack chan bool
	flush    chan sink.Sink
	flushack chan bool
	close    chan chan bool
}

func NewBuffer(maxAge time.Duration) *Buffer {
	b := &Buffer{
		MaxAge: maxAge,
		pool:   source.NewMatPool(),

		input:    make(chan source.Image),
		inputack: make(chan bool),
		flush:    make(chan sink.Sink),
		flushack: make(chan bool),
		close:    make(chan chan bool),
	}
	go b.loop()
	return b
}

func (b *Buffer) loop() {
	for {
		select {
		case in := <-b.input:
			b.buffer = append(b.buffer, in)
			// Expire old frames from the head.
			for len(b.buffer) > 0 && in.Time.Sub(b.buffer[0].Time) >= b.MaxAge {
				b.buffer[0].Release()
				b.buffer = b.buffer[1:]
			}
			b.inputack <- true

		case s := <-b.flush:
			for _, img := range b.buffer {
				s.Put(img)
			}
			b.flushack <- true

		case c := <-b.close:
			for _, img := range b.buffer {
				img.Release()
			}
			b.buffer = nil
			b.pool.Close()
			c <- true
			return
		}
	}
}

// Put copies the frame into the history window.
func (b *Buffer) Put(input source.Image) {
	m := b.pool.Take()
	input.Mat.CopyTo(&m)
	b.input <- source.NewPooledImage(m, input.Time, input.Seq, b.pool)
	<-b.inputack
}

// FlushToSink writes the buffered history, oldest first, into the sink.
// The buffer retains its frames.
func (b *Buffer) FlushToSink(s sink.Sink) {
	b.flush <- s
	<-b.flushack
}

func (b *Buffer) Close() {
	c := make(chan bool)
	b.close <- c
	<-c
}
