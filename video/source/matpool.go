package source

import (
	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// MatPool recycles Mats between the capture source and whoever releases
// frames downstream. All bookkeeping happens on a single goroutine, so
// Take and Return are safe from any thread.
type MatPool struct {
	take  chan chan gocv.Mat
	ret   chan gocv.Mat
	close chan chan bool

	allocated int
	available []gocv.Mat
}

// warnAllocations is the in-flight Mat count above which the pool
// starts complaining; the pipeline's bounded queues should keep the
// real number in the single digits, so growth past this means a leak.
const warnAllocations = 64

func NewMatPool() *MatPool {
	p := &MatPool{
		take:  make(chan chan gocv.Mat),
		ret:   make(chan gocv.Mat),
		close: make(chan chan bool),
	}
	go p.loop()
	return p
}

func (p *MatPool) loop() {
	closed := false
	for {
		select {
		case c := <-p.close:
			closed = true
			for _, m := range p.available {
				m.Close()
				p.allocated--
			}
			p.available = nil
			c <- true
			if p.allocated == 0 {
				return
			}
		case m := <-p.ret:
			if closed {
				m.Close()
				p.allocated--
				if p.allocated == 0 {
					return
				}
			} else {
				p.available = append(p.available, m)
			}
		case r := <-p.take:
			var m gocv.Mat
			if len(p.available) > 0 {
				m, p.available = p.available[0], p.available[1:]
			} else {
				m = gocv.NewMat()
				p.allocated++
				if p.allocated > warnAllocations {
					log.Warnf("MatPool has %d live allocations; a frame is probably not being released", p.allocated)
				}
			}
			r <- m
		}
	}
}

// Take hands out a Mat, reusing a returned one when possible.
func (p *MatPool) Take() gocv.Mat {
	r := make(chan gocv.Mat)
	p.take <- r
	return <-r
}

// Return gives a Mat back to the pool. After Close, returned Mats are
// freed instead of kept.
func (p *MatPool) Return(m gocv.Mat) {
	p.ret <- m
}

// Close frees idle Mats. Mats still out with frames are freed as they
// come back; the pool goroutine exits once the last one does.
func (p *MatPool) Close() {
	c := make(chan bool)
	p.close <- c
	<-c
}
