// Package floor serializes who holds the conversational floor on one
// call: the system (SPEAKING) or the caller (LISTENING). The system
// speaks first, so a fresh controller starts in SPEAKING.
package floor

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type State string

const (
	StateSpeaking  State = "SPEAKING"
	StateListening State = "LISTENING"
)

var metricDroppedInbound = promauto.NewCounter(prometheus.CounterOpts{
	Name: "floor_dropped_inbound_total",
	Help: "Inbound user frames discarded while the system held the floor",
})

// Controller guards the SPEAKING/LISTENING flag. Response delivery can
// await (synthesis, transmission) while control frames keep arriving on
// the same connection, so the flag sits behind a mutex. The flag is
// raised before generation starts and lowered only after the full
// payload went out; anything inbound in between is dropped, never
// buffered. Dropping is the deliberate policy: it keeps the system from
// answering its own audio or processing cross-talk.
type Controller struct {
	mu      sync.Mutex
	state   State
	dropped int64
}

// New returns a controller holding the floor: the opening greeting is
// always the first transmission.
func New() *Controller {
	return &Controller{state: StateSpeaking}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// BeginSpeaking takes the floor for the system. Call before starting
// response generation, not after.
func (c *Controller) BeginSpeaking() {
	c.mu.Lock()
	c.state = StateSpeaking
	c.mu.Unlock()
}

// FinishSpeaking yields the floor back to the caller. Call only once
// the full response payload has been transmitted.
func (c *Controller) FinishSpeaking() {
	c.mu.Lock()
	c.state = StateListening
	c.mu.Unlock()
}

// Admit reports whether an inbound user frame may be processed. While
// the system holds the floor the frame is counted and discarded.
func (c *Controller) Admit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateSpeaking {
		c.dropped++
		metricDroppedInbound.Inc()
		return false
	}
	return true
}

// Dropped returns how many inbound frames were discarded so far.
func (c *Controller) Dropped() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}
