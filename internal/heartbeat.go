package internal

import (
	"sync"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/aleybovich/carrot-amqp/protocol"
)

// heartbeater sends a heartbeat every interval and watches for silence from the broker
type heartbeater struct {
	c        *Connection
	clock    clock.Clock
	interval time.Duration

	mu       sync.Mutex
	lastSeen time.Time

	stop chan struct{}
	done chan struct{}
}

func (c *Connection) startHeartbeat(seconds uint16) {
	c.stopHeartbeat()
	if seconds == 0 {
		return
	}

	hb := &heartbeater{
		c:        c,
		clock:    c.clock,
		interval: time.Duration(seconds) * time.Second,
		lastSeen: c.clock.Now(),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	c.mu.Lock()
	c.hb = hb
	c.mu.Unlock()

	c.log.Debug("Starting heartbeats every %s", hb.interval)
	go hb.run()
}

func (c *Connection) stopHeartbeat() {
	c.mu.Lock()
	hb := c.hb
	c.hb = nil
	c.mu.Unlock()
	// not waiting for done: stop may be called from a callback running on the heartbeat goroutine
	if hb != nil {
		close(hb.stop)
	}
}

// touchHeartbeat records that something arrived from the broker.
// Any frame counts, not only heartbeat frames.
func (c *Connection) touchHeartbeat() {
	c.mu.Lock()
	hb := c.hb
	c.mu.Unlock()
	if hb != nil {
		hb.touch()
	}
}

func (h *heartbeater) touch() {
	h.mu.Lock()
	h.lastSeen = h.clock.Now()
	h.mu.Unlock()
}

func (h *heartbeater) run() {
	defer close(h.done)
	ticker := h.clock.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C():
			h.beat()
		}
	}
}

func (h *heartbeater) beat() {
	c := h.c
	if c.isTCPEstablished() {
		if c.logCfg.HeartbeatLogging {
			c.log.Debug("Sending heartbeat")
		}
		if err := c.sendFrames(protocol.EncodeFrame(protocol.FrameHeartbeat, 0, nil)); err != nil {
			c.log.Warn("Failed to send heartbeat: %v", err)
		}
	}

	h.mu.Lock()
	silence := h.clock.Since(h.lastSeen)
	h.mu.Unlock()

	if silence > 2*h.interval && !c.isReconnecting() {
		c.log.Warn("No frames from broker for %s (heartbeat %s)", silence, h.interval)
		c.callbacks.exec(evSkippedHeartbeats, c, silence)
	}
}
