// Package status implements the Status Publisher (C9): a writer thread that
// builds an atomic status snapshot on a dirty signal or heartbeat, and
// optionally broadcasts it to WebSocket subscribers.
package status

import (
	"encoding/json"
	"time"

	"github.com/akfldk1028/taskdaemon/internal/config"
	"github.com/akfldk1028/taskdaemon/internal/filelock"
	"github.com/akfldk1028/taskdaemon/internal/models"
)

const heartbeat = 30 * time.Second

// Snapshotter is the narrow surface the publisher needs from the daemon.
type Snapshotter interface {
	Snapshot() models.StatusSnapshot
}

// Publisher writes status.json atomically and, when a push server is
// attached, broadcasts every snapshot and typed event over it (§4.9, §6
// Status file / Push channel).
type Publisher struct {
	path string
	snap Snapshotter
	push *pushServer

	dirtyCh chan struct{}
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewPublisher wires a Publisher writing to path. If wsCfg.Enabled, it binds
// a push server to the first free port in [PortLow, PortHigh] and keeps
// running without it if binding fails everywhere — connection management is
// strictly additive and must never block daemon progress (§4.9).
func NewPublisher(path string, snap Snapshotter, wsCfg config.WebSocketConfig) *Publisher {
	p := &Publisher{
		path:    path,
		snap:    snap,
		dirtyCh: make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	if wsCfg.Enabled {
		if srv, err := newPushServer(wsCfg.PortLow, wsCfg.PortHigh); err == nil {
			p.push = srv
		}
	}
	return p
}

// WSPort reports the bound push-server port, or 0 if none is attached.
func (p *Publisher) WSPort() int {
	if p.push == nil {
		return 0
	}
	return p.push.port
}

// MarkDirty requests a snapshot write on the next loop iteration; it never
// blocks, coalescing bursts into a single pending write.
func (p *Publisher) MarkDirty() {
	select {
	case p.dirtyCh <- struct{}{}:
	default:
	}
}

// Broadcast pushes an arbitrary typed message to every connected subscriber.
// A no-op when no push server is attached.
func (p *Publisher) Broadcast(msg models.PushMessage) {
	if p.push != nil {
		p.push.broadcast(msg)
	}
}

// Run is the writer thread's main loop: wait(30s OR dirty), write, repeat
// (§5 Suspension point 6). It returns once stopped.
func (p *Publisher) Run() {
	defer close(p.doneCh)

	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	p.writeOnce()
	for {
		select {
		case <-p.stopCh:
			return
		case <-p.dirtyCh:
			p.writeOnce()
		case <-ticker.C:
			p.writeOnce()
		}
	}
}

// Stop signals Run to exit; it never blocks, matching the daemon's own
// signal-safe Stop (§4.4, §5 Cancellation).
func (p *Publisher) Stop() {
	select {
	case <-p.stopCh:
	default:
		close(p.stopCh)
	}
}

// Wait blocks until Run has returned, then closes any attached push server.
func (p *Publisher) Wait() {
	<-p.doneCh
	if p.push != nil {
		p.push.close()
	}
}

func (p *Publisher) writeOnce() {
	snap := p.snap.Snapshot()
	snap.WSPort = p.WSPort()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return
	}
	if err := filelock.AtomicWrite(p.path, data); err != nil {
		return
	}
	p.Broadcast(models.PushMessage{Type: models.PushTypeDaemonStatus, Data: snap})
}
