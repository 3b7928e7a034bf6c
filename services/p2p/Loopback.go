package p2p

import (
	"context"
	"sync"

	"github.com/marabu-network/marabu/errors"
	"github.com/marabu-network/marabu/model"
	"github.com/marabu-network/marabu/ulogger"
)

// Announcement is one recorded Broadcast call.
type Announcement struct {
	ID     model.ObjectID
	Source PeerID
}

// Loopback is an in-process Network. Remote peers are simulated by the objects they are
// willing to serve; a request for an object a peer holds is answered by calling the
// handler from a new goroutine, as a real connection would.
type Loopback struct {
	logger  ulogger.Logger
	mu      sync.Mutex
	handler ObjectHandler
	peers   map[PeerID]map[model.ObjectID][]byte
	sent    []Announcement
	wg      sync.WaitGroup
}

func NewLoopback(logger ulogger.Logger) *Loopback {
	return &Loopback{
		logger: logger,
		peers:  make(map[PeerID]map[model.ObjectID][]byte),
	}
}

// SetHandler sets where answers to RequestObject are delivered.
func (l *Loopback) SetHandler(handler ObjectHandler) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.handler = handler
}

// Serve makes peer answer requests for obj.
func (l *Loopback) Serve(peer PeerID, obj model.Object) {
	l.ServeRaw(peer, obj.ID(), obj.Bytes())
}

// ServeRaw makes peer answer requests for id with raw.
func (l *Loopback) ServeRaw(peer PeerID, id model.ObjectID, raw []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()

	objects, ok := l.peers[peer]
	if !ok {
		objects = make(map[model.ObjectID][]byte)
		l.peers[peer] = objects
	}

	objects[id] = raw
}

func (l *Loopback) RequestObject(_ context.Context, peer PeerID, id model.ObjectID) error {
	l.mu.Lock()
	handler := l.handler
	raw, ok := l.peers[peer][id]
	l.mu.Unlock()

	if handler == nil {
		return errors.NewProcessingError("[Loopback] no object handler registered")
	}

	if !ok {
		l.logger.Debugf("[Loopback] peer %q does not have object %s", peer, id)
		return nil
	}

	l.wg.Add(1)

	go func() {
		defer l.wg.Done()

		if err := handler(context.Background(), raw, peer); err != nil {
			l.logger.Warnf("[Loopback] object %s from peer %q rejected: %v", id, peer, err)
		}
	}()

	return nil
}

func (l *Loopback) Broadcast(_ context.Context, id model.ObjectID, source PeerID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sent = append(l.sent, Announcement{ID: id, Source: source})

	return nil
}

// Announcements returns every Broadcast so far, oldest first.
func (l *Loopback) Announcements() []Announcement {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]Announcement(nil), l.sent...)
}

// Wait blocks until every delivery started by RequestObject has returned.
func (l *Loopback) Wait() {
	l.wg.Wait()
}
