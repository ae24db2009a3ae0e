package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/aldiwan/majlis/internal/core"
)

type connEntry struct {
	Conn   core.Conn
	Cancel context.CancelFunc
}

// Registry tracks every live connection, member of the majlis or not.
// Presence broadcasts go to all of them, which is why this is kept
// separate from the room's member set.
type Registry struct {
	mu    sync.RWMutex
	conns map[core.SessionID]*connEntry
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[core.SessionID]*connEntry)}
}

func (r *Registry) Bind(sid core.SessionID, conn core.Conn, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[sid] = &connEntry{Conn: conn, Cancel: cancel}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("bound connection")
}

func (r *Registry) Unbind(sid core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, sid)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unbound connection")
}

func (r *Registry) Get(sid core.SessionID) (core.Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.conns[sid]; ok {
		return e.Conn, true
	}
	return nil, false
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

type connSnap struct {
	SID  core.SessionID
	Conn core.Conn
}

// Snapshot returns the current connections for fan-out. The relay
// iterates the snapshot outside the lock; a connection that dies
// mid-iteration just drops the frame.
func (r *Registry) Snapshot() []connSnap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]connSnap, 0, len(r.conns))
	for sid, e := range r.conns {
		out = append(out, connSnap{SID: sid, Conn: e.Conn})
	}
	return out
}

// Cancel aborts the session's pumps via its context.
func (r *Registry) Cancel(sid core.SessionID) bool {
	r.mu.RLock()
	e, ok := r.conns[sid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("canceled session")
	return true
}
