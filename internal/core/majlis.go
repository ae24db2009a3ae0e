package core

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// RoomName is the single statically named group channel. There is exactly
// one room; it is created at startup and never destroyed.
const RoomName = "majlis"

// Change is the membership delta produced by one registry operation.
// Activated/Deactivated report the active-state transitions the caller
// must broadcast; Count must be broadcast on every call, changed or not.
type Change struct {
	Count       int
	Activated   bool // inactive -> active
	Deactivated bool // active -> inactive
}

// Majlis is the single source of truth for room membership: a threadsafe
// set of session ids. Operations never fail; joining twice or leaving
// without having joined are no-ops, not errors. The active flag is always
// derived from the set under the same lock as the mutation, so
// active == (count > 0) holds after every operation.
type Majlis struct {
	mu      sync.Mutex
	members map[SessionID]struct{}
}

func NewMajlis() *Majlis {
	return &Majlis{members: make(map[SessionID]struct{})}
}

// Join adds the session to the member set. Idempotent.
func (m *Majlis) Join(sid SessionID) Change {
	m.mu.Lock()
	defer m.mu.Unlock()
	wasActive := len(m.members) > 0
	m.members[sid] = struct{}{}
	ch := Change{Count: len(m.members), Activated: !wasActive}
	log.Info().Str("module", "core.majlis").Str("sid", string(sid)).Int("count", ch.Count).Msg("member joined")
	return ch
}

// Leave removes the session if present. A leave that was never joined is
// a no-op but still reports the current count, since callers broadcast
// the count once per call regardless.
func (m *Majlis) Leave(sid SessionID) Change {
	m.mu.Lock()
	defer m.mu.Unlock()
	wasActive := len(m.members) > 0
	delete(m.members, sid)
	ch := Change{Count: len(m.members), Deactivated: wasActive && len(m.members) == 0}
	log.Info().Str("module", "core.majlis").Str("sid", string(sid)).Int("count", ch.Count).Msg("member left")
	return ch
}

// Disconnect is Leave for a transport that dropped without an explicit
// leave. The transport layer must call this path; clients can disappear
// without notice.
func (m *Majlis) Disconnect(sid SessionID) Change {
	return m.Leave(sid)
}

func (m *Majlis) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.members)
}

func (m *Majlis) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.members) > 0
}

// Contains reports current membership of one session.
func (m *Majlis) Contains(sid SessionID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.members[sid]
	return ok
}

// Members returns a snapshot of the member set for fan-out.
func (m *Majlis) Members() []SessionID {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SessionID, 0, len(m.members))
	for sid := range m.members {
		out = append(out, sid)
	}
	return out
}
