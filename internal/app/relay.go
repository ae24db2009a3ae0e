package app

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/aldiwan/majlis/internal/core"
	"github.com/aldiwan/majlis/internal/domain"
	"github.com/aldiwan/majlis/internal/metrics"
)

// Informational room status texts, kept as the original clients render them.
const (
	statusJoined = "%s دخل المجلس."
	statusLeft   = "%s غادر المجلس."
)

// Relay routes each inbound event to its audience. Default-channel
// messages go to every connection; room-scoped content goes to current
// members only; every membership-count or active-state change goes to
// every connection so non-members can see the room become available.
// It is a best-effort forwarder: nothing is validated beyond required
// payload fields, nothing is retried, and no connection is ever closed
// over a bad message.
type Relay struct {
	Registry *Registry
	Majlis   *core.Majlis
	Metrics  *metrics.Metrics
}

func NewRelay(reg *Registry, m *core.Majlis, mx *metrics.Metrics) *Relay {
	return &Relay{Registry: reg, Majlis: m, Metrics: mx}
}

// OnConnect binds a new transport connection.
func (rl *Relay) OnConnect(sid core.SessionID, conn core.Conn, cancel context.CancelFunc) {
	rl.Registry.Bind(sid, conn, cancel)
	rl.Metrics.ConnectionsActive.Inc()
}

// OnDisconnect handles a transport drop: an implicit leave. The same
// derived presence broadcasts as an explicit leave go out, but no
// groupLeft notice, since a dropped connection carries no display name.
func (rl *Relay) OnDisconnect(sid core.SessionID) {
	rl.Registry.Unbind(sid)
	rl.Metrics.ConnectionsActive.Dec()

	ch := rl.Majlis.Disconnect(sid)
	rl.Metrics.MajlisMembers.Set(float64(ch.Count))
	rl.Broadcast(domain.EventGroupCount, domain.GroupCount{Count: ch.Count})
	if ch.Deactivated {
		rl.Broadcast(domain.EventGroupActive, domain.GroupActive{Active: false})
	}
}

// JoinGroup adds the connection to the majlis and emits the derived
// presence events. groupActive goes out only on the inactive->active
// transition; count, joined notice, and status always go out.
func (rl *Relay) JoinGroup(sid core.SessionID, username string) {
	ch := rl.Majlis.Join(sid)
	rl.Metrics.MajlisMembers.Set(float64(ch.Count))

	rl.Broadcast(domain.EventGroupCount, domain.GroupCount{Count: ch.Count})
	rl.BroadcastMembers(domain.EventGroupStatus, domain.GroupStatus{Message: fmt.Sprintf(statusJoined, username)})
	if ch.Activated {
		rl.Broadcast(domain.EventGroupActive, domain.GroupActive{Active: true})
	}
	rl.Broadcast(domain.EventGroupJoined, domain.GroupJoined{Username: username})
}

// LeaveGroup removes the connection and emits the derived presence
// events. A leave that was never joined still broadcasts the count once.
func (rl *Relay) LeaveGroup(sid core.SessionID, username string) {
	ch := rl.Majlis.Leave(sid)
	rl.Metrics.MajlisMembers.Set(float64(ch.Count))

	rl.BroadcastMembers(domain.EventGroupStatus, domain.GroupStatus{Message: fmt.Sprintf(statusLeft, username)})
	rl.Broadcast(domain.EventGroupCount, domain.GroupCount{Count: ch.Count})
	if ch.Deactivated {
		rl.Broadcast(domain.EventGroupActive, domain.GroupActive{Active: false})
	}
	rl.Broadcast(domain.EventGroupLeft, domain.GroupLeft{Username: username})
}

// Forward relays an inbound payload unchanged to every connection.
func (rl *Relay) Forward(event string, data json.RawMessage) core.PublishResult {
	return rl.fan(event, rl.Registry.Snapshot(), data)
}

// ForwardMembers relays an inbound payload unchanged to current majlis
// members only. The audience is the member set computed at send time;
// once computed it is trusted, not re-checked during fan-out. Room-scoped
// content from a sender that never joined goes nowhere.
func (rl *Relay) ForwardMembers(sender core.SessionID, event string, data json.RawMessage) core.PublishResult {
	if !rl.Majlis.Contains(sender) {
		log.Debug().Str("module", "app.relay").Str("sid", string(sender)).Str("event", event).Msg("room event from non-member ignored")
		return core.PublishResult{}
	}
	return rl.fan(event, rl.memberConns(), data)
}

// Broadcast marshals a derived payload and sends it to every connection.
func (rl *Relay) Broadcast(event string, payload any) core.PublishResult {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("module", "app.relay").Str("event", event).Msg("marshal payload")
		return core.PublishResult{}
	}
	return rl.fan(event, rl.Registry.Snapshot(), data)
}

// BroadcastMembers marshals a derived payload and sends it to members.
func (rl *Relay) BroadcastMembers(event string, payload any) core.PublishResult {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("module", "app.relay").Str("event", event).Msg("marshal payload")
		return core.PublishResult{}
	}
	return rl.fan(event, rl.memberConns(), data)
}

func (rl *Relay) memberConns() []connSnap {
	members := rl.Majlis.Members()
	out := make([]connSnap, 0, len(members))
	for _, sid := range members {
		if conn, ok := rl.Registry.Get(sid); ok {
			out = append(out, connSnap{SID: sid, Conn: conn})
		}
	}
	return out
}

func (rl *Relay) fan(event string, audience []connSnap, data json.RawMessage) core.PublishResult {
	frame, err := json.Marshal(domain.Envelope{Event: event, Data: data})
	if err != nil {
		log.Error().Err(err).Str("module", "app.relay").Str("event", event).Msg("marshal envelope")
		return core.PublishResult{}
	}

	res := core.PublishResult{}
	for _, snap := range audience {
		if err := snap.Conn.TrySend(core.Frame(frame)); err != nil {
			res.Dropped++
			continue
		}
		res.Sent++
	}

	rl.Metrics.EventsRelayed.WithLabelValues(event).Inc()
	rl.Metrics.BytesRelayed.Add(float64(len(frame) * res.Sent))
	if res.Dropped > 0 {
		rl.Metrics.SendDrops.Add(float64(res.Dropped))
	}
	log.Debug().Str("module", "app.relay").Str("event", event).Int("sent_to", res.Sent).Int("dropped", res.Dropped).Msg("fan-out result")
	return res
}
