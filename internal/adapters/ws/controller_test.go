package ws

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aldiwan/majlis/internal/app"
	"github.com/aldiwan/majlis/internal/core"
	"github.com/aldiwan/majlis/internal/domain"
	"github.com/aldiwan/majlis/internal/metrics"
)

type captureConn struct {
	mu     sync.Mutex
	frames []core.Frame
}

func (c *captureConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, f)
	return nil
}

func (c *captureConn) Close() {}

func (c *captureConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func newTestController() (*Controller, *captureConn) {
	relay := app.NewRelay(app.NewRegistry(), core.NewMajlis(), metrics.New(prometheus.NewRegistry()))
	ctl := &Controller{Relay: relay}

	peer := &captureConn{}
	relay.OnConnect("peer", peer, nil)
	relay.JoinGroup("peer", "سالم")
	peer.mu.Lock()
	peer.frames = nil // discard the join broadcasts
	peer.mu.Unlock()
	return ctl, peer
}

func frame(t *testing.T, event string, payload any) []byte {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	raw, err := json.Marshal(domain.Envelope{Event: event, Data: data})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return raw
}

// Malformed frames are dropped silently; nothing reaches the audience
// and the sender's connection stays untouched.
func TestDispatchDropsMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
	}{
		{"not json", []byte("not json at all")},
		{"unknown event", []byte(`{"event":"teleport","data":{}}`)},
		{"textMessage without message", []byte(`{"event":"textMessage","data":{}}`)},
		{"joinGroup without username", []byte(`{"event":"joinGroup","data":{"username":""}}`)},
		{"groupMessage missing message", []byte(`{"event":"groupMessage","data":{"username":"x"}}`)},
		{"groupVoiceChunk missing chunk", []byte(`{"event":"groupVoiceChunk","data":{"username":"x"}}`)},
		{"voiceMessage bad data type", []byte(`{"event":"voiceMessage","data":{"audio":7}}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctl, peer := newTestController()
			ctl.dispatch("sender", tt.raw)
			if got := peer.count(); got != 0 {
				t.Errorf("malformed event reached the audience: %d frames", got)
			}
			if ctl.Relay.Majlis.Contains("sender") {
				t.Error("malformed event mutated membership")
			}
		})
	}
}

func TestDispatchForwardsWellFormed(t *testing.T) {
	ctl, peer := newTestController()

	ctl.dispatch("sender", frame(t, domain.EventTextMessage, domain.TextMessage{Message: "مرحبا"}))
	if got := peer.count(); got != 1 {
		t.Fatalf("peer saw %d frames, want the textMessage", got)
	}

	// Room content from the non-member sender goes nowhere.
	ctl.dispatch("sender", frame(t, domain.EventGroupMessage, domain.GroupMessage{Username: "دخيل", Message: "؟"}))
	if got := peer.count(); got != 1 {
		t.Fatalf("non-member room message leaked: %d frames", got)
	}

	// After joining, room content flows.
	ctl.dispatch("sender", frame(t, domain.EventJoinGroup, domain.JoinGroup{Username: "دخيل"}))
	joined := peer.count()
	ctl.dispatch("sender", frame(t, domain.EventGroupVoiceChunk, domain.GroupVoiceChunk{Username: "دخيل", Chunk: "data:audio/webm;base64,AAAA"}))
	if got := peer.count(); got != joined+1 {
		t.Errorf("member voice chunk not delivered: %d frames after join broadcasts (%d)", got, joined)
	}
}
