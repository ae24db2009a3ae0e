package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/aldiwan/majlis/internal/app"
	"github.com/aldiwan/majlis/internal/core"
	"github.com/aldiwan/majlis/internal/domain"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Controller struct {
	Relay      *app.Relay
	ReadLimit  int64
	PingPeriod time.Duration
	SendBuffer int
}

// Handle upgrades the request and starts the connection's pumps. The
// session id comes from the client-token cookie middleware when present.
func (ctl *Controller) Handle(ctx context.Context, c *gin.Context) {
	sid := core.SessionID(c.GetString("client_token"))
	if sid == "" {
		sid = core.SessionID(uuid.NewString())
	}

	wsc, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("upgrade failed")
		return
	}
	if ctl.ReadLimit > 0 {
		wsc.SetReadLimit(ctl.ReadLimit)
	}

	buffer := ctl.SendBuffer
	if buffer <= 0 {
		buffer = 32
	}
	conn := newConn(wsc, buffer)

	ctx, cancel := context.WithCancel(ctx)
	ctl.Relay.OnConnect(sid, conn, cancel)
	log.Info().Str("module", "ws").Str("sid", string(sid)).Msg("connection open")

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, sid, conn)
}

func (ctl *Controller) writePump(ctx context.Context, c *wsConn) {
	pingPeriod := ctl.PingPeriod
	if pingPeriod <= 0 {
		pingPeriod = 54 * time.Second
	}
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Warn().Err(err).Str("module", "ws").Msg("writePump ping")
				return
			}
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "ws").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "ws").Msg("writePump write")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, sid core.SessionID, c *wsConn) {
	defer func() {
		log.Info().Str("module", "ws").Str("sid", string(sid)).Msg("connection closed")
		ctl.Relay.OnDisconnect(sid)
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				return
			}
			ctl.dispatch(sid, data)
		}
	}
}

// dispatch routes one inbound frame by event name. Malformed frames and
// frames with missing payload fields are dropped silently; the relay is
// a forwarder, not a validator, and never closes a connection over them.
func (ctl *Controller) dispatch(sid core.SessionID, data []byte) {
	var env domain.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		ctl.drop(sid, "?", "bad envelope")
		return
	}

	switch env.Event {
	case domain.EventTextMessage:
		var p domain.TextMessage
		if json.Unmarshal(env.Data, &p) != nil || p.Message == "" {
			ctl.drop(sid, env.Event, "missing message")
			return
		}
		ctl.Relay.Forward(env.Event, env.Data)

	case domain.EventVoiceMessage:
		var p domain.VoiceMessage
		if json.Unmarshal(env.Data, &p) != nil || p.Audio == "" {
			ctl.drop(sid, env.Event, "missing audio")
			return
		}
		ctl.Relay.Forward(env.Event, env.Data)

	case domain.EventDrawing:
		var p domain.Drawing
		if json.Unmarshal(env.Data, &p) != nil || p.Image == "" {
			ctl.drop(sid, env.Event, "missing image")
			return
		}
		ctl.Relay.Forward(env.Event, env.Data)

	case domain.EventJoinGroup:
		var p domain.JoinGroup
		if json.Unmarshal(env.Data, &p) != nil || p.Username == "" {
			ctl.drop(sid, env.Event, "missing username")
			return
		}
		ctl.Relay.JoinGroup(sid, p.Username)

	case domain.EventLeaveGroup:
		var p domain.LeaveGroup
		if json.Unmarshal(env.Data, &p) != nil || p.Username == "" {
			ctl.drop(sid, env.Event, "missing username")
			return
		}
		ctl.Relay.LeaveGroup(sid, p.Username)

	case domain.EventGroupMessage:
		var p domain.GroupMessage
		if json.Unmarshal(env.Data, &p) != nil || p.Username == "" || p.Message == "" {
			ctl.drop(sid, env.Event, "missing fields")
			return
		}
		ctl.Relay.ForwardMembers(sid, env.Event, env.Data)

	case domain.EventGroupVoiceMessage:
		var p domain.GroupVoiceMessage
		if json.Unmarshal(env.Data, &p) != nil || p.Username == "" || p.Audio == "" {
			ctl.drop(sid, env.Event, "missing fields")
			return
		}
		ctl.Relay.ForwardMembers(sid, env.Event, env.Data)

	case domain.EventGroupVoiceChunk:
		var p domain.GroupVoiceChunk
		if json.Unmarshal(env.Data, &p) != nil || p.Username == "" || p.Chunk == "" {
			ctl.drop(sid, env.Event, "missing fields")
			return
		}
		ctl.Relay.ForwardMembers(sid, env.Event, env.Data)

	default:
		ctl.drop(sid, env.Event, "unknown event")
	}
}

func (ctl *Controller) drop(sid core.SessionID, event, reason string) {
	ctl.Relay.Metrics.EventsDropped.Inc()
	log.Debug().Str("module", "ws").Str("sid", string(sid)).Str("event", event).Str("reason", reason).Msg("dropped inbound event")
}
