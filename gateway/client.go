package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"dm-relay/domain"
	"dm-relay/domain/event"
	"dm-relay/services"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 8192
)

var validate = validator.New()

// Client pumps one websocket connection: the read pump decodes inbound
// envelopes and dispatches them to the messaging service, the write pump
// drains the session sink. The connection is only ever written to by the
// write pump.
type Client struct {
	log         *slog.Logger
	conn        *websocket.Conn
	sink        *Sink
	session     *domain.Session
	service     services.IMessagingService
	idleTimeout time.Duration
}

func newClient(
	log *slog.Logger,
	conn *websocket.Conn,
	sink *Sink,
	session *domain.Session,
	service services.IMessagingService,
	idleTimeout time.Duration,
) *Client {
	return &Client{
		log:         log.With("user_id", session.UserID, "session_id", session.ID),
		conn:        conn,
		sink:        sink,
		session:     session,
		service:     service,
		idleTimeout: idleTimeout,
	}
}

// readPump blocks until the transport closes or goes idle. Any inbound
// frame counts as liveness; a session silent for idleTimeout is proactively
// closed so stale registry entries cannot accumulate.
func (c *Client) readPump(ctx context.Context) {
	defer c.conn.Close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.idleTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.idleTimeout))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug("Read loop ended", "error", err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(c.idleTimeout))

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.log.Debug("Malformed envelope", "error", err)
			continue
		}
		c.dispatch(ctx, env)
	}
}

// writePump serializes all writes to the connection and keeps it alive with
// pings. On Done it flushes whatever is still buffered, then closes.
func (c *Client) writePump() {
	pingPeriod := c.idleTimeout * 9 / 10
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case evt := <-c.sink.Events():
			if !c.write(evt) {
				return
			}
		case <-c.sink.Done():
			for {
				select {
				case evt := <-c.sink.Events():
					if !c.write(evt) {
						return
					}
				default:
					_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
					_ = c.conn.WriteMessage(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
					return
				}
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) write(evt event.ClientEvent) bool {
	frame, err := marshalEvent(evt)
	if err != nil {
		c.log.Error("Event marshaling failed", "event", evt.EventName(), "error", err)
		return true
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return false
	}
	return true
}

func (c *Client) dispatch(ctx context.Context, env Envelope) {
	switch env.Event {
	case "send_message":
		var p sendMessagePayload
		if !c.decode(env, &p) {
			return
		}
		c.service.Send(ctx, domain.SendMessageCommand{
			TempID:      p.TempID,
			SenderID:    c.session.UserID,
			RecipientID: p.RecipientID,
			Body:        p.Text,
			Type:        messageTypeOrDefault(p.MessageType),
			CreatedAt:   timestampOrNow(p.Timestamp),
		})
	case "typing_start", "typing_stop":
		var p typingPayload
		if !c.decode(env, &p) {
			return
		}
		c.service.Typing(ctx, domain.TypingCommand{
			SenderID:    c.session.UserID,
			RecipientID: p.RecipientID,
			Active:      env.Event == "typing_start",
		})
	case "message_read":
		var p readPayload
		if !c.decode(env, &p) {
			return
		}
		cmd := domain.MarkReadCommand{MessageID: p.MessageID, ReaderID: c.session.UserID}
		if err := c.service.MarkRead(ctx, cmd); err != nil {
			c.fail(ctx, "", "read failed: "+err.Error())
		}
	case "message_reaction":
		var p reactionPayload
		if !c.decode(env, &p) {
			return
		}
		cmd := domain.ReactionCommand{MessageID: p.MessageID, UserID: c.session.UserID, Emoji: p.Emoji}
		if err := c.service.React(ctx, cmd); err != nil {
			c.fail(ctx, "", "reaction failed: "+err.Error())
		}
	case "ping":
		// Liveness only; the read deadline was already refreshed.
	default:
		c.log.Debug("Unknown inbound event", "event", env.Event)
	}
}

func (c *Client) decode(env Envelope, payload any) bool {
	if err := json.Unmarshal(env.Data, payload); err != nil {
		c.log.Debug("Malformed payload", "event", env.Event, "error", err)
		return false
	}
	if err := validate.Struct(payload); err != nil {
		c.fail(context.Background(), "", "invalid "+env.Event+" payload")
		return false
	}
	return true
}

func (c *Client) fail(ctx context.Context, tempID, reason string) {
	evt := event.MessageFailed{TempID: tempID, Reason: reason}
	if err := c.session.Deliver(ctx, evt); err != nil {
		c.log.Debug("Error event delivery failed", "error", err)
	}
}
