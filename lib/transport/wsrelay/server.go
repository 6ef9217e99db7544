package wsrelay

import (
	"context"
	"fmt"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/portwatch/nostrelay/lib/logging"
	"github.com/portwatch/nostrelay/lib/nostr"
	"github.com/portwatch/nostrelay/lib/relay"
)

// connSender adapts one *websocket.Conn to relay.Sender, matching the
// teacher's jsoniter-marshal-then-ws.WriteJSON pattern in responder.go.
type connSender struct {
	conn *websocket.Conn
}

func (s *connSender) SendEvent(subID string, event *nostr.Event) error {
	frame, err := nostr.EncodeEvent(subID, event)
	if err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, frame)
}

func (s *connSender) SendEOSE(subID string) error {
	frame, err := nostr.EncodeEOSE(subID)
	if err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, frame)
}

func (s *connSender) SendOK(eventID string, accepted bool, reason string) error {
	frame, err := nostr.EncodeOK(eventID, accepted, reason)
	if err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, frame)
}

func (s *connSender) SendCount(subID string, count int64) error {
	frame, err := nostr.EncodeCount(subID, count)
	if err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, frame)
}

func (s *connSender) SendNotice(message string) error {
	frame, err := nostr.EncodeNotice(message)
	if err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, frame)
}

// New builds the fiber app: one websocket route running a per-connection
// read loop, plus the NIP-11 middleware. Mirrors the teacher's BuildServer,
// without its AUTH-challenge handshake (spec §4.3 step 3: the core does
// not implement NIP-42 authentication) and without blossom file routes
// (out of spec scope).
func New(engine *relay.Engine, info RelayInfo) *fiber.App {
	app := fiber.New()
	app.Use(relayInfoMiddleware(info))

	app.Get("/", websocket.New(func(c *websocket.Conn) {
		sender := &connSender{conn: c}
		client := relay.NewClient(sender)
		engine.Registry().Add(client)

		defer func() {
			client.Close()
			engine.Registry().Remove(client)
		}()

		ctx := context.Background()
		for {
			_, data, err := c.ReadMessage()
			if err != nil {
				return
			}
			if err := dispatch(ctx, engine, client, data); err != nil {
				return
			}
		}
	}))

	return app
}

// dispatch decodes one frame and routes it to the engine/client, matching
// the teacher's processWebSocketMessage switch but over this repository's
// own Message sum type instead of nbd-wtf/go-nostr's envelopes.
func dispatch(ctx context.Context, engine *relay.Engine, client *relay.Client, data []byte) error {
	msg, err := nostr.Decode(data)
	if err != nil {
		return client.SendNotice(fmt.Sprintf("error: %v", err))
	}

	switch m := msg.(type) {
	case nostr.PublishMessage:
		accepted, reason := engine.Publish(ctx, &m.Event)
		return client.SendOK(m.Event.ID, accepted, reason)

	case nostr.SubscribeMessage:
		sub := relay.NewSubscription(ctx, m.SubscriptionID, m.Filters, engine.Store(), client)
		client.Subscribe(m.SubscriptionID, sub)
		return nil

	case nostr.CountMessage:
		count, err := engine.Count(ctx, m.Filters)
		if err != nil {
			logging.Errorf("count: %v", err)
			return client.SendNotice("error: database error")
		}
		return client.SendCount(m.SubscriptionID, count)

	case nostr.UnsubscribeMessage:
		client.Unsubscribe(m.SubscriptionID)
		return nil

	default:
		return client.SendNotice("error: unknown message type")
	}
}
