package websockets

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait = 10 * time.Second

	pongWait = 60 * time.Second

	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 64 * 1024

	subscribeTimeout = 5 * time.Second
)

type MessageType string

// Control messages. Events use the service event names, e.g. report.submitted.
const (
	TypeSubscribe   MessageType = "subscribe"
	TypeUnsubscribe MessageType = "unsubscribe"
	TypeSubscribed  MessageType = "subscribed"
	TypeError       MessageType = "error"
	TypePing        MessageType = "ping"
	TypePong        MessageType = "pong"
)

type Message struct {
	Type       MessageType     `json:"type"`
	LocationID *uuid.UUID      `json:"location_id,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// SubscribeFunc decides whether the connected user may follow a location
type SubscribeFunc func(ctx context.Context, locationID uuid.UUID) error

type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	// done is closed by the hub when the client is dropped. send stays open
	// so the read loop can never write to a closed channel.
	done chan struct{}

	userID uuid.UUID

	authorize SubscribeFunc
}

func NewClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID, authorize SubscribeFunc) *Client {
	return &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan []byte, 256),
		done:      make(chan struct{}),
		userID:    userID,
		authorize: authorize,
	}
}

// subscribe follows a location after the authorization check passes
func (c *Client) subscribe(locationID uuid.UUID) error {
	ctx, cancel := context.WithTimeout(context.Background(), subscribeTimeout)
	defer cancel()

	if err := c.authorize(ctx, locationID); err != nil {
		return err
	}
	c.hub.Subscribe(c, locationID)
	return nil
}

// reply queues a control message without blocking the read loop. It is a
// no-op once the hub has dropped the client.
func (c *Client) reply(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case <-c.done:
	case c.send <- data:
	default:
	}
}

func (c *Client) replyError(locationID *uuid.UUID, text string) {
	data, _ := json.Marshal(map[string]string{"message": text})
	c.reply(Message{Type: TypeError, LocationID: locationID, Data: data})
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("user_id", c.userID.String()).Msg("websocket closed unexpectedly")
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.replyError(nil, "invalid message")
			continue
		}

		switch msg.Type {
		case TypeSubscribe:
			if msg.LocationID == nil {
				c.replyError(nil, "location_id is required")
				continue
			}
			if err := c.subscribe(*msg.LocationID); err != nil {
				c.replyError(msg.LocationID, err.Error())
				continue
			}
			c.reply(Message{Type: TypeSubscribed, LocationID: msg.LocationID})

		case TypeUnsubscribe:
			if msg.LocationID != nil {
				c.hub.Unsubscribe(c, *msg.LocationID)
			}

		case TypePing:
			c.reply(Message{Type: TypePong})

		default:
			c.replyError(nil, "unsupported message type")
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWs registers the connection and subscribes it to the initial
// locations the caller already authorized.
func ServeWs(hub *Hub, conn *websocket.Conn, userID uuid.UUID, authorize SubscribeFunc, initial ...uuid.UUID) {
	client := NewClient(hub, conn, userID, authorize)

	if !hub.register(client) {
		conn.Close()
		return
	}

	for _, id := range initial {
		hub.Subscribe(client, id)
		client.reply(Message{Type: TypeSubscribed, LocationID: &id})
	}

	go client.writePump()
	go client.readPump()
}
