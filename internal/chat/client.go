package chat

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/max0n1x/IIS/internal/errs"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// errUnauthorized signals a failed handshake; the connection must close.
var errUnauthorized = errors.New("handshake unauthorized")

// Client is one live socket connection moving through the states
// pending -> authenticated -> closed. Inbound frames are handled strictly
// one at a time in arrival order inside readPump; outbound frames go through
// the buffered send channel drained by writePump.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	pool Pool
	send chan []byte

	// sendMu guards send against closing while a broadcast from another
	// goroutine is pushing into it.
	sendMu sync.Mutex
	closed bool

	// bound identity; set once the handshake succeeds
	authorized bool
	userID     int
	vKey       string
}

func newClient(hub *Hub, conn *websocket.Conn, pool Pool) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		pool: pool,
		send: make(chan []byte, 256),
	}
}

// push queues a frame without blocking. A full buffer means the peer has
// stopped draining; the connection is dropped like any other dead transport.
// Frames pushed after the connection closed are discarded.
func (c *Client) push(frame []byte) {
	c.sendMu.Lock()
	if c.closed {
		c.sendMu.Unlock()
		return
	}
	select {
	case c.send <- frame:
		c.sendMu.Unlock()
	default:
		c.sendMu.Unlock()
		c.hub.Deregister(c)
	}
}

func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// readPump pumps frames from the socket through the protocol state machine.
// A transport drop at any point deregisters only this connection.
func (c *Client) readPump() {
	defer func() {
		c.hub.Deregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("socket read error", zap.Error(err))
			}
			return
		}
		if err := c.handleFrame(context.Background(), raw); err != nil {
			// Only a failed handshake is fatal; action failures were
			// already acknowledged and the connection stays usable.
			return
		}
	}
}

// handleFrame advances the state machine by one inbound frame.
func (c *Client) handleFrame(ctx context.Context, raw []byte) error {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.push(nokFrame("Malformed message"))
		return nil
	}

	if !c.authorized {
		if err := c.hub.Authorize(ctx, c, env.UserID, env.VKey, c.pool); err != nil {
			return err
		}
		c.authorized = true
		c.userID = env.UserID
		c.vKey = env.VKey
		if c.pool == PoolChats {
			// A fresh chat-list subscriber immediately gets its list.
			if chats, err := c.hub.store.GetChats(ctx, c.userID, c.vKey); err == nil {
				c.push(chatsFrame(chats))
			}
		}
		return nil
	}

	c.handleAction(ctx, &env)
	return nil
}

// handleAction dispatches one authenticated frame. Every recognized action
// answers with either a payload or a negative acknowledgment; an
// unrecognized action answers with a diagnostic instead of silence.
func (c *Client) handleAction(ctx context.Context, env *envelope) {
	switch action := parseAction(env.Action); c.pool {
	case PoolMessages:
		switch action {
		case ActionGetMessages:
			c.getMessages(ctx, env)
		case ActionSendMessage:
			c.sendMessage(ctx, env)
		case ActionEditMessage:
			c.editMessage(ctx, env)
		case ActionDeleteMessage:
			c.deleteMessage(ctx, env)
		default:
			c.push(nokFrame("Unknown action"))
		}
	case PoolChats:
		switch action {
		case ActionGetChats:
			c.getChats(ctx, env)
		case ActionDeleteChat:
			c.deleteChat(ctx, env)
		default:
			c.push(nokFrame("Unknown action"))
		}
	}
}

func (c *Client) getMessages(ctx context.Context, env *envelope) {
	msgs, err := c.hub.store.GetMessages(ctx, env.ChatID, env.UserID, env.VKey)
	if err != nil {
		c.push(nokFrame(failureMessage(err)))
		return
	}
	c.push(messagesFrame(msgs))
}

func (c *Client) sendMessage(ctx context.Context, env *envelope) {
	err := c.hub.store.CreateMessage(ctx, env.ChatID, env.Message, env.Timestamp, env.AuthorID, env.VKey)
	if err != nil {
		c.push(nokFrame(failureMessage(err)))
		return
	}
	c.push(okFrame())
	c.hub.BroadcastMessages(ctx, env.ChatID, env.AuthorID, env.VKey)
}

func (c *Client) editMessage(ctx context.Context, env *envelope) {
	err := c.hub.store.UpdateMessage(ctx, env.MessageID, env.Message, env.AuthorID, env.VKey)
	if err != nil {
		c.push(nokFrame(failureMessage(err)))
		return
	}
	c.push(okFrame())
	c.hub.BroadcastMessages(ctx, env.ChatID, env.AuthorID, env.VKey)
}

func (c *Client) deleteMessage(ctx context.Context, env *envelope) {
	err := c.hub.store.DeleteMessage(ctx, env.MessageID, env.UserID, env.VKey)
	if err != nil {
		c.push(nokFrame(failureMessage(err)))
		return
	}
	c.push(okFrame())
	c.hub.BroadcastMessages(ctx, env.ChatID, env.UserID, env.VKey)
}

func (c *Client) getChats(ctx context.Context, env *envelope) {
	chats, err := c.hub.store.GetChats(ctx, env.UserID, env.VKey)
	if err != nil {
		c.push(nokFrame(failureMessage(err)))
		return
	}
	c.push(chatsFrame(chats))
}

func (c *Client) deleteChat(ctx context.Context, env *envelope) {
	// Resolve the participants before the rows go away.
	chat, err := c.hub.store.GetChat(ctx, env.ChatID, env.UserID, env.VKey)
	if err != nil {
		c.push(nokFrame(failureMessage(err)))
		return
	}
	if err := c.hub.store.DeleteChat(ctx, env.ChatID, env.UserID, env.VKey); err != nil {
		c.push(nokFrame(failureMessage(err)))
		return
	}
	c.push(okFrame())
	c.hub.BroadcastChatList(ctx, chat.UserFrom, chat.UserTo)
}

// failureMessage maps store errors to the fixed negative-acknowledgment
// texts. Internal details never cross the protocol boundary.
func failureMessage(err error) string {
	switch {
	case errors.Is(err, errs.ErrUnauthorized):
		return "Unauthorized"
	case errors.Is(err, errs.ErrNotFound):
		return "Not found"
	default:
		return "Server error"
	}
}

// writePump drains the send channel to the socket and keeps the connection
// alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
