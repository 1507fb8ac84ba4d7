package chat

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gofrs/uuid/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Store is the persistence contract the registry and the connection
// protocol consume. Implemented by *Repository; tests substitute a fake.
type Store interface {
	ValidateSession(ctx context.Context, userID int, vKey string) (bool, error)
	CreateChat(ctx context.Context, userFrom, userTo, itemID int, vKey string) (int, error)
	GetChat(ctx context.Context, chatID, userID int, vKey string) (*Chat, error)
	GetChats(ctx context.Context, userID int, vKey string) ([]*Chat, error)
	DeleteChat(ctx context.Context, chatID, userID int, vKey string) error
	CreateMessage(ctx context.Context, chatID int, body, timestamp string, authorID int, vKey string) error
	GetMessages(ctx context.Context, chatID, userID int, vKey string) ([]*Message, error)
	UpdateMessage(ctx context.Context, messageID int, body string, authorID int, vKey string) error
	DeleteMessage(ctx context.Context, messageID, userID int, vKey string) error
}

// Pool names the two independent session pools: one for chat-thread
// subscribers, one for chat-list subscribers. They have different audiences
// and payloads, so membership is decided at subscription time.
type Pool int

const (
	PoolMessages Pool = iota
	PoolChats
)

// session is one authorized live connection.
type session struct {
	id     uuid.UUID
	userID int
	vKey   string
	client *Client
}

// eventChannel carries fan-out events between instances when Redis is
// configured.
const eventChannel = "garage-sale-events"

// event is one mutation's fan-out order. Message events carry the payload
// (the same full resend goes to every participant session); chat-list events
// carry only the audience, because each recipient's list is recomputed with
// that recipient's own key on the delivering instance.
type event struct {
	Kind    string `json:"kind"` // "messages" or "chats"
	UserIDs []int  `json:"user_ids"`
	Payload []byte `json:"payload,omitempty"`
}

// Hub is the session registry: it owns the two pools, authorizes
// connections against the store and fans mutations out to every live
// session of the affected users. Pools are mutated only here.
type Hub struct {
	mu       sync.RWMutex
	pending  map[*Client]struct{}
	messages map[*Client]*session
	chats    map[*Client]*session

	store Store
	redis *redis.Client // nil means single-instance, local dispatch only
	log   *zap.Logger
}

func NewHub(store Store, redisClient *redis.Client, log *zap.Logger) *Hub {
	return &Hub{
		pending:  make(map[*Client]struct{}),
		messages: make(map[*Client]*session),
		chats:    make(map[*Client]*session),
		store:    store,
		redis:    redisClient,
		log:      log,
	}
}

// Register tracks a freshly accepted connection as pending. Never fails.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.pending[c] = struct{}{}
	h.mu.Unlock()
}

// Authorize validates the handshake credentials and, on success, moves the
// connection from pending into its pool and acknowledges. Duplicate
// authorize calls from the same connection do not create duplicate entries.
// On failure the connection receives an Unauthorized notice and the caller
// must close it; no entry is ever left behind by a failed authorize.
func (h *Hub) Authorize(ctx context.Context, c *Client, userID int, vKey string, pool Pool) error {
	ok, err := h.store.ValidateSession(ctx, userID, vKey)
	if err != nil || !ok {
		if err != nil {
			h.log.Warn("session validation failed", zap.Error(err))
		}
		c.push(systemFrame("Unauthorized"))
		return errUnauthorized
	}

	id, err := uuid.NewV4()
	if err != nil {
		h.log.Error("mint session id", zap.Error(err))
		c.push(systemFrame("Server error"))
		return err
	}

	h.mu.Lock()
	entries := h.poolFor(pool)
	_, exists := entries[c]
	if !exists {
		entries[c] = &session{id: id, userID: userID, vKey: vKey, client: c}
		delete(h.pending, c)
	}
	h.mu.Unlock()

	if !exists {
		h.log.Debug("session authorized",
			zap.String("session_id", id.String()), zap.Int("user_id", userID))
	}
	c.push(systemFrame("Authorized"))
	return nil
}

// Deregister removes any entry for the connection from both pools. Safe to
// call on connections that never authorized, and safe to call twice.
func (h *Hub) Deregister(c *Client) {
	h.mu.Lock()
	delete(h.pending, c)
	var ended []*session
	if s, ok := h.messages[c]; ok {
		ended = append(ended, s)
		delete(h.messages, c)
	}
	if s, ok := h.chats[c]; ok {
		ended = append(ended, s)
		delete(h.chats, c)
	}
	h.mu.Unlock()

	for _, s := range ended {
		h.log.Debug("session closed",
			zap.String("session_id", s.id.String()), zap.Int("user_id", s.userID))
	}
	c.closeSend()
}

// BroadcastMessages recomputes the full message list of a chat and pushes it
// to every live message-pool session of either participant, the actor's own
// other sessions included. Matching is by user id, not by key: all of a
// user's devices converge.
func (h *Hub) BroadcastMessages(ctx context.Context, chatID, actorID int, vKey string) {
	c, err := h.store.GetChat(ctx, chatID, actorID, vKey)
	if err != nil {
		h.log.Warn("broadcast: cannot resolve chat", zap.Int("chat_id", chatID), zap.Error(err))
		return
	}
	msgs, err := h.store.GetMessages(ctx, chatID, actorID, vKey)
	if err != nil {
		h.log.Warn("broadcast: cannot fetch messages", zap.Int("chat_id", chatID), zap.Error(err))
		return
	}
	h.dispatch(ctx, event{
		Kind:    "messages",
		UserIDs: []int{c.UserFrom, c.UserTo},
		Payload: messagesFrame(msgs),
	})
}

// BroadcastChatList refreshes the chat overview of both affected users on
// all their chat-list sessions. The list is re-fetched per recipient with
// that session's own key, then a change notice follows.
func (h *Hub) BroadcastChatList(ctx context.Context, userFrom, userTo int) {
	h.dispatch(ctx, event{Kind: "chats", UserIDs: []int{userFrom, userTo}})
}

// dispatch hands an event to every instance. Without Redis the event is
// delivered locally; with Redis it is published and comes back through the
// subscribe loop of each instance, this one included.
func (h *Hub) dispatch(ctx context.Context, ev event) {
	if h.redis == nil {
		h.deliver(ctx, ev)
		return
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("marshal event", zap.Error(err))
		return
	}
	if err := h.redis.Publish(ctx, eventChannel, raw).Err(); err != nil {
		h.log.Warn("redis publish failed, delivering locally", zap.Error(err))
		h.deliver(ctx, ev)
	}
}

// SubscribeLoop feeds cross-instance events into the local pools. Runs until
// ctx is done.
func (h *Hub) SubscribeLoop(ctx context.Context) {
	if h.redis == nil {
		return
	}
	pubsub := h.redis.Subscribe(ctx, eventChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				h.log.Warn("malformed event", zap.Error(err))
				continue
			}
			h.deliver(ctx, ev)
		}
	}
}

// deliver pushes one event into the matching local sessions.
func (h *Hub) deliver(ctx context.Context, ev event) {
	switch ev.Kind {
	case "messages":
		for _, s := range h.snapshot(PoolMessages, ev.UserIDs) {
			s.client.push(ev.Payload)
		}
	case "chats":
		for _, s := range h.snapshot(PoolChats, ev.UserIDs) {
			chats, err := h.store.GetChats(ctx, s.userID, s.vKey)
			if err != nil {
				h.log.Warn("chat list refresh failed",
					zap.Int("user_id", s.userID), zap.Error(err))
				continue
			}
			s.client.push(chatsFrame(chats))
			s.client.push(systemFrame("chats_updated"))
		}
	}
}

// snapshot copies the pool entries whose user id is in the audience, so
// delivery happens outside the registry lock.
func (h *Hub) snapshot(pool Pool, userIDs []int) []*session {
	audience := make(map[int]struct{}, len(userIDs))
	for _, id := range userIDs {
		audience[id] = struct{}{}
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []*session
	for _, s := range h.poolFor(pool) {
		if _, ok := audience[s.userID]; ok {
			out = append(out, s)
		}
	}
	return out
}

func (h *Hub) poolFor(pool Pool) map[*Client]*session {
	if pool == PoolChats {
		return h.chats
	}
	return h.messages
}

// Sessions reports the entry count of a pool.
func (h *Hub) Sessions(pool Pool) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.poolFor(pool))
}
