package chat

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/max0n1x/IIS/internal/httpx"
)

// Handler exposes the two websocket channels and the request/response chat
// endpoints. REST mutations trigger the same fan-out as their socket
// counterparts so open views stay current regardless of the path taken.
type Handler struct {
	hub      *Hub
	store    Store
	upgrader websocket.Upgrader
}

func NewHandler(hub *Hub, store Store, allowedOrigins []string) *Handler {
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = struct{}{}
	}
	return &Handler{
		hub:   hub,
		store: store,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				_, ok := origins[origin]
				return ok
			},
		},
	}
}

// ServeMessagesWs accepts a chat-thread session.
func (h *Handler) ServeMessagesWs(w http.ResponseWriter, r *http.Request) {
	h.serveWs(w, r, PoolMessages)
}

// ServeChatsWs accepts a chat-list session.
func (h *Handler) ServeChatsWs(w http.ResponseWriter, r *http.Request) {
	h.serveWs(w, r, PoolChats)
}

func (h *Handler) serveWs(w http.ResponseWriter, r *http.Request, pool Pool) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.hub.log.Debug("upgrade failed", zap.Error(err))
		return
	}

	client := newClient(h.hub, conn, pool)
	h.hub.Register(client)

	go client.writePump()
	go client.readPump()
}

type chatRequest struct {
	ChatID   int    `json:"chat_id"`
	UserID   int    `json:"user_id"`
	UserFrom int    `json:"user_from"`
	UserTo   int    `json:"user_to"`
	ItemID   int    `json:"item_id"`
	VKey     string `json:"vKey"`
}

type messageRequest struct {
	ChatID    int    `json:"chat_id"`
	MessageID int    `json:"message_id"`
	Message   string `json:"message"`
	Date      string `json:"date"`
	AuthorID  int    `json:"author_id"`
	VKey      string `json:"vKey"`
}

// CreateChat finds or creates the chat for (user_from, user_to, item) and
// refreshes both participants' open chat lists.
func (h *Handler) CreateChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := httpx.Decode(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	chatID, err := h.store.CreateChat(r.Context(), req.UserFrom, req.UserTo, req.ItemID, req.VKey)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	// The caller hanging up must not stop the other participant's refresh.
	h.hub.BroadcastChatList(context.WithoutCancel(r.Context()), req.UserFrom, req.UserTo)
	httpx.WriteJSON(w, http.StatusOK, chatID)
}

func (h *Handler) GetChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := httpx.Decode(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	c, err := h.store.GetChat(r.Context(), req.ChatID, req.UserID, req.VKey)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) GetChats(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := httpx.Decode(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	chats, err := h.store.GetChats(r.Context(), req.UserID, req.VKey)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, chats)
}

// DeleteChat removes a chat on behalf of either participant and refreshes
// both former participants' chat lists, not just the initiator's.
func (h *Handler) DeleteChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := httpx.Decode(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	c, err := h.store.GetChat(r.Context(), req.ChatID, req.UserID, req.VKey)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	if err := h.store.DeleteChat(r.Context(), req.ChatID, req.UserID, req.VKey); err != nil {
		httpx.Error(w, err)
		return
	}
	h.hub.BroadcastChatList(context.WithoutCancel(r.Context()), c.UserFrom, c.UserTo)
	httpx.WriteJSON(w, http.StatusOK, true)
}

func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := httpx.Decode(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	msgs, err := h.store.GetMessages(r.Context(), req.ChatID, req.UserID, req.VKey)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, msgs)
}

func (h *Handler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := httpx.Decode(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.store.CreateMessage(r.Context(), req.ChatID, req.Message, req.Date, req.AuthorID, req.VKey); err != nil {
		httpx.Error(w, err)
		return
	}
	h.hub.BroadcastMessages(context.WithoutCancel(r.Context()), req.ChatID, req.AuthorID, req.VKey)
	httpx.WriteJSON(w, http.StatusOK, true)
}

func (h *Handler) UpdateMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := httpx.Decode(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.store.UpdateMessage(r.Context(), req.MessageID, req.Message, req.AuthorID, req.VKey); err != nil {
		httpx.Error(w, err)
		return
	}
	h.hub.BroadcastMessages(context.WithoutCancel(r.Context()), req.ChatID, req.AuthorID, req.VKey)
	httpx.WriteJSON(w, http.StatusOK, true)
}

func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := httpx.Decode(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.store.DeleteMessage(r.Context(), req.MessageID, req.AuthorID, req.VKey); err != nil {
		httpx.Error(w, err)
		return
	}
	if req.ChatID != 0 {
		h.hub.BroadcastMessages(context.WithoutCancel(r.Context()), req.ChatID, req.AuthorID, req.VKey)
	}
	httpx.WriteJSON(w, http.StatusOK, true)
}
