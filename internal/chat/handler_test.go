package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func postJSON(t *testing.T, ctx context.Context, target string, body map[string]any) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(raw))
	return req.WithContext(ctx)
}

func TestCreateMessageFansOutAfterCallerHangsUp(t *testing.T) {
	store := &fakeStore{
		chat:     &Chat{ChatID: 7, UserFrom: 1, UserTo: 2},
		messages: []*Message{{MessageID: 1, ChatID: 7, UserFrom: 1, Message: "hello"}},
	}
	hub := newTestHub(store)
	h := NewHandler(hub, store, nil)
	peer := handshake(t, hub, PoolMessages, 2, "k2")

	// The sender's connection drops right after the store commit.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := httptest.NewRecorder()
	h.CreateMessage(rec, postJSON(t, ctx, "/api/v1.0/message/create", map[string]any{
		"chat_id": 7, "author_id": 1, "message": "hello",
		"date": "2024-05-01 10:00", "vKey": "k1",
	}))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "messages", nextFrame(t, peer)["type"])
}

func TestUpdateMessageFansOutAfterCallerHangsUp(t *testing.T) {
	store := &fakeStore{
		chat:     &Chat{ChatID: 7, UserFrom: 1, UserTo: 2},
		messages: []*Message{{MessageID: 1, ChatID: 7, UserFrom: 1, Message: "edited"}},
	}
	hub := newTestHub(store)
	h := NewHandler(hub, store, nil)
	peer := handshake(t, hub, PoolMessages, 2, "k2")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := httptest.NewRecorder()
	h.UpdateMessage(rec, postJSON(t, ctx, "/api/v1.0/message/update", map[string]any{
		"chat_id": 7, "message_id": 1, "author_id": 1,
		"message": "edited", "vKey": "k1",
	}))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "messages", nextFrame(t, peer)["type"])
}
