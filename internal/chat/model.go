package chat

import "encoding/json"

type Chat struct {
	ChatID   int `json:"chat_id"`
	UserFrom int `json:"user_from"`
	UserTo   int `json:"user_to"`
	ItemID   int `json:"item_id"`
}

type Message struct {
	MessageID int    `json:"message_id"`
	ChatID    int    `json:"chat_id"`
	UserFrom  int    `json:"user_from"`
	Message   string `json:"message"`
	Date      string `json:"date"`
}

// Action identifies one inbound socket operation. Parsing goes through
// parseAction so an unrecognized string maps to ActionUnknown and gets a
// diagnostic reply instead of being dropped.
type Action int

const (
	ActionUnknown Action = iota
	ActionGetMessages
	ActionSendMessage
	ActionEditMessage
	ActionDeleteMessage
	ActionGetChats
	ActionDeleteChat
)

func parseAction(s string) Action {
	switch s {
	case "get_messages":
		return ActionGetMessages
	case "send_message":
		return ActionSendMessage
	case "edit_message":
		return ActionEditMessage
	case "delete_message":
		return ActionDeleteMessage
	case "get_chats":
		return ActionGetChats
	case "delete_chat":
		return ActionDeleteChat
	default:
		return ActionUnknown
	}
}

// envelope is the superset of fields a client may send; each action reads
// the subset it needs. The first frame on every connection carries only
// user_id and vKey.
type envelope struct {
	Action    string `json:"action"`
	ChatID    int    `json:"chat_id"`
	UserID    int    `json:"user_id"`
	AuthorID  int    `json:"author_id"`
	MessageID int    `json:"message_id"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	VKey      string `json:"vKey"`
}

// Outbound frames.

func systemFrame(message string) []byte {
	b, _ := json.Marshal(map[string]string{"type": "system", "message": message})
	return b
}

func okFrame() []byte {
	b, _ := json.Marshal(map[string]string{"type": "system", "status": "OK"})
	return b
}

func nokFrame(message string) []byte {
	b, _ := json.Marshal(map[string]string{"type": "system", "status": "NOK", "message": message})
	return b
}

func messagesFrame(msgs []*Message) []byte {
	b, _ := json.Marshal(map[string]any{"type": "messages", "messages": msgs})
	return b
}

func chatsFrame(chats []*Chat) []byte {
	b, _ := json.Marshal(map[string]any{"type": "chats", "chats": chats})
	return b
}
