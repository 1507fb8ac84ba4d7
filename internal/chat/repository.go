package chat

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/max0n1x/IIS/internal/db"
	"github.com/max0n1x/IIS/internal/errs"
)

// Repository implements the Store contract against PostgreSQL. Every
// privileged operation re-checks the validation key; nothing trusts a key
// beyond the single call it arrived with.
type Repository struct {
	db *db.DB
}

func NewRepository(database *db.DB) *Repository {
	return &Repository{db: database}
}

// ValidateSession reports whether vKey is current for userID.
func (r *Repository) ValidateSession(ctx context.Context, userID int, vKey string) (bool, error) {
	return db.SessionValid(ctx, r.db.Pool, userID, vKey)
}

func (r *Repository) requireSession(ctx context.Context, userID int, vKey string) error {
	ok, err := r.ValidateSession(ctx, userID, vKey)
	if err != nil {
		return err
	}
	if !ok {
		db.LogError(ctx, r.db.Pool, "Unauthorized")
		return errs.ErrUnauthorized
	}
	return nil
}

// CreateChat opens a chat between two users over an item. Creation is
// idempotent: an existing (user_from, user_to, item_id) triple returns the
// existing chat id.
func (r *Repository) CreateChat(ctx context.Context, userFrom, userTo, itemID int, vKey string) (int, error) {
	if err := r.requireSession(ctx, userFrom, vKey); err != nil {
		return 0, err
	}

	var chatID int
	err := r.db.Pool.QueryRow(ctx,
		`SELECT chat_id FROM chats WHERE user_from = $1 AND user_to = $2 AND item_id = $3`,
		userFrom, userTo, itemID).Scan(&chatID)
	if err == nil {
		return chatID, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}

	err = r.db.Pool.QueryRow(ctx,
		`INSERT INTO chats (user_from, user_to, item_id) VALUES ($1, $2, $3) RETURNING chat_id`,
		userFrom, userTo, itemID).Scan(&chatID)
	return chatID, err
}

// GetChat returns a chat if it exists and the caller participates in it.
func (r *Repository) GetChat(ctx context.Context, chatID, userID int, vKey string) (*Chat, error) {
	if err := r.requireSession(ctx, userID, vKey); err != nil {
		return nil, err
	}

	c := &Chat{}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT chat_id, user_from, user_to, item_id FROM chats WHERE chat_id = $1`, chatID).
		Scan(&c.ChatID, &c.UserFrom, &c.UserTo, &c.ItemID)
	if errors.Is(err, pgx.ErrNoRows) {
		db.LogError(ctx, r.db.Pool, "Chat not found")
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if c.UserFrom != userID && c.UserTo != userID {
		db.LogError(ctx, r.db.Pool, "Unauthorized")
		return nil, errs.ErrUnauthorized
	}
	return c, nil
}

// GetChats returns every chat the user participates in.
func (r *Repository) GetChats(ctx context.Context, userID int, vKey string) ([]*Chat, error) {
	if err := r.requireSession(ctx, userID, vKey); err != nil {
		return nil, err
	}

	rows, err := r.db.Pool.Query(ctx,
		`SELECT chat_id, user_from, user_to, item_id FROM chats WHERE user_from = $1 OR user_to = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	chats := []*Chat{}
	for rows.Next() {
		c := &Chat{}
		if err := rows.Scan(&c.ChatID, &c.UserFrom, &c.UserTo, &c.ItemID); err != nil {
			return nil, err
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

// DeleteChat removes a chat and its messages. Either participant may delete.
func (r *Repository) DeleteChat(ctx context.Context, chatID, userID int, vKey string) error {
	if _, err := r.GetChat(ctx, chatID, userID, vKey); err != nil {
		return err
	}

	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM messages WHERE chat_id = $1`, chatID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM chats WHERE chat_id = $1`, chatID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// CreateMessage appends a message. The author must hold a valid session and
// participate in the chat.
func (r *Repository) CreateMessage(ctx context.Context, chatID int, body, timestamp string, authorID int, vKey string) error {
	if _, err := r.GetChat(ctx, chatID, authorID, vKey); err != nil {
		return err
	}
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO messages (chat_id, user_from, message, date) VALUES ($1, $2, $3, $4)`,
		chatID, authorID, body, timestamp)
	return err
}

// GetMessages returns the full message list of a chat.
func (r *Repository) GetMessages(ctx context.Context, chatID, userID int, vKey string) ([]*Message, error) {
	if err := r.requireSession(ctx, userID, vKey); err != nil {
		return nil, err
	}

	rows, err := r.db.Pool.Query(ctx,
		`SELECT message_id, chat_id, user_from, message, date FROM messages WHERE chat_id = $1 ORDER BY message_id`, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs := []*Message{}
	for rows.Next() {
		m := &Message{}
		if err := rows.Scan(&m.MessageID, &m.ChatID, &m.UserFrom, &m.Message, &m.Date); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// UpdateMessage edits a message body. Only the author may edit.
func (r *Repository) UpdateMessage(ctx context.Context, messageID int, body string, authorID int, vKey string) error {
	if body == "" {
		db.LogError(ctx, r.db.Pool, "Empty message")
		return errs.ErrInvalid
	}
	if err := r.requireAuthor(ctx, messageID, authorID, vKey); err != nil {
		return err
	}
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE messages SET message = $1 WHERE message_id = $2`, body, messageID)
	return err
}

// DeleteMessage removes a message. Only the author may delete.
func (r *Repository) DeleteMessage(ctx context.Context, messageID, userID int, vKey string) error {
	if err := r.requireAuthor(ctx, messageID, userID, vKey); err != nil {
		return err
	}
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM messages WHERE message_id = $1`, messageID)
	return err
}

func (r *Repository) requireAuthor(ctx context.Context, messageID, userID int, vKey string) error {
	if err := r.requireSession(ctx, userID, vKey); err != nil {
		return err
	}
	var author int
	err := r.db.Pool.QueryRow(ctx,
		`SELECT user_from FROM messages WHERE message_id = $1`, messageID).Scan(&author)
	if errors.Is(err, pgx.ErrNoRows) {
		db.LogError(ctx, r.db.Pool, "Message not found")
		return errs.ErrNotFound
	}
	if err != nil {
		return err
	}
	if author != userID {
		db.LogError(ctx, r.db.Pool, "Unauthorized")
		return errs.ErrUnauthorized
	}
	return nil
}
