package item

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/max0n1x/IIS/internal/db"
	"github.com/max0n1x/IIS/internal/errs"
)

type Repository struct {
	db *db.DB
}

func NewRepository(database *db.DB) *Repository {
	return &Repository{db: database}
}

const itemColumns = `id, name, description, price, size, category_id, condition_id, image_path, author_id`

func scanItem(row pgx.Row) (*Item, error) {
	it := &Item{}
	err := row.Scan(&it.ID, &it.Name, &it.Description, &it.Price, &it.Size,
		&it.CategoryID, &it.ConditionID, &it.ImagePath, &it.AuthorID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return it, nil
}

// Create inserts a listing after verifying the author's session.
func (r *Repository) Create(ctx context.Context, req *CreateRequest) error {
	ok, err := db.SessionValid(ctx, r.db.Pool, req.AuthorID, req.VKey)
	if err != nil {
		return err
	}
	if !ok {
		db.LogError(ctx, r.db.Pool, "Unauthorized")
		return errs.ErrUnauthorized
	}
	const q = `
INSERT INTO items (name, description, price, size, category_id, condition_id, image_path, author_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err = r.db.Pool.Exec(ctx, q, req.Name, req.Description, req.Price, req.Size,
		req.CategoryID, req.ConditionID, req.ImagePath, req.AuthorID)
	return err
}

// Get returns a single listing.
func (r *Repository) Get(ctx context.Context, itemID int) (*Item, error) {
	return scanItem(r.db.Pool.QueryRow(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = $1`, itemID))
}

// ListByCategory returns every listing in a category.
func (r *Repository) ListByCategory(ctx context.Context, categoryID string) ([]*Item, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+itemColumns+` FROM items WHERE category_id = $1`, categoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

// ListByAuthor returns the caller's own listings.
func (r *Repository) ListByAuthor(ctx context.Context, userID int, vKey string) ([]*Item, error) {
	ok, err := db.SessionValid(ctx, r.db.Pool, userID, vKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		db.LogError(ctx, r.db.Pool, "Unauthorized")
		return nil, errs.ErrUnauthorized
	}
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+itemColumns+` FROM items WHERE author_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

func collect(rows pgx.Rows) ([]*Item, error) {
	items := []*Item{}
	for rows.Next() {
		it := &Item{}
		if err := rows.Scan(&it.ID, &it.Name, &it.Description, &it.Price, &it.Size,
			&it.CategoryID, &it.ConditionID, &it.ImagePath, &it.AuthorID); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// Update overwrites a listing owned by the caller.
func (r *Repository) Update(ctx context.Context, req *UpdateRequest) error {
	ok, err := db.SessionValid(ctx, r.db.Pool, req.AuthorID, req.VKey)
	if err != nil {
		return err
	}
	if !ok {
		db.LogError(ctx, r.db.Pool, "Unauthorized")
		return errs.ErrUnauthorized
	}

	cur, err := r.Get(ctx, req.ItemID)
	if err != nil {
		return err
	}
	if cur.AuthorID != req.AuthorID {
		db.LogError(ctx, r.db.Pool, "Unauthorized")
		return errs.ErrUnauthorized
	}

	// Unset fields keep their previous value.
	if req.Name != nil {
		cur.Name = *req.Name
	}
	if req.Description != nil {
		cur.Description = req.Description
	}
	if req.Price != nil {
		cur.Price = *req.Price
	}
	if req.Size != nil {
		cur.Size = req.Size
	}
	if req.CategoryID != nil {
		cur.CategoryID = *req.CategoryID
	}
	if req.ConditionID != nil {
		cur.ConditionID = *req.ConditionID
	}
	if req.ImagePath != nil {
		cur.ImagePath = *req.ImagePath
	}

	const q = `
UPDATE items
SET name = $1, description = $2, price = $3, size = $4, category_id = $5, condition_id = $6, image_path = $7
WHERE id = $8`
	_, err = r.db.Pool.Exec(ctx, q, cur.Name, cur.Description, cur.Price, cur.Size,
		cur.CategoryID, cur.ConditionID, cur.ImagePath, req.ItemID)
	return err
}

// Delete removes a listing owned by the caller together with every chat
// opened over it, those chats' messages and any reports against it.
func (r *Repository) Delete(ctx context.Context, itemID, authorID int, vKey string) error {
	ok, err := db.SessionValid(ctx, r.db.Pool, authorID, vKey)
	if err != nil {
		return err
	}
	if !ok {
		db.LogError(ctx, r.db.Pool, "Unauthorized")
		return errs.ErrUnauthorized
	}

	cur, err := r.Get(ctx, itemID)
	if err != nil {
		return err
	}
	if cur.AuthorID != authorID {
		db.LogError(ctx, r.db.Pool, "Unauthorized")
		return errs.ErrUnauthorized
	}

	return CascadeDelete(ctx, r.db.Pool, itemID)
}

// CascadeDelete removes an item and its dependents inside one transaction.
// Shared with the moderation flows, which delete items they do not own.
func CascadeDelete(ctx context.Context, pool db.PgxPool, itemID int) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`DELETE FROM messages WHERE chat_id IN (SELECT chat_id FROM chats WHERE item_id = $1)`, itemID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM chats WHERE item_id = $1`, itemID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM reports WHERE item_id = $1`, itemID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM items WHERE id = $1`, itemID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Report files a complaint against a listing. No session required.
func (r *Repository) Report(ctx context.Context, req *ReportRequest) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO reports (reason, item_id) VALUES ($1, $2)`, req.Reason, req.ItemID)
	return err
}
