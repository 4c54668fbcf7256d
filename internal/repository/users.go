package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/bilbot/bilbot/internal/common"
	"github.com/bilbot/bilbot/internal/entity"
)

type UserRepository interface {
	SaveUser(ctx context.Context, u *entity.User) error
	SaveChat(ctx context.Context, c *entity.Chat) error
}

type userRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewUserRepository(db *sql.DB, logger *slog.Logger) UserRepository {
	return &userRepository{db: db, logger: logger}
}

// SaveUser upserts the sender's current identity; names and usernames
// change, the platform ID does not.
func (r *userRepository) SaveUser(ctx context.Context, u *entity.User) error {
	const q = `
INSERT INTO users (id, username, first_name, last_name)
VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	username = excluded.username,
	first_name = excluded.first_name,
	last_name = excluded.last_name,
	updated_at = CURRENT_TIMESTAMP`
	if _, err := r.db.ExecContext(ctx, q, u.ID, u.Username, u.FirstName, u.LastName); err != nil {
		r.logger.Error("repository.save_user_error", "user_id", u.ID, "error", err)
		return common.NewAppError("DATABASE_ERROR", "save user", err)
	}
	return nil
}

func (r *userRepository) SaveChat(ctx context.Context, c *entity.Chat) error {
	const q = `
INSERT INTO chats (id, type, title)
VALUES (?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	type = excluded.type,
	title = excluded.title,
	updated_at = CURRENT_TIMESTAMP`
	if _, err := r.db.ExecContext(ctx, q, c.ID, c.Type, c.Title); err != nil {
		r.logger.Error("repository.save_chat_error", "chat_id", c.ID, "error", err)
		return common.NewAppError("DATABASE_ERROR", "save chat", err)
	}
	return nil
}
