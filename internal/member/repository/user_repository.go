package repository

import (
	"context"
	"errors"
	"fmt"

	"topli_chat/internal/chat/domain"
	memberdomain "topli_chat/internal/member/domain"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

const userSchema = `
CREATE TABLE IF NOT EXISTS users (
	uid          TEXT PRIMARY KEY,
	name         TEXT NOT NULL DEFAULT '',
	photo_url    TEXT NOT NULL DEFAULT '',
	phone        TEXT UNIQUE,
	masked_phone TEXT NOT NULL DEFAULT '',
	role         TEXT NOT NULL DEFAULT 'client',
	position     TEXT NOT NULL DEFAULT '',
	company      TEXT NOT NULL DEFAULT '',
	language     TEXT NOT NULL DEFAULT 'TR',
	notification TEXT NOT NULL DEFAULT 'email',
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
ALTER TABLE users ADD COLUMN IF NOT EXISTS password_hash TEXT NOT NULL DEFAULT ''`

const userColumns = "uid, name, photo_url, COALESCE(phone, ''), masked_phone, role, position, company, language, notification, updated_at"

// UserRepository definition public user directory
type UserRepository interface {
	EnsureSchema(ctx context.Context) error
	Upsert(ctx context.Context, user *memberdomain.User) error
	FindByID(ctx context.Context, uid string) (*memberdomain.User, error)
	FindByPhone(ctx context.Context, phone string) (*memberdomain.User, error)
	// ListNotifiable users whose notification channel is not none
	ListNotifiable(ctx context.Context) ([]memberdomain.User, error)
	// SetPasswordHash 只更新密碼欄位，uid 不存在時回傳 ErrNotFound
	SetPasswordHash(ctx context.Context, uid, hash string) error
	// PasswordHash empty when the user never set a password
	PasswordHash(ctx context.Context, uid string) (string, error)
}

type userRepository struct {
	db *pgxpool.Pool
}

// NewUserRepository create a UserRepository
func NewUserRepository(db *pgxpool.Pool) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, userSchema)
	return err
}

func (r *userRepository) Upsert(ctx context.Context, u *memberdomain.User) error {
	var phone interface{}
	if u.Phone != "" {
		phone = u.Phone
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO users (uid, name, photo_url, phone, masked_phone, role, position, company, language, notification, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (uid) DO UPDATE SET
			name = EXCLUDED.name,
			photo_url = EXCLUDED.photo_url,
			phone = EXCLUDED.phone,
			masked_phone = EXCLUDED.masked_phone,
			role = EXCLUDED.role,
			position = EXCLUDED.position,
			company = EXCLUDED.company,
			language = EXCLUDED.language,
			notification = EXCLUDED.notification,
			updated_at = EXCLUDED.updated_at`,
		u.UID, u.Name, u.PhotoURL, phone, u.MaskedPhone, u.Role, u.Position, u.Company, u.Language, string(u.Notification), u.UpdatedAt,
	)
	return err
}

func (r *userRepository) FindByID(ctx context.Context, uid string) (*memberdomain.User, error) {
	return r.findOne(ctx, "SELECT "+userColumns+" FROM users WHERE uid = $1", uid)
}

func (r *userRepository) FindByPhone(ctx context.Context, phone string) (*memberdomain.User, error) {
	return r.findOne(ctx, "SELECT "+userColumns+" FROM users WHERE phone = $1", phone)
}

func (r *userRepository) ListNotifiable(ctx context.Context) ([]memberdomain.User, error) {
	rows, err := r.db.Query(ctx, "SELECT "+userColumns+" FROM users WHERE notification <> $1 ORDER BY uid", string(memberdomain.NotifyNone))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []memberdomain.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (r *userRepository) SetPasswordHash(ctx context.Context, uid, hash string) error {
	tag, err := r.db.Exec(ctx, "UPDATE users SET password_hash = $2, updated_at = now() WHERE uid = $1", uid, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", uid, domain.ErrNotFound)
	}
	return nil
}

func (r *userRepository) PasswordHash(ctx context.Context, uid string) (string, error) {
	var hash string
	err := r.db.QueryRow(ctx, "SELECT password_hash FROM users WHERE uid = $1", uid).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("user %s: %w", uid, domain.ErrNotFound)
	}
	return hash, err
}

func (r *userRepository) findOne(ctx context.Context, query string, arg string) (*memberdomain.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", arg, domain.ErrNotFound)
	}
	return u, err
}

func scanUser(row pgx.Row) (*memberdomain.User, error) {
	var (
		u            memberdomain.User
		notification string
	)
	err := row.Scan(&u.UID, &u.Name, &u.PhotoURL, &u.Phone, &u.MaskedPhone, &u.Role, &u.Position, &u.Company, &u.Language, &notification, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.Notification = memberdomain.NotificationChannel(notification)
	return &u, nil
}
