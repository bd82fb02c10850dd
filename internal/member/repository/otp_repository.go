package repository

import (
	"context"
	"errors"
	"time"

	"topli_chat/internal/member/domain"
	"topli_chat/pkg/database"

	"github.com/go-redis/redis/v8"
)

// OTPRepository one-time codes and their send rate limit, keyed by phone or email
type OTPRepository interface {
	SaveCode(ctx context.Context, key string, code domain.OTPCode, ttl time.Duration) error
	// GetCode returns database.ErrNil when no live code exists
	GetCode(ctx context.Context, key string) (domain.OTPCode, error)
	DeleteCode(ctx context.Context, key string) error
	// TryReserveSend 成功回傳 true，被限流時回傳剩餘秒數
	TryReserveSend(ctx context.Context, key string, window time.Duration) (bool, int, error)
}

// ResetRepository email reset codes plus the session granted once a code is verified
type ResetRepository interface {
	OTPRepository
	SaveSession(ctx context.Context, email string, session domain.OTPCode, ttl time.Duration) error
	// GetSession returns database.ErrNil when the session expired
	GetSession(ctx context.Context, email string) (domain.OTPCode, error)
	DeleteSession(ctx context.Context, email string) error
}

type otpRepository struct {
	codes database.RedisRepository[domain.OTPCode]
	sends database.RedisRepository[int64]
}

func newOTPRepository(client *redis.Client, scope string) *otpRepository {
	return &otpRepository{
		codes: database.NewRedisRepository[domain.OTPCode](client, scope+":code:"),
		sends: database.NewRedisRepository[int64](client, scope+":sent:"),
	}
}

// NewOTPRepository phone login codes under otp:*
func NewOTPRepository(client *redis.Client) OTPRepository {
	return newOTPRepository(client, "otp")
}

func (r *otpRepository) SaveCode(ctx context.Context, key string, code domain.OTPCode, ttl time.Duration) error {
	return r.codes.Set(ctx, key, code, ttl)
}

func (r *otpRepository) GetCode(ctx context.Context, key string) (domain.OTPCode, error) {
	return r.codes.Get(ctx, key)
}

func (r *otpRepository) DeleteCode(ctx context.Context, key string) error {
	return r.codes.Del(ctx, key)
}

func (r *otpRepository) TryReserveSend(ctx context.Context, key string, window time.Duration) (bool, int, error) {
	ok, err := r.sends.SetNX(ctx, key, time.Now().UnixMilli(), window)
	if err != nil {
		return false, 0, err
	}
	if ok {
		return true, 0, nil
	}

	retryAfter, err := r.sends.GetTTL(ctx, key)
	if err != nil && !errors.Is(err, database.ErrNil) {
		return false, 0, err
	}
	if retryAfter <= 0 {
		retryAfter = 1
	}
	return false, retryAfter, nil
}

type resetRepository struct {
	*otpRepository
	sessions database.RedisRepository[domain.OTPCode]
}

// NewResetRepository password reset codes and sessions under reset:*
func NewResetRepository(client *redis.Client) ResetRepository {
	return &resetRepository{
		otpRepository: newOTPRepository(client, "reset"),
		sessions:      database.NewRedisRepository[domain.OTPCode](client, "reset:session:"),
	}
}

func (r *resetRepository) SaveSession(ctx context.Context, email string, session domain.OTPCode, ttl time.Duration) error {
	return r.sessions.Set(ctx, email, session, ttl)
}

func (r *resetRepository) GetSession(ctx context.Context, email string) (domain.OTPCode, error) {
	return r.sessions.Get(ctx, email)
}

func (r *resetRepository) DeleteSession(ctx context.Context, email string) error {
	return r.sessions.Del(ctx, email)
}
