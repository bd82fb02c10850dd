package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	chatdomain "topli_chat/internal/chat/domain"
	"topli_chat/internal/member/domain"
	"topli_chat/internal/member/repository"
	notifydomain "topli_chat/internal/notify/domain"
	"topli_chat/pkg/database"
	"topli_chat/pkg/encrypt"
	errprocess "topli_chat/pkg/err"
	"topli_chat/pkg/logger"
	"topli_chat/pkg/token"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Notifier delivers login and reset codes
type Notifier interface {
	SendSMS(ctx context.Context, phone, text string) error
	SendEmail(ctx context.Context, msg notifydomain.EmailMessage) error
}

// ContactStore private contact record of a member
type ContactStore interface {
	UpsertContact(ctx context.Context, uid, email, phone string) error
	UIDByEmail(ctx context.Context, email string) (string, error)
}

// AvatarStorage bucket holding profile photos
type AvatarStorage interface {
	PutObject(ctx context.Context, objectName string, r io.Reader, size int64, contentType string) (string, error)
}

// ErrRateLimited send-code called again inside the resend window
var ErrRateLimited = fmt.Errorf("otp resend limited: %w", chatdomain.ErrConflict)

// MemberUseCase 這裡封裝了對外提供的應用服務
type MemberUseCase interface {
	SaveUser(ctx context.Context, callerID string, callerRole token.RoleType, in domain.SaveUserInput) (*domain.User, error)
	Profile(ctx context.Context, uid string) (*domain.User, error)
	DisplayInfo(ctx context.Context, uid string) (string, string, error)
	// SendCode returns the seconds left when rate limited
	SendCode(ctx context.Context, phone string) (int, error)
	VerifyCode(ctx context.Context, phone, code string) (string, *domain.User, error)
	// Login email and password, returns a session token like VerifyCode
	Login(ctx context.Context, email, password string) (string, *domain.User, error)
	// SendResetCode returns the seconds left when rate limited
	SendResetCode(ctx context.Context, email string) (int, error)
	// VerifyResetCode returns the reset session token
	VerifyResetCode(ctx context.Context, email, code string) (string, error)
	ResetPassword(ctx context.Context, email, resetToken, newPassword string) error
	UploadAvatar(ctx context.Context, callerID string, callerRole token.RoleType, in domain.AvatarUpload) (*domain.User, error)
}

type memberUseCase struct {
	userRepo    repository.UserRepository
	otpRepo     repository.OTPRepository
	resetRepo   repository.ResetRepository
	contacts    ContactStore
	notifier    Notifier
	avatars     AvatarStorage
	otpTTL      time.Duration
	resendLimit time.Duration
	now         func() time.Time
}

// NewMemberUseCase 建立一個新的 MemberUseCase
func NewMemberUseCase(
	userRepo repository.UserRepository,
	otpRepo repository.OTPRepository,
	resetRepo repository.ResetRepository,
	contacts ContactStore,
	notifier Notifier,
	avatars AvatarStorage,
	otpTTL, resendLimit time.Duration,
) MemberUseCase {
	if otpTTL <= 0 {
		otpTTL = 300 * time.Second
	}
	if resendLimit <= 0 {
		resendLimit = 5 * time.Minute
	}
	return &memberUseCase{
		userRepo:    userRepo,
		otpRepo:     otpRepo,
		resetRepo:   resetRepo,
		contacts:    contacts,
		notifier:    notifier,
		avatars:     avatars,
		otpTTL:      otpTTL,
		resendLimit: resendLimit,
		now:         time.Now,
	}
}

// SaveUser 建立或更新公開資料與私有聯絡方式
func (m *memberUseCase) SaveUser(ctx context.Context, callerID string, callerRole token.RoleType, in domain.SaveUserInput) (*domain.User, error) {
	if callerID == "" {
		return nil, errprocess.Wrap(chatdomain.ErrUnauthorized, "save user without caller")
	}
	if in.UID == "" {
		in.UID = callerID
	}
	if in.UID != callerID && callerRole != token.RoleAdmin {
		return nil, errprocess.Wrap(chatdomain.ErrForbidden, "cannot save another user", zap.String("uid", in.UID))
	}

	existing, err := m.userRepo.FindByID(ctx, in.UID)
	if err != nil && !errors.Is(err, chatdomain.ErrNotFound) {
		return nil, err
	}

	role := string(token.RoleClient)
	if existing != nil && existing.Role != "" {
		role = existing.Role
	}
	// 只有 admin 可以變更角色
	if in.Role != "" && in.Role != role {
		if callerRole != token.RoleAdmin {
			return nil, errprocess.Wrap(chatdomain.ErrForbidden, "only admin can change roles", zap.String("uid", in.UID))
		}
		if !token.RoleType(in.Role).Valid() {
			return nil, errprocess.Wrap(chatdomain.ErrInvalidArgument, "unknown role", zap.String("role", in.Role))
		}
		role = in.Role
	}

	notification := in.Notification
	if notification == "" {
		notification = domain.DefaultNotification
	}
	if !notification.Valid() {
		return nil, errprocess.Wrap(chatdomain.ErrInvalidArgument, "unknown notification channel", zap.String("notification", string(notification)))
	}

	language := strings.TrimSpace(in.Language)
	if language == "" {
		language = domain.DefaultLanguage
	}

	phone := domain.NormalizePhone(in.Phone)
	masked := in.MaskedPhone
	if masked == "" {
		masked = domain.MaskPhone(phone)
		if role == string(token.RoleAdmin) {
			masked = phone
		}
	}

	user := &domain.User{
		UID:          in.UID,
		Name:         strings.TrimSpace(in.Name),
		PhotoURL:     in.PhotoURL,
		Phone:        phone,
		MaskedPhone:  masked,
		Role:         role,
		Position:     in.Position,
		Company:      in.Company,
		Language:     language,
		Notification: notification,
		UpdatedAt:    m.now().UTC(),
	}

	if err := m.userRepo.Upsert(ctx, user); err != nil {
		return nil, err
	}
	if err := m.contacts.UpsertContact(ctx, user.UID, domain.NormalizeEmail(in.Email), phone); err != nil {
		return nil, fmt.Errorf("save contact: %w", err)
	}

	logger.Log.Info("user saved", zap.String("uid", user.UID), zap.String("role", role))
	return user, nil
}

// Profile public record of a member
func (m *memberUseCase) Profile(ctx context.Context, uid string) (*domain.User, error) {
	if uid == "" {
		return nil, errprocess.Wrap(chatdomain.ErrUnauthorized, "profile without caller")
	}
	return m.userRepo.FindByID(ctx, uid)
}

// DisplayInfo name and photo shown on messages
func (m *memberUseCase) DisplayInfo(ctx context.Context, uid string) (string, string, error) {
	u, err := m.userRepo.FindByID(ctx, uid)
	if err != nil {
		return "", "", err
	}
	return u.Name, u.PhotoURL, nil
}

// SendCode 產生 OTP 並以簡訊送出，同一支電話在限制時間內只能送一次
func (m *memberUseCase) SendCode(ctx context.Context, phone string) (int, error) {
	phone = domain.NormalizePhone(phone)
	if phone == "" {
		return 0, errprocess.Wrap(chatdomain.ErrInvalidArgument, "Missing phone")
	}

	ok, retryAfter, err := m.otpRepo.TryReserveSend(ctx, phone, m.resendLimit)
	if err != nil {
		return 0, err
	}
	if !ok {
		logger.Log.Info("otp send limited", zap.String("phone", domain.MaskPhone(phone)), zap.Int("retry_after", retryAfter))
		return retryAfter, ErrRateLimited
	}

	code, err := encrypt.GenerateOTP()
	if err != nil {
		return 0, err
	}
	hash, err := encrypt.HashCode(code)
	if err != nil {
		return 0, err
	}

	if err := m.otpRepo.SaveCode(ctx, phone, domain.OTPCode{Hash: hash, CreatedAt: m.now().UTC()}, m.otpTTL); err != nil {
		return 0, err
	}
	if err := m.notifier.SendSMS(ctx, phone, "Your code: "+code); err != nil {
		return 0, fmt.Errorf("send otp sms: %w", err)
	}
	return 0, nil
}

// VerifyCode 驗證 OTP，成功後發 JWT；第一次登入的電話建立 client 帳號
func (m *memberUseCase) VerifyCode(ctx context.Context, phone, code string) (string, *domain.User, error) {
	phone = domain.NormalizePhone(phone)
	if phone == "" || code == "" {
		return "", nil, errprocess.Wrap(chatdomain.ErrInvalidArgument, "Missing phone or code")
	}

	saved, err := m.otpRepo.GetCode(ctx, phone)
	if errors.Is(err, database.ErrNil) {
		return "", nil, errprocess.Wrap(chatdomain.ErrUnauthorized, "Invalid code")
	}
	if err != nil {
		return "", nil, err
	}
	if err := encrypt.CheckCode(saved.Hash, code); err != nil {
		return "", nil, errprocess.Wrap(chatdomain.ErrUnauthorized, "Invalid code")
	}

	if err := m.otpRepo.DeleteCode(ctx, phone); err != nil {
		logger.Log.Warn("delete otp failed", zap.Error(err))
	}

	user, err := m.userRepo.FindByPhone(ctx, phone)
	if errors.Is(err, chatdomain.ErrNotFound) {
		user, err = m.register(ctx, phone)
	}
	if err != nil {
		return "", nil, err
	}

	jwt, err := token.IssueSession(user.UID, user.Role)
	if err != nil {
		return "", nil, err
	}
	return jwt, user, nil
}

func (m *memberUseCase) register(ctx context.Context, phone string) (*domain.User, error) {
	user := &domain.User{
		UID:          uuid.New().String(),
		Phone:        phone,
		MaskedPhone:  domain.MaskPhone(phone),
		Role:         string(token.RoleClient),
		Language:     domain.DefaultLanguage,
		Notification: domain.DefaultNotification,
		UpdatedAt:    m.now().UTC(),
	}
	if err := m.userRepo.Upsert(ctx, user); err != nil {
		return nil, err
	}
	if err := m.contacts.UpsertContact(ctx, user.UID, "", phone); err != nil {
		return nil, fmt.Errorf("save contact: %w", err)
	}

	logger.Log.Info("user registered by phone", zap.String("uid", user.UID))
	return user, nil
}
