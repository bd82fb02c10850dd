package app

import (
	"context"
	"errors"
	"fmt"
	"html"

	chatdomain "topli_chat/internal/chat/domain"
	"topli_chat/internal/member/domain"
	notifydomain "topli_chat/internal/notify/domain"
	"topli_chat/pkg/database"
	"topli_chat/pkg/encrypt"
	errprocess "topli_chat/pkg/err"
	"topli_chat/pkg/logger"
	"topli_chat/pkg/token"

	"go.uber.org/zap"
)

// resetTokenBytes reset session token entropy
const resetTokenBytes = 32

// Login 以 email 與密碼登入，失敗時不區分帳號不存在或密碼錯誤
func (m *memberUseCase) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	email = domain.NormalizeEmail(email)
	if email == "" || password == "" {
		return "", nil, errprocess.Wrap(chatdomain.ErrInvalidArgument, "Missing email or password")
	}

	uid, err := m.contacts.UIDByEmail(ctx, email)
	if errors.Is(err, chatdomain.ErrNotFound) {
		return "", nil, errprocess.Wrap(chatdomain.ErrUnauthorized, "Invalid email or password")
	}
	if err != nil {
		return "", nil, err
	}

	hash, err := m.userRepo.PasswordHash(ctx, uid)
	if errors.Is(err, chatdomain.ErrNotFound) || (err == nil && hash == "") {
		return "", nil, errprocess.Wrap(chatdomain.ErrUnauthorized, "Invalid email or password")
	}
	if err != nil {
		return "", nil, err
	}
	if err := encrypt.CheckCode(hash, password); err != nil {
		return "", nil, errprocess.Wrap(chatdomain.ErrUnauthorized, "Invalid email or password")
	}

	user, err := m.userRepo.FindByID(ctx, uid)
	if err != nil {
		return "", nil, err
	}
	jwt, err := token.IssueSession(user.UID, user.Role)
	if err != nil {
		return "", nil, err
	}
	return jwt, user, nil
}

// SendResetCode 寄出密碼重設碼，同一個 email 5 分鐘內只能寄一次
func (m *memberUseCase) SendResetCode(ctx context.Context, email string) (int, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return 0, errprocess.Wrap(chatdomain.ErrInvalidArgument, "Missing email")
	}

	uid, err := m.contacts.UIDByEmail(ctx, email)
	if err != nil {
		return 0, err
	}

	ok, retryAfter, err := m.resetRepo.TryReserveSend(ctx, email, domain.ResetResendLimit)
	if err != nil {
		return 0, err
	}
	if !ok {
		logger.Log.Info("reset code limited", zap.String("uid", uid), zap.Int("retry_after", retryAfter))
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
	if err := m.resetRepo.SaveCode(ctx, email, domain.OTPCode{Hash: hash, CreatedAt: m.now().UTC()}, domain.ResetCodeTTL); err != nil {
		return 0, err
	}

	if err := m.notifier.SendEmail(ctx, resetEmail(email, code)); err != nil {
		return 0, fmt.Errorf("send reset email: %w", err)
	}
	logger.Log.Info("reset code sent", zap.String("uid", uid))
	return 0, nil
}

// VerifyResetCode 驗證重設碼，成功後換成 15 分鐘有效的重設 session
func (m *memberUseCase) VerifyResetCode(ctx context.Context, email, code string) (string, error) {
	email = domain.NormalizeEmail(email)
	if email == "" || code == "" {
		return "", errprocess.Wrap(chatdomain.ErrInvalidArgument, "Missing email or code")
	}

	saved, err := m.resetRepo.GetCode(ctx, email)
	if errors.Is(err, database.ErrNil) {
		return "", errprocess.Wrap(chatdomain.ErrInvalidArgument, "Code expired")
	}
	if err != nil {
		return "", err
	}
	if err := encrypt.CheckCode(saved.Hash, code); err != nil {
		return "", errprocess.Wrap(chatdomain.ErrInvalidArgument, "Invalid code")
	}

	resetToken, err := encrypt.GenerateToken(resetTokenBytes)
	if err != nil {
		return "", err
	}
	hash, err := encrypt.HashCode(resetToken)
	if err != nil {
		return "", err
	}
	if err := m.resetRepo.SaveSession(ctx, email, domain.OTPCode{Hash: hash, CreatedAt: m.now().UTC()}, domain.ResetSessionTTL); err != nil {
		return "", err
	}

	// 重設碼只能換一次 session
	if err := m.resetRepo.DeleteCode(ctx, email); err != nil {
		logger.Log.Warn("delete reset code failed", zap.Error(err))
	}
	return resetToken, nil
}

// ResetPassword 以重設 session 設定新密碼
func (m *memberUseCase) ResetPassword(ctx context.Context, email, resetToken, newPassword string) error {
	email = domain.NormalizeEmail(email)
	if email == "" || resetToken == "" || newPassword == "" {
		return errprocess.Wrap(chatdomain.ErrInvalidArgument, "Missing fields")
	}
	if len(newPassword) < domain.MinPasswordLength || len(newPassword) > domain.MaxPasswordLength {
		return errprocess.Wrap(chatdomain.ErrInvalidArgument, "Password length out of range",
			zap.Int("min", domain.MinPasswordLength),
			zap.Int("max", domain.MaxPasswordLength),
		)
	}

	session, err := m.resetRepo.GetSession(ctx, email)
	if errors.Is(err, database.ErrNil) {
		return errprocess.Wrap(chatdomain.ErrForbidden, "Invalid session")
	}
	if err != nil {
		return err
	}
	if err := encrypt.CheckCode(session.Hash, resetToken); err != nil {
		return errprocess.Wrap(chatdomain.ErrForbidden, "Invalid session")
	}

	uid, err := m.contacts.UIDByEmail(ctx, email)
	if err != nil {
		return err
	}
	hash, err := encrypt.HashCode(newPassword)
	if err != nil {
		return err
	}
	if err := m.userRepo.SetPasswordHash(ctx, uid, hash); err != nil {
		return err
	}

	if err := m.resetRepo.DeleteSession(ctx, email); err != nil {
		logger.Log.Warn("delete reset session failed", zap.Error(err))
	}
	if err := m.resetRepo.DeleteCode(ctx, email); err != nil {
		logger.Log.Warn("delete reset code failed", zap.Error(err))
	}

	logger.Log.Info("password reset", zap.String("uid", uid))
	return nil
}

func resetEmail(to, code string) notifydomain.EmailMessage {
	return notifydomain.EmailMessage{
		To:      to,
		Subject: "Topli password reset",
		HTML: fmt.Sprintf("<p>Your password reset code is <b>%s</b>.</p><p>It expires in %d minutes.</p>",
			html.EscapeString(code), int(domain.ResetCodeTTL.Minutes())),
	}
}
