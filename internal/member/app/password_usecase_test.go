package app

import (
	"context"
	"regexp"
	"testing"

	chatdomain "topli_chat/internal/chat/domain"
	"topli_chat/internal/member/domain"
	notifydomain "topli_chat/internal/notify/domain"
	"topli_chat/pkg/database"
	"topli_chat/pkg/encrypt"
	"topli_chat/pkg/logger"
	"topli_chat/pkg/token"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var resetCodePattern = regexp.MustCompile(`<b>(\d{6})</b>`)

func TestMemberUseCase_PasswordResetFlow(t *testing.T) {
	logger.SetNewNop()
	ctx := context.Background()
	uc, m := newTestUseCase()
	const email = "ayse@topli.com"

	var (
		savedCode    domain.OTPCode
		savedSession domain.OTPCode
		sent         notifydomain.EmailMessage
		passwordHash string
	)

	m.contacts.On("UIDByEmail", ctx, email).Return("u1", nil)
	m.resets.On("TryReserveSend", ctx, email, domain.ResetResendLimit).Return(true, 0, nil)
	m.resets.On("SaveCode", ctx, email, mock.Anything, domain.ResetCodeTTL).Run(func(args mock.Arguments) {
		savedCode = args.Get(2).(domain.OTPCode)
	}).Return(nil)
	m.notifier.On("SendEmail", ctx, mock.Anything).Run(func(args mock.Arguments) {
		sent = args.Get(1).(notifydomain.EmailMessage)
	}).Return(nil)

	retry, err := uc.SendResetCode(ctx, " Ayse@Topli.com ")
	require.NoError(t, err)
	assert.Zero(t, retry)
	assert.Equal(t, email, sent.To)
	match := resetCodePattern.FindStringSubmatch(sent.HTML)
	require.Len(t, match, 2)
	code := match[1]
	assert.NotEqual(t, code, savedCode.Hash)

	// 驗證碼換 session
	m.resets.On("GetCode", ctx, email).Return(savedCode, nil)
	m.resets.On("SaveSession", ctx, email, mock.Anything, domain.ResetSessionTTL).Run(func(args mock.Arguments) {
		savedSession = args.Get(2).(domain.OTPCode)
	}).Return(nil)
	m.resets.On("DeleteCode", ctx, email).Return(nil)

	_, err = uc.VerifyResetCode(ctx, email, "000000")
	assert.ErrorIs(t, err, chatdomain.ErrInvalidArgument)

	resetToken, err := uc.VerifyResetCode(ctx, email, code)
	require.NoError(t, err)
	assert.Len(t, resetToken, 2*resetTokenBytes)
	assert.NoError(t, encrypt.CheckCode(savedSession.Hash, resetToken))
	m.resets.AssertCalled(t, "DeleteCode", ctx, email)

	// session 換新密碼
	m.resets.On("GetSession", ctx, email).Return(savedSession, nil)
	m.resets.On("DeleteSession", ctx, email).Return(nil)
	m.users.On("SetPasswordHash", ctx, "u1", mock.Anything).Run(func(args mock.Arguments) {
		passwordHash = args.String(2)
	}).Return(nil)

	assert.ErrorIs(t, uc.ResetPassword(ctx, email, "forged", "new-secret-1"), chatdomain.ErrForbidden)
	assert.ErrorIs(t, uc.ResetPassword(ctx, email, resetToken, "short"), chatdomain.ErrInvalidArgument)
	m.users.AssertNotCalled(t, "SetPasswordHash", mock.Anything, mock.Anything, mock.Anything)

	require.NoError(t, uc.ResetPassword(ctx, email, resetToken, "new-secret-1"))
	assert.NoError(t, encrypt.CheckCode(passwordHash, "new-secret-1"))
	m.resets.AssertCalled(t, "DeleteSession", ctx, email)

	// 新密碼可以登入
	m.users.On("PasswordHash", ctx, "u1").Return(passwordHash, nil)
	m.users.On("FindByID", ctx, "u1").Return(&domain.User{UID: "u1", Role: "client"}, nil)

	_, _, err = uc.Login(ctx, email, "old-secret")
	assert.ErrorIs(t, err, chatdomain.ErrUnauthorized)

	jwt, user, err := uc.Login(ctx, "AYSE@topli.com", "new-secret-1")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.UID)
	claims, err := token.VerifySession(jwt)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.MemberID)
}

func TestMemberUseCase_SendResetCode_RateLimited(t *testing.T) {
	logger.SetNewNop()
	ctx := context.Background()
	uc, m := newTestUseCase()

	m.contacts.On("UIDByEmail", ctx, "ayse@topli.com").Return("u1", nil)
	m.resets.On("TryReserveSend", ctx, "ayse@topli.com", domain.ResetResendLimit).Return(false, 200, nil)

	retry, err := uc.SendResetCode(ctx, "ayse@topli.com")
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, 200, retry)
	m.notifier.AssertNotCalled(t, "SendEmail", mock.Anything, mock.Anything)
}

func TestMemberUseCase_SendResetCode_UnknownEmail(t *testing.T) {
	logger.SetNewNop()
	ctx := context.Background()
	uc, m := newTestUseCase()

	m.contacts.On("UIDByEmail", ctx, "nobody@topli.com").Return("", chatdomain.ErrNotFound)

	_, err := uc.SendResetCode(ctx, "nobody@topli.com")
	assert.ErrorIs(t, err, chatdomain.ErrNotFound)
	m.resets.AssertNotCalled(t, "TryReserveSend", mock.Anything, mock.Anything, mock.Anything)

	_, err = uc.SendResetCode(ctx, " ")
	assert.ErrorIs(t, err, chatdomain.ErrInvalidArgument)
}

func TestMemberUseCase_ResetExpired(t *testing.T) {
	logger.SetNewNop()
	ctx := context.Background()
	uc, m := newTestUseCase()

	m.resets.On("GetCode", ctx, "ayse@topli.com").Return(domain.OTPCode{}, database.ErrNil)
	m.resets.On("GetSession", ctx, "ayse@topli.com").Return(domain.OTPCode{}, database.ErrNil)

	_, err := uc.VerifyResetCode(ctx, "ayse@topli.com", "123456")
	assert.ErrorIs(t, err, chatdomain.ErrInvalidArgument)

	err = uc.ResetPassword(ctx, "ayse@topli.com", "token", "new-secret-1")
	assert.ErrorIs(t, err, chatdomain.ErrForbidden)
}

func TestMemberUseCase_Login_NoPassword(t *testing.T) {
	logger.SetNewNop()
	ctx := context.Background()
	uc, m := newTestUseCase()

	m.contacts.On("UIDByEmail", ctx, "phone-only@topli.com").Return("u2", nil)
	m.contacts.On("UIDByEmail", ctx, "nobody@topli.com").Return("", chatdomain.ErrNotFound)
	m.users.On("PasswordHash", ctx, "u2").Return("", nil)

	_, _, err := uc.Login(ctx, "phone-only@topli.com", "anything")
	assert.ErrorIs(t, err, chatdomain.ErrUnauthorized)

	_, _, err = uc.Login(ctx, "nobody@topli.com", "anything")
	assert.ErrorIs(t, err, chatdomain.ErrUnauthorized)

	_, _, err = uc.Login(ctx, "", "anything")
	assert.ErrorIs(t, err, chatdomain.ErrInvalidArgument)
}
