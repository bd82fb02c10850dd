package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	chatapp "topli_chat/internal/chat/app"
	"topli_chat/internal/chat/domain"
	memberapp "topli_chat/internal/member/app"
	memberdomain "topli_chat/internal/member/domain"
	notifyapp "topli_chat/internal/notify/app"
	notifydomain "topli_chat/internal/notify/domain"
	"topli_chat/pkg/logger"
	"topli_chat/pkg/middlewares"
	"topli_chat/pkg/token"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockMemberUseCase struct {
	mock.Mock
}

func (m *mockMemberUseCase) SaveUser(ctx context.Context, callerID string, callerRole token.RoleType, in memberdomain.SaveUserInput) (*memberdomain.User, error) {
	args := m.Called(ctx, callerID, callerRole, in)
	if args.Get(0) != nil {
		return args.Get(0).(*memberdomain.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockMemberUseCase) Profile(ctx context.Context, uid string) (*memberdomain.User, error) {
	args := m.Called(ctx, uid)
	if args.Get(0) != nil {
		return args.Get(0).(*memberdomain.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockMemberUseCase) DisplayInfo(ctx context.Context, uid string) (string, string, error) {
	args := m.Called(ctx, uid)
	return args.String(0), args.String(1), args.Error(2)
}

func (m *mockMemberUseCase) SendCode(ctx context.Context, phone string) (int, error) {
	args := m.Called(ctx, phone)
	return args.Int(0), args.Error(1)
}

func (m *mockMemberUseCase) VerifyCode(ctx context.Context, phone, code string) (string, *memberdomain.User, error) {
	args := m.Called(ctx, phone, code)
	if args.Get(1) != nil {
		return args.String(0), args.Get(1).(*memberdomain.User), args.Error(2)
	}
	return args.String(0), nil, args.Error(2)
}

func (m *mockMemberUseCase) Login(ctx context.Context, email, password string) (string, *memberdomain.User, error) {
	args := m.Called(ctx, email, password)
	if args.Get(1) != nil {
		return args.String(0), args.Get(1).(*memberdomain.User), args.Error(2)
	}
	return args.String(0), nil, args.Error(2)
}

func (m *mockMemberUseCase) SendResetCode(ctx context.Context, email string) (int, error) {
	args := m.Called(ctx, email)
	return args.Int(0), args.Error(1)
}

func (m *mockMemberUseCase) VerifyResetCode(ctx context.Context, email, code string) (string, error) {
	args := m.Called(ctx, email, code)
	return args.String(0), args.Error(1)
}

func (m *mockMemberUseCase) ResetPassword(ctx context.Context, email, resetToken, newPassword string) error {
	args := m.Called(ctx, email, resetToken, newPassword)
	return args.Error(0)
}

func (m *mockMemberUseCase) UploadAvatar(ctx context.Context, callerID string, callerRole token.RoleType, in memberdomain.AvatarUpload) (*memberdomain.User, error) {
	args := m.Called(ctx, callerID, callerRole, in.UID, in.FileName, in.ContentType, in.Size)
	if args.Get(0) != nil {
		return args.Get(0).(*memberdomain.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func bearer(t *testing.T, uid string, role token.RoleType) string {
	signed, err := token.GenerateJWT(uid, string(role), "test")
	require.NoError(t, err)
	return "Bearer " + signed
}

func decode(t *testing.T, r io.Reader, v interface{}) {
	require.NoError(t, json.NewDecoder(r).Decode(v))
}

func TestStatusOf(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", domain.ErrInvalidArgument), fiber.StatusBadRequest},
		{domain.ErrUnauthorized, fiber.StatusUnauthorized},
		{domain.ErrForbidden, fiber.StatusForbidden},
		{fmt.Errorf("room r1: %w", domain.ErrNotFound), fiber.StatusNotFound},
		{domain.ErrConflict, fiber.StatusConflict},
		{domain.ErrAlreadyExecuted, fiber.StatusConflict},
		{memberapp.ErrRateLimited, fiber.StatusTooManyRequests},
		{errors.New("mongo down"), fiber.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusOf(tc.err), tc.err.Error())
	}
}

func newChatApp(rooms *chatapp.MockRoomRepository, profiles *chatapp.MockProfileRepository) *fiber.App {
	reads := chatapp.NewReadStateUseCase(profiles, rooms)
	h := NewChatHandler(chatapp.NewRoomUseCase(rooms), nil, nil, reads, nil)

	app := fiber.New()
	jwt := middlewares.JWTMiddleware()
	app.Get("/unread", jwt, h.UnreadSummary)
	app.Post("/rooms/:id/read", jwt, h.MarkAsRead)
	app.Get("/rooms/:id", jwt, h.GetRoom)
	return app
}

func TestChatHandler_MarkAsRead(t *testing.T) {
	logger.SetNewNop()

	rooms := new(chatapp.MockRoomRepository)
	profiles := new(chatapp.MockProfileRepository)
	profiles.On("MarkRoomRead", mock.Anything, "u1", "r1").Return(3, nil)
	rooms.On("ResetUnread", mock.Anything, "r1", "u1").Return(nil)

	req := httptest.NewRequest("POST", "/rooms/r1/read", nil)
	req.Header.Set("Authorization", bearer(t, "u1", token.RoleClient))
	resp, err := newChatApp(rooms, profiles).Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body map[string]int
	decode(t, resp.Body, &body)
	assert.Equal(t, 3, body["cleared"])
	profiles.AssertExpectations(t)
	rooms.AssertExpectations(t)
}

func TestChatHandler_RequiresToken(t *testing.T) {
	resp, err := newChatApp(new(chatapp.MockRoomRepository), new(chatapp.MockProfileRepository)).
		Test(httptest.NewRequest("POST", "/rooms/r1/read", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestChatHandler_UnreadSummary(t *testing.T) {
	logger.SetNewNop()

	profiles := new(chatapp.MockProfileRepository)
	profiles.On("FindByID", mock.Anything, "u1").
		Return(&domain.UnreadProfile{UID: "u1", UnreadTotal: 5, UnreadRooms: map[string]int{"r1": 2, "r2": 3}}, nil)

	req := httptest.NewRequest("GET", "/unread", nil)
	req.Header.Set("Authorization", bearer(t, "u1", token.RoleClient))
	resp, err := newChatApp(new(chatapp.MockRoomRepository), profiles).Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		UnreadTotal int            `json:"unread_total"`
		UnreadRooms map[string]int `json:"unread_rooms"`
	}
	decode(t, resp.Body, &body)
	assert.Equal(t, 5, body.UnreadTotal)
	assert.Equal(t, 3, body.UnreadRooms["r2"])
}

func TestChatHandler_GetRoomNotFound(t *testing.T) {
	logger.SetNewNop()

	rooms := new(chatapp.MockRoomRepository)
	rooms.On("FindByID", mock.Anything, "missing").Return(nil, fmt.Errorf("room missing: %w", domain.ErrNotFound))

	req := httptest.NewRequest("GET", "/rooms/missing", nil)
	req.Header.Set("Authorization", bearer(t, "u1", token.RoleAdmin))
	resp, err := newChatApp(rooms, new(chatapp.MockProfileRepository)).Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestMemberHandler_SendCodeRateLimited(t *testing.T) {
	logger.SetNewNop()

	uc := new(mockMemberUseCase)
	uc.On("SendCode", mock.Anything, "+905551112233").Return(240, memberapp.ErrRateLimited)

	app := fiber.New()
	app.Post("/member/send-code", NewMemberHandler(uc, nil).SendCode)

	req := httptest.NewRequest("POST", "/member/send-code", strings.NewReader(`{"phone":"+905551112233"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)

	var body ErrorResponse
	decode(t, resp.Body, &body)
	assert.Equal(t, 240, body.RetryAfter)
}

func TestMemberHandler_VerifyCode(t *testing.T) {
	logger.SetNewNop()

	uc := new(mockMemberUseCase)
	uc.On("VerifyCode", mock.Anything, "+905551112233", "123456").
		Return("jwt-token", &memberdomain.User{UID: "u1", Role: "client"}, nil)
	uc.On("VerifyCode", mock.Anything, "+905551112233", "000000").
		Return("", nil, fmt.Errorf("Invalid code: %w", domain.ErrUnauthorized))

	app := fiber.New()
	app.Post("/member/verify-code", NewMemberHandler(uc, nil).VerifyCode)

	send := func(code string) (int, string) {
		req := httptest.NewRequest("POST", "/member/verify-code",
			strings.NewReader(`{"phone":"+905551112233","code":"`+code+`"}`))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, string(body)
	}

	status, body := send("123456")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, body, `"token":"jwt-token"`)

	status, _ = send("000000")
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestMemberHandler_ProfileWithUnread(t *testing.T) {
	logger.SetNewNop()

	uc := new(mockMemberUseCase)
	uc.On("Profile", mock.Anything, "u1").Return(&memberdomain.User{UID: "u1", Name: "Ayşe"}, nil)
	profiles := new(chatapp.MockProfileRepository)
	profiles.On("FindByID", mock.Anything, "u1").
		Return(&domain.UnreadProfile{UID: "u1", UnreadTotal: 2, UnreadRooms: map[string]int{"r1": 2}}, nil)
	reads := chatapp.NewReadStateUseCase(profiles, new(chatapp.MockRoomRepository))

	app := fiber.New()
	app.Get("/member/profile", middlewares.JWTMiddleware(), NewMemberHandler(uc, reads).Profile)

	req := httptest.NewRequest("GET", "/member/profile", nil)
	req.Header.Set("Authorization", bearer(t, "u1", token.RoleClient))
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	decode(t, resp.Body, &body)
	assert.Equal(t, "Ayşe", body["name"])
	assert.Equal(t, float64(2), body["unread_total"])
}

func TestDigestHandler_Run(t *testing.T) {
	logger.SetNewNop()

	runner := new(notifyapp.MockDigestRunner)
	runner.On("Run", mock.Anything).Return(&notifydomain.DigestReport{Candidates: 3, Sent: 2, Skipped: 1}, nil).Once()
	runner.On("Run", mock.Anything).Return(nil, fmt.Errorf("lock: %w", domain.ErrAlreadyExecuted)).Once()

	app := fiber.New()
	app.Post("/digest/run", middlewares.JWTMiddleware(), NewDigestHandler(runner).Run)

	run := func() int {
		req := httptest.NewRequest("POST", "/digest/run", nil)
		req.Header.Set("Authorization", bearer(t, "admin-1", token.RoleAdmin))
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	assert.Equal(t, fiber.StatusOK, run())
	assert.Equal(t, fiber.StatusConflict, run())
	runner.AssertNumberOfCalls(t, "Run", 2)
}

func postJSON(t *testing.T, app *fiber.App, path, body string) (int, string) {
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(raw)
}

func TestMemberHandler_PasswordReset(t *testing.T) {
	logger.SetNewNop()

	uc := new(mockMemberUseCase)
	uc.On("SendResetCode", mock.Anything, "ayse@topli.com").Return(0, nil).Once()
	uc.On("SendResetCode", mock.Anything, "ayse@topli.com").Return(180, memberapp.ErrRateLimited).Once()
	uc.On("VerifyResetCode", mock.Anything, "ayse@topli.com", "123456").Return("reset-token", nil)
	uc.On("ResetPassword", mock.Anything, "ayse@topli.com", "reset-token", "new-secret-1").Return(nil)
	uc.On("ResetPassword", mock.Anything, "ayse@topli.com", "stale", "new-secret-1").
		Return(fmt.Errorf("Invalid session: %w", domain.ErrForbidden))

	h := NewMemberHandler(uc, nil)
	app := fiber.New()
	app.Post("/member/send-reset-code", h.SendResetCode)
	app.Post("/member/verify-reset-code", h.VerifyResetCode)
	app.Post("/member/reset-password", h.ResetPassword)

	status, _ := postJSON(t, app, "/member/send-reset-code", `{"email":"ayse@topli.com"}`)
	assert.Equal(t, fiber.StatusOK, status)
	status, body := postJSON(t, app, "/member/send-reset-code", `{"email":"ayse@topli.com"}`)
	assert.Equal(t, fiber.StatusTooManyRequests, status)
	assert.Contains(t, body, `"retry_after":180`)

	status, body = postJSON(t, app, "/member/verify-reset-code", `{"email":"ayse@topli.com","code":"123456"}`)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, body, `"token":"reset-token"`)

	status, _ = postJSON(t, app, "/member/reset-password", `{"email":"ayse@topli.com","token":"reset-token","newPassword":"new-secret-1"}`)
	assert.Equal(t, fiber.StatusOK, status)
	status, _ = postJSON(t, app, "/member/reset-password", `{"email":"ayse@topli.com","token":"stale","newPassword":"new-secret-1"}`)
	assert.Equal(t, fiber.StatusForbidden, status)
}

func TestMemberHandler_Login(t *testing.T) {
	logger.SetNewNop()

	uc := new(mockMemberUseCase)
	uc.On("Login", mock.Anything, "ayse@topli.com", "new-secret-1").
		Return("jwt-token", &memberdomain.User{UID: "u1", Role: "client"}, nil)
	uc.On("Login", mock.Anything, "ayse@topli.com", "wrong").
		Return("", nil, fmt.Errorf("Invalid email or password: %w", domain.ErrUnauthorized))

	app := fiber.New()
	app.Post("/member/login", NewMemberHandler(uc, nil).Login)

	status, body := postJSON(t, app, "/member/login", `{"email":"ayse@topli.com","password":"new-secret-1"}`)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, body, `"token":"jwt-token"`)

	status, _ = postJSON(t, app, "/member/login", `{"email":"ayse@topli.com","password":"wrong"}`)
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestMemberHandler_UploadAvatar(t *testing.T) {
	logger.SetNewNop()

	uc := new(mockMemberUseCase)
	uc.On("UploadAvatar", mock.Anything, "u1", token.RoleClient, "", "me.png", "image/png", int64(4)).
		Return(&memberdomain.User{UID: "u1", PhotoURL: "http://minio/topli/users/u1/avatar_me.png"}, nil)

	app := fiber.New()
	app.Post("/member/upload-avatar", middlewares.JWTMiddleware(), NewMemberHandler(uc, nil).UploadAvatar)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="me.png"`)
	header.Set("Content-Type", "image/png")
	part, err := w.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write([]byte("\x89PNG"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/member/upload-avatar", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", bearer(t, "u1", token.RoleClient))
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	decode(t, resp.Body, &body)
	assert.Equal(t, "http://minio/topli/users/u1/avatar_me.png", body["url"])

	// 沒有檔案
	req = httptest.NewRequest("POST", "/member/upload-avatar", nil)
	req.Header.Set("Authorization", bearer(t, "u1", token.RoleClient))
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
