package handlers

import (
	"context"
	"errors"

	"topli_chat/internal/chat/domain"
	memberapp "topli_chat/internal/member/app"
	memberdomain "topli_chat/internal/member/domain"
	"topli_chat/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
)

// UnreadSummarizer unread totals of a member
type UnreadSummarizer interface {
	Summary(ctx context.Context, uid string) (*domain.UnreadProfile, error)
}

// MemberHandler 处理用户相关的 HTTP 请求
type MemberHandler struct {
	uc     memberapp.MemberUseCase
	unread UnreadSummarizer
}

// NewMemberHandler 创建新的 MemberHandler
func NewMemberHandler(uc memberapp.MemberUseCase, unread UnreadSummarizer) *MemberHandler {
	return &MemberHandler{
		uc:     uc,
		unread: unread,
	}
}

// SendCodeReq send-code body
type SendCodeReq struct {
	Phone string `json:"phone"`
}

// VerifyCodeReq verify-code body
type VerifyCodeReq struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

// LoginReq email login body
type LoginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SendResetCodeReq send-reset-code body
type SendResetCodeReq struct {
	Email string `json:"email"`
}

// VerifyResetCodeReq verify-reset-code body
type VerifyResetCodeReq struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// ResetPasswordReq reset-password body; Token comes from verify-reset-code
type ResetPasswordReq struct {
	Email       string `json:"email"`
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

// ProfileRes own profile with unread totals
type ProfileRes struct {
	*memberdomain.User
	UnreadTotal int            `json:"unread_total"`
	UnreadRooms map[string]int `json:"unread_rooms"`
}

// SendCode 發送登入驗證碼
// @Summary Send phone code
// @Description 同一支電話 5 分鐘內只能發送一次
// @Tags Members
// @Accept json
// @Produce json
// @Param request body SendCodeReq true "phone"
// @Success 200 {object} map[string]bool
// @Failure 400 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Router /member/send-code [post]
func (h *MemberHandler) SendCode(c *fiber.Ctx) error {
	var req SendCodeReq
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}

	retryAfter, err := h.uc.SendCode(c.UserContext(), req.Phone)
	if errors.Is(err, memberapp.ErrRateLimited) {
		return c.Status(fiber.StatusTooManyRequests).JSON(ErrorResponse{
			Error:      "code already sent",
			RetryAfter: retryAfter,
		})
	}
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// VerifyCode 驗證碼登入
// @Summary Verify phone code
// @Tags Members
// @Accept json
// @Produce json
// @Param request body VerifyCodeReq true "phone and code"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} ErrorResponse
// @Router /member/verify-code [post]
func (h *MemberHandler) VerifyCode(c *fiber.Ctx) error {
	var req VerifyCodeReq
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}

	jwt, user, err := h.uc.VerifyCode(c.UserContext(), req.Phone, req.Code)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"token": jwt,
		"user":  user,
	})
}

// SaveUser 建立或更新使用者資料
// @Summary Save user
// @Tags Members
// @Accept json
// @Produce json
// @Param request body memberdomain.SaveUserInput true "user"
// @Success 200 {object} memberdomain.User
// @Failure 403 {object} ErrorResponse
// @Security BearerAuth
// @Router /member/save-user [post]
func (h *MemberHandler) SaveUser(c *fiber.Ctx) error {
	var req memberdomain.SaveUserInput
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}

	uid, role := middlewares.Caller(c)
	user, err := h.uc.SaveUser(c.UserContext(), uid, role, req)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(user)
}

// Profile 取得自己的資料與未讀數
// @Summary Own profile
// @Tags Members
// @Produce json
// @Success 200 {object} ProfileRes
// @Security BearerAuth
// @Router /member/profile [get]
func (h *MemberHandler) Profile(c *fiber.Ctx) error {
	uid, _ := middlewares.Caller(c)
	user, err := h.uc.Profile(c.UserContext(), uid)
	if err != nil {
		return fail(c, err)
	}

	res := ProfileRes{User: user}
	summary, err := h.unread.Summary(c.UserContext(), uid)
	if err != nil {
		return fail(c, err)
	}
	res.UnreadTotal = summary.UnreadTotal
	res.UnreadRooms = summary.UnreadRooms
	return c.JSON(res)
}

// Login email 密碼登入
// @Summary Email login
// @Tags Members
// @Accept json
// @Produce json
// @Param request body LoginReq true "email and password"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} ErrorResponse
// @Router /member/login [post]
func (h *MemberHandler) Login(c *fiber.Ctx) error {
	var req LoginReq
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}

	jwt, user, err := h.uc.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"token": jwt,
		"user":  user,
	})
}

// SendResetCode 寄送密碼重設碼
// @Summary Send password reset code
// @Description 同一個 email 5 分鐘內只能發送一次，重設碼 10 分鐘內有效
// @Tags Members
// @Accept json
// @Produce json
// @Param request body SendResetCodeReq true "email"
// @Success 200 {object} map[string]bool
// @Failure 404 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Router /member/send-reset-code [post]
func (h *MemberHandler) SendResetCode(c *fiber.Ctx) error {
	var req SendResetCodeReq
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}

	retryAfter, err := h.uc.SendResetCode(c.UserContext(), req.Email)
	if errors.Is(err, memberapp.ErrRateLimited) {
		return c.Status(fiber.StatusTooManyRequests).JSON(ErrorResponse{
			Error:      "code already sent",
			RetryAfter: retryAfter,
		})
	}
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"ok": true})
}

// VerifyResetCode 驗證重設碼並取得重設 token
// @Summary Verify password reset code
// @Description token 15 分鐘內有效
// @Tags Members
// @Accept json
// @Produce json
// @Param request body VerifyResetCodeReq true "email and code"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} ErrorResponse
// @Router /member/verify-reset-code [post]
func (h *MemberHandler) VerifyResetCode(c *fiber.Ctx) error {
	var req VerifyResetCodeReq
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}

	resetToken, err := h.uc.VerifyResetCode(c.UserContext(), req.Email, req.Code)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"ok":    true,
		"token": resetToken,
	})
}

// ResetPassword 設定新密碼
// @Summary Reset password
// @Tags Members
// @Accept json
// @Produce json
// @Param request body ResetPasswordReq true "email, token and new password"
// @Success 200 {object} map[string]bool
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /member/reset-password [post]
func (h *MemberHandler) ResetPassword(c *fiber.Ctx) error {
	var req ResetPasswordReq
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}

	if err := h.uc.ResetPassword(c.UserContext(), req.Email, req.Token, req.NewPassword); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"ok": true})
}

// UploadAvatar 上傳頭像
// @Summary Upload avatar
// @Description 存放於 users/{uid}/avatar_{檔名}，並更新 photo_url
// @Tags Members
// @Accept multipart/form-data
// @Produce json
// @Param uid formData string false "target uid, admin only"
// @Param file formData file true "image"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Security BearerAuth
// @Router /member/upload-avatar [post]
func (h *MemberHandler) UploadAvatar(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "uid and file are required")
	}

	f, err := fh.Open()
	if err != nil {
		return badRequest(c, "unreadable file")
	}
	defer f.Close()

	uid, role := middlewares.Caller(c)
	user, err := h.uc.UploadAvatar(c.UserContext(), uid, role, memberdomain.AvatarUpload{
		UID:         c.FormValue("uid"),
		FileName:    fh.Filename,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
		Size:        fh.Size,
		Body:        f,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"url":  user.PhotoURL,
		"user": user,
	})
}
