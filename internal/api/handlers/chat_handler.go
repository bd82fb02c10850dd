package handlers

import (
	"time"

	chatapp "topli_chat/internal/chat/app"
	"topli_chat/internal/chat/domain"
	"topli_chat/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
)

// ChatHandler 聊天室、訊息、邀請、已讀與檔案的 HTTP 入口
type ChatHandler struct {
	rooms    *chatapp.RoomUseCase
	messages *chatapp.MessageUseCase
	invites  *chatapp.InviteUseCase
	reads    *chatapp.ReadStateUseCase
	files    *chatapp.FileUseCase
}

// NewChatHandler create ChatHandler
func NewChatHandler(
	rooms *chatapp.RoomUseCase,
	messages *chatapp.MessageUseCase,
	invites *chatapp.InviteUseCase,
	reads *chatapp.ReadStateUseCase,
	files *chatapp.FileUseCase,
) *ChatHandler {
	return &ChatHandler{
		rooms:    rooms,
		messages: messages,
		invites:  invites,
		reads:    reads,
		files:    files,
	}
}

// CreateRoomReq create room body
type CreateRoomReq struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Participants []string `json:"participants"`
}

// UpdateRoomReq update room body
type UpdateRoomReq struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// SetStatusReq set room status body
type SetStatusReq struct {
	Status domain.RoomStatus `json:"status"`
}

// ParticipantReq add participant body
type ParticipantReq struct {
	UID string `json:"uid"`
}

// SendMessageReq send message body
type SendMessageReq struct {
	Text       string             `json:"text"`
	Attachment *domain.Attachment `json:"attachment,omitempty"`
}

// EditMessageReq edit message body
type EditMessageReq struct {
	Text string `json:"text"`
}

// CreateRoom 建立聊天室
// @Summary Create room
// @Tags Rooms
// @Accept json
// @Produce json
// @Param request body CreateRoomReq true "room"
// @Success 201 {object} domain.Room
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Security BearerAuth
// @Router /rooms [post]
func (h *ChatHandler) CreateRoom(c *fiber.Ctx) error {
	var req CreateRoomReq
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}

	uid, role := middlewares.Caller(c)
	room, err := h.rooms.Create(c.UserContext(), uid, role, req.Title, req.Description, req.Participants)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(room)
}

// ListRooms 依角色列出聊天室
// @Summary List rooms
// @Tags Rooms
// @Produce json
// @Param status query string false "active | inactive"
// @Success 200 {array} domain.Room
// @Security BearerAuth
// @Router /rooms [get]
func (h *ChatHandler) ListRooms(c *fiber.Ctx) error {
	uid, role := middlewares.Caller(c)
	rooms, err := h.rooms.List(c.UserContext(), uid, role, domain.RoomStatus(c.Query("status")))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(rooms)
}

// GetRoom 取得聊天室
// @Summary Get room
// @Tags Rooms
// @Produce json
// @Param id path string true "room id"
// @Success 200 {object} domain.Room
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /rooms/{id} [get]
func (h *ChatHandler) GetRoom(c *fiber.Ctx) error {
	uid, role := middlewares.Caller(c)
	room, err := h.rooms.Get(c.UserContext(), uid, role, c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(room)
}

// UpdateRoom 更新標題與描述
// @Summary Update room title and description
// @Tags Rooms
// @Accept json
// @Param id path string true "room id"
// @Param request body UpdateRoomReq true "room info"
// @Success 204
// @Security BearerAuth
// @Router /rooms/{id} [patch]
func (h *ChatHandler) UpdateRoom(c *fiber.Ctx) error {
	var req UpdateRoomReq
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}

	uid, role := middlewares.Caller(c)
	if err := h.rooms.UpdateInfo(c.UserContext(), uid, role, c.Params("id"), req.Title, req.Description); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// SetRoomStatus 啟用 / 停用聊天室
// @Summary Set room status
// @Tags Rooms
// @Accept json
// @Param id path string true "room id"
// @Param request body SetStatusReq true "status"
// @Success 204
// @Security BearerAuth
// @Router /rooms/{id}/status [put]
func (h *ChatHandler) SetRoomStatus(c *fiber.Ctx) error {
	var req SetStatusReq
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}

	uid, role := middlewares.Caller(c)
	if err := h.rooms.SetStatus(c.UserContext(), uid, role, c.Params("id"), req.Status); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// AddParticipant 加入參與者
// @Summary Add participant
// @Tags Rooms
// @Accept json
// @Param id path string true "room id"
// @Param request body ParticipantReq true "participant"
// @Success 204
// @Security BearerAuth
// @Router /rooms/{id}/participants [post]
func (h *ChatHandler) AddParticipant(c *fiber.Ctx) error {
	var req ParticipantReq
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}

	uid, role := middlewares.Caller(c)
	if err := h.rooms.AddParticipant(c.UserContext(), uid, role, c.Params("id"), req.UID); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// RemoveParticipant 移除參與者
// @Summary Remove participant
// @Tags Rooms
// @Param id path string true "room id"
// @Param uid path string true "participant uid"
// @Success 204
// @Security BearerAuth
// @Router /rooms/{id}/participants/{uid} [delete]
func (h *ChatHandler) RemoveParticipant(c *fiber.Ctx) error {
	uid, role := middlewares.Caller(c)
	if err := h.rooms.RemoveParticipant(c.UserContext(), uid, role, c.Params("id"), c.Params("uid")); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// MarkAsRead 清除自己在聊天室的未讀
// @Summary Mark room as read
// @Tags Unread
// @Produce json
// @Param id path string true "room id"
// @Success 200 {object} map[string]int
// @Security BearerAuth
// @Router /rooms/{id}/read [post]
func (h *ChatHandler) MarkAsRead(c *fiber.Ctx) error {
	uid, _ := middlewares.Caller(c)
	cleared, err := h.reads.MarkAsRead(c.UserContext(), uid, c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"cleared": cleared})
}

// UnreadSummary 未讀總數與各聊天室未讀
// @Summary Unread summary
// @Tags Unread
// @Produce json
// @Success 200 {object} domain.UnreadProfile
// @Security BearerAuth
// @Router /unread [get]
func (h *ChatHandler) UnreadSummary(c *fiber.Ctx) error {
	uid, _ := middlewares.Caller(c)
	p, err := h.reads.Summary(c.UserContext(), uid)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"unread_total": p.UnreadTotal,
		"unread_rooms": p.UnreadRooms,
	})
}

// SendMessage 發送訊息
// @Summary Send message
// @Tags Messages
// @Accept json
// @Produce json
// @Param id path string true "room id"
// @Param request body SendMessageReq true "message"
// @Success 201 {object} domain.Message
// @Security BearerAuth
// @Router /rooms/{id}/messages [post]
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	var req SendMessageReq
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}

	uid, _ := middlewares.Caller(c)
	msg, err := h.messages.Send(c.UserContext(), uid, c.Params("id"), req.Text, req.Attachment)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

// ListMessages 依時間倒序分頁
// @Summary List messages newest first
// @Tags Messages
// @Produce json
// @Param id path string true "room id"
// @Param before query string false "RFC3339 cursor"
// @Param limit query int false "page size"
// @Success 200 {array} domain.Message
// @Security BearerAuth
// @Router /rooms/{id}/messages [get]
func (h *ChatHandler) ListMessages(c *fiber.Ctx) error {
	var before time.Time
	if s := c.Query("before"); s != "" {
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return badRequest(c, "before must be RFC3339")
		}
		before = t
	}

	uid, role := middlewares.Caller(c)
	msgs, err := h.messages.List(c.UserContext(), uid, role, c.Params("id"), before, c.QueryInt("limit"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(msgs)
}

// EditMessage 編輯自己的訊息
// @Summary Edit own message
// @Tags Messages
// @Accept json
// @Produce json
// @Param id path string true "message id"
// @Param request body EditMessageReq true "text"
// @Success 200 {object} domain.Message
// @Security BearerAuth
// @Router /messages/{id} [patch]
func (h *ChatHandler) EditMessage(c *fiber.Ctx) error {
	var req EditMessageReq
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}

	uid, _ := middlewares.Caller(c)
	msg, err := h.messages.Edit(c.UserContext(), uid, c.Params("id"), req.Text)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(msg)
}

// DeleteMessage 刪除訊息
// @Summary Delete message
// @Tags Messages
// @Param id path string true "message id"
// @Success 204
// @Security BearerAuth
// @Router /messages/{id} [delete]
func (h *ChatHandler) DeleteMessage(c *fiber.Ctx) error {
	uid, role := middlewares.Caller(c)
	if err := h.messages.Delete(c.UserContext(), uid, role, c.Params("id")); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// CreateInvite 產生邀請連結
// @Summary Create invite link
// @Tags Invites
// @Produce json
// @Param id path string true "room id"
// @Success 201 {object} map[string]interface{}
// @Security BearerAuth
// @Router /rooms/{id}/invites [post]
func (h *ChatHandler) CreateInvite(c *fiber.Ctx) error {
	uid, role := middlewares.Caller(c)
	invite, link, err := h.invites.Create(c.UserContext(), uid, role, c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"invite_id":  invite.ID,
		"link":       link,
		"expires_at": invite.ExpiresAt,
	})
}

// ApplyInvite 使用邀請加入聊天室
// @Summary Apply invite
// @Tags Invites
// @Produce json
// @Param id path string true "invite id"
// @Success 200 {object} map[string]string
// @Failure 409 {object} ErrorResponse
// @Security BearerAuth
// @Router /invites/{id}/apply [post]
func (h *ChatHandler) ApplyInvite(c *fiber.Ctx) error {
	uid, _ := middlewares.Caller(c)
	roomID, err := h.invites.Apply(c.UserContext(), uid, c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"room_id": roomID})
}

// UploadFile 上傳附件
// @Summary Upload attachment
// @Tags Files
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "room id"
// @Param file formData file true "attachment"
// @Success 201 {object} domain.Attachment
// @Security BearerAuth
// @Router /rooms/{id}/files [post]
func (h *ChatHandler) UploadFile(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "file is required")
	}

	f, err := fh.Open()
	if err != nil {
		return badRequest(c, "unreadable file")
	}
	defer f.Close()

	uid, _ := middlewares.Caller(c)
	att, err := h.files.Upload(c.UserContext(), uid, c.Params("id"), fh.Filename, f, fh.Size, fh.Header.Get(fiber.HeaderContentType))
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(att)
}

// DeleteFile 依網址刪除附件
// @Summary Delete attachment
// @Tags Files
// @Param url query string true "public url"
// @Success 204
// @Security BearerAuth
// @Router /files [delete]
func (h *ChatHandler) DeleteFile(c *fiber.Ctx) error {
	uid, role := middlewares.Caller(c)
	if err := h.files.Delete(c.UserContext(), uid, role, c.Query("url")); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
