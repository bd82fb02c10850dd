package router

import (
	"context"

	"topli_chat/internal/api/handlers"
	chatapp "topli_chat/internal/chat/app"
	"topli_chat/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"github.com/gofiber/websocket/v2"
)

// RegisterRoutes 注册 chat_service 的路由
// @title Topli Chat API
// @version 1.0
// @description API documentation for Topli Chat
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func RegisterRoutes(app *fiber.App, chatHandler *handlers.ChatHandler, memberHandler *handlers.MemberHandler, chatWebsocket *chatapp.ChatWebsocketHandler) {
	registerShared(app)

	memberRoutes := app.Group("/member")
	memberRoutes.Post("/send-code", memberHandler.SendCode)
	memberRoutes.Post("/verify-code", memberHandler.VerifyCode)
	memberRoutes.Post("/login", memberHandler.Login)
	memberRoutes.Post("/send-reset-code", memberHandler.SendResetCode)
	memberRoutes.Post("/verify-reset-code", memberHandler.VerifyResetCode)
	memberRoutes.Post("/reset-password", memberHandler.ResetPassword)

	memberRoutes.Use(middlewares.JWTMiddleware())
	memberRoutes.Post("/save-user", memberHandler.SaveUser)
	memberRoutes.Get("/profile", memberHandler.Profile)
	memberRoutes.Post("/upload-avatar", memberHandler.UploadAvatar)

	jwt := middlewares.JWTMiddleware()

	app.Get("/ws", jwt, func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}, websocket.New(func(c *websocket.Conn) {
		chatWebsocket.HandleConnection(context.Background(), c)
	}))

	app.Get("/unread", jwt, chatHandler.UnreadSummary)

	rooms := app.Group("/rooms", jwt)
	rooms.Post("/", chatHandler.CreateRoom)
	rooms.Get("/", chatHandler.ListRooms)
	rooms.Get("/:id", chatHandler.GetRoom)
	rooms.Patch("/:id", chatHandler.UpdateRoom)
	rooms.Put("/:id/status", chatHandler.SetRoomStatus)
	rooms.Post("/:id/participants", chatHandler.AddParticipant)
	rooms.Delete("/:id/participants/:uid", chatHandler.RemoveParticipant)
	rooms.Post("/:id/read", chatHandler.MarkAsRead)
	rooms.Post("/:id/messages", chatHandler.SendMessage)
	rooms.Get("/:id/messages", chatHandler.ListMessages)
	rooms.Post("/:id/invites", chatHandler.CreateInvite)
	rooms.Post("/:id/files", chatHandler.UploadFile)

	messages := app.Group("/messages", jwt)
	messages.Patch("/:id", chatHandler.EditMessage)
	messages.Delete("/:id", chatHandler.DeleteMessage)

	app.Post("/invites/:id/apply", jwt, chatHandler.ApplyInvite)
	app.Delete("/files", jwt, chatHandler.DeleteFile)
}

// RegisterDigestRoutes 注册 digest_service 的路由
func RegisterDigestRoutes(app *fiber.App, digestHandler *handlers.DigestHandler) {
	registerShared(app)

	digest := app.Group("/digest", middlewares.JWTMiddleware())
	digest.Post("/run", digestHandler.Run)
}

func registerShared(app *fiber.App) {
	app.Get("/swagger/*", swagger.HandlerDefault)
	app.Get("/", handlers.ConnectCheck)
	app.Post("/debug", handlers.DebugLogFlag)
}
