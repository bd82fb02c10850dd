package main

import (
	"topli_chat/internal/api/router"

	"github.com/gofiber/fiber/v2"
)

// 因拆分微服務。此程式用於init swagger
// swag init output ./docs
func main() {
	app := fiber.New()

	// handler 只提供註解給 swag 掃描，不會被呼叫
	router.RegisterRoutes(app, nil, nil, nil)
	router.RegisterDigestRoutes(app, nil)
}
