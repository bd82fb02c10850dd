package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata" // Europe/Kiev 在精簡映像中也能載入

	_ "topli_chat/docs" // 引入生成的 Swagger 文档
	"topli_chat/internal/api/handlers"
	"topli_chat/internal/api/router"
	chatrepo "topli_chat/internal/chat/repository"
	memberrepo "topli_chat/internal/member/repository"
	notifyapp "topli_chat/internal/notify/app"
	"topli_chat/internal/notify/provider"
	notifyrepo "topli_chat/internal/notify/repository"
	"topli_chat/pkg/config"
	"topli_chat/pkg/database"
	"topli_chat/pkg/logger"
	testtool "topli_chat/pkg/test_tool"

	"github.com/gofiber/fiber/v2"
	fiber_log "github.com/gofiber/fiber/v2/middleware/logger"
	"go.uber.org/zap"
)

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.DigestService, config.EnvConfig.DigestServiceLogPath)
	defer logger.Log.Sync()
	cfg := config.LoadConfig[config.Digest](config.EnvConfig.DigestService, config.EnvConfig.DigestServiceYAMLPath)

	testtool.StartPprof()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mongo, err := database.NewMongoDB(ctx,
		database.Connection{
			ConnectStr: config.MongoURI(cfg.MongoSQL),
			Retry:      database.RetryEvery(cfg.MongoSQL.RetryCount, cfg.MongoSQL.RetryInterval),
		},
		cfg.MongoSQL.Database)
	if err != nil {
		logger.Log.Fatal("Unable to connect to mongoDB database after retries",
			zap.String("address", fmt.Sprintf("[%s:%d]", cfg.MongoSQL.Host, cfg.MongoSQL.Port)),
			zap.Error(err),
		)
	}
	defer mongo.Close(context.Background())

	pg, err := database.NewDatabaseConnection(database.Connection{
		ConnectStr: config.PostgresURI(cfg.PostgreSQL),
		Retry:      database.RetryEvery(cfg.PostgreSQL.RetryCount, cfg.PostgreSQL.RetryInterval),
	})
	if err != nil {
		logger.Log.Fatal("Unable to connect to postgreSQL database after retries", zap.Error(err))
	}
	defer pg.Close()

	digestUC := notifyapp.NewDigestUseCase(
		notifyrepo.NewMongoLockRepository(mongo.Database),
		memberrepo.NewUserRepository(pg),
		chatrepo.NewMongoProfileRepository(mongo.Database),
		chatrepo.NewMongoRoomRepository(mongo.Database),
		provider.NewSendPulseClient(cfg.SendPulse),
		cfg.Digest,
	)

	scheduler, err := notifyapp.NewScheduler(digestUC, cfg.Digest)
	if err != nil {
		logger.Log.Fatal("invalid digest schedule", zap.Error(err))
	}
	go scheduler.Start(ctx)

	r := fiber.New()
	file, err := os.OpenFile(fmt.Sprintf("%s/access.log", config.EnvConfig.DigestServiceLogPath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer file.Close()

	r.Use(fiber_log.New(fiber_log.Config{
		Output: file, // 将日志输出到文件
	}))

	router.RegisterDigestRoutes(r, handlers.NewDigestHandler(digestUC))

	go func() {
		<-ctx.Done()
		logger.Log.Info("shutting down digest service")
		if err := r.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Log.Error("fiber shutdown", zap.Error(err))
		}
	}()

	port := ":" + cfg.Port
	logger.Log.Info("Digest Service listening", zap.String("port", port))
	if err := r.Listen(port); err != nil {
		logger.Log.Fatal("Failed to start Fiber", zap.Error(err))
	}
}
