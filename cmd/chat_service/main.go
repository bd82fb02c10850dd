package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "topli_chat/docs" // 引入生成的 Swagger 文档
	"topli_chat/internal/api/handlers"
	"topli_chat/internal/api/router"
	chatapp "topli_chat/internal/chat/app"
	chatrepo "topli_chat/internal/chat/repository"
	memberapp "topli_chat/internal/member/app"
	memberrepo "topli_chat/internal/member/repository"
	"topli_chat/internal/notify/provider"
	"topli_chat/pkg/config"
	"topli_chat/pkg/database"
	"topli_chat/pkg/logger"
	testtool "topli_chat/pkg/test_tool"

	"github.com/gofiber/fiber/v2"
	fiber_log "github.com/gofiber/fiber/v2/middleware/logger"
	"go.uber.org/zap"
)

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.ChatService, config.EnvConfig.ChatServiceLogPath)
	defer logger.Log.Sync()
	cfg := config.LoadConfig[config.Chat](config.EnvConfig.ChatService, config.EnvConfig.ChatServiceYAMLPath)

	testtool.StartPprof()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Mongo (rooms / messages / users_private / invites / processed_events)
	mongoURI := config.MongoURI(cfg.MongoSQL)
	mongo, err := database.NewMongoDB(ctx,
		database.Connection{
			ConnectStr: mongoURI,
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

	// 2. PostgreSQL (users)
	pg, err := database.NewDatabaseConnection(database.Connection{
		ConnectStr: config.PostgresURI(cfg.PostgreSQL),
		Retry:      database.RetryEvery(cfg.PostgreSQL.RetryCount, cfg.PostgreSQL.RetryInterval),
	})
	if err != nil {
		logger.Log.Fatal("Unable to connect to postgreSQL database after retries", zap.Error(err))
	}
	defer pg.Close()

	// 3. Redis (OTP / unread push)
	masterName, sentinel := config.GetRedisSetting()
	redisClient, err := database.NewRedisClient(masterName, sentinel, cfg.Redis.RedisDB)
	if err != nil {
		logger.Log.Fatal("connect redis err", zap.Error(err))
	}
	defer redisClient.Close()

	// 4. Kafka (message created)
	kafkaConn := database.KafkaConnection{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.Topic,
		GroupID: cfg.Kafka.GroupID,
		Retry:   database.RetryEvery(cfg.Kafka.RetryCount, cfg.Kafka.RetryInterval),
	}
	kafkaWriter, err := database.NewKafkaWriterWithRetry(kafkaConn)
	if err != nil {
		logger.Log.Fatal("connect kafka writer err", zap.Error(err))
	}
	defer kafkaWriter.Close()

	kafkaReader, err := database.NewKafkaReader(kafkaConn)
	if err != nil {
		logger.Log.Fatal("connect kafka reader err", zap.Error(err))
	}
	defer kafkaReader.Close()

	// 5. MinIO (attachments)
	storage, err := database.NewMinIOConnection(database.MinIOConnection{
		Endpoint:   cfg.MinIO.Endpoint,
		PublicURL:  cfg.MinIO.PublicURL,
		User:       cfg.MinIO.User,
		Password:   cfg.MinIO.Password,
		BucketName: cfg.MinIO.BucketName,
		UseSSL:     cfg.MinIO.UseSSL,
		Retry:      database.RetryEvery(cfg.MinIO.RetryCount, cfg.MinIO.RetryInterval),
	})
	if err != nil {
		logger.Log.Fatal("connect minio err", zap.Error(err))
	}

	// 6. Repository
	roomRepo := chatrepo.NewMongoRoomRepository(mongo.Database)
	msgRepo := chatrepo.NewMongoMessageRepository(mongo.Database)
	profileRepo := chatrepo.NewMongoProfileRepository(mongo.Database)
	inviteRepo := chatrepo.NewMongoInviteRepository(mongo.Database)
	ledger := chatrepo.NewMongoEventLedger(mongo.Database)
	outboxRepo := chatrepo.NewMongoOutboxRepository(mongo.Database)
	events := chatrepo.NewKafkaEventPublisher(kafkaWriter)
	pubsub := chatrepo.NewRedisPubSub(redisClient)

	userRepo := memberrepo.NewUserRepository(pg)
	if err := userRepo.EnsureSchema(ctx); err != nil {
		logger.Log.Fatal("ensure users schema err", zap.Error(err))
	}
	otpRepo := memberrepo.NewOTPRepository(redisClient)
	resetRepo := memberrepo.NewResetRepository(redisClient)

	// 7. UseCase
	sendPulse := provider.NewSendPulseClient(cfg.SendPulse)
	memberUC := memberapp.NewMemberUseCase(userRepo, otpRepo, resetRepo, profileRepo, sendPulse, storage, cfg.OTP.TTL, cfg.OTP.ResendLimit)

	roomUC := chatapp.NewRoomUseCase(roomRepo)
	messageUC := chatapp.NewMessageUseCase(roomRepo, msgRepo, outboxRepo, events, memberUC)
	inviteUC := chatapp.NewInviteUseCase(inviteRepo, roomRepo, cfg.BaseURL)
	readUC := chatapp.NewReadStateUseCase(profileRepo, roomRepo)
	fileUC := chatapp.NewFileUseCase(storage, roomRepo)

	reactor := chatapp.NewMessageReactor(roomRepo, profileRepo, ledger, pubsub, cfg.Reactor.FanOutLimit)
	go chatapp.NewOutboxRelay(outboxRepo, events, cfg.Reactor).Run(ctx)

	consumer := chatapp.NewReactorConsumer(kafkaReader, reactor)
	go func() {
		if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Log.Error("message created consumer stopped", zap.Error(err))
		}
	}()

	// 8. Fiber
	r := fiber.New(fiber.Config{BodyLimit: chatapp.MaxUploadSize + 1<<20})
	file, err := os.OpenFile(fmt.Sprintf("%s/access.log", config.EnvConfig.ChatServiceLogPath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer file.Close()

	r.Use(fiber_log.New(fiber_log.Config{
		Output: file, // 将日志输出到文件
	}))

	router.RegisterRoutes(r,
		handlers.NewChatHandler(roomUC, messageUC, inviteUC, readUC, fileUC),
		handlers.NewMemberHandler(memberUC, readUC),
		chatapp.NewChatWebsocketHandler(readUC, pubsub),
	)

	go func() {
		<-ctx.Done()
		logger.Log.Info("shutting down chat service")
		if err := r.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Log.Error("fiber shutdown", zap.Error(err))
		}
	}()

	port := ":" + cfg.Port
	logger.Log.Info("Chat Service listening", zap.String("port", port))
	if err := r.Listen(port); err != nil {
		logger.Log.Fatal("Failed to start Fiber", zap.Error(err))
	}
}
