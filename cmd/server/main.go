package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/converseapp/converse/internal/config"
	"github.com/converseapp/converse/internal/handler"
	"github.com/converseapp/converse/internal/jobs"
	applog "github.com/converseapp/converse/internal/log"
	"github.com/converseapp/converse/internal/middleware"
	"github.com/converseapp/converse/internal/model"
	"github.com/converseapp/converse/internal/repository"
	"github.com/converseapp/converse/internal/service"
	"github.com/converseapp/converse/internal/ws"
	"github.com/converseapp/converse/migrations"
	"github.com/converseapp/converse/pkg/auth"
	"github.com/converseapp/converse/pkg/mailer"
	"github.com/converseapp/converse/pkg/notification"
	"github.com/converseapp/converse/pkg/storage"
)

// @title           Converse API
// @version         1.0
// @description     Chat backend: conversations, messages, presence, friends and call sessions.

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      api.localhost
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg := config.Load()
	applog.Init(cfg.App.Env)
	log.Info().Str("env", cfg.App.Env).Msg("starting Converse API server")

	// ==================== Database (PostgreSQL) ====================
	gormLogger := logger.Default.LogMode(logger.Info)
	if cfg.App.Env == "production" {
		gormLogger = logger.Default.LogMode(logger.Warn)
	}

	db, err := gorm.Open(postgres.Open(cfg.DB.DSN()), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	log.Info().Msg("connected to PostgreSQL")

	// ==================== Migrations ====================
	if err := migrations.Run(cfg.DB.URL()); err != nil {
		log.Warn().Err(err).Msg("migration failed, falling back to AutoMigrate")
		if err := db.AutoMigrate(
			&model.User{},
			&model.UserDevice{},
			&model.Conversation{},
			&model.Membership{},
			&model.GroupLeave{},
			&model.Message{},
			&model.Friendship{},
			&model.FriendRequest{},
			&model.TypingStatus{},
			&model.Call{},
			&model.CallParticipant{},
		); err != nil {
			log.Fatal().Err(err).Msg("failed to migrate database")
		}
	}
	log.Info().Msg("database migrated")

	// ==================== Redis ====================
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       0,
	})
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	log.Info().Msg("connected to Redis")

	// ==================== SMTP ====================
	mailClient := mailer.New(mailer.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		FromName: cfg.SMTP.FromName,
	})

	// ==================== Layers ====================
	jwtManager := auth.NewJWTManager(cfg.JWT.Secret, cfg.JWT.Expiry)

	userRepo := repository.NewUserRepository(db)
	convRepo := repository.NewConversationRepository(db)
	msgRepo := repository.NewMessageRepository(db)
	friendRepo := repository.NewFriendRepository(db)
	typingRepo := repository.NewTypingRepository(db)
	callRepo := repository.NewCallRepository(db)

	identityService := service.NewIdentityService(db, userRepo, friendRepo, convRepo, msgRepo)
	chatService := service.NewChatService(db, convRepo, msgRepo, userRepo)
	friendService := service.NewFriendService(db, friendRepo, convRepo, msgRepo, userRepo)
	presenceService := service.NewPresenceService(userRepo, convRepo, typingRepo)
	callService := service.NewCallService(db, callRepo, convRepo, userRepo, cfg.Call.RingTimeout)

	// WebSocket hub with redis pub/sub; connection open/close drives the
	// user's persisted online flag
	hub := ws.NewHub(rdb, func(userID uuid.UUID, online bool) {
		if err := userRepo.UpdateOnlineStatus(userID, online); err != nil {
			log.Warn().Err(err).Str("user_id", userID.String()).Msg("update online status")
		}
	})
	hubCtx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()
	go hub.Run(hubCtx)

	// MinIO storage
	minioStorage, err := storage.NewMinIO(storage.Config{
		Endpoint:  cfg.MinIO.Endpoint,
		PublicURL: cfg.MinIO.PublicURL,
		AccessKey: cfg.MinIO.AccessKey,
		SecretKey: cfg.MinIO.SecretKey,
		Bucket:    cfg.MinIO.Bucket,
		UseSSL:    cfg.MinIO.UseSSL,
	})
	if err != nil {
		log.Warn().Err(err).Msg("MinIO not available, file upload disabled")
	}

	// FCM push
	notifier, err := notification.NewNotificationService(cfg.Firebase.CredentialsFile, userRepo)
	if err != nil {
		log.Warn().Err(err).Msg("FCM not available")
	}

	// Handlers
	chatHandler := handler.NewChatHandler(chatService, hub, notifier)
	friendHandler := handler.NewFriendHandler(friendService, hub, mailClient)
	presenceHandler := handler.NewPresenceHandler(presenceService, chatService, hub)
	callHandler := handler.NewCallHandler(callService, chatService, hub, notifier)
	userHandler := handler.NewUserHandler(userRepo, identityService, jwtManager, rdb, handler.JWTSettings{
		Expiry:      cfg.JWT.Expiry,
		ExchangeKey: cfg.JWT.ExchangeKey,
	})
	uploadHandler := handler.NewUploadHandler(minioStorage)
	wsHandler := handler.NewWSHandler(hub, chatService, presenceService, identityService, jwtManager)
	webhookHandler, err := handler.NewWebhookHandler(identityService, cfg.Webhook.SigningSecret)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid webhook signing secret")
	}

	// Background jobs
	jobManager := jobs.NewManager(jobs.NewMissedCallJob(callService, chatService, hub))
	if err := jobManager.RegisterJobs(); err != nil {
		log.Fatal().Err(err).Msg("failed to register cron jobs")
	}
	jobManager.Start()
	defer jobManager.Stop()

	// ==================== Router ====================
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	router.StaticFile("/docs/swagger.json", "./docs/swagger.json")
	swaggerURL := ginSwagger.URL("/docs/swagger.json")
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, swaggerURL))

	router.Use(middleware.CORSMiddleware(cfg.CORS.Origins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "converse-api",
			"time":    time.Now().Format(time.RFC3339),
		})
	})

	api := router.Group("/api/v1")
	{
		// identity provider webhooks (verified by signature, not JWT)
		api.POST("/webhooks/identity", webhookHandler.HandleProviderEvent)

		// server-to-server token exchange (verified by exchange key)
		api.POST("/auth/token", userHandler.ExchangeToken)

		protected := api.Group("")
		protected.Use(middleware.AuthMiddleware(jwtManager, rdb, identityService))
		{
			// Session / profile
			protected.GET("/auth/me", userHandler.Me)
			protected.POST("/auth/logout", userHandler.Logout)
			protected.POST("/devices", userHandler.RegisterDevice)
			protected.GET("/users/search", userHandler.SearchUsers)
			protected.GET("/users/online", presenceHandler.GetOnlineUsers)
			protected.GET("/users/:id/status", presenceHandler.GetUserStatus)

			// Conversations
			protected.GET("/conversations", chatHandler.ListConversations)
			protected.GET("/conversations/:id", chatHandler.GetConversation)
			protected.GET("/conversations/:id/group-info", chatHandler.GetGroupInfo)
			protected.POST("/conversations/groups", chatHandler.CreateGroup)
			protected.POST("/conversations/:id/members", chatHandler.AddMembers)
			protected.POST("/conversations/:id/leave", chatHandler.LeaveGroup)
			protected.DELETE("/conversations/:id", chatHandler.DeleteGroup)
			protected.POST("/conversations/:id/read", chatHandler.MarkRead)

			// Messages
			protected.GET("/conversations/:id/messages", chatHandler.ListMessages)
			protected.POST("/conversations/:id/messages", chatHandler.SendMessage)
			protected.PATCH("/messages/:id", chatHandler.EditMessage)
			protected.DELETE("/messages/:id", chatHandler.DeleteMessage)

			// Typing / presence
			protected.POST("/presence/online", presenceHandler.SetOnline)
			protected.POST("/conversations/:id/typing", presenceHandler.SetTyping)
			protected.GET("/conversations/:id/typing", presenceHandler.GetTypingUsers)

			// Friends
			protected.GET("/friends", friendHandler.ListFriends)
			protected.DELETE("/friends/:conversationId", friendHandler.DeleteFriend)
			protected.POST("/friends/requests", friendHandler.SendRequest)
			protected.GET("/friends/requests/received", friendHandler.ListReceived)
			protected.GET("/friends/requests/sent", friendHandler.ListSent)
			protected.GET("/friends/requests/count", friendHandler.CountReceived)
			protected.POST("/friends/requests/:id/accept", friendHandler.Accept)
			protected.POST("/friends/requests/:id/deny", friendHandler.Deny)
			protected.DELETE("/friends/requests/:id", friendHandler.CancelSent)

			// Calls
			protected.POST("/conversations/:id/calls", callHandler.Initiate)
			protected.GET("/calls/active", callHandler.ActiveCalls)
			protected.POST("/calls/:id/answer", callHandler.Answer)
			protected.POST("/calls/:id/reject", callHandler.Reject)
			protected.POST("/calls/:id/cancel", callHandler.Cancel)
			protected.POST("/calls/:id/end", callHandler.End)

			// Upload
			protected.POST("/upload", uploadHandler.UploadFile)
			protected.POST("/upload/multiple", uploadHandler.UploadMultiple)
		}
	}

	// WebSocket endpoint (auth via query parameter)
	router.GET("/ws", wsHandler.HandleWebSocket)

	// ==================== Serve ====================
	srv := &http.Server{
		Addr:    ":" + cfg.App.Port,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()
	log.Info().Str("port", cfg.App.Port).Msg("Converse API running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	hubCancel()
	log.Info().Msg("server exited")
}
