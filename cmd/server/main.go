// Command server runs the garage-sale marketplace backend.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/max0n1x/IIS/internal/admin"
	"github.com/max0n1x/IIS/internal/chat"
	"github.com/max0n1x/IIS/internal/config"
	"github.com/max0n1x/IIS/internal/crypto"
	"github.com/max0n1x/IIS/internal/db"
	"github.com/max0n1x/IIS/internal/item"
	"github.com/max0n1x/IIS/internal/mail"
	"github.com/max0n1x/IIS/internal/middleware"
	"github.com/max0n1x/IIS/internal/user"
)

func main() {
	cfg := config.Load()

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	if cfg.DSN == "" {
		logger.Fatal("DB_DSN is not set")
	}
	if cfg.ResetSecret == "" {
		logger.Fatal("RESET_SECRET is not set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := db.Migrate(ctx, cfg.DSN); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}
	logger.Info("database schema up to date")

	database, err := db.New(ctx, cfg.DSN)
	if err != nil {
		logger.Fatal("cannot connect to database", zap.Error(err))
	}
	defer database.Close()
	logger.Info("connected to PostgreSQL")

	// Redis is optional: without it fan-out stays instance-local.
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if _, err := redisClient.Ping(ctx).Result(); err != nil {
			logger.Fatal("cannot connect to Redis", zap.Error(err))
		}
		logger.Info("connected to Redis", zap.String("addr", cfg.RedisAddr))
	}

	hasher := crypto.NewHasher(cfg.Pepper)

	var mailer mail.Mailer
	if cfg.SMTPUser != "" {
		mailer = mail.NewSMTP(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass)
	} else {
		logger.Warn("SMTP_USER not set, mail delivery disabled")
		mailer = &mail.LogMailer{Log: logger}
	}

	// Users
	userRepo := user.NewRepository(database)
	userService := user.NewService(userRepo, hasher, mailer, cfg.ResetSecret, cfg.SessionTTL, logger)
	userHandler := user.NewHandler(userService)

	adminHash, err := hasher.HashPassword("admin")
	if err != nil {
		logger.Fatal("cannot hash bootstrap password", zap.Error(err))
	}
	if err := userRepo.EnsureAdmin(ctx, adminHash); err != nil {
		logger.Fatal("cannot ensure admin account", zap.Error(err))
	}

	// Items
	itemRepo := item.NewRepository(database)
	itemHandler := item.NewHandler(itemRepo)

	// Admin / moderation
	adminRepo := admin.NewRepository(database)
	adminHandler := admin.NewHandler(adminRepo)

	// Chat: store, session registry, socket + REST handlers
	chatRepo := chat.NewRepository(database)
	hub := chat.NewHub(chatRepo, redisClient, logger)
	go hub.SubscribeLoop(ctx)
	chatHandler := chat.NewHandler(hub, chatRepo, cfg.AllowedOrigins)

	go userService.RunJanitor(ctx, cfg.JanitorInterval)

	cors := middleware.NewCORS(cfg.AllowedOrigins)

	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handle)

	r.Route("/api/v1.0", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"message":"Oops, you are not supposed to be here"}`))
		})

		// Accounts
		r.Post("/register", userHandler.Register)
		r.Post("/verify", userHandler.Verify)
		r.Post("/resend-code", userHandler.ResendCode)
		r.Post("/login", userHandler.Login)
		r.Post("/forgot-password", userHandler.ForgotPassword)
		r.Post("/reset-password", userHandler.ResetPassword)
		r.Post("/user", userHandler.Get)
		r.Post("/user/update", userHandler.Update)
		r.Post("/user/logout", userHandler.Logout)
		r.Post("/user/delete", userHandler.Delete)
		r.Post("/user/unauthorized", userHandler.CountVisitor)
		r.Get("/public/user/{user_id}", userHandler.GetPublic)

		// Items
		r.Get("/items/{category_id}/category", itemHandler.ListByCategory)
		r.Get("/items/{item_id}", itemHandler.Get)
		r.Post("/item/create", itemHandler.Create)
		r.Post("/item/update", itemHandler.Update)
		r.Post("/item/delete", itemHandler.Delete)
		r.Post("/user/items", itemHandler.ListMine)
		r.Post("/report/create", itemHandler.Report)

		// Chats and messages
		r.Post("/chat/create", chatHandler.CreateChat)
		r.Post("/chat/delete", chatHandler.DeleteChat)
		r.Post("/chat", chatHandler.GetChat)
		r.Post("/user/chats", chatHandler.GetChats)
		r.Post("/chat/messages", chatHandler.GetMessages)
		r.Post("/message/create", chatHandler.CreateMessage)
		r.Post("/message/update", chatHandler.UpdateMessage)
		r.Post("/message/delete", chatHandler.DeleteMessage)

		// Live channels
		r.Get("/new/chat", chatHandler.ServeMessagesWs)
		r.Get("/new/chats", chatHandler.ServeChatsWs)

		// Administration
		r.Post("/admin/stats", adminHandler.Stats)
		r.Post("/admin/users", adminHandler.ListUsers)
		r.Post("/admin/user/ban", adminHandler.BanUser)
		r.Post("/admin/user/unban", adminHandler.UnbanUser)
		r.Post("/admin/user/promote", adminHandler.PromoteUser)
		r.Post("/admin/user/demote", adminHandler.DemoteUser)
		r.Post("/admin/user/email", adminHandler.UpdateEmail)
		r.Post("/admin/reports", adminHandler.ListReports)
		r.Post("/admin/report/{report_id}", adminHandler.GetReport)
		r.Post("/admin/report/resolve", adminHandler.ResolveReport)
		r.Post("/admin/item/action", adminHandler.ItemAction)
	})

	srv := &http.Server{Addr: cfg.Addr, Handler: r}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", zap.Error(err))
		}
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}
