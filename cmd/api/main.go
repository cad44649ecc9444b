package main

import (
	"os"

	"app/internal/config"
	"app/internal/domain/model"
	"app/internal/handler"
	"app/internal/infra/db"
	infraRepo "app/internal/infra/repository"
	"app/internal/logging"
	"app/internal/mail"
	"app/internal/metrics"
	"app/internal/realtime"
	"app/internal/server"
	"app/internal/token"
	"app/internal/usecase"
	"app/internal/validator"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	// .envはローカル開発用。本番は環境変数を直接渡す
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Init("dev", "info")
		logging.Error().Err(err).Msg("failed to load config")
		os.Exit(1)
	}

	logging.Init(cfg.GoEnv, os.Getenv("LOG_LEVEL"))

	gormDB, err := db.Connect(cfg)
	if err != nil {
		logging.Error().Err(err).Msg("failed to connect database")
		os.Exit(1)
	}

	if err := gormDB.AutoMigrate(
		&model.User{},
		&model.RefreshToken{},
		&model.Group{},
		&model.Post{},
		&model.PostLike{},
		&model.VerificationCode{},
		&model.AuditLog{},
	); err != nil {
		logging.Error().Err(err).Msg("failed to migrate database")
		os.Exit(1)
	}

	// repository
	userRepo := infraRepo.NewUserGormRepository(gormDB)
	tokenRepo := infraRepo.NewRefreshTokenRepository(gormDB)
	groupRepo := infraRepo.NewGroupGormRepository(gormDB)
	postRepo := infraRepo.NewPostGormRepository(gormDB)
	codeRepo := infraRepo.NewVerificationCodeGormRepository(gormDB)
	auditRepo := infraRepo.NewAuditLogGormRepository(gormDB)
	txManager := infraRepo.NewTxManagerGorm(gormDB)

	// token / realtime
	vault := token.NewVault(cfg, userRepo, tokenRepo, auditRepo, txManager)
	registry := realtime.NewRegistry()
	broadcaster := realtime.NewBroadcaster(registry)
	membership := realtime.NewMembershipCoordinator(groupRepo, registry)

	// usecase
	authUC := usecase.NewAuthUsecase(userRepo, vault, auditRepo, validator.NewAuthValidator())
	resetUC := usecase.NewPasswordResetUsecase(userRepo, codeRepo, mail.NewSenderFromConfig(cfg))
	groupUC := usecase.NewGroupUsecase(groupRepo)
	postUC := usecase.NewPostUsecase(postRepo, groupRepo)
	likeUC := usecase.NewLikeUsecase(txManager, postRepo, broadcaster)

	// metrics
	promReg := prometheus.NewRegistry()
	metrics.RegisterCollectors(promReg)

	srv := server.New(":"+cfg.Port, cfg.FEURL, vault, promReg, server.Handlers{
		Auth:   handler.NewAuthHandler(authUC, resetUC),
		Group:  handler.NewGroupHandler(groupUC, membership),
		Post:   handler.NewPostHandler(postUC, likeUC),
		Ws:     handler.NewWsHandler(vault, registry),
		Health: handler.NewHealthHandler(gormDB, registry),
	})

	if err := srv.Start(); err != nil {
		logging.Error().Err(err).Msg("server stopped with error")
		os.Exit(1)
	}
}
