package main

import (
	"time"

	"app/internal/config"
	"app/internal/domain/model"
	"app/internal/handler"
	"app/internal/infra/db"
	infraRepo "app/internal/infra/repository"
	"app/internal/logger"
	"app/internal/server"
	"app/internal/usecase"
	"app/internal/validator"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type uuidGenerator struct{}

func (g *uuidGenerator) NewID() string {
	return uuid.NewString()
}

type realClock struct{}

func (c *realClock) Now() time.Time {
	return time.Now()
}

func main() {
	//.envは無くてもいい（本番は環境変数で渡す）
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.Init(logger.ConfigFromEnv())
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	//DB接続
	gormDB, err := db.Connect()
	if err != nil {
		log.Fatal("db connect failed", zap.Error(err))
	}
	if err := gormDB.AutoMigrate(
		&model.User{},
		&model.CreditLog{},
		&model.AuditLog{},
		&model.RefreshToken{},
	); err != nil {
		log.Fatal("auto migrate failed", zap.Error(err))
	}

	//Repository（GORM実装）生成
	userRepo := infraRepo.NewUserGormRepository(gormDB)
	creditLogRepo := infraRepo.NewCreditLogGormRepository(gormDB)
	auditLogRepo := infraRepo.NewAuditLogGormRepository(gormDB)
	rtRepo := infraRepo.NewRefreshTokenRepository(gormDB)
	txManager := infraRepo.NewTxManagerGorm(gormDB)

	//usecaseに渡す部品
	idGen := &uuidGenerator{}
	clock := &realClock{}

	authValidator := validator.NewAuthValidator(userRepo)

	//refresh TTL（cookieの期限。token自体の期限はusecase側）
	refreshTTL := 30 * 24 * time.Hour

	//Usecase生成
	ledgerUC := usecase.NewCreditLedgerUsecase(txManager, idGen, clock, log)
	deductionUC := usecase.NewDailyDeductionUsecase(txManager, userRepo, ledgerUC, log)
	sweepUC := usecase.NewSweepUsecase(txManager, userRepo, ledgerUC, log)
	authUC := usecase.NewAuthUsecase(cfg, userRepo, rtRepo, authValidator, idGen, clock, log)
	adminUC := usecase.NewAdminUserUsecase(
		txManager, userRepo, creditLogRepo, auditLogRepo, rtRepo, ledgerUC, clock, log,
	)

	//Handler生成
	handlers := server.Handlers{
		Auth:      handler.NewAuthHandler(cfg, userRepo, authUC, refreshTTL),
		Protected: handler.NewProtectedHandler(cfg, userRepo),
		AdminUser: handler.NewAdminUserHandler(cfg, userRepo, adminUC, sweepUC),
		Batch:     handler.NewBatchHandler(cfg, deductionUC, sweepUC),
	}

	//Server起動
	addr := cfg.Port
	if addr != "" && addr[0] != ':' {
		addr = ":" + addr
	}

	log.Info("server starting", zap.String("addr", addr))
	if err := server.Start(addr, handlers); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}
