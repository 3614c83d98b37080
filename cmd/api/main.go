package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"project-tracker/internal/core/auth"
	"project-tracker/internal/core/cache"
	"project-tracker/internal/core/config"
	"project-tracker/internal/core/database"
	"project-tracker/internal/core/logger"
	"project-tracker/internal/core/server"
	"project-tracker/internal/domain"
	"project-tracker/internal/realtime"
	"project-tracker/internal/repo"
	"project-tracker/internal/service"
	"project-tracker/internal/transport/http/middleware"
	"project-tracker/internal/transport/http/router"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	log, flush := logger.New(logger.Options{
		Level:       cfg.Log.Level,
		JSON:        cfg.Log.JSON,
		AddCaller:   true,
		Development: cfg.IsDev(),
		Rotate: logger.FileRotate{
			Enable:     cfg.Log.File.Enable,
			Filename:   cfg.Log.File.Filename,
			MaxSizeMB:  cfg.Log.File.MaxSizeMB,
			MaxBackups: cfg.Log.File.MaxBackups,
			MaxAgeDays: cfg.Log.File.MaxAgeDays,
			Compress:   cfg.Log.File.Compress,
		},
	})
	defer flush()
	if !cfg.IsDev() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	users, projects, closeStore := mustOpenStore(ctx, cfg, log)
	defer closeStore()

	var rdb *cache.Cache
	if cfg.Redis.Addr != "" {
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		rdb, err = cache.New(pctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		cancel()
		if err != nil {
			log.Fatal("redis connect", zap.Error(err))
		}
		defer rdb.Close()
		log.Info("redis connected", zap.String("addr", cfg.Redis.Addr))
	}

	jwter := auth.NewJWTer(cfg.JWT.Secret, cfg.JWT.Issuer, time.Duration(cfg.JWT.AccessTokenTTLMin)*time.Minute)
	authSvc := service.NewAuthService(users, auth.NewBcryptHasher(cfg.Auth.BcryptCost), jwter)
	statsSvc := service.NewAnalyticsService(users, projects, log).
		WithCache(rdb, time.Duration(cfg.Analytics.CacheTTLSec)*time.Second)
	projectSvc := service.NewProjectService(projects, users).WithStatsInvalidator(statsSvc)

	hub := realtime.NewHub(log.Named("realtime"))
	defer hub.Close()

	var window middleware.WindowLimiter
	if rdb != nil {
		window = rdb.FixedWindow(time.Duration(cfg.RateLimit.WindowSec)*time.Second, cfg.RateLimit.MaxPerWindow)
	}

	engine := router.NewAPIEngine(router.Deps{
		Config:    cfg,
		Log:       log,
		Auth:      authSvc,
		Projects:  projectSvc,
		Analytics: statsSvc,
		Hub:       hub,
		Window:    window,
	})

	srv := server.BuildServer(
		server.Addr(cfg.App.HTTP.Host, cfg.App.HTTP.Port), engine,
		time.Duration(cfg.App.HTTP.ReadTimeoutSec)*time.Second,
		time.Duration(cfg.App.HTTP.WriteTimeoutSec)*time.Second,
		time.Duration(cfg.App.HTTP.IdleTimeoutSec)*time.Second,
	)
	log.Info("project-tracker api",
		zap.String("env", cfg.App.Env),
		zap.String("db", cfg.DB.Driver),
		zap.Bool("redis", rdb != nil),
	)
	if err := server.Run(ctx, srv, 10*time.Second, log); err != nil {
		log.Error("http server", zap.Error(err))
		return
	}
	log.Info("api stopped gracefully")
}

// mustOpenStore picks the repositories for db.driver and returns a func that
// releases the underlying connections.
func mustOpenStore(ctx context.Context, cfg *config.Config, l *zap.Logger) (domain.UserRepository, domain.ProjectRepository, func()) {
	if cfg.DB.Driver == "mongo" {
		mdb, err := database.NewMongo(ctx, database.MongoOpts{
			URI:         cfg.DB.DSN,
			Database:    cfg.DB.Database,
			Username:    cfg.DB.Username,
			Password:    cfg.DB.Password,
			MaxPoolSize: uint64(max(cfg.DB.MaxOpenConns, 0)),
		})
		if err != nil {
			l.Fatal("mongo connect", zap.Error(err))
		}
		if err := repo.EnsureMongoIndexes(ctx, mdb); err != nil {
			l.Fatal("mongo indexes", zap.Error(err))
		}
		l.Info("database connected", zap.String("driver", "mongo"), zap.String("database", cfg.DB.Database))
		return repo.NewMongoUserRepo(mdb), repo.NewMongoProjectRepo(mdb), func() {
			_ = mdb.Client().Disconnect(context.Background())
		}
	}

	db, err := database.NewGorm(database.Opts{
		Driver:             cfg.DB.Driver,
		DSN:                cfg.DB.DSN,
		Username:           cfg.DB.Username,
		Password:           cfg.DB.Password,
		MaxOpenConns:       cfg.DB.MaxOpenConns,
		MaxIdleConns:       cfg.DB.MaxIdleConns,
		ConnMaxLifetimeMin: cfg.DB.ConnMaxLifetimeMin,
		LogLevel:           cfg.DB.LogLevel,
		Logger:             l,
	})
	if err != nil {
		l.Fatal("db open", zap.Error(err))
	}
	l.Info("database connected", zap.String("driver", cfg.DB.Driver))
	if cfg.DB.AutoMigrate {
		if err := repo.AutoMigrate(db); err != nil {
			l.Fatal("automigrate failed", zap.Error(err))
		}
		l.Info("automigrate done")
	}
	return repo.NewUserRepo(db), repo.NewProjectRepo(db), func() { _ = database.Close(db) }
}
