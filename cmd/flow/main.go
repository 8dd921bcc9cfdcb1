package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/bitfantasy/nimo-flow/internal/config"
	"github.com/bitfantasy/nimo-flow/internal/flow/entity"
	"github.com/bitfantasy/nimo-flow/internal/flow/handler"
	"github.com/bitfantasy/nimo-flow/internal/flow/repository"
	"github.com/bitfantasy/nimo-flow/internal/flow/service"
	"github.com/bitfantasy/nimo-flow/internal/middleware"
	"github.com/bitfantasy/nimo-flow/internal/shared/mail"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// 加载 .env 文件
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting nimo-flow service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	// 初始化数据库
	db, err := initDatabase(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}

	if err := db.AutoMigrate(
		&entity.Process{},
		&entity.State{},
		&entity.Route{},
		&entity.Action{},
		&entity.Activity{},
		&entity.Target{},
		&entity.User{},
		&entity.Group{},
		&entity.GroupMember{},
		&entity.Request{},
		&entity.RequestData{},
		&entity.RequestNote{},
		&entity.RequestStakeholder{},
		&entity.RequestAction{},
	); err != nil {
		zapLogger.Warn("AutoMigrate warning", zap.Error(err))
	}

	// 初始化Redis，连不上时降级为直查数据库
	rdb := initRedis(cfg.Redis)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		zapLogger.Warn("Redis unavailable, group membership cache disabled", zap.Error(err))
		rdb = nil
	}

	// 初始化邮件投递，未配置时关闭通知
	var mailer mail.Mailer
	if cfg.Mail.Host != "" {
		mailer = mail.NewSMTPMailer(cfg.Mail.Host, cfg.Mail.Port, cfg.Mail.Username, cfg.Mail.Password, cfg.Mail.From)
	} else {
		zapLogger.Warn("Mail host not configured, email notifications disabled")
	}

	// 组装依赖
	repos := repository.NewRepositories(db)
	services := service.NewServices(db, repos, rdb, mailer)
	handlers := handler.NewHandlers(services)

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	// 注册路由
	registerRoutes(router, handlers, cfg)

	// 创建HTTP服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 启动服务器
	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exited")
}

func registerRoutes(router *gin.Engine, h *handler.Handlers, cfg *config.Config) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "version": Version})
	})

	api := router.Group("/api/v1")
	api.Use(middleware.JWTAuth(cfg.JWT.Secret))
	{
		// 流程编排只对管理员开放
		processes := api.Group("/processes", middleware.RequireRole("flow_admin"))
		{
			processes.POST("", h.Process.Create)
			processes.GET("", h.Process.List)
			processes.GET("/by-name/:name", h.Process.GetByName)
			processes.GET("/:id", h.Process.Get)
			processes.PUT("/:id", h.Process.Update)
			processes.DELETE("/:id", h.Process.Delete)

			processes.POST("/:id/states", h.Process.AddState)
			processes.PUT("/:id/states/:sid", h.Process.UpdateState)
			processes.DELETE("/:id/states/:sid", h.Process.RemoveState)
			processes.POST("/:id/states/:sid/activities/:aid", h.Process.AttachActivityToState)
			processes.DELETE("/:id/states/:sid/activities/:aid", h.Process.DetachActivityFromState)

			processes.POST("/:id/routes", h.Process.AddRoute)
			processes.PUT("/:id/routes/:rid", h.Process.UpdateRoute)
			processes.DELETE("/:id/routes/:rid", h.Process.RemoveRoute)
			processes.POST("/:id/routes/:rid/actions/:aid", h.Process.AttachActionToRoute)
			processes.DELETE("/:id/routes/:rid/actions/:aid", h.Process.DetachActionFromRoute)
			processes.POST("/:id/routes/:rid/activities/:aid", h.Process.AttachActivityToRoute)
			processes.DELETE("/:id/routes/:rid/activities/:aid", h.Process.DetachActivityFromRoute)
		}

		actions := api.Group("/actions", middleware.RequireRole("flow_admin"))
		{
			actions.POST("", h.Action.Create)
			actions.GET("", h.Action.List)
			actions.GET("/:id", h.Action.Get)
			actions.PUT("/:id", h.Action.Update)
			actions.DELETE("/:id", h.Action.Delete)
			actions.POST("/:id/targets/:tid", h.Action.AttachTarget)
			actions.DELETE("/:id/targets/:tid", h.Action.DetachTarget)
		}

		activities := api.Group("/activities", middleware.RequireRole("flow_admin"))
		{
			activities.POST("", h.Activity.Create)
			activities.GET("", h.Activity.List)
			activities.GET("/:id", h.Activity.Get)
			activities.PUT("/:id", h.Activity.Update)
			activities.DELETE("/:id", h.Activity.Delete)
			activities.POST("/:id/targets/:tid", h.Activity.AttachTarget)
			activities.DELETE("/:id/targets/:tid", h.Activity.DetachTarget)
		}

		targets := api.Group("/targets", middleware.RequireRole("flow_admin"))
		{
			targets.POST("", h.Target.Create)
			targets.GET("", h.Target.List)
			targets.GET("/:id", h.Target.Get)
			targets.PUT("/:id", h.Target.Update)
			targets.DELETE("/:id", h.Target.Delete)
		}

		groups := api.Group("/groups", middleware.RequireRole("flow_admin"))
		{
			groups.POST("", h.Group.Create)
			groups.GET("", h.Group.List)
			groups.GET("/:id", h.Group.Get)
			groups.PUT("/:id", h.Group.Update)
			groups.DELETE("/:id", h.Group.Delete)
			groups.GET("/:id/members", h.Group.ListMembers)
			groups.POST("/:id/members/:uid", h.Group.AddMember)
			groups.DELETE("/:id/members/:uid", h.Group.RemoveMember)
		}

		users := api.Group("/users")
		{
			users.GET("", h.User.List)
			users.GET("/:id", h.User.Get)
		}

		requests := api.Group("/requests")
		{
			requests.POST("", h.Request.Create)
			requests.GET("", h.Request.List)
			requests.GET("/:id", h.Request.Get)
			requests.GET("/:id/allowed-actions", h.Request.AllowedActions)
			requests.GET("/:id/allowed-actions/:user_id", h.Request.AllowedActionsForUser)
			requests.POST("/:id/actions/:action_id", h.Request.CommitAction)
			requests.POST("/:id/archive", middleware.RequirePermission("flow:request:archive"), h.Request.Archive)
			requests.GET("/:id/request-actions", h.Request.ListRequestActions)
		}
	}
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	return zapCfg.Build()
}

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	db, err := gorm.Open(postgres.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return db, nil
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}
