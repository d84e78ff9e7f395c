package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Sirtheprogrammer/innervoice/config"
	"github.com/Sirtheprogrammer/innervoice/internal/api/handler"
	"github.com/Sirtheprogrammer/innervoice/internal/api/router"
	"github.com/Sirtheprogrammer/innervoice/internal/jobs"
	"github.com/Sirtheprogrammer/innervoice/internal/repository"
	"github.com/Sirtheprogrammer/innervoice/internal/service"
	"github.com/Sirtheprogrammer/innervoice/pkg/database"
	"github.com/Sirtheprogrammer/innervoice/pkg/jwt"
	applogger "github.com/Sirtheprogrammer/innervoice/pkg/logger"
	"github.com/Sirtheprogrammer/innervoice/pkg/redis"
	"github.com/Sirtheprogrammer/innervoice/pkg/storage"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log, "server")
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
	)

	// 3. 连接数据库并执行迁移
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	// 4. 连接 Redis（可选：连接失败时资料缓存与限流降级）
	rdb, err := redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis 连接失败，资料缓存与提现限流将不可用", zap.Error(err))
		rdb = nil
	}

	// 5. 导出归档（可选）
	var archiver storage.Archiver
	s3Archiver, err := storage.NewS3Archiver(context.Background(), &cfg.Storage)
	switch {
	case err != nil:
		logger.Warn("对象存储初始化失败，导出文件不归档", zap.Error(err))
	case s3Archiver != nil:
		archiver = s3Archiver
		logger.Info("导出归档已启用", zap.String("bucket", cfg.Storage.Bucket))
	}

	// 6. 依赖注入: Repository → Service → Handler
	repo := repository.NewRepository(db, repository.TxOptions{
		MaxAttempts: cfg.Ledger.TxMaxAttempts,
		BaseDelay:   cfg.Ledger.TxRetryBaseDelay,
	})
	svc := service.NewService(cfg, repo, rdb, archiver, logger)
	h := handler.NewHandler(svc, cfg.Feature.HealSweepBatch)

	// 7. 初始化路由
	jwtMgr := jwt.NewManager(&cfg.Auth)
	engine := router.Setup(cfg, h, jwtMgr, rdb, logger)

	// 8. 后台任务
	scheduler, err := jobs.NewScheduler(&cfg.Feature, svc.ReferralCode, logger)
	if err != nil {
		logger.Fatal("初始化定时任务失败", zap.Error(err))
	}
	scheduler.Start()

	// 9. 启动 HTTP 服务器（优雅关闭）
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 10. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}
	if err := scheduler.Shutdown(); err != nil {
		logger.Error("定时任务关闭异常", zap.Error(err))
	}

	sqlDB.Close()
	rdb.Close()

	logger.Info("服务器已关闭")
}
