package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Sirtheprogrammer/innervoice/config"
	"github.com/Sirtheprogrammer/innervoice/internal/repository"
	"github.com/Sirtheprogrammer/innervoice/internal/service"
	"github.com/Sirtheprogrammer/innervoice/pkg/database"
	applogger "github.com/Sirtheprogrammer/innervoice/pkg/logger"
	"github.com/Sirtheprogrammer/innervoice/pkg/redis"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "推荐奖励账本运维工具",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "配置文件路径（默认读取 ./config.yaml 与环境变量）")

	rootCmd.AddCommand(healCmd())
	rootCmd.AddCommand(payoutsCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app 命令行运行所需的依赖
type app struct {
	cfg    *config.Config
	db     *gorm.DB
	rdb    *redis.Client
	svc    *service.Service
	logger *zap.Logger
}

func (a *app) Close() {
	if sqlDB, err := a.db.DB(); err == nil {
		sqlDB.Close()
	}
	_ = a.rdb.Close()
	_ = a.logger.Sync()
}

func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("加载配置失败: %w", err)
	}
	logger, err := applogger.NewLogger(&cfg.Log, "ledgerctl")
	if err != nil {
		return nil, nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	return cfg, logger, nil
}

// connectCache 连接服务端使用的 Redis，使审批、驳回等账本变动同步清除资料缓存
// 未配置或连接失败时返回 nil 并向 w 输出警告
func connectCache(cfg *config.Config, logger *zap.Logger, w io.Writer) *redis.Client {
	if cfg.Redis.Addr == "" {
		fmt.Fprintf(w, "警告: 未配置 Redis，服务端资料缓存最长 %s 后才会反映本次变动\n", cfg.Ledger.ProfileCacheTTL)
		return nil
	}
	rdb, err := redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		fmt.Fprintf(w, "警告: Redis 不可用（%v），服务端资料缓存最长 %s 后才会反映本次变动\n", err, cfg.Ledger.ProfileCacheTTL)
		return nil
	}
	return rdb
}

// bootstrap 连接数据库与 Redis 并装配 Service
func bootstrap() (*app, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}

	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		return nil, fmt.Errorf("数据库连接失败: %w", err)
	}

	repo := repository.NewRepository(db, repository.TxOptions{
		MaxAttempts: cfg.Ledger.TxMaxAttempts,
		BaseDelay:   cfg.Ledger.TxRetryBaseDelay,
	})
	rdb := connectCache(cfg, logger, os.Stderr)
	svc := service.NewService(cfg, repo, rdb, nil, logger)

	return &app{cfg: cfg, db: db, rdb: rdb, svc: svc, logger: logger}, nil
}

