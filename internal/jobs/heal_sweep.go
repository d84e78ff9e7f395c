package jobs

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/Sirtheprogrammer/innervoice/config"
	"github.com/Sirtheprogrammer/innervoice/internal/dto"
)

// Healer 推荐码映射巡检，由 service.ReferralCodeService 实现
type Healer interface {
	HealAll(ctx context.Context, batch int) (*dto.HealReport, error)
}

// Scheduler 后台定时任务
type Scheduler struct {
	sched  gocron.Scheduler
	healer Healer
	batch  int
	// 单次巡检的最长运行时间
	timeout time.Duration
	logger  *zap.Logger
}

// NewScheduler 创建调度器并注册推荐码巡检任务
// 功能开关关闭时返回 nil
func NewScheduler(cfg *config.FeatureConfig, healer Healer, logger *zap.Logger) (*Scheduler, error) {
	if !cfg.HealSweepEnabled {
		return nil, nil
	}

	sched, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, err
	}

	s := &Scheduler{
		sched:   sched,
		healer:  healer,
		batch:   cfg.HealSweepBatch,
		timeout: cfg.HealSweepInterval,
		logger:  logger.With(zap.String("job", "referral_code_heal")),
	}

	_, err = sched.NewJob(
		gocron.DurationJob(cfg.HealSweepInterval),
		gocron.NewTask(s.sweep),
		gocron.WithName("referral_code_heal"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, err
	}
	return s, nil
}

// Start 启动调度（非阻塞）
func (s *Scheduler) Start() {
	if s == nil {
		return
	}
	s.sched.Start()
	s.logger.Info("推荐码巡检任务已启动", zap.Int("batch", s.batch))
}

// Shutdown 停止调度并等待运行中的任务结束
func (s *Scheduler) Shutdown() error {
	if s == nil {
		return nil
	}
	return s.sched.Shutdown()
}

func (s *Scheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	report, err := s.healer.HealAll(ctx, s.batch)
	if err != nil {
		s.logger.Error("推荐码巡检失败", zap.Error(err))
		return
	}

	s.logger.Info("定时巡检结束",
		zap.Int("scanned", report.Scanned),
		zap.Int("codes_issued", report.CodesIssued),
		zap.Int("failed", report.Failed),
		zap.Duration("elapsed", time.Since(start)),
	)
}
