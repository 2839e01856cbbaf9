package worker

import (
	"context"
	"errors"
	"time"

	"github.com/NishadApi25/final-year-project/internal/config"
	"github.com/NishadApi25/final-year-project/internal/logger"
	"github.com/NishadApi25/final-year-project/internal/queue"

	"github.com/hibiken/asynq"
)

// ReconcileOptions 已支付未结算订单的补偿扫描参数
type ReconcileOptions struct {
	Interval time.Duration
	Grace    time.Duration
	Batch    int
}

func reconcileOptionsFrom(cfg *config.QueueConfig) ReconcileOptions {
	opts := ReconcileOptions{Interval: time.Minute, Grace: 2 * time.Minute, Batch: 50}
	if cfg == nil {
		return opts
	}
	if cfg.ReconcileIntervalSeconds > 0 {
		opts.Interval = time.Duration(cfg.ReconcileIntervalSeconds) * time.Second
	}
	if cfg.ReconcileGraceSeconds > 0 {
		opts.Grace = time.Duration(cfg.ReconcileGraceSeconds) * time.Second
	}
	if cfg.ReconcileBatch > 0 {
		opts.Batch = cfg.ReconcileBatch
	}
	return opts
}

// Service 结算队列消费 + 补偿扫描
type Service struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	consumer  *Consumer
	reconcile ReconcileOptions
}

// NewService 创建异步队列服务
func NewService(cfg *config.QueueConfig, consumer *Consumer) (*Service, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, errors.New("queue disabled")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	opt, serverCfg := queue.BuildServerConfig(cfg)
	mux := asynq.NewServeMux()
	consumer.Register(mux)
	return &Service{
		server:    asynq.NewServer(opt, serverCfg),
		mux:       mux,
		consumer:  consumer,
		reconcile: reconcileOptionsFrom(cfg),
	}, nil
}

// Name 服务名称
func (s *Service) Name() string {
	return "worker"
}

// Start 启动消费者并阻塞到 ctx 结束；信号由上层 Runner 统一处理
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.server == nil || s.mux == nil {
		return errors.New("worker not initialized")
	}
	if err := s.server.Start(s.mux); err != nil {
		return err
	}
	if s.consumer != nil && s.consumer.Settlement != nil {
		go runReconcileLoop(ctx, s.consumer.Settlement, s.reconcile)
	}
	<-ctx.Done()
	return nil
}

// Stop 停止服务，等待进行中的结算任务完成
func (s *Service) Stop(context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	s.server.Shutdown()
	return nil
}

// runReconcileLoop 启动即扫描一次，之后按间隔补结算漏掉的已支付推广订单
func runReconcileLoop(ctx context.Context, settlement SettlementRetrier, opts ReconcileOptions) {
	runOnce := func() {
		settled, err := settlement.ReconcilePaidOrders(ctx, opts.Grace, opts.Batch)
		if err != nil {
			logger.Warnw("worker_affiliate_reconcile_failed", "error", err)
			return
		}
		if settled > 0 {
			logger.Infow("worker_affiliate_reconciled", "orders", settled)
		}
	}
	runOnce()

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce()
		}
	}
}
