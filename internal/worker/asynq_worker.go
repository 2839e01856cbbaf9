package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/NishadApi25/final-year-project/internal/logger"
	"github.com/NishadApi25/final-year-project/internal/queue"
	"github.com/NishadApi25/final-year-project/internal/service"

	"github.com/hibiken/asynq"
)

// SettlementRetrier 结算重试能力
type SettlementRetrier interface {
	RetrySettlement(ctx context.Context, payload queue.SettleOrderPayload) error
	ReconcilePaidOrders(ctx context.Context, grace time.Duration, limit int) (int, error)
}

// Consumer 异步任务消费者
type Consumer struct {
	Settlement SettlementRetrier
}

// NewConsumer 创建消费者
func NewConsumer(settlement SettlementRetrier) *Consumer {
	return &Consumer{Settlement: settlement}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskSettleOrder, c.handleSettleOrder)
}

func (c *Consumer) handleSettleOrder(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_settle_order_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	payload, err := queue.ParseSettleOrderPayload(task)
	if err != nil {
		logger.Warnw("worker_settle_order_unmarshal_failed", "error", err)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if c.Settlement == nil {
		logger.Warnw("worker_settle_order_skip_service_nil", "order_id", payload.OrderID)
		return nil
	}
	err = c.Settlement.RetrySettlement(ctx, payload)
	switch {
	case err == nil:
		logger.Infow("worker_settle_order_done", "order_id", payload.OrderID, "source", payload.Source)
		return nil
	case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrValidation):
		logger.Warnw("worker_settle_order_skip_invalid", "order_id", payload.OrderID, "error", err)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	default:
		logger.Warnw("worker_settle_order_failed", "order_id", payload.OrderID, "error", err)
		return err
	}
}
