package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/NishadApi25/final-year-project/internal/config"
	"github.com/NishadApi25/final-year-project/internal/queue"
	"github.com/NishadApi25/final-year-project/internal/service"

	"github.com/hibiken/asynq"
)

type fakeSettlement struct {
	err      error
	payloads []queue.SettleOrderPayload

	reconciles atomic.Int32
	grace      atomic.Int64
	batch      atomic.Int32
}

func (f *fakeSettlement) RetrySettlement(_ context.Context, payload queue.SettleOrderPayload) error {
	f.payloads = append(f.payloads, payload)
	return f.err
}

func (f *fakeSettlement) ReconcilePaidOrders(_ context.Context, grace time.Duration, limit int) (int, error) {
	f.reconciles.Add(1)
	f.grace.Store(int64(grace))
	f.batch.Store(int32(limit))
	return 1, nil
}

func settleTask(t *testing.T, orderID uint) *asynq.Task {
	t.Helper()
	task, err := queue.NewSettleOrderTask(queue.SettleOrderPayload{OrderID: orderID, AffiliateUserID: 7, Source: "bkash"})
	if err != nil {
		t.Fatalf("build task failed: %v", err)
	}
	return task
}

func TestHandleSettleOrderSuccess(t *testing.T) {
	settlement := &fakeSettlement{}
	consumer := NewConsumer(settlement)
	if err := consumer.handleSettleOrder(context.Background(), settleTask(t, 42)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(settlement.payloads) != 1 || settlement.payloads[0].OrderID != 42 || settlement.payloads[0].AffiliateUserID != 7 {
		t.Fatalf("unexpected payloads: %+v", settlement.payloads)
	}
}

func TestHandleSettleOrderSkipsRetryForPermanentErrors(t *testing.T) {
	consumer := NewConsumer(&fakeSettlement{err: service.ErrOrderNotFound})
	err := consumer.handleSettleOrder(context.Background(), settleTask(t, 42))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}

	bad := asynq.NewTask(queue.TaskSettleOrder, []byte(`{"order_id":0}`))
	if err := consumer.handleSettleOrder(context.Background(), bad); !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry for invalid payload, got %v", err)
	}
}

func TestHandleSettleOrderRetriesTransientErrors(t *testing.T) {
	transient := errors.New("database is locked")
	consumer := NewConsumer(&fakeSettlement{err: transient})
	err := consumer.handleSettleOrder(context.Background(), settleTask(t, 42))
	if !errors.Is(err, transient) || errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected retryable error, got %v", err)
	}
}

func TestReconcileLoopRunsImmediatelyAndOnTick(t *testing.T) {
	settlement := &fakeSettlement{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		runReconcileLoop(ctx, settlement, ReconcileOptions{Interval: 10 * time.Millisecond, Grace: time.Minute, Batch: 5})
		close(done)
	}()

	deadline := time.After(time.Second)
	for settlement.reconciles.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("expected at least two reconcile passes, got %d", settlement.reconciles.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done

	if time.Duration(settlement.grace.Load()) != time.Minute || settlement.batch.Load() != 5 {
		t.Fatalf("unexpected reconcile args grace=%v batch=%d", time.Duration(settlement.grace.Load()), settlement.batch.Load())
	}
}

func TestReconcileOptionsFromConfig(t *testing.T) {
	opts := reconcileOptionsFrom(&config.QueueConfig{ReconcileIntervalSeconds: 30, ReconcileBatch: 10})
	if opts.Interval != 30*time.Second || opts.Grace != 2*time.Minute || opts.Batch != 10 {
		t.Fatalf("unexpected options: %+v", opts)
	}
	if _, err := NewService(&config.QueueConfig{Enabled: false}, NewConsumer(nil)); err == nil {
		t.Fatalf("disabled queue should not build a worker service")
	}
}
