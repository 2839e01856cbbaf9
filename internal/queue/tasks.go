package queue

import (
	"encoding/json"
	"fmt"

	"github.com/NishadApi25/final-year-project/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskSettleOrder 订单佣金结算重试任务
	TaskSettleOrder = constants.TaskSettleOrder
)

// SettleOrderPayload 结算任务载荷
type SettleOrderPayload struct {
	OrderID         uint   `json:"order_id"`
	AffiliateUserID uint   `json:"affiliate_user_id,omitempty"`
	Source          string `json:"source"`
}

// NewSettleOrderTask 创建结算任务
func NewSettleOrderTask(payload SettleOrderPayload) (*asynq.Task, error) {
	if payload.OrderID == 0 {
		return nil, fmt.Errorf("settle order task: order id is required")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSettleOrder, body), nil
}

// ParseSettleOrderPayload 解析结算任务载荷
func ParseSettleOrderPayload(task *asynq.Task) (SettleOrderPayload, error) {
	var payload SettleOrderPayload
	if task == nil {
		return payload, fmt.Errorf("settle order task is nil")
	}
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return payload, err
	}
	if payload.OrderID == 0 {
		return payload, fmt.Errorf("settle order task: order id is required")
	}
	return payload, nil
}
