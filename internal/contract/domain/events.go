package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// ContractSignedEventType 合同生效事件
	ContractSignedEventType = "contract.signed"
	// MarginCallEventType 保证金追缴事件
	MarginCallEventType = "contract.margin_call"
	// PaymentReceivedEventType 缴款入账事件
	PaymentReceivedEventType = "contract.payment_received"
	// DeliveryCompletedEventType 交收完成事件
	DeliveryCompletedEventType = "contract.delivery_completed"
)

// MarginCallEvent 保证金追缴事件载荷
type MarginCallEvent struct {
	ContractNo     string    `json:"contract_no"`
	ClientID       string    `json:"client_id"`
	CurrentPrice   string    `json:"current_price"`
	RequiredMargin string    `json:"required_margin"`
	CallAmount     string    `json:"call_amount"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// PaymentReceivedEvent 缴款事件载荷
type PaymentReceivedEvent struct {
	ContractNo string    `json:"contract_no"`
	PaymentNo  string    `json:"payment_no"`
	Type       string    `json:"type"`
	Amount     string    `json:"amount"`
	Remainder  string    `json:"remainder"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EventPublisher 事件发布端口
type EventPublisher interface {
	Publish(ctx context.Context, topic, key string, payload any) error
}

// PriceSource 行情现价来源，保证金盯市按参考合约取价
type PriceSource interface {
	LatestPrice(ctx context.Context, refContract string) (decimal.Decimal, error)
}
