package domain

import (
	"context"
	"time"
)

const (
	// QuoteAcceptedEventType 点价成交事件
	QuoteAcceptedEventType = "order.quote_accepted"
	// QuoteRejectedEventType 点价拒绝事件
	QuoteRejectedEventType = "order.quote_rejected"
	// OrderCancelledEventType 订单撤销事件
	OrderCancelledEventType = "order.cancelled"
)

// QuoteAcceptedEvent 点价成交事件载荷
type QuoteAcceptedEvent struct {
	OrderNo    string    `json:"order_no"`
	ListingNo  string    `json:"listing_no"`
	ClientID   string    `json:"client_id"`
	Quantity   string    `json:"quantity"`
	Price      string    `json:"price"`
	Total      string    `json:"total"`
	ContractNo string    `json:"contract_no"`
	OccurredAt time.Time `json:"occurred_at"`
}

// QuoteRejectedEvent 点价拒绝事件载荷
type QuoteRejectedEvent struct {
	ListingNo  string    `json:"listing_no"`
	ClientID   string    `json:"client_id"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EventPublisher 事件发布端口
type EventPublisher interface {
	Publish(ctx context.Context, topic, key string, payload any) error
}
