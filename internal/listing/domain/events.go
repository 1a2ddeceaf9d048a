package domain

import "context"

// 领域事件 topic
const (
	ListingPublishedEventType = "listing.published"
	ListingDelistedEventType  = "listing.delisted"
)

// ListingPublishedEvent 挂牌发布事件
type ListingPublishedEvent struct {
	ListingNo   string `json:"listing_no"`
	ProductType string `json:"product_type"`
	RefContract string `json:"ref_contract"`
	Quantity    string `json:"quantity"`
	Basis       string `json:"basis"`
}

// ListingDelistedEvent 摘牌事件
type ListingDelistedEvent struct {
	ListingNo string `json:"listing_no"`
	Reason    string `json:"reason"`
}

// EventPublisher 领域事件发布接口
type EventPublisher interface {
	Publish(ctx context.Context, topic string, key string, payload any) error
}
