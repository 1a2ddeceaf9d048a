// Package domain 点价订单领域模型。
// 订单是买方对某条挂牌的点价申报，申报通过校验并成交后生成交收合同。
package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	listingdomain "github.com/wyfcoding/basistrading/internal/listing/domain"
	"github.com/wyfcoding/basistrading/internal/rules"
	"github.com/wyfcoding/basistrading/pkg/pagination"
)

var (
	// ErrOrderNotFound 订单不存在
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderNotCancellable 订单当前状态不允许撤销
	ErrOrderNotCancellable = errors.New("order can only be cancelled while pricing")
	// ErrMarketClosed 非交易时段
	ErrMarketClosed = errors.New("market closed, quote rejected")
)

// Status 订单状态
type Status string

const (
	StatusPricing   Status = "PRICING"   // 点价中
	StatusCompleted Status = "COMPLETED" // 已成交
	StatusFailed    Status = "FAILED"    // 已失败
	StatusCancelled Status = "CANCELLED" // 已撤销
)

// Label 中文展示名
func (s Status) Label() string {
	switch s {
	case StatusPricing:
		return "点价中"
	case StatusCompleted:
		return "已成交"
	case StatusFailed:
		return "已失败"
	case StatusCancelled:
		return "已撤销"
	default:
		return string(s)
	}
}

// Color 前端标签颜色
func (s Status) Color() string {
	switch s {
	case StatusPricing:
		return "processing"
	case StatusCompleted:
		return "success"
	case StatusFailed:
		return "error"
	case StatusCancelled:
		return "default"
	default:
		return "default"
	}
}

// ParseStatus 兼容历史中文状态值
func ParseStatus(s string) (Status, bool) {
	switch s {
	case string(StatusPricing), "点价中":
		return StatusPricing, true
	case string(StatusCompleted), "已成交", "点价完成":
		return StatusCompleted, true
	case string(StatusFailed), "已失败":
		return StatusFailed, true
	case string(StatusCancelled), "已撤销":
		return StatusCancelled, true
	default:
		return "", false
	}
}

// Order 点价订单聚合根
type Order struct {
	gorm.Model
	OrderNo   string `gorm:"column:order_no;type:varchar(64);uniqueIndex;not null"`
	ListingID uint   `gorm:"column:listing_id;index;not null"`
	ListingNo string `gorm:"column:listing_no;type:varchar(64);index;not null"`

	ClientID   string `gorm:"column:client_id;type:varchar(64);index;not null"`
	ClientName string `gorm:"column:client_name;type:varchar(64)"`

	ProductType string `gorm:"column:product_type;type:varchar(32);not null"`
	RefContract string `gorm:"column:ref_contract;type:varchar(16);not null"`

	Quantity decimal.Decimal `gorm:"column:quantity;type:decimal(20,2);not null"`
	// Price 点价价格，必须落在挂牌价格区间内
	Price decimal.Decimal `gorm:"column:price;type:decimal(20,2);not null"`
	Basis decimal.Decimal `gorm:"column:basis;type:decimal(20,2);not null"`
	// TotalAmount 申报货值，Quantity * Price
	TotalAmount decimal.Decimal `gorm:"column:total_amount;type:decimal(20,2);not null"`

	Status   Status    `gorm:"column:status;type:varchar(16);index;not null"`
	QuotedAt time.Time `gorm:"column:quoted_at;not null"`
	Remark   string    `gorm:"column:remark;type:varchar(255)"`
}

// TableName 表名
func (Order) TableName() string {
	return "point_pricing_orders"
}

// Complete 成交
func (o *Order) Complete() {
	o.Status = StatusCompleted
}

// Fail 失败
func (o *Order) Fail() {
	o.Status = StatusFailed
}

// Cancel 撤销，仅点价中订单可撤
func (o *Order) Cancel() error {
	if o.Status != StatusPricing {
		return ErrOrderNotCancellable
	}
	o.Status = StatusCancelled
	return nil
}

// QuoteInput 点价申报输入
type QuoteInput struct {
	Quantity decimal.Decimal
	Price    decimal.Decimal
}

// QuoteTotal 申报货值
func QuoteTotal(quantity, price decimal.Decimal) decimal.Decimal {
	return quantity.Mul(price)
}

// ValidateQuote 按挂牌约束校验点价申报，汇总所有违规。
// 数量按挂牌自身的最小交易单位取整校验，价格须落在挂牌价格区间内。
func ValidateQuote(l *listingdomain.Listing, in QuoteInput) rules.ValidationErrors {
	var errs rules.ValidationErrors

	if !in.Quantity.IsPositive() {
		errs = append(errs, rules.ValidationError{
			Field:   "quantity",
			Rule:    rules.RuleQuantityRequired,
			Message: "请输入点价数量",
		})
	} else {
		if in.Quantity.GreaterThan(l.AvailableQuantity) {
			errs = append(errs, rules.ValidationError{
				Field: "quantity",
				Rule:  rules.RuleQuantityExceedsAvailable,
				Message: fmt.Sprintf("点价数量不能超过可用数量 %s 吨",
					l.AvailableQuantity.String()),
			})
		}
		if l.MinTradeUnit.IsPositive() && !in.Quantity.Mod(l.MinTradeUnit).IsZero() {
			errs = append(errs, rules.ValidationError{
				Field: "quantity",
				Rule:  rules.RuleQuantityNotMultiple,
				Message: fmt.Sprintf("点价数量必须是最小交易单位 %s 吨的整数倍",
					l.MinTradeUnit.String()),
			})
		}
	}

	if in.Price.IsZero() {
		errs = append(errs, rules.ValidationError{
			Field:   "price",
			Rule:    rules.RulePriceRequired,
			Message: "请输入点价价格",
		})
	} else if in.Price.LessThan(l.PriceLow) || in.Price.GreaterThan(l.PriceUp) {
		errs = append(errs, rules.ValidationError{
			Field: "price",
			Rule:  rules.RulePriceOutOfRange,
			Message: fmt.Sprintf("点价价格必须在 %s 至 %s 元/吨之间",
				l.PriceLow.String(), l.PriceUp.String()),
		})
	}

	return errs
}

// Repository 订单仓储
type Repository interface {
	Save(ctx context.Context, order *Order) error
	GetByID(ctx context.Context, id uint) (*Order, error)
	GetByNumber(ctx context.Context, orderNo string) (*Order, error)
	List(ctx context.Context, req pagination.Request) ([]*Order, int64, error)
	ListByListing(ctx context.Context, listingID uint) ([]*Order, error)
}
