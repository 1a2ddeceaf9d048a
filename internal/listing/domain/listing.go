// Package domain 挂牌领域模型
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/wyfcoding/basistrading/pkg/pagination"
)

var (
	ErrListingNotFound  = errors.New("listing not found")
	ErrListingNotActive = errors.New("listing is not active for pricing")
	ErrAlreadyDelisted  = errors.New("listing already delisted")
	ErrOversell         = errors.New("fill quantity exceeds available quantity")
	ErrInvalidFill      = errors.New("fill quantity must be positive")
	ErrListingImmutable = errors.New("only published listings can be updated")
)

// Status 挂牌状态
type Status string

const (
	StatusPublished Status = "PUBLISHED"
	StatusDelisted  Status = "DELISTED"
)

// Label 中文展示名（沿用交易台历史词表，仅作展示别名）
func (s Status) Label() string {
	switch s {
	case StatusPublished:
		return "已发布"
	case StatusDelisted:
		return "已下架"
	}
	return string(s)
}

// Color 表格标签颜色
func (s Status) Color() string {
	switch s {
	case StatusPublished:
		return "green"
	case StatusDelisted:
		return "default"
	}
	return "default"
}

// ParseStatus 解析状态，兼容历史中文词表
func ParseStatus(raw string) (Status, bool) {
	switch raw {
	case string(StatusPublished), "已发布":
		return StatusPublished, true
	case string(StatusDelisted), "已下架":
		return StatusDelisted, true
	}
	return "", false
}

// PricingStatus 点价状态
type PricingStatus string

const (
	PricingInProgress PricingStatus = "PRICING"
	PricingPartial    PricingStatus = "PARTIAL"
	PricingCompleted  PricingStatus = "COMPLETED"
	PricingFailed     PricingStatus = "FAILED"
)

// Label 中文展示名
func (s PricingStatus) Label() string {
	switch s {
	case PricingInProgress:
		return "点价中"
	case PricingPartial:
		return "部分完成"
	case PricingCompleted:
		return "点价完成"
	case PricingFailed:
		return "点价失败"
	}
	return string(s)
}

// Color 表格标签颜色
func (s PricingStatus) Color() string {
	switch s {
	case PricingInProgress:
		return "processing"
	case PricingPartial:
		return "orange"
	case PricingCompleted:
		return "green"
	case PricingFailed:
		return "red"
	}
	return "default"
}

// ParsePricingStatus 解析点价状态，兼容历史中文词表
func ParsePricingStatus(raw string) (PricingStatus, bool) {
	switch raw {
	case string(PricingInProgress), "点价中":
		return PricingInProgress, true
	case string(PricingPartial), "部分完成":
		return PricingPartial, true
	case string(PricingCompleted), "点价完成":
		return PricingCompleted, true
	case string(PricingFailed), "点价失败":
		return PricingFailed, true
	}
	return "", false
}

// DeliveryMethod 交收方式
type DeliveryMethod string

const (
	DeliverySpot      DeliveryMethod = "SPOT"
	DeliveryWarehouse DeliveryMethod = "WAREHOUSE"
)

// Label 中文展示名
func (m DeliveryMethod) Label() string {
	switch m {
	case DeliverySpot:
		return "现货交收"
	case DeliveryWarehouse:
		return "仓单交收"
	}
	return string(m)
}

// ClientType 客户类型
type ClientType string

const (
	ClientPublic  ClientType = "PUBLIC"
	ClientGroup   ClientType = "GROUP"
	ClientPrivate ClientType = "PRIVATE"
)

// Label 中文展示名
func (t ClientType) Label() string {
	switch t {
	case ClientPublic:
		return "公开客户"
	case ClientGroup:
		return "定向客户"
	case ClientPrivate:
		return "专属客户"
	}
	return string(t)
}

// Listing 挂牌聚合根。卖方以基差对参考期货合约发布一笔可点价的货量。
type Listing struct {
	gorm.Model
	ListingNo   string `gorm:"column:listing_no;type:varchar(64);uniqueIndex;not null"`
	ProductType string `gorm:"column:product_type;type:varchar(32);not null"`
	ProductName string `gorm:"column:product_name;type:varchar(64)"`
	// 钢种，如 Q235B
	Grade string `gorm:"column:grade;type:varchar(32)"`
	Spec  string `gorm:"column:spec;type:varchar(64)"`
	// 期货参考合约，如 HC2401
	RefContract string `gorm:"column:ref_contract;type:varchar(16);index;not null"`
	// 挂牌总量与剩余可点价量（吨）
	TotalQuantity     decimal.Decimal `gorm:"column:total_quantity;type:decimal(20,2);not null"`
	AvailableQuantity decimal.Decimal `gorm:"column:available_quantity;type:decimal(20,2);not null"`
	// 最小交易单位（吨）
	MinTradeUnit decimal.Decimal `gorm:"column:min_trade_unit;type:decimal(20,2);not null"`
	// 基差（元/吨）
	Basis decimal.Decimal `gorm:"column:basis;type:decimal(20,2);not null"`
	// 点价允许的价格区间
	PriceLow decimal.Decimal `gorm:"column:price_low;type:decimal(20,2);not null"`
	PriceUp  decimal.Decimal `gorm:"column:price_up;type:decimal(20,2);not null"`
	// 保证金比例，零值表示使用全局比例
	MarginLevel    decimal.Decimal `gorm:"column:margin_level;type:decimal(5,4)"`
	DeliveryDate   time.Time       `gorm:"column:delivery_date;not null"`
	DeliveryMethod DeliveryMethod  `gorm:"column:delivery_method;type:varchar(16);not null"`
	ClientType     ClientType      `gorm:"column:client_type;type:varchar(16);not null"`
	WarehouseCode  string          `gorm:"column:warehouse_code;type:varchar(32);index"`
	WarehouseName  string          `gorm:"column:warehouse_name;type:varchar(64)"`
	Remark         string          `gorm:"column:remark;type:varchar(255)"`
	Hits           int64           `gorm:"column:hits;default:0"`
	Status         Status          `gorm:"column:status;type:varchar(16);index;not null"`
	PricingStatus  PricingStatus   `gorm:"column:pricing_status;type:varchar(16);index;not null"`
}

func (Listing) TableName() string { return "listings" }

// Active 是否仍可被点价
func (l *Listing) Active() bool {
	return l.Status == StatusPublished &&
		(l.PricingStatus == PricingInProgress || l.PricingStatus == PricingPartial)
}

// Fill 按成交量扣减剩余量并推进点价状态。
// 调用方负责在同一事务内持有行锁，保证每笔成交仅扣减一次。
func (l *Listing) Fill(qty decimal.Decimal) error {
	if !qty.IsPositive() {
		return ErrInvalidFill
	}
	if !l.Active() {
		return ErrListingNotActive
	}
	if qty.GreaterThan(l.AvailableQuantity) {
		return ErrOversell
	}
	l.AvailableQuantity = l.AvailableQuantity.Sub(qty)
	if l.AvailableQuantity.IsZero() {
		l.PricingStatus = PricingCompleted
	} else {
		l.PricingStatus = PricingPartial
	}
	return nil
}

// Delist 下架。不可逆：已下架的挂牌不再接受任何点价。
func (l *Listing) Delist() error {
	if l.Status == StatusDelisted {
		return ErrAlreadyDelisted
	}
	l.Status = StatusDelisted
	// 点价未完成的挂牌随下架标记为点价失败，已完成的保持原状态
	if l.PricingStatus == PricingInProgress || l.PricingStatus == PricingPartial {
		l.PricingStatus = PricingFailed
	}
	return nil
}

// RecordHit 浏览计数
func (l *Listing) RecordHit() {
	l.Hits++
}

// DelistingRecordStatus 摘牌记录状态
type DelistingRecordStatus string

const (
	DelistingPending   DelistingRecordStatus = "PENDING"
	DelistingConfirmed DelistingRecordStatus = "CONFIRMED"
	DelistingCancelled DelistingRecordStatus = "CANCELLED"
)

// Label 中文展示名
func (s DelistingRecordStatus) Label() string {
	switch s {
	case DelistingPending:
		return "待确认"
	case DelistingConfirmed:
		return "已确认"
	case DelistingCancelled:
		return "已取消"
	}
	return string(s)
}

// DelistingRecord 摘牌记录
type DelistingRecord struct {
	gorm.Model
	ListingNo string                `gorm:"column:listing_no;type:varchar(64);index;not null"`
	Weight    decimal.Decimal       `gorm:"column:weight;type:decimal(20,2);not null"`
	Price     decimal.Decimal       `gorm:"column:price;type:decimal(20,2)"`
	Warehouse string                `gorm:"column:warehouse;type:varchar(64)"`
	Reason    string                `gorm:"column:reason;type:varchar(255)"`
	Status    DelistingRecordStatus `gorm:"column:status;type:varchar(16);default:'PENDING'"`
}

func (DelistingRecord) TableName() string { return "delisting_records" }

// Repository 挂牌仓储
type Repository interface {
	// WithTx 在事务中执行 fn，事务经 context 传递给同一连接上的其他仓储
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	Save(ctx context.Context, listing *Listing) error
	GetByID(ctx context.Context, id uint) (*Listing, error)
	// GetByIDForUpdate 加行锁读取，仅在事务上下文中使用
	GetByIDForUpdate(ctx context.Context, id uint) (*Listing, error)
	GetByNumber(ctx context.Context, listingNo string) (*Listing, error)
	List(ctx context.Context, req pagination.Request) ([]*Listing, int64, error)
}

// DelistingRepository 摘牌记录仓储
type DelistingRepository interface {
	Save(ctx context.Context, record *DelistingRecord) error
	List(ctx context.Context, req pagination.Request) ([]*DelistingRecord, int64, error)
}
