// Package domain 交收合同领域模型。
// 合同自点价成交生成，经保证金、尾款、交收确认逐级推进，
// 保证金随行情逐日盯市，不足时触发追缴。
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/wyfcoding/basistrading/internal/rules"
	"github.com/wyfcoding/basistrading/pkg/pagination"
)

var (
	// ErrContractNotFound 合同不存在
	ErrContractNotFound = errors.New("contract not found")
	// ErrContractNotEffective 合同已终止
	ErrContractNotEffective = errors.New("contract is not effective")
	// ErrContractCompleted 合同已完成交收
	ErrContractCompleted = errors.New("contract delivery already completed")
	// ErrInvalidPayment 缴款金额必须为正数
	ErrInvalidPayment = errors.New("payment amount must be positive")
	// ErrBalanceNotSettled 尾款未结清，不能确认交收
	ErrBalanceNotSettled = errors.New("balance not settled, delivery cannot be confirmed")
	// ErrInvalidContract 合同数量与价格必须为正数
	ErrInvalidContract = errors.New("contract quantity and price must be positive")
)

// State 合同状态
type State string

const (
	StateEffective  State = "EFFECTIVE"  // 生效中
	StateTerminated State = "TERMINATED" // 已终止
)

// Label 中文展示名
func (s State) Label() string {
	switch s {
	case StateEffective:
		return "生效中"
	case StateTerminated:
		return "已终止"
	default:
		return string(s)
	}
}

// Color 前端标签颜色
func (s State) Color() string {
	switch s {
	case StateEffective:
		return "success"
	case StateTerminated:
		return "default"
	default:
		return "default"
	}
}

// DeliveryStatus 交收阶段
type DeliveryStatus string

const (
	DeliveryPendingMargin  DeliveryStatus = "PENDING_MARGIN"  // 待缴保证金
	DeliveryPendingBalance DeliveryStatus = "PENDING_BALANCE" // 待缴尾款
	DeliveryPendingReceipt DeliveryStatus = "PENDING_RECEIPT" // 待交收
	DeliveryCompleted      DeliveryStatus = "COMPLETED"       // 已完成
	DeliveryCancelled      DeliveryStatus = "CANCELLED"       // 已取消
)

// Label 中文展示名
func (s DeliveryStatus) Label() string {
	switch s {
	case DeliveryPendingMargin:
		return "待缴保证金"
	case DeliveryPendingBalance:
		return "待缴尾款"
	case DeliveryPendingReceipt:
		return "待交收"
	case DeliveryCompleted:
		return "已完成"
	case DeliveryCancelled:
		return "已取消"
	default:
		return string(s)
	}
}

// Color 前端标签颜色
func (s DeliveryStatus) Color() string {
	switch s {
	case DeliveryPendingMargin:
		return "warning"
	case DeliveryPendingBalance:
		return "processing"
	case DeliveryPendingReceipt:
		return "cyan"
	case DeliveryCompleted:
		return "success"
	case DeliveryCancelled:
		return "default"
	default:
		return "default"
	}
}

// ParseDeliveryStatus 兼容历史中文状态值
func ParseDeliveryStatus(s string) (DeliveryStatus, bool) {
	switch s {
	case string(DeliveryPendingMargin), "待缴保证金":
		return DeliveryPendingMargin, true
	case string(DeliveryPendingBalance), "待缴尾款":
		return DeliveryPendingBalance, true
	case string(DeliveryPendingReceipt), "待交收":
		return DeliveryPendingReceipt, true
	case string(DeliveryCompleted), "已完成":
		return DeliveryCompleted, true
	case string(DeliveryCancelled), "已取消":
		return DeliveryCancelled, true
	default:
		return "", false
	}
}

// PaymentType 缴款类型
type PaymentType string

const (
	PaymentMargin  PaymentType = "MARGIN"  // 保证金
	PaymentBalance PaymentType = "BALANCE" // 尾款
)

// Contract 交收合同聚合根
type Contract struct {
	gorm.Model
	ContractNo string `gorm:"column:contract_no;type:varchar(64);uniqueIndex;not null"`
	OrderNo    string `gorm:"column:order_no;type:varchar(64);index;not null"`
	ListingNo  string `gorm:"column:listing_no;type:varchar(64);index;not null"`

	ClientID   string `gorm:"column:client_id;type:varchar(64);index;not null"`
	ClientName string `gorm:"column:client_name;type:varchar(64)"`

	ProductType string `gorm:"column:product_type;type:varchar(32);not null"`
	RefContract string `gorm:"column:ref_contract;type:varchar(16);not null"`

	Quantity decimal.Decimal `gorm:"column:quantity;type:decimal(20,2);not null"`
	Price    decimal.Decimal `gorm:"column:price;type:decimal(20,2);not null"`
	// MarginRate 合同约定保证金率，为零时按全局比例计收
	MarginRate decimal.Decimal `gorm:"column:margin_rate;type:decimal(5,4)"`

	// MarginPaid 已缴保证金，PaidAmount 含保证金与尾款的累计缴款
	MarginPaid decimal.Decimal `gorm:"column:margin_paid;type:decimal(20,2);not null"`
	PaidAmount decimal.Decimal `gorm:"column:paid_amount;type:decimal(20,2);not null"`

	DeliveryDate   time.Time      `gorm:"column:delivery_date;not null"`
	DeliveryMethod string         `gorm:"column:delivery_method;type:varchar(16)"`
	WarehouseCode  string         `gorm:"column:warehouse_code;type:varchar(32)"`
	State          State          `gorm:"column:state;type:varchar(16);index;not null"`
	DeliveryStatus DeliveryStatus `gorm:"column:delivery_status;type:varchar(16);index;not null"`
	DeliveredAt    *time.Time     `gorm:"column:delivered_at"`
	SignedAt       time.Time      `gorm:"column:signed_at;not null"`
	Remark         string         `gorm:"column:remark;type:varchar(255)"`
}

// TableName 表名
func (Contract) TableName() string {
	return "delivery_contracts"
}

// NewContract 创建生效合同
func NewContract(contractNo string, quantity, price decimal.Decimal, signedAt time.Time) (*Contract, error) {
	if !quantity.IsPositive() || !price.IsPositive() {
		return nil, ErrInvalidContract
	}
	return &Contract{
		ContractNo:     contractNo,
		Quantity:       quantity,
		Price:          price,
		MarginPaid:     decimal.Zero,
		PaidAmount:     decimal.Zero,
		State:          StateEffective,
		DeliveryStatus: DeliveryPendingMargin,
		SignedAt:       signedAt,
	}, nil
}

// TotalAmount 合同总货值
func (c *Contract) TotalAmount() decimal.Decimal {
	return c.Quantity.Mul(c.Price)
}

// RequiredMargin 应缴保证金，按合同约定保证金率计收，
// 未约定时落到全局比例。
func (c *Contract) RequiredMargin(defaultRatio decimal.Decimal) decimal.Decimal {
	rate := c.MarginRate
	if rate.IsZero() {
		rate = defaultRatio
	}
	return c.TotalAmount().Mul(rate)
}

// RemainderDue 剩余应付款，超缴时为负数，不视为错误。
func (c *Contract) RemainderDue() decimal.Decimal {
	return c.TotalAmount().Sub(c.PaidAmount)
}

// MarginCallResult 保证金追缴结果
type MarginCallResult struct {
	Required bool            `json:"required"`
	Amount   decimal.Decimal `json:"amount"`
	// RequiredMargin 按现价重算的应缴保证金
	RequiredMargin decimal.Decimal `json:"required_margin"`
	CurrentPrice   decimal.Decimal `json:"current_price"`
}

// CheckMarginCall 盯市保证金检查。
// 以现价而非合同价重算应缴保证金，已缴不足则触发追缴，
// 追缴金额下限为零。
func (c *Contract) CheckMarginCall(currentPrice, ratio decimal.Decimal) MarginCallResult {
	required := c.Quantity.Mul(currentPrice).Mul(ratio)
	shortfall := required.Sub(c.MarginPaid)
	if shortfall.IsNegative() {
		shortfall = decimal.Zero
	}
	return MarginCallResult{
		Required:       c.MarginPaid.LessThan(required),
		Amount:         shortfall,
		RequiredMargin: required,
		CurrentPrice:   currentPrice,
	}
}

// Stage 按累计缴款推导交收阶段。
// 已取消与已确认交收为终态，其余按缴款进度分级。
func (c *Contract) Stage() DeliveryStatus {
	if c.DeliveryStatus == DeliveryCancelled {
		return DeliveryCancelled
	}
	if c.DeliveredAt != nil {
		return DeliveryCompleted
	}
	switch {
	case c.PaidAmount.IsZero():
		return DeliveryPendingMargin
	case c.PaidAmount.LessThan(c.TotalAmount()):
		return DeliveryPendingBalance
	default:
		return DeliveryPendingReceipt
	}
}

// PayMargin 缴纳保证金
func (c *Contract) PayMargin(amount decimal.Decimal) error {
	if err := c.payable(amount); err != nil {
		return err
	}
	c.MarginPaid = c.MarginPaid.Add(amount)
	c.PaidAmount = c.PaidAmount.Add(amount)
	c.DeliveryStatus = c.Stage()
	return nil
}

// PayBalance 缴纳尾款
func (c *Contract) PayBalance(amount decimal.Decimal) error {
	if err := c.payable(amount); err != nil {
		return err
	}
	c.PaidAmount = c.PaidAmount.Add(amount)
	c.DeliveryStatus = c.Stage()
	return nil
}

func (c *Contract) payable(amount decimal.Decimal) error {
	if c.State != StateEffective {
		return ErrContractNotEffective
	}
	if c.DeliveryStatus == DeliveryCompleted || c.DeliveryStatus == DeliveryCancelled {
		return ErrContractCompleted
	}
	if !amount.IsPositive() {
		return ErrInvalidPayment
	}
	return nil
}

// ConfirmDelivery 确认交收，要求货款两讫
func (c *Contract) ConfirmDelivery(at time.Time) error {
	if c.State != StateEffective {
		return ErrContractNotEffective
	}
	if c.DeliveryStatus == DeliveryCompleted || c.DeliveryStatus == DeliveryCancelled {
		return ErrContractCompleted
	}
	if c.PaidAmount.LessThan(c.TotalAmount()) {
		return ErrBalanceNotSettled
	}
	c.DeliveredAt = &at
	c.DeliveryStatus = DeliveryCompleted
	return nil
}

// RequestEarlyDelivery 申请提前交收，提前天数限于 [1, max]
func (c *Contract) RequestEarlyDelivery(days int, maxDays int) error {
	if err := c.adjustable(days, maxDays, "early_delivery_days"); err != nil {
		return err
	}
	c.DeliveryDate = c.DeliveryDate.AddDate(0, 0, -days)
	return nil
}

// RequestDelayedDelivery 申请延期交收，延期天数限于 [1, max]
func (c *Contract) RequestDelayedDelivery(days int, maxDays int) error {
	if err := c.adjustable(days, maxDays, "delay_delivery_days"); err != nil {
		return err
	}
	c.DeliveryDate = c.DeliveryDate.AddDate(0, 0, days)
	return nil
}

func (c *Contract) adjustable(days, maxDays int, what string) error {
	if c.State != StateEffective {
		return ErrContractNotEffective
	}
	if c.DeliveryStatus == DeliveryCompleted || c.DeliveryStatus == DeliveryCancelled {
		return ErrContractCompleted
	}
	if days < 1 || days > maxDays {
		return &rules.OutOfRangeError{What: what, Min: 1, Max: maxDays, Got: days}
	}
	return nil
}

// Terminate 终止合同，关闭交收流程
func (c *Contract) Terminate() error {
	if c.State != StateEffective {
		return ErrContractNotEffective
	}
	if c.DeliveryStatus == DeliveryCompleted {
		return ErrContractCompleted
	}
	c.State = StateTerminated
	c.DeliveryStatus = DeliveryCancelled
	return nil
}

// MarginPayment 缴款流水
type MarginPayment struct {
	gorm.Model
	PaymentNo  string          `gorm:"column:payment_no;type:varchar(64);uniqueIndex;not null"`
	ContractNo string          `gorm:"column:contract_no;type:varchar(64);index;not null"`
	ClientID   string          `gorm:"column:client_id;type:varchar(64);index"`
	Type       PaymentType     `gorm:"column:type;type:varchar(16);not null"`
	Amount     decimal.Decimal `gorm:"column:amount;type:decimal(20,2);not null"`
	PaidAt     time.Time       `gorm:"column:paid_at;not null"`
	Remark     string          `gorm:"column:remark;type:varchar(255)"`
}

// TableName 表名
func (MarginPayment) TableName() string {
	return "margin_payments"
}

// Repository 合同仓储
type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	Save(ctx context.Context, contract *Contract) error
	GetByID(ctx context.Context, id uint) (*Contract, error)
	GetByIDForUpdate(ctx context.Context, id uint) (*Contract, error)
	GetByNumber(ctx context.Context, contractNo string) (*Contract, error)
	List(ctx context.Context, req pagination.Request) ([]*Contract, int64, error)
	// ListOpen 返回生效且未到终态的合同，供盯市巡检使用
	ListOpen(ctx context.Context) ([]*Contract, error)
}

// PaymentRepository 缴款流水仓储
type PaymentRepository interface {
	Save(ctx context.Context, payment *MarginPayment) error
	ListByContract(ctx context.Context, contractNo string) ([]*MarginPayment, error)
}
