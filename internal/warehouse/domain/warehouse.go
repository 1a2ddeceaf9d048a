// Package domain 交收仓库领域模型
package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/wyfcoding/basistrading/pkg/pagination"
)

var (
	// ErrWarehouseNotFound 仓库不存在
	ErrWarehouseNotFound = errors.New("warehouse not found")
	// ErrWarehouseInactive 仓库已停用
	ErrWarehouseInactive = errors.New("warehouse is inactive")
	// ErrStockOutOfBounds 库存必须落在 [0, 容量] 区间
	ErrStockOutOfBounds = errors.New("stock must stay within [0, capacity]")
	// ErrInvalidCapacity 容量必须为正数
	ErrInvalidCapacity = errors.New("capacity must be positive")
	// ErrDuplicateCode 仓库编码已存在
	ErrDuplicateCode = errors.New("warehouse code already exists")
)

// Status 仓库状态
type Status string

const (
	StatusActive   Status = "ACTIVE"   // 启用
	StatusInactive Status = "INACTIVE" // 停用
)

// Label 中文展示名
func (s Status) Label() string {
	switch s {
	case StatusActive:
		return "启用"
	case StatusInactive:
		return "停用"
	default:
		return string(s)
	}
}

// Color 前端标签颜色
func (s Status) Color() string {
	if s == StatusActive {
		return "success"
	}
	return "default"
}

// Type 仓库类型
type Type string

const (
	TypeStandard  Type = "STANDARD"  // 标准仓
	TypeBonded    Type = "BONDED"    // 保税仓
	TypeTemporary Type = "TEMPORARY" // 临时仓
)

// Label 中文展示名
func (t Type) Label() string {
	switch t {
	case TypeStandard:
		return "标准仓"
	case TypeBonded:
		return "保税仓"
	case TypeTemporary:
		return "临时仓"
	default:
		return string(t)
	}
}

// ParseType 兼容历史中文类型值
func ParseType(s string) (Type, bool) {
	switch s {
	case string(TypeStandard), "标准仓":
		return TypeStandard, true
	case string(TypeBonded), "保税仓":
		return TypeBonded, true
	case string(TypeTemporary), "临时仓":
		return TypeTemporary, true
	default:
		return "", false
	}
}

// Warehouse 交收仓库聚合根
type Warehouse struct {
	gorm.Model
	Code     string `gorm:"column:code;type:varchar(32);uniqueIndex;not null"`
	Name     string `gorm:"column:name;type:varchar(64);not null"`
	Location string `gorm:"column:location;type:varchar(128)"`
	Contact  string `gorm:"column:contact;type:varchar(64)"`
	Phone    string `gorm:"column:phone;type:varchar(32)"`

	// Capacity 库容（吨），CurrentStock 始终落在 [0, Capacity]
	Capacity     decimal.Decimal `gorm:"column:capacity;type:decimal(20,2);not null"`
	CurrentStock decimal.Decimal `gorm:"column:current_stock;type:decimal(20,2);not null"`

	Status Status `gorm:"column:status;type:varchar(16);index;not null"`
	Type   Type   `gorm:"column:type;type:varchar(16);not null"`
	Remark string `gorm:"column:remark;type:varchar(255)"`
}

// TableName 表名
func (Warehouse) TableName() string {
	return "delivery_warehouses"
}

// NewWarehouse 建仓，初始库存为零
func NewWarehouse(code, name, location string, capacity decimal.Decimal, typ Type) (*Warehouse, error) {
	if !capacity.IsPositive() {
		return nil, ErrInvalidCapacity
	}
	return &Warehouse{
		Code:         code,
		Name:         name,
		Location:     location,
		Capacity:     capacity,
		CurrentStock: decimal.Zero,
		Status:       StatusActive,
		Type:         typ,
	}, nil
}

// AdjustStock 调整库存，delta 可正可负，越界报错
func (w *Warehouse) AdjustStock(delta decimal.Decimal) error {
	if w.Status != StatusActive {
		return ErrWarehouseInactive
	}
	next := w.CurrentStock.Add(delta)
	if next.IsNegative() || next.GreaterThan(w.Capacity) {
		return ErrStockOutOfBounds
	}
	w.CurrentStock = next
	return nil
}

// Resize 调整库容，不得低于当前库存
func (w *Warehouse) Resize(capacity decimal.Decimal) error {
	if !capacity.IsPositive() {
		return ErrInvalidCapacity
	}
	if capacity.LessThan(w.CurrentStock) {
		return ErrStockOutOfBounds
	}
	w.Capacity = capacity
	return nil
}

// Deactivate 停用
func (w *Warehouse) Deactivate() {
	w.Status = StatusInactive
}

// Activate 启用
func (w *Warehouse) Activate() {
	w.Status = StatusActive
}

// Utilization 库容利用率，容量为零时返回零
func (w *Warehouse) Utilization() decimal.Decimal {
	if w.Capacity.IsZero() {
		return decimal.Zero
	}
	return w.CurrentStock.Div(w.Capacity)
}

// Repository 仓库仓储
type Repository interface {
	Save(ctx context.Context, warehouse *Warehouse) error
	GetByID(ctx context.Context, id uint) (*Warehouse, error)
	GetByCode(ctx context.Context, code string) (*Warehouse, error)
	List(ctx context.Context, req pagination.Request) ([]*Warehouse, int64, error)
}
