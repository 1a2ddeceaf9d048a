// Package mysql 仓库仓储 MySQL 实现
package mysql

import (
	"context"
	"errors"

	"github.com/wyfcoding/pkg/contextx"
	"gorm.io/gorm"

	"github.com/wyfcoding/basistrading/internal/warehouse/domain"
	"github.com/wyfcoding/basistrading/pkg/db"
	"github.com/wyfcoding/basistrading/pkg/pagination"
)

type warehouseRepository struct {
	db *db.DB
}

// NewWarehouseRepository 创建仓库仓储
func NewWarehouseRepository(database *db.DB) domain.Repository {
	return &warehouseRepository{db: database}
}

func (r *warehouseRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := contextx.GetTx(ctx).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return r.db.DB.WithContext(ctx)
}

func (r *warehouseRepository) Save(ctx context.Context, warehouse *domain.Warehouse) error {
	return r.getDB(ctx).Save(warehouse).Error
}

func (r *warehouseRepository) GetByID(ctx context.Context, id uint) (*domain.Warehouse, error) {
	var warehouse domain.Warehouse
	err := r.getDB(ctx).First(&warehouse, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrWarehouseNotFound
	}
	if err != nil {
		return nil, err
	}
	return &warehouse, nil
}

func (r *warehouseRepository) GetByCode(ctx context.Context, code string) (*domain.Warehouse, error) {
	var warehouse domain.Warehouse
	err := r.getDB(ctx).Where("code = ?", code).First(&warehouse).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrWarehouseNotFound
	}
	if err != nil {
		return nil, err
	}
	return &warehouse, nil
}

// 可排序字段与数据库列的映射，排序参数不直接进 SQL
var warehouseSortColumns = map[string]string{
	"id":           "id",
	"createdAt":    "created_at",
	"capacity":     "capacity",
	"currentStock": "current_stock",
}

func (r *warehouseRepository) List(ctx context.Context, req pagination.Request) ([]*domain.Warehouse, int64, error) {
	query := r.getDB(ctx).Model(&domain.Warehouse{})
	if req.Type != "" {
		if typ, ok := domain.ParseType(req.Type); ok {
			query = query.Where("type = ?", typ)
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var warehouses []*domain.Warehouse
	if err := query.Scopes(pagination.Scope(req, warehouseSortColumns)).Find(&warehouses).Error; err != nil {
		return nil, 0, err
	}
	return warehouses, total, nil
}
