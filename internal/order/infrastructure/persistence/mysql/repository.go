// Package mysql 订单仓储 MySQL 实现
package mysql

import (
	"context"
	"errors"

	"github.com/wyfcoding/pkg/contextx"
	"gorm.io/gorm"

	"github.com/wyfcoding/basistrading/internal/order/domain"
	"github.com/wyfcoding/basistrading/pkg/db"
	"github.com/wyfcoding/basistrading/pkg/pagination"
)

type orderRepository struct {
	db *db.DB
}

// NewOrderRepository 创建订单仓储
func NewOrderRepository(database *db.DB) domain.Repository {
	return &orderRepository{db: database}
}

func (r *orderRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := contextx.GetTx(ctx).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return r.db.DB.WithContext(ctx)
}

func (r *orderRepository) Save(ctx context.Context, order *domain.Order) error {
	return r.getDB(ctx).Save(order).Error
}

func (r *orderRepository) GetByID(ctx context.Context, id uint) (*domain.Order, error) {
	var order domain.Order
	err := r.getDB(ctx).First(&order, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) GetByNumber(ctx context.Context, orderNo string) (*domain.Order, error) {
	var order domain.Order
	err := r.getDB(ctx).Where("order_no = ?", orderNo).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// 可排序字段与数据库列的映射，排序参数不直接进 SQL
var orderSortColumns = map[string]string{
	"id":          "id",
	"createdAt":   "created_at",
	"quotedAt":    "quoted_at",
	"quantity":    "quantity",
	"price":       "price",
	"totalAmount": "total_amount",
}

func (r *orderRepository) List(ctx context.Context, req pagination.Request) ([]*domain.Order, int64, error) {
	query := r.getDB(ctx).Model(&domain.Order{})
	if req.Type != "" {
		if status, ok := domain.ParseStatus(req.Type); ok {
			query = query.Where("status = ?", status)
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []*domain.Order
	if err := query.Scopes(pagination.Scope(req, orderSortColumns)).Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *orderRepository) ListByListing(ctx context.Context, listingID uint) ([]*domain.Order, error) {
	var orders []*domain.Order
	err := r.getDB(ctx).
		Where("listing_id = ?", listingID).
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}
