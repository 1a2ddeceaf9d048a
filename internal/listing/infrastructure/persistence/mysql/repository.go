// Package mysql 挂牌仓储 MySQL 实现
package mysql

import (
	"context"
	"errors"

	"github.com/wyfcoding/pkg/contextx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wyfcoding/basistrading/internal/listing/domain"
	"github.com/wyfcoding/basistrading/pkg/db"
	"github.com/wyfcoding/basistrading/pkg/pagination"
)

type listingRepository struct {
	db *db.DB
}

// NewListingRepository 创建挂牌仓储
func NewListingRepository(database *db.DB) domain.Repository {
	return &listingRepository{db: database}
}

func (r *listingRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := contextx.GetTx(ctx).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return r.db.DB.WithContext(ctx)
}

func (r *listingRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.db.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(contextx.WithTx(ctx, tx))
	})
}

func (r *listingRepository) Save(ctx context.Context, listing *domain.Listing) error {
	return r.getDB(ctx).Save(listing).Error
}

func (r *listingRepository) GetByID(ctx context.Context, id uint) (*domain.Listing, error) {
	var listing domain.Listing
	err := r.getDB(ctx).First(&listing, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrListingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

func (r *listingRepository) GetByIDForUpdate(ctx context.Context, id uint) (*domain.Listing, error) {
	var listing domain.Listing
	err := r.getDB(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&listing, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrListingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

func (r *listingRepository) GetByNumber(ctx context.Context, listingNo string) (*domain.Listing, error) {
	var listing domain.Listing
	err := r.getDB(ctx).Where("listing_no = ?", listingNo).First(&listing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrListingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

// 可排序字段与数据库列的映射，排序参数不直接进 SQL
var listingSortColumns = map[string]string{
	"id":           "id",
	"createdAt":    "created_at",
	"quantity":     "quantity",
	"basis":        "basis",
	"deliveryDate": "delivery_date",
	"hits":         "hits",
}

func (r *listingRepository) List(ctx context.Context, req pagination.Request) ([]*domain.Listing, int64, error) {
	query := r.getDB(ctx).Model(&domain.Listing{})
	if req.Type != "" {
		query = query.Where("client_type = ?", req.Type)
	}
	if req.PriceState != "" {
		if status, ok := domain.ParsePricingStatus(req.PriceState); ok {
			query = query.Where("pricing_status = ?", status)
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var listings []*domain.Listing
	if err := query.Scopes(pagination.Scope(req, listingSortColumns)).Find(&listings).Error; err != nil {
		return nil, 0, err
	}
	return listings, total, nil
}

type delistingRepository struct {
	db *db.DB
}

// NewDelistingRepository 创建摘牌记录仓储
func NewDelistingRepository(database *db.DB) domain.DelistingRepository {
	return &delistingRepository{db: database}
}

func (r *delistingRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := contextx.GetTx(ctx).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return r.db.DB.WithContext(ctx)
}

func (r *delistingRepository) Save(ctx context.Context, record *domain.DelistingRecord) error {
	return r.getDB(ctx).Save(record).Error
}

var delistingSortColumns = map[string]string{
	"id":        "id",
	"createdAt": "created_at",
	"weight":    "weight",
}

func (r *delistingRepository) List(ctx context.Context, req pagination.Request) ([]*domain.DelistingRecord, int64, error) {
	query := r.getDB(ctx).Model(&domain.DelistingRecord{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var records []*domain.DelistingRecord
	if err := query.Scopes(pagination.Scope(req, delistingSortColumns)).Find(&records).Error; err != nil {
		return nil, 0, err
	}
	return records, total, nil
}
