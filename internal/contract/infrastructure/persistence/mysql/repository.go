// Package mysql 合同仓储 MySQL 实现
package mysql

import (
	"context"
	"errors"

	"github.com/wyfcoding/pkg/contextx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wyfcoding/basistrading/internal/contract/domain"
	"github.com/wyfcoding/basistrading/pkg/db"
	"github.com/wyfcoding/basistrading/pkg/pagination"
)

type contractRepository struct {
	db *db.DB
}

// NewContractRepository 创建合同仓储
func NewContractRepository(database *db.DB) domain.Repository {
	return &contractRepository{db: database}
}

func (r *contractRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := contextx.GetTx(ctx).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return r.db.DB.WithContext(ctx)
}

func (r *contractRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.db.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(contextx.WithTx(ctx, tx))
	})
}

func (r *contractRepository) Save(ctx context.Context, contract *domain.Contract) error {
	return r.getDB(ctx).Save(contract).Error
}

func (r *contractRepository) GetByID(ctx context.Context, id uint) (*domain.Contract, error) {
	var contract domain.Contract
	err := r.getDB(ctx).First(&contract, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrContractNotFound
	}
	if err != nil {
		return nil, err
	}
	return &contract, nil
}

func (r *contractRepository) GetByIDForUpdate(ctx context.Context, id uint) (*domain.Contract, error) {
	var contract domain.Contract
	err := r.getDB(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&contract, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrContractNotFound
	}
	if err != nil {
		return nil, err
	}
	return &contract, nil
}

func (r *contractRepository) GetByNumber(ctx context.Context, contractNo string) (*domain.Contract, error) {
	var contract domain.Contract
	err := r.getDB(ctx).Where("contract_no = ?", contractNo).First(&contract).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrContractNotFound
	}
	if err != nil {
		return nil, err
	}
	return &contract, nil
}

// 可排序字段与数据库列的映射，排序参数不直接进 SQL
var contractSortColumns = map[string]string{
	"id":           "id",
	"createdAt":    "created_at",
	"signedAt":     "signed_at",
	"deliveryDate": "delivery_date",
	"quantity":     "quantity",
	"price":        "price",
}

func (r *contractRepository) List(ctx context.Context, req pagination.Request) ([]*domain.Contract, int64, error) {
	query := r.getDB(ctx).Model(&domain.Contract{})
	if req.Type != "" {
		if status, ok := domain.ParseDeliveryStatus(req.Type); ok {
			query = query.Where("delivery_status = ?", status)
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var contracts []*domain.Contract
	if err := query.Scopes(pagination.Scope(req, contractSortColumns)).Find(&contracts).Error; err != nil {
		return nil, 0, err
	}
	return contracts, total, nil
}

func (r *contractRepository) ListOpen(ctx context.Context) ([]*domain.Contract, error) {
	var contracts []*domain.Contract
	err := r.getDB(ctx).
		Where("state = ?", domain.StateEffective).
		Where("delivery_status NOT IN ?", []domain.DeliveryStatus{
			domain.DeliveryCompleted, domain.DeliveryCancelled,
		}).
		Find(&contracts).Error
	if err != nil {
		return nil, err
	}
	return contracts, nil
}

type paymentRepository struct {
	db *db.DB
}

// NewPaymentRepository 创建缴款流水仓储
func NewPaymentRepository(database *db.DB) domain.PaymentRepository {
	return &paymentRepository{db: database}
}

func (r *paymentRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := contextx.GetTx(ctx).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return r.db.DB.WithContext(ctx)
}

func (r *paymentRepository) Save(ctx context.Context, payment *domain.MarginPayment) error {
	return r.getDB(ctx).Save(payment).Error
}

func (r *paymentRepository) ListByContract(ctx context.Context, contractNo string) ([]*domain.MarginPayment, error) {
	var payments []*domain.MarginPayment
	err := r.getDB(ctx).
		Where("contract_no = ?", contractNo).
		Order("paid_at DESC").
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}
