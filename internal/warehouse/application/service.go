// Package application 仓库应用服务
package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/basistrading/internal/warehouse/domain"
	"github.com/wyfcoding/basistrading/pkg/pagination"
)

// Service 仓库应用服务
type Service struct {
	repo   domain.Repository
	logger *slog.Logger
}

// NewService 创建仓库服务
func NewService(repo domain.Repository, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.With("module", "warehouse_service"),
	}
}

// CreateCmd 建仓命令
type CreateCmd struct {
	Code     string
	Name     string
	Location string
	Contact  string
	Phone    string
	Capacity decimal.Decimal
	Type     domain.Type
	Remark   string
}

// Create 建仓，仓库编码全局唯一
func (s *Service) Create(ctx context.Context, cmd CreateCmd) (*domain.Warehouse, error) {
	if _, err := s.repo.GetByCode(ctx, cmd.Code); err == nil {
		return nil, domain.ErrDuplicateCode
	} else if !errors.Is(err, domain.ErrWarehouseNotFound) {
		return nil, err
	}

	warehouse, err := domain.NewWarehouse(cmd.Code, cmd.Name, cmd.Location, cmd.Capacity, cmd.Type)
	if err != nil {
		return nil, err
	}
	warehouse.Contact = cmd.Contact
	warehouse.Phone = cmd.Phone
	warehouse.Remark = cmd.Remark

	if err := s.repo.Save(ctx, warehouse); err != nil {
		return nil, err
	}
	s.logger.Info("warehouse created", "code", warehouse.Code, "capacity", warehouse.Capacity.String())
	return warehouse, nil
}

// AdjustStock 出入库调整
func (s *Service) AdjustStock(ctx context.Context, id uint, delta decimal.Decimal) (*domain.Warehouse, error) {
	warehouse, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := warehouse.AdjustStock(delta); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, warehouse); err != nil {
		return nil, err
	}
	return warehouse, nil
}

// Resize 调整库容
func (s *Service) Resize(ctx context.Context, id uint, capacity decimal.Decimal) (*domain.Warehouse, error) {
	warehouse, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := warehouse.Resize(capacity); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, warehouse); err != nil {
		return nil, err
	}
	return warehouse, nil
}

// SetActive 启停仓库
func (s *Service) SetActive(ctx context.Context, id uint, active bool) (*domain.Warehouse, error) {
	warehouse, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if active {
		warehouse.Activate()
	} else {
		warehouse.Deactivate()
	}
	if err := s.repo.Save(ctx, warehouse); err != nil {
		return nil, err
	}
	return warehouse, nil
}

// Get 查询仓库
func (s *Service) Get(ctx context.Context, id uint) (*domain.Warehouse, error) {
	return s.repo.GetByID(ctx, id)
}

// List 分页查询仓库
func (s *Service) List(ctx context.Context, req pagination.Request) (*pagination.Page[*domain.Warehouse], error) {
	req.Normalize()
	warehouses, total, err := s.repo.List(ctx, req)
	if err != nil {
		return nil, err
	}
	return pagination.NewPage(warehouses, total, req), nil
}
