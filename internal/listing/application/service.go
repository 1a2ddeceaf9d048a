// Package application 挂牌应用服务
package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/pkg/idgen"

	"github.com/wyfcoding/basistrading/internal/listing/domain"
	"github.com/wyfcoding/basistrading/internal/rules"
	"github.com/wyfcoding/basistrading/pkg/metrics"
	"github.com/wyfcoding/basistrading/pkg/pagination"
)

// Service 挂牌应用服务
type Service struct {
	repo       domain.Repository
	delistRepo domain.DelistingRepository
	ruleSet    *rules.Rules
	publisher  domain.EventPublisher
	metrics    *metrics.Metrics
	logger     *slog.Logger
	now        func() time.Time
}

// NewService 创建挂牌服务
func NewService(
	repo domain.Repository,
	delistRepo domain.DelistingRepository,
	ruleSet *rules.Rules,
	publisher domain.EventPublisher,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Service {
	return &Service{
		repo:       repo,
		delistRepo: delistRepo,
		ruleSet:    ruleSet,
		publisher:  publisher,
		metrics:    m,
		logger:     logger.With("module", "listing_service"),
		now:        time.Now,
	}
}

// PublishCmd 发布挂牌命令
type PublishCmd struct {
	ProductType    string
	ProductName    string
	Grade          string
	Spec           string
	RefContract    string
	Quantity       decimal.Decimal
	MinTradeUnit   decimal.Decimal
	Basis          decimal.Decimal
	PriceLow       decimal.Decimal
	PriceUp        decimal.Decimal
	MarginLevel    decimal.Decimal
	DeliveryDate   time.Time
	DeliveryMethod domain.DeliveryMethod
	ClientType     domain.ClientType
	WarehouseCode  string
	WarehouseName  string
	Remark         string
}

// Publish 发布挂牌。校验全部通过后落库并发布领域事件。
func (s *Service) Publish(ctx context.Context, cmd PublishCmd) (*domain.Listing, error) {
	errs := domain.ValidatePublish(s.ruleSet, domain.PublishInput{
		Quantity:     cmd.Quantity,
		Basis:        cmd.Basis,
		PriceLow:     cmd.PriceLow,
		PriceUp:      cmd.PriceUp,
		DeliveryDate: cmd.DeliveryDate,
	}, s.now())
	errs = append(errs, s.validateUnit(cmd)...)
	if err := errs.OrNil(); err != nil {
		return nil, err
	}

	unit := cmd.MinTradeUnit
	if unit.IsZero() {
		unit = s.ruleSet.MinTradeUnit
	}

	listing := &domain.Listing{
		ListingNo:         fmt.Sprintf("GP%s", idgen.GenIDString()),
		ProductType:       cmd.ProductType,
		ProductName:       cmd.ProductName,
		Grade:             cmd.Grade,
		Spec:              cmd.Spec,
		RefContract:       cmd.RefContract,
		TotalQuantity:     cmd.Quantity,
		AvailableQuantity: cmd.Quantity,
		MinTradeUnit:      unit,
		Basis:             cmd.Basis,
		PriceLow:          cmd.PriceLow,
		PriceUp:           cmd.PriceUp,
		MarginLevel:       cmd.MarginLevel,
		DeliveryDate:      cmd.DeliveryDate,
		DeliveryMethod:    cmd.DeliveryMethod,
		ClientType:        cmd.ClientType,
		WarehouseCode:     cmd.WarehouseCode,
		WarehouseName:     cmd.WarehouseName,
		Remark:            cmd.Remark,
		Status:            domain.StatusPublished,
		PricingStatus:     domain.PricingInProgress,
	}

	if err := s.repo.Save(ctx, listing); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, domain.ListingPublishedEventType, listing.ListingNo, domain.ListingPublishedEvent{
		ListingNo:   listing.ListingNo,
		ProductType: listing.ProductType,
		RefContract: listing.RefContract,
		Quantity:    listing.TotalQuantity.String(),
		Basis:       listing.Basis.String(),
	})
	if s.metrics != nil {
		s.metrics.ListingsPublished.Inc()
	}
	s.logger.InfoContext(ctx, "listing published", "listing_no", listing.ListingNo)
	return listing, nil
}

// validateUnit 按品种校验最小交易单位是否在允许档位内
func (s *Service) validateUnit(cmd PublishCmd) rules.ValidationErrors {
	if cmd.MinTradeUnit.IsZero() {
		return nil
	}
	allowed := s.ruleSet.UnitsForProduct(cmd.ProductType)
	if len(allowed) == 0 {
		return nil
	}
	for _, u := range allowed {
		if cmd.MinTradeUnit.Equal(decimal.NewFromInt(u)) {
			return nil
		}
	}
	return rules.ValidationErrors{{
		Field:   "minTradeUnit",
		Rule:    rules.RuleUnitNotAllowed,
		Message: fmt.Sprintf("品种%s不支持该交易单位", cmd.ProductType),
	}}
}

// UpdateCmd 修改挂牌命令，仅允许修改价格区间、基差与备注
type UpdateCmd struct {
	Basis    decimal.Decimal
	PriceLow decimal.Decimal
	PriceUp  decimal.Decimal
	Remark   string
}

// Update 修改挂牌，仅限仍在发布中的挂牌
func (s *Service) Update(ctx context.Context, id uint, cmd UpdateCmd) (*domain.Listing, error) {
	listing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if listing.Status != domain.StatusPublished {
		return nil, domain.ErrListingImmutable
	}

	errs := domain.ValidatePublish(s.ruleSet, domain.PublishInput{
		Quantity:     listing.TotalQuantity,
		Basis:        cmd.Basis,
		PriceLow:     cmd.PriceLow,
		PriceUp:      cmd.PriceUp,
		DeliveryDate: listing.DeliveryDate,
	}, s.now())
	if err := errs.OrNil(); err != nil {
		return nil, err
	}

	listing.Basis = cmd.Basis
	listing.PriceLow = cmd.PriceLow
	listing.PriceUp = cmd.PriceUp
	listing.Remark = cmd.Remark
	if err := s.repo.Save(ctx, listing); err != nil {
		return nil, err
	}
	return listing, nil
}

// DelistCmd 摘牌命令
type DelistCmd struct {
	Reason string
}

// Delist 摘牌。下架挂牌并在同一事务内写入摘牌记录，不可逆。
func (s *Service) Delist(ctx context.Context, id uint, cmd DelistCmd) error {
	listing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := listing.Delist(); err != nil {
		return err
	}

	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Save(txCtx, listing); err != nil {
			return err
		}
		return s.delistRepo.Save(txCtx, &domain.DelistingRecord{
			ListingNo: listing.ListingNo,
			Weight:    listing.AvailableQuantity,
			Price:     listing.PriceUp,
			Warehouse: listing.WarehouseName,
			Reason:    cmd.Reason,
			Status:    domain.DelistingPending,
		})
	})
	if err != nil {
		return err
	}

	s.publishEvent(ctx, domain.ListingDelistedEventType, listing.ListingNo, domain.ListingDelistedEvent{
		ListingNo: listing.ListingNo,
		Reason:    cmd.Reason,
	})
	if s.metrics != nil {
		s.metrics.ListingsDelisted.Inc()
	}
	s.logger.InfoContext(ctx, "listing delisted", "listing_no", listing.ListingNo, "reason", cmd.Reason)
	return nil
}

// Get 查看挂牌详情并累加浏览量
func (s *Service) Get(ctx context.Context, id uint) (*domain.Listing, error) {
	listing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	listing.RecordHit()
	if err := s.repo.Save(ctx, listing); err != nil {
		// 浏览量丢失不影响详情展示
		s.logger.WarnContext(ctx, "failed to record listing hit", "listing_no", listing.ListingNo, "error", err)
	}
	return listing, nil
}

// List 分页查询挂牌
func (s *Service) List(ctx context.Context, req pagination.Request) (*pagination.Page[*domain.Listing], error) {
	req.Normalize()
	items, total, err := s.repo.List(ctx, req)
	if err != nil {
		return nil, err
	}
	return pagination.NewPage(items, total, req), nil
}

// ListDelistingRecords 分页查询摘牌记录
func (s *Service) ListDelistingRecords(ctx context.Context, req pagination.Request) (*pagination.Page[*domain.DelistingRecord], error) {
	req.Normalize()
	items, total, err := s.delistRepo.List(ctx, req)
	if err != nil {
		return nil, err
	}
	return pagination.NewPage(items, total, req), nil
}

func (s *Service) publishEvent(ctx context.Context, topic, key string, payload any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, topic, key, payload); err != nil {
		s.logger.WarnContext(ctx, "failed to publish event", "topic", topic, "key", key, "error", err)
	}
}
