// Package application 点价订单应用服务
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/pkg/idgen"

	contractdomain "github.com/wyfcoding/basistrading/internal/contract/domain"
	listingdomain "github.com/wyfcoding/basistrading/internal/listing/domain"
	"github.com/wyfcoding/basistrading/internal/order/domain"
	"github.com/wyfcoding/basistrading/internal/rules"
	"github.com/wyfcoding/basistrading/pkg/metrics"
	"github.com/wyfcoding/basistrading/pkg/pagination"
	"github.com/wyfcoding/basistrading/pkg/ratelimit"
)

// ErrRateLimited 点价请求过于频繁
var ErrRateLimited = errors.New("too many quote requests, retry later")

// quoteLimit 单客户点价限流规则
var quoteLimit = ratelimit.Limit{Rate: 10, Period: time.Second, Burst: 20}

// Service 点价订单应用服务
type Service struct {
	repo         domain.Repository
	listingRepo  listingdomain.Repository
	contractRepo contractdomain.Repository
	ruleSet      *rules.Rules
	limiter      ratelimit.Limiter
	publisher    domain.EventPublisher
	metrics      *metrics.Metrics
	logger       *slog.Logger
	now          func() time.Time
}

// NewService 创建订单服务。limiter 与 publisher 允许为空。
func NewService(
	repo domain.Repository,
	listingRepo listingdomain.Repository,
	contractRepo contractdomain.Repository,
	ruleSet *rules.Rules,
	limiter ratelimit.Limiter,
	publisher domain.EventPublisher,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Service {
	return &Service{
		repo:         repo,
		listingRepo:  listingRepo,
		contractRepo: contractRepo,
		ruleSet:      ruleSet,
		limiter:      limiter,
		publisher:    publisher,
		metrics:      m,
		logger:       logger.With("module", "order_service"),
		now:          time.Now,
	}
}

// PlaceQuoteCmd 点价申报命令
type PlaceQuoteCmd struct {
	ListingID  uint
	ClientID   string
	ClientName string
	Quantity   decimal.Decimal
	Price      decimal.Decimal
	Remark     string
}

// QuoteResult 点价成交结果
type QuoteResult struct {
	Order    *domain.Order
	Contract *contractdomain.Contract
}

// PlaceQuote 点价申报。
// 先过交易时段闸口与客户限流，再对挂牌快照做规则校验，
// 校验通过后在同一事务内对挂牌行加锁扣减、落订单、生成合同，
// 并发点价由行锁串行化，保证不超卖。
func (s *Service) PlaceQuote(ctx context.Context, cmd PlaceQuoteCmd) (*QuoteResult, error) {
	if !s.ruleSet.WithinTradingHours(s.now()) {
		s.metrics.QuotesRejected.Inc()
		s.rejectEvent(ctx, "", cmd.ClientID, "market closed")
		return nil, domain.ErrMarketClosed
	}

	if s.limiter != nil {
		res, err := s.limiter.Allow(ctx, "quote:"+cmd.ClientID, quoteLimit)
		if err != nil {
			s.logger.Warn("rate limiter unavailable, letting request through", "error", err)
		} else if !res.Allowed {
			return nil, fmt.Errorf("%w: retry after %s", ErrRateLimited, res.RetryAfter)
		}
	}

	snapshot, err := s.listingRepo.GetByID(ctx, cmd.ListingID)
	if err != nil {
		return nil, err
	}
	if !snapshot.Active() {
		s.metrics.QuotesRejected.Inc()
		return nil, listingdomain.ErrListingNotActive
	}
	if errs := domain.ValidateQuote(snapshot, domain.QuoteInput{
		Quantity: cmd.Quantity,
		Price:    cmd.Price,
	}); len(errs) > 0 {
		s.metrics.QuotesRejected.Inc()
		s.rejectEvent(ctx, snapshot.ListingNo, cmd.ClientID, errs.Error())
		return nil, errs.OrNil()
	}

	var (
		order    *domain.Order
		contract *contractdomain.Contract
	)
	err = s.listingRepo.WithTx(ctx, func(txCtx context.Context) error {
		listing, err := s.listingRepo.GetByIDForUpdate(txCtx, cmd.ListingID)
		if err != nil {
			return err
		}
		// 加锁后重校验，快照可能已被并发点价消耗
		if errs := domain.ValidateQuote(listing, domain.QuoteInput{
			Quantity: cmd.Quantity,
			Price:    cmd.Price,
		}); len(errs) > 0 {
			return errs.OrNil()
		}
		if err := listing.Fill(cmd.Quantity); err != nil {
			return err
		}
		if err := s.listingRepo.Save(txCtx, listing); err != nil {
			return err
		}

		now := s.now()
		order = &domain.Order{
			OrderNo:     "PD" + idgen.GenIDString(),
			ListingID:   listing.ID,
			ListingNo:   listing.ListingNo,
			ClientID:    cmd.ClientID,
			ClientName:  cmd.ClientName,
			ProductType: listing.ProductType,
			RefContract: listing.RefContract,
			Quantity:    cmd.Quantity,
			Price:       cmd.Price,
			Basis:       listing.Basis,
			TotalAmount: domain.QuoteTotal(cmd.Quantity, cmd.Price),
			Status:      domain.StatusPricing,
			QuotedAt:    now,
			Remark:      cmd.Remark,
		}
		order.Complete()
		if err := s.repo.Save(txCtx, order); err != nil {
			return err
		}

		contract, err = contractdomain.NewContract(
			"C"+now.Format("20060102")+idgen.GenIDString(), cmd.Quantity, cmd.Price, now)
		if err != nil {
			return err
		}
		contract.OrderNo = order.OrderNo
		contract.ListingNo = listing.ListingNo
		contract.ClientID = cmd.ClientID
		contract.ClientName = cmd.ClientName
		contract.ProductType = listing.ProductType
		contract.RefContract = listing.RefContract
		contract.MarginRate = listing.MarginLevel
		contract.DeliveryDate = listing.DeliveryDate
		contract.DeliveryMethod = string(listing.DeliveryMethod)
		contract.WarehouseCode = listing.WarehouseCode
		return s.contractRepo.Save(txCtx, contract)
	})
	if err != nil {
		var verrs rules.ValidationErrors
		if errors.As(err, &verrs) || errors.Is(err, listingdomain.ErrOversell) ||
			errors.Is(err, listingdomain.ErrListingNotActive) {
			s.metrics.QuotesRejected.Inc()
			s.rejectEvent(ctx, snapshot.ListingNo, cmd.ClientID, err.Error())
		}
		return nil, err
	}

	s.metrics.QuotesAccepted.Inc()
	s.logger.Info("quote accepted",
		"order_no", order.OrderNo,
		"listing_no", order.ListingNo,
		"client_id", cmd.ClientID,
		"quantity", cmd.Quantity.String(),
		"price", cmd.Price.String())
	s.publishEvent(ctx, domain.QuoteAcceptedEventType, order.OrderNo, domain.QuoteAcceptedEvent{
		OrderNo:    order.OrderNo,
		ListingNo:  order.ListingNo,
		ClientID:   cmd.ClientID,
		Quantity:   order.Quantity.String(),
		Price:      order.Price.String(),
		Total:      order.TotalAmount.String(),
		ContractNo: contract.ContractNo,
		OccurredAt: s.now(),
	})
	return &QuoteResult{Order: order, Contract: contract}, nil
}

// Preview 点价预览。按当前挂牌快照校验并计算货值，不产生任何副作用。
func (s *Service) Preview(ctx context.Context, listingID uint, quantity, price decimal.Decimal) (decimal.Decimal, error) {
	listing, err := s.listingRepo.GetByID(ctx, listingID)
	if err != nil {
		return decimal.Zero, err
	}
	if errs := domain.ValidateQuote(listing, domain.QuoteInput{Quantity: quantity, Price: price}); len(errs) > 0 {
		return decimal.Zero, errs.OrNil()
	}
	return domain.QuoteTotal(quantity, price), nil
}

// Cancel 撤销订单，仅点价中状态可撤
func (s *Service) Cancel(ctx context.Context, id uint) error {
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := order.Cancel(); err != nil {
		return err
	}
	if err := s.repo.Save(ctx, order); err != nil {
		return err
	}
	s.publishEvent(ctx, domain.OrderCancelledEventType, order.OrderNo, map[string]any{
		"order_no":    order.OrderNo,
		"occurred_at": s.now(),
	})
	return nil
}

// Get 查询订单
func (s *Service) Get(ctx context.Context, id uint) (*domain.Order, error) {
	return s.repo.GetByID(ctx, id)
}

// List 分页查询订单
func (s *Service) List(ctx context.Context, req pagination.Request) (*pagination.Page[*domain.Order], error) {
	req.Normalize()
	orders, total, err := s.repo.List(ctx, req)
	if err != nil {
		return nil, err
	}
	return pagination.NewPage(orders, total, req), nil
}

func (s *Service) rejectEvent(ctx context.Context, listingNo, clientID, reason string) {
	s.publishEvent(ctx, domain.QuoteRejectedEventType, listingNo, domain.QuoteRejectedEvent{
		ListingNo:  listingNo,
		ClientID:   clientID,
		Reason:     reason,
		OccurredAt: s.now(),
	})
}

func (s *Service) publishEvent(ctx context.Context, topic, key string, payload any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, topic, key, payload); err != nil {
		s.logger.Warn("publish event failed", "topic", topic, "error", err)
	}
}
