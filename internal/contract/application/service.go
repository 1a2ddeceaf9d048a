// Package application 合同应用服务
package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/pkg/idgen"

	"github.com/wyfcoding/basistrading/internal/contract/domain"
	"github.com/wyfcoding/basistrading/internal/rules"
	"github.com/wyfcoding/basistrading/pkg/metrics"
	"github.com/wyfcoding/basistrading/pkg/pagination"
)

// Service 合同应用服务
type Service struct {
	repo        domain.Repository
	paymentRepo domain.PaymentRepository
	ruleSet     *rules.Rules
	publisher   domain.EventPublisher
	metrics     *metrics.Metrics
	logger      *slog.Logger
	now         func() time.Time
}

// NewService 创建合同服务
func NewService(
	repo domain.Repository,
	paymentRepo domain.PaymentRepository,
	ruleSet *rules.Rules,
	publisher domain.EventPublisher,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Service {
	return &Service{
		repo:        repo,
		paymentRepo: paymentRepo,
		ruleSet:     ruleSet,
		publisher:   publisher,
		metrics:     m,
		logger:      logger.With("module", "contract_service"),
		now:         time.Now,
	}
}

// Get 查询合同
func (s *Service) Get(ctx context.Context, id uint) (*domain.Contract, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByNumber 按合同号查询
func (s *Service) GetByNumber(ctx context.Context, contractNo string) (*domain.Contract, error) {
	return s.repo.GetByNumber(ctx, contractNo)
}

// List 分页查询合同
func (s *Service) List(ctx context.Context, req pagination.Request) (*pagination.Page[*domain.Contract], error) {
	req.Normalize()
	contracts, total, err := s.repo.List(ctx, req)
	if err != nil {
		return nil, err
	}
	return pagination.NewPage(contracts, total, req), nil
}

// ListPayments 查询合同缴款流水
func (s *Service) ListPayments(ctx context.Context, contractNo string) ([]*domain.MarginPayment, error) {
	return s.paymentRepo.ListByContract(ctx, contractNo)
}

// PayCmd 缴款命令
type PayCmd struct {
	Amount decimal.Decimal
	Remark string
}

// PayMargin 缴纳保证金。合同行加锁后入账并落缴款流水。
func (s *Service) PayMargin(ctx context.Context, id uint, cmd PayCmd) (*domain.Contract, error) {
	return s.pay(ctx, id, domain.PaymentMargin, cmd)
}

// PayBalance 缴纳尾款
func (s *Service) PayBalance(ctx context.Context, id uint, cmd PayCmd) (*domain.Contract, error) {
	return s.pay(ctx, id, domain.PaymentBalance, cmd)
}

func (s *Service) pay(ctx context.Context, id uint, typ domain.PaymentType, cmd PayCmd) (*domain.Contract, error) {
	var contract *domain.Contract
	paymentNo := "PM" + idgen.GenIDString()
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		contract, err = s.repo.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if typ == domain.PaymentMargin {
			err = contract.PayMargin(cmd.Amount)
		} else {
			err = contract.PayBalance(cmd.Amount)
		}
		if err != nil {
			return err
		}
		if err := s.repo.Save(txCtx, contract); err != nil {
			return err
		}
		return s.paymentRepo.Save(txCtx, &domain.MarginPayment{
			PaymentNo:  paymentNo,
			ContractNo: contract.ContractNo,
			ClientID:   contract.ClientID,
			Type:       typ,
			Amount:     cmd.Amount,
			PaidAt:     s.now(),
			Remark:     cmd.Remark,
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.MarginPaymentsTotal.Inc()
	s.logger.Info("payment received",
		"contract_no", contract.ContractNo,
		"type", string(typ),
		"amount", cmd.Amount.String(),
		"remainder", contract.RemainderDue().String())
	s.publishEvent(ctx, domain.PaymentReceivedEventType, contract.ContractNo, domain.PaymentReceivedEvent{
		ContractNo: contract.ContractNo,
		PaymentNo:  paymentNo,
		Type:       string(typ),
		Amount:     cmd.Amount.String(),
		Remainder:  contract.RemainderDue().String(),
		OccurredAt: s.now(),
	})
	return contract, nil
}

// ConfirmDelivery 确认交收
func (s *Service) ConfirmDelivery(ctx context.Context, id uint) (*domain.Contract, error) {
	var contract *domain.Contract
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		contract, err = s.repo.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if err := contract.ConfirmDelivery(s.now()); err != nil {
			return err
		}
		return s.repo.Save(txCtx, contract)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.DeliveriesCompleted.Inc()
	s.publishEvent(ctx, domain.DeliveryCompletedEventType, contract.ContractNo, map[string]any{
		"contract_no": contract.ContractNo,
		"occurred_at": s.now(),
	})
	return contract, nil
}

// RequestEarlyDelivery 申请提前交收
func (s *Service) RequestEarlyDelivery(ctx context.Context, id uint, days int) (*domain.Contract, error) {
	return s.adjustDelivery(ctx, id, days, true)
}

// RequestDelayedDelivery 申请延期交收
func (s *Service) RequestDelayedDelivery(ctx context.Context, id uint, days int) (*domain.Contract, error) {
	return s.adjustDelivery(ctx, id, days, false)
}

func (s *Service) adjustDelivery(ctx context.Context, id uint, days int, early bool) (*domain.Contract, error) {
	var contract *domain.Contract
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		contract, err = s.repo.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if early {
			err = contract.RequestEarlyDelivery(days, s.ruleSet.MaxEarlyDeliveryDays)
		} else {
			err = contract.RequestDelayedDelivery(days, s.ruleSet.MaxDelayDeliveryDays)
		}
		if err != nil {
			return err
		}
		return s.repo.Save(txCtx, contract)
	})
	if err != nil {
		return nil, err
	}
	return contract, nil
}

// Terminate 终止合同
func (s *Service) Terminate(ctx context.Context, id uint) (*domain.Contract, error) {
	var contract *domain.Contract
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		contract, err = s.repo.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if err := contract.Terminate(); err != nil {
			return err
		}
		return s.repo.Save(txCtx, contract)
	})
	if err != nil {
		return nil, err
	}
	return contract, nil
}

// CheckMarginCall 按给定现价做单笔盯市检查
func (s *Service) CheckMarginCall(ctx context.Context, id uint, currentPrice decimal.Decimal) (*domain.MarginCallResult, error) {
	contract, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	result := contract.CheckMarginCall(currentPrice, s.ruleSet.MarginRatio)
	if result.Required {
		s.metrics.MarginCallsRaised.Inc()
		s.publishEvent(ctx, domain.MarginCallEventType, contract.ContractNo, domain.MarginCallEvent{
			ContractNo:     contract.ContractNo,
			ClientID:       contract.ClientID,
			CurrentPrice:   currentPrice.String(),
			RequiredMargin: result.RequiredMargin.String(),
			CallAmount:     result.Amount.String(),
			OccurredAt:     s.now(),
		})
	}
	return &result, nil
}

func (s *Service) publishEvent(ctx context.Context, topic, key string, payload any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, topic, key, payload); err != nil {
		s.logger.Warn("publish event failed", "topic", topic, "error", err)
	}
}
