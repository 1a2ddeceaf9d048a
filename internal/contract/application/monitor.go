package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/wyfcoding/basistrading/internal/contract/domain"
)

// MarginMonitor 保证金盯市巡检。
// 周期性拉取生效合同，按参考合约现价重算应缴保证金，
// 不足的走服务层触发追缴事件。
type MarginMonitor struct {
	service     *Service
	repo        domain.Repository
	priceSource domain.PriceSource
	interval    time.Duration
	logger      *slog.Logger
}

// NewMarginMonitor 创建盯市巡检
func NewMarginMonitor(
	service *Service,
	repo domain.Repository,
	priceSource domain.PriceSource,
	interval time.Duration,
	logger *slog.Logger,
) *MarginMonitor {
	if interval <= 0 {
		interval = time.Minute
	}
	return &MarginMonitor{
		service:     service,
		repo:        repo,
		priceSource: priceSource,
		interval:    interval,
		logger:      logger.With("module", "margin_monitor"),
	}
}

// Run 阻塞运行直到 ctx 取消
func (m *MarginMonitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := m.sweep(ctx); err != nil {
				m.logger.Error("margin sweep failed", "error", err)
			}
		}
	}
}

func (m *MarginMonitor) sweep(ctx context.Context) error {
	contracts, err := m.repo.ListOpen(ctx)
	if err != nil {
		return err
	}

	for _, c := range contracts {
		price, err := m.priceSource.LatestPrice(ctx, c.RefContract)
		if err != nil {
			m.logger.Warn("latest price unavailable, skipping contract",
				"contract_no", c.ContractNo,
				"ref_contract", c.RefContract,
				"error", err)
			continue
		}
		result, err := m.service.CheckMarginCall(ctx, c.ID, price)
		if err != nil {
			m.logger.Warn("margin check failed", "contract_no", c.ContractNo, "error", err)
			continue
		}
		if result.Required {
			m.logger.Info("margin call raised",
				"contract_no", c.ContractNo,
				"current_price", price.String(),
				"call_amount", result.Amount.String())
		}
	}
	return nil
}
