// Package marketdata 行情现价来源
package marketdata

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/basistrading/internal/contract/domain"
	"github.com/wyfcoding/basistrading/pkg/cache"
)

// RedisPriceSource 从 Redis 读取行情服务写入的最新结算参考价。
// 键格式 market:price:<ref_contract>，值为价格字符串。
type RedisPriceSource struct {
	cache *cache.RedisCache
}

// NewRedisPriceSource 创建现价来源
func NewRedisPriceSource(c *cache.RedisCache) domain.PriceSource {
	return &RedisPriceSource{cache: c}
}

func (s *RedisPriceSource) LatestPrice(ctx context.Context, refContract string) (decimal.Decimal, error) {
	raw, err := s.cache.Get(ctx, "market:price:"+refContract)
	if err != nil {
		return decimal.Zero, err
	}
	if raw == "" {
		return decimal.Zero, fmt.Errorf("no price for contract %s", refContract)
	}
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("malformed price for contract %s: %w", refContract, err)
	}
	return price, nil
}
