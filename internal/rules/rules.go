// Package rules 承载基差交易业务规则表与交易时段判断。
// 所有函数均为纯函数：不做 IO、不持有可变状态，校验结果以值返回。
package rules

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/basistrading/pkg/config"
)

// ConfigurationError 业务规则表自身不一致时在启动期返回
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid rules configuration: %s: %s", e.Field, e.Reason)
}

// Session 交易时段，起止均为当日秒数，两端闭区间
type Session struct {
	Start int
	End   int
}

// Rules 业务规则表。由配置装配，零值字段回落到交易台默认值。
type Rules struct {
	// 最小交易单位（吨）
	MinTradeUnit decimal.Decimal
	// 最大交易单位（吨）
	MaxTradeUnit decimal.Decimal
	// 保证金比例
	MarginRatio decimal.Decimal
	// 基差下限（元/吨）
	MinPriceDiff decimal.Decimal
	// 基差上限（元/吨）
	MaxPriceDiff decimal.Decimal
	// 最小交货期（天）
	MinDeliveryDays int
	// 最大交货期（天）
	MaxDeliveryDays int
	// 最大提前交货天数
	MaxEarlyDeliveryDays int
	// 最大延期交货天数
	MaxDelayDeliveryDays int
	// 交易时段
	Sessions []Session

	productUnits   map[string][]int64
	productMargins map[string]decimal.Decimal
}

// DefaultConfig 返回与线上交易台一致的规则默认值
func DefaultConfig() config.RulesConfig {
	return config.RulesConfig{
		MinTradeUnit:         100,
		MaxTradeUnit:         10000,
		MarginRatio:          0.15,
		MinPriceDiff:         -1000,
		MaxPriceDiff:         1000,
		MinDeliveryDays:      7,
		MaxDeliveryDays:      90,
		MaxEarlyDeliveryDays: 7,
		MaxDelayDeliveryDays: 7,
		Sessions:             []string{"09:00-11:30", "13:30-15:00"},
		ProductUnits: map[string][]int64{
			"HOT_ROLLED_COIL":  {90, 150, 300},
			"REBAR":            {100, 150, 300},
			"ULTRA_THIN_STRIP": {50, 100},
		},
		ProductMargins: map[string]float64{
			"HOT_ROLLED_COIL":  100,
			"ULTRA_THIN_STRIP": 150,
			"REBAR":            100,
		},
	}
}

// Default 返回默认规则表
func Default() *Rules {
	r, err := New(config.RulesConfig{})
	if err != nil {
		panic(err) // 默认表不一致属于程序缺陷
	}
	return r
}

// New 由配置装配规则表并校验一致性
func New(cfg config.RulesConfig) (*Rules, error) {
	def := DefaultConfig()
	if cfg.MinTradeUnit == 0 {
		cfg.MinTradeUnit = def.MinTradeUnit
	}
	if cfg.MaxTradeUnit == 0 {
		cfg.MaxTradeUnit = def.MaxTradeUnit
	}
	if cfg.MarginRatio == 0 {
		cfg.MarginRatio = def.MarginRatio
	}
	if cfg.MinPriceDiff == 0 && cfg.MaxPriceDiff == 0 {
		cfg.MinPriceDiff = def.MinPriceDiff
		cfg.MaxPriceDiff = def.MaxPriceDiff
	}
	if cfg.MinDeliveryDays == 0 {
		cfg.MinDeliveryDays = def.MinDeliveryDays
	}
	if cfg.MaxDeliveryDays == 0 {
		cfg.MaxDeliveryDays = def.MaxDeliveryDays
	}
	if cfg.MaxEarlyDeliveryDays == 0 {
		cfg.MaxEarlyDeliveryDays = def.MaxEarlyDeliveryDays
	}
	if cfg.MaxDelayDeliveryDays == 0 {
		cfg.MaxDelayDeliveryDays = def.MaxDelayDeliveryDays
	}
	if len(cfg.Sessions) == 0 {
		cfg.Sessions = def.Sessions
	}
	if len(cfg.ProductUnits) == 0 {
		cfg.ProductUnits = def.ProductUnits
	}
	if len(cfg.ProductMargins) == 0 {
		cfg.ProductMargins = def.ProductMargins
	}

	r := &Rules{
		MinTradeUnit:         decimal.NewFromInt(cfg.MinTradeUnit),
		MaxTradeUnit:         decimal.NewFromInt(cfg.MaxTradeUnit),
		MarginRatio:          decimal.NewFromFloat(cfg.MarginRatio),
		MinPriceDiff:         decimal.NewFromFloat(cfg.MinPriceDiff),
		MaxPriceDiff:         decimal.NewFromFloat(cfg.MaxPriceDiff),
		MinDeliveryDays:      cfg.MinDeliveryDays,
		MaxDeliveryDays:      cfg.MaxDeliveryDays,
		MaxEarlyDeliveryDays: cfg.MaxEarlyDeliveryDays,
		MaxDelayDeliveryDays: cfg.MaxDelayDeliveryDays,
		productUnits:         cfg.ProductUnits,
		productMargins:       make(map[string]decimal.Decimal, len(cfg.ProductMargins)),
	}
	for product, charge := range cfg.ProductMargins {
		r.productMargins[product] = decimal.NewFromFloat(charge)
	}

	for _, raw := range cfg.Sessions {
		s, err := parseSession(raw)
		if err != nil {
			return nil, &ConfigurationError{Field: "sessions", Reason: err.Error()}
		}
		r.Sessions = append(r.Sessions, s)
	}

	if err := r.validate(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Rules) validate() error {
	if r.MinTradeUnit.Sign() <= 0 {
		return &ConfigurationError{Field: "min_trade_unit", Reason: "must be positive"}
	}
	if r.MaxTradeUnit.LessThan(r.MinTradeUnit) {
		return &ConfigurationError{Field: "max_trade_unit", Reason: "below min_trade_unit"}
	}
	if r.MarginRatio.Sign() <= 0 || r.MarginRatio.GreaterThan(decimal.NewFromInt(1)) {
		return &ConfigurationError{Field: "margin_ratio", Reason: "must be in (0, 1]"}
	}
	if r.MaxPriceDiff.LessThan(r.MinPriceDiff) {
		return &ConfigurationError{Field: "max_price_diff", Reason: "below min_price_diff"}
	}
	if r.MinDeliveryDays < 0 || r.MaxDeliveryDays < r.MinDeliveryDays {
		return &ConfigurationError{Field: "max_delivery_days", Reason: "delivery window inverted"}
	}
	if r.MaxEarlyDeliveryDays < 1 {
		return &ConfigurationError{Field: "max_early_delivery_days", Reason: "must be at least 1"}
	}
	if r.MaxDelayDeliveryDays < 1 {
		return &ConfigurationError{Field: "max_delay_delivery_days", Reason: "must be at least 1"}
	}
	for _, s := range r.Sessions {
		if s.End < s.Start {
			return &ConfigurationError{Field: "sessions", Reason: "session end before start"}
		}
	}
	return nil
}

// WithinTradingHours 判断 t 是否落在任一交易时段内。
// 与交易台保持一致：两端均为闭区间，按当日秒数比较。
func (r *Rules) WithinTradingHours(t time.Time) bool {
	sec := t.Hour()*3600 + t.Minute()*60 + t.Second()
	for _, s := range r.Sessions {
		if sec >= s.Start && sec <= s.End {
			return true
		}
	}
	return false
}

// UnitsForProduct 返回品种允许的最小交易单位，未配置的品种返回 nil
func (r *Rules) UnitsForProduct(product string) []int64 {
	return r.productUnits[product]
}

// MarginChargeFor 返回品种保证金定额（元/吨），未配置时 ok 为 false
func (r *Rules) MarginChargeFor(product string) (decimal.Decimal, bool) {
	charge, ok := r.productMargins[product]
	return charge, ok
}

// parseSession 解析 "HH:MM-HH:MM" 或 "HH:MM:SS-HH:MM:SS"
func parseSession(raw string) (Session, error) {
	parts := strings.SplitN(raw, "-", 2)
	if len(parts) != 2 {
		return Session{}, fmt.Errorf("malformed session %q", raw)
	}
	start, err := parseClock(strings.TrimSpace(parts[0]))
	if err != nil {
		return Session{}, err
	}
	end, err := parseClock(strings.TrimSpace(parts[1]))
	if err != nil {
		return Session{}, err
	}
	return Session{Start: start, End: end}, nil
}

func parseClock(raw string) (int, error) {
	fields := strings.Split(raw, ":")
	if len(fields) != 2 && len(fields) != 3 {
		return 0, fmt.Errorf("malformed clock %q", raw)
	}
	var hms [3]int
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return 0, fmt.Errorf("malformed clock %q", raw)
		}
		hms[i] = n
	}
	if hms[0] < 0 || hms[0] > 23 || hms[1] < 0 || hms[1] > 59 || hms[2] < 0 || hms[2] > 59 {
		return 0, fmt.Errorf("clock out of range %q", raw)
	}
	return hms[0]*3600 + hms[1]*60 + hms[2], nil
}
