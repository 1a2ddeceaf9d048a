package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/basistrading/internal/rules"
)

// PublishInput 发布/修改挂牌时参与规则校验的字段
type PublishInput struct {
	Quantity     decimal.Decimal
	Basis        decimal.Decimal
	PriceLow     decimal.Decimal
	PriceUp      decimal.Decimal
	DeliveryDate time.Time
}

// ValidatePublish 校验挂牌输入。每条规则独立检查，全部违规一次性上报。
func ValidatePublish(r *rules.Rules, in PublishInput, now time.Time) rules.ValidationErrors {
	var errs rules.ValidationErrors

	if in.Quantity.LessThan(r.MinTradeUnit) {
		errs = append(errs, rules.ValidationError{
			Field:   "quantity",
			Rule:    rules.RuleQuantityBelowMin,
			Message: fmt.Sprintf("最小交易数量为%s吨", r.MinTradeUnit),
		})
	}
	if in.Quantity.GreaterThan(r.MaxTradeUnit) {
		errs = append(errs, rules.ValidationError{
			Field:   "quantity",
			Rule:    rules.RuleQuantityAboveMax,
			Message: fmt.Sprintf("最大交易数量为%s吨", r.MaxTradeUnit),
		})
	}
	if !in.Quantity.Mod(r.MinTradeUnit).IsZero() {
		errs = append(errs, rules.ValidationError{
			Field:   "quantity",
			Rule:    rules.RuleQuantityNotMultiple,
			Message: fmt.Sprintf("交易数量必须是%s的整数倍", r.MinTradeUnit),
		})
	}

	if in.Basis.LessThan(r.MinPriceDiff) || in.Basis.GreaterThan(r.MaxPriceDiff) {
		errs = append(errs, rules.ValidationError{
			Field:   "basis",
			Rule:    rules.RuleBasisOutOfRange,
			Message: fmt.Sprintf("基差必须在%s至%s元/吨之间", r.MinPriceDiff, r.MaxPriceDiff),
		})
	}

	if in.PriceUp.LessThan(in.PriceLow) {
		errs = append(errs, rules.ValidationError{
			Field:   "priceRange",
			Rule:    rules.RulePriceRangeInverted,
			Message: "价格区间上限不能低于下限",
		})
	}

	days := daysBetween(now, in.DeliveryDate)
	if days < r.MinDeliveryDays || days > r.MaxDeliveryDays {
		errs = append(errs, rules.ValidationError{
			Field:   "deliveryDate",
			Rule:    rules.RuleDeliveryDateOutOfWindow,
			Message: fmt.Sprintf("交货日期须在%d至%d天之后", r.MinDeliveryDays, r.MaxDeliveryDays),
		})
	}

	return errs
}

// daysBetween 以自然日计算 from 到 to 的天数差
func daysBetween(from, to time.Time) int {
	fromDay := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	toDay := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, to.Location())
	return int(toDay.Sub(fromDay).Hours() / 24)
}
