package rules

import (
	"fmt"
	"strings"
)

// 校验规则代码。校验器返回的每条违规都携带其中之一，
// 调用方据此做程序化判断，Message 仅用于展示。
const (
	RuleQuantityRequired         = "quantity_required"
	RuleQuantityBelowMin         = "quantity_below_min"
	RuleQuantityAboveMax         = "quantity_above_max"
	RuleQuantityNotMultiple      = "quantity_not_multiple"
	RuleQuantityExceedsAvailable = "quantity_exceeds_available"
	RuleBasisOutOfRange          = "basis_out_of_range"
	RuleDeliveryDateOutOfWindow  = "delivery_date_out_of_window"
	RulePriceRequired            = "price_required"
	RulePriceOutOfRange          = "price_out_of_range"
	RulePriceRangeInverted       = "price_range_inverted"
	RuleUnitNotAllowed           = "unit_not_allowed"
)

// ValidationError 单条规则违规
type ValidationError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors 一次校验收集到的全部违规。
// 校验器不短路：每条独立检查、全部上报。
type ValidationErrors []ValidationError

func (es ValidationErrors) Error() string {
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Has 判断是否包含指定规则代码的违规
func (es ValidationErrors) Has(rule string) bool {
	for _, e := range es {
		if e.Rule == rule {
			return true
		}
	}
	return false
}

// OrNil 无违规时返回 nil，否则返回自身作为 error
func (es ValidationErrors) OrNil() error {
	if len(es) == 0 {
		return nil
	}
	return es
}

// OutOfRangeError 交收日期调整天数越界
type OutOfRangeError struct {
	What string
	Min  int
	Max  int
	Got  int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("%s out of range: got %d, allowed [%d, %d]", e.What, e.Got, e.Min, e.Max)
}
