package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	listingdomain "github.com/wyfcoding/basistrading/internal/listing/domain"
	"github.com/wyfcoding/basistrading/internal/rules"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func newTestListing() *listingdomain.Listing {
	return &listingdomain.Listing{
		ListingNo:         "GP1001",
		TotalQuantity:     d(1000),
		AvailableQuantity: d(1000),
		MinTradeUnit:      d(100),
		PriceLow:          d(4000),
		PriceUp:           d(4500),
		Status:            listingdomain.StatusPublished,
		PricingStatus:     listingdomain.PricingInProgress,
	}
}

func TestValidateQuoteNotMultiple(t *testing.T) {
	errs := ValidateQuote(newTestListing(), QuoteInput{Quantity: d(150), Price: d(4200)})
	if !errs.Has(rules.RuleQuantityNotMultiple) {
		t.Fatalf("quantity 150 accepted against unit 100: %v", errs)
	}
	if len(errs) != 1 {
		t.Errorf("extra violations: %v", errs)
	}
}

func TestValidateQuotePriceOutOfRangeOnly(t *testing.T) {
	errs := ValidateQuote(newTestListing(), QuoteInput{Quantity: d(200), Price: d(4600)})
	if !errs.Has(rules.RulePriceOutOfRange) {
		t.Fatalf("price 4600 accepted against [4000, 4500]: %v", errs)
	}
	if len(errs) != 1 {
		t.Errorf("quantity 200 should pass, got %v", errs)
	}
}

func TestValidateQuoteBoundaries(t *testing.T) {
	l := newTestListing()

	tests := []struct {
		name     string
		quantity float64
		price    float64
	}{
		{"quantity equals available", 1000, 4200},
		{"quantity equals one unit", 100, 4200},
		{"price at lower bound", 200, 4000},
		{"price at upper bound", 200, 4500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateQuote(l, QuoteInput{Quantity: d(tt.quantity), Price: d(tt.price)})
			if len(errs) != 0 {
				t.Errorf("ValidateQuote() = %v, want no errors", errs)
			}
		})
	}
}

func TestValidateQuoteRequiredFields(t *testing.T) {
	errs := ValidateQuote(newTestListing(), QuoteInput{})
	if !errs.Has(rules.RuleQuantityRequired) {
		t.Errorf("missing quantity_required in %v", errs)
	}
	if !errs.Has(rules.RulePriceRequired) {
		t.Errorf("missing price_required in %v", errs)
	}
}

func TestValidateQuoteRejectsNegativeQuantity(t *testing.T) {
	// -100 对 100 取模为零且不超过可用量，必须在必填检查处拦截
	errs := ValidateQuote(newTestListing(), QuoteInput{Quantity: d(-100), Price: d(4200)})
	if !errs.Has(rules.RuleQuantityRequired) {
		t.Fatalf("quantity -100 passed without quantity_required: %v", errs)
	}
	if errs.Has(rules.RuleQuantityNotMultiple) || errs.Has(rules.RuleQuantityExceedsAvailable) {
		t.Errorf("negative quantity should only fail the required check, got %v", errs)
	}
}

func TestValidateQuoteExceedsAvailable(t *testing.T) {
	errs := ValidateQuote(newTestListing(), QuoteInput{Quantity: d(1100), Price: d(4200)})
	if !errs.Has(rules.RuleQuantityExceedsAvailable) {
		t.Fatalf("quantity 1100 accepted against available 1000: %v", errs)
	}
}

func TestQuoteTotalExact(t *testing.T) {
	total := QuoteTotal(d(200), d(4200.5))
	if !total.Equal(d(840100)) {
		t.Errorf("QuoteTotal(200, 4200.5) = %s, want 840100", total)
	}
	// 定点运算不产生二进制浮点误差
	total = QuoteTotal(decimal.RequireFromString("0.1"), decimal.RequireFromString("0.3"))
	if !total.Equal(decimal.RequireFromString("0.03")) {
		t.Errorf("QuoteTotal(0.1, 0.3) = %s, want 0.03", total)
	}
}

func TestOrderCancel(t *testing.T) {
	o := &Order{OrderNo: "PD1", Status: StatusPricing}
	if err := o.Cancel(); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if o.Status != StatusCancelled {
		t.Errorf("status = %s, want %s", o.Status, StatusCancelled)
	}

	o = &Order{OrderNo: "PD2", Status: StatusCompleted}
	if err := o.Cancel(); !errors.Is(err, ErrOrderNotCancellable) {
		t.Errorf("Cancel() on completed order error = %v, want ErrOrderNotCancellable", err)
	}
}

func TestOrderStatusLabels(t *testing.T) {
	tests := []struct {
		status Status
		label  string
	}{
		{StatusPricing, "点价中"},
		{StatusCompleted, "已成交"},
		{StatusFailed, "已失败"},
		{StatusCancelled, "已撤销"},
	}
	for _, tt := range tests {
		if tt.status.Label() != tt.label {
			t.Errorf("%s label = %q, want %q", tt.status, tt.status.Label(), tt.label)
		}
	}
	if s, ok := ParseStatus("已成交"); !ok || s != StatusCompleted {
		t.Errorf("ParseStatus(已成交) = %v, %v", s, ok)
	}
}
