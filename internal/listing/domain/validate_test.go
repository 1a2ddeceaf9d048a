package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/basistrading/internal/rules"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

var now = time.Date(2026, 3, 2, 10, 0, 0, 0, time.Local)

func validInput() PublishInput {
	return PublishInput{
		Quantity:     d(1000),
		Basis:        d(150),
		PriceLow:     d(4000),
		PriceUp:      d(4500),
		DeliveryDate: now.AddDate(0, 0, 30),
	}
}

func TestValidatePublishOK(t *testing.T) {
	r := rules.Default()
	if errs := ValidatePublish(r, validInput(), now); len(errs) != 0 {
		t.Fatalf("ValidatePublish() = %v, want no errors", errs)
	}
}

func TestValidatePublishQuantity(t *testing.T) {
	r := rules.Default()

	tests := []struct {
		name     string
		quantity float64
		rules    []string
	}{
		{"below minimum", 50, []string{rules.RuleQuantityBelowMin}},
		{"above maximum", 20000, []string{rules.RuleQuantityAboveMax}},
		{"not a multiple", 150, []string{rules.RuleQuantityNotMultiple}},
		{"minimum exactly", 100, nil},
		{"maximum exactly", 10000, nil},
		{"below min and not multiple", 50, []string{rules.RuleQuantityBelowMin}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			in.Quantity = d(tt.quantity)
			errs := ValidatePublish(r, in, now)
			for _, rule := range tt.rules {
				if !errs.Has(rule) {
					t.Errorf("missing violation %s in %v", rule, errs)
				}
			}
			if tt.rules == nil && len(errs) != 0 {
				t.Errorf("ValidatePublish() = %v, want no errors", errs)
			}
		})
	}
}

func TestValidatePublishBasisBounds(t *testing.T) {
	r := rules.Default()

	for _, basis := range []float64{-1000, 0, 1000} {
		in := validInput()
		in.Basis = d(basis)
		if errs := ValidatePublish(r, in, now); errs.Has(rules.RuleBasisOutOfRange) {
			t.Errorf("basis %v rejected, bounds are inclusive", basis)
		}
	}
	for _, basis := range []float64{-1001, 1001} {
		in := validInput()
		in.Basis = d(basis)
		if errs := ValidatePublish(r, in, now); !errs.Has(rules.RuleBasisOutOfRange) {
			t.Errorf("basis %v accepted, want out-of-range violation", basis)
		}
	}
}

func TestValidatePublishDeliveryWindow(t *testing.T) {
	r := rules.Default()

	tests := []struct {
		name string
		days int
		ok   bool
	}{
		{"too soon", 6, false},
		{"window lower bound", 7, true},
		{"mid window", 45, true},
		{"window upper bound", 90, true},
		{"too far", 91, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			in.DeliveryDate = now.AddDate(0, 0, tt.days)
			errs := ValidatePublish(r, in, now)
			if got := !errs.Has(rules.RuleDeliveryDateOutOfWindow); got != tt.ok {
				t.Errorf("delivery in %d days: accepted = %v, want %v", tt.days, got, tt.ok)
			}
		})
	}
}

func TestValidatePublishPriceRangeInverted(t *testing.T) {
	r := rules.Default()

	in := validInput()
	in.PriceLow, in.PriceUp = d(4500), d(4000)
	if errs := ValidatePublish(r, in, now); !errs.Has(rules.RulePriceRangeInverted) {
		t.Fatalf("inverted price range accepted: %v", errs)
	}
}

func TestValidatePublishCollectsAllViolations(t *testing.T) {
	r := rules.Default()

	in := PublishInput{
		Quantity:     d(50),
		Basis:        d(2000),
		PriceLow:     d(4500),
		PriceUp:      d(4000),
		DeliveryDate: now.AddDate(0, 0, 1),
	}
	errs := ValidatePublish(r, in, now)
	for _, rule := range []string{
		rules.RuleQuantityBelowMin,
		rules.RuleBasisOutOfRange,
		rules.RulePriceRangeInverted,
		rules.RuleDeliveryDateOutOfWindow,
	} {
		if !errs.Has(rule) {
			t.Errorf("missing violation %s, got %v", rule, errs)
		}
	}
}
