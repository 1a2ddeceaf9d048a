package application

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	contractdomain "github.com/wyfcoding/basistrading/internal/contract/domain"
	listingdomain "github.com/wyfcoding/basistrading/internal/listing/domain"
	"github.com/wyfcoding/basistrading/internal/order/domain"
	"github.com/wyfcoding/basistrading/internal/rules"
	"github.com/wyfcoding/basistrading/pkg/metrics"
	"github.com/wyfcoding/basistrading/pkg/pagination"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// 交易时段内的固定时刻
var tradingTime = time.Date(2026, 3, 2, 10, 0, 0, 0, time.Local)

type fakeListingRepo struct {
	listings map[uint]*listingdomain.Listing
	txCalls  int
}

func (r *fakeListingRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	r.txCalls++
	return fn(ctx)
}

func (r *fakeListingRepo) Save(_ context.Context, l *listingdomain.Listing) error {
	r.listings[l.ID] = l
	return nil
}

func (r *fakeListingRepo) GetByID(_ context.Context, id uint) (*listingdomain.Listing, error) {
	l, ok := r.listings[id]
	if !ok {
		return nil, listingdomain.ErrListingNotFound
	}
	return l, nil
}

func (r *fakeListingRepo) GetByIDForUpdate(ctx context.Context, id uint) (*listingdomain.Listing, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeListingRepo) GetByNumber(_ context.Context, no string) (*listingdomain.Listing, error) {
	for _, l := range r.listings {
		if l.ListingNo == no {
			return l, nil
		}
	}
	return nil, listingdomain.ErrListingNotFound
}

func (r *fakeListingRepo) List(context.Context, pagination.Request) ([]*listingdomain.Listing, int64, error) {
	return nil, 0, nil
}

type fakeOrderRepo struct {
	orders []*domain.Order
}

func (r *fakeOrderRepo) Save(_ context.Context, o *domain.Order) error {
	for i, saved := range r.orders {
		if saved.OrderNo == o.OrderNo {
			r.orders[i] = o
			return nil
		}
	}
	r.orders = append(r.orders, o)
	return nil
}

func (r *fakeOrderRepo) GetByID(_ context.Context, id uint) (*domain.Order, error) {
	for _, o := range r.orders {
		if o.ID == id {
			return o, nil
		}
	}
	return nil, domain.ErrOrderNotFound
}

func (r *fakeOrderRepo) GetByNumber(_ context.Context, no string) (*domain.Order, error) {
	for _, o := range r.orders {
		if o.OrderNo == no {
			return o, nil
		}
	}
	return nil, domain.ErrOrderNotFound
}

func (r *fakeOrderRepo) List(context.Context, pagination.Request) ([]*domain.Order, int64, error) {
	return r.orders, int64(len(r.orders)), nil
}

func (r *fakeOrderRepo) ListByListing(context.Context, uint) ([]*domain.Order, error) {
	return r.orders, nil
}

type fakeContractRepo struct {
	contracts []*contractdomain.Contract
}

func (r *fakeContractRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (r *fakeContractRepo) Save(_ context.Context, c *contractdomain.Contract) error {
	r.contracts = append(r.contracts, c)
	return nil
}

func (r *fakeContractRepo) GetByID(_ context.Context, id uint) (*contractdomain.Contract, error) {
	for _, c := range r.contracts {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, contractdomain.ErrContractNotFound
}

func (r *fakeContractRepo) GetByIDForUpdate(ctx context.Context, id uint) (*contractdomain.Contract, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeContractRepo) GetByNumber(_ context.Context, no string) (*contractdomain.Contract, error) {
	for _, c := range r.contracts {
		if c.ContractNo == no {
			return c, nil
		}
	}
	return nil, contractdomain.ErrContractNotFound
}

func (r *fakeContractRepo) List(context.Context, pagination.Request) ([]*contractdomain.Contract, int64, error) {
	return r.contracts, int64(len(r.contracts)), nil
}

func (r *fakeContractRepo) ListOpen(context.Context) ([]*contractdomain.Contract, error) {
	return r.contracts, nil
}

func newTestService(listings ...*listingdomain.Listing) (*Service, *fakeListingRepo, *fakeOrderRepo, *fakeContractRepo) {
	listingRepo := &fakeListingRepo{listings: map[uint]*listingdomain.Listing{}}
	for _, l := range listings {
		listingRepo.listings[l.ID] = l
	}
	orderRepo := &fakeOrderRepo{}
	contractRepo := &fakeContractRepo{}

	s := NewService(orderRepo, listingRepo, contractRepo, rules.Default(),
		nil, nil, metrics.New("test"), slog.Default())
	s.now = func() time.Time { return tradingTime }
	return s, listingRepo, orderRepo, contractRepo
}

func newTestListing() *listingdomain.Listing {
	l := &listingdomain.Listing{
		ListingNo:         "GP1001",
		ProductType:       "REBAR",
		RefContract:       "RB2605",
		TotalQuantity:     d(1000),
		AvailableQuantity: d(1000),
		MinTradeUnit:      d(100),
		Basis:             d(150),
		PriceLow:          d(4000),
		PriceUp:           d(4500),
		MarginLevel:       d(0.15),
		DeliveryDate:      tradingTime.AddDate(0, 0, 30),
		DeliveryMethod:    listingdomain.DeliveryWarehouse,
		Status:            listingdomain.StatusPublished,
		PricingStatus:     listingdomain.PricingInProgress,
	}
	l.ID = 1
	return l
}

func TestPlaceQuote(t *testing.T) {
	s, listingRepo, orderRepo, contractRepo := newTestService(newTestListing())

	result, err := s.PlaceQuote(context.Background(), PlaceQuoteCmd{
		ListingID: 1,
		ClientID:  "cust-1",
		Quantity:  d(300),
		Price:     d(4200),
	})
	if err != nil {
		t.Fatalf("PlaceQuote() error = %v", err)
	}

	if result.Order.Status != domain.StatusCompleted {
		t.Errorf("order status = %s, want %s", result.Order.Status, domain.StatusCompleted)
	}
	if !result.Order.TotalAmount.Equal(d(1260000)) {
		t.Errorf("total = %s, want 1260000", result.Order.TotalAmount)
	}
	if len(orderRepo.orders) != 1 {
		t.Fatalf("orders persisted = %d, want 1", len(orderRepo.orders))
	}

	listing := listingRepo.listings[1]
	if !listing.AvailableQuantity.Equal(d(700)) {
		t.Errorf("available = %s, want 700", listing.AvailableQuantity)
	}
	if listing.PricingStatus != listingdomain.PricingPartial {
		t.Errorf("pricing status = %s, want %s", listing.PricingStatus, listingdomain.PricingPartial)
	}

	if len(contractRepo.contracts) != 1 {
		t.Fatalf("contracts persisted = %d, want 1", len(contractRepo.contracts))
	}
	contract := contractRepo.contracts[0]
	if contract.OrderNo != result.Order.OrderNo {
		t.Errorf("contract order no = %s, want %s", contract.OrderNo, result.Order.OrderNo)
	}
	if !contract.MarginRate.Equal(d(0.15)) {
		t.Errorf("contract margin rate = %s, want listing margin level 0.15", contract.MarginRate)
	}
	if contract.Stage() != contractdomain.DeliveryPendingMargin {
		t.Errorf("new contract stage = %s, want %s",
			contract.Stage(), contractdomain.DeliveryPendingMargin)
	}
	if listingRepo.txCalls != 1 {
		t.Errorf("tx calls = %d, want 1", listingRepo.txCalls)
	}
}

func TestPlaceQuoteExactFillCompletesPricing(t *testing.T) {
	s, listingRepo, _, _ := newTestService(newTestListing())

	if _, err := s.PlaceQuote(context.Background(), PlaceQuoteCmd{
		ListingID: 1, ClientID: "cust-1", Quantity: d(1000), Price: d(4000),
	}); err != nil {
		t.Fatalf("PlaceQuote() error = %v", err)
	}
	listing := listingRepo.listings[1]
	if listing.PricingStatus != listingdomain.PricingCompleted {
		t.Errorf("pricing status = %s, want %s", listing.PricingStatus, listingdomain.PricingCompleted)
	}

	// 额度耗尽后的再次点价被拒
	if _, err := s.PlaceQuote(context.Background(), PlaceQuoteCmd{
		ListingID: 1, ClientID: "cust-2", Quantity: d(100), Price: d(4000),
	}); !errors.Is(err, listingdomain.ErrListingNotActive) {
		t.Errorf("quote on exhausted listing error = %v, want ErrListingNotActive", err)
	}
}

func TestPlaceQuoteRejectsOutsideTradingHours(t *testing.T) {
	s, _, orderRepo, _ := newTestService(newTestListing())
	s.now = func() time.Time {
		return time.Date(2026, 3, 2, 12, 0, 0, 0, time.Local)
	}

	_, err := s.PlaceQuote(context.Background(), PlaceQuoteCmd{
		ListingID: 1, ClientID: "cust-1", Quantity: d(100), Price: d(4200),
	})
	if !errors.Is(err, domain.ErrMarketClosed) {
		t.Fatalf("PlaceQuote() error = %v, want ErrMarketClosed", err)
	}
	if len(orderRepo.orders) != 0 {
		t.Error("order persisted despite closed market")
	}
}

func TestPlaceQuoteValidationFailure(t *testing.T) {
	s, listingRepo, orderRepo, contractRepo := newTestService(newTestListing())

	_, err := s.PlaceQuote(context.Background(), PlaceQuoteCmd{
		ListingID: 1, ClientID: "cust-1", Quantity: d(150), Price: d(4600),
	})
	var verrs rules.ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("PlaceQuote() error = %v, want ValidationErrors", err)
	}
	if !verrs.Has(rules.RuleQuantityNotMultiple) || !verrs.Has(rules.RulePriceOutOfRange) {
		t.Errorf("violations = %v, want quantity and price rules", verrs)
	}

	if len(orderRepo.orders) != 0 || len(contractRepo.contracts) != 0 {
		t.Error("rejected quote must not persist anything")
	}
	if !listingRepo.listings[1].AvailableQuantity.Equal(d(1000)) {
		t.Error("rejected quote must not consume quantity")
	}
}

func TestPreview(t *testing.T) {
	s, _, _, _ := newTestService(newTestListing())

	total, err := s.Preview(context.Background(), 1, d(200), d(4100))
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}
	if !total.Equal(d(820000)) {
		t.Errorf("total = %s, want 820000", total)
	}

	if _, err := s.Preview(context.Background(), 1, d(150), d(4100)); err == nil {
		t.Error("Preview with invalid quantity should fail")
	}
}

func TestCancel(t *testing.T) {
	s, _, orderRepo, _ := newTestService(newTestListing())
	pricing := &domain.Order{OrderNo: "PD1", Status: domain.StatusPricing}
	pricing.ID = 7
	orderRepo.orders = append(orderRepo.orders, pricing)

	if err := s.Cancel(context.Background(), 7); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if pricing.Status != domain.StatusCancelled {
		t.Errorf("status = %s, want %s", pricing.Status, domain.StatusCancelled)
	}

	if err := s.Cancel(context.Background(), 7); !errors.Is(err, domain.ErrOrderNotCancellable) {
		t.Errorf("second Cancel() error = %v, want ErrOrderNotCancellable", err)
	}
}
