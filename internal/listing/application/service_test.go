package application

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/basistrading/internal/listing/domain"
	"github.com/wyfcoding/basistrading/internal/rules"
	"github.com/wyfcoding/basistrading/pkg/metrics"
	"github.com/wyfcoding/basistrading/pkg/pagination"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

var testNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.Local)

type fakeRepo struct {
	listings map[uint]*domain.Listing
	nextID   uint
}

func (r *fakeRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (r *fakeRepo) Save(_ context.Context, l *domain.Listing) error {
	if l.ID == 0 {
		r.nextID++
		l.ID = r.nextID
	}
	r.listings[l.ID] = l
	return nil
}

func (r *fakeRepo) GetByID(_ context.Context, id uint) (*domain.Listing, error) {
	l, ok := r.listings[id]
	if !ok {
		return nil, domain.ErrListingNotFound
	}
	return l, nil
}

func (r *fakeRepo) GetByIDForUpdate(ctx context.Context, id uint) (*domain.Listing, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeRepo) GetByNumber(_ context.Context, no string) (*domain.Listing, error) {
	for _, l := range r.listings {
		if l.ListingNo == no {
			return l, nil
		}
	}
	return nil, domain.ErrListingNotFound
}

func (r *fakeRepo) List(context.Context, pagination.Request) ([]*domain.Listing, int64, error) {
	out := make([]*domain.Listing, 0, len(r.listings))
	for _, l := range r.listings {
		out = append(out, l)
	}
	return out, int64(len(out)), nil
}

type fakeDelistRepo struct {
	records []*domain.DelistingRecord
}

func (r *fakeDelistRepo) Save(_ context.Context, rec *domain.DelistingRecord) error {
	r.records = append(r.records, rec)
	return nil
}

func (r *fakeDelistRepo) List(context.Context, pagination.Request) ([]*domain.DelistingRecord, int64, error) {
	return r.records, int64(len(r.records)), nil
}

func newTestService() (*Service, *fakeRepo, *fakeDelistRepo) {
	repo := &fakeRepo{listings: map[uint]*domain.Listing{}}
	delistRepo := &fakeDelistRepo{}
	s := NewService(repo, delistRepo, rules.Default(), nil, metrics.New("test"), slog.Default())
	s.now = func() time.Time { return testNow }
	return s, repo, delistRepo
}

func validPublishCmd() PublishCmd {
	return PublishCmd{
		ProductType:    "REBAR",
		ProductName:    "螺纹钢",
		RefContract:    "RB2605",
		Quantity:       d(1000),
		MinTradeUnit:   d(100),
		Basis:          d(150),
		PriceLow:       d(4000),
		PriceUp:        d(4500),
		MarginLevel:    d(0.15),
		DeliveryDate:   testNow.AddDate(0, 0, 30),
		DeliveryMethod: domain.DeliveryWarehouse,
		ClientType:     domain.ClientPublic,
	}
}

func TestPublish(t *testing.T) {
	s, repo, _ := newTestService()

	listing, err := s.Publish(context.Background(), validPublishCmd())
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if listing.ListingNo == "" {
		t.Error("listing number not assigned")
	}
	if listing.Status != domain.StatusPublished {
		t.Errorf("status = %s, want %s", listing.Status, domain.StatusPublished)
	}
	if listing.PricingStatus != domain.PricingInProgress {
		t.Errorf("pricing status = %s, want %s", listing.PricingStatus, domain.PricingInProgress)
	}
	if !listing.AvailableQuantity.Equal(listing.TotalQuantity) {
		t.Error("available must start equal to total")
	}
	if len(repo.listings) != 1 {
		t.Errorf("persisted = %d, want 1", len(repo.listings))
	}
}

func TestPublishDefaultsUnit(t *testing.T) {
	s, _, _ := newTestService()

	cmd := validPublishCmd()
	cmd.ProductType = "UNLISTED_PRODUCT"
	cmd.MinTradeUnit = decimal.Zero
	listing, err := s.Publish(context.Background(), cmd)
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if !listing.MinTradeUnit.Equal(d(100)) {
		t.Errorf("unit = %s, want global default 100", listing.MinTradeUnit)
	}
}

func TestPublishRejectsDisallowedUnit(t *testing.T) {
	s, _, _ := newTestService()

	cmd := validPublishCmd()
	cmd.ProductType = "HOT_ROLLED_COIL"
	cmd.MinTradeUnit = d(100) // 热卷档位为 90/150/300
	_, err := s.Publish(context.Background(), cmd)

	var verrs rules.ValidationErrors
	if !errors.As(err, &verrs) || !verrs.Has(rules.RuleUnitNotAllowed) {
		t.Fatalf("Publish() error = %v, want unit_not_allowed", err)
	}
}

func TestPublishCollectsViolations(t *testing.T) {
	s, repo, _ := newTestService()

	cmd := validPublishCmd()
	cmd.Quantity = d(50)
	cmd.Basis = d(5000)
	_, err := s.Publish(context.Background(), cmd)

	var verrs rules.ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("Publish() error = %v, want ValidationErrors", err)
	}
	if !verrs.Has(rules.RuleQuantityBelowMin) || !verrs.Has(rules.RuleBasisOutOfRange) {
		t.Errorf("violations = %v, want both quantity and basis", verrs)
	}
	if len(repo.listings) != 0 {
		t.Error("invalid listing persisted")
	}
}

func TestUpdate(t *testing.T) {
	s, _, _ := newTestService()
	listing, err := s.Publish(context.Background(), validPublishCmd())
	if err != nil {
		t.Fatal(err)
	}

	updated, err := s.Update(context.Background(), listing.ID, UpdateCmd{
		Basis:    d(200),
		PriceLow: d(4100),
		PriceUp:  d(4600),
		Remark:   "调价",
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if !updated.Basis.Equal(d(200)) || !updated.PriceUp.Equal(d(4600)) {
		t.Errorf("update not applied: basis %s, up %s", updated.Basis, updated.PriceUp)
	}

	// 基差越界的修改被整体拒绝
	if _, err := s.Update(context.Background(), listing.ID, UpdateCmd{
		Basis: d(3000), PriceLow: d(4100), PriceUp: d(4600),
	}); err == nil {
		t.Error("out-of-range basis update accepted")
	}
}

func TestUpdateRejectsDelisted(t *testing.T) {
	s, _, _ := newTestService()
	listing, err := s.Publish(context.Background(), validPublishCmd())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Delist(context.Background(), listing.ID, DelistCmd{Reason: "现货售罄"}); err != nil {
		t.Fatal(err)
	}

	_, err = s.Update(context.Background(), listing.ID, UpdateCmd{
		Basis: d(100), PriceLow: d(4000), PriceUp: d(4500),
	})
	if !errors.Is(err, domain.ErrListingImmutable) {
		t.Errorf("Update() error = %v, want ErrListingImmutable", err)
	}
}

func TestDelistWritesRecord(t *testing.T) {
	s, repo, delistRepo := newTestService()
	listing, err := s.Publish(context.Background(), validPublishCmd())
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Delist(context.Background(), listing.ID, DelistCmd{Reason: "现货售罄"}); err != nil {
		t.Fatalf("Delist() error = %v", err)
	}

	if repo.listings[listing.ID].Status != domain.StatusDelisted {
		t.Error("listing not marked delisted")
	}
	if len(delistRepo.records) != 1 {
		t.Fatalf("records = %d, want 1", len(delistRepo.records))
	}
	rec := delistRepo.records[0]
	if rec.ListingNo != listing.ListingNo {
		t.Errorf("record listing no = %s, want %s", rec.ListingNo, listing.ListingNo)
	}
	if !rec.Weight.Equal(d(1000)) {
		t.Errorf("record weight = %s, want remaining 1000", rec.Weight)
	}
	if rec.Status != domain.DelistingPending {
		t.Errorf("record status = %s, want %s", rec.Status, domain.DelistingPending)
	}

	if err := s.Delist(context.Background(), listing.ID, DelistCmd{}); !errors.Is(err, domain.ErrAlreadyDelisted) {
		t.Errorf("second Delist() error = %v, want ErrAlreadyDelisted", err)
	}
}

func TestGetRecordsHit(t *testing.T) {
	s, _, _ := newTestService()
	listing, err := s.Publish(context.Background(), validPublishCmd())
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		if _, err := s.Get(context.Background(), listing.ID); err != nil {
			t.Fatal(err)
		}
	}
	got, err := s.Get(context.Background(), listing.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Hits != 4 {
		t.Errorf("hits = %d, want 4", got.Hits)
	}
}
