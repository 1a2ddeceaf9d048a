package application

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/basistrading/internal/contract/domain"
	"github.com/wyfcoding/basistrading/internal/rules"
	"github.com/wyfcoding/basistrading/pkg/metrics"
	"github.com/wyfcoding/basistrading/pkg/pagination"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

var testNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.Local)

type fakeRepo struct {
	contracts map[uint]*domain.Contract
}

func (r *fakeRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (r *fakeRepo) Save(_ context.Context, c *domain.Contract) error {
	r.contracts[c.ID] = c
	return nil
}

func (r *fakeRepo) GetByID(_ context.Context, id uint) (*domain.Contract, error) {
	c, ok := r.contracts[id]
	if !ok {
		return nil, domain.ErrContractNotFound
	}
	return c, nil
}

func (r *fakeRepo) GetByIDForUpdate(ctx context.Context, id uint) (*domain.Contract, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeRepo) GetByNumber(_ context.Context, no string) (*domain.Contract, error) {
	for _, c := range r.contracts {
		if c.ContractNo == no {
			return c, nil
		}
	}
	return nil, domain.ErrContractNotFound
}

func (r *fakeRepo) List(context.Context, pagination.Request) ([]*domain.Contract, int64, error) {
	out := make([]*domain.Contract, 0, len(r.contracts))
	for _, c := range r.contracts {
		out = append(out, c)
	}
	return out, int64(len(out)), nil
}

func (r *fakeRepo) ListOpen(ctx context.Context) ([]*domain.Contract, error) {
	var out []*domain.Contract
	for _, c := range r.contracts {
		if c.State != domain.StateEffective {
			continue
		}
		stage := c.Stage()
		if stage == domain.DeliveryCompleted || stage == domain.DeliveryCancelled {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

type fakePaymentRepo struct {
	payments []*domain.MarginPayment
}

func (r *fakePaymentRepo) Save(_ context.Context, p *domain.MarginPayment) error {
	r.payments = append(r.payments, p)
	return nil
}

func (r *fakePaymentRepo) ListByContract(_ context.Context, no string) ([]*domain.MarginPayment, error) {
	var out []*domain.MarginPayment
	for _, p := range r.payments {
		if p.ContractNo == no {
			out = append(out, p)
		}
	}
	return out, nil
}

type capturingPublisher struct {
	topics   []string
	payloads []any
}

func (p *capturingPublisher) Publish(_ context.Context, topic, _ string, payload any) error {
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, payload)
	return nil
}

func (p *capturingPublisher) has(topic string) bool {
	for _, t := range p.topics {
		if t == topic {
			return true
		}
	}
	return false
}

func newTestService(contracts ...*domain.Contract) (*Service, *fakeRepo, *fakePaymentRepo, *capturingPublisher) {
	repo := &fakeRepo{contracts: map[uint]*domain.Contract{}}
	for _, c := range contracts {
		repo.contracts[c.ID] = c
	}
	paymentRepo := &fakePaymentRepo{}
	publisher := &capturingPublisher{}
	s := NewService(repo, paymentRepo, rules.Default(), publisher, metrics.New("test"), slog.Default())
	s.now = func() time.Time { return testNow }
	return s, repo, paymentRepo, publisher
}

func newTestContract(t *testing.T, id uint) *domain.Contract {
	t.Helper()
	c, err := domain.NewContract("C202603020001", d(1000), d(4000), testNow)
	if err != nil {
		t.Fatal(err)
	}
	c.ID = id
	c.MarginRate = d(0.15)
	c.RefContract = "RB2605"
	c.DeliveryDate = testNow.AddDate(0, 0, 30)
	return c
}

func TestPayMarginRecordsPayment(t *testing.T) {
	s, repo, paymentRepo, publisher := newTestService(newTestContract(t, 1))

	contract, err := s.PayMargin(context.Background(), 1, PayCmd{Amount: d(600000)})
	if err != nil {
		t.Fatalf("PayMargin() error = %v", err)
	}
	if !contract.MarginPaid.Equal(d(600000)) {
		t.Errorf("margin paid = %s, want 600000", contract.MarginPaid)
	}
	if contract.DeliveryStatus != domain.DeliveryPendingBalance {
		t.Errorf("status = %s, want %s", contract.DeliveryStatus, domain.DeliveryPendingBalance)
	}

	if len(paymentRepo.payments) != 1 {
		t.Fatalf("payments persisted = %d, want 1", len(paymentRepo.payments))
	}
	p := paymentRepo.payments[0]
	if p.Type != domain.PaymentMargin || !p.Amount.Equal(d(600000)) {
		t.Errorf("payment = %s %s, want MARGIN 600000", p.Type, p.Amount)
	}
	if !publisher.has(domain.PaymentReceivedEventType) {
		t.Error("payment event not published")
	}
	for i, topic := range publisher.topics {
		if topic != domain.PaymentReceivedEventType {
			continue
		}
		event, ok := publisher.payloads[i].(domain.PaymentReceivedEvent)
		if !ok {
			t.Fatalf("payload type = %T", publisher.payloads[i])
		}
		if event.PaymentNo == "" || event.PaymentNo != p.PaymentNo {
			t.Errorf("event payment_no = %q, want %q", event.PaymentNo, p.PaymentNo)
		}
	}
	if repo.contracts[1].DeliveryStatus != domain.DeliveryPendingBalance {
		t.Error("contract not persisted")
	}
}

func TestPayBalanceSettlesAndConfirms(t *testing.T) {
	s, _, _, publisher := newTestService(newTestContract(t, 1))

	if _, err := s.PayMargin(context.Background(), 1, PayCmd{Amount: d(600000)}); err != nil {
		t.Fatal(err)
	}
	contract, err := s.PayBalance(context.Background(), 1, PayCmd{Amount: d(3400000)})
	if err != nil {
		t.Fatalf("PayBalance() error = %v", err)
	}
	if contract.DeliveryStatus != domain.DeliveryPendingReceipt {
		t.Errorf("status = %s, want %s", contract.DeliveryStatus, domain.DeliveryPendingReceipt)
	}
	if !contract.RemainderDue().IsZero() {
		t.Errorf("remainder = %s, want 0", contract.RemainderDue())
	}

	contract, err = s.ConfirmDelivery(context.Background(), 1)
	if err != nil {
		t.Fatalf("ConfirmDelivery() error = %v", err)
	}
	if contract.DeliveryStatus != domain.DeliveryCompleted {
		t.Errorf("status = %s, want %s", contract.DeliveryStatus, domain.DeliveryCompleted)
	}
	if !publisher.has(domain.DeliveryCompletedEventType) {
		t.Error("delivery event not published")
	}
}

func TestCheckMarginCallPublishesEvent(t *testing.T) {
	s, _, _, publisher := newTestService(newTestContract(t, 1))

	result, err := s.CheckMarginCall(context.Background(), 1, d(4240))
	if err != nil {
		t.Fatalf("CheckMarginCall() error = %v", err)
	}
	if !result.Required || !result.Amount.Equal(d(636000)) {
		t.Errorf("result = %+v, want required 636000", result)
	}
	if !publisher.has(domain.MarginCallEventType) {
		t.Error("margin call event not published")
	}
}

func TestCheckMarginCallQuietWhenCovered(t *testing.T) {
	s, _, _, publisher := newTestService(newTestContract(t, 1))
	if _, err := s.PayMargin(context.Background(), 1, PayCmd{Amount: d(700000)}); err != nil {
		t.Fatal(err)
	}

	result, err := s.CheckMarginCall(context.Background(), 1, d(4240))
	if err != nil {
		t.Fatal(err)
	}
	if result.Required {
		t.Error("required = true with sufficient margin")
	}
	if publisher.has(domain.MarginCallEventType) {
		t.Error("margin call event published without shortfall")
	}
}

func TestAdjustDelivery(t *testing.T) {
	s, _, _, _ := newTestService(newTestContract(t, 1))
	original := testNow.AddDate(0, 0, 30)

	contract, err := s.RequestDelayedDelivery(context.Background(), 1, 5)
	if err != nil {
		t.Fatalf("RequestDelayedDelivery() error = %v", err)
	}
	if want := original.AddDate(0, 0, 5); !contract.DeliveryDate.Equal(want) {
		t.Errorf("delivery date = %v, want %v", contract.DeliveryDate, want)
	}

	_, err = s.RequestEarlyDelivery(context.Background(), 1, 10)
	var oor *rules.OutOfRangeError
	if !errors.As(err, &oor) {
		t.Fatalf("RequestEarlyDelivery(10) error = %v, want OutOfRangeError", err)
	}
}

type fakePriceSource struct {
	prices map[string]decimal.Decimal
}

func (s *fakePriceSource) LatestPrice(_ context.Context, ref string) (decimal.Decimal, error) {
	p, ok := s.prices[ref]
	if !ok {
		return decimal.Zero, errors.New("no price")
	}
	return p, nil
}

func TestMarginMonitorSweep(t *testing.T) {
	short := newTestContract(t, 1)
	covered := newTestContract(t, 2)
	covered.ContractNo = "C202603020002"
	if err := covered.PayMargin(d(700000)); err != nil {
		t.Fatal(err)
	}
	noPrice := newTestContract(t, 3)
	noPrice.ContractNo = "C202603020003"
	noPrice.RefContract = "HC2605"

	s, repo, _, publisher := newTestService(short, covered, noPrice)
	source := &fakePriceSource{prices: map[string]decimal.Decimal{"RB2605": d(4240)}}
	monitor := NewMarginMonitor(s, repo, source, time.Minute, slog.Default())

	if err := monitor.sweep(context.Background()); err != nil {
		t.Fatalf("sweep() error = %v", err)
	}
	if !publisher.has(domain.MarginCallEventType) {
		t.Error("shortfall contract did not raise a margin call")
	}
	// 追缴事件只来自缺口合同，足额与无行情的合同不触发
	calls := 0
	for _, topic := range publisher.topics {
		if topic == domain.MarginCallEventType {
			calls++
		}
	}
	if calls != 1 {
		t.Errorf("margin call events = %d, want 1", calls)
	}
}

func TestMarginMonitorRunStopsOnCancel(t *testing.T) {
	s, repo, _, _ := newTestService()
	source := &fakePriceSource{prices: map[string]decimal.Decimal{}}
	monitor := NewMarginMonitor(s, repo, source, 10*time.Millisecond, slog.Default())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := monitor.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run() error = %v, want context.DeadlineExceeded", err)
	}
}
