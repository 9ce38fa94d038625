package service

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/akylbek/payment-system/acquirer-gateway/internal/gateway"
	"github.com/akylbek/payment-system/acquirer-gateway/internal/lock"
	"github.com/akylbek/payment-system/acquirer-gateway/internal/models"
	"github.com/akylbek/payment-system/acquirer-gateway/internal/repository"
)

// memRepo keeps orders in memory with the same compare-and-set semantics as
// the Postgres repository.
type memRepo struct {
	mu       sync.Mutex
	orders   map[string]*models.Order
	notes    map[string][]string
	pending  map[string]models.PendingReturn
	failCAS  bool
	casCalls int
}

func newMemRepo(orders ...*models.Order) *memRepo {
	r := &memRepo{
		orders:  make(map[string]*models.Order),
		notes:   make(map[string][]string),
		pending: make(map[string]models.PendingReturn),
	}
	for _, o := range orders {
		r.orders[o.ID] = o
	}
	return r
}

func (r *memRepo) GetByID(_ context.Context, id string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	cp := *o
	cp.Items = append([]models.LineItem(nil), o.Items...)
	_, cp.AwaitingReturn = r.pending[id]
	return &cp, nil
}

func (r *memRepo) FindByTransactionID(ctx context.Context, txID string) ([]*models.Order, error) {
	r.mu.Lock()
	var ids []string
	for id, o := range r.orders {
		if txID != "" && o.TransactionID == txID {
			ids = append(ids, id)
		}
	}
	r.mu.Unlock()

	var out []*models.Order
	for _, id := range ids {
		o, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

func (r *memRepo) TransitionPayment(_ context.Context, id string, from models.PaymentSnapshot, u models.PaymentUpdate) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.casCalls++
	o, ok := r.orders[id]
	if !ok || r.failCAS || o.Status != from.Status || o.ChargeCaptured != from.ChargeCaptured {
		return 0, nil
	}
	o.Status = u.Status
	o.ChargeCaptured = u.ChargeCaptured
	o.TransactionID = u.TransactionID
	o.PaymentMethod = u.PaymentMethod
	if len(u.PaymentResponse) > 0 {
		o.PaymentResponse = u.PaymentResponse
	}
	return 1, nil
}

func (r *memRepo) MarkStockReduced(_ context.Context, id string, reduced bool) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.StockReduced == reduced {
		return 0, nil
	}
	o.StockReduced = reduced
	return 1, nil
}

func (r *memRepo) AddNote(_ context.Context, id, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes[id] = append(r.notes[id], body)
	return nil
}

func (r *memRepo) SetPendingReturn(_ context.Context, id, txID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending[id] = models.PendingReturn{OrderID: id, TransactionID: txID, CreatedAt: time.Now()}
	return nil
}

func (r *memRepo) TakePendingReturn(_ context.Context, id string) (*models.PendingReturn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pr, ok := r.pending[id]
	if !ok {
		return nil, nil
	}
	delete(r.pending, id)
	return &pr, nil
}

func (r *memRepo) ListPendingReturns(_ context.Context, olderThan time.Time) ([]models.PendingReturn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.PendingReturn
	for _, pr := range r.pending {
		if pr.CreatedAt.Before(olderThan) {
			out = append(out, pr)
		}
	}
	return out, nil
}

func (r *memRepo) stored(id string) models.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.orders[id]
}

func (r *memRepo) notesOf(id string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.notes[id]...)
}

type fakeGateway struct {
	mu       sync.Mutex
	SendFunc func(op *gateway.Operation) (*gateway.Response, error)
	sent     []*gateway.Operation
}

func (g *fakeGateway) Send(_ context.Context, op *gateway.Operation) (*gateway.Response, error) {
	g.mu.Lock()
	g.sent = append(g.sent, op)
	g.mu.Unlock()
	return g.SendFunc(op)
}

func (g *fakeGateway) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sent)
}

func respond(code int, txID string) func(*gateway.Operation) (*gateway.Response, error) {
	return func(*gateway.Operation) (*gateway.Response, error) {
		return &gateway.Response{StatusCode: code, TransactionID: txID, Raw: []byte(`{"gw":{}}`)}, nil
	}
}

type fakeInventory struct {
	mu       sync.Mutex
	reduced  [][]models.LineItem
	restored [][]models.LineItem
	err      error
}

func (f *fakeInventory) Reduce(_ context.Context, _ string, items []models.LineItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.reduced = append(f.reduced, items)
	return nil
}

func (f *fakeInventory) Restore(_ context.Context, _ string, items []models.LineItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.restored = append(f.restored, items)
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []models.PaymentEvent
}

func (p *fakePublisher) PublishTransition(_ context.Context, e models.PaymentEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

type fixture struct {
	repo      *memRepo
	gw        *fakeGateway
	inventory *fakeInventory
	events    *fakePublisher
	machine   *StateMachine
	locker    *lock.LocalLocker
}

func newFixture(orders ...*models.Order) *fixture {
	f := &fixture{
		repo:      newMemRepo(orders...),
		gw:        &fakeGateway{},
		inventory: &fakeInventory{},
		events:    &fakePublisher{},
		locker:    lock.NewLocalLocker(),
	}
	f.machine = NewStateMachine(f.repo, f.inventory, f.events)
	return f
}

func newOrder(id string, method models.PaymentMethod) *models.Order {
	return &models.Order{
		ID:            id,
		Number:        "100" + id,
		Status:        models.StatusPending,
		Total:         decimal.RequireFromString("25.50"),
		Currency:      "USD",
		PaymentMethod: method,
		Customer:      models.Customer{Email: "buyer@example.com", IP: "10.0.0.1"},
		Items: []models.LineItem{
			{ProductID: "sku-1", Quantity: 2, ManageStock: true},
			{ProductID: "gift-card", Quantity: 1, ManageStock: false},
		},
	}
}
