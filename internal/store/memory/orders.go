package memory

import (
	"context"
	"time"

	"github.com/alanyoungcy/settlement/internal/domain"
)

type orderStore struct{ s *Store }

func (o orderStore) Create(_ context.Context, order domain.Order) (domain.Order, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	o.s.nextOrderID++
	order.ID = o.s.nextOrderID
	o.s.insert(order)
	return o.s.joined(order), nil
}

func (o orderStore) GetByID(_ context.Context, id int64) (domain.Order, error) {
	o.s.mu.RLock()
	defer o.s.mu.RUnlock()
	i, ok := o.s.orderIdx[id]
	if !ok {
		return domain.Order{}, domain.NotFound("Order", id)
	}
	return o.s.joined(o.s.orders[i]), nil
}

func (o orderStore) ListFilled(_ context.Context, userID int64) ([]domain.Order, error) {
	o.s.mu.RLock()
	defer o.s.mu.RUnlock()
	return o.s.filled(userID), nil
}

func (o orderStore) Transition(_ context.Context, id int64, from, to domain.OrderStatus, at time.Time) (bool, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	i, ok := o.s.orderIdx[id]
	if !ok {
		return false, domain.NotFound("Order", id)
	}
	if o.s.orders[i].Status != from {
		return false, nil
	}
	o.s.orders[i].Status = to
	o.s.orders[i].Timestamp = at
	return true, nil
}

func (o orderStore) ListBetween(_ context.Context, from, to time.Time) ([]domain.Order, error) {
	o.s.mu.RLock()
	defer o.s.mu.RUnlock()
	var out []domain.Order
	for _, ord := range o.s.orders {
		if !ord.Timestamp.Before(from) && ord.Timestamp.Before(to) {
			out = append(out, o.s.joined(ord))
		}
	}
	return out, nil
}

// insert appends order. Caller holds s.mu for writing.
func (s *Store) insert(order domain.Order) {
	s.orderIdx[order.ID] = len(s.orders)
	s.orders = append(s.orders, order)
}

// filled returns the user's committed FILLED orders. Caller holds s.mu.
func (s *Store) filled(userID int64) []domain.Order {
	var out []domain.Order
	for _, ord := range s.orders {
		if ord.UserID == userID && ord.Status == domain.OrderStatusFilled {
			out = append(out, s.joined(ord))
		}
	}
	return out
}

type transition struct {
	from, to domain.OrderStatus
	at       time.Time
}

// tx stages order writes for one unit of work.
type tx struct {
	s           *Store
	pending     []domain.Order
	transitions map[int64]transition
	creates     int
}

func (t *tx) Create(_ context.Context, order domain.Order) (domain.Order, error) {
	t.creates++
	t.s.mu.Lock()
	hook := t.s.failCreate
	if hook != nil {
		if err := hook(t.creates); err != nil {
			t.s.mu.Unlock()
			return domain.Order{}, err
		}
	}
	t.s.nextOrderID++
	order.ID = t.s.nextOrderID
	order = t.s.joined(order)
	t.s.mu.Unlock()

	t.pending = append(t.pending, order)
	return order, nil
}

func (t *tx) GetByID(ctx context.Context, id int64) (domain.Order, error) {
	for _, p := range t.pending {
		if p.ID == id {
			return p, nil
		}
	}
	order, err := orderStore{t.s}.GetByID(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	if tr, ok := t.transitions[id]; ok {
		order.Status = tr.to
		order.Timestamp = tr.at
	}
	return order, nil
}

func (t *tx) ListFilled(_ context.Context, userID int64) ([]domain.Order, error) {
	t.s.mu.RLock()
	out := t.s.filled(userID)
	t.s.mu.RUnlock()
	for _, p := range t.pending {
		if p.UserID == userID && p.Status == domain.OrderStatusFilled {
			out = append(out, p)
		}
	}
	return out, nil
}

func (t *tx) Transition(ctx context.Context, id int64, from, to domain.OrderStatus, at time.Time) (bool, error) {
	for i, p := range t.pending {
		if p.ID == id {
			if p.Status != from {
				return false, nil
			}
			t.pending[i].Status = to
			t.pending[i].Timestamp = at
			return true, nil
		}
	}
	current, err := t.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if current.Status != from {
		return false, nil
	}
	t.transitions[id] = transition{from: from, to: to, at: at}
	return true, nil
}

func (t *tx) ListBetween(ctx context.Context, from, to time.Time) ([]domain.Order, error) {
	out, err := orderStore{t.s}.ListBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}
	for _, p := range t.pending {
		if !p.Timestamp.Before(from) && p.Timestamp.Before(to) {
			out = append(out, p)
		}
	}
	return out, nil
}

// commit applies staged writes. A staged transition whose source status
// changed underneath fails the whole unit.
func (t *tx) commit() error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	for id, tr := range t.transitions {
		i := t.s.orderIdx[id]
		if cur := t.s.orders[i].Status; cur != tr.from {
			return &domain.TransitionError{Status: cur}
		}
	}
	for id, tr := range t.transitions {
		i := t.s.orderIdx[id]
		t.s.orders[i].Status = tr.to
		t.s.orders[i].Timestamp = tr.at
	}
	for _, p := range t.pending {
		t.s.insert(p)
	}
	return nil
}

var (
	_ domain.OrderStore = orderStore{}
	_ domain.OrderStore = (*tx)(nil)
)
