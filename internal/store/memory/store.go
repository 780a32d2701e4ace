// Package memory implements the domain stores in process memory. It backs
// the "memory" storage backend and the service tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alanyoungcy/settlement/internal/domain"
)

// Store holds every table behind a single RWMutex. Units of work for the
// same user are serialized by a per-user mutex.
type Store struct {
	mu          sync.RWMutex
	users       map[int64]domain.User
	instruments map[int64]domain.Instrument
	orders      []domain.Order
	orderIdx    map[int64]int
	market      map[int64][]domain.MarketData
	audit       []domain.AuditEntry
	nextOrderID int64
	nextMDID    int64

	locksMu   sync.Mutex
	userLocks map[int64]*sync.Mutex

	// failCreate, when set, is returned by the nth order Create (1-based)
	// of every later unit of work. Test hook.
	failCreate func(n int) error
}

var (
	_ domain.TxManager  = (*Store)(nil)
	_ domain.AuditStore = (*Store)(nil)
)

// New returns an empty Store.
func New() *Store {
	return &Store{
		users:       make(map[int64]domain.User),
		instruments: make(map[int64]domain.Instrument),
		orderIdx:    make(map[int64]int),
		market:      make(map[int64][]domain.MarketData),
		userLocks:   make(map[int64]*sync.Mutex),
	}
}

// AddUser inserts or replaces a user.
func (s *Store) AddUser(u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// AddInstrument inserts or replaces an instrument.
func (s *Store) AddInstrument(inst domain.Instrument) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instruments[inst.ID] = inst
}

// FailCreateWith installs a hook that can fail order inserts inside a unit
// of work. n counts Creates within that unit starting at 1.
func (s *Store) FailCreateWith(fn func(n int) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCreate = fn
}

// Repos returns stores that read and write outside any unit of work.
func (s *Store) Repos() domain.Repos {
	return domain.Repos{
		Users:       userStore{s},
		Instruments: instrumentStore{s},
		Orders:      orderStore{s},
		MarketData:  marketStore{s},
	}
}

// WithinUser runs fn holding the user's lock. Orders created or
// transitioned through tx become visible to others only if fn returns nil.
func (s *Store) WithinUser(ctx context.Context, userID int64, fn func(ctx context.Context, tx domain.Repos) error) error {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	t := &tx{s: s, transitions: make(map[int64]transition)}
	repos := domain.Repos{
		Users:       userStore{s},
		Instruments: instrumentStore{s},
		Orders:      t,
		MarketData:  marketStore{s},
	}
	if err := fn(ctx, repos); err != nil {
		return err
	}
	return t.commit()
}

func (s *Store) userLock(userID int64) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.userLocks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.userLocks[userID] = l
	}
	return l
}

// Orders returns a snapshot of every committed order. Test helper.
func (s *Store) Orders() []domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Order, len(s.orders))
	for i, o := range s.orders {
		out[i] = s.joined(o)
	}
	return out
}

// joined fills in instrument metadata. Caller holds s.mu.
func (s *Store) joined(o domain.Order) domain.Order {
	if inst, ok := s.instruments[o.Instrument.ID]; ok {
		o.Instrument = inst
	}
	return o
}

// Log appends an audit entry.
func (s *Store) Log(_ context.Context, event string, detail map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, domain.AuditEntry{
		ID:        int64(len(s.audit) + 1),
		Event:     event,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

// List returns audit entries newest first.
func (s *Store) List(_ context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.AuditEntry, 0, len(s.audit))
	for i := len(s.audit) - 1; i >= 0; i-- {
		out = append(out, s.audit[i])
	}
	return page(out, opts), nil
}

func page[T any](items []T, opts domain.ListOpts) []T {
	if opts.Offset > 0 {
		if opts.Offset >= len(items) {
			return nil
		}
		items = items[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(items) {
		items = items[:opts.Limit]
	}
	return items
}

type userStore struct{ s *Store }

func (u userStore) GetByID(_ context.Context, id int64) (domain.User, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()
	user, ok := u.s.users[id]
	if !ok {
		return domain.User{}, domain.NotFound("User", id)
	}
	return user, nil
}

type instrumentStore struct{ s *Store }

func (i instrumentStore) GetByID(_ context.Context, id int64) (domain.Instrument, error) {
	i.s.mu.RLock()
	defer i.s.mu.RUnlock()
	inst, ok := i.s.instruments[id]
	if !ok {
		return domain.Instrument{}, domain.NotFound("Instrument", id)
	}
	return inst, nil
}

func (i instrumentStore) GetByKind(_ context.Context, kind string) (domain.Instrument, error) {
	i.s.mu.RLock()
	defer i.s.mu.RUnlock()
	var found []domain.Instrument
	for _, inst := range i.s.instruments {
		if inst.Kind == kind {
			found = append(found, inst)
		}
	}
	if len(found) == 0 {
		return domain.Instrument{}, fmt.Errorf("memory: instrument kind %s: %w", kind, domain.ErrNotFound)
	}
	sort.Slice(found, func(a, b int) bool { return found[a].ID < found[b].ID })
	return found[0], nil
}

type marketStore struct{ s *Store }

func (m marketStore) LatestClose(_ context.Context, instrumentID int64) (domain.MarketData, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	rows := m.s.market[instrumentID]
	if len(rows) == 0 {
		return domain.MarketData{}, fmt.Errorf("memory: market data for instrument %d: %w", instrumentID, domain.ErrNotFound)
	}
	latest := rows[0]
	for _, r := range rows[1:] {
		if r.Date.After(latest.Date) || (r.Date.Equal(latest.Date) && r.ID > latest.ID) {
			latest = r
		}
	}
	return latest, nil
}

func (m marketStore) Insert(_ context.Context, md domain.MarketData) (domain.MarketData, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.nextMDID++
	md.ID = m.s.nextMDID
	m.s.market[md.InstrumentID] = append(m.s.market[md.InstrumentID], md)
	return md, nil
}
