package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/safar/osushi-store/internal/apperr"
	"github.com/safar/osushi-store/internal/logger"
	"github.com/safar/osushi-store/internal/models"
	"github.com/shopspring/decimal"
)

// DefaultKey is the storage key used when a store is not bound to a session.
const DefaultKey = "osushi_cart"

type Op string

const (
	OpAdd            Op = "add"
	OpUpdateQuantity Op = "update_quantity"
	OpRemove         Op = "remove"
	OpLoyalty        Op = "apply_loyalty_points"
	OpDeliveryFee    Op = "set_delivery_fee"
	OpClear          Op = "clear"
)

// Event is delivered to observers after a mutation was persisted.
type Event struct {
	Op   Op
	Key  string
	Cart *Cart
}

type Observer func(ctx context.Context, event Event)

// Store owns the cart of one session. Every mutation loads the persisted cart,
// applies the change, recomputes totals, persists, then notifies observers.
type Store struct {
	storage Storage
	key     string
	logg    *logger.Logger

	mu        sync.Mutex
	nextID    int
	observers map[int]Observer
}

type Option func(*Store)

func WithLogger(logg *logger.Logger) Option {
	return func(s *Store) { s.logg = logg }
}

func WithObserver(fn Observer) Option {
	return func(s *Store) { s.Subscribe(fn) }
}

func NewStore(storage Storage, key string, opts ...Option) *Store {
	if key == "" {
		key = DefaultKey
	}
	s := &Store{
		storage:   storage,
		key:       key,
		logg:      logger.Nop(),
		observers: map[int]Observer{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Key() string {
	return s.key
}

// Subscribe registers fn and returns a func that removes it.
func (s *Store) Subscribe(fn Observer) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.observers[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.observers, id)
	}
}

// Get returns the persisted cart. Absent or unreadable state yields an empty cart.
func (s *Store) Get(ctx context.Context) (*Cart, error) {
	data, found, err := s.storage.Get(ctx, s.key)
	if err != nil {
		return nil, apperr.Persistence("load_cart", err)
	}
	if !found || len(data) == 0 {
		return Empty(), nil
	}

	c := &Cart{}
	if err := json.Unmarshal(data, c); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "cart_key", s.key), "cart.corrupt_state_reset")
		return Empty(), nil
	}
	if c.Items == nil {
		c.Items = []LineItem{}
	}
	return c, nil
}

// ItemCount reads the persisted cart on every call.
func (s *Store) ItemCount(ctx context.Context) (int, error) {
	c, err := s.Get(ctx)
	if err != nil {
		return 0, err
	}
	return c.ItemCount(), nil
}

func (s *Store) AddItem(ctx context.Context, product models.ProductWithVariants, variantID string, quantity int, instructions string) (*Cart, error) {
	if quantity < 1 {
		return nil, apperr.New(apperr.CodeValidation, fmt.Sprintf("quantity must be a positive integer, got %d", quantity))
	}
	return s.mutate(ctx, OpAdd, func(c *Cart) bool {
		c.add(product, variantID, quantity, instructions)
		return true
	})
}

// UpdateItemQuantity sets a line's quantity; zero or less removes the line.
// Unknown lines leave the persisted cart untouched.
func (s *Store) UpdateItemQuantity(ctx context.Context, lineID string, quantity int) (*Cart, error) {
	return s.mutate(ctx, OpUpdateQuantity, func(c *Cart) bool {
		return c.setQuantity(lineID, quantity)
	})
}

func (s *Store) RemoveItem(ctx context.Context, lineID string) (*Cart, error) {
	return s.mutate(ctx, OpRemove, func(c *Cart) bool {
		return c.remove(lineID)
	})
}

// ApplyLoyaltyPoints replaces the redeemed points; it does not check the balance.
func (s *Store) ApplyLoyaltyPoints(ctx context.Context, points int) (*Cart, error) {
	if points < 0 {
		return nil, apperr.New(apperr.CodeValidation, "loyalty points cannot be negative")
	}
	return s.mutate(ctx, OpLoyalty, func(c *Cart) bool {
		c.applyLoyaltyPoints(points)
		return true
	})
}

func (s *Store) SetDeliveryFee(ctx context.Context, fee decimal.Decimal) (*Cart, error) {
	if fee.IsNegative() {
		return nil, apperr.New(apperr.CodeValidation, "delivery fee cannot be negative")
	}
	return s.mutate(ctx, OpDeliveryFee, func(c *Cart) bool {
		c.DeliveryFee = fee
		return true
	})
}

func (s *Store) Clear(ctx context.Context) (*Cart, error) {
	empty := Empty()
	empty.recalculate()
	if err := s.save(ctx, empty); err != nil {
		return nil, err
	}
	s.notify(ctx, OpClear, empty)
	return empty, nil
}

func (s *Store) mutate(ctx context.Context, op Op, apply func(*Cart) bool) (*Cart, error) {
	c, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}

	changed := apply(c)
	c.recalculate()
	if !changed {
		return c, nil
	}

	if err := s.save(ctx, c); err != nil {
		return nil, err
	}
	s.notify(ctx, op, c)
	return c, nil
}

func (s *Store) save(ctx context.Context, c *Cart) error {
	data, err := json.Marshal(c)
	if err != nil {
		return apperr.Wrap(apperr.CodeInternal, err, "encode cart")
	}
	if err := s.storage.Set(ctx, s.key, data); err != nil {
		return apperr.Persistence("persist_cart", err)
	}
	return nil
}

func (s *Store) notify(ctx context.Context, op Op, c *Cart) {
	s.mu.Lock()
	observers := make([]Observer, 0, len(s.observers))
	for id := 0; id < s.nextID; id++ {
		if fn, ok := s.observers[id]; ok {
			observers = append(observers, fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range observers {
		fn(ctx, Event{Op: op, Key: s.key, Cart: c})
	}
}
