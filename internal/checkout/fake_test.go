package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/safar/osushi-store/internal/database"
	"github.com/safar/osushi-store/internal/models"
	"github.com/safar/osushi-store/internal/store"
)

var errBoom = errors.New("connection reset by peer")

// fakeRepo keeps rows in memory and applies a transaction's writes only when
// its function returns nil.
type fakeRepo struct {
	mu       sync.Mutex
	orders   map[uuid.UUID]*models.Order
	items    map[uuid.UUID][]models.OrderItem
	users    map[uuid.UUID]*models.User
	ledger   []models.LoyaltyTransaction
	taken    map[string]bool
	failStep string
	inTx     int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		orders: map[uuid.UUID]*models.Order{},
		items:  map[uuid.UUID][]models.OrderItem{},
		users:  map[uuid.UUID]*models.User{},
		taken:  map[string]bool{},
	}
}

func (r *fakeRepo) addUser(points int) uuid.UUID {
	id := uuid.New()
	r.users[id] = &models.User{ID: id, Email: id.String() + "@example.com", LoyaltyPoints: points, LoyaltyTier: models.LoyaltyTierBronze, Version: 1}
	return id
}

type fakeTx struct {
	repo    *fakeRepo
	pending []func()
}

func (r *fakeRepo) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inTx++

	tx := &fakeTx{repo: r}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for _, apply := range tx.pending {
		apply()
	}
	return nil
}

func (t *fakeTx) InsertOrder(ctx context.Context, order *models.Order) error {
	if t.repo.failStep == StepInsertOrder {
		return errBoom
	}
	if t.repo.taken[order.OrderNumber] {
		return fmt.Errorf("insert order %s: %w", order.OrderNumber, database.ErrOrderNumberTaken)
	}
	order.ID = uuid.New()
	order.Version = 1
	order.CreatedAt = time.Now()
	snapshot := *order
	t.pending = append(t.pending, func() {
		t.repo.orders[snapshot.ID] = &snapshot
		t.repo.taken[snapshot.OrderNumber] = true
	})
	return nil
}

func (t *fakeTx) InsertOrderItems(ctx context.Context, orderID uuid.UUID, items []models.OrderItem) error {
	if t.repo.failStep == StepInsertOrderItems {
		return errBoom
	}
	rows := make([]models.OrderItem, len(items))
	for i := range items {
		items[i].ID = uuid.New()
		items[i].OrderID = orderID
		rows[i] = items[i]
	}
	t.pending = append(t.pending, func() { t.repo.items[orderID] = rows })
	return nil
}

func (t *fakeTx) LockUserLoyalty(ctx context.Context, userID uuid.UUID) (int, int, error) {
	if t.repo.failStep == StepReadBalance {
		return 0, 0, errBoom
	}
	u, ok := t.repo.users[userID]
	if !ok {
		return 0, 0, database.ErrUserNotFound
	}
	return u.LoyaltyPoints, u.Version, nil
}

func (t *fakeTx) UpdateUserLoyalty(ctx context.Context, userID uuid.UUID, points int, tier models.LoyaltyTier, version int) error {
	if t.repo.failStep == StepUpdateBalance {
		return errBoom
	}
	t.pending = append(t.pending, func() {
		u := t.repo.users[userID]
		u.LoyaltyPoints = points
		u.LoyaltyTier = tier
		u.Version = version + 1
	})
	return nil
}

func (t *fakeTx) InsertLoyaltyTransaction(ctx context.Context, entry *models.LoyaltyTransaction) error {
	if t.repo.failStep == StepInsertTransaction {
		return errBoom
	}
	entry.ID = uuid.New()
	row := *entry
	t.pending = append(t.pending, func() { t.repo.ledger = append(t.repo.ledger, row) })
	return nil
}

func (r *fakeRepo) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, database.ErrOrderNotFound
	}
	out := *o
	out.Items = r.items[id]
	return &out, nil
}

func (r *fakeRepo) ListUserOrders(ctx context.Context, userID uuid.UUID, cursor string, limit int) (*store.CursorPage[models.Order], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	page := &store.CursorPage[models.Order]{Items: []models.Order{}}
	for _, o := range r.orders {
		if o.UserID.Valid && o.UserID.UUID == userID {
			page.Items = append(page.Items, *o)
		}
	}
	return page, nil
}

func (r *fakeRepo) ListOrders(ctx context.Context, status *models.OrderStatus, page, pageSize int) (*store.OffsetPage[models.Order], error) {
	return nil, errBoom
}

func (r *fakeRepo) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status models.OrderStatus, version int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.Version != version {
		return database.ErrOptimisticLockFailed
	}
	o.Status = status
	o.Version++
	return nil
}

func (r *fakeRepo) CreateUser(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return errors.New("duplicate email")
		}
	}
	user.ID = uuid.New()
	user.LoyaltyTier = models.LoyaltyTierBronze
	user.Version = 1
	stored := *user
	r.users[user.ID] = &stored
	return nil
}

func (r *fakeRepo) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, database.ErrUserNotFound
	}
	out := *u
	return &out, nil
}

func (r *fakeRepo) ListLoyaltyTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]models.LoyaltyTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.LoyaltyTransaction{}
	for i := len(r.ledger) - 1; i >= 0; i-- {
		if r.ledger[i].UserID == userID {
			out = append(out, r.ledger[i])
		}
	}
	return out, nil
}
