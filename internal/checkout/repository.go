package checkout

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/safar/osushi-store/internal/database"
	"github.com/safar/osushi-store/internal/models"
	"github.com/safar/osushi-store/internal/store"
)

// Tx is the set of writes performed atomically when an order is finalized.
type Tx interface {
	InsertOrder(ctx context.Context, order *models.Order) error
	InsertOrderItems(ctx context.Context, orderID uuid.UUID, items []models.OrderItem) error
	LockUserLoyalty(ctx context.Context, userID uuid.UUID) (points, version int, err error)
	UpdateUserLoyalty(ctx context.Context, userID uuid.UUID, points int, tier models.LoyaltyTier, version int) error
	InsertLoyaltyTransaction(ctx context.Context, entry *models.LoyaltyTransaction) error
}

// Repository is the persistence port of the order service.
type Repository interface {
	// InTx runs fn in one transaction; fn's error rolls everything back.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListUserOrders(ctx context.Context, userID uuid.UUID, cursor string, limit int) (*store.CursorPage[models.Order], error)
	ListOrders(ctx context.Context, status *models.OrderStatus, page, pageSize int) (*store.OffsetPage[models.Order], error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, status models.OrderStatus, version int) error

	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	ListLoyaltyTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]models.LoyaltyTransaction, error)
}

// SQLRepository implements Repository over Postgres. Finalization runs
// serializable and is retried on serialization failures and deadlocks.
type SQLRepository struct {
	db   *sql.DB
	opts database.TxOptions
}

func NewSQLRepository(db *sql.DB) *SQLRepository {
	return &SQLRepository{
		db: db,
		opts: database.TxOptions{
			IsolationLevel: sql.LevelSerializable,
			MaxRetries:     3,
		},
	}
}

func (r *SQLRepository) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return database.WithRetry(ctx, r.db, r.opts, func(tx *sql.Tx) error {
		return fn(ctx, sqlTx{tx: tx})
	})
}

func (r *SQLRepository) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return store.GetOrder(ctx, r.db, id)
}

func (r *SQLRepository) ListUserOrders(ctx context.Context, userID uuid.UUID, cursor string, limit int) (*store.CursorPage[models.Order], error) {
	return store.ListOrdersCursor(ctx, r.db, userID, cursor, limit)
}

func (r *SQLRepository) ListOrders(ctx context.Context, status *models.OrderStatus, page, pageSize int) (*store.OffsetPage[models.Order], error) {
	return store.ListOrders(ctx, r.db, status, page, pageSize)
}

func (r *SQLRepository) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status models.OrderStatus, version int) error {
	return store.UpdateOrderStatus(ctx, r.db, id, status, version)
}

func (r *SQLRepository) CreateUser(ctx context.Context, user *models.User) error {
	return store.CreateUser(ctx, r.db, user)
}

func (r *SQLRepository) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return store.GetUser(ctx, r.db, id)
}

func (r *SQLRepository) ListLoyaltyTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]models.LoyaltyTransaction, error) {
	return store.ListLoyaltyTransactions(ctx, r.db, userID, limit)
}

type sqlTx struct {
	tx *sql.Tx
}

func (t sqlTx) InsertOrder(ctx context.Context, order *models.Order) error {
	return store.InsertOrder(ctx, t.tx, order)
}

func (t sqlTx) InsertOrderItems(ctx context.Context, orderID uuid.UUID, items []models.OrderItem) error {
	return store.InsertOrderItems(ctx, t.tx, orderID, items)
}

func (t sqlTx) LockUserLoyalty(ctx context.Context, userID uuid.UUID) (int, int, error) {
	return store.LockUserLoyalty(ctx, t.tx, userID)
}

func (t sqlTx) UpdateUserLoyalty(ctx context.Context, userID uuid.UUID, points int, tier models.LoyaltyTier, version int) error {
	return store.UpdateUserLoyalty(ctx, t.tx, userID, points, tier, version)
}

func (t sqlTx) InsertLoyaltyTransaction(ctx context.Context, entry *models.LoyaltyTransaction) error {
	return store.InsertLoyaltyTransaction(ctx, t.tx, entry)
}
