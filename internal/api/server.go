// Package api exposes the storefront over HTTP: catalog reads, the session
// cart, checkout, order tracking and loyalty accounts.
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/safar/osushi-store/internal/apperr"
	"github.com/safar/osushi-store/internal/cart"
	"github.com/safar/osushi-store/internal/checkout"
	"github.com/safar/osushi-store/internal/logger"
	"github.com/safar/osushi-store/internal/models"
	"github.com/safar/osushi-store/internal/store"
)

const (
	cartSessionHeader = "X-Cart-Session"
	userIDHeader      = "X-User-ID"
)

// Catalog is the read side of the menu.
type Catalog interface {
	ListCategories(ctx context.Context) []models.Category
	ListProductsWithVariants(ctx context.Context, filter store.ProductFilter) []models.ProductWithVariants
	GetProduct(ctx context.Context, id uuid.UUID) (models.ProductWithVariants, error)
	DeliveryFee(ctx context.Context, fallback decimal.Decimal) decimal.Decimal
}

// Orders is the order and loyalty service.
type Orders interface {
	CreateOrder(ctx context.Context, carts *cart.Store, req checkout.Request) (*models.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListUserOrders(ctx context.Context, userID uuid.UUID, cursor string, limit int) (*store.CursorPage[models.Order], error)
	ListOrders(ctx context.Context, status *models.OrderStatus, page, pageSize int) (*store.OffsetPage[models.Order], error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, status models.OrderStatus) (*models.Order, error)
	CreateUser(ctx context.Context, in checkout.NewUser) (*models.User, error)
	LoyaltyState(ctx context.Context, userID uuid.UUID) (*checkout.LoyaltyState, error)
	LoyaltyHistory(ctx context.Context, userID uuid.UUID, limit int) ([]models.LoyaltyTransaction, error)
}

// CartOpener returns the cart store of a session.
type CartOpener func(session string) *cart.Store

type Options struct {
	Catalog            Catalog
	Orders             Orders
	Carts              CartOpener
	Logger             *logger.Logger
	Metrics            http.Handler
	DefaultDeliveryFee decimal.Decimal
	OrderRatePerMinute int
	OrderRateBurst     int
}

type handler struct {
	catalog    Catalog
	orders     Orders
	carts      CartOpener
	logg       *logger.Logger
	defaultFee decimal.Decimal
}

func NewRouter(opts Options) http.Handler {
	logg := opts.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	h := &handler{
		catalog:    opts.Catalog,
		orders:     opts.Orders,
		carts:      opts.Carts,
		logg:       logg,
		defaultFee: opts.DefaultDeliveryFee,
	}
	limiter := newClientLimiter(opts.OrderRatePerMinute, opts.OrderRateBurst)

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(requestID(logg))
	r.Use(logging(logg))
	r.Use(recoverer(logg))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeSuccess(w, map[string]string{"status": "ok"})
	})
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics)
	}

	r.Get("/categories", h.listCategories)
	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.listProducts)
		r.Get("/{productID}", h.getProduct)
	})

	r.Route("/cart", func(r chi.Router) {
		r.Get("/", h.getCart)
		r.Delete("/", h.clearCart)
		r.Get("/count", h.cartCount)
		r.Post("/items", h.addCartItem)
		r.Patch("/items/{lineID}", h.updateCartItem)
		r.Delete("/items/{lineID}", h.removeCartItem)
		r.Put("/loyalty", h.applyLoyalty)
		r.Put("/order-type", h.setOrderType)
	})

	r.Route("/orders", func(r chi.Router) {
		r.With(rateLimit(limiter, logg)).Post("/", h.createOrder)
		r.Get("/", h.listOrders)
		r.Get("/{orderID}", h.getOrder)
		r.Patch("/{orderID}/status", h.updateOrderStatus)
	})

	r.Route("/users", func(r chi.Router) {
		r.Post("/", h.createUser)
		r.Get("/{userID}/orders", h.listUserOrders)
		r.Get("/{userID}/loyalty", h.loyaltyState)
		r.Get("/{userID}/loyalty/transactions", h.loyaltyHistory)
	})

	return r
}

// cartFor opens the cart named by the X-Cart-Session header.
func (h *handler) cartFor(r *http.Request) (*cart.Store, context.Context, error) {
	session := strings.TrimSpace(r.Header.Get(cartSessionHeader))
	if session == "" {
		return nil, r.Context(), apperr.New(apperr.CodeValidation, cartSessionHeader+" header is required")
	}
	ctx := h.logg.WithCartSession(r.Context(), session)
	return h.carts(session), ctx, nil
}

// userFor reads the authenticated user id; a missing header means guest.
func userFor(r *http.Request) (*uuid.UUID, error) {
	raw := strings.TrimSpace(r.Header.Get(userIDHeader))
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeValidation, err, "invalid "+userIDHeader+" header")
	}
	return &id, nil
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, apperr.Wrap(apperr.CodeValidation, err, "invalid "+name)
	}
	return id, nil
}
