package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safar/osushi-store/internal/apperr"
	"github.com/safar/osushi-store/internal/cart"
	"github.com/safar/osushi-store/internal/checkout"
	"github.com/safar/osushi-store/internal/models"
	"github.com/safar/osushi-store/internal/store"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fakeCatalog struct {
	products   map[uuid.UUID]models.ProductWithVariants
	fee        decimal.Decimal
	lastFilter store.ProductFilter
}

func (f *fakeCatalog) ListCategories(ctx context.Context) []models.Category {
	return []models.Category{{ID: uuid.New(), Name: "Sashimi", IsActive: true}}
}

func (f *fakeCatalog) ListProductsWithVariants(ctx context.Context, filter store.ProductFilter) []models.ProductWithVariants {
	f.lastFilter = filter
	out := []models.ProductWithVariants{}
	for _, p := range f.products {
		out = append(out, p)
	}
	return out
}

func (f *fakeCatalog) GetProduct(ctx context.Context, id uuid.UUID) (models.ProductWithVariants, error) {
	p, ok := f.products[id]
	if !ok {
		return models.ProductWithVariants{}, apperr.New(apperr.CodeNotFound, "product not found")
	}
	return p, nil
}

func (f *fakeCatalog) DeliveryFee(ctx context.Context, fallback decimal.Decimal) decimal.Decimal {
	if f.fee.IsZero() {
		return fallback
	}
	return f.fee
}

type fakeOrders struct {
	err       error
	lastReq   checkout.Request
	lastTotal decimal.Decimal
}

func (f *fakeOrders) CreateOrder(ctx context.Context, carts *cart.Store, req checkout.Request) (*models.Order, error) {
	f.lastReq = req
	c, err := carts.Get(ctx)
	if err != nil {
		return nil, err
	}
	f.lastTotal = c.Total
	if f.err != nil {
		return nil, f.err
	}
	return &models.Order{ID: uuid.New(), OrderNumber: "OS241215042", Status: models.OrderStatusPending, TotalAmount: c.Total}, nil
}

func (f *fakeOrders) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return nil, apperr.New(apperr.CodeNotFound, "order not found")
}

func (f *fakeOrders) ListUserOrders(ctx context.Context, userID uuid.UUID, cursor string, limit int) (*store.CursorPage[models.Order], error) {
	return &store.CursorPage[models.Order]{Items: []models.Order{}}, nil
}

func (f *fakeOrders) ListOrders(ctx context.Context, status *models.OrderStatus, page, pageSize int) (*store.OffsetPage[models.Order], error) {
	return &store.OffsetPage[models.Order]{Items: []models.Order{}, Page: page, PageSize: pageSize}, nil
}

func (f *fakeOrders) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status models.OrderStatus) (*models.Order, error) {
	return &models.Order{ID: id, Status: status}, nil
}

func (f *fakeOrders) CreateUser(ctx context.Context, in checkout.NewUser) (*models.User, error) {
	return &models.User{ID: uuid.New(), Email: in.Email, LoyaltyTier: models.LoyaltyTierBronze}, nil
}

func (f *fakeOrders) LoyaltyState(ctx context.Context, userID uuid.UUID) (*checkout.LoyaltyState, error) {
	return &checkout.LoyaltyState{UserID: userID, Points: 517, Tier: models.LoyaltyTierSilver}, nil
}

func (f *fakeOrders) LoyaltyHistory(ctx context.Context, userID uuid.UUID, limit int) ([]models.LoyaltyTransaction, error) {
	return []models.LoyaltyTransaction{}, nil
}

type testServer struct {
	handler http.Handler
	catalog *fakeCatalog
	orders  *fakeOrders
	product models.ProductWithVariants
	storage *cart.MemoryStorage
}

func newTestServer(t *testing.T, opts ...func(*Options)) *testServer {
	t.Helper()
	id := uuid.New()
	product := models.ProductWithVariants{
		Product: models.Product{ID: id, Name: "Sashimi Saumon", BasePrice: dec("12.90"), IsAvailable: true},
		Variants: []models.ProductVariant{
			{ID: uuid.New(), ProductID: id, Name: "Large (12 pièces)", PriceModifier: dec("12.00"), IsAvailable: true},
		},
	}
	ts := &testServer{
		catalog: &fakeCatalog{products: map[uuid.UUID]models.ProductWithVariants{id: product}},
		orders:  &fakeOrders{},
		product: product,
		storage: cart.NewMemoryStorage(),
	}
	o := Options{
		Catalog: ts.catalog,
		Orders:  ts.orders,
		Carts: func(session string) *cart.Store {
			return cart.NewStore(ts.storage, "cart:"+session)
		},
		DefaultDeliveryFee: dec("2.50"),
	}
	for _, fn := range opts {
		fn(&o)
	}
	ts.handler = NewRouter(o)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func session(id string) map[string]string {
	return map[string]string{cartSessionHeader: id}
}

func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var env struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env.Data
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apiError {
	t.Helper()
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env.Error
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestCartFlow(t *testing.T) {
	ts := newTestServer(t)
	h := session("abc")

	rec := ts.do(t, http.MethodPost, "/cart/items", map[string]any{"product_id": ts.product.ID, "quantity": 2}, h)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	c := decodeData[cart.Cart](t, rec)
	assert.True(t, c.Subtotal.Equal(dec("25.80")))

	rec = ts.do(t, http.MethodPost, "/cart/items", map[string]any{
		"product_id": ts.product.ID,
		"variant_id": ts.product.Variants[0].ID.String(),
		"quantity":   1,
	}, h)
	require.Equal(t, http.StatusCreated, rec.Code)
	c = decodeData[cart.Cart](t, rec)
	require.Len(t, c.Items, 2)
	assert.True(t, c.Items[1].UnitPrice.Equal(dec("24.90")))

	rec = ts.do(t, http.MethodGet, "/cart/count", nil, h)
	assert.Equal(t, 3, decodeData[map[string]int](t, rec)["count"])

	rec = ts.do(t, http.MethodPatch, "/cart/items/"+c.Items[0].ID, map[string]any{"quantity": 0}, h)
	require.Equal(t, http.StatusOK, rec.Code)
	c = decodeData[cart.Cart](t, rec)
	assert.True(t, c.Subtotal.Equal(dec("24.90")))

	rec = ts.do(t, http.MethodPut, "/cart/loyalty", map[string]any{"points": 100}, h)
	require.Equal(t, http.StatusOK, rec.Code)
	c = decodeData[cart.Cart](t, rec)
	assert.True(t, c.Total.Equal(dec("23.90")))

	rec = ts.do(t, http.MethodDelete, "/cart", nil, h)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = ts.do(t, http.MethodGet, "/cart", nil, h)
	c = decodeData[cart.Cart](t, rec)
	assert.Empty(t, c.Items)
	assert.True(t, c.Total.IsZero())
}

func TestCartRequiresSession(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/cart", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(apperr.CodeValidation), decodeError(t, rec).Code)
}

func TestAddItemValidation(t *testing.T) {
	ts := newTestServer(t)
	h := session("abc")

	rec := ts.do(t, http.MethodPost, "/cart/items", map[string]any{"product_id": ts.product.ID, "quantity": 0}, h)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "is required", decodeError(t, rec).Details["quantity"])

	rec = ts.do(t, http.MethodPost, "/cart/items", map[string]any{"product_id": uuid.New(), "quantity": 1}, h)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodPost, "/cart/items", map[string]any{"product_id": ts.product.ID, "quantity": 1, "color": "red"}, h)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func orderBody(orderType string) map[string]any {
	return map[string]any{
		"customer": map[string]any{
			"first_name": "Yuki",
			"last_name":  "Tanaka",
			"phone":      "0612345678",
		},
		"order_type":       orderType,
		"delivery_address": "12 rue de la Paix, Paris",
	}
}

func TestCreateOrderPassesUserAndDeliveryFee(t *testing.T) {
	ts := newTestServer(t)
	ts.catalog.fee = dec("3.50")
	userID := uuid.New()
	h := map[string]string{cartSessionHeader: "abc", userIDHeader: userID.String()}

	rec := ts.do(t, http.MethodPost, "/cart/items", map[string]any{"product_id": ts.product.ID, "quantity": 1}, h)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(t, http.MethodPost, "/orders", orderBody("delivery"), h)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	order := decodeData[models.Order](t, rec)
	assert.Equal(t, "OS241215042", order.OrderNumber)

	require.NotNil(t, ts.orders.lastReq.UserID)
	assert.Equal(t, userID, *ts.orders.lastReq.UserID)
	assert.True(t, ts.orders.lastTotal.Equal(dec("16.40")))
}

func TestCreateOrderRejectsBadUserHeader(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/orders", orderBody("takeaway"), map[string]string{cartSessionHeader: "abc", userIDHeader: "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateOrderPersistenceFailure(t *testing.T) {
	ts := newTestServer(t)
	ts.orders.err = apperr.Persistence("insert_order_items", assert.AnError)

	rec := ts.do(t, http.MethodPost, "/orders", orderBody("takeaway"), session("abc"))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	apiErr := decodeError(t, rec)
	assert.Equal(t, string(apperr.CodePersistence), apiErr.Code)
	assert.True(t, apiErr.Retryable)
	assert.Equal(t, "insert_order_items", apiErr.Details["step"])
	assert.NotContains(t, rec.Body.String(), assert.AnError.Error())
}

func TestCreateOrderRateLimited(t *testing.T) {
	ts := newTestServer(t, func(o *Options) {
		o.OrderRatePerMinute = 1
		o.OrderRateBurst = 1
	})

	rec := ts.do(t, http.MethodPost, "/orders", orderBody("takeaway"), session("abc"))
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(t, http.MethodPost, "/orders", orderBody("takeaway"), session("abc"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, string(apperr.CodeRateLimited), decodeError(t, rec).Code)
}

func TestListProductsFilters(t *testing.T) {
	ts := newTestServer(t)
	categoryID := uuid.New()

	rec := ts.do(t, http.MethodGet, "/products?popular=true&q=saumon&category_id="+categoryID.String(), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeData[[]models.ProductWithVariants](t, rec), 1)

	assert.True(t, ts.catalog.lastFilter.OnlyAvailable)
	assert.True(t, ts.catalog.lastFilter.OnlyPopular)
	assert.Equal(t, "saumon", ts.catalog.lastFilter.Search)
	assert.Equal(t, categoryID, *ts.catalog.lastFilter.CategoryID)

	rec = ts.do(t, http.MethodGet, "/products?category_id=sushi", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOrderRoutes(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/orders/not-a-uuid", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/orders/"+uuid.NewString(), nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodPatch, "/orders/"+uuid.NewString()+"/status", map[string]any{"status": "confirmed"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.OrderStatusConfirmed, decodeData[models.Order](t, rec).Status)

	rec = ts.do(t, http.MethodGet, "/orders?status=shipped", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/orders?page=2&page_size=10", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decodeData[store.OffsetPage[models.Order]](t, rec).Page)
}

func TestUserRoutes(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/users", map[string]any{"email": "hana@example.com", "first_name": "Hana", "last_name": "Sato"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	userID := uuid.NewString()
	rec = ts.do(t, http.MethodGet, "/users/"+userID+"/loyalty", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	state := decodeData[checkout.LoyaltyState](t, rec)
	assert.Equal(t, models.LoyaltyTierSilver, state.Tier)

	rec = ts.do(t, http.MethodGet, "/users/"+userID+"/orders?limit=abc", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/users/"+userID+"/loyalty/transactions", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRecovererTurnsPanicInto500(t *testing.T) {
	ts := newTestServer(t, func(o *Options) { o.Carts = func(string) *cart.Store { panic("storage gone") } })
	rec := ts.do(t, http.MethodGet, "/cart", nil, session("abc"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, string(apperr.CodeInternal), decodeError(t, rec).Code)
}
