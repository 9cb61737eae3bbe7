package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/safar/osushi-store/internal/apperr"
	"github.com/safar/osushi-store/internal/models"
)

type addItemRequest struct {
	ProductID           uuid.UUID `json:"product_id" validate:"required"`
	VariantID           string    `json:"variant_id" validate:"max=64"`
	Quantity            int       `json:"quantity" validate:"required,min=1,max=99"`
	SpecialInstructions string    `json:"special_instructions" validate:"max=500"`
}

type updateItemRequest struct {
	Quantity *int `json:"quantity" validate:"required,max=99"`
}

type loyaltyRequest struct {
	Points *int `json:"points" validate:"required,gte=0"`
}

type orderTypeRequest struct {
	OrderType models.OrderType `json:"order_type" validate:"required,oneof=dine_in takeaway delivery"`
}

func (h *handler) getCart(w http.ResponseWriter, r *http.Request) {
	carts, ctx, err := h.cartFor(r)
	if err != nil {
		writeError(ctx, h.logg, w, err)
		return
	}
	c, err := carts.Get(ctx)
	if err != nil {
		writeError(ctx, h.logg, w, err)
		return
	}
	writeSuccess(w, c)
}

func (h *handler) cartCount(w http.ResponseWriter, r *http.Request) {
	carts, ctx, err := h.cartFor(r)
	if err != nil {
		writeError(ctx, h.logg, w, err)
		return
	}
	n, err := carts.ItemCount(ctx)
	if err != nil {
		writeError(ctx, h.logg, w, err)
		return
	}
	writeSuccess(w, map[string]int{"count": n})
}

func (h *handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	carts, ctx, err := h.cartFor(r)
	if err != nil {
		writeError(ctx, h.logg, w, err)
		return
	}
	var req addItemRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeError(ctx, h.logg, w, err)
		return
	}

	product, err := h.catalog.GetProduct(ctx, req.ProductID)
	if err != nil {
		writeError(ctx, h.logg, w, err)
		return
	}
	if !product.IsAvailable {
		writeError(ctx, h.logg, w, apperr.New(apperr.CodeValidation, "product is not available").
			WithDetail("product_id", product.ID.String()))
		return
	}

	c, err := carts.AddItem(ctx, product, req.VariantID, req.Quantity, req.SpecialInstructions)
	if err != nil {
		writeError(ctx, h.logg, w, err)
		return
	}
	writeSuccessStatus(w, http.StatusCreated, c)
}

func (h *handler) updateCartItem(w http.ResponseWriter, r *http.Request) {
	carts, ctx, err := h.cartFor(r)
	if err != nil {
		writeError(ctx, h.logg, w, err)
		return
	}
	var req updateItemRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeError(ctx, h.logg, w, err)
		return
	}
	c, err := carts.UpdateItemQuantity(ctx, chi.URLParam(r, "lineID"), *req.Quantity)
	if err != nil {
		writeError(ctx, h.logg, w, err)
		return
	}
	writeSuccess(w, c)
}

func (h *handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	carts, ctx, err := h.cartFor(r)
	if err != nil {
		writeError(ctx, h.logg, w, err)
		return
	}
	c, err := carts.RemoveItem(ctx, chi.URLParam(r, "lineID"))
	if err != nil {
		writeError(ctx, h.logg, w, err)
		return
	}
	writeSuccess(w, c)
}

func (h *handler) applyLoyalty(w http.ResponseWriter, r *http.Request) {
	carts, ctx, err := h.cartFor(r)
	if err != nil {
		writeError(ctx, h.logg, w, err)
		return
	}
	var req loyaltyRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeError(ctx, h.logg, w, err)
		return
	}
	c, err := carts.ApplyLoyaltyPoints(ctx, *req.Points)
	if err != nil {
		writeError(ctx, h.logg, w, err)
		return
	}
	writeSuccess(w, c)
}

// setOrderType prices delivery into the cart so the total shown matches checkout.
func (h *handler) setOrderType(w http.ResponseWriter, r *http.Request) {
	carts, ctx, err := h.cartFor(r)
	if err != nil {
		writeError(ctx, h.logg, w, err)
		return
	}
	var req orderTypeRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeError(ctx, h.logg, w, err)
		return
	}
	c, err := carts.SetDeliveryFee(ctx, h.deliveryFee(r, req.OrderType))
	if err != nil {
		writeError(ctx, h.logg, w, err)
		return
	}
	writeSuccess(w, c)
}

func (h *handler) clearCart(w http.ResponseWriter, r *http.Request) {
	carts, ctx, err := h.cartFor(r)
	if err != nil {
		writeError(ctx, h.logg, w, err)
		return
	}
	c, err := carts.Clear(ctx)
	if err != nil {
		writeError(ctx, h.logg, w, err)
		return
	}
	writeSuccess(w, c)
}

func (h *handler) deliveryFee(r *http.Request, orderType models.OrderType) decimal.Decimal {
	if orderType != models.OrderTypeDelivery {
		return decimal.Zero
	}
	return h.catalog.DeliveryFee(r.Context(), h.defaultFee)
}
