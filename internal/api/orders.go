package api

import (
	"net/http"

	"github.com/safar/osushi-store/internal/apperr"
	"github.com/safar/osushi-store/internal/checkout"
	"github.com/safar/osushi-store/internal/models"
)

type statusRequest struct {
	Status models.OrderStatus `json:"status" validate:"required"`
}

func (h *handler) createOrder(w http.ResponseWriter, r *http.Request) {
	carts, ctx, err := h.cartFor(r)
	if err != nil {
		writeError(ctx, h.logg, w, err)
		return
	}
	userID, err := userFor(r)
	if err != nil {
		writeError(ctx, h.logg, w, err)
		return
	}

	var req checkout.Request
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeError(ctx, h.logg, w, err)
		return
	}
	req.UserID = userID

	if _, err := carts.SetDeliveryFee(ctx, h.deliveryFee(r, req.OrderType)); err != nil {
		writeError(ctx, h.logg, w, err)
		return
	}

	order, err := h.orders.CreateOrder(ctx, carts, req)
	if err != nil {
		writeError(ctx, h.logg, w, err)
		return
	}
	writeSuccessStatus(w, http.StatusCreated, order)
}

func (h *handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "orderID")
	if err != nil {
		writeError(r.Context(), h.logg, w, err)
		return
	}
	order, err := h.orders.GetOrder(r.Context(), id)
	if err != nil {
		writeError(r.Context(), h.logg, w, err)
		return
	}
	writeSuccess(w, order)
}

// listOrders is the staff view: offset pages, optionally filtered by status.
func (h *handler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page, err := queryInt(r, "page", 1)
	if err != nil {
		writeError(ctx, h.logg, w, err)
		return
	}
	pageSize, err := queryInt(r, "page_size", 20)
	if err != nil {
		writeError(ctx, h.logg, w, err)
		return
	}

	var status *models.OrderStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed, err := models.ParseOrderStatus(raw)
		if err != nil {
			writeError(ctx, h.logg, w, apperr.Wrap(apperr.CodeValidation, err, "invalid status"))
			return
		}
		status = &parsed
	}

	result, err := h.orders.ListOrders(ctx, status, page, pageSize)
	if err != nil {
		writeError(ctx, h.logg, w, err)
		return
	}
	writeSuccess(w, result)
}

func (h *handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := uuidParam(r, "orderID")
	if err != nil {
		writeError(ctx, h.logg, w, err)
		return
	}
	var req statusRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeError(ctx, h.logg, w, err)
		return
	}
	order, err := h.orders.UpdateOrderStatus(ctx, id, req.Status)
	if err != nil {
		writeError(ctx, h.logg, w, err)
		return
	}
	writeSuccess(w, order)
}
