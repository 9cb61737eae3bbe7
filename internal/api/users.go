package api

import (
	"net/http"

	"github.com/safar/osushi-store/internal/checkout"
)

func (h *handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req checkout.NewUser
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeError(r.Context(), h.logg, w, err)
		return
	}
	user, err := h.orders.CreateUser(r.Context(), req)
	if err != nil {
		writeError(r.Context(), h.logg, w, err)
		return
	}
	writeSuccessStatus(w, http.StatusCreated, user)
}

func (h *handler) listUserOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := uuidParam(r, "userID")
	if err != nil {
		writeError(ctx, h.logg, w, err)
		return
	}
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		writeError(ctx, h.logg, w, err)
		return
	}
	page, err := h.orders.ListUserOrders(ctx, userID, r.URL.Query().Get("cursor"), limit)
	if err != nil {
		writeError(ctx, h.logg, w, err)
		return
	}
	writeSuccess(w, page)
}

func (h *handler) loyaltyState(w http.ResponseWriter, r *http.Request) {
	userID, err := uuidParam(r, "userID")
	if err != nil {
		writeError(r.Context(), h.logg, w, err)
		return
	}
	state, err := h.orders.LoyaltyState(r.Context(), userID)
	if err != nil {
		writeError(r.Context(), h.logg, w, err)
		return
	}
	writeSuccess(w, state)
}

func (h *handler) loyaltyHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := uuidParam(r, "userID")
	if err != nil {
		writeError(ctx, h.logg, w, err)
		return
	}
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		writeError(ctx, h.logg, w, err)
		return
	}
	txs, err := h.orders.LoyaltyHistory(ctx, userID, limit)
	if err != nil {
		writeError(ctx, h.logg, w, err)
		return
	}
	writeSuccess(w, txs)
}
