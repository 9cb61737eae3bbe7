package api

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/safar/osushi-store/internal/apperr"
	"github.com/safar/osushi-store/internal/store"
)

func (h *handler) listCategories(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, h.catalog.ListCategories(r.Context()))
}

// listProducts serves available products, filtered by category_id, popular and q.
func (h *handler) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.ProductFilter{OnlyAvailable: true, Search: q.Get("q")}

	if raw := q.Get("category_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(r.Context(), h.logg, w, apperr.Wrap(apperr.CodeValidation, err, "invalid category_id"))
			return
		}
		filter.CategoryID = &id
	}
	if raw := q.Get("popular"); raw != "" {
		popular, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(r.Context(), h.logg, w, apperr.Wrap(apperr.CodeValidation, err, "invalid popular"))
			return
		}
		filter.OnlyPopular = popular
	}

	writeSuccess(w, h.catalog.ListProductsWithVariants(r.Context(), filter))
}

func (h *handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "productID")
	if err != nil {
		writeError(r.Context(), h.logg, w, err)
		return
	}
	product, err := h.catalog.GetProduct(r.Context(), id)
	if err != nil {
		writeError(r.Context(), h.logg, w, err)
		return
	}
	writeSuccess(w, product)
}
