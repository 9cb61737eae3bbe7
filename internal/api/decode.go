package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/safar/osushi-store/internal/apperr"
	"github.com/safar/osushi-store/internal/validate"
)

const maxBodyBytes = 1 << 20

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dest any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer func() {
		_, _ = io.Copy(io.Discard, body)
	}()

	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return apperr.Wrap(apperr.CodeValidation, err, "invalid request body").WithDetail("error", err.Error())
	}
	return validate.Struct(dest)
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Wrap(apperr.CodeValidation, err, "invalid "+key).WithDetail(key, raw)
	}
	return n, nil
}
