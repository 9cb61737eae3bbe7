package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/safar/osushi-store/internal/apperr"
	"github.com/safar/osushi-store/internal/logger"
)

type successEnvelope struct {
	Data any `json:"data"`
}

type apiError struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Retryable bool           `json:"retryable"`
	Details   map[string]any `json:"details,omitempty"`
}

type errorEnvelope struct {
	Error apiError `json:"error"`
}

func writeSuccess(w http.ResponseWriter, data any) {
	writeSuccessStatus(w, http.StatusOK, data)
}

func writeSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, successEnvelope{Data: data})
}

// writeError renders err with the status and public message of its code.
// Persistence and internal failures never leak their cause to the client.
func writeError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}

	typed := apperr.As(err)
	if typed == nil {
		typed = apperr.Wrap(apperr.CodeInternal, err, "unexpected error")
	}
	meta := apperr.MetadataFor(typed.Code())

	payload := errorEnvelope{Error: apiError{
		Code:      string(typed.Code()),
		Message:   meta.PublicMessage,
		Retryable: meta.Retryable,
	}}
	switch typed.Code() {
	case apperr.CodeValidation, apperr.CodeNotFound, apperr.CodeStateConflict:
		if m := typed.Message(); m != "" {
			payload.Error.Message = m
		}
		payload.Error.Details = typed.Details()
	case apperr.CodePersistence:
		if step := typed.Step(); step != "" {
			payload.Error.Details = map[string]any{"step": step}
		}
	}

	if logg != nil && meta.HTTPStatus >= http.StatusInternalServerError {
		fields := map[string]any{"error_code": string(typed.Code())}
		if step := typed.Step(); step != "" {
			fields["step"] = step
		}
		logg.Error(logg.WithFields(ctx, fields), "request.error", err)
	}

	writeJSON(w, meta.HTTPStatus, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
