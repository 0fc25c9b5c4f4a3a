package http

import (
	"encoding/json"
	"net/http"

	"oracle/pkg/errors"
	"oracle/pkg/logger"
)

// errorBody is the JSON error envelope for every non-2xx response.
type errorBody struct {
	Error   string        `json:"error"`
	Details []errorDetail `json:"details,omitempty"`
}

type errorDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Get().Errorw("Failed to encode response", "error", err)
	}
}

// respondError maps domain sentinels to HTTP statuses. Validation failures
// additionally carry per-field details.
func respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := errorBody{Error: err.Error()}

	var multi *errors.MultiError
	var validation *errors.ValidationError

	switch {
	case errors.As(err, &multi):
		status = http.StatusBadRequest
		body.Error = "validation failed"
		for _, e := range multi.Errors {
			var ve *errors.ValidationError
			if errors.As(e, &ve) {
				body.Details = append(body.Details, errorDetail{Field: ve.Field, Message: ve.Message})
			} else {
				body.Details = append(body.Details, errorDetail{Message: e.Error()})
			}
		}

	case errors.As(err, &validation):
		status = http.StatusBadRequest
		body.Error = "validation failed"
		body.Details = append(body.Details, errorDetail{Field: validation.Field, Message: validation.Message})

	case errors.Is(err, errors.ErrInvalidInput):
		status = http.StatusBadRequest

	// A cancel on a non-pending record reads the same as an absent one:
	// there is nothing left to cancel.
	case errors.Is(err, errors.ErrNotFound), errors.Is(err, errors.ErrNotCancellable):
		status = http.StatusNotFound

	case errors.Is(err, errors.ErrRateLimitExceeded):
		status = http.StatusTooManyRequests

	case errors.Is(err, errors.ErrAllProvidersFailed),
		errors.Is(err, errors.ErrProviderUnavailable),
		errors.Is(err, errors.ErrExternal):
		status = http.StatusBadGateway

	case errors.Is(err, errors.ErrTimeout):
		status = http.StatusGatewayTimeout

	case errors.Is(err, errors.ErrUnavailable):
		status = http.StatusServiceUnavailable
	}

	respondJSON(w, status, body)
}
