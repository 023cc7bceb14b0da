package adaptor

import (
	"errors"
	"net/http"
	"strings"

	"villa-booking/internal/dto/response"
	"villa-booking/internal/gateway"
	"villa-booking/internal/usecase"
	"villa-booking/pkg/utils"

	"go.uber.org/zap"
)

// handleServiceError maps the usecase error taxonomy onto HTTP status codes.
// Every handler funnels through here so a given failure always produces the
// same wire shape.
func handleServiceError(w http.ResponseWriter, log *zap.Logger, err error, operation string) {
	var conflictErr *usecase.ConflictError
	var amountErr *usecase.AmountMismatchError
	var reconErr *usecase.ReconciliationConflictError

	switch {
	case errors.As(err, &conflictErr):
		log.Info(operation+" rejected, dates unavailable",
			zap.String("operation", operation),
			zap.Int("conflicting_dates", len(conflictErr.ConflictingDates)),
		)
		utils.ResponseConflict(w, "requested dates are not available", conflictToResponse(conflictErr))

	case errors.As(err, &amountErr):
		log.Warn(operation+" rejected, amount mismatch",
			zap.Error(err),
			zap.String("operation", operation),
		)
		utils.ResponseConflict(w, err.Error(), nil)

	case errors.As(err, &reconErr):
		log.Warn(operation+" flagged for reconciliation",
			zap.Error(err),
			zap.String("operation", operation),
		)
		utils.ResponseConflict(w, err.Error(), nil)

	case errors.Is(err, usecase.ErrNotFound):
		log.Warn(operation+" failed, not found",
			zap.Error(err),
			zap.String("operation", operation),
		)
		utils.ResponseNotFound(w, err.Error())

	case errors.Is(err, usecase.ErrUnauthorized):
		log.Warn(operation+" failed, wrong owner",
			zap.Error(err),
			zap.String("operation", operation),
		)
		utils.ResponseForbidden(w, err.Error())

	case errors.Is(err, usecase.ErrMaxAttempts):
		log.Warn(operation+" failed, attempt cap reached",
			zap.Error(err),
			zap.String("operation", operation),
		)
		utils.ResponseUnprocessable(w, err.Error(), nil)

	case errors.Is(err, usecase.ErrExpiredHold),
		errors.Is(err, usecase.ErrNotPending),
		errors.Is(err, usecase.ErrNotCancellable),
		errors.Is(err, usecase.ErrNotModifiable):
		log.Warn(operation+" failed, invalid state",
			zap.Error(err),
			zap.String("operation", operation),
		)
		utils.ResponseUnprocessable(w, err.Error(), nil)

	case errors.Is(err, gateway.ErrGatewayUnavailable):
		log.Error(operation+" failed, payment gateway unavailable",
			zap.Error(err),
			zap.String("operation", operation),
		)
		utils.ResponseBadGateway(w, "payment gateway is unavailable, try again later")

	case strings.Contains(err.Error(), "validation failed"),
		strings.Contains(err.Error(), "invalid"):
		log.Warn(operation+" failed, bad input",
			zap.Error(err),
			zap.String("operation", operation),
		)
		utils.ResponseBadRequest(w, err.Error(), nil)

	default:
		log.Error(operation+" failed",
			zap.Error(err),
			zap.String("operation", operation),
		)
		utils.ResponseInternalError(w, "internal server error")
	}
}

func conflictToResponse(e *usecase.ConflictError) response.ConflictResponse {
	resp := response.ConflictResponse{
		ConflictingDates: make([]string, len(e.ConflictingDates)),
	}
	for i, d := range e.ConflictingDates {
		resp.ConflictingDates[i] = d.Format("2006-01-02")
	}
	for _, rng := range e.Suggestions {
		resp.Suggestions = append(resp.Suggestions, response.RangeToResponse(rng))
	}
	return resp
}
