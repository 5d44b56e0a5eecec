package application

import (
	"errors"

	apperrors "github.com/wms-platform/freight-service/pkg/errors"

	"github.com/wms-platform/freight-service/internal/domain"
	"github.com/wms-platform/freight-service/internal/rates"
)

// mapDomainError classifies domain and rating errors into transport errors.
// Invalid input is a 400, a state the session cannot legally leave is a 409,
// carrier outage is a 503.
func mapDomainError(err error) *apperrors.AppError {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrItemNotFound):
		return apperrors.ErrNotFound("item").Wrap(err)
	case errors.Is(err, domain.ErrNoItems),
		errors.Is(err, domain.ErrNegativeQuantity),
		errors.Is(err, rates.ErrNoParcels):
		return apperrors.ErrValidation(err.Error())
	case errors.Is(err, domain.ErrSessionCompleted),
		errors.Is(err, domain.ErrNoPackedWeight),
		errors.Is(err, domain.ErrNoQuoteSelected),
		errors.Is(err, domain.ErrDiscrepanciesUnacked),
		errors.Is(err, domain.ErrUnassignedQuantity),
		errors.Is(err, domain.ErrNotOversized):
		return apperrors.ErrConflict(err.Error())
	case errors.Is(err, rates.ErrRatesUnavailable):
		return apperrors.ErrServiceUnavailable("carrier rates")
	default:
		return apperrors.FromError(err)
	}
}
