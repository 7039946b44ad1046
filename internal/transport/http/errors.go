package http

import (
	"errors"
	"net/http"

	apierrors "phtourism/internal/errors"
	"phtourism/internal/services"
)

// serviceError maps service sentinels onto API errors. Anything else is
// returned unchanged for the error handler to classify.
func serviceError(err error) error {
	switch {
	case errors.Is(err, services.ErrDatasetNotLoaded):
		return apierrors.ErrDatasetNotLoaded
	case errors.Is(err, services.ErrDivisionNotFound):
		return apierrors.NewWithDetails(http.StatusNotFound, "DIVISION_NOT_FOUND", "Division has no geometry", err.Error())
	case errors.Is(err, services.ErrProvinceNotFound):
		return apierrors.NewWithDetails(http.StatusNotFound, "PROVINCE_NOT_FOUND", "Province has no geometry", err.Error())
	case errors.Is(err, services.ErrUnsupportedFormat):
		return apierrors.ErrValidation("format", "format must be one of: xlsx, csv")
	case errors.Is(err, services.ErrUnknownView):
		return apierrors.ErrValidation("view", "view must be one of: totals, rankings, trends, unmatched, issues")
	}
	return err
}
