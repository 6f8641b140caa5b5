package controllers

import (
	"net/http"

	"github.com/resqlink/resqlink-backend/api/responses"
	"github.com/resqlink/resqlink-backend/api/validators"
	"github.com/resqlink/resqlink-backend/internal/coverage"
	pkgerrors "github.com/resqlink/resqlink-backend/pkg/errors"
	"github.com/resqlink/resqlink-backend/pkg/geo"
	"github.com/resqlink/resqlink-backend/pkg/logger"
)

// CoverageCheck reports whether a point falls inside any firm's coverage,
// with ranked alternatives when it does not. It never rejects the request.
func CoverageCheck(svc *coverage.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coverage service unavailable"))
			return
		}

		lat, err := validators.ParseQueryFloat(r, "lat")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		lng, err := validators.ParseQueryFloat(r, "lng")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := geo.ValidateCoordinates(lat, lng); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid coordinates"))
			return
		}

		result, err := svc.Check(r.Context(), geo.Point{Lat: lat, Lng: lng})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}
