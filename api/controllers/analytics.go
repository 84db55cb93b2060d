package controllers

import (
	"net/http"

	"github.com/oskarlind/groceryledger-backend/api/responses"
	"github.com/oskarlind/groceryledger-backend/internal/analytics"
	"github.com/oskarlind/groceryledger-backend/pkg/logger"
)

func MonthlySpending(svc analytics.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		series, err := svc.MonthlySpending(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, series)
	}
}
