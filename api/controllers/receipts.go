package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/oskarlind/groceryledger-backend/api/responses"
	"github.com/oskarlind/groceryledger-backend/internal/importer"
	"github.com/oskarlind/groceryledger-backend/internal/ledger"
	"github.com/oskarlind/groceryledger-backend/pkg/logger"
)

func ListReceipts(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		receipts, err := svc.ListReceipts(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, receipts)
	}
}

func GetReceipt(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		detail, err := svc.GetReceipt(r.Context(), chi.URLParam(r, "receiptId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, detail)
	}
}

// DownloadReceiptSource streams back the raw document the receipt was
// imported from.
func DownloadReceiptSource(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		file, err := svc.GetSourceDocument(r.Context(), chi.URLParam(r, "receiptId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("X-Format-Tag", file.FormatTag)
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(file.Content); err != nil && logg != nil {
			logg.Error(r.Context(), "writing source document response", err)
		}
	}
}

func ReimportReceipt(svc importer.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.Reimport(r.Context(), chi.URLParam(r, "receiptId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, res)
	}
}

func ReimportAllReceipts(svc importer.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.ReimportAll(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, res)
	}
}

func DeleteReceipt(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "receiptId")
		if err := svc.DeleteReceipt(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"deleted": id})
	}
}
