package controllers

import (
	"encoding/base64"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/oskarlind/groceryledger-backend/api/responses"
	"github.com/oskarlind/groceryledger-backend/api/validators"
	"github.com/oskarlind/groceryledger-backend/internal/importer"
	pkgerrors "github.com/oskarlind/groceryledger-backend/pkg/errors"
	"github.com/oskarlind/groceryledger-backend/pkg/logger"
)

type uploadOutcome struct {
	Filename string `json:"filename"`
	*importer.UploadResult
	Error *string `json:"error,omitempty"`
}

// UploadReceipts accepts a multipart form with one or more document files and
// a shared "format" field naming the parser to use. Each file is imported
// independently; per-file failures are reported inline so one bad document
// does not sink the batch.
func UploadReceipts(svc importer.Service, maxUploadMB int, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "import service unavailable"))
			return
		}

		maxBytes := int64(maxUploadMB) << 20
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart upload"))
			return
		}
		defer r.MultipartForm.RemoveAll()

		formatTag := r.FormValue("format")
		if formatTag == "" {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "format field required"))
			return
		}

		var headers []*multipart.FileHeader
		for _, fieldFiles := range r.MultipartForm.File {
			headers = append(headers, fieldFiles...)
		}
		if len(headers) == 0 {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "at least one file required"))
			return
		}

		outcomes := make([]uploadOutcome, 0, len(headers))
		for _, header := range headers {
			content, err := readUpload(header)
			if err != nil {
				outcomes = append(outcomes, failedUpload(header.Filename, err))
				continue
			}

			res, err := svc.ImportUpload(r.Context(), content, formatTag)
			if err != nil {
				if logg != nil {
					ctx := logg.WithField(r.Context(), "filename", header.Filename)
					logg.Error(ctx, "upload import failed", err)
				}
				outcomes = append(outcomes, failedUpload(header.Filename, err))
				continue
			}
			outcomes = append(outcomes, uploadOutcome{Filename: header.Filename, UploadResult: res})
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, outcomes)
	}
}

type jsonUploadRequest struct {
	Format   string `json:"format" validate:"required"`
	Filename string `json:"filename"`
	Content  string `json:"content" validate:"required,base64"`
}

// UploadReceiptJSON accepts a single base64-encoded document as a JSON body,
// for clients that cannot send multipart forms.
func UploadReceiptJSON(svc importer.Service, maxUploadMB int, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, int64(maxUploadMB)<<20)

		var req jsonUploadRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		content, err := base64.StdEncoding.DecodeString(req.Content)
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decoding document content"))
			return
		}

		res, err := svc.ImportUpload(r.Context(), content, req.Format)
		if err != nil {
			if logg != nil {
				ctx := logg.WithField(r.Context(), "filename", req.Filename)
				logg.Error(ctx, "upload import failed", err)
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated,
			uploadOutcome{Filename: req.Filename, UploadResult: res})
	}
}

func readUpload(header *multipart.FileHeader) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "opening uploaded file")
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "reading uploaded file")
	}
	return content, nil
}

func failedUpload(filename string, err error) uploadOutcome {
	msg := err.Error()
	return uploadOutcome{Filename: filename, Error: &msg}
}
