package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	apierrors "salesdash/internal/errors"
	"salesdash/internal/infrastructure"
)

// ExportFileName is the name offered to the browser
const ExportFileName = "cleaned_data.csv"

// ExportHandler streams the session's full dataset as UTF-8 CSV. Filters do
// not apply to the export.
type ExportHandler struct {
	service      DashboardServiceInterface
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewExportHandler creates an export handler
func NewExportHandler(service DashboardServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *ExportHandler {
	return &ExportHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "export_handler")),
		errorHandler: errorHandler,
	}
}

// ServeHTTP handles GET /api/export/cleaned_data.csv. The dataset
// fingerprint is the ETag.
func (h *ExportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ds, err := h.service.ExportSource(ctx, infrastructure.GetSessionID(ctx))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	etag := fmt.Sprintf("%q", ds.Fingerprint)
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "private, no-cache")
	if etagMatches(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", ExportFileName))
	if err := h.service.WriteExport(ctx, w, ds); err != nil {
		// Headers are out; the client sees a truncated body
		h.logger.ErrorContext(ctx, "Export failed mid-stream",
			slog.String("source", ds.Source),
			slog.String("error", err.Error()))
	}
}

func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		candidate = strings.TrimPrefix(candidate, "W/")
		if candidate == "*" || candidate == etag {
			return true
		}
	}
	return false
}
