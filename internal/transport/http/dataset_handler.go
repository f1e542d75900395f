package http

import (
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "salesdash/internal/errors"
	"salesdash/internal/infrastructure"
	"salesdash/internal/middleware"
)

// multipartOverhead is allowed on top of the file limit for form framing
const multipartOverhead = 1 << 20

// uploadRequest is validated before the file is parsed
type uploadRequest struct {
	Name string `json:"file" validate:"required,max=255,filename"`
}

// DatasetHandler manages the session's dataset: inspect, replace, reset
type DatasetHandler struct {
	service        DashboardServiceInterface
	validator      *middleware.Validator
	maxUploadBytes int64
	logger         *slog.Logger
	errorHandler   *apierrors.ErrorHandler
}

// NewDatasetHandler creates a dataset handler
func NewDatasetHandler(service DashboardServiceInterface, validator *middleware.Validator, maxUploadBytes int64, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *DatasetHandler {
	return &DatasetHandler{
		service:        service,
		validator:      validator,
		maxUploadBytes: maxUploadBytes,
		logger:         logger.With(slog.String("component", "dataset_handler")),
		errorHandler:   errorHandler,
	}
}

// Routes returns the dataset routes
func (h *DatasetHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/", h.Get)
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuditLog(h.logger))
		r.Post("/", h.Upload)
		r.Delete("/", h.Reset)
	})
	return r
}

// Get handles GET /api/dataset
func (h *DatasetHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	info, err := h.service.Dataset(ctx, infrastructure.GetSessionID(ctx))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, info)
}

// Upload handles POST /api/dataset with a multipart "file" field
func (h *DatasetHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name, file, err := readUpload(w, r, h.validator, h.maxUploadBytes)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	defer file.Close()

	info, err := h.service.Upload(ctx, infrastructure.GetSessionID(ctx), name, file)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, info)
}

// Reset handles DELETE /api/dataset
func (h *DatasetHandler) Reset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	info, err := h.service.Reset(ctx, infrastructure.GetSessionID(ctx))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, info)
}

// readUpload extracts the multipart "file" field. The caller closes it.
func readUpload(w http.ResponseWriter, r *http.Request, v *middleware.Validator, maxBytes int64) (string, multipart.File, error) {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return "", nil, apierrors.ErrMissingFile
		}
		return "", nil, err
	}
	if err := v.ValidateStruct(uploadRequest{Name: header.Filename}); err != nil {
		file.Close()
		return "", nil, err
	}
	return header.Filename, file, nil
}
