package http

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	apierrors "salesdash/internal/errors"
	"salesdash/internal/infrastructure"
	"salesdash/internal/middleware"
	"salesdash/internal/pipeline"
	"salesdash/internal/services"
)

const pageTemplate = "templates/dashboard.html"

// pageData feeds the dashboard template
type pageData struct {
	Info        *services.DatasetInfo
	Dashboard   *pipeline.Dashboard
	Request     pipeline.Request
	Query       string
	Error       string
	MaxUploadMB int64
}

// block is one hierarchy node sized relative to its parent
type block struct {
	Node  *pipeline.Node
	Share float64
}

// PageHandler renders the server-side dashboard page and accepts the page's
// upload and reset forms.
type PageHandler struct {
	service        DashboardServiceInterface
	validator      *middleware.Validator
	maxUploadBytes int64
	tmpl           *template.Template
	logger         *slog.Logger
	errorHandler   *apierrors.ErrorHandler
}

// NewPageHandler parses the page template from fsys
func NewPageHandler(service DashboardServiceInterface, validator *middleware.Validator, maxUploadBytes int64, fsys fs.FS, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) (*PageHandler, error) {
	tmpl, err := template.New("dashboard.html").Funcs(pageFuncs()).ParseFS(fsys, pageTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse page template: %w", err)
	}
	return &PageHandler{
		service:        service,
		validator:      validator,
		maxUploadBytes: maxUploadBytes,
		tmpl:           tmpl,
		logger:         logger.With(slog.String("component", "page_handler")),
		errorHandler:   errorHandler,
	}, nil
}

func pageFuncs() template.FuncMap {
	return template.FuncMap{
		"lower": strings.ToLower,
		"join":  strings.Join,
		"fmtdate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("2006-01-02")
		},
		"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
		"cell": func(d *decimal.Decimal) string {
			if d == nil {
				return ""
			}
			return d.StringFixed(2)
		},
		"pct": func(f float64) string { return fmt.Sprintf("%.2f", f*100) },
		"shade": func(f float64) template.CSS {
			if f <= 0 {
				return ""
			}
			return template.CSS(fmt.Sprintf("background-color: rgba(31, 119, 180, %.2f)", f))
		},
		"chart": func(name, query string) string {
			u := "/api/charts/" + name + ".svg"
			if query != "" {
				u += "?" + query
			}
			return u
		},
		"blocks": func(parent *pipeline.Node) []block {
			if parent == nil {
				return nil
			}
			out := make([]block, 0, len(parent.Children))
			for _, c := range parent.Children {
				out = append(out, block{Node: c, Share: c.Share(parent)})
			}
			return out
		},
	}
}

// Routes returns the page routes
func (h *PageHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.Page)
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuditLog(h.logger))
		r.Post("/upload", h.Upload)
		r.Post("/reset", h.Reset)
	})
	return r
}

// Page handles GET /. Invalid filters render the unfiltered page with the
// error shown.
func (h *PageHandler) Page(w http.ResponseWriter, r *http.Request) {
	req, q, err := parseQuery(r, h.validator)
	if err != nil {
		p := h.errorHandler.ErrorToProblem(err, r)
		h.render(w, r, http.StatusBadRequest, pipeline.Request{}, pipeline.Query{}, p.Detail)
		return
	}
	h.render(w, r, http.StatusOK, req, q, "")
}

// Upload handles the page's upload form. Success redirects back to the
// page. A rejected file leaves the session dataset untouched and the response
// carries only the upload form and the reason.
func (h *PageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name, file, err := readUpload(w, r, h.validator, h.maxUploadBytes)
	if err == nil {
		defer file.Close()
		_, err = h.service.Upload(ctx, infrastructure.GetSessionID(ctx), name, file)
	}
	if err != nil {
		p := h.errorHandler.ErrorToProblem(err, r)
		h.logger.WarnContext(ctx, "Upload rejected",
			slog.String("file", name),
			slog.Int("status", p.Status),
			slog.String("error", err.Error()))
		h.write(w, r, p.Status, &pageData{
			Error:       uploadMessage(p),
			MaxUploadMB: h.maxUploadBytes >> 20,
		})
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Reset handles the page's reset form
func (h *PageHandler) Reset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, err := h.service.Reset(ctx, infrastructure.GetSessionID(ctx)); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func uploadMessage(p *apierrors.ProblemDetails) string {
	if p.Detail != "" {
		return p.Detail
	}
	return p.Title
}

func (h *PageHandler) render(w http.ResponseWriter, r *http.Request, status int, req pipeline.Request, q pipeline.Query, message string) {
	ctx := r.Context()
	data, err := h.pageData(ctx, req, q)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	data.Error = message
	h.write(w, r, status, data)
}

func (h *PageHandler) write(w http.ResponseWriter, r *http.Request, status int, data *pageData) {
	ctx := r.Context()
	var buf bytes.Buffer
	if err := h.tmpl.Execute(&buf, data); err != nil {
		h.logger.ErrorContext(ctx, "Page render failed", slog.String("error", err.Error()))
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (h *PageHandler) pageData(ctx context.Context, req pipeline.Request, q pipeline.Query) (*pageData, error) {
	sessionID := infrastructure.GetSessionID(ctx)
	info, err := h.service.Dataset(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	d, err := h.service.Dashboard(ctx, sessionID, q)
	if err != nil {
		return nil, err
	}
	return &pageData{
		Info:        info,
		Dashboard:   d,
		Request:     req,
		Query:       encodeRequest(req),
		MaxUploadMB: h.maxUploadBytes >> 20,
	}, nil
}
