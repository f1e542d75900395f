package http

import (
	"context"
	"io"
	"net/http"

	"salesdash/internal/dataset"
	"salesdash/internal/pipeline"
	"salesdash/internal/services"
)

// DashboardServiceInterface is what the handlers need from the dashboard
// service
type DashboardServiceInterface interface {
	Dataset(ctx context.Context, sessionID string) (*services.DatasetInfo, error)
	Upload(ctx context.Context, sessionID, name string, r io.Reader) (*services.DatasetInfo, error)
	Reset(ctx context.Context, sessionID string) (*services.DatasetInfo, error)
	Dashboard(ctx context.Context, sessionID string, q pipeline.Query) (*pipeline.Dashboard, error)
	Chart(ctx context.Context, sessionID, name string, q pipeline.Query, w io.Writer) error
	ExportSource(ctx context.Context, sessionID string) (*dataset.Dataset, error)
	WriteExport(ctx context.Context, w io.Writer, ds *dataset.Dataset) error
}

// SessionIssuer resolves or issues the caller's session id
type SessionIssuer interface {
	ID(w http.ResponseWriter, r *http.Request) string
}

