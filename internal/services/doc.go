// Package services implements the business logic layer of the dashboard.
// HTTP handlers and the websocket hub call into it; it calls the loader,
// the session store, the pipeline composer, the chart renderer and the CSV
// exporter.
//
// # Available Services
//
//	- DashboardService: upload, reset, recompute, charts and export per session
//	- HealthService: liveness, readiness and version reporting
//
// # Error Handling
//
// Services return the domain errors of the packages they call
// (dataset.LoadError, pipeline.TableRenderError, charts.ErrUnavailable...)
// wrapped with context; the HTTP error handler maps them to problem details.
// Section-level failures are not errors here: they are recorded on the
// returned Dashboard as FeatureResults.
package services
