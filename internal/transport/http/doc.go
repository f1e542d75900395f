// Package http implements the HTTP surface of the sales dashboard.
// Handlers stay thin: they parse and validate the request, call the
// DashboardServiceInterface and render the result. All computation lives in
// the services and pipeline packages.
//
// # Routes
//
// Each handler exposes Routes() and is mounted by the app package:
//
//	GET    /                         server-rendered dashboard page
//	POST   /upload, /reset           page forms, answered with 303 See Other
//	GET    /api/dataset              current session dataset and capabilities
//	POST   /api/dataset              multipart upload, field "file"
//	DELETE /api/dataset              back to the bundled sample
//	GET    /api/dashboard            filtered dashboard as JSON
//	GET    /api/charts/{name}.svg    one chart for the same query
//	GET    /export                   unfiltered dataset as cleaned_data.csv
//	POST   /api/client-log           browser error reports
//	GET    /healthz, /readyz, /livez health checks
//
// # Filter Query
//
// Dashboard, chart and page requests share one query format:
//
//	?start=2017-01-01&end=2017-12-31&region=East&region=West&state=...&city=...
//
// Dates are YYYY-MM-DD. A repeated key selects several values. parseQuery
// validates the query and encodeRequest produces the canonical form used in
// chart URLs.
//
// # Error Handling
//
// Failures are rendered as RFC 7807 problem details by errors.ErrorHandler:
//
//	{
//	    "type": "/errors/load",
//	    "title": "Dataset Could Not Be Loaded",
//	    "status": 422,
//	    "detail": "file is empty",
//	    "instance": "/api/dataset"
//	}
//
// The page handler shows the same detail in a banner instead. A rejected
// upload renders only the upload form and that banner, and the session keeps
// its previous dataset.
//
// # Sessions
//
// SessionMiddleware assigns every browser a session cookie. Handlers read the
// session ID with infrastructure.GetSessionID and pass it to the service.
//
// # Testing
//
// Handlers are tested with httptest against a testify mock of
// DashboardServiceInterface.
package http
