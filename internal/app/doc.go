// Package app wires the dashboard server together and runs it.
//
// # Initialization Flow
//
//	1. Load configuration (env over YAML file over defaults)
//	2. Initialize logging and OpenTelemetry
//	3. Build the loader, session manager, composer, chart renderer and exporter
//	4. Create the dashboard service and the websocket hub that it notifies
//	5. Set up middleware, the page, the JSON API, health checks and metrics
//	6. Start the HTTP server and the session janitor
//
// # Usage
//
//	application, err := app.NewApplication(web.FS)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := application.Run(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Graceful Shutdown
//
// Run handles SIGINT and SIGTERM: the janitor stops, open websocket pages
// are closed, in-flight requests complete within the shutdown timeout and
// telemetry is flushed.
//
// # Error Handling
//
// Initialization errors are returned to the caller. The package never
// calls os.Exit.
package app
