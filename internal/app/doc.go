// Package app wires the tourism dashboard server together: configuration,
// logging, telemetry, the source loader, the view cache, the dashboard
// service, the WebSocket hub and the HTTP router.
//
// # Initialization Flow
//
//	1. Load configuration from .env, environment variables and the YAML file
//	2. Initialize logging and OpenTelemetry
//	3. Build the counts and geography sources and the view cache
//	4. Create the dashboard service and subscribe the hub to reloads
//	5. Set up HTTP handlers and middleware
//	6. Start the server and perform the initial load when configured
//
// # Usage
//
//	application, err := app.NewApplication()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := application.Run(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Graceful Shutdown
//
// Run handles SIGINT and SIGTERM. In-flight requests are drained, WebSocket
// sessions are closed and telemetry is flushed before Run returns.
//
// # Error Handling
//
// All initialization errors are returned to the caller. The package never
// calls os.Exit.
package app
