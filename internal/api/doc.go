// Package api provides the HTTP REST API and WebSocket server for Sweep Core.
//
// It exposes sweep preview and schedule paging, run lifecycle control, variable
// listings, and audit history to user interfaces (bench consoles, web UIs),
// plus a WebSocket hub that streams run status and step progress in real time.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// # Endpoints
//
//	POST /api/v1/auth/login       Operator login, returns a JWT
//	POST /api/v1/auth/ws-ticket   Single-use WebSocket ticket
//	GET  /api/v1/health           Liveness probe (no auth)
//	GET  /api/v1/variables        Sweepable variables with calibrated display values
//	POST /api/v1/sweep/preview    Lenient normalisation: tree + problems + length
//	POST /api/v1/sweep/schedule   Schedule paging over a normalised sweep
//	POST /api/v1/runs             Create a run (strict normalisation)
//	GET  /api/v1/runs             List runs
//	GET  /api/v1/runs/{id}        Run detail
//	DELETE /api/v1/runs/{id}      Delete a non-active run
//	POST /api/v1/runs/{id}/start  Start a pending run
//	POST /api/v1/runs/{id}/stop   Stop the active run
//	GET  /api/v1/runs/{id}/captures  Captured frames for a run
//	GET  /api/v1/audit            Audit trail listing
//	GET  /api/v1/ws               WebSocket upgrade (ticket auth)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
package api
