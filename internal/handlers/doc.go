// Package handlers implements the HTTP API layer of the inspection agent.
//
// Handlers delegate business logic to the services layer and focus on
// request validation, parameter parsing, error-to-status mapping and
// model-to-API conversion.
//
// # Handler Structure
//
// All handlers are methods on a single Handler struct that holds the
// service dependencies behind small interfaces, so tests can substitute
// plain-struct mocks:
//
//	type Handler struct {
//	    deviceSrv     DeviceService
//	    inspectionSrv InspectionService
//	    safetySrv     SafetyService
//	    streamSrv     StreamService
//	    store         *store.Store
//	    hub           *hub.Hub
//	    metrics       *metrics.Metrics
//	}
//
// Routes are registered on the /api/v1 group via RegisterRoutes; /health
// and /metrics live at the root via RegisterRootRoutes.
//
// # Error Mapping
//
//	SessionConflictError  → 409
//	ResourceNotFoundError → 404
//	InvalidStateError     → 400
//	GatewayError          → 502
//	anything else         → 500 (logged, message redacted)
package handlers
