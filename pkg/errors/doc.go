// Package errors provides custom error types for the inspection-agent.
//
// Each error type includes a constructor, Error() method, and a type-checking
// helper using errors.As for proper error unwrapping.
//
// # Error Types Overview
//
//	┌───────────────────────┬────────┬──────────────────────────────────────────┐
//	│ Error Type            │ HTTP   │ Description                              │
//	├───────────────────────┼────────┼──────────────────────────────────────────┤
//	│ ConnectError          │ 502    │ Device transport connect failure         │
//	│ ParseError            │ n/a    │ Malformed instrument response            │
//	│ StreamError           │ n/a    │ Event stream died (terminal)             │
//	│ SessionConflictError  │ 409    │ Session already RUNNING                  │
//	│ TimeoutError          │ n/a    │ Command round trip exceeded budget       │
//	│ ResourceNotFoundError │ 404    │ Device/model/phase doesn't exist         │
//	│ InvalidStateError     │ 409    │ Operation not valid in current state     │
//	│ GatewayError          │ 502    │ Failure response from the driver backend │
//	└───────────────────────┴────────┴──────────────────────────────────────────┘
//
// ParseError and TimeoutError never reach handlers: the session controller
// converts both into FAIL readings or FAIL phases with a recorded error
// string, so the session keeps making progress. StreamError is terminal per
// stream instance; the operator triggers a reconnect explicitly.
//
// # Type Checking Pattern
//
// All error types provide Is* helper functions that use errors.As for proper
// error chain unwrapping:
//
//	func IsSessionConflictError(err error) bool {
//	    var e *SessionConflictError
//	    return errors.As(err, &e)
//	}
//
// This allows checking wrapped errors:
//
//	wrapped := fmt.Errorf("starting inspection: %w", errors.NewSessionConflictError())
//	errors.IsSessionConflictError(wrapped) // returns true
//
// # Handler Error Mapping
//
// Handlers map errors to HTTP status codes:
//
//	switch {
//	case errors.IsResourceNotFoundError(err):
//	    c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
//	case errors.IsSessionConflictError(err), errors.IsInvalidStateError(err):
//	    c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
//	case errors.IsGatewayError(err), errors.IsConnectError(err):
//	    c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
//	default:
//	    c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
//	}
package errors
