// Package api handles incoming HTTP requests, request validation and
// response formatting for the swap marketplace. Handlers translate HTTP
// concerns into service calls and map service errors onto status codes
// and client-safe messages.
package api
