// Package slp defines the narrow interface the SLP bridge uses to talk to a
// service location library, plus an in-process implementation.
//
// Every call on an Agent is blocking and is only ever made from the SLP
// worker goroutine. Implementations report call failures through the returned
// error; failures reported by the library's own callbacks are returned as an
// ErrorCode so callers can inspect them with errors.As.
//
// E1.33 components advertise themselves under the "service:e133.esta"
// service type. ServiceURL and EndpointFromURL convert between an endpoint
// identifier (usually "host" or "host:port") and its service URL.
package slp
