// Package api exposes the assistant over HTTP: synchronous chat with
// in-memory sessions, background jobs, the dispatch audit trail and transfer
// pre-validation for the browser widget.
package api
