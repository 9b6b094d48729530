// Package assistant turns a chat message into a structured response. It
// classifies the message, extracts entities, routes to a handler through a
// dispatch table and converts every failure into an error-kind response.
package assistant
