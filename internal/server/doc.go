// Package server implements the room relay: a WebSocket chat service with
// presence tracking, broadcast and direct messages, typing indicators, and a
// bounded history replay for newcomers.
//
// The implementation is organized into specialized files for the presence
// registry, the event router, the connection hub, clients, configuration,
// and HTTP handlers to keep the codebase maintainable and testable as the
// project grows.
package server
