// Package server implements the chat relay: WebSocket connection handling,
// named rooms with JSON-persisted history, and real-time rebroadcast of
// rooms, membership, and messages to connected clients.
//
// The implementation is organized into specialized files for configuration,
// hub management, routing, broadcasting, clients, and static file serving to
// keep the codebase maintainable and testable as the project grows.
package server
