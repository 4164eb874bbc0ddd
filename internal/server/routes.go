// Package server wires HTTP handlers into a ServeMux for the chat relay.
package server

import "net/http"

// SetupRoutes configures and returns the relay's ServeMux: the WebSocket
// endpoint, a health check, and the static front-end at the root.
func SetupRoutes(hub *Hub, cfg *Config) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", HealthHandler)
	mux.HandleFunc("/ws", WebSocketHandler(hub))
	mux.Handle("/", NewStaticHandler(cfg.StaticDir, cfg.IndexFile))
	return mux
}
