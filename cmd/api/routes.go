package main

import (
	"net/http"

	httphandlers "fintrack/internal/interfaces/http"
	"fintrack/internal/shared/middleware"
)

// SetupRoutes configures all HTTP routes and returns the final handler with middleware.
func SetupRoutes(deps *Dependencies) http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", httphandlers.HandleHealth)

	// OAuth connect flow
	mux.HandleFunc("/connect", deps.ConnectHandler.HandleConnect)
	mux.HandleFunc("/connect/callback", deps.ConnectHandler.HandleCallback)

	// Read API
	mux.HandleFunc("/api/providers", deps.APIHandler.HandleProviders)
	mux.HandleFunc("/api/accounts", deps.APIHandler.HandleAccounts)
	mux.HandleFunc("/api/accounts/{id}/balance", deps.APIHandler.HandleBalance)
	mux.HandleFunc("/api/accounts/{id}/transactions", deps.APIHandler.HandleTransactions)
	mux.HandleFunc("/api/accounts/{id}/transactions/pending", deps.APIHandler.HandlePendingTransactions)

	// Apply global middleware
	return middleware.Logging(middleware.CORS(middleware.Telemetry(middleware.Tracing(mux))))
}
