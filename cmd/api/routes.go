package main

import (
	"log"
	"net/http"

	"moneta/internal/shared/config"
	"moneta/internal/shared/middleware"
)

// SetupRoutes configures all HTTP routes and returns the final handler
// with the middleware chain applied.
func SetupRoutes(deps *Dependencies, cfg *config.Config) http.Handler {
	mux := http.NewServeMux()

	// Unauthenticated probes
	mux.HandleFunc("/health", deps.HealthHandler.HandleHealth)

	authMiddleware := middleware.Auth(deps.Verifier, deps.UserRepo)
	limited := deps.RateLimiter.Limit

	protect := func(h http.HandlerFunc) http.Handler {
		return authMiddleware(h)
	}

	// Sync pipeline. Sync and chat are the expensive endpoints, so they
	// carry the per-owner rate limit.
	mux.Handle("/transactions/sync", authMiddleware(limited(http.HandlerFunc(deps.SyncHandler.HandleSync))))
	mux.Handle("/transactions/reset", protect(deps.SyncHandler.HandleReset))

	// Credential linking
	mux.Handle("/credential/link-token", protect(deps.CredentialHandler.HandleCreateLinkToken))
	mux.Handle("/credential/exchange", protect(deps.CredentialHandler.HandleExchange))

	// Reads
	mux.Handle("/accounts", protect(deps.AccountHandler.HandleListAccounts))
	mux.Handle("/transactions", protect(deps.TransactionHandler.HandleListTransactions))
	mux.Handle("/summary", protect(deps.TransactionHandler.HandleSummary))

	// Insights
	mux.Handle("/chat", authMiddleware(limited(http.HandlerFunc(deps.ChatHandler.HandleChat))))

	// Push notification targets
	mux.Handle("/notifications/devices", protect(deps.DeviceHandler.HandleRegisterDevice))

	// Global middleware, innermost first: telemetry and tracing see the
	// request before logging wraps the response writer.
	handler := middleware.Logging(middleware.Telemetry(middleware.Tracing(middleware.CORS(cfg.Server.AllowedHosts)(mux))))

	if cfg.TLS.Enabled {
		handler = middleware.HSTS(middleware.SecureCookies(handler))
		log.Println("TLS security middleware enabled (HSTS + SecureCookies)")
	}

	return handler
}
