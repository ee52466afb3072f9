package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/clubsphere/admin-backend/pkg/monitoring"
	"github.com/clubsphere/admin-backend/platform"
	"github.com/clubsphere/admin-backend/shared/utils"
	v1 "github.com/clubsphere/admin-backend/v1"
	v1handlers "github.com/clubsphere/admin-backend/v1/handlers"
	v1middleware "github.com/clubsphere/admin-backend/v1/middleware"
	v1services "github.com/clubsphere/admin-backend/v1/services"
)

func main() {
	// Load .env file if it exists (optional - fails silently if not found)
	_ = godotenv.Load()

	utils.SetupLogging(
		utils.GetEnvOrDefault("LOG_FORMAT", "json"),
		utils.GetEnvOrDefault("LOG_LEVEL", "info"),
	)

	slog.Info("Starting admin-backend initialization")

	platformBaseURL := os.Getenv("PLATFORM_BASE_URL")
	if platformBaseURL == "" {
		slog.Error("PLATFORM_BASE_URL is required")
		os.Exit(1)
	}

	// Metrics
	ctx := context.Background()
	shutdownMetrics, err := monitoring.Setup(ctx, monitoring.Config{
		ServiceName: "admin-backend",
	})
	if err != nil {
		slog.Error("Failed to initialize metrics", "error", err)
		os.Exit(1)
	}

	// Database for the approval audit trail
	dbConfig := v1.NewDatabaseConfig()
	gormDB, err := v1.ConnectGormDB(dbConfig)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	// Upstream platform client (client-credentials OAuth2)
	platformClient := platform.NewClient(
		platformBaseURL,
		os.Getenv("PLATFORM_CLIENT_ID"),
		os.Getenv("PLATFORM_CLIENT_SECRET"),
		splitScopes(os.Getenv("PLATFORM_SCOPES")),
	)

	logger := slog.Default()
	directoryService := v1services.NewDirectoryService(platformClient, logger)
	scopeService := v1services.NewScopeService()
	auditService := v1services.NewAuditService(gormDB, logger)

	// Background directory scan, keeps a warm snapshot and alerts on
	// endpoint degradation. The snapshot backs the listing endpoint when
	// the upstream is down.
	refreshCtx, stopRefresher := context.WithCancel(ctx)
	refresher := v1services.NewDirectoryRefresher(
		directoryService,
		v1services.NewLoggingAlertNotifier(),
		5*time.Minute,
	)
	go refresher.Start(refreshCtx)

	v1Handler := v1handlers.NewV1Handler(directoryService, scopeService, auditService, refresher)

	mux := http.NewServeMux()
	v1Handler.SetupV1Routes(mux)

	mux.Handle("/metrics", monitoring.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","service":"admin-backend","timestamp":"%s"}`, time.Now().Format(time.RFC3339))
	})

	// JWT authentication against the identity provider's JWKS
	jwtMiddleware := v1middleware.NewJWTAuthMiddleware(v1middleware.JWTAuthConfig{
		JWKSURL:          utils.GetEnvOrDefault("JWT_JWKS_URL", platformBaseURL+"/oauth2/jwks"),
		ExpectedIssuer:   os.Getenv("JWT_ISSUER"),
		ExpectedAudience: os.Getenv("JWT_AUDIENCE"),
		OrgName:          os.Getenv("JWT_ORG_NAME"),
	})

	// CORS -> security headers -> logging -> rate limit -> metrics -> JWT -> routes
	handler := v1middleware.NewCORSMiddleware()(
		v1middleware.SecurityHeaders(
			v1middleware.RequestLogging(
				v1middleware.RateLimitMiddleware(300, time.Minute)(
					monitoring.HTTPMetricsMiddleware(
						jwtMiddleware.AuthenticateJWT(mux))))))

	serverConfig := utils.DefaultServerConfig()
	server := utils.CreateServer(serverConfig, handler)

	err = utils.StartServerWithGracefulShutdown(server, "admin-backend")

	stopRefresher()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if metricsErr := shutdownMetrics(shutdownCtx); metricsErr != nil {
		slog.Warn("Metrics shutdown failed", "error", metricsErr)
	}

	if err != nil {
		os.Exit(1)
	}

	slog.Info("admin-backend exited")
}

func splitScopes(raw string) []string {
	return strings.Fields(raw)
}
