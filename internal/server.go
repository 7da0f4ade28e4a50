package internal

import (
	"context"
	"database/sql"
	"embed"
	"log"
	"net/http"
	"os"
	"time"

	"sitesafe-api/internal/auth"
	"sitesafe-api/internal/config"
	"sitesafe-api/internal/handlers"
	"sitesafe-api/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed openapi
var openapiFS embed.FS

type Server struct {
	DB         *sql.DB
	Pool       *pgxpool.Pool
	Router     *chi.Mux
	JWTManager *auth.JWTManager
	Metrics    *Metrics
}

func NewServer(dsn string, cfg *config.Config) *Server {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Fatal("Failed to open database connection:", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		log.Fatal("Database ping failed:", err)
	}

	// Also create a pgxpool for the importer
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		log.Fatal("Failed to create pgxpool:", err)
	}

	// Initialize JWT manager
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTExpiry)

	// Validate JWT configuration
	if err := jwtManager.ValidateConfig(); err != nil {
		log.Fatal("JWT configuration validation failed:", err)
	}

	// Initialize metrics
	metrics := NewMetrics()

	s := &Server{
		DB:         db,
		Pool:       pool,
		Router:     chi.NewRouter(),
		JWTManager: jwtManager,
		Metrics:    metrics,
	}
	// Mount public routes FIRST (no middleware)
	s.Router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		if _, err := w.Write([]byte("ok")); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	s.Router.Get("/dbping", func(w http.ResponseWriter, _ *http.Request) {
		if _, err := w.Write([]byte("db: ok")); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})

	// Public auth routes (no JWT required)
	s.Router.Post("/auth/login", s.loginUser)
	s.mountDocs(s.Router)

	// Mount metrics if enabled
	if os.Getenv("ENABLE_METRICS") == "true" {
		s.Router.Use(s.Metrics.Middleware())
		s.Router.Get("/metrics", s.Metrics.Handler().ServeHTTP)
	}

	// Create a protected route group with middleware
	s.Router.Group(func(r chi.Router) {
		// Apply middleware to this group only
		r.Use(auth.AuthMiddleware(s.JWTManager))
		r.Use(s.withRLSSession)

		// Mount protected routes
		s.mountProtectedRoutes(r)
	})

	return s
}

// Close properly shuts down the server and cleans up resources
func (s *Server) Close(ctx context.Context) error {
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}

// withRLSSession middleware for company isolation
func (s *Server) withRLSSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		companyID := auth.CompanyIDFromContext(r.Context()) // from the JWT middleware
		conn, ctx2, err := withDBConn(r.Context(), s.DB, companyID)
		if err != nil {
			http.Error(w, "db acquire: "+err.Error(), http.StatusInternalServerError)
			return
		}
		if conn != nil {
			defer conn.Close()
		}
		next.ServeHTTP(w, r.WithContext(ctx2))
	})
}

// mountDocs serves the OpenAPI spec and Swagger UI
func (s *Server) mountDocs(mux *chi.Mux) {
	// Check if Swagger is enabled
	if os.Getenv("ENABLE_SWAGGER") != "true" {
		return
	}

	// Serve the raw YAML
	mux.HandleFunc("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		data, err := openapiFS.ReadFile("openapi/openapi.yaml")
		if err != nil {
			http.Error(w, "Failed to read OpenAPI spec", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/x-yaml")
		if _, err := w.Write(data); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})

	// Serve Swagger UI page
	mux.HandleFunc("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(200)
		w.Write([]byte(`<!doctype html>
<html lang="en">
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <title>SiteSafe API - Documentation</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.9.0/swagger-ui.css">
    <style>
        body { margin: 0; background: #f7f7f7; }
        .swagger-ui .topbar { background: #1f2937; border-bottom: 3px solid #f59e0b; }
        .swagger-ui .topbar .download-url-wrapper { display: none; }
        .swagger-ui .info { margin: 20px 0; }
        .swagger-ui .info .title { color: #1f2937; }
    </style>
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5.9.0/swagger-ui-bundle.js"></script>
    <script>
        window.onload = function() {
            window.ui = SwaggerUIBundle({
                url: '/openapi.yaml',
                dom_id: '#swagger-ui',
                deepLinking: true,
                presets: [
                    SwaggerUIBundle.presets.apis,
                    SwaggerUIBundle.presets.standalone
                ],
                plugins: [
                    SwaggerUIBundle.plugins.DownloadUrl
                ],
                layout: "StandaloneLayout",
                tryItOutEnabled: true
            });
        };
    </script>
</body>
</html>`))
	})
}

// mountProtectedRoutes mounts all protected routes that require authentication
func (s *Server) mountProtectedRoutes(r chi.Router) {
	writers := models.InventoryWriterRoles

	// Equipment categories - writes restricted to inventory writers
	r.Get("/categories", s.listCategories)
	r.Get("/categories/{id}", s.getCategory)
	r.Post("/categories", auth.MustRole(writers...)(http.HandlerFunc(s.createCategory)).(http.HandlerFunc))
	r.Put("/categories/{id}", auth.MustRole(writers...)(http.HandlerFunc(s.updateCategory)).(http.HandlerFunc))
	r.Delete("/categories/{id}", auth.MustRole(writers...)(http.HandlerFunc(s.deleteCategory)).(http.HandlerFunc))

	// Equipment items - writes restricted to inventory writers
	r.Get("/equipment", s.listEquipmentItems)
	r.Get("/equipment/{id}", s.getEquipmentItem)
	r.Post("/equipment", auth.MustRole(writers...)(http.HandlerFunc(s.createEquipmentItem)).(http.HandlerFunc))
	r.Put("/equipment/{id}", auth.MustRole(writers...)(http.HandlerFunc(s.updateEquipmentItem)).(http.HandlerFunc))
	r.Delete("/equipment/{id}", auth.MustRole(writers...)(http.HandlerFunc(s.deleteEquipmentItem)).(http.HandlerFunc))

	// Certificates live under their equipment item
	r.Get("/equipment/{id}/certificates", s.listCertificates)
	r.Post("/equipment/{id}/certificates", auth.MustRole(writers...)(http.HandlerFunc(s.createCertificate)).(http.HandlerFunc))
	r.Delete("/certificates/{id}", auth.MustRole(writers...)(http.HandlerFunc(s.deleteCertificate)).(http.HandlerFunc))

	// Expiry reminders - office roles only
	r.Get("/reminders", auth.MustRole(models.ReminderViewerRoles...)(http.HandlerFunc(s.listReminders)).(http.HandlerFunc))

	// Equipment reports - any authenticated user can raise one
	r.Post("/reports", s.createReport)
	r.Get("/reports", s.listReports)
	r.Get("/reports/{id}", s.getReport)
	r.Post("/reports/{id}/fix", auth.MustRole(models.ReportResolverRoles...)(http.HandlerFunc(s.fixReport)).(http.HandlerFunc))
	r.Post("/reports/{id}/discard", auth.MustRole(models.ReportResolverRoles...)(http.HandlerFunc(s.discardReport)).(http.HandlerFunc))
	r.Delete("/reports/{id}", auth.MustRole(models.ReportDeleterRoles...)(http.HandlerFunc(s.deleteReport)).(http.HandlerFunc))

	// Excel import - inventory writers only
	importsHandler := handlers.NewImportsHandler(s.Pool)
	r.Post("/imports/excel", auth.MustRole(writers...)(http.HandlerFunc(importsHandler.UploadExcel)).(http.HandlerFunc))

	// User management - administrators only, with multi-tenant logic
	r.Post("/users", auth.MustRole(models.RoleAdministrator)(http.HandlerFunc(s.createUser)).(http.HandlerFunc))
	r.Get("/users", auth.MustRole(models.RoleAdministrator)(http.HandlerFunc(s.listUsers)).(http.HandlerFunc))
	r.Get("/users/{id}", auth.MustRole(models.RoleAdministrator)(http.HandlerFunc(s.getUser)).(http.HandlerFunc))
	r.Put("/users/{id}", auth.MustRole(models.RoleAdministrator)(http.HandlerFunc(s.updateUser)).(http.HandlerFunc))
	r.Delete("/users/{id}", auth.MustRole(models.RoleAdministrator)(http.HandlerFunc(s.deleteUser)).(http.HandlerFunc))

	// Company management - head office only
	r.Get("/companies", auth.MustRole(models.RoleAdministrator)(http.HandlerFunc(s.listCompanies)).(http.HandlerFunc))
	r.Get("/companies/{id}", auth.MustRole(models.RoleAdministrator)(http.HandlerFunc(s.getCompany)).(http.HandlerFunc))
	r.Get("/companies/{id}/stats", auth.MustRole(models.RoleAdministrator)(http.HandlerFunc(s.getCompanyStats)).(http.HandlerFunc))
	r.Post("/companies", auth.MustRole(models.RoleAdministrator)(http.HandlerFunc(s.createCompany)).(http.HandlerFunc))
	r.Put("/companies/{id}", auth.MustRole(models.RoleAdministrator)(http.HandlerFunc(s.updateCompany)).(http.HandlerFunc))
	r.Delete("/companies/{id}", auth.MustRole(models.RoleAdministrator)(http.HandlerFunc(s.deleteCompany)).(http.HandlerFunc))

	// Self-service routes
	r.Get("/auth/profile", s.getUserProfile)
	r.Put("/auth/profile", s.updateUserProfile)
	r.Put("/auth/change-password", s.changePassword)
}
