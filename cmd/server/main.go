package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"teamsync-backend/pkg/chat"
	"teamsync-backend/pkg/config"
	"teamsync-backend/pkg/database"
	"teamsync-backend/pkg/handlers"
	customMiddleware "teamsync-backend/pkg/middleware"
	"teamsync-backend/pkg/utils"
	"teamsync-backend/pkg/workspace"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
	cfg := config.GetCached()

	if err := cfg.Validate(); err != nil {
		fmt.Printf("❌ Configuration error: %v\n", err)
		os.Exit(1)
	}

	db := database.NewDatabase(database.DatabaseConfig{
		UseLocalDB:  cfg.UseLocalDB,
		PostgresDSN: cfg.PostgresDSN,
		Debug:       cfg.Debug,
	})
	defer db.Close()

	hub := chat.NewHub()
	pipeline := chat.NewPipeline(db, hub)
	workspaceService := workspace.NewService(db, cfg.InviteCodeTTL)

	reaper := chat.NewReaper(db, cfg.PurgeInterval)
	reaper.Start()
	defer reaper.Stop()

	router := chi.NewRouter()
	setupMiddleware(router, cfg)
	setupRoutes(router, cfg, db, workspaceService, pipeline)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		fmt.Printf("🚀 TeamSync backend listening on :%s (%s)\n", cfg.Port, cfg.Environment)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("❌ Server error: %v\n", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("🛑 Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		fmt.Printf("⚠️ Forced shutdown: %v\n", err)
	}
}

// setupMiddleware installs the global middleware stack.
func setupMiddleware(router *chi.Mux, cfg *config.Config) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	// Normalize path and restore scheme/host before logging and routing
	router.Use(customMiddleware.Normalize())
	router.Use(customMiddleware.Logger(cfg))
	router.Use(customMiddleware.Recovery(cfg))

	router.Use(customMiddleware.CORS(cfg))
	router.Use(middleware.Compress(5))

	if cfg.IsDevelopment() {
		router.Use(middleware.Heartbeat("/ping"))
	}
}

// setupRoutes wires all endpoints.
func setupRoutes(router *chi.Mux, cfg *config.Config, db database.DatabaseInterface, ws *workspace.Service, pipeline *chat.Pipeline) {
	authHandler := handlers.NewAuthHandler(cfg, db)
	workspacesHandler := handlers.NewWorkspacesHandler(cfg, ws)
	projectsHandler := handlers.NewProjectsHandler(cfg, db)
	chatHandler := handlers.NewChatHandler(cfg, db, pipeline)

	// Health check
	router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		status := "healthy"
		if err := db.HealthCheck(); err != nil {
			status = "degraded: " + err.Error()
		}
		utils.WriteSuccessResponse(w, map[string]interface{}{
			"service": "teamsync-backend",
			"status":  status,
			"time":    time.Now().Format(time.RFC3339),
		})
	})

	// The websocket handshake carries its token in the query string and
	// must not pass through the body/timeout middleware.
	router.Get("/ws", chatHandler.ServeWS)

	router.Route("/api", func(r chi.Router) {
		r.Use(customMiddleware.ContentTypeJSON)
		r.Use(customMiddleware.MaxBodySize(1 << 20))
		r.Use(middleware.Timeout(25 * time.Second))

		// Public routes
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)
		})

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.AuthMiddleware(cfg))

			r.Get("/auth/me", authHandler.Me)
			r.Put("/auth/me", authHandler.UpdateMe)

			r.Route("/workspaces", func(r chi.Router) {
				r.Post("/", workspacesHandler.CreateWorkspace)
				r.Get("/", workspacesHandler.ListMyWorkspaces)
				r.Post("/join/{inviteCode}", workspacesHandler.JoinByInviteCode)

				r.Route("/{workspaceId}", func(r chi.Router) {
					r.Get("/", workspacesHandler.GetWorkspace)
					r.Put("/", workspacesHandler.UpdateWorkspace)
					r.Delete("/", workspacesHandler.DeleteWorkspace)
					r.Post("/select", workspacesHandler.SelectWorkspace)
					r.Post("/invite/reset", workspacesHandler.ResetInviteCode)

					r.Get("/members", workspacesHandler.ListMembers)
					r.Post("/remove", workspacesHandler.RemoveMember)
					r.Post("/leave", workspacesHandler.LeaveWorkspace)
					r.Post("/transfer-ownership", workspacesHandler.TransferOwnership)
					r.Post("/promote-co-owner", workspacesHandler.PromoteToCoOwner)
					r.Put("/members/{userId}/role", workspacesHandler.ChangeMemberRole)

					r.Get("/chat", chatHandler.GetMessages)
					r.Post("/chat", chatHandler.SendMessage)

					r.Get("/analytics", projectsHandler.GetAnalytics)

					r.Route("/projects", func(r chi.Router) {
						r.Post("/", projectsHandler.CreateProject)
						r.Get("/", projectsHandler.ListProjects)
						r.Put("/{projectId}", projectsHandler.UpdateProject)
						r.Delete("/{projectId}", projectsHandler.DeleteProject)
						r.Post("/{projectId}/tasks", projectsHandler.CreateTask)
						r.Get("/{projectId}/tasks", projectsHandler.ListTasks)
					})

					r.Put("/tasks/{taskId}", projectsHandler.UpdateTask)
					r.Delete("/tasks/{taskId}", projectsHandler.DeleteTask)
				})
			})
		})
	})
}
