package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"folderly-api/internal/config"
	"folderly-api/internal/database"
	"folderly-api/internal/handlers"
	"folderly-api/internal/jobs"
	"folderly-api/internal/repositories"
	"folderly-api/internal/services"
	"folderly-api/internal/utils"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"golang.org/x/time/rate"
)

func main() {
	// Load configuration
	cfg := config.LoadConfig()

	// Initialize database
	db, err := database.NewDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Repositories
	users := repositories.NewUserRepository(db.DB)
	tokens := repositories.NewSessionTokenRepository(db.DB)
	folders := repositories.NewFolderRepository(db.DB)

	// Services
	jwtUtil := utils.NewJWTUtil(cfg.JWTSecret, cfg.JWTExpiration)
	emailService := services.NewEmailService(cfg)

	storage, err := services.NewS3Storage(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialize blob storage: %v", err)
	}
	ingestor := services.NewIngestor(services.NewImageTranscoder(), storage, folders)

	// Reaper for expired session-token rows
	reaperCtx, stopReaper := context.WithCancel(context.Background())
	defer stopReaper()
	jobs.NewTokenReaper(tokens, cfg.JWTExpiration, time.Hour).Start(reaperCtx)

	// Create router
	router := mux.NewRouter()

	resetLimiter := rate.NewLimiter(rate.Every(time.Hour), 3) // 3 requests per hour

	// Health check endpoint
	router.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	authGate := handlers.JWTMiddleware(jwtUtil, users, tokens)
	adminGate := handlers.AdminMiddleware()

	// Auth routes
	authRouter := router.PathPrefix("/api/auth").Subrouter()
	{
		authRouter.HandleFunc("/register", handlers.Register(users)).Methods("POST")
		authRouter.HandleFunc("/login", handlers.Login(users, tokens, jwtUtil)).Methods("POST")
		authRouter.HandleFunc("/forgot-password", handlers.RateLimitMiddleware(resetLimiter)(handlers.ForgotPassword(users, emailService))).Methods("POST")
		authRouter.HandleFunc("/reset-password", handlers.RateLimitMiddleware(resetLimiter)(handlers.ResetPassword(users, tokens))).Methods("POST")

		authed := authRouter.NewRoute().Subrouter()
		authed.Use(authGate)
		authed.HandleFunc("/logout", handlers.Logout(users, tokens)).Methods("POST")
		authed.HandleFunc("/refresh-token", handlers.RefreshToken(tokens, jwtUtil)).Methods("POST")

		adminAuthed := authed.NewRoute().Subrouter()
		adminAuthed.Use(adminGate)
		adminAuthed.HandleFunc("/force-logout/{userId:[0-9]+}", handlers.ForceLogout(users, tokens)).Methods("POST")
	}

	// User directory
	userRouter := router.PathPrefix("/api/users").Subrouter()
	userRouter.Use(authGate)
	{
		userRouter.HandleFunc("", handlers.GetAllUsers(users)).Methods("GET")
		userRouter.HandleFunc("/{id:[0-9]+}", handlers.GetUserByID(users)).Methods("GET")
		userRouter.HandleFunc("", handlers.CreateUser(users)).Methods("POST")
		userRouter.HandleFunc("/{id:[0-9]+}", handlers.UpdateUser(users)).Methods("PUT")

		adminUsers := userRouter.NewRoute().Subrouter()
		adminUsers.Use(adminGate)
		adminUsers.HandleFunc("/{id:[0-9]+}", handlers.DeleteUser(users)).Methods("DELETE")
		adminUsers.HandleFunc("/bulk", handlers.BulkCreateUsers(users)).Methods("POST")
		adminUsers.HandleFunc("/check", handlers.CheckUsers(users)).Methods("POST")
	}

	// Folders and images
	folderRouter := router.PathPrefix("/api/folders").Subrouter()
	folderRouter.Use(authGate)
	{
		folderRouter.HandleFunc("", handlers.GetFolders(folders)).Methods("GET")

		adminFolders := folderRouter.NewRoute().Subrouter()
		adminFolders.Use(adminGate)
		adminFolders.HandleFunc("", handlers.CreateFolder(folders)).Methods("POST")
		adminFolders.HandleFunc("/upload/{folderId:[0-9]+}", handlers.UploadImages(folders, ingestor, cfg.UploadDir)).Methods("POST")
		adminFolders.HandleFunc("/bulk-upload", handlers.BulkUpload(ingestor, cfg.UploadDir)).Methods("POST")
		adminFolders.HandleFunc("/disable/{folderId:[0-9]+}", handlers.ToggleFolderStatus(folders)).Methods("PUT")
		adminFolders.HandleFunc("/{folderId:[0-9]+}", handlers.RenameFolder(folders)).Methods("PUT")
		adminFolders.HandleFunc("/{folderId:[0-9]+}/image/{imageId:[0-9]+}", handlers.RenameImage(folders)).Methods("PUT")
		adminFolders.HandleFunc("/{folderId:[0-9]+}/image", handlers.DeleteImage(folders, storage)).Methods("DELETE")
		adminFolders.HandleFunc("/{folderId:[0-9]+}", handlers.DeleteFolder(folders, storage)).Methods("DELETE")
	}

	// CORS configuration
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000", "https://folderly2.vercel.app"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	server := &http.Server{
		Addr:         ":" + cfg.AppPort,
		Handler:      corsHandler.Handler(router),
		ReadTimeout:  120 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	// Start server
	log.Printf("Server running on port %s", cfg.AppPort)
	log.Fatal(server.ListenAndServe())
}
