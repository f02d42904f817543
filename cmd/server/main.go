package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/districtr/districtr-v2-sub000/internal/config"
	"github.com/districtr/districtr-v2-sub000/internal/contiguity"
	"github.com/districtr/districtr-v2-sub000/internal/db"
	"github.com/districtr/districtr-v2-sub000/internal/geography"
	"github.com/districtr/districtr-v2-sub000/internal/graph"
	"github.com/districtr/districtr-v2-sub000/internal/lock"
	"github.com/districtr/districtr-v2-sub000/internal/middleware"
	"github.com/districtr/districtr-v2-sub000/internal/plan"
	"github.com/districtr/districtr-v2-sub000/internal/worker"
	"github.com/districtr/districtr-v2-sub000/redis"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	config.LoadConfig()

	// Connect to database
	db.ConnectDb()
	defer db.CloseDb()

	// Migrate database schema
	db.Migrate()

	// Initialize cache and background workers
	cache := redis.NewCache(config.AppConfig.RedisAddress)
	pool := worker.NewPool(4, 256, time.Minute)
	defer pool.Shutdown()

	// Initialize repositories
	geoRepo := geography.NewRepository(db.AppDb)
	planRepo := plan.NewRepository(db.AppDb)
	lockRepo := lock.NewRepository(db.AppDb)

	// Initialize services
	graphStore := graph.NewStore(config.AppConfig.GraphArtifactURL)
	planService := plan.NewService(planRepo, geoRepo, cache, pool, config.AppConfig.ImportHealSingleChild)
	lockService := lock.NewService(lockRepo)
	contiguityService := contiguity.NewService(planRepo, geoRepo, graphStore, cache)

	// Initialize handlers
	planHandler := plan.NewHandler(planService)
	lockHandler := lock.NewHandler(lockService)
	contiguityHandler := contiguity.NewHandler(contiguityService)

	// Initialize Gin router
	router := gin.Default()
	router.Use(middleware.ErrorHandler())

	// cors setting
	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "X-User-ID"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
	}

	if config.AppConfig.Environment == "development" {
		// Allow all origins in development
		corsConfig.AllowAllOrigins = true
	} else {
		// Restrict origins in production
		corsConfig.AllowOrigins = []string{config.AppConfig.FrontendAddress}
	}
	router.Use(cors.New(corsConfig))

	editGate := middleware.RequireEditable(lockService)

	// Document routes
	router.POST("/documents", planHandler.Create)
	router.GET("/documents/:id", planHandler.Show)
	router.DELETE("/documents/:id", editGate, planHandler.Delete)
	router.GET("/documents/:id/assignments", planHandler.ShowAssignments)
	router.PATCH("/documents/:id/assignments", editGate, planHandler.Upsert)
	router.PATCH("/documents/:id/assignments/shatter", editGate, planHandler.Shatter)
	router.PATCH("/documents/:id/assignments/unshatter", editGate, planHandler.Unshatter)
	router.PATCH("/documents/:id/assignments/reset", editGate, planHandler.Reset)
	router.POST("/documents/:id/assignments/import", editGate, planHandler.Import)
	router.POST("/documents/:id/duplicate", planHandler.Duplicate)
	router.GET("/documents/:id/unions", planHandler.ShowUnions)

	// Contiguity routes
	router.GET("/documents/:id/contiguity", contiguityHandler.ShowComponents)
	router.GET("/documents/:id/contiguity/:zone/bboxes", contiguityHandler.ShowBBoxes)

	// Lock routes
	router.POST("/documents/:id/lock", lockHandler.Checkout)
	router.DELETE("/documents/:id/lock", lockHandler.Release)

	// Periodic sweep of idle edit locks
	sweepDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(config.AppConfig.LockSweepTick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				pool.Submit("lock-sweep", func(ctx context.Context) error {
					freed, err := lockService.SweepExpired(ctx, config.AppConfig.LockMaxIdle)
					if err != nil {
						return err
					}
					if len(freed) > 0 {
						log.Printf("Freed %d expired edit locks", len(freed))
					}
					return nil
				})
			case <-sweepDone:
				return
			}
		}
	}()

	// Server configuration
	serverPort := config.AppConfig.ServerPort
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", serverPort),
		Handler: router.Handler(),
	}

	// Start server
	go func() {
		log.Printf("Server listening on port %s", serverPort)
		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")
	close(sweepDone)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Println("Server shutdown error:", err)
	}

	log.Println("Server shutdown complete")
}
