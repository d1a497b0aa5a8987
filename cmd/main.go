package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"spotmatch/app/internal/api/handler"
	"spotmatch/app/internal/assistant"
	"spotmatch/app/internal/config"
	"spotmatch/app/internal/feed"
	"spotmatch/app/internal/places"
	"spotmatch/app/internal/store"
)

func setupDependencies(cfg config.Config) (*gorm.DB, *redis.Client) {
	// TranslateError is required: the store detects duplicate requests and
	// swipes through gorm.ErrDuplicatedKey.
	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatalf("Failed to connect PostgreSQL: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})

	ctx := context.Background()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatalf("Failed to connect Redis: %v", err)
	}

	return db, rdb
}

func main() {
	log.Println("Starting SpotMatch Backend...")

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}
	cfg := config.Load()

	db, rdb := setupDependencies(cfg)
	s := store.New(db, rdb)
	if err := s.Migrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database and Redis connections established, migrations complete.")

	hub := feed.NewManager(s)
	go hub.Run(context.Background())

	venues := places.NewVenueClient(cfg.PlacesAPIURL, cfg.PlacesAPIKey)
	asst := assistant.NewClient(cfg.AssistantAPIURL, cfg.AssistantAPIKey)

	r := gin.Default()
	h := handler.NewHandler(s, hub, venues, asst, cfg)

	r.POST("/session", h.CreateSession)
	r.GET("/ws", h.ServeFeed)

	auth := r.Group("/", h.AuthRequired())
	{
		auth.PUT("/profile", h.UpdateProfile)
		auth.GET("/profiles/:id", h.GetProfile)

		auth.POST("/presence/permission", h.SetPermission)
		auth.POST("/presence/fix", h.ReportFix)
		auth.POST("/presence/background", h.Background)
		auth.DELETE("/presence", h.EndSession)

		auth.GET("/candidates", h.Candidates)

		auth.POST("/requests", h.SendRequest)
		auth.GET("/requests", h.ReceivedRequests)
		auth.GET("/requests/pending-count", h.PendingCount)
		auth.POST("/requests/:id/accept", h.AcceptRequest)
		auth.POST("/requests/:id/reject", h.RejectRequest)

		auth.GET("/conversations", h.Conversations)
		auth.GET("/conversation", h.CurrentConversation)
		auth.POST("/conversations", h.OpenConversation)
		auth.POST("/conversations/:id/select", h.SelectConversation)
		auth.POST("/conversations/:id/messages", h.SendMessage)
		auth.POST("/conversations/:id/read", h.MarkRead)
		auth.POST("/conversations/:id/match", h.DeclareMatch)
		auth.GET("/conversations/:id/places", h.Places)
		auth.POST("/conversations/:id/places/swipe", h.SwipePlace)

		auth.POST("/reports", h.ReportUser)

		auth.POST("/assistant", h.AskAssistant)
	}

	server := &http.Server{
		Addr:           cfg.ListenAddr,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	log.Fatal(server.ListenAndServe())
}
